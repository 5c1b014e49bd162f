// Package retrieval stores chunk embeddings and finds the chunks most
// similar to a query.
package retrieval

import (
	"context"
	"fmt"
)

// Result is one retrieved chunk as handed to callers: its text, where it
// came from, the index's similarity score, and the chunk metadata.
// Results are ephemeral; they are never persisted.
type Result struct {
	Content  string         `json:"content"`
	Source   string         `json:"source,omitempty"`
	Score    float32        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Index composes the Embedder and a VectorStore: it owns every embedding
// call, one per chunk on write and one per query on read. Similarity
// ordering is the store's native cosine metric; the Index does not re-rank.
type Index struct {
	embedder *Embedder
	store    VectorStore
}

// NewIndex creates an Index over the given Embedder and VectorStore.
func NewIndex(embedder *Embedder, store VectorStore) *Index {
	return &Index{embedder: embedder, store: store}
}

// Add embeds and stores the given records, returning how many were written.
// Every chunk is embedded before any row is written and the records are
// inserted in one transaction, so an embedding failure leaves the index
// untouched rather than holding a partial batch.
func (ix *Index) Add(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(records), err)
	}
	for i := range records {
		records[i].Embedding = vectors[i]
	}

	if err := ix.store.Insert(records); err != nil {
		return 0, fmt.Errorf("storing %d chunks: %w", len(records), err)
	}
	return len(records), nil
}

// Search embeds the query and returns the top-K most similar chunks, best
// first. Fewer than k results are returned when the index holds fewer chunks.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := ix.store.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	results := make([]Result, len(scored))
	for i, sr := range scored {
		results[i] = toResult(sr)
	}
	return results, nil
}

// Count returns the total number of chunks stored.
func (ix *Index) Count() (int, error) {
	return ix.store.Count()
}

// Clear removes every chunk from the index.
func (ix *Index) Clear() (int, error) {
	return ix.store.Clear()
}

// DeleteDocument removes all chunks belonging to a document.
func (ix *Index) DeleteDocument(docID string) (int, error) {
	return ix.store.DeleteByDoc(docID)
}

func toResult(sr ScoredRecord) Result {
	meta := map[string]any{
		"chunk_id": sr.ChunkID,
		"doc_id":   sr.DocID,
		"doc_type": sr.DocKind,
	}
	if sr.Title != "" {
		meta["title"] = sr.Title
	}
	if sr.Source != "" {
		meta["source"] = sr.Source
	}
	for k, v := range sr.Metadata {
		meta[k] = v
	}

	return Result{
		Content:  sr.Text,
		Source:   sr.Source,
		Score:    sr.Score,
		Metadata: meta,
	}
}
