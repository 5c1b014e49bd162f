package retrieval

import "time"

// VectorStore is the interface for chunk storage and similarity search
// backends. The current implementation uses SQLite with brute-force cosine
// similarity; an ANN-capable backend can replace it without touching the
// callers, since all record data uses the same Record/ScoredRecord types.
type VectorStore interface {
	// Insert adds records atomically: either every record is written or none.
	Insert(records []Record) error

	// Search returns the top-K records most similar to vector, best first.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of stored chunks.
	Count() (int, error)

	// DeleteByDoc removes all chunks belonging to a document and reports how
	// many were removed.
	DeleteByDoc(docID string) (int, error)

	// Clear removes every chunk and reports how many were removed.
	Clear() (int, error)
}

// Record is one stored chunk: its text, embedding, owning-document fields,
// and a primitive-valued metadata extension map (persisted as JSON).
type Record struct {
	ChunkID   string
	DocID     string
	DocKind   string
	Title     string
	Source    string
	Text      string
	Embedding []float32
	Metadata  map[string]any
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
