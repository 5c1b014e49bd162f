// Package rag turns a question into an answer grounded in the indexed
// documents: retrieve the most relevant chunks, assemble them into a prompt,
// and run a single generation call.
package rag

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/ltnguyen/askdocs/internal/engine"
	"github.com/ltnguyen/askdocs/internal/retrieval"
)

const defaultTopK = 4

// Retriever is the slice of the index the answerer needs.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Answerer retrieves context for a question and generates an answer with it.
type Answerer struct {
	retriever Retriever
	engine    engine.Engine
	model     string
	topK      int
	tmpl      *template.Template
}

// New builds an Answerer. topK <= 0 selects the default (4). dataDir may hold
// a prompt.tmpl overriding the built-in prompt.
func New(retriever Retriever, eng engine.Engine, model string, topK int, dataDir string) (*Answerer, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	tmpl, err := loadTemplate(dataDir)
	if err != nil {
		return nil, err
	}
	return &Answerer{
		retriever: retriever,
		engine:    eng,
		model:     model,
		topK:      topK,
		tmpl:      tmpl,
	}, nil
}

// Answer runs retrieval for the question, fills the prompt template with the
// retrieved chunks, and returns the model's raw answer together with the
// chunks it saw. An empty index is not an error; the model is asked with an
// empty context block.
func (a *Answerer) Answer(ctx context.Context, question string) (string, []retrieval.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, fmt.Errorf("question is empty")
	}

	results, err := a.retriever.Search(ctx, question, a.topK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieving context: %w", err)
	}

	prompt, err := renderPrompt(a.tmpl, formatContext(results), question)
	if err != nil {
		return "", nil, err
	}

	answer, err := a.engine.Chat(ctx, a.model, []engine.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", nil, fmt.Errorf("generating answer: %w", err)
	}

	return answer, results, nil
}

// formatContext joins chunk texts in retrieval order, blank-line separated.
func formatContext(results []retrieval.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n\n")
}
