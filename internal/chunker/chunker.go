// Package chunker splits document text into overlapping segments sized for
// embedding and generation context windows.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOverlapTooLarge is returned when chunkOverlap >= chunkSize, which would
// make splitting loop forever.
var ErrOverlapTooLarge = errors.New("chunk overlap must be smaller than chunk size")

// separators is the boundary hierarchy, largest semantic unit first. The
// empty string means a hard character cut and must stay last.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split breaks text into chunks of at most chunkSize characters. It prefers
// paragraph boundaries, then line, sentence, and word boundaries, and only
// cuts mid-word when a segment has no smaller boundary to break on. Each
// chunk after the first repeats the trailing chunkOverlap characters of its
// predecessor so retrieval keeps context across chunk edges.
//
// Splitting is deterministic: the same text and parameters always produce
// the same chunks. Empty input yields no chunks; input that fits in a single
// chunk is returned unchanged.
func Split(text string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d, size %d", ErrOverlapTooLarge, chunkOverlap, chunkSize)
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(text) <= chunkSize {
		return []string{text}, nil
	}

	pieces := splitRecursive(text, chunkSize, separators)
	return mergeWithOverlap(pieces, chunkSize, chunkOverlap), nil
}

// splitRecursive cuts text into pieces no longer than chunkSize, descending
// the separator hierarchy only for pieces that still exceed the limit.
func splitRecursive(text string, chunkSize int, seps []string) []string {
	if len(text) <= chunkSize {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep := seps[len(seps)-1]
	rest := seps
	for i, s := range seps {
		if s == "" {
			sep = s
			rest = nil
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	// Hard cut: no boundary left to respect.
	if sep == "" {
		var out []string
		for len(text) > chunkSize {
			out = append(out, text[:chunkSize])
			text = text[chunkSize:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	var out []string
	parts := strings.SplitAfter(text, sep)
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) <= chunkSize {
			out = append(out, part)
			continue
		}
		out = append(out, splitRecursive(part, chunkSize, rest)...)
	}
	return out
}

// mergeWithOverlap greedily packs pieces into chunks up to chunkSize, then
// seeds each subsequent chunk with the tail of the previous one.
func mergeWithOverlap(pieces []string, chunkSize, chunkOverlap int) []string {
	var chunks []string
	var cur strings.Builder
	seedLen := 0

	flush := func(next string) {
		chunk := strings.TrimSpace(cur.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		cur.Reset()
		seedLen = 0
		if chunkOverlap > 0 && len(chunk) > chunkOverlap && chunkOverlap+len(next) <= chunkSize {
			cur.WriteString(chunk[len(chunk)-chunkOverlap:])
			seedLen = cur.Len()
		}
	}

	for _, piece := range pieces {
		if cur.Len() > seedLen && cur.Len()+len(piece) > chunkSize {
			flush(piece)
		}
		cur.WriteString(piece)
	}
	if cur.Len() > seedLen {
		if chunk := strings.TrimSpace(cur.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
