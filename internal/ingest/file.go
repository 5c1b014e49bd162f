package ingest

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/ltnguyen/askdocs/internal/storage"
)

// AddFile ingests an uploaded file. PDFs have their text extracted, .md files
// are kept as markdown, everything else is treated as plain text.
func (s *Service) AddFile(ctx context.Context, filename string, data []byte, title string, meta map[string]any) (Receipt, error) {
	if len(data) == 0 {
		return Receipt{}, ErrEmptyContent
	}

	kind := storage.KindText
	content := ""

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := extractPDFText(data)
		if err != nil {
			return Receipt{}, fmt.Errorf("extracting pdf %s: %w", filename, err)
		}
		kind = storage.KindPDF
		content = text
	case ".md", ".markdown":
		kind = storage.KindMarkdown
		content = string(data)
	default:
		content = string(data)
	}

	if title == "" {
		title = filename
	}

	return s.run(ctx, content, title, filename, kind, meta, "File document added successfully")
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
