package rag

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const promptFileName = "prompt.tmpl"

// fallbackTemplate mirrors the widely used rag-prompt contract: the model
// answers strictly from the retrieved context and admits when it cannot.
const fallbackTemplate = `You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question. If you don't know the answer, just say that you don't know. Keep the answer concise and accurate.

Context: {{.Context}}

Question: {{.Question}}

Answer:`

type promptData struct {
	Context  string
	Question string
}

// loadTemplate reads <dataDir>/prompt.tmpl when present, otherwise falls back
// to the built-in template. A custom template must reference {{.Context}} and
// {{.Question}}.
func loadTemplate(dataDir string) (*template.Template, error) {
	text := fallbackTemplate
	if dataDir != "" {
		path := filepath.Join(dataDir, promptFileName)
		if b, err := os.ReadFile(path); err == nil {
			text = string(b)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading prompt template: %w", err)
		}
	}

	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, contextBlock, question string) (string, error) {
	var sb strings.Builder
	err := tmpl.Execute(&sb, promptData{Context: contextBlock, Question: question})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}
