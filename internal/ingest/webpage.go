package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ltnguyen/askdocs/internal/storage"
)

// ErrNoContent is returned when a fetched page yields no extractable text.
var ErrNoContent = errors.New("no readable content found")

const (
	fetchTimeout  = 30 * time.Second
	maxFetchBytes = 10 << 20 // 10 MiB
)

// skippedElements are HTML elements whose text is page chrome, not content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"iframe":   true,
}

// AddWeb fetches a page, extracts its readable text, and runs the ingestion
// pipeline with kind=web and the URL as source.
func (s *Service) AddWeb(ctx context.Context, pageURL, title string, meta map[string]any) (Receipt, error) {
	if err := validateURL(pageURL); err != nil {
		return Receipt{}, err
	}

	text, pageTitle, err := fetchPageText(ctx, pageURL)
	if err != nil {
		return Receipt{}, err
	}
	if title == "" {
		title = pageTitle
	}

	return s.run(ctx, text, title, pageURL, storage.KindWeb, meta, "Web document loaded and added successfully")
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}

// fetchPageText downloads the page with a bounded client and returns its
// readable text and the <title> content.
func fetchPageText(ctx context.Context, pageURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "askdocs/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	root, err := html.Parse(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	text := extractText(root)
	if text == "" {
		return "", "", fmt.Errorf("%s: %w", pageURL, ErrNoContent)
	}
	return text, pageTitle(root), nil
}

// extractText walks the DOM collecting text nodes, skipping page chrome.
// Block-level content ends up newline separated.
func extractText(root *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return sb.String()
}

func pageTitle(root *html.Node) string {
	var title string
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return title
}
