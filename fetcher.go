package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// ContentFetcher fetches reference pages and converts them to markdown
type ContentFetcher struct {
	handlers  []ContentHandler
	client    *http.Client
	maxTokens int
}

// NewContentFetcher creates a new content fetcher with default handlers
func NewContentFetcher(maxTokens int) *ContentFetcher {
	f := &ContentFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		maxTokens: maxTokens,
	}

	// Register handlers (most specific first)
	f.AddHandler(&TextHandler{})
	f.AddHandler(&HTMLHandler{converter: md.NewConverter("", true, nil)}) // fallback

	return f
}

// AddHandler adds a content handler to the chain
func (f *ContentFetcher) AddHandler(handler ContentHandler) {
	f.handlers = append(f.handlers, handler)
}

// FetchContent fetches url, converts it with the first matching handler and
// truncates the result to the configured token budget
func (f *ContentFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	// Find handler based on URL + response headers
	for _, handler := range f.handlers {
		if handler.CanHandle(url, resp) {
			text, err := handler.Handle(url, resp)
			if err != nil {
				return "", err
			}
			return limitContentTokens(text, f.maxTokens), nil
		}
	}

	return "", fmt.Errorf("no handler found for %s", url)
}

// limitContentTokens limits content to approximately N tokens (using 4 chars ≈ 1 token)
func limitContentTokens(content string, maxTokens int) string {
	if maxTokens <= 0 {
		return content
	}
	maxChars := maxTokens * 4
	if len(content) <= maxChars {
		return content
	}
	return truncateRunes(content, maxChars) + "..."
}
