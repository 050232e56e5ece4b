package main

import (
	"io"
	"net/http"
	"strings"
	"testing"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

func newResponse(contentType, body string) *http.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestTextHandler_CanHandle(t *testing.T) {
	handler := &TextHandler{}

	tests := []struct {
		name        string
		url         string
		contentType string
		expected    bool
	}{
		{name: "plain text", url: "https://example.com/recipe", contentType: "text/plain; charset=utf-8", expected: true},
		{name: "markdown content type", url: "https://example.com/recipe", contentType: "text/markdown", expected: true},
		{name: "md extension", url: "https://example.com/README.MD", contentType: "application/octet-stream", expected: true},
		{name: "txt extension", url: "https://example.com/notes.txt", contentType: "", expected: true},
		{name: "html page", url: "https://example.com/recipe", contentType: "text/html", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := handler.CanHandle(tt.url, newResponse(tt.contentType, ""))
			if result != tt.expected {
				t.Errorf("CanHandle() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestTextHandler_Handle(t *testing.T) {
	handler := &TextHandler{}

	result, err := handler.Handle("https://example.com/notes.txt", newResponse("text/plain", "Chickpeas, 200g"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result != "Chickpeas, 200g" {
		t.Errorf("Handle() = %q, want body unchanged", result)
	}
}

func TestHTMLHandler_Handle(t *testing.T) {
	handler := &HTMLHandler{converter: md.NewConverter("", true, nil)}

	if !handler.CanHandle("https://example.com", newResponse("application/json", "")) {
		t.Error("CanHandle() = false, HTML handler is the fallback and must accept everything")
	}

	html := `<html><body><h2>Tofu scramble</h2><p>Crumble the <strong>tofu</strong>.</p></body></html>`
	result, err := handler.Handle("https://example.com", newResponse("text/html", html))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	for _, want := range []string{"## Tofu scramble", "**tofu**"} {
		if !strings.Contains(result, want) {
			t.Errorf("Handle() = %q, want it to contain %q", result, want)
		}
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{StatusCode: 502, URL: "https://api.example.com/tasks/1"}
	if got, want := err.Error(), "HTTP 502 for https://api.example.com/tasks/1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
