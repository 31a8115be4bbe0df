// Package docparse extracts text and structure from uploaded requirement
// documents. Plain text, Markdown (with YAML front matter) and XML are parsed
// natively; binary office formats are rejected with ErrUnsupportedFormat.
package docparse

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file types the parser cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// supportedExtensions in preference order. PDF and Word are recognized but
// not parsed; uploads in those formats get a targeted error.
var supportedExtensions = []string{".txt", ".md", ".xml"}

// Document is the parsed form of an uploaded file.
type Document struct {
	Content  string         `json:"content"`
	Format   string         `json:"format"`
	Metadata map[string]any `json:"metadata"`
}

// Parse reads and parses a document, dispatching on the filename extension.
func Parse(filename string, r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return ParseBytes(filename, data)
}

// ParseBytes parses an in-memory document.
func ParseBytes(filename string, data []byte) (*Document, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".txt":
		return parseText(data), nil
	case ".md":
		return parseMarkdown(data)
	case ".xml":
		return parseXML(data)
	case ".pdf", ".docx", ".doc":
		return nil, fmt.Errorf("%w: %s (binary office formats are not parsed)", ErrUnsupportedFormat, ext)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// IsSupported reports whether the filename has a parseable extension.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range supportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// SupportedFormats returns the parseable extensions.
func SupportedFormats() []string {
	out := make([]string, len(supportedExtensions))
	copy(out, supportedExtensions)
	return out
}

func parseText(data []byte) *Document {
	content := string(data)
	return &Document{
		Content: content,
		Format:  "text",
		Metadata: map[string]any{
			"lines":      len(strings.Split(content, "\n")),
			"characters": len(content),
			"words":      len(strings.Fields(content)),
		},
	}
}
