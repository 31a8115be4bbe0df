package docparse

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var headerRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// Header is one Markdown heading, recorded for document structure.
type Header struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// parseMarkdown strips YAML front matter into metadata and records the
// heading outline. The body is returned as-is; callers run their own
// section extraction over it.
func parseMarkdown(data []byte) (*Document, error) {
	content := string(data)
	metadata := map[string]any{}

	if body, front, ok := splitFrontMatter(content); ok {
		var fm map[string]any
		if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
			return nil, fmt.Errorf("parse front matter: %w", err)
		}
		for k, v := range fm {
			metadata[k] = v
		}
		content = body
	}

	var headers []Header
	for _, m := range headerRe.FindAllStringSubmatch(content, -1) {
		headers = append(headers, Header{Level: len(m[1]), Text: m[2]})
	}
	metadata["headers"] = headers

	return &Document{
		Content:  content,
		Format:   "markdown",
		Metadata: metadata,
	}, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// document body. Returns ok=false when no front matter is present.
func splitFrontMatter(content string) (body, front string, ok bool) {
	if !strings.HasPrefix(content, "---") {
		return "", "", false
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", "", false
	}
	front = strings.TrimSpace(rest[:end])
	body = rest[end+4:]
	if i := strings.IndexByte(body, '\n'); i >= 0 && strings.TrimSpace(body[:i]) == "" {
		body = body[i+1:]
	}
	return strings.TrimSpace(body), front, true
}
