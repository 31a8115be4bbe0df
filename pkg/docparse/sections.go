package docparse

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section is one candidate requirement block found in document text.
type Section struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

const (
	maxSectionText   = 1000
	maxFallbackParas = 20
	minParaLength    = 50
)

// sectionAnchors recognize requirement identifiers at the start of a line.
// Families are scanned independently; a document may yield sections from
// more than one family.
var sectionAnchors = []*regexp.Regexp{
	regexp.MustCompile(`(?mi)^(\d+\.?\d*\.?\d*)\s+`),
	regexp.MustCompile(`(?mi)^(REQ-?\d+)\s+`),
	regexp.MustCompile(`(?m)^([A-Z]{2,}-\d+)\s+`),
	regexp.MustCompile(`(?mi)^(requirement\s+\d+)\s*:?\s*`),
}

// labelLineRe matches an all-caps label line that terminates a section.
var labelLineRe = regexp.MustCompile(`(?m)^[A-Z][A-Z\s]+:`)

// ExtractSections finds requirement-shaped blocks in document text: lines
// opening with a requirement identifier, with the section body running to
// the next identifier or an all-caps label line. Documents without any
// identifiable structure fall back to substantial paragraphs.
func ExtractSections(content string) []Section {
	var sections []Section

	// Anchor families overlap (REQ-001 is both a REQ id and a generic
	// prefix id); the first family to claim an id wins.
	seen := make(map[string]bool)
	for _, anchor := range sectionAnchors {
		locs := anchor.FindAllStringSubmatchIndex(content, -1)
		for i, loc := range locs {
			id := strings.TrimSpace(content[loc[2]:loc[3]])
			if seen[id] {
				continue
			}
			seen[id] = true
			start := loc[1]
			end := len(content)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			text := content[start:end]
			if label := labelLineRe.FindStringIndex(text); label != nil {
				text = text[:label[0]]
			}
			text = strings.TrimSpace(text)
			// Cut on a rune boundary so multi-byte text stays valid UTF-8.
			if utf8.RuneCountInString(text) > maxSectionText {
				text = string([]rune(text)[:maxSectionText])
			}
			sections = append(sections, Section{
				ID:   id,
				Text: text,
				Type: "requirement",
			})
		}
	}

	if len(sections) > 0 {
		return sections
	}

	paras := strings.Split(content, "\n\n")
	n := 0
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n++
		if n > maxFallbackParas {
			break
		}
		if len(p) <= minParaLength {
			continue
		}
		sections = append(sections, Section{
			ID:   fmt.Sprintf("PARA-%03d", n),
			Text: p,
			Type: "paragraph",
		})
	}
	return sections
}
