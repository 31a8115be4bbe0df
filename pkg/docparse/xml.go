package docparse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	CharData string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

// parseXML flattens an XML document into an indented tag: text outline and
// records root element metadata.
func parseXML(data []byte) (*Document, error) {
	var root xmlNode
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	var b strings.Builder
	renderXML(&b, root, 0)

	attrs := make(map[string]string, len(root.Attrs))
	for _, a := range root.Attrs {
		attrs[a.Name.Local] = a.Value
	}

	return &Document{
		Content: strings.TrimRight(b.String(), "\n"),
		Format:  "xml",
		Metadata: map[string]any{
			"root_tag":       root.XMLName.Local,
			"namespace":      root.XMLName.Space,
			"attributes":     attrs,
			"elements_count": countXML(root),
		},
	}, nil
}

func renderXML(b *strings.Builder, n xmlNode, level int) {
	indent := strings.Repeat("  ", level)
	if text := strings.TrimSpace(n.CharData); text != "" {
		fmt.Fprintf(b, "%s%s: %s\n", indent, n.XMLName.Local, text)
	} else {
		fmt.Fprintf(b, "%s%s:\n", indent, n.XMLName.Local)
	}
	for _, child := range n.Children {
		renderXML(b, child, level+1)
	}
}

func countXML(n xmlNode) int {
	count := 1
	for _, child := range n.Children {
		count += countXML(child)
	}
	return count
}
