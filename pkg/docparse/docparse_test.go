package docparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseText(t *testing.T) {
	doc, err := ParseBytes("requirements.txt", []byte("line one\nline two\n"))
	require.NoError(t, err)
	require.Equal(t, "text", doc.Format)
	require.Equal(t, "line one\nline two\n", doc.Content)
	require.Equal(t, 4, doc.Metadata["words"])
	require.Equal(t, 3, doc.Metadata["lines"])
}

func TestParseMarkdown_FrontMatter(t *testing.T) {
	src := strings.Join([]string{
		"---",
		"title: Device Requirements",
		"version: 2",
		"---",
		"",
		"# Overview",
		"",
		"## Design Controls",
		"Body text.",
	}, "\n")

	doc, err := ParseBytes("reqs.md", []byte(src))
	require.NoError(t, err)
	require.Equal(t, "markdown", doc.Format)
	require.Equal(t, "Device Requirements", doc.Metadata["title"])
	require.Equal(t, 2, doc.Metadata["version"])
	require.NotContains(t, doc.Content, "---")

	headers := doc.Metadata["headers"].([]Header)
	require.Len(t, headers, 2)
	require.Equal(t, Header{Level: 1, Text: "Overview"}, headers[0])
	require.Equal(t, Header{Level: 2, Text: "Design Controls"}, headers[1])
}

func TestParseMarkdown_NoFrontMatter(t *testing.T) {
	doc, err := ParseBytes("plain.md", []byte("# Title\n\ntext"))
	require.NoError(t, err)
	require.Equal(t, "# Title\n\ntext", doc.Content)
}

func TestParseMarkdown_BadFrontMatter(t *testing.T) {
	_, err := ParseBytes("bad.md", []byte("---\n\t: [\n---\nbody"))
	require.Error(t, err)
}

func TestParseXML(t *testing.T) {
	src := `<requirements project="infusion-pump">
  <requirement id="REQ-001">
    <title>Design control</title>
    <description>Apply design control procedures.</description>
  </requirement>
</requirements>`

	doc, err := ParseBytes("reqs.xml", []byte(src))
	require.NoError(t, err)
	require.Equal(t, "xml", doc.Format)
	require.Equal(t, "requirements", doc.Metadata["root_tag"])
	require.Equal(t, map[string]string{"project": "infusion-pump"}, doc.Metadata["attributes"])
	require.Equal(t, 4, doc.Metadata["elements_count"])
	require.Contains(t, doc.Content, "title: Design control")
	require.Contains(t, doc.Content, "description: Apply design control procedures.")
}

func TestParseXML_Invalid(t *testing.T) {
	_, err := ParseBytes("broken.xml", []byte("<a><b></a>"))
	require.Error(t, err)
}

func TestParse_UnsupportedFormat(t *testing.T) {
	for _, name := range []string{"spec.pdf", "spec.docx", "spec.doc", "spec.png"} {
		_, err := ParseBytes(name, []byte("x"))
		require.ErrorIs(t, err, ErrUnsupportedFormat, name)
	}
}

func TestIsSupported(t *testing.T) {
	require.True(t, IsSupported("a.txt"))
	require.True(t, IsSupported("a.MD"))
	require.True(t, IsSupported("a.xml"))
	require.False(t, IsSupported("a.pdf"))
	require.False(t, IsSupported("a"))
}

func TestExtractSections_ReqIDs(t *testing.T) {
	content := strings.Join([]string{
		"REQ-001 The system shall enforce access control for all sessions.",
		"REQ-002 The system shall log every access to patient data.",
	}, "\n")

	sections := ExtractSections(content)
	require.Len(t, sections, 2)
	require.Equal(t, "REQ-001", sections[0].ID)
	require.Equal(t, "requirement", sections[0].Type)
	require.Contains(t, sections[0].Text, "enforce access control")
	require.NotContains(t, sections[0].Text, "REQ-002")
	require.Equal(t, "REQ-002", sections[1].ID)
}

func TestExtractSections_LabelBoundary(t *testing.T) {
	content := "REQ-001 The system shall encrypt data at rest.\nNOTES:\nInternal only."
	sections := ExtractSections(content)
	require.NotEmpty(t, sections)
	require.NotContains(t, sections[0].Text, "Internal only")
}

func TestExtractSections_ParagraphFallback(t *testing.T) {
	long := strings.Repeat("The device shall record audit events. ", 3)
	content := "short para\n\n" + long + "\n\n" + long

	sections := ExtractSections(content)
	require.Len(t, sections, 2)
	require.Equal(t, "PARA-002", sections[0].ID)
	require.Equal(t, "paragraph", sections[0].Type)
}

func TestExtractSections_TruncatesLongText(t *testing.T) {
	content := "REQ-001 " + strings.Repeat("a", 2000)
	sections := ExtractSections(content)
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Text, 1000)
}

func TestExtractSections_Empty(t *testing.T) {
	require.Empty(t, ExtractSections(""))
}
