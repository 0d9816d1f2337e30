package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docanchor/internal/doctree"
)

func sections(n *doctree.Node) []*doctree.Node {
	var out []*doctree.Node
	for _, c := range n.Children {
		if c.Tag == "section" {
			out = append(out, c)
		}
	}
	return out
}

func headingOf(sec *doctree.Node) string {
	if len(sec.Children) == 0 || sec.Children[0].Tag != "heading" {
		return ""
	}
	return sec.Children[0].TextContent()
}

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Title

Intro text.

## Section A

Section A content.

### Subsection A1

Subsection A1 content.

## Section B

Section B content.
`
	p := &MarkdownParser{}
	root, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if title(root) != "doc" {
		t.Errorf("expected title %q, got %q", "doc", title(root))
	}

	// Top-level: one h1 ("Title")
	top := sections(root)
	if len(top) != 1 {
		t.Fatalf("expected 1 top-level section (h1), got %d", len(top))
	}

	h1 := top[0]
	if headingOf(h1) != "Title" {
		t.Errorf("expected h1 title %q, got %q", "Title", headingOf(h1))
	}
	if h1.Children[1].Tag != "p" || h1.Children[1].TextContent() != "Intro text." {
		t.Errorf("expected intro paragraph after heading, got %s", h1.Children[1])
	}

	// h1 has two h2 children: "Section A" and "Section B"
	subs := sections(h1)
	if len(subs) != 2 {
		t.Fatalf("expected 2 h2 sections, got %d", len(subs))
	}

	secA := subs[0]
	if headingOf(secA) != "Section A" {
		t.Errorf("expected %q, got %q", "Section A", headingOf(secA))
	}
	if !strings.Contains(secA.TextContent(), "Section A content.") {
		t.Errorf("expected section A text to contain %q, got %q", "Section A content.", secA.TextContent())
	}

	// Section A has one h3 child
	if got := sections(secA); len(got) != 1 || headingOf(got[0]) != "Subsection A1" {
		t.Fatalf("expected Subsection A1 under Section A, got %d sections", len(got))
	}

	if headingOf(subs[1]) != "Section B" {
		t.Errorf("expected %q, got %q", "Section B", headingOf(subs[1]))
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	root, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No headings: paragraphs sit directly under the root.
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 paragraphs for headingless markdown, got %d", len(root.Children))
	}
	if got := root.Children[0].TextContent(); got != "Just some plain text." {
		t.Errorf("expected first paragraph, got %q", got)
	}
	if got := root.Children[1].TextContent(); got != "Another paragraph here." {
		t.Errorf("expected second paragraph, got %q", got)
	}
}

func TestMarkdownParser_MixedContentWithCodeBlocks(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	root, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	top := sections(root)
	if len(top) != 1 {
		t.Fatalf("expected 1 top-level section, got %d", len(top))
	}
	if headingOf(top[0]) != "API Reference" {
		t.Errorf("expected title %q, got %q", "API Reference", headingOf(top[0]))
	}

	subs := sections(top[0])
	if len(subs) != 1 {
		t.Fatalf("expected 1 h2 section, got %d", len(subs))
	}
	endpoints := subs[0]

	var pre *doctree.Node
	for _, c := range endpoints.Children {
		if c.Tag == "pre" {
			pre = c
		}
	}
	if pre == nil || pre.TextContent() != "GET /api/users\nPOST /api/users" {
		t.Errorf("expected code block in <pre>, got %s", endpoints)
	}
	if !strings.Contains(endpoints.TextContent(), "More text after code.") {
		t.Errorf("expected post-code text, got %q", endpoints.TextContent())
	}
}

func TestMarkdownParser_InlineMarkup(t *testing.T) {
	input := "Some *light* and **strong** `code` with a [link](http://x.test).\n"
	root, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "inline.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<p>Some <i>light</i> and <b>strong</b> <code>code</code> with a <a href="http://x.test">link</a>.</p>`
	if got := root.Children[0].String(); got != want {
		t.Errorf("expected %s\ngot %s", want, got)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	root, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(root.Children))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		root, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if title(root) != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, title(root))
		}
	}
}
