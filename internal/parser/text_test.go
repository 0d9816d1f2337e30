package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docanchor/internal/doctree"
)

func title(n *doctree.Node) string {
	v, _ := n.Attr("title")
	return v
}

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	root, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if title(root) != "notes" {
		t.Errorf("expected title %q, got %q", "notes", title(root))
	}
	if len(root.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(root.Children))
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	for i, w := range want {
		c := root.Children[i]
		if c.Tag != "p" {
			t.Errorf("child[%d]: expected <p>, got <%s>", i, c.Tag)
		}
		if c.TextContent() != w {
			t.Errorf("child[%d]: expected %q, got %q", i, w, c.TextContent())
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	root, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title(root) != "empty" {
		t.Errorf("expected title %q, got %q", "empty", title(root))
	}
	if len(root.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(root.Children))
	}
}

func TestTextParser_SingleLine(t *testing.T) {
	p := &TextParser{}
	root, err := p.Parse(strings.NewReader("Hello world"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(root.Children))
	}
	if root.Children[0].TextContent() != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", root.Children[0].TextContent())
	}
}

func TestTextParser_BlankLines(t *testing.T) {
	// Runs of blank or whitespace-only lines should not produce empty paragraphs.
	for _, input := range []string{"Para one.\n\n\n\nPara two.", "Para one.\n   \nPara two.", "Para one.\r\n\r\nPara two."} {
		p := &TextParser{}
		root, err := p.Parse(strings.NewReader(input), "gaps.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(root.Children) != 2 {
			t.Fatalf("input %q: expected 2 children, got %d", input, len(root.Children))
		}
	}
}

func TestCSVParser_Table(t *testing.T) {
	input := "name,role\nAda,author\nBob,reviewer,extra\n"
	root, err := (&CSVParser{}).Parse(strings.NewReader(input), "people.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<doc title="people"><table><tr><th>name</th><th>role</th></tr><tr><td>Ada</td><td>author</td></tr><tr><td>Bob</td><td>reviewer</td><td>extra</td></tr></table></doc>`
	if got := root.String(); got != want {
		t.Errorf("expected %s\ngot %s", want, got)
	}
}

func TestHTMLParser_Sections(t *testing.T) {
	input := `<html><head><title>Act</title></head><body><nav>skip</nav><h1>Part 1</h1><p>Intro <b>text</b>.</p><h2>Sec</h2><ul><li>one</li></ul><h1>Part 2</h1></body></html>`
	root, err := (&HTMLParser{}).Parse(strings.NewReader(input), "act.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<doc title="Act"><section><heading>Part 1</heading><p>Intro text.</p><section><heading>Sec</heading><p>one</p></section></section><section><heading>Part 2</heading></section></doc>`
	if got := root.String(); got != want {
		t.Errorf("expected %s\ngot %s", want, got)
	}
}

func TestXMLParser_KeepsStructure(t *testing.T) {
	input := `<akn:act xmlns:akn="http://docs.oasis-open.org/legaldocml/ns/akn/3.0"><akn:section eId="sec_1">x</akn:section></akn:act>`
	root, err := (&XMLParser{}).Parse(strings.NewReader(input), "act.akn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Parent != nil {
		t.Error("expected detached root")
	}
	if got := root.String(); got != input {
		t.Errorf("expected %s\ngot %s", input, got)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"a.xml", false},
		{"a.AKN", false},
		{"a.md", false},
		{"a.docx", false},
		{"a.pdf", false},
		{"a.exe", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tt.filename, tt.wantErr, err)
		}
		if IsSupportedExtension(tt.filename) == tt.wantErr {
			t.Errorf("%s: IsSupportedExtension disagrees with ForFile", tt.filename)
		}
	}
}
