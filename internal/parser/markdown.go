package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	o := newOutline(strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"))
	markdownInto(o, src, "p")
	return o.root, nil
}

// markdownInto walks the top-level blocks of src, opening a section for
// every heading and appending other blocks to the current one.
func markdownInto(o *outline, src []byte, blockTag string) {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			o.heading(h.Level, extractText(h, src))
			continue
		}
		if el := markdownBlock(n, src, blockTag); el != nil {
			o.append(el)
		}
	}
}

func markdownBlock(n ast.Node, src []byte, tag string) *doctree.Node {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		el := doctree.NewElement(tag)
		markdownInline(el, node, src)
		if len(el.Children) == 0 {
			return nil
		}
		return el
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var buf bytes.Buffer
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return textElement("pre", strings.TrimRight(buf.String(), "\n"))
	case *ast.List:
		list := doctree.NewElement("list")
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			if t := extractText(item, src); t != "" {
				list.AppendChild(textElement("item", t))
			}
		}
		return list
	case *ast.Blockquote:
		quote := doctree.NewElement("blockquote")
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if el := markdownBlock(c, src, "p"); el != nil {
				quote.AppendChild(el)
			}
		}
		return quote
	case *ast.ThematicBreak, *ast.HTMLBlock:
		return nil
	}
	if t := extractText(n, src); t != "" {
		return textElement(tag, t)
	}
	return nil
}

// markdownInline converts inline markup: emphasis becomes <i>/<b>, code spans
// <code> and links <a href>.
func markdownInline(parent *doctree.Node, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			s := string(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				s += "\n"
			}
			appendText(parent, s)
		case *ast.String:
			appendText(parent, string(node.Value))
		case *ast.CodeSpan:
			el := doctree.NewElement("code")
			markdownInline(el, node, src)
			parent.AppendChild(el)
		case *ast.Emphasis:
			tag := "i"
			if node.Level >= 2 {
				tag = "b"
			}
			el := doctree.NewElement(tag)
			markdownInline(el, node, src)
			parent.AppendChild(el)
		case *ast.Link:
			el := doctree.NewElement("a", doctree.Attr{Name: "href", Value: string(node.Destination)})
			markdownInline(el, node, src)
			parent.AppendChild(el)
		case *ast.AutoLink:
			url := string(node.URL(src))
			el := doctree.NewElement("a", doctree.Attr{Name: "href", Value: url})
			el.AppendChild(doctree.NewText(url))
			parent.AppendChild(el)
		case *ast.RawHTML:
			// Dropped; raw markup has no place in the tree.
		default:
			markdownInline(parent, node, src)
		}
	}
	trimTrailingNewline(parent)
}

func appendText(parent *doctree.Node, s string) {
	if s == "" {
		return
	}
	if k := len(parent.Children); k > 0 && parent.Children[k-1].Type == doctree.TextNode {
		parent.Children[k-1].Text += s
		return
	}
	parent.AppendChild(doctree.NewText(s))
}

func trimTrailingNewline(parent *doctree.Node) {
	k := len(parent.Children)
	if k == 0 || parent.Children[k-1].Type != doctree.TextNode {
		return
	}
	last := parent.Children[k-1]
	last.Text = strings.TrimRight(last.Text, "\n")
	if last.Text == "" {
		last.Detach()
	}
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	writeText(&buf, n, src)
	return strings.TrimSpace(buf.String())
}

func writeText(buf *bytes.Buffer, n ast.Node, src []byte) {
	switch t := n.(type) {
	case *ast.Text:
		buf.Write(t.Segment.Value(src))
		if t.HardLineBreak() || t.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return
	case *ast.String:
		buf.Write(t.Value)
		return
	}
	// Leaf blocks such as code blocks only carry raw lines.
	if n.FirstChild() == nil && n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		writeText(buf, c, src)
	}
}
