package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RuleInline asks for inline content: text and phrase-level elements with no
// block wrapper.
const RuleInline = "inline"

// ErrRuleMismatch is returned when a fragment does not have the shape its
// rule asks for.
var ErrRuleMismatch = errors.New("fragment does not match rule")

// FragmentParser turns edited text into replacement nodes for a subtree.
// rule names the tag every top-level element must carry ("" accepts any
// block, RuleInline accepts inline content). An empty result means the
// edited content was removed.
type FragmentParser interface {
	ParseFragment(text, rule string) ([]*doctree.Node, error)
}

// Formats lists the accepted fragment formats.
var Formats = []string{"xml", "html", "markdown", "text"}

// ForFormat returns the fragment parser for a format name.
func ForFormat(format string) (FragmentParser, error) {
	switch strings.ToLower(format) {
	case "xml", "akn":
		return XMLFragmentParser{}, nil
	case "html", "htm":
		return HTMLFragmentParser{}, nil
	case "markdown", "md":
		return MarkdownFragmentParser{}, nil
	case "text", "txt", "":
		return TextFragmentParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported fragment format: %s", format)
	}
}

// XMLFragmentParser parses well-formed XML siblings.
type XMLFragmentParser struct{}

func (XMLFragmentParser) ParseFragment(text, rule string) ([]*doctree.Node, error) {
	nodes, err := doctree.ParseXMLFragment(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return checkRule(nodes, rule)
}

// HTMLFragmentParser parses HTML in a <body> context. Tag names come back
// lower-cased.
type HTMLFragmentParser struct{}

func (HTMLFragmentParser) ParseFragment(text, rule string) ([]*doctree.Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	parsed, err := html.ParseFragment(strings.NewReader(text), body)
	if err != nil {
		return nil, fmt.Errorf("parse html fragment: %w", err)
	}
	var nodes []*doctree.Node
	for _, n := range parsed {
		if dn := fromHTML(n); dn != nil {
			nodes = append(nodes, dn)
		}
	}
	return checkRule(nodes, rule)
}

// MarkdownFragmentParser parses Markdown. Headings open sections; other
// blocks take the rule's tag (default <p>).
type MarkdownFragmentParser struct{}

func (MarkdownFragmentParser) ParseFragment(text, rule string) ([]*doctree.Node, error) {
	o := newOutline("")
	if rule == RuleInline {
		markdownInto(o, []byte(text), "p")
		return detachChildren(flattenBlocks(o.root)), nil
	}
	tag := rule
	if tag == "" || tag == "section" {
		tag = "p"
	}
	markdownInto(o, []byte(text), tag)
	return checkRule(detachChildren(o.root), rule)
}

// TextFragmentParser splits plain text into paragraphs on blank lines.
type TextFragmentParser struct{}

func (TextFragmentParser) ParseFragment(text, rule string) ([]*doctree.Node, error) {
	if rule == RuleInline {
		if text == "" {
			return nil, nil
		}
		return []*doctree.Node{doctree.NewText(text)}, nil
	}
	tag := rule
	if tag == "" {
		tag = "p"
	}
	var nodes []*doctree.Node
	for _, para := range splitParagraphs(text) {
		nodes = append(nodes, textElement(tag, para))
	}
	return nodes, nil
}

// checkRule drops whitespace between top-level elements and rejects anything
// that does not match rule.
func checkRule(nodes []*doctree.Node, rule string) ([]*doctree.Node, error) {
	if rule == RuleInline {
		return nodes, nil
	}
	out := make([]*doctree.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == doctree.TextNode {
			if strings.TrimSpace(n.Text) == "" {
				continue
			}
			if rule != "" {
				return nil, fmt.Errorf("text outside <%s>: %w", rule, ErrRuleMismatch)
			}
			out = append(out, n)
			continue
		}
		if rule != "" && localName(n.Tag) != rule {
			return nil, fmt.Errorf("expected <%s>, got <%s>: %w", rule, n.Tag, ErrRuleMismatch)
		}
		out = append(out, n)
	}
	return out, nil
}

// flattenBlocks replaces each block child of root by its inline content,
// separating consecutive blocks with a space.
func flattenBlocks(root *doctree.Node) *doctree.Node {
	flat := doctree.NewElement(root.Tag)
	var walk func(n *doctree.Node)
	walk = func(n *doctree.Node) {
		for i, c := range append([]*doctree.Node(nil), n.Children...) {
			if c.Type == doctree.ElementNode && isBlock(c.Tag) {
				walk(c)
				continue
			}
			if i == 0 && len(flat.Children) > 0 {
				appendText(flat, " ")
			}
			if c.Type == doctree.TextNode {
				appendText(flat, c.Text)
				continue
			}
			flat.AppendChild(c)
		}
	}
	walk(root)
	return flat
}

func isBlock(tag string) bool {
	switch tag {
	case "section", "heading", "p", "pre", "list", "item", "blockquote":
		return true
	}
	return false
}

func detachChildren(n *doctree.Node) []*doctree.Node {
	out := append([]*doctree.Node(nil), n.Children...)
	for _, c := range out {
		c.Detach()
	}
	return out
}

func localName(tag string) string {
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}
