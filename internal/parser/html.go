package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Headings open sections; block text becomes
// paragraphs.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm")
	// Extract title from <title> tag if present.
	if t := findTitle(doc); t != "" {
		title = t
	}
	o := newOutline(title)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				o.heading(level, textContent(n))
				return // Don't recurse into heading children (already extracted text).
			}

			// Skip non-content elements.
			switch n.Data {
			case "script", "style", "nav", "footer", "header":
				return
			case "p", "li", "td", "blockquote":
				o.para(textContent(n))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return o.root, nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// fromHTML copies an html node into a detached doctree node, keeping
// element structure and attributes. Comments and doctypes yield nil.
func fromHTML(n *html.Node) *doctree.Node {
	switch n.Type {
	case html.TextNode:
		return doctree.NewText(n.Data)
	case html.ElementNode:
		tag := n.Data
		if n.Namespace != "" && n.Namespace != "html" {
			tag = n.Namespace + ":" + tag
		}
		el := doctree.NewElement(tag)
		for _, a := range n.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + name
			}
			el.Attrs = append(el.Attrs, doctree.Attr{Name: name, Value: a.Val})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if cn := fromHTML(c); cn != nil {
				el.AppendChild(cn)
			}
		}
		return el
	}
	return nil
}
