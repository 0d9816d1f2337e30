package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// Parser converts raw document bytes into a detached root element. Non-XML
// formats produce a <doc> of nested <section>/<heading>/<p> elements.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Node, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".xml":      true,
	".akn":      true,
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xml", ".akn":
		return &XMLParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// outline builds nested sections from a flat run of headings and paragraphs.
type outline struct {
	root  *doctree.Node
	stack []outlineEntry
}

type outlineEntry struct {
	node  *doctree.Node
	level int
}

// Root level is 0; all headings nest under it.
func newOutline(title string) *outline {
	root := doctree.NewElement("doc")
	if title != "" {
		root.Attrs = append(root.Attrs, doctree.Attr{Name: "title", Value: title})
	}
	return &outline{root: root, stack: []outlineEntry{{node: root, level: 0}}}
}

func (o *outline) top() *doctree.Node { return o.stack[len(o.stack)-1].node }

func (o *outline) heading(level int, title string) {
	sec := doctree.NewElement("section")
	sec.AppendChild(textElement("heading", title))

	// Pop until we find a parent with a lower level.
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	o.top().AppendChild(sec)
	o.stack = append(o.stack, outlineEntry{node: sec, level: level})
}

func (o *outline) para(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.top().AppendChild(textElement("p", text))
}

func (o *outline) append(n *doctree.Node) { o.top().AppendChild(n) }

func textElement(tag, text string) *doctree.Node {
	el := doctree.NewElement(tag)
	if text != "" {
		el.AppendChild(doctree.NewText(text))
	}
	return el
}

// splitParagraphs splits on blank (or whitespace-only) lines.
func splitParagraphs(text string) []string {
	var paragraphs []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}
	return paragraphs
}
