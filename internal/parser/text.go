package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// TextParser handles plain text files.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	o := newOutline(strings.TrimSuffix(filename, ".txt"))
	// Each paragraph becomes a <p>.
	for _, para := range splitParagraphs(strings.Join(lines, "\n")) {
		o.para(para)
	}
	return o.root, nil
}
