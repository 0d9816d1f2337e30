package parser

import (
	"io"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// XMLParser handles XML and Akoma Ntoso files. The element structure is kept
// as-is, including existing ids.
type XMLParser struct{}

func (p *XMLParser) Parse(r io.Reader, filename string) (*doctree.Node, error) {
	tree, err := doctree.ParseXML(r, "")
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	root.Detach()
	return root, nil
}
