package doctree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseXML reads an XML document into a Tree. Comments, processing
// instructions and directives are dropped; prefixes are kept verbatim.
func ParseXML(r io.Reader, idAttr string) (*Tree, error) {
	nodes, err := ParseXMLFragment(r)
	if err != nil {
		return nil, err
	}
	var root *Node
	for _, n := range nodes {
		if n.Type == TextNode {
			if strings.TrimSpace(n.Text) != "" {
				return nil, errors.New("parse xml: text outside root element")
			}
			continue
		}
		if root != nil {
			return nil, errors.New("parse xml: multiple root elements")
		}
		root = n
	}
	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	root.Detach()
	return New(root, idAttr), nil
}

// ParseXMLFragment reads a sequence of sibling nodes. The returned nodes are
// detached from each other and from any tree.
func ParseXMLFragment(r io.Reader) ([]*Node, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true

	holder := &Node{Type: ElementNode}
	stack := []*Node{holder}
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}
		top := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			el := NewElement(qualified(t.Name))
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			top.AppendChild(el)
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 1 || top.Tag != qualified(t.Name) {
				return nil, fmt.Errorf("parse xml: unexpected end element </%s>", qualified(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			appendText(top, string(t))
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("parse xml: unclosed element <%s>", stack[len(stack)-1].Tag)
	}

	out := append([]*Node(nil), holder.Children...)
	for _, n := range out {
		n.Parent = nil
	}
	return out, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// appendText merges adjacent character data into one text node.
func appendText(parent *Node, s string) {
	if s == "" {
		return
	}
	if k := len(parent.Children); k > 0 && parent.Children[k-1].Type == TextNode {
		parent.Children[k-1].Text += s
		return
	}
	parent.AppendChild(NewText(s))
}

// WriteXML serializes n and its descendants.
func WriteXML(w io.Writer, n *Node) error {
	var buf bytes.Buffer
	writeNode(&buf, n)
	_, err := w.Write(buf.Bytes())
	return err
}

// String serializes n to XML.
func (n *Node) String() string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.String()
}

// XML serializes the whole tree.
func (t *Tree) XML() string {
	return t.doc.String()
}

// Text content keeps literal newlines and tabs; attribute values go through
// xml.EscapeText so they survive attribute-value normalization.
var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")

func writeNode(buf *bytes.Buffer, n *Node) {
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			writeNode(buf, c)
		}
	case TextNode:
		textEscaper.WriteString(buf, n.Text)
	case ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.Tag)
		for _, a := range n.Attrs {
			buf.WriteByte(' ')
			buf.WriteString(a.Name)
			buf.WriteString(`="`)
			xml.EscapeText(buf, []byte(a.Value))
			buf.WriteByte('"')
		}
		if len(n.Children) == 0 {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for _, c := range n.Children {
			writeNode(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Tag)
		buf.WriteByte('>')
	}
}
