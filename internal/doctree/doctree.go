package doctree

import (
	"strings"
	"unicode/utf8"
)

// NodeType distinguishes the variants of Node.
type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
)

// Attr is a single element attribute. Attribute order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is an element, a text leaf, or the hidden document node owning the root.
// A parent owns its children; Parent is a back-reference only.
type Node struct {
	Type     NodeType
	Tag      string // Element tag name, including any prefix ("akn:section")
	Text     string // Text content (TextNode only)
	Attrs    []Attr
	Parent   *Node
	Children []*Node
}

// NewElement creates a detached element.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Tag: tag, Attrs: attrs}
}

// NewText creates a detached text node.
func NewText(text string) *Node {
	return &Node{Type: TextNode, Text: text}
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// setAttr sets an attribute in place and returns the previous value.
func (n *Node) setAttr(name, value string) (string, bool) {
	for i, a := range n.Attrs {
		if a.Name == name {
			old := a.Value
			n.Attrs[i].Value = value
			return old, true
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
	return "", false
}

func (n *Node) removeAttr(name string) (string, bool) {
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return a.Value, true
		}
	}
	return "", false
}

// HasClass reports whether the space-separated class attribute contains class.
func (n *Node) HasClass(class string) bool {
	if n.Type != ElementNode {
		return false
	}
	v, ok := n.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

// Index returns the position of n among its parent's children, or -1.
func (n *Node) Index() int {
	if n.Parent == nil {
		return -1
	}
	for i, c := range n.Parent.Children {
		if c == n {
			return i
		}
	}
	return -1
}

// NextSibling returns the sibling after n, or nil.
func (n *Node) NextSibling() *Node {
	i := n.Index()
	if i < 0 || i+1 >= len(n.Parent.Children) {
		return nil
	}
	return n.Parent.Children[i+1]
}

// PrevSibling returns the sibling before n, or nil.
func (n *Node) PrevSibling() *Node {
	i := n.Index()
	if i <= 0 {
		return nil
	}
	return n.Parent.Children[i-1]
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.Parent {
		if p == n {
			return true
		}
	}
	return false
}

// Top returns the topmost ancestor of n (n itself when detached).
func (n *Node) Top() *Node {
	p := n
	for p.Parent != nil {
		p = p.Parent
	}
	return p
}

// AppendChild detaches child from any previous parent and appends it to n.
// It does not record a mutation; use Tree methods for recorded edits.
func (n *Node) AppendChild(child *Node) {
	child.Detach()
	child.Parent = n
	n.Children = append(n.Children, child)
}

// InsertBefore detaches child and inserts it before ref. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) {
	if ref == child {
		ref = child.NextSibling()
	}
	if ref == nil {
		n.AppendChild(child)
		return
	}
	child.Detach()
	i := ref.Index()
	if i < 0 || ref.Parent != n {
		n.AppendChild(child)
		return
	}
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
	child.Parent = n
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	i := n.Index()
	if i < 0 {
		n.Parent = nil
		return
	}
	p := n.Parent
	p.Children = append(p.Children[:i], p.Children[i+1:]...)
	n.Parent = nil
}

// Walk visits n and its descendants in document order. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// TextContent concatenates all descendant text in document order.
func (n *Node) TextContent() string {
	if n.Type == TextNode {
		return n.Text
	}
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Type == TextNode {
			sb.WriteString(c.Text)
		}
		return true
	})
	return sb.String()
}

// Len returns the length of a text node in runes.
func (n *Node) Len() int {
	return utf8.RuneCountInString(n.Text)
}

// Clone returns a deep, detached copy of n.
func (n *Node) Clone() *Node {
	c := &Node{Type: n.Type, Tag: n.Tag, Text: n.Text}
	if len(n.Attrs) > 0 {
		c.Attrs = append([]Attr(nil), n.Attrs...)
	}
	for _, ch := range n.Children {
		cc := ch.Clone()
		cc.Parent = c
		c.Children = append(c.Children, cc)
	}
	return c
}

// Predicate selects nodes, e.g. foreign overlay nodes.
type Predicate func(*Node) bool

// HasClass returns a predicate matching elements carrying the given class token.
func HasClass(class string) Predicate {
	return func(n *Node) bool { return n.HasClass(class) }
}

// DefaultForeignClass marks editor overlay elements that are not document content.
const DefaultForeignClass = "ig"

// DefaultForeign matches elements carrying DefaultForeignClass.
var DefaultForeign = HasClass(DefaultForeignClass)
