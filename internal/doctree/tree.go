package doctree

import "strings"

// MutationKind is the kind of a recorded edit.
type MutationKind string

const (
	KindChildList  MutationKind = "childList"
	KindAttributes MutationKind = "attributes"
	KindText       MutationKind = "text"
)

// MutationRecord describes one edit applied to a Tree.
type MutationRecord struct {
	Kind         MutationKind
	Target       *Node
	AddedNodes   []*Node
	RemovedNodes []*Node

	// Attribute edits only.
	AttributeName string
	// Previous attribute value or previous text content.
	OldValue string

	// Tree the record was produced by. Nil for hand-built records.
	Tree *Tree
}

// DefaultIDAttribute is the attribute holding a node's locally unique id.
const DefaultIDAttribute = "eId"

// Tree is the authoritative tree for one document. The root element is the
// single child of a hidden document node, so swapping the root is an ordinary
// child-list edit.
//
// Edits made through Tree methods are recorded and can be drained with
// TakeRecords. Edits made directly on Node are not recorded.
type Tree struct {
	doc     *Node
	idAttr  string
	pending []MutationRecord
}

// New creates a tree owning root. An empty idAttr selects DefaultIDAttribute.
func New(root *Node, idAttr string) *Tree {
	if idAttr == "" {
		idAttr = DefaultIDAttribute
	}
	t := &Tree{doc: &Node{Type: DocumentNode}, idAttr: idAttr}
	if root != nil {
		t.doc.AppendChild(root)
	}
	return t
}

// Document returns the hidden document node.
func (t *Tree) Document() *Node { return t.doc }

// Root returns the root element, or nil for an empty tree.
func (t *Tree) Root() *Node {
	if len(t.doc.Children) == 0 {
		return nil
	}
	return t.doc.Children[0]
}

// IDAttribute returns the name of the id attribute.
func (t *Tree) IDAttribute() string { return t.idAttr }

// Namespace returns the root element's default namespace.
func (t *Tree) Namespace() string {
	root := t.Root()
	if root == nil {
		return ""
	}
	ns, _ := root.Attr("xmlns")
	return ns
}

// ID returns n's id attribute.
func (t *Tree) ID(n *Node) string {
	if n == nil || n.Type != ElementNode {
		return ""
	}
	v, _ := n.Attr(t.idAttr)
	return v
}

// Contains reports whether n is reachable from the document node.
func (t *Tree) Contains(n *Node) bool {
	return n != nil && t.doc.Contains(n)
}

// FindByID returns the first element in document order with the given id.
func (t *Tree) FindByID(id string) *Node {
	if id == "" {
		return nil
	}
	var found *Node
	t.doc.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if t.ID(n) == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindByScopedID looks up id, then retries with trailing dot segments removed
// ("sec_2.para_1" -> "sec_2"). It returns the node and the id that matched.
func (t *Tree) FindByScopedID(id string) (*Node, string) {
	for id != "" {
		if n := t.FindByID(id); n != nil {
			return n, id
		}
		i := strings.LastIndex(id, ".")
		if i < 0 {
			break
		}
		id = id[:i]
	}
	return nil, ""
}

// NearestID returns the closest element at or above n carrying an id.
func (t *Tree) NearestID(n *Node) *Node {
	for p := n; p != nil; p = p.Parent {
		if t.ID(p) != "" {
			return p
		}
	}
	return nil
}

func (t *Tree) record(r MutationRecord) {
	r.Tree = t
	t.pending = append(t.pending, r)
}

// Pending reports how many records are waiting to be taken.
func (t *Tree) Pending() int { return len(t.pending) }

// TakeRecords returns and clears the recorded mutations.
func (t *Tree) TakeRecords() []MutationRecord {
	recs := t.pending
	t.pending = nil
	return recs
}

// SetRoot replaces the root element, returning the previous root.
func (t *Tree) SetRoot(root *Node) *Node {
	old := t.Root()
	if old == root {
		return old
	}
	if root.Parent != nil {
		t.RemoveChild(root.Parent, root)
	}
	rec := MutationRecord{Kind: KindChildList, Target: t.doc, AddedNodes: []*Node{root}}
	if old != nil {
		old.Detach()
		rec.RemovedNodes = []*Node{old}
	}
	t.doc.AppendChild(root)
	t.record(rec)
	return old
}

// AppendChild appends child to parent, recording the edit.
func (t *Tree) AppendChild(parent, child *Node) {
	t.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child into parent before ref (nil appends), recording
// the removal from a previous parent and the insertion. Inserting child before
// itself keeps it in place.
func (t *Tree) InsertBefore(parent, child, ref *Node) {
	if ref == child {
		ref = child.NextSibling()
	}
	if child.Parent != nil {
		t.RemoveChild(child.Parent, child)
	}
	parent.InsertBefore(child, ref)
	t.record(MutationRecord{Kind: KindChildList, Target: parent, AddedNodes: []*Node{child}})
}

// InsertAfter inserts child into parent directly after ref.
func (t *Tree) InsertAfter(parent, child, ref *Node) {
	var next *Node
	if ref != nil {
		next = ref.NextSibling()
	} else if len(parent.Children) > 0 {
		next = parent.Children[0]
	}
	t.InsertBefore(parent, child, next)
}

// RemoveChild detaches child from parent, recording the edit.
func (t *Tree) RemoveChild(parent, child *Node) {
	if child.Parent != parent {
		return
	}
	child.Detach()
	t.record(MutationRecord{Kind: KindChildList, Target: parent, RemovedNodes: []*Node{child}})
}

// ReplaceChild swaps old for repl in one edit, recorded as a single
// remove+add record.
func (t *Tree) ReplaceChild(parent, repl, old *Node) {
	if repl.Parent != nil {
		t.RemoveChild(repl.Parent, repl)
	}
	i := old.Index()
	if i < 0 || old.Parent != parent {
		return
	}
	parent.Children[i] = repl
	repl.Parent = parent
	old.Parent = nil
	t.record(MutationRecord{
		Kind:         KindChildList,
		Target:       parent,
		AddedNodes:   []*Node{repl},
		RemovedNodes: []*Node{old},
	})
}

// SetAttr sets an attribute, recording the edit when the value changes.
func (t *Tree) SetAttr(n *Node, name, value string) {
	if cur, ok := n.Attr(name); ok && cur == value {
		return
	}
	old, _ := n.setAttr(name, value)
	t.record(MutationRecord{Kind: KindAttributes, Target: n, AttributeName: name, OldValue: old})
}

// RemoveAttr removes an attribute, recording the edit when it existed.
func (t *Tree) RemoveAttr(n *Node, name string) {
	old, ok := n.removeAttr(name)
	if !ok {
		return
	}
	t.record(MutationRecord{Kind: KindAttributes, Target: n, AttributeName: name, OldValue: old})
}

// SetText replaces the content of a text node.
func (t *Tree) SetText(n *Node, text string) {
	if n.Text == text {
		return
	}
	old := n.Text
	n.Text = text
	t.record(MutationRecord{Kind: KindText, Target: n, OldValue: old})
}
