package anchor

import "github.com/dgallion1/docanchor/internal/doctree"

// excised remembers where a foreign node lived so it can be put back.
type excised struct {
	node   *doctree.Node
	next   *doctree.Node // reinsert before this sibling while it is still in parent
	parent *doctree.Node // otherwise append to parent
}

// WithoutForeign detaches every foreign descendant of root for the duration of
// fn, then restores each one to its original position in reverse removal
// order. Restoration runs on every exit path, including a panic in fn, before
// fn's error or panic propagates. The detach/restore edits bypass mutation
// recording.
func WithoutForeign[R any](root *doctree.Node, foreign doctree.Predicate, fn func() (R, error)) (R, error) {
	removed := exciseForeign(root, foreign)
	defer restore(removed)
	return fn()
}

func exciseForeign(root *doctree.Node, foreign doctree.Predicate) []excised {
	if root == nil || foreign == nil {
		return nil
	}
	var found []*doctree.Node
	for _, c := range root.Children {
		c.Walk(func(n *doctree.Node) bool {
			if foreign(n) {
				found = append(found, n)
				return false
			}
			return true
		})
	}

	removed := make([]excised, 0, len(found))
	for _, n := range found {
		e := excised{node: n, next: n.NextSibling(), parent: n.Parent}
		n.Detach()
		removed = append(removed, e)
	}
	return removed
}

func restore(removed []excised) {
	for i := len(removed) - 1; i >= 0; i-- {
		e := removed[i]
		if e.next != nil && e.next.Parent == e.parent {
			e.parent.InsertBefore(e.node, e.next)
		} else {
			e.parent.AppendChild(e.node)
		}
	}
}
