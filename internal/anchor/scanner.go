package anchor

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// Point is a boundary position in the live tree. For a text node Offset counts
// runes into its content; for an element it is a child index.
type Point struct {
	Node   *doctree.Node
	Offset int
}

// Span is a transient selection between two points. It is never persisted;
// convert it to a Target for storage.
type Span struct {
	Start Point
	End   Point
}

// OutOfRangeError reports an offset outside a subtree's text content.
type OutOfRangeError struct {
	Offset int
	Length int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("offset %d out of range [0, %d]", e.Offset, e.Length)
}

// Scanner maps between global character offsets within a subtree and
// (node, local offset) points, walking text leaves in document order and
// skipping foreign subtrees.
type Scanner struct {
	Foreign doctree.Predicate
}

func (s Scanner) skip(root, n *doctree.Node) bool {
	return n != root && s.Foreign != nil && s.Foreign(n)
}

// leaves calls fn for every visible text node under root until fn returns false.
func (s Scanner) leaves(root *doctree.Node, fn func(*doctree.Node) bool) {
	stop := false
	var walk func(*doctree.Node)
	walk = func(n *doctree.Node) {
		if stop || s.skip(root, n) {
			return
		}
		if n.Type == doctree.TextNode {
			if !fn(n) {
				stop = true
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}

// Measure returns the visible text length of root in runes.
func (s Scanner) Measure(root *doctree.Node) int {
	total := 0
	s.leaves(root, func(n *doctree.Node) bool {
		total += n.Len()
		return true
	})
	return total
}

// Text returns the visible text of root.
func (s Scanner) Text(root *doctree.Node) string {
	var sb strings.Builder
	s.leaves(root, func(n *doctree.Node) bool {
		sb.WriteString(n.Text)
		return true
	})
	return sb.String()
}

// Resolve returns the text leaf containing offset and the local offset within
// it. offset equal to the total length resolves to the end of the last leaf.
// A subtree without text resolves offset 0 to the start of root.
func (s Scanner) Resolve(root *doctree.Node, offset int) (Point, error) {
	if offset < 0 {
		return Point{}, &OutOfRangeError{Offset: offset, Length: s.Measure(root)}
	}
	var (
		found Point
		ok    bool
		seen  int
	)
	s.leaves(root, func(n *doctree.Node) bool {
		l := n.Len()
		if offset <= seen+l {
			found, ok = Point{Node: n, Offset: offset - seen}, true
			return false
		}
		seen += l
		return true
	})
	if ok {
		return found, nil
	}
	if offset == 0 {
		return Point{Node: root, Offset: 0}, nil
	}
	return Point{}, &OutOfRangeError{Offset: offset, Length: seen}
}

// Offset is the inverse of Resolve: it returns the global text offset of p
// within root. Points inside foreign subtrees or outside root are rejected.
func (s Scanner) Offset(root *doctree.Node, p Point) (int, error) {
	if p.Node == nil || !root.Contains(p.Node) {
		return 0, ErrInvalidSpan
	}
	for n := p.Node; n != root; n = n.Parent {
		if s.skip(root, n) {
			return 0, ErrInvalidSpan
		}
	}
	if p.Offset < 0 {
		return 0, &OutOfRangeError{Offset: p.Offset}
	}

	count := 0
	done := false
	result := 0
	var walk func(*doctree.Node)
	walk = func(n *doctree.Node) {
		if done || s.skip(root, n) {
			return
		}
		if n == p.Node {
			done = true
			if n.Type == doctree.TextNode {
				result = count + min(p.Offset, n.Len())
				return
			}
			for i, c := range n.Children {
				if i == p.Offset {
					result = count
					return
				}
				if !s.skip(root, c) {
					count += s.Measure(c)
				}
			}
			result = count
			return
		}
		if n.Type == doctree.TextNode {
			count += n.Len()
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return result, nil
}
