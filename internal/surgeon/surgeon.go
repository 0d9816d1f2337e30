package surgeon

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/mutation"
)

// ErrCannotDeleteRoot is returned when a deletion targets the root element.
var ErrCannotDeleteRoot = errors.New("cannot delete the root element")

// ErrNotInTree is returned when the node to replace is not part of the tree.
var ErrNotInTree = errors.New("node is not part of the tree")

// InvalidReplacementError reports a replacement list the surgeon refuses to
// apply. Nothing has been changed when it is returned.
type InvalidReplacementError struct {
	Count  int
	Reason string
}

func (e *InvalidReplacementError) Error() string {
	return fmt.Sprintf("invalid replacement of %d node(s): %s", e.Count, e.Reason)
}

// RenumberFunc restores identifier consistency after a structural edit.
// scopeHint is the id of the nearest identified ancestor of the edit, or ""
// when the whole document changed.
type RenumberFunc func(tree *doctree.Tree, scopeHint string)

// Op names the kind of structural edit performed.
type Op string

const (
	OpReplaceDocument Op = "replace_document"
	OpDelete          Op = "delete"
	OpReplace         Op = "replace"
)

// Surgeon is the single entry point for structural edits on a tree.
type Surgeon struct {
	tree     *doctree.Tree
	notifier *mutation.Notifier
	renumber RenumberFunc
	log      *slog.Logger
}

// New creates a surgeon. notifier and renumber may be nil; without a
// notifier records stay pending on the tree.
func New(tree *doctree.Tree, notifier *mutation.Notifier, renumber RenumberFunc, log *slog.Logger) *Surgeon {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Surgeon{tree: tree, notifier: notifier, renumber: renumber, log: log}
}

// Tree returns the tree being edited.
func (s *Surgeon) Tree() *doctree.Tree { return s.tree }

// Classify reports which kind of edit ReplaceSubtree would perform.
func Classify(old *doctree.Node, newNodes []*doctree.Node) Op {
	switch {
	case old == nil:
		return OpReplaceDocument
	case len(newNodes) == 0:
		return OpDelete
	default:
		return OpReplace
	}
}

// ReplaceSubtree performs one structural edit:
//
//   - old == nil replaces the whole document; newNodes must hold exactly one
//     element, which becomes the new root and is returned.
//   - empty newNodes deletes old; nil is returned.
//   - otherwise newNodes take old's place, in order, and the first of them
//     is returned.
//
// All checks run before the tree is touched. On success the renumbering hook
// runs and pending records are delivered to listeners.
func (s *Surgeon) ReplaceSubtree(old *doctree.Node, newNodes []*doctree.Node) (*doctree.Node, error) {
	if err := s.validate(old, newNodes); err != nil {
		return nil, err
	}

	var (
		primary *doctree.Node
		scope   *doctree.Node
	)
	switch Classify(old, newNodes) {
	case OpReplaceDocument:
		primary = newNodes[0]
		s.tree.SetRoot(primary)
	case OpDelete:
		scope = old.Parent
		s.tree.RemoveChild(old.Parent, old)
	case OpReplace:
		parent := old.Parent
		scope = parent
		primary = newNodes[0]
		s.tree.ReplaceChild(parent, primary, old)
		// Each insert lands directly after primary, so walk backwards.
		for i := len(newNodes) - 1; i > 0; i-- {
			s.tree.InsertAfter(parent, newNodes[i], primary)
		}
	}

	s.finish(scope)
	return primary, nil
}

func (s *Surgeon) validate(old *doctree.Node, newNodes []*doctree.Node) error {
	for i, n := range newNodes {
		if n == nil {
			return &InvalidReplacementError{Count: len(newNodes), Reason: fmt.Sprintf("node %d is nil", i)}
		}
		if n.Type == doctree.DocumentNode {
			return &InvalidReplacementError{Count: len(newNodes), Reason: "document node cannot be inserted"}
		}
		for _, m := range newNodes[:i] {
			if m == n {
				return &InvalidReplacementError{Count: len(newNodes), Reason: fmt.Sprintf("node %d appears twice", i)}
			}
			if m.Contains(n) || n.Contains(m) {
				return &InvalidReplacementError{Count: len(newNodes), Reason: fmt.Sprintf("node %d overlaps another replacement node", i)}
			}
		}
	}

	if old == nil {
		if len(newNodes) != 1 {
			return &InvalidReplacementError{Count: len(newNodes), Reason: "whole-document replace needs exactly one node"}
		}
		if newNodes[0].Type != doctree.ElementNode {
			return &InvalidReplacementError{Count: 1, Reason: "root must be an element"}
		}
		if root := s.tree.Root(); root != nil && newNodes[0] != root && newNodes[0].Contains(root) {
			return &InvalidReplacementError{Count: 1, Reason: "new root contains the current root"}
		}
		return nil
	}

	if !s.tree.Contains(old) || old.Type == doctree.DocumentNode {
		return ErrNotInTree
	}
	isRoot := old.Parent == s.tree.Document()
	if len(newNodes) == 0 {
		if isRoot {
			return ErrCannotDeleteRoot
		}
		return nil
	}
	if isRoot {
		if len(newNodes) != 1 {
			return &InvalidReplacementError{Count: len(newNodes), Reason: "root can only be replaced by one node"}
		}
		if newNodes[0].Type != doctree.ElementNode {
			return &InvalidReplacementError{Count: 1, Reason: "root must be an element"}
		}
	}
	for i, n := range newNodes {
		if n.Contains(old) {
			return &InvalidReplacementError{Count: len(newNodes), Reason: fmt.Sprintf("node %d contains the node it replaces", i)}
		}
	}
	return nil
}

// InsertBefore inserts n into parent before ref (nil appends).
func (s *Surgeon) InsertBefore(parent, n, ref *doctree.Node) error {
	if err := s.checkInsert(parent, n); err != nil {
		return err
	}
	if ref != nil && ref.Parent != parent {
		return fmt.Errorf("insert before: reference is not a child of parent: %w", ErrNotInTree)
	}
	s.tree.InsertBefore(parent, n, ref)
	s.finish(parent)
	return nil
}

// Append appends n to parent.
func (s *Surgeon) Append(parent, n *doctree.Node) error {
	return s.InsertBefore(parent, n, nil)
}

func (s *Surgeon) checkInsert(parent, n *doctree.Node) error {
	if parent == nil || !s.tree.Contains(parent) || parent.Type != doctree.ElementNode {
		return fmt.Errorf("insert: parent: %w", ErrNotInTree)
	}
	if n == nil || n.Type == doctree.DocumentNode {
		return &InvalidReplacementError{Count: 1, Reason: "node cannot be inserted"}
	}
	if n.Contains(parent) {
		return &InvalidReplacementError{Count: 1, Reason: "node contains its new parent"}
	}
	return nil
}

// SetAttr sets an attribute on an element in the tree. Attribute edits do not
// trigger renumbering.
func (s *Surgeon) SetAttr(n *doctree.Node, name, value string) error {
	if n == nil || n.Type != doctree.ElementNode || !s.tree.Contains(n) {
		return fmt.Errorf("set attribute %q: %w", name, ErrNotInTree)
	}
	s.tree.SetAttr(n, name, value)
	s.flush()
	return nil
}

// SetText replaces the content of a text node in the tree.
func (s *Surgeon) SetText(n *doctree.Node, text string) error {
	if n == nil || n.Type != doctree.TextNode || !s.tree.Contains(n) {
		return fmt.Errorf("set text: %w", ErrNotInTree)
	}
	s.tree.SetText(n, text)
	s.flush()
	return nil
}

func (s *Surgeon) finish(scope *doctree.Node) {
	if s.renumber != nil {
		hint := ""
		if scope != nil {
			hint = s.tree.ID(s.tree.NearestID(scope))
		}
		s.renumber(s.tree, hint)
	}
	s.flush()
}

func (s *Surgeon) flush() {
	if s.notifier == nil {
		return
	}
	if n := s.notifier.Notify(); n > 0 {
		s.log.Debug("structural edit delivered", "records", n)
	}
}
