package mutation

import (
	"log/slog"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// Listener receives a batch of mutation records.
type Listener func(recs []doctree.MutationRecord)

type subscription struct {
	id int
	fn Listener
}

// Notifier is the listener registry for one tree. Notify drains the tree's
// pending records and hands them to every listener synchronously, in
// registration order.
//
// A listener that edits the tree itself should wrap the edit in Guarded (or
// BeginUpdate/EndUpdate); listeners that react to changes check Updating and
// skip their work while it is set, so two views of the same tree do not feed
// each other forever.
type Notifier struct {
	tree     *doctree.Tree
	subs     []subscription
	nextID   int
	updating int
	log      *slog.Logger
}

// NewNotifier creates a notifier for tree.
func NewNotifier(tree *doctree.Tree, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Notifier{tree: tree, log: log}
}

// Tree returns the observed tree.
func (n *Notifier) Tree() *doctree.Tree { return n.tree }

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn Listener) (unsubscribe func()) {
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int { return len(n.subs) }

// Notify delivers all pending records as one batch. It returns the number of
// records delivered.
func (n *Notifier) Notify() int {
	recs := n.tree.TakeRecords()
	if len(recs) == 0 {
		return 0
	}
	n.log.Debug("delivering mutations", "records", len(recs), "listeners", len(n.subs))
	// Listeners may unsubscribe during delivery.
	subs := append([]subscription(nil), n.subs...)
	for _, s := range subs {
		s.fn(recs)
	}
	return len(recs)
}

// BeginUpdate marks the start of a self-inflicted edit.
func (n *Notifier) BeginUpdate() { n.updating++ }

// EndUpdate clears the mark set by BeginUpdate.
func (n *Notifier) EndUpdate() {
	if n.updating > 0 {
		n.updating--
	}
}

// Updating reports whether a guarded edit is in progress.
func (n *Notifier) Updating() bool { return n.updating > 0 }

// Guarded runs fn with the update flag set and delivers the resulting records
// before clearing it, so reacting listeners see Updating() == true.
func (n *Notifier) Guarded(fn func() error) error {
	n.BeginUpdate()
	defer n.EndUpdate()
	err := fn()
	n.Notify()
	return err
}
