package session

import (
	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/mutation"
)

// Event summarizes one content mutation for a secondary display.
type Event struct {
	Kind      doctree.MutationKind `json:"kind"`
	TargetID  string               `json:"target_id,omitempty"`
	Added     int                  `json:"added,omitempty"`
	Removed   int                  `json:"removed,omitempty"`
	Attribute string               `json:"attribute,omitempty"`
}

// Batch is one delivery: the content events plus the impact on every watched
// node that was affected.
type Batch struct {
	Events  []Event                    `json:"events"`
	Impacts map[string]mutation.Impact `json:"impacts,omitempty"`
}

// Stream registers fn to receive a Batch after every edit. Overlay churn is
// filtered out, and batches caused by clientID's own guarded edits are
// skipped. watch lists node ids whose impact should be classified; ids that
// do not resolve are ignored. A watched id that is replaced or removed is
// looked up again, so later batches track the node now carrying it. fn runs
// with the session lock held.
func (s *Session) Stream(clientID string, watch []string, fn func(Batch)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	watched := make(map[string]*doctree.Node, len(watch))
	for _, id := range watch {
		if n := s.tree.FindByID(id); n != nil {
			watched[id] = n
		}
	}

	unsub := s.notifier.Subscribe(func(recs []doctree.MutationRecord) {
		if s.notifier.Updating() && s.origin == clientID {
			return
		}
		recs = mutation.ContentRecords(recs, s.foreign)
		if len(recs) == 0 {
			return
		}
		batch := Batch{Events: make([]Event, 0, len(recs))}
		for _, rec := range recs {
			batch.Events = append(batch.Events, Event{
				Kind:      rec.Kind,
				TargetID:  s.tree.ID(s.tree.NearestID(rec.Target)),
				Added:     len(rec.AddedNodes),
				Removed:   len(rec.RemovedNodes),
				Attribute: rec.AttributeName,
			})
		}
		for id, n := range watched {
			impact := mutation.ClassifyAll(recs, n)
			if impact == mutation.None {
				continue
			}
			if batch.Impacts == nil {
				batch.Impacts = make(map[string]mutation.Impact)
			}
			batch.Impacts[id] = impact
			if impact == mutation.Removed || impact == mutation.Replaced {
				// Follow the id to its replacement, or stop watching it.
				if next := s.tree.FindByID(id); next != nil {
					watched[id] = next
				} else {
					delete(watched, id)
				}
			}
		}
		fn(batch)
	})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		unsub()
	}
}
