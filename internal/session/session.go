package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/metrics"
	"github.com/dgallion1/docanchor/internal/mutation"
	"github.com/dgallion1/docanchor/internal/parser"
	"github.com/dgallion1/docanchor/internal/renumber"
	"github.com/dgallion1/docanchor/internal/surgeon"
)

// ErrNodeNotFound is returned when a node id does not resolve.
var ErrNodeNotFound = errors.New("node not found")

// Options configure the components bound to each session.
type Options struct {
	IDAttribute          string
	ForeignClass         string
	QuoteContext         int
	PDFFallbackPdftotext bool
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		IDAttribute:  doctree.DefaultIDAttribute,
		ForeignClass: doctree.DefaultForeignClass,
		QuoteContext: anchor.DefaultContextLength,
	}
}

// Session is the per-document context: one authoritative tree and the
// components bound to it. Every exported method serializes on the session
// mutex, so listeners run with the lock held and must not call back into the
// session.
type Session struct {
	mu sync.Mutex

	ID          string
	DocID       string
	Filename    string
	ContentHash string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	tree     *doctree.Tree
	foreign  doctree.Predicate
	notifier *mutation.Notifier
	codec    *anchor.Codec
	surgeon  *surgeon.Surgeon
	origin   string
	log      *slog.Logger
}

// New builds a session around root. Documents that carry no ids at all are
// numbered before the session is returned.
func New(id, docID, filename string, root *doctree.Node, opts Options, log *slog.Logger) *Session {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("session_id", id, "doc_id", docID)

	foreign := doctree.DefaultForeign
	if opts.ForeignClass != "" {
		foreign = doctree.HasClass(opts.ForeignClass)
	}

	tree := doctree.New(root, opts.IDAttribute)
	numberer := renumber.New(nil, foreign)
	if !hasIDs(tree) {
		numberer.Renumber(tree, "")
	}
	tree.TakeRecords()

	notifier := mutation.NewNotifier(tree, log)
	notifier.Subscribe(func(recs []doctree.MutationRecord) {
		for _, rec := range recs {
			metrics.RecordMutation(string(rec.Kind))
		}
	})

	now := time.Now()
	return &Session{
		ID:        id,
		DocID:     docID,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		tree:      tree,
		foreign:   foreign,
		notifier:  notifier,
		codec: anchor.NewCodec(tree,
			anchor.WithForeign(foreign),
			anchor.WithContextLength(opts.QuoteContext),
			anchor.WithLogger(log),
		),
		surgeon: surgeon.New(tree, notifier, numberer.Renumber, log),
		log:     log,
	}
}

func hasIDs(tree *doctree.Tree) bool {
	found := false
	tree.Document().Walk(func(n *doctree.Node) bool {
		if found {
			return false
		}
		found = tree.ID(n) != ""
		return !found
	})
	return found
}

func (s *Session) touch() { s.UpdatedAt = time.Now() }

// LastUsed returns when the session was last read or edited.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdatedAt
}

// XML serializes the current tree.
func (s *Session) XML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.tree.XML()
}

// Info is a read-only, JSON-safe copy of session state.
type Info struct {
	ID          string    `json:"session_id"`
	DocID       string    `json:"doc_id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash,omitempty"`
	Root        string    `json:"root"`
	Namespace   string    `json:"namespace,omitempty"`
	Listeners   int       `json:"listeners"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:          s.ID,
		DocID:       s.DocID,
		Filename:    s.Filename,
		ContentHash: s.ContentHash,
		Namespace:   s.tree.Namespace(),
		Listeners:   s.notifier.Len(),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if root := s.tree.Root(); root != nil {
		info.Root = root.Tag
	}
	return info
}

// Encode anchors the range [start, end) of the visible text of the node with
// the given id.
func (s *Session) Encode(nodeID string, start, end int) (anchor.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	target, err := s.encode(nodeID, start, end)
	metrics.RecordEncode(err)
	return target, err
}

func (s *Session) encode(nodeID string, start, end int) (anchor.Target, error) {
	node := s.tree.FindByID(nodeID)
	if node == nil {
		return anchor.Target{}, fmt.Errorf("encode %q: %w", nodeID, ErrNodeNotFound)
	}
	if end < start {
		return anchor.Target{}, fmt.Errorf("encode %q: %w", nodeID, anchor.ErrInvalidSpan)
	}
	sc := s.codec.Scanner()
	from, err := sc.Resolve(node, start)
	if err != nil {
		return anchor.Target{}, fmt.Errorf("encode %q: %w", nodeID, err)
	}
	to, err := sc.Resolve(node, end)
	if err != nil {
		return anchor.Target{}, fmt.Errorf("encode %q: %w", nodeID, err)
	}
	return s.codec.Encode(anchor.Span{Start: from, End: to}, nil)
}

// Located is a decoded target expressed as offsets into the anchor's text.
type Located struct {
	AnchorID string          `json:"anchor_id"`
	Strategy anchor.Strategy `json:"strategy"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
	Text     string          `json:"text"`
}

// Decode resolves target against the current tree. It reports false when the
// target cannot currently be located.
func (s *Session) Decode(target anchor.Target) (Located, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	loc, ok := s.decode(target)
	metrics.RecordDecode(string(loc.Strategy))
	return loc, ok
}

func (s *Session) decode(target anchor.Target) (Located, bool) {
	res, ok := s.codec.Resolve(target)
	if !ok {
		return Located{}, false
	}
	sc := s.codec.Scanner()
	start, err := sc.Offset(res.Anchor, res.Span.Start)
	if err != nil {
		s.log.Warn("decoded span has no offset", "anchor_id", res.AnchorID, "error", err)
		return Located{}, false
	}
	end, err := sc.Offset(res.Anchor, res.Span.End)
	if err != nil {
		s.log.Warn("decoded span has no offset", "anchor_id", res.AnchorID, "error", err)
		return Located{}, false
	}
	text, err := s.codec.SpanText(res.Span)
	if err != nil {
		return Located{}, false
	}
	return Located{AnchorID: res.AnchorID, Strategy: res.Strategy, Start: start, End: end, Text: text}, true
}

// ReplaceRequest describes a subtree replacement from edited text. An empty
// NodeID replaces the whole document; empty Text deletes the node.
type ReplaceRequest struct {
	NodeID string
	Format string
	Rule   string
	Text   string
	// Origin identifies the stream client that made the edit; its own
	// listener skips the resulting batch.
	Origin string
}

// ReplaceResult reports the outcome of a replacement.
type ReplaceResult struct {
	Op     surgeon.Op `json:"op"`
	NodeID string     `json:"node_id,omitempty"`
}

// Replace parses req.Text with the fragment parser for req.Format and swaps
// the result in for the node.
func (s *Session) Replace(req ReplaceRequest) (ReplaceResult, error) {
	fp, err := parser.ForFormat(req.Format)
	if err != nil {
		return ReplaceResult{}, err
	}
	nodes, err := fp.ParseFragment(req.Text, req.Rule)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("parse fragment: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	var old *doctree.Node
	if req.NodeID != "" {
		if old = s.tree.FindByID(req.NodeID); old == nil {
			return ReplaceResult{}, fmt.Errorf("replace %q: %w", req.NodeID, ErrNodeNotFound)
		}
	}
	return s.replace(old, nodes, req.Origin)
}

// Delete removes the node with the given id.
func (s *Session) Delete(nodeID, origin string) (ReplaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	old := s.tree.FindByID(nodeID)
	if old == nil {
		return ReplaceResult{}, fmt.Errorf("delete %q: %w", nodeID, ErrNodeNotFound)
	}
	return s.replace(old, nil, origin)
}

func (s *Session) replace(old *doctree.Node, nodes []*doctree.Node, origin string) (ReplaceResult, error) {
	op := surgeon.Classify(old, nodes)
	var primary *doctree.Node
	err := s.guarded(origin, func() error {
		var err error
		primary, err = s.surgeon.ReplaceSubtree(old, nodes)
		return err
	})
	metrics.RecordSurgery(string(op), err)
	if err != nil {
		s.log.Info("replacement rejected", "op", op, "error", err)
		return ReplaceResult{}, err
	}
	res := ReplaceResult{Op: op}
	if primary != nil {
		res.NodeID = s.tree.ID(s.tree.NearestID(primary))
	}
	s.log.Info("subtree replaced", "op", op, "node_id", res.NodeID)
	return res, nil
}

// SetAttribute sets an attribute on the node with the given id.
func (s *Session) SetAttribute(nodeID, name, value, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	n := s.tree.FindByID(nodeID)
	if n == nil {
		return fmt.Errorf("set attribute on %q: %w", nodeID, ErrNodeNotFound)
	}
	if name == s.tree.IDAttribute() {
		return fmt.Errorf("set attribute on %q: %s is managed by renumbering", nodeID, name)
	}
	return s.guarded(origin, func() error { return s.surgeon.SetAttr(n, name, value) })
}

// guarded runs fn with the notifier's update flag set when the edit comes
// from a stream client.
func (s *Session) guarded(origin string, fn func() error) error {
	if origin == "" {
		return fn()
	}
	s.origin = origin
	defer func() { s.origin = "" }()
	return s.notifier.Guarded(fn)
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
