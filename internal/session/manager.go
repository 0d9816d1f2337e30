package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/metrics"
	"github.com/dgallion1/docanchor/internal/parser"
	"github.com/google/uuid"
)

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		metrics.SessionOpened()
	}
	s.sessions[sess.ID] = sess
}

func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

// Delete removes a session, reporting whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	metrics.SessionClosed()
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns all sessions, oldest first.
func (s *Store) List() []*Session {
	s.mu.Lock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Cleanup removes expired sessions and returns how many were evicted.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) > s.ttl {
			delete(s.sessions, id)
			metrics.SessionClosed()
			evicted++
		}
	}
	return evicted
}

// Manager opens documents into sessions and evicts idle ones.
type Manager struct {
	store *Store
	opts  Options
	log   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. Call Start to enable background eviction.
func NewManager(opts Options, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{store: NewStore(ttl), opts: opts, log: log}
}

// Start launches the cleanup loop.
func (m *Manager) Start(ctx context.Context, interval time.Duration) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if n := m.store.Cleanup(); n > 0 {
					m.log.Info("evicted idle sessions", "count", n)
				}
			}
		}
	}()
}

// Stop shuts down the cleanup loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// Open parses data according to filename's extension and registers a new
// session. An empty docID is derived from the content hash, so reopening the
// same bytes finds the same annotations.
func (m *Manager) Open(filename string, data []byte, docID string) (*Session, error) {
	p, err := parser.ForFile(filename)
	if err != nil {
		return nil, err
	}
	if pp, ok := p.(*parser.PDFParser); ok {
		pp.FallbackPdftotext = m.opts.PDFFallbackPdftotext
	}
	root, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	hash := ContentHashHex(data)
	if docID == "" {
		docID = "doc-" + hash[:16]
	}
	return m.open(filename, docID, hash, root), nil
}

// OpenTree registers a session for an already parsed root element.
func (m *Manager) OpenTree(filename, docID string, root *doctree.Node) *Session {
	return m.open(filename, docID, "", root)
}

func (m *Manager) open(filename, docID, hash string, root *doctree.Node) *Session {
	id := uuid.Must(uuid.NewV7()).String()
	sess := New(id, docID, filename, root, m.opts, m.log)
	sess.ContentHash = hash
	m.store.Put(sess)
	m.log.Info("session opened", "session_id", id, "doc_id", docID, "filename", filename)
	return sess
}

// Get returns a session by id, or nil.
func (m *Manager) Get(id string) *Session {
	return m.store.Get(id)
}

// Close discards a session.
func (m *Manager) Close(id string) bool {
	ok := m.store.Delete(id)
	if ok {
		m.log.Info("session closed", "session_id", id)
	}
	return ok
}

// List returns snapshots of all live sessions.
func (m *Manager) List() []Info {
	sessions := m.store.List()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int { return m.store.Len() }
