package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docanchor/internal/anchor"
	"github.com/dgallion1/docanchor/internal/doctree"
	"github.com/dgallion1/docanchor/internal/mutation"
	"github.com/dgallion1/docanchor/internal/surgeon"
)

const catDoc = `<doc><section eId="sec_2"><p>The cat sat on the mat.</p></section></doc>`

func newSession(t *testing.T, src string) *Session {
	t.Helper()
	m := NewManager(DefaultOptions(), time.Hour, nil)
	s, err := m.Open("doc.xml", []byte(src), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h := ContentHashHex([]byte{}); h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore(time.Hour)
	s := New("s1", "d1", "a.xml", doctree.NewElement("doc"), DefaultOptions(), nil)
	store.Put(s)

	if got := store.Get("s1"); got != s {
		t.Errorf("expected stored session, got %v", got)
	}
	if store.Get("missing") != nil {
		t.Error("expected nil for missing session")
	}
	if !store.Delete("s1") {
		t.Error("expected delete to report existing session")
	}
	if store.Delete("s1") {
		t.Error("expected second delete to report missing session")
	}
}

func TestStore_Cleanup(t *testing.T) {
	store := NewStore(time.Minute)

	old := New("old", "d", "a.xml", doctree.NewElement("doc"), DefaultOptions(), nil)
	old.UpdatedAt = time.Now().Add(-2 * time.Minute)
	store.Put(old)
	store.Put(New("fresh", "d", "b.xml", doctree.NewElement("doc"), DefaultOptions(), nil))

	if n := store.Cleanup(); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	if store.Get("old") != nil {
		t.Error("expected expired session to be evicted")
	}
	if store.Get("fresh") == nil {
		t.Error("expected fresh session to survive cleanup")
	}
}

func TestStore_CleanupEmpty(t *testing.T) {
	if n := NewStore(time.Minute).Cleanup(); n != 0 {
		t.Errorf("expected 0 evictions, got %d", n)
	}
}

func TestManager_OpenTextAssignsIDs(t *testing.T) {
	m := NewManager(DefaultOptions(), time.Hour, nil)
	s, err := m.Open("notes.txt", []byte("First.\n\nSecond."), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<doc title="notes"><p eId="para_1">First.</p><p eId="para_2">Second.</p></doc>`
	if got := s.XML(); got != want {
		t.Errorf("expected %s\ngot %s", want, got)
	}
	if !strings.HasPrefix(s.DocID, "doc-") || len(s.DocID) != 20 {
		t.Errorf("unexpected derived doc id %q", s.DocID)
	}
	if m.Len() != 1 || m.Get(s.ID) != s {
		t.Error("expected session to be registered")
	}
	if !m.Close(s.ID) || m.Len() != 0 {
		t.Error("expected session to be closed")
	}
}

func TestManager_OpenKeepsExistingIDs(t *testing.T) {
	s := newSession(t, catDoc)
	if got := s.XML(); got != catDoc {
		t.Errorf("expected document untouched, got %s", got)
	}
	info := s.Snapshot()
	if info.Root != "doc" || info.ContentHash == "" {
		t.Errorf("unexpected snapshot %+v", info)
	}
}

func TestManager_OpenUnsupported(t *testing.T) {
	m := NewManager(DefaultOptions(), time.Hour, nil)
	if _, err := m.Open("image.png", []byte("x"), ""); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestSession_AnchorSurvivesReplacement(t *testing.T) {
	s := newSession(t, catDoc)

	target, err := s.Encode("sec_2", 4, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.AnchorID != "sec_2" {
		t.Errorf("expected anchor sec_2, got %q", target.AnchorID)
	}
	pos, _ := target.Position()
	if pos.Start != 4 || pos.End != 7 {
		t.Errorf("expected position [4,7), got [%d,%d)", pos.Start, pos.End)
	}
	quote, _ := target.Quote()
	if quote.Exact != "cat" || quote.Prefix != "The " || quote.Suffix != " sat on the mat." {
		t.Errorf("unexpected quote %+v", quote)
	}

	res, err := s.Replace(ReplaceRequest{
		NodeID: "sec_2",
		Format: "xml",
		Rule:   "section",
		Text:   `<section eId="sec_2"><p>The big cat sat on the mat.</p></section>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Op != surgeon.OpReplace || res.NodeID != "sec_2" {
		t.Errorf("unexpected result %+v", res)
	}

	loc, ok := s.Decode(target)
	if !ok {
		t.Fatal("expected target to decode after replacement")
	}
	if loc.Strategy != anchor.StrategyQuote {
		t.Errorf("expected quote strategy, got %q", loc.Strategy)
	}
	if loc.Start != 8 || loc.End != 11 || loc.Text != "cat" {
		t.Errorf("expected cat at [8,11), got %q at [%d,%d)", loc.Text, loc.Start, loc.End)
	}
}

func TestSession_DecodeAfterDeletion(t *testing.T) {
	s := newSession(t, catDoc)
	target, err := s.Encode("sec_2", 4, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := s.Delete("sec_2", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Op != surgeon.OpDelete {
		t.Errorf("expected delete op, got %q", res.Op)
	}
	if _, ok := s.Decode(target); ok {
		t.Error("expected target to be unresolvable after deletion")
	}
}

func TestSession_EncodeErrors(t *testing.T) {
	s := newSession(t, catDoc)
	if _, err := s.Encode("missing", 0, 1); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
	if _, err := s.Encode("sec_2", 5, 2); !errors.Is(err, anchor.ErrInvalidSpan) {
		t.Errorf("expected ErrInvalidSpan, got %v", err)
	}
}

func TestSession_ReplaceRejectsRuleMismatch(t *testing.T) {
	s := newSession(t, catDoc)
	_, err := s.Replace(ReplaceRequest{NodeID: "sec_2", Format: "xml", Rule: "section", Text: `<p>x</p>`})
	if err == nil {
		t.Fatal("expected rule mismatch error")
	}
	if got := s.XML(); got != catDoc {
		t.Errorf("expected document unchanged, got %s", got)
	}
}

func TestSession_SetAttribute(t *testing.T) {
	s := newSession(t, catDoc)
	if err := s.SetAttribute("sec_2", "lang", "en", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(s.XML(), `lang="en"`) {
		t.Errorf("expected attribute to be set, got %s", s.XML())
	}
	if err := s.SetAttribute("sec_2", "eId", "other", ""); err == nil {
		t.Error("expected id attribute to be rejected")
	}
}

func TestSession_StreamImpactsAndOrigin(t *testing.T) {
	s := newSession(t, catDoc)

	var batches []Batch
	unsubscribe := s.Stream("client-1", []string{"sec_2"}, func(b Batch) {
		batches = append(batches, b)
	})

	if err := s.SetAttribute("sec_2", "lang", "en", "client-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected own edit to be skipped, got %d batches", len(batches))
	}

	if err := s.SetAttribute("sec_2", "lang", "fr", "client-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	b := batches[0]
	if len(b.Events) != 1 || b.Events[0].Kind != doctree.KindAttributes || b.Events[0].Attribute != "lang" {
		t.Errorf("unexpected events %+v", b.Events)
	}
	if b.Impacts["sec_2"] != mutation.Changed {
		t.Errorf("expected sec_2 changed, got %q", b.Impacts["sec_2"])
	}

	unsubscribe()
	if err := s.SetAttribute("sec_2", "lang", "de", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("expected no delivery after unsubscribe, got %d batches", len(batches))
	}
}

func TestSession_StreamFollowsReplacedWatch(t *testing.T) {
	s := newSession(t, `<doc><section eId="sec_1"><p>a</p></section><section eId="sec_2"><p>b</p></section></doc>`)

	var batches []Batch
	unsubscribe := s.Stream("client-1", []string{"sec_1"}, func(b Batch) {
		batches = append(batches, b)
	})
	defer unsubscribe()

	replace := func(id, text string) {
		t.Helper()
		if _, err := s.Replace(ReplaceRequest{NodeID: id, Format: "xml", Rule: "section", Text: text}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	replace("sec_1", `<section eId="sec_1"><p>a2</p></section>`)
	if len(batches) != 1 || batches[0].Impacts["sec_1"] != mutation.Replaced {
		t.Fatalf("expected sec_1 replaced, got %+v", batches)
	}

	replace("sec_2", `<section eId="sec_2"><p>b2</p></section>`)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if impact, ok := batches[1].Impacts["sec_1"]; ok {
		t.Errorf("expected no impact on sec_1 from an unrelated edit, got %q", impact)
	}

	if err := s.SetAttribute("sec_1", "lang", "en", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if batches[2].Impacts["sec_1"] != mutation.Changed {
		t.Errorf("expected replacement node to be watched, got %+v", batches[2].Impacts)
	}

	if _, err := s.Delete("sec_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 4 {
		t.Fatalf("expected 4 batches, got %d", len(batches))
	}
	if batches[3].Impacts["sec_1"] != mutation.Removed {
		t.Errorf("expected sec_1 removed, got %+v", batches[3].Impacts)
	}
	replace("sec_2", `<section eId="sec_2"><p>b3</p></section>`)
	if len(batches) != 5 {
		t.Fatalf("expected 5 batches, got %d", len(batches))
	}
	if len(batches[4].Impacts) != 0 {
		t.Errorf("expected no impacts once sec_1 is gone, got %+v", batches[4].Impacts)
	}
}
