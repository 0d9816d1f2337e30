package anchor

import (
	"strings"
	"testing"

	"github.com/dgallion1/docanchor/internal/doctree"
)

func parse(t *testing.T, src string) *doctree.Tree {
	t.Helper()
	tree, err := doctree.ParseXML(strings.NewReader(src), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tree
}

// firstText returns the first text node under n.
func firstText(n *doctree.Node) *doctree.Node {
	var found *doctree.Node
	n.Walk(func(c *doctree.Node) bool {
		if found == nil && c.Type == doctree.TextNode {
			found = c
		}
		return found == nil
	})
	return found
}

func textSpan(n *doctree.Node, start, end int) Span {
	return Span{Start: Point{Node: n, Offset: start}, End: Point{Node: n, Offset: end}}
}

func spanText(t *testing.T, c *Codec, s Span) string {
	t.Helper()
	text, err := c.SpanText(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return text
}

func TestCodec_CatScenario(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_2"><p>The cat sat on the mat.</p></section></doc>`)
	codec := NewCodec(tree)
	text := firstText(tree.FindByID("sec_2"))

	target, err := codec.Encode(textSpan(text, 4, 7), tree.Root())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.AnchorID != "sec_2" {
		t.Errorf("expected anchor %q, got %q", "sec_2", target.AnchorID)
	}
	pos, ok := target.Position()
	if !ok || pos.Start != 4 || pos.End != 7 {
		t.Errorf("expected position {4 7}, got %+v", pos)
	}
	quote, ok := target.Quote()
	if !ok || quote.Exact != "cat" {
		t.Errorf("expected exact %q, got %+v", "cat", quote)
	}
	if quote.Prefix != "The " || quote.Suffix != " sat on the mat." {
		t.Errorf("unexpected context %q / %q", quote.Prefix, quote.Suffix)
	}

	tree.SetText(text, "The big cat sat on the mat.")

	res, ok := codec.Resolve(target)
	if !ok {
		t.Fatal("expected drifted target to resolve")
	}
	if res.Strategy != StrategyQuote {
		t.Errorf("expected quote fallback, got %q", res.Strategy)
	}
	if res.Span.Start.Offset != 8 || res.Span.End.Offset != 11 {
		t.Errorf("expected span [8,11), got [%d,%d)", res.Span.Start.Offset, res.Span.End.Offset)
	}
	if got := spanText(t, codec, res.Span); got != "cat" {
		t.Errorf("expected %q, got %q", "cat", got)
	}
}

func TestCodec_PositionOnlyDrifts(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_2"><p>The cat sat on the mat.</p></section></doc>`)
	codec := NewCodec(tree)
	text := firstText(tree.Root())

	target, err := codec.Encode(textSpan(text, 4, 7), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos, _ := target.Position()
	positionOnly := Target{AnchorID: target.AnchorID, Selectors: []Selector{pos}}

	tree.SetText(text, "The big cat sat on the mat.")

	res, ok := codec.Resolve(positionOnly)
	if !ok {
		t.Fatal("expected position-only target to resolve to something")
	}
	if res.Strategy != StrategyPosition {
		t.Errorf("expected position strategy, got %q", res.Strategy)
	}
	if got := spanText(t, codec, res.Span); got != "big" {
		t.Errorf("expected drifted text %q, got %q", "big", got)
	}

	span, ok := codec.Decode(target)
	if !ok || spanText(t, codec, span) != "cat" {
		t.Error("expected the full target to recover the original text")
	}
}

func TestCodec_RoundTripAcrossLeaves(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_1"><p>Alpha <b>beta</b> gamma</p><p>delta</p></section></doc>`)
	codec := NewCodec(tree)
	anchor := tree.FindByID("sec_1")
	scanner := codec.Scanner()
	total := scanner.Measure(anchor)
	full := []rune(scanner.Text(anchor))

	for i := 0; i <= total; i++ {
		for j := i; j <= total; j++ {
			start, err := scanner.Resolve(anchor, i)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			end, err := scanner.Resolve(anchor, j)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			span := Span{Start: start, End: end}
			want := string(full[i:j])

			target, err := codec.Encode(span, tree.Root())
			if err != nil {
				t.Fatalf("[%d,%d): unexpected error: %v", i, j, err)
			}
			got, ok := codec.Decode(target)
			if !ok {
				t.Fatalf("[%d,%d): expected decode to succeed", i, j)
			}
			if text := spanText(t, codec, got); text != want {
				t.Errorf("[%d,%d): expected %q, got %q", i, j, want, text)
			}
		}
	}
}

func TestCodec_EncodePicksNearestIdentifiedAncestor(t *testing.T) {
	tree := parse(t, `<doc eId="doc"><section eId="sec_1"><p eId="sec_1.para_1">one</p><p>two</p></section></doc>`)
	codec := NewCodec(tree)

	para := tree.FindByID("sec_1.para_1")
	target, err := codec.Encode(textSpan(firstText(para), 0, 3), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.AnchorID != "sec_1.para_1" {
		t.Errorf("expected %q, got %q", "sec_1.para_1", target.AnchorID)
	}

	// A span crossing both paragraphs anchors at the section.
	second := firstText(tree.FindByID("sec_1").Children[1])
	cross := Span{Start: Point{Node: firstText(para), Offset: 1}, End: Point{Node: second, Offset: 2}}
	target, err = codec.Encode(cross, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.AnchorID != "sec_1" {
		t.Errorf("expected %q, got %q", "sec_1", target.AnchorID)
	}
	pos, _ := target.Position()
	if pos.Start != 1 || pos.End != 5 {
		t.Errorf("expected [1,5), got %+v", pos)
	}
}

func TestCodec_EncodeRejectsSpanOutsideScope(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_1"><p>one</p></section><section eId="sec_2"><p>two</p></section></doc>`)
	codec := NewCodec(tree)

	span := textSpan(firstText(tree.FindByID("sec_1")), 0, 3)
	if _, err := codec.Encode(span, tree.FindByID("sec_2")); err != ErrOutsideScope {
		t.Errorf("expected ErrOutsideScope, got %v", err)
	}
	if _, err := codec.Encode(Span{}, nil); err != ErrInvalidSpan {
		t.Errorf("expected ErrInvalidSpan, got %v", err)
	}

	noID := parse(t, `<doc><p>plain</p></doc>`)
	if _, err := NewCodec(noID).Encode(textSpan(firstText(noID.Root()), 0, 1), nil); err != ErrNoAnchor {
		t.Errorf("expected ErrNoAnchor, got %v", err)
	}
}

func TestCodec_ForeignNodesAreInvisible(t *testing.T) {
	plain := parse(t, `<doc><section eId="s"><p>Hello world</p></section></doc>`)
	overlaid := parse(t, `<doc><section eId="s"><p>Hello <span class="ig">MARK</span>world</p></section></doc>`)

	want, err := NewCodec(plain).Encode(textSpan(firstText(plain.Root()), 6, 11), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := overlaid.FindByID("s").Children[0]
	world := p.Children[2]
	codec := NewCodec(overlaid)

	spans := []Span{
		textSpan(world, 0, 5),
		{Start: Point{Node: p, Offset: 2}, End: Point{Node: p, Offset: 3}},
		{Start: Point{Node: p, Offset: 1}, End: Point{Node: world, Offset: 5}},
	}
	for i, span := range spans {
		got, err := codec.Encode(span, nil)
		if err != nil {
			t.Fatalf("span %d: unexpected error: %v", i, err)
		}
		gp, _ := got.Position()
		wp, _ := want.Position()
		if gp != wp {
			t.Errorf("span %d: expected position %+v, got %+v", i, wp, gp)
		}
		gq, _ := got.Quote()
		wq, _ := want.Quote()
		if gq != wq {
			t.Errorf("span %d: expected quote %+v, got %+v", i, wq, gq)
		}
		if strings.Contains(gq.Prefix+gq.Exact+gq.Suffix, "MARK") {
			t.Errorf("span %d: foreign text leaked into quote", i)
		}
	}

	if overlaid.XML() != `<doc><section eId="s"><p>Hello <span class="ig">MARK</span>world</p></section></doc>` {
		t.Errorf("expected overlay to be restored, got %s", overlaid.XML())
	}

	decoded, ok := codec.Decode(want)
	if !ok {
		t.Fatal("expected decode to succeed with overlay present")
	}
	if got := spanText(t, codec, decoded); got != "world" {
		t.Errorf("expected %q, got %q", "world", got)
	}
}

func TestCodec_EncodeRejectsSpanInsideForeignNode(t *testing.T) {
	tree := parse(t, `<doc><section eId="s"><p>Hello <span class="ig">MARK</span>world</p></section></doc>`)
	mark := firstText(tree.Root().Children[0].Children[0].Children[1])

	if _, err := NewCodec(tree).Encode(textSpan(mark, 0, 2), nil); err != ErrInvalidSpan {
		t.Errorf("expected ErrInvalidSpan, got %v", err)
	}
}

func TestCodec_DuplicateTextUsesContext(t *testing.T) {
	tree := parse(t, `<doc><section eId="s"><p>the cat and the cat again</p></section></doc>`)
	codec := NewCodec(tree)
	text := firstText(tree.Root())

	target, err := codec.Encode(textSpan(text, 16, 19), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tree.SetText(text, "so, the cat and the cat again")

	res, ok := codec.Resolve(target)
	if !ok {
		t.Fatal("expected target to resolve")
	}
	if res.Strategy != StrategyQuote {
		t.Errorf("expected quote strategy, got %q", res.Strategy)
	}
	if res.Span.Start.Offset != 20 {
		t.Errorf("expected second occurrence at 20, got %d", res.Span.Start.Offset)
	}
}

func TestCodec_DecodeLegacyWholeElement(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_1"><p>one</p><p>two</p></section></doc>`)
	codec := NewCodec(tree)

	res, ok := codec.Resolve(Target{AnchorID: "sec_1"})
	if !ok {
		t.Fatal("expected legacy target to resolve")
	}
	if res.Strategy != StrategyWhole {
		t.Errorf("expected whole strategy, got %q", res.Strategy)
	}
	if got := spanText(t, codec, res.Span); got != "onetwo" {
		t.Errorf("expected %q, got %q", "onetwo", got)
	}
}

func TestCodec_DecodeScopedFallback(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_2"><p eId="sec_2.para_3">renumbered text</p></section></doc>`)
	codec := NewCodec(tree)

	target := Target{
		AnchorID: "sec_2.para_1",
		Selectors: []Selector{
			TextPositionSelector{Start: 0, End: 4},
			TextQuoteSelector{Exact: "text"},
		},
	}
	res, ok := codec.Resolve(target)
	if !ok {
		t.Fatal("expected scoped fallback to resolve")
	}
	if res.AnchorID != "sec_2" {
		t.Errorf("expected fallback anchor %q, got %q", "sec_2", res.AnchorID)
	}
	if got := spanText(t, codec, res.Span); got != "text" {
		t.Errorf("expected %q, got %q", "text", got)
	}
}

func TestCodec_DecodeFailuresAreSoft(t *testing.T) {
	tree := parse(t, `<doc><section eId="sec_1"><p>short</p></section></doc>`)
	codec := NewCodec(tree)

	tests := []struct {
		name   string
		target Target
	}{
		{"missing anchor", Target{AnchorID: "sec_9", Selectors: []Selector{TextQuoteSelector{Exact: "short"}}}},
		{"quote gone", Target{AnchorID: "sec_1", Selectors: []Selector{TextQuoteSelector{Exact: "long"}}}},
		{"position past end", Target{AnchorID: "sec_1", Selectors: []Selector{TextPositionSelector{Start: 2, End: 40}}}},
		{"position mismatch and quote gone", Target{AnchorID: "sec_1", Selectors: []Selector{
			TextPositionSelector{Start: 0, End: 5},
			TextQuoteSelector{Exact: "longer"},
		}}},
		{"inverted position", Target{AnchorID: "sec_1", Selectors: []Selector{TextPositionSelector{Start: 4, End: 1}}}},
		{"inverted position with quote", Target{AnchorID: "sec_1", Selectors: []Selector{
			TextPositionSelector{Start: 4, End: 1},
			TextQuoteSelector{Exact: "hor"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := codec.Decode(tt.target); ok {
				t.Error("expected decode to fail")
			}
			if _, ok := codec.SelectorsToSpan(tree.FindByID("sec_1"), tt.target.Selectors); ok && tt.target.AnchorID == "sec_1" {
				t.Error("expected selectors not to resolve")
			}
		})
	}
}

func TestCodec_EmptyQuoteClampsToShrunkenText(t *testing.T) {
	tree := parse(t, `<doc><section eId="s"><p>abc</p></section></doc>`)
	codec := NewCodec(tree)

	target := Target{AnchorID: "s", Selectors: []Selector{
		TextPositionSelector{Start: 10, End: 10},
		TextQuoteSelector{Exact: ""},
	}}
	res, ok := codec.Resolve(target)
	if !ok {
		t.Fatal("expected collapsed target to resolve")
	}
	if res.Strategy != StrategyQuote {
		t.Errorf("expected quote strategy, got %q", res.Strategy)
	}
	if res.Span.Start.Offset != 3 || res.Span.End.Offset != 3 {
		t.Errorf("expected collapsed span at end (3), got %+v", res.Span)
	}
}

func TestCodec_NoContext(t *testing.T) {
	tree := parse(t, `<doc><section eId="s"><p>abcdef</p></section></doc>`)
	codec := NewCodec(tree, WithContextLength(0))

	target, err := codec.Encode(textSpan(firstText(tree.Root()), 2, 4), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, _ := target.Quote()
	if q != (TextQuoteSelector{Exact: "cd"}) {
		t.Errorf("expected bare quote, got %+v", q)
	}
}
