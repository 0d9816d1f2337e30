package anchor

import (
	"errors"
	"log/slog"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// DefaultContextLength is how many runes of prefix/suffix context a quote
// selector carries.
const DefaultContextLength = 32

// Strategy names the selector strategy that located a span.
type Strategy string

const (
	StrategyPosition Strategy = "position"
	StrategyQuote    Strategy = "quote"
	StrategyWhole    Strategy = "whole"
)

// Resolution is a decoded target.
type Resolution struct {
	Span     Span
	Anchor   *doctree.Node
	Strategy Strategy
	// AnchorID is the id that actually matched, which differs from the
	// target's id when a dot-scoped fallback was used.
	AnchorID string
}

// Codec converts spans in a live tree to durable Targets and back.
type Codec struct {
	tree       *doctree.Tree
	foreign    doctree.Predicate
	scanner    Scanner
	contextLen int
	log        *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithForeign sets the predicate identifying overlay nodes.
func WithForeign(p doctree.Predicate) Option {
	return func(c *Codec) { c.foreign = p }
}

// WithContextLength sets the quote prefix/suffix length. Zero disables context.
func WithContextLength(n int) Option {
	return func(c *Codec) {
		if n >= 0 {
			c.contextLen = n
		}
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCodec creates a codec for tree.
func NewCodec(tree *doctree.Tree, opts ...Option) *Codec {
	c := &Codec{
		tree:       tree,
		foreign:    doctree.DefaultForeign,
		contextLen: DefaultContextLength,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(c)
	}
	c.scanner = Scanner{Foreign: c.foreign}
	return c
}

// Scanner returns the offset scanner used by the codec.
func (c *Codec) Scanner() Scanner { return c.scanner }

// Encode describes span as a Target anchored at the nearest identified
// ancestor of the span. The anchor must be root or lie inside root; a nil
// root permits the whole tree.
func (c *Codec) Encode(span Span, root *doctree.Node) (Target, error) {
	if span.Start.Node == nil || span.End.Node == nil {
		return Target{}, ErrInvalidSpan
	}
	common := commonAncestor(span.Start.Node, span.End.Node)
	if common == nil {
		return Target{}, ErrInvalidSpan
	}
	anchor := c.tree.NearestID(common)
	if anchor == nil {
		return Target{}, ErrNoAnchor
	}
	if root == nil {
		root = c.tree.Document()
	}
	if !root.Contains(anchor) {
		return Target{}, ErrOutsideScope
	}

	startPin := c.pin(span.Start)
	endPin := c.pin(span.End)

	type encoded struct {
		start, end int
		text       []rune
	}
	enc, err := WithoutForeign(anchor, c.foreign, func() (encoded, error) {
		start, err := c.scanner.Offset(anchor, startPin.point())
		if err != nil {
			return encoded{}, err
		}
		end, err := c.scanner.Offset(anchor, endPin.point())
		if err != nil {
			return encoded{}, err
		}
		if end < start {
			return encoded{}, ErrInvalidSpan
		}
		return encoded{start: start, end: end, text: []rune(c.scanner.Text(anchor))}, nil
	})
	if err != nil {
		return Target{}, err
	}

	quote := TextQuoteSelector{Exact: string(enc.text[enc.start:enc.end])}
	if c.contextLen > 0 {
		quote.Prefix = string(enc.text[max(0, enc.start-c.contextLen):enc.start])
		quote.Suffix = string(enc.text[enc.end:min(len(enc.text), enc.end+c.contextLen)])
	}
	return Target{
		AnchorID: c.tree.ID(anchor),
		Selectors: []Selector{
			TextPositionSelector{Start: enc.start, End: enc.end},
			quote,
		},
	}, nil
}

// Decode resolves a target back into a live span. It reports false when the
// anchor no longer exists or no selector strategy matches.
func (c *Codec) Decode(t Target) (Span, bool) {
	res, ok := c.Resolve(t)
	return res.Span, ok
}

// Resolve is Decode with details about how the span was found.
func (c *Codec) Resolve(t Target) (Resolution, bool) {
	anchor, matched := c.tree.FindByScopedID(t.AnchorID)
	if anchor == nil {
		c.log.Debug("anchor not found", "anchor_id", t.AnchorID)
		return Resolution{}, false
	}
	if matched != t.AnchorID {
		c.log.Debug("anchor resolved through scoped fallback", "anchor_id", t.AnchorID, "matched", matched)
	}

	if len(t.Selectors) == 0 {
		return Resolution{
			Span: Span{
				Start: Point{Node: anchor, Offset: 0},
				End:   Point{Node: anchor, Offset: len(anchor.Children)},
			},
			Anchor:   anchor,
			Strategy: StrategyWhole,
			AnchorID: matched,
		}, true
	}

	span, strategy, ok := c.selectorsToSpan(anchor, t.Selectors)
	if !ok {
		c.log.Debug("no selector matched", "anchor_id", t.AnchorID)
		return Resolution{}, false
	}
	return Resolution{Span: span, Anchor: anchor, Strategy: strategy, AnchorID: matched}, true
}

// SelectorsToSpan locates selectors within anchor.
func (c *Codec) SelectorsToSpan(anchor *doctree.Node, selectors []Selector) (Span, bool) {
	span, _, ok := c.selectorsToSpan(anchor, selectors)
	return span, ok
}

var errQuoteMismatch = errors.New("position does not match quote")

func (c *Codec) selectorsToSpan(anchor *doctree.Node, selectors []Selector) (Span, Strategy, bool) {
	t := Target{Selectors: selectors}
	pos, hasPos := t.Position()
	quote, hasQuote := t.Quote()
	if hasPos && pos.Start > pos.End {
		c.log.Debug("inverted position selector", "start", pos.Start, "end", pos.End)
		return Span{}, "", false
	}

	if hasPos {
		span, err := WithoutForeign(anchor, c.foreign, func() (Span, error) {
			start, err := c.scanner.Resolve(anchor, pos.Start)
			if err != nil {
				return Span{}, err
			}
			end, err := c.scanner.Resolve(anchor, pos.End)
			if err != nil {
				return Span{}, err
			}
			if hasQuote {
				text := []rune(c.scanner.Text(anchor))
				if string(text[pos.Start:pos.End]) != quote.Exact {
					return Span{}, errQuoteMismatch
				}
			}
			return Span{Start: start, End: end}, nil
		})
		if err == nil {
			return span, StrategyPosition, true
		}
		c.log.Debug("position selector failed, trying quote", "error", err)
	}

	if !hasQuote {
		return Span{}, "", false
	}
	var hint *TextPositionSelector
	if hasPos {
		hint = &pos
	}
	span, err := WithoutForeign(anchor, c.foreign, func() (Span, error) {
		text := c.scanner.Text(anchor)
		start, end, ok := searchQuote(text, quote, hint)
		if !ok {
			return Span{}, errQuoteMismatch
		}
		s, err := c.scanner.Resolve(anchor, start)
		if err != nil {
			return Span{}, err
		}
		e, err := c.scanner.Resolve(anchor, end)
		if err != nil {
			return Span{}, err
		}
		return Span{Start: s, End: e}, nil
	})
	if err != nil {
		return Span{}, "", false
	}
	return span, StrategyQuote, true
}

// SpanText returns the visible text currently covered by span.
func (c *Codec) SpanText(span Span) (string, error) {
	if span.Start.Node == nil || span.End.Node == nil {
		return "", ErrInvalidSpan
	}
	root := commonAncestor(span.Start.Node, span.End.Node)
	if root == nil {
		return "", ErrInvalidSpan
	}
	start, err := c.scanner.Offset(root, span.Start)
	if err != nil {
		return "", err
	}
	end, err := c.scanner.Offset(root, span.End)
	if err != nil {
		return "", err
	}
	if end < start {
		return "", ErrInvalidSpan
	}
	text := []rune(c.scanner.Text(root))
	return string(text[start:end]), nil
}

// pin captures a point in a form that survives the guard detaching foreign
// siblings: element points are held as "before this child" rather than an index.
type pin struct {
	p      Point
	parent *doctree.Node
	before *doctree.Node
}

func (c *Codec) pin(p Point) pin {
	if p.Node.Type == doctree.TextNode || p.Offset < 0 {
		return pin{p: p}
	}
	var before *doctree.Node
	if p.Offset < len(p.Node.Children) {
		before = p.Node.Children[p.Offset]
	}
	for before != nil && c.foreign != nil && c.foreign(before) {
		before = before.NextSibling()
	}
	return pin{parent: p.Node, before: before}
}

func (pn pin) point() Point {
	if pn.parent == nil {
		return pn.p
	}
	if pn.before == nil {
		return Point{Node: pn.parent, Offset: len(pn.parent.Children)}
	}
	return Point{Node: pn.parent, Offset: pn.before.Index()}
}

func commonAncestor(a, b *doctree.Node) *doctree.Node {
	for p := a; p != nil; p = p.Parent {
		if p.Contains(b) {
			return p
		}
	}
	return nil
}
