package anchor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	TypeTextPosition = "TextPositionSelector"
	TypeTextQuote    = "TextQuoteSelector"
)

// Selector is one way of describing where in an anchor's text a span lies.
// It is either a TextPositionSelector or a TextQuoteSelector.
type Selector interface {
	SelectorType() string
}

// TextPositionSelector gives rune offsets into the anchor's visible text.
type TextPositionSelector struct {
	Start int `json:"start" validate:"gte=0"`
	End   int `json:"end" validate:"gte=0,gtefield=Start"`
}

func (TextPositionSelector) SelectorType() string { return TypeTextPosition }

// TextQuoteSelector is the literal selected text with optional context.
type TextQuoteSelector struct {
	Exact  string `json:"exact"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
}

func (TextQuoteSelector) SelectorType() string { return TypeTextQuote }

// Target is the persisted description of a text span. A target without
// selectors refers to the whole anchor element.
type Target struct {
	AnchorID  string     `json:"anchor_id" validate:"required"`
	Selectors []Selector `json:"selectors,omitempty"`
}

// Position returns the first position selector, if any.
func (t Target) Position() (TextPositionSelector, bool) {
	for _, s := range t.Selectors {
		if p, ok := s.(TextPositionSelector); ok {
			return p, true
		}
	}
	return TextPositionSelector{}, false
}

// Quote returns the first quote selector, if any.
func (t Target) Quote() (TextQuoteSelector, bool) {
	for _, s := range t.Selectors {
		if q, ok := s.(TextQuoteSelector); ok {
			return q, true
		}
	}
	return TextQuoteSelector{}, false
}

type wireSelector struct {
	Type   string  `json:"type"`
	Start  *int    `json:"start,omitempty"`
	End    *int    `json:"end,omitempty"`
	Exact  *string `json:"exact,omitempty"`
	Prefix string  `json:"prefix,omitempty"`
	Suffix string  `json:"suffix,omitempty"`
}

type wireTarget struct {
	AnchorID  string         `json:"anchor_id"`
	Selectors []wireSelector `json:"selectors,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	w := wireTarget{AnchorID: t.AnchorID}
	for _, s := range t.Selectors {
		switch sel := s.(type) {
		case TextPositionSelector:
			start, end := sel.Start, sel.End
			w.Selectors = append(w.Selectors, wireSelector{Type: TypeTextPosition, Start: &start, End: &end})
		case TextQuoteSelector:
			exact := sel.Exact
			w.Selectors = append(w.Selectors, wireSelector{Type: TypeTextQuote, Exact: &exact, Prefix: sel.Prefix, Suffix: sel.Suffix})
		default:
			return nil, fmt.Errorf("marshal target: unknown selector %T", s)
		}
	}
	return json.Marshal(w)
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var w wireTarget
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.AnchorID = w.AnchorID
	t.Selectors = nil
	for i, s := range w.Selectors {
		switch s.Type {
		case TypeTextPosition:
			if s.Start == nil || s.End == nil {
				return fmt.Errorf("selector %d: position selector needs start and end", i)
			}
			t.Selectors = append(t.Selectors, TextPositionSelector{Start: *s.Start, End: *s.End})
		case TypeTextQuote:
			if s.Exact == nil {
				return fmt.Errorf("selector %d: quote selector needs exact", i)
			}
			t.Selectors = append(t.Selectors, TextQuoteSelector{Exact: *s.Exact, Prefix: s.Prefix, Suffix: s.Suffix})
		default:
			return fmt.Errorf("selector %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks the target and each selector.
func (t Target) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	for i, s := range t.Selectors {
		if s == nil {
			return fmt.Errorf("invalid target: selector %d is nil", i)
		}
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("invalid target: selector %d: %w", i, err)
		}
	}
	return nil
}

var (
	// ErrInvalidSpan is returned when a span boundary is not a usable point
	// inside the anchor (missing node, outside the anchor, inside a foreign node).
	ErrInvalidSpan = errors.New("span boundary is not inside the anchor")
	// ErrOutsideScope is returned when the span's anchor is not within the
	// permitted root.
	ErrOutsideScope = errors.New("span escapes the permitted scope")
	// ErrNoAnchor is returned when no id-bearing ancestor exists for a span.
	ErrNoAnchor = errors.New("span has no identified ancestor")
)
