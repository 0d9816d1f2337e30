package renumber

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docanchor/internal/doctree"
)

// DefaultPrefixes maps element tags to id prefixes. Elements with other tags
// are never given an id.
var DefaultPrefixes = map[string]string{
	"section":   "sec",
	"chapter":   "chp",
	"part":      "part",
	"article":   "art",
	"paragraph": "para",
	"p":         "para",
	"heading":   "hdr",
	"num":       "num",
	"list":      "list",
	"item":      "item",
	"table":     "table",
	"tr":        "row",
	"point":     "point",
	"pre":       "pre",
}

// Renumberer assigns ids of the form "<scope>.<prefix>_<n>", where scope is
// the id of the nearest identified ancestor.
//
// By default existing ids are kept and only missing or duplicated ids are
// assigned, so anchors into untouched content stay valid. With Full set,
// every numbered element below the scope is rewritten by position.
type Renumberer struct {
	Full bool

	prefixes map[string]string
	foreign  doctree.Predicate
}

// New creates a renumberer. A nil prefixes map selects DefaultPrefixes; foreign
// subtrees are left untouched.
func New(prefixes map[string]string, foreign doctree.Predicate) *Renumberer {
	if prefixes == nil {
		prefixes = DefaultPrefixes
	}
	return &Renumberer{prefixes: prefixes, foreign: foreign}
}

// Renumber rewrites ids below the element identified by scopeHint, or below
// the root when the hint is empty or no longer resolves. The scope element's
// own id is kept. Only changed ids produce mutation records.
func (r *Renumberer) Renumber(tree *doctree.Tree, scopeHint string) {
	scope := tree.Root()
	if scopeHint != "" {
		if n, _ := tree.FindByScopedID(scopeHint); n != nil {
			scope = n
		}
	}
	if scope == nil {
		return
	}

	w := &walker{r: r, tree: tree, owner: make(map[string]*doctree.Node)}
	tree.Document().Walk(func(n *doctree.Node) bool {
		if id := tree.ID(n); id != "" {
			if _, ok := w.owner[id]; !ok {
				w.owner[id] = n
			}
		}
		return true
	})
	w.number(scope, tree.ID(scope), map[string]int{})
}

type walker struct {
	r     *Renumberer
	tree  *doctree.Tree
	owner map[string]*doctree.Node // first holder of each id in document order
}

func (w *walker) number(n *doctree.Node, scopeID string, counters map[string]int) {
	for _, c := range n.Children {
		if c.Type != doctree.ElementNode || (w.r.foreign != nil && w.r.foreign(c)) {
			continue
		}
		current := w.tree.ID(c)
		prefix, numbered := w.r.prefixes[localName(c.Tag)]

		switch {
		case numbered && (w.r.Full || current == "" || w.owner[current] != c):
			id := w.next(scopeID, prefix, counters, c)
			w.tree.SetAttr(c, w.tree.IDAttribute(), id)
			w.number(c, id, map[string]int{})
		case current != "":
			w.number(c, current, map[string]int{})
		default:
			// Unnumbered wrapper: its children share the enclosing scope.
			w.number(c, scopeID, counters)
		}
	}
}

// next returns the next id for prefix within scopeID. Outside Full mode ids
// already held by another element are skipped.
func (w *walker) next(scopeID, prefix string, counters map[string]int, n *doctree.Node) string {
	for {
		counters[prefix]++
		id := fmt.Sprintf("%s_%d", prefix, counters[prefix])
		if scopeID != "" {
			id = scopeID + "." + id
		}
		if w.r.Full {
			return id
		}
		if owner, taken := w.owner[id]; !taken || owner == n {
			w.owner[id] = n
			return id
		}
	}
}

func localName(tag string) string {
	if i := strings.LastIndexByte(tag, ':'); i >= 0 {
		return tag[i+1:]
	}
	return tag
}
