package mutation

import "github.com/dgallion1/docanchor/internal/doctree"

// Impact is how a mutation affects a watched node.
type Impact string

const (
	None     Impact = ""
	Changed  Impact = "changed"
	Removed  Impact = "removed"
	Replaced Impact = "replaced"
)

// Classify reports the impact of rec on watched. Mutations elsewhere in the
// tree yield None so unrelated attribute and text edits cause no reactive work.
func Classify(rec doctree.MutationRecord, watched *doctree.Node) Impact {
	if watched == nil {
		return None
	}
	if rec.Kind == doctree.KindChildList {
		removed := contains(rec.RemovedNodes, watched)
		if removed && len(rec.RemovedNodes) == 1 && len(rec.AddedNodes) == 0 {
			return Removed
		}
		if removed && len(rec.AddedNodes) > 0 {
			return Replaced
		}
		if rec.Tree != nil && !rec.Tree.Contains(watched) {
			return Removed
		}
	}
	if rec.Target != nil && watched.Contains(rec.Target) {
		return Changed
	}
	return None
}

// ClassifyAll folds a batch of records into the strongest impact on watched.
// Removed and Replaced end the scan, since later records can no longer
// describe the same node.
func ClassifyAll(recs []doctree.MutationRecord, watched *doctree.Node) Impact {
	impact := None
	for _, rec := range recs {
		switch i := Classify(rec, watched); i {
		case Removed, Replaced:
			return i
		case Changed:
			impact = Changed
		}
	}
	return impact
}

// ContentRecords drops child-list records whose added and removed nodes are
// all foreign, for consumers that only care about document content.
func ContentRecords(recs []doctree.MutationRecord, foreign doctree.Predicate) []doctree.MutationRecord {
	if foreign == nil {
		return recs
	}
	out := make([]doctree.MutationRecord, 0, len(recs))
	for _, rec := range recs {
		if insideForeign(rec.Target, foreign) {
			continue
		}
		if rec.Kind == doctree.KindChildList && allForeign(rec.AddedNodes, foreign) && allForeign(rec.RemovedNodes, foreign) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func insideForeign(n *doctree.Node, foreign doctree.Predicate) bool {
	for p := n; p != nil; p = p.Parent {
		if foreign(p) {
			return true
		}
	}
	return false
}

func allForeign(nodes []*doctree.Node, foreign doctree.Predicate) bool {
	for _, n := range nodes {
		if !foreign(n) {
			return false
		}
	}
	return true
}

func contains(nodes []*doctree.Node, n *doctree.Node) bool {
	for _, c := range nodes {
		if c == n {
			return true
		}
	}
	return false
}
