// Package anchor enforces statutory citation guarantees on evidence packs:
// an expected citation that was retrieved anywhere in the candidate pool
// must survive truncation, and one that was never retrieved is reported with
// a precise reason.
package anchor

import (
	"log/slog"
	"sort"

	"github.com/shohbitgupta/contract-risk-agent/internal/evidence"
	"github.com/shohbitgupta/contract-risk-agent/internal/statute"
)

// Matches reports whether a document satisfies an anchor.
//
// The act must match under citation normalization. The section matches
// exactly, or by base-number fallback in one direction at a time: an anchor
// for "19" is satisfied by an indexed "19(4)" only when no exact "19"
// document exists in the pool, and an anchor for "19(4)" is satisfied by an
// indexed "19" only when no exact "19(4)" exists. Exact always wins.
func Matches(doc *statute.Document, a statute.Anchor) bool {
	return matchKind(doc, a) != matchNone
}

type kind int

const (
	matchNone kind = iota
	matchBase
	matchExact
)

// matchKind classifies how a document satisfies an anchor, if at all.
func matchKind(doc *statute.Document, a statute.Anchor) kind {
	if doc.ActOrRuleName == "" || doc.SectionOrRuleNumber == "" {
		return matchNone
	}
	if !statute.ActNamesMatch(doc.ActOrRuleName, a.ActOrRuleName) {
		return matchNone
	}

	docSection := statute.NormalizeSectionNumber(doc.SectionOrRuleNumber)
	wantSection := statute.NormalizeSectionNumber(a.SectionOrRuleNumber)
	if docSection == wantSection {
		return matchExact
	}

	docBase := statute.BaseNumberOf(doc.SectionOrRuleNumber)
	wantBase := a.BaseNumber
	if wantBase == "" {
		wantBase = statute.BaseNumberOf(a.SectionOrRuleNumber)
	}
	if docBase != "" && docBase == wantBase {
		return matchBase
	}
	return matchNone
}

// Lookup is the targeted citation probe used to distinguish "not indexed"
// from "indexed but not retrieved". store.Index satisfies it.
type Lookup interface {
	LookupAnchor(statute.Anchor) (*statute.Document, bool, bool)
}

// Enforce applies anchor enforcement to a pre-truncation pool.
//
// pool is the full merged-and-ranked candidate set, best first; topK is the
// final pack size. For each expected anchor, the best match anywhere in the
// pool is located (exact section matches beat base-number fallbacks)
// and, if it would fall outside topK, it is spliced in by evicting the
// lowest-ranked non-anchor item. Items never move above results that
// outranked them. Anchors with no match in the pool are probed against the
// indexes to report whether they were never indexed at all.
func Enforce(pool []*evidence.Evidence, anchors []statute.Anchor, topK int, indexes []Lookup, diag *evidence.Diagnostics) ([]*evidence.Evidence, []statute.Anchor, []statute.Anchor) {
	if topK <= 0 {
		topK = len(pool)
	}

	type match struct {
		anchor statute.Anchor
		pos    int // position in pool
	}

	var satisfied []statute.Anchor
	var unmatched []statute.Anchor
	var toForce []match

	claimed := make(map[int]bool)

	for _, a := range anchors {
		best := -1
		bestKind := matchNone
		for i, item := range pool {
			if claimed[i] {
				continue
			}
			k := matchKind(item.Document, a)
			if k == matchNone {
				continue
			}
			// Exact beats base fallback; among equals the higher rank wins,
			// except that a whole-section document beats a sibling
			// sub-section regardless of rank. "18" covers "18(2)"; "18(1)"
			// does not.
			if k > bestKind {
				best, bestKind = i, k
				if k == matchExact {
					break
				}
				continue
			}
			if k == matchBase && bestKind == matchBase &&
				pool[best].Document.IsSubSection() && !item.Document.IsSubSection() {
				best = i
			}
		}

		if best < 0 {
			unmatched = append(unmatched, a)
			diag.NotIndexedAnchors = appendNotIndexed(diag, a, indexes)
			continue
		}

		claimed[best] = true
		anchorCopy := a
		pool[best].MatchedAnchor = &anchorCopy
		satisfied = append(satisfied, a)
		markDuplicates(diag, a, indexes)
		if best >= topK {
			toForce = append(toForce, match{anchor: a, pos: best})
		}
	}

	result := pool
	if len(result) > topK {
		head := make([]*evidence.Evidence, topK)
		copy(head, result[:topK])
		result = head
	}

	if len(toForce) > 0 {
		// Splice best-ranked forced anchors first so relative order among
		// them mirrors pool order.
		sort.Slice(toForce, func(i, j int) bool { return toForce[i].pos < toForce[j].pos })

		for _, f := range toForce {
			forced := pool[f.pos]
			forced.SourceStage = evidence.StageForcedAnchor

			evict := lowestNonAnchor(result)
			if evict < 0 {
				// Every slot already holds an anchor; append rather than
				// drop a guaranteed citation.
				result = append(result, forced)
			} else {
				copy(result[evict:], result[evict+1:])
				result[len(result)-1] = forced
			}
			diag.ForcedAnchors++

			slog.Debug("anchor forced into pack",
				slog.String("anchor", f.anchor.String()),
				slog.Int("pool_rank", f.pos+1))
		}
	}

	return result, satisfied, unmatched
}

// lowestNonAnchor returns the index of the last item that does not carry a
// matched anchor, or -1 when every item does.
func lowestNonAnchor(items []*evidence.Evidence) int {
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].MatchedAnchor == nil {
			return i
		}
	}
	return -1
}

// markDuplicates sets the duplicate-citation warning when any index holds
// more than one document for the anchor.
func markDuplicates(diag *evidence.Diagnostics, a statute.Anchor, indexes []Lookup) {
	for _, idx := range indexes {
		if _, dup, found := idx.LookupAnchor(a); found && dup {
			diag.DuplicateAnchorWarning = true
			return
		}
	}
}

// appendNotIndexed probes the indexes for an unmatched anchor and records it
// as never-indexed when no corpus holds the citation. It also surfaces the
// duplicate-citation warning from the probe.
func appendNotIndexed(diag *evidence.Diagnostics, a statute.Anchor, indexes []Lookup) []string {
	for _, idx := range indexes {
		if _, dup, found := idx.LookupAnchor(a); found {
			if dup {
				diag.DuplicateAnchorWarning = true
			}
			// Indexed but not retrieved; leave it out of the list.
			return diag.NotIndexedAnchors
		}
	}
	return append(diag.NotIndexedAnchors, a.String())
}
