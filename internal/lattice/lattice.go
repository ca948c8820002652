// Package lattice implements the per-field join-semilattice merge
// algebra (spec §4.2): a commutative, associative, idempotent merge for
// each mutable field, specified independently of the store so it can be
// property-tested against an in-memory mock in any order.
package lattice

import "github.com/opencausal/latticegraphd/internal/types"

// FieldConflict reports that two writers disagree on a first-write-wins
// field. It carries no winner: the caller keeps the existing value.
type FieldConflict struct {
	Field    string
	Existing string
	Proposed string
}

// MergeIdentityField applies the first-write-wins rule used for Node.Type
// and Node.Label. existing is the stored value (from a prior write, if
// any); ok reports whether existing was actually present. If ok and the
// values differ, the merge is a conflict: stored wins and the mismatch is
// reported as a FieldConflict.
func MergeIdentityField(field, existing string, existingOK bool, proposed string) (string, *FieldConflict) {
	if !existingOK {
		return proposed, nil
	}
	if existing != proposed {
		return existing, &FieldConflict{Field: field, Existing: existing, Proposed: proposed}
	}
	return existing, nil
}

// MergeHypothetical applies the monotone-boolean rule: hypothetical can
// only ever move from true to false, never back (spec §4.2, table row
// "hypothetical"). It never conflicts.
func MergeHypothetical(stored, proposed bool) bool {
	return stored && proposed
}

// MergeProvenance merges a single proposed record into an existing
// provenance set, keyed on (source, trigger) with first-timestamp-wins
// (spec §3, §4.2). It returns the resulting set and whether the set grew
// (a genuinely new record was appended).
func MergeProvenance(existing []types.Provenance, proposed types.Provenance) ([]types.Provenance, bool) {
	key := proposed.Key()
	for _, p := range existing {
		if p.Key() == key {
			return existing, false
		}
	}
	merged := make([]types.Provenance, len(existing), len(existing)+1)
	copy(merged, existing)
	merged = append(merged, proposed)
	return merged, true
}

// ProvenanceSet merges two whole provenance sets. Records are taken in
// order, a before b, and for each (source, trigger) key the first one
// met is kept, so when both sets carry a key the record from a wins.
// It gives the same result as merging b's records into a one at a time
// with MergeProvenance; the resulting key set is independent of merge
// order, the kept timestamp is not.
func ProvenanceSet(a, b []types.Provenance) []types.Provenance {
	merged := append([]types.Provenance(nil), a...)
	for _, p := range b {
		merged, _ = MergeProvenance(merged, p)
	}
	return merged
}

// NodeOutcome classifies the result of merging one proposed node into
// the store (spec §4.4 step 4).
type NodeOutcome int

const (
	NodeCreated NodeOutcome = iota
	NodeMerged
	NodeConflict
)

// EdgeOutcome classifies the result of merging one proposed edge into
// the store. Edges have no type/label conflict possibility because the
// edge type is part of identity.
type EdgeOutcome int

const (
	EdgeCreated EdgeOutcome = iota
	EdgeMerged
)

// TombstoneOutcome classifies the result of merging one tombstone
// request (spec §4.4 "Tombstone write").
type TombstoneOutcome int

const (
	TombstoneApplied TombstoneOutcome = iota
	TombstoneAlreadyTombstoned
	TombstoneUnmatched
)
