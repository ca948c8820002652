// Package schema implements Identity & Schema: the total, purely
// syntactic predicates that decide whether a proposed node, edge, or
// provenance record is well-formed. Nothing here consults the store
// (spec §4.1).
package schema

import (
	"strings"

	"github.com/opencausal/latticegraphd/internal/types"
)

// ValidateNode returns a Rejection if n is malformed, or nil if n is OK.
func ValidateNode(n types.Node) *types.Rejection {
	if n.ID == "" {
		return &types.Rejection{ID: n.ID, Reason: types.ReasonEmptyID}
	}
	if !types.ValidNodeTypes[n.Type] {
		return &types.Rejection{ID: n.ID, Reason: types.ReasonInvalidType}
	}
	if n.Label == "" {
		return &types.Rejection{ID: n.ID, Reason: types.ReasonEmptyLabel}
	}
	for _, p := range n.Provenance {
		if rej := validateProvenance(n.ID, p); rej != nil {
			return rej
		}
	}
	return nil
}

// ValidateEdge returns a Rejection if e is malformed, or nil if e is OK.
// The rejection ID is the edge's "source->target:type" description since
// edges have no single scalar identity field.
func ValidateEdge(e types.Edge) *types.Rejection {
	id := edgeDescription(e.EdgeKey)
	if e.Source == "" || e.Target == "" {
		return &types.Rejection{ID: id, Reason: types.ReasonEmptyID}
	}
	if !types.ValidEdgeTypes[e.Type] {
		return &types.Rejection{ID: id, Reason: types.ReasonInvalidType}
	}
	if e.Source == e.Target && types.ForbidsSelfLoop(e.Type) {
		return &types.Rejection{ID: id, Reason: types.ReasonSelfLoopForbidden}
	}
	for _, p := range e.Provenance {
		if rej := validateProvenance(id, p); rej != nil {
			return rej
		}
	}
	return nil
}

// ValidateProvenance exposes the provenance-record predicate on its own,
// used by the delta validator to check the one record shared across an
// entire delta before it checks per-item fields.
func ValidateProvenance(p types.Provenance) *types.Rejection {
	return validateProvenance("", p)
}

func validateProvenance(id string, p types.Provenance) *types.Rejection {
	if p.Source == "" || p.Trigger == "" {
		return &types.Rejection{ID: id, Reason: types.ReasonEmptyProvenance}
	}
	if strings.ContainsRune(p.Source, types.ProvenanceSeparator) ||
		strings.ContainsRune(p.Trigger, types.ProvenanceSeparator) {
		return &types.Rejection{ID: id, Reason: types.ReasonSeparatorInField}
	}
	return nil
}

func edgeDescription(k types.EdgeKey) string {
	return k.Source + "->" + k.Target + ":" + string(k.Type)
}
