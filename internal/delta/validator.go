// Package delta implements the Delta Validator (spec §4.3): it applies
// Identity & Schema to an incoming hypothesis delta and partitions its
// items into accepted and rejected, before any I/O.
package delta

import (
	"github.com/opencausal/latticegraphd/internal/schema"
	"github.com/opencausal/latticegraphd/internal/types"
)

// Validated is the output of validating one Delta: accepted items carry
// the shared provenance record already attached, rejected items carry
// their identity and reason. A rejected item never appears in Accepted.
type Validated struct {
	Nodes    []types.Node
	Edges    []types.Edge
	Rejected []types.Rejection
}

// Validate partitions d.Nodes and d.Edges into accepted/rejected. The
// delta's shared provenance record is validated once, up front: if it is
// itself malformed every item in the delta is rejected for that reason,
// since no item could be legally written without it (an empty delta
// still validates fine and yields an empty Validated).
func Validate(d types.Delta) Validated {
	var out Validated

	if len(d.Nodes) == 0 && len(d.Edges) == 0 {
		return out
	}

	if rej := schema.ValidateProvenance(d.Provenance); rej != nil {
		for _, n := range d.Nodes {
			out.Rejected = append(out.Rejected, types.Rejection{ID: n.ID, Reason: rej.Reason})
		}
		for _, e := range d.Edges {
			out.Rejected = append(out.Rejected, types.Rejection{ID: edgeID(e.EdgeKey), Reason: rej.Reason})
		}
		return out
	}

	for _, n := range d.Nodes {
		n.Provenance = []types.Provenance{d.Provenance}
		if rej := schema.ValidateNode(n); rej != nil {
			out.Rejected = append(out.Rejected, *rej)
			continue
		}
		out.Nodes = append(out.Nodes, n)
	}

	for _, e := range d.Edges {
		e.Provenance = []types.Provenance{d.Provenance}
		if rej := schema.ValidateEdge(e); rej != nil {
			out.Rejected = append(out.Rejected, *rej)
			continue
		}
		out.Edges = append(out.Edges, e)
	}

	return out
}

func edgeID(k types.EdgeKey) string {
	return k.Source + "->" + k.Target + ":" + string(k.Type)
}
