// Package store defines the transactional boundary between the Service
// Façade and the backing graph store (spec §4.4, §4.5): the Store
// interface, its structured per-item write results, and the sentinel
// error taxonomy every implementation (dolt, memory) shares.
package store

import (
	"context"

	"github.com/opencausal/latticegraphd/internal/types"
)

// MergeHypothesisResult is the classification of one accepted delta
// (spec §4.4, §6 MergeHypothesis).
type MergeHypothesisResult struct {
	CreatedIDs []string
	MergedIDs  []string
	Conflicts  []types.Conflict
}

// TombstoneResult is the classification of one tombstone write batch
// (spec §4.4 "Tombstone write", §6).
type TombstoneResult struct {
	AppliedIDs           []string
	AlreadyTombstonedIDs []string
	UnmatchedIDs         []string
}

// LiveView is the derived projection Main - Tombstones for one incident
// (spec §3 "Live view").
type LiveView struct {
	Nodes []types.Node
	Edges []types.Edge
}

// Tombstones is the pair of grow-only tombstone sets owned by one
// incident (spec §4.5 GetTombstones).
type Tombstones struct {
	NodeTombstones []types.NodeTombstone
	EdgeTombstones []types.EdgeTombstone
}

// IncidentContext is the tuple returned by GetIncidentContext (spec §4.5,
// §9 "Universe anchor"): the incident's identity, its creation moment
// (the anchor), and the id of the tombstone set it owns.
type IncidentContext struct {
	IncidentID        string
	UniverseAnchor    types.Incident
	EliminationSetID  string
}

// MainGraph is the full hypothesis graph without incident scoping (spec
// §4.5 GetMainGraph).
type MainGraph struct {
	Nodes []types.Node
	Edges []types.Edge
}

// Store is the transactional boundary the Service Façade uses. Every
// write method performs its whole batch as a single transaction (spec
// §4.4 Atomicity); read methods need no cross-query snapshot and may run
// their queries outside a transaction (spec §4.5). Implementations must honor the store constraints of spec §6:
// uniqueness on node id, on edge (source,target,type), on incident_id,
// on (incident_id,node_id), and on (incident_id,source,target,type).
type Store interface {
	// MergeHypothesis accepts already-validated nodes and edges sharing
	// one provenance record and merges them into the main graph.
	MergeHypothesis(ctx context.Context, nodes []types.Node, edges []types.Edge) (MergeHypothesisResult, error)

	// CreateIncident is an idempotent MERGE on incident_id (spec §4.4).
	CreateIncident(ctx context.Context, incidentID string) (types.Incident, error)

	// MergeNodeTombstones eliminates nodes for incidentID.
	MergeNodeTombstones(ctx context.Context, incidentID string, nodeIDs []string, prov types.Provenance) (TombstoneResult, error)

	// MergeEdgeTombstones eliminates edges for incidentID. UnmatchedIDs
	// is always empty in the returned result (spec §6).
	MergeEdgeTombstones(ctx context.Context, incidentID string, keys []types.EdgeKey, prov types.Provenance) (TombstoneResult, error)

	// GetLiveView computes Main - Tombstones for incidentID (spec §3,
	// §4.5).
	GetLiveView(ctx context.Context, incidentID string) (LiveView, error)

	// GetTombstones returns the tombstone sets owned by incidentID.
	GetTombstones(ctx context.Context, incidentID string) (Tombstones, error)

	// GetMainGraph returns the full hypothesis graph.
	GetMainGraph(ctx context.Context) (MainGraph, error)

	// GetIncidentContext returns incidentID's universe anchor and
	// elimination set id. It returns ErrNotFound if incidentID was never
	// created (spec §4.5, §7 item 3).
	GetIncidentContext(ctx context.Context, incidentID string) (IncidentContext, error)

	// GetNode and GetEdge are point reads supplementing GetMainGraph for
	// callers that only need one entity (spec SPEC_FULL §13).
	GetNode(ctx context.Context, id string) (types.Node, bool, error)
	GetEdge(ctx context.Context, key types.EdgeKey) (types.Edge, bool, error)

	// Close releases any resources (connections, handles) held by the
	// store.
	Close() error
}
