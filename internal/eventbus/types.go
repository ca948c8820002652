package eventbus

import "github.com/opencausal/latticegraphd/internal/types"

// EventType classifies one mutation observation (SPEC_FULL §4.10). These
// are purely descriptive: nothing on the bus ever feeds back into a
// transaction's outcome.
type EventType string

const (
	EventNodeCreated          EventType = "node_created"
	EventNodeMerged           EventType = "node_merged"
	EventNodeConflict         EventType = "node_conflict"
	EventEdgeCreated          EventType = "edge_created"
	EventEdgeMerged           EventType = "edge_merged"
	EventIncidentCreated      EventType = "incident_created"
	EventNodeTombstoneApplied EventType = "node_tombstone_applied"
	EventEdgeTombstoneApplied EventType = "edge_tombstone_applied"
)

// Event is one mutation observation, published after its transaction
// has already committed.
type Event struct {
	Type       EventType        `json:"type"`
	IncidentID string           `json:"incident_id,omitempty"`
	NodeID     string           `json:"node_id,omitempty"`
	EdgeKey    *types.EdgeKey   `json:"edge_key,omitempty"`
	Provenance types.Provenance `json:"provenance"`
}

// Result aggregates handler responses for an event. Mutation events are
// observational (SPEC_FULL §4.10): handlers may record what they saw,
// but nothing in Result can undo or delay the commit that already
// happened.
type Result struct {
	Warnings []string `json:"warnings,omitempty"`
}
