// Package types defines the data model of the causal-hypothesis lattice
// graph: nodes, edges, provenance, incidents, and tombstones. These are
// plain value types shared by the schema, lattice, delta, store, and rpc
// packages so none of them need to import one another's internals.
package types

import "time"

// NodeType enumerates the permitted node kinds (spec §3).
type NodeType string

const (
	NodeSERVICE        NodeType = "SERVICE"
	NodeDEPENDENCY      NodeType = "DEPENDENCY"
	NodeINFRASTRUCTURE NodeType = "INFRASTRUCTURE"
	NodeMECHANISM      NodeType = "MECHANISM"
)

// ValidNodeTypes is the permitted enum for Node.Type.
var ValidNodeTypes = map[NodeType]bool{
	NodeSERVICE:        true,
	NodeDEPENDENCY:     true,
	NodeINFRASTRUCTURE: true,
	NodeMECHANISM:      true,
}

// EdgeType enumerates the permitted edge kinds (spec §3).
type EdgeType string

const (
	EdgeDEPENDS_ON    EdgeType = "DEPENDS_ON"
	EdgePROPAGATES_TO EdgeType = "PROPAGATES_TO"
	EdgeMANIFESTS_AS  EdgeType = "MANIFESTS_AS"
)

// ValidEdgeTypes is the permitted enum for Edge.Type.
var ValidEdgeTypes = map[EdgeType]bool{
	EdgeDEPENDS_ON:    true,
	EdgePROPAGATES_TO: true,
	EdgeMANIFESTS_AS:  true,
}

// selfLoopForbidden records, per edge type, whether source == target is
// rejected. None currently forbid it; the hook is reserved per spec §4.1.
var selfLoopForbidden = map[EdgeType]bool{}

// ForbidsSelfLoop reports whether et rejects source == target edges.
func ForbidsSelfLoop(et EdgeType) bool {
	return selfLoopForbidden[et]
}

// Provenance is a provenance record. Its logical identity is the pair
// (Source, Trigger); Timestamp is informational only and never
// participates in equality or deduplication (spec §3).
type Provenance struct {
	Source    string    `json:"source"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the "source|trigger" identity used for membership checks
// and as the persisted provenance_keys encoding (spec §6, §9).
func (p Provenance) Key() string {
	return p.Source + "|" + p.Trigger
}

// ProvenanceSeparator is the character reserved to join Source and
// Trigger in the persisted key encoding. Validation rejects it inside
// either field so the key remains unambiguous (spec §9).
const ProvenanceSeparator = '|'

// Node is a hypothesis graph node (spec §3).
type Node struct {
	ID           string       `json:"id"`
	Type         NodeType     `json:"type"`
	Label        string       `json:"label"`
	Hypothetical bool         `json:"hypothetical"`
	Provenance   []Provenance `json:"provenance"`
}

// EdgeKey is the immutable identity triple of an Edge (spec §3).
type EdgeKey struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// Edge is a hypothesis graph edge (spec §3).
type Edge struct {
	EdgeKey
	Provenance []Provenance `json:"provenance"`
}

// Incident anchors a universe identity for a set of tombstones (spec §3).
type Incident struct {
	IncidentID string    `json:"incident_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NodeTombstone eliminates a node for a given incident (spec §3).
type NodeTombstone struct {
	IncidentID string     `json:"incident_id"`
	NodeID     string     `json:"node_id"`
	Provenance Provenance `json:"provenance"`
	Unmatched  bool       `json:"unmatched"`
}

// EdgeTombstone eliminates an edge for a given incident (spec §3).
type EdgeTombstone struct {
	IncidentID string     `json:"incident_id"`
	EdgeKey    EdgeKey    `json:"edge_key"`
	Provenance Provenance `json:"provenance"`
}

// Delta bundles an unordered collection of nodes and edges sharing one
// provenance record, submitted to MergeHypothesis (spec §4.3).
type Delta struct {
	Nodes      []Node       `json:"nodes"`
	Edges      []Edge       `json:"edges"`
	Provenance Provenance   `json:"provenance"`
}

// Rejection reports a syntactically invalid item and why it was
// rejected before any I/O (spec §4.1, §4.3).
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Conflict reports a first-write-wins disagreement on an immutable
// field (spec §4.2).
type Conflict struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	Existing string `json:"existing_value"`
	Proposed string `json:"proposed_value"`
}

// Rejection reasons (spec §4.1).
const (
	ReasonEmptyID            = "empty identity field"
	ReasonInvalidType        = "type not in permitted enum"
	ReasonEmptyLabel         = "label empty"
	ReasonEmptyProvenance    = "provenance record has empty source or trigger"
	ReasonSeparatorInField   = "source or trigger contains the reserved provenance separator"
	ReasonSelfLoopForbidden  = "edge type forbids self-loops"
)
