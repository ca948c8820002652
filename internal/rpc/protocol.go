// Package rpc implements the Service Façade transport (SPEC_FULL §4.9):
// a JSON request/response envelope carried over a Unix domain socket,
// an optional TLS-wrapped TCP listener, and an HTTP POST bridge, plus a
// typed Go client that dials the Unix socket or plain (non-TLS) TCP; the
// client does not speak TLS or the HTTP bridge.
package rpc

import (
	"encoding/json"
	"time"

	"github.com/opencausal/latticegraphd/internal/types"
)

// Operation names carried in Request.Operation.
const (
	OpMergeHypothesis      = "merge_hypothesis"
	OpCreateIncident       = "create_incident"
	OpGetIncidentContext   = "get_incident_context"
	OpMergeNodeTombstones  = "merge_node_tombstones"
	OpMergeEdgeTombstones  = "merge_edge_tombstones"
	OpGetLiveView          = "get_live_view"
	OpGetTombstones        = "get_tombstones"
	OpGetMainGraph         = "get_main_graph"
	OpGetNode              = "get_node"
	OpGetEdge              = "get_edge"
	OpPing                 = "ping"
	OpHealth               = "health"
	OpMetrics              = "metrics"
)

// Request is one call from client to daemon.
type Request struct {
	Operation string          `json:"operation"`
	Args      json.RawMessage `json:"args"`
	RequestID string          `json:"request_id,omitempty"`
	Token     string          `json:"token,omitempty"` // authenticates TCP connections
}

// Response is the daemon's reply. Success is false for both transport
// failures and rejected requests; Error carries the message either way.
// ErrorClass classifies a failure so the caller can tell a permanent
// rejection from one it should retry (spec §7).
type Response struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorClass string          `json:"error_class,omitempty"`
}

// Error classes carried in Response.ErrorClass. An empty class means
// the failure is a plain request rejection (bad args, unknown
// operation) with none of store's three sentinel classes.
const (
	ErrorClassNotFound  = "not_found"
	ErrorClassTransient = "transient"
	ErrorClassFatal     = "fatal"
)

// MergeHypothesisArgs is OpMergeHypothesis's argument shape: a delta
// sharing one provenance record, already built client-side (spec §4.1).
type MergeHypothesisArgs struct {
	Nodes      []types.Node      `json:"nodes,omitempty"`
	Edges      []types.Edge      `json:"edges,omitempty"`
	Provenance types.Provenance  `json:"provenance"`
}

// MergeHypothesisData is OpMergeHypothesis's result shape.
type MergeHypothesisData struct {
	CreatedIDs []string         `json:"created_ids,omitempty"`
	MergedIDs  []string         `json:"merged_ids,omitempty"`
	Rejected   []types.Rejection `json:"rejected,omitempty"`
	Conflicts  []types.Conflict `json:"conflicts,omitempty"`
}

// CreateIncidentArgs is OpCreateIncident's argument shape.
type CreateIncidentArgs struct {
	IncidentID string `json:"incident_id"`
}

// IncidentContextData is OpCreateIncident/OpGetIncidentContext's result
// shape.
type IncidentContextData struct {
	IncidentID       string    `json:"incident_id"`
	CreatedAt        time.Time `json:"created_at"`
	EliminationSetID string    `json:"elimination_set_id"`
}

// GetIncidentContextArgs is OpGetIncidentContext's argument shape.
type GetIncidentContextArgs struct {
	IncidentID string `json:"incident_id"`
}

// TombstoneArgs is the shared argument shape for OpMergeNodeTombstones
// and OpMergeEdgeTombstones.
type TombstoneArgs struct {
	IncidentID string           `json:"incident_id"`
	NodeIDs    []string         `json:"node_ids,omitempty"`
	EdgeKeys   []types.EdgeKey  `json:"edge_keys,omitempty"`
	Provenance types.Provenance `json:"provenance"`
}

// TombstoneData is the shared result shape for OpMergeNodeTombstones
// and OpMergeEdgeTombstones.
type TombstoneData struct {
	AppliedIDs           []string `json:"applied_ids,omitempty"`
	AlreadyTombstonedIDs []string `json:"already_tombstoned_ids,omitempty"`
	UnmatchedIDs         []string `json:"unmatched_ids,omitempty"`
}

// IncidentScopedArgs is the argument shape for OpGetLiveView and
// OpGetTombstones.
type IncidentScopedArgs struct {
	IncidentID string `json:"incident_id"`
}

// LiveViewData is OpGetLiveView's result shape.
type LiveViewData struct {
	Nodes []types.Node `json:"nodes"`
	Edges []types.Edge `json:"edges"`
}

// TombstonesData is OpGetTombstones's result shape.
type TombstonesData struct {
	NodeTombstones []types.NodeTombstone `json:"node_tombstones"`
	EdgeTombstones []types.EdgeTombstone `json:"edge_tombstones"`
}

// MainGraphData is OpGetMainGraph's result shape.
type MainGraphData struct {
	Nodes []types.Node `json:"nodes"`
	Edges []types.Edge `json:"edges"`
}

// GetNodeArgs is OpGetNode's argument shape.
type GetNodeArgs struct {
	ID string `json:"id"`
}

// GetNodeData is OpGetNode's result shape.
type GetNodeData struct {
	Node  types.Node `json:"node"`
	Found bool       `json:"found"`
}

// GetEdgeArgs is OpGetEdge's argument shape.
type GetEdgeArgs struct {
	Key types.EdgeKey `json:"key"`
}

// GetEdgeData is OpGetEdge's result shape.
type GetEdgeData struct {
	Edge  types.Edge `json:"edge"`
	Found bool       `json:"found"`
}

// HealthData is OpHealth's result shape.
type HealthData struct {
	Status string `json:"status"`
}

// MetricsData is OpMetrics's result shape: a snapshot of the in-process
// rpc.Counters, which are kept apart from the OTel metrics (SPEC_FULL
// §13).
type MetricsData struct {
	Uptime      time.Duration    `json:"uptime"`
	Outcomes    map[string]int64 `json:"outcomes"`
	RetryCount  int64            `json:"retry_count"`
}
