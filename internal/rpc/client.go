package rpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/opencausal/latticegraphd/internal/types"
)

// errUnclassified is the wrapped error for a rejected request that
// carries none of the three store sentinel classes (bad args, unknown
// operation) — a permanent failure distinct from all three but with no
// sentinel of its own to branch on.
var errUnclassified = errors.New("request rejected")

// sentinelForClass maps a Response.ErrorClass back onto the sentinel
// the server classified it from, so the client can use errors.Is the
// same way a direct Store caller would (spec §7).
func sentinelForClass(class string) error {
	switch class {
	case ErrorClassNotFound:
		return ErrNotFound
	case ErrorClassTransient:
		return ErrTransient
	case ErrorClassFatal:
		return ErrFatal
	default:
		return errUnclassified
	}
}

// Client is a typed connection to one daemon, reachable over a Unix
// socket or TCP (SPEC_FULL §4.9).
type Client struct {
	conn    net.Conn
	reader  *bufio.Scanner
	timeout time.Duration
	token   string
}

// Dial connects to the daemon's Unix socket.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := dialRPC(socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return newClient(conn, timeout, ""), nil
}

// DialTCP connects to the daemon over TCP, authenticating with token.
func DialTCP(addr, token string, timeout time.Duration) (*Client, error) {
	conn, err := dialTCP(addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	return newClient(conn, timeout, token), nil
}

func newClient(conn net.Conn, timeout time.Duration, token string) *Client {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Client{conn: conn, reader: scanner, timeout: timeout, token: token}
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// call sends req and waits for one Response line.
func (c *Client) call(op string, args, out any) error {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	req := Request{Operation: op, Args: argsJSON, Token: c.token, RequestID: uuid.NewString()}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if c.timeout > 0 {
		c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if _, err := c.conn.Write(append(reqJSON, '\n')); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	if !c.reader.Scan() {
		if err := c.reader.Err(); err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		return fmt.Errorf("read response: connection closed")
	}
	var resp Response
	if err := json.Unmarshal(c.reader.Bytes(), &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("%s: %w", resp.Error, sentinelForClass(resp.ErrorClass))
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}

// Ping checks daemon liveness.
func (c *Client) Ping() error {
	var data HealthData
	return c.call(OpPing, struct{}{}, &data)
}

// MergeHypothesis submits a delta and returns its classification.
func (c *Client) MergeHypothesis(nodes []types.Node, edges []types.Edge, prov types.Provenance) (MergeHypothesisData, error) {
	var data MergeHypothesisData
	err := c.call(OpMergeHypothesis, MergeHypothesisArgs{Nodes: nodes, Edges: edges, Provenance: prov}, &data)
	return data, err
}

// CreateIncident registers an incident's universe anchor.
func (c *Client) CreateIncident(incidentID string) (IncidentContextData, error) {
	var data IncidentContextData
	err := c.call(OpCreateIncident, CreateIncidentArgs{IncidentID: incidentID}, &data)
	return data, err
}

// GetIncidentContext fetches an incident's universe anchor.
func (c *Client) GetIncidentContext(incidentID string) (IncidentContextData, error) {
	var data IncidentContextData
	err := c.call(OpGetIncidentContext, GetIncidentContextArgs{IncidentID: incidentID}, &data)
	return data, err
}

// MergeNodeTombstones eliminates nodeIDs from incidentID's live view.
func (c *Client) MergeNodeTombstones(incidentID string, nodeIDs []string, prov types.Provenance) (TombstoneData, error) {
	var data TombstoneData
	err := c.call(OpMergeNodeTombstones, TombstoneArgs{IncidentID: incidentID, NodeIDs: nodeIDs, Provenance: prov}, &data)
	return data, err
}

// MergeEdgeTombstones eliminates edges from incidentID's live view.
func (c *Client) MergeEdgeTombstones(incidentID string, keys []types.EdgeKey, prov types.Provenance) (TombstoneData, error) {
	var data TombstoneData
	err := c.call(OpMergeEdgeTombstones, TombstoneArgs{IncidentID: incidentID, EdgeKeys: keys, Provenance: prov}, &data)
	return data, err
}

// GetLiveView fetches Main - Tombstones for incidentID.
func (c *Client) GetLiveView(incidentID string) (LiveViewData, error) {
	var data LiveViewData
	err := c.call(OpGetLiveView, IncidentScopedArgs{IncidentID: incidentID}, &data)
	return data, err
}

// GetTombstones fetches the tombstone sets owned by incidentID.
func (c *Client) GetTombstones(incidentID string) (TombstonesData, error) {
	var data TombstonesData
	err := c.call(OpGetTombstones, IncidentScopedArgs{IncidentID: incidentID}, &data)
	return data, err
}

// GetMainGraph fetches the full hypothesis graph.
func (c *Client) GetMainGraph() (MainGraphData, error) {
	var data MainGraphData
	err := c.call(OpGetMainGraph, struct{}{}, &data)
	return data, err
}

// GetNode fetches one node by id.
func (c *Client) GetNode(id string) (GetNodeData, error) {
	var data GetNodeData
	err := c.call(OpGetNode, GetNodeArgs{ID: id}, &data)
	return data, err
}

// GetEdge fetches one edge by key.
func (c *Client) GetEdge(key types.EdgeKey) (GetEdgeData, error) {
	var data GetEdgeData
	err := c.call(OpGetEdge, GetEdgeArgs{Key: key}, &data)
	return data, err
}

// Metrics fetches the daemon's outcome counters.
func (c *Client) Metrics() (MetricsData, error) {
	var data MetricsData
	err := c.call(OpMetrics, struct{}{}, &data)
	return data, err
}
