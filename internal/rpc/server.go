package rpc

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/opencausal/latticegraphd/internal/delta"
	"github.com/opencausal/latticegraphd/internal/eventbus"
	"github.com/opencausal/latticegraphd/internal/schema"
	"github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

// Server dispatches Requests arriving over Unix socket, TCP, or the
// HTTP bridge to a backing Store (SPEC_FULL §4.9).
type Server struct {
	mu        sync.RWMutex
	store     store.Store
	bus       *eventbus.Bus
	log       *slog.Logger
	tlsConfig *tls.Config
	tcpToken  string
	startedAt time.Time
	connLimit *semaphore.Weighted

	unixListener net.Listener
	tcpListener  net.Listener

	wg sync.WaitGroup
}

// NewServer wraps store s for RPC dispatch. Every commit is reported on
// an internal event bus (SPEC_FULL §4.10); callers that don't need
// observers can ignore Bus().
func NewServer(s store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	bus := eventbus.New(log)
	bus.Register(eventbus.NewLogHandler(log))
	return &Server{store: s, bus: bus, log: log, startedAt: time.Now()}
}

// Bus returns the server's mutation event bus, for registering
// additional observers before Serve/ServeTCP is called.
func (s *Server) Bus() *eventbus.Bus { return s.bus }

// SetTCPToken requires Token to match this value on every TCP request;
// the Unix socket is trusted by filesystem permissions instead
// (SPEC_FULL §10 listen.tcp_token).
func (s *Server) SetTCPToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tcpToken = token
}

// SetMaxConnections bounds how many connections acceptLoop admits at
// once across every listener (SPEC_FULL §10 max_connections); callers
// beyond the limit block in Accept until a slot frees up. A non-positive
// max disables the limit.
func (s *Server) SetMaxConnections(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if max > 0 {
		s.connLimit = semaphore.NewWeighted(int64(max))
	} else {
		s.connLimit = nil
	}
}

// Serve accepts connections on socketPath until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	l, err := listenRPC(socketPath)
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", socketPath, err)
	}
	s.mu.Lock()
	s.unixListener = l
	s.mu.Unlock()
	return s.acceptLoop(ctx, l, false)
}

// ServeTCP accepts connections on addr until ctx is cancelled. If a TLS
// config was set via SetTLSConfig, connections are wrapped in TLS.
func (s *Server) ServeTCP(ctx context.Context, addr string) error {
	l, err := listenTCP(addr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	s.mu.RLock()
	tlsConfig := s.tlsConfig
	s.mu.RUnlock()
	if tlsConfig != nil {
		l = tls.NewListener(l, tlsConfig)
	}
	s.mu.Lock()
	s.tcpListener = l
	s.mu.Unlock()
	return s.acceptLoop(ctx, l, true)
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener, requireToken bool) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	s.mu.RLock()
	limit := s.connLimit
	s.mu.RUnlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		if limit != nil {
			if err := limit.Acquire(ctx, 1); err != nil {
				conn.Close()
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if limit != nil {
				defer limit.Release(1)
			}
			s.handleConn(ctx, conn, requireToken)
		}()
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
// to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	ul, tl := s.unixListener, s.tcpListener
	s.mu.RUnlock()
	if ul != nil {
		ul.Close()
	}
	if tl != nil {
		tl.Close()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, requireToken bool) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			_ = enc.Encode(Response{Success: false, Error: fmt.Sprintf("malformed request: %v", err)})
			continue
		}
		if requireToken {
			s.mu.RLock()
			token := s.tcpToken
			s.mu.RUnlock()
			if token != "" && req.Token != token {
				_ = enc.Encode(Response{Success: false, Error: ErrUnauthorized.Error()})
				continue
			}
		}
		resp := s.Dispatch(ctx, req)
		if err := enc.Encode(resp); err != nil {
			s.log.Warn("encode response failed", "err", err)
			return
		}
	}
}

// Dispatch routes one Request to its handler and always returns a
// Response — transport errors are the caller's problem, not this
// method's (SPEC_FULL §4.9).
func (s *Server) Dispatch(ctx context.Context, req Request) Response {
	s.log.Info("rpc invocation", "operation", req.Operation, "request_id", req.RequestID)
	switch req.Operation {
	case OpPing:
		return ok(HealthData{Status: "pong"})
	case OpHealth:
		return ok(HealthData{Status: "ok"})
	case OpMetrics:
		return s.handleMetrics(ctx, req)
	case OpMergeHypothesis:
		return s.handleMergeHypothesis(ctx, req)
	case OpCreateIncident:
		return s.handleCreateIncident(ctx, req)
	case OpGetIncidentContext:
		return s.handleGetIncidentContext(ctx, req)
	case OpMergeNodeTombstones:
		return s.handleMergeNodeTombstones(ctx, req)
	case OpMergeEdgeTombstones:
		return s.handleMergeEdgeTombstones(ctx, req)
	case OpGetLiveView:
		return s.handleGetLiveView(ctx, req)
	case OpGetTombstones:
		return s.handleGetTombstones(ctx, req)
	case OpGetMainGraph:
		return s.handleGetMainGraph(ctx, req)
	case OpGetNode:
		return s.handleGetNode(ctx, req)
	case OpGetEdge:
		return s.handleGetEdge(ctx, req)
	default:
		return fail(fmt.Errorf("unknown operation %q", req.Operation))
	}
}

func (s *Server) handleMergeHypothesis(ctx context.Context, req Request) Response {
	var args MergeHypothesisArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	d := types.Delta{Nodes: args.Nodes, Edges: args.Edges, Provenance: args.Provenance}
	validated := delta.Validate(d)

	data := MergeHypothesisData{Rejected: validated.Rejected}
	if len(validated.Nodes) > 0 || len(validated.Edges) > 0 {
		res, err := s.store.MergeHypothesis(ctx, validated.Nodes, validated.Edges)
		if err != nil {
			return fail(err)
		}
		data.CreatedIDs = res.CreatedIDs
		data.MergedIDs = res.MergedIDs
		data.Conflicts = res.Conflicts
		Counters.Created.Add(int64(len(res.CreatedIDs)))
		Counters.Merged.Add(int64(len(res.MergedIDs)))
		Counters.Conflicts.Add(int64(len(res.Conflicts)))
		s.publishMergeEvents(ctx, args.Provenance, validated, res)
	}
	return ok(data)
}

func (s *Server) handleCreateIncident(ctx context.Context, req Request) Response {
	var args CreateIncidentArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	inc, err := s.store.CreateIncident(ctx, args.IncidentID)
	if err != nil {
		return fail(err)
	}
	s.bus.Dispatch(ctx, &eventbus.Event{Type: eventbus.EventIncidentCreated, IncidentID: inc.IncidentID})
	return ok(IncidentContextData{IncidentID: inc.IncidentID, CreatedAt: inc.CreatedAt, EliminationSetID: inc.IncidentID})
}

// publishMergeEvents fans out one observational event per accepted item
// (SPEC_FULL §4.10). Dispatch runs after the transaction already
// committed, so a slow or failing handler can never change res.
func (s *Server) publishMergeEvents(ctx context.Context, prov types.Provenance, validated delta.Validated, res store.MergeHypothesisResult) {
	created := toSet(res.CreatedIDs)
	conflicted := make(map[string]bool, len(res.Conflicts))
	for _, c := range res.Conflicts {
		conflicted[c.ID] = true
	}
	for _, n := range validated.Nodes {
		if conflicted[n.ID] {
			continue
		}
		evType := eventbus.EventNodeMerged
		if created[n.ID] {
			evType = eventbus.EventNodeCreated
		}
		s.bus.Dispatch(ctx, &eventbus.Event{Type: evType, NodeID: n.ID, Provenance: prov})
	}
	for _, c := range res.Conflicts {
		s.bus.Dispatch(ctx, &eventbus.Event{Type: eventbus.EventNodeConflict, NodeID: c.ID, Provenance: prov})
	}
	for _, e := range validated.Edges {
		key := e.EdgeKey
		id := key.Source + "->" + key.Target + ":" + string(key.Type)
		evType := eventbus.EventEdgeMerged
		if created[id] {
			evType = eventbus.EventEdgeCreated
		}
		s.bus.Dispatch(ctx, &eventbus.Event{Type: evType, EdgeKey: &key, Provenance: prov})
	}
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *Server) handleGetIncidentContext(ctx context.Context, req Request) Response {
	var args GetIncidentContextArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	ictx, err := s.store.GetIncidentContext(ctx, args.IncidentID)
	if err != nil {
		return fail(err)
	}
	return ok(IncidentContextData{
		IncidentID:       ictx.IncidentID,
		CreatedAt:        ictx.UniverseAnchor.CreatedAt,
		EliminationSetID: ictx.EliminationSetID,
	})
}

func (s *Server) handleMergeNodeTombstones(ctx context.Context, req Request) Response {
	var args TombstoneArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	if rej := schema.ValidateProvenance(args.Provenance); rej != nil {
		return fail(fmt.Errorf("invalid provenance: %s", rej.Reason))
	}
	res, err := s.store.MergeNodeTombstones(ctx, args.IncidentID, args.NodeIDs, args.Provenance)
	if err != nil {
		return fail(err)
	}
	for _, id := range res.AppliedIDs {
		s.bus.Dispatch(ctx, &eventbus.Event{Type: eventbus.EventNodeTombstoneApplied, IncidentID: args.IncidentID, NodeID: id, Provenance: args.Provenance})
	}
	return ok(TombstoneData{AppliedIDs: res.AppliedIDs, AlreadyTombstonedIDs: res.AlreadyTombstonedIDs, UnmatchedIDs: res.UnmatchedIDs})
}

func (s *Server) handleMergeEdgeTombstones(ctx context.Context, req Request) Response {
	var args TombstoneArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	if rej := schema.ValidateProvenance(args.Provenance); rej != nil {
		return fail(fmt.Errorf("invalid provenance: %s", rej.Reason))
	}
	res, err := s.store.MergeEdgeTombstones(ctx, args.IncidentID, args.EdgeKeys, args.Provenance)
	if err != nil {
		return fail(err)
	}
	appliedSet := toSet(res.AppliedIDs)
	for i, k := range args.EdgeKeys {
		id := k.Source + "->" + k.Target + ":" + string(k.Type)
		if appliedSet[id] {
			s.bus.Dispatch(ctx, &eventbus.Event{Type: eventbus.EventEdgeTombstoneApplied, IncidentID: args.IncidentID, EdgeKey: &args.EdgeKeys[i], Provenance: args.Provenance})
		}
	}
	return ok(TombstoneData{AppliedIDs: res.AppliedIDs, AlreadyTombstonedIDs: res.AlreadyTombstonedIDs, UnmatchedIDs: res.UnmatchedIDs})
}

func (s *Server) handleGetLiveView(ctx context.Context, req Request) Response {
	var args IncidentScopedArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	lv, err := s.store.GetLiveView(ctx, args.IncidentID)
	if err != nil {
		return fail(err)
	}
	return ok(LiveViewData{Nodes: lv.Nodes, Edges: lv.Edges})
}

func (s *Server) handleGetTombstones(ctx context.Context, req Request) Response {
	var args IncidentScopedArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	ts, err := s.store.GetTombstones(ctx, args.IncidentID)
	if err != nil {
		return fail(err)
	}
	return ok(TombstonesData{NodeTombstones: ts.NodeTombstones, EdgeTombstones: ts.EdgeTombstones})
}

func (s *Server) handleGetMainGraph(ctx context.Context, _ Request) Response {
	g, err := s.store.GetMainGraph(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(MainGraphData{Nodes: g.Nodes, Edges: g.Edges})
}

func (s *Server) handleGetNode(ctx context.Context, req Request) Response {
	var args GetNodeArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	n, found, err := s.store.GetNode(ctx, args.ID)
	if err != nil {
		return fail(err)
	}
	return ok(GetNodeData{Node: n, Found: found})
}

func (s *Server) handleGetEdge(ctx context.Context, req Request) Response {
	var args GetEdgeArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return fail(err)
	}
	e, found, err := s.store.GetEdge(ctx, args.Key)
	if err != nil {
		return fail(err)
	}
	return ok(GetEdgeData{Edge: e, Found: found})
}

func (s *Server) handleMetrics(_ context.Context, _ Request) Response {
	snap := CollectMetrics()
	snap.Uptime = time.Since(s.startedAt)
	return ok(snap)
}

func ok(v any) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return Response{Success: true, Data: data}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error(), ErrorClass: errorClass(err)}
}

// errorClass maps a store sentinel error to the wire-level class the
// RPC caller branches on (spec §7 items 3-5). Errors outside the store
// taxonomy (bad args, unknown operation) carry no class.
func errorClass(err error) string {
	switch {
	case store.IsNotFound(err):
		return ErrorClassNotFound
	case store.IsTransient(err):
		return ErrorClassTransient
	case store.IsFatal(err):
		return ErrorClassFatal
	default:
		return ""
	}
}
