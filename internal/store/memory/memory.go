// Package memory implements store.Store over plain in-process maps. It
// exists for the property tests in spec §8 (associativity, commutativity,
// idempotence applied in arbitrary order) and is not wired into the
// daemon: the service holds no in-memory mirror of the graph in
// production (spec §1 Non-goals), this type is test-only infrastructure.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opencausal/latticegraphd/internal/lattice"
	"github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

type nodeRecord struct {
	typ          types.NodeType
	label        string
	hypothetical bool
	provenance   []types.Provenance
}

type edgeRecord struct {
	provenance []types.Provenance
}

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu             sync.Mutex
	nodes          map[string]*nodeRecord
	edges          map[types.EdgeKey]*edgeRecord
	incidents      map[string]types.Incident
	nodeTombstones map[string]map[string]types.NodeTombstone
	edgeTombstones map[string]map[types.EdgeKey]types.EdgeTombstone
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:          make(map[string]*nodeRecord),
		edges:          make(map[types.EdgeKey]*edgeRecord),
		incidents:      make(map[string]types.Incident),
		nodeTombstones: make(map[string]map[string]types.NodeTombstone),
		edgeTombstones: make(map[string]map[types.EdgeKey]types.EdgeTombstone),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) MergeHypothesis(_ context.Context, nodes []types.Node, edges []types.Edge) (store.MergeHypothesisResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.MergeHypothesisResult

	for _, n := range nodes {
		prov := n.Provenance[0]
		existing, ok := s.nodes[n.ID]
		if !ok {
			s.nodes[n.ID] = &nodeRecord{
				typ:          n.Type,
				label:        n.Label,
				hypothetical: n.Hypothetical,
				provenance:   []types.Provenance{prov},
			}
			res.CreatedIDs = append(res.CreatedIDs, n.ID)
			continue
		}
		if existing.typ != n.Type {
			res.Conflicts = append(res.Conflicts, types.Conflict{
				ID: n.ID, Field: "type", Existing: string(existing.typ), Proposed: string(n.Type),
			})
			continue
		}
		if existing.label != n.Label {
			res.Conflicts = append(res.Conflicts, types.Conflict{
				ID: n.ID, Field: "label", Existing: existing.label, Proposed: n.Label,
			})
			continue
		}
		existing.hypothetical = lattice.MergeHypothetical(existing.hypothetical, n.Hypothetical)
		existing.provenance, _ = lattice.MergeProvenance(existing.provenance, prov)
		res.MergedIDs = append(res.MergedIDs, n.ID)
	}

	for _, e := range edges {
		prov := e.Provenance[0]
		existing, ok := s.edges[e.EdgeKey]
		if !ok {
			s.edges[e.EdgeKey] = &edgeRecord{provenance: []types.Provenance{prov}}
			res.CreatedIDs = append(res.CreatedIDs, edgeID(e.EdgeKey))
			continue
		}
		existing.provenance, _ = lattice.MergeProvenance(existing.provenance, prov)
		res.MergedIDs = append(res.MergedIDs, edgeID(e.EdgeKey))
	}

	return res, nil
}

func (s *Store) CreateIncident(_ context.Context, incidentID string) (types.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inc, ok := s.incidents[incidentID]; ok {
		return inc, nil
	}
	inc := types.Incident{IncidentID: incidentID, CreatedAt: time.Now().UTC()}
	s.incidents[incidentID] = inc
	return inc, nil
}

func (s *Store) MergeNodeTombstones(_ context.Context, incidentID string, nodeIDs []string, prov types.Provenance) (store.TombstoneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.TombstoneResult
	set, ok := s.nodeTombstones[incidentID]
	if !ok {
		set = make(map[string]types.NodeTombstone)
		s.nodeTombstones[incidentID] = set
	}
	for _, id := range nodeIDs {
		if _, exists := set[id]; exists {
			res.AlreadyTombstonedIDs = append(res.AlreadyTombstonedIDs, id)
			continue
		}
		_, nodeExists := s.nodes[id]
		ts := types.NodeTombstone{IncidentID: incidentID, NodeID: id, Provenance: prov, Unmatched: !nodeExists}
		set[id] = ts
		if nodeExists {
			res.AppliedIDs = append(res.AppliedIDs, id)
		} else {
			res.UnmatchedIDs = append(res.UnmatchedIDs, id)
		}
	}
	return res, nil
}

func (s *Store) MergeEdgeTombstones(_ context.Context, incidentID string, keys []types.EdgeKey, prov types.Provenance) (store.TombstoneResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res store.TombstoneResult
	set, ok := s.edgeTombstones[incidentID]
	if !ok {
		set = make(map[types.EdgeKey]types.EdgeTombstone)
		s.edgeTombstones[incidentID] = set
	}
	for _, k := range keys {
		id := edgeID(k)
		if _, exists := set[k]; exists {
			res.AlreadyTombstonedIDs = append(res.AlreadyTombstonedIDs, id)
			continue
		}
		set[k] = types.EdgeTombstone{IncidentID: incidentID, EdgeKey: k, Provenance: prov}
		res.AppliedIDs = append(res.AppliedIDs, id)
	}
	return res, nil
}

func (s *Store) GetLiveView(_ context.Context, incidentID string) (store.LiveView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[incidentID]; !ok {
		return store.LiveView{}, store.ErrNotFound
	}

	nodeTS := s.nodeTombstones[incidentID]
	edgeTS := s.edgeTombstones[incidentID]

	var out store.LiveView
	for id, rec := range s.nodes {
		if nodeTS != nil {
			if _, eliminated := nodeTS[id]; eliminated {
				continue
			}
		}
		out.Nodes = append(out.Nodes, types.Node{
			ID: id, Type: rec.typ, Label: rec.label, Hypothetical: rec.hypothetical,
			Provenance: append([]types.Provenance(nil), rec.provenance...),
		})
	}
	for k, rec := range s.edges {
		if nodeTS != nil {
			if _, elim := nodeTS[k.Source]; elim {
				continue
			}
			if _, elim := nodeTS[k.Target]; elim {
				continue
			}
		}
		if edgeTS != nil {
			if _, elim := edgeTS[k]; elim {
				continue
			}
		}
		out.Edges = append(out.Edges, types.Edge{EdgeKey: k, Provenance: append([]types.Provenance(nil), rec.provenance...)})
	}
	sortNodes(out.Nodes)
	sortEdges(out.Edges)
	return out, nil
}

func (s *Store) GetTombstones(_ context.Context, incidentID string) (store.Tombstones, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[incidentID]; !ok {
		return store.Tombstones{}, store.ErrNotFound
	}

	var out store.Tombstones
	for _, ts := range s.nodeTombstones[incidentID] {
		out.NodeTombstones = append(out.NodeTombstones, ts)
	}
	for _, ts := range s.edgeTombstones[incidentID] {
		out.EdgeTombstones = append(out.EdgeTombstones, ts)
	}
	return out, nil
}

func (s *Store) GetMainGraph(_ context.Context) (store.MainGraph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out store.MainGraph
	for id, rec := range s.nodes {
		out.Nodes = append(out.Nodes, types.Node{
			ID: id, Type: rec.typ, Label: rec.label, Hypothetical: rec.hypothetical,
			Provenance: append([]types.Provenance(nil), rec.provenance...),
		})
	}
	for k, rec := range s.edges {
		out.Edges = append(out.Edges, types.Edge{EdgeKey: k, Provenance: append([]types.Provenance(nil), rec.provenance...)})
	}
	sortNodes(out.Nodes)
	sortEdges(out.Edges)
	return out, nil
}

func (s *Store) GetIncidentContext(_ context.Context, incidentID string) (store.IncidentContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[incidentID]
	if !ok {
		return store.IncidentContext{}, store.ErrNotFound
	}
	return store.IncidentContext{IncidentID: incidentID, UniverseAnchor: inc, EliminationSetID: incidentID}, nil
}

func (s *Store) GetNode(_ context.Context, id string) (types.Node, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return types.Node{}, false, nil
	}
	return types.Node{
		ID: id, Type: rec.typ, Label: rec.label, Hypothetical: rec.hypothetical,
		Provenance: append([]types.Provenance(nil), rec.provenance...),
	}, true, nil
}

func (s *Store) GetEdge(_ context.Context, key types.EdgeKey) (types.Edge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.edges[key]
	if !ok {
		return types.Edge{}, false, nil
	}
	return types.Edge{EdgeKey: key, Provenance: append([]types.Provenance(nil), rec.provenance...)}, true, nil
}

func edgeID(k types.EdgeKey) string {
	return k.Source + "->" + k.Target + ":" + string(k.Type)
}

func sortNodes(ns []types.Node) {
	sort.Slice(ns, func(i, j int) bool { return ns[i].ID < ns[j].ID })
}

func sortEdges(es []types.Edge) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Source != es[j].Source {
			return es[i].Source < es[j].Source
		}
		if es[i].Target != es[j].Target {
			return es[i].Target < es[j].Target
		}
		return es[i].Type < es[j].Type
	})
}
