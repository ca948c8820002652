package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencausal/latticegraphd/internal/store"
	"github.com/opencausal/latticegraphd/internal/types"
)

func n(id string, typ types.NodeType, label, source, trigger string) types.Node {
	return types.Node{
		ID: id, Type: typ, Label: label, Hypothetical: true,
		Provenance: []types.Provenance{{Source: source, Trigger: trigger, Timestamp: time.Now()}},
	}
}

// TestMergeHypothesis_DuplicateThenCreatedThenMerged is the spec §8
// "Duplicate hypothesis" scenario.
func TestMergeHypothesis_DuplicateThenCreatedThenMerged(t *testing.T) {
	ctx := context.Background()
	s := New()

	node := n("n1", types.NodeSERVICE, "api", "agent-a", "boot")

	res, err := s.MergeHypothesis(ctx, []types.Node{node}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, res.CreatedIDs)
	assert.Empty(t, res.MergedIDs)

	res, err = s.MergeHypothesis(ctx, []types.Node{node}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.CreatedIDs)
	assert.Equal(t, []string{"n1"}, res.MergedIDs)

	got, ok, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Provenance, 1, "exactly one provenance record after a duplicate write")
}

// TestMergeHypothesis_TypeConflictDoesNotMutate is the spec §8 "Type
// conflict" scenario.
func TestMergeHypothesis_TypeConflictDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.MergeHypothesis(ctx, []types.Node{n("n1", types.NodeSERVICE, "api", "agent-a", "boot")}, nil)
	require.NoError(t, err)

	res, err := s.MergeHypothesis(ctx, []types.Node{n("n1", types.NodeDEPENDENCY, "api", "agent-b", "scan")}, nil)
	require.NoError(t, err)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, types.Conflict{ID: "n1", Field: "type", Existing: "SERVICE", Proposed: "DEPENDENCY"}, res.Conflicts[0])

	got, ok, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.NodeSERVICE, got.Type, "conflict must not mutate stored state")
	require.Len(t, got.Provenance, 1, "agent-b's provenance must not be appended on conflict")
	assert.Equal(t, "agent-a", got.Provenance[0].Source)
}

// TestMergeHypothesis_ProvenanceDedupByFirstTimestamp is the spec §8
// "Provenance dedup by (source,trigger)" scenario.
func TestMergeHypothesis_ProvenanceDedupByFirstTimestamp(t *testing.T) {
	ctx := context.Background()
	s := New()

	t1 := time.Unix(100, 0)
	t2 := time.Unix(200, 0)

	node1 := types.Node{ID: "n1", Type: types.NodeSERVICE, Label: "api", Hypothetical: true,
		Provenance: []types.Provenance{{Source: "agent-a", Trigger: "boot", Timestamp: t1}}}
	node2 := types.Node{ID: "n1", Type: types.NodeSERVICE, Label: "api", Hypothetical: true,
		Provenance: []types.Provenance{{Source: "agent-a", Trigger: "boot", Timestamp: t2}}}

	_, err := s.MergeHypothesis(ctx, []types.Node{node1}, nil)
	require.NoError(t, err)
	_, err = s.MergeHypothesis(ctx, []types.Node{node2}, nil)
	require.NoError(t, err)

	got, _, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	require.Len(t, got.Provenance, 1)
	assert.Equal(t, t1, got.Provenance[0].Timestamp)
}

// TestTombstones_UnmatchedThenLateArrival is the spec §8 "Unmatched
// tombstone" scenario.
func TestTombstones_UnmatchedThenLateArrival(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateIncident(ctx, "i1")
	require.NoError(t, err)

	res, err := s.MergeNodeTombstones(ctx, "i1", []string{"nX"}, types.Provenance{Source: "sup", Trigger: "elim"})
	require.NoError(t, err)
	assert.Equal(t, []string{"nX"}, res.UnmatchedIDs)
	assert.Empty(t, res.AppliedIDs)

	_, err = s.MergeHypothesis(ctx, []types.Node{n("nX", types.NodeSERVICE, "late", "agent-a", "boot")}, nil)
	require.NoError(t, err)

	view, err := s.GetLiveView(ctx, "i1")
	require.NoError(t, err)
	for _, node := range view.Nodes {
		assert.NotEqual(t, "nX", node.ID, "the tombstone still eliminates nX even though it arrived late")
	}
}

// TestLiveView_NodeTombstoneImplicitlyEliminatesEdges is the spec §8
// "Implicit edge elimination via node tombstone" scenario.
func TestLiveView_NodeTombstoneImplicitlyEliminatesEdges(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.MergeHypothesis(ctx,
		[]types.Node{
			n("n1", types.NodeSERVICE, "a", "x", "y"),
			n("n2", types.NodeSERVICE, "b", "x", "y"),
		},
		[]types.Edge{{EdgeKey: types.EdgeKey{Source: "n1", Target: "n2", Type: types.EdgeDEPENDS_ON},
			Provenance: []types.Provenance{{Source: "x", Trigger: "y", Timestamp: time.Now()}}}})
	require.NoError(t, err)

	_, err = s.CreateIncident(ctx, "i1")
	require.NoError(t, err)

	_, err = s.MergeNodeTombstones(ctx, "i1", []string{"n1"}, types.Provenance{Source: "sup", Trigger: "elim"})
	require.NoError(t, err)

	view, err := s.GetLiveView(ctx, "i1")
	require.NoError(t, err)
	for _, e := range view.Edges {
		assert.NotEqual(t, types.EdgeKey{Source: "n1", Target: "n2", Type: types.EdgeDEPENDS_ON}, e.EdgeKey,
			"edge must be gone even though no edge tombstone was written")
	}
}

// TestIncidentIsolation is the spec §8 "Incident isolation" scenario.
func TestIncidentIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.MergeHypothesis(ctx, []types.Node{n("n1", types.NodeSERVICE, "a", "x", "y")}, nil)
	require.NoError(t, err)

	before, err := s.GetMainGraph(ctx)
	require.NoError(t, err)

	_, err = s.CreateIncident(ctx, "i1")
	require.NoError(t, err)
	_, err = s.CreateIncident(ctx, "i2")
	require.NoError(t, err)

	_, err = s.MergeNodeTombstones(ctx, "i1", []string{"n1"}, types.Provenance{Source: "sup", Trigger: "elim"})
	require.NoError(t, err)

	view2, err := s.GetLiveView(ctx, "i2")
	require.NoError(t, err)
	require.Len(t, view2.Nodes, 1, "i2's live view is unaffected by i1's tombstones")

	after, err := s.GetMainGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the main graph is identical before and after any tombstone write")
}

// TestLiveViewAndTombstones_UnknownIncidentIsNotFound is the spec §7
// item 3 scenario: an incident id that was never passed to
// CreateIncident must error, not silently read back an empty
// tombstone set over the whole main graph.
func TestLiveViewAndTombstones_UnknownIncidentIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, func() error {
		_, err := s.MergeHypothesis(ctx, []types.Node{n("n1", types.NodeSERVICE, "a", "x", "y")}, nil)
		return err
	}())

	_, err := s.GetLiveView(ctx, "never-created")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetTombstones(ctx, "never-created")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// TestAssociativityAndCommutativity applies three deltas in every
// permutation and asserts the final main graph converges (spec §8 items
// 1-2).
func TestAssociativityAndCommutativity(t *testing.T) {
	ctx := context.Background()

	type write struct {
		node types.Node
		edge *types.Edge
	}
	deltas := []write{
		{node: n("n1", types.NodeSERVICE, "api", "agent-a", "boot")},
		{node: n("n2", types.NodeDEPENDENCY, "db", "agent-b", "scan")},
		{edge: &types.Edge{EdgeKey: types.EdgeKey{Source: "n1", Target: "n2", Type: types.EdgeDEPENDS_ON},
			Provenance: []types.Provenance{{Source: "agent-c", Trigger: "probe", Timestamp: time.Now()}}}},
	}

	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	var reference store.MainGraph
	for i, perm := range permutations {
		s := New()
		for _, idx := range perm {
			w := deltas[idx]
			if w.edge != nil {
				_, err := s.MergeHypothesis(ctx, nil, []types.Edge{*w.edge})
				require.NoError(t, err)
			} else {
				_, err := s.MergeHypothesis(ctx, []types.Node{w.node}, nil)
				require.NoError(t, err)
			}
		}
		got, err := s.GetMainGraph(ctx)
		require.NoError(t, err)
		if i == 0 {
			reference = got
			continue
		}
		assert.Equal(t, reference, got, "merge order must not change the converged state")
	}
}

// TestIdempotence is spec §8 item 3: applying the same delta twice
// leaves the state unchanged and the second application reports zero
// creations.
func TestIdempotence(t *testing.T) {
	ctx := context.Background()
	s := New()

	node := n("n1", types.NodeSERVICE, "api", "agent-a", "boot")
	_, err := s.MergeHypothesis(ctx, []types.Node{node}, nil)
	require.NoError(t, err)
	first, err := s.GetMainGraph(ctx)
	require.NoError(t, err)

	res, err := s.MergeHypothesis(ctx, []types.Node{node}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.CreatedIDs)
	assert.Equal(t, []string{"n1"}, res.MergedIDs)

	second, err := s.GetMainGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
