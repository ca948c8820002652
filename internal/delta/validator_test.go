package delta

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencausal/latticegraphd/internal/types"
)

func validDelta() types.Delta {
	return types.Delta{
		Provenance: types.Provenance{Source: "agent-a", Trigger: "boot", Timestamp: time.Now()},
		Nodes: []types.Node{
			{ID: "n1", Type: types.NodeSERVICE, Label: "api"},
		},
		Edges: []types.Edge{
			{EdgeKey: types.EdgeKey{Source: "n1", Target: "n2", Type: types.EdgeDEPENDS_ON}},
		},
	}
}

func TestValidate_AcceptsWellFormedDelta(t *testing.T) {
	v := Validate(validDelta())
	require.Empty(t, v.Rejected)
	require.Len(t, v.Nodes, 1)
	require.Len(t, v.Edges, 1)
	assert.Equal(t, "agent-a", v.Nodes[0].Provenance[0].Source)
}

func TestValidate_EmptyDeltaStillRunsEmpty(t *testing.T) {
	v := Validate(types.Delta{})
	assert.Empty(t, v.Nodes)
	assert.Empty(t, v.Edges)
	assert.Empty(t, v.Rejected)
}

func TestValidate_RejectsMalformedNodeWithoutDroppingRestOfDelta(t *testing.T) {
	d := validDelta()
	d.Nodes = append(d.Nodes, types.Node{ID: "", Type: types.NodeSERVICE, Label: "bad"})

	v := Validate(d)
	require.Len(t, v.Rejected, 1)
	assert.Equal(t, types.ReasonEmptyID, v.Rejected[0].Reason)
	require.Len(t, v.Nodes, 1, "the rest of the delta still proceeds")
	require.Len(t, v.Edges, 1)
}

func TestValidate_RejectsBadEdgeType(t *testing.T) {
	d := validDelta()
	d.Edges[0].Type = "NOT_A_TYPE"

	v := Validate(d)
	require.Len(t, v.Rejected, 1)
	assert.Equal(t, types.ReasonInvalidType, v.Rejected[0].Reason)
	assert.Empty(t, v.Edges)
}

func TestValidate_MalformedSharedProvenanceRejectsEverything(t *testing.T) {
	d := validDelta()
	d.Provenance = types.Provenance{Source: "", Trigger: "boot"}

	v := Validate(d)
	require.Len(t, v.Rejected, 2)
	assert.Empty(t, v.Nodes)
	assert.Empty(t, v.Edges)
}

func TestValidate_RejectsSeparatorInProvenanceField(t *testing.T) {
	d := validDelta()
	d.Provenance.Source = "agent|a"

	v := Validate(d)
	require.Len(t, v.Rejected, 2)
	for _, r := range v.Rejected {
		assert.Equal(t, types.ReasonSeparatorInField, r.Reason)
	}
}
