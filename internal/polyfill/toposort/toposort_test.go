package toposort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort_LinearChain(t *testing.T) {
	res, err := Sort([]string{"promise", "fetch"}, []Edge{{From: "promise", To: "fetch"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"promise", "fetch"}, res.Order)
}

func TestSort_TieBreakIsLexicographic(t *testing.T) {
	res, err := Sort([]string{"c", "b", "a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.Order)
}

func TestSort_Deterministic(t *testing.T) {
	nodes := []string{"zeta", "alpha", "mu", "beta"}
	edges := []Edge{{From: "alpha", To: "zeta"}, {From: "mu", To: "zeta"}}
	first, err := Sort(nodes, edges)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Sort(nodes, edges)
		require.NoError(t, err)
		assert.Equal(t, first.Order, again.Order)
	}
}

func TestSort_EveryEdgeRespected(t *testing.T) {
	nodes := []string{"a", "b", "c", "d"}
	edges := []Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "a", To: "d"}}
	res, err := Sort(nodes, edges)
	require.NoError(t, err)

	position := make(map[string]int, len(res.Order))
	for i, n := range res.Order {
		position[n] = i
	}
	for _, e := range edges {
		assert.Less(t, position[e.From], position[e.To])
	}
}

func TestSort_CycleDetected(t *testing.T) {
	_, err := Sort([]string{"a", "b"}, []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}})
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Nodes)
}

func TestSort_DroppedEdgeToMissingNode(t *testing.T) {
	res, err := Sort([]string{"a", "b"}, []Edge{{From: "a", To: "ghost"}, {From: "a", To: "b"}})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "ghost", res.Warnings[0].Edge.To)
	assert.Equal(t, []string{"a", "b"}, res.Order)
}

func TestSort_EmptyInput(t *testing.T) {
	res, err := Sort(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Order)
}
