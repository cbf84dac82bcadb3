package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDAGDiamond(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Index: 0},
		{ID: "b", Index: 1, DependsOn: []string{"a"}},
		{ID: "c", Index: 2, DependsOn: []string{"a"}},
		{ID: "d", Index: 3, DependsOn: []string{"b", "c"}},
	}

	dag, err := BuildDAG(tasks)
	require.NoError(t, err)

	require.Len(t, dag.Waves, 3)
	assert.Len(t, dag.Waves[0], 1)
	assert.Len(t, dag.Waves[1], 2)
	assert.Len(t, dag.Waves[2], 1)
	assert.Equal(t, "a", dag.Waves[0][0].Task.ID)
	assert.Equal(t, "d", dag.Waves[2][0].Task.ID)

	// Reverse edges resolved.
	assert.Contains(t, dag.Nodes["a"].Dependents, "b")
	assert.Contains(t, dag.Nodes["a"].Dependents, "c")
	assert.Contains(t, dag.Nodes["b"].Dependents, "d")

	for _, node := range dag.Nodes {
		assert.Equal(t, TaskStatusScheduled, node.Status)
	}
}

func TestBuildDAGDuplicateID(t *testing.T) {
	_, err := BuildDAG([]*Task{{ID: "a"}, {ID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate task id")
}

func TestBuildDAGUnknownDependency(t *testing.T) {
	_, err := BuildDAG([]*Task{{ID: "a", DependsOn: []string{"ghost"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task")
}

func TestBuildDAGCycle(t *testing.T) {
	tasks := []*Task{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}

	_, err := BuildDAG(tasks)
	require.Error(t, err)
	assert.True(t, IsCycle(err))

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"a", "b"}, ce.Remaining)
}
