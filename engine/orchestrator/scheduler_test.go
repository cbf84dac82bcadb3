package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/engine/workerpool"
)

func echoWorker() workerpool.WorkerFunc {
	return func(_ context.Context, job workerpool.Job) (*workerpool.Result, error) {
		return &workerpool.Result{Output: "done: " + job.Description}, nil
	}
}

func failOnWorker(substr string) workerpool.WorkerFunc {
	return func(_ context.Context, job workerpool.Job) (*workerpool.Result, error) {
		if strings.Contains(job.Description, substr) {
			return nil, errors.New("simulated worker failure")
		}
		return &workerpool.Result{Output: "done: " + job.Description}, nil
	}
}

func testAllocation(tasks []*Task, agentID string) *Allocation {
	assignments := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		assignments[task.ID] = []string{agentID}
	}
	return &Allocation{Assignments: assignments, Strategy: StrategyStaged}
}

func runScheduler(t *testing.T, tasks []*Task, worker workerpool.Worker) *ExecutionResult {
	t.Helper()
	dag, err := BuildDAG(tasks)
	require.NoError(t, err)

	pool := workerpool.New(4, worker)
	sched := NewWaveScheduler(pool)
	events := NewEventDispatcher("trace-test", nil)
	defer events.Close()

	return sched.Execute(context.Background(), dag, testAllocation(tasks, "agent-1"), AllowAllGate{}, events, "trace-test")
}

func TestSchedulerRunsAllWaves(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Index: 0, Description: "research"},
		{ID: "b", Index: 1, Description: "build", DependsOn: []string{"a"}},
		{ID: "c", Index: 2, Description: "deploy", DependsOn: []string{"b"}},
	}

	result := runScheduler(t, tasks, echoWorker())

	assert.Equal(t, 3, result.Waves)
	assert.Equal(t, 3, result.TotalTasks)
	require.Len(t, result.Results, 3)
	for i, r := range result.Results {
		assert.Equal(t, TaskStatusCompleted, r.Status)
		assert.Equal(t, i, r.Wave)
		assert.Equal(t, "agent-1", r.AgentID)
		assert.Contains(t, r.Output, "done:")
	}
}

func TestSchedulerSkipsDependentsOfFailure(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Index: 0, Description: "research"},
		{ID: "b", Index: 1, Description: "build", DependsOn: []string{"a"}},
		{ID: "c", Index: 2, Description: "deploy", DependsOn: []string{"b"}},
	}

	result := runScheduler(t, tasks, failOnWorker("build"))

	require.Len(t, result.Results, 3)
	byID := make(map[string]TaskResult)
	for _, r := range result.Results {
		byID[r.TaskID] = r
	}

	assert.Equal(t, TaskStatusCompleted, byID["a"].Status)
	assert.Equal(t, TaskStatusFailed, byID["b"].Status)
	assert.Equal(t, "simulated worker failure", byID["b"].Error)
	assert.Equal(t, TaskStatusSkipped, byID["c"].Status)
	assert.Contains(t, byID["c"].Error, "upstream failure")
	assert.Equal(t, 2, byID["c"].Wave)
}

func TestSchedulerSkipPropagatesTransitively(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Index: 0, Description: "build the base"},
		{ID: "b", Index: 1, Description: "layer one", DependsOn: []string{"a"}},
		{ID: "c", Index: 2, Description: "layer two", DependsOn: []string{"b"}},
		{ID: "d", Index: 3, Description: "independent"},
	}

	result := runScheduler(t, tasks, failOnWorker("base"))

	byID := make(map[string]TaskResult)
	for _, r := range result.Results {
		byID[r.TaskID] = r
	}
	assert.Equal(t, TaskStatusFailed, byID["a"].Status)
	assert.Equal(t, TaskStatusSkipped, byID["b"].Status)
	assert.Equal(t, TaskStatusSkipped, byID["c"].Status)
	assert.Equal(t, TaskStatusCompleted, byID["d"].Status)
}

func TestSchedulerWaveBarrier(t *testing.T) {
	// No second-wave task may start before every first-wave task settled.
	var wave1Done atomic.Int32
	worker := workerpool.WorkerFunc(func(_ context.Context, job workerpool.Job) (*workerpool.Result, error) {
		if strings.HasPrefix(job.Description, "first") {
			wave1Done.Add(1)
		} else {
			assert.Equal(t, int32(2), wave1Done.Load(),
				"second wave started before the first settled")
		}
		return &workerpool.Result{Output: "ok"}, nil
	})

	tasks := []*Task{
		{ID: "a", Index: 0, Description: "first left"},
		{ID: "b", Index: 1, Description: "first right"},
		{ID: "c", Index: 2, Description: "second", DependsOn: []string{"a", "b"}},
	}

	result := runScheduler(t, tasks, worker)
	assert.Equal(t, 2, result.Waves)
	for _, r := range result.Results {
		assert.Equal(t, TaskStatusCompleted, r.Status)
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	tasks := []*Task{
		{ID: "a", Index: 0, Description: "never runs"},
	}
	dag, err := BuildDAG(tasks)
	require.NoError(t, err)

	pool := workerpool.New(4, echoWorker())
	sched := NewWaveScheduler(pool)
	events := NewEventDispatcher("trace-test", nil)
	defer events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := sched.Execute(ctx, dag, testAllocation(tasks, "agent-1"), AllowAllGate{}, events, "trace-test")
	assert.Equal(t, 0, result.Waves)
	assert.Empty(t, result.Results)
	assert.Equal(t, 1, result.TotalTasks)
}
