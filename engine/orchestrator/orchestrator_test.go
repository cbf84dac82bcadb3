package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cortex/engine/registry"
	"github.com/hrygo/cortex/store"
)

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *registry.Registry, *store.Memory) {
	t.Helper()
	reg := registry.New()
	memory := store.NewMemory()
	opts = append([]Option{WithWorker(echoWorker())}, opts...)
	return New(reg, memory, opts...), reg, memory
}

func TestExecuteSimpleRequest(t *testing.T) {
	o, _, memory := newTestOrchestrator(t)

	result, err := o.Execute(context.Background(), "list files", ExecContext{Session: "s1"})
	require.NoError(t, err)

	p := result.Pipeline
	require.NotNil(t, p.Intent)
	assert.Equal(t, IntentGeneral, p.Intent.Type)

	require.NotNil(t, p.Complexity)
	assert.Equal(t, registry.LevelSimple, p.Complexity.Level)

	require.NotNil(t, p.Allocation)
	assert.Equal(t, StrategyDirect, p.Allocation.Strategy)
	require.Len(t, p.Allocation.Agents, 1)
	assert.Equal(t, "research_agent_v1", p.Allocation.Agents[0].ID)

	require.NotNil(t, p.Execution)
	assert.Equal(t, 1, p.Execution.Waves)
	require.Len(t, p.Execution.Results, 1)
	assert.Equal(t, TaskStatusCompleted, p.Execution.Results[0].Status)

	assert.Equal(t, 1, result.Metrics.TasksCompleted)
	assert.Equal(t, 0, result.Metrics.TasksFailed)
	assert.Equal(t, registry.LevelSimple, result.Metrics.ComplexityLevel)
	assert.Contains(t, result.Output, "Completed 1/1 tasks")

	got, ok := memory.GetSession("last_request")
	require.True(t, ok)
	assert.Equal(t, "list files", got)
}

func TestExecuteStagedChain(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result, err := o.Execute(context.Background(),
		"research OAuth then build API then deploy to production", ExecContext{})
	require.NoError(t, err)

	p := result.Pipeline
	assert.Equal(t, "code", p.Intent.Type)
	assert.Equal(t, registry.LevelComplex, p.Complexity.Level)
	assert.InDelta(t, 7.0, p.Complexity.Score, 1e-9)
	assert.Equal(t, StrategyStaged, p.Allocation.Strategy)

	require.Len(t, p.Execution.Results, 3)
	assert.Equal(t, 3, p.Execution.Waves)
	for i, r := range p.Execution.Results {
		assert.Equal(t, TaskStatusCompleted, r.Status)
		assert.Equal(t, i, r.Wave)
	}
	assert.Equal(t, 3, result.Metrics.TasksCompleted)
}

func TestExecuteParallelMediumRequest(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result, err := o.Execute(context.Background(),
		"build the api and fix the bug and write tests and refactor the parser", ExecContext{})
	require.NoError(t, err)

	p := result.Pipeline
	assert.Equal(t, "code", p.Intent.Type)
	assert.Equal(t, registry.LevelMedium, p.Complexity.Level)
	assert.True(t, p.Decomposition.HasParallelizable)
	assert.Equal(t, StrategyParallel, p.Allocation.Strategy)

	require.Len(t, p.Execution.Results, 4)
	assert.Equal(t, 1, p.Execution.Waves)
	assert.Equal(t, 4, result.Metrics.TasksCompleted)
}

func TestExecuteFailurePropagation(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, WithWorker(failOnWorker("build")))

	result, err := o.Execute(context.Background(),
		"research OAuth then build API then deploy to production", ExecContext{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Metrics.TasksCompleted)
	assert.Equal(t, 1, result.Metrics.TasksFailed)
	assert.Equal(t, 1, result.Pipeline.Evaluation.Skipped)
	assert.Contains(t, result.Output, "(1 failed, 1 skipped)")
}

func TestExecuteSingleCodeRequest(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result, err := o.Execute(context.Background(), "build a REST API", ExecContext{})
	require.NoError(t, err)

	p := result.Pipeline
	assert.Equal(t, "code", p.Intent.Type)
	assert.Equal(t, registry.ClusterCoding, p.Intent.Cluster)
	require.Len(t, p.Decomposition.Tasks, 1)
	assert.Equal(t, registry.LevelSimple, p.Complexity.Level)
	assert.Equal(t, StrategyDirect, p.Allocation.Strategy)

	// Seed confidence ranks the coding cluster with code_agent_v2 first.
	require.NotEmpty(t, p.Allocation.Agents)
	assert.Equal(t, "code_agent_v2", p.Allocation.Agents[0].ID)
	assert.Equal(t, 1, result.Metrics.TasksCompleted)
}

func TestExecuteIndependentTasksRunInOneWave(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	result, err := o.Execute(context.Background(),
		"build API and write tests and deploy", ExecContext{})
	require.NoError(t, err)

	p := result.Pipeline
	require.Len(t, p.Decomposition.Tasks, 3)
	for _, task := range p.Decomposition.Tasks {
		assert.Empty(t, task.DependsOn)
	}
	assert.True(t, p.Decomposition.HasParallelizable)
	assert.Equal(t, 1, p.Execution.Waves)
	assert.Equal(t, 3, result.Metrics.TasksCompleted)
}

func TestExecuteTerminalFailureHasNoSkips(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, WithWorker(failOnWorker("deploy")))

	result, err := o.Execute(context.Background(),
		"research OAuth then build API then deploy to production", ExecContext{})
	require.NoError(t, err)

	// The failing task is the chain's tail; nothing depends on it.
	ev := result.Pipeline.Evaluation
	assert.Equal(t, 2, ev.Completed)
	assert.Equal(t, 1, ev.Failed)
	assert.Equal(t, 0, ev.Skipped)
	assert.Less(t, ev.Quality, 1.0)
}

func TestExecuteRepeatedSuccessIsMonotonicAndBounded(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	prev := 0.92
	for i := 0; i < 10; i++ {
		_, err := o.Execute(context.Background(), "build a REST API", ExecContext{})
		require.NoError(t, err)

		agent, ok := reg.Get("code_agent_v2")
		require.True(t, ok)
		assert.GreaterOrEqual(t, agent.Confidence, prev)
		assert.LessOrEqual(t, agent.Confidence, 1.0)
		prev = agent.Confidence
	}
	assert.InDelta(t, 1.0, prev, 1e-9)
}

func TestExecuteIsDeterministicAcrossFreshEngines(t *testing.T) {
	const input = "research OAuth then build API then deploy to production"

	run := func() *Pipeline {
		o, _, _ := newTestOrchestrator(t)
		result, err := o.Execute(context.Background(), input, ExecContext{})
		require.NoError(t, err)
		return result.Pipeline
	}

	a, b := run(), run()

	assert.Equal(t, a.Intent.Type, b.Intent.Type)
	assert.Equal(t, a.Intent.Confidence, b.Intent.Confidence)
	assert.Equal(t, a.Complexity.Score, b.Complexity.Score)
	assert.Equal(t, a.Complexity.Level, b.Complexity.Level)
	assert.Equal(t, a.Allocation.Strategy, b.Allocation.Strategy)

	require.Equal(t, len(a.Decomposition.Tasks), len(b.Decomposition.Tasks))
	for i := range a.Decomposition.Tasks {
		assert.Equal(t, a.Decomposition.Tasks[i].Description, b.Decomposition.Tasks[i].Description)
		assert.Equal(t, len(a.Decomposition.Tasks[i].DependsOn), len(b.Decomposition.Tasks[i].DependsOn))
	}

	idsOf := func(p *Pipeline) []string {
		ids := make([]string, len(p.Allocation.Agents))
		for i, ag := range p.Allocation.Agents {
			ids[i] = ag.ID
		}
		return ids
	}
	assert.Equal(t, idsOf(a), idsOf(b))
}

func TestExecuteEmptyInput(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	for _, input := range []string{"", "   ", "\n\t"} {
		result, err := o.Execute(context.Background(), input, ExecContext{})
		require.ErrorIs(t, err, ErrEmptyInput)
		require.NotNil(t, result)
		assert.Nil(t, result.Pipeline.Intent)
	}
}

func TestExecuteSuccessRaisesConfidence(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t)

	_, err := o.Execute(context.Background(), "list files", ExecContext{})
	require.NoError(t, err)

	agent, ok := reg.Get("research_agent_v1")
	require.True(t, ok)
	// The run beat the agent's seeded average, which is worth one boost.
	// The batched path stays quiet on a cluster's first ever run.
	assert.InDelta(t, 0.87, agent.Confidence, 1e-9)
	assert.Equal(t, 1, agent.TotalExecutions)
}

func TestExecuteFailureDropsConfidence(t *testing.T) {
	o, reg, _ := newTestOrchestrator(t, WithWorker(failOnWorker("build")))

	_, err := o.Execute(context.Background(), "build the login api", ExecContext{})
	require.NoError(t, err)

	agent, ok := reg.Get("code_agent_v2")
	require.True(t, ok)
	assert.LessOrEqual(t, agent.Confidence, 0.92-0.05)
	assert.Greater(t, agent.FailureRate, 0.0)
}

func TestExecuteSnapshotAutosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	o, _, _ := newTestOrchestrator(t, WithSnapshotPath(path))

	_, err := o.Execute(context.Background(), "list files", ExecContext{})
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)

	restored := store.NewMemory()
	require.NoError(t, restored.Load(path))
	assert.NotEmpty(t, restored.Solutions(), "a fully successful run must be indexed as a solution")
	assert.NotEmpty(t, restored.PerformanceLog())
}

func TestExecuteEmitsStageEvents(t *testing.T) {
	rec := &eventRecorder{}
	o, _, _ := newTestOrchestrator(t)

	_, err := o.Execute(context.Background(),
		"research OAuth then build API then deploy to production",
		ExecContext{Callback: rec.callback})
	require.NoError(t, err)

	var stages []string
	sawWaveStart, sawTaskEnd := false, false
	for _, e := range rec.snapshot() {
		typ, data, _ := cutEvent(e)
		switch typ {
		case EventStageComplete:
			var payload struct {
				Stage string `json:"stage"`
			}
			require.NoError(t, json.Unmarshal([]byte(data), &payload))
			stages = append(stages, payload.Stage)
		case EventWaveStart:
			sawWaveStart = true
		case EventTaskEnd:
			sawTaskEnd = true
		}
	}

	assert.Equal(t, []string{
		"parse", "classify_intent", "decompose", "score_complexity",
		"allocate_agents", "execute_dag", "evaluate", "aggregate", "learn",
	}, stages)
	assert.True(t, sawWaveStart)
	assert.True(t, sawTaskEnd)
}

func TestExecuteDAGBuildFailureEmitsStageEvent(t *testing.T) {
	orig := buildDAG
	buildDAG = func(_ []*Task) (*DAG, error) {
		return nil, &CycleError{Remaining: []string{"t1"}}
	}
	defer func() { buildDAG = orig }()

	rec := &eventRecorder{}
	o, _, _ := newTestOrchestrator(t)

	_, err := o.Execute(context.Background(), "build a REST API",
		ExecContext{Callback: rec.callback})
	require.Error(t, err)
	assert.True(t, IsCycle(err))

	var stages []string
	for _, e := range rec.snapshot() {
		typ, data, _ := cutEvent(e)
		if typ != EventStageComplete {
			continue
		}
		var payload struct {
			Stage string `json:"stage"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &payload))
		stages = append(stages, payload.Stage)
	}

	// The event stream must show stage 6 was entered before the failure.
	assert.Equal(t, []string{
		"parse", "classify_intent", "decompose", "score_complexity",
		"allocate_agents", "execute_dag",
	}, stages)
}

func TestExecuteCancelledContext(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Execute(ctx,
		"research OAuth then build API then deploy to production", ExecContext{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Pipeline.Execution.Waves)
	assert.Equal(t, 3, result.Pipeline.Execution.TotalTasks)
	assert.Equal(t, 0, result.Metrics.TasksCompleted)
}

// cutEvent splits a recorded "type:data" entry at the first colon.
func cutEvent(e string) (string, string, bool) {
	for i := 0; i < len(e); i++ {
		if e[i] == ':' {
			return e[:i], e[i+1:], true
		}
	}
	return e, "", false
}
