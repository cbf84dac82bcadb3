package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hrygo/cortex/engine/learning"
	"github.com/hrygo/cortex/engine/registry"
	"github.com/hrygo/cortex/engine/workerpool"
	"github.com/hrygo/cortex/metrics"
	"github.com/hrygo/cortex/store"
)

// Config holds orchestrator construction options.
type Config struct {
	// MaxWorkers bounds concurrent task execution.
	MaxWorkers int

	// Worker executes individual tasks. Defaults to the simulator.
	Worker workerpool.Worker

	// SnapshotPath, when set, autosaves learned memory after each request.
	SnapshotPath string

	// Exporter, when set, receives pipeline and agent metrics.
	Exporter *metrics.Exporter
}

// Option mutates the orchestrator configuration.
type Option func(*Config)

// WithMaxWorkers sets the worker pool bound.
func WithMaxWorkers(n int) Option {
	return func(c *Config) { c.MaxWorkers = n }
}

// WithWorker replaces the task worker.
func WithWorker(w workerpool.Worker) Option {
	return func(c *Config) { c.Worker = w }
}

// WithSnapshotPath enables memory autosave to the given file.
func WithSnapshotPath(path string) Option {
	return func(c *Config) { c.SnapshotPath = path }
}

// WithExporter attaches a metrics exporter.
func WithExporter(e *metrics.Exporter) Option {
	return func(c *Config) { c.Exporter = e }
}

// ExecContext carries per-request execution context.
type ExecContext struct {
	// Session labels the request's session in the memory store.
	Session string

	// Gate approves or denies gated actions. Nil approves everything.
	Gate PermissionGate

	// Callback receives renderer events. Nil disables event delivery.
	Callback EventCallback
}

// Orchestrator wires the ten pipeline stages over a shared registry,
// memory store and worker pool.
type Orchestrator struct {
	classifier *IntentClassifier
	decomposer *Decomposer
	scorer     *ComplexityScorer
	spawner    *Spawner
	scheduler  *WaveScheduler
	evaluator  *Evaluator
	aggregator *Aggregator
	learner    *learning.System

	registry *registry.Registry
	memory   *store.Memory
	pool     *workerpool.Pool

	snapshotPath string
	exporter     *metrics.Exporter
}

// New creates an orchestrator over the given registry and memory store.
func New(reg *registry.Registry, memory *store.Memory, opts ...Option) *Orchestrator {
	cfg := &Config{
		MaxWorkers: workerpool.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Worker == nil {
		cfg.Worker = workerpool.NewSimulatedWorker()
	}

	pool := workerpool.New(cfg.MaxWorkers, cfg.Worker)

	return &Orchestrator{
		classifier: NewIntentClassifier(),
		decomposer: NewDecomposer(),
		scorer:     NewComplexityScorer(),
		spawner:    NewSpawner(reg),
		scheduler:  NewWaveScheduler(pool),
		evaluator:  NewEvaluator(),
		aggregator: NewAggregator(),
		learner:    learning.NewSystem(memory),

		registry: reg,
		memory:   memory,
		pool:     pool,

		snapshotPath: cfg.SnapshotPath,
		exporter:     cfg.Exporter,
	}
}

// buildDAG is swapped in tests to exercise build-failure paths the
// decomposer cannot produce.
var buildDAG = BuildDAG

// Pool exposes the worker pool, mainly for stats.
func (o *Orchestrator) Pool() *workerpool.Pool {
	return o.pool
}

// Execute runs the full pipeline for one request. On a stage failure the
// returned Result still carries the pipeline record for every stage that
// ran, plus the elapsed duration.
func (o *Orchestrator) Execute(ctx context.Context, input string, ec ExecContext) (*Result, error) {
	start := time.Now()
	traceID := GenerateTraceID()

	pipeline := &Pipeline{}
	rm := &Metrics{}
	result := &Result{Pipeline: pipeline, Metrics: rm}

	dispatcher := NewEventDispatcher(traceID, ec.Callback)
	defer dispatcher.Close()

	stageStart := time.Now()
	stageDone := func(stage string) {
		elapsed := time.Since(stageStart)
		stageStart = time.Now()
		dispatcher.SendJSON(EventStageComplete, map[string]any{
			"stage":       stage,
			"duration_ms": elapsed.Milliseconds(),
		})
		slog.Debug("pipeline: stage complete",
			"trace_id", traceID, "stage", stage, "duration_ms", elapsed.Milliseconds())
	}
	fail := func(err error) (*Result, error) {
		rm.Duration = time.Since(start)
		slog.Warn("pipeline: request failed",
			"trace_id", traceID, "session", ec.Session, "error", err)
		if o.exporter != nil {
			intentType := ""
			if pipeline.Intent != nil {
				intentType = pipeline.Intent.Type
			}
			o.exporter.ObservePipeline(intentType, string(rm.ComplexityLevel), "error", rm.Duration)
		}
		return result, err
	}

	// Stage 1: parse.
	raw := strings.TrimSpace(input)
	if raw == "" {
		return fail(ErrEmptyInput)
	}
	o.memory.SetSession("last_request", raw)
	if ec.Session != "" {
		o.memory.SetSession("session_id", ec.Session)
	}
	slog.Info("pipeline: request accepted",
		"trace_id", traceID, "session", ec.Session, "length", len(raw))
	stageDone("parse")

	// Stage 2: classify intent.
	intent := o.classifier.Classify(raw)
	pipeline.Intent = intent
	stageDone("classify_intent")

	// Stage 3: decompose.
	dec := o.decomposer.Decompose(raw, intent)
	pipeline.Decomposition = dec
	stageDone("decompose")

	// Stage 4: score complexity.
	cx := o.scorer.Score(dec)
	pipeline.Complexity = cx
	rm.ComplexityLevel = cx.Level
	stageDone("score_complexity")

	// Stage 5: allocate agents.
	alloc, err := o.spawner.Allocate(dec, cx, intent)
	if err != nil {
		stageDone("allocate_agents")
		return fail(err)
	}
	pipeline.Allocation = alloc
	rm.AgentsUsed = len(alloc.Agents)
	stageDone("allocate_agents")

	// Stage 6: execute.
	dag, err := buildDAG(dec.Tasks)
	if err != nil {
		stageDone("execute_dag")
		return fail(err)
	}
	gate := ec.Gate
	if gate == nil {
		gate = AllowAllGate{}
	}
	exec := o.scheduler.Execute(ctx, dag, alloc, gate, dispatcher, traceID)
	pipeline.Execution = exec
	stageDone("execute_dag")

	// Stage 7: evaluate.
	ev := o.evaluator.Evaluate(exec)
	pipeline.Evaluation = ev
	stageDone("evaluate")

	// Stage 8: aggregate.
	summary := o.aggregator.Summarize(ev, exec)
	result.Output = summary
	stageDone("aggregate")

	// Stage 9: learn. Learning is best effort and never fails the request.
	o.learn(raw, intent, cx, dec, exec, ev, summary, traceID)
	stageDone("learn")

	// Stage 10: emit.
	rm.Duration = time.Since(start)
	rm.TasksCompleted = ev.Completed
	rm.TasksFailed = ev.Failed

	if o.exporter != nil {
		o.exporter.ObservePipeline(intent.Type, string(cx.Level), "ok", rm.Duration)
		o.exporter.ObserveWaves(exec.Waves)
		o.exporter.SetPoolActive(o.pool.Stats().Active)
		taskClusters := clusterByTaskID(dec)
		for _, r := range exec.Results {
			o.exporter.ObserveTask(taskClusters[r.TaskID], string(r.Status), r.Duration)
		}
		for _, a := range o.registry.Agents() {
			o.exporter.SetAgentGauges(a.ID, a.Cluster, a.Confidence, a.FailureRate)
		}
	}

	slog.Info("pipeline: request complete",
		"trace_id", traceID,
		"session", ec.Session,
		"intent", intent.Type,
		"complexity", cx.Level,
		"strategy", alloc.Strategy,
		"waves", exec.Waves,
		"completed", ev.Completed,
		"failed", ev.Failed,
		"quality", ev.Quality,
		"duration_ms", rm.Duration.Milliseconds())

	return result, nil
}

// learn feeds the finished request into the learning system, updates agent
// execution metrics, and autosaves memory. Any panic here is contained so a
// learning bug cannot fail an otherwise successful request.
func (o *Orchestrator) learn(raw string, intent *Intent, cx *Complexity, dec *Decomposition, exec *ExecutionResult, ev *Evaluation, summary, traceID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("pipeline: learning stage panicked",
				"trace_id", traceID, "panic", r)
		}
	}()

	taskClusters := clusterByTaskID(dec)

	// Execution statistics update directly; confidence moves both here and
	// through the batched learning deltas, additively.
	for _, r := range exec.Results {
		if r.AgentID == "" {
			continue
		}
		if r.Status != TaskStatusCompleted && r.Status != TaskStatusFailed {
			continue
		}
		if err := o.registry.UpdateMetrics(r.AgentID, registry.MetricSample{
			Duration: r.Duration,
			Failed:   r.Status == TaskStatusFailed,
		}); err != nil {
			slog.Warn("pipeline: metrics update skipped",
				"trace_id", traceID, "agent_id", r.AgentID, "error", err)
		}
	}

	outcome := learning.RequestOutcome{
		Request:     raw,
		IntentType:  intent.Type,
		Complexity:  cx.Level,
		Quality:     ev.Quality,
		SuccessRate: ev.SuccessRate,
		AvgDuration: ev.AvgDuration,
		Summary:     summary,
	}
	for _, r := range exec.Results {
		outcome.Tasks = append(outcome.Tasks, learning.TaskOutcome{
			TaskID:      r.TaskID,
			Description: r.Description,
			AgentID:     r.AgentID,
			Cluster:     taskClusters[r.TaskID],
			Status:      string(r.Status),
			Duration:    r.Duration,
			Wave:        r.Wave,
		})
	}

	o.learner.Record(outcome)
	applied := o.learner.ApplyUpdates(o.registry)
	slog.Debug("pipeline: learning applied",
		"trace_id", traceID, "confidence_updates", applied)

	if o.snapshotPath != "" {
		if err := o.memory.Save(o.snapshotPath); err != nil {
			slog.Error("pipeline: memory snapshot failed",
				"trace_id", traceID, "path", o.snapshotPath, "error", err)
		}
	}
}

func clusterByTaskID(dec *Decomposition) map[string]string {
	out := make(map[string]string, len(dec.Tasks))
	for _, t := range dec.Tasks {
		out[t.ID] = t.Cluster
	}
	return out
}
