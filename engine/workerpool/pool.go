// Package workerpool provides a bounded concurrent executor for opaque task
// units. Callers that exceed the worker limit suspend on a FIFO queue until
// a slot frees up; the pool never rejects work on saturation.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxWorkers bounds in-flight executions when no limit is given.
const DefaultMaxWorkers = 8

// emaAlpha is the smoothing factor for the rolling average duration,
// matching the one agent metrics use.
const emaAlpha = 0.3

// PermissionGate is the side-effect gate a worker body may consult before
// performing a gated action. Decisions belong to the collaborator; the pool
// only carries the gate through to the job.
type PermissionGate interface {
	MayPerform(action, target string) bool
}

// Job is one unit of work dispatched to a worker.
type Job struct {
	TaskID      string
	Description string
	AgentIDs    []string
	Gate        PermissionGate
}

// Result is the successful outcome of a job.
type Result struct {
	Output   string
	Metadata map[string]any
}

// Worker is the injected task body. In a real deployment this calls an LLM;
// the pool treats it as opaque and only validates its contract.
type Worker interface {
	Execute(ctx context.Context, job Job) (*Result, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, job Job) (*Result, error)

// Execute implements Worker.
func (f WorkerFunc) Execute(ctx context.Context, job Job) (*Result, error) {
	return f(ctx, job)
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Active        int
	TotalExecuted int64
	TotalFailed   int64
	AvgDuration   time.Duration
}

// Pool executes jobs with at most maxWorkers in flight.
type Pool struct {
	worker     Worker
	sem        *semaphore.Weighted
	maxWorkers int

	mu            sync.Mutex
	active        int
	totalExecuted int64
	totalFailed   int64
	avgDuration   time.Duration
}

// New creates a pool around the given worker body. A nil worker gets the
// built-in simulator; maxWorkers <= 0 falls back to DefaultMaxWorkers.
func New(maxWorkers int, worker Worker) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	if worker == nil {
		worker = NewSimulatedWorker()
	}
	return &Pool{
		worker:     worker,
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		maxWorkers: maxWorkers,
	}
}

// MaxWorkers returns the configured concurrency bound.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}

// Execute runs one job, suspending until a worker slot is available.
// Waiters resume in FIFO order. The active counter is decremented on both
// the success and the failure path.
func (p *Pool) Execute(ctx context.Context, job Job) (*Result, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker slot: %w", err)
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	p.active++
	p.mu.Unlock()

	start := time.Now()
	res, err := p.runProtected(ctx, job)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.active--
	p.totalExecuted++
	if err != nil {
		p.totalFailed++
	}
	p.avgDuration = ema(p.avgDuration, elapsed)
	p.mu.Unlock()

	return res, err
}

// ema folds a new sample into the rolling average. The first sample seeds
// the average directly.
func ema(avg, sample time.Duration) time.Duration {
	if avg == 0 {
		return sample
	}
	return time.Duration(emaAlpha*float64(sample) + (1-emaAlpha)*float64(avg))
}

// runProtected isolates worker panics so a misbehaving body cannot take
// down the scheduling loop.
func (p *Pool) runProtected(ctx context.Context, job Job) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("workerpool: panic in worker body",
				"task_id", job.TaskID,
				"panic", r)
			res = nil
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	res, err = p.worker.Execute(ctx, job)
	if err == nil && res == nil {
		// Contract violation at the injection boundary.
		err = fmt.Errorf("worker returned neither result nor error")
	}
	return res, err
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:        p.active,
		TotalExecuted: p.totalExecuted,
		TotalFailed:   p.totalFailed,
		AvgDuration:   p.avgDuration,
	}
}
