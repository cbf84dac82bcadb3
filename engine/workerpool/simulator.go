package workerpool

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// SimulatedWorker is the default worker body. It sleeps for a short random
// interval and echoes the first assigned agent and the task description,
// giving the pipeline a deterministic result shape without an LLM backend.
type SimulatedWorker struct {
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSimulatedWorker creates the default simulator with a 50-250ms delay.
func NewSimulatedWorker() *SimulatedWorker {
	return &SimulatedWorker{minDelay: 50 * time.Millisecond, maxDelay: 250 * time.Millisecond}
}

// NewSimulatedWorkerWithDelay creates a simulator with a custom delay range,
// mainly for tests that want fast runs.
func NewSimulatedWorkerWithDelay(minDelay, maxDelay time.Duration) *SimulatedWorker {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &SimulatedWorker{minDelay: minDelay, maxDelay: maxDelay}
}

// Execute implements Worker.
func (w *SimulatedWorker) Execute(ctx context.Context, job Job) (*Result, error) {
	delay := w.minDelay
	if span := w.maxDelay - w.minDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	agentID := "unassigned"
	if len(job.AgentIDs) > 0 {
		agentID = job.AgentIDs[0]
	}
	return &Result{
		Output: fmt.Sprintf("[%s] completed: %s", agentID, job.Description),
		Metadata: map[string]any{
			"agent_id":    agentID,
			"simulated":   true,
			"duration_ms": delay.Milliseconds(),
		},
	}, nil
}
