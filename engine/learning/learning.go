// Package learning closes the reinforcement loop: it records task outcomes
// into memory, mines recurring patterns, and turns per-task observations
// into batched confidence deltas for the agent registry.
package learning

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/cortex/engine/registry"
	"github.com/hrygo/cortex/store"
)

// Task statuses as reported by the scheduler.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

const (
	boostDelta   = 0.02
	penaltyDelta = -0.05

	// fastExecutionThreshold marks a request whose successful tasks
	// averaged under this duration.
	fastExecutionThreshold = 100 * time.Millisecond

	// qualityPatternThreshold gates intent/complexity pattern mining.
	qualityPatternThreshold = 0.8

	// solutionSuccessThreshold gates storing the request as a solution.
	solutionSuccessThreshold = 0.8
)

// TaskOutcome is the per-task slice of a finished pipeline run.
type TaskOutcome struct {
	TaskID      string
	Description string
	AgentID     string
	Cluster     string
	Status      string
	Duration    time.Duration
	Wave        int
}

// RequestOutcome is the full pipeline record handed to the learning system
// once per request.
type RequestOutcome struct {
	Request     string
	IntentType  string
	Complexity  registry.Level
	Tasks       []TaskOutcome
	Quality     float64
	SuccessRate float64
	AvgDuration time.Duration
	Summary     string
}

// ConfidenceDelta is one queued confidence adjustment.
type ConfidenceDelta struct {
	AgentID string
	Delta   float64
	Reason  string
}

// System accumulates observations and applies them in batch.
type System struct {
	memory *store.Memory

	mu    sync.Mutex
	queue []ConfidenceDelta
}

// NewSystem creates a learning system backed by the given memory store.
func NewSystem(memory *store.Memory) *System {
	return &System{memory: memory}
}

// Record ingests one finished request: performance log entries, pattern
// mining, confidence deltas, and the solution index.
func (s *System) Record(outcome RequestOutcome) {
	now := time.Now().UTC()

	// Performance records go in first so cluster averages below include
	// this request. On a cluster's first ever run the average equals the
	// task's own duration, which means no boost; that bias is deliberate.
	for _, t := range outcome.Tasks {
		s.memory.RecordPerformance(store.PerformanceRecord{
			Timestamp:  now,
			AgentID:    t.AgentID,
			TaskID:     t.TaskID,
			DurationMs: t.Duration.Milliseconds(),
			Success:    t.Status == StatusCompleted,
			Complexity: string(outcome.Complexity),
			Cluster:    t.Cluster,
		})
	}

	s.minePatterns(outcome)

	for _, t := range outcome.Tasks {
		if t.AgentID == "" {
			continue
		}
		switch t.Status {
		case StatusCompleted:
			clusterAvg, n := s.memory.ClusterAvgDuration(t.Cluster)
			if n == 0 {
				clusterAvg = t.Duration
			}
			if t.Duration < clusterAvg {
				s.enqueue(ConfidenceDelta{
					AgentID: t.AgentID,
					Delta:   boostDelta,
					Reason:  "faster than cluster average",
				})
			}
		case StatusFailed:
			s.enqueue(ConfidenceDelta{
				AgentID: t.AgentID,
				Delta:   penaltyDelta,
				Reason:  "task failed",
			})
		}
	}

	if outcome.SuccessRate > solutionSuccessThreshold {
		s.memory.StoreSolution(outcome.Request, outcome.Summary)
	}
}

// minePatterns records optimization patterns for high-quality or fast runs.
func (s *System) minePatterns(outcome RequestOutcome) {
	if outcome.Quality > qualityPatternThreshold {
		key := fmt.Sprintf("%s:%s", outcome.IntentType, outcome.Complexity)
		s.memory.RecordPattern(key,
			fmt.Sprintf("high-quality allocation for %s requests at %s complexity", outcome.IntentType, outcome.Complexity),
			outcome.Quality, outcome.AvgDuration)
	}

	if avg, ok := successfulAvg(outcome.Tasks); ok && avg < fastExecutionThreshold {
		key := fmt.Sprintf("fast_execution:%s", outcome.IntentType)
		s.memory.RecordPattern(key,
			fmt.Sprintf("%s tasks complete well under the latency budget", outcome.IntentType),
			outcome.Quality, avg)
	}
}

func successfulAvg(tasks []TaskOutcome) (time.Duration, bool) {
	var sum time.Duration
	var n int
	for _, t := range tasks {
		if t.Status == StatusCompleted {
			sum += t.Duration
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / time.Duration(n), true
}

func (s *System) enqueue(d ConfidenceDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, d)
}

// PendingUpdates returns a copy of the queued deltas.
func (s *System) PendingUpdates() []ConfidenceDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConfidenceDelta, len(s.queue))
	copy(out, s.queue)
	return out
}

// ApplyUpdates drains the delta queue into the registry. Each queued delta
// is applied at most once; unknown agents are logged and skipped. Returns
// the number of deltas applied.
func (s *System) ApplyUpdates(reg *registry.Registry) int {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	applied := 0
	for _, d := range pending {
		newConf, err := reg.AdjustConfidence(d.AgentID, d.Delta)
		if err != nil {
			slog.Warn("learning: skipping confidence update", "agent_id", d.AgentID, "error", err)
			continue
		}
		applied++
		slog.Debug("learning: confidence adjusted",
			"agent_id", d.AgentID,
			"delta", d.Delta,
			"confidence", newConf,
			"reason", d.Reason)
	}
	return applied
}
