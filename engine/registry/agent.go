// Package registry maintains the catalog of worker agents grouped by cluster.
// It is the single mutable shared state for agent performance: allocation
// reads it on every request, and both the local metric path and the learning
// system's batched deltas write confidence back through it.
package registry

import (
	"time"
)

// Level classifies how demanding a request is. Agents declare which levels
// they are willing to take on.
type Level string

const (
	LevelSimple  Level = "simple"
	LevelMedium  Level = "medium"
	LevelComplex Level = "complex"
)

// Confidence bounds and update constants.
const (
	MinConfidence = 0.1
	MaxConfidence = 1.0

	// emaAlpha is the smoothing factor for avg execution time and failure rate.
	emaAlpha = 0.3

	successBoost   = 0.02
	failurePenalty = 0.05
)

// Agent is a named worker profile. It is not a thread; it is the unit of
// selection and of reinforcement scoring.
type Agent struct {
	ID      string   `json:"id"`
	Role    string   `json:"role"`
	Cluster string   `json:"cluster"`
	Skills  []string `json:"skills"`
	Levels  []Level  `json:"levels"`

	// Confidence is the ranking key for selection, kept within
	// [MinConfidence, MaxConfidence] at all times.
	Confidence float64 `json:"confidence_score"`

	// AvgExecSeconds is an exponential moving average of observed task
	// durations, seeded with an expected value per agent.
	AvgExecSeconds  float64   `json:"avg_execution_time"`
	TotalExecutions int       `json:"total_executions"`
	FailureRate     float64   `json:"failure_rate"`
	CreatedAt       time.Time `json:"created_at"`
}

// SupportsLevel reports whether the agent accepts tasks of the given level.
func (a *Agent) SupportsLevel(level Level) bool {
	for _, l := range a.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// HasAnySkill reports whether the agent has at least one of the given skills.
func (a *Agent) HasAnySkill(skills []string) bool {
	for _, want := range skills {
		for _, have := range a.Skills {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Cluster groups agents by domain. An agent belongs to exactly one cluster.
type Cluster struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	AgentIDs    []string `json:"agent_ids"`
}

// MetricSample is one observed task outcome for an agent.
type MetricSample struct {
	Duration time.Duration
	Failed   bool
}
