package registry

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// Registry is the in-process agent catalog. Agents are kept in insertion
// order so that equal-confidence ranking stays stable across calls.
type Registry struct {
	mu       sync.RWMutex
	agents   []*Agent
	byID     map[string]*Agent
	clusters []*Cluster
	byCl     map[string]*Cluster
}

// New constructs a registry pre-populated with the built-in clusters and
// agents. The seed data is fixed so that selection order is reproducible.
func New() *Registry {
	r := &Registry{
		byID: make(map[string]*Agent),
		byCl: make(map[string]*Cluster),
	}
	for _, c := range builtinClusters() {
		r.clusters = append(r.clusters, c)
		r.byCl[c.ID] = c
	}
	for _, a := range builtinAgents() {
		if err := r.register(a); err != nil {
			// Built-in seeds are validated by tests; a bad seed is a
			// programming error.
			panic(err)
		}
	}
	return r
}

// register adds an agent to its cluster. Must not be called concurrently
// with reads; it is used during construction and catalog loading only.
func (r *Registry) register(a *Agent) error {
	if a.ID == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if _, dup := r.byID[a.ID]; dup {
		return fmt.Errorf("duplicate agent id %q", a.ID)
	}
	cluster, ok := r.byCl[a.Cluster]
	if !ok {
		return fmt.Errorf("agent %q references unknown cluster %q", a.ID, a.Cluster)
	}
	r.agents = append(r.agents, a)
	r.byID[a.ID] = a
	cluster.AgentIDs = append(cluster.AgentIDs, a.ID)
	return nil
}

// Filter narrows agent lookup. Zero-value fields are ignored.
type Filter struct {
	Cluster string
	Skills  []string
	Level   Level
}

// FindAgents returns agents matching the filter, sorted by descending
// confidence. The sort is stable over registration order.
func (r *Registry) FindAgents(f Filter) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Agent
	for _, a := range r.agents {
		if f.Cluster != "" && a.Cluster != f.Cluster {
			continue
		}
		if len(f.Skills) > 0 && !a.HasAnySkill(f.Skills) {
			continue
		}
		if f.Level != "" && !a.SupportsLevel(f.Level) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// Agents returns all agents in registration order.
func (r *Registry) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Clusters returns all clusters in registration order.
func (r *Registry) Clusters() []*Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Cluster, len(r.clusters))
	copy(out, r.clusters)
	return out
}

// UpdateMetrics folds one task outcome into the agent's running metrics.
// The duration is compared against the agent's average before the EMA
// update, so the reward tracks the agent's standing expectation.
func (r *Registry) UpdateMetrics(agentID string, sample MetricSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[agentID]
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}

	seconds := sample.Duration.Seconds()
	prevAvg := a.AvgExecSeconds

	a.TotalExecutions++
	a.AvgExecSeconds = emaAlpha*seconds + (1-emaAlpha)*prevAvg

	failed := 0.0
	if sample.Failed {
		failed = 1.0
	}
	a.FailureRate = emaAlpha*failed + (1-emaAlpha)*a.FailureRate

	switch {
	case sample.Failed:
		a.Confidence = math.Max(MinConfidence, a.Confidence-failurePenalty)
	case seconds < prevAvg:
		a.Confidence = math.Min(MaxConfidence, a.Confidence+successBoost)
	}

	slog.Debug("registry: metrics updated",
		"agent_id", a.ID,
		"executions", a.TotalExecutions,
		"avg_seconds", a.AvgExecSeconds,
		"failure_rate", a.FailureRate,
		"confidence", a.Confidence)
	return nil
}

// AdjustConfidence applies a batched confidence delta from the learning
// system. The result is clamped to the confidence bounds and rounded to
// three decimals. Returns the new confidence.
func (r *Registry) AdjustConfidence(agentID string, delta float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[agentID]
	if !ok {
		return 0, fmt.Errorf("unknown agent %q", agentID)
	}
	c := a.Confidence + delta
	c = math.Min(MaxConfidence, math.Max(MinConfidence, c))
	a.Confidence = math.Round(c*1000) / 1000
	return a.Confidence, nil
}
