package orchestrator

import (
	"log/slog"

	"github.com/hrygo/cortex/engine/registry"
)

// maxComplexPool bounds the selected pool for complex requests.
const maxComplexPool = 10

// Spawner selects agents for a decomposition: a primary pool from the
// intent's cluster, widened by the secondary intents, deduplicated and
// ranked by confidence.
type Spawner struct {
	registry *registry.Registry
}

// NewSpawner creates a spawner over the given registry.
func NewSpawner(reg *registry.Registry) *Spawner {
	return &Spawner{registry: reg}
}

// Allocate builds the agent pool and per-task assignments. Every task id
// ends up in the assignment map with at least one agent; an empty pool
// fails the request with ErrNoEligibleAgents.
func (s *Spawner) Allocate(dec *Decomposition, cx *Complexity, intent *Intent) (*Allocation, error) {
	pool := s.registry.FindAgents(registry.Filter{Cluster: intent.Cluster, Level: cx.Level})
	for _, sec := range intent.Secondary {
		pool = append(pool, s.registry.FindAgents(registry.Filter{
			Cluster: ClusterForIntent(sec.Type),
			Level:   cx.Level,
		})...)
	}

	// Dedupe by id, preserving order: primary pool first.
	seen := make(map[string]struct{}, len(pool))
	deduped := pool[:0]
	for _, a := range pool {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		deduped = append(deduped, a)
	}

	if len(deduped) == 0 {
		return nil, ErrNoEligibleAgents
	}

	selected := selectByLevel(deduped, cx)

	assignments := make(map[string][]string, len(dec.Tasks))
	for _, t := range dec.Tasks {
		var ids []string
		for _, a := range selected {
			if a.Cluster == t.Cluster {
				ids = append(ids, a.ID)
			}
		}
		if len(ids) == 0 {
			ids = []string{selected[0].ID}
		}
		assignments[t.ID] = ids
	}

	alloc := &Allocation{
		Agents:      selected,
		Assignments: assignments,
		Strategy:    strategyForLevel(cx.Level),
	}
	slog.Debug("spawner: agents allocated",
		"pool_size", len(deduped),
		"selected", len(selected),
		"strategy", alloc.Strategy)
	return alloc, nil
}

// selectByLevel trims the deduplicated pool per complexity level. When the
// pool is smaller than the budget it is returned as-is.
func selectByLevel(pool []*registry.Agent, cx *Complexity) []*registry.Agent {
	n := len(pool)
	var want int
	switch cx.Level {
	case registry.LevelSimple:
		want = cx.AgentCount
		if want < 1 {
			want = 1
		}
	case registry.LevelMedium:
		want = cx.AgentCount
	default:
		want = maxComplexPool
	}
	if want > n {
		want = n
	}
	return pool[:want]
}

func strategyForLevel(level registry.Level) Strategy {
	switch level {
	case registry.LevelSimple:
		return StrategyDirect
	case registry.LevelMedium:
		return StrategyParallel
	default:
		return StrategyStaged
	}
}
