package orchestrator

import (
	"log/slog"
	"math"
	"strings"

	"github.com/hrygo/cortex/engine/registry"
)

// riskKeywords raise the risk factor by 0.2 per occurrence, capped at 3.0.
var riskKeywords = []string{
	"deploy", "delete", "production", "database", "migration",
	"security", "authentication", "payment", "critical", "infrastructure",
}

const (
	riskPerHit = 0.2
	riskCap    = 3.0
)

// agentRange is the allowed agent count per complexity level.
var agentRanges = map[registry.Level][2]int{
	registry.LevelSimple:  {1, 2},
	registry.LevelMedium:  {3, 5},
	registry.LevelComplex: {5, 10},
}

// ComplexityScorer scores a decomposition by size, dependency density and
// risk, and derives the agent budget and wave count.
type ComplexityScorer struct{}

// NewComplexityScorer creates a scorer.
func NewComplexityScorer() *ComplexityScorer {
	return &ComplexityScorer{}
}

// Score computes the complexity record for a decomposition.
func (s *ComplexityScorer) Score(dec *Decomposition) *Complexity {
	subtaskCount := len(dec.Tasks)

	totalDeps := 0
	for _, t := range dec.Tasks {
		totalDeps += len(t.DependsOn)
	}
	depWeight := 1 + float64(totalDeps)/math.Max(float64(subtaskCount), 1)

	risk := 1.0
	for _, t := range dec.Tasks {
		lower := strings.ToLower(t.Description)
		for _, kw := range riskKeywords {
			risk += riskPerHit * float64(strings.Count(lower, kw))
		}
	}
	risk = math.Min(risk, riskCap)

	score := math.Round(float64(subtaskCount)*depWeight*risk*10) / 10

	// A score right on the upper-medium boundary runs as complex so that
	// staged-wave execution kicks in for it.
	var level registry.Level
	switch {
	case score <= 3:
		level = registry.LevelSimple
	case score < 7:
		level = registry.LevelMedium
	default:
		level = registry.LevelComplex
	}

	bounds := agentRanges[level]
	lo, hi := float64(bounds[0]), float64(bounds[1])
	agentCount := int(math.Round(lo + math.Min(score/10, 1)*(hi-lo)))

	cx := &Complexity{
		Score:      score,
		Level:      level,
		AgentCount: agentCount,
		Waves:      waveCount(dec.Tasks),
		Details: ComplexityDetails{
			SubtaskCount:     subtaskCount,
			DependencyWeight: depWeight,
			RiskFactor:       risk,
		},
	}
	slog.Debug("complexity: scored",
		"score", cx.Score,
		"level", cx.Level,
		"agent_count", cx.AgentCount,
		"waves", cx.Waves)
	return cx
}

// waveCount computes 1 + the longest dependency chain. Dependencies always
// point at earlier tasks, so one forward pass suffices.
func waveCount(tasks []*Task) int {
	if len(tasks) == 0 {
		return 0
	}
	levelByID := make(map[string]int, len(tasks))
	maxLevel := 0
	for _, t := range tasks {
		level := 0
		for _, dep := range t.DependsOn {
			if dl, ok := levelByID[dep]; ok && dl+1 > level {
				level = dl + 1
			}
		}
		levelByID[t.ID] = level
		if level > maxLevel {
			maxLevel = level
		}
	}
	return maxLevel + 1
}
