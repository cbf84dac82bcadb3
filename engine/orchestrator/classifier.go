package orchestrator

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/hrygo/cortex/engine/registry"
)

// IntentGeneral is the fallback intent type when nothing matches.
const IntentGeneral = "general"

// generalConfidence is the fixed confidence of the fallback intent.
const generalConfidence = 0.3

// intentPattern is one keyword-driven intent definition. Registration
// order is the tie-break for equal-confidence intents.
type intentPattern struct {
	Type     string
	Cluster  string
	Keywords []string
}

// builtinIntentPatterns returns the six built-in intents in their fixed
// registration order.
func builtinIntentPatterns() []intentPattern {
	return []intentPattern{
		{
			Type: "code", Cluster: registry.ClusterCoding,
			Keywords: []string{"build", "implement", "code", "api", "function", "refactor", "fix", "bug", "test", "write", "develop"},
		},
		{
			Type: "research", Cluster: registry.ClusterResearch,
			Keywords: []string{"research", "investigate", "explore", "learn", "compare", "documentation", "read"},
		},
		{
			Type: "devops", Cluster: registry.ClusterDevops,
			Keywords: []string{"deploy", "docker", "kubernetes", "pipeline", "infrastructure", "server", "release", "production", "monitor"},
		},
		{
			Type: "design", Cluster: registry.ClusterUIUX,
			Keywords: []string{"design", "ui", "ux", "layout", "wireframe", "mockup", "style"},
		},
		{
			Type: "analysis", Cluster: registry.ClusterAnalysis,
			Keywords: []string{"analyze", "analysis", "data", "metrics", "report", "statistics", "chart"},
		},
		{
			Type: "planning", Cluster: registry.ClusterEvaluation,
			Keywords: []string{"plan", "roadmap", "schedule", "organize", "prioritize", "strategy", "milestone"},
		},
	}
}

// ClusterForIntent maps an intent type to its registry cluster. Unknown
// types fall back to the research cluster, same as the general intent.
func ClusterForIntent(intentType string) string {
	for _, p := range builtinIntentPatterns() {
		if p.Type == intentType {
			return p.Cluster
		}
	}
	return registry.ClusterResearch
}

// IntentClassifier scores a request against the built-in intent patterns.
type IntentClassifier struct {
	patterns []intentPattern
}

// NewIntentClassifier creates a classifier with the built-in patterns.
func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{patterns: builtinIntentPatterns()}
}

// Classify performs multi-label keyword scoring and returns the primary
// intent plus the remaining candidates as secondaries. Keywords match as
// substrings of the lowercased input; confidence saturates at three hits.
func (c *IntentClassifier) Classify(raw string) *Intent {
	lower := strings.ToLower(raw)

	type scored struct {
		pattern intentPattern
		matched []string
		conf    float64
	}
	var candidates []scored
	for _, p := range c.patterns {
		var matched []string
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		candidates = append(candidates, scored{
			pattern: p,
			matched: matched,
			conf:    math.Min(float64(len(matched))/3.0, 1.0),
		})
	}

	if len(candidates) == 0 {
		return &Intent{
			Type:       IntentGeneral,
			Cluster:    registry.ClusterResearch,
			Confidence: generalConfidence,
			Matched:    []string{},
		}
	}

	// Stable sort keeps registration order as the tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].conf > candidates[j].conf
	})

	top := candidates[0]
	intent := &Intent{
		Type:       top.pattern.Type,
		Cluster:    top.pattern.Cluster,
		Confidence: top.conf,
		Matched:    top.matched,
	}
	for _, c := range candidates[1:] {
		intent.Secondary = append(intent.Secondary, SecondaryIntent{
			Type:       c.pattern.Type,
			Confidence: c.conf,
		})
	}

	slog.Debug("classifier: intent scored",
		"type", intent.Type,
		"confidence", intent.Confidence,
		"matched", intent.Matched,
		"secondary_count", len(intent.Secondary))
	return intent
}
