// Package store implements the layered memory behind the orchestration
// engine: ephemeral session state, a capped performance log, a deduplicated
// pattern ledger, and a task-solution index. All layers share one lock so
// the capped truncation is atomic with respect to readers.
package store

import (
	"strings"
	"sync"
	"time"
)

const (
	// maxPerformanceRecords caps the performance log.
	maxPerformanceRecords = 1000
	// truncateKeep is how many of the newest records survive an overflow.
	truncateKeep = 500
)

// PerformanceRecord is one observed task outcome.
type PerformanceRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	AgentID    string    `json:"agent_id"`
	TaskID     string    `json:"task_id"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Complexity string    `json:"complexity"`
	Cluster    string    `json:"cluster"`
}

// Pattern is an observed optimization opportunity keyed by a stable string.
// Recording the same key again increments AppliedCount.
type Pattern struct {
	Key           string     `json:"pattern"`
	Optimization  string     `json:"optimization"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
	LastApplied   *time.Time `json:"last_applied,omitempty"`
	AppliedCount  int        `json:"applied_count"`
	Quality       float64    `json:"quality,omitempty"`
	AvgDurationMs int64      `json:"avg_duration_ms,omitempty"`
}

// TaskSolution is a serialized high-quality request outcome kept for future
// retrieval. Embedding is reserved for a vector backend and stays empty.
type TaskSolution struct {
	TaskDescription string    `json:"task_description"`
	Solution        string    `json:"solution"`
	StoredAt        time.Time `json:"stored_at"`
	Embedding       []float64 `json:"embedding"`
}

// Memory is the four-layer in-process store.
type Memory struct {
	mu           sync.RWMutex
	session      map[string]any
	performance  []PerformanceRecord
	patterns     map[string]*Pattern
	patternOrder []string
	solutions    []TaskSolution
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		session:  make(map[string]any),
		patterns: make(map[string]*Pattern),
	}
}

// SetSession stores a session value. Session state is never persisted.
func (m *Memory) SetSession(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session[key] = value
}

// GetSession reads a session value.
func (m *Memory) GetSession(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.session[key]
	return v, ok
}

// ClearSession drops all session state.
func (m *Memory) ClearSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = make(map[string]any)
}

// RecordPerformance appends to the performance log. When the log overflows
// its cap, only the newest records are retained.
func (m *Memory) RecordPerformance(rec PerformanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.performance = append(m.performance, rec)
	if len(m.performance) > maxPerformanceRecords {
		tail := make([]PerformanceRecord, truncateKeep)
		copy(tail, m.performance[len(m.performance)-truncateKeep:])
		m.performance = tail
	}
}

// PerformanceLog returns a copy of the performance log, oldest first.
func (m *Memory) PerformanceLog() []PerformanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PerformanceRecord, len(m.performance))
	copy(out, m.performance)
	return out
}

// ClusterAvgDuration returns the mean duration of executions recorded for a
// cluster, and how many records contributed.
func (m *Memory) ClusterAvgDuration(cluster string) (time.Duration, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	var n int
	for i := range m.performance {
		if m.performance[i].Cluster == cluster {
			sum += m.performance[i].DurationMs
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return time.Duration(sum/int64(n)) * time.Millisecond, n
}

// RecordPattern records a pattern occurrence. New keys are appended to the
// ledger; existing keys have their applied count incremented and their
// quality/duration fields refreshed.
func (m *Memory) RecordPattern(key, optimization string, quality float64, avgDuration time.Duration) *Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()

	// UTC keeps snapshot round-trips exact (no monotonic clock residue).
	now := time.Now().UTC()
	if p, ok := m.patterns[key]; ok {
		p.AppliedCount++
		p.LastApplied = &now
		p.Quality = quality
		p.AvgDurationMs = avgDuration.Milliseconds()
		return p
	}
	p := &Pattern{
		Key:           key,
		Optimization:  optimization,
		DiscoveredAt:  now,
		AppliedCount:  1,
		Quality:       quality,
		AvgDurationMs: avgDuration.Milliseconds(),
	}
	m.patterns[key] = p
	m.patternOrder = append(m.patternOrder, key)
	return p
}

// Patterns returns the pattern ledger in discovery order.
func (m *Memory) Patterns() []Pattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Pattern, 0, len(m.patternOrder))
	for _, key := range m.patternOrder {
		out = append(out, *m.patterns[key])
	}
	return out
}

// StoreSolution appends a serialized pipeline outcome to the solution index.
func (m *Memory) StoreSolution(description, solution string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solutions = append(m.solutions, TaskSolution{
		TaskDescription: description,
		Solution:        solution,
		StoredAt:        time.Now().UTC(),
		Embedding:       []float64{},
	})
}

// Solutions returns a copy of the solution index.
func (m *Memory) Solutions() []TaskSolution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TaskSolution, len(m.solutions))
	copy(out, m.solutions)
	return out
}

// FindSolutions performs a case-insensitive keyword match over stored task
// descriptions. Embedding-based retrieval can replace this without changing
// the call sites.
func (m *Memory) FindSolutions(query string) []TaskSolution {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(query)
	var out []TaskSolution
	for _, s := range m.solutions {
		if strings.Contains(strings.ToLower(s.TaskDescription), q) {
			out = append(out, s)
		}
	}
	return out
}
