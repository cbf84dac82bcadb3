// Package orchestrator implements the cognitive pipeline that turns a
// free-form request into a DAG of subtasks and executes it wave by wave
// across a pool of named agents: parse, classify, decompose, score, allocate,
// execute, evaluate, aggregate, learn, emit.
package orchestrator

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/cortex/engine/registry"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	// TaskStatusSkipped indicates the task was dropped due to upstream failure.
	TaskStatusSkipped TaskStatus = "skipped"
)

// IsTerminal returns true for final states.
func (ts TaskStatus) IsTerminal() bool {
	return ts == TaskStatusCompleted || ts == TaskStatusFailed || ts == TaskStatusSkipped
}

// Task is a single decomposed unit of work.
type Task struct {
	// ID is a fresh 8-hex-character identifier, unique per decomposition.
	ID string `json:"id"`

	// Index is the task's position in source order.
	Index int `json:"index"`

	Description string `json:"description"`

	// Type is the intent label inherited from the primary intent.
	Type string `json:"type"`

	// Cluster keys into the agent registry.
	Cluster string `json:"cluster"`

	// DependsOn lists ids of earlier tasks in the same decomposition.
	DependsOn []string `json:"depends_on,omitempty"`

	Status TaskStatus `json:"status"`

	// Priority ranges 1..5.
	Priority int `json:"priority"`
}

// Decomposition is the ordered task list produced from one request.
type Decomposition struct {
	Tasks []*Task `json:"tasks"`

	// HasParallelizable is true when at least two tasks have no
	// dependencies and can start together.
	HasParallelizable bool `json:"has_parallelizable"`
}

// SecondaryIntent is a lower-confidence intent candidate.
type SecondaryIntent struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Intent is the classification of a request.
type Intent struct {
	Type       string            `json:"type"`
	Cluster    string            `json:"cluster"`
	Confidence float64           `json:"confidence"`
	Matched    []string          `json:"matched"`
	Secondary  []SecondaryIntent `json:"secondary,omitempty"`
}

// ComplexityDetails breaks the complexity score into its factors.
type ComplexityDetails struct {
	SubtaskCount     int     `json:"subtask_count"`
	DependencyWeight float64 `json:"dependency_weight"`
	RiskFactor       float64 `json:"risk_factor"`
}

// Complexity is the scored difficulty of a decomposition.
type Complexity struct {
	Score      float64           `json:"score"`
	Level      registry.Level    `json:"level"`
	AgentCount int               `json:"agent_count"`
	Waves      int               `json:"waves"`
	Details    ComplexityDetails `json:"details"`
}

// Strategy names the execution approach chosen for a request.
type Strategy string

const (
	StrategyDirect   Strategy = "direct_execution"
	StrategyParallel Strategy = "parallel_pool"
	StrategyStaged   Strategy = "dag_staged_waves"
)

// Allocation is the outcome of agent selection: a deduplicated agent pool
// and a per-task assignment map.
type Allocation struct {
	Agents []*registry.Agent `json:"agents"`

	// Assignments maps every task id to a non-empty list of agent ids.
	Assignments map[string][]string `json:"assignments"`

	Strategy Strategy `json:"strategy"`
}

// TaskResult is the settled outcome of one task.
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Description string        `json:"description"`
	Status      TaskStatus    `json:"status"`
	Output      string        `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ms"`
	AgentID     string        `json:"agent_id,omitempty"`
	Wave        int           `json:"wave"`
}

// ExecutionResult collects task results across all processed waves.
type ExecutionResult struct {
	// Results are appended in settle order within each wave.
	Results    []TaskResult `json:"results"`
	Waves      int          `json:"waves"`
	TotalTasks int          `json:"total_tasks"`
}

// EvalError is one aggregated task error.
type EvalError struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
	// Recoverable is false when the error message signals a fatal condition.
	Recoverable bool `json:"recoverable"`
}

// Evaluation summarizes an execution.
type Evaluation struct {
	Completed     int           `json:"completed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	Total         int           `json:"total"`
	SuccessRate   float64       `json:"success_rate"`
	TotalDuration time.Duration `json:"total_duration_ms"`
	AvgDuration   time.Duration `json:"avg_duration_ms"`
	Errors        []EvalError   `json:"errors,omitempty"`
	Quality       float64       `json:"quality"`
}

// Pipeline is the per-stage record returned to the caller. Stages that did
// not run are nil.
type Pipeline struct {
	Intent        *Intent          `json:"intent,omitempty"`
	Decomposition *Decomposition   `json:"decomposition,omitempty"`
	Complexity    *Complexity      `json:"complexity,omitempty"`
	Allocation    *Allocation      `json:"agents,omitempty"`
	Execution     *ExecutionResult `json:"execution,omitempty"`
	Evaluation    *Evaluation      `json:"evaluation,omitempty"`
}

// Metrics is the per-request metrics record.
type Metrics struct {
	Duration        time.Duration  `json:"duration_ms"`
	AgentsUsed      int            `json:"agents_used"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksFailed     int            `json:"tasks_failed"`
	ComplexityLevel registry.Level `json:"complexity_level"`
}

// Result is the orchestrator's answer to one request.
type Result struct {
	Output   string    `json:"output"`
	Pipeline *Pipeline `json:"pipeline"`
	Metrics  *Metrics  `json:"metrics"`
}

// newTaskID returns a fresh 8-hex-character id not present in used, and
// records it. Collisions inside one decomposition are improbable but
// regenerated anyway so test runs stay deterministic in shape.
func newTaskID(used map[string]struct{}) string {
	for {
		u := uuid.New()
		id := hex.EncodeToString(u[:4])
		if _, dup := used[id]; !dup {
			used[id] = struct{}{}
			return id
		}
	}
}

// GenerateTraceID creates a request trace id from secure random bytes.
func GenerateTraceID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		slog.Warn("GenerateTraceID: crypto rand failed, using fallback", "error", err)
		return fmt.Sprintf("trace-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("trace-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(bytes)[:12])
}
