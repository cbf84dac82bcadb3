package orchestrator

import (
	"math"
	"strings"
	"time"
)

// Quality score weights and normalization constants.
const (
	qualitySuccessWeight = 0.6
	qualitySpeedWeight   = 0.2
	qualityErrorWeight   = 0.2

	// speedBudgetMs is the average duration at which the speed score
	// bottoms out.
	speedBudgetMs = 10000.0

	// errorBudget is the error count at which the error score bottoms out.
	errorBudget = 5.0
)

// Evaluator turns an execution result into completion counts, a success
// rate and a bounded quality score.
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate scores one execution.
func (e *Evaluator) Evaluate(exec *ExecutionResult) *Evaluation {
	ev := &Evaluation{Total: len(exec.Results)}

	var totalDuration time.Duration
	for _, r := range exec.Results {
		totalDuration += r.Duration
		switch r.Status {
		case TaskStatusCompleted:
			ev.Completed++
		case TaskStatusFailed:
			ev.Failed++
			ev.Errors = append(ev.Errors, EvalError{
				TaskID:      r.TaskID,
				Error:       r.Error,
				Recoverable: !strings.Contains(r.Error, "fatal"),
			})
		case TaskStatusSkipped:
			ev.Skipped++
		}
	}

	ev.TotalDuration = totalDuration
	if ev.Total > 0 {
		ev.SuccessRate = float64(ev.Completed) / float64(ev.Total)
		ev.AvgDuration = totalDuration / time.Duration(ev.Total)
	}

	avgMs := float64(ev.AvgDuration.Milliseconds())
	speedScore := math.Max(0, 1-avgMs/speedBudgetMs)
	errorScore := math.Max(0, 1-float64(len(ev.Errors))/errorBudget)

	quality := qualitySuccessWeight*ev.SuccessRate +
		qualitySpeedWeight*speedScore +
		qualityErrorWeight*errorScore
	ev.Quality = math.Round(quality*100) / 100

	return ev
}
