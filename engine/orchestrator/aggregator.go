package orchestrator

import (
	"fmt"
	"strings"
)

// Aggregator renders the user-facing summary of a finished request.
type Aggregator struct{}

// NewAggregator creates an aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Summarize combines completion counts, total duration and quality into a
// headline, followed by one bulleted line per completed task.
func (a *Aggregator) Summarize(ev *Evaluation, exec *ExecutionResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Completed %d/%d tasks", ev.Completed, ev.Total))
	if ev.Failed > 0 || ev.Skipped > 0 {
		sb.WriteString(fmt.Sprintf(" (%d failed, %d skipped)", ev.Failed, ev.Skipped))
	}
	sb.WriteString(fmt.Sprintf(" in %dms, quality %.0f%%\n",
		ev.TotalDuration.Milliseconds(), ev.Quality*100))

	for _, r := range exec.Results {
		if r.Status != TaskStatusCompleted {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n• %s: %s", r.Description, r.Output))
	}

	return sb.String()
}
