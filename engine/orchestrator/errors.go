package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when the raw request is empty or whitespace.
var ErrEmptyInput = errors.New("input is empty")

// ErrNoEligibleAgents is returned when the spawner's deduplicated pool is
// empty; the request cannot proceed.
var ErrNoEligibleAgents = errors.New("no eligible agents for request")

// CycleError reports a dependency cycle found while building waves. The
// decomposer cannot produce cycles; this guards externally supplied plans.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected among tasks: %s", strings.Join(e.Remaining, ", "))
}

// IsCycle reports whether err is a CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
