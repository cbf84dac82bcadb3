package orchestrator

import (
	"log/slog"
	"regexp"
	"strings"
)

// splitPattern breaks a request on connector words and sentence punctuation.
var splitPattern = regexp.MustCompile(`(?i)\b(and|then|also|plus|with|after)\b|[.;]\s*`)

// connectorWords are the words the splitter treats as fragment boundaries.
var connectorWords = map[string]struct{}{
	"and": {}, "then": {}, "also": {}, "plus": {}, "with": {}, "after": {},
}

// sequenceMarkers are connectors that impose an ordering edge on the
// following fragment. Markers outside the connector set (once, when,
// finally, next) can only take effect when they survive a punctuation
// split; that asymmetry is a known quirk of the splitter.
var sequenceMarkers = map[string]struct{}{
	"then": {}, "after": {}, "once": {}, "when": {}, "finally": {}, "next": {},
}

// Decomposer splits a request into tasks and infers sequential edges from
// the connectors between fragments.
type Decomposer struct{}

// NewDecomposer creates a task decomposer.
func NewDecomposer() *Decomposer {
	return &Decomposer{}
}

type fragment struct {
	text      string
	connector string
}

// Decompose splits the raw request into tasks. All tasks inherit the
// primary intent's type and cluster; a fragment preceded by a sequence
// marker depends on the task before it.
func (d *Decomposer) Decompose(raw string, intent *Intent) *Decomposition {
	frags := d.split(raw)

	if len(frags) == 0 {
		frags = []fragment{{text: strings.TrimSpace(raw)}}
	}

	used := make(map[string]struct{})
	tasks := make([]*Task, 0, len(frags))
	prevID := ""
	for i, f := range frags {
		id := newTaskID(used)

		var deps []string
		if i > 0 {
			if _, seq := sequenceMarkers[f.connector]; seq {
				deps = []string{prevID}
			}
		}

		tasks = append(tasks, &Task{
			ID:          id,
			Index:       i,
			Description: f.text,
			Type:        intent.Type,
			Cluster:     intent.Cluster,
			DependsOn:   deps,
			Status:      TaskStatusPending,
			Priority:    taskPriority(intent.Type, f.text),
		})
		prevID = id
	}

	roots := 0
	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			roots++
		}
	}

	dec := &Decomposition{
		Tasks:             tasks,
		HasParallelizable: roots >= 2,
	}
	slog.Debug("decomposer: request split",
		"task_count", len(tasks),
		"parallelizable", dec.HasParallelizable)
	return dec
}

// split cuts the raw input into surviving fragments, each tagged with the
// connector that preceded it. The connector a fragment receives is the one
// captured by the separator immediately before it in the raw input, which
// can mislabel an edge when an adjacent fragment is dropped by filtering.
func (d *Decomposer) split(raw string) []fragment {
	seps := splitPattern.FindAllStringSubmatchIndex(raw, -1)

	var parts []fragment
	prev := 0
	conn := ""
	for _, m := range seps {
		parts = append(parts, fragment{text: raw[prev:m[0]], connector: conn})
		if m[2] >= 0 {
			conn = strings.ToLower(raw[m[2]:m[3]])
		} else {
			conn = ""
		}
		prev = m[1]
	}
	parts = append(parts, fragment{text: raw[prev:], connector: conn})

	var kept []fragment
	for _, f := range parts {
		text := strings.TrimSpace(f.text)
		if len(text) <= 2 {
			continue
		}
		if _, isConn := connectorWords[strings.ToLower(text)]; isConn {
			continue
		}
		kept = append(kept, fragment{text: text, connector: f.connector})
	}
	return kept
}

// taskPriority starts at 1, bumps for action-heavy intents and long
// fragments, and caps at 5.
func taskPriority(intentType, text string) int {
	p := 1
	if intentType == "code" || intentType == "devops" {
		p++
	}
	if len(strings.Fields(text)) > 10 {
		p++
	}
	if p > 5 {
		p = 5
	}
	return p
}
