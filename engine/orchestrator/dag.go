package orchestrator

import (
	"fmt"
	"sort"
)

// Node is one task inside the execution graph, with forward and reverse
// adjacency resolved at build time.
type Node struct {
	Task       *Task
	DependsOn  map[string]struct{}
	Dependents map[string]struct{}
	Status     TaskStatus
	Result     *TaskResult
}

// DAG is the executable form of a decomposition: a node map plus the
// topological waves the scheduler walks through.
type DAG struct {
	Nodes map[string]*Node

	// Waves partition the node set; every node in wave k depends only on
	// nodes in earlier waves. Within a wave, nodes keep source order.
	Waves [][]*Node
}

// BuildDAG converts tasks into a node graph and extracts topological waves
// by repeated frontier extraction. An empty frontier with nodes remaining
// signals a cycle.
func BuildDAG(tasks []*Task) (*DAG, error) {
	d := &DAG{Nodes: make(map[string]*Node, len(tasks))}

	for _, t := range tasks {
		if _, dup := d.Nodes[t.ID]; dup {
			return nil, fmt.Errorf("duplicate task id %q", t.ID)
		}
		deps := make(map[string]struct{}, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			deps[dep] = struct{}{}
		}
		d.Nodes[t.ID] = &Node{
			Task:       t,
			DependsOn:  deps,
			Dependents: make(map[string]struct{}),
			Status:     TaskStatusPending,
		}
	}

	// Reverse edges after all nodes exist.
	for id, node := range d.Nodes {
		for dep := range node.DependsOn {
			upstream, ok := d.Nodes[dep]
			if !ok {
				return nil, fmt.Errorf("task %s depends on unknown task %s", id, dep)
			}
			upstream.Dependents[id] = struct{}{}
		}
	}

	completed := make(map[string]struct{}, len(tasks))
	remaining := len(tasks)
	for remaining > 0 {
		var frontier []*Node
		for _, t := range tasks {
			node := d.Nodes[t.ID]
			if node.Status != TaskStatusPending {
				continue
			}
			ready := true
			for dep := range node.DependsOn {
				if _, done := completed[dep]; !done {
					ready = false
					break
				}
			}
			if ready {
				frontier = append(frontier, node)
			}
		}

		if len(frontier) == 0 {
			var stuck []string
			for _, t := range tasks {
				if d.Nodes[t.ID].Status == TaskStatusPending {
					stuck = append(stuck, t.ID)
				}
			}
			sort.Strings(stuck)
			return nil, &CycleError{Remaining: stuck}
		}

		for _, node := range frontier {
			node.Status = TaskStatusScheduled
			completed[node.Task.ID] = struct{}{}
		}
		d.Waves = append(d.Waves, frontier)
		remaining -= len(frontier)
	}

	return d, nil
}
