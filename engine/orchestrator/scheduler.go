package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hrygo/cortex/engine/workerpool"
)

// WaveScheduler drives wave-by-wave DAG execution. Every node of a wave is
// dispatched to the worker pool concurrently; the next wave starts only
// after the whole wave has settled, and failures skip their dependents.
type WaveScheduler struct {
	pool *workerpool.Pool
}

// NewWaveScheduler creates a scheduler over the given pool.
func NewWaveScheduler(pool *workerpool.Pool) *WaveScheduler {
	return &WaveScheduler{pool: pool}
}

// Execute runs the DAG. Results are appended in settle order within each
// wave and tagged with their wave index. If ctx is cancelled, outstanding
// dispatches finish with a cancellation error and later waves never start.
func (s *WaveScheduler) Execute(ctx context.Context, dag *DAG, alloc *Allocation, gate PermissionGate, events *EventDispatcher, traceID string) *ExecutionResult {
	result := &ExecutionResult{TotalTasks: len(dag.Nodes)}

	var mu sync.Mutex
	appendResult := func(node *Node, tr TaskResult) {
		mu.Lock()
		node.Status = tr.Status
		node.Result = &tr
		node.Task.Status = tr.Status
		result.Results = append(result.Results, tr)
		mu.Unlock()
	}

	for waveIdx, wave := range dag.Waves {
		if ctx.Err() != nil {
			slog.Warn("scheduler: cancelled before wave",
				"trace_id", traceID, "wave", waveIdx)
			break
		}
		result.Waves = waveIdx + 1

		// Dispatch order within a wave follows source order.
		nodes := make([]*Node, len(wave))
		copy(nodes, wave)
		sort.SliceStable(nodes, func(i, j int) bool {
			return nodes[i].Task.Index < nodes[j].Task.Index
		})

		events.SendJSON(EventWaveStart, map[string]any{
			"wave": waveIdx,
			"size": len(nodes),
		})

		var wg sync.WaitGroup
		for _, node := range nodes {
			if node.Status == TaskStatusSkipped {
				// Skipped upstream; settle without dispatching.
				appendResult(node, TaskResult{
					TaskID:      node.Task.ID,
					Description: node.Task.Description,
					Status:      TaskStatusSkipped,
					Error:       skipReason(node),
					Wave:        waveIdx,
				})
				continue
			}

			agentID := ""
			if ids := alloc.Assignments[node.Task.ID]; len(ids) > 0 {
				agentID = ids[0]
			}
			node.Status = TaskStatusRunning
			node.Task.Status = TaskStatusRunning

			events.SendJSON(EventTaskStart, map[string]any{
				"task_id":  node.Task.ID,
				"agent_id": agentID,
				"wave":     waveIdx,
			})

			wg.Add(1)
			go func(node *Node, agentID string, waveIdx int) {
				defer wg.Done()
				defer func() {
					// A panic in the dispatch harness itself settles as a
					// blank failed result rather than tearing the wave down.
					if r := recover(); r != nil {
						slog.Error("scheduler: panic dispatching task",
							"trace_id", traceID,
							"task_id", node.Task.ID,
							"panic", r)
						appendResult(node, TaskResult{
							TaskID:  node.Task.ID,
							Status:  TaskStatusFailed,
							Error:   "internal scheduling error",
							AgentID: agentID,
							Wave:    waveIdx,
						})
					}
				}()

				start := time.Now()
				res, err := s.pool.Execute(ctx, workerpool.Job{
					TaskID:      node.Task.ID,
					Description: node.Task.Description,
					AgentIDs:    alloc.Assignments[node.Task.ID],
					Gate:        gate,
				})
				elapsed := time.Since(start)

				tr := TaskResult{
					TaskID:      node.Task.ID,
					Description: node.Task.Description,
					Duration:    elapsed,
					AgentID:     agentID,
					Wave:        waveIdx,
				}
				if err != nil {
					tr.Status = TaskStatusFailed
					tr.Error = err.Error()
					slog.Warn("scheduler: task failed",
						"trace_id", traceID,
						"task_id", node.Task.ID,
						"wave", waveIdx,
						"error", err)
				} else {
					tr.Status = TaskStatusCompleted
					tr.Output = res.Output
				}
				appendResult(node, tr)

				events.SendJSON(EventTaskEnd, map[string]any{
					"task_id":     node.Task.ID,
					"status":      string(tr.Status),
					"duration_ms": elapsed.Milliseconds(),
					"wave":        waveIdx,
				})
			}(node, agentID, waveIdx)
		}

		// Strict wave barrier: no speculative start of the next wave.
		wg.Wait()

		completed, failed := 0, 0
		for _, node := range nodes {
			switch node.Status {
			case TaskStatusFailed:
				failed++
				s.skipDependents(dag, node)
			case TaskStatusCompleted:
				completed++
			}
		}

		events.SendJSON(EventWaveEnd, map[string]any{
			"wave":      waveIdx,
			"completed": completed,
			"failed":    failed,
		})
		slog.Info("scheduler: wave settled",
			"trace_id", traceID,
			"wave", waveIdx,
			"completed", completed,
			"failed", failed)
	}

	return result
}

// skipDependents walks the reverse edges from a failed node and marks every
// not-yet-dispatched descendant as skipped.
func (s *WaveScheduler) skipDependents(dag *DAG, failed *Node) {
	queue := []*Node{failed}
	visited := map[string]bool{failed.Task.ID: true}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for id := range curr.Dependents {
			if visited[id] {
				continue
			}
			visited[id] = true
			down := dag.Nodes[id]
			if down.Status == TaskStatusScheduled || down.Status == TaskStatusPending {
				down.Status = TaskStatusSkipped
				down.Task.Status = TaskStatusSkipped
			}
			queue = append(queue, down)
		}
	}
}

// skipReason names the upstream failure that caused a skip, when it can be
// determined from the node's direct dependencies.
func skipReason(node *Node) string {
	for dep := range node.DependsOn {
		return "skipped due to upstream failure in " + dep
	}
	return "skipped due to upstream failure"
}
