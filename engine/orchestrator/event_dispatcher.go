package orchestrator

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Renderer event types emitted during a pipeline run.
const (
	EventStageComplete = "stage_complete"
	EventWaveStart     = "wave_start"
	EventTaskStart     = "task_start"
	EventTaskEnd       = "task_end"
	EventWaveEnd       = "wave_end"
)

// EventCallback receives structured pipeline events. The renderer is a
// sink; its absence must not affect pipeline semantics.
type EventCallback func(eventType string, eventData string)

// EventDispatcher serializes event delivery to the callback on a single
// goroutine, so concurrent wave dispatches cannot interleave events, and a
// panicking renderer cannot take down the scheduler.
type EventDispatcher struct {
	callback EventCallback
	eventCh  chan event
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	traceID  string
}

type event struct {
	Type string
	Data string
}

// NewEventDispatcher creates a dispatcher for the given callback. A nil
// callback yields an inert dispatcher.
func NewEventDispatcher(traceID string, callback EventCallback) *EventDispatcher {
	if callback == nil {
		return &EventDispatcher{traceID: traceID}
	}
	d := &EventDispatcher{
		callback: callback,
		eventCh:  make(chan event, 100),
		traceID:  traceID,
	}
	d.wg.Add(1)
	go d.dispatchLoop()
	return d
}

func (d *EventDispatcher) dispatchLoop() {
	defer d.wg.Done()
	for e := range d.eventCh {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("event dispatcher: recovered from panic",
						"panic", r, "trace_id", d.traceID)
				}
			}()
			d.callback(e.Type, e.Data)
		}()
	}
}

// Send queues an event for sequential delivery.
func (d *EventDispatcher) Send(eventType, eventData string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.callback == nil || d.closed {
		return
	}
	d.eventCh <- event{Type: eventType, Data: eventData}
}

// SendJSON marshals the payload and queues it. Marshal failures are logged
// and dropped; events are advisory.
func (d *EventDispatcher) SendJSON(eventType string, payload any) {
	if d.callback == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("event dispatcher: marshal failed",
			"event_type", eventType, "error", err, "trace_id", d.traceID)
		return
	}
	d.Send(eventType, string(data))
}

// Close stops the dispatcher after draining queued events.
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.callback == nil || d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.eventCh)
	d.wg.Wait()
}
