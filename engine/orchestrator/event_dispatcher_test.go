package orchestrator

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) callback(eventType, eventData string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType+":"+eventData)
}

func (r *eventRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func TestDispatcherPreservesOrder(t *testing.T) {
	rec := &eventRecorder{}
	d := NewEventDispatcher("trace-test", rec.callback)

	for i := 0; i < 20; i++ {
		d.Send(EventTaskEnd, fmt.Sprintf("%d", i))
	}
	d.Close()

	got := rec.snapshot()
	require.Len(t, got, 20)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("%s:%d", EventTaskEnd, i), e)
	}
}

func TestDispatcherSurvivesPanickingCallback(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	d := NewEventDispatcher("trace-test", func(eventType, eventData string) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, eventData)
		if eventData == "boom" {
			panic("renderer crashed")
		}
	})

	d.Send(EventTaskStart, "boom")
	d.Send(EventTaskEnd, "after")
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"boom", "after"}, delivered)
}

func TestDispatcherNilCallbackIsInert(t *testing.T) {
	d := NewEventDispatcher("trace-test", nil)
	d.Send(EventWaveStart, "ignored")
	d.SendJSON(EventWaveEnd, map[string]int{"wave": 0})
	d.Close()
	d.Close()
}

func TestDispatcherSendJSON(t *testing.T) {
	rec := &eventRecorder{}
	d := NewEventDispatcher("trace-test", rec.callback)

	d.SendJSON(EventWaveStart, map[string]any{"wave": 1})
	d.Close()

	got := rec.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, EventWaveStart+`:{"wave":1}`, got[0])
}

func TestDispatcherSendAfterClose(t *testing.T) {
	rec := &eventRecorder{}
	d := NewEventDispatcher("trace-test", rec.callback)
	d.Close()
	d.Send(EventTaskStart, "late")
	assert.Empty(t, rec.snapshot())
}
