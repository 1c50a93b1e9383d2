package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressHubFanOut(t *testing.T) {
	h := newProgressHub()

	ch1, unsub1 := h.subscribe("run-1")
	ch2, unsub2 := h.subscribe("run-1")
	defer unsub1()
	defer unsub2()

	h.publish("run-1", ProgressEvent{Current: 1, Total: 3, Message: "Generated a.pdf"})

	for _, ch := range []<-chan ProgressEvent{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, 1, ev.Current)
		assert.Equal(t, 3, ev.Total)
	}
}

func TestProgressHubIsolatesRuns(t *testing.T) {
	h := newProgressHub()

	ch, unsub := h.subscribe("run-a")
	defer unsub()

	h.publish("run-b", ProgressEvent{Current: 1, Total: 1})
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestProgressHubCloseRun(t *testing.T) {
	h := newProgressHub()

	ch, unsub := h.subscribe("run-1")
	h.closeRun("run-1")

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing after close must not panic or double-close.
	unsub()
}

func TestProgressHubDropsWhenFull(t *testing.T) {
	h := newProgressHub()

	ch, unsub := h.subscribe("run-1")
	defer unsub()

	for i := 0; i < 200; i++ {
		h.publish("run-1", ProgressEvent{Current: i, Total: 200})
	}

	// Buffer capacity is 64; publishing never blocked.
	require.Len(t, ch, 64)
}
