package workers

import (
	"sync"
	"testing"
	"time"

	sw "github.com/Channel-3-Eugene/streamworker"
)

type recorder struct {
	mu     sync.Mutex
	events []sw.Event
	err    error
	closed bool
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) OnEvent(ev sw.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnClose() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the handle to end")
	}
}

func (r *recorder) snapshot() ([]sw.Event, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sw.Event, len(r.events))
	copy(out, r.events)
	return out, r.closed, r.err
}

func newTestBridge(t *testing.T) *sw.Bridge {
	t.Helper()
	reg := sw.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register workers: %v", err)
	}
	return sw.NewBridge(reg)
}
