package streamworker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const testTimeout = 2 * time.Second

// recorder is a Subscriber that keeps everything it is handed.
type recorder struct {
	mu     sync.Mutex
	events []Event
	closes int
	errs   []error
	once   sync.Once
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) OnEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnClose() {
	r.mu.Lock()
	r.closes++
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.once.Do(func() { close(r.done) })
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for the terminal callback")
	}
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// sumWorker adds up "value" payloads and emits ("sum", n) at end of input.
func sumWorker(Config) (Worker, error) {
	return WorkerFunc(func(ctx context.Context, port *Port) error {
		var sum int64
		for {
			ev, err := port.Receive(ctx)
			if err != nil {
				return err
			}
			if port.Protocol().IsEndOfInput(ev.Payload) {
				return port.Emit("sum", sum)
			}
			f, ok := toFloat(ev.Payload)
			if !ok {
				return errors.New("not a number")
			}
			sum += int64(f)
		}
	}), nil
}

// echoWorker re-emits every input unchanged.
func echoWorker(Config) (Worker, error) {
	return WorkerFunc(func(ctx context.Context, port *Port) error {
		for {
			ev, err := port.Receive(ctx)
			if err != nil {
				return err
			}
			if err := port.EmitEvent(ev); err != nil {
				return err
			}
		}
	}), nil
}

// countWorker emits ("n", i) for i in [0, count) and returns.
func countWorker(cfg Config) (Worker, error) {
	count := cfg.Int("count", 10)
	return WorkerFunc(func(ctx context.Context, port *Port) error {
		for i := 0; i < count; i++ {
			if err := port.Emit("n", i); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	reg.MustRegister("sum", sumWorker)
	reg.MustRegister("echo", echoWorker)
	reg.MustRegister("count", countWorker)
	reg.MustRegister("fail", func(Config) (Worker, error) {
		return WorkerFunc(func(context.Context, *Port) error {
			return errors.New("boom")
		}), nil
	})
	reg.MustRegister("panic", func(Config) (Worker, error) {
		return WorkerFunc(func(context.Context, *Port) error {
			panic("boom")
		}), nil
	})
	reg.MustRegister("reject", func(Config) (Worker, error) {
		return nil, errors.New("bad option")
	})
	reg.MustRegister("factory-panic", func(Config) (Worker, error) {
		panic("bad factory")
	})
	return reg
}

func testBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	return NewBridge(testRegistry(t), opts...)
}
