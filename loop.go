package streamworker

import (
	"context"
	"errors"
)

var ErrLoopStopped = errors.New("event loop stopped")

// EventLoop runs tasks one at a time, in the order they were scheduled, on a
// single goroutine. It is the consumer context that subscriber callbacks run
// on; several handles may share one loop.
type EventLoop struct {
	tasks *Mailbox[func()]
	done  chan struct{}
}

func NewEventLoop() *EventLoop {
	l := &EventLoop{
		tasks: NewMailbox[func()](0, Block),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		task, err := l.tasks.Take(context.Background())
		if err != nil {
			return
		}
		task()
	}
}

// Schedule never blocks.
func (l *EventLoop) Schedule(task func()) error {
	if err := l.tasks.Put(context.Background(), task); err != nil {
		return ErrLoopStopped
	}
	return nil
}

// Stop lets already scheduled tasks finish, then ends the loop goroutine.
func (l *EventLoop) Stop() {
	l.tasks.Close()
}

func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

// Pending is the number of tasks waiting to run.
func (l *EventLoop) Pending() int {
	return l.tasks.Len()
}
