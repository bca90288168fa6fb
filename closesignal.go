package streamworker

import (
	"context"
	"sync"
)

type closeSignalKey struct{}

// closeContext embeds context.Context and adds a closing channel that is
// independent of cancellation.
type closeContext struct {
	context.Context
	closing chan struct{}
	once    sync.Once
}

func (c *closeContext) Value(key any) any {
	if key == (closeSignalKey{}) {
		return c
	}
	return c.Context.Value(key)
}

// WithCloseSignal returns a copy of parent carrying a close signal and the
// function that raises it. Raising it more than once is a no-op.
func WithCloseSignal(parent context.Context) (context.Context, func()) {
	ctx := &closeContext{
		Context: parent,
		closing: make(chan struct{}),
	}
	return ctx, func() {
		ctx.once.Do(func() {
			close(ctx.closing)
		})
	}
}

// Closing returns the close signal carried by ctx. Without one it falls
// back to ctx.Done().
func Closing(ctx context.Context) <-chan struct{} {
	if cc, ok := ctx.Value(closeSignalKey{}).(*closeContext); ok {
		return cc.closing
	}
	return ctx.Done()
}

// CloseRequested polls the close signal.
func CloseRequested(ctx context.Context) bool {
	select {
	case <-Closing(ctx):
		return true
	default:
		return false
	}
}
