package streamworker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseSignal_WithCloseSignal(t *testing.T) {
	parentCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctx, raise := WithCloseSignal(parentCtx)

	select {
	case <-Closing(ctx):
		t.Error("close signal should not be raised initially")
	default:
	}
	assert.False(t, CloseRequested(ctx))

	raise()
	raise()
	select {
	case <-Closing(ctx):
	default:
		t.Error("close signal should be raised after raise()")
	}
	assert.True(t, CloseRequested(ctx))
	assert.NoError(t, ctx.Err(), "raising the signal must not cancel the context")
}

func TestCloseSignal_FallsBackToDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.False(t, CloseRequested(ctx))

	cancel()
	assert.True(t, CloseRequested(ctx))
}

type testKey struct{}

func TestCloseSignal_SurvivesDerivedContexts(t *testing.T) {
	ctx, raise := WithCloseSignal(context.Background())
	child, cancel := context.WithCancel(context.WithValue(ctx, testKey{}, "v"))
	defer cancel()

	raise()
	assert.True(t, CloseRequested(child))
	assert.Equal(t, "v", child.Value(testKey{}))
}

func TestCloseSignal_ParentCancelIsIndependent(t *testing.T) {
	parentCtx, cancel := context.WithCancel(context.Background())
	ctx, _ := WithCloseSignal(parentCtx)

	cancel()
	assert.Error(t, ctx.Err())
	assert.False(t, CloseRequested(ctx))
}
