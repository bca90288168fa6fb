package streamworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_SendsSentinelOnClose(t *testing.T) {
	b := testBridge(t)
	rec := newRecorder()
	h, err := b.Start(context.Background(), "sum", nil, rec)
	require.NoError(t, err)

	sink := h.Sink("")
	assert.Equal(t, DefaultInputName, sink.Name())
	ctx := context.Background()
	for _, v := range []int{3, 16, 42} {
		require.NoError(t, sink.Write(ctx, v))
	}
	require.NoError(t, sink.Close(ctx))
	rec.wait(t)

	assert.Equal(t, []Event{{Name: "sum", Payload: int64(60)}}, rec.Events())
	assert.True(t, sink.Ended())
	assert.ErrorIs(t, sink.Write(ctx, 1), ErrStreamAlreadyEnded)
	assert.NoError(t, sink.Close(ctx))
}

func TestSink_SplitsPairs(t *testing.T) {
	b := testBridge(t)
	rec := newRecorder()
	h, err := b.Start(context.Background(), "echo", nil, rec)
	require.NoError(t, err)

	ctx := context.Background()
	sink := h.Sink("input", WithEndAction(CloseHandle))
	require.NoError(t, sink.Write(ctx, 1))
	require.NoError(t, sink.Write(ctx, [2]any{"pair", 2}))
	require.NoError(t, sink.Write(ctx, []any{"slice", 3}))
	require.NoError(t, sink.Write(ctx, []any{"too", "many", 4}))
	require.NoError(t, sink.Write(ctx, NewEvent("event", 5)))
	require.NoError(t, sink.Write(ctx, []any{"close", nil}))
	rec.wait(t)

	assert.Equal(t, []Event{
		{Name: "input", Payload: 1},
		{Name: "pair", Payload: 2},
		{Name: "slice", Payload: 3},
		{Name: "input", Payload: []any{"too", "many", 4}},
		{Name: "event", Payload: 5},
	}, rec.Events())
	assert.True(t, sink.Ended())
	assert.Equal(t, 1, rec.Closes())
}

func TestSink_EndActions(t *testing.T) {
	b := testBridge(t)
	ctx := context.Background()

	t.Run("no action", func(t *testing.T) {
		h, err := b.Start(ctx, "echo", nil)
		require.NoError(t, err)
		defer h.Close()

		sink := h.Sink("", WithEndAction(NoAction))
		require.NoError(t, sink.Close(ctx))
		assert.NoError(t, h.SendEvent("still", "open"))
		assert.Equal(t, StateRunning, h.State())
	})

	t.Run("custom", func(t *testing.T) {
		h, err := b.Start(ctx, "echo", nil)
		require.NoError(t, err)
		defer h.Close()

		var got *Handle
		sink := h.Sink("", OnEnd(func(_ context.Context, hh *Handle) error {
			got = hh
			return errors.New("end failed")
		}))
		assert.EqualError(t, sink.Close(ctx), "end failed")
		assert.EqualError(t, sink.Close(ctx), "end failed")
		assert.Same(t, h, got)
	})
}

func TestSink_WaitsForRunning(t *testing.T) {
	opts := DefaultOptions()
	w, err := echoWorker(nil)
	require.NoError(t, err)
	h := newHandle(context.Background(), "echo", nil, opts, w)
	defer h.loop.Stop()

	t.Run("timeout", func(t *testing.T) {
		sink := h.Sink("", WithSinkTimeout(10*time.Millisecond))
		assert.ErrorIs(t, sink.Write(context.Background(), 1), ErrNotRunning)
	})

	t.Run("context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, h.Sink("").Write(ctx, 1), context.DeadlineExceeded)
	})

	t.Run("resumes once running", func(t *testing.T) {
		sink := h.Sink("")
		written := make(chan error, 1)
		go func() { written <- sink.Write(context.Background(), 1) }()

		time.Sleep(10 * time.Millisecond)
		h.start()
		select {
		case err := <-written:
			assert.NoError(t, err)
		case <-time.After(testTimeout):
			t.Fatal("write did not resume")
		}
		h.Close()
		<-h.Done()
	})
}
