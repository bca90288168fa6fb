package streamworker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sw "github.com/Channel-3-Eugene/streamworker"
	"github.com/Channel-3-Eugene/streamworker/metrics"
	"github.com/Channel-3-Eugene/streamworker/workers"
)

func newBridge(t *testing.T, opts ...sw.Option) *sw.Bridge {
	t.Helper()
	reg := sw.NewRegistry()
	require.NoError(t, workers.Register(reg))
	return sw.NewBridge(reg, opts...)
}

func TestStreamWorker_EndToEnd(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics(10 * time.Millisecond)
	defer m.Stop()
	b := newBridge(t, sw.WithMetrics(m), sw.WithCloseTimeout(time.Second))
	super := sw.NewSupervisor("end to end", b, 16)

	t.Run("accumulates values written to a sink", func(t *testing.T) {
		out := sw.NewStream(0, sw.Block)
		h, err := super.Start(ctx, workers.Accumulate, nil, out)
		require.NoError(t, err)

		sink := h.Sink("")
		for _, v := range []int{3, 16, 42} {
			require.NoError(t, sink.Write(ctx, v))
		}
		require.NoError(t, sink.Close(ctx))

		ev, err := out.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, sw.Event{Name: "sum", Payload: int64(60)}, ev)
		_, err = out.Next(ctx)
		assert.ErrorIs(t, err, io.EOF)
		assert.NoError(t, h.Wait(ctx))
	})

	t.Run("pipes even and odd numbers into two accumulators", func(t *testing.T) {
		evenOut, oddOut := sw.NewStream(0, sw.Block), sw.NewStream(0, sw.Block)
		evens, err := super.Start(ctx, workers.Accumulate, sw.Config{"filter": "even_event"}, evenOut)
		require.NoError(t, err)
		odds, err := super.Start(ctx, workers.Accumulate, sw.Config{"filter": "odd_event"}, oddOut)
		require.NoError(t, err)

		toEvens, toOdds := sw.NewStream(0, sw.Block), sw.NewStream(0, sw.Block)
		counter, err := super.Start(ctx, workers.EvenOdd, nil, toEvens, toOdds)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, sw.Pipe(ctx, toEvens, evens.Sink("")))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, sw.Pipe(ctx, toOdds, odds.Sink("")))
		}()

		require.NoError(t, counter.SendEvent("value", 10))
		require.NoError(t, counter.SendEvent("value", -1))
		wg.Wait()

		ev, err := evenOut.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(30), ev.Payload)
		ev, err = oddOut.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(25), ev.Payload)
	})

	t.Run("dispatches typed progress and results", func(t *testing.T) {
		var (
			mu       sync.Mutex
			progress []int
			primes   []int
		)
		d := sw.NewDispatcher()
		sw.OnTyped(d, "progress", func(pct int) {
			mu.Lock()
			progress = append(progress, pct)
			mu.Unlock()
		})
		sw.OnTyped(d, "primes", func(ps []int) {
			mu.Lock()
			primes = ps
			mu.Unlock()
		})

		done := make(chan struct{})
		_, err := super.Start(ctx, workers.Primes, sw.Config{"limit": 100}, d.Subscriber(ctx, func() { close(done) }, nil))
		require.NoError(t, err)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("primes did not finish")
		}
		mu.Lock()
		defer mu.Unlock()
		assert.Len(t, primes, 25)
		assert.NotEmpty(t, progress)
	})

	t.Run("reports a rejected configuration", func(t *testing.T) {
		_, err := super.Start(ctx, workers.Factorize, sw.Config{"n": -1})
		var e *sw.Error
		require.True(t, errors.As(err, &e))
		assert.Equal(t, sw.KindWorkerInit, e.Kind)
		assert.Equal(t, workers.Factorize, e.Worker)
	})

	t.Run("stops a long running sensor", func(t *testing.T) {
		out := sw.NewStream(4, sw.DropOldest)
		h, err := super.Start(ctx, workers.Sensor, sw.Config{"interval": "1ms"}, out)
		require.NoError(t, err)

		ev, err := out.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "position_sample", ev.Name)

		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		require.NoError(t, super.Stop(stopCtx))
		assert.Equal(t, sw.StateClosed, h.State())
	})

	reports := 0
	drain := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case r := <-super.Events():
			reports++
			if r.Worker != workers.Factorize {
				assert.NoError(t, r.Err, r.String())
			}
		case <-drain:
			break loop
		}
	}
	assert.Equal(t, 7, reports)
	assert.NotZero(t, m.Published())
	assert.Zero(t, m.Errors())
}
