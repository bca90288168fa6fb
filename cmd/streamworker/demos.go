package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"goa.design/clue/log"

	sw "github.com/Channel-3-Eugene/streamworker"
	"github.com/Channel-3-Eugene/streamworker/workers"
)

type demoFunc func(ctx context.Context, super *sw.Supervisor) error

var demos = map[string]demoFunc{
	"accumulate": accumulateDemo,
	"piping":     pipingDemo,
	"factorize":  factorizeDemo,
	"sensor":     sensorDemo,
	"primes":     primesDemo,
}

// printStream logs every event of s until it ends.
func printStream(ctx context.Context, label string, s *sw.Stream) error {
	for ev, err := range s.All(ctx) {
		if err != nil {
			return err
		}
		log.Print(ctx, log.KV{K: "stream", V: label}, log.KV{K: "event", V: ev.Name}, log.KV{K: "payload", V: fmt.Sprint(ev.Payload)})
	}
	return nil
}

func accumulateDemo(ctx context.Context, super *sw.Supervisor) error {
	out := sw.NewStream(0, sw.Block)
	h, err := super.Start(ctx, workers.Accumulate, nil, out)
	if err != nil {
		return err
	}

	sink := h.Sink("")
	for _, v := range []int{3, 16, 42} {
		if err := sink.Write(ctx, v); err != nil {
			return err
		}
	}
	if err := sink.Close(ctx); err != nil {
		return err
	}
	return printStream(ctx, workers.Accumulate, out)
}

func pipingDemo(ctx context.Context, super *sw.Supervisor) error {
	evenOut, oddOut := sw.NewStream(0, sw.Block), sw.NewStream(0, sw.Block)
	evens, err := super.Start(ctx, workers.Accumulate, sw.Config{"filter": "even_event"}, evenOut)
	if err != nil {
		return err
	}
	odds, err := super.Start(ctx, workers.Accumulate, sw.Config{"filter": "odd_event"}, oddOut)
	if err != nil {
		return err
	}

	toEvens, toOdds := sw.NewStream(0, sw.Block), sw.NewStream(0, sw.Block)
	counter, err := super.Start(ctx, workers.EvenOdd, sw.Config{"delay": "10ms"}, toEvens, toOdds)
	if err != nil {
		return err
	}

	pipeErrs := make(chan error, 2)
	go func() { pipeErrs <- sw.Pipe(ctx, toEvens, evens.Sink("")) }()
	go func() { pipeErrs <- sw.Pipe(ctx, toOdds, odds.Sink("")) }()

	if err := counter.SendEvent("value", 10); err != nil {
		return err
	}
	if err := counter.SendEvent("value", -1); err != nil {
		return err
	}
	if err := errors.Join(<-pipeErrs, <-pipeErrs); err != nil {
		return err
	}
	return errors.Join(printStream(ctx, "evens", evenOut), printStream(ctx, "odds", oddOut))
}

func factorizeDemo(ctx context.Context, super *sw.Supervisor) error {
	var factors []int64
	done := make(chan error, 1)
	d := sw.NewDispatcher()
	sw.OnTyped(d, "factor", func(p int64) { factors = append(factors, p) })

	const n = 9007199254740991
	_, err := super.Start(ctx, workers.Factorize, sw.Config{"n": int64(n)},
		d.Subscriber(ctx, func() { done <- nil }, func(err error) { done <- err }))
	if err != nil {
		return err
	}
	if err := <-done; err != nil {
		return err
	}
	log.Print(ctx, log.KV{K: "n", V: int64(n)}, log.KV{K: "factors", V: fmt.Sprint(factors)})
	return nil
}

// sensorDemo runs until the process is interrupted.
func sensorDemo(ctx context.Context, super *sw.Supervisor) error {
	out := sw.NewStream(16, sw.DropOldest)
	if _, err := super.Start(ctx, workers.Sensor, sw.Config{"name": "hmd", "interval": "250ms"}, out); err != nil {
		return err
	}
	for {
		ev, err := out.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		sample := ev.Payload.(workers.Sample)
		log.Print(ctx, log.KV{K: "sensor", V: sample.Sensor},
			log.KV{K: "x", V: sample.Position.X},
			log.KV{K: "y", V: sample.Position.Y},
			log.KV{K: "z", V: sample.Position.Z})
	}
}

func primesDemo(ctx context.Context, super *sw.Supervisor) error {
	done := make(chan error, 1)
	d := sw.NewDispatcher()
	sw.OnTyped(d, "progress", func(pct int) {
		if pct%10 == 0 {
			log.Print(ctx, log.KV{K: "progress", V: pct})
		}
	})
	sw.OnTyped(d, "primes", func(ps []int) {
		log.Print(ctx, log.KV{K: "count", V: len(ps)}, log.KV{K: "largest", V: ps[len(ps)-1]})
	})

	_, err := super.Start(ctx, workers.Primes, sw.Config{"limit": 1_000_000},
		d.Subscriber(ctx, func() { done <- nil }, func(err error) { done <- err }))
	if err != nil {
		return err
	}
	return <-done
}
