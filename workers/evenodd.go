package workers

import (
	"context"
	"fmt"
	"time"

	sw "github.com/Channel-3-Eugene/streamworker"
)

// NewEvenOdd counts from 0 to each input n, emitting even_event or
// odd_event for every number. A negative input ends the worker.
func NewEvenOdd(cfg sw.Config) (sw.Worker, error) {
	delay := cfg.Duration("delay", 0)
	if delay < 0 {
		return nil, fmt.Errorf("delay must not be negative, got %s", delay)
	}

	return sw.WorkerFunc(func(ctx context.Context, port *sw.Port) error {
		for {
			ev, err := port.Receive(ctx)
			if err != nil {
				return err
			}
			upTo, err := number(ev.Payload)
			if err != nil {
				return fmt.Errorf("evenodd %s: %w", ev.Name, err)
			}
			if upTo < 0 {
				return nil
			}

			for i := int64(0); i <= upTo; i++ {
				name := "odd_event"
				if i%2 == 0 {
					name = "even_event"
				}
				if err := port.Emit(name, i); err != nil {
					return err
				}
				if delay > 0 {
					select {
					case <-time.After(delay):
					case <-port.Closing():
						return nil
					}
				}
			}
		}
	}), nil
}
