package workers

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	sw "github.com/Channel-3-Eugene/streamworker"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Sample struct {
	Sensor   string   `json:"sensor"`
	Position Position `json:"position"`
}

// NewSensor emits position_sample events at the "interval" cadence until
// the host closes it. It never ends on its own.
func NewSensor(cfg sw.Config) (sw.Worker, error) {
	name := cfg.String("name", "default sensor")
	interval := cfg.Duration("interval", 50*time.Millisecond)
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}

	return sw.WorkerFunc(func(ctx context.Context, port *sw.Port) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-port.Closing():
				cancel()
			case <-ctx.Done():
			}
		}()

		limiter := rate.NewLimiter(rate.Every(interval), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			sample := Sample{
				Sensor: name,
				Position: Position{
					X: rand.Float64()*2 - 1,
					Y: rand.Float64()*2 - 1,
					Z: rand.Float64()*2 - 1,
				},
			}
			if err := port.Emit("position_sample", sample); err != nil {
				return err
			}
		}
	}), nil
}
