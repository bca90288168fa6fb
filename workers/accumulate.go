package workers

import (
	"context"
	"fmt"

	sw "github.com/Channel-3-Eugene/streamworker"
)

// NewAccumulate sums the payloads of input events named by the "filter"
// option and emits ("sum", total) when the end-of-input sentinel arrives.
func NewAccumulate(cfg sw.Config) (sw.Worker, error) {
	filter := cfg.String("filter", sw.DefaultInputName)

	return sw.WorkerFunc(func(ctx context.Context, port *sw.Port) error {
		protocol := port.Protocol()
		var sum int64
		for {
			ev, err := port.Receive(ctx)
			if err != nil {
				return err
			}
			if protocol.IsEndOfInput(ev.Payload) {
				return port.Emit("sum", sum)
			}
			if ev.Name != filter {
				continue
			}
			n, err := number(ev.Payload)
			if err != nil {
				return fmt.Errorf("accumulate %s: %w", ev.Name, err)
			}
			sum += n
		}
	}), nil
}
