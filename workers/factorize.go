package workers

import (
	"context"
	"errors"
	"fmt"

	sw "github.com/Channel-3-Eugene/streamworker"
)

// NewFactorize emits ("factor", p) for each prime factor of the "n" option,
// smallest first, then closes.
func NewFactorize(cfg sw.Config) (sw.Worker, error) {
	n, ok := cfg.Int64("n")
	if !ok {
		return nil, errors.New("option n is required and must be an integer")
	}
	if n < 0 {
		return nil, fmt.Errorf("cannot compute the prime factorization of negative number %d", n)
	}

	return sw.WorkerFunc(func(ctx context.Context, port *sw.Port) error {
		rest := n
		for rest > 1 && rest%2 == 0 {
			if err := port.Emit("factor", int64(2)); err != nil {
				return err
			}
			rest /= 2
		}

		for i := int64(3); i*i <= rest; i += 2 {
			if port.Closed() {
				return nil
			}
			for rest%i == 0 {
				if err := port.Emit("factor", i); err != nil {
					return err
				}
				rest /= i
			}
		}
		if rest > 1 {
			return port.Emit("factor", rest)
		}
		return nil
	}), nil
}
