package workers

import (
	"context"
	"fmt"

	sw "github.com/Channel-3-Eugene/streamworker"
)

// NewPrimes sieves up to the "limit" option, emitting ("progress", percent)
// as it goes and one ("primes", []int) with the result.
func NewPrimes(cfg sw.Config) (sw.Worker, error) {
	limit := cfg.Int("limit", 0)
	if limit < 2 {
		return nil, fmt.Errorf("limit must be at least 2, got %d", limit)
	}

	return sw.WorkerFunc(func(ctx context.Context, port *sw.Port) error {
		composite := make([]bool, limit)
		primes := make([]int, 0)
		lastPct := -1

		for n := 2; n < limit; n++ {
			if port.Closed() {
				return nil
			}
			if pct := 100 * n / limit; pct != lastPct {
				lastPct = pct
				if err := port.Emit("progress", pct); err != nil {
					return err
				}
			}
			if composite[n] {
				continue
			}
			primes = append(primes, n)
			for i := n * n; i < limit; i += n {
				composite[i] = true
			}
		}
		return port.Emit("primes", primes)
	}), nil
}
