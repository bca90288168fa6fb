package workers

import (
	"errors"
	"fmt"
	"math"

	sw "github.com/Channel-3-Eugene/streamworker"
)

const (
	Accumulate = "accumulate"
	EvenOdd    = "evenodd"
	Factorize  = "factorize"
	Sensor     = "sensor"
	Primes     = "primes"
)

func Register(reg *sw.Registry) error {
	return errors.Join(
		reg.Register(Accumulate, NewAccumulate),
		reg.Register(EvenOdd, NewEvenOdd),
		reg.Register(Factorize, NewFactorize),
		reg.Register(Sensor, NewSensor),
		reg.Register(Primes, NewPrimes),
	)
}

// number accepts integral payloads of any numeric type that fit in an int64.
func number(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), nil
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= 1<<53 {
			return int64(n), nil
		}
	}
	return 0, fmt.Errorf("payload %v (%T) is not an integer", v, v)
}
