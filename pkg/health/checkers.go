package health

import (
	"context"
	"runtime"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by connection pools that expose a Ping method, such as
// pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck builds a readiness check from any Pinger.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold. Useful as a liveness check for goroutine leaks in the quote and
// submission paths.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// StalenessCheck reports unhealthy when the timestamp returned by lastUpdate
// is older than maxAge. Used to watch the product mirror falling behind the
// catalog feed.
func StalenessCheck(maxAge time.Duration, lastUpdate func(ctx context.Context) (time.Time, error)) CheckFunc {
	return func(ctx context.Context) error {
		at, err := lastUpdate(ctx)
		if err != nil {
			return errors.Wrap(err, "last update")
		}
		if at.IsZero() {
			return nil // never updated yet, let the readiness gate handle startup
		}
		if age := time.Since(at); age > maxAge {
			return errors.Errorf("last update %s ago exceeds %s", age.Truncate(time.Second), maxAge)
		}
		return nil
	}
}
