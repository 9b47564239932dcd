package syncloop

import (
	"time"

	"nebula-miniapp/internal/domain/inventory"
)

// Accrue applies the time-gated coin rule to acc. A zero LastCoinUpdate counts
// as fully elapsed. It reports whether coins were added.
func Accrue(acc inventory.Account, now time.Time, minInterval time.Duration, unit int64) (inventory.Account, bool) {
	if unit <= 0 {
		return acc, false
	}
	if !acc.LastCoinUpdate.IsZero() && now.Sub(acc.LastCoinUpdate) < minInterval {
		return acc, false
	}
	acc.Coins += unit
	acc.LastCoinUpdate = now
	return acc, true
}

// Backoff is the delay before the next tick after failures consecutive
// errors: interval * 2^(failures-1), capped at max.
func Backoff(interval, max time.Duration, failures int) time.Duration {
	if failures <= 0 {
		return interval
	}
	d := interval
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
