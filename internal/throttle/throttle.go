
package throttle

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay is a randomized pause in [Min, Max]. The zero value does not sleep.
type Delay struct {
	Min time.Duration `mapstructure:"min" json:"min"`
	Max time.Duration `mapstructure:"max" json:"max"`
}

// Next picks the next duration.
func (d Delay) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Wait sleeps for Next() or until ctx is done.
func (d Delay) Wait(ctx context.Context) error {
	return Sleep(ctx, d.Next())
}

// Sleep is a context aware time.Sleep.
func Sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
