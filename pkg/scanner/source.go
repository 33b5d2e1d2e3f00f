package scanner

import (
	"context"
	"time"

	"github.com/blecore/blecore-go/pkg/adv"
)

// Source produces raw advertisements. Implementations wrap an OS-specific
// scan transport; this package only consumes the stream.
type Source interface {
	// Scan delivers advertisements to h until ctx is cancelled or the
	// underlying transport fails. Scan blocks for its whole lifetime.
	Scan(ctx context.Context, h adv.Handler) error
}

// Pump feeds advertisements from src into the dispatcher until ctx is
// cancelled.
func (d *Dispatcher) Pump(ctx context.Context, src Source) error {
	return src.Scan(ctx, d.Deliver)
}

// ReplaySource replays a fixed sequence of advertisements with a constant
// interval between them. Used in tests and by the adv-sim tool.
type ReplaySource struct {
	// Advertisements to replay, in order.
	Advertisements []adv.Advertisement

	// Interval between advertisements. Zero replays without delay.
	Interval time.Duration
}

// Scan replays the configured advertisements.
func (s *ReplaySource) Scan(ctx context.Context, h adv.Handler) error {
	for _, a := range s.Advertisements {
		if s.Interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.Interval):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		h(a)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ Source = (*ReplaySource)(nil)
