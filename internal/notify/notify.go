// Package notify delivers "cart updated" signals after wishlist moves.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront-sync/pkg/logger"
)

// DefaultFlashDuration is how long the mini-cart flash stays active.
const DefaultFlashDuration = 3 * time.Second

// Kind identifies a notification.
type Kind string

const CartUpdated Kind = "cart_updated"

// Notification is a transient signal for the shopper's UI.
type Notification struct {
	Kind      Kind      `json:"kind"`
	Session   string    `json:"session"`
	Source    string    `json:"source,omitempty"`
	ItemCount int       `json:"item_count"`
	At        time.Time `json:"at"`
}

// Notifier accepts notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Flash is the per-session mini-cart flag. It is active for a fixed
// duration after the last notification.
type Flash struct {
	mu       sync.Mutex
	duration time.Duration
	now      func() time.Time
	until    time.Time
	last     Notification
}

// NewFlash creates a flash with the given duration; non-positive falls back
// to DefaultFlashDuration.
func NewFlash(d time.Duration) *Flash {
	if d <= 0 {
		d = DefaultFlashDuration
	}
	return &Flash{duration: d, now: time.Now}
}

// Notify activates the flash.
func (f *Flash) Notify(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.until = f.now().Add(f.duration)
	f.last = n
	return nil
}

// FlashState is what the UI polls.
type FlashState struct {
	Active       bool          `json:"active"`
	Remaining    time.Duration `json:"-"`
	RemainingMS  int64         `json:"remaining_ms"`
	Notification *Notification `json:"notification,omitempty"`
}

// State reports whether the flash is active and for how long.
func (f *Flash) State() FlashState {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.until.Sub(f.now())
	if f.until.IsZero() || remaining <= 0 {
		return FlashState{}
	}
	n := f.last
	return FlashState{
		Active:       true,
		Remaining:    remaining,
		RemainingMS:  remaining.Milliseconds(),
		Notification: &n,
	}
}

// Active is State().Active.
func (f *Flash) Active() bool { return f.State().Active }

// Fanout delivers to every notifier. Failures are logged and joined.
type Fanout struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewFanout creates a Fanout. nil notifiers are ignored.
func NewFanout(l *slog.Logger, notifiers ...Notifier) *Fanout {
	f := &Fanout{logger: l}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

func (f *Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, target := range f.notifiers {
		if err := target.Notify(ctx, n); err != nil {
			logger.WithContext(ctx, f.logger).WarnContext(ctx, "notification delivery failed",
				slog.String("kind", string(n.Kind)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
