package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

// Snapshotter persists cache entries outside the process.
type Snapshotter interface {
	Load(ctx context.Context, session, resource string) (domain.CacheEntry, bool, error)
	Save(ctx context.Context, session, resource string, entry domain.CacheEntry) error
	Delete(ctx context.Context, session string, resources ...string) error
}

const persistTimeout = 2 * time.Second

// Persister returns a watcher that mirrors changes of session into snap.
// Entries marked as fetching are not written. Errors are logged only.
func Persister(snap Snapshotter, session string, l *slog.Logger) Watcher {
	return func(c Change) {
		if c.Entry.IsFetching {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		ctx = logger.WithSessionID(logger.WithResource(ctx, c.Resource), session)

		var err error
		if c.Deleted {
			err = snap.Delete(ctx, session, c.Resource)
		} else {
			err = snap.Save(ctx, session, c.Resource, c.Entry)
		}
		if err != nil {
			logger.WithContext(ctx, l).WarnContext(ctx, "snapshot write failed",
				slog.Bool("deleted", c.Deleted),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Warm restores every resource found in snap for session and returns the
// names restored.
func Warm(ctx context.Context, s *Store, snap Snapshotter, session string, resources ...string) ([]string, error) {
	var restored []string
	for _, resource := range resources {
		entry, ok, err := snap.Load(ctx, session, resource)
		if err != nil {
			return restored, err
		}
		if !ok {
			continue
		}
		s.Restore(resource, entry)
		restored = append(restored, resource)
	}
	return restored, nil
}
