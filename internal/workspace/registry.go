// Package workspace keeps one synchronization workspace per session.
package workspace

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/freshness"
	"github.com/utafrali/storefront-sync/internal/notify"
	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/service"
	"github.com/utafrali/storefront-sync/internal/store"
	"github.com/utafrali/storefront-sync/pkg/logger"
)

var (
	workspacesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sync_workspaces_active",
		Help: "Number of live session workspaces.",
	})
	workspacesEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_workspaces_evicted_total",
		Help: "Total number of workspaces removed, by reason.",
	}, []string{"reason"})
)

// Resources lists every cache resource a workspace holds.
var Resources = []string{service.ResourceWishlist, service.ResourceCart}

// Config tunes new workspaces.
type Config struct {
	CacheTTL      time.Duration
	IdleTTL       time.Duration
	FlashDuration time.Duration
	WishlistName  string
}

// Workspace is the synchronization state of one session.
type Workspace struct {
	Key        string
	Policy     freshness.Policy
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Cart       *service.CartService
	Wishlist   *service.WishlistService
	Flash      *notify.Flash

	lastSeen atomic.Int64
}

// LastSeen returns when the workspace was last handed out.
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

func (w *Workspace) touch(t time.Time) { w.lastSeen.Store(t.UnixNano()) }

// Registry owns all workspaces.
type Registry struct {
	mu         sync.Mutex
	workspaces map[string]*Workspace

	client    remote.Client
	snapshots store.Snapshotter
	notifier  notify.Notifier
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewRegistry creates a registry. snapshots and notifier may be nil.
func NewRegistry(client remote.Client, snapshots store.Snapshotter, notifier notify.Notifier, cfg Config, l *slog.Logger) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	return &Registry{
		workspaces: make(map[string]*Workspace),
		client:     client,
		snapshots:  snapshots,
		notifier:   notifier,
		cfg:        cfg,
		logger:     l,
		now:        time.Now,
	}
}

// Get returns the workspace for key, creating and warming it on first use.
func (r *Registry) Get(ctx context.Context, key string) *Workspace {
	r.mu.Lock()
	ws, ok := r.workspaces[key]
	if !ok {
		ws = r.build(ctx, key)
		r.workspaces[key] = ws
		workspacesActive.Set(float64(len(r.workspaces)))
	}
	ws.touch(r.now())
	r.mu.Unlock()
	return ws
}

// Lookup returns an existing workspace without creating one.
func (r *Registry) Lookup(key string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[key]
	return ws, ok
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// build must be called with mu held.
func (r *Registry) build(ctx context.Context, key string) *Workspace {
	ctx = logger.WithSessionID(ctx, key)
	policy := freshness.New(r.cfg.CacheTTL)
	st := store.New()
	d := dispatch.New(r.logger)
	flash := notify.NewFlash(r.cfg.FlashDuration)

	if r.snapshots != nil {
		restored, err := store.Warm(ctx, st, r.snapshots, key, Resources...)
		if err != nil {
			logger.WithContext(ctx, r.logger).WarnContext(ctx, "workspace warm-up failed",
				slog.String("error", err.Error()))
		} else if len(restored) > 0 {
			logger.WithContext(ctx, r.logger).DebugContext(ctx, "workspace warmed",
				slog.Any("resources", restored))
		}
		st.Watch(store.Persister(r.snapshots, key, r.logger))
	}

	cart := service.NewCartService(r.client, st, d, policy, r.logger)
	wishlist := service.NewWishlistService(service.WishlistDeps{
		Client:     r.client,
		Store:      st,
		Dispatcher: d,
		Policy:     policy,
		Cart:       cart,
		Notifier:   notify.NewFanout(r.logger, flash, r.notifier),
		Session:    key,
		Name:       r.cfg.WishlistName,
		Logger:     r.logger,
	})

	return &Workspace{
		Key:        key,
		Policy:     policy,
		Store:      st,
		Dispatcher: d,
		Cart:       cart,
		Wishlist:   wishlist,
		Flash:      flash,
	}
}

// ResetCache drops every cached entry of ws and its persisted snapshots.
func (r *Registry) ResetCache(ctx context.Context, ws *Workspace) []string {
	dropped := ws.Store.ResetAll()
	ws.Dispatcher.Reset()
	if r.snapshots != nil {
		if err := r.snapshots.Delete(ctx, ws.Key); err != nil {
			logger.WithContext(ctx, r.logger).WarnContext(ctx, "snapshot delete failed",
				slog.String("session", ws.Key),
				slog.String("error", err.Error()))
		}
	}
	return dropped
}

// Teardown removes the workspace for key and clears its caches. It reports
// whether a workspace existed.
func (r *Registry) Teardown(ctx context.Context, key string) bool {
	r.mu.Lock()
	ws, ok := r.workspaces[key]
	delete(r.workspaces, key)
	workspacesActive.Set(float64(len(r.workspaces)))
	r.mu.Unlock()

	if ok {
		r.ResetCache(ctx, ws)
		workspacesEvicted.WithLabelValues("teardown").Inc()
	} else if r.snapshots != nil {
		_ = r.snapshots.Delete(ctx, key)
	}
	return ok
}

// Sweep drops workspaces idle for longer than IdleTTL. Persisted snapshots
// are kept so a returning session warms up again.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTTL)

	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for key, ws := range r.workspaces {
		if ws.LastSeen().Before(cutoff) {
			delete(r.workspaces, key)
			n++
		}
	}
	if n > 0 {
		workspacesActive.Set(float64(len(r.workspaces)))
		workspacesEvicted.WithLabelValues("idle").Add(float64(n))
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.InfoContext(ctx, "evicted idle workspaces", slog.Int("count", n))
			}
		}
	}
}
