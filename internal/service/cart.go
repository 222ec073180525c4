package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/internal/freshness"
	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/store"
)

// ResourceCart is the cache resource holding the shopper's cart.
const ResourceCart = "cart"

// CartService keeps the cached cart in sync with the storefront API.
type CartService struct {
	fetcher store.Fetcher[domain.Cart]
	store   *store.Store

	mu   sync.RWMutex
	last domain.Cart
}

// NewCartService creates a new cart service.
func NewCartService(client remote.Client, st *store.Store, d *dispatch.Dispatcher, policy freshness.Policy, logger *slog.Logger) *CartService {
	s := &CartService{store: st}

	cmd := remote.Action[struct{}, domain.Cart](client, ResourceCart, "fetchCart", func(struct{}) remote.Request {
		return remote.Request{Method: http.MethodGet, Path: "/api/cart"}
	})
	cmd.OnSuccess = func(ctx context.Context, _ struct{}, cart domain.Cart) {
		s.remember(cart)
		logger.DebugContext(ctx, "cart refreshed", slog.Int("item_count", domain.ItemCount(cart.Items)))
	}

	s.fetcher = store.Fetcher[domain.Cart]{
		Store:      st,
		Dispatcher: d,
		Policy:     policy,
		Command:    cmd,
		Items:      func(c domain.Cart) []domain.LineItem { return c.Items },
		Cached:     s.fromEntry,
	}
	return s
}

// Fetch refreshes the cart unless the cached copy is fresh or a fetch is
// already in flight. force bypasses freshness only.
func (s *CartService) Fetch(ctx context.Context, force bool) dispatch.Outcome[domain.Cart] {
	return s.fetcher.Fetch(ctx, force)
}

// Cached returns the cart as currently cached.
func (s *CartService) Cached() domain.Cart {
	return s.fromEntry(s.store.Get(ResourceCart))
}

func (s *CartService) remember(c domain.Cart) {
	s.mu.Lock()
	s.last = domain.Cart{ID: c.ID, Currency: c.Currency, TotalAmount: c.TotalAmount}
	s.mu.Unlock()
}

func (s *CartService) fromEntry(e domain.CacheEntry) domain.Cart {
	s.mu.RLock()
	c := s.last
	s.mu.RUnlock()
	c.Items = e.Items
	return c
}
