package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/freshness"
	"github.com/utafrali/storefront-sync/internal/notify"
	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/store"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
)

// --- Mock Client ---

type mockClient struct {
	mock.Mock
	mu   sync.Mutex
	sent []remote.Request
}

func (m *mockClient) Do(ctx context.Context, req remote.Request, out any) error {
	m.mu.Lock()
	m.sent = append(m.sent, req)
	m.mu.Unlock()

	args := m.Called(ctx, req, out)
	if body := args.String(0); body != "" && out != nil {
		if err := json.Unmarshal([]byte(body), out); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *mockClient) requests() []remote.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]remote.Request(nil), m.sent...)
}

func route(method, path string) any {
	return mock.MatchedBy(func(r remote.Request) bool {
		return r.Method == method && r.Path == path
	})
}

// --- Recording notifier ---

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// --- Fixture ---

var testNow = time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)

type fixture struct {
	client   *mockClient
	store    *store.Store
	disp     *dispatch.Dispatcher
	cart     *CartService
	wishlist *WishlistService
	notifier *recordingNotifier
	now      *time.Time
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture() *fixture {
	now := testNow
	policy := freshness.New(freshness.DefaultTTL, freshness.WithClock(func() time.Time { return now }))

	f := &fixture{
		client:   new(mockClient),
		store:    store.New(),
		disp:     dispatch.New(newTestLogger()),
		notifier: &recordingNotifier{},
		now:      &now,
	}
	f.cart = NewCartService(f.client, f.store, f.disp, policy, newTestLogger())
	f.wishlist = NewWishlistService(WishlistDeps{
		Client:     f.client,
		Store:      f.store,
		Dispatcher: f.disp,
		Policy:     policy,
		Cart:       f.cart,
		Notifier:   f.notifier,
		Session:    "user-1",
		Logger:     newTestLogger(),
	})
	return f
}

const wishlistJSON = `{"id":"wl-1","name":"wishlist","items":[{"id":"li-1","product_id":"p-1","quantity":1},{"id":"li-2","product_id":"p-2","quantity":2}]}`

const emptyWishlistJSON = `{"id":"wl-1","name":"wishlist","items":[]}`

const cartJSON = `{"id":"cart-1","currency":"USD","total_amount":4200,"items":[{"id":"c-1","product_id":"p-1","quantity":3}]}`

func remoteErr(status int, code string) error {
	return apperrors.Remote("storefront-api", status, code, http.StatusText(status))
}
