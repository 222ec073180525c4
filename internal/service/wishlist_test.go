package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/internal/freshness"
	apperrors "github.com/utafrali/storefront-sync/pkg/errors"
	"github.com/utafrali/storefront-sync/pkg/validator"
)

// ---------------------------------------------------------------------------
// Fetch
// ---------------------------------------------------------------------------

func TestWishlistFetch_StaleIssuesRequest(t *testing.T) {
	f := newFixture()
	f.store.Restore(ResourceWishlist, domain.CacheEntry{LastFetchedAt: testNow.Add(-200 * time.Second)})
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/wishlist"), mock.Anything).Return(wishlistJSON, nil).Once()

	out := f.wishlist.Fetch(context.Background(), false)

	require.False(t, out.Failed())
	assert.Len(t, out.Value.Items, 2)
	reqs := f.client.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "wishlist", reqs[0].Query.Get("wishlistName"))

	entry := f.store.Get(ResourceWishlist)
	assert.Equal(t, testNow, entry.LastFetchedAt)
	assert.False(t, entry.IsFetching)
}

func TestWishlistFetch_TwoImmediateCallsIssueOne(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/wishlist"), mock.Anything).Return(wishlistJSON, nil).Once()

	first := f.wishlist.Fetch(context.Background(), false)
	second := f.wishlist.Fetch(context.Background(), false)

	assert.False(t, first.Skipped)
	assert.True(t, second.Skipped)
	assert.Equal(t, string(freshness.ReasonFresh), second.Reason)
	assert.Len(t, second.Value.Items, 2, "skip hands back the cached items")
	assert.Equal(t, "wl-1", second.Value.ID)
	assert.Len(t, f.client.requests(), 1)
}

func TestWishlistFetch_InFlightSkipsEvenWhenForced(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/wishlist"), mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(wishlistJSON, nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.wishlist.Fetch(context.Background(), false)
	}()
	require.Eventually(t, func() bool { return f.store.Get(ResourceWishlist).IsFetching }, time.Second, time.Millisecond)

	out := f.wishlist.Fetch(context.Background(), true)
	assert.True(t, out.Skipped)
	assert.Equal(t, string(freshness.ReasonInFlight), out.Reason)

	close(release)
	wg.Wait()
	assert.Len(t, f.client.requests(), 1)
}

func TestWishlistFetch_FailureKeepsItems(t *testing.T) {
	f := newFixture()
	f.store.Restore(ResourceWishlist, domain.CacheEntry{Items: []domain.LineItem{{ID: "li-9"}}, LastFetchedAt: testNow.Add(-time.Hour)})
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/wishlist"), mock.Anything).
		Return("", remoteErr(http.StatusBadGateway, "")).Once()

	out := f.wishlist.Fetch(context.Background(), false)

	require.True(t, out.Failed())
	assert.True(t, apperrors.IsRemote(out.Err))
	entry := f.store.Get(ResourceWishlist)
	assert.False(t, entry.IsFetching)
	assert.Equal(t, testNow.Add(-time.Hour), entry.LastFetchedAt)
	assert.Equal(t, "li-9", entry.Items[0].ID)
	assert.Equal(t, dispatch.Failed, f.disp.Status(ResourceWishlist).State)
}

// ---------------------------------------------------------------------------
// AddItem / UpdateQuantity / RemoveItem
// ---------------------------------------------------------------------------

func TestAddItem_PlainEndpoint(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/item"), mock.Anything).Return(wishlistJSON, nil).Once()

	intent := domain.LineItemIntent{ProductID: "p-2", Quantity: 2}
	out := f.wishlist.AddItem(context.Background(), intent, false, false)

	require.False(t, out.Failed())
	assert.Equal(t, CmdAddItem, out.Command)

	req := f.client.requests()[0]
	assert.Equal(t, "wishlist", req.Query.Get("wishlistName"))
	assert.Equal(t, "false", req.Query.Get("isUpdateRequest"))
	body, ok := req.Body.(addItemBody)
	require.True(t, ok)
	assert.Equal(t, "p-2", body.ProductID)
	assert.False(t, body.IsUpdateRequest)

	entry := f.store.Get(ResourceWishlist)
	assert.Len(t, entry.Items, 2, "cache takes the authoritative answer")
	assert.False(t, entry.Fetched(), "mutations leave the fetch timestamp alone")
}

func TestAddItem_ConfigurableUpdate(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/configure-item"), mock.Anything).Return(wishlistJSON, nil).Once()

	intent := domain.LineItemIntent{ItemID: "li-1", ProductID: "p-1", Quantity: 1, Attributes: map[string]string{"color": "red"}}
	out := f.wishlist.AddItem(context.Background(), intent, true, true)

	require.False(t, out.Failed())
	assert.Equal(t, CmdAddConfigurable, out.Command)
	req := f.client.requests()[0]
	assert.Equal(t, "true", req.Query.Get("isUpdateRequest"))
	assert.True(t, req.Body.(addItemBody).IsUpdateRequest)
	assert.Equal(t, "red", req.Body.(addItemBody).Attributes["color"])
}

func TestAddItem_InvalidIntentSendsNothing(t *testing.T) {
	f := newFixture()

	out := f.wishlist.AddItem(context.Background(), domain.LineItemIntent{Quantity: -1}, false, false)

	require.True(t, out.Failed())
	var ve *validator.ValidationError
	assert.ErrorAs(t, out.Err, &ve)
	assert.Empty(t, f.client.requests())
}

func TestUpdateQuantity(t *testing.T) {
	f := newFixture()
	f.store.Restore(ResourceWishlist, domain.CacheEntry{LastFetchedAt: testNow.Add(-10 * time.Second)})
	f.client.On("Do", mock.Anything, route(http.MethodPut, "/api/wishlist/items/li-1"), mock.Anything).Return(wishlistJSON, nil).Once()

	out := f.wishlist.UpdateQuantity(context.Background(), "li-1", 3)

	require.False(t, out.Failed())
	req := f.client.requests()[0]
	assert.Equal(t, "3", req.Query.Get("quantity"))
	assert.Equal(t, "wishlist", req.Query.Get("wishlistName"))
	assert.Equal(t, testNow.Add(-10*time.Second), f.store.Get(ResourceWishlist).LastFetchedAt)
}

func TestUpdateQuantity_Rejected(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPut, "/api/wishlist/items/li-1"), mock.Anything).
		Return("", remoteErr(http.StatusConflict, "OUT_OF_STOCK")).Once()

	out := f.wishlist.UpdateQuantity(context.Background(), "li-1", 50)

	require.True(t, out.Failed())
	assert.True(t, errors.Is(out.Err, apperrors.ErrConflict))
	assert.Empty(t, f.store.Get(ResourceWishlist).Items)
}

func TestUpdateQuantity_NegativeSendsNothing(t *testing.T) {
	f := newFixture()
	assert.True(t, f.wishlist.UpdateQuantity(context.Background(), "li-1", -2).Failed())
	assert.True(t, f.wishlist.UpdateQuantity(context.Background(), "", 1).Failed())
	assert.Empty(t, f.client.requests())
}

func TestRemoveItem(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodDelete, "/api/wishlist/items/li%2F2"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.store.ReplaceItems(ResourceWishlist, []domain.LineItem{{ID: "li/2"}})

	out := f.wishlist.RemoveItem(context.Background(), "li/2")

	require.False(t, out.Failed())
	assert.Nil(t, f.client.requests()[0].Body)
	assert.Empty(t, f.store.Get(ResourceWishlist).Items)
}

// ---------------------------------------------------------------------------
// Move chains
// ---------------------------------------------------------------------------

func TestMoveItemToCart_FullChain(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/items/li-1/move"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/cart"), mock.Anything).Return(cartJSON, nil).Once()

	res := f.wishlist.MoveItemToCart(context.Background(), "li-1")

	require.False(t, res.Failed())
	assert.Equal(t, ResourceCart, res.Meta().Resource)
	cart, ok := res.Data().(domain.Cart)
	require.True(t, ok)
	assert.Equal(t, "cart-1", cart.ID)

	reqs := f.client.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/api/wishlist/items/li-1/move", reqs[0].Path)
	assert.Equal(t, "/api/cart", reqs[1].Path)

	require.Equal(t, 1, f.notifier.count())
	n := f.notifier.got[0]
	assert.Equal(t, "user-1", n.Session)
	assert.Equal(t, CmdMoveItemToCart, n.Source)
	assert.Equal(t, 3, n.ItemCount)
	f.client.AssertExpectations(t)
}

func TestMoveItemToCart_MoveFailureShortCircuits(t *testing.T) {
	f := newFixture()
	moveErr := remoteErr(http.StatusConflict, "ITEM_UNAVAILABLE")
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/items/li-1/move"), mock.Anything).Return("", moveErr).Once()

	res := f.wishlist.MoveItemToCart(context.Background(), "li-1")

	require.True(t, res.Failed())
	assert.Same(t, moveErr, res.Cause())
	assert.Equal(t, CmdMoveItemToCart, res.Meta().Command)
	assert.Len(t, f.client.requests(), 1, "no cart refresh")
	assert.Zero(t, f.notifier.count())
}

func TestMoveItemToCart_CartRefreshFailureSkipsNotification(t *testing.T) {
	f := newFixture()
	cartErr := remoteErr(http.StatusServiceUnavailable, "")
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/items/li-1/move"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/cart"), mock.Anything).Return("", cartErr).Once()

	res := f.wishlist.MoveItemToCart(context.Background(), "li-1")

	require.True(t, res.Failed())
	assert.Same(t, cartErr, res.Cause())
	assert.Equal(t, ResourceCart, res.Meta().Resource)
	assert.Zero(t, f.notifier.count())
}

func TestMoveItemToCart_InFlightCartStillNotifies(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/items/li-1/move"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.store.BeginFetch(ResourceCart, freshness.New(0), false)

	res := f.wishlist.MoveItemToCart(context.Background(), "li-1")

	require.False(t, res.Failed())
	assert.True(t, res.Meta().Skipped)
	assert.Len(t, f.client.requests(), 1)
	assert.Equal(t, 1, f.notifier.count())
}

func TestMoveItemToCart_NotifierErrorDoesNotAlterResult(t *testing.T) {
	f := newFixture()
	f.notifier.err = errors.New("broker down")
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist/items/li-1/move"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/cart"), mock.Anything).Return(cartJSON, nil).Once()

	res := f.wishlist.MoveItemToCart(context.Background(), "li-1")

	assert.False(t, res.Failed())
	assert.Equal(t, ResourceCart, res.Meta().Resource)
}

func TestMoveListToCart(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/cart"), mock.Anything).Return(cartJSON, nil).Once()

	res := f.wishlist.MoveListToCart(context.Background())

	require.False(t, res.Failed())
	reqs := f.client.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "wishlist", reqs[0].Query.Get("wishlistName"))
	assert.Nil(t, reqs[0].Body)
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, CmdMoveListToCart, f.notifier.got[0].Source)
	assert.Empty(t, f.store.Get(ResourceWishlist).Items)
	assert.Len(t, f.store.Get(ResourceCart).Items, 1)
}

func TestMoveListToCart_Failure(t *testing.T) {
	f := newFixture()
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist"), mock.Anything).
		Return("", remoteErr(http.StatusNotFound, "WISHLIST_NOT_FOUND")).Once()

	res := f.wishlist.MoveListToCart(context.Background())

	require.True(t, res.Failed())
	assert.True(t, errors.Is(res.Cause(), apperrors.ErrNotFound))
	assert.Zero(t, f.notifier.count())
}

func TestMoveListToCart_CartRefreshFailureSkipsNotification(t *testing.T) {
	f := newFixture()
	cartErr := remoteErr(http.StatusBadGateway, "")
	f.client.On("Do", mock.Anything, route(http.MethodPost, "/api/wishlist"), mock.Anything).Return(emptyWishlistJSON, nil).Once()
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/cart"), mock.Anything).Return("", cartErr).Once()

	res := f.wishlist.MoveListToCart(context.Background())

	require.True(t, res.Failed())
	assert.Same(t, cartErr, res.Cause())
	assert.Equal(t, ResourceCart, res.Meta().Resource)
	assert.Equal(t, "fetchCart", res.Meta().Command)
	assert.Len(t, f.client.requests(), 2)
	assert.Zero(t, f.notifier.count())
	assert.Empty(t, f.store.Get(ResourceWishlist).Items, "the move itself is kept")
	assert.False(t, f.store.Get(ResourceCart).IsFetching)
}

func TestWishlistService_CustomName(t *testing.T) {
	f := newFixture()
	svc := NewWishlistService(WishlistDeps{
		Client: f.client, Store: f.store, Dispatcher: f.disp,
		Policy: freshness.New(0), Cart: f.cart, Name: "gift-ideas",
	})
	f.client.On("Do", mock.Anything, route(http.MethodGet, "/api/wishlist"), mock.Anything).Return(wishlistJSON, nil).Once()

	svc.Fetch(context.Background(), true)

	assert.Equal(t, "gift-ideas", svc.Name())
	assert.Equal(t, "gift-ideas", f.client.requests()[0].Query.Get("wishlistName"))
}
