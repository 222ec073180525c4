package service

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/internal/freshness"
	"github.com/utafrali/storefront-sync/internal/notify"
	"github.com/utafrali/storefront-sync/internal/remote"
	"github.com/utafrali/storefront-sync/internal/store"
	"github.com/utafrali/storefront-sync/pkg/logger"
	"github.com/utafrali/storefront-sync/pkg/validator"
)

// ResourceWishlist is the cache resource holding the shopper's wishlist.
const ResourceWishlist = "wishlist"

// DefaultWishlistName is the wishlist discriminator sent with every request.
const DefaultWishlistName = "wishlist"

// Command names, as reported in outcomes, metrics and status.
const (
	CmdFetchWishlist      = "fetchWishlist"
	CmdAddItem            = "addItemToWishlist"
	CmdAddConfigurable    = "addConfigurableItemToWishlist"
	CmdUpdateQuantity     = "updateQuantityInWishlist"
	CmdRemoveItem         = "removeItemFromWishlist"
	CmdMoveItemToCart     = "moveItemToCart"
	CmdMoveListToCart     = "moveListToCart"
	stepRefreshCart       = "refreshCart"
	stepNotifyCartUpdated = "notifyCartUpdated"
)

// CartFetcher refreshes the cart after a move.
type CartFetcher interface {
	Fetch(ctx context.Context, force bool) dispatch.Outcome[domain.Cart]
}

// WishlistDeps wires a WishlistService.
type WishlistDeps struct {
	Client     remote.Client
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	Policy     freshness.Policy
	Cart       CartFetcher
	Notifier   notify.Notifier
	// Session identifies the workspace in notifications.
	Session string
	// Name overrides DefaultWishlistName.
	Name   string
	Logger *slog.Logger
}

// addItemBody is the intent with the update flag merged in.
type addItemBody struct {
	domain.LineItemIntent
	IsUpdateRequest bool `json:"isUpdateRequest"`
}

type quantityChange struct {
	ItemID   string
	Quantity int
}

// WishlistService keeps the cached wishlist in sync with the storefront API.
type WishlistService struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	policy     freshness.Policy
	cart       CartFetcher
	notifier   notify.Notifier
	session    string
	name       string
	logger     *slog.Logger

	fetcher         store.Fetcher[domain.Wishlist]
	addItem         dispatch.Command[addItemBody, domain.Wishlist]
	addConfigurable dispatch.Command[addItemBody, domain.Wishlist]
	updateQuantity  dispatch.Command[quantityChange, domain.Wishlist]
	removeItem      dispatch.Command[string, domain.Wishlist]
	moveItem        dispatch.Command[string, domain.Wishlist]
	moveList        dispatch.Command[struct{}, domain.Wishlist]

	mu   sync.RWMutex
	last domain.Wishlist
}

// NewWishlistService creates a new wishlist service.
func NewWishlistService(deps WishlistDeps) *WishlistService {
	name := deps.Name
	if name == "" {
		name = DefaultWishlistName
	}
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	s := &WishlistService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		policy:     deps.Policy,
		cart:       deps.Cart,
		notifier:   deps.Notifier,
		session:    deps.Session,
		name:       name,
		logger:     l,
	}

	fetch := remote.Action[struct{}, domain.Wishlist](deps.Client, ResourceWishlist, CmdFetchWishlist,
		func(struct{}) remote.Request {
			return remote.Request{Method: http.MethodGet, Path: "/api/wishlist", Query: s.query()}
		})
	fetch.OnSuccess = func(_ context.Context, _ struct{}, w domain.Wishlist) { s.remember(w) }
	s.fetcher = store.Fetcher[domain.Wishlist]{
		Store:      deps.Store,
		Dispatcher: deps.Dispatcher,
		Policy:     deps.Policy,
		Command:    fetch,
		Items:      func(w domain.Wishlist) []domain.LineItem { return w.Items },
		Cached:     s.fromEntry,
	}

	addRequest := func(path string) func(addItemBody) remote.Request {
		return func(body addItemBody) remote.Request {
			q := s.query()
			q.Set("isUpdateRequest", strconv.FormatBool(body.IsUpdateRequest))
			return remote.Request{Method: http.MethodPost, Path: path, Query: q, Body: body}
		}
	}
	s.addItem = mutation(s, remote.Action[addItemBody, domain.Wishlist](deps.Client, ResourceWishlist, CmdAddItem,
		addRequest("/api/wishlist/item")))
	s.addConfigurable = mutation(s, remote.Action[addItemBody, domain.Wishlist](deps.Client, ResourceWishlist, CmdAddConfigurable,
		addRequest("/api/wishlist/configure-item")))

	s.updateQuantity = mutation(s, remote.Action[quantityChange, domain.Wishlist](deps.Client, ResourceWishlist, CmdUpdateQuantity,
		func(c quantityChange) remote.Request {
			q := s.query()
			q.Set("quantity", strconv.Itoa(c.Quantity))
			return remote.Request{Method: http.MethodPut, Path: itemPath(c.ItemID), Query: q}
		}))
	s.removeItem = mutation(s, remote.Action[string, domain.Wishlist](deps.Client, ResourceWishlist, CmdRemoveItem,
		func(itemID string) remote.Request {
			return remote.Request{Method: http.MethodDelete, Path: itemPath(itemID), Query: s.query()}
		}))
	s.moveItem = mutation(s, remote.Action[string, domain.Wishlist](deps.Client, ResourceWishlist, CmdMoveItemToCart,
		func(itemID string) remote.Request {
			return remote.Request{Method: http.MethodPost, Path: itemPath(itemID) + "/move", Query: s.query()}
		}))
	s.moveList = mutation(s, remote.Action[struct{}, domain.Wishlist](deps.Client, ResourceWishlist, CmdMoveListToCart,
		func(struct{}) remote.Request {
			return remote.Request{Method: http.MethodPost, Path: "/api/wishlist", Query: s.query()}
		}))

	return s
}

// mutation makes a successful answer replace the cached items. The fetch
// timestamp is left alone.
func mutation[Req any](s *WishlistService, cmd dispatch.Command[Req, domain.Wishlist]) dispatch.Command[Req, domain.Wishlist] {
	cmd.OnSuccess = func(_ context.Context, _ Req, w domain.Wishlist) {
		s.store.ReplaceItems(ResourceWishlist, w.Items)
		s.remember(w)
	}
	return cmd
}

func itemPath(itemID string) string {
	return "/api/wishlist/items/" + url.PathEscape(itemID)
}

func (s *WishlistService) query() url.Values {
	return url.Values{"wishlistName": {s.name}}
}

// Name returns the wishlist discriminator in use.
func (s *WishlistService) Name() string { return s.name }

// Fetch refreshes the wishlist unless the cached copy is fresh or a fetch
// is already in flight. A skipped fetch carries the cached items.
func (s *WishlistService) Fetch(ctx context.Context, force bool) dispatch.Outcome[domain.Wishlist] {
	return s.fetcher.Fetch(ctx, force)
}

// Cached returns the wishlist as currently cached.
func (s *WishlistService) Cached() domain.Wishlist {
	return s.fromEntry(s.store.Get(ResourceWishlist))
}

// AddItem adds or reconfigures a wishlist line. Configurable items go to
// the configure endpoint.
func (s *WishlistService) AddItem(ctx context.Context, intent domain.LineItemIntent, isUpdateRequest, isConfigurable bool) dispatch.Outcome[domain.Wishlist] {
	cmd := s.addItem
	if isConfigurable {
		cmd = s.addConfigurable
	}
	if err := validator.Validate(intent); err != nil {
		return dispatch.Fail[domain.Wishlist](ResourceWishlist, cmd.Name, err)
	}
	return dispatch.Execute(ctx, s.dispatcher, cmd, addItemBody{LineItemIntent: intent, IsUpdateRequest: isUpdateRequest})
}

// UpdateQuantity sets the quantity of an existing line.
func (s *WishlistService) UpdateQuantity(ctx context.Context, itemID string, quantity int) dispatch.Outcome[domain.Wishlist] {
	if err := validator.Var(itemID, "required"); err != nil {
		return dispatch.Fail[domain.Wishlist](ResourceWishlist, CmdUpdateQuantity, err)
	}
	if err := validator.Var(quantity, "gte=0"); err != nil {
		return dispatch.Fail[domain.Wishlist](ResourceWishlist, CmdUpdateQuantity, err)
	}
	return dispatch.Execute(ctx, s.dispatcher, s.updateQuantity, quantityChange{ItemID: itemID, Quantity: quantity})
}

// RemoveItem deletes a line.
func (s *WishlistService) RemoveItem(ctx context.Context, itemID string) dispatch.Outcome[domain.Wishlist] {
	if err := validator.Var(itemID, "required"); err != nil {
		return dispatch.Fail[domain.Wishlist](ResourceWishlist, CmdRemoveItem, err)
	}
	return dispatch.Execute(ctx, s.dispatcher, s.removeItem, itemID)
}

// MoveItemToCart moves one line to the cart, then force-refreshes the cart
// and signals "cart updated". The first failing outcome is returned as is.
func (s *WishlistService) MoveItemToCart(ctx context.Context, itemID string) dispatch.Result {
	if err := validator.Var(itemID, "required"); err != nil {
		return dispatch.Fail[domain.Wishlist](ResourceWishlist, CmdMoveItemToCart, err)
	}
	return s.moveWorkflow(CmdMoveItemToCart, func(ctx context.Context) dispatch.Result {
		return dispatch.Execute(ctx, s.dispatcher, s.moveItem, itemID)
	}).Run(ctx)
}

// MoveListToCart moves every line to the cart, then runs the same chain
// as MoveItemToCart.
func (s *WishlistService) MoveListToCart(ctx context.Context) dispatch.Result {
	return s.moveWorkflow(CmdMoveListToCart, func(ctx context.Context) dispatch.Result {
		return dispatch.Execute(ctx, s.dispatcher, s.moveList, struct{}{})
	}).Run(ctx)
}

func (s *WishlistService) moveWorkflow(name string, move func(context.Context) dispatch.Result) *dispatch.Workflow {
	return dispatch.NewWorkflow(name, s.logger).
		Then(name, func(ctx context.Context, _ dispatch.Result) dispatch.Result {
			return move(ctx)
		}).
		Then(stepRefreshCart, func(ctx context.Context, _ dispatch.Result) dispatch.Result {
			return s.cart.Fetch(ctx, true)
		}).
		Then(stepNotifyCartUpdated, func(ctx context.Context, prev dispatch.Result) dispatch.Result {
			s.notifyCartUpdated(ctx, name, prev)
			return nil
		})
}

func (s *WishlistService) notifyCartUpdated(ctx context.Context, source string, prev dispatch.Result) {
	if s.notifier == nil {
		return
	}
	n := notify.Notification{
		Kind:    notify.CartUpdated,
		Session: s.session,
		Source:  source,
		At:      s.policy.Now(),
	}
	if cart, ok := prev.Data().(domain.Cart); ok {
		n.ItemCount = domain.ItemCount(cart.Items)
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		logger.WithContext(ctx, s.logger).WarnContext(ctx, "cart updated notification failed",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
	}
}

func (s *WishlistService) remember(w domain.Wishlist) {
	s.mu.Lock()
	s.last = domain.Wishlist{ID: w.ID, Name: w.Name}
	s.mu.Unlock()
}

func (s *WishlistService) fromEntry(e domain.CacheEntry) domain.Wishlist {
	s.mu.RLock()
	w := s.last
	s.mu.RUnlock()
	if w.Name == "" {
		w.Name = s.name
	}
	w.Items = e.Items
	return w
}
