package store

import (
	"context"
	"time"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/internal/freshness"
)

// DefaultFetchTimeout bounds a fetch once it has been issued.
const DefaultFetchTimeout = 30 * time.Second

// Fetcher runs a fetch command for one resource, gated by a freshness policy.
type Fetcher[T any] struct {
	Store      *Store
	Dispatcher *dispatch.Dispatcher
	Policy     freshness.Policy
	Command    dispatch.Command[struct{}, T]
	// Timeout bounds the command. Zero means DefaultFetchTimeout.
	Timeout time.Duration

	// Items extracts the line items to cache from a fetched value.
	Items func(T) []domain.LineItem
	// Cached builds the value handed back when the fetch is skipped.
	Cached func(domain.CacheEntry) T
}

// Fetch issues the command unless the policy skips it. On success the
// entry is replaced and stamped; on failure only the fetching flag clears.
//
// An issued command is detached from ctx cancellation: other callers are
// already skipping as in flight and wait on its result. Values on ctx, such
// as the correlation ID, still flow through.
func (f Fetcher[T]) Fetch(ctx context.Context, force bool) dispatch.Outcome[T] {
	resource := f.Command.Resource

	ticket, decision, reason := f.Store.BeginFetch(resource, f.Policy, force)
	if decision == freshness.Skip {
		f.Dispatcher.RecordSkip(ctx, resource, f.Command.Name, string(reason))
		return dispatch.Skip(resource, f.Command.Name, f.Cached(ticket.Before), string(reason))
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	out := dispatch.Execute(runCtx, f.Dispatcher, f.Command, struct{}{})
	if out.Failed() {
		f.Store.AbortFetch(ticket)
		return out
	}
	// A reset while in flight discards the result; the caller still gets it.
	f.Store.CompleteFetch(ticket, f.Items(out.Value), f.Policy.Now())
	return out
}
