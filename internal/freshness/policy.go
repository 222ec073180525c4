// Package freshness decides whether a cached resource should be fetched again.
package freshness

import (
	"time"

	"github.com/utafrali/storefront-sync/internal/domain"
)

// DefaultTTL is the freshness window for cached resources.
const DefaultTTL = 180 * time.Second

// Decision is the outcome of evaluating a cache entry.
type Decision int

const (
	// Skip means no request is issued.
	Skip Decision = iota
	// Issue means the entry is missing or stale.
	Issue
	// Force means the caller asked to bypass freshness.
	Force
)

func (d Decision) String() string {
	switch d {
	case Skip:
		return "skip"
	case Issue:
		return "issue"
	case Force:
		return "force"
	default:
		return "unknown"
	}
}

// Reason explains a Skip.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonInFlight Reason = "in_flight"
	ReasonFresh    Reason = "fresh"
)

// Policy evaluates cache entries against a TTL. The zero value is not
// useful; use New.
type Policy struct {
	ttl time.Duration
	now func() time.Time
}

// Option configures a Policy.
type Option func(*Policy)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

// New returns a policy with the given TTL. A non-positive TTL falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) Policy {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := Policy{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// TTL returns the configured freshness window.
func (p Policy) TTL() time.Duration { return p.ttl }

// Now returns the policy clock's current time.
func (p Policy) Now() time.Time { return p.now() }

// Evaluate returns the decision for entry and, for Skip, why.
func (p Policy) Evaluate(entry domain.CacheEntry, force bool) (Decision, Reason) {
	if entry.IsFetching {
		return Skip, ReasonInFlight
	}
	if force {
		return Force, ReasonNone
	}
	if entry.Fetched() && p.now().Sub(entry.LastFetchedAt) < p.ttl {
		return Skip, ReasonFresh
	}
	return Issue, ReasonNone
}

// Decide is Evaluate without the reason.
func (p Policy) Decide(entry domain.CacheEntry, force bool) Decision {
	d, _ := p.Evaluate(entry, force)
	return d
}

// ShouldFetch reports whether a request should go out for entry.
func (p Policy) ShouldFetch(entry domain.CacheEntry, force bool) bool {
	return p.Decide(entry, force) != Skip
}
