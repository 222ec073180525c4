package domain

import "time"

// CacheEntry is the locally held copy of one remote resource.
//
// IsFetching is a mutual-exclusion flag: at most one fetch per resource is
// outstanding. LastFetchedAt only moves when a fetch succeeds; mutations
// replace Items but leave it alone.
type CacheEntry struct {
	Items         []LineItem `json:"items"`
	LastFetchedAt time.Time  `json:"last_fetched_at"`
	IsFetching    bool       `json:"-"`
}

// Fetched reports whether the entry has ever completed a fetch.
func (e CacheEntry) Fetched() bool {
	return !e.LastFetchedAt.IsZero()
}

// Clone returns a copy that shares no memory with e.
func (e CacheEntry) Clone() CacheEntry {
	e.Items = CloneItems(e.Items)
	return e
}
