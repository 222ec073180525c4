// Package store holds the cached copies of remote resources for one session.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/utafrali/storefront-sync/internal/domain"
	"github.com/utafrali/storefront-sync/internal/freshness"
)

// Change is emitted to watchers after every mutation.
type Change struct {
	Resource string
	Entry    domain.CacheEntry
	Deleted  bool
}

// Watcher observes store changes. Watchers run outside the store lock but in
// mutation order, and must not mutate the store.
type Watcher func(Change)

// Store is a concurrency-safe map of resource name to cache entry.
type Store struct {
	mu       sync.Mutex
	entries  map[string]domain.CacheEntry
	gens     map[string]uint64
	watchers []Watcher

	// emitMu is taken before mu is released so watchers see changes in order.
	emitMu sync.Mutex
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]domain.CacheEntry),
		gens:    make(map[string]uint64),
	}
}

// Watch registers w for all future changes.
func (s *Store) Watch(w Watcher) {
	s.mu.Lock()
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()
}

// Get returns a copy of the entry for resource. Missing entries are empty.
func (s *Store) Get(resource string) domain.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[resource].Clone()
}

// Resources returns the names of all known resources, sorted.
func (s *Store) Resources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ticket identifies one issued fetch. Its result is applied only while no
// reset of the resource happened since BeginFetch.
type Ticket struct {
	Resource string
	// Before is the entry as it was when BeginFetch ran.
	Before domain.CacheEntry
	gen    uint64
}

// BeginFetch evaluates policy against the current entry and, unless the
// decision is Skip, marks the entry as fetching. Both happen under one lock.
func (s *Store) BeginFetch(resource string, policy freshness.Policy, force bool) (Ticket, freshness.Decision, freshness.Reason) {
	s.mu.Lock()
	entry := s.entries[resource]
	t := Ticket{Resource: resource, Before: entry.Clone(), gen: s.gens[resource]}
	decision, reason := policy.Evaluate(entry, force)
	if decision == freshness.Skip {
		s.mu.Unlock()
		return t, decision, reason
	}
	entry.IsFetching = true
	s.entries[resource] = entry
	s.commit(resource, entry, false)
	return t, decision, reason
}

// CompleteFetch stores the fetched items, stamps at and clears the fetching
// flag. It reports false, and stores nothing, when the resource was reset
// after t was issued.
func (s *Store) CompleteFetch(t Ticket, items []domain.LineItem, at time.Time) (domain.CacheEntry, bool) {
	s.mu.Lock()
	if s.gens[t.Resource] != t.gen {
		return s.settleStale(t.Resource), false
	}
	entry := domain.CacheEntry{Items: domain.CloneItems(items), LastFetchedAt: at}
	s.entries[t.Resource] = entry
	s.commit(t.Resource, entry, false)
	return entry.Clone(), true
}

// AbortFetch clears the fetching flag and keeps everything else.
func (s *Store) AbortFetch(t Ticket) domain.CacheEntry {
	s.mu.Lock()
	if s.gens[t.Resource] != t.gen {
		return s.settleStale(t.Resource)
	}
	entry := s.entries[t.Resource]
	entry.IsFetching = false
	s.entries[t.Resource] = entry
	s.commit(t.Resource, entry, false)
	return entry.Clone()
}

// ReplaceItems swaps the items of resource. LastFetchedAt and the fetching
// flag are untouched.
func (s *Store) ReplaceItems(resource string, items []domain.LineItem) domain.CacheEntry {
	s.mu.Lock()
	entry := s.entries[resource]
	entry.Items = domain.CloneItems(items)
	s.entries[resource] = entry
	s.commit(resource, entry, false)
	return entry.Clone()
}

// Restore seeds resource from a persisted entry without notifying watchers.
// The fetching flag is never restored.
func (s *Store) Restore(resource string, entry domain.CacheEntry) {
	entry = entry.Clone()
	entry.IsFetching = false
	s.mu.Lock()
	s.entries[resource] = entry
	s.mu.Unlock()
}

// Reset drops the entry for resource. A fetch in flight keeps its marker so
// no second request is issued, but its result is discarded.
func (s *Store) Reset(resource string) {
	s.mu.Lock()
	s.drop(resource)
	s.commit(resource, domain.CacheEntry{}, true)
}

// ResetAll drops every entry and returns the names that were removed.
// In-flight markers survive as in Reset.
func (s *Store) ResetAll() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.drop(name)
	}
	watchers := s.watchers
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, name := range names {
		for _, w := range watchers {
			w(Change{Resource: name, Deleted: true})
		}
	}
	return names
}

// drop must be called with mu held.
func (s *Store) drop(resource string) {
	s.gens[resource]++
	if s.entries[resource].IsFetching {
		s.entries[resource] = domain.CacheEntry{IsFetching: true}
		return
	}
	delete(s.entries, resource)
}

// settleStale ends a fetch that outlived a reset. A bare marker is removed
// without notifying watchers. settleStale must be called with mu held; it
// releases mu.
func (s *Store) settleStale(resource string) domain.CacheEntry {
	entry, ok := s.entries[resource]
	if !ok || !entry.IsFetching {
		s.mu.Unlock()
		return entry.Clone()
	}
	entry.IsFetching = false
	if len(entry.Items) == 0 && !entry.Fetched() {
		delete(s.entries, resource)
		s.mu.Unlock()
		return domain.CacheEntry{}
	}
	s.entries[resource] = entry
	s.commit(resource, entry, false)
	return entry.Clone()
}

// commit must be called with mu held; it releases mu.
func (s *Store) commit(resource string, entry domain.CacheEntry, deleted bool) {
	watchers := s.watchers
	if len(watchers) == 0 {
		s.mu.Unlock()
		return
	}
	change := Change{Resource: resource, Entry: entry.Clone(), Deleted: deleted}
	s.emitMu.Lock()
	s.mu.Unlock()
	defer s.emitMu.Unlock()
	for _, w := range watchers {
		w(change)
	}
}
