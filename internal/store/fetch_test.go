package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-sync/internal/dispatch"
	"github.com/utafrali/storefront-sync/internal/domain"
)

func testFetcher(s *Store, do func(context.Context, struct{}) ([]domain.LineItem, error)) Fetcher[[]domain.LineItem] {
	return Fetcher[[]domain.LineItem]{
		Store:      s,
		Dispatcher: dispatch.New(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Policy:     policy(),
		Command:    dispatch.Command[struct{}, []domain.LineItem]{Name: "fetchList", Resource: "list", Do: do},
		Items:      func(v []domain.LineItem) []domain.LineItem { return v },
		Cached:     func(e domain.CacheEntry) []domain.LineItem { return e.Items },
	}
}

func TestFetcher_SuccessStampsEntry(t *testing.T) {
	s := New()
	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) {
		return items("a", "b"), nil
	})

	out := f.Fetch(context.Background(), false)

	require.False(t, out.Failed())
	assert.False(t, out.Skipped)
	entry := s.Get("list")
	assert.False(t, entry.IsFetching)
	assert.Equal(t, now, entry.LastFetchedAt)
	assert.Len(t, entry.Items, 2)
	assert.Equal(t, dispatch.Succeeded, f.Dispatcher.Status("list").State)
}

func TestFetcher_FreshEntrySkipsWithoutCalling(t *testing.T) {
	s := New()
	stamp(s, "list", items("cached"), now.Add(-60*time.Second))

	called := false
	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) {
		called = true
		return nil, nil
	})

	out := f.Fetch(context.Background(), false)

	assert.False(t, called)
	assert.True(t, out.Skipped)
	assert.Equal(t, "fresh", out.Reason)
	require.Len(t, out.Value, 1)
	assert.Equal(t, "cached", out.Value[0].ID)
	assert.False(t, s.Get("list").IsFetching)
	assert.Equal(t, dispatch.Idle, f.Dispatcher.Status("list").State)
}

func TestFetcher_StaleAndForced(t *testing.T) {
	s := New()
	stamp(s, "list", items("old"), now.Add(-200*time.Second))

	var calls int
	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) {
		calls++
		return items("new"), nil
	})

	f.Fetch(context.Background(), false)
	assert.Equal(t, 1, calls, "stale entry is refetched")

	f.Fetch(context.Background(), true)
	assert.Equal(t, 2, calls, "forced fetch bypasses freshness")
}

func TestFetcher_FailureKeepsPreviousData(t *testing.T) {
	s := New()
	stamp(s, "list", items("kept"), now.Add(-time.Hour))
	boom := errors.New("503")

	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) { return nil, boom })
	out := f.Fetch(context.Background(), false)

	assert.Same(t, boom, out.Err)
	entry := s.Get("list")
	assert.False(t, entry.IsFetching)
	assert.Equal(t, now.Add(-time.Hour), entry.LastFetchedAt)
	assert.Equal(t, "kept", entry.Items[0].ID)
}

func TestFetcher_ConcurrentCallsIssueOnce(t *testing.T) {
	s := New()
	release := make(chan struct{})
	var calls atomic.Int32

	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) {
		calls.Add(1)
		<-release
		return items("a"), nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Fetch(context.Background(), true)
	}()

	require.Eventually(t, func() bool { return s.Get("list").IsFetching }, time.Second, time.Millisecond)

	second := f.Fetch(context.Background(), true)
	assert.True(t, second.Skipped)
	assert.Equal(t, "in_flight", second.Reason)

	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_CallerCancelDoesNotAbortIssuedFetch(t *testing.T) {
	s := New()
	f := testFetcher(s, func(ctx context.Context, _ struct{}) ([]domain.LineItem, error) {
		select {
		case <-time.After(50 * time.Millisecond):
			return items("a"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	out := f.Fetch(ctx, false)

	require.NoError(t, out.Err)
	entry := s.Get("list")
	assert.False(t, entry.IsFetching)
	assert.Equal(t, now, entry.LastFetchedAt)
	assert.Len(t, entry.Items, 1)
}

func TestFetcher_TimeoutBoundsIssuedFetch(t *testing.T) {
	s := New()
	stamp(s, "list", items("kept"), now.Add(-time.Hour))
	f := testFetcher(s, func(ctx context.Context, _ struct{}) ([]domain.LineItem, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f.Timeout = 10 * time.Millisecond

	out := f.Fetch(context.Background(), false)

	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	entry := s.Get("list")
	assert.False(t, entry.IsFetching)
	assert.Equal(t, "kept", entry.Items[0].ID)
}

func TestFetcher_ResetWhileInFlightDiscardsResult(t *testing.T) {
	s := New()
	release := make(chan struct{})
	var calls atomic.Int32
	f := testFetcher(s, func(context.Context, struct{}) ([]domain.LineItem, error) {
		calls.Add(1)
		<-release
		return items("late"), nil
	})

	done := make(chan dispatch.Outcome[[]domain.LineItem], 1)
	go func() { done <- f.Fetch(context.Background(), false) }()
	require.Eventually(t, func() bool { return s.Get("list").IsFetching }, time.Second, time.Millisecond)

	s.ResetAll()
	second := f.Fetch(context.Background(), true)
	assert.True(t, second.Skipped)
	assert.Equal(t, "in_flight", second.Reason)

	close(release)
	first := <-done
	require.NoError(t, first.Err)
	assert.Len(t, first.Value, 1, "the caller still receives the response")

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.Get("list").Fetched())
	assert.False(t, s.Get("list").IsFetching)
}
