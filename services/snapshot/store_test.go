package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fredscafe-rewards/services/eligibility"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fetcherMock struct {
	profileCalls atomic.Int32
	rewardsCalls atomic.Int32

	fetchProfileFn func(ctx context.Context, customerID string) (eligibility.CustomerProfile, error)
	fetchRewardsFn func(ctx context.Context) ([]eligibility.RewardDefinition, error)
}

func (m *fetcherMock) FetchProfile(ctx context.Context, customerID string) (eligibility.CustomerProfile, error) {
	m.profileCalls.Add(1)
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, customerID)
	}
	return eligibility.CustomerProfile{CustomerID: customerID}, nil
}

func (m *fetcherMock) FetchRewards(ctx context.Context) ([]eligibility.RewardDefinition, error) {
	m.rewardsCalls.Add(1)
	if m.fetchRewardsFn != nil {
		return m.fetchRewardsFn(ctx)
	}
	return []eligibility.RewardDefinition{{ID: "r-1", Name: "Coffee"}}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(f Fetcher, ttl time.Duration) (*Store, *fakeClock, *MemoryCatalogCache) {
	clock := &fakeClock{now: time.Date(2025, time.March, 12, 10, 0, 0, 0, time.UTC)}
	cache := NewMemoryCatalogCache(time.Hour)
	cache.now = clock.Now
	store := NewStore(f, cache, ttl, WithClock(clock.Now), WithLogger(zap.NewNop()))
	return store, clock, cache
}

func TestStore_GetCachesUntilStale(t *testing.T) {
	f := &fetcherMock{}
	store, clock, _ := newTestStore(f, 30*time.Second)
	ctx := context.Background()

	first, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, "c-1", first.Profile.CustomerID)
	require.Len(t, first.Catalog, 1)

	again, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Same(t, first, again)
	require.Equal(t, int32(1), f.profileCalls.Load())

	clock.Advance(31 * time.Second)
	stale, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.NotSame(t, first, stale)
	require.Equal(t, int32(2), f.profileCalls.Load())
	// The catalog is still fresh in its own cache.
	require.Equal(t, int32(1), f.rewardsCalls.Load())
}

func TestStore_RefreshBypassesCatalogCache(t *testing.T) {
	f := &fetcherMock{}
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	before, err := store.Get(ctx, "c-1")
	require.NoError(t, err)

	f.fetchProfileFn = func(_ context.Context, id string) (eligibility.CustomerProfile, error) {
		return eligibility.CustomerProfile{CustomerID: id, LoyaltyPoints: 99}, nil
	}

	after, err := store.Refresh(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), f.rewardsCalls.Load())
	require.Equal(t, int64(99), after.Profile.LoyaltyPoints)

	// The previous snapshot is untouched.
	require.Zero(t, before.Profile.LoyaltyPoints)

	current, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Same(t, after, current)
}

func TestStore_FailedFetchKeepsPreviousSnapshot(t *testing.T) {
	f := &fetcherMock{}
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	before, err := store.Get(ctx, "c-1")
	require.NoError(t, err)

	f.fetchProfileFn = func(context.Context, string) (eligibility.CustomerProfile, error) {
		return eligibility.CustomerProfile{}, errors.New("cafe unavailable")
	}

	_, err = store.Refresh(ctx, "c-1")
	require.EqualError(t, err, "cafe unavailable")

	current, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Same(t, before, current)
}

func TestStore_ConcurrentGetsShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	f := &fetcherMock{}
	f.fetchProfileFn = func(_ context.Context, id string) (eligibility.CustomerProfile, error) {
		<-release
		return eligibility.CustomerProfile{CustomerID: id}, nil
	}
	store, _, _ := newTestStore(f, time.Minute)

	var wg sync.WaitGroup
	results := make([]*Snapshot, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Get(context.Background(), "c-1")
		}(i)
	}

	require.Eventually(t, func() bool { return f.profileCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), f.profileCalls.Load())
	for i, snap := range results {
		require.NoError(t, errs[i])
		require.Same(t, results[0], snap)
	}
}

func TestStore_Invalidate(t *testing.T) {
	f := &fetcherMock{}
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	store.Invalidate("c-1")
	_, err = store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Equal(t, int32(2), f.profileCalls.Load())
}

// blockFirstProfile makes the first FetchProfile call wait for release and
// answer with nothing claimed; later calls see r-1 as claimed.
func blockFirstProfile(f *fetcherMock) (entered, release chan struct{}) {
	entered = make(chan struct{})
	release = make(chan struct{})
	var calls atomic.Int32
	f.fetchProfileFn = func(_ context.Context, id string) (eligibility.CustomerProfile, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return eligibility.CustomerProfile{CustomerID: id}, nil
		}
		return eligibility.CustomerProfile{CustomerID: id, ClaimedRewardIDs: []string{"r-1"}}, nil
	}
	return entered, release
}

func TestStore_SlowGetDoesNotOverwriteLaterRefresh(t *testing.T) {
	f := &fetcherMock{}
	entered, release := blockFirstProfile(f)
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := store.Get(ctx, "c-1")
		if err != nil {
			snap = nil
		}
		done <- snap
	}()
	<-entered

	refreshed, err := store.Refresh(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, refreshed.Profile.HasClaimed("r-1"))

	close(release)
	require.Same(t, refreshed, <-done)

	current, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Same(t, refreshed, current)
	require.True(t, current.Profile.HasClaimed("r-1"))
}

func TestStore_RefreshDoesNotJoinRunningRefresh(t *testing.T) {
	f := &fetcherMock{}
	entered, release := blockFirstProfile(f)
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	done := make(chan *Snapshot, 1)
	go func() {
		snap, err := store.Refresh(ctx, "c-1")
		if err != nil {
			snap = nil
		}
		done <- snap
	}()
	<-entered

	second, err := store.Refresh(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, second.Profile.HasClaimed("r-1"))
	require.Equal(t, int32(2), f.profileCalls.Load())

	close(release)
	require.Same(t, second, <-done)

	current, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Same(t, second, current)
}

func TestStore_InvalidateDiscardsRunningLoad(t *testing.T) {
	f := &fetcherMock{}
	entered, release := blockFirstProfile(f)
	store, _, _ := newTestStore(f, time.Minute)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := store.Get(ctx, "c-1")
		done <- err
	}()
	<-entered

	store.Invalidate("c-1")
	close(release)
	require.NoError(t, <-done)

	current, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.True(t, current.Profile.HasClaimed("r-1"))
	require.Equal(t, int32(2), f.profileCalls.Load())
}

func TestMemoryCatalogCache_Expires(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewMemoryCatalogCache(time.Minute)
	cache.now = clock.Now
	ctx := context.Background()

	_, ok := cache.Get(ctx)
	require.False(t, ok)

	cache.Set(ctx, []eligibility.RewardDefinition{{ID: "r-1"}})
	got, ok := cache.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 1)

	clock.Advance(2 * time.Minute)
	_, ok = cache.Get(ctx)
	require.False(t, ok)

	cache.Set(ctx, got)
	cache.Invalidate(ctx)
	_, ok = cache.Get(ctx)
	require.False(t, ok)
}

func TestRedisCatalogCache_UnavailableIsMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := NewRedisCatalogCache(rdb, time.Minute, zap.NewNop())
	ctx := context.Background()

	cache.Set(ctx, []eligibility.RewardDefinition{{ID: "r-1"}})
	_, ok := cache.Get(ctx)
	require.False(t, ok)
	cache.Invalidate(ctx)

	f := &fetcherMock{}
	store := NewStore(f, cache, time.Minute)
	snap, err := store.Get(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, snap.Catalog, 1)
}
