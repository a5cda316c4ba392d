package snapshot

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"fredscafe-rewards/services/eligibility"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the part of the cafe API the store reads from.
type Fetcher interface {
	FetchProfile(ctx context.Context, customerID string) (eligibility.CustomerProfile, error)
	FetchRewards(ctx context.Context) ([]eligibility.RewardDefinition, error)
}

// Snapshot is one customer's profile and the catalog as fetched together.
// It is never modified after creation; a refetch produces a new Snapshot.
type Snapshot struct {
	CustomerID string
	Profile    eligibility.CustomerProfile
	Catalog    []eligibility.RewardDefinition
	FetchedAt  time.Time
}

type Store struct {
	fetcher Fetcher
	catalog CatalogCache
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu    sync.RWMutex
	items map[string]*Snapshot
	// stamps holds, per customer, the sequence number of the load that
	// produced items[id] or of the last Invalidate. A load that started
	// before the stamp must not replace the snapshot.
	stamps map[string]uint64
	seq    atomic.Uint64
	group  singleflight.Group
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore keeps snapshots for ttl before Get refetches them. A zero ttl
// refetches on every Get.
func NewStore(fetcher Fetcher, catalog CatalogCache, ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		fetcher: fetcher,
		catalog: catalog,
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
		items:   make(map[string]*Snapshot),
		stamps:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the customer's current snapshot, fetching it when missing or stale.
func (s *Store) Get(ctx context.Context, customerID string) (*Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.items[customerID]
	s.mu.RUnlock()

	if ok && s.now().Sub(snap.FetchedAt) <= s.ttl {
		return snap, nil
	}
	return s.load(ctx, customerID)
}

// Refresh refetches profile and catalog, bypassing every cache, and replaces
// the customer's snapshot. It never joins a fetch that is already running, so
// the result reflects server state as of the call.
func (s *Store) Refresh(ctx context.Context, customerID string) (*Snapshot, error) {
	return s.fetch(ctx, customerID, true)
}

// Invalidate drops the snapshot and discards any load already in flight.
func (s *Store) Invalidate(customerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, customerID)
	s.stamps[customerID] = s.seq.Add(1)
}

// load shares one fetch between concurrent Gets for the same customer.
func (s *Store) load(ctx context.Context, customerID string) (*Snapshot, error) {
	v, err, _ := s.group.Do(customerID, func() (any, error) {
		return s.fetch(ctx, customerID, false)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (s *Store) fetch(ctx context.Context, customerID string, force bool) (*Snapshot, error) {
	started := s.seq.Add(1)

	var (
		profile eligibility.CustomerProfile
		catalog []eligibility.RewardDefinition
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.fetcher.FetchProfile(gctx, customerID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		if !force {
			if cached, ok := s.catalog.Get(gctx); ok {
				catalog = cached
				return nil
			}
		}
		fetched, err := s.fetcher.FetchRewards(gctx)
		if err != nil {
			return err
		}
		s.catalog.Set(gctx, fetched)
		catalog = fetched
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		CustomerID: customerID,
		Profile:    profile,
		Catalog:    slices.Clip(catalog),
		FetchedAt:  s.now(),
	}

	s.mu.Lock()
	if s.stamps[customerID] > started {
		current := s.items[customerID]
		s.mu.Unlock()

		s.logger.Debug("discarded outdated snapshot",
			zap.String("customer_id", customerID),
			zap.Bool("forced", force),
		)
		if current != nil {
			return current, nil
		}
		return snap, nil
	}
	s.items[customerID] = snap
	s.stamps[customerID] = started
	s.mu.Unlock()

	s.logger.Debug("snapshot replaced",
		zap.String("customer_id", customerID),
		zap.Bool("forced", force),
		zap.Int("catalog_size", len(catalog)),
	)
	return snap, nil
}
