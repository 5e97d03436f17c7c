// Package feed provides live queries over the listing store.
//
// A subscriber registers a filter and a callback. The callback receives the
// full matching record set once right after subscribing and again whenever a
// Notify finds that set changed. Each subscription delivers from its own
// goroutine, in order, and coalesces notifications that arrive while a query
// is running so only the newest result set is delivered.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/storage/models"
)

// DefaultQueryTimeout bounds a single snapshot query.
const DefaultQueryTimeout = 10 * time.Second

// Querier loads the listings that match a filter.
type Querier interface {
	List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
}

// Feed fans store changes out to live subscriptions.
type Feed struct {
	querier      Querier
	queryTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
	closed bool
}

// New creates a feed that answers live queries with querier.
func New(querier Querier) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	return &Feed{
		querier:      querier,
		queryTimeout: DefaultQueryTimeout,
		ctx:          ctx,
		cancel:       cancel,
		subs:         make(map[uint64]*subscription),
	}
}

// Subscribe starts a live query. onChange is invoked with the complete
// result set on every change. The returned function releases the
// subscription; it is safe to call more than once, and once it returns
// onChange is never invoked again. It must not be called from inside onChange.
func (f *Feed) Subscribe(filter models.ListingFilter, onChange func([]models.Listing)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return func() {}
	}

	f.nextID++
	s := &subscription{
		id:       f.nextID,
		filter:   filter,
		onChange: onChange,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	f.subs[s.id] = s

	// initial snapshot
	s.wake <- struct{}{}
	go f.run(s)

	glog.V(1).Infof("[feed] subscribe #%d %s (live: %d)", s.id, filter, len(f.subs))

	return func() { f.release(s) }
}

// Notify tells every live subscription that the store changed.
func (f *Feed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.subs {
		select {
		case s.wake <- struct{}{}:
		default:
			// a refresh is already pending
		}
	}
}

// Count returns the number of live subscriptions.
func (f *Feed) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close releases every subscription and refuses new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	subs := make([]*subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		f.release(s)
	}
	f.cancel()
}

func (f *Feed) release(s *subscription) {
	s.once.Do(func() {
		f.mu.Lock()
		delete(f.subs, s.id)
		live := len(f.subs)
		f.mu.Unlock()

		close(s.done)

		// waits for an in-flight delivery to finish
		s.deliverMu.Lock()
		s.released = true
		s.deliverMu.Unlock()

		glog.V(1).Infof("[feed] unsubscribe #%d %s (live: %d)", s.id, s.filter, live)
	})
}

func (f *Feed) run(s *subscription) {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		records, err := f.query(s.filter)
		if err != nil {
			glog.Errorf("[feed] snapshot query for #%d %s failed: %v", s.id, s.filter, err)
			continue
		}

		// the first snapshot always goes out; later ones only when the
		// matching set changed
		if s.delivered && models.SameListings(s.last, records) {
			glog.V(2).Infof("[feed] #%d %s unchanged, skipped", s.id, s.filter)
			continue
		}
		s.last = records
		s.delivered = true
		s.deliver(records)
	}
}

func (f *Feed) query(filter models.ListingFilter) ([]models.Listing, error) {
	ctx, cancel := context.WithTimeout(f.ctx, f.queryTimeout)
	defer cancel()

	records, err := f.querier.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	// only records matching the predicate ever reach a subscriber
	matched := make([]models.Listing, 0, len(records))
	for i := range records {
		if filter.Matches(&records[i]) {
			matched = append(matched, records[i])
		}
	}
	return matched, nil
}

type subscription struct {
	id       uint64
	filter   models.ListingFilter
	onChange func([]models.Listing)

	wake chan struct{}
	done chan struct{}
	once sync.Once

	// owned by the run goroutine
	last      []models.Listing
	delivered bool

	deliverMu sync.Mutex
	released  bool
}

func (s *subscription) deliver(records []models.Listing) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if s.released {
		return
	}
	glog.V(2).Infof("[feed] #%d %s snapshot: %d record(s)", s.id, s.filter, len(records))
	s.onChange(records)
}
