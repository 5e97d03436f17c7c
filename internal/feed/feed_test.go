package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/imuhira/listings/internal/storage/models"
	"github.com/imuhira/listings/internal/viewstate"
)

// memoryQuerier is an in-memory store; List honours only the kind so the
// feed's own predicate check is exercised too.
type memoryQuerier struct {
	mu       sync.Mutex
	listings []models.Listing
	err      error
	calls    int
}

func (q *memoryQuerier) List(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	out := []models.Listing{}
	for _, l := range q.listings {
		if filter.Kind == "" || l.Kind == filter.Kind {
			out = append(out, l)
		}
	}
	return out, nil
}

func (q *memoryQuerier) set(listings ...models.Listing) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listings = listings
}

func (q *memoryQuerier) fail(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.err = err
}

// waitCalls blocks until the querier has answered at least n queries.
func (q *memoryQuerier) waitCalls(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		q.mu.Lock()
		calls := q.calls
		q.mu.Unlock()
		if calls >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("querier did not reach %d calls", n)
}

func quiet(t *testing.T, ch <-chan []models.Listing) {
	t.Helper()
	select {
	case records := <-ch:
		t.Fatalf("unexpected snapshot %v", ids(records))
	case <-time.After(50 * time.Millisecond):
	}
}

func listing(id string, kind models.ListingKind, active bool) models.Listing {
	return models.Listing{ID: id, Title: id, Kind: kind, IsActive: active}
}

func ids(listings []models.Listing) []string {
	out := make([]string, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.ID)
	}
	return out
}

func receive(t *testing.T, ch <-chan []models.Listing) []models.Listing {
	t.Helper()
	select {
	case records := <-ch:
		return records
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	q := &memoryQuerier{}
	q.set(
		listing("a", models.KindSale, true),
		listing("b", models.KindRent, true),
		listing("c", models.KindSale, false),
		listing("d", models.KindSale, true),
	)
	f := New(q)
	defer f.Close()

	snapshots := make(chan []models.Listing, 4)
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func(records []models.Listing) {
		snapshots <- records
	})
	defer unsubscribe()

	assert.Equal(t, []string{"a", "d"}, ids(receive(t, snapshots)))
	assert.Equal(t, 1, f.Count())
}

func TestNotifyDeliversFullReplacement(t *testing.T) {
	q := &memoryQuerier{}
	q.set(listing("a", models.KindRent, true))
	f := New(q)
	defer f.Close()

	snapshots := make(chan []models.Listing, 4)
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindRent), func(records []models.Listing) {
		snapshots <- records
	})
	defer unsubscribe()

	assert.Equal(t, []string{"a"}, ids(receive(t, snapshots)))

	q.set(listing("b", models.KindRent, true), listing("c", models.KindRent, true))
	f.Notify()
	assert.Equal(t, []string{"b", "c"}, ids(receive(t, snapshots)))

	q.set()
	f.Notify()
	assert.Equal(t, 0, len(receive(t, snapshots)))
}

func TestUnsubscribeIsIdempotentAndFinal(t *testing.T) {
	q := &memoryQuerier{}
	q.set(listing("a", models.KindSale, true))
	f := New(q)
	defer f.Close()

	var mu sync.Mutex
	delivered := 0
	first := make(chan struct{})
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func(records []models.Listing) {
		mu.Lock()
		delivered++
		if delivered == 1 {
			close(first)
		}
		mu.Unlock()
	})

	<-first
	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, f.Count())

	for i := 0; i < 5; i++ {
		f.Notify()
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 1, delivered)
	mu.Unlock()
}

func TestQueryErrorSkipsSnapshot(t *testing.T) {
	q := &memoryQuerier{}
	q.fail(errors.New("disk on fire"))
	f := New(q)
	defer f.Close()

	snapshots := make(chan []models.Listing, 4)
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func(records []models.Listing) {
		snapshots <- records
	})
	defer unsubscribe()

	select {
	case <-snapshots:
		t.Fatal("no snapshot expected while the store is failing")
	case <-time.After(50 * time.Millisecond):
	}

	q.fail(nil)
	q.set(listing("a", models.KindSale, true))
	f.Notify()
	assert.Equal(t, []string{"a"}, ids(receive(t, snapshots)))
}

func TestCloseReleasesEverything(t *testing.T) {
	q := &memoryQuerier{}
	f := New(q)

	for i := 0; i < 3; i++ {
		f.Subscribe(models.ActiveOfKind(models.KindSale), func([]models.Listing) {})
	}
	assert.Equal(t, 3, f.Count())

	f.Close()
	assert.Equal(t, 0, f.Count())

	// subscriptions after close are inert
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func([]models.Listing) {
		t.Error("closed feed must not deliver")
	})
	unsubscribe()
	assert.Equal(t, 0, f.Count())
}

func TestResyncerLifecycle(t *testing.T) {
	q := &memoryQuerier{}
	f := New(q)
	defer f.Close()

	r := NewResyncer(f, 0)
	assert.Equal(t, DefaultResyncInterval, r.Interval())
	assert.Equal(t, true, r.NextRun() == nil)

	assert.Equal(t, nil, r.Start())
	assert.Equal(t, nil, r.Start())
	next := r.NextRun()
	if next == nil {
		t.Fatal("next run should be scheduled after start")
	}
	assert.Equal(t, true, next.After(time.Now()))

	r.Stop()
	r.Stop()
	assert.Equal(t, true, r.NextRun() == nil)
}

func TestResyncerRefreshesLiveQueries(t *testing.T) {
	q := &memoryQuerier{}
	q.set(listing("a", models.KindSale, true))
	f := New(q)
	defer f.Close()

	snapshots := make(chan []models.Listing, 8)
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func(records []models.Listing) {
		snapshots <- records
	})
	defer unsubscribe()
	receive(t, snapshots)

	q.set(listing("a", models.KindSale, true), listing("b", models.KindSale, true))
	r := NewResyncer(f, time.Second)
	r.resync()

	assert.Equal(t, []string{"a", "b"}, ids(receive(t, snapshots)))
}

func TestNotifyWithoutChangeDeliversNothing(t *testing.T) {
	q := &memoryQuerier{}
	q.set(listing("a", models.KindSale, true), listing("r", models.KindRent, true))
	f := New(q)
	defer f.Close()

	snapshots := make(chan []models.Listing, 4)
	unsubscribe := f.Subscribe(models.ActiveOfKind(models.KindSale), func(records []models.Listing) {
		snapshots <- records
	})
	defer unsubscribe()
	assert.Equal(t, []string{"a"}, ids(receive(t, snapshots)))

	f.Notify()
	q.waitCalls(t, 2)
	quiet(t, snapshots)

	// a write to a rent listing is outside this subscription
	liked := listing("r", models.KindRent, true)
	liked.LikeCount = 3
	q.set(listing("a", models.KindSale, true), liked)
	f.Notify()
	q.waitCalls(t, 3)
	quiet(t, snapshots)

	// a change inside the set still goes out
	updated := listing("a", models.KindSale, true)
	updated.LikeCount = 1
	q.set(updated, liked)
	f.Notify()
	got := receive(t, snapshots)
	assert.Equal(t, 1, got[0].LikeCount)
}

func TestUnchangedNotifyKeepsViewPosition(t *testing.T) {
	q := &memoryQuerier{}
	q.set(
		listing("a", models.KindSale, true),
		listing("b", models.KindSale, true),
		listing("r", models.KindRent, true),
	)
	f := New(q)
	defer f.Close()

	loaded := make(chan viewstate.View, 8)
	c := viewstate.New(f, func(v viewstate.View) {
		if v.State == viewstate.StateLoaded {
			loaded <- v
		}
	})
	defer c.Close()

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		t.Fatal("view never loaded")
	}
	c.NextProperty()
	<-loaded
	assert.Equal(t, 1, c.View().ActiveListingIndex)

	calls := func() int { q.mu.Lock(); defer q.mu.Unlock(); return q.calls }()
	f.Notify()
	q.waitCalls(t, calls+1)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 1, c.View().ActiveListingIndex)
	active, _ := c.ActiveListing()
	assert.Equal(t, "b", active.ID)
}
