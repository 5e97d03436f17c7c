package viewstate

import (
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/imuhira/listings/internal/storage/models"
)

type fakeSubscription struct {
	filter   models.ListingFilter
	onChange func([]models.Listing)
	released int
}

// fakeSource records subscriptions so tests can push snapshots by hand,
// including to subscriptions that were already released.
type fakeSource struct {
	mu   sync.Mutex
	subs []*fakeSubscription
}

func (s *fakeSource) Subscribe(filter models.ListingFilter, onChange func([]models.Listing)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := &fakeSubscription{filter: filter, onChange: onChange}
	s.subs = append(s.subs, sub)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		sub.released++
	}
}

func (s *fakeSource) sub(i int) *fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[i]
}

func (s *fakeSource) latest() *fakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[len(s.subs)-1]
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func record(id string, images ...string) models.Listing {
	return models.Listing{ID: id, Title: id, Kind: models.KindSale, IsActive: true, Images: images}
}

func threeRecords() []models.Listing {
	return []models.Listing{
		record("r1", "a.jpg", "b.jpg", "c.jpg"),
		record("r2", "d.jpg", "e.jpg"),
		record("r3", "f.jpg", "g.jpg", "h.jpg", "i.jpg"),
	}
}

func mount(t *testing.T) (*Controller, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	c := New(src, nil)
	t.Cleanup(c.Close)
	return c, src
}

func TestMountStartsEmptyOnSale(t *testing.T) {
	c, src := mount(t)

	v := c.View()
	assert.Equal(t, StateEmpty, v.State)
	assert.Equal(t, models.KindSale, v.Filter)
	assert.Equal(t, 0, v.ActiveListingIndex)
	assert.Equal(t, 0, v.ActiveImageIndex)
	assert.Equal(t, 0, v.ListingCount)

	assert.Equal(t, 1, src.count())
	assert.Equal(t, models.ActiveOfKind(models.KindSale), src.latest().filter)

	_, ok := c.ActiveListing()
	assert.Equal(t, false, ok)
	_, ok = c.ActiveImage()
	assert.Equal(t, false, ok)
}

func TestSnapshotActivatesFirstRecord(t *testing.T) {
	c, src := mount(t)

	src.latest().onChange(threeRecords())

	v := c.View()
	assert.Equal(t, StateLoaded, v.State)
	assert.Equal(t, 0, v.ActiveListingIndex)
	assert.Equal(t, 0, v.ActiveImageIndex)
	assert.Equal(t, 3, v.ListingCount)
	assert.Equal(t, "Buy Now", v.ActionLabel)

	active, ok := c.ActiveListing()
	assert.Equal(t, true, ok)
	assert.Equal(t, "r1", active.ID)

	img, ok := c.ActiveImage()
	assert.Equal(t, true, ok)
	assert.Equal(t, "a.jpg", img)
}

func TestEmptySnapshotYieldsEmpty(t *testing.T) {
	c, src := mount(t)

	src.latest().onChange(threeRecords())
	c.NextProperty()
	c.NextImage()

	src.latest().onChange(nil)

	v := c.View()
	assert.Equal(t, StateEmpty, v.State)
	assert.Equal(t, 0, v.ListingCount)
	assert.Equal(t, 0, v.ActiveListingIndex)
	assert.Equal(t, 0, v.ActiveImageIndex)
	assert.Equal(t, true, v.ActiveListing == nil)

	_, ok := c.ActiveListing()
	assert.Equal(t, false, ok)
}

func TestSnapshotResetsIndices(t *testing.T) {
	c, src := mount(t)

	src.latest().onChange(threeRecords())
	c.NextProperty()
	c.NextImage()
	assert.Equal(t, 1, c.View().ActiveListingIndex)
	assert.Equal(t, 1, c.View().ActiveImageIndex)

	src.latest().onChange(threeRecords())
	assert.Equal(t, 0, c.View().ActiveListingIndex)
	assert.Equal(t, 0, c.View().ActiveImageIndex)
}

func TestNextImageCyclesBack(t *testing.T) {
	for n := 1; n <= 5; n++ {
		c, src := mount(t)

		images := make([]string, n)
		for i := range images {
			images[i] = string(rune('a'+i)) + ".jpg"
		}
		src.latest().onChange([]models.Listing{record("r1", images...)})

		for start := 0; start < n; start++ {
			for i := 0; i < n; i++ {
				c.NextImage()
			}
			assert.Equal(t, start, c.View().ActiveImageIndex)
			c.NextImage()
		}
	}
}

func TestPreviousImageUndoesNextImage(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	for i := 0; i < 3; i++ {
		before := c.View().ActiveImageIndex
		c.NextImage()
		c.PreviousImage()
		assert.Equal(t, before, c.View().ActiveImageIndex)
		c.NextImage()
	}
}

func TestPreviousImageWrapsToLast(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	c.PreviousImage()
	assert.Equal(t, 2, c.View().ActiveImageIndex)
	img, _ := c.ActiveImage()
	assert.Equal(t, "c.jpg", img)
}

func TestNextPropertyWrapsAndResetsImage(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	c.NextProperty()
	c.NextProperty()
	assert.Equal(t, 2, c.View().ActiveListingIndex)

	c.NextImage()
	c.NextImage()
	assert.Equal(t, 2, c.View().ActiveImageIndex)

	c.NextProperty()
	v := c.View()
	assert.Equal(t, 0, v.ActiveListingIndex)
	assert.Equal(t, 0, v.ActiveImageIndex)
	assert.Equal(t, "r1", v.ActiveListing.ID)
}

func TestPreviousPropertyWraps(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	c.NextImage()
	c.PreviousProperty()
	v := c.View()
	assert.Equal(t, 2, v.ActiveListingIndex)
	assert.Equal(t, 0, v.ActiveImageIndex)
	assert.Equal(t, "r3", v.ActiveListing.ID)
}

func TestNavigationOnEmptyIsNoop(t *testing.T) {
	c, _ := mount(t)
	before := c.View()

	c.NextImage()
	c.PreviousImage()
	c.NextProperty()
	c.PreviousProperty()

	assert.Equal(t, before, c.View())
}

func TestImageNavigationWithoutImagesIsNoop(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange([]models.Listing{record("bare"), record("r2", "x.jpg")})

	c.NextImage()
	c.PreviousImage()
	assert.Equal(t, 0, c.View().ActiveImageIndex)
	_, ok := c.ActiveImage()
	assert.Equal(t, false, ok)

	c.NextProperty()
	img, ok := c.ActiveImage()
	assert.Equal(t, true, ok)
	assert.Equal(t, "x.jpg", img)
}

func TestSetFilterResubscribes(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	assert.Equal(t, nil, c.SetFilter(models.KindRent))
	assert.Equal(t, 2, src.count())
	assert.Equal(t, 1, src.sub(0).released)
	assert.Equal(t, models.ActiveOfKind(models.KindRent), src.sub(1).filter)

	// listings stay until the new subscription delivers
	v := c.View()
	assert.Equal(t, models.KindRent, v.Filter)
	assert.Equal(t, 3, v.ListingCount)
	assert.Equal(t, StateLoaded, v.State)

	rent := record("rent1", "r.jpg")
	rent.Kind = models.KindRent
	src.latest().onChange([]models.Listing{rent})
	active, ok := c.ActiveListing()
	assert.Equal(t, true, ok)
	assert.Equal(t, "rent1", active.ID)
}

func TestSetFilterSameKindIsNoop(t *testing.T) {
	c, src := mount(t)

	assert.Equal(t, nil, c.SetFilter(models.KindSale))
	assert.Equal(t, 1, src.count())
	assert.Equal(t, 0, src.sub(0).released)
}

func TestSetFilterRejectsUnknownKind(t *testing.T) {
	c, src := mount(t)

	assert.Equal(t, ErrInvalidKind, c.SetFilter(models.ListingKind("lease")))
	assert.Equal(t, models.KindSale, c.Filter())
	assert.Equal(t, 1, src.count())
}

func TestStaleSnapshotAfterFilterChangeIsDiscarded(t *testing.T) {
	c, src := mount(t)
	sale := src.latest()
	sale.onChange(threeRecords())

	assert.Equal(t, nil, c.SetFilter(models.KindRent))

	// late delivery from the released sale subscription
	sale.onChange([]models.Listing{record("late")})

	v := c.View()
	assert.Equal(t, 3, v.ListingCount)
	assert.Equal(t, "r1", v.ActiveListing.ID)

	sale.onChange(nil)
	assert.Equal(t, 3, c.View().ListingCount)
}

func TestCloseReleasesSubscriptionOnce(t *testing.T) {
	src := &fakeSource{}
	c := New(src, nil)
	sub := src.latest()
	sub.onChange(threeRecords())

	c.Close()
	c.Close()
	assert.Equal(t, 1, sub.released)

	before := c.View()
	sub.onChange(nil)
	c.NextProperty()
	c.NextImage()
	assert.Equal(t, nil, c.SetFilter(models.KindRent))
	assert.Equal(t, before, c.View())
	assert.Equal(t, 1, src.count())
}

func TestRenderFollowsMutationOrder(t *testing.T) {
	src := &fakeSource{}
	var views []View
	c := New(src, func(v View) { views = append(views, v) })
	defer c.Close()

	assert.Equal(t, 1, len(views))
	assert.Equal(t, StateEmpty, views[0].State)

	src.latest().onChange(threeRecords())
	c.NextImage()
	c.NextProperty()
	c.NextImage() // r2 has two images
	c.NextImage()
	assert.Equal(t, nil, c.SetFilter(models.KindRent))

	// no-ops do not render
	c.SetFilter(models.KindRent)

	assert.Equal(t, 7, len(views))
	assert.Equal(t, StateLoaded, views[1].State)
	assert.Equal(t, 1, views[2].ActiveImageIndex)
	assert.Equal(t, 1, views[3].ActiveListingIndex)
	assert.Equal(t, 0, views[3].ActiveImageIndex)
	assert.Equal(t, 1, views[4].ActiveImageIndex)
	assert.Equal(t, 0, views[5].ActiveImageIndex)
	assert.Equal(t, models.KindRent, views[6].Filter)
	assert.Equal(t, true, views[6].Filters[0].Selected)
}

func TestViewIsDetachedFromState(t *testing.T) {
	c, src := mount(t)
	src.latest().onChange(threeRecords())

	v := c.View()
	v.ActiveListing.Images[0] = "mutated.jpg"

	img, _ := c.ActiveImage()
	assert.Equal(t, "a.jpg", img)
}

func TestActiveListingIsDetachedFromState(t *testing.T) {
	c, src := mount(t)
	records := threeRecords()
	records[0].Features = []string{"pool"}
	src.latest().onChange(records)

	l, ok := c.ActiveListing()
	assert.Equal(t, true, ok)
	l.Images[0] = "mutated.jpg"
	l.Features[0] = "mutated"

	img, _ := c.ActiveImage()
	assert.Equal(t, "a.jpg", img)
	again, _ := c.ActiveListing()
	assert.Equal(t, []string{"pool"}, again.Features)
}
