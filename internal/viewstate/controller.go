// Package viewstate implements the per-view listing browser state: the
// filtered listing snapshot, the active property and the active image.
package viewstate

import (
	"errors"
	"sync"

	"github.com/golang/glog"

	"github.com/imuhira/listings/internal/storage/models"
)

// ErrInvalidKind is returned by SetFilter for a kind other than rent or sale.
var ErrInvalidKind = errors.New("invalid listing kind")

// Source is a live listing query. onChange receives the full matching record
// set on every change until unsubscribe is called; unsubscribe is idempotent
// and no onChange call happens after it returns. Subscribe must not invoke
// onChange before it has returned.
type Source interface {
	Subscribe(filter models.ListingFilter, onChange func([]models.Listing)) (unsubscribe func())
}

// RenderFunc receives the derived view after every state change. It is
// called with the controller lock held, in mutation order, and must not call
// back into the controller.
type RenderFunc func(View)

// Controller owns the state of one rendered view.
type Controller struct {
	source Source
	render RenderFunc

	mu          sync.Mutex
	filter      models.ListingKind
	listings    []models.Listing
	listingIdx  int
	imageIdx    int
	generation  uint64
	unsubscribe func()
	closed      bool
}

// New mounts a view: it starts with the default filter and no listings,
// subscribes to source and renders the initial (empty) view. render may be nil.
func New(source Source, render RenderFunc) *Controller {
	c := &Controller{
		source: source,
		render: render,
		filter: models.DefaultKind,
	}

	c.mu.Lock()
	c.subscribeLocked()
	c.emitLocked()
	c.mu.Unlock()

	return c
}

// SetFilter switches between rent and sale listings. The current subscription
// is released and a new one established; listings and indices change only
// when the new subscription delivers its first snapshot.
func (c *Controller) SetFilter(kind models.ListingKind) error {
	if !kind.IsValid() {
		return ErrInvalidKind
	}

	c.mu.Lock()
	if c.closed || kind == c.filter {
		c.mu.Unlock()
		return nil
	}

	c.filter = kind
	stale := c.unsubscribe
	c.subscribeLocked()
	c.emitLocked()
	c.mu.Unlock()

	// released outside the lock: release waits for an in-flight delivery,
	// and that delivery needs the lock to be discarded
	if stale != nil {
		stale()
	}
	return nil
}

// Filter returns the current listing kind filter.
func (c *Controller) Filter() models.ListingKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// NextImage advances the slideshow of the active listing, wrapping around.
func (c *Controller) NextImage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.imageCountLocked()
	if n == 0 {
		return
	}
	c.imageIdx = (c.imageIdx + 1) % n
	c.emitLocked()
}

// PreviousImage steps the slideshow of the active listing back, wrapping around.
func (c *Controller) PreviousImage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.imageCountLocked()
	if n == 0 {
		return
	}
	if c.imageIdx == 0 {
		c.imageIdx = n - 1
	} else {
		c.imageIdx--
	}
	c.emitLocked()
}

// NextProperty makes the following listing active, wrapping around, and
// restarts its slideshow.
func (c *Controller) NextProperty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.listings)
	if c.closed || n == 0 {
		return
	}
	c.listingIdx = (c.listingIdx + 1) % n
	c.imageIdx = 0
	c.emitLocked()
}

// PreviousProperty makes the preceding listing active, wrapping around, and
// restarts its slideshow.
func (c *Controller) PreviousProperty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.listings)
	if c.closed || n == 0 {
		return
	}
	if c.listingIdx == 0 {
		c.listingIdx = n - 1
	} else {
		c.listingIdx--
	}
	c.imageIdx = 0
	c.emitLocked()
}

// ActiveListing returns a copy of the listing shown in detail.
func (c *Controller) ActiveListing() (models.Listing, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := c.activeLocked()
	if l == nil {
		return models.Listing{}, false
	}
	return l.Clone(), true
}

// ActiveImage returns the image reference shown in the slideshow.
func (c *Controller) ActiveImage() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeImageLocked()
}

// View returns a snapshot of the derived view state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Close unmounts the view and releases its subscription. It is idempotent;
// every operation after Close is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	release := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if release != nil {
		release()
	}
}

// subscribeLocked opens a subscription for the current filter and tags its
// callback with a fresh generation so snapshots from older subscriptions
// are discarded.
func (c *Controller) subscribeLocked() {
	c.generation++
	gen := c.generation
	kind := c.filter

	c.unsubscribe = c.source.Subscribe(models.ActiveOfKind(kind), func(records []models.Listing) {
		c.onSnapshot(gen, records)
	})
	glog.V(1).Infof("[view] subscribed to %s listings (generation %d)", kind, gen)
}

// onSnapshot replaces the listing set wholesale and resets both indices.
func (c *Controller) onSnapshot(gen uint64, records []models.Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		glog.V(2).Infof("[view] dropped stale snapshot (generation %d, current %d)", gen, c.generation)
		return
	}

	listings := make([]models.Listing, len(records))
	copy(listings, records)
	c.listings = listings
	c.listingIdx = 0
	c.imageIdx = 0
	c.emitLocked()
}

func (c *Controller) activeLocked() *models.Listing {
	if c.listingIdx < 0 || c.listingIdx >= len(c.listings) {
		return nil
	}
	return &c.listings[c.listingIdx]
}

func (c *Controller) imageCountLocked() int {
	if c.closed {
		return 0
	}
	l := c.activeLocked()
	if l == nil {
		return 0
	}
	return len(l.Images)
}

func (c *Controller) activeImageLocked() (string, bool) {
	l := c.activeLocked()
	if l == nil || c.imageIdx < 0 || c.imageIdx >= len(l.Images) {
		return "", false
	}
	return l.Images[c.imageIdx], true
}

func (c *Controller) emitLocked() {
	if c.render == nil {
		return
	}
	c.render(c.viewLocked())
}
