package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron/v3"
)

// DefaultResyncInterval is used when no interval is configured.
const DefaultResyncInterval = 30 * time.Second

// Resyncer periodically refreshes every live query so that writes made
// outside the server process (listingsctl, manual SQL) reach open views.
type Resyncer struct {
	cron     *cron.Cron
	feed     *Feed
	interval time.Duration

	mu      sync.RWMutex
	entryID cron.EntryID
	started bool
}

// NewResyncer creates a resync job for feed.
func NewResyncer(feed *Feed, interval time.Duration) *Resyncer {
	if interval < time.Second {
		interval = DefaultResyncInterval
	}

	return &Resyncer{
		cron:     cron.New(),
		feed:     feed,
		interval: interval,
	}
}

// Start schedules the resync job and starts the cron runner.
func (r *Resyncer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	entryID, err := r.cron.AddFunc("@every "+r.interval.String(), r.resync)
	if err != nil {
		return fmt.Errorf("scheduling resync every %s: %w", r.interval, err)
	}
	r.entryID = entryID
	r.started = true

	r.cron.Start()
	glog.Infof("Listing resync scheduled every %s", r.interval)
	return nil
}

// Stop gracefully shuts down the cron runner, waiting for a running resync.
func (r *Resyncer) Stop() {
	r.mu.Lock()
	started := r.started
	r.started = false
	r.mu.Unlock()

	if !started {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()
	glog.Infof("Listing resync stopped")
}

// Interval returns the resync period.
func (r *Resyncer) Interval() time.Duration {
	return r.interval
}

// NextRun returns the next scheduled resync, or nil when not running.
func (r *Resyncer) NextRun() *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return nil
	}
	entry := r.cron.Entry(r.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	return &entry.Next
}

func (r *Resyncer) resync() {
	live := r.feed.Count()
	if live == 0 {
		return
	}
	glog.V(1).Infof("[resync] refreshing %d live quer(ies)", live)
	r.feed.Notify()
}
