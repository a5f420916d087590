// Package scheduler recomputes dashboard snapshots for active sessions on
// a fixed period and writes them to the short-TTL cache.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/models"
)

const (
	// DefaultTick is the refresh period; DefaultSnapshotTTL is strictly
	// greater so readers never observe a gap between refreshes.
	DefaultTick        = 2 * time.Second
	DefaultSnapshotTTL = 5 * time.Second

	// AggregateWindow scopes every snapshot computation.
	AggregateWindow = 24 * time.Hour

	sweepInterval = time.Minute

	recentAlertLimit = 50
)

// StatsKey and AlertsKey name the cached snapshots for a session.
func StatsKey(sessionID string) string  { return "snapshot:stats:" + sessionID }
func AlertsKey(sessionID string) string { return "snapshot:alerts:" + sessionID }

// SnapshotStore is what the refresher needs from the persistent store and
// the cache.
type SnapshotStore interface {
	TrafficStats(ctx context.Context, since time.Time) (*models.StatsSnapshot, error)
	RecentAlerts(ctx context.Context, since time.Time, level string, limit int64) ([]models.Alert, error)
	SetSnapshot(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Sweeper prunes expired ban index entries; wired to the enforcer.
type Sweeper interface {
	SweepExpired(ctx context.Context) error
}

// Refresher tracks active dashboard sessions and refreshes their cached
// snapshots every tick.
type Refresher struct {
	store   SnapshotStore
	sweeper Sweeper // optional

	tick time.Duration
	ttl  time.Duration

	sessions *sessionSet
	sched    *gocron.Scheduler
}

func NewRefresher(store SnapshotStore, sweeper Sweeper, tick, ttl time.Duration) *Refresher {
	if tick <= 0 {
		tick = DefaultTick
	}
	if ttl <= tick {
		ttl = DefaultSnapshotTTL
	}
	return &Refresher{
		store:    store,
		sweeper:  sweeper,
		tick:     tick,
		ttl:      ttl,
		sessions: newSessionSet(),
	}
}

// RegisterActive marks a session as active; its snapshots are refreshed
// until it unregisters.
func (r *Refresher) RegisterActive(sessionID string) {
	r.sessions.add(sessionID)
}

func (r *Refresher) UnregisterActive(sessionID string) {
	r.sessions.remove(sessionID)
}

// ActiveSessions returns the currently registered session IDs.
func (r *Refresher) ActiveSessions() []string {
	return r.sessions.list()
}

// Start schedules the refresh tick and the expired-ban sweep.
func (r *Refresher) Start(ctx context.Context) error {
	r.sched = gocron.NewScheduler(time.UTC)

	job, err := r.sched.Every(r.tick).Do(r.Tick, ctx)
	if err != nil {
		return err
	}
	job.SingletonMode()

	if r.sweeper != nil {
		sweepJob, err := r.sched.Every(sweepInterval).Do(func() {
			if err := r.sweeper.SweepExpired(ctx); err != nil {
				log.Warnf("sweeping expired bans: %v", err)
			}
		})
		if err != nil {
			return err
		}
		sweepJob.SingletonMode()
	}

	r.sched.StartAsync()
	return nil
}

func (r *Refresher) Stop() {
	if r.sched != nil {
		r.sched.Stop()
	}
}

// Tick recomputes both snapshots for every active session. The stats and
// alerts computations are independent: a failure in one is logged and must
// not block the other, the next session, or future ticks.
func (r *Refresher) Tick(ctx context.Context) {
	since := time.Now().Add(-AggregateWindow)

	for _, sessionID := range r.sessions.list() {
		if stats, err := r.store.TrafficStats(ctx, since); err != nil {
			log.WithField("session", sessionID).Warnf("refreshing stats snapshot: %v", err)
		} else if err := r.store.SetSnapshot(ctx, StatsKey(sessionID), stats, r.ttl); err != nil {
			log.WithField("session", sessionID).Warnf("caching stats snapshot: %v", err)
		}

		if alerts, err := r.store.RecentAlerts(ctx, since, "", recentAlertLimit); err != nil {
			log.WithField("session", sessionID).Warnf("refreshing alerts snapshot: %v", err)
		} else if err := r.store.SetSnapshot(ctx, AlertsKey(sessionID), alerts, r.ttl); err != nil {
			log.WithField("session", sessionID).Warnf("caching alerts snapshot: %v", err)
		}
	}
}
