// Package notify implements the alert throttle and delivery queue. It
// decouples alert production from delivery: Enqueue never blocks and never
// fails, and a slow push channel can only ever delay notifications, not the
// classification path feeding them.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/models"
)

// Publisher is the push channel notifications drain into. No acknowledgment
// is awaited.
type Publisher interface {
	Publish(topic, event string, payload any) error
}

// Topic carries all operator-facing notifications.
const Topic = "alerts"

// Throttle windows per notification kind / attack type.
const (
	throttleIntrusionDoS = 10 * time.Second
	throttleIntrusion    = 2 * time.Second
	throttleBlocked      = 5 * time.Second
	throttleComplete     = 2 * time.Second
)

var (
	deliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_notifications_delivered_total",
		Help: "Notifications delivered to the push channel.",
	})
	throttledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_notifications_throttled_total",
		Help: "Notifications suppressed by the throttle.",
	})
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsentry_notifications_dropped_total",
		Help: "Notifications dropped because the queue was full.",
	})
)

// RegisterMetrics registers the queue counters on reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(deliveredTotal, throttledTotal, droppedTotal)
}

// Config tunes the delivery queue.
type Config struct {
	Capacity      int           // bounded FIFO size, default 1000
	DrainInterval time.Duration // default 100ms
	DrainBatch    int           // items per drain cycle, default 10
	RestartDelay  time.Duration // delay before restarting a crashed worker
	MaxRestarts   int           // worker restart cap, 0 = unlimited
}

func (c *Config) defaults() {
	if c.Capacity <= 0 {
		c.Capacity = 1000
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = 100 * time.Millisecond
	}
	if c.DrainBatch <= 0 {
		c.DrainBatch = 10
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = time.Second
	}
}

// Queue is the bounded notification delivery queue with per-key throttling.
type Queue struct {
	cfg Config
	pub Publisher

	mu       sync.Mutex
	items    []models.NotificationItem
	throttle map[string]time.Time
	running  bool

	now func() time.Time
}

func NewQueue(pub Publisher, cfg Config) *Queue {
	cfg.defaults()
	return &Queue{
		cfg:      cfg,
		pub:      pub,
		items:    make([]models.NotificationItem, 0, cfg.Capacity),
		throttle: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Enqueue adds item to the delivery queue. It never blocks and never fails.
// When the queue is full the oldest entry is dropped, never the newest.
// If the drain worker is not running, the item is sent directly, best
// effort, so a dead worker cannot silently lose notifications.
func (q *Queue) Enqueue(item models.NotificationItem) {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = q.now()
	}

	q.mu.Lock()
	if !q.running {
		allowed := q.allow(item)
		q.mu.Unlock()
		if allowed {
			q.deliver(item)
		}
		return
	}

	if len(q.items) >= q.cfg.Capacity {
		q.items = q.items[1:]
		droppedTotal.Inc()
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Start launches the supervised drain worker. On an unexpected crash the
// worker restarts after a fixed delay, up to MaxRestarts attempts.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	q.running = true
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
		}()

		operation := func() (struct{}, error) {
			return struct{}{}, q.run(ctx)
		}
		notify := func(err error, next time.Duration) {
			log.WithField("next", next.String()).Errorf("delivery worker crashed, restarting: %v", err)
		}

		opts := []backoff.RetryOption{
			backoff.WithBackOff(backoff.NewConstantBackOff(q.cfg.RestartDelay)),
			backoff.WithNotify(notify),
		}
		if q.cfg.MaxRestarts > 0 {
			opts = append(opts, backoff.WithMaxTries(uint(q.cfg.MaxRestarts)+1))
		}

		if _, err := backoff.Retry(ctx, operation, opts...); err != nil && ctx.Err() == nil {
			log.Errorf("delivery worker gave up: %v", err)
		}
	}()
}

// run drains the queue until ctx is done, converting panics to errors so
// the supervisor can restart the loop.
func (q *Queue) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery worker panic: %v", r)
		}
	}()

	ticker := time.NewTicker(q.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			q.DrainOnce()
		}
	}
}

// DrainOnce takes up to DrainBatch items off the queue, applies throttling,
// and delivers the survivors. Throttled items are discarded, not re-queued.
func (q *Queue) DrainOnce() {
	q.mu.Lock()
	n := q.cfg.DrainBatch
	if n > len(q.items) {
		n = len(q.items)
	}
	batch := make([]models.NotificationItem, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]

	allowed := batch[:0]
	for _, item := range batch {
		if q.allow(item) {
			allowed = append(allowed, item)
		} else {
			throttledTotal.Inc()
		}
	}
	q.mu.Unlock()

	for _, item := range allowed {
		q.deliver(item)
	}
}

// allow evaluates throttling for item and stamps the throttle entry when
// the item will be sent. Caller holds q.mu.
func (q *Queue) allow(item models.NotificationItem) bool {
	now := q.now()

	var key string
	var window time.Duration

	switch item.Kind {
	case models.KindIntrusion:
		p := item.Intrusion
		if p == nil {
			return true
		}
		// Grace-period and decision-required intrusions must repeat until
		// the operator acts, so they bypass the throttle and leave its
		// timestamp untouched.
		if p.GracePeriod || p.DecisionRequired {
			return true
		}
		key = item.SourceIP + ":" + p.AttackType
		window = throttleIntrusion
		if p.AttackType == models.AttackDoS || p.AttackType == models.AttackDDoS {
			window = throttleIntrusionDoS
		}
	case models.KindIPBlocked:
		key = "blocked:" + item.SourceIP
		window = throttleBlocked
	case models.KindBlockingComplete:
		key = "complete:" + item.SourceIP
		window = throttleComplete
	default:
		return true
	}

	if last, ok := q.throttle[key]; ok && now.Sub(last) < window {
		return false
	}
	q.throttle[key] = now
	return true
}

// deliver pushes one item to the publisher. Delivery failures are logged
// and swallowed; notification loss is non-fatal.
func (q *Queue) deliver(item models.NotificationItem) {
	if err := q.pub.Publish(Topic, item.Kind, item); err != nil {
		log.WithFields(log.Fields{
			"kind":      item.Kind,
			"source_ip": item.SourceIP,
		}).Warnf("notification delivery failed: %v", err)
		return
	}
	deliveredTotal.Inc()
}
