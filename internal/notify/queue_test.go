package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netsentry/internal/models"
)

type fakePublisher struct {
	mu    sync.Mutex
	sent  []models.NotificationItem
	fail  bool
	calls int
}

func (f *fakePublisher) Publish(topic, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("push channel down")
	}
	f.sent = append(f.sent, payload.(models.NotificationItem))
	return nil
}

func (f *fakePublisher) delivered() []models.NotificationItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.NotificationItem, len(f.sent))
	copy(out, f.sent)
	return out
}

// newIdleQueue returns a queue whose drain worker is marked running but
// effectively never ticks, so tests drive DrainOnce deterministically.
func newIdleQueue(t *testing.T, pub Publisher, cfg Config) *Queue {
	t.Helper()
	cfg.DrainInterval = time.Hour
	q := NewQueue(pub, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)
	return q
}

func intrusion(ip, attackType string, grace bool) models.NotificationItem {
	return models.NotificationItem{
		Kind:     models.KindIntrusion,
		SourceIP: ip,
		Intrusion: &models.IntrusionPayload{
			AttackType:  attackType,
			Confidence:  0.8,
			Severity:    models.SeverityCritical,
			GracePeriod: grace,
		},
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{Capacity: 1000})

	for i := 0; i < 1001; i++ {
		q.Enqueue(models.NotificationItem{
			Kind:     models.KindIPBlocked,
			SourceIP: fmt.Sprintf("10.0.%d.%d", i/256, i%256),
			Blocked:  &models.BlockedPayload{Reason: "test"},
		})
	}

	assert.Equal(t, 1000, q.Len())
}

func TestQueueOverflowKeepsNewest(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{Capacity: 3, DrainBatch: 10})

	for i := 0; i < 5; i++ {
		q.Enqueue(models.NotificationItem{
			Kind:     models.KindIPBlocked,
			SourceIP: fmt.Sprintf("10.0.0.%d", i),
			Blocked:  &models.BlockedPayload{},
		})
	}

	require.Equal(t, 3, q.Len())
	q.DrainOnce()

	got := pub.delivered()
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.2", got[0].SourceIP)
	assert.Equal(t, "10.0.0.4", got[2].SourceIP)
}

func TestThrottleIdempotence(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	// Two non-grace port_scan intrusions for the same key inside the 2s
	// window: exactly one delivery.
	q.Enqueue(intrusion("203.0.113.5", models.AttackPortScan, false))
	q.Enqueue(intrusion("203.0.113.5", models.AttackPortScan, false))
	q.DrainOnce()

	assert.Len(t, pub.delivered(), 1)
}

func TestThrottleWindowPerAttackType(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	base := time.Now()
	clock := base
	q.now = func() time.Time { return clock }

	// dos intrusions use the 10s window: a repeat at +3s is suppressed,
	// a repeat at +11s goes through.
	q.Enqueue(intrusion("203.0.113.6", models.AttackDoS, false))
	q.DrainOnce()

	clock = base.Add(3 * time.Second)
	q.Enqueue(intrusion("203.0.113.6", models.AttackDoS, false))
	q.DrainOnce()
	assert.Len(t, pub.delivered(), 1)

	clock = base.Add(11 * time.Second)
	q.Enqueue(intrusion("203.0.113.6", models.AttackDoS, false))
	q.DrainOnce()
	assert.Len(t, pub.delivered(), 2)
}

func TestGracePeriodNeverSuppressed(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	for i := 0; i < 5; i++ {
		q.Enqueue(intrusion("203.0.113.7", models.AttackDDoS, true))
	}
	q.DrainOnce()

	assert.Len(t, pub.delivered(), 5)
}

func TestGracePeriodDoesNotStampThrottle(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	// A grace-period send must not start the suppression window for the
	// later non-grace notification.
	q.Enqueue(intrusion("203.0.113.8", models.AttackDDoS, true))
	q.Enqueue(intrusion("203.0.113.8", models.AttackDDoS, false))
	q.DrainOnce()

	assert.Len(t, pub.delivered(), 2)
}

func TestBlockedAndCompleteThrottling(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	item := models.NotificationItem{
		Kind:     models.KindIPBlocked,
		SourceIP: "203.0.113.9",
		Blocked:  &models.BlockedPayload{Reason: "dos"},
	}
	q.Enqueue(item)
	q.Enqueue(item)
	q.DrainOnce()
	assert.Len(t, pub.delivered(), 1)

	complete := models.NotificationItem{
		Kind:     models.KindBlockingComplete,
		SourceIP: "203.0.113.9",
		Complete: &models.CompletePayload{Methods: []string{"iptables"}},
	}
	q.Enqueue(complete)
	q.Enqueue(complete)
	q.DrainOnce()
	assert.Len(t, pub.delivered(), 2)
}

func TestUnknownKindNeverThrottled(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	for i := 0; i < 3; i++ {
		q.Enqueue(models.NotificationItem{Kind: "heartbeat", SourceIP: "10.0.0.1"})
	}
	q.DrainOnce()

	assert.Len(t, pub.delivered(), 3)
}

func TestDrainBatchLimit(t *testing.T) {
	pub := &fakePublisher{}
	q := newIdleQueue(t, pub, Config{})

	for i := 0; i < 25; i++ {
		q.Enqueue(models.NotificationItem{
			Kind:     models.KindIPBlocked,
			SourceIP: fmt.Sprintf("10.1.0.%d", i),
			Blocked:  &models.BlockedPayload{},
		})
	}

	q.DrainOnce()
	assert.Equal(t, 15, q.Len())
	q.DrainOnce()
	assert.Equal(t, 5, q.Len())
	q.DrainOnce()
	assert.Equal(t, 0, q.Len())
	assert.Len(t, pub.delivered(), 25)
}

func TestEnqueueFallsBackWhenWorkerNotRunning(t *testing.T) {
	pub := &fakePublisher{}
	q := NewQueue(pub, Config{})

	q.Enqueue(models.NotificationItem{
		Kind:     models.KindIPBlocked,
		SourceIP: "203.0.113.20",
		Blocked:  &models.BlockedPayload{Reason: "manual"},
	})

	// Delivered synchronously, nothing left queued.
	assert.Len(t, pub.delivered(), 1)
	assert.Equal(t, 0, q.Len())
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{fail: true}
	q := NewQueue(pub, Config{})

	// Must not panic or propagate.
	q.Enqueue(models.NotificationItem{
		Kind:     models.KindIPBlocked,
		SourceIP: "203.0.113.21",
		Blocked:  &models.BlockedPayload{},
	})

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, 1, pub.calls)
	assert.Empty(t, pub.sent)
}
