package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netsentry/internal/models"
)

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots map[string]any
	statsErr  error
	alertsErr error
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snapshots: make(map[string]any)}
}

func (s *fakeSnapshotStore) TrafficStats(ctx context.Context, since time.Time) (*models.StatsSnapshot, error) {
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return &models.StatsSnapshot{Timestamp: time.Now(), TotalEvents: 42}, nil
}

func (s *fakeSnapshotStore) RecentAlerts(ctx context.Context, since time.Time, level string, limit int64) ([]models.Alert, error) {
	if s.alertsErr != nil {
		return nil, s.alertsErr
	}
	return []models.Alert{{ID: "a1", Level: "CRITICAL"}}, nil
}

func (s *fakeSnapshotStore) SetSnapshot(ctx context.Context, key string, v any, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = v
	return nil
}

func (s *fakeSnapshotStore) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.snapshots[key]
	return v, ok
}

func TestTickRefreshesRegisteredSessions(t *testing.T) {
	store := newFakeSnapshotStore()
	r := NewRefresher(store, nil, 0, 0)

	r.RegisterActive("sess-1")
	r.RegisterActive("sess-2")
	r.Tick(context.Background())

	for _, id := range []string{"sess-1", "sess-2"} {
		_, ok := store.get(StatsKey(id))
		assert.True(t, ok, "missing stats snapshot for %s", id)
		_, ok = store.get(AlertsKey(id))
		assert.True(t, ok, "missing alerts snapshot for %s", id)
	}
}

func TestTickSkipsUnregisteredSessions(t *testing.T) {
	store := newFakeSnapshotStore()
	r := NewRefresher(store, nil, 0, 0)

	r.RegisterActive("sess-1")
	r.UnregisterActive("sess-1")
	r.Tick(context.Background())

	assert.Empty(t, store.snapshots)
}

func TestStatsFailureDoesNotBlockAlerts(t *testing.T) {
	store := newFakeSnapshotStore()
	store.statsErr = errors.New("store down")
	r := NewRefresher(store, nil, 0, 0)

	r.RegisterActive("sess-1")
	r.Tick(context.Background())

	_, ok := store.get(StatsKey("sess-1"))
	assert.False(t, ok)
	_, ok = store.get(AlertsKey("sess-1"))
	assert.True(t, ok, "alerts snapshot must refresh despite stats failure")
}

func TestAlertsFailureDoesNotBlockStats(t *testing.T) {
	store := newFakeSnapshotStore()
	store.alertsErr = errors.New("store down")
	r := NewRefresher(store, nil, 0, 0)

	r.RegisterActive("sess-1")
	r.Tick(context.Background())

	_, ok := store.get(StatsKey("sess-1"))
	assert.True(t, ok)
}

func TestSnapshotTTLExceedsTick(t *testing.T) {
	r := NewRefresher(newFakeSnapshotStore(), nil, 2*time.Second, time.Second)
	// A TTL at or below the tick period would let readers observe gaps.
	assert.Greater(t, r.ttl, r.tick)
}

func TestActiveSessionsSorted(t *testing.T) {
	r := NewRefresher(newFakeSnapshotStore(), nil, 0, 0)
	r.RegisterActive("b")
	r.RegisterActive("a")
	require.Equal(t, []string{"a", "b"}, r.ActiveSessions())
}
