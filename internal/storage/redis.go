package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/nshruti113/netsentry/internal/models"
)

const (
	tempBanKeyPrefix = "ids:tempban:"
	tempBanIndexKey  = "ids:tempbans"
	policyKey        = "ids:policy"
	eventsKey        = "events:history"
	alertsKey        = "alerts:history"

	historyWindow = 24 * time.Hour
)

// RedisStore backs the ban registry, event/alert history, and dashboard
// snapshot cache.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// --- temp bans ---

func banKey(address string) string {
	return tempBanKeyPrefix + address
}

// SaveTempBan stores the ban record keyed by address with TTL equal to the
// ban duration.
func (r *RedisStore) SaveTempBan(ctx context.Context, rec models.TempBanRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, banKey(rec.Address), data, ttl).Err()
}

// GetTempBan returns the ban record for address, or nil if none exists or
// it has expired.
func (r *RedisStore) GetTempBan(ctx context.Context, address string) (*models.TempBanRecord, error) {
	data, err := r.client.Get(ctx, banKey(address)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec models.TempBanRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RedisStore) DeleteTempBan(ctx context.Context, address string) error {
	return r.client.Del(ctx, banKey(address)).Err()
}

// AddBanIndex adds/updates the expiry-sorted index entry for address.
func (r *RedisStore) AddBanIndex(ctx context.Context, address string, expiresAt time.Time) error {
	return r.client.ZAdd(ctx, tempBanIndexKey, redis.Z{
		Score:  float64(expiresAt.Unix()),
		Member: address,
	}).Err()
}

func (r *RedisStore) RemoveBanIndex(ctx context.Context, address string) error {
	return r.client.ZRem(ctx, tempBanIndexKey, address).Err()
}

// ActiveBanAddresses lists addresses whose index entry has not yet expired.
// Index entries are advisory; callers must still check the keyed record.
func (r *RedisStore) ActiveBanAddresses(ctx context.Context, now time.Time) ([]string, error) {
	return r.client.ZRangeByScore(ctx, tempBanIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(now.Unix(), 10),
		Max: "+inf",
	}).Result()
}

// PruneBanIndex removes index entries whose expiry passed before the cutoff.
func (r *RedisStore) PruneBanIndex(ctx context.Context, before time.Time) (int64, error) {
	return r.client.ZRemRangeByScore(ctx, tempBanIndexKey, "-inf",
		strconv.FormatInt(before.Unix(), 10)).Result()
}

// --- events & alerts ---

type eventRecord struct {
	Event     models.TrafficEvent `json:"event"`
	Detection models.Detection    `json:"detection"`
}

// StoreEvent appends the classified event to the time-series history and
// updates the per-minute ingest counters.
func (r *RedisStore) StoreEvent(ctx context.Context, ev models.TrafficEvent, det models.Detection) error {
	data, err := json.Marshal(eventRecord{Event: ev, Detection: det})
	if err != nil {
		return err
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if err := r.client.ZAdd(ctx, eventsKey, redis.Z{
		Score:  float64(ts.Unix()),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}

	cutoff := float64(time.Now().Add(-historyWindow).Unix())
	r.client.ZRemRangeByScore(ctx, eventsKey, "-inf", fmt.Sprintf("%f", cutoff))

	r.updateCounters(ctx, ev, det)

	return nil
}

// updateCounters keeps cheap per-minute ingest metrics alongside the raw
// history.
func (r *RedisStore) updateCounters(ctx context.Context, ev models.TrafficEvent, det models.Detection) {
	minute := time.Now().Truncate(time.Minute).Unix()
	key := fmt.Sprintf("metrics:%d", minute)

	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, key, "total_events", 1)
	pipe.HIncrBy(ctx, key, "total_bytes", int64(ev.Bytes))
	pipe.HIncrBy(ctx, key, "protocol:"+ev.Protocol, 1)
	if det.IsMalicious {
		pipe.HIncrBy(ctx, key, "malicious", 1)
		pipe.HIncrBy(ctx, key, "attack:"+det.AttackType, 1)
	}
	pipe.Expire(ctx, key, time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Warnf("updating ingest counters: %v", err)
	}
}

// TrafficStats aggregates the event history since the given time into a
// dashboard snapshot.
func (r *RedisStore) TrafficStats(ctx context.Context, since time.Time) (*models.StatsSnapshot, error) {
	results, err := r.client.ZRangeByScore(ctx, eventsKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.Unix(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	snap := &models.StatsSnapshot{
		Timestamp:    time.Now(),
		WindowHours:  int(time.Since(since).Hours() + 0.5),
		ByAttackType: make(map[string]int),
	}

	sourceCounts := make(map[string]int)
	for _, result := range results {
		var rec eventRecord
		if err := json.Unmarshal([]byte(result), &rec); err != nil {
			continue
		}
		snap.TotalEvents++
		snap.BytesTotal += int64(rec.Event.Bytes)
		sourceCounts[rec.Event.SourceIP]++
		if rec.Detection.IsMalicious {
			snap.MaliciousEvents++
			snap.ByAttackType[rec.Detection.AttackType]++
		}
	}
	snap.TopSources = topSources(sourceCounts, 10)

	active, err := r.client.ZCount(ctx, tempBanIndexKey,
		strconv.FormatInt(time.Now().Unix(), 10), "+inf").Result()
	if err == nil {
		snap.ActiveBans = int(active)
	}

	return snap, nil
}

// StoreAlert appends an alert to the history sorted set.
func (r *RedisStore) StoreAlert(ctx context.Context, alert models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	if err := r.client.ZAdd(ctx, alertsKey, redis.Z{
		Score:  float64(alert.Timestamp.Unix()),
		Member: string(data),
	}).Err(); err != nil {
		return err
	}

	cutoff := float64(time.Now().Add(-historyWindow).Unix())
	r.client.ZRemRangeByScore(ctx, alertsKey, "-inf", fmt.Sprintf("%f", cutoff))
	return nil
}

// RecentAlerts lists alerts since the given time, newest first, optionally
// filtered by level.
func (r *RedisStore) RecentAlerts(ctx context.Context, since time.Time, level string, limit int64) ([]models.Alert, error) {
	results, err := r.client.ZRevRangeByScore(ctx, alertsKey, &redis.ZRangeBy{
		Min:   strconv.FormatInt(since.Unix(), 10),
		Max:   "+inf",
		Count: limit,
	}).Result()
	if err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(results))
	for _, result := range results {
		var alert models.Alert
		if err := json.Unmarshal([]byte(result), &alert); err != nil {
			continue
		}
		if level != "" && alert.Level != level {
			continue
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// --- dashboard snapshots ---

// SetSnapshot caches a dashboard snapshot under key with a short TTL.
func (r *RedisStore) SetSnapshot(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// GetSnapshot loads a cached snapshot into dest. Returns false on a cache
// miss; callers fall back to a direct store query.
func (r *RedisStore) GetSnapshot(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(data), dest)
}

// --- policy ---

// ReadPolicy returns the raw policy hash, empty on miss.
func (r *RedisStore) ReadPolicy(ctx context.Context) (map[string]string, error) {
	return r.client.HGetAll(ctx, policyKey).Result()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func topSources(counts map[string]int, n int) []models.IPCount {
	out := make([]models.IPCount, 0, len(counts))
	for ip, count := range counts {
		out = append(out, models.IPCount{IP: ip, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IP < out[j].IP
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
