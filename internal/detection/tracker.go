package detection

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	// WindowLength is the fixed sliding window for per-source frequency.
	WindowLength = 60 * time.Second

	shardCount = 64
	maxSizes   = 4096
)

// FrequencyRecord tracks one source address inside the current window.
type FrequencyRecord struct {
	Count       int
	WindowStart time.Time
	Sizes       []int
}

type shard struct {
	mu      sync.Mutex
	records map[string]*FrequencyRecord
}

// Tracker maintains per-source frequency records across a fixed array of
// independently-locked shards, so two events for the same address can never
// race on the window-reset logic while different addresses proceed in
// parallel.
type Tracker struct {
	shards [shardCount]*shard
}

func NewTracker() *Tracker {
	t := &Tracker{}
	for i := range t.shards {
		t.shards[i] = &shard{records: make(map[string]*FrequencyRecord)}
	}
	return t
}

func (t *Tracker) shardFor(addr string) *shard {
	h := fnv.New32a()
	h.Write([]byte(addr))
	return t.shards[h.Sum32()%shardCount]
}

// Observe records one event for addr and returns the estimated
// events-per-minute frequency and the number of samples in the window.
// A stale window resets to count=1 rather than decaying.
func (t *Tracker) Observe(addr string, size int, now time.Time) (frequency, samples int) {
	s := t.shardFor(addr)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[addr]
	if !ok || now.Sub(rec.WindowStart) > WindowLength {
		s.records[addr] = &FrequencyRecord{
			Count:       1,
			WindowStart: now,
			Sizes:       []int{size},
		}
		return 1, 1
	}

	rec.Count++
	if len(rec.Sizes) < maxSizes {
		rec.Sizes = append(rec.Sizes, size)
	}

	// Floor the elapsed-minutes divisor at one second so the first few
	// events in a window don't blow up the rate estimate.
	elapsedMinutes := now.Sub(rec.WindowStart).Minutes()
	if elapsedMinutes < 1.0/60.0 {
		elapsedMinutes = 1.0 / 60.0
	}

	return int(float64(rec.Count)/elapsedMinutes + 0.5), rec.Count
}

// Len returns the number of tracked source addresses.
func (t *Tracker) Len() int {
	total := 0
	for _, s := range t.shards {
		s.mu.Lock()
		total += len(s.records)
		s.mu.Unlock()
	}
	return total
}
