package scheduler

import (
	"sort"
	"sync"
)

// sessionSet is the registry of currently-active dashboard sessions.
type sessionSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newSessionSet() *sessionSet {
	return &sessionSet{ids: make(map[string]struct{})}
}

func (s *sessionSet) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

func (s *sessionSet) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

func (s *sessionSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
