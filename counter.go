package entropy

import "sync"

// CounterSnapshot is a point-in-time copy of the request counters.
type CounterSnapshot struct {
	Last         int32
	LastSuccess  int32
	Max          int32
	MaxSuccess   int32
	Count        int32
	SuccessCount int32
}

// Stats tracks request telemetry for the serving side: the last and largest
// request sizes, split into all requests and the ones that were actually
// served. Safe for concurrent use.
type Stats struct {
	mu   sync.Mutex
	cntr CounterSnapshot
}

func NewStats() *Stats { return &Stats{} }

// RegisterRequest records one handled request and its outcome.
func (s *Stats) RegisterRequest(size int32, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.cntr
	c.Last = size
	if c.Last > c.Max {
		c.Max = c.Last
	}
	c.Count++

	if success {
		c.LastSuccess = size
		if c.LastSuccess > c.MaxSuccess {
			c.MaxSuccess = c.LastSuccess
		}
		c.SuccessCount++
	}
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() CounterSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cntr
}
