package history

import (
	"sync"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"
)

const (
	DefaultCapacity     = 100
	DefaultRecentWindow = 24 * time.Hour
)

// Query filters history reads. Zero values mean "no filter".
type Query struct {
	Since time.Time // inclusive, compared against RecordedAt
	Limit int
	Kind  string // event type
}

// Store is a bounded, append-only event log with cumulative statistics.
// Ring and aggregates are updated under one lock so every snapshot reflects
// a prefix of the appended events. Eviction never decrements totals.
type Store struct {
	mu           sync.RWMutex
	ring         []models.Event
	head         int // index of the oldest entry
	size         int
	seq          uint64
	lastRecorded time.Time
	recentWindow time.Duration
	now          func() time.Time

	detections      int
	failed          int
	findings        int
	sensorReadings  int
	pestCounts      map[string]int
	confMin         float64
	confMax         float64
	confSum         float64
	lastDetectionAt time.Time
}

func NewStore(capacity int, recentWindow time.Duration) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}
	return &Store{
		ring:         make([]models.Event, capacity),
		recentWindow: recentWindow,
		now:          time.Now,
		pestCounts:   make(map[string]int),
	}
}

// Append stamps the event with the next sequence number and a RecordedAt
// that never goes backwards, stores it, and returns the stamped copy.
func (s *Store) Append(e models.Event) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if now.Before(s.lastRecorded) {
		now = s.lastRecorded
	}
	s.lastRecorded = now
	s.seq++
	e.Seq = s.seq
	e.RecordedAt = now

	capacity := len(s.ring)
	if s.size < capacity {
		s.ring[(s.head+s.size)%capacity] = e
		s.size++
	} else {
		s.ring[s.head] = e
		s.head = (s.head + 1) % capacity
	}

	s.aggregate(e)
	return e
}

// aggregate folds e into the cumulative counters. s.mu must be held.
func (s *Store) aggregate(e models.Event) {
	switch e.Type {
	case models.EventSensorUpdate:
		s.sensorReadings++
	case models.EventDetectionFailed:
		s.failed++
	case models.EventDetectionComplete:
		if e.Detection == nil {
			return
		}
		s.detections++
		s.lastDetectionAt = e.RecordedAt
		for _, f := range e.Detection.Findings {
			if s.findings == 0 || f.Confidence < s.confMin {
				s.confMin = f.Confidence
			}
			if s.findings == 0 || f.Confidence > s.confMax {
				s.confMax = f.Confidence
			}
			s.findings++
			s.confSum += f.Confidence
			s.pestCounts[f.ClassName]++
		}
	}
}

// Snapshot returns a consistent copy of the statistics. Recent activity
// counts retained successful detections inside the trailing window.
func (s *Store) Snapshot() models.Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(s.pestCounts))
	for k, v := range s.pestCounts {
		counts[k] = v
	}

	st := models.Statistics{
		TotalDetections:  s.detections,
		FailedDetections: s.failed,
		TotalFindings:    s.findings,
		PestCounts:       counts,
		RecentWindow:     s.recentWindow,
		SensorReadings:   s.sensorReadings,
		Retained:         s.size,
		LastDetectionAt:  s.lastDetectionAt,
	}
	if s.findings > 0 {
		st.Confidence = models.ConfidenceStats{
			Min: s.confMin,
			Max: s.confMax,
			Avg: s.confSum / float64(s.findings),
		}
	}

	cutoff := s.now().UTC().Add(-s.recentWindow)
	for i := 0; i < s.size; i++ {
		e := s.at(i)
		if e.Type == models.EventDetectionComplete && !e.RecordedAt.Before(cutoff) {
			st.RecentActivity++
		}
	}
	return st
}

// at returns the i-th retained entry, oldest first. s.mu must be held.
func (s *Store) at(i int) models.Event {
	return s.ring[(s.head+i)%len(s.ring)]
}

// Query returns matching retained events, newest first.
func (s *Store) Query(q Query) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, 0, min(s.size, max(q.Limit, 0)))
	for i := s.size - 1; i >= 0; i-- {
		e := s.at(i)
		if !q.Since.IsZero() && e.RecordedAt.Before(q.Since) {
			break
		}
		if q.Kind != "" && e.Type != q.Kind {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Len reports how many events are retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *Store) Capacity() int { return len(s.ring) }
