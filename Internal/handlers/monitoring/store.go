package monitoring

import (
	"sort"
	"sync"
	"time"
)

// Transition is what a tracker update did to a ticker's record.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionSignaled
	TransitionExited
	TransitionCaptured
	TransitionRecovered
)

func (t Transition) String() string {
	switch t {
	case TransitionNone:
		return "none"
	case TransitionSignaled:
		return "signaled"
	case TransitionExited:
		return "exited"
	case TransitionCaptured:
		return "golden_captured"
	case TransitionRecovered:
		return "golden_recovered"
	default:
		return "unknown"
	}
}

// Store is the day-scoped tracker state shared by the signal and golden window trackers.
// It is only ever cleared by Reset.
type Store struct {
	mu       sync.RWMutex
	signals  map[string]*SignalRecord
	golden   map[string]*GoldenWindowRecord
	pending  map[string][]Checkpoint // golden window scores seen before capture
	observed map[string]bool         // tickers polled while their golden window was open
	since    time.Time
}

// creates an empty store
func NewStore() *Store {
	s := &Store{}
	s.clear(time.Now())
	return s
}

func (s *Store) clear(now time.Time) {
	s.signals = make(map[string]*SignalRecord)
	s.golden = make(map[string]*GoldenWindowRecord)
	s.pending = make(map[string][]Checkpoint)
	s.observed = make(map[string]bool)
	s.since = now
}

// Reset swaps in empty maps. Calling it twice leaves the same empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear(time.Now())
}

// Since is when the store was created or last reset.
func (s *Store) Since() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.since
}

func (s *Store) Signal(ticker string) (SignalRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.signals[ticker]
	if !ok {
		return SignalRecord{}, false
	}
	return rec.clone(), true
}

// Signals is the day's signal log ordered by signal time.
func (s *Store) Signals() []SignalRecord {
	s.mu.RLock()
	out := make([]SignalRecord, 0, len(s.signals))
	for _, rec := range s.signals {
		out = append(out, rec.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SignalTime.Equal(out[j].SignalTime) {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].SignalTime.Before(out[j].SignalTime)
	})
	return out
}

func (s *Store) GoldenRecord(ticker string) (GoldenWindowRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.golden[ticker]
	if !ok {
		return GoldenWindowRecord{}, false
	}
	return rec.clone(), true
}

// Golden is the live golden window panel ordered by ticker.
func (s *Store) Golden() []GoldenWindowRecord {
	s.mu.RLock()
	out := make([]GoldenWindowRecord, 0, len(s.golden))
	for _, rec := range s.golden {
		out = append(out, rec.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Empty reports whether the store holds no tracker state at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals) == 0 && len(s.golden) == 0 && len(s.pending) == 0 && len(s.observed) == 0
}
