package monitoring

import (
	"time"

	"github.com/fazecat/hpsscanner/Internal/types"
)

type SignalState int

const (
	StateNotSignaled SignalState = iota
	StateSignaled
	StateExited
)

func (s SignalState) String() string {
	switch s {
	case StateNotSignaled:
		return "not_signaled"
	case StateSignaled:
		return "signaled"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// SignalRecord is created at most once per ticker per day. SignalTime and SignalPrice
// never change after creation and the exit fields are written at most once.
type SignalRecord struct {
	Ticker        string     `json:"ticker"`
	SignalTime    time.Time  `json:"signal_time"`
	SignalPrice   float64    `json:"signal_price"`
	SignalScore   int        `json:"signal_score"`
	ExitTriggered bool       `json:"exit_triggered"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`
	ExitPrice     *float64   `json:"exit_price,omitempty"`
	ExitScore     int        `json:"exit_score,omitempty"`
}

func (r SignalRecord) State() SignalState {
	if r.ExitTriggered {
		return StateExited
	}
	return StateSignaled
}

// ReturnPercent is the move from signal price to exit price, or to current when still open.
func (r SignalRecord) ReturnPercent(current float64) float64 {
	if r.SignalPrice == 0 {
		return 0
	}
	if r.ExitPrice != nil {
		current = *r.ExitPrice
	}
	return (current/r.SignalPrice - 1) * 100
}

func (r *SignalRecord) clone() SignalRecord {
	c := *r
	if r.ExitTime != nil {
		t := *r.ExitTime
		c.ExitTime = &t
	}
	if r.ExitPrice != nil {
		p := *r.ExitPrice
		c.ExitPrice = &p
	}
	return c
}

// SignalTracker drives NotSignaled -> Signaled -> Exited per ticker.
type SignalTracker struct {
	store     *Store
	threshold int
}

func NewSignalTracker(store *Store, threshold int) *SignalTracker {
	return &SignalTracker{store: store, threshold: threshold}
}

func (t *SignalTracker) Threshold() int {
	return t.threshold
}

// State reports where a ticker is in the signal lifecycle.
func (t *SignalTracker) State(ticker string) SignalState {
	rec, ok := t.store.Signal(ticker)
	if !ok {
		return StateNotSignaled
	}
	return rec.State()
}

// Update applies one poll's result. Repeated polls in the same state are no-ops.
func (t *SignalTracker) Update(ticker string, res types.ScoreResult, now time.Time) Transition {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	rec, ok := t.store.signals[ticker]
	if !ok {
		if res.Score < t.threshold {
			return TransitionNone
		}
		t.store.signals[ticker] = &SignalRecord{
			Ticker:      ticker,
			SignalTime:  now,
			SignalPrice: res.Price,
			SignalScore: res.Score,
		}
		return TransitionSignaled
	}

	if rec.ExitTriggered || res.Score >= t.threshold {
		return TransitionNone
	}

	exitTime := now
	exitPrice := res.Price
	rec.ExitTriggered = true
	rec.ExitTime = &exitTime
	rec.ExitPrice = &exitPrice
	rec.ExitScore = res.Score
	return TransitionExited
}

func (t *SignalTracker) Get(ticker string) (SignalRecord, bool) {
	return t.store.Signal(ticker)
}

// All is the signal log ordered by signal time.
func (t *SignalTracker) All() []SignalRecord {
	return t.store.Signals()
}
