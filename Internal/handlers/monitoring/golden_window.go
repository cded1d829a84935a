package monitoring

import (
	"time"

	"github.com/fazecat/hpsscanner/Internal/types"
	"github.com/fazecat/hpsscanner/Internal/utils/scoring"
	"github.com/fazecat/hpsscanner/Internal/utils/timegate"
)

// CheckpointStep spaces the score history marks inside a golden window.
const CheckpointStep = 5 * time.Minute

type Checkpoint struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// GoldenWindowRecord tracks a golden window entry. EntryPrice and EntryTime are write-once;
// later polls only move CurrentPrice and LastUpdate.
type GoldenWindowRecord struct {
	Ticker       string       `json:"ticker"`
	WindowLabel  string       `json:"window_label"`
	EntryPrice   float64      `json:"entry_price"`
	EntryTime    time.Time    `json:"entry_time"`
	CurrentPrice float64      `json:"current_price"`
	LastUpdate   time.Time    `json:"last_update_time"`
	Recovered    bool         `json:"recovered"`
	ScoreHistory []Checkpoint `json:"score_history"`
}

func (r GoldenWindowRecord) PnLPercent() float64 {
	if r.EntryPrice == 0 {
		return 0
	}
	return (r.CurrentPrice/r.EntryPrice - 1) * 100
}

func (r *GoldenWindowRecord) clone() GoldenWindowRecord {
	c := *r
	c.ScoreHistory = append([]Checkpoint(nil), r.ScoreHistory...)
	return c
}

// GoldenWindowTracker captures one entry per ticker per day inside a fixed daily window.
type GoldenWindowTracker struct {
	store     *Store
	label     string
	window    timegate.Window
	loc       *time.Location
	threshold int
}

func NewGoldenWindowTracker(store *Store, label string, window timegate.Window, loc *time.Location, threshold int) *GoldenWindowTracker {
	if loc == nil {
		loc = time.UTC
	}
	if label == "" {
		label = window.String()
	}
	return &GoldenWindowTracker{
		store:     store,
		label:     label,
		window:    window,
		loc:       loc,
		threshold: threshold,
	}
}

func (g *GoldenWindowTracker) Window() timegate.Window {
	return g.window
}

// Bounds returns the window on the day of now: [start, end).
func (g *GoldenWindowTracker) Bounds(now time.Time) (time.Time, time.Time) {
	local := now.In(g.loc)
	return g.window.Start.On(local), g.window.End.On(local)
}

// Checkpoints lists the score history marks of the day's window, start to end inclusive.
func (g *GoldenWindowTracker) Checkpoints(now time.Time) []time.Time {
	start, end := g.Bounds(now)
	var marks []time.Time
	for t := start; !t.After(end); t = t.Add(CheckpointStep) {
		marks = append(marks, t)
	}
	return marks
}

func checkpointLabel(t time.Time) string {
	return t.Format("15:04")
}

func (g *GoldenWindowTracker) checkpointFor(now time.Time) time.Time {
	start, _ := g.Bounds(now)
	steps := now.In(g.loc).Sub(start) / CheckpointStep
	return start.Add(steps * CheckpointStep)
}

func setCheckpoint(history []Checkpoint, label string, score int) []Checkpoint {
	for i := range history {
		if history[i].Label == label {
			history[i].Score = score
			return history
		}
	}
	return append(history, Checkpoint{Label: label, Score: score})
}

// Update applies one poll's result. Inside the window the first result at or above the
// threshold captures the entry; once a record exists only the current price moves.
func (g *GoldenWindowTracker) Update(ticker string, res types.ScoreResult, now time.Time) Transition {
	local := now.In(g.loc)

	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	inWindow := g.window.Contains(local)

	if rec, ok := g.store.golden[ticker]; ok {
		rec.CurrentPrice = res.Price
		rec.LastUpdate = now
		if inWindow {
			rec.ScoreHistory = setCheckpoint(rec.ScoreHistory, checkpointLabel(g.checkpointFor(now)), res.Score)
		}
		return TransitionNone
	}

	if !inWindow {
		return TransitionNone
	}

	g.store.observed[ticker] = true
	history := setCheckpoint(g.store.pending[ticker], checkpointLabel(g.checkpointFor(now)), res.Score)
	g.store.pending[ticker] = history

	if res.Score < g.threshold {
		return TransitionNone
	}

	g.store.golden[ticker] = &GoldenWindowRecord{
		Ticker:       ticker,
		WindowLabel:  g.label,
		EntryPrice:   res.Price,
		EntryTime:    now,
		CurrentPrice: res.Price,
		LastUpdate:   now,
		ScoreHistory: append([]Checkpoint(nil), history...),
	}
	delete(g.store.pending, ticker)
	return TransitionCaptured
}

// NeedsRecovery is true once the day's window has closed for a ticker that has no record
// and was never polled while the window was open.
func (g *GoldenWindowTracker) NeedsRecovery(ticker string, now time.Time) bool {
	if timegate.ClockOf(now.In(g.loc)) <= g.window.End {
		return false
	}

	g.store.mu.RLock()
	defer g.store.mu.RUnlock()
	if _, ok := g.store.golden[ticker]; ok {
		return false
	}
	return !g.store.observed[ticker]
}

// Recover rebuilds the entry from historical bars of the day's window. The entry is the
// close of the last bar that started inside the window and the entry time is the window's
// end boundary. Without bars for the window nothing is recorded.
func (g *GoldenWindowTracker) Recover(ticker string, bars []types.Bar, currentPrice float64, history []Checkpoint, now time.Time) Transition {
	start, end := g.Bounds(now)
	windowBars := scoring.Between(bars, start, end)
	if len(windowBars) == 0 {
		return TransitionNone
	}
	entry := windowBars[len(windowBars)-1].Close

	g.store.mu.Lock()
	defer g.store.mu.Unlock()

	if _, ok := g.store.golden[ticker]; ok {
		return TransitionNone
	}

	g.store.golden[ticker] = &GoldenWindowRecord{
		Ticker:       ticker,
		WindowLabel:  g.label,
		EntryPrice:   entry,
		EntryTime:    end,
		CurrentPrice: currentPrice,
		LastUpdate:   now,
		Recovered:    true,
		ScoreHistory: append([]Checkpoint(nil), history...),
	}
	return TransitionRecovered
}

func (g *GoldenWindowTracker) Get(ticker string) (GoldenWindowRecord, bool) {
	return g.store.GoldenRecord(ticker)
}

// All is the live golden window panel ordered by ticker.
func (g *GoldenWindowTracker) All() []GoldenWindowRecord {
	return g.store.Golden()
}

// LabelFor formats a checkpoint time the way score history labels are stored.
func LabelFor(t time.Time) string {
	return checkpointLabel(t)
}
