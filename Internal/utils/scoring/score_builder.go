package scoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/fazecat/hpsscanner/Internal/types"
)

// MinBars is the history needed to score a ticker.
const MinBars = 3

var ErrInsufficientData = errors.New("insufficient data")

// BuildSnapshot turns a chronological bar series (oldest first) into the snapshot scored each poll.
// Day high and low span the bars that share the latest bar's calendar date in loc.
func BuildSnapshot(ticker string, bars []types.Bar, loc *time.Location) (types.AssetSnapshot, error) {
	if len(bars) < MinBars {
		return types.AssetSnapshot{}, fmt.Errorf("%s: need %d bars, got %d: %w", ticker, MinBars, len(bars), ErrInsufficientData)
	}
	if loc == nil {
		loc = time.UTC
	}

	n := len(bars)
	latest := bars[n-1]
	y, m, d := latest.Timestamp.In(loc).Date()

	dayHigh, dayLow := latest.High, latest.Low
	for i := n - 2; i >= 0; i-- {
		by, bm, bd := bars[i].Timestamp.In(loc).Date()
		if by != y || bm != m || bd != d {
			break
		}
		if bars[i].High > dayHigh {
			dayHigh = bars[i].High
		}
		if bars[i].Low < dayLow {
			dayLow = bars[i].Low
		}
	}

	return types.AssetSnapshot{
		Ticker:         ticker,
		Latest:         latest,
		Previous:       bars[n-2],
		SecondPrevious: bars[n-3],
		DayHigh:        dayHigh,
		DayLow:         dayLow,
	}, nil
}

// Until returns the prefix of bars that started strictly before t.
func Until(bars []types.Bar, t time.Time) []types.Bar {
	for i, b := range bars {
		if !b.Timestamp.Before(t) {
			return bars[:i]
		}
	}
	return bars
}

// Between returns the bars whose start lies in [start, end).
func Between(bars []types.Bar, start, end time.Time) []types.Bar {
	var out []types.Bar
	for _, b := range bars {
		if !b.Timestamp.Before(start) && b.Timestamp.Before(end) {
			out = append(out, b)
		}
	}
	return out
}

func LastClose(bars []types.Bar) (float64, error) {
	if len(bars) == 0 {
		return 0, ErrInsufficientData
	}
	return bars[len(bars)-1].Close, nil
}

// BenchmarkReturn is the percent change between the last two closes.
func BenchmarkReturn(bars []types.Bar) (float64, error) {
	if len(bars) < 2 {
		return 0, fmt.Errorf("benchmark: need 2 bars, got %d: %w", len(bars), ErrInsufficientData)
	}
	prev := bars[len(bars)-2].Close
	if prev == 0 {
		return 0, fmt.Errorf("benchmark: zero close: %w", ErrInsufficientData)
	}
	return (bars[len(bars)-1].Close/prev - 1) * 100, nil
}

func ScoreCategory(score int) string {
	if score >= 90 {
		return "🟢 Excellent"
	}
	if score >= 80 {
		return "🟢 Signal"
	}
	if score >= 60 {
		return "🟡 Watch"
	}
	if score >= 30 {
		return "🟠 Weak"
	}
	return "🔴 Poor"
}
