package monitoring

import (
	"time"

	"github.com/montanaflynn/stats"
)

// DaySummary rolls the day's tracker state up into the figures shown under the panels.
type DaySummary struct {
	Signals         int       `json:"signals"`
	Open            int       `json:"open"`
	Exited          int       `json:"exited"`
	Winners         int       `json:"winners"`
	Losers          int       `json:"losers"`
	WinRate         float64   `json:"win_rate"` // 0-100 over exited signals
	AvgExitReturn   float64   `json:"avg_exit_return"`
	BestExitReturn  float64   `json:"best_exit_return"`
	WorstExitReturn float64   `json:"worst_exit_return"`
	Golden          int       `json:"golden"`
	Recovered       int       `json:"recovered"`
	MeanGoldenPnL   float64   `json:"mean_golden_pnl"`
	MedianGoldenPnL float64   `json:"median_golden_pnl"`
	Since           time.Time `json:"since"`
}

// Summarize builds a DaySummary from the current signal log and golden panel.
func (s *Store) Summarize() DaySummary {
	signals := s.Signals()
	golden := s.Golden()

	sum := DaySummary{
		Signals: len(signals),
		Golden:  len(golden),
		Since:   s.Since(),
	}

	var exits []float64
	for _, rec := range signals {
		if !rec.ExitTriggered {
			sum.Open++
			continue
		}
		sum.Exited++
		ret := rec.ReturnPercent(0)
		exits = append(exits, ret)
		if ret > 0 {
			sum.Winners++
		} else if ret < 0 {
			sum.Losers++
		}
	}
	if len(exits) > 0 {
		sum.WinRate = float64(sum.Winners) / float64(len(exits)) * 100
		sum.AvgExitReturn, _ = stats.Mean(exits)
		sum.BestExitReturn, _ = stats.Max(exits)
		sum.WorstExitReturn, _ = stats.Min(exits)
	}

	var pnl []float64
	for _, rec := range golden {
		if rec.Recovered {
			sum.Recovered++
		}
		pnl = append(pnl, rec.PnLPercent())
	}
	if len(pnl) > 0 {
		sum.MeanGoldenPnL, _ = stats.Mean(pnl)
		sum.MedianGoldenPnL, _ = stats.Median(pnl)
	}
	return sum
}
