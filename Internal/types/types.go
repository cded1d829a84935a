package types

import "time"

type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// AssetSnapshot is rebuilt every poll from the latest bars of one ticker.
type AssetSnapshot struct {
	Ticker         string
	Latest         Bar
	Previous       Bar
	SecondPrevious Bar
	DayHigh        float64
	DayLow         float64
}

// MarketContext is shared by every ticker scored in the same poll.
type MarketContext struct {
	VIX             float64   `json:"vix"`
	Benchmark       string    `json:"benchmark"`
	BenchmarkReturn float64   `json:"benchmark_return"` // percent
	AsOf            time.Time `json:"as_of"`
}

// Check weights. They sum to 100.
const (
	WeightVIX  = 20
	WeightRSX  = 30
	WeightSM   = 30
	WeightTime = 20
)

// ValidScores lists every score reachable as a sum of a subset of the weights.
var ValidScores = []int{0, 20, 30, 50, 60, 70, 80, 90, 100}

type Checks struct {
	VIX  bool `json:"vix"`
	RSX  bool `json:"rsx"`
	SM   bool `json:"sm"`
	TIME bool `json:"time"`
}

// Sum returns the weighted total of the passing checks.
func (c Checks) Sum() int {
	total := 0
	if c.VIX {
		total += WeightVIX
	}
	if c.RSX {
		total += WeightRSX
	}
	if c.SM {
		total += WeightSM
	}
	if c.TIME {
		total += WeightTime
	}
	return total
}

// Icons renders the check line shown under each scan row.
func (c Checks) Icons() string {
	pick := func(ok bool, yes, no string) string {
		if ok {
			return yes
		}
		return no
	}
	return "VIX:" + pick(c.VIX, "✅", "⚠️") +
		" | RSX:" + pick(c.RSX, "🔥", "❄️") +
		" | SM:" + pick(c.SM, "💎", "➖") +
		" | T:" + pick(c.TIME, "🕒", "⏳")
}

type ScoreResult struct {
	Ticker      string    `json:"ticker"`
	Score       int       `json:"score"`
	Checks      Checks    `json:"checks"`
	Price       float64   `json:"price"`
	Entry       float64   `json:"entry"`
	Stop        float64   `json:"stop"`
	Target      float64   `json:"target"`
	SmartMoney  float64   `json:"smart_money"`
	RelStrength float64   `json:"rel_strength"`
	At          time.Time `json:"at"`
}

// StopDistance is the per-share risk between entry and stop.
func (r ScoreResult) StopDistance() float64 {
	return r.Entry - r.Stop
}
