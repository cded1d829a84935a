package detection

import (
	"errors"
	"fmt"
	"math"

	"github.com/fazecat/hpsscanner/Internal/types"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
)

var ErrImplausibleTick = errors.New("implausible tick")

type RSXVariant string

const (
	RSXStrict RSXVariant = "strict"
	RSXSimple RSXVariant = "simple"
)

type StopBasis string

const (
	StopDayLow      StopBasis = "day_low"
	StopPreviousBar StopBasis = "previous_bar"
)

const (
	entryBuffer    = 1.001
	stopBuffer     = 0.995
	riskFallback   = 0.01
	flatSmartMoney = 0.5
)

type Params struct {
	VIXGate             float64
	SmartMoneyThreshold float64
	RewardRisk          float64
	RSXVariant          RSXVariant
	MomentumFloor       float64
	StopBasis           StopBasis
	MaxBarReturn        float64 // 0 disables the outlier check
}

func DefaultParams() Params {
	return Params{
		VIXGate:             22.5,
		SmartMoneyThreshold: 0.72,
		RewardRisk:          2.0,
		RSXVariant:          RSXStrict,
		MomentumFloor:       -0.1,
		StopBasis:           StopDayLow,
		MaxBarReturn:        0.10,
	}
}

func ParamsFromConfig(c config.ScoringConfig) Params {
	d := DefaultParams()
	momentumFloor, maxBarReturn := d.MomentumFloor, d.MaxBarReturn
	if c.MomentumFloor != nil {
		momentumFloor = *c.MomentumFloor
	}
	if c.MaxBarReturn != nil {
		maxBarReturn = *c.MaxBarReturn
	}
	return Params{
		VIXGate:             c.VIXGate,
		SmartMoneyThreshold: c.SmartMoneyThreshold,
		RewardRisk:          c.RewardRisk,
		RSXVariant:          RSXVariant(c.RSXVariant),
		MomentumFloor:       momentumFloor,
		StopBasis:           StopBasis(c.StopBasis),
		MaxBarReturn:        maxBarReturn,
	}
}

// SmartMoney is the position of close inside the day range, 0.5 for a flat range.
func SmartMoney(close, dayHigh, dayLow float64) float64 {
	if dayHigh == dayLow {
		return flatSmartMoney
	}
	return (close - dayLow) / (dayHigh - dayLow)
}

// RelativeStrength is the bar's percent return minus the benchmark percent return.
func RelativeStrength(close, prevClose, benchmarkReturn float64) float64 {
	return (close/prevClose-1)*100 - benchmarkReturn
}

// Score computes the HPS score of one snapshot. It is deterministic in its inputs.
func Score(snap types.AssetSnapshot, mkt types.MarketContext, inSession bool, p Params) (types.ScoreResult, error) {
	price := snap.Latest.Close
	prev := snap.Previous.Close
	prevPrev := snap.SecondPrevious.Close

	if price <= 0 || prev <= 0 || prevPrev <= 0 {
		return types.ScoreResult{}, fmt.Errorf("%s: non-positive close: %w", snap.Ticker, ErrImplausibleTick)
	}
	if p.MaxBarReturn > 0 {
		if move := math.Abs(price/prev - 1); move > p.MaxBarReturn {
			return types.ScoreResult{}, fmt.Errorf("%s: bar return %.2f%% exceeds %.2f%%: %w",
				snap.Ticker, move*100, p.MaxBarReturn*100, ErrImplausibleTick)
		}
	}

	var checks types.Checks
	checks.VIX = mkt.VIX <= p.VIXGate

	rNow := RelativeStrength(price, prev, mkt.BenchmarkReturn)
	switch p.RSXVariant {
	case RSXSimple:
		checks.RSX = rNow > 0
	default:
		rPrev := RelativeStrength(prev, prevPrev, mkt.BenchmarkReturn)
		checks.RSX = rNow > 0 && rNow+rPrev > p.MomentumFloor
	}

	sm := SmartMoney(price, snap.DayHigh, snap.DayLow)
	checks.SM = sm > p.SmartMoneyThreshold
	checks.TIME = inSession

	entry, stop, target := Levels(snap, price, p)

	return types.ScoreResult{
		Ticker:      snap.Ticker,
		Score:       checks.Sum(),
		Checks:      checks,
		Price:       price,
		Entry:       entry,
		Stop:        stop,
		Target:      target,
		SmartMoney:  sm,
		RelStrength: rNow,
		At:          snap.Latest.Timestamp,
	}, nil
}

// Levels derives entry, stop and target. They are computed regardless of score.
func Levels(snap types.AssetSnapshot, price float64, p Params) (entry, stop, target float64) {
	entry = snap.DayHigh * entryBuffer
	stopBase := snap.DayLow
	if p.StopBasis == StopPreviousBar {
		stopBase = snap.Previous.Low
	}
	stop = stopBase * stopBuffer

	risk := entry - stop
	if risk <= 0 {
		risk = price * riskFallback
	}
	target = entry + p.RewardRisk*risk
	return entry, stop, target
}
