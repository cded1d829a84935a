package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fazecat/hpsscanner/Internal/types"
)

// Sizer converts a risk budget into a whole share quantity.
type Sizer struct {
	// FallbackFraction of price replaces a non-positive stop distance.
	FallbackFraction float64
}

func NewSizer(fallbackFraction float64) Sizer {
	if fallbackFraction <= 0 {
		fallbackFraction = 0.01
	}
	return Sizer{FallbackFraction: fallbackFraction}
}

// Sizing is what the presentation layer shows next to a score.
type Sizing struct {
	Quantity     int64   `json:"quantity"`
	RiskAmount   float64 `json:"risk_amount"`
	StopDistance float64 `json:"stop_distance"`
	Notional     float64 `json:"notional"`
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// Size returns floor(capital*riskFraction/stopDistance). It never returns a negative quantity,
// never divides by zero and yields 0 for non-finite inputs. Quantities beyond int64 saturate.
func (s Sizer) Size(capital, riskFraction, stopDistance, price float64) int64 {
	if !finite(capital, riskFraction, stopDistance, price) {
		return 0
	}
	distance := s.effectiveDistance(stopDistance, price)
	if !finite(distance) || distance <= 0 || capital <= 0 || riskFraction <= 0 {
		return 0
	}

	budget := decimal.NewFromFloat(capital).Mul(decimal.NewFromFloat(riskFraction))
	qty := budget.Div(decimal.NewFromFloat(distance)).Floor()
	if qty.IsNegative() {
		return 0
	}
	if qty.GreaterThan(maxQuantity) {
		return math.MaxInt64
	}
	return qty.IntPart()
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s Sizer) effectiveDistance(stopDistance, price float64) float64 {
	if stopDistance > 0 {
		return stopDistance
	}
	fraction := s.FallbackFraction
	if fraction <= 0 {
		fraction = 0.01
	}
	return price * fraction
}

// SizeResult sizes a scored ticker using its entry-to-stop distance.
func (s Sizer) SizeResult(capital, riskFraction float64, res types.ScoreResult) Sizing {
	distance := s.effectiveDistance(res.StopDistance(), res.Price)
	qty := s.Size(capital, riskFraction, res.StopDistance(), res.Price)
	if !finite(distance) {
		distance = 0
	}
	if qty == 0 || !finite(res.Entry) {
		return Sizing{StopDistance: distance}
	}

	notional, _ := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(res.Entry)).Float64()
	riskAmount, _ := decimal.NewFromInt(qty).Mul(decimal.NewFromFloat(distance)).Float64()

	return Sizing{
		Quantity:     qty,
		RiskAmount:   riskAmount,
		StopDistance: distance,
		Notional:     notional,
	}
}
