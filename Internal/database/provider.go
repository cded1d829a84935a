package datafeed

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/fazecat/hpsscanner/Internal/types"
)

type Bar = types.Bar

var (
	// ErrFeedDown means the provider is refusing requests, usually because its breaker is open.
	ErrFeedDown = errors.New("feed down")
	// ErrUnknownInterval is returned for bar intervals the providers cannot express.
	ErrUnknownInterval = errors.New("unknown bar interval")
)

// BarRequest asks for bars of one ticker starting in [Start, End].
type BarRequest struct {
	Ticker   string
	Interval Interval
	Start    time.Time
	End      time.Time
}

// BarProvider returns bars oldest first.
type BarProvider interface {
	GetBars(ctx context.Context, req BarRequest) ([]Bar, error)
}

// ProviderFunc adapts a plain function to BarProvider.
type ProviderFunc func(ctx context.Context, req BarRequest) ([]Bar, error)

func (f ProviderFunc) GetBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	return f(ctx, req)
}

type IntervalUnit string

const (
	UnitMinute IntervalUnit = "Min"
	UnitHour   IntervalUnit = "Hour"
	UnitDay    IntervalUnit = "Day"
)

// Interval is a bar size such as 15Min or 1Hour.
type Interval struct {
	N    int
	Unit IntervalUnit
}

var intervalPattern = regexp.MustCompile(`^(\d+)(Min|Hour|Day)$`)

func ParseInterval(s string) (Interval, error) {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return Interval{}, fmt.Errorf("%q: %w", s, ErrUnknownInterval)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Interval{}, fmt.Errorf("%q: %w", s, ErrUnknownInterval)
	}
	return Interval{N: n, Unit: IntervalUnit(m[2])}, nil
}

func (i Interval) Duration() time.Duration {
	switch i.Unit {
	case UnitMinute:
		return time.Duration(i.N) * time.Minute
	case UnitHour:
		return time.Duration(i.N) * time.Hour
	case UnitDay:
		return time.Duration(i.N) * 24 * time.Hour
	default:
		return 0
	}
}

func (i Interval) String() string {
	return strconv.Itoa(i.N) + string(i.Unit)
}
