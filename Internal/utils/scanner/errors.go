package scanner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fazecat/hpsscanner/Internal/strategy/detection"
	"github.com/fazecat/hpsscanner/Internal/utils/scoring"
)

type ErrorKind string

const (
	KindInsufficientData ErrorKind = "insufficient_data"
	KindImplausibleTick  ErrorKind = "implausible_tick"
	KindDataUnavailable  ErrorKind = "data_unavailable"
)

// TickerError explains why a ticker is missing from a report.
type TickerError struct {
	Ticker string
	Kind   ErrorKind
	Err    error
}

func newTickerError(ticker string, kind ErrorKind, err error) *TickerError {
	return &TickerError{Ticker: ticker, Kind: kind, Err: err}
}

func classify(ticker string, err error) *TickerError {
	switch {
	case errors.Is(err, detection.ErrImplausibleTick):
		return newTickerError(ticker, KindImplausibleTick, err)
	case errors.Is(err, scoring.ErrInsufficientData):
		return newTickerError(ticker, KindInsufficientData, err)
	default:
		return newTickerError(ticker, KindDataUnavailable, err)
	}
}

func (e TickerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Ticker, e.Kind, e.Err)
}

func (e TickerError) Unwrap() error {
	return e.Err
}

func (e TickerError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Ticker string    `json:"ticker"`
		Kind   ErrorKind `json:"kind"`
		Error  string    `json:"error"`
	}{e.Ticker, e.Kind, msg})
}
