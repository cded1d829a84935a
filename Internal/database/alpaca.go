package datafeed

import (
	"context"
	"fmt"
	"sort"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	log "github.com/sirupsen/logrus"
)

type alpacaBarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaProvider serves equity bars from the Alpaca market data API.
type AlpacaProvider struct {
	client alpacaBarsClient
	feed   string
}

func NewAlpacaProvider(apiKey, apiSecret, feed string) (*AlpacaProvider, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("ALPACA_API_KEY or ALPACA_API_SECRET not set")
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return newAlpacaProvider(client, feed), nil
}

func newAlpacaProvider(client alpacaBarsClient, feed string) *AlpacaProvider {
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaProvider{client: client, feed: feed}
}

func alpacaTimeFrame(i Interval) (marketdata.TimeFrame, error) {
	switch i.Unit {
	case UnitMinute:
		return marketdata.NewTimeFrame(i.N, marketdata.Min), nil
	case UnitHour:
		return marketdata.NewTimeFrame(i.N, marketdata.Hour), nil
	case UnitDay:
		return marketdata.NewTimeFrame(i.N, marketdata.Day), nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("alpaca %s: %w", i, ErrUnknownInterval)
	}
}

func (p *AlpacaProvider) GetBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tf, err := alpacaTimeFrame(req.Interval)
	if err != nil {
		return nil, err
	}

	log.Debugf("fetching alpaca bars for %s (%s)", req.Ticker, req.Interval)

	raw, err := p.client.GetBars(req.Ticker, marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     req.Start,
		End:       req.End,
		Feed:      marketdata.Feed(p.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", req.Ticker, err)
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
