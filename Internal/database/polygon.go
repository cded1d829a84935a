package datafeed

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	log "github.com/sirupsen/logrus"
)

type aggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonProvider serves index aggregates (I:VIX, I:SPX, ...) from polygon.io.
type PolygonProvider struct {
	listAggs func(ctx context.Context, params *models.ListAggsParams) aggsIterator
}

func NewPolygonProvider(apiKey string) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("POLYGON_API_KEY not set")
	}
	client := polygon.New(apiKey)
	return &PolygonProvider{
		listAggs: func(ctx context.Context, params *models.ListAggsParams) aggsIterator {
			return client.ListAggs(ctx, params)
		},
	}, nil
}

func polygonTimespan(i Interval) (models.Timespan, error) {
	switch i.Unit {
	case UnitMinute:
		return models.Minute, nil
	case UnitHour:
		return models.Hour, nil
	case UnitDay:
		return models.Day, nil
	default:
		return "", fmt.Errorf("polygon %s: %w", i, ErrUnknownInterval)
	}
}

func (p *PolygonProvider) GetBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	span, err := polygonTimespan(req.Interval)
	if err != nil {
		return nil, err
	}

	log.Debugf("fetching polygon aggregates for %s (%s)", req.Ticker, req.Interval)

	params := models.ListAggsParams{
		Ticker:     req.Ticker,
		Multiplier: req.Interval.N,
		Timespan:   span,
		From:       models.Millis(req.Start),
		To:         models.Millis(req.End),
	}.WithOrder(models.Asc)

	iter := p.listAggs(ctx, params)

	var bars []Bar
	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, Bar{
			Timestamp: time.Time(agg.Timestamp),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon aggregates %s: %w", req.Ticker, err)
	}
	return bars, nil
}
