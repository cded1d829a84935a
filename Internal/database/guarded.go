package datafeed

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

type GuardSettings struct {
	Name              string
	RequestsPerSecond float64
	Burst             int
	MaxFailures       uint32
	OpenTimeout       time.Duration
}

// GuardedProvider paces requests to a provider and stops calling it after repeated failures.
type GuardedProvider struct {
	next    BarProvider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuardedProvider(next BarProvider, s GuardSettings) *GuardedProvider {
	limit := rate.Inf
	if s.RequestsPerSecond > 0 {
		limit = rate.Limit(s.RequestsPerSecond)
	}
	burst := s.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := s.MaxFailures
	if failures == 0 {
		failures = 5
	}

	settings := gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"provider": name, "from": from.String(), "to": to.String()}).
				Warn("feed breaker state changed")
		},
	}

	return &GuardedProvider{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *GuardedProvider) GetBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.GetBars(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %v", g.breaker.Name(), ErrFeedDown, err)
	}
	if err != nil {
		return nil, err
	}
	bars, _ := out.([]Bar)
	return bars, nil
}

// Open reports whether the breaker is currently rejecting requests.
func (g *GuardedProvider) Open() bool {
	return g.breaker.State() == gobreaker.StateOpen
}
