package datafeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    Interval
		dur     time.Duration
		wantErr bool
	}{
		{in: "15Min", want: Interval{N: 15, Unit: UnitMinute}, dur: 15 * time.Minute},
		{in: "5Min", want: Interval{N: 5, Unit: UnitMinute}, dur: 5 * time.Minute},
		{in: "1Hour", want: Interval{N: 1, Unit: UnitHour}, dur: time.Hour},
		{in: "1Day", want: Interval{N: 1, Unit: UnitDay}, dur: 24 * time.Hour},
		{in: "15m", wantErr: true},
		{in: "0Min", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownInterval)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.dur, got.Duration())
			assert.Equal(t, tt.in, got.String())
		})
	}
}

type fakeAlpaca struct {
	symbol string
	req    marketdata.GetBarsRequest
	bars   []marketdata.Bar
	err    error
}

func (f *fakeAlpaca) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbol = symbol
	f.req = req
	return f.bars, f.err
}

func TestAlpacaProvider_GetBars(t *testing.T) {
	t0 := time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC)
	fake := &fakeAlpaca{bars: []marketdata.Bar{
		{Timestamp: t0.Add(15 * time.Minute), Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 200},
		{Timestamp: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
	}}
	p := newAlpacaProvider(fake, "")

	bars, err := p.GetBars(context.Background(), BarRequest{
		Ticker:   "AAPL",
		Interval: Interval{N: 15, Unit: UnitMinute},
		Start:    t0,
		End:      t0.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, t0, bars[0].Timestamp)
	assert.Equal(t, 2.5, bars[1].Close)
	assert.Equal(t, 200.0, bars[1].Volume)

	assert.Equal(t, "AAPL", fake.symbol)
	assert.Equal(t, marketdata.NewTimeFrame(15, marketdata.Min), fake.req.TimeFrame)
	assert.Equal(t, t0, fake.req.Start)
}

func TestAlpacaProvider_WrapsErrors(t *testing.T) {
	p := newAlpacaProvider(&fakeAlpaca{err: errors.New("403 forbidden")}, "iex")
	_, err := p.GetBars(context.Background(), BarRequest{Ticker: "AAPL", Interval: Interval{N: 15, Unit: UnitMinute}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAPL")
}

func TestNewAlpacaProvider_RequiresKeys(t *testing.T) {
	_, err := NewAlpacaProvider("", "", "iex")
	assert.Error(t, err)
}

type fakeAggs struct {
	items []models.Agg
	pos   int
	err   error
}

func (f *fakeAggs) Next() bool {
	if f.pos >= len(f.items) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeAggs) Item() models.Agg { return f.items[f.pos-1] }
func (f *fakeAggs) Err() error       { return f.err }

func TestPolygonProvider_GetBars(t *testing.T) {
	t0 := time.Date(2024, 3, 12, 14, 30, 0, 0, time.UTC)
	var got *models.ListAggsParams
	p := &PolygonProvider{listAggs: func(_ context.Context, params *models.ListAggsParams) aggsIterator {
		got = params
		return &fakeAggs{items: []models.Agg{
			{Timestamp: models.Millis(t0), Open: 14, High: 15, Low: 13.5, Close: 14.2},
			{Timestamp: models.Millis(t0.Add(15 * time.Minute)), Open: 14.2, High: 14.4, Low: 13.9, Close: 14.0},
		}}
	}}

	bars, err := p.GetBars(context.Background(), BarRequest{
		Ticker:   "I:VIX",
		Interval: Interval{N: 15, Unit: UnitMinute},
		Start:    t0,
		End:      t0.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 14.0, bars[1].Close)
	assert.True(t, bars[0].Timestamp.Equal(t0))

	require.NotNil(t, got)
	assert.Equal(t, "I:VIX", got.Ticker)
	assert.Equal(t, 15, got.Multiplier)
	assert.Equal(t, models.Minute, got.Timespan)
}

func TestPolygonProvider_IteratorError(t *testing.T) {
	p := &PolygonProvider{listAggs: func(context.Context, *models.ListAggsParams) aggsIterator {
		return &fakeAggs{err: errors.New("NOT_AUTHORIZED")}
	}}
	_, err := p.GetBars(context.Background(), BarRequest{Ticker: "I:SPX", Interval: Interval{N: 15, Unit: UnitMinute}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I:SPX")
}

func stubProvider(name string, calls *[]string) BarProvider {
	return ProviderFunc(func(_ context.Context, req BarRequest) ([]Bar, error) {
		*calls = append(*calls, name+":"+req.Ticker)
		return nil, nil
	})
}

func TestRouter_LongestPrefixWins(t *testing.T) {
	var calls []string
	r := NewRouter(stubProvider("alpaca", &calls)).
		Route("I:", stubProvider("polygon", &calls)).
		Route("I:VIX", stubProvider("vix", &calls))

	ctx := context.Background()
	for _, ticker := range []string{"AAPL", "I:SPX", "I:VIX"} {
		_, err := r.GetBars(ctx, BarRequest{Ticker: ticker})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"alpaca:AAPL", "polygon:I:SPX", "vix:I:VIX"}, calls)
}

func TestRouter_SuffixRoutes(t *testing.T) {
	var calls []string
	r := NewRouter(stubProvider("alpaca", &calls)).
		Route("I:", stubProvider("polygon", &calls)).
		RouteSuffix(".DE", stubProvider("xetra", &calls))

	ctx := context.Background()
	for _, ticker := range []string{"SAP.DE", "MUV2.DE", "AAPL", "I:DAX", "DE"} {
		_, err := r.GetBars(ctx, BarRequest{Ticker: ticker})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"xetra:SAP.DE", "xetra:MUV2.DE", "alpaca:AAPL", "polygon:I:DAX", "alpaca:DE"}, calls)
}

func TestRouter_NoProvider(t *testing.T) {
	r := NewRouter(nil)
	_, err := r.GetBars(context.Background(), BarRequest{Ticker: "AAPL"})
	assert.ErrorIs(t, err, ErrFeedDown)
}

func TestGuardedProvider_OpensAfterFailures(t *testing.T) {
	calls := 0
	failing := ProviderFunc(func(context.Context, BarRequest) ([]Bar, error) {
		calls++
		return nil, errors.New("timeout")
	})
	g := NewGuardedProvider(failing, GuardSettings{Name: "alpaca", MaxFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	_, err := g.GetBars(ctx, BarRequest{Ticker: "AAPL"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrFeedDown)
	_, _ = g.GetBars(ctx, BarRequest{Ticker: "AAPL"})
	assert.True(t, g.Open())

	_, err = g.GetBars(ctx, BarRequest{Ticker: "AAPL"})
	assert.ErrorIs(t, err, ErrFeedDown)
	assert.Equal(t, 2, calls)
}

func TestGuardedProvider_PassesBarsThrough(t *testing.T) {
	want := []Bar{{Close: 1}, {Close: 2}}
	ok := ProviderFunc(func(context.Context, BarRequest) ([]Bar, error) { return want, nil })
	g := NewGuardedProvider(ok, GuardSettings{Name: "polygon", RequestsPerSecond: 100, Burst: 10})

	bars, err := g.GetBars(context.Background(), BarRequest{Ticker: "I:VIX"})
	require.NoError(t, err)
	assert.Equal(t, want, bars)
	assert.False(t, g.Open())
}

func TestGuardedProvider_CancelledContext(t *testing.T) {
	ok := ProviderFunc(func(context.Context, BarRequest) ([]Bar, error) { return nil, nil })
	g := NewGuardedProvider(ok, GuardSettings{Name: "polygon", RequestsPerSecond: 0.001, Burst: 1})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := g.GetBars(ctx, BarRequest{})
	require.NoError(t, err)
	cancel()
	_, err = g.GetBars(ctx, BarRequest{})
	assert.Error(t, err)
}
