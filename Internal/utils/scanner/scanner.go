package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	datafeed "github.com/fazecat/hpsscanner/Internal/database"
	"github.com/fazecat/hpsscanner/Internal/handlers/monitoring"
	"github.com/fazecat/hpsscanner/Internal/handlers/risk"
	"github.com/fazecat/hpsscanner/Internal/metrics"
	"github.com/fazecat/hpsscanner/Internal/strategy/detection"
	"github.com/fazecat/hpsscanner/Internal/types"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
	"github.com/fazecat/hpsscanner/Internal/utils/scoring"
	"github.com/fazecat/hpsscanner/Internal/utils/timegate"
)

var (
	ErrScanInProgress  = errors.New("scan already in progress")
	ErrFeedUnavailable = errors.New("market data feed unavailable")
)

// WatchlistSource overrides the configured ticker list of a watchlist when it returns one.
type WatchlistSource interface {
	Tickers(ctx context.Context, name string) ([]string, error)
}

// Row is one ranked line of a scan report.
type Row struct {
	Result   types.ScoreResult              `json:"result"`
	Name     string                         `json:"name"`
	Category string                         `json:"category"`
	Signal   *monitoring.SignalRecord       `json:"signal,omitempty"`
	Golden   *monitoring.GoldenWindowRecord `json:"golden,omitempty"`
	Sizing   risk.Sizing                    `json:"sizing"`
}

type Report struct {
	CycleID    uuid.UUID           `json:"cycle_id"`
	Watchlist  string              `json:"watchlist"`
	Label      string              `json:"label"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Context    types.MarketContext `json:"market"`
	InSession  bool                `json:"in_session"`
	Rows       []Row               `json:"rows"`
	Skipped    []TickerError       `json:"skipped"`
}

type Options struct {
	Config     *config.Config
	Provider   datafeed.BarProvider
	Store      *monitoring.Store
	Bus        EventBus.Bus
	Watchlists WatchlistSource
	Now        func() time.Time
}

// Scanner runs poll cycles over a watchlist and feeds the trackers.
type Scanner struct {
	cfg        *config.Config
	provider   datafeed.BarProvider
	store      *monitoring.Store
	signals    *monitoring.SignalTracker
	golden     map[string]*monitoring.GoldenWindowTracker
	profiles   map[string]timegate.Profile
	sizer      risk.Sizer
	params     detection.Params
	interval   datafeed.Interval
	bus        EventBus.Bus
	watchlists WatchlistSource
	now        func() time.Time

	cycle sync.Mutex

	lastMu sync.RWMutex
	last   *Report
}

func New(opts Options) (*Scanner, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("scanner: config is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("scanner: bar provider is required")
	}

	interval, err := datafeed.ParseInterval(cfg.Global.BarInterval)
	if err != nil {
		return nil, fmt.Errorf("global.bar_interval: %w", err)
	}

	store := opts.Store
	if store == nil {
		store = monitoring.NewStore()
	}
	bus := opts.Bus
	if bus == nil {
		bus = EventBus.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	threshold := cfg.Scoring.SignalThreshold
	s := &Scanner{
		cfg:        cfg,
		provider:   opts.Provider,
		store:      store,
		signals:    monitoring.NewSignalTracker(store, threshold),
		golden:     make(map[string]*monitoring.GoldenWindowTracker),
		profiles:   make(map[string]timegate.Profile),
		sizer:      risk.NewSizer(cfg.Global.SizingFallbackPercent),
		params:     detection.ParamsFromConfig(cfg.Scoring),
		interval:   interval,
		bus:        bus,
		watchlists: opts.Watchlists,
		now:        now,
	}

	for market := range cfg.Markets {
		profile, err := cfg.Profile(market)
		if err != nil {
			return nil, err
		}
		window, err := cfg.GoldenWindow(market)
		if err != nil {
			return nil, err
		}
		s.profiles[market] = profile
		s.golden[market] = monitoring.NewGoldenWindowTracker(store, market+" "+window.String(), window, profile.Location, threshold)
	}
	return s, nil
}

func (s *Scanner) Store() *monitoring.Store { return s.store }

func (s *Scanner) Bus() EventBus.Bus { return s.bus }

func (s *Scanner) Config() *config.Config { return s.cfg }

// Last returns the most recent successful report, or nil.
func (s *Scanner) Last() *Report {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// Running reports whether a scan cycle holds the scanner right now.
func (s *Scanner) Running() bool {
	if s.cycle.TryLock() {
		s.cycle.Unlock()
		return false
	}
	return true
}

// Reset clears the day's tracker state. It is refused while a scan runs.
func (s *Scanner) Reset() error {
	if !s.cycle.TryLock() {
		return ErrScanInProgress
	}
	defer s.cycle.Unlock()

	s.store.Reset()
	s.lastMu.Lock()
	s.last = nil
	s.lastMu.Unlock()

	log.Info("tracker state reset")
	return nil
}

// PerformScan runs one poll cycle over the named watchlist.
func (s *Scanner) PerformScan(ctx context.Context, name string) (*Report, error) {
	if !s.cycle.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.cycle.Unlock()

	start := time.Now()
	report, err := s.scan(ctx, name)
	metrics.ScanDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.Scans.WithLabelValues(name, "ok").Inc()
	case errors.Is(err, ErrFeedUnavailable):
		metrics.Scans.WithLabelValues(name, "feed_unavailable").Inc()
	default:
		metrics.Scans.WithLabelValues(name, "error").Inc()
	}
	if err != nil {
		return nil, err
	}

	s.lastMu.Lock()
	s.last = report
	s.lastMu.Unlock()
	return report, nil
}

func (s *Scanner) scan(ctx context.Context, name string) (*Report, error) {
	wl, err := s.cfg.Watchlist(name)
	if err != nil {
		return nil, err
	}
	profile, ok := s.profiles[wl.Market]
	if !ok {
		return nil, fmt.Errorf("watchlist %s: unknown market %q", name, wl.Market)
	}
	golden := s.golden[wl.Market]
	tickers := s.tickers(ctx, name, wl)

	now := s.now()
	report := &Report{
		CycleID:   uuid.New(),
		Watchlist: name,
		Label:     wl.Label,
		StartedAt: now,
		InSession: profile.InSession(now),
	}
	logger := log.WithFields(log.Fields{"cycle": report.CycleID.String(), "watchlist": name})

	mkt, err := s.marketContext(ctx, wl.Benchmark, now)
	if err != nil {
		logger.WithError(err).Error("market context unavailable")
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	report.Context = mkt
	metrics.VIX.Set(mkt.VIX)

	feedFailures := 0
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, terr := s.scoreTicker(ctx, ticker, profile, golden, mkt, now)
		if terr != nil {
			if terr.Kind == KindDataUnavailable {
				feedFailures++
			}
			metrics.TickerSkips.WithLabelValues(string(terr.Kind)).Inc()
			logger.WithFields(log.Fields{"ticker": ticker, "kind": terr.Kind}).Warn(terr.Err)
			report.Skipped = append(report.Skipped, *terr)
			continue
		}
		metrics.TickerScore.WithLabelValues(name, ticker).Set(float64(row.Result.Score))
		report.Rows = append(report.Rows, row)
	}

	if len(tickers) > 0 && feedFailures == len(tickers) {
		return nil, fmt.Errorf("%w: every ticker of %s failed to load", ErrFeedUnavailable, name)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].Result.Score > report.Rows[j].Result.Score
	})
	report.FinishedAt = s.now()

	logger.WithFields(log.Fields{
		"rows":    len(report.Rows),
		"skipped": len(report.Skipped),
		"vix":     mkt.VIX,
	}).Info("scan complete")
	return report, nil
}

func (s *Scanner) tickers(ctx context.Context, name string, wl config.WatchlistConfig) []string {
	if s.watchlists == nil {
		return wl.Tickers
	}
	stored, err := s.watchlists.Tickers(ctx, name)
	if err != nil {
		log.WithError(err).WithField("watchlist", name).Warn("falling back to configured tickers")
		return wl.Tickers
	}
	if len(stored) == 0 {
		return wl.Tickers
	}
	return stored
}

func (s *Scanner) fetch(ctx context.Context, ticker string, now time.Time) ([]types.Bar, error) {
	return s.provider.GetBars(ctx, datafeed.BarRequest{
		Ticker:   ticker,
		Interval: s.interval,
		Start:    now.Add(-s.cfg.Lookback()),
		End:      now,
	})
}

func (s *Scanner) marketContext(ctx context.Context, benchmark string, now time.Time) (types.MarketContext, error) {
	vixBars, err := s.fetch(ctx, s.cfg.Global.VIXTicker, now)
	if err != nil {
		return types.MarketContext{}, fmt.Errorf("vix: %w", err)
	}
	vix, err := scoring.LastClose(vixBars)
	if err != nil {
		return types.MarketContext{}, fmt.Errorf("vix: %w", err)
	}

	benchBars, err := s.fetch(ctx, benchmark, now)
	if err != nil {
		return types.MarketContext{}, fmt.Errorf("benchmark %s: %w", benchmark, err)
	}
	ret, err := scoring.BenchmarkReturn(benchBars)
	if err != nil {
		return types.MarketContext{}, fmt.Errorf("benchmark %s: %w", benchmark, err)
	}

	return types.MarketContext{
		VIX:             vix,
		Benchmark:       benchmark,
		BenchmarkReturn: ret,
		AsOf:            now,
	}, nil
}

// scoreTicker runs one ticker through scoring, both trackers and sizing. Tracker state
// is only written once the ticker scored successfully.
func (s *Scanner) scoreTicker(ctx context.Context, ticker string, profile timegate.Profile,
	golden *monitoring.GoldenWindowTracker, mkt types.MarketContext, now time.Time) (Row, *TickerError) {

	bars, err := s.fetch(ctx, ticker, now)
	if err != nil {
		return Row{}, newTickerError(ticker, KindDataUnavailable, err)
	}

	res, err := s.score(ticker, bars, profile, mkt, profile.InSession(now))
	if err != nil {
		return Row{}, classify(ticker, err)
	}

	s.publish(s.signals.Update(ticker, res, now), ticker, res, now)

	if golden != nil {
		s.publish(golden.Update(ticker, res, now), ticker, res, now)
		if golden.NeedsRecovery(ticker, now) {
			history := s.recoveryHistory(ticker, bars, profile, golden, mkt, now)
			s.publish(golden.Recover(ticker, bars, res.Price, history, now), ticker, res, now)
		}
	}

	row := Row{
		Result:   res,
		Name:     s.cfg.DisplayName(ticker),
		Category: scoring.ScoreCategory(res.Score),
		Sizing:   s.sizer.SizeResult(s.cfg.Global.Capital, s.cfg.Global.RiskFraction, res),
	}
	if rec, ok := s.store.Signal(ticker); ok {
		row.Signal = &rec
	}
	if rec, ok := s.store.GoldenRecord(ticker); ok {
		row.Golden = &rec
	}
	return row, nil
}

func (s *Scanner) score(ticker string, bars []types.Bar, profile timegate.Profile, mkt types.MarketContext, inSession bool) (types.ScoreResult, error) {
	snap, err := scoring.BuildSnapshot(ticker, bars, profile.Location)
	if err != nil {
		return types.ScoreResult{}, err
	}
	return detection.Score(snap, mkt, inSession, s.params)
}

// recoveryHistory scores the bar series as it stood at each checkpoint of the day's golden
// window. Checkpoints without enough history are left out.
func (s *Scanner) recoveryHistory(ticker string, bars []types.Bar, profile timegate.Profile,
	golden *monitoring.GoldenWindowTracker, mkt types.MarketContext, now time.Time) []monitoring.Checkpoint {

	var history []monitoring.Checkpoint
	for _, mark := range golden.Checkpoints(now) {
		res, err := s.score(ticker, scoring.Until(bars, mark), profile, mkt, profile.InSession(mark))
		if err != nil {
			continue
		}
		history = append(history, monitoring.Checkpoint{Label: monitoring.LabelFor(mark), Score: res.Score})
	}
	return history
}
