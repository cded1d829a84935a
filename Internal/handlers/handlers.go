package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	datafeed "github.com/fazecat/hpsscanner/Internal/database"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
	"github.com/fazecat/hpsscanner/Internal/utils/formatting"
	"github.com/fazecat/hpsscanner/Internal/utils/scanner"
)

// App is everything a front end (CLI or API) needs to drive scans.
type App struct {
	Config     *config.Config
	Env        *config.Env
	Scanner    *scanner.Scanner
	Watchlists *datafeed.WatchlistStore
}

func (a *App) Close() {
	if a.Watchlists != nil {
		if err := a.Watchlists.Close(); err != nil {
			log.WithError(err).Warn("closing watchlist database")
		}
	}
}

func unavailable(reason string) datafeed.BarProvider {
	return datafeed.ProviderFunc(func(context.Context, datafeed.BarRequest) ([]datafeed.Bar, error) {
		return nil, fmt.Errorf("%s: %w", reason, datafeed.ErrFeedDown)
	})
}

func guard(name string, p datafeed.BarProvider, f config.FeedConfig) datafeed.BarProvider {
	return datafeed.NewGuardedProvider(p, datafeed.GuardSettings{
		Name:              name,
		RequestsPerSecond: f.RequestsPerSecond,
		Burst:             f.Burst,
		MaxFailures:       f.BreakerFailures,
		OpenTimeout:       f.BreakerTimeout,
	})
}

// BuildProvider wires the Alpaca and Polygon feeds behind the ticker router. A feed whose
// keys are missing is replaced by one that always reports the feed as down. Route keys
// starting with "*" match a ticker suffix; the "none" provider marks exchanges no
// configured feed serves.
func BuildProvider(cfg *config.Config, env *config.Env) datafeed.BarProvider {
	providers := map[string]datafeed.BarProvider{
		"none": unavailable("no configured feed serves this exchange"),
	}

	if p, err := datafeed.NewAlpacaProvider(env.AlpacaKey, env.AlpacaSecret, cfg.Feed.AlpacaFeed); err != nil {
		log.WithError(err).Warn("alpaca feed disabled")
		providers["alpaca"] = unavailable("alpaca")
	} else {
		providers["alpaca"] = guard("alpaca", p, cfg.Feed)
	}

	if p, err := datafeed.NewPolygonProvider(env.PolygonKey); err != nil {
		log.WithError(err).Warn("polygon feed disabled")
		providers["polygon"] = unavailable("polygon")
	} else {
		providers["polygon"] = guard("polygon", p, cfg.Feed)
	}

	router := datafeed.NewRouter(providers["alpaca"])
	for pattern, name := range cfg.Feed.Routes {
		p, ok := providers[name]
		if !ok {
			log.WithFields(log.Fields{"route": pattern, "provider": name}).Warn("unknown feed in routes")
			continue
		}
		if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
			router.RouteSuffix(suffix, p)
			continue
		}
		router.Route(pattern, p)
	}
	return router
}

// Bootstrap builds the scanner from config and environment. The postgres watchlist
// source is only used when DATABASE_URL is set.
func Bootstrap(ctx context.Context, cfg *config.Config, env *config.Env) (*App, error) {
	env.Apply(cfg)

	app := &App{Config: cfg, Env: env}

	var source scanner.WatchlistSource
	if env.DatabaseURL != "" {
		store, err := datafeed.OpenWatchlistStore(ctx, env.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.Watchlists = store
		source = store
	}

	sc, err := scanner.New(scanner.Options{
		Config:     cfg,
		Provider:   BuildProvider(cfg, env),
		Watchlists: source,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Scanner = sc
	return app, nil
}

// HandleScan runs one cycle and prints the ranked table, the signal log and the golden panel.
func HandleScan(ctx context.Context, sc *scanner.Scanner, name string, w io.Writer) error {
	report, err := sc.PerformScan(ctx, name)
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	formatting.RenderReport(w, report, sc.Config().Location())
	HandleDisplayTrackers(sc, w)
	return nil
}

// HandleDisplayTrackers prints the signal log and the golden panel, marking open
// signals against the prices of the last completed cycle.
func HandleDisplayTrackers(sc *scanner.Scanner, w io.Writer) {
	loc := sc.Config().Location()
	current := map[string]float64{}
	if last := sc.Last(); last != nil {
		for _, row := range last.Rows {
			current[row.Result.Ticker] = row.Result.Price
		}
	}

	store := sc.Store()
	fmt.Fprintln(w, "\nSignal log")
	formatting.RenderSignalLog(w, store.Signals(), current, loc)
	fmt.Fprintln(w, "\nGolden window")
	formatting.RenderGolden(w, store.Golden(), store.Summarize(), loc)
}

// StartBackgroundScanner polls the watchlists every interval until ctx is done.
// A cycle still running when the next tick fires is skipped, not queued.
func StartBackgroundScanner(ctx context.Context, sc *scanner.Scanner, names []string, interval time.Duration, w io.Writer) {
	log.WithField("interval", interval.String()).Info("background scanner started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scanAll := func() {
		for _, name := range names {
			var err error
			if w != nil {
				err = HandleScan(ctx, sc, name, w)
			} else {
				_, err = sc.PerformScan(ctx, name)
			}
			switch {
			case err == nil:
			case errors.Is(err, scanner.ErrScanInProgress):
				log.WithField("watchlist", name).Info("previous scan still running, skipping tick")
			default:
				log.WithError(err).WithField("watchlist", name).Error("background scan failed")
			}
		}
	}

	scanAll()
	for {
		select {
		case <-ctx.Done():
			log.Info("background scanner stopped")
			return
		case <-ticker.C:
			scanAll()
		}
	}
}
