package internal

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/fazecat/hpsscanner/Internal/handlers/monitoring"
	"github.com/fazecat/hpsscanner/Internal/utils/formatting"
	"github.com/fazecat/hpsscanner/Internal/utils/scanner"
)

const tokenTTL = 12 * time.Hour

type API struct {
	Scanner       *scanner.Scanner
	JWTManager    *JWTManager
	AdminPassword string
	Events        *EventFeed
}

// Router mounts every endpoint. Scan triggers and reset need a bearer token.
func (api *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", api.HandleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/scan", api.HandleGetScan)
		r.Get("/signals", api.HandleGetSignals)
		r.Get("/golden", api.HandleGetGolden)
		r.Get("/summary", api.HandleGetSummary)
		r.Get("/watchlists", api.HandleGetWatchlists)
		r.Get("/events", api.HandleGetEvents)
		r.Post("/token", api.HandleGenerateToken)

		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(api.JWTManager))
			r.Post("/scan", api.HandleRunScan)
			r.Post("/reset", api.HandleReset)
		})
	})
	return r
}

func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"scanning": api.Scanner.Running(),
		"since":    api.Scanner.Store().Since(),
	})
}

func (api *API) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	report := api.Scanner.Last()
	if report == nil {
		WriteError(w, http.StatusNotFound, "No scan has completed yet")
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (api *API) HandleRunScan(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("watchlist")
	if name == "" {
		WriteError(w, http.StatusBadRequest, "watchlist query parameter is required")
		return
	}
	if _, err := api.Scanner.Config().Watchlist(name); err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	report, err := api.Scanner.PerformScan(r.Context(), name)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, report)
	case errors.Is(err, scanner.ErrScanInProgress):
		WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scanner.ErrFeedUnavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		WriteError(w, http.StatusRequestTimeout, err.Error())
	default:
		log.WithError(err).WithField("watchlist", name).Error("scan failed")
		WriteError(w, http.StatusInternalServerError, "Scan failed")
	}
}

func (api *API) HandleGetSignals(w http.ResponseWriter, r *http.Request) {
	signals := api.Scanner.Store().Signals()

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="signals.csv"`)
		if err := formatting.WriteSignalCSV(w, signals); err != nil {
			log.WithError(err).Warn("failed to write signal csv")
		}
		return
	}
	if signals == nil {
		signals = []monitoring.SignalRecord{}
	}
	WriteJSON(w, http.StatusOK, signals)
}

func (api *API) HandleGetGolden(w http.ResponseWriter, r *http.Request) {
	store := api.Scanner.Store()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": store.Golden(),
		"summary": store.Summarize(),
	})
}

func (api *API) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, api.Scanner.Store().Summarize())
}

type watchlistView struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Market    string   `json:"market"`
	Benchmark string   `json:"benchmark"`
	Tickers   []string `json:"tickers"`
}

func (api *API) HandleGetWatchlists(w http.ResponseWriter, r *http.Request) {
	cfg := api.Scanner.Config()
	out := make([]watchlistView, 0, len(cfg.Watchlists))
	for _, name := range cfg.WatchlistNames() {
		wl := cfg.Watchlists[name]
		out = append(out, watchlistView{
			Name:      name,
			Label:     wl.Label,
			Market:    wl.Market,
			Benchmark: wl.Benchmark,
			Tickers:   wl.Tickers,
		})
	}
	WriteJSON(w, http.StatusOK, out)
}

func (api *API) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	if api.Events == nil {
		WriteJSON(w, http.StatusOK, []scanner.Event{})
		return
	}
	WriteJSON(w, http.StatusOK, api.Events.Recent())
}

func (api *API) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := api.Scanner.Reset(); err != nil {
		if errors.Is(err, scanner.ErrScanInProgress) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if api.Events != nil {
		api.Events.Clear()
	}
	log.WithField("operator", OperatorFrom(r.Context())).Info("tracker state reset via api")
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type tokenRequest struct {
	Operator string `json:"operator"`
	Password string `json:"password"`
}

func (api *API) HandleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Operator == "" {
		WriteError(w, http.StatusBadRequest, "operator is required")
		return
	}
	if api.AdminPassword == "" ||
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(api.AdminPassword)) != 1 {
		WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := api.JWTManager.GenerateToken(req.Operator, tokenTTL)
	if err != nil {
		log.WithError(err).Error("token generation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
	})
}
