package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datafeed "github.com/fazecat/hpsscanner/Internal/database"
	"github.com/fazecat/hpsscanner/Internal/types"
	"github.com/fazecat/hpsscanner/Internal/utils/config"
	"github.com/fazecat/hpsscanner/Internal/utils/scanner"
)

const testConfig = `
global:
  timezone: UTC
  capital: 10000
markets:
  test:
    timezone: UTC
    sessions:
      - start: "00:00"
        end: "23:59"
    golden_window:
      start: "09:00"
      end: "09:15"
watchlists:
  demo:
    label: Demo
    market: test
    benchmark: "I:BENCH"
    tickers: [AAA, BBB]
`

var testStart = time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)

func testBars(closes ...float64) []types.Bar {
	out := make([]types.Bar, len(closes))
	for i, c := range closes {
		out[i] = types.Bar{Timestamp: testStart.Add(time.Duration(i) * 15 * time.Minute), High: c + 0.1, Low: c - 0.5, Close: c}
	}
	return out
}

func testFeed() datafeed.ProviderFunc {
	series := map[string][]types.Bar{
		"I:VIX":   testBars(15, 15, 15),
		"I:BENCH": testBars(10, 10, 10),
		"AAA":     testBars(100, 101, 102),
		"BBB":     testBars(100, 99, 98),
	}
	return func(_ context.Context, req datafeed.BarRequest) ([]datafeed.Bar, error) {
		return series[req.Ticker], nil
	}
}

func newTestAPI(t *testing.T, feed datafeed.BarProvider) (*API, http.Handler) {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	sc, err := scanner.New(scanner.Options{
		Config:   cfg,
		Provider: feed,
		Now:      func() time.Time { return testStart.Add(time.Hour) },
	})
	require.NoError(t, err)

	jm, err := NewJWTManager("test-secret")
	require.NoError(t, err)

	events := NewEventFeed(10)
	require.NoError(t, events.Attach(sc.Bus()))

	api := &API{Scanner: sc, JWTManager: jm, AdminPassword: "hunter2", Events: events}
	return api, api.Router()
}

func do(t *testing.T, h http.Handler, method, path, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func token(t *testing.T, api *API) string {
	t.Helper()
	tok, err := api.JWTManager.GenerateToken("ops", time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	_, h := newTestAPI(t, testFeed())
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)
}

func TestGetScan_BeforeFirstCycle(t *testing.T) {
	_, h := newTestAPI(t, testFeed())
	rec := do(t, h, http.MethodGet, "/api/scan", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decode(t, rec).Success)
}

func TestRunScan_RequiresToken(t *testing.T) {
	_, h := newTestAPI(t, testFeed())

	rec := do(t, h, http.MethodPost, "/api/scan?watchlist=demo", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/scan?watchlist=demo", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunScan_Flow(t *testing.T) {
	api, h := newTestAPI(t, testFeed())
	tok := token(t, api)

	rec := do(t, h, http.MethodPost, "/api/scan?watchlist=demo", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var scanResp struct {
		Data scanner.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scanResp))
	require.Len(t, scanResp.Data.Rows, 2)
	assert.Equal(t, "AAA", scanResp.Data.Rows[0].Result.Ticker)

	rec = do(t, h, http.MethodGet, "/api/scan", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/signals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ticker":"AAA"`)

	rec = do(t, h, http.MethodGet, "/api/signals?format=csv", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ticker,signal_time"))
	assert.Contains(t, rec.Body.String(), "AAA")

	rec = do(t, h, http.MethodGet, "/api/golden", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recovered":true`)

	rec = do(t, h, http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "signal:fired")

	rec = do(t, h, http.MethodPost, "/api/reset", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, api.Scanner.Store().Empty())
	assert.Empty(t, api.Events.Recent())

	rec = do(t, h, http.MethodGet, "/api/signals", "", nil)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestRunScan_UnknownWatchlist(t *testing.T) {
	api, h := newTestAPI(t, testFeed())
	rec := do(t, h, http.MethodPost, "/api/scan?watchlist=ftse", token(t, api), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/scan", token(t, api), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunScan_FeedUnavailable(t *testing.T) {
	failing := datafeed.ProviderFunc(func(context.Context, datafeed.BarRequest) ([]datafeed.Bar, error) {
		return nil, datafeed.ErrFeedDown
	})
	api, h := newTestAPI(t, failing)
	rec := do(t, h, http.MethodPost, "/api/scan?watchlist=demo", token(t, api), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReset_ConflictWhileScanning(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	inner := testFeed()
	blocking := datafeed.ProviderFunc(func(ctx context.Context, req datafeed.BarRequest) ([]datafeed.Bar, error) {
		once.Do(func() {
			close(entered)
			<-release
		})
		return inner(ctx, req)
	})

	api, h := newTestAPI(t, blocking)
	tok := token(t, api)

	done := make(chan int, 1)
	go func() {
		done <- do(t, h, http.MethodPost, "/api/scan?watchlist=demo", tok, nil).Code
	}()
	<-entered

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/reset", tok, nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/scan?watchlist=demo", tok, nil).Code)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/reset", tok, nil).Code)
}

func TestGenerateToken(t *testing.T) {
	api, h := newTestAPI(t, testFeed())

	rec := do(t, h, http.MethodPost, "/api/token", "", []byte(`{"operator":"ops","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/token", "", []byte(`{"password":"hunter2"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/token", "", []byte(`{"operator":"ops","password":"hunter2"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := api.JWTManager.ValidateToken(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
}

func TestJWTManager(t *testing.T) {
	_, err := NewJWTManager("")
	assert.ErrorIs(t, err, ErrNoSecret)

	jm, err := NewJWTManager("a")
	require.NoError(t, err)
	other, err := NewJWTManager("b")
	require.NoError(t, err)

	tok, err := jm.GenerateToken("ops", time.Hour)
	require.NoError(t, err)
	_, err = other.ValidateToken(tok)
	assert.Error(t, err)

	expired, err := jm.GenerateToken("ops", -time.Minute)
	require.NoError(t, err)
	_, err = jm.ValidateToken(expired)
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	api, h := newTestAPI(t, testFeed())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/scan?watchlist=demo", token(t, api), nil).Code)

	rec := do(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hps_scans_total")
	assert.Contains(t, rec.Body.String(), "hps_vix_level")
}

func TestCors_Preflight(t *testing.T) {
	_, h := newTestAPI(t, testFeed())
	rec := do(t, h, http.MethodOptions, "/api/reset", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
