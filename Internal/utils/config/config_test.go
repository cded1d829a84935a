package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
markets:
  us:
    sessions:
      - start: "15:30"
        end: "22:00"
    golden_window:
      start: "15:30"
      end: "15:45"
watchlists:
  sp500:
    market: us
    benchmark: "I:SPX"
    tickers: [AAPL, MSFT]
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Scoring.SignalThreshold)
	assert.Equal(t, 22.5, cfg.Scoring.VIXGate)
	assert.Equal(t, 0.72, cfg.Scoring.SmartMoneyThreshold)
	assert.Equal(t, 2.0, cfg.Scoring.RewardRisk)
	assert.Equal(t, "strict", cfg.Scoring.RSXVariant)
	assert.Equal(t, "day_low", cfg.Scoring.StopBasis)
	assert.Equal(t, 0.01, cfg.Global.RiskFraction)
	assert.Equal(t, 3836.29, cfg.Global.Capital)
	assert.Equal(t, 30*time.Second, cfg.Feed.BreakerTimeout)
	assert.Equal(t, "polygon", cfg.Feed.Routes["I:"])
	require.NotNil(t, cfg.Scoring.MomentumFloor)
	assert.Equal(t, -0.1, *cfg.Scoring.MomentumFloor)
	require.NotNil(t, cfg.Scoring.MaxBarReturn)
	assert.Equal(t, 0.10, *cfg.Scoring.MaxBarReturn)
}

func TestParse_KeepsExplicitZeros(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
scoring:
  max_bar_return: 0
  momentum_floor: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, *cfg.Scoring.MaxBarReturn)
	assert.Equal(t, 0.0, *cfg.Scoring.MomentumFloor)
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad rsx variant", minimalYAML + "scoring:\n  rsx_variant: loose\n"},
		{"bad stop basis", minimalYAML + "scoring:\n  stop_basis: open\n"},
		{"negative max bar return", minimalYAML + "scoring:\n  max_bar_return: -0.1\n"},
		{"unknown market", `
markets: {}
watchlists:
  x:
    market: nowhere
    benchmark: "I:SPX"
`},
		{"overlapping sessions", `
markets:
  m:
    sessions:
      - {start: "09:00", end: "12:00"}
      - {start: "11:00", end: "13:00"}
    golden_window: {start: "09:00", end: "09:15"}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := LoadConfigFile("config.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"dax", "nasdaq", "sp500"}, cfg.WatchlistNames())
	assert.Equal(t, "Apple", cfg.DisplayName("AAPL"))
	assert.Equal(t, "XYZ", cfg.DisplayName("XYZ"))

	xetra, err := cfg.Profile("xetra")
	require.NoError(t, err)
	assert.Len(t, xetra.Windows, 2)
	assert.Equal(t, "none", cfg.Feed.Routes["*.DE"])

	gw, err := cfg.GoldenWindow("us")
	require.NoError(t, err)
	assert.Equal(t, "15:30-15:45", gw.String())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	cfg.Global.Capital = 10000

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10000.0, loaded.Global.Capital)
	assert.Equal(t, []string{"AAPL", "MSFT"}, loaded.Watchlists["sp500"].Tickers)
}

func TestLoadEnv_AppliesCapital(t *testing.T) {
	t.Setenv("CAPITAL", "5000")
	t.Setenv("LOG_LEVEL", "debug")

	env, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "debug", env.LogLevel)
	assert.Equal(t, ":8080", env.HTTPAddr)

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	env.Apply(cfg)
	assert.Equal(t, 5000.0, cfg.Global.Capital)
}
