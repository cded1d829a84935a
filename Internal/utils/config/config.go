package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fazecat/hpsscanner/Internal/utils/timegate"
)

type Config struct {
	Global struct {
		Timezone              string  `yaml:"timezone"`
		Capital               float64 `yaml:"capital"`
		RiskFraction          float64 `yaml:"risk_fraction"`
		SizingFallbackPercent float64 `yaml:"sizing_fallback_fraction"`
		BarInterval           string  `yaml:"bar_interval"`
		LookbackDays          int     `yaml:"lookback_days"`
		VIXTicker             string  `yaml:"vix_ticker"`
	} `yaml:"global"`

	Scoring ScoringConfig `yaml:"scoring"`

	Feed FeedConfig `yaml:"feed"`

	Markets map[string]MarketConfig `yaml:"markets"`

	Watchlists map[string]WatchlistConfig `yaml:"watchlists"`

	// Names maps tickers to display names.
	Names map[string]string `yaml:"names"`
}

type ScoringConfig struct {
	SignalThreshold     int      `yaml:"signal_threshold"`
	VIXGate             float64  `yaml:"vix_gate"`
	SmartMoneyThreshold float64  `yaml:"smart_money_threshold"`
	RewardRisk          float64  `yaml:"reward_risk"`
	RSXVariant          string   `yaml:"rsx_variant"` // strict | simple
	MomentumFloor       *float64 `yaml:"momentum_floor"`
	StopBasis           string   `yaml:"stop_basis"`     // day_low | previous_bar
	MaxBarReturn        *float64 `yaml:"max_bar_return"` // 0 disables the outlier check
}

type FeedConfig struct {
	AlpacaFeed        string            `yaml:"alpaca_feed"`
	RequestsPerSecond float64           `yaml:"requests_per_second"`
	Burst             int               `yaml:"burst"`
	BreakerFailures   uint32            `yaml:"breaker_failures"`
	BreakerTimeout    time.Duration     `yaml:"breaker_timeout"`
	Routes            map[string]string `yaml:"routes"` // ticker prefix -> provider name
}

type SessionConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type MarketConfig struct {
	Timezone     string          `yaml:"timezone"`
	Sessions     []SessionConfig `yaml:"sessions"`
	GoldenWindow SessionConfig   `yaml:"golden_window"`
}

type WatchlistConfig struct {
	Label     string   `yaml:"label"`
	Market    string   `yaml:"market"`
	Benchmark string   `yaml:"benchmark"`
	Tickers   []string `yaml:"tickers"`
}

func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFile(path)
}

// ConfigPath locates config.yaml. SCANNER_CONFIG wins over the search paths.
func ConfigPath() (string, error) {
	if path := os.Getenv("SCANNER_CONFIG"); path != "" {
		return path, nil
	}

	// Resolve path relative to this file first
	_, filePath, _, ok := runtime.Caller(0)
	var basePath string
	if ok {
		basePath = filepath.Dir(filePath)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	possiblePaths := []string{}
	if basePath != "" {
		possiblePaths = append(possiblePaths, filepath.Join(basePath, "config.yaml"))
	}
	possiblePaths = append(possiblePaths,
		filepath.Join(cwd, "Internal", "utils", "config", "config.yaml"),
		"config.yaml",
	)

	for _, path := range possiblePaths {
		if _, statErr := os.Stat(path); statErr == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("config.yaml not found in %v", possiblePaths)
}

func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	if c.Global.Timezone == "" {
		c.Global.Timezone = "Europe/Berlin"
	}
	if c.Global.Capital == 0 {
		c.Global.Capital = 3836.29
	}
	if c.Global.RiskFraction == 0 {
		c.Global.RiskFraction = 0.01
	}
	if c.Global.SizingFallbackPercent == 0 {
		c.Global.SizingFallbackPercent = 0.01
	}
	if c.Global.BarInterval == "" {
		c.Global.BarInterval = "15Min"
	}
	if c.Global.LookbackDays == 0 {
		c.Global.LookbackDays = 4
	}
	if c.Global.VIXTicker == "" {
		c.Global.VIXTicker = "I:VIX"
	}

	s := &c.Scoring
	if s.SignalThreshold == 0 {
		s.SignalThreshold = 80
	}
	if s.VIXGate == 0 {
		s.VIXGate = 22.5
	}
	if s.SmartMoneyThreshold == 0 {
		s.SmartMoneyThreshold = 0.72
	}
	if s.RewardRisk == 0 {
		s.RewardRisk = 2.0
	}
	if s.RSXVariant == "" {
		s.RSXVariant = "strict"
	}
	// Pointers so an explicit 0 survives defaulting.
	if s.MomentumFloor == nil {
		s.MomentumFloor = float64Ptr(-0.1)
	}
	if s.StopBasis == "" {
		s.StopBasis = "day_low"
	}
	if s.MaxBarReturn == nil {
		s.MaxBarReturn = float64Ptr(0.10)
	}

	f := &c.Feed
	if f.AlpacaFeed == "" {
		f.AlpacaFeed = "iex"
	}
	if f.RequestsPerSecond == 0 {
		f.RequestsPerSecond = 3
	}
	if f.Burst == 0 {
		f.Burst = 5
	}
	if f.BreakerFailures == 0 {
		f.BreakerFailures = 5
	}
	if f.BreakerTimeout == 0 {
		f.BreakerTimeout = 30 * time.Second
	}
	if f.Routes == nil {
		f.Routes = map[string]string{"I:": "polygon"}
	}
}

func float64Ptr(v float64) *float64 { return &v }

func (c *Config) Validate() error {
	switch c.Scoring.RSXVariant {
	case "strict", "simple":
	default:
		return fmt.Errorf("scoring.rsx_variant must be strict or simple, got %q", c.Scoring.RSXVariant)
	}
	switch c.Scoring.StopBasis {
	case "day_low", "previous_bar":
	default:
		return fmt.Errorf("scoring.stop_basis must be day_low or previous_bar, got %q", c.Scoring.StopBasis)
	}
	if m := c.Scoring.MaxBarReturn; m != nil && *m < 0 {
		return fmt.Errorf("scoring.max_bar_return must be >= 0, got %v", *m)
	}
	if c.Global.RiskFraction <= 0 || c.Global.RiskFraction >= 1 {
		return fmt.Errorf("global.risk_fraction must be in (0,1), got %v", c.Global.RiskFraction)
	}
	if _, err := time.LoadLocation(c.Global.Timezone); err != nil {
		return fmt.Errorf("global.timezone: %w", err)
	}
	for name := range c.Markets {
		if _, err := c.Profile(name); err != nil {
			return err
		}
		if _, err := c.GoldenWindow(name); err != nil {
			return err
		}
	}
	for name, wl := range c.Watchlists {
		if _, ok := c.Markets[wl.Market]; !ok {
			return fmt.Errorf("watchlist %s: unknown market %q", name, wl.Market)
		}
		if wl.Benchmark == "" {
			return fmt.Errorf("watchlist %s: benchmark is required", name)
		}
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Global.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) marketLocation(m MarketConfig) (*time.Location, error) {
	if m.Timezone == "" {
		return c.Location(), nil
	}
	return time.LoadLocation(m.Timezone)
}

// Profile builds the session profile of a market.
func (c *Config) Profile(market string) (timegate.Profile, error) {
	m, ok := c.Markets[market]
	if !ok {
		return timegate.Profile{}, fmt.Errorf("unknown market %q", market)
	}
	loc, err := c.marketLocation(m)
	if err != nil {
		return timegate.Profile{}, fmt.Errorf("market %s: %w", market, err)
	}
	windows := make([]timegate.Window, 0, len(m.Sessions))
	for _, s := range m.Sessions {
		w, err := timegate.NewWindow(s.Start, s.End)
		if err != nil {
			return timegate.Profile{}, fmt.Errorf("market %s: %w", market, err)
		}
		windows = append(windows, w)
	}
	return timegate.NewProfile(market, loc, windows...)
}

func (c *Config) GoldenWindow(market string) (timegate.Window, error) {
	m, ok := c.Markets[market]
	if !ok {
		return timegate.Window{}, fmt.Errorf("unknown market %q", market)
	}
	w, err := timegate.NewWindow(m.GoldenWindow.Start, m.GoldenWindow.End)
	if err != nil {
		return timegate.Window{}, fmt.Errorf("market %s golden window: %w", market, err)
	}
	return w, nil
}

func (c *Config) Watchlist(name string) (WatchlistConfig, error) {
	wl, ok := c.Watchlists[name]
	if !ok {
		return WatchlistConfig{}, fmt.Errorf("unknown watchlist %q", name)
	}
	return wl, nil
}

func (c *Config) WatchlistNames() []string {
	names := make([]string, 0, len(c.Watchlists))
	for name := range c.Watchlists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) DisplayName(ticker string) string {
	if name, ok := c.Names[ticker]; ok && name != "" {
		return name
	}
	return ticker
}

// Lookback is the bar history requested per poll.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Global.LookbackDays) * 24 * time.Hour
}
