package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Env holds secrets and runtime overrides that never live in config.yaml.
type Env struct {
	AlpacaKey    string  `envconfig:"ALPACA_API_KEY"`
	AlpacaSecret string  `envconfig:"ALPACA_API_SECRET"`
	PolygonKey   string  `envconfig:"POLYGON_API_KEY"`
	JWTSecret    string  `envconfig:"JWT_SECRET_KEY"`
	AdminPass    string  `envconfig:"ADMIN_PASSWORD"`
	DatabaseURL  string  `envconfig:"DATABASE_URL"`
	Capital      float64 `envconfig:"CAPITAL"`
	LogLevel     string  `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat    string  `envconfig:"LOG_FORMAT" default:"text"`
	HTTPAddr     string  `envconfig:"HTTP_ADDR" default:":8080"`

	// API background polling; disabled when ScanWatchlists is empty.
	ScanWatchlists []string      `envconfig:"SCAN_WATCHLISTS"`
	ScanInterval   time.Duration `envconfig:"SCAN_INTERVAL" default:"15m"`
}

// LoadEnv reads .env files when present and then the process environment.
func LoadEnv(files ...string) (*Env, error) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	if len(files) == 0 {
		_ = godotenv.Load()
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Apply copies env overrides onto the loaded config.
func (e *Env) Apply(cfg *Config) {
	if e.Capital > 0 {
		cfg.Global.Capital = e.Capital
	}
}
