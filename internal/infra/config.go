// Package infra holds the ambient concerns of a run: configuration,
// logging and reconnect backoff.
package infra

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config carries everything a run needs. All values are fixed at
// construction; nothing is reloadable mid-run.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Portfolio struct {
		InitialCapital     float64 `yaml:"initial_capital"`
		BaseQuantity       int64   `yaml:"base_quantity"`
		CommissionPerShare float64 `yaml:"commission_per_share"`
	} `yaml:"portfolio"`

	Strategy struct {
		SMAWindow int `yaml:"sma_window"`
		EMAPeriod int `yaml:"ema_period"`
	} `yaml:"strategy"`

	Data struct {
		// Source selects where market rows come from: "csv" or "ws".
		Source  string `yaml:"source"`
		CSVPath string `yaml:"csv_path"`
		WSURL   string `yaml:"ws_url"`
		MaxRows int    `yaml:"max_rows"`
	} `yaml:"data"`

	Recorder struct {
		Enabled bool   `yaml:"enabled"`
		DBPath  string `yaml:"db_path"`
	} `yaml:"recorder"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns the demo parameters: 1M capital, 10-share base
// orders, one cent per share commission, SMA 20 / EMA 10.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "backtest-go"
	cfg.Portfolio.InitialCapital = 1_000_000
	cfg.Portfolio.BaseQuantity = 10
	cfg.Portfolio.CommissionPerShare = 0.01
	cfg.Strategy.SMAWindow = 20
	cfg.Strategy.EMAPeriod = 10
	cfg.Data.Source = "csv"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig reads and parses a YAML config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Portfolio.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %f", c.Portfolio.InitialCapital)
	}
	if c.Portfolio.BaseQuantity <= 0 {
		return fmt.Errorf("base quantity must be positive, got %d", c.Portfolio.BaseQuantity)
	}
	if c.Portfolio.CommissionPerShare < 0 {
		return fmt.Errorf("commission per share must be >= 0, got %f", c.Portfolio.CommissionPerShare)
	}
	if c.Strategy.SMAWindow <= 0 {
		return fmt.Errorf("SMA window must be positive, got %d", c.Strategy.SMAWindow)
	}
	if c.Strategy.EMAPeriod <= 0 {
		return fmt.Errorf("EMA period must be positive, got %d", c.Strategy.EMAPeriod)
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			return fmt.Errorf("csv_path is required for the csv source")
		}
	case "ws":
		if !hasPrefix(c.Data.WSURL, "ws://") && !hasPrefix(c.Data.WSURL, "wss://") {
			return fmt.Errorf("invalid ws_url: %q", c.Data.WSURL)
		}
	default:
		return fmt.Errorf("unknown data source: %q", c.Data.Source)
	}

	if c.Recorder.Enabled && c.Recorder.DBPath == "" {
		return fmt.Errorf("db_path is required when the recorder is enabled")
	}

	return nil
}

// overrideWithEnv lets environment variables take precedence over the
// config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("BACKTEST_CSV_PATH"); v != "" {
		cfg.Data.CSVPath = v
	}
	if v := os.Getenv("BACKTEST_WS_URL"); v != "" {
		cfg.Data.WSURL = v
	}
	if v := os.Getenv("BACKTEST_DB_PATH"); v != "" {
		cfg.Recorder.DBPath = v
	}
	if v := os.Getenv("BACKTEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BACKTEST_INITIAL_CAPITAL"); v != "" {
		if capital, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Portfolio.InitialCapital = capital
		}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}
