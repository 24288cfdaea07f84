// Package config loads stockbar settings from defaults, an optional config
// file and STOCKBAR_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"stockbar/internal/marketclock"
)

// EnvPrefix namespaces every environment override, e.g. STOCKBAR_LOG_LEVEL.
const EnvPrefix = "STOCKBAR"

// PathEnv names the config file when no -config flag is given.
const PathEnv = "STOCKBAR_CONFIG"

type Keychain struct {
	Service string `mapstructure:"service"`
	User    string `mapstructure:"user"`
}

type Endpoint struct {
	Endpoint   string `mapstructure:"endpoint"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

func (e Endpoint) Timeout() time.Duration { return time.Duration(e.TimeoutSec) * time.Second }

type Market struct {
	Timezone     string `mapstructure:"timezone"`
	Open         string `mapstructure:"open"`
	Close        string `mapstructure:"close"`
	ToleranceMin int    `mapstructure:"tolerance_min"`
}

// Clock converts the market section into a market clock configuration.
func (m Market) Clock() marketclock.Config {
	return marketclock.Config{
		Location:  m.Timezone,
		Open:      m.Open,
		Close:     m.Close,
		Tolerance: time.Duration(m.ToleranceMin) * time.Minute,
	}
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type Config struct {
	Symbol     string   `mapstructure:"symbol"`
	CacheDir   string   `mapstructure:"cache_dir"`
	APIKey     string   `mapstructure:"api_key"`
	Style      string   `mapstructure:"style"`
	Keychain   Keychain `mapstructure:"keychain"`
	TwelveData Endpoint `mapstructure:"twelvedata"`
	Nasdaq     Endpoint `mapstructure:"nasdaq"`
	Market     Market   `mapstructure:"market"`
	Log        Log      `mapstructure:"log"`
}

func Default() Config {
	return Config{
		Style:      "font=Menlo size=12",
		Keychain:   Keychain{Service: "twelvedata_api_key"},
		TwelveData: Endpoint{Endpoint: "https://api.twelvedata.com", TimeoutSec: 10},
		Nasdaq:     Endpoint{Endpoint: "https://api.nasdaq.com", TimeoutSec: 8},
		Market: Market{
			Timezone:     "America/New_York",
			Open:         "09:30",
			Close:        "16:00",
			ToleranceMin: 2,
		},
		Log: Log{Level: "warn", Format: "text", MaxSizeMB: 5, MaxBackups: 3},
	}
}

// Load merges defaults, the file at path (or $STOCKBAR_CONFIG) and the
// environment. A missing file named explicitly is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("symbol", d.Symbol)
	v.SetDefault("cache_dir", d.CacheDir)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("style", d.Style)
	v.SetDefault("keychain.service", d.Keychain.Service)
	v.SetDefault("keychain.user", d.Keychain.User)
	v.SetDefault("twelvedata.endpoint", d.TwelveData.Endpoint)
	v.SetDefault("twelvedata.timeout_sec", d.TwelveData.TimeoutSec)
	v.SetDefault("nasdaq.endpoint", d.Nasdaq.Endpoint)
	v.SetDefault("nasdaq.timeout_sec", d.Nasdaq.TimeoutSec)
	v.SetDefault("market.timezone", d.Market.Timezone)
	v.SetDefault("market.open", d.Market.Open)
	v.SetDefault("market.close", d.Market.Close)
	v.SetDefault("market.tolerance_min", d.Market.ToleranceMin)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}

func (c Config) Validate() error {
	var errs []error
	if c.TwelveData.Endpoint == "" {
		errs = append(errs, errors.New("twelvedata.endpoint is empty"))
	}
	if c.Nasdaq.Endpoint == "" {
		errs = append(errs, errors.New("nasdaq.endpoint is empty"))
	}
	if c.TwelveData.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("twelvedata.timeout_sec must be positive, got %d", c.TwelveData.TimeoutSec))
	}
	if c.Nasdaq.TimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("nasdaq.timeout_sec must be positive, got %d", c.Nasdaq.TimeoutSec))
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil || c.Market.Timezone == "" {
		errs = append(errs, fmt.Errorf("market.timezone %q is not a known zone", c.Market.Timezone))
	}
	open, errOpen := time.Parse("15:04", c.Market.Open)
	if errOpen != nil {
		errs = append(errs, fmt.Errorf("market.open %q is not HH:MM", c.Market.Open))
	}
	closing, errClose := time.Parse("15:04", c.Market.Close)
	if errClose != nil {
		errs = append(errs, fmt.Errorf("market.close %q is not HH:MM", c.Market.Close))
	}
	if errOpen == nil && errClose == nil && !open.Before(closing) {
		errs = append(errs, errors.New("market.open must be before market.close"))
	}
	if c.Market.ToleranceMin < 0 {
		errs = append(errs, fmt.Errorf("market.tolerance_min must not be negative, got %d", c.Market.ToleranceMin))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
