package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketSync/internal/alert"
	"MarketSync/internal/collector"
	"MarketSync/internal/model"
	"MarketSync/internal/planner"
)

// Providers lists the accepted data_source.provider values.
var Providers = []string{"yahoo", "angelone", "mock"}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider          string        `yaml:"provider"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxRetries        *int          `yaml:"max_retries"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		MockPrice         float64       `yaml:"mock_price"`
		AngelOne          struct {
			APIKey       string            `yaml:"api_key"`
			AccessToken  string            `yaml:"access_token"`
			Exchange     string            `yaml:"exchange"`
			SymbolTokens map[string]string `yaml:"symbol_tokens"`
		} `yaml:"angelone"`
	} `yaml:"data_source"`
	Tickers       []string `yaml:"tickers"`
	Granularities []string `yaml:"granularities"`
	Storage       struct {
		DataRoot   string `yaml:"data_root"`
		ParquetDir string `yaml:"parquet_dir"`
	} `yaml:"storage"`
	Market struct {
		Timezone           string        `yaml:"timezone"`
		Open               string        `yaml:"open"`
		Close              string        `yaml:"close"`
		SessionOffset      time.Duration `yaml:"session_offset"`
		DailyCutoff        string        `yaml:"daily_cutoff"`
		ReconfirmBoundary  bool          `yaml:"reconfirm_boundary"`
		FiveMinuteLookback time.Duration `yaml:"five_minute_lookback"`
	} `yaml:"market"`
	Indicator struct {
		RSIPeriod         int     `yaml:"rsi_period"`
		ExtremeOversold   float64 `yaml:"extreme_oversold"`
		Oversold          float64 `yaml:"oversold"`
		Overbought        float64 `yaml:"overbought"`
		ExtremeOverbought float64 `yaml:"extreme_overbought"`
	} `yaml:"indicator"`
	Alert struct {
		Enabled   bool   `yaml:"enabled"`
		StateFile string `yaml:"state_file"`
	} `yaml:"alert"`
	Schedule struct {
		DailyCron      string `yaml:"daily_cron"`
		HourlyCron     string `yaml:"hourly_cron"`
		FiveMinuteCron string `yaml:"five_minute_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Sync struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"sync"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env, then the YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	cfg.Alert.Enabled = true

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("ANGELONE_API_KEY"); v != "" {
		c.DataSource.AngelOne.APIKey = v
	}
	if v := os.Getenv("ANGELONE_ACCESS_TOKEN"); v != "" {
		c.DataSource.AngelOne.AccessToken = v
	}
	if v := os.Getenv("TICKERS"); v != "" {
		c.Tickers = splitList(v)
	}
	if v := os.Getenv("GRANULARITIES"); v != "" {
		c.Granularities = splitList(v)
	}
	if v := os.Getenv("DATA_ROOT"); v != "" {
		c.Storage.DataRoot = v
	}
	if v := os.Getenv("PARQUET_DIR"); v != "" {
		c.Storage.ParquetDir = v
	}
	if v := os.Getenv("MARKET_TIMEZONE"); v != "" {
		c.Market.Timezone = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("SYNC_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.Concurrency = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	c.DataSource.Provider = strings.ToLower(c.DataSource.Provider)
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 20 * time.Second
	}
	if c.DataSource.MaxRetries == nil {
		n := 2
		c.DataSource.MaxRetries = &n
	}
	if c.DataSource.RequestsPerSecond == 0 {
		c.DataSource.RequestsPerSecond = 2
	}
	if c.DataSource.MockPrice == 0 {
		c.DataSource.MockPrice = 100
	}
	if len(c.Granularities) == 0 {
		for _, g := range model.Granularities {
			c.Granularities = append(c.Granularities, string(g))
		}
	}
	if c.Storage.DataRoot == "" {
		c.Storage.DataRoot = "data/raw"
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "Asia/Kolkata"
	}
	if c.Market.Open == "" {
		c.Market.Open = "09:00"
	}
	if c.Market.Close == "" {
		c.Market.Close = "16:00"
	}
	if c.Market.SessionOffset == 0 {
		c.Market.SessionOffset = 15 * time.Minute
	}
	if c.Market.DailyCutoff == "" {
		c.Market.DailyCutoff = string(planner.CutoffClose)
	}
	if c.Market.FiveMinuteLookback == 0 {
		c.Market.FiveMinuteLookback = 55 * 24 * time.Hour
	}
	if c.Indicator.RSIPeriod == 0 {
		c.Indicator.RSIPeriod = 14
	}
	th := alert.DefaultThresholds()
	if c.Indicator.ExtremeOversold == 0 {
		c.Indicator.ExtremeOversold = th.ExtremeOversold
	}
	if c.Indicator.Oversold == 0 {
		c.Indicator.Oversold = th.Oversold
	}
	if c.Indicator.Overbought == 0 {
		c.Indicator.Overbought = th.Overbought
	}
	if c.Indicator.ExtremeOverbought == 0 {
		c.Indicator.ExtremeOverbought = th.ExtremeOverbought
	}
	if c.Alert.StateFile == "" {
		c.Alert.StateFile = "data/alert_state.json"
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.HourlyCron == "" {
		c.Schedule.HourlyCron = "0 20 10-16 * * 1-5"
	}
	if c.Schedule.FiveMinuteCron == "" {
		c.Schedule.FiveMinuteCron = "30 */5 9-15 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/marketsync.db"
	}
	if c.Sync.Concurrency == 0 {
		c.Sync.Concurrency = 4
	}
}

// Validate checks that all required fields are set and parse.
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("tickers must not be empty")
	}
	seen := make(map[string]bool, len(c.Tickers))
	for _, t := range c.Tickers {
		if seen[t] {
			return fmt.Errorf("tickers: %s is listed more than once", t)
		}
		seen[t] = true
	}
	if !contains(Providers, c.DataSource.Provider) {
		return fmt.Errorf("data_source.provider %q is not one of %v", c.DataSource.Provider, Providers)
	}
	if c.DataSource.Provider == "angelone" {
		ao := c.DataSource.AngelOne
		if ao.APIKey == "" || ao.AccessToken == "" {
			return fmt.Errorf("data_source.angelone.api_key and access_token are required")
		}
		for _, t := range c.Tickers {
			if _, ok := ao.SymbolTokens[t]; !ok {
				return fmt.Errorf("data_source.angelone.symbol_tokens has no entry for %s", t)
			}
		}
	}
	if *c.DataSource.MaxRetries < 0 {
		return fmt.Errorf("data_source.max_retries must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := c.ParsedGranularities(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.PlannerPolicy(); err != nil {
		return err
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("indicator: %w", err)
	}
	if c.Indicator.RSIPeriod <= 0 {
		return fmt.Errorf("indicator.rsi_period must be positive")
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be at least 1")
	}
	return nil
}

// TelegramEnabled reports whether a bot is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Location loads the exchange time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return nil, fmt.Errorf("market.timezone: %w", err)
	}
	return loc, nil
}

// ParsedGranularities converts the configured names, dropping repeats.
func (c *Config) ParsedGranularities() ([]model.Granularity, error) {
	var out []model.Granularity
	for _, s := range c.Granularities {
		g, err := model.ParseGranularity(s)
		if err != nil {
			return nil, fmt.Errorf("granularities: %w", err)
		}
		dup := false
		for _, seen := range out {
			dup = dup || seen == g
		}
		if !dup {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("granularities must not be empty")
	}
	return out, nil
}

// PlannerPolicy converts the market section to a planner policy.
func (c *Config) PlannerPolicy() (planner.Policy, error) {
	open, err := clockOffset(c.Market.Open)
	if err != nil {
		return planner.Policy{}, fmt.Errorf("market.open: %w", err)
	}
	closeAt, err := clockOffset(c.Market.Close)
	if err != nil {
		return planner.Policy{}, fmt.Errorf("market.close: %w", err)
	}
	if open >= closeAt {
		return planner.Policy{}, fmt.Errorf("market.open must be before market.close")
	}
	cutoff, err := planner.ParseCutoffMode(c.Market.DailyCutoff)
	if err != nil {
		return planner.Policy{}, fmt.Errorf("market.daily_cutoff: %w", err)
	}
	if c.Market.SessionOffset < 0 || c.Market.SessionOffset >= time.Hour {
		return planner.Policy{}, fmt.Errorf("market.session_offset must be within [0, 1h)")
	}
	return planner.Policy{
		MarketOpen:         open,
		MarketClose:        closeAt,
		DailyCutoff:        cutoff,
		ReconfirmBoundary:  c.Market.ReconfirmBoundary,
		SessionOffset:      c.Market.SessionOffset,
		FiveMinuteLookback: c.Market.FiveMinuteLookback,
	}, nil
}

// CollectorOptions converts the data_source section to collector options.
func (c *Config) CollectorOptions() collector.Options {
	opts := collector.DefaultOptions()
	opts.Timeout = c.DataSource.Timeout
	opts.MaxRetries = *c.DataSource.MaxRetries
	opts.RequestsPerSecond = c.DataSource.RequestsPerSecond
	return opts
}

// Thresholds returns the RSI zone levels.
func (c *Config) Thresholds() alert.Thresholds {
	return alert.Thresholds{
		ExtremeOversold:   c.Indicator.ExtremeOversold,
		Oversold:          c.Indicator.Oversold,
		Overbought:        c.Indicator.Overbought,
		ExtremeOverbought: c.Indicator.ExtremeOverbought,
	}
}

// CronFor returns the schedule of one granularity.
func (c *Config) CronFor(g model.Granularity) string {
	switch g {
	case model.Daily:
		return c.Schedule.DailyCron
	case model.Hourly:
		return c.Schedule.HourlyCron
	default:
		return c.Schedule.FiveMinuteCron
	}
}

// clockOffset parses "HH:MM" into an offset from midnight.
func clockOffset(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
