// Package config loads and validates the trading engine's YAML
// configuration (spec §6). Startup configuration errors are fatal per
// spec §7 — FinalizeTradingConfig calls log.Fatal rather than
// returning an error when invest sizing is unset.
package config

import (
	"os"
	"strings"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v2"

	"github.com/novalune/tradeengine/tools/log"
)

// Config holds every recognized option from spec §6.
type Config struct {
	AmountInvestFiat     float64 `yaml:"amount_invest_fiat"`
	AmountInvestRelative float64 `yaml:"amount_invest_relative"`
	BuyLimitStrategy     bool    `yaml:"buy_limit_strategy"`
	AssetBuyLimit        int     `yaml:"asset_buy_limit"`
	Budget               float64 `yaml:"budget"`
	BaseCurrency         string  `yaml:"base_currency"`
	CandleInterval       string  `yaml:"candle_interval"`
	Exchange             string  `yaml:"exchange"`
	HistoryTimeframe     string  `yaml:"history_timeframe"`
	UseBackend           bool    `yaml:"use_backend"`
	RunExchangeAPI       bool    `yaml:"run_exchange_api"`
	IsSimulation         bool    `yaml:"is_simulation"`
	MakerFee             float64 `yaml:"maker_fee"`
	TakerFee             float64 `yaml:"taker_fee"`
	HoldTimeLimit        string  `yaml:"hold_time_limit"`
	ProfitRatioLimit     float64 `yaml:"profit_ratio_limit"`
	ProfitFactorTarget   float64 `yaml:"profit_factor_target"`

	// Symbol and DatabasePath are composition-root wiring details, not
	// part of the Python original's recognized config keys (§6) — kept
	// here rather than as CLI-only flags since both are needed by any
	// entrypoint (live or simulated), following the teacher's own
	// Settings.Pairs field.
	Symbol       string `yaml:"symbol"`
	DatabasePath string `yaml:"database_path"`

	// TelegramEnabled mirrors the teacher's ninjabot.TelegramSettings.Enabled;
	// the token and user id are never stored in YAML and are read from
	// TELEGRAM_TOKEN/TELEGRAM_USER at the composition root instead,
	// matching examples/spotmarket/spot.go.
	TelegramEnabled bool `yaml:"telegram_enabled"`
}

// Load reads and strictly unmarshals a YAML config file at path. Unlike
// the Python original's permissive dict config, unrecognized keys are
// rejected early since Go config structs are otherwise silently
// tolerant of typos.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CandleIntervalDuration parses CandleInterval (e.g. "5min") via
// go-str2duration, after normalizeDurationSpelling, and returns it in
// milliseconds.
func (c *Config) CandleIntervalDuration() (int64, error) {
	d, err := str2duration.ParseDuration(normalizeDurationSpelling(c.CandleInterval))
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

// HoldTimeLimitDuration parses HoldTimeLimit the same way.
func (c *Config) HoldTimeLimitDuration() (int64, error) {
	if c.HoldTimeLimit == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(normalizeDurationSpelling(c.HoldTimeLimit))
	if err != nil {
		return 0, err
	}
	return d.Milliseconds(), nil
}

// normalizeDurationSpelling rewrites the Python original's "min" minute
// suffix (spec §6: `candle_interval` e.g. "5min") into go-str2duration's
// "m" unit — neither go-str2duration nor time.ParseDuration accept
// "min" literally, only "m".
func normalizeDurationSpelling(s string) string {
	return strings.ReplaceAll(s, "min", "m")
}

// FinalizeTradingConfig applies spec §4.5's startup budget sizing rules
// and fatally terminates the process if neither AmountInvestFiat nor
// AmountInvestRelative is set — the one case spec §7 marks
// configuration-fatal.
func (c *Config) FinalizeTradingConfig() {
	if c.AmountInvestRelative > 0 && c.Budget > 0 {
		c.AmountInvestFiat = round2(c.Budget * c.AmountInvestRelative)
	}

	if c.BuyLimitStrategy && c.Budget > 0 && c.AmountInvestFiat > 0 {
		c.AssetBuyLimit = int(c.Budget / c.AmountInvestFiat)
	}

	if c.AmountInvestFiat <= 0 && c.AmountInvestRelative <= 0 {
		log.Fatal("config: at least one of amount_invest_fiat or amount_invest_relative must be set")
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
