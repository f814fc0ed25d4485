package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesRecognizedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_currency: USD
candle_interval: 5min
exchange: bitfinex
maker_fee: 0.1
taker_fee: 0.2
budget: 1000
amount_invest_relative: 0.1
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 0.1, cfg.MakerFee)
	assert.Equal(t, 1000.0, cfg.Budget)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("totally_unknown_field: 1\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFinalizeTradingConfig_ComputesRelativeInvestAndBuyLimit(t *testing.T) {
	cfg := &Config{Budget: 1000, AmountInvestRelative: 0.1, BuyLimitStrategy: true}
	cfg.FinalizeTradingConfig()

	assert.Equal(t, 100.0, cfg.AmountInvestFiat)
	assert.Equal(t, 10, cfg.AssetBuyLimit)
}

func TestCandleIntervalDuration_ParsesMinutes(t *testing.T) {
	cfg := &Config{CandleInterval: "5min"}
	ms, err := cfg.CandleIntervalDuration()
	require.NoError(t, err)
	assert.Equal(t, int64(5*60*1000), ms)
}
