package simulator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/novalune/tradeengine/simulator"
)

func TestReport_Mean_AveragesProfitAcrossSnapshots(t *testing.T) {
	r := simulator.Report{Results: []simulator.SnapshotResult{
		{StartIdx: 0, ProfitFiat: 10, NumTrades: 1},
		{StartIdx: 5, ProfitFiat: 20, NumTrades: 2},
	}}
	assert.Equal(t, 15.0, r.Mean())
}

func TestReport_Mean_ZeroResultsIsZero(t *testing.T) {
	r := simulator.Report{}
	assert.Equal(t, 0.0, r.Mean())
}
