package feeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestCalcFee_BuyUsesTakerFee(t *testing.T) {
	volumeAfterFee, feeCrypto, feeFiat := CalcFee(1.0, 0.1, 0.2, 20000, SideBuy)
	assert.InDelta(t, 0.998, volumeAfterFee, 1e-9)
	assert.InDelta(t, 0.002, feeCrypto, 1e-9)
	assert.InDelta(t, 40.0, feeFiat, 1e-9)
}

func TestCalcFee_SellUsesMakerFee(t *testing.T) {
	_, feeCrypto, _ := CalcFee(2.0, 0.1, 0.2, 100, SideSell)
	assert.InDelta(t, 0.002, feeCrypto, 1e-9)
}

func TestCalcFee_NegativeVolumeIsAbsolute(t *testing.T) {
	volumeAfterFee, _, _ := CalcFee(-1.0, 0.1, 0.2, 20000, SideBuy)
	assert.InDelta(t, 0.998, volumeAfterFee, 1e-9)
}

func TestPctChange_FirstRowZero(t *testing.T) {
	prices := mat.NewDense(3, 2, []float64{
		100, 200,
		110, 190,
		121, 209,
	})
	result := PctChange(prices)
	assert.Equal(t, 0.0, result.At(0, 0))
	assert.Equal(t, 0.0, result.At(0, 1))
	assert.InDelta(t, (110-100.0)/110, result.At(1, 0), 1e-12)
	assert.InDelta(t, (190-200.0)/190, result.At(1, 1), 1e-12)
}
