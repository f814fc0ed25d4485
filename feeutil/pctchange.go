package feeutil

import "gonum.org/v1/gonum/mat"

// PctChange computes the "reverse" percentage change of a T×N price
// matrix: row t is (p[t] - p[t-1]) / p[t], row 0 is all zeros.
//
// Dividing by the current row rather than the previous one is unusual
// (see spec §9's open question) — it is preserved bit-for-bit here
// because the simulator's historical profit figures depend on it, but
// it should not be mistaken for a standard percent-change.
func PctChange(prices *mat.Dense) *mat.Dense {
	rows, cols := prices.Dims()
	out := mat.NewDense(rows, cols, nil)
	if rows == 0 {
		return out
	}
	for j := 0; j < cols; j++ {
		out.Set(0, j, 0)
	}
	for i := 1; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cur := prices.At(i, j)
			prev := prices.At(i-1, j)
			out.Set(i, j, (cur-prev)/cur)
		}
	}
	return out
}
