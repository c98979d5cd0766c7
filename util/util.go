package util

// Copyright (c) 2026 Colin McRae

import (
	"fmt"
	"math"
	"math/big"
)

// CopyInt64ToInt converts an int64 matrix to an int matrix
func CopyInt64ToInt(input []int64) []int {
	retVal := make([]int, len(input))
	for i := 0; i < len(input); i++ {
		retVal[i] = int(input[i])
	}
	return retVal
}

// CopyIntToInt64 converts an int matrix to an int64 matrix
func CopyIntToInt64(input []int) []int64 {
	retVal := make([]int64, len(input))
	for i := 0; i < len(input); i++ {
		retVal[i] = int64(input[i])
	}
	return retVal
}

// AbsInt64 returns the absolute value of x
func AbsInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// MultiplyIntInt returns the matrix product, x * y, for []int64
// x and []int64 y. n must equal the number of columns in x and
// the number of rows in y.
func MultiplyIntInt(x []int64, y []int64, n int) ([]int64, error) {
	// x is mxn, y is nxp and xy is mxp.
	m, p, err := getDimensions(len(x), len(y), n, "MultiplyIntInt")
	if err != nil {
		return nil, err
	}
	largeEntryThresh := int64(math.MaxInt32 / m)
	xy := make([]int64, m*p)
	for i := 0; i < m; i++ {
		for j := 0; j < p; j++ {
			xyEntry := x[i*n] * y[j] // x[i][0] * y[0][j]
			for k := 1; k < n; k++ {
				xyEntry += x[i*n+k] * y[k*p+j] // x[i][k] * y[k][j]
			}
			if (xyEntry > largeEntryThresh) || (xyEntry < -largeEntryThresh) {
				return []int64{}, fmt.Errorf(
					"in a matrix multiply, entry (%d,%d) = %d is large enough to risk future overflow",
					i, j, xyEntry,
				)
			}
			xy[i*p+j] = xyEntry
		}
	}
	return xy, nil
}

// DotInt64 returns the dot product of equal-length x and y
func DotInt64(x, y []int64) (int64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("DotInt64: lengths %d and %d differ", len(x), len(y))
	}
	var retVal int64
	for i := 0; i < len(x); i++ {
		retVal += x[i] * y[i]
	}
	return retVal, nil
}

// HermiteNormalForm returns the row-style Hermite normal form of the
// numRows x numCols matrix stored row-major in input. Two integer bases
// span the same lattice if and only if their Hermite normal forms are
// equal, so comparing Hermite normal forms verifies that a sequence of
// row operations changed the basis but not the lattice. The quotients in
// the elimination overflow int64 even on small bases, so the computation
// runs in exact big.Int arithmetic; HermiteNormalForm returns an error
// only when an entry of the result itself does not fit in an int64.
func HermiteNormalForm(input []int64, numRows, numCols int) ([]int64, error) {
	if numRows <= 0 || numCols <= 0 || len(input) != numRows*numCols {
		return nil, fmt.Errorf(
			"HermiteNormalForm: %d entries do not form a %d x %d matrix",
			len(input), numRows, numCols,
		)
	}
	h := make([]*big.Int, len(input))
	for i := 0; i < len(input); i++ {
		h[i] = big.NewInt(input[i])
	}
	q := new(big.Int)
	qTimesEntry := new(big.Int)

	pivotRow := 0
	for j := 0; j < numCols && pivotRow < numRows; j++ {
		// Run Euclid's algorithm on column j at and below pivotRow until
		// at most one non-zero entry remains, then swap the row containing
		// it into pivotRow.
		for {
			minRow := -1
			for i := pivotRow; i < numRows; i++ {
				if h[i*numCols+j].Sign() == 0 {
					continue
				}
				if minRow < 0 || h[i*numCols+j].CmpAbs(h[minRow*numCols+j]) < 0 {
					minRow = i
				}
			}
			if minRow < 0 {
				break
			}
			columnIsReduced := true
			for i := pivotRow; i < numRows; i++ {
				if i == minRow || h[i*numCols+j].Sign() == 0 {
					continue
				}
				q.Quo(h[i*numCols+j], h[minRow*numCols+j])
				for k := 0; k < numCols; k++ {
					h[i*numCols+k].Sub(h[i*numCols+k], qTimesEntry.Mul(q, h[minRow*numCols+k]))
				}
				if h[i*numCols+j].Sign() != 0 {
					columnIsReduced = false
				}
			}
			if columnIsReduced {
				if minRow != pivotRow {
					for k := 0; k < numCols; k++ {
						h[minRow*numCols+k], h[pivotRow*numCols+k] =
							h[pivotRow*numCols+k], h[minRow*numCols+k]
					}
				}
				break
			}
		}
		if h[pivotRow*numCols+j].Sign() == 0 {
			continue
		}

		// Make the pivot positive, then reduce the entries above it into
		// the range [0, pivot).
		if h[pivotRow*numCols+j].Sign() < 0 {
			for k := 0; k < numCols; k++ {
				h[pivotRow*numCols+k].Neg(h[pivotRow*numCols+k])
			}
		}
		pivot := h[pivotRow*numCols+j]
		for i := 0; i < pivotRow; i++ {
			// Div rounds towards negative infinity for a positive divisor,
			// which leaves h[i][j] in [0, pivot)
			q.Div(h[i*numCols+j], pivot)
			if q.Sign() == 0 {
				continue
			}
			for k := 0; k < numCols; k++ {
				h[i*numCols+k].Sub(h[i*numCols+k], qTimesEntry.Mul(q, h[pivotRow*numCols+k]))
			}
		}
		pivotRow++
	}

	retVal := make([]int64, len(h))
	for i := 0; i < len(h); i++ {
		if !h[i].IsInt64() {
			return nil, fmt.Errorf(
				"HermiteNormalForm: entry (%d,%d) of the result does not fit in an int64",
				i/numCols, i%numCols,
			)
		}
		retVal[i] = h[i].Int64()
	}
	return retVal, nil
}

// getDimensions returns the dimensions m and p for a matrix multiply
// xy where x has mn entries, y has np entries, and the number of columns
// in x (= the number of rows in y) is n.
func getDimensions(mn, np, n int, caller string) (int, int, error) {
	caller = fmt.Sprintf("%s-getDimensions", caller)
	if mn%n != 0 {
		return 0, 0, fmt.Errorf(
			"%s: non-integer number of rows %d / %d in x", caller, mn, n,
		)
	}
	if np%n != 0 {
		return 0, 0, fmt.Errorf(
			"%s: non-integer number of columns %d / %d in y", caller, np, n,
		)
	}
	return mn / n, np / n, nil
}
