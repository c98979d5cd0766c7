// Copyright (c) 2026 Colin McRae

// Package lllops LLL-reduces a row range of a basis through its
// Gram-Schmidt view. The reduction performs the two classical moves: size
// reduction, which subtracts integer multiples of earlier rows so that every
// Gram coefficient satisfies |mu[k][j]| <= eta, and the Lovász swap, which
// exchanges adjacent rows k-1 and k whenever
//
//	r[k][k] < (delta - mu[k][k-1]^2) r[k-1][k-1]
//
// Both moves are unimodular, so the lattice spanned by the rows is
// invariant.
package lllops

import (
	"fmt"
	"math"

	"github.com/predrag3141/PSLQ/bignumber"

	"github.com/thedrow/fpylll/gsoops"
)

const (
	// DefaultDelta is the default Lovász reduction parameter.
	DefaultDelta = 0.99

	// DefaultEta is the default size-reduction parameter.
	DefaultEta = 0.51

	// A size-reduction coefficient larger than this aborts the reduction;
	// rounding it from a float64 would already have lost integer precision.
	maxReductionCoeff float64 = 1 << 53
)

// Reduction LLL-reduces row ranges of the basis behind a gsoops.Mat.
type Reduction struct {
	m      *gsoops.Mat
	delta  float64
	eta    float64
	nSwaps int
}

// NewReduction returns an LLL reducer over m with parameters delta and eta.
// delta must lie in (0.25, 1) and eta in [0.5, sqrt(delta)).
func NewReduction(m *gsoops.Mat, delta float64, eta float64) (*Reduction, error) {
	if m == nil {
		return nil, fmt.Errorf("lllops.NewReduction: m must not be nil")
	}
	if delta <= 0.25 || 1 <= delta {
		return nil, fmt.Errorf("lllops.NewReduction: delta = %f outside (0.25, 1)", delta)
	}
	if eta < 0.5 || math.Sqrt(delta) <= eta {
		return nil, fmt.Errorf(
			"lllops.NewReduction: eta = %f outside [0.5, sqrt(%f))", eta, delta,
		)
	}
	return &Reduction{m: m, delta: delta, eta: eta}, nil
}

// Delta returns the configured Lovász parameter.
func (l *Reduction) Delta() float64 {
	return l.delta
}

// NumSwaps returns the number of row swaps performed by the most recent
// Reduce call.
func (l *Reduction) NumSwaps() int {
	return l.nSwaps
}

// Reduce LLL-reduces rows [firstRow, lastRow) of the basis, size-reducing
// them against rows no earlier than loRow. On return, every reduced row
// satisfies the size-reduction and Lovász conditions relative to its
// predecessors within the range.
func (l *Reduction) Reduce(loRow int, firstRow int, lastRow int) error {
	n := l.m.RowCount()
	if loRow < 0 || firstRow < loRow || lastRow < firstRow || n < lastRow {
		return fmt.Errorf(
			"lllops.Reduce: rows (%d, %d, %d) must satisfy 0 <= loRow <= firstRow <= lastRow <= %d",
			loRow, firstRow, lastRow, n,
		)
	}
	l.nSwaps = 0
	if lastRow-loRow < 2 {
		return nil
	}

	deltaBN, err := newDeltaBigNumber(l.delta)
	if err != nil {
		return fmt.Errorf("lllops.Reduce: %q", err.Error())
	}
	k := firstRow
	if k <= loRow {
		k = loRow + 1
	}

	// lastRow shrinks when a row is reduced to exactly zero. That happens
	// only while eliminating a redundant vector after a block insertion;
	// the zero row is expelled to the end of the range, where the caller
	// expects to find it.
	for k < lastRow {
		if err = l.sizeReduceRow(k, loRow); err != nil {
			return fmt.Errorf("lllops.Reduce: could not size-reduce row %d: %q", k, err.Error())
		}
		isZero, err := l.m.Basis().IsZeroRow(k)
		if err != nil {
			return fmt.Errorf("lllops.Reduce: could not test row %d for zero: %q", k, err.Error())
		}
		if isZero {
			if err = l.m.MoveRow(k, lastRow-1); err != nil {
				return fmt.Errorf(
					"lllops.Reduce: could not expel zero row %d to %d: %q", k, lastRow-1, err.Error(),
				)
			}
			lastRow--
			continue
		}
		swap, err := l.lovaszCondition(k, deltaBN)
		if err != nil {
			return fmt.Errorf("lllops.Reduce: could not test the Lovász condition at row %d: %q", k, err.Error())
		}
		if swap {
			if err = l.m.SwapRows(k-1, k); err != nil {
				return fmt.Errorf("lllops.Reduce: could not swap rows %d and %d: %q", k-1, k, err.Error())
			}
			l.nSwaps++
			if k > loRow+1 {
				k--
			}
			continue
		}
		k++
	}
	return nil
}

// SizeReduction size-reduces rows [start, end) against all earlier rows
// without performing any swaps.
func (l *Reduction) SizeReduction(start int, end int) error {
	n := l.m.RowCount()
	if start < 0 || end < start || n < end {
		return fmt.Errorf(
			"lllops.SizeReduction: rows (%d, %d) must satisfy 0 <= start <= end <= %d", start, end, n,
		)
	}
	for k := start; k < end; k++ {
		if k == 0 {
			continue
		}
		if err := l.sizeReduceRow(k, 0); err != nil {
			return fmt.Errorf("lllops.SizeReduction: could not size-reduce row %d: %q", k, err.Error())
		}
	}
	return nil
}

// sizeReduceRow subtracts integer multiples of rows loRow..k-1 from row k
// until |mu[k][j]| <= eta for all j in that range. Rows are processed from
// k-1 down to loRow so that each subtraction leaves the already-processed
// coefficients intact.
func (l *Reduction) sizeReduceRow(k int, loRow int) error {
	for j := k - 1; loRow <= j; j-- {
		muKJ, err := l.m.MuFloat64(k, j)
		if err != nil {
			return fmt.Errorf("sizeReduceRow: could not get mu[%d][%d]: %q", k, j, err.Error())
		}
		if math.Abs(muKJ) <= l.eta {
			continue
		}
		coeff := math.Round(muKJ)
		if math.Abs(coeff) >= maxReductionCoeff {
			return fmt.Errorf(
				"sizeReduceRow: reduction coefficient %f at (%d, %d) exceeds the exact integer range",
				coeff, k, j,
			)
		}
		if err = l.m.RowAddMul(k, j, -int64(coeff)); err != nil {
			return fmt.Errorf(
				"sizeReduceRow: could not subtract %d times row %d from row %d: %q",
				int64(coeff), j, k, err.Error(),
			)
		}
	}
	return nil
}

// lovaszCondition reports whether rows k-1 and k must be swapped, i.e.
// whether r[k][k] < (delta - mu[k][k-1]^2) r[k-1][k-1]. The test runs in
// BigNumber arithmetic so that it is as exact as the decomposition itself.
func (l *Reduction) lovaszCondition(k int, deltaBN *bignumber.BigNumber) (bool, error) {
	rKK, err := l.m.GetR(k, k)
	if err != nil {
		return false, fmt.Errorf("lovaszCondition: could not get r[%d][%d]: %q", k, k, err.Error())
	}
	rPrev, err := l.m.GetR(k-1, k-1)
	if err != nil {
		return false, fmt.Errorf("lovaszCondition: could not get r[%d][%d]: %q", k-1, k-1, err.Error())
	}
	muKPrev, err := l.m.GetMu(k, k-1)
	if err != nil {
		return false, fmt.Errorf("lovaszCondition: could not get mu[%d][%d]: %q", k, k-1, err.Error())
	}
	muSq := bignumber.NewFromInt64(0).Mul(muKPrev, muKPrev)
	factor := bignumber.NewFromInt64(0).Sub(deltaBN, muSq)
	threshold := bignumber.NewFromInt64(0).Mul(factor, rPrev)
	return rKK.Cmp(threshold) < 0, nil
}

// newDeltaBigNumber converts delta to a BigNumber through its decimal
// representation, which is exact for the short decimal values delta takes.
func newDeltaBigNumber(delta float64) (*bignumber.BigNumber, error) {
	retVal, err := bignumber.NewFromDecimalString(fmt.Sprintf("%.6f", delta))
	if err != nil {
		return nil, fmt.Errorf("newDeltaBigNumber: could not parse delta = %f: %q", delta, err.Error())
	}
	return retVal, nil
}
