// Copyright (c) 2026 Colin McRae

// Package gsoops maintains the Gram-Schmidt orthogonalization of a lattice
// basis stored in an IntMatrix, and exposes the row operations that the BKZ
// and LLL drivers are allowed to apply to that basis. The basis rows b_i are
// never orthogonalized in place; instead the matrix
//
//	r[i][j]  = <b_i, b*_j>   for j <= i
//	mu[i][j] = r[i][j] / r[j][j]  for j < i
//
// is maintained, where b*_j is the Gram-Schmidt vector of row j. r[i][i] is
// the squared norm of b*_i. All of r and mu are held in BigNumbers, so the
// precision of the decomposition is the precision passed to bignumber.Init.
package gsoops

import (
	"fmt"
	"math"
	"math/big"

	"github.com/predrag3141/PSLQ/bignumber"

	"github.com/thedrow/fpylll/intmatrix"
)

// Mat is the Gram-Schmidt view of a basis. It recomputes the decomposition
// lazily: row operations mark the decomposition stale, and the next query
// recomputes it. A row-operation batch opened with RowOps suppresses
// recomputation until the batch closes; queries inside a batch are errors.
type Mat struct {
	b        *intmatrix.IntMatrix
	mu       [][]*bignumber.BigNumber
	r        [][]*bignumber.BigNumber
	upToDate bool
	inBatch  bool
}

// NewMat returns a Mat over the provided basis. The basis is shared, not
// copied: row operations performed through the returned Mat mutate it in
// place.
func NewMat(b *intmatrix.IntMatrix) (*Mat, error) {
	if b == nil || b.NumRows() == 0 {
		return nil, fmt.Errorf("gsoops.NewMat: basis must have at least one row")
	}
	return &Mat{b: b}, nil
}

// Basis returns the basis that m is a view of.
func (m *Mat) Basis() *intmatrix.IntMatrix {
	return m.b
}

// RowCount returns the current number of basis rows.
func (m *Mat) RowCount() int {
	return m.b.NumRows()
}

// DiscoverAllRows brings the decomposition up to date for every basis row.
func (m *Mat) DiscoverAllRows() error {
	return m.UpdateGSO()
}

// UpdateGSO recomputes the full decomposition from the current basis rows.
// A dependent row makes its r[i][i] zero; such rows are tolerated, with the
// Gram coefficients against them defined as zero, because the LLL reducer
// works on transiently dependent rows while eliminating a redundant vector
// after a block insertion.
func (m *Mat) UpdateGSO() error {
	if m.inBatch {
		return fmt.Errorf("gsoops.UpdateGSO: row operation batch is open")
	}
	n := m.b.NumRows()
	m.mu = make([][]*bignumber.BigNumber, n)
	m.r = make([][]*bignumber.BigNumber, n)
	for i := 0; i < n; i++ {
		m.mu[i] = make([]*bignumber.BigNumber, i)
		m.r[i] = make([]*bignumber.BigNumber, i+1)
		for j := 0; j <= i; j++ {
			rIJ, err := m.b.DotRows(i, j)
			if err != nil {
				return fmt.Errorf("gsoops.UpdateGSO: could not compute <b[%d], b[%d]>: %q", i, j, err.Error())
			}
			for k := 0; k < j; k++ {
				term := bignumber.NewFromInt64(0).Mul(m.mu[j][k], m.r[i][k])
				rIJ = bignumber.NewFromInt64(0).Sub(rIJ, term)
			}
			m.r[i][j] = rIJ
			if j < i {
				// IsSmall, not IsZero: the residue of a dependent row is
				// round-off noise, not an exact zero
				if m.r[j][j].IsSmall() {
					m.mu[i][j] = bignumber.NewFromInt64(0)
					continue
				}
				muIJ, err := bignumber.NewFromInt64(0).Quo(rIJ, m.r[j][j])
				if err != nil {
					return fmt.Errorf(
						"gsoops.UpdateGSO: could not compute mu[%d][%d]: %q", i, j, err.Error(),
					)
				}
				m.mu[i][j] = muIJ
			}
		}
	}
	m.upToDate = true
	return nil
}

// GetR returns r[i][j] = <b_i, b*_j> for j <= i. The returned pointer is
// owned by m and is valid until the next row operation.
func (m *Mat) GetR(i int, j int) (*bignumber.BigNumber, error) {
	if err := m.ensureUpToDate("GetR"); err != nil {
		return nil, err
	}
	if i < 0 || m.b.NumRows() <= i || j < 0 || i < j {
		return nil, fmt.Errorf("gsoops.GetR: indices (%d, %d) must satisfy 0 <= j <= i < %d", i, j, m.b.NumRows())
	}
	return m.r[i][j], nil
}

// GetMu returns mu[i][j] = r[i][j]/r[j][j] for j < i.
func (m *Mat) GetMu(i int, j int) (*bignumber.BigNumber, error) {
	if err := m.ensureUpToDate("GetMu"); err != nil {
		return nil, err
	}
	if i < 0 || m.b.NumRows() <= i || j < 0 || i <= j {
		return nil, fmt.Errorf("gsoops.GetMu: indices (%d, %d) must satisfy 0 <= j < i < %d", i, j, m.b.NumRows())
	}
	return m.mu[i][j], nil
}

// GetRExp returns the squared norm of b*_i as a mantissa in [0.5, 1) and a
// base-2 exponent, so that callers can reason about norms whose magnitude
// exceeds the float64 range.
func (m *Mat) GetRExp(i int) (float64, int, error) {
	rII, err := m.GetR(i, i)
	if err != nil {
		return 0, 0, fmt.Errorf("gsoops.GetRExp: could not get r[%d][%d]: %q", i, i, err.Error())
	}
	f := rII.AsFloat()
	var mant big.Float
	expo := f.MantExp(&mant)
	mantAsFloat64, _ := mant.Float64()
	return mantAsFloat64, expo, nil
}

// MuFloat64 returns mu[i][j] rounded to a float64.
func (m *Mat) MuFloat64(i int, j int) (float64, error) {
	muIJ, err := m.GetMu(i, j)
	if err != nil {
		return 0, err
	}
	retVal, _ := muIJ.AsFloat().Float64()
	return retVal, nil
}

// MoveRow removes basis row from and re-inserts it at position to, shifting
// the rows in between.
func (m *Mat) MoveRow(from int, to int) error {
	if m.inBatch {
		return fmt.Errorf("gsoops.MoveRow: row operation batch is open")
	}
	if err := m.b.MoveRow(from, to); err != nil {
		return fmt.Errorf("gsoops.MoveRow: %q", err.Error())
	}
	m.upToDate = false
	return nil
}

// SwapRows swaps basis rows i and j.
func (m *Mat) SwapRows(i int, j int) error {
	if m.inBatch {
		return fmt.Errorf("gsoops.SwapRows: row operation batch is open")
	}
	if err := m.b.SwapRows(i, j); err != nil {
		return fmt.Errorf("gsoops.SwapRows: %q", err.Error())
	}
	m.upToDate = false
	return nil
}

// CreateRow appends a zero scratch row to the basis and returns its index.
// The scratch row makes the basis rows dependent, so the decomposition is
// not usable again until the scratch row acquires a value and the redundant
// row is removed.
func (m *Mat) CreateRow() (int, error) {
	if m.inBatch {
		return 0, fmt.Errorf("gsoops.CreateRow: row operation batch is open")
	}
	retVal := m.b.AppendZeroRow()
	m.upToDate = false
	return retVal, nil
}

// RemoveLastRow removes the last basis row.
func (m *Mat) RemoveLastRow() error {
	if m.inBatch {
		return fmt.Errorf("gsoops.RemoveLastRow: row operation batch is open")
	}
	if err := m.b.RemoveLastRow(); err != nil {
		return fmt.Errorf("gsoops.RemoveLastRow: %q", err.Error())
	}
	m.upToDate = false
	return nil
}

// RowAddMul adds coeff times basis row src to basis row dest.
func (m *Mat) RowAddMul(dest int, src int, coeff int64) error {
	if m.inBatch {
		return fmt.Errorf("gsoops.RowAddMul: row operation batch is open; use the batch handle")
	}
	if err := m.b.AddMulRow(dest, src, coeff); err != nil {
		return fmt.Errorf("gsoops.RowAddMul: %q", err.Error())
	}
	m.upToDate = false
	return nil
}

// RowOpBatch is the handle for row operations inside a RowOps batch. Only
// rows in [lo, hi) may be written through it.
type RowOpBatch struct {
	m      *Mat
	lo, hi int
}

// AddMul adds coeff times basis row src to basis row dest. dest must lie in
// the batch's write range.
func (b *RowOpBatch) AddMul(dest int, src int, coeff int64) error {
	if dest < b.lo || b.hi <= dest {
		return fmt.Errorf(
			"RowOpBatch.AddMul: dest = %d outside batch range {%d, ... %d}", dest, b.lo, b.hi-1,
		)
	}
	if err := b.m.b.AddMulRow(dest, src, coeff); err != nil {
		return fmt.Errorf("RowOpBatch.AddMul: %q", err.Error())
	}
	return nil
}

// RowOps opens a row-operation batch over write range [lo, hi), runs f with
// the batch handle, and closes the batch. While the batch is open the
// decomposition is neither queried nor recomputed, so a long run of
// multiply-adds costs one recomputation instead of one per operation. The
// batch is closed on every exit path, including an error from f.
func (m *Mat) RowOps(lo int, hi int, f func(*RowOpBatch) error) error {
	if m.inBatch {
		return fmt.Errorf("gsoops.RowOps: row operation batch is already open")
	}
	if lo < 0 || hi <= lo || m.b.NumRows() < hi {
		return fmt.Errorf(
			"gsoops.RowOps: range {%d, ... %d} is not within {0, ... %d}", lo, hi-1, m.b.NumRows()-1,
		)
	}
	m.inBatch = true
	defer func() {
		m.inBatch = false
		m.upToDate = false
	}()
	return f(&RowOpBatch{m: m, lo: lo, hi: hi})
}

// GaussianHeuristicDistance returns the Gaussian-heuristic estimate of the
// squared length of the shortest vector in the lattice projected onto the
// block [kappa, kappa+blockSize), scaled by ghFactor and capped at the
// provided bound. Both the bound and the return value are a mantissa in
// [0.5, 1) with a base-2 exponent. The estimate is
//
//	gh^2 = (Gamma(blockSize/2 + 1)^(2/blockSize) / pi) * vol^(2/blockSize)
//
// where vol is the product of the norms of the block's Gram-Schmidt vectors.
// The computation runs in log2 space so that blocks whose volume overflows a
// float64 are still handled.
func (m *Mat) GaussianHeuristicDistance(
	kappa int, blockSize int, maxDist float64, expo int, ghFactor float64,
) (float64, int, error) {
	if blockSize < 1 || kappa < 0 || m.b.NumRows() < kappa+blockSize {
		return 0, 0, fmt.Errorf(
			"gsoops.GaussianHeuristicDistance: block [%d, %d) is not within {0, ... %d}",
			kappa, kappa+blockSize, m.b.NumRows()-1,
		)
	}
	if ghFactor <= 0 {
		return 0, 0, fmt.Errorf("gsoops.GaussianHeuristicDistance: ghFactor = %f is not positive", ghFactor)
	}

	// log2 of the squared root-volume, (1/blockSize) sum log2 r[i][i]
	sumLog2R := 0.0
	for i := kappa; i < kappa+blockSize; i++ {
		mant, rExpo, err := m.GetRExp(i)
		if err != nil {
			return 0, 0, fmt.Errorf(
				"gsoops.GaussianHeuristicDistance: could not get r[%d][%d]: %q", i, i, err.Error(),
			)
		}
		sumLog2R += math.Log2(mant) + float64(rExpo)
	}
	k := float64(blockSize)
	logGamma, _ := math.Lgamma(k/2 + 1)
	ghLog2 := sumLog2R/k + (2/k)*(logGamma/math.Ln2) - math.Log2(math.Pi) + math.Log2(ghFactor)

	boundLog2 := math.Log2(maxDist) + float64(expo)
	if boundLog2 <= ghLog2 {
		return maxDist, expo, nil
	}
	ghExpo := int(math.Floor(ghLog2)) + 1
	return math.Exp2(ghLog2 - float64(ghExpo)), ghExpo, nil
}

func (m *Mat) ensureUpToDate(caller string) error {
	if m.inBatch {
		return fmt.Errorf("gsoops.%s: row operation batch is open", caller)
	}
	if m.upToDate {
		return nil
	}
	if err := m.UpdateGSO(); err != nil {
		return fmt.Errorf("gsoops.%s: could not update the decomposition: %q", caller, err.Error())
	}
	return nil
}
