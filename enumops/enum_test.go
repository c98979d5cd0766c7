package enumops

// Copyright (c) 2026 Colin McRae

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/predrag3141/PSLQ/bignumber"

	"github.com/thedrow/fpylll/gsoops"
	"github.com/thedrow/fpylll/intmatrix"
)

const (
	binaryPrecision = 1000
	float64Toler    = 1.e-10
)

func TestMain(m *testing.M) {
	err := bignumber.Init(binaryPrecision)
	if err != nil {
		fmt.Printf("Invalid input to Init: %q", err.Error())
		return
	}
	code := m.Run()
	os.Exit(code)
}

// TestEnumerateKnownBasis enumerates the lattice spanned by (1, 2) and
// (2, 1). A vector a (1, 2) + b (2, 1) has squared norm
// 5a^2 + 8ab + 5b^2, minimized at 2 by (a, b) = +/-(1, -1).
func TestEnumerateKnownBasis(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 2, 2, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	// bound = r[0][0] = 5
	mant, expo, err := m.GetRExp(0)
	require.NoError(t, err)
	solution, dist, err := NewOracle().Enumerate(m, mant, expo, 0, 2, nil)
	require.NoError(t, err)
	require.InDelta(t, 2.0, dist, float64Toler)
	require.Len(t, solution, 2)
	require.Equal(t, -1, solution[0]*solution[1])
}

// TestEnumerateExactBound checks that a vector whose squared length equals
// the bound exactly is found: the bound r[0][0] always has the block's own
// leading row as a solution.
func TestEnumerateExactBound(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	solution, dist, err := Enumerate(m, 0.5, 1, 0, 2, nil)
	require.NoError(t, err)
	require.InDelta(t, 1.0, dist, float64Toler)
	require.Equal(t, 1, solution[0]*solution[0]+solution[1]*solution[1])
}

// TestEnumerateNoSolution shrinks the bound below the length of the
// shortest nonzero vector and expects the sentinel error.
func TestEnumerateNoSolution(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	solution, _, err := Enumerate(m, 0.5, 0, 0, 2, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoSolutionBelowBound))
	require.Nil(t, solution)
}

// TestEnumerateProjectedBlock enumerates the block [1, 3) of a rank-3
// basis, i.e. the lattice projected away from the first row. For the basis
// below, r[1][1] = 14/3, mu[2][1] = 13/14 and r[2][2] = 9/14, so the
// projection of b2 - b1 has squared length
// (13/14 - 1)^2 (14/3) + 9/14 = 2/3, the minimum.
func TestEnumerateProjectedBlock(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 1, 1, -1, 0, 2, 3, 5, 6}, 3, 3)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	mant, expo, err := m.GetRExp(1)
	require.NoError(t, err)
	solution, dist, err := Enumerate(m, mant, expo, 1, 3, nil)
	require.NoError(t, err)
	require.InDelta(t, 2.0/3.0, dist, float64Toler)
	require.Len(t, solution, 2)
	require.Equal(t, -1, solution[0]*solution[1])
}

func TestEnumeratePruning(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	// trivial pruning coefficients change nothing
	solution, dist, err := Enumerate(m, 0.5, 1, 0, 2, []float64{1.0, 1.0})
	require.NoError(t, err)
	require.InDelta(t, 1.0, dist, float64Toler)
	require.Len(t, solution, 2)

	// an aggressive final coefficient prunes away the exact-bound solution
	_, _, err = Enumerate(m, 0.5, 1, 0, 2, []float64{1.0, 0.5})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNoSolutionBelowBound))

	// one coefficient per block row, nothing else
	_, _, err = Enumerate(m, 0.5, 1, 0, 2, []float64{1.0})
	require.Error(t, err)
}

func TestEnumerateArgumentValidation(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)

	_, _, err = Enumerate(nil, 0.5, 1, 0, 2, nil)
	require.Error(t, err)
	_, _, err = Enumerate(m, 0.5, 1, -1, 2, nil)
	require.Error(t, err)
	_, _, err = Enumerate(m, 0.5, 1, 1, 1, nil)
	require.Error(t, err)
	_, _, err = Enumerate(m, 0.5, 1, 0, 3, nil)
	require.Error(t, err)
	_, _, err = Enumerate(m, 0.0, 1, 0, 2, nil)
	require.Error(t, err)
}
