package bkzops

// Copyright (c) 2026 Colin McRae

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/predrag3141/PSLQ/bignumber"

	"github.com/thedrow/fpylll/enumops"
	"github.com/thedrow/fpylll/gsoops"
	"github.com/thedrow/fpylll/intmatrix"
	"github.com/thedrow/fpylll/util"
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

// stubEnumerator replaces the enumeration oracle in tests. When err is set
// it is returned on every call; otherwise the configured solution is
// returned padded to the block size.
type stubEnumerator struct {
	solution []int
	dist     float64
	err      error
	calls    int
}

func (e *stubEnumerator) Enumerate(
	m *gsoops.Mat, maxDist float64, expo int, first int, last int, pruning []float64,
) ([]int, float64, error) {
	e.calls++
	if e.err != nil {
		return nil, 0, e.err
	}
	solution := make([]int, last-first)
	copy(solution, e.solution)
	return solution, e.dist, nil
}

func TestNewReduction(t *testing.T) {
	_, err := NewReduction(nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidBasis))

	empty, err := intmatrix.NewEmpty(0, 3)
	require.NoError(t, err)
	_, err = NewReduction(empty)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidBasis))

	// linearly dependent rows are detected by the wrapper LLL pass
	dependent, err := intmatrix.NewFromInt64Array([]int64{1, 0, 2, 0}, 2, 2)
	require.NoError(t, err)
	_, err = NewReduction(dependent)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidBasis))

	// the wrapper LLL pass reduces the basis at construction
	input := []int64{1, 1, 1, -1, 0, 2, 3, 5, 6}
	b, err := intmatrix.NewFromInt64Array(input, 3, 3)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)
	require.Same(t, b, r.Basis())
	requireLatticeInvariant(t, input, b, 3, 3)
	require.InDelta(t, 0.0, headNormLog2(t, r), float64Toler)

	// invalid LLL parameters propagate
	b2, err := intmatrix.NewFromInt64Array([]int64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	_, err = NewReduction(b2, WithLLLDelta(1.5))
	require.Error(t, err)
}

// TestRunKnownBasis runs full-block BKZ on the classic example basis and
// checks that the result spans the same lattice with the lattice's
// shortest vector, of squared norm 1, at its head.
func TestRunKnownBasis(t *testing.T) {
	input := []int64{1, 1, 1, -1, 0, 2, 3, 5, 6}
	b, err := intmatrix.NewFromInt64Array(input, 3, 3)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)

	require.NoError(t, r.Run(&Params{BlockSize: 3}))
	requireLatticeInvariant(t, input, b, 3, 3)
	require.Equal(t, 3, b.NumRows())
	require.InDelta(t, 0.0, headNormLog2(t, r), float64Toler)

	// the block size covers the basis, so exactly one tour ran
	require.Equal(t, 1, r.Stats.TourCount())
	require.Equal(t, 2, r.Stats.PhaseCount("preproc"))
	require.Equal(t, 2, r.Stats.PhaseCount("svp"))
	require.Equal(t, 2, r.Stats.PhaseCount("postproc"))
	_, ok := r.Stats.CleanKappa(0)
	require.True(t, ok)
	require.Greater(t, r.Stats.TotalTime(), time.Duration(0))

	// a block size beyond the basis is truncated, with the same outcome
	b2, err := intmatrix.NewFromInt64Array(input, 3, 3)
	require.NoError(t, err)
	r2, err := NewReduction(b2)
	require.NoError(t, err)
	require.NoError(t, r2.Run(&Params{BlockSize: 10}))
	require.Equal(t, 1, r2.Stats.TourCount())
	require.InDelta(t, 0.0, headNormLog2(t, r2), float64Toler)

	require.Error(t, r.Run(&Params{BlockSize: 1}))
}

// TestRunRandomBases runs BKZ with preprocessing, Gaussian-heuristic
// bounding and auto-abort over random bases, and checks lattice invariance
// and that the head norm never got worse than the wrapper LLL left it.
func TestRunRandomBases(t *testing.T) {
	const (
		numTests   = 3
		numRows    = 6
		entryRange = 50
		minSeed    = 24611
	)

	rand.Seed(minSeed)
	for test := 0; test < numTests; test++ {
		input := make([]int64, numRows*numRows)
		for i := 0; i < len(input); i++ {
			input[i] = int64(rand.Intn(2*entryRange+1) - entryRange)
		}
		// diagonal dominance keeps the random basis non-singular
		for i := 0; i < numRows; i++ {
			input[i*numRows+i] = int64(numRows*entryRange + 1 + rand.Intn(entryRange))
		}
		b, err := intmatrix.NewFromInt64Array(input, numRows, numRows)
		require.NoError(t, err)
		r, err := NewReduction(b)
		require.NoError(t, err)
		headAfterLLL := headNormLog2(t, r)

		err = r.Run(&Params{
			BlockSize:     3,
			Preprocessing: &Params{BlockSize: 2, MaxLoops: 2},
			GHFactor:      DefaultGHFactor,
			AutoAbort:     true,
			MaxLoops:      8,
		})
		require.NoError(t, err)
		requireLatticeInvariant(t, input, b, numRows, numRows)
		require.Equal(t, numRows, b.NumRows())
		require.LessOrEqual(t, headNormLog2(t, r), headAfterLLL+float64Toler)
		require.GreaterOrEqual(t, r.Stats.TourCount(), 1)
	}
}

// TestRunPruning runs BKZ with pruning coefficients on a basis with more
// rows than BlockSize+1, so that blocks near the tail are truncated and the
// coefficient slice must be truncated with them.
func TestRunPruning(t *testing.T) {
	// strictly diagonally dominant, hence non-singular
	input := []int64{
		12, 1, -3, 5, 2,
		-2, 9, 4, 1, -1,
		3, -4, 10, 2, 0,
		1, 2, 2, -9, 3,
		-1, 0, 5, 1, 9,
	}
	b, err := intmatrix.NewFromInt64Array(input, 5, 5)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)

	// all-ones coefficients leave the search bound unchanged
	err = r.Run(&Params{
		BlockSize: 3,
		Pruning:   []float64{1.0, 1.0, 1.0},
		GHFactor:  DefaultGHFactor,
		MaxLoops:  2,
	})
	require.NoError(t, err)
	requireLatticeInvariant(t, input, b, 5, 5)
	require.GreaterOrEqual(t, r.Stats.TourCount(), 1)

	// genuine pruning shrinks the bound at the deeper levels; pruned-away
	// solutions below the heuristic bound are not an error
	b2, err := intmatrix.NewFromInt64Array(input, 5, 5)
	require.NoError(t, err)
	r2, err := NewReduction(b2)
	require.NoError(t, err)
	err = r2.Run(&Params{
		BlockSize: 3,
		Pruning:   []float64{1.0, 0.9, 0.7},
		GHFactor:  DefaultGHFactor,
		MaxLoops:  2,
	})
	require.NoError(t, err)
	requireLatticeInvariant(t, input, b2, 5, 5)
}

// TestRunCleanIsIdempotent reduces a basis to a clean state and checks that
// a second invocation terminates after a single tour without changing the
// basis.
func TestRunCleanIsIdempotent(t *testing.T) {
	input := []int64{
		8, 1, -3, 5,
		-2, 9, 4, 1,
		3, -4, 7, 2,
		1, 2, 2, -9,
	}
	b, err := intmatrix.NewFromInt64Array(input, 4, 4)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)
	require.NoError(t, r.Run(&Params{BlockSize: 2, AutoAbort: true, MaxLoops: 20}))
	reduced := b.Copy()

	require.NoError(t, r.Run(&Params{BlockSize: 2, AutoAbort: true, MaxLoops: 20}))
	require.Equal(t, 1, r.Stats.TourCount())
	require.True(t, b.Equals(reduced))
}

// TestRunHeuristicBoundFailureIsRecoverable checks the two sides of the
// enumeration failure policy: an empty search below a Gaussian-heuristic
// bound is no solution worth inserting, while an empty search below the
// exact bound is a collaborator inconsistency and fatal.
func TestRunHeuristicBoundFailureIsRecoverable(t *testing.T) {
	input := []int64{1, 1, 1, -1, 0, 2, 3, 5, 6}
	b, err := intmatrix.NewFromInt64Array(input, 3, 3)
	require.NoError(t, err)
	stub := &stubEnumerator{err: enumops.ErrNoSolutionBelowBound}
	r, err := NewReduction(b, WithEnumerator(stub))
	require.NoError(t, err)

	require.NoError(t, r.Run(&Params{BlockSize: 2, GHFactor: DefaultGHFactor}))
	require.Equal(t, 2, stub.calls)
	require.Equal(t, 1, r.Stats.TourCount())
	requireLatticeInvariant(t, input, b, 3, 3)
}

func TestRunExactBoundFailureIsFatal(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{1, 1, 1, -1, 0, 2, 3, 5, 6}, 3, 3)
	require.NoError(t, err)
	stub := &stubEnumerator{err: enumops.ErrNoSolutionBelowBound}
	r, err := NewReduction(b, WithEnumerator(stub))
	require.NoError(t, err)

	err = r.Run(&Params{BlockSize: 2})
	require.Error(t, err)
	require.True(t, errors.Is(err, enumops.ErrNoSolutionBelowBound))

	// statistics are finalized even on the error path
	require.Greater(t, r.Stats.TotalTime(), time.Duration(0))
}

// TestRunMaxLoops uses a stub that re-inserts the block's own leading row,
// which dirties every block, so only the loop budget can end the run.
func TestRunMaxLoops(t *testing.T) {
	b, err := intmatrix.NewIdentity(4)
	require.NoError(t, err)
	stub := &stubEnumerator{solution: []int{1}, dist: 0.5}
	r, err := NewReduction(b, WithEnumerator(stub))
	require.NoError(t, err)

	require.NoError(t, r.Run(&Params{BlockSize: 2, MaxLoops: 3}))
	require.Equal(t, 3, r.Stats.TourCount())
}

func TestRunMaxTime(t *testing.T) {
	b, err := intmatrix.NewIdentity(4)
	require.NoError(t, err)
	stub := &stubEnumerator{solution: []int{1}, dist: 0.5}
	r, err := NewReduction(b, WithEnumerator(stub))
	require.NoError(t, err)

	// the budget is checked at tour boundaries, so exactly one tour runs
	require.NoError(t, r.Run(&Params{BlockSize: 2, MaxTime: time.Nanosecond}))
	require.Equal(t, 1, r.Stats.TourCount())
}

func TestRunAutoAbort(t *testing.T) {
	b, err := intmatrix.NewIdentity(4)
	require.NoError(t, err)
	stub := &stubEnumerator{solution: []int{1}, dist: 0.5}
	r, err := NewReduction(b, WithEnumerator(stub))
	require.NoError(t, err)

	// the head norm of the identity basis never decreases: one tour primes
	// the monitor and autoAbortMaxNoDec stalled tours end the run
	require.NoError(t, r.Run(&Params{BlockSize: 2, AutoAbort: true}))
	require.Equal(t, autoAbortMaxNoDec+1, r.Stats.TourCount())
}

func TestRunVerboseLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	b, err := intmatrix.NewFromInt64Array([]int64{1, 1, 1, -1, 0, 2, 3, 5, 6}, 3, 3)
	require.NoError(t, err)
	r, err := NewReduction(b, WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.NoError(t, r.Run(&Params{BlockSize: 3, Verbose: true}))
	require.Equal(t, r.Stats.TourCount(), logs.Len())
}

func TestSVPPostprocessingNilSolution(t *testing.T) {
	b, err := intmatrix.NewIdentity(3)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)

	clean, err := r.SVPPostprocessing(nil, 0, 2)
	require.NoError(t, err)
	require.True(t, clean)
	clean, err = r.SVPPostprocessing([]int{0, 0}, 0, 2)
	require.NoError(t, err)
	require.True(t, clean)
	require.Equal(t, 3, b.NumRows())
}

// TestSVPPostprocessingUnitSolution checks the path for a solution that is
// a standard unit vector up to sign: the corresponding row is rotated to
// the head of the block.
func TestSVPPostprocessingUnitSolution(t *testing.T) {
	b, err := intmatrix.NewIdentity(3)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)

	clean, err := r.SVPPostprocessing([]int{0, -1}, 0, 2)
	require.NoError(t, err)
	require.False(t, clean)
	actual, err := b.ToInt64Array()
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 0, 1, 0, 0, 0, 0, 1}, actual)
	require.Equal(t, 3, b.NumRows())
}

// TestSVPPostprocessingGeneralSolution checks the scratch-row path: the
// solution vector is accumulated into an appended row, the block plus the
// now-dependent row is LLL-reduced, and the scratch row is removed, leaving
// the row count and the spanned lattice unchanged.
func TestSVPPostprocessingGeneralSolution(t *testing.T) {
	input := []int64{2, 0, 0, 3}
	b, err := intmatrix.NewFromInt64Array(input, 2, 2)
	require.NoError(t, err)
	r, err := NewReduction(b)
	require.NoError(t, err)

	clean, err := r.SVPPostprocessing([]int{1, 1}, 0, 2)
	require.NoError(t, err)
	require.False(t, clean)
	require.Equal(t, 2, b.NumRows())
	requireLatticeInvariant(t, input, b, 2, 2)
}

func TestAutoAbortMonitor(t *testing.T) {
	b, err := intmatrix.NewFromInt64Array([]int64{2, 1, 1, 1}, 2, 2)
	require.NoError(t, err)
	m, err := gsoops.NewMat(b)
	require.NoError(t, err)
	monitor := newAutoAbort(m, 0)

	// the first observation primes the monitor
	abort, err := monitor.testAbort()
	require.NoError(t, err)
	require.False(t, abort)

	// a decrease of the head norm resets the stall count
	require.NoError(t, m.RowAddMul(0, 1, -1))
	abort, err = monitor.testAbort()
	require.NoError(t, err)
	require.False(t, abort)

	// without further decreases the monitor reports a stall
	for i := 1; i < autoAbortMaxNoDec; i++ {
		abort, err = monitor.testAbort()
		require.NoError(t, err)
		require.False(t, abort)
	}
	abort, err = monitor.testAbort()
	require.NoError(t, err)
	require.True(t, abort)
}

// headNormLog2 returns log2 of the squared norm of the first Gram-Schmidt
// vector.
func headNormLog2(t *testing.T, r *Reduction) float64 {
	mant, expo, err := r.Mat().GetRExp(0)
	require.NoError(t, err)
	return math.Log2(mant) + float64(expo)
}

// requireLatticeInvariant checks that the rows of b span the same lattice
// as the original input, by comparing Hermite normal forms.
func requireLatticeInvariant(t *testing.T, input []int64, b *intmatrix.IntMatrix, numRows, numCols int) {
	expected, err := util.HermiteNormalForm(input, numRows, numCols)
	require.NoError(t, err)
	reduced, err := b.ToInt64Array()
	require.NoError(t, err)
	actual, err := util.HermiteNormalForm(reduced, numRows, numCols)
	require.NoError(t, err)
	require.Equal(t, expected, actual)
}
