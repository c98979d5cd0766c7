// Copyright (c) 2026 Colin McRae

// Package bkzops implements the Block Korkine-Zolotarev (BKZ) lattice basis
// reduction algorithm. The driver sweeps "tours" over the basis; at each
// index kappa of a tour it reduces the block [kappa, kappa+blockSize) by
// LLL-preprocessing it, asking an enumeration oracle for a vector of the
// projected block lattice shorter than the block's current leading vector,
// and, when one is found, inserting it at position kappa with unimodular row
// operations only. The lattice spanned by the basis rows is invariant under
// the entire procedure; only its representation improves.
package bkzops

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/thedrow/fpylll/enumops"
	"github.com/thedrow/fpylll/gsoops"
	"github.com/thedrow/fpylll/intmatrix"
	"github.com/thedrow/fpylll/lllops"
)

// ErrInvalidBasis is returned by NewReduction when the supplied basis is
// missing or empty.
var ErrInvalidBasis = errors.New("bkzops: basis must be a non-empty integer matrix")

// Enumerator is the shortest-vector oracle consumed by the driver. The
// default implementation is enumops.Oracle; tests substitute stubs.
type Enumerator interface {
	Enumerate(
		m *gsoops.Mat, maxDist float64, expo int, first int, last int, pruning []float64,
	) ([]int, float64, error)
}

// Reduction runs the BKZ algorithm over one basis. The basis is mutated in
// place through the Gram-Schmidt view; a Reduction must not be shared
// between goroutines.
type Reduction struct {
	basis  *intmatrix.IntMatrix
	m      *gsoops.Mat
	lll    *lllops.Reduction
	enum   Enumerator
	logger *zap.Logger

	// Stats holds the statistics of the most recent Run call.
	Stats *Stats
}

// Option configures a Reduction at construction time.
type Option func(*config)

type config struct {
	delta  float64
	eta    float64
	enum   Enumerator
	logger *zap.Logger
}

// WithLLLDelta overrides the Lovász parameter of the internal LLL reducer.
func WithLLLDelta(delta float64) Option {
	return func(c *config) { c.delta = delta }
}

// WithEnumerator substitutes the enumeration oracle.
func WithEnumerator(e Enumerator) Option {
	return func(c *config) { c.enum = e }
}

// WithLogger sets the logger used for verbose per-tour reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// NewReduction returns a BKZ reducer over the provided basis. The basis is
// LLL-reduced once here, so that the first tour starts from a
// well-conditioned representation. ErrInvalidBasis is returned for a nil or
// empty basis; an error from the wrapper LLL pass (e.g. dependent rows)
// propagates unmodified.
func NewReduction(basis *intmatrix.IntMatrix, options ...Option) (*Reduction, error) {
	if basis == nil || basis.NumRows() == 0 {
		return nil, ErrInvalidBasis
	}
	cfg := &config{
		delta:  lllops.DefaultDelta,
		eta:    lllops.DefaultEta,
		enum:   enumops.NewOracle(),
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(cfg)
	}
	m, err := gsoops.NewMat(basis)
	if err != nil {
		return nil, fmt.Errorf("NewReduction: could not create the Gram-Schmidt view: %q", err.Error())
	}
	lll, err := lllops.NewReduction(m, cfg.delta, cfg.eta)
	if err != nil {
		return nil, fmt.Errorf("NewReduction: could not create the LLL reducer: %q", err.Error())
	}
	if err = lll.Reduce(0, 0, basis.NumRows()); err != nil {
		return nil, fmt.Errorf("NewReduction: wrapper LLL pass failed: %q", err.Error())
	}
	for i := 0; i < basis.NumRows(); i++ {
		isZero, err := basis.IsZeroRow(i)
		if err != nil {
			return nil, fmt.Errorf("NewReduction: could not test row %d for zero: %q", i, err.Error())
		}
		if isZero {
			return nil, fmt.Errorf("NewReduction: basis rows are linearly dependent: %w", ErrInvalidBasis)
		}
	}
	return &Reduction{
		basis:  basis,
		m:      m,
		lll:    lll,
		enum:   cfg.enum,
		logger: cfg.logger,
	}, nil
}

// Basis returns the basis being reduced.
func (r *Reduction) Basis() *intmatrix.IntMatrix {
	return r.basis
}

// Mat returns the Gram-Schmidt view of the basis.
func (r *Reduction) Mat() *gsoops.Mat {
	return r.m
}

// Run performs full BKZ tours until one of the termination conditions
// fires: a tour made no change; the block size covers the whole basis; the
// auto-abort monitor reports a stall; the configured loop count is reached;
// or the wall-clock budget is exhausted. The basis is mutated in place and
// r.Stats holds the collected statistics afterwards, whether Run returns an
// error or not. Partial progress is retained on error.
func (r *Reduction) Run(params *Params) error {
	if err := params.Validate(); err != nil {
		return fmt.Errorf("Run: invalid parameters: %q", err.Error())
	}
	stats := NewStats()
	r.Stats = stats
	defer stats.Finalize()

	var monitor *autoAbort
	if params.AutoAbort {
		monitor = newAutoAbort(r.m, 0)
	}
	startTime := time.Now()
	if err := r.m.DiscoverAllRows(); err != nil {
		return fmt.Errorf("Run: could not discover the basis rows: %q", err.Error())
	}

	numRows := r.basis.NumRows()
	for i := 0; ; i++ {
		clean, err := r.runTourScope(params, numRows, stats)
		if err != nil {
			return err
		}
		if params.Verbose {
			r.logTour(i, stats)
		}
		if clean || params.BlockSize >= numRows {
			break
		}
		if monitor != nil {
			abort, err := monitor.testAbort()
			if err != nil {
				return fmt.Errorf("Run: auto-abort monitor failed: %q", err.Error())
			}
			if abort {
				break
			}
		}
		if params.MaxLoops > 0 && i+1 >= params.MaxLoops {
			break
		}
		if params.MaxTime > 0 && time.Since(startTime) >= params.MaxTime {
			break
		}
	}
	return nil
}

// runTourScope runs one full tour inside its statistics scope.
func (r *Reduction) runTourScope(params *Params, numRows int, stats *Stats) (bool, error) {
	defer stats.Enter("tour").Exit()
	return r.Tour(params, 0, numRows, stats)
}

// Tour performs one BKZ loop over indices [minRow, maxRow-1), reducing the
// block at each index with the block size truncated near maxRow. It returns
// true if no change was made at any index.
func (r *Reduction) Tour(params *Params, minRow int, maxRow int, stats *Stats) (bool, error) {
	clean := true
	for kappa := minRow; kappa < maxRow-1; kappa++ {
		blockSize := params.BlockSize
		if maxRow-kappa < blockSize {
			blockSize = maxRow - kappa
		}
		blockClean, err := r.SVPReduction(kappa, params, blockSize, stats)
		if err != nil {
			return false, fmt.Errorf("Tour: block reduction at index %d failed: %w", kappa, err)
		}
		clean = clean && blockClean
		stats.LogCleanKappa(kappa, blockClean)
	}
	return clean, nil
}

// SVPReduction reduces the block [kappa, kappa+blockSize): preprocessing,
// then the enumeration call, then insertion of the solution if one was
// found. It returns true if none of the three phases changed the basis.
func (r *Reduction) SVPReduction(kappa int, params *Params, blockSize int, stats *Stats) (bool, error) {
	clean := true

	cleanPre, err := r.preprocessingScope(kappa, params, blockSize, stats)
	if err != nil {
		return false, err
	}
	clean = clean && cleanPre

	solution, err := r.svpCallScope(kappa, params, blockSize, stats)
	if err != nil {
		return false, err
	}

	cleanPost, err := r.postprocessingScope(solution, kappa, blockSize, stats)
	if err != nil {
		return false, err
	}
	clean = clean && cleanPost

	return clean, nil
}

func (r *Reduction) preprocessingScope(kappa int, params *Params, blockSize int, stats *Stats) (bool, error) {
	defer stats.Enter("preproc").Exit()
	return r.SVPPreprocessing(kappa, params, blockSize)
}

func (r *Reduction) svpCallScope(kappa int, params *Params, blockSize int, stats *Stats) ([]int, error) {
	defer stats.Enter("svp").Exit()
	return r.SVPCall(kappa, params, blockSize)
}

func (r *Reduction) postprocessingScope(solution []int, kappa int, blockSize int, stats *Stats) (bool, error) {
	defer stats.Enter("postproc").Exit()
	return r.SVPPostprocessing(solution, kappa, blockSize)
}

// SVPPreprocessing brings the block [kappa, kappa+blockSize) to a
// well-conditioned state before enumeration: one LLL pass over the block,
// then, if nested preprocessing parameters are configured, repeated inner
// tours restricted to the block until an inner tour is clean or an inner
// termination condition fires. It returns true if nothing changed the
// basis.
//
// blockSize may be smaller than params.BlockSize for the last blocks of a
// tour.
func (r *Reduction) SVPPreprocessing(kappa int, params *Params, blockSize int) (bool, error) {
	clean := true

	if err := r.lll.Reduce(0, kappa, kappa+blockSize); err != nil {
		return false, fmt.Errorf("SVPPreprocessing: LLL over [%d, %d) failed: %q", kappa, kappa+blockSize, err.Error())
	}
	if r.lll.NumSwaps() > 0 {
		clean = false
	}

	if params.Preprocessing != nil {
		preproc := params.Preprocessing
		monitor := newAutoAbort(r.m, kappa)
		startTime := time.Now()

		for i := 0; ; i++ {
			cleanInner, err := r.Tour(preproc, kappa, kappa+blockSize, nil)
			if err != nil {
				return false, fmt.Errorf("SVPPreprocessing: inner tour %d failed: %w", i, err)
			}
			if cleanInner {
				break
			}
			// any dirty inner tour dirties the whole preprocessing phase
			clean = cleanInner
			abort, err := monitor.testAbort()
			if err != nil {
				return false, fmt.Errorf("SVPPreprocessing: auto-abort monitor failed: %q", err.Error())
			}
			if abort {
				break
			}
			if preproc.MaxLoops > 0 && i+1 >= preproc.MaxLoops {
				break
			}
			if preproc.MaxTime > 0 && time.Since(startTime) >= preproc.MaxTime {
				break
			}
		}
	}

	return clean, nil
}

// SVPCall asks the enumeration oracle for a vector of the projected block
// lattice at [kappa, kappa+blockSize) shorter than the block's current
// leading vector. The initial bound is the leading vector's squared norm,
// replaced by the scaled Gaussian heuristic estimate when params.GHFactor
// is positive. The returned coordinates are nil when no vector worth
// inserting exists: either the oracle found nothing below a heuristic
// bound, or the best vector does not beat delta times the current leading
// norm. A failure to find anything below the exact bound is an oracle
// inconsistency and is returned as an error wrapping
// enumops.ErrNoSolutionBelowBound.
func (r *Reduction) SVPCall(kappa int, params *Params, blockSize int) ([]int, error) {
	maxDist, expo, err := r.m.GetRExp(kappa)
	if err != nil {
		return nil, fmt.Errorf("SVPCall: could not get r[%d][%d]: %q", kappa, kappa, err.Error())
	}
	deltaMaxDist := r.lll.Delta() * math.Ldexp(maxDist, expo)

	ghBounded := params.GHFactor > 0
	if ghBounded {
		maxDist, expo, err = r.m.GaussianHeuristicDistance(kappa, blockSize, maxDist, expo, params.GHFactor)
		if err != nil {
			return nil, fmt.Errorf(
				"SVPCall: could not compute the Gaussian heuristic for [%d, %d): %q",
				kappa, kappa+blockSize, err.Error(),
			)
		}
	}

	pruning := params.Pruning
	if len(pruning) > blockSize {
		// the block is truncated near the tail; the oracle needs one
		// coefficient per row of the block it actually searches
		pruning = pruning[:blockSize]
	}
	solution, dist, err := r.enum.Enumerate(r.m, maxDist, expo, kappa, kappa+blockSize, pruning)
	if err != nil {
		if errors.Is(err, enumops.ErrNoSolutionBelowBound) && ghBounded {
			// the heuristic bound is allowed to be wrong
			return nil, nil
		}
		return nil, fmt.Errorf("SVPCall: enumeration over [%d, %d) failed: %w", kappa, kappa+blockSize, err)
	}

	if dist >= deltaMaxDist {
		return nil, nil
	}
	return solution, nil
}

// SVPPostprocessing inserts an enumeration solution into the basis at index
// kappa. A nil solution leaves the basis untouched. A solution that is
// (up to sign) a standard unit vector means the short vector already is a
// basis row; that row is rotated to position kappa and size-reduced. Any
// other solution is accumulated into a scratch row appended to the basis,
// rotated to position kappa, and the block plus the now-dependent row is
// LLL-reduced before the scratch row is removed again. Every path applies
// unimodular operations only, so the spanned lattice is unchanged.
func (r *Reduction) SVPPostprocessing(solution []int, kappa int, blockSize int) (bool, error) {
	if solution == nil {
		return true, nil
	}

	nonzero := 0
	unitOffset := -1
	for i := 0; i < len(solution); i++ {
		if solution[i] == 0 {
			continue
		}
		nonzero++
		if (solution[i] == 1 || solution[i] == -1) && unitOffset < 0 {
			unitOffset = i
		}
	}
	if nonzero == 0 {
		return true, nil
	}

	if nonzero == 1 && unitOffset >= 0 {
		// the short vector already is basis row kappa+unitOffset
		if err := r.m.MoveRow(kappa+unitOffset, kappa); err != nil {
			return false, fmt.Errorf(
				"SVPPostprocessing: could not move row %d to %d: %q", kappa+unitOffset, kappa, err.Error(),
			)
		}
		if err := r.lll.SizeReduction(kappa, kappa+1); err != nil {
			return false, fmt.Errorf(
				"SVPPostprocessing: could not size-reduce row %d: %q", kappa, err.Error(),
			)
		}
		return false, nil
	}

	d, err := r.m.CreateRow()
	if err != nil {
		return false, fmt.Errorf("SVPPostprocessing: could not create a scratch row: %q", err.Error())
	}
	err = r.m.RowOps(d, d+1, func(batch *gsoops.RowOpBatch) error {
		for i := 0; i < blockSize; i++ {
			if solution[i] == 0 {
				continue
			}
			if err := batch.AddMul(d, kappa+i, int64(solution[i])); err != nil {
				return fmt.Errorf("could not add %d times row %d to the scratch row: %q",
					solution[i], kappa+i, err.Error(),
				)
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("SVPPostprocessing: %q", err.Error())
	}
	if err = r.m.MoveRow(d, kappa); err != nil {
		return false, fmt.Errorf("SVPPostprocessing: could not move the scratch row to %d: %q", kappa, err.Error())
	}
	if err = r.lll.Reduce(kappa, kappa, kappa+blockSize+1); err != nil {
		return false, fmt.Errorf(
			"SVPPostprocessing: could not LLL-reduce [%d, %d): %q", kappa, kappa+blockSize+1, err.Error(),
		)
	}
	if err = r.m.MoveRow(kappa+blockSize, d); err != nil {
		return false, fmt.Errorf(
			"SVPPostprocessing: could not move row %d back to the scratch position: %q",
			kappa+blockSize, err.Error(),
		)
	}
	if err = r.m.RemoveLastRow(); err != nil {
		return false, fmt.Errorf("SVPPostprocessing: could not remove the scratch row: %q", err.Error())
	}
	return false, nil
}

// logTour reports progress after one tour through the configured logger.
func (r *Reduction) logTour(tour int, stats *Stats) {
	mant, expo, err := r.m.GetRExp(0)
	if err != nil {
		r.logger.Warn("tour completed; head norm unavailable", zap.Int("tour", tour), zap.Error(err))
		return
	}
	r.logger.Info("tour completed",
		zap.Int("tour", tour),
		zap.Float64("headNormLog2", (math.Log2(mant)+float64(expo))/2),
		zap.Duration("tourTime", stats.PhaseTime("tour")),
		zap.Duration("svpTime", stats.PhaseTime("svp")),
	)
}
