// Copyright (c) 2026 Colin McRae

// Package enumops searches a block of a basis for the shortest nonzero
// vector of the projected sublattice. For a block [first, last), a candidate
// vector v = sum x_i b_(first+i) has projected squared length
//
//	          last-1-first                    t-1
//	|pi(v)|^2  =   sum     y_t^2 r[t],  y_t = x_t + sum mu-terms of x_u, u > t
//	               t=0
//
// where r[t] is the squared norm of the t-th Gram-Schmidt vector of the
// block. The search is a depth-first traversal over the coordinates x_t from
// the last to the first, visiting the candidates for each coordinate in
// order of increasing contribution, so a subtree is abandoned as soon as its
// partial length exceeds the bound.
package enumops

import (
	"errors"
	"fmt"
	"math"

	"github.com/thedrow/fpylll/gsoops"
)

// ErrNoSolutionBelowBound is returned by Enumerate when no nonzero vector
// of the projected block lattice has squared length at or below the bound.
var ErrNoSolutionBelowBound = errors.New("enumops: no lattice vector below the search bound")

// A coordinate beyond this magnitude kills its branch of the search; a
// genuine shortest vector of a preprocessed block never needs it.
const maxCoordinate = 1 << 30

// Oracle is the concrete shortest-vector enumeration oracle.
type Oracle struct{}

// NewOracle returns an enumeration oracle.
func NewOracle() *Oracle {
	return &Oracle{}
}

// Enumerate searches the block [first, last) of m for the shortest nonzero
// vector with squared length at most maxDist * 2^expo, and returns its
// coordinates with respect to the block's basis rows together with its
// squared length. Candidates exactly at the bound are accepted, so a bound
// equal to r[first][first] always has the block's own leading row as a
// solution. If pruning is non-nil it must have one coefficient in (0, 1]
// per block row; coefficient i scales the bound applied once i+1
// coordinates are fixed.
//
// ErrNoSolutionBelowBound is returned when the search space is empty.
func (o *Oracle) Enumerate(
	m *gsoops.Mat, maxDist float64, expo int, first int, last int, pruning []float64,
) ([]int, float64, error) {
	return Enumerate(m, maxDist, expo, first, last, pruning)
}

// Enumerate is the package-level form of Oracle.Enumerate.
func Enumerate(
	m *gsoops.Mat, maxDist float64, expo int, first int, last int, pruning []float64,
) ([]int, float64, error) {
	if m == nil {
		return nil, 0, fmt.Errorf("enumops.Enumerate: m must not be nil")
	}
	k := last - first
	if first < 0 || k < 1 || m.RowCount() < last {
		return nil, 0, fmt.Errorf(
			"enumops.Enumerate: block [%d, %d) is not within {0, ... %d}", first, last, m.RowCount()-1,
		)
	}
	if pruning != nil && len(pruning) != k {
		return nil, 0, fmt.Errorf(
			"enumops.Enumerate: %d pruning coefficients for a block of %d rows", len(pruning), k,
		)
	}
	if maxDist <= 0 {
		return nil, 0, fmt.Errorf("enumops.Enumerate: bound mantissa %f is not positive", maxDist)
	}

	s := &searcher{
		k:       k,
		r:       make([]float64, k),
		mu:      make([][]float64, k),
		radius:  math.Ldexp(maxDist, expo),
		pruning: pruning,
		x:       make([]int, k),
	}
	for t := 0; t < k; t++ {
		mant, rExpo, err := m.GetRExp(first + t)
		if err != nil {
			return nil, 0, fmt.Errorf(
				"enumops.Enumerate: could not get r[%d][%d]: %q", first+t, first+t, err.Error(),
			)
		}
		s.r[t] = math.Ldexp(mant, rExpo)
		s.mu[t] = make([]float64, t)
		for u := 0; u < t; u++ {
			s.mu[t][u], err = m.MuFloat64(first+t, first+u)
			if err != nil {
				return nil, 0, fmt.Errorf(
					"enumops.Enumerate: could not get mu[%d][%d]: %q", first+t, first+u, err.Error(),
				)
			}
		}
	}

	s.search(k-1, 0)
	if !s.found {
		return nil, 0, ErrNoSolutionBelowBound
	}
	return s.best, s.bestDist, nil
}

type searcher struct {
	k        int
	r        []float64
	mu       [][]float64 // mu[t][u] for u < t, block-local indices
	radius   float64     // current squared search radius; shrinks on improvement
	pruning  []float64
	x        []int // coordinates fixed so far, levels t..k-1
	best     []int
	bestDist float64
	found    bool
}

// search fixes coordinate t given that levels t+1..k-1 are already fixed
// with partial squared length dist. Candidates for x_t are visited by
// walking outward from the real-valued center, one frontier on each side,
// so each side can be abandoned the moment it leaves the bound.
func (s *searcher) search(t int, dist float64) {
	center := 0.0
	for u := t + 1; u < s.k; u++ {
		center -= s.mu[u][t] * float64(s.x[u])
	}
	lo := math.Floor(center)
	hi := lo + 1
	loAlive, hiAlive := true, true
	for loAlive || hiAlive {
		pickLo := loAlive
		if loAlive && hiAlive {
			pickLo = center-lo <= hi-center
		}
		x := hi
		if pickLo {
			x = lo
		}
		y := x - center
		d := dist + y*y*s.r[t]
		if d > s.levelBound(t) || math.Abs(x) > maxCoordinate {
			// |y| only grows on this side from here on
			if pickLo {
				loAlive = false
			} else {
				hiAlive = false
			}
		} else {
			s.x[t] = int(x)
			if t == 0 {
				s.record(d)
			} else {
				s.search(t-1, d)
			}
		}
		if pickLo {
			lo--
		} else {
			hi++
		}
	}
}

// record accepts the complete candidate in s.x with squared length d,
// unless it is the zero vector. The search radius shrinks to d, so later
// candidates must improve on it.
func (s *searcher) record(d float64) {
	nonzero := false
	for t := 0; t < s.k; t++ {
		if s.x[t] != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		return
	}
	if s.found && d >= s.bestDist {
		return
	}
	if s.best == nil {
		s.best = make([]int, s.k)
	}
	copy(s.best, s.x)
	s.bestDist = d
	s.radius = d
	s.found = true
}

// levelBound returns the squared bound applied to a partial candidate with
// levels t..k-1 fixed.
func (s *searcher) levelBound(t int) float64 {
	if s.pruning == nil {
		return s.radius
	}
	return s.radius * s.pruning[s.k-1-t]
}
