// Copyright (c) 2026 Colin McRae

package bkzops

import (
	"fmt"
	"time"
)

const (
	// DefaultGHFactor is the conventional scale applied to the Gaussian
	// heuristic estimate when Gaussian-heuristic bounding is enabled.
	DefaultGHFactor = 1.1

	minBlockSize = 2
)

// Params configures one invocation of the BKZ algorithm. Every field other
// than BlockSize is optional; a zero value disables the behavior it
// controls.
type Params struct {
	// BlockSize is the number of consecutive basis rows reduced together.
	// It must be at least 2 and is truncated near the end of the basis.
	BlockSize int

	// Preprocessing, when non-nil, configures nested BKZ tours run over
	// each block before its enumeration. Its BlockSize should be smaller
	// than the outer BlockSize for the nesting to terminate quickly.
	Preprocessing *Params

	// Pruning, when non-nil, holds one coefficient in (0, 1] per block row,
	// passed through to the enumeration oracle. When a block is truncated
	// near the end of the basis, so is the coefficient slice.
	Pruning []float64

	// GHFactor, when positive, enables Gaussian-heuristic bounding: the
	// enumeration bound for each block becomes the Gaussian heuristic
	// estimate scaled by GHFactor, capped at the block's current leading
	// norm. DefaultGHFactor is the conventional value.
	GHFactor float64

	// AutoAbort, when true, stops tours once the norm of the head basis
	// vector has stalled for several consecutive tours.
	AutoAbort bool

	// MaxLoops, when positive, bounds the number of full tours.
	MaxLoops int

	// MaxTime, when positive, bounds the wall-clock time spent on tours.
	// The budget is checked only at tour boundaries, so a single block
	// reduction is never interrupted.
	MaxTime time.Duration

	// Verbose turns on per-tour progress logging through the logger the
	// Reduction was constructed with.
	Verbose bool
}

// Validate reports whether p is a usable parameter set, recursing into the
// nested preprocessing parameters.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("Params.Validate: params must not be nil")
	}
	if p.BlockSize < minBlockSize {
		return fmt.Errorf("Params.Validate: block size %d < %d", p.BlockSize, minBlockSize)
	}
	if p.Pruning != nil {
		if len(p.Pruning) != p.BlockSize {
			return fmt.Errorf(
				"Params.Validate: %d pruning coefficients for block size %d",
				len(p.Pruning), p.BlockSize,
			)
		}
		for i, c := range p.Pruning {
			if c <= 0 || 1 < c {
				return fmt.Errorf(
					"Params.Validate: pruning coefficient %d is %f, outside (0, 1]", i, c,
				)
			}
		}
	}
	if p.GHFactor < 0 {
		return fmt.Errorf("Params.Validate: Gaussian heuristic factor %f is negative", p.GHFactor)
	}
	if p.MaxLoops < 0 {
		return fmt.Errorf("Params.Validate: max loop count %d is negative", p.MaxLoops)
	}
	if p.MaxTime < 0 {
		return fmt.Errorf("Params.Validate: max time %v is negative", p.MaxTime)
	}
	if p.Preprocessing != nil {
		if err := p.Preprocessing.Validate(); err != nil {
			return fmt.Errorf("Params.Validate: invalid preprocessing parameters: %q", err.Error())
		}
	}
	return nil
}
