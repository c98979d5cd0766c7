// Copyright (c) 2026 Colin McRae

// Package knownanswertest exercises the public reduction API end to end on
// lattices constructed to have a known short vector: a relation among a set
// of integer weights is planted, and the reduction is expected to recover a
// relation at the head of the reduced basis.
package knownanswertest

import (
	"fmt"
	"math/rand"

	"github.com/thedrow/fpylll/util"
)

// BKZContext holds a planted-relation lattice. The basis has one row per
// weight, consisting of a standard unit vector followed by the weight
// scaled by 2^scaleLog2. A vector of that lattice whose last coordinate is
// zero encodes an integer relation among the weights, and the planted
// relation guarantees at least one such vector with small entries exists.
type BKZContext struct {
	Weights  []int64
	Relation []int64
	Input    []int64
	NumRows  int
	NumCols  int
}

// NewBKZContext plants a relation with coefficients in [-2, 2] among
// numWeights random weights from [1, weightRange] and builds the scaled
// lattice basis for it.
func NewBKZContext(numWeights int, weightRange int64, scaleLog2 int) (*BKZContext, error) {
	if numWeights < 2 || weightRange < 1 || scaleLog2 < 1 {
		return nil, fmt.Errorf(
			"NewBKZContext: invalid inputs (%d, %d, %d)", numWeights, weightRange, scaleLog2,
		)
	}
	retVal := &BKZContext{
		Weights:  make([]int64, numWeights),
		Relation: make([]int64, numWeights),
		NumRows:  numWeights,
		NumCols:  numWeights + 1,
	}

	// the last weight is chosen to satisfy the relation exactly
	var partialSum int64
	for i := 0; i < numWeights-1; i++ {
		retVal.Weights[i] = 1 + rand.Int63n(weightRange)
		retVal.Relation[i] = int64(rand.Intn(5) - 2)
		partialSum += retVal.Relation[i] * retVal.Weights[i]
	}
	retVal.Relation[numWeights-1] = 1
	retVal.Weights[numWeights-1] = -partialSum

	scale := int64(1) << scaleLog2
	retVal.Input = make([]int64, retVal.NumRows*retVal.NumCols)
	for i := 0; i < numWeights; i++ {
		retVal.Input[i*retVal.NumCols+i] = 1
		retVal.Input[i*retVal.NumCols+numWeights] = scale * retVal.Weights[i]
	}
	return retVal, nil
}

// IsRelation reports whether the first NumRows coordinates of the basis row
// encode a nonzero integer relation among the weights.
func (bc *BKZContext) IsRelation(row []int64) (bool, error) {
	if len(row) != bc.NumCols {
		return false, fmt.Errorf(
			"BKZContext.IsRelation: row has %d coordinates, want %d", len(row), bc.NumCols,
		)
	}
	dot, err := util.DotInt64(row[:bc.NumRows], bc.Weights)
	if err != nil {
		return false, fmt.Errorf("BKZContext.IsRelation: could not compute the dot product: %q", err.Error())
	}
	nonzero := false
	for i := 0; i < bc.NumRows; i++ {
		if row[i] != 0 {
			nonzero = true
			break
		}
	}
	return nonzero && dot == 0, nil
}

// RelationNormSq returns the squared norm of the planted relation, an upper
// bound on the squared norm of the shortest relation vector in the lattice.
func (bc *BKZContext) RelationNormSq() int64 {
	var retVal int64
	for i := 0; i < bc.NumRows; i++ {
		retVal += bc.Relation[i] * bc.Relation[i]
	}
	return retVal
}
