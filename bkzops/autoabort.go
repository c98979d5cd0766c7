// Copyright (c) 2026 Colin McRae

package bkzops

import (
	"fmt"
	"math"

	"github.com/thedrow/fpylll/gsoops"
)

const (
	// autoAbortScale is the factor by which the head norm must shrink
	// between tours to count as progress.
	autoAbortScale = 1.0

	// autoAbortMaxNoDec is the number of consecutive tours without
	// progress after which the monitor reports a stall.
	autoAbortMaxNoDec = 5
)

// autoAbort watches the squared norm of the Gram-Schmidt vector at the head
// of a row range across tours. One monitor is constructed per invocation
// (or per preprocessed block) and consulted once per tour.
type autoAbort struct {
	m           *gsoops.Mat
	startRow    int
	oldNormLog2 float64
	haveOldNorm bool
	noDecrease  int
}

func newAutoAbort(m *gsoops.Mat, startRow int) *autoAbort {
	return &autoAbort{m: m, startRow: startRow}
}

// testAbort records the current head norm and reports whether it has failed
// to decrease for autoAbortMaxNoDec consecutive tours.
func (a *autoAbort) testAbort() (bool, error) {
	mant, expo, err := a.m.GetRExp(a.startRow)
	if err != nil {
		return false, fmt.Errorf(
			"autoAbort.testAbort: could not get r[%d][%d]: %q", a.startRow, a.startRow, err.Error(),
		)
	}
	normLog2 := math.Log2(mant) + float64(expo)
	if !a.haveOldNorm {
		a.oldNormLog2 = normLog2
		a.haveOldNorm = true
		return false, nil
	}
	if normLog2 < a.oldNormLog2+math.Log2(autoAbortScale) {
		a.noDecrease = 0
		a.oldNormLog2 = normLog2
	} else {
		a.noDecrease++
	}
	return a.noDecrease >= autoAbortMaxNoDec, nil
}
