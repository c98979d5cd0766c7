// Copyright (c) 2026 Colin McRae

// Package intmatrix stores a lattice basis as a matrix of integer-valued
// BigNumbers and performs the unimodular row operations that lattice basis
// reduction needs: row swaps, row rotations, and multiply-add of one row
// into another. Keeping the entries in BigNumbers means a long run of row
// operations with large coefficients never overflows.
package intmatrix

import (
	"fmt"
	"strings"

	"github.com/predrag3141/PSLQ/bignumber"
)

// IntMatrix is a mutable matrix of integer-valued BigNumbers. The number of
// columns is fixed at construction; rows can be appended and removed, which
// is how a scratch row is created for inserting a new lattice vector.
type IntMatrix struct {
	rows    [][]*bignumber.BigNumber
	numCols int
}

// NewEmpty returns a numRows x numCols matrix with 0s in each entry. An
// error is returned unless numRows >= 0 and numCols > 0.
func NewEmpty(numRows int, numCols int) (*IntMatrix, error) {
	if numRows < 0 || numCols <= 0 {
		return nil, fmt.Errorf(
			"IntMatrix.NewEmpty: illegal number of rows %d or columns %d", numRows, numCols,
		)
	}
	retVal := &IntMatrix{
		rows:    make([][]*bignumber.BigNumber, numRows),
		numCols: numCols,
	}
	for i := 0; i < numRows; i++ {
		retVal.rows[i] = newZeroRow(numCols)
	}
	return retVal, nil
}

// NewFromInt64Array creates a matrix with integer-valued BigNumbers from
// input with dimensions numRowsIn x numColsIn. If the number of rows and
// columns are not positive and/or do not match the length of the input, an
// error is returned.
func NewFromInt64Array(input []int64, numRowsIn int, numColsIn int) (*IntMatrix, error) {
	if len(input) != numRowsIn*numColsIn {
		return nil, fmt.Errorf("IntMatrix.NewFromInt64Array: length of input does not match dimensions")
	}
	if numRowsIn <= 0 || numColsIn <= 0 {
		return nil, fmt.Errorf(
			"IntMatrix.NewFromInt64Array: illegal number of rows %d or columns %d",
			numRowsIn, numColsIn,
		)
	}
	retVal := &IntMatrix{
		rows:    make([][]*bignumber.BigNumber, numRowsIn),
		numCols: numColsIn,
	}
	for i := 0; i < numRowsIn; i++ {
		retVal.rows[i] = make([]*bignumber.BigNumber, numColsIn)
		for j := 0; j < numColsIn; j++ {
			retVal.rows[i][j] = bignumber.NewFromInt64(input[i*numColsIn+j])
		}
	}
	return retVal, nil
}

// NewIdentity returns a dim x dim identity matrix. If dim < 1, an error is
// returned.
func NewIdentity(dim int) (*IntMatrix, error) {
	if dim < 1 {
		return nil, fmt.Errorf("IntMatrix.NewIdentity: dimension %d < 1", dim)
	}
	retVal, err := NewEmpty(dim, dim)
	if err != nil {
		return nil, fmt.Errorf("IntMatrix.NewIdentity: could not create empty matrix: %q", err.Error())
	}
	one := bignumber.NewFromInt64(1)
	for i := 0; i < dim; i++ {
		retVal.rows[i][i].Set(one)
	}
	return retVal, nil
}

// NumRows returns the current number of rows in im.
func (im *IntMatrix) NumRows() int {
	return len(im.rows)
}

// NumCols returns the number of columns in im.
func (im *IntMatrix) NumCols() int {
	return im.numCols
}

// Dimensions returns the number of rows and columns in im, in that order.
func (im *IntMatrix) Dimensions() (int, int) {
	return len(im.rows), im.numCols
}

// Get returns the pointer to the value in row i, column j of im. This is
// not a deep copy.
func (im *IntMatrix) Get(i int, j int) (*bignumber.BigNumber, error) {
	if i < 0 || len(im.rows) <= i {
		return nil, fmt.Errorf("IntMatrix.Get: index i = %d outside range {0, ... %d}", i, len(im.rows)-1)
	}
	if j < 0 || im.numCols <= j {
		return nil, fmt.Errorf("IntMatrix.Get: index j = %d outside range {0, ... %d}", j, im.numCols-1)
	}
	return im.rows[i][j], nil
}

// Set sets the value in row i, column j to x. This is a deep copy.
func (im *IntMatrix) Set(i int, j int, x *bignumber.BigNumber) error {
	if i < 0 || len(im.rows) <= i {
		return fmt.Errorf("IntMatrix.Set: index i = %d outside range {0, ... %d}", i, len(im.rows)-1)
	}
	if j < 0 || im.numCols <= j {
		return fmt.Errorf("IntMatrix.Set: index j = %d outside range {0, ... %d}", j, im.numCols-1)
	}
	im.rows[i][j].Set(x)
	return nil
}

// SetInt64 sets the value in row i, column j to the provided int64.
func (im *IntMatrix) SetInt64(i int, j int, x int64) error {
	return im.Set(i, j, bignumber.NewFromInt64(x))
}

// AppendZeroRow appends a row of 0s to im and returns the index of the
// new row.
func (im *IntMatrix) AppendZeroRow() int {
	im.rows = append(im.rows, newZeroRow(im.numCols))
	return len(im.rows) - 1
}

// RemoveLastRow removes the last row of im. An error is returned if im has
// no rows.
func (im *IntMatrix) RemoveLastRow() error {
	if len(im.rows) == 0 {
		return fmt.Errorf("IntMatrix.RemoveLastRow: matrix has no rows")
	}
	im.rows = im.rows[:len(im.rows)-1]
	return nil
}

// SwapRows swaps rows i and j of im.
func (im *IntMatrix) SwapRows(i int, j int) error {
	if err := im.checkRow(i, "SwapRows"); err != nil {
		return err
	}
	if err := im.checkRow(j, "SwapRows"); err != nil {
		return err
	}
	im.rows[i], im.rows[j] = im.rows[j], im.rows[i]
	return nil
}

// MoveRow removes row from from im and re-inserts it at position to,
// shifting the rows in between by one position. Rows outside the range
// between from and to are unaffected. This is the row rotation that moves
// a newly found short vector to the head of a block.
func (im *IntMatrix) MoveRow(from int, to int) error {
	if err := im.checkRow(from, "MoveRow"); err != nil {
		return err
	}
	if err := im.checkRow(to, "MoveRow"); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	moved := im.rows[from]
	if from < to {
		copy(im.rows[from:to], im.rows[from+1:to+1])
	} else {
		copy(im.rows[to+1:from+1], im.rows[to:from])
	}
	im.rows[to] = moved
	return nil
}

// AddMulRow adds coeff times row src to row dest, leaving row src
// unchanged. dest and src must differ, since the result of aliasing them
// is not a unimodular operation for coeff = -1.
func (im *IntMatrix) AddMulRow(dest int, src int, coeff int64) error {
	if err := im.checkRow(dest, "AddMulRow"); err != nil {
		return err
	}
	if err := im.checkRow(src, "AddMulRow"); err != nil {
		return err
	}
	if dest == src {
		return fmt.Errorf("IntMatrix.AddMulRow: dest and src are both %d", dest)
	}
	if coeff == 0 {
		return nil
	}
	for j := 0; j < im.numCols; j++ {
		im.rows[dest][j].Int64MulAdd(coeff, im.rows[src][j])
	}
	return nil
}

// IsZeroRow reports whether every entry of row i is exactly zero.
func (im *IntMatrix) IsZeroRow(i int) (bool, error) {
	if err := im.checkRow(i, "IsZeroRow"); err != nil {
		return false, err
	}
	for j := 0; j < im.numCols; j++ {
		if !im.rows[i][j].IsZero() {
			return false, nil
		}
	}
	return true, nil
}

// DotRows returns the dot product of rows i and j of im.
func (im *IntMatrix) DotRows(i int, j int) (*bignumber.BigNumber, error) {
	if err := im.checkRow(i, "DotRows"); err != nil {
		return nil, err
	}
	if err := im.checkRow(j, "DotRows"); err != nil {
		return nil, err
	}
	retVal := bignumber.NewFromInt64(0)
	for k := 0; k < im.numCols; k++ {
		retVal.MulAdd(im.rows[i][k], im.rows[j][k])
	}
	return retVal, nil
}

// Copy returns a deep copy of im.
func (im *IntMatrix) Copy() *IntMatrix {
	retVal := &IntMatrix{
		rows:    make([][]*bignumber.BigNumber, len(im.rows)),
		numCols: im.numCols,
	}
	for i := 0; i < len(im.rows); i++ {
		retVal.rows[i] = make([]*bignumber.BigNumber, im.numCols)
		for j := 0; j < im.numCols; j++ {
			retVal.rows[i][j] = bignumber.NewFromInt64(0).Set(im.rows[i][j])
		}
	}
	return retVal
}

// Equals reports whether im and x have the same dimensions and exactly
// equal entries.
func (im *IntMatrix) Equals(x *IntMatrix) bool {
	if len(im.rows) != len(x.rows) || im.numCols != x.numCols {
		return false
	}
	for i := 0; i < len(im.rows); i++ {
		for j := 0; j < im.numCols; j++ {
			if im.rows[i][j].Cmp(x.rows[i][j]) != 0 {
				return false
			}
		}
	}
	return true
}

// ToInt64Array returns the entries of im as an []int64 in row-major order.
// An error is returned if any entry does not fit in an int64, e.g. after
// reducing a basis whose entries were already near the int64 limit.
func (im *IntMatrix) ToInt64Array() ([]int64, error) {
	retVal := make([]int64, len(im.rows)*im.numCols)
	for i := 0; i < len(im.rows); i++ {
		for j := 0; j < im.numCols; j++ {
			entry, err := im.rows[i][j].AsInt64()
			if err != nil {
				return nil, fmt.Errorf(
					"IntMatrix.ToInt64Array: entry (%d, %d) does not fit in an int64: %q",
					i, j, err.Error(),
				)
			}
			retVal[i*im.numCols+j] = entry
		}
	}
	return retVal, nil
}

// String returns a string representing im with rows separated by newlines.
func (im *IntMatrix) String() string {
	var sb strings.Builder
	for i := 0; i < len(im.rows); i++ {
		for j := 0; j < im.numCols; j++ {
			_, s := im.rows[i][j].String()
			sb.WriteString(fmt.Sprintf("%s, ", s))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (im *IntMatrix) checkRow(i int, caller string) error {
	if i < 0 || len(im.rows) <= i {
		return fmt.Errorf(
			"IntMatrix.%s: row %d outside range {0, ... %d}", caller, i, len(im.rows)-1,
		)
	}
	return nil
}

func newZeroRow(numCols int) []*bignumber.BigNumber {
	retVal := make([]*bignumber.BigNumber, numCols)
	for j := 0; j < numCols; j++ {
		retVal[j] = bignumber.NewFromInt64(0)
	}
	return retVal
}
