// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package grid

import (
	"errors"
	"fmt"
	"math"
)

// Returned when an operation needs at least one pixel
var ErrEmptyGrid = errors.New("empty grid")

// A 2-D raster of one band or quantity over a fixed pixel grid. Row-major.
type Grid struct {
	Rows int       // Number of rows (y axis)
	Cols int       // Number of columns (x axis)
	Data []float32 // Pixel values, Data[row*Cols+col]
}

// Creates a grid of given shape. Data is not copied, allocated if nil
func New(rows, cols int, data []float32) *Grid {
	if data == nil {
		data = make([]float32, rows*cols)
	}
	return &Grid{Rows: rows, Cols: cols, Data: data}
}

// Creates a grid from a slice of rows. All rows must have the same length
func FromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 {
		return New(0, 0, nil), nil
	}
	cols := len(rows[0])
	g := New(len(rows), cols, nil)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns; want %d", r, len(row), cols)
		}
		for c, v := range row {
			g.Data[r*cols+c] = float32(v)
		}
	}
	return g, nil
}

// Returns the grid as a slice of rows
func (g *Grid) ToRows() [][]float64 {
	res := make([][]float64, g.Rows)
	for r := range res {
		row := make([]float64, g.Cols)
		for c := range row {
			row[c] = float64(g.Data[r*g.Cols+c])
		}
		res[r] = row
	}
	return res
}

func (g *Grid) At(row, col int) float32 { return g.Data[row*g.Cols+col] }

func (g *Grid) Set(row, col int, v float32) { g.Data[row*g.Cols+col] = v }

func (g *Grid) Pixels() int { return g.Rows * g.Cols }

func (g *Grid) Empty() bool { return g.Rows == 0 || g.Cols == 0 }

// True if both grids have identical dimensions
func (g *Grid) SameShape(o *Grid) bool { return g.Rows == o.Rows && g.Cols == o.Cols }

func (g *Grid) DimensionsToString() string { return fmt.Sprintf("%dx%d", g.Cols, g.Rows) }

// Deep copy
func (g *Grid) Clone() *Grid {
	return New(g.Rows, g.Cols, append([]float32(nil), g.Data...))
}

// True if any pixel differs from zero
func (g *Grid) Any() bool {
	for _, v := range g.Data {
		if v != 0 {
			return true
		}
	}
	return false
}

// Minimum and maximum over all pixels with value > 0, the no-data convention for elevations.
// ok is false if no such pixel exists
func (g *Grid) ValidMinMax() (min, max float32, ok bool) {
	min, max = float32(math.MaxFloat32), -float32(math.MaxFloat32)
	for _, v := range g.Data {
		if v <= 0 {
			continue
		}
		ok = true
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, ok
}

// Number of pixels with value > 0
func (g *Grid) ValidCount() (n int) {
	for _, v := range g.Data {
		if v > 0 {
			n++
		}
	}
	return n
}
