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

// A binary classification over a pixel grid. True denotes snow
type Mask struct {
	Rows int
	Cols int
	Data []bool
}

// Creates an all-false mask of given shape
func NewMask(rows, cols int) *Mask {
	return &Mask{Rows: rows, Cols: cols, Data: make([]bool, rows*cols)}
}

// Creates a mask which is true wherever the grid value exceeds the threshold
func Threshold(g *Grid, threshold float32) *Mask {
	m := NewMask(g.Rows, g.Cols)
	for i, v := range g.Data {
		m.Data[i] = v > threshold
	}
	return m
}

func (m *Mask) At(row, col int) bool { return m.Data[row*m.Cols+col] }

func (m *Mask) Clone() *Mask {
	return &Mask{Rows: m.Rows, Cols: m.Cols, Data: append([]bool(nil), m.Data...)}
}

func (m *Mask) Count() (n int) {
	for _, b := range m.Data {
		if b {
			n++
		}
	}
	return n
}

func (m *Mask) Any() bool {
	for _, b := range m.Data {
		if b {
			return true
		}
	}
	return false
}

// Share of true pixels among all pixels, 0 for an empty mask
func (m *Mask) Fraction() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Data))
}

// Converts to a 0/1 grid, e.g. for export
func (m *Mask) ToGrid() *Grid {
	g := New(m.Rows, m.Cols, nil)
	for i, b := range m.Data {
		if b {
			g.Data[i] = 1
		}
	}
	return g
}

// Returns the mask as rows of 0/1 values
func (m *Mask) ToRows() [][]int {
	res := make([][]int, m.Rows)
	for r := range res {
		row := make([]int, m.Cols)
		for c := range row {
			if m.Data[r*m.Cols+c] {
				row[c] = 1
			}
		}
		res[r] = row
	}
	return res
}
