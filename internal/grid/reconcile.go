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

// Aligns a reference grid, typically the DEM, to the shape of a target grid so that
// pixel-wise indexing with masks of the target shape is valid. Each axis is corrected
// independently. A larger axis is truncated keeping the leading rows or columns. A smaller
// axis is padded by replicating the row or column at offset size-target counted from
// the end, one at a time until the sizes match. Returns a new grid, the reference is not modified.
func Reconcile(ref *Grid, rows, cols int) (*Grid, error) {
	if ref.Empty() {
		return nil, ErrEmptyGrid
	}
	res := ref.Clone()
	res = reconcileRows(res, rows)
	res = reconcileCols(res, cols)
	return res, nil
}

// Reconciles a reference grid to the shape of the target grid
func ReconcileTo(ref, target *Grid) (*Grid, error) {
	return Reconcile(ref, target.Rows, target.Cols)
}

// Index of the row or column to replicate when growing an axis of given size towards target
func padSource(size, target int) int {
	idx := size + (size - target)
	if idx < 0 {
		idx = 0
	}
	return idx
}

func reconcileRows(g *Grid, rows int) *Grid {
	if g.Rows > rows {
		return New(rows, g.Cols, append([]float32(nil), g.Data[:rows*g.Cols]...))
	}
	for g.Rows < rows {
		src := padSource(g.Rows, rows)
		g.Data = append(g.Data, g.Data[src*g.Cols:(src+1)*g.Cols]...)
		g.Rows++
	}
	return g
}

func reconcileCols(g *Grid, cols int) *Grid {
	if g.Cols == cols {
		return g
	}
	if g.Cols > cols {
		res := New(g.Rows, cols, nil)
		for r := 0; r < g.Rows; r++ {
			copy(res.Data[r*cols:(r+1)*cols], g.Data[r*g.Cols:r*g.Cols+cols])
		}
		return res
	}
	for g.Cols < cols {
		src := padSource(g.Cols, cols)
		res := New(g.Rows, g.Cols+1, nil)
		for r := 0; r < g.Rows; r++ {
			copy(res.Data[r*res.Cols:r*res.Cols+g.Cols], g.Data[r*g.Cols:(r+1)*g.Cols])
			res.Data[r*res.Cols+g.Cols] = g.Data[r*g.Cols+src]
		}
		g = res
	}
	return g
}
