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
	"testing"
)

func sequentialGrid(rows, cols int) *Grid {
	g := New(rows, cols, nil)
	for i := range g.Data {
		g.Data[i] = float32(i)
	}
	return g
}

type reconcileTestCase struct {
	Rows, Cols   int // reference shape
	TRows, TCols int // target shape
	Want         []float32
}

func TestReconcile(t *testing.T) {
	tcs := []reconcileTestCase{
		// identical shape
		{2, 2, 2, 2, []float32{0, 1, 2, 3}},
		// truncate both axes
		{3, 3, 2, 2, []float32{0, 1, 3, 4}},
		// pad one row: replicate row at offset -1, the last one
		{2, 2, 3, 2, []float32{0, 1, 2, 3, 2, 3}},
		// pad two rows: first copy comes from offset -2 (row 0), second from offset -1 (the new row)
		{2, 2, 4, 2, []float32{0, 1, 2, 3, 0, 1, 0, 1}},
		// pad one column
		{2, 2, 2, 3, []float32{0, 1, 1, 2, 3, 3}},
		// truncate rows, pad columns
		{3, 2, 2, 3, []float32{0, 1, 1, 2, 3, 3}},
		// pad rows, truncate columns
		{2, 3, 3, 2, []float32{0, 1, 3, 4, 3, 4}},
	}

	for _, tc := range tcs {
		ref := sequentialGrid(tc.Rows, tc.Cols)
		res, err := Reconcile(ref, tc.TRows, tc.TCols)
		if err != nil {
			t.Fatalf("%dx%d->%dx%d: unexpected error %v", tc.Rows, tc.Cols, tc.TRows, tc.TCols, err)
		}
		if res.Rows != tc.TRows || res.Cols != tc.TCols {
			t.Errorf("%dx%d->%dx%d: got shape %dx%d", tc.Rows, tc.Cols, tc.TRows, tc.TCols, res.Rows, res.Cols)
			continue
		}
		for i, w := range tc.Want {
			if res.Data[i] != w {
				t.Errorf("%dx%d->%dx%d: data[%d]=%f; want %f", tc.Rows, tc.Cols, tc.TRows, tc.TCols, i, res.Data[i], w)
			}
		}
		if len(ref.Data) != tc.Rows*tc.Cols || ref.Rows != tc.Rows || ref.Cols != tc.Cols {
			t.Errorf("%dx%d->%dx%d: reference modified", tc.Rows, tc.Cols, tc.TRows, tc.TCols)
		}
	}
}

func TestReconcileIdempotent(t *testing.T) {
	shapes := [][4]int{{5, 7, 5, 7}, {5, 7, 8, 3}, {9, 2, 4, 6}, {1, 1, 6, 6}}
	for _, s := range shapes {
		ref := sequentialGrid(s[0], s[1])
		once, err := Reconcile(ref, s[2], s[3])
		if err != nil {
			t.Fatal(err)
		}
		twice, err := Reconcile(once, s[2], s[3])
		if err != nil {
			t.Fatal(err)
		}
		if !once.SameShape(twice) {
			t.Fatalf("shape changed on second pass: %s vs %s", once.DimensionsToString(), twice.DimensionsToString())
		}
		for i := range once.Data {
			if once.Data[i] != twice.Data[i] {
				t.Errorf("data[%d] changed on second pass: %f vs %f", i, once.Data[i], twice.Data[i])
			}
		}
	}
}

func TestReconcileEmpty(t *testing.T) {
	if _, err := Reconcile(New(0, 0, nil), 0, 0); err != ErrEmptyGrid {
		t.Errorf("err=%v; want %v", err, ErrEmptyGrid)
	}
}

func TestValidMinMax(t *testing.T) {
	g := New(2, 3, []float32{-9999, 0, 1200, 1500.5, 0, 1800})
	min, max, ok := g.ValidMinMax()
	if !ok || min != 1200 || max != 1800 {
		t.Errorf("got min=%f max=%f ok=%v; want 1200 1800 true", min, max, ok)
	}
	if n := g.ValidCount(); n != 3 {
		t.Errorf("valid count=%d; want 3", n)
	}
	if _, _, ok := New(1, 2, []float32{0, -1}).ValidMinMax(); ok {
		t.Errorf("all-invalid grid reported valid pixels")
	}
}

func TestMaskFraction(t *testing.T) {
	g := New(2, 2, []float32{0.1, 0.6, 0.7, 0.2})
	m := Threshold(g, 0.5)
	if m.Count() != 2 || m.Fraction() != 0.5 {
		t.Errorf("count=%d fraction=%f; want 2 0.5", m.Count(), m.Fraction())
	}
	rows := m.ToRows()
	if rows[0][0] != 0 || rows[0][1] != 1 || rows[1][0] != 1 || rows[1][1] != 0 {
		t.Errorf("rows=%v", rows)
	}
}
