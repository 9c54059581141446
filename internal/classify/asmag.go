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

package classify

import (
	"errors"

	"github.com/mlnoga/snowline/internal/bands"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/mlnoga/snowline/internal/stats"
)

// Snow share above which an elevation band counts as snow covered
const SnowCoverShare = 0.5

// Number of consecutive snow covered bands the snow line scan looks for first
const SnowLineRun = 5

// Split used when the near-infrared histogram has a single value. Classifies nothing as snow
const DegenerateSplit = 1.0

// Classifies snow by an Otsu threshold on the positive near-infrared values, then scans
// 20m elevation bands from the bottom for the first run of consecutive bands with
// a snow share above one half. The run length starts at 5 and shrinks until a run
// is found. The snow line is the lower bound of the first band in the run
func Threshold(nir, dem *grid.Grid) (*Result, error) {
	if nir.Empty() {
		return nil, grid.ErrEmptyGrid
	}
	res := newResult(ASMAG, nir.Rows, nir.Cols)
	d := res.Diagnostics

	pos := make([]float32, 0, len(nir.Data))
	for _, v := range nir.Data {
		if v > 0 {
			pos = append(pos, v)
		}
	}
	if len(pos) == 0 {
		res.Status = StatusNoData
		return res, nil
	}

	hist, err := stats.NewHistogram(pos, stats.DefaultBins)
	if err != nil {
		return nil, err
	}
	d.Histogram = hist
	split, err := hist.Otsu()
	if errors.Is(err, stats.ErrDegenerateHistogram) {
		split = DegenerateSplit
	} else if err != nil {
		return nil, err
	}
	d.Threshold = split
	res.Mask = grid.Threshold(nir, float32(split))

	elev, err := grid.ReconcileTo(dem, nir)
	if err != nil {
		return nil, err
	}
	d.Elevation = elev

	layout, err := bands.NewLayoutForDEM(elev, bands.SweepBandWidth)
	if errors.Is(err, bands.ErrNoValidElevation) {
		res.Status = StatusNoValidElevation
		return res, nil
	} else if err != nil {
		return nil, err
	}
	fr, err := bands.Fractions(elev, res.Mask, layout)
	if err != nil {
		return nil, err
	}
	d.Fractions = fr

	if k, ok := firstCoveredRun(fr.Values, SnowLineRun); ok {
		res.setSLA(layout.Start(k))
	}
	return res, nil
}

// Index of the first band of the lowest run of maxRun consecutive bands with a snow share
// above SnowCoverShare. Retries with shorter runs down to a single band
func firstCoveredRun(fractions []float64, maxRun int) (int, bool) {
	if maxRun > len(fractions) {
		maxRun = len(fractions)
	}
	for run := maxRun; run >= 1; run-- {
		for start := 0; start+run <= len(fractions); start++ {
			if covered(fractions[start : start+run]) {
				return start, true
			}
		}
	}
	return -1, false
}

func covered(fractions []float64) bool {
	for _, f := range fractions {
		if !(f > SnowCoverShare) {
			return false
		}
	}
	return true
}
