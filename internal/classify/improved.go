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
	"math"

	"github.com/mlnoga/snowline/internal/bands"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/mlnoga/snowline/internal/stats"
)

// Refined broadband albedo classifier. The transition comes from a coarse-to-fine band
// sweep over the ambiguous pixels. A step function fitted to the final profile scores
// how sharp the transition is, and the outlier radius shrinks with the fit quality:
// r_crit = min(r_max, (1-R2)*r_max), where r_max is the largest distance of a snow pixel
// from the snow line
func AlbedoRefined(vis, nir, dem *grid.Grid) (*Result, error) {
	s, res, err := prepareAlbedo(NaegeliImproved, vis, nir, dem)
	if s == nil {
		return res, err
	}
	d := s.res.Diagnostics

	var sla, albedoCrit float64
	t, err := bands.MultiSweep(s.ambElevs, s.ambVals)
	switch {
	case errors.Is(err, bands.ErrTooSmall):
		// glacier too small for any resolution level, take the middle of the ambiguous ranges
		hLo, hHi, aLo, aHi := s.ambiguousRange()
		sla, albedoCrit = 0.5*(hLo+hHi), 0.5*(aLo+aHi)
		s.res.R2, s.res.HasR2 = 0, true
	case err != nil:
		return nil, err
	default:
		d.Transition = t
		sla, albedoCrit = t.Elevation, t.Albedo
		s.res.R2, s.res.HasR2 = fitQuality(t.Profile, d), true
	}

	s.finish(sla, albedoCrit, s.adaptiveRadius(sla, s.res.R2))
	return s.res, nil
}

// Coefficient of determination of a step function fitted to the band profile,
// or 0 if the fit fails
func fitQuality(p *bands.Profile, d *Diagnostics) float64 {
	bounds := stats.AlbedoStepBounds(p.Layout.Lo, p.Layout.Hi)
	fit, err := stats.FitStep(p.Layout.Centers(), p.Values, bounds)
	if err != nil {
		return 0
	}
	d.Fit = fit
	return fit.R2
}

// Outlier radius scaled by (1-R2). The maximum is the larger distance of the lowest and
// the highest primary snow pixel from the snow line, or the distance to the top of the
// glacier when there is no primary snow
func (s *albedoScene) adaptiveRadius(sla, r2 float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, snow := range s.snow.Data {
		if !snow {
			continue
		}
		h := float64(s.elev.Data[i])
		hi = math.Max(hi, h)
		if h > 0 {
			lo = math.Min(lo, h)
		}
	}
	var rMax float64
	if !math.IsInf(lo, 1) {
		rMax = math.Max(sla-lo, hi-sla)
	} else {
		_, top, _ := s.elev.ValidMinMax()
		rMax = float64(top) - sla
	}
	return math.Min(rMax, (1-r2)*rMax)
}
