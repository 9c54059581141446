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
	"fmt"
	"math"

	"github.com/mlnoga/snowline/internal/bands"
	"github.com/mlnoga/snowline/internal/grid"
)

const (
	SnowAlbedo     = 0.55  // albedo above which a pixel is snow
	IceAlbedo      = 0.2   // albedo at or below which a pixel is ice
	LapseRate      = 0.005 // albedo correction per meter of elevation relative to the snow line
	BaselineRadius = 400.0 // outlier radius of the baseline albedo classifier, in meters
	HighSnowShare  = 0.9   // snow share above which a scene without ambiguous pixels is fully covered
	LowSnowShare   = 0.1   // snow share below which a scene without ambiguous pixels is snow free
)

// Broadband albedo from visible and near-infrared reflectance after Knap,
// 0.726v + 0.322v^2 + 0.015n + 0.581n^2, clipped at 1 from above only
func BroadbandAlbedo(vis, nir *grid.Grid) (*grid.Grid, error) {
	if !vis.SameShape(nir) {
		return nil, fmt.Errorf("visible band %s and near-infrared band %s differ in shape",
			vis.DimensionsToString(), nir.DimensionsToString())
	}
	res := grid.New(vis.Rows, vis.Cols, nil)
	for i, v := range vis.Data {
		n := nir.Data[i]
		a := 0.726*v + 0.322*v*v + 0.015*n + 0.581*n*n
		if a > 1 {
			a = 1
		}
		res.Data[i] = a
	}
	return res, nil
}

// Primary albedo classes: snow above SnowAlbedo, ambiguous in (IceAlbedo, SnowAlbedo]
func primaryClasses(albedo *grid.Grid) (snow, ambiguous *grid.Mask) {
	snow = grid.NewMask(albedo.Rows, albedo.Cols)
	ambiguous = grid.NewMask(albedo.Rows, albedo.Cols)
	for i, a := range albedo.Data {
		switch {
		case a > SnowAlbedo:
			snow.Data[i] = true
		case a > IceAlbedo:
			ambiguous.Data[i] = true
		}
	}
	return snow, ambiguous
}

// State shared by both albedo classifiers after the primary classification
type albedoScene struct {
	res       *Result
	albedo    *grid.Grid
	elev      *grid.Grid
	snow      *grid.Mask
	ambiguous *grid.Mask
	ambElevs  []float64 // elevations of ambiguous pixels with valid elevation
	ambVals   []float64 // albedo of the same pixels
}

// Computes albedo and primary classes, and returns a finished result when the scene
// admits no transition search: cloud cover, missing elevations, or no ambiguous pixels
func prepareAlbedo(alg Algorithm, vis, nir, dem *grid.Grid) (*albedoScene, *Result, error) {
	if vis.Empty() {
		return nil, nil, grid.ErrEmptyGrid
	}
	res := newResult(alg, vis.Rows, vis.Cols)
	if !vis.Any() {
		res.Status = StatusCloud
		return nil, res, nil
	}
	albedo, err := BroadbandAlbedo(vis, nir)
	if err != nil {
		return nil, nil, err
	}
	elev, err := grid.ReconcileTo(dem, albedo)
	if err != nil {
		return nil, nil, err
	}
	snow, ambiguous := primaryClasses(albedo)

	d := res.Diagnostics
	d.Albedo, d.Elevation, d.Snow, d.Ambiguous = albedo, elev, snow, ambiguous
	res.Mask = snow.Clone()

	if elev.ValidCount() == 0 {
		res.Status = StatusNoValidElevation
		return nil, res, nil
	}

	s := &albedoScene{res: res, albedo: albedo, elev: elev, snow: snow, ambiguous: ambiguous}
	for i, amb := range ambiguous.Data {
		if amb && elev.Data[i] > 0 {
			s.ambElevs = append(s.ambElevs, float64(elev.Data[i]))
			s.ambVals = append(s.ambVals, float64(albedo.Data[i]))
		}
	}
	if len(s.ambElevs) == 0 {
		noAmbiguity(s)
		return nil, res, nil
	}
	return s, nil, nil
}

// Without ambiguous pixels the scene is either almost fully covered, with the snow line
// at the lowest valid elevation, or almost snow free, with the snow line at the top.
// Anything in between has no defined snow line
func noAmbiguity(s *albedoScene) {
	share := s.snow.Fraction()
	min, max, _ := s.elev.ValidMinMax()
	switch {
	case share > HighSnowShare:
		s.res.setSLA(float64(min))
	case share < LowSnowShare:
		s.res.setSLA(float64(max))
	default:
		s.res.Status = StatusIndeterminate
	}
	s.res.Diagnostics.RCrit = BaselineRadius
}

// Applies the lapse rate correction to ambiguous pixels, reclassifies them against the
// critical albedo, then forces pixels further than rCrit from the snow line to snow above
// and ice below
func (s *albedoScene) finish(sla, albedoCrit, rCrit float64) {
	res, d := s.res, s.res.Diagnostics
	res.setSLA(sla)
	d.AlbedoCrit, d.RCrit = albedoCrit, rCrit

	corrected := s.albedo.Clone()
	mask := res.Mask
	lo, hi := sla-rCrit, sla+rCrit
	for i, h32 := range s.elev.Data {
		h := float64(h32)
		if s.ambiguous.Data[i] {
			a := float64(s.albedo.Data[i]) - (sla-h)*LapseRate
			corrected.Data[i] = float32(a)
			if a > albedoCrit {
				mask.Data[i] = true
			}
		}
		if h < lo {
			mask.Data[i] = false
		}
		if h > hi {
			mask.Data[i] = true
		}
	}
	d.Corrected = corrected
}

// Elevation range and albedo range of the ambiguous pixels
func (s *albedoScene) ambiguousRange() (hLo, hHi, aLo, aHi float64) {
	hLo, hHi, aLo, aHi = math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	for i, h := range s.ambElevs {
		hLo, hHi = math.Min(hLo, h), math.Max(hHi, h)
		aLo, aHi = math.Min(aLo, s.ambVals[i]), math.Max(aHi, s.ambVals[i])
	}
	return hLo, hHi, aLo, aHi
}

// Broadband albedo classifier with a single resolution 20m transition search and a
// fixed outlier radius of 400m
func Albedo(vis, nir, dem *grid.Grid) (*Result, error) {
	s, res, err := prepareAlbedo(Naegeli, vis, nir, dem)
	if s == nil {
		return res, err
	}
	t, err := bands.Sweep(s.ambElevs, s.ambVals, bands.SweepBandWidth)
	if err != nil {
		return nil, err
	}
	s.res.Diagnostics.Transition = t
	s.finish(t.Elevation, t.Albedo, BaselineRadius)
	return s.res, nil
}
