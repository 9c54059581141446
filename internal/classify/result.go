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

// Package classify maps snow cover on glacier scenes and derives the snow line altitude
// with three algorithms: a global near-infrared threshold (ASMAG), a broadband albedo
// classifier with a fixed outlier radius (Naegeli), and its refinement with a
// multi-resolution transition search and an adaptive outlier radius (Naegeli improved).
package classify

import (
	"math"

	"github.com/mlnoga/snowline/internal/bands"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/mlnoga/snowline/internal/stats"
)

// Classification algorithm. Values match the model names of stored results
type Algorithm string

const (
	ASMAG           Algorithm = "asmag"
	Naegeli         Algorithm = "naegeli_orig"
	NaegeliImproved Algorithm = "naegeli_improv"
)

// All algorithms in the order they are usually run
var Algorithms = []Algorithm{ASMAG, Naegeli, NaegeliImproved}

// Parses an algorithm name, accepting the short command names as well
func ParseAlgorithm(s string) (Algorithm, bool) {
	switch s {
	case "asmag", "threshold":
		return ASMAG, true
	case "naegeli", "naegeli_orig", "albedo":
		return Naegeli, true
	case "improved", "naegeli_improv", "refined":
		return NaegeliImproved, true
	}
	return "", false
}

// Outcome category of a classification. Everything except OK is an uninformative
// but well-typed result
type Status string

const (
	StatusOK               Status = "ok"
	StatusNoData           Status = "no_data"            // no positive near-infrared value
	StatusCloud            Status = "cloud"              // visible band entirely zero
	StatusIndeterminate    Status = "indeterminate"      // no ambiguous pixels and a snow share between 10% and 90%
	StatusNoValidElevation Status = "no_valid_elevation" // elevation grid holds no value above 0
)

// Classification result for one scene
type Result struct {
	Algorithm   Algorithm    `json:"algorithm"`
	Status      Status       `json:"status"`
	Mask        *grid.Mask   `json:"-"`
	SLA         float64      `json:"-"`
	SLADefined  bool         `json:"-"`
	R2          float64      `json:"-"`
	HasR2       bool         `json:"-"`
	Diagnostics *Diagnostics `json:"-"`
}

func newResult(alg Algorithm, rows, cols int) *Result {
	return &Result{
		Algorithm:   alg,
		Status:      StatusOK,
		Mask:        grid.NewMask(rows, cols),
		Diagnostics: &Diagnostics{},
	}
}

func (r *Result) setSLA(sla float64) {
	r.SLA, r.SLADefined = sla, true
}

// Snow line altitude, or nil if undefined
func (r *Result) SLAOrNil() *float64 {
	if !r.SLADefined {
		return nil
	}
	sla := r.SLA
	return &sla
}

// Fit quality, or nil if no step function was fitted
func (r *Result) R2OrNil() *float64 {
	if !r.HasR2 {
		return nil
	}
	r2 := r.R2
	return &r2
}

// Share of snow pixels in the mask
func (r *Result) SnowFraction() float64 {
	if r.Mask == nil {
		return 0
	}
	return r.Mask.Fraction()
}

// Intermediate artifacts of a classification for quality assurance. Populated by the
// classifiers, consumed by rendering and export
type Diagnostics struct {
	Elevation  *grid.Grid        // elevation grid reconciled to the mask shape
	Threshold  float64           // near-infrared split value
	Histogram  *stats.Histogram  // histogram of positive near-infrared values
	Fractions  *bands.Profile    // snow share per elevation band
	Albedo     *grid.Grid        // broadband albedo
	Corrected  *grid.Grid        // albedo after lapse rate correction of ambiguous pixels
	Snow       *grid.Mask        // primary snow class
	Ambiguous  *grid.Mask        // primary ambiguous class
	Transition *bands.Transition // steepest albedo ascent
	Fit        *stats.StepFit    // step function fitted to the final profile
	AlbedoCrit float64           // albedo at the transition
	RCrit      float64           // outlier radius around the snow line
}

// Heights of contours to draw around the snow line: SLA-r_crit, SLA, SLA+r_crit
func (r *Result) ContourLevels() []float64 {
	if !r.SLADefined || r.Diagnostics == nil {
		return nil
	}
	rc := math.Abs(r.Diagnostics.RCrit)
	return []float64{r.SLA - rc, r.SLA, r.SLA + rc}
}
