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

package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// Returned when a step function cannot be fitted to the given samples
var ErrFitDegenerate = errors.New("step fit needs at least two finite samples")

// Parameters of a two-level step function of elevation
type StepParams struct {
	A float64 `json:"a"` // step height
	B float64 `json:"b"` // elevation of the transition
	C float64 `json:"c"` // baseline below the transition
}

// Box constraints for the step function parameters
type StepBounds struct {
	AMin, AMax float64
	BMin, BMax float64
	CMin, CMax float64
}

// Bounds for a bare-ice to snow albedo step between the given elevations
func AlbedoStepBounds(demMin, demMax float64) StepBounds {
	return StepBounds{AMin: 0.1, AMax: 0.3, BMin: demMin, BMax: demMax, CMin: 0.3, CMax: 0.45}
}

// Result of a step function fit
type StepFit struct {
	Params StepParams `json:"params"`
	SSRes  float64    `json:"ssRes"` // residual sum of squares
	SSTot  float64    `json:"ssTot"` // total sum of squares around the mean
	R2     float64    `json:"r2"`    // coefficient of determination, 1 for a perfect step
}

// Evaluates the step model a*0.5*(sign(h-b)+1)+c. At h==b the model yields c+a/2
func StepModel(h float64, p StepParams) float64 {
	return p.A*0.5*(sign(h-p.B)+1) + p.C
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func (b StepBounds) project(p StepParams) StepParams {
	return StepParams{
		A: clamp(p.A, b.AMin, b.AMax),
		B: clamp(p.B, b.BMin, b.BMax),
		C: clamp(p.C, b.CMin, b.CMax),
	}
}

func stepSSE(xs, ys []float64, p StepParams) float64 {
	sse := 0.0
	for i, x := range xs {
		diff := ys[i] - StepModel(x, p)
		sse += diff * diff
	}
	return sse
}

// Maximum number of objective evaluations for the Nelder-Mead polish
const stepFitMaxEvaluations = 4000

// Fits the step model to the samples (xs, ys) by bounded nonlinear least squares and
// reports the coefficient of determination. A scan over candidate transitions between
// neighbouring samples seeds the optimization, which Nelder-Mead then refines with
// bounds enforced by projection. With a constant profile R2 is reported as 0.
func FitStep(xs, ys []float64, bounds StepBounds) (*StepFit, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("step fit: %d elevations but %d values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, ErrFitDegenerate
	}
	for i := range xs {
		if !isFinite(xs[i]) || !isFinite(ys[i]) {
			return nil, ErrFitDegenerate
		}
	}
	if bounds.BMin > bounds.BMax {
		return nil, fmt.Errorf("step fit: empty transition range [%g,%g]", bounds.BMin, bounds.BMax)
	}

	seed := seedStep(xs, ys, bounds)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			p := bounds.project(StepParams{A: x[0], B: x[1], C: x[2]})
			return stepSSE(xs, ys, p)
		},
	}
	settings := &optimize.Settings{FuncEvaluations: stepFitMaxEvaluations}
	x0 := []float64{seed.A, seed.B, seed.C}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("step fit: %w", err)
	}

	best := seed
	if polished := bounds.project(StepParams{A: result.X[0], B: result.X[1], C: result.X[2]}); stepSSE(xs, ys, polished) < stepSSE(xs, ys, seed) {
		best = polished
	}

	fit := &StepFit{Params: best, SSRes: stepSSE(xs, ys, best)}
	if floats.Max(ys) == floats.Min(ys) {
		return fit, nil // constant profile, SSTot and R2 stay 0
	}
	mean := stat.Mean(ys, nil)
	for _, y := range ys {
		fit.SSTot += (y - mean) * (y - mean)
	}
	fit.R2 = 1 - fit.SSRes/fit.SSTot
	return fit, nil
}

// Scans transitions at the bounds and midway between neighbouring samples, fitting
// step height and baseline for each by projected coordinate descent. Returns the best
func seedStep(xs, ys []float64, bounds StepBounds) StepParams {
	candidates := []float64{bounds.BMin, bounds.BMax}
	for i := 1; i < len(xs); i++ {
		mid := 0.5 * (xs[i-1] + xs[i])
		if mid > bounds.BMin && mid < bounds.BMax {
			candidates = append(candidates, mid)
		}
	}

	best, bestSSE := StepParams{}, math.Inf(1)
	for _, b := range candidates {
		p := fitLevels(xs, ys, b, bounds)
		if sse := stepSSE(xs, ys, p); sse < bestSSE {
			best, bestSSE = p, sse
		}
	}
	return best
}

// For a fixed transition b, the model is linear in a and c. Alternate the
// closed-form solutions for each, projecting onto the bounds
func fitLevels(xs, ys []float64, b float64, bounds StepBounds) StepParams {
	ws := make([]float64, len(xs))
	sumW2 := 0.0
	for i, x := range xs {
		ws[i] = 0.5 * (sign(x-b) + 1)
		sumW2 += ws[i] * ws[i]
	}
	n := float64(len(xs))
	p := StepParams{A: 0.5 * (bounds.AMin + bounds.AMax), B: b, C: 0.5 * (bounds.CMin + bounds.CMax)}
	for iter := 0; iter < 32; iter++ {
		sum := 0.0
		for i, y := range ys {
			sum += y - p.A*ws[i]
		}
		p.C = clamp(sum/n, bounds.CMin, bounds.CMax)

		if sumW2 > 0 {
			sum = 0
			for i, y := range ys {
				sum += ws[i] * (y - p.C)
			}
			p.A = clamp(sum/sumW2, bounds.AMin, bounds.AMax)
		}
	}
	return p
}
