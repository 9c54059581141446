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
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func TestOtsuBimodal(t *testing.T) {
	rng := fastrand.RNG{}
	type cluster struct{ Low, High float32 }
	tcs := []struct{ A, B cluster }{
		{cluster{0.10, 0.10}, cluster{0.80, 0.80}},
		{cluster{0.05, 0.15}, cluster{0.60, 0.70}},
		{cluster{0.20, 0.25}, cluster{0.45, 0.50}},
	}
	for _, tc := range tcs {
		data := make([]float32, 0, 2000)
		for i := 0; i < 1000; i++ {
			u := float32(rng.Uint32n(1000)) / 1000
			data = append(data, tc.A.Low+u*(tc.A.High-tc.A.Low))
			u = float32(rng.Uint32n(1000)) / 1000
			data = append(data, tc.B.Low+u*(tc.B.High-tc.B.Low))
		}
		split, err := Otsu(data)
		if err != nil {
			t.Fatalf("clusters %v %v: unexpected error %v", tc.A, tc.B, err)
		}
		if !(split > float64(tc.A.Low) && split < float64(tc.B.Low)) {
			t.Errorf("clusters %v %v: split=%f not between the clusters", tc.A, tc.B, split)
		}
	}
}

func TestOtsuDegenerate(t *testing.T) {
	if _, err := Otsu([]float32{0.3, 0.3, 0.3}); err != ErrDegenerateHistogram {
		t.Errorf("err=%v; want %v", err, ErrDegenerateHistogram)
	}
	if _, err := Otsu(nil); err == nil {
		t.Errorf("expected error on empty input")
	}
}

func TestHistogramCounts(t *testing.T) {
	data := []float32{0, 0.1, 0.5, 0.9, 1}
	h, err := NewHistogram(data, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2, 0, 1, 2}
	for i, w := range want {
		if h.Counts[i] != w {
			t.Errorf("counts[%d]=%f; want %f", i, h.Counts[i], w)
		}
	}
	if math.Abs(h.Centers[0]-0.125) > 1e-9 || math.Abs(h.Centers[3]-0.875) > 1e-9 {
		t.Errorf("centers=%v", h.Centers)
	}
}

func TestGradient(t *testing.T) {
	g, err := Gradient([]float64{1, 2, 4, 7})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 1.5, 2.5, 3}
	for i, w := range want {
		if math.Abs(g[i]-w) > 1e-12 {
			t.Errorf("g[%d]=%f; want %f", i, g[i], w)
		}
	}
	if _, err := Gradient([]float64{1}); err == nil {
		t.Errorf("expected error for a single sample")
	}
	idx, err := MaxGradientIndex([]float64{0.3, 0.3, 0.5, 0.5, 0.5})
	if err != nil || idx != 1 {
		t.Errorf("idx=%d err=%v; want 1", idx, err)
	}
}

func TestFitStepExact(t *testing.T) {
	truth := StepParams{A: 0.2, B: 2500, C: 0.35}
	bandWidth := 20.0
	var xs, ys []float64
	for h := 2000.0 + bandWidth/2; h < 3000; h += bandWidth {
		xs = append(xs, h)
		ys = append(ys, StepModel(h, truth))
	}
	fit, err := FitStep(xs, ys, AlbedoStepBounds(2000, 3000))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(fit.R2-1) > 1e-6 {
		t.Errorf("R2=%g; want 1", fit.R2)
	}
	if math.Abs(fit.Params.B-truth.B) > bandWidth {
		t.Errorf("b=%f; want %f within %f", fit.Params.B, truth.B, bandWidth)
	}
	if math.Abs(fit.Params.A-truth.A) > 1e-6 || math.Abs(fit.Params.C-truth.C) > 1e-6 {
		t.Errorf("a=%f c=%f; want %f %f", fit.Params.A, fit.Params.C, truth.A, truth.C)
	}
}

func TestFitStepNoisy(t *testing.T) {
	rng := fastrand.RNG{}
	truth := StepParams{A: 0.15, B: 2830, C: 0.38}
	var xs, ys []float64
	for h := 2610.0; h < 3100; h += 20 {
		noise := (float64(rng.Uint32n(2001)) - 1000) / 1000 * 0.01
		xs = append(xs, h)
		ys = append(ys, StepModel(h, truth)+noise)
	}
	fit, err := FitStep(xs, ys, AlbedoStepBounds(2600, 3100))
	if err != nil {
		t.Fatal(err)
	}
	if fit.R2 < 0.9 || fit.R2 > 1 {
		t.Errorf("R2=%f; want in [0.9,1]", fit.R2)
	}
	if math.Abs(fit.Params.B-truth.B) > 20 {
		t.Errorf("b=%f; want %f within 20", fit.Params.B, truth.B)
	}
}

func TestFitStepBounds(t *testing.T) {
	// a step far larger than the admissible height is clamped, and the fit stays inside the box
	xs := []float64{100, 200, 300, 400}
	ys := []float64{0.0, 0.0, 0.9, 0.9}
	b := AlbedoStepBounds(100, 400)
	fit, err := FitStep(xs, ys, b)
	if err != nil {
		t.Fatal(err)
	}
	p := fit.Params
	if p.A < b.AMin || p.A > b.AMax || p.B < b.BMin || p.B > b.BMax || p.C < b.CMin || p.C > b.CMax {
		t.Errorf("params %+v outside bounds %+v", p, b)
	}
	if fit.R2 >= 1 {
		t.Errorf("R2=%f; want < 1 for a clamped fit", fit.R2)
	}
}

func TestFitStepDegenerate(t *testing.T) {
	if _, err := FitStep([]float64{2500}, []float64{0.4}, AlbedoStepBounds(2500, 2500)); err != ErrFitDegenerate {
		t.Errorf("err=%v; want %v", err, ErrFitDegenerate)
	}
	if _, err := FitStep([]float64{1, 2}, []float64{0.4, math.NaN()}, AlbedoStepBounds(1, 2)); err != ErrFitDegenerate {
		t.Errorf("err=%v; want %v", err, ErrFitDegenerate)
	}
	fit, err := FitStep([]float64{1, 2, 3}, []float64{0.4, 0.4, 0.4}, AlbedoStepBounds(1, 3))
	if err != nil {
		t.Fatal(err)
	}
	if fit.R2 != 0 {
		t.Errorf("constant profile R2=%f; want 0", fit.R2)
	}

	// mean of many 0.1 is not exactly 0.1, which must not leak into R2
	xs, ys := make([]float64, 37), make([]float64, 37)
	for i := range xs {
		xs[i], ys[i] = 2000+20*float64(i), 0.1
	}
	fit, err = FitStep(xs, ys, AlbedoStepBounds(xs[0], xs[len(xs)-1]))
	if err != nil {
		t.Fatal(err)
	}
	if fit.R2 != 0 || fit.SSTot != 0 {
		t.Errorf("constant profile R2=%g SSTot=%g; want 0 and 0", fit.R2, fit.SSTot)
	}
}
