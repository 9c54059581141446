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
	"math"

	"gonum.org/v1/gonum/floats"
)

// Returned when a histogram cannot be split, e.g. all samples carry the same value
var ErrDegenerateHistogram = errors.New("degenerate histogram: all samples have the same value")

// Number of histogram bins used for threshold selection
const DefaultBins = 256

// A histogram of float samples over [Min,Max] with equally wide bins. The last bin is closed
type Histogram struct {
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Counts  []float64 `json:"counts"`
	Centers []float64 `json:"centers"`
}

// Calculate histogram of data between its min and max into the given number of bins
func NewHistogram(data []float32, bins int) (*Histogram, error) {
	if len(data) == 0 || bins < 1 {
		return nil, errors.New("histogram needs data and at least one bin")
	}
	min, max := float64(data[0]), float64(data[0])
	for _, d := range data {
		v := float64(d)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	h := &Histogram{
		Min:     min,
		Max:     max,
		Counts:  make([]float64, bins),
		Centers: make([]float64, bins),
	}
	width := (max - min) / float64(bins)
	for i := range h.Centers {
		h.Centers[i] = min + (float64(i)+0.5)*width
	}
	if width == 0 {
		h.Counts[0] = float64(len(data))
		return h, nil
	}
	scale := float64(bins) / (max - min)
	for _, d := range data {
		index := int((float64(d) - min) * scale)
		if index >= bins {
			index = bins - 1
		}
		h.Counts[index]++
	}
	return h, nil
}

// Returns the bin center which maximizes the between-class variance when splitting
// the histogram into samples at or below and above it (Otsu's criterion)
func (h *Histogram) Otsu() (float64, error) {
	n := len(h.Counts)
	if h.Max <= h.Min || n < 2 {
		return 0, ErrDegenerateHistogram
	}

	// cumulative class weights and means from below and from above
	weight1 := make([]float64, n)
	mean1 := make([]float64, n)
	sum, sumW := 0.0, 0.0
	for i := 0; i < n; i++ {
		sumW += h.Counts[i]
		sum += h.Counts[i] * h.Centers[i]
		weight1[i] = sumW
		if sumW > 0 {
			mean1[i] = sum / sumW
		}
	}
	weight2 := make([]float64, n)
	mean2 := make([]float64, n)
	sum, sumW = 0.0, 0.0
	for i := n - 1; i >= 0; i-- {
		sumW += h.Counts[i]
		sum += h.Counts[i] * h.Centers[i]
		weight2[i] = sumW
		if sumW > 0 {
			mean2[i] = sum / sumW
		}
	}

	variance := make([]float64, n-1)
	for i := range variance {
		diff := mean1[i] - mean2[i+1]
		variance[i] = weight1[i] * weight2[i+1] * diff * diff
	}
	return h.Centers[floats.MaxIdx(variance)], nil
}

// Otsu threshold of the given samples with DefaultBins bins
func Otsu(data []float32) (float64, error) {
	h, err := NewHistogram(data, DefaultBins)
	if err != nil {
		return 0, err
	}
	return h.Otsu()
}

// Discrete derivative of equally spaced samples. Central differences in the interior,
// one-sided differences at both ends. Needs at least two samples
func Gradient(ys []float64) ([]float64, error) {
	n := len(ys)
	if n < 2 {
		return nil, errors.New("gradient needs at least two samples")
	}
	res := make([]float64, n)
	res[0] = ys[1] - ys[0]
	res[n-1] = ys[n-1] - ys[n-2]
	for i := 1; i < n-1; i++ {
		res[i] = 0.5 * (ys[i+1] - ys[i-1])
	}
	return res, nil
}

// Index of the steepest ascent of the given profile, first one on ties
func MaxGradientIndex(ys []float64) (int, error) {
	g, err := Gradient(ys)
	if err != nil {
		return -1, err
	}
	return floats.MaxIdx(g), nil
}

func isFinite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }
