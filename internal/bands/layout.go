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

// Package bands aggregates per-pixel quantities into contiguous elevation bands
// and searches the resulting profiles for the snow to ice transition.
package bands

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/snowline/internal/grid"
)

// Returned when no pixel carries a valid elevation
var ErrNoValidElevation = errors.New("no valid elevation")

// A partition of [Lo,Hi] into N bands of equal width. Band k covers [Lo+k*Width, Lo+(k+1)*Width).
// The last band is closed at Hi, so every elevation in [Lo,Hi] lands in exactly one band
type Layout struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Width float64 `json:"width"`
	N     int     `json:"n"`
}

// Creates a layout of bands with the given width covering [lo,hi]
func NewLayout(lo, hi, width float64) (Layout, error) {
	if !(width > 0) {
		return Layout{}, fmt.Errorf("band width %g must be positive", width)
	}
	if hi < lo {
		return Layout{}, fmt.Errorf("empty elevation range [%g,%g]", lo, hi)
	}
	n := int(math.Ceil((hi - lo) / width))
	if n < 1 {
		n = 1
	}
	return Layout{Lo: lo, Hi: hi, Width: width, N: n}, nil
}

// Creates a layout from floor(min valid elevation) to ceil(max elevation) of the DEM
func NewLayoutForDEM(dem *grid.Grid, width float64) (Layout, error) {
	min, max, ok := dem.ValidMinMax()
	if !ok {
		return Layout{}, ErrNoValidElevation
	}
	return NewLayout(math.Floor(float64(min)), math.Ceil(float64(max)), width)
}

// Band index of elevation h, or -1 if h lies outside the layout
func (l Layout) Index(h float64) int {
	if h < l.Lo || h > l.Hi {
		return -1
	}
	k := int(math.Floor((h - l.Lo) / l.Width))
	if k >= l.N {
		k = l.N - 1
	}
	return k
}

func (l Layout) Start(k int) float64 { return l.Lo + float64(k)*l.Width }

func (l Layout) Center(k int) float64 { return l.Lo + (float64(k)+0.5)*l.Width }

func (l Layout) Starts() []float64 {
	res := make([]float64, l.N)
	for k := range res {
		res[k] = l.Start(k)
	}
	return res
}

func (l Layout) Centers() []float64 {
	res := make([]float64, l.N)
	for k := range res {
		res[k] = l.Center(k)
	}
	return res
}

// One aggregate value per band, ordered by increasing elevation
type Profile struct {
	Layout       Layout    `json:"layout"`
	Values       []float64 `json:"values"`
	Counts       []int     `json:"counts"`       // pixels per band
	Interpolated []bool    `json:"interpolated"` // true where an empty band took its value from neighbours
}

func newProfile(l Layout) *Profile {
	return &Profile{
		Layout:       l,
		Values:       make([]float64, l.N),
		Counts:       make([]int, l.N),
		Interpolated: make([]bool, l.N),
	}
}

// Total number of pixels aggregated into the profile
func (p *Profile) Total() (n int) {
	for _, c := range p.Counts {
		n += c
	}
	return n
}
