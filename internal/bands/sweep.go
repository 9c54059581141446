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

package bands

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlnoga/snowline/internal/stats"
)

// Returned by MultiSweep when the elevation range is too narrow for any resolution level
var ErrTooSmall = errors.New("elevation range too small for a band sweep")

// Width of the bands in single resolution sweeps, in meters
const SweepBandWidth = 20

// Multi-resolution sweeps refine while bands are wider than this, in meters
const MinSweepBandWidth = 25

// Mean of vals per elevation band. Pairs with elevation <= 0 or outside the layout are ignored.
// Empty bands are filled in increasing order from their neighbours: at the edges from the
// single neighbour, in the interior from the average of both. Bands without any usable
// neighbour remain 0
func Means(elevs, vals []float64, l Layout) (*Profile, error) {
	if len(elevs) != len(vals) {
		return nil, fmt.Errorf("%d elevations but %d values", len(elevs), len(vals))
	}
	p := newProfile(l)
	for i, h := range elevs {
		if h <= 0 {
			continue
		}
		k := l.Index(h)
		if k < 0 {
			continue
		}
		p.Counts[k]++
		p.Values[k] += vals[i]
	}
	for k, c := range p.Counts {
		if c > 0 {
			p.Values[k] /= float64(c)
		}
	}
	p.interpolate()
	return p, nil
}

func (p *Profile) interpolate() {
	n := len(p.Values)
	for k := 0; k < n; k++ {
		if p.Counts[k] > 0 {
			continue
		}
		switch {
		case k == 0 && n > 1:
			p.Values[k] = p.Values[k+1]
		case k == 0:
			continue
		case k == n-1:
			p.Values[k] = p.Values[k-1]
		default:
			p.Values[k] = 0.5 * (p.Values[k-1] + p.Values[k+1])
		}
		p.Interpolated[k] = true
	}
}

// Location of the steepest increase in a band profile
type Transition struct {
	Index     int      `json:"index"`     // band with maximum discrete gradient
	Albedo    float64  `json:"albedo"`    // midpoint of the band value and its upper neighbour
	Elevation float64  `json:"elevation"` // midpoint of the band center and its upper neighbour, start of a top band
	Levels    int      `json:"levels"`    // resolution levels evaluated
	Profile   *Profile `json:"profile"`   // profile at the final resolution
}

func transitionAt(p *Profile, k int) *Transition {
	t := &Transition{Index: k, Profile: p}
	if k < len(p.Values)-1 {
		t.Albedo = 0.5 * (p.Values[k] + p.Values[k+1])
		t.Elevation = 0.5 * (p.Layout.Center(k) + p.Layout.Center(k+1))
	} else {
		t.Albedo = p.Values[k]
		t.Elevation = p.Layout.Start(k)
	}
	return t
}

// Keeps the transition elevation within the valid elevations [lo,hi] of the samples
func (t *Transition) clamp(lo, hi float64) {
	t.Elevation = math.Max(lo, math.Min(hi, t.Elevation))
}

// Band of steepest ascent at the given resolution level. From level 2 on, a previous
// estimate prev>0 restricts the search to bands [2*prev-2, 2*prev+2), with the gradient
// taken over that window alone
func locate(values []float64, level, prev int) int {
	if level >= 2 && prev > 0 {
		from, to := 2*prev-2, 2*prev+2
		if to > len(values) {
			to = len(values)
		}
		if to-from >= 2 {
			sub, _ := stats.MaxGradientIndex(values[from:to])
			return from + sub
		}
	}
	return steepest(values)
}

// Global index of maximum gradient. A single band is its own transition
func steepest(values []float64) int {
	if len(values) < 2 {
		return 0
	}
	k, _ := stats.MaxGradientIndex(values)
	return k
}

func elevationRange(elevs []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, h := range elevs {
		if h <= 0 {
			continue
		}
		ok = true
		lo, hi = math.Min(lo, h), math.Max(hi, h)
	}
	return lo, hi, ok
}

// Sorts (elevation, value) pairs into bands of fixed width from floor(min) to ceil(max elevation),
// and locates the band with the largest increase of the mean value
func Sweep(elevs, vals []float64, width float64) (*Transition, error) {
	lo, hi, ok := elevationRange(elevs)
	if !ok {
		return nil, ErrNoValidElevation
	}
	l, err := NewLayout(math.Floor(lo), math.Ceil(hi), width)
	if err != nil {
		return nil, err
	}
	p, err := Means(elevs, vals, l)
	if err != nil {
		return nil, err
	}
	t := transitionAt(p, steepest(p.Values))
	t.Levels = 1
	t.clamp(lo, hi)
	return t, nil
}

// Coarse-to-fine sweep. Level i splits [floor(min), ceil(max)] into bands of width
// round(range/2^(i+1)) (half to even), starting from two bands, for as long as the width exceeds
// MinSweepBandWidth and i < ln(number of pairs). Levels 0 and 1 search the whole profile.
// From level 2 on, if the previous level located a band k>0, only bands [2k-2, 2k+2) are
// searched so the estimate tracks the previous scale.
func MultiSweep(elevs, vals []float64) (*Transition, error) {
	minH, maxH, ok := elevationRange(elevs)
	if !ok {
		return nil, ErrNoValidElevation
	}
	lo, hi := math.Floor(minH), math.Ceil(maxH)
	valid := 0
	for _, h := range elevs {
		if h > 0 {
			valid++
		}
	}
	levels := int(math.Log(float64(valid)))

	var t *Transition
	prev := -1
	for i := 0; i < levels; i++ {
		width := math.RoundToEven((hi - lo) / math.Pow(2, float64(i+1)))
		if width <= MinSweepBandWidth {
			break
		}
		l, err := NewLayout(lo, hi, width)
		if err != nil {
			return nil, err
		}
		p, err := Means(elevs, vals, l)
		if err != nil {
			return nil, err
		}

		k := locate(p.Values, i, prev)
		prev = k
		t = transitionAt(p, k)
		t.Levels = i + 1
	}
	if t == nil {
		return nil, ErrTooSmall
	}
	t.clamp(minH, maxH)
	return t, nil
}
