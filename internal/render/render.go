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

// Package render draws classification diagnostics as plots for quality assurance.
package render

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/mlnoga/snowline/internal/bands"
	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/stats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Returned when a result carries no diagnostics of the requested kind
var ErrNothingToPlot = errors.New("nothing to plot")

// Size of saved plots
var (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

var (
	profileColor    = color.RGBA{R: 30, G: 90, B: 200, A: 255}
	fitColor        = color.RGBA{R: 220, G: 120, B: 20, A: 255}
	snowLineColor   = color.RGBA{A: 255}
	radiusLineColor = color.RGBA{R: 40, G: 160, B: 60, A: 255}
)

// Plot of the elevation band profile of a result: mean albedo of the ambiguous pixels
// for the albedo classifiers, snow share for the threshold classifier. Adds the fitted
// step function if any, and marks the snow line and the outlier radius around it
func ProfilePlot(res *classify.Result) (*plot.Plot, error) {
	d := res.Diagnostics
	if d == nil {
		return nil, ErrNothingToPlot
	}
	p := plot.New()
	p.X.Label.Text = "Altitude in m"

	var profile *bands.Profile
	switch {
	case d.Transition != nil:
		profile = d.Transition.Profile
		p.Title.Text = fmt.Sprintf("%s albedo profile", res.Algorithm)
		p.Y.Label.Text = "Albedo"
	case d.Fractions != nil:
		profile = d.Fractions
		p.Title.Text = fmt.Sprintf("%s snow cover per band", res.Algorithm)
		p.Y.Label.Text = "Snow share"
	default:
		return nil, ErrNothingToPlot
	}

	pts := make(plotter.XYs, profile.Layout.N)
	for k := range pts {
		pts[k] = plotter.XY{X: profile.Layout.Center(k), Y: profile.Values[k]}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color, points.Color = profileColor, profileColor
	line.Width = vg.Points(1)
	p.Add(line, points)
	p.Legend.Add("band mean", line, points)

	if d.Fit != nil {
		fit, err := stepLine(profile.Layout, d.Fit.Params)
		if err != nil {
			return nil, err
		}
		fit.Color = fitColor
		p.Add(fit)
		p.Legend.Add(fmt.Sprintf("step fit, R²=%.3f", d.Fit.R2), fit)
	}

	if res.SLADefined {
		lo, hi := valueRange(profile.Values)
		sla, err := verticalLine(res.SLA, lo, hi, snowLineColor)
		if err != nil {
			return nil, err
		}
		p.Add(sla)
		p.Legend.Add(fmt.Sprintf("SLA %.0fm", res.SLA), sla)

		if d.Transition != nil && d.RCrit > 0 {
			for _, h := range []float64{res.SLA - d.RCrit, res.SLA + d.RCrit} {
				r, err := verticalLine(h, lo, hi, radiusLineColor)
				if err != nil {
					return nil, err
				}
				p.Add(r)
			}
		}
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())
	return p, nil
}

// Samples the step model densely across the layout
func stepLine(l bands.Layout, params stats.StepParams) (*plotter.Line, error) {
	const samples = 200
	pts := make(plotter.XYs, samples)
	for i := range pts {
		h := l.Lo + (l.Hi-l.Lo)*float64(i)/(samples-1)
		pts[i] = plotter.XY{X: h, Y: stats.StepModel(h, params)}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	return line, nil
}

func verticalLine(x, lo, hi float64, c color.Color) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: lo}, {X: x, Y: hi}})
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	return line, nil
}

func valueRange(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi == lo {
		hi = lo + 0.1
	}
	return lo, hi
}

// Plot of the near-infrared histogram with the Otsu split of a threshold classification
func HistogramPlot(res *classify.Result) (*plot.Plot, error) {
	d := res.Diagnostics
	if d == nil || d.Histogram == nil || d.Histogram.Max <= d.Histogram.Min {
		return nil, ErrNothingToPlot
	}
	h := d.Histogram
	pts := make(plotter.XYs, len(h.Centers))
	maxCount := 0.0
	for i := range pts {
		pts[i] = plotter.XY{X: h.Centers[i], Y: h.Counts[i]}
		if h.Counts[i] > maxCount {
			maxCount = h.Counts[i]
		}
	}
	hist, err := plotter.NewHistogram(pts, len(pts))
	if err != nil {
		return nil, err
	}
	hist.FillColor = profileColor

	p := plot.New()
	p.Title.Text = "Near-infrared reflectance"
	p.X.Label.Text = "Reflectance"
	p.Y.Label.Text = "Pixels"
	p.Add(hist)

	split, err := verticalLine(d.Threshold, 0, maxCount, snowLineColor)
	if err != nil {
		return nil, err
	}
	p.Add(split)
	p.Legend.Add(fmt.Sprintf("split %.3f", d.Threshold), split)
	p.Legend.Top = true
	return p, nil
}

// Saves the profile plot of a result. The format follows the file extension
func Profile(res *classify.Result, fileName string) error {
	p, err := ProfilePlot(res)
	if err != nil {
		return err
	}
	return p.Save(Width, Height, fileName)
}

// Saves the histogram plot of a result. The format follows the file extension
func Histogram(res *classify.Result, fileName string) error {
	p, err := HistogramPlot(res)
	if err != nil {
		return err
	}
	return p.Save(Width, Height, fileName)
}
