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

package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func albedoResult(t *testing.T) *classify.Result {
	vis, nir, dem := grid.New(40, 30, nil), grid.New(40, 30, nil), grid.New(40, 30, nil)
	for r := 0; r < 40; r++ {
		for c := 0; c < 30; c++ {
			h := 2000 + 25*float32(r) + float32(c)
			v := float32(0.35)
			if h > 2500 {
				v = 0.42
			}
			dem.Set(r, c, h)
			vis.Set(r, c, v)
			nir.Set(r, c, v)
		}
	}
	res, err := classify.AlbedoRefined(vis, nir, dem)
	require.NoError(t, err)
	return res
}

func thresholdResult(t *testing.T) *classify.Result {
	nir, dem := grid.New(20, 20, nil), grid.New(20, 20, nil)
	for r := 0; r < 20; r++ {
		for c := 0; c < 20; c++ {
			dem.Set(r, c, 1500+20*float32(r)+float32(c))
			if r > 8 {
				nir.Set(r, c, 0.7)
			} else {
				nir.Set(r, c, 0.15)
			}
		}
	}
	res, err := classify.Threshold(nir, dem)
	require.NoError(t, err)
	return res
}

func assertPNG(t *testing.T, fileName string) {
	f, err := os.Open(fileName)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestProfile(t *testing.T) {
	dir := t.TempDir()
	for _, res := range []*classify.Result{albedoResult(t), thresholdResult(t)} {
		fileName := filepath.Join(dir, string(res.Algorithm)+"_profile.png")
		require.NoError(t, Profile(res, fileName))
		assertPNG(t, fileName)
	}
}

func TestHistogram(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "histogram.png")
	require.NoError(t, Histogram(thresholdResult(t), fileName))
	assertPNG(t, fileName)

	assert.ErrorIs(t, Histogram(albedoResult(t), fileName), ErrNothingToPlot)
}

func TestNothingToPlot(t *testing.T) {
	_, err := ProfilePlot(&classify.Result{})
	assert.ErrorIs(t, err, ErrNothingToPlot)
	_, err = ProfilePlot(&classify.Result{Diagnostics: &classify.Diagnostics{}})
	assert.ErrorIs(t, err, ErrNothingToPlot)
}
