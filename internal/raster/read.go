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

// Package raster reads scene bands and elevation models from TIFF files into grids,
// and writes classification masks and quality overlays.
package raster

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"io/fs"
	"os"

	"github.com/mlnoga/snowline/internal/grid"
	"golang.org/x/image/tiff"
)

// Returned when a required band or elevation file is absent. Callers skip the scene
var ErrMissingScene = errors.New("missing scene")

// Reflectance bands of Sentinel-2 products are integer-scaled by this factor
const SentinelScale = 10000

// Read a grayscale TIFF band from file, dividing all values by scale. An absent file
// yields an error wrapping ErrMissingScene
func ReadBand(fileName string, scale float32) (*grid.Grid, error) {
	file, err := os.Open(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingScene, fileName)
	} else if err != nil {
		return nil, err
	}
	defer file.Close()

	g, err := DecodeBand(bufio.NewReader(file), scale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return g, nil
}

// Decode a grayscale TIFF band, dividing all values by scale. Color images are
// converted to 16-bit luminance
func DecodeBand(reader io.Reader, scale float32) (*grid.Grid, error) {
	if !(scale > 0) {
		return nil, fmt.Errorf("invalid scale %g", scale)
	}
	img, err := tiff.Decode(reader)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	g := grid.New(height, width, nil)
	inv := 1 / scale

	switch t := img.(type) {
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.Data[y*width+x] = float32(t.Gray16At(b.Min.X+x, b.Min.Y+y).Y) * inv
			}
		}
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.Data[y*width+x] = float32(t.GrayAt(b.Min.X+x, b.Min.Y+y).Y) * inv
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				g.Data[y*width+x] = float32(c.Y) * inv
			}
		}
	}
	return g, nil
}
