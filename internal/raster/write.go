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

package raster

import (
	"bufio"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mlnoga/snowline/internal/grid"
	"golang.org/x/image/tiff"
)

// Creates the file and hands a buffered writer to the encoder
func writeToFile(fileName string, encode func(io.Writer) error) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := encode(writer); err != nil {
		return err
	}
	return writer.Flush()
}

// Write a mask to an 8-bit grayscale TIFF file, snow white and everything else black
func WriteMaskTIFFToFile(fileName string, m *grid.Mask) error {
	return writeToFile(fileName, func(w io.Writer) error { return WriteMaskTIFF(w, m) })
}

// Write a mask as 8-bit grayscale TIFF, snow white and everything else black
func WriteMaskTIFF(writer io.Writer, m *grid.Mask) error {
	img := image.NewGray(image.Rect(0, 0, m.Cols, m.Rows))
	for i, snow := range m.Data {
		if snow {
			img.Pix[(i/m.Cols)*img.Stride+i%m.Cols] = 255
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Write a grid to a 16-bit grayscale TIFF file, mapping [min,max] to the full range
func WriteGridTIFF16ToFile(fileName string, g *grid.Grid, min, max float32) error {
	return writeToFile(fileName, func(w io.Writer) error { return WriteGridTIFF16(w, g, min, max) })
}

// Write a grid as 16-bit grayscale TIFF, mapping [min,max] to the full range
func WriteGridTIFF16(writer io.Writer, g *grid.Grid, min, max float32) error {
	img := image.NewGray16(image.Rect(0, 0, g.Cols, g.Rows))
	scale := 1 / (max - min)
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			gray := normalize(g.At(y, x), min, scale)
			img.SetGray16(x, y, color.Gray16{uint16(gray * 65535)})
		}
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Maps v from [min, min+1/scale] to [0,1], replacing NaNs with zeros
func normalize(v, min, scale float32) float32 {
	v = (v - min) * scale
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Class colors of the quality overlay
var (
	SnowColor      = colorful.Color{R: 0.20, G: 0.45, B: 0.95}
	AmbiguousColor = colorful.Color{R: 0.95, G: 0.80, B: 0.20}
	IceColor       = colorful.Color{R: 0.60, G: 0.35, B: 0.15}
)

// Blend weight of class colors over the background
const OverlayOpacity = 0.55

// Write a quality overlay JPG file, see WriteOverlayJPG
func WriteOverlayJPGToFile(fileName string, background *grid.Grid, snow, ambiguous *grid.Mask, quality int) error {
	return writeToFile(fileName, func(w io.Writer) error {
		return WriteOverlayJPG(w, background, snow, ambiguous, quality)
	})
}

// Write the classes of a scene over a grayscale background as JPG. Snow pixels are
// tinted blue, ambiguous pixels yellow, and all other pixels with a positive background
// brown. Colors are blended in CIE L*a*b* space. The ambiguous mask may be nil
func WriteOverlayJPG(writer io.Writer, background *grid.Grid, snow, ambiguous *grid.Mask, quality int) error {
	min, max, ok := background.ValidMinMax()
	if !ok || max <= min {
		min, max = 0, 1
	}
	scale := 1 / (max - min)
	img := image.NewRGBA(image.Rect(0, 0, background.Cols, background.Rows))
	for y := 0; y < background.Rows; y++ {
		for x := 0; x < background.Cols; x++ {
			i := y*background.Cols + x
			v := background.Data[i]
			gray := float64(normalize(v, min, scale))
			col := colorful.LinearRgb(gray, gray, gray)
			switch {
			case snow.Data[i]:
				col = col.BlendLab(SnowColor, OverlayOpacity)
			case ambiguous != nil && ambiguous.Data[i]:
				col = col.BlendLab(AmbiguousColor, OverlayOpacity)
			case v > 0:
				col = col.BlendLab(IceColor, OverlayOpacity)
			}
			r, g, b := col.Clamped().RGB255()
			img.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}
