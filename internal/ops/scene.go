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

package ops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/grid"
	"github.com/mlnoga/snowline/internal/raster"
	"github.com/mlnoga/snowline/internal/store"
)

// A co-registered scene of one glacier on one date, with classification results
type Scene struct {
	ID      int
	Glacier string
	Date    time.Time
	Vis     *grid.Grid // visible reflectance
	Nir     *grid.Grid // near-infrared reflectance
	Dem     *grid.Grid // elevation in meters, <=0 is no-data
	Results []*classify.Result
}

// Approximate memory footprint of a scene with the given pixel count, in MB.
// Three float32 input grids plus albedo, corrected albedo and masks per result
func SceneMB(pixels int) int {
	return (pixels*4*3 + pixels*(4*2+3)*len(classify.Algorithms)) / 1024 / 1024
}

// Returns the result of the given algorithm, or nil
func (s *Scene) Result(alg classify.Algorithm) *classify.Result {
	for _, r := range s.Results {
		if r.Algorithm == alg {
			return r
		}
	}
	return nil
}

// Load a single scene from band files. Takes zero inputs, produces one output.
// A scene with a missing file is skipped with a warning
type OpLoad struct {
	OpBase
	ID        int     `json:"id"`
	Glacier   string  `json:"glacier"`
	Date      string  `json:"date"`
	VisFile   string  `json:"visFile"`
	NirFile   string  `json:"nirFile"`
	DemFile   string  `json:"demFile"`
	BandScale float32 `json:"bandScale"` // divisor for integer-scaled reflectances
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadDefault() }) } // register the operator for JSON decoding

func NewOpLoadDefault() *OpLoad { return NewOpLoad(0, "", "", "", "", "") }

func NewOpLoad(id int, glacier, date, visFile, nirFile, demFile string) *OpLoad {
	return &OpLoad{
		OpBase:    OpBase{Type: "load", Active: true},
		ID:        id,
		Glacier:   glacier,
		Date:      date,
		VisFile:   visFile,
		NirFile:   nirFile,
		DemFile:   demFile,
		BandScale: raster.SentinelScale,
	}
}

func (op *OpLoad) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	if op.NirFile == "" || op.DemFile == "" {
		return nil, fmt.Errorf("%s operator needs near-infrared and elevation files", op.Type)
	}
	out := func() (s *Scene, err error) {
		return op.Apply(nil, c) // no inputs to materialize
	}
	return []Promise{out}, nil
}

// Loads the scene. Ignores any s argument provided
func (op *OpLoad) Apply(s *Scene, c *Context) (result *Scene, err error) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if op.Date != "" {
		if date, err = time.Parse(store.DateLayout, op.Date); err != nil {
			return nil, fmt.Errorf("%d: invalid date %q: %w", op.ID, op.Date, err)
		}
	}
	scale := op.BandScale
	if scale <= 0 {
		scale = raster.SentinelScale
	}
	s = &Scene{ID: op.ID, Glacier: op.Glacier, Date: date}

	if op.VisFile != "" {
		if s.Vis, err = raster.ReadBand(op.VisFile, scale); err != nil {
			return op.skipOrFail(err, c)
		}
	}
	if s.Nir, err = raster.ReadBand(op.NirFile, scale); err != nil {
		return op.skipOrFail(err, c)
	}
	if s.Dem, err = raster.ReadBand(op.DemFile, 1); err != nil {
		return op.skipOrFail(err, c)
	}

	info := "; WARNING no valid elevation"
	if min, max, ok := s.Dem.ValidMinMax(); ok {
		info = fmt.Sprintf(", elevation %.0f..%.0fm", min, max)
	}
	if s.Vis != nil && !s.Vis.SameShape(s.Nir) {
		return nil, fmt.Errorf("%d: visible band %s and near-infrared band %s differ in shape",
			op.ID, s.Vis.DimensionsToString(), s.Nir.DimensionsToString())
	}
	c.Log.Infof("%d: Loaded %s scene of glacier %s on %s%s", s.ID, s.Nir.DimensionsToString(),
		s.Glacier, s.Date.Format(store.DateLayout), info)
	return s, nil
}

func (op *OpLoad) skipOrFail(err error, c *Context) (*Scene, error) {
	if errors.Is(err, raster.ErrMissingScene) {
		c.Log.Warnf("%d: Skipping glacier %s: %v", op.ID, op.Glacier, err)
		return nil, nil
	}
	return nil, fmt.Errorf("%d: %w", op.ID, err)
}

// Load one scene per glacier directory matching the given patterns. The glacier name is the
// directory name, band files are found by name inside each directory.
// Takes zero inputs, produces n outputs
type OpLoadMany struct {
	OpBase
	DirPatterns []string `json:"dirPatterns"`
	Date        string   `json:"date"`
	VisName     string   `json:"visName"`
	NirName     string   `json:"nirName"`
	DemName     string   `json:"demName"`
	BandScale   float32  `json:"bandScale"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpLoadManyDefault() }) } // register the operator for JSON decoding

func NewOpLoadManyDefault() *OpLoadMany { return NewOpLoadMany(nil, "") }

func NewOpLoadMany(dirPatterns []string, date string) *OpLoadMany {
	return &OpLoadMany{
		OpBase:      OpBase{Type: "loadMany", Active: true},
		DirPatterns: dirPatterns,
		Date:        date,
		VisName:     "vis.tif",
		NirName:     "nir.tif",
		DemName:     "dem.tif",
		BandScale:   raster.SentinelScale,
	}
}

// Turn directory wildcards into a list of scene load operators
func (op *OpLoadMany) MakePromises(ins []Promise, c *Context) (outs []Promise, err error) {
	if len(ins) > 0 {
		return nil, fmt.Errorf("%s operator with non-zero input", op.Type)
	}
	var dirs []string
	for _, pattern := range op.DirPatterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			if fi, err := os.Stat(match); err == nil && fi.IsDir() {
				dirs = append(dirs, match)
			}
		}
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		opLoad := NewOpLoad(len(outs), filepath.Base(dir), op.Date,
			"", filepath.Join(dir, op.NirName), filepath.Join(dir, op.DemName))
		if op.VisName != "" {
			opLoad.VisFile = filepath.Join(dir, op.VisName)
		}
		opLoad.BandScale = op.BandScale
		promises, err := opLoad.MakePromises(nil, c)
		if err != nil {
			return nil, err
		}
		outs = append(outs, promises...)
	}
	if len(outs) == 0 {
		return nil, fmt.Errorf("%s operator with no glacier directories matching %v", op.Type, op.DirPatterns)
	}
	c.Log.Infof("Found %d glacier directories.", len(outs))
	return outs, nil
}
