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
	"strings"

	"github.com/mlnoga/snowline/internal/classify"
	"github.com/mlnoga/snowline/internal/raster"
	"github.com/mlnoga/snowline/internal/render"
	"github.com/mlnoga/snowline/internal/store"
)

// Classifies a scene with one or more algorithms, appending a result per algorithm.
// Takes one input, produces one output
type OpClassify struct {
	OpUnaryBase
	Algorithms []string `json:"algorithms"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpClassifyDefault() }) } // register the operator for JSON decoding

func NewOpClassifyDefault() *OpClassify { return NewOpClassify() }

func NewOpClassify(algs ...classify.Algorithm) *OpClassify {
	op := OpClassify{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "classify", Active: true}},
	}
	for _, alg := range algs {
		op.Algorithms = append(op.Algorithms, string(alg))
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Parsed algorithms, defaulting to all of them
func (op *OpClassify) algorithms() ([]classify.Algorithm, error) {
	if len(op.Algorithms) == 0 {
		return classify.Algorithms, nil
	}
	algs := make([]classify.Algorithm, len(op.Algorithms))
	for i, name := range op.Algorithms {
		alg, ok := classify.ParseAlgorithm(name)
		if !ok {
			return nil, fmt.Errorf("%s operator with unknown algorithm %q", op.Type, name)
		}
		algs[i] = alg
	}
	return algs, nil
}

func (op *OpClassify) Apply(s *Scene, c *Context) (result *Scene, err error) {
	algs, err := op.algorithms()
	if err != nil {
		return nil, err
	}
	for _, alg := range algs {
		if alg != classify.ASMAG && s.Vis == nil {
			return nil, fmt.Errorf("%d: %s needs a visible band", s.ID, alg)
		}
		res, err := classify.Run(alg, s.Vis, s.Nir, s.Dem)
		if err != nil {
			return nil, fmt.Errorf("%d: %s: %w", s.ID, alg, err)
		}
		s.Results = append(s.Results, res)
		logResult(s, res, c)
	}
	return s, nil
}

func logResult(s *Scene, res *classify.Result, c *Context) {
	sla, r2 := "undefined", ""
	if res.SLADefined {
		sla = fmt.Sprintf("%.1fm", res.SLA)
	}
	if res.HasR2 {
		r2 = fmt.Sprintf(" R2=%.3f", res.R2)
	}
	c.Log.Infof("%d: %s on %s: status %s, SLA %s, snow %.1f%%%s", s.ID, res.Algorithm, s.Glacier,
		res.Status, sla, 100*res.SnowFraction(), r2)
}

// Writes the products of each classification result to files. Patterns expand {glacier},
// {date}, {model} and {id}. Empty patterns are skipped.
// Takes one input, produces one output (the unchanged input)
type OpSave struct {
	OpUnaryBase
	MaskPattern      string `json:"maskPattern"`      // TIFF
	OverlayPattern   string `json:"overlayPattern"`   // JPEG
	ProfilePattern   string `json:"profilePattern"`   // PNG
	HistogramPattern string `json:"histogramPattern"` // PNG, threshold classifier only
	Quality          int    `json:"quality"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpSaveDefault() }) } // register the operator for JSON decoding

func NewOpSaveDefault() *OpSave { return NewOpSave("", "", "") }

func NewOpSave(maskPattern, overlayPattern, profilePattern string) *OpSave {
	op := OpSave{
		OpUnaryBase:    OpUnaryBase{OpBase: OpBase{Type: "save", Active: maskPattern != "" || overlayPattern != "" || profilePattern != ""}},
		MaskPattern:    maskPattern,
		OverlayPattern: overlayPattern,
		ProfilePattern: profilePattern,
		Quality:        95,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Expands the file name pattern for the given scene and result
func expand(pattern string, s *Scene, res *classify.Result) string {
	r := strings.NewReplacer(
		"{glacier}", s.Glacier,
		"{date}", s.Date.Format(store.DateLayout),
		"{model}", string(res.Algorithm),
		"{id}", fmt.Sprint(s.ID),
	)
	return r.Replace(pattern)
}

func (op *OpSave) Apply(s *Scene, c *Context) (result *Scene, err error) {
	for _, res := range s.Results {
		if err := op.save(s, res, c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (op *OpSave) save(s *Scene, res *classify.Result, c *Context) error {
	d := res.Diagnostics
	if op.MaskPattern != "" {
		fileName := expand(op.MaskPattern, s, res)
		c.Log.Infof("%d: Writing %dx%d pixel %s mask to %s", s.ID, res.Mask.Cols, res.Mask.Rows, res.Algorithm, fileName)
		if err := raster.WriteMaskTIFFToFile(fileName, res.Mask); err != nil {
			return fmt.Errorf("%d: error writing to file %s: %w", s.ID, fileName, err)
		}
	}
	if op.OverlayPattern != "" {
		fileName := expand(op.OverlayPattern, s, res)
		background := s.Nir
		if d.Albedo != nil {
			background = d.Albedo
		}
		c.Log.Infof("%d: Writing %s overlay to %s", s.ID, res.Algorithm, fileName)
		if err := raster.WriteOverlayJPGToFile(fileName, background, res.Mask, d.Ambiguous, op.Quality); err != nil {
			return fmt.Errorf("%d: error writing to file %s: %w", s.ID, fileName, err)
		}
	}
	if op.ProfilePattern != "" {
		fileName := expand(op.ProfilePattern, s, res)
		err := render.Profile(res, fileName)
		if errors.Is(err, render.ErrNothingToPlot) {
			c.Log.Debugf("%d: No %s band profile to plot", s.ID, res.Algorithm)
		} else if err != nil {
			return fmt.Errorf("%d: error writing to file %s: %w", s.ID, fileName, err)
		} else {
			c.Log.Infof("%d: Wrote %s band profile to %s", s.ID, res.Algorithm, fileName)
		}
	}
	if op.HistogramPattern != "" && d.Histogram != nil {
		fileName := expand(op.HistogramPattern, s, res)
		if err := render.Histogram(res, fileName); err != nil && !errors.Is(err, render.ErrNothingToPlot) {
			return fmt.Errorf("%d: error writing to file %s: %w", s.ID, fileName, err)
		}
	}
	return nil
}

// Upserts the classification results of a scene into the result store of the context.
// Takes one input, produces one output (the unchanged input)
type OpStore struct {
	OpUnaryBase
}

func init() { SetOperatorFactory(func() Operator { return NewOpStoreDefault() }) } // register the operator for JSON decoding

func NewOpStoreDefault() *OpStore {
	op := OpStore{OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "store", Active: true}}}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpStore) Apply(s *Scene, c *Context) (result *Scene, err error) {
	if c.Store == nil {
		return nil, fmt.Errorf("%d: %s operator without a database", s.ID, op.Type)
	}
	for _, res := range s.Results {
		if err := c.Store.Put(store.NewRecord(s.Glacier, s.Date, res, c.RunID)); err != nil {
			return nil, fmt.Errorf("%d: storing %s result: %w", s.ID, res.Algorithm, err)
		}
	}
	c.Log.Infof("%d: Stored %d results for %s", s.ID, len(s.Results), s.Glacier)
	return s, nil
}
