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
	"fmt"

	"github.com/mlnoga/snowline/internal/grid"
)

// Share of true mask pixels among the valid pixels of each band. Pixels with elevation <= 0
// are ignored. An empty band reports zero cover: narrowing the admitted window below the
// band top only ever selects a subset of the band, so no retry can find pixels there
func Fractions(dem *grid.Grid, mask *grid.Mask, l Layout) (*Profile, error) {
	if dem.Rows != mask.Rows || dem.Cols != mask.Cols {
		return nil, fmt.Errorf("elevation grid %dx%d and mask %dx%d differ in shape", dem.Cols, dem.Rows, mask.Cols, mask.Rows)
	}
	p := newProfile(l)
	snow := make([]int, l.N)
	for i, h := range dem.Data {
		if h <= 0 {
			continue
		}
		k := l.Index(float64(h))
		if k < 0 {
			continue
		}
		p.Counts[k]++
		if mask.Data[i] {
			snow[k]++
		}
	}
	for k := range p.Values {
		if p.Counts[k] > 0 {
			p.Values[k] = float64(snow[k]) / float64(p.Counts[k])
		}
	}
	return p, nil
}
