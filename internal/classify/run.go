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

package classify

import (
	"fmt"

	"github.com/mlnoga/snowline/internal/grid"
)

// Runs the given algorithm. The threshold classifier ignores the visible band
func Run(alg Algorithm, vis, nir, dem *grid.Grid) (*Result, error) {
	switch alg {
	case ASMAG:
		return Threshold(nir, dem)
	case Naegeli:
		return Albedo(vis, nir, dem)
	case NaegeliImproved:
		return AlbedoRefined(vis, nir, dem)
	}
	return nil, fmt.Errorf("unknown algorithm %q", alg)
}
