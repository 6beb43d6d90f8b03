/*
Copyright © 2025 the Hyoga authors.
This file is part of Hyoga.

Hyoga is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Hyoga is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Hyoga.  If not, see <http://www.gnu.org/licenses/>.
*/

package plot

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Default light sources for multidirectional shaded relief.
var (
	defaultAltitudes = []float64{30, 30, 30, 30}
	defaultAzimuths  = []float64{300, 315, 315, 330}
)

// Hillshade returns the shaded relief of a surface lit from a single
// direction, given the light source altitude and azimuth in degrees
// and a vertical exaggeration factor. Shades range from minus one on
// slopes facing the light to plus one on slopes facing away, and
// horizontal ground shades to zero so that transparent gradients only
// color the relief.
func Hillshade(data *sparse.DenseArray, y, x []float64, altitude, azimuth, exag float64) *sparse.DenseArray {
	alt := altitude * math.Pi / 180
	azi := azimuth * math.Pi / 180
	lsx := math.Sin(azi) * math.Cos(alt)
	lsy := math.Cos(azi) * math.Cos(alt)
	gy, gx := slopes(data, y, x)
	shades := sparse.ZerosDense(data.Shape...)
	for i := range shades.Elements {
		sx := exag * gx.Elements[i]
		sy := exag * gy.Elements[i]
		shades.Elements[i] = (sx*lsx + sy*lsy) / math.Sqrt(1+sx*sx+sy*sy)
	}
	return shades
}

// Multishade returns the average of several hillshades. Nil altitudes
// and azimuths select four light sources 30 degrees above the
// northwestern horizon.
func Multishade(data *sparse.DenseArray, y, x []float64, altitudes, azimuths []float64, exag float64) (*sparse.DenseArray, error) {
	if altitudes == nil {
		altitudes = defaultAltitudes
	}
	if azimuths == nil {
		azimuths = defaultAzimuths
	}
	if len(altitudes) != len(azimuths) {
		return nil, fmt.Errorf("hyoga: got %d altitudes for %d azimuths", len(altitudes), len(azimuths))
	}
	sum := sparse.ZerosDense(data.Shape...)
	w := 1 / float64(len(altitudes))
	for k := range altitudes {
		shade := Hillshade(data, y, x, altitudes[k], azimuths[k], exag)
		floats.AddScaled(sum.Elements, w, shade.Elements)
	}
	return sum, nil
}

// slopes returns the centered finite difference gradients of a two
// dimensional field along its rows and columns, with one sided
// differences at the grid edges.
func slopes(data *sparse.DenseArray, y, x []float64) (gy, gx *sparse.DenseArray) {
	ny, nx := data.Shape[0], data.Shape[1]
	gy = sparse.ZerosDense(ny, nx)
	gx = sparse.ZerosDense(ny, nx)
	for i := 0; i < ny; i++ {
		i0, i1 := i-1, i+1
		if i0 < 0 {
			i0 = 0
		}
		if i1 > ny-1 {
			i1 = ny - 1
		}
		for j := 0; j < nx; j++ {
			j0, j1 := j-1, j+1
			if j0 < 0 {
				j0 = 0
			}
			if j1 > nx-1 {
				j1 = nx - 1
			}
			gy.Set((data.Get(i1, j)-data.Get(i0, j))/(y[i1]-y[i0]), i, j)
			gx.Set((data.Get(i, j1)-data.Get(i, j0))/(x[j1]-x[j0]), i, j)
		}
	}
	return gy, gx
}
