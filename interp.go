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

package hyoga

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// Interp interpolates the dataset onto the higher-resolution bedrock
// topography carried by target, for visualization. The ice surface
// altitude and the ice mask are assigned before interpolation if
// missing, the bedrock topography is corrected for isostatic
// adjustment if it is present, and the ice mask is refined so that
// mountains higher than the interpolated ice surface appear as
// nunataks.
//
// Some topographic datasets are delivered with integer precision,
// which causes artefacts in rendered paleo-shorelines on shallow
// slopes. A positive sigma activates gaussian smoothing with that
// window size in projection units, affecting shallow slopes while
// leaving steep mountains nearly intact.
func (d *Dataset) Interp(target *Dataset, sigma float64) (*Dataset, error) {

	// read the reference topography from the target
	topoVar, err := target.Resolve("bedrock_altitude", true)
	if err != nil {
		return nil, err
	}
	if len(topoVar.Data.Shape) != 2 {
		return nil, fmt.Errorf("hyoga: reference topography has %d dimensions instead of 2",
			len(topoVar.Data.Shape))
	}
	xq, okx := target.Coords["x"]
	yq, oky := target.Coords["y"]
	if !okx || !oky {
		return nil, errors.New("hyoga: interpolation target has no x and y coordinates")
	}
	xs, okx := d.Coords["x"]
	ys, oky := d.Coords["y"]
	if !okx || !oky {
		return nil, errors.New("hyoga: dataset has no x and y coordinates")
	}
	topo := topoVar.Data.Copy()

	// try to smooth integer-precision steps
	if sigma > 0 {
		if len(xq) < 2 || len(yq) < 2 {
			return nil, errors.New("hyoga: smoothing requires at least two points per axis")
		}
		dx := (xq[len(xq)-1] - xq[0]) / float64(len(xq)-1)
		dy := (yq[len(yq)-1] - yq[0]) / float64(len(yq)-1)
		if math.Abs(math.Abs(dy)-math.Abs(dx)) > 1e-6*math.Abs(dx) {
			return nil, errors.New("hyoga: smoothing requires square grid cells")
		}
		filt := gaussianSmooth(topo, sigma/math.Abs(dx))
		for i := range topo.Elements {
			step := filt.Elements[i] - topo.Elements[i]
			topo.Elements[i] += math.Max(-0.5, math.Min(0.5, step))
		}
	}

	// make sure surface altitude is present, needed for a nice mask
	usurf, err := d.Resolve("surface_altitude", true)
	if err != nil {
		return nil, err
	}
	ds := d.Assign(map[string]*Variable{"surface_altitude": usurf.Renamed("usurf")})

	// make sure the ice mask is present so that it gets interpolated
	mask, err := ds.Resolve("land_ice_area_fraction", true)
	if err != nil {
		return nil, err
	}
	ds, err = ds.AssignIcemask(mask)
	if err != nil {
		return nil, err
	}

	// interpolate variables onto the target coordinates
	ds = ds.interpXY(xs, ys, xq, yq)

	// correct for isostasy if it is present
	adj, err := ds.Resolve("bedrock_altitude_change_due_to_isostatic_adjustment", true)
	if err == nil {
		if len(adj.Data.Elements) != len(topo.Elements) {
			return nil, errors.New("hyoga: isostatic adjustment does not span the target grid")
		}
		for i := range topo.Elements {
			topo.Elements[i] += adj.Data.Elements[i]
		}
	} else if _, ok := err.(*NotFoundError); !ok {
		return nil, err
	}

	// assign the corrected bedrock topography
	ds = ds.Assign(map[string]*Variable{"bedrock_altitude": &Variable{
		Name:  "topg",
		Dims:  append([]string{}, topoVar.Dims...),
		Attrs: copyAttrs(topoVar.Attrs),
		Data:  topo,
	}})

	// refine the ice mask so that mountains higher than the ice
	// surface appear as nunataks
	mask, err = ds.Resolve("land_ice_area_fraction", true)
	if err != nil {
		return nil, err
	}
	surf, err := ds.Resolve("surface_altitude", true)
	if err != nil {
		return nil, err
	}
	if len(mask.Data.Elements) != len(surf.Data.Elements) ||
		len(mask.Data.Elements)%len(topo.Elements) != 0 {
		return nil, errors.New("hyoga: ice mask does not span the target grid")
	}
	refined := mask.Data.Copy()
	n := len(topo.Elements)
	for i := range refined.Elements {
		if !(surf.Data.Elements[i] > topo.Elements[i%n]) {
			refined.Elements[i] *= 0
		}
	}
	rv := mask.shallowCopy()
	rv.Data = refined
	return ds.AssignIcemask(rv)
}

// interpXY returns the dataset with all variables spanning horizontal
// dimensions interpolated bilinearly onto the new x and y coordinates.
// Variables without horizontal dimensions and the remaining
// coordinates are carried over unchanged.
func (d *Dataset) interpXY(xs, ys, xq, yq []float64) *Dataset {
	out := NewDataset()
	out.Attrs = copyAttrs(d.Attrs)
	for dim, c := range d.Coords {
		if dim == "x" || dim == "y" {
			continue
		}
		out.SetCoord(dim, append([]float64{}, c...), copyAttrs(d.CoordAttrs[dim]))
	}
	out.SetCoord("x", append([]float64{}, xq...), copyAttrs(d.CoordAttrs["x"]))
	out.SetCoord("y", append([]float64{}, yq...), copyAttrs(d.CoordAttrs["y"]))
	for _, name := range d.names {
		v := d.vars[name]
		w := v.shallowCopy()
		if hasXY(v) {
			w.Data = interpArray(v.Data, xs, ys, xq, yq)
		}
		out.AddVariable(w)
	}
	return out
}

// hasXY reports whether the variable spans horizontal dimensions.
func hasXY(v *Variable) bool {
	n := len(v.Dims)
	return n >= 2 && v.Dims[n-2] == "y" && v.Dims[n-1] == "x"
}

// interpArray interpolates an array bilinearly from source
// coordinates xs and ys to query coordinates xq and yq, which apply
// to the two trailing axes. Queries outside the source coordinate
// range yield NaN.
func interpArray(data *sparse.DenseArray, xs, ys, xq, yq []float64) *sparse.DenseArray {
	shape := data.Shape
	n := len(shape)
	ny, nx := shape[n-2], shape[n-1]
	lead := 1
	for _, s := range shape[:n-2] {
		lead *= s
	}
	nyq, nxq := len(yq), len(xq)
	outShape := append(append([]int{}, shape[:n-2]...), nyq, nxq)
	out := sparse.ZerosDense(outShape...)

	type bracket struct {
		i  int
		f  float64
		ok bool
	}
	lx := make([]bracket, nxq)
	for i, q := range xq {
		lx[i].i, lx[i].f, lx[i].ok = locate(xs, q)
	}
	ly := make([]bracket, nyq)
	for j, q := range yq {
		ly[j].i, ly[j].f, ly[j].ok = locate(ys, q)
	}

	for l := 0; l < lead; l++ {
		src := data.Elements[l*ny*nx : (l+1)*ny*nx]
		dst := out.Elements[l*nyq*nxq : (l+1)*nyq*nxq]
		for j := 0; j < nyq; j++ {
			for i := 0; i < nxq; i++ {
				if !ly[j].ok || !lx[i].ok {
					dst[j*nxq+i] = math.NaN()
					continue
				}
				jy, fy := ly[j].i, ly[j].f
				ix, fx := lx[i].i, lx[i].f
				v00 := src[jy*nx+ix]
				v01 := src[jy*nx+ix+1]
				v10 := src[(jy+1)*nx+ix]
				v11 := src[(jy+1)*nx+ix+1]
				dst[j*nxq+i] = v00*(1-fy)*(1-fx) + v01*(1-fy)*fx +
					v10*fy*(1-fx) + v11*fy*fx
			}
		}
	}
	return out
}

// locate returns the index i such that q lies between coords[i] and
// coords[i+1], with the fractional position in between. It handles
// ascending and descending axes and reports ok false outside the
// coordinate range.
func locate(coords []float64, q float64) (int, float64, bool) {
	n := len(coords)
	if n < 2 {
		return 0, 0, false
	}
	asc := coords[n-1] >= coords[0]
	var i int
	if asc {
		if q < coords[0] || q > coords[n-1] {
			return 0, 0, false
		}
		i = sort.Search(n-1, func(i int) bool { return coords[i+1] >= q })
	} else {
		if q > coords[0] || q < coords[n-1] {
			return 0, 0, false
		}
		i = sort.Search(n-1, func(i int) bool { return coords[i+1] <= q })
	}
	f := 0.0
	if d := coords[i+1] - coords[i]; d != 0 {
		f = (q - coords[i]) / d
	}
	return i, f, true
}

// gaussianSmooth convolves a two-dimensional array with a gaussian
// kernel of the given standard deviation in grid cells, reflecting
// the field at the boundaries.
func gaussianSmooth(data *sparse.DenseArray, sigma float64) *sparse.DenseArray {
	ny, nx := data.Shape[0], data.Shape[1]
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	reflect := func(i, n int) int {
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return i
	}

	tmp := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var s float64
			for k, w := range kernel {
				s += w * data.Elements[j*nx+reflect(i+k-radius, nx)]
			}
			tmp.Elements[j*nx+i] = s
		}
	}
	out := sparse.ZerosDense(ny, nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			var s float64
			for k, w := range kernel {
				s += w * tmp.Elements[reflect(j+k-radius, ny)*nx+i]
			}
			out.Elements[j*nx+i] = s
		}
	}
	return out
}
