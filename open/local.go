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

// Package open reads ice sheet model output from local and online
// datasets into hyoga datasets ready for variable resolution. Online
// data are downloaded on first use and cached under the user cache
// directory ($XDG_CACHE_HOME/hyoga or equivalent).
package open

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	"github.com/juseg/hyoga"
)

// yearLength is the length of the 365-day model calendar, used to
// convert time coordinates in seconds to ages in ka.
var yearLength = unit.New(365*24*3600, unit.Second)

// pismNames maps PISM variable names to the standard names missing
// from older PISM output files.
var pismNames = map[string]string{
	"topg":        "bedrock_altitude",
	"uvelbase":    "land_ice_basal_x_velocity",
	"vvelbase":    "land_ice_basal_y_velocity",
	"uvelsurf":    "land_ice_surface_x_velocity",
	"vvelsurf":    "land_ice_surface_y_velocity",
	"thk":         "land_ice_thickness",
	"velbase_mag": "magnitude_of_land_ice_basal_velocity",
	"velsurf_mag": "magnitude_of_land_ice_surface_velocity",
	"usurf":       "surface_altitude",
}

// Dataset opens a local NetCDF file and prepares it for variable
// resolution: horizontal dimensions are reordered to end in (y, x),
// the time coordinate if any is converted to an age coordinate in ka
// before present, and missing standard names are filled in for
// variables with known PISM names.
func Dataset(filename string) (*hyoga.Dataset, error) {
	d, err := hyoga.OpenDataset(filename)
	if err != nil {
		return nil, err
	}
	return preprocess(d)
}

func preprocess(d *hyoga.Dataset) (*hyoga.Dataset, error) {
	d, err := transposeYX(d)
	if err != nil {
		return nil, err
	}
	d = assignAge(d)
	fillStandardNames(d)
	return d, nil
}

// transposeYX reorders the dimensions of each variable so that y and
// x come last, in that order. Variables missing either dimension are
// left untouched.
func transposeYX(d *hyoga.Dataset) (*hyoga.Dataset, error) {
	out := d.Copy()
	for _, name := range out.Names() {
		v, _ := out.Variable(name)
		perm := yxOrder(v.Dims)
		if perm == nil {
			continue
		}
		dims := make([]string, len(v.Dims))
		for i, j := range perm {
			dims[i] = v.Dims[j]
		}
		data, err := transpose(v.Data, perm)
		if err != nil {
			return nil, fmt.Errorf("hyoga: transposing %s: %v", name, err)
		}
		out.AddVariable(hyoga.NewVariable(v.Name, dims, v.Attrs, data))
	}
	return out, nil
}

// yxOrder returns the axis permutation moving y and x to the last two
// positions, or nil if the variable lacks either dimension or already
// has them in place.
func yxOrder(dims []string) []int {
	ix, iy := -1, -1
	for i, dim := range dims {
		switch dim {
		case "x":
			ix = i
		case "y":
			iy = i
		}
	}
	if ix < 0 || iy < 0 {
		return nil
	}
	if iy == len(dims)-2 && ix == len(dims)-1 {
		return nil
	}
	perm := make([]int, 0, len(dims))
	for i := range dims {
		if i != ix && i != iy {
			perm = append(perm, i)
		}
	}
	return append(perm, iy, ix)
}

// transpose returns a copy of data with axes reordered by perm, where
// output axis i takes input axis perm[i].
func transpose(data *sparse.DenseArray, perm []int) (*sparse.DenseArray, error) {
	if len(perm) != len(data.Shape) {
		return nil, fmt.Errorf("permutation %v does not match shape %v", perm, data.Shape)
	}
	shape := make([]int, len(perm))
	for i, j := range perm {
		shape[i] = data.Shape[j]
	}
	out := sparse.ZerosDense(shape...)
	index := make([]int, len(shape))
	src := make([]int, len(shape))
	for i := 0; i < len(out.Elements); i++ {
		rem := i
		for j := len(shape) - 1; j >= 0; j-- {
			index[j] = rem % shape[j]
			rem /= shape[j]
		}
		for j, k := range perm {
			src[k] = index[j]
		}
		out.Elements[i] = data.Get(src...)
	}
	return out, nil
}

// assignAge replaces the time coordinate by an age coordinate in ka
// before present. Time units containing "seconds" are scaled by the
// 365-day year, units containing "years" by a thousand. Datasets
// without a time coordinate, or without time units, pass through
// unchanged.
func assignAge(d *hyoga.Dataset) *hyoga.Dataset {
	times, ok := d.Coords["time"]
	if !ok {
		return d
	}
	units := d.CoordAttrs["time"]["units"]
	var scale float64
	switch {
	case strings.Contains(units, "seconds"):
		scale = 1e3 * yearLength.Value()
	case strings.Contains(units, "years"):
		scale = 1e3
	default:
		return d
	}
	age := make([]float64, len(times))
	for i, t := range times {
		age[i] = -t / scale
	}
	out := d.Copy()
	delete(out.Coords, "time")
	delete(out.CoordAttrs, "time")
	out.SetCoord("age", age, map[string]string{
		"long_name": "model age",
		"units":     "ka",
	})
	for _, name := range out.Names() {
		v, _ := out.Variable(name)
		for i, dim := range v.Dims {
			if dim == "time" {
				v.Dims[i] = "age"
			}
		}
	}
	return out
}

// fillStandardNames fills in missing standard name attributes for
// variables with known PISM names.
func fillStandardNames(d *hyoga.Dataset) {
	for _, name := range d.Names() {
		v, _ := d.Variable(name)
		if v.StandardName() != "" {
			continue
		}
		if sn, ok := pismNames[name]; ok {
			v.Attrs["standard_name"] = sn
		}
	}
}

// verbRe matches fmt verbs such as %d or %07.0f in file patterns.
var verbRe = regexp.MustCompile(`%[^a-zA-Z%]*[a-zA-Z]`)

// SubdatasetTolerance is the default age matching tolerance in ka for
// Subdataset, allowing for rounding errors in file time stamps.
const SubdatasetTolerance = 1e-9

// Subdataset opens a dataset from a numbered sequence of files and
// selects the time step nearest the given model time in years. The
// pattern contains a fmt verb for the final time of each file, for
// instance "ex.%07.0f.nc". The shift, added to time before formatting,
// accounts for output files numbered in a different time origin.
// Times are matched within tolerance in ka.
func Subdataset(pattern string, time, shift, tolerance float64) (*hyoga.Dataset, error) {
	pattern = expandUser(pattern)
	filelist, err := filepath.Glob(verbRe.ReplaceAllString(pattern, "*"))
	if err != nil {
		return nil, fmt.Errorf("hyoga: globbing %s: %v", pattern, err)
	}
	sort.Strings(filelist)
	target := fmt.Sprintf(pattern, shift+time)
	i := sort.SearchStrings(filelist, target)
	if i == len(filelist) {
		return nil, fmt.Errorf("hyoga: no file found for time %g with pattern %s", time, pattern)
	}
	d, err := Dataset(filelist[i])
	if err != nil {
		return nil, err
	}
	return SelectAge(d, -time/1e3, tolerance)
}

// expandUser replaces a leading ~ with the user home directory.
func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// SelectAge selects the time step nearest the given age in ka before
// present, dropping the age dimension from all variables. An error is
// returned if the nearest age differs by more than tolerance.
func SelectAge(d *hyoga.Dataset, age, tolerance float64) (*hyoga.Dataset, error) {
	ages, ok := d.Coords["age"]
	if !ok || len(ages) == 0 {
		return nil, fmt.Errorf("hyoga: dataset has no age coordinate")
	}
	k := 0
	for i := range ages {
		if math.Abs(ages[i]-age) < math.Abs(ages[k]-age) {
			k = i
		}
	}
	if math.Abs(ages[k]-age) > tolerance {
		return nil, fmt.Errorf("hyoga: no age within %g ka of %g ka", tolerance, age)
	}
	out := d.Copy()
	delete(out.Coords, "age")
	delete(out.CoordAttrs, "age")
	for _, name := range out.Names() {
		v, _ := out.Variable(name)
		axis := -1
		for i, dim := range v.Dims {
			if dim == "age" {
				axis = i
			}
		}
		if axis < 0 {
			continue
		}
		dims := make([]string, 0, len(v.Dims)-1)
		for i, dim := range v.Dims {
			if i != axis {
				dims = append(dims, dim)
			}
		}
		out.AddVariable(hyoga.NewVariable(v.Name, dims, v.Attrs, sliceAxis(v.Data, axis, k)))
	}
	return out, nil
}

// sliceAxis returns the k-th slice of data along the given axis,
// dropping that axis from the shape.
func sliceAxis(data *sparse.DenseArray, axis, k int) *sparse.DenseArray {
	shape := make([]int, 0, len(data.Shape)-1)
	for i, n := range data.Shape {
		if i != axis {
			shape = append(shape, n)
		}
	}
	out := sparse.ZerosDense(shape...)
	strides := make([]int, len(data.Shape))
	stride := 1
	for i := len(data.Shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= data.Shape[i]
	}
	index := make([]int, len(shape))
	for i := 0; i < len(out.Elements); i++ {
		rem := i
		for j := len(shape) - 1; j >= 0; j-- {
			index[j] = rem % shape[j]
			rem /= shape[j]
		}
		j := k * strides[axis]
		pos := 0
		for dim := range data.Shape {
			if dim == axis {
				continue
			}
			j += index[pos] * strides[dim]
			pos++
		}
		out.Elements[i] = data.Elements[j]
	}
	return out
}
