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
	"fmt"

	"github.com/ctessum/sparse"
)

// A Variable holds a single gridded quantity together with its netCDF
// attributes. The attributes of interest to this library are
// standard_name, which identifies the quantity independently of the
// short name a particular model uses, and units.
type Variable struct {
	// Name is the short variable name used in model output files,
	// for instance "thk" for land ice thickness in PISM. Variables
	// computed by derivation have an empty name until assigned to a
	// dataset.
	Name string

	// Dims lists dimension names in storage order, the vertical or
	// temporal dimensions first and y and x last.
	Dims []string

	// Attrs holds netCDF variable attributes.
	Attrs map[string]string

	// Data holds the values in row-major order following Dims.
	Data *sparse.DenseArray
}

// NewVariable assembles a variable from its parts. The attribute map
// may be nil.
func NewVariable(name string, dims []string, attrs map[string]string, data *sparse.DenseArray) *Variable {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	return &Variable{Name: name, Dims: dims, Attrs: attrs, Data: data}
}

// StandardName returns the CF standard name of the variable, or an
// empty string when the attribute is missing.
func (v *Variable) StandardName() string { return v.Attrs["standard_name"] }

// Units returns the units attribute of the variable, or an empty
// string when the attribute is missing.
func (v *Variable) Units() string { return v.Attrs["units"] }

// Copy returns a deep copy of the variable.
func (v *Variable) Copy() *Variable {
	out := &Variable{
		Name:  v.Name,
		Dims:  append([]string{}, v.Dims...),
		Attrs: copyAttrs(v.Attrs),
	}
	if v.Data != nil {
		out.Data = v.Data.Copy()
	}
	return out
}

// Renamed returns a copy of the variable under a new short name,
// sharing the underlying data array.
func (v *Variable) Renamed(name string) *Variable {
	w := v.shallowCopy()
	w.Name = name
	return w
}

// shallowCopy returns a copy of the variable sharing its data array,
// with an independent attribute map so that renaming or relabelling
// the copy leaves the original untouched.
func (v *Variable) shallowCopy() *Variable {
	return &Variable{
		Name:  v.Name,
		Dims:  append([]string{}, v.Dims...),
		Attrs: copyAttrs(v.Attrs),
		Data:  v.Data,
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// A Dataset is an ordered collection of variables sharing grid
// coordinates, mirroring the layout of a netCDF model output file.
// The zero value is not usable; create datasets with NewDataset or
// ReadNetCDF.
type Dataset struct {
	names []string
	vars  map[string]*Variable

	// Attrs holds global file attributes, such as the proj4 string
	// describing the model projection.
	Attrs map[string]string

	// Coords maps dimension names to coordinate vectors.
	Coords map[string][]float64

	// CoordAttrs holds the netCDF attributes of each coordinate.
	CoordAttrs map[string]map[string]string
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{
		vars:       make(map[string]*Variable),
		Attrs:      make(map[string]string),
		Coords:     make(map[string][]float64),
		CoordAttrs: make(map[string]map[string]string),
	}
}

// AddVariable inserts v into the dataset under its short name,
// replacing any variable already stored under that name while keeping
// its position in the variable order.
func (d *Dataset) AddVariable(v *Variable) {
	if _, ok := d.vars[v.Name]; !ok {
		d.names = append(d.names, v.Name)
	}
	d.vars[v.Name] = v
}

// Variable returns the variable stored under the given short name.
func (d *Dataset) Variable(name string) (*Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Names returns the short names of all variables in insertion order.
func (d *Dataset) Names() []string {
	return append([]string{}, d.names...)
}

// Len returns the number of variables in the dataset.
func (d *Dataset) Len() int { return len(d.names) }

// SetCoord stores a coordinate vector for the named dimension,
// together with its netCDF attributes. The attribute map may be nil.
func (d *Dataset) SetCoord(dim string, values []float64, attrs map[string]string) {
	d.Coords[dim] = values
	if attrs == nil {
		attrs = make(map[string]string)
	}
	d.CoordAttrs[dim] = attrs
}

// Copy returns a dataset that shares variable data with d but has
// independent structure, so that adding, renaming or replacing
// variables on the copy leaves d untouched. Operations returning
// modified datasets replace variables rather than altering their data
// arrays in place, which keeps the sharing safe.
func (d *Dataset) Copy() *Dataset {
	out := NewDataset()
	out.names = append([]string{}, d.names...)
	for name, v := range d.vars {
		out.vars[name] = v.shallowCopy()
	}
	out.Attrs = copyAttrs(d.Attrs)
	for dim, c := range d.Coords {
		out.Coords[dim] = append([]float64{}, c...)
	}
	for dim, attrs := range d.CoordAttrs {
		out.CoordAttrs[dim] = copyAttrs(attrs)
	}
	return out
}

// byStandardName returns the variables carrying the given standard
// name in insertion order.
func (d *Dataset) byStandardName(standardName string) []*Variable {
	var matches []*Variable
	for _, name := range d.names {
		if v := d.vars[name]; v.StandardName() == standardName {
			matches = append(matches, v)
		}
	}
	return matches
}

// dimLengths collects the names and lengths of all dimensions used by
// the dataset, ordered by first appearance across the coordinate
// vectors and the variables. It returns an error when two variables
// disagree on the length of a shared dimension.
func (d *Dataset) dimLengths() (names []string, lengths []int, err error) {
	seen := make(map[string]int)
	record := func(dim string, n int) error {
		if prev, ok := seen[dim]; ok {
			if prev != n {
				return fmt.Errorf("hyoga: dimension %s has conflicting lengths %d and %d", dim, prev, n)
			}
			return nil
		}
		seen[dim] = n
		names = append(names, dim)
		lengths = append(lengths, n)
		return nil
	}
	for _, name := range d.names {
		v := d.vars[name]
		if v.Data == nil || len(v.Dims) != len(v.Data.Shape) {
			return nil, nil, fmt.Errorf("hyoga: variable %s has %d dimension names for %d axes",
				name, len(v.Dims), len(v.Data.Shape))
		}
		for i, dim := range v.Dims {
			if err := record(dim, v.Data.Shape[i]); err != nil {
				return nil, nil, err
			}
		}
	}
	for dim, c := range d.Coords {
		if n, ok := seen[dim]; ok {
			if n != len(c) {
				return nil, nil, fmt.Errorf("hyoga: coordinate %s has %d values for a dimension of length %d",
					dim, len(c), n)
			}
		}
	}
	return names, lengths, nil
}
