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
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WriteNetCDF stores the dataset in netCDF classic format. Data
// variables are written in single precision and coordinates in double
// precision, following the layout of PISM output files.
func (d *Dataset) WriteNetCDF(w *os.File) error {
	dims, lengths, err := d.dimLengths()
	if err != nil {
		return err
	}
	h := cdf.NewHeader(dims, lengths)

	for _, a := range sortedKeys(d.Attrs) {
		h.AddAttribute("", a, d.Attrs[a])
	}
	for _, dim := range dims {
		if _, ok := d.Coords[dim]; !ok {
			continue
		}
		h.AddVariable(dim, []string{dim}, []float64{0})
		for _, a := range sortedKeys(d.CoordAttrs[dim]) {
			h.AddAttribute(dim, a, d.CoordAttrs[dim][a])
		}
	}
	for _, name := range d.names {
		v := d.vars[name]
		h.AddVariable(name, v.Dims, []float32{0})
		for _, a := range sortedKeys(v.Attrs) {
			h.AddAttribute(name, a, v.Attrs[a])
		}
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("hyoga: creating netcdf file: %v", err)
	}
	for _, dim := range dims {
		c, ok := d.Coords[dim]
		if !ok {
			continue
		}
		if err := writeCoordNCF(f, dim, c); err != nil {
			return fmt.Errorf("hyoga: writing coordinate %s to netcdf file: %v", dim, err)
		}
	}
	for _, name := range d.names {
		if err := writeNCF(f, name, d.vars[name].Data); err != nil {
			return fmt.Errorf("hyoga: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}

	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}

func writeCoordNCF(f *cdf.File, dim string, values []float64) error {
	end := f.Header.Lengths(dim)
	start := make([]int, len(end))
	w := f.Writer(dim, start, end)
	_, err := w.Write(append([]float64{}, values...))
	return err
}

// ReadNetCDF reads a dataset from a file in netCDF classic format.
// One-dimensional variables sharing the name of their dimension
// become coordinates. Character variables, used by some models to
// store configuration and projection metadata, are skipped. Numeric
// attributes are converted to strings, joining multiple values with
// commas.
func ReadNetCDF(r *os.File) (*Dataset, error) {
	fi, err := r.Stat()
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading netcdf file: %v", err)
	}
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading netcdf file: %v", err)
	}

	d := NewDataset()
	for _, a := range f.Header.Attributes("") {
		d.Attrs[a] = attrString(f.Header.GetAttribute("", a))
	}

	for _, name := range f.Header.Variables() {
		dimNames := append([]string{}, f.Header.Dimensions(name)...)
		dims := append([]int{}, f.Header.Lengths(name)...)
		if len(dims) > 0 && dims[0] == 0 {
			// record dimension, the length comes from the file size
			dims[0] = int(f.Header.NumRecs(fi.Size()))
		}

		data, err := readNCF(f, name, dims)
		if err == errCharData {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("hyoga: reading netcdf variable %s: %v", name, err)
		}

		attrs := make(map[string]string)
		for _, a := range f.Header.Attributes(name) {
			attrs[a] = attrString(f.Header.GetAttribute(name, a))
		}

		if len(dimNames) == 1 && dimNames[0] == name {
			d.SetCoord(name, data.Elements, attrs)
			continue
		}
		d.AddVariable(&Variable{Name: name, Dims: dimNames, Attrs: attrs, Data: data})
	}
	return d, nil
}

// OpenDataset reads a dataset from the named netCDF file.
func OpenDataset(filename string) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("hyoga: opening dataset: %v", err)
	}
	defer f.Close()
	return ReadNetCDF(f)
}

var errCharData = errors.New("character data")

func readNCF(f *cdf.File, name string, dims []int) (*sparse.DenseArray, error) {
	nread := 1
	for _, n := range dims {
		nread *= n
	}
	var start, end []int
	if f.Header.IsRecordVariable(name) {
		start = make([]int, len(dims))
		end = append([]int{}, dims...)
	}
	r := f.Reader(name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}

	data := sparse.ZerosDense(dims...)
	switch buf := buf.(type) {
	case []float32:
		for i, v := range buf {
			data.Elements[i] = float64(v)
		}
	case []float64:
		copy(data.Elements, buf)
	case []int32:
		for i, v := range buf {
			data.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range buf {
			data.Elements[i] = float64(v)
		}
	case []uint8:
		return nil, errCharData
	default:
		return nil, fmt.Errorf("unsupported type %T", buf)
	}
	return data, nil
}

// attrString renders a netCDF attribute value as a string.
func attrString(val interface{}) string {
	format := func(n int, get func(i int) string) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = get(i)
		}
		return strings.Join(parts, ",")
	}
	switch val := val.(type) {
	case string:
		return val
	case []uint8:
		return string(val)
	case []int16:
		return format(len(val), func(i int) string { return strconv.Itoa(int(val[i])) })
	case []int32:
		return format(len(val), func(i int) string { return strconv.Itoa(int(val[i])) })
	case []float32:
		return format(len(val), func(i int) string {
			return strconv.FormatFloat(float64(val[i]), 'g', -1, 32)
		})
	case []float64:
		return format(len(val), func(i int) string {
			return strconv.FormatFloat(val[i], 'g', -1, 64)
		})
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
