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

package open

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/juseg/hyoga"
)

const testTolerance = 1.e-10

// float32Tolerance allows for the loss of precision when data
// variables are stored in single precision.
const float32Tolerance = 1.e-6

func different(a, b, tolerance float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return false
	}
	if a == b {
		return false
	}
	return 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

func checkValues(t *testing.T, context string, v *hyoga.Variable, want ...float64) {
	t.Helper()
	if len(v.Data.Elements) != len(want) {
		t.Fatalf("%s: got %d values, want %d", context, len(v.Data.Elements), len(want))
	}
	for i, w := range want {
		if different(v.Data.Elements[i], w, testTolerance) {
			t.Errorf("%s: value %d = %g (it should equal %g)", context, i, v.Data.Elements[i], w)
		}
	}
}

// writeTestDataset writes a dataset to a NetCDF file for testing.
func writeTestDataset(t *testing.T, fname string, d *hyoga.Dataset) {
	t.Helper()
	f, err := os.Create(fname)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.WriteNetCDF(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestYXOrder(t *testing.T) {
	for _, test := range []struct {
		dims []string
		perm []int
	}{
		{[]string{"y", "x"}, nil},
		{[]string{"time", "y", "x"}, nil},
		{[]string{"x", "y"}, []int{1, 0}},
		{[]string{"time", "x", "y"}, []int{0, 2, 1}},
		{[]string{"x", "time", "y"}, []int{1, 2, 0}},
		{[]string{"time", "z"}, nil},
		{[]string{"x"}, nil},
	} {
		if got := yxOrder(test.dims); !reflect.DeepEqual(got, test.perm) {
			t.Errorf("yxOrder(%v) = %v, want %v", test.dims, got, test.perm)
		}
	}
}

func TestTranspose(t *testing.T) {
	data := sparse.ZerosDense(2, 3)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})
	out, err := transpose(data, []int{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Shape, []int{3, 2}) {
		t.Fatalf("transposed shape is %v", out.Shape)
	}
	want := []float64{1, 4, 2, 5, 3, 6}
	for i, w := range want {
		if out.Elements[i] != w {
			t.Errorf("element %d is %g (it should equal %g)", i, out.Elements[i], w)
		}
	}
}

func TestTransposeYX(t *testing.T) {
	data := sparse.ZerosDense(2, 3)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})
	d := hyoga.NewDataset()
	d.SetCoord("x", []float64{0, 1}, nil)
	d.SetCoord("y", []float64{0, 1, 2}, nil)
	d.AddVariable(hyoga.NewVariable("topg", []string{"x", "y"}, nil, data))
	series := sparse.ZerosDense(4)
	d.AddVariable(hyoga.NewVariable("volume", []string{"time"}, nil, series))

	out, err := transposeYX(d)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := out.Variable("topg")
	if !reflect.DeepEqual(v.Dims, []string{"y", "x"}) {
		t.Errorf("transposed dims are %v", v.Dims)
	}
	checkValues(t, "transposed topg", v, 1, 4, 2, 5, 3, 6)
	s, _ := out.Variable("volume")
	if !reflect.DeepEqual(s.Dims, []string{"time"}) {
		t.Errorf("volume dims are %v", s.Dims)
	}
	orig, _ := d.Variable("topg")
	if !reflect.DeepEqual(orig.Dims, []string{"x", "y"}) {
		t.Error("the input dataset should be untouched")
	}
}

func TestAssignAgeYears(t *testing.T) {
	d := hyoga.NewDataset()
	d.SetCoord("time", []float64{-25000, -20000},
		map[string]string{"units": "years since 1-1-1"})
	data := sparse.ZerosDense(2)
	copy(data.Elements, []float64{1, 2})
	d.AddVariable(hyoga.NewVariable("volume", []string{"time"}, nil, data))

	out := assignAge(d)
	if _, ok := out.Coords["time"]; ok {
		t.Error("the time coordinate should be dropped")
	}
	age := out.Coords["age"]
	want := []float64{25, 20}
	if len(age) != len(want) {
		t.Fatalf("age coordinate is %v", age)
	}
	for i := range want {
		if different(age[i], want[i], testTolerance) {
			t.Errorf("age %d is %g (it should equal %g)", i, age[i], want[i])
		}
	}
	if out.CoordAttrs["age"]["long_name"] != "model age" ||
		out.CoordAttrs["age"]["units"] != "ka" {
		t.Errorf("age attributes are %v", out.CoordAttrs["age"])
	}
	v, _ := out.Variable("volume")
	if !reflect.DeepEqual(v.Dims, []string{"age"}) {
		t.Errorf("volume dims are %v", v.Dims)
	}
	if _, ok := d.Coords["time"]; !ok {
		t.Error("the input dataset should be untouched")
	}
}

func TestAssignAgeSeconds(t *testing.T) {
	d := hyoga.NewDataset()
	d.SetCoord("time", []float64{-3.1536e10},
		map[string]string{"units": "seconds since 1-1-1"})

	out := assignAge(d)
	age := out.Coords["age"]
	if len(age) != 1 || different(age[0], 1, testTolerance) {
		t.Errorf("age coordinate is %v (it should equal [1])", age)
	}
}

func TestAssignAgeNoUnits(t *testing.T) {
	d := hyoga.NewDataset()
	d.SetCoord("time", []float64{-1000}, nil)

	out := assignAge(d)
	if _, ok := out.Coords["age"]; ok {
		t.Error("times without units should not become ages")
	}
	if _, ok := out.Coords["time"]; !ok {
		t.Error("times without units should pass through")
	}
}

func TestFillStandardNames(t *testing.T) {
	d := hyoga.NewDataset()
	d.AddVariable(hyoga.NewVariable("topg", nil, nil, sparse.ZerosDense(1)))
	d.AddVariable(hyoga.NewVariable("vvelsurf", nil, nil, sparse.ZerosDense(1)))
	d.AddVariable(hyoga.NewVariable("thk", nil,
		map[string]string{"standard_name": "ice_amount"}, sparse.ZerosDense(1)))
	d.AddVariable(hyoga.NewVariable("misc", nil, nil, sparse.ZerosDense(1)))

	fillStandardNames(d)
	for name, want := range map[string]string{
		"topg":     "bedrock_altitude",
		"vvelsurf": "land_ice_surface_y_velocity",
		"thk":      "ice_amount",
		"misc":     "",
	} {
		v, _ := d.Variable(name)
		if got := v.StandardName(); got != want {
			t.Errorf("%s standard name is %q, want %q", name, got, want)
		}
	}
}

func TestSliceAxis(t *testing.T) {
	data := sparse.ZerosDense(2, 3)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})

	row := sliceAxis(data, 0, 1)
	if !reflect.DeepEqual(row.Shape, []int{3}) ||
		!reflect.DeepEqual(row.Elements, []float64{4, 5, 6}) {
		t.Errorf("row slice is %v %v", row.Shape, row.Elements)
	}
	col := sliceAxis(data, 1, 2)
	if !reflect.DeepEqual(col.Shape, []int{2}) ||
		!reflect.DeepEqual(col.Elements, []float64{3, 6}) {
		t.Errorf("column slice is %v %v", col.Shape, col.Elements)
	}

	series := sparse.ZerosDense(2)
	copy(series.Elements, []float64{7, 8})
	scalar := sliceAxis(series, 0, 1)
	if len(scalar.Shape) != 0 || scalar.Elements[0] != 8 {
		t.Errorf("scalar slice is %v %v", scalar.Shape, scalar.Elements)
	}
}

func TestSelectAge(t *testing.T) {
	d := hyoga.NewDataset()
	d.SetCoord("age", []float64{25, 20, 15}, map[string]string{"units": "ka"})
	d.SetCoord("x", []float64{0, 1}, nil)
	thk := sparse.ZerosDense(3, 2)
	copy(thk.Elements, []float64{1, 2, 3, 4, 5, 6})
	d.AddVariable(hyoga.NewVariable("thk", []string{"age", "x"}, nil, thk))
	topg := sparse.ZerosDense(2)
	copy(topg.Elements, []float64{7, 8})
	d.AddVariable(hyoga.NewVariable("topg", []string{"x"}, nil, topg))

	out, err := SelectAge(d, 20.2, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Coords["age"]; ok {
		t.Error("the age coordinate should be dropped")
	}
	v, _ := out.Variable("thk")
	if !reflect.DeepEqual(v.Dims, []string{"x"}) {
		t.Errorf("selected dims are %v", v.Dims)
	}
	checkValues(t, "selected thk", v, 3, 4)
	w, _ := out.Variable("topg")
	checkValues(t, "topg", w, 7, 8)
}

func TestSelectAgeTolerance(t *testing.T) {
	d := hyoga.NewDataset()
	d.SetCoord("age", []float64{25, 20, 15}, nil)
	if _, err := SelectAge(d, 10, 1); err == nil {
		t.Error("an age too far from the coordinate should be an error")
	}
}

func TestSelectAgeMissing(t *testing.T) {
	d := hyoga.NewDataset()
	if _, err := SelectAge(d, 0, 1); err == nil {
		t.Error("a dataset without ages should be an error")
	}
}

func TestVerbPattern(t *testing.T) {
	for pattern, want := range map[string]string{
		"ex.%07.0f.nc": "ex.*.nc",
		"run.%d.nc":    "run.*.nc",
	} {
		if got := verbRe.ReplaceAllString(pattern, "*"); got != want {
			t.Errorf("glob pattern for %q is %q, want %q", pattern, got, want)
		}
	}
}

func TestExpandUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if got := expandUser("~/run/ex.nc"); got != filepath.Join(home, "run", "ex.nc") {
		t.Errorf("expanded path is %s", got)
	}
	if got := expandUser("/run/ex.nc"); got != "/run/ex.nc" {
		t.Errorf("absolute path changed to %s", got)
	}
}

func TestDatasetPreprocess(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "out.nc")
	d0 := hyoga.NewDataset()
	d0.SetCoord("time", []float64{-3.1536e10},
		map[string]string{"units": "seconds since 1-1-1"})
	d0.SetCoord("x", []float64{0, 1, 2}, map[string]string{"units": "m"})
	d0.SetCoord("y", []float64{0, 1}, map[string]string{"units": "m"})
	data := sparse.ZerosDense(1, 3, 2)
	copy(data.Elements, []float64{1, 2, 3, 4, 5, 6})
	d0.AddVariable(hyoga.NewVariable("topg", []string{"time", "x", "y"}, nil, data))
	writeTestDataset(t, fname, d0)

	d, err := Dataset(fname)
	if err != nil {
		t.Fatal(err)
	}
	age := d.Coords["age"]
	if len(age) != 1 || different(age[0], 1, testTolerance) {
		t.Errorf("age coordinate is %v (it should equal [1])", age)
	}
	v, ok := d.Variable("topg")
	if !ok {
		t.Fatal("variable topg not read")
	}
	if !reflect.DeepEqual(v.Dims, []string{"age", "y", "x"}) {
		t.Errorf("preprocessed dims are %v", v.Dims)
	}
	if v.StandardName() != "bedrock_altitude" {
		t.Errorf("topg standard name is %q", v.StandardName())
	}
	want := []float64{1, 3, 5, 2, 4, 6}
	for i, w := range want {
		if different(v.Data.Elements[i], w, float32Tolerance) {
			t.Errorf("element %d is %g (it should equal %g)", i, v.Data.Elements[i], w)
		}
	}
}

// writeSubdatasetFile writes one file of a model run for testing.
func writeSubdatasetFile(t *testing.T, fname string, times []float64, value float64) {
	t.Helper()
	d := hyoga.NewDataset()
	d.SetCoord("time", times, map[string]string{"units": "years since 1-1-1"})
	d.SetCoord("y", []float64{0, 1}, map[string]string{"units": "m"})
	d.SetCoord("x", []float64{0, 1, 2}, map[string]string{"units": "m"})
	data := sparse.ZerosDense(len(times), 2, 3)
	for i := range data.Elements {
		data.Elements[i] = value
	}
	d.AddVariable(hyoga.NewVariable("thk", []string{"time", "y", "x"}, map[string]string{
		"standard_name": "land_ice_thickness",
		"units":         "m",
	}, data))
	writeTestDataset(t, fname, d)
}

func TestSubdataset(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "ex.%07.0f.nc")
	writeSubdatasetFile(t, fmt.Sprintf(pattern, 1000.0), []float64{500, 1000}, 1)
	writeSubdatasetFile(t, fmt.Sprintf(pattern, 2000.0), []float64{1500, 2000}, 2)

	d, err := Subdataset(pattern, 1500, 0, SubdatasetTolerance)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := d.Variable("thk")
	if !ok {
		t.Fatal("variable thk not read")
	}
	if !reflect.DeepEqual(v.Dims, []string{"y", "x"}) {
		t.Errorf("selected dims are %v", v.Dims)
	}
	for i, got := range v.Data.Elements {
		if different(got, 2, float32Tolerance) {
			t.Errorf("element %d is %g (it should equal %g)", i, got, 2.0)
		}
	}
}

func TestSubdatasetShift(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "ex.%07.0f.nc")
	writeSubdatasetFile(t, fmt.Sprintf(pattern, 1000.0), []float64{-99500, -99000}, 4)

	d, err := Subdataset(pattern, -99000, 100000, SubdatasetTolerance)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := d.Variable("thk")
	if !ok {
		t.Fatal("variable thk not read")
	}
	for i, got := range v.Data.Elements {
		if different(got, 4, float32Tolerance) {
			t.Errorf("element %d is %g (it should equal %g)", i, got, 4.0)
		}
	}
}

func TestSubdatasetNoFile(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "ex.%07.0f.nc")
	writeSubdatasetFile(t, fmt.Sprintf(pattern, 1000.0), []float64{1000}, 1)

	if _, err := Subdataset(pattern, 3000, 0, SubdatasetTolerance); err == nil {
		t.Error("a time past the last file should be an error")
	}
}
