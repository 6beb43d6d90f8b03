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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

func TestAssignNewVariable(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 1))
	uplift := testVariable("uplift", "", "m", -10)
	out := d.Assign(map[string]*Variable{
		"bedrock_altitude_change_due_to_isostatic_adjustment": uplift})

	v, ok := out.Variable("uplift")
	if !ok {
		t.Fatal("assigned variable not stored under its short name")
	}
	if sn := v.StandardName(); sn != "bedrock_altitude_change_due_to_isostatic_adjustment" {
		t.Errorf("standard name is %q, want the assigned one", sn)
	}
	if out.Len() != 2 {
		t.Errorf("dataset has %d variables, want 2", out.Len())
	}
}

func TestAssignDefaultName(t *testing.T) {
	d := testDataset()
	out := d.Assign(map[string]*Variable{
		"land_ice_thickness": testVariable("", "", "m", 1)})
	if _, ok := out.Variable("land_ice_thickness"); !ok {
		t.Error("variable without short name should be stored under its standard name")
	}
}

func TestAssignReplacesStandardName(t *testing.T) {
	d := testDataset(
		testVariable("topg", "bedrock_altitude", "m", 80),
		testVariable("thk", "land_ice_thickness", "m", 20),
	)
	out := d.Assign(map[string]*Variable{
		"land_ice_thickness": testVariable("newthk", "", "m", 30)})

	if out.Len() != 2 {
		t.Fatalf("dataset has %d variables, want 2", out.Len())
	}
	v, ok := out.Variable("thk")
	if !ok {
		t.Fatal("replacement variable should reuse the existing short name")
	}
	checkValues(t, "replaced", v, 30)
	if names := out.Names(); names[1] != "thk" {
		t.Errorf("variable order is %v, replacement should keep its position", names)
	}
	if _, ok := out.Variable("newthk"); ok {
		t.Error("replacement variable should not be stored under its own name")
	}
}

func TestAssignCollision(t *testing.T) {
	d := testDataset(testVariable("isostasy", "plain_old_variable", "m", 1))
	out := d.Assign(map[string]*Variable{
		"bedrock_altitude_change_due_to_isostatic_adjustment": testVariable(
			"isostasy", "", "m", -10)})

	if out.Len() != 2 {
		t.Fatalf("dataset has %d variables, want 2", out.Len())
	}
	v, ok := out.Variable("isostasy_")
	if !ok {
		t.Fatal("colliding variable should gain a trailing underscore")
	}
	checkValues(t, "underscored", v, -10)
	if v, _ := out.Variable("isostasy"); v.StandardName() != "plain_old_variable" {
		t.Error("existing variable should survive a name collision")
	}
}

func TestAssignDoesNotMutate(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 1))
	d.Assign(map[string]*Variable{
		"surface_altitude": testVariable("usurf", "", "m", 100)})
	if d.Len() != 1 {
		t.Errorf("original dataset has %d variables after Assign, want 1", d.Len())
	}
}

func TestAssignIcemask(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 0, 5))
	out, err := d.AssignIcemask(testVariable("mymask", "", "", 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	v, ok := out.Variable("icemask")
	if !ok {
		t.Fatal("ice mask should be stored under the short name icemask")
	}
	if sn := v.StandardName(); sn != "land_ice_area_fraction" {
		t.Errorf("standard name is %q, want land_ice_area_fraction", sn)
	}

	// an existing ice mask keeps its short name
	out2, err := out.AssignIcemask(testVariable("", "", "", 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	v, ok = out2.Variable("icemask")
	if !ok {
		t.Fatal("replacement mask should reuse the existing short name")
	}
	checkValues(t, "replaced mask", v, 1, 1)
}

func TestAssignIcemaskDerives(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 0, 5))
	out, err := d.AssignIcemask(nil)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := out.Variable("icemask")
	if !ok {
		t.Fatal("derived ice mask not stored")
	}
	checkValues(t, "derived mask", v, 0, 1)
}

func TestAssignIsostasy(t *testing.T) {
	d := testDataset(testVariable("topg", "bedrock_altitude", "m", 90, 105))
	ref := testDataset(
		testVariable("usurf", "surface_altitude", "m", 120, 130),
		testVariable("thk", "land_ice_thickness", "m", 20, 30),
	)
	out, err := d.AssignIsostasy(ref)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := out.Variable("isostasy")
	if !ok {
		t.Fatal("isostasy variable not stored under its default name")
	}
	if sn := v.StandardName(); sn != "bedrock_altitude_change_due_to_isostatic_adjustment" {
		t.Errorf("standard name is %q", sn)
	}
	// depressed bedrock yields negative adjustment
	checkValues(t, "isostasy", v, -10, 5)
}

func TestWhere(t *testing.T) {
	d := testDataset(
		testVariable("topg", "bedrock_altitude", "m", 80, 90, 100),
		testVariable("uplift", "bedrock_altitude_change_due_to_isostatic_adjustment", "m", -1, -2, -3),
		testVariable("thk", "land_ice_thickness", "m", 5, 6, 7),
		testVariable("extra", "", "", 1, 2, 3),
	)
	cond := sparse.ZerosDense(3)
	cond.Elements[0] = 1

	out := d.Where(cond)

	topg, _ := out.Variable("topg")
	checkValues(t, "bedrock", topg, 80, 90, 100)
	uplift, _ := out.Variable("uplift")
	checkValues(t, "uplift", uplift, -1, -2, -3)
	thk, _ := out.Variable("thk")
	checkValues(t, "thickness", thk, 5, math.NaN(), math.NaN())
	extra, _ := out.Variable("extra")
	checkValues(t, "unnamed", extra, 1, math.NaN(), math.NaN())

	// the condition does not touch the input dataset
	thk, _ = d.Variable("thk")
	checkValues(t, "input thickness", thk, 5, 6, 7)
}

func TestWhereBroadcast(t *testing.T) {
	vals := sparse.ZerosDense(2, 3)
	for i := range vals.Elements {
		vals.Elements[i] = float64(i)
	}
	d := NewDataset()
	d.AddVariable(NewVariable("thk", []string{"time", "x"},
		map[string]string{"standard_name": "land_ice_thickness"}, vals))
	d.AddVariable(testVariable("scalars", "", "", 1, 2))

	cond := sparse.ZerosDense(3)
	cond.Elements[1] = 1
	out := d.Where(cond)

	thk, _ := out.Variable("thk")
	checkValues(t, "broadcast", thk,
		math.NaN(), 1, math.NaN(), math.NaN(), 4, math.NaN())

	// variables not spanning the condition dimensions stay intact
	scalars, _ := out.Variable("scalars")
	checkValues(t, "scalars", scalars, 1, 2)
}

func TestWhereIcemaskStored(t *testing.T) {
	d := testDataset(
		testVariable("sftgif", "land_ice_area_fraction", "", 0.4, 0.5, 0.6),
		testVariable("thk", "land_ice_thickness", "m", 1, 2, 3),
	)
	out, err := d.WhereIcemask()
	if err != nil {
		t.Fatal(err)
	}
	thk, _ := out.Variable("thk")
	// the half covered cell counts as glacierized
	checkValues(t, "thickness", thk, math.NaN(), 2, 3)
}

func TestWhereThickerCutoff(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 0, 1, 5, 10))
	out, err := d.WhereThicker(5)
	if err != nil {
		t.Fatal(err)
	}
	thk, _ := out.Variable("thk")
	// the cutoff itself does not count as thicker
	checkValues(t, "thickness", thk, math.NaN(), math.NaN(), math.NaN(), 10)
}

func TestWhereThickerMatchesWhereIcemask(t *testing.T) {
	SetGlacierMaskingPoint(2)
	defer SetGlacierMaskingPoint(1)

	d := testDataset(
		testVariable("topg", "bedrock_altitude", "m", 0, 0, 0, 0),
		testVariable("thk", "land_ice_thickness", "m", 0, 1, 5, 10),
	)

	masked, err := d.WhereIcemask()
	if err != nil {
		t.Fatal(err)
	}
	thicker, err := d.WhereThicker()
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{math.NaN(), math.NaN(), 5, 10}
	a, _ := masked.Variable("thk")
	checkValues(t, "icemask thickness", a, want...)
	b, _ := thicker.Variable("thk")
	checkValues(t, "thicker thickness", b, want...)

	// bedrock stays in both
	a, _ = masked.Variable("topg")
	checkValues(t, "icemask bedrock", a, 0, 0, 0, 0)
	b, _ = thicker.Variable("topg")
	checkValues(t, "thicker bedrock", b, 0, 0, 0, 0)
}

func TestEvalMask(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 0, 0.5, 2, math.NaN()))
	v, err := d.Eval("land_ice_thickness > 1")
	if err != nil {
		t.Fatal(err)
	}
	// NaN thickness compares false
	checkValues(t, "mask", v, 0, 0, 1, 0)
}

func TestEvalShortName(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 1, 2, 3))
	v, err := d.Eval("thk * 2")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, "doubled", v, 2, 4, 6)
}

func TestEvalDerived(t *testing.T) {
	d := testDataset(
		testVariable("usurf", "surface_altitude", "m", 100, 120),
		testVariable("topg", "bedrock_altitude", "m", 95, 100),
	)
	v, err := d.Eval("land_ice_thickness >= 10")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, "derived mask", v, 0, 1)
}

func TestEvalFunctions(t *testing.T) {
	d := testDataset(testVariable("uplift",
		"bedrock_altitude_change_due_to_isostatic_adjustment", "m", -9, 16))
	v, err := d.Eval("sqrt(abs(uplift))")
	if err != nil {
		t.Fatal(err)
	}
	checkValues(t, "sqrt", v, 3, 4)
}

func TestEvalAssignIcemask(t *testing.T) {
	d := testDataset(
		testVariable("topg", "bedrock_altitude", "m", 0, 0, 0),
		testVariable("thk", "land_ice_thickness", "m", 0, 2, 5),
	)
	mask, err := d.Eval("land_ice_thickness > 3")
	if err != nil {
		t.Fatal(err)
	}
	out, err := d.AssignIcemask(mask)
	if err != nil {
		t.Fatal(err)
	}
	masked, err := out.WhereIcemask()
	if err != nil {
		t.Fatal(err)
	}
	thk, _ := masked.Variable("thk")
	checkValues(t, "thickness", thk, math.NaN(), math.NaN(), 5)
}

func TestEvalErrors(t *testing.T) {
	d := testDataset(testVariable("thk", "land_ice_thickness", "m", 1))
	for _, expression := range []string{
		"thk >",           // malformed
		"1 > 0",           // no variables
		"basal_heat_flux", // not resolvable
	} {
		if _, err := d.Eval(expression); err == nil {
			t.Errorf("Eval(%q) should fail", expression)
		}
	}
}

func TestEvalMismatchedShapes(t *testing.T) {
	d := testDataset(
		testVariable("thk", "land_ice_thickness", "m", 1, 2),
		testVariable("extra", "", "", 1, 2, 3),
	)
	if _, err := d.Eval("thk + extra"); err == nil {
		t.Error("mismatched shapes should fail")
	}
}
