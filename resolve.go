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
	"math"
	"strings"

	"github.com/ctessum/sparse"
)

// defaultDirections lists the direction keywords considered when
// computing vector magnitudes. Computing magnitudes on a sphere is
// not supported, so the longitude and latitude directions northward,
// southward, eastward and westward are left out.
var defaultDirections = []string{"upward", "downward", "x", "y"}

// Resolve returns the variable carrying the given netCDF Climate and
// Forecast (CF) standard name
// (http://cfconventions.org/standard-names.html).
//
// When infer is true and no stored variable matches, the variable is
// computed from the ones present: an ice mask from ice thickness and
// the glacier masking point, any of the three topographic variables
// bedrock_altitude, land_ice_thickness and surface_altitude from the
// other two, and the magnitude of a vector from its components.
// Optional direction keywords restrict the component suffixes
// considered for magnitudes.
//
// Variables returned without derivation are the ones stored in the
// dataset, not copies. Derived variables carry the attributes shared
// by all their operands, the requested standard name, and an empty
// short name until assigned to a dataset.
func (d *Dataset) Resolve(standardName string, infer bool, directions ...string) (*Variable, error) {
	matches := d.byStandardName(standardName)
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, v := range matches {
			names[i] = v.Name
		}
		return nil, &DuplicateNameError{StandardName: standardName, Names: names}
	}

	if infer {

		// try to get ice mask from ice thickness
		if standardName == "land_ice_area_fraction" {
			return d.deriveIcemask()
		}

		// try to compute altitude and thickness variables
		if rule, ok := derivations[standardName]; ok {
			return d.derive(standardName, rule)
		}

		// try to get the magnitude of a vector from its components
		if strings.HasPrefix(standardName, "magnitude_of_") {
			return d.deriveMagnitude(standardName, directions)
		}
	}

	return nil, &NotFoundError{StandardName: standardName}
}

// GetVar looks up or derives a variable by standard name. It is
// shorthand for Resolve with inference enabled.
func (d *Dataset) GetVar(standardName string) (*Variable, error) {
	return d.Resolve(standardName, true)
}

// derive computes a variable from the two operands named by rule. The
// operands are looked up without inference, must agree on units and
// grid, and pass on the attributes they share.
func (d *Dataset) derive(standardName string, rule derivation) (*Variable, error) {
	var operands [2]*Variable
	for i, name := range rule.inputs {
		v, err := d.Resolve(name, false)
		if err != nil {
			return nil, &DerivationError{StandardName: standardName, Err: err}
		}
		operands[i] = v
	}
	a, b := operands[0], operands[1]
	if err := checkUnits(a, b); err != nil {
		return nil, &DerivationError{StandardName: standardName, Err: err}
	}
	if err := checkAligned(a, b); err != nil {
		return nil, &DerivationError{StandardName: standardName, Err: err}
	}

	data := sparse.ZerosDense(a.Data.Shape...)
	for i := range data.Elements {
		data.Elements[i] = rule.op(a.Data.Elements[i], b.Data.Elements[i])
	}
	attrs := sharedAttrs(a, b)
	attrs["standard_name"] = standardName
	return &Variable{Dims: append([]string{}, a.Dims...), Attrs: attrs, Data: data}, nil
}

// deriveIcemask computes an ice mask from ice thickness, counting
// cells as glacierized where the thickness lies strictly above the
// glacier masking point.
func (d *Dataset) deriveIcemask() (*Variable, error) {
	const standardName = "land_ice_area_fraction"
	thk, err := d.Resolve("land_ice_thickness", true)
	if err != nil {
		return nil, &DerivationError{StandardName: standardName, Err: err}
	}
	point := GlacierMaskingPoint()
	data := sparse.ZerosDense(thk.Data.Shape...)
	for i, h := range thk.Data.Elements {
		if thicker(h, point) {
			data.Elements[i] = 1
		}
	}
	return &Variable{
		Dims:  append([]string{}, thk.Dims...),
		Attrs: map[string]string{"standard_name": standardName},
		Data:  data,
	}, nil
}

// deriveMagnitude computes the euclidean norm of the components of the
// vector named by stripping the magnitude_of_ prefix. Components are
// the stored variables whose standard name reduces to the vector name
// after removing one of the direction keywords.
func (d *Dataset) deriveMagnitude(standardName string, directions []string) (*Variable, error) {
	vector := strings.Replace(standardName, "magnitude_of_", "", 1)
	if len(directions) == 0 {
		directions = defaultDirections
	}

	var components []*Variable
	seen := make(map[string]string)
	for _, name := range d.names {
		v := d.vars[name]
		sn := v.StandardName()
		if sn == "" {
			continue
		}
		for _, dir := range directions {
			if strings.ReplaceAll(sn, "_"+dir, "") != vector {
				continue
			}
			if prev, ok := seen[sn]; ok {
				return nil, &DuplicateNameError{StandardName: sn, Names: []string{prev, name}}
			}
			seen[sn] = name
			components = append(components, v)
			break
		}
	}
	if len(components) == 0 {
		return nil, &NotFoundError{StandardName: standardName}
	}
	if err := checkUnits(components...); err != nil {
		return nil, &DerivationError{StandardName: standardName, Err: err}
	}
	if err := checkAligned(components...); err != nil {
		return nil, &DerivationError{StandardName: standardName, Err: err}
	}

	data := sparse.ZerosDense(components[0].Data.Shape...)
	for i := range data.Elements {
		var sum float64
		for _, c := range components {
			sum += c.Data.Elements[i] * c.Data.Elements[i]
		}
		data.Elements[i] = math.Sqrt(sum)
	}
	attrs := sharedAttrs(components...)
	attrs["standard_name"] = standardName
	return &Variable{Dims: append([]string{}, components[0].Dims...), Attrs: attrs, Data: data}, nil
}

// checkUnits verifies that all variables agree on their units
// attribute, counting a missing attribute as empty units.
func checkUnits(vars ...*Variable) error {
	units := vars[0].Units()
	for _, v := range vars[1:] {
		if v.Units() != units {
			return fmt.Errorf("mismatched units %q and %q", units, v.Units())
		}
	}
	return nil
}

// checkAligned verifies that all variables live on the same grid.
func checkAligned(vars ...*Variable) error {
	a := vars[0]
	for _, v := range vars[1:] {
		if len(v.Dims) != len(a.Dims) || len(v.Data.Shape) != len(a.Data.Shape) {
			return fmt.Errorf("mismatched dimensions %v and %v", a.Dims, v.Dims)
		}
		for i, dim := range a.Dims {
			if v.Dims[i] != dim {
				return fmt.Errorf("mismatched dimensions %v and %v", a.Dims, v.Dims)
			}
		}
		for i, n := range a.Data.Shape {
			if v.Data.Shape[i] != n {
				return fmt.Errorf("mismatched shapes %v and %v", a.Data.Shape, v.Data.Shape)
			}
		}
	}
	return nil
}

// sharedAttrs returns the attributes of the first variable that all
// other variables carry with an equal value.
func sharedAttrs(vars ...*Variable) map[string]string {
	attrs := make(map[string]string)
	for k, v := range vars[0].Attrs {
		keep := true
		for _, other := range vars[1:] {
			if w, ok := other.Attrs[k]; !ok || w != v {
				keep = false
				break
			}
		}
		if keep {
			attrs[k] = v
		}
	}
	return attrs
}
