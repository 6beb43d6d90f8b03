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
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// thicker reports whether ice of thickness h counts as glacierized
// against the given thickness cutoff in metres. The same test decides
// ice mask synthesis and thickness-based masking.
func thicker(h, cutoff float64) bool { return h > cutoff }

// Assign returns a dataset with the given variables added under the
// given standard names, replacing any variable already carrying the
// same standard name while keeping its short name. New variables are
// stored under their own short names, or their standard names if
// short names are missing, with trailing underscores added in the
// event of name clashes.
func (d *Dataset) Assign(variables map[string]*Variable) *Dataset {
	out := d.Copy()

	standardNames := make([]string, 0, len(variables))
	for sn := range variables {
		standardNames = append(standardNames, sn)
	}
	sort.Strings(standardNames)

	for _, standardName := range standardNames {
		v := variables[standardName].shallowCopy()
		v.Attrs["standard_name"] = standardName

		// default to existing name, else standard name
		name := v.Name
		if name == "" {
			name = standardName
		}

		// look for an existing variable with this standard name
		found := false
		for _, existing := range out.names {
			if out.vars[existing].StandardName() == standardName {
				name = existing
				found = true
				break
			}
		}

		// if the name is taken by a variable with a different
		// standard name, add trailing underscores until we find a
		// free slot
		for !found {
			if _, taken := out.vars[name]; !taken {
				break
			}
			Log.WithFields(logrus.Fields{"variable": name}).Warnf(
				"found existing variable %s, using %s_ instead", name, name)
			name += "_"
		}

		v.Name = name
		out.AddVariable(v)
	}
	return out
}

// AssignIcemask returns a dataset with mask stored as the ice mask
// under standard name land_ice_area_fraction, replacing any existing
// ice mask. The variable is stored under the short name icemask
// unless an existing ice mask already provides one. A nil mask
// assigns the mask resolved from the dataset itself, derived from ice
// thickness if necessary.
func (d *Dataset) AssignIcemask(mask *Variable) (*Dataset, error) {
	if mask == nil {
		var err error
		mask, err = d.Resolve("land_ice_area_fraction", true)
		if err != nil {
			return nil, err
		}
	}
	mask = mask.shallowCopy()
	mask.Name = "icemask"
	return d.Assign(map[string]*Variable{"land_ice_area_fraction": mask}), nil
}

// AssignIsostasy returns a dataset with bedrock isostatic adjustment
// relative to the reference topography in ref, stored under standard
// name bedrock_altitude_change_due_to_isostatic_adjustment and the
// short name isostasy. The adjustment is the current bedrock altitude
// minus the reference one, so that a depressed bedrock yields
// negative values. Either bedrock altitude may be derived, for
// instance from surface altitude and ice thickness.
func (d *Dataset) AssignIsostasy(ref *Dataset) (*Dataset, error) {
	topo, err := ref.Resolve("bedrock_altitude", true)
	if err != nil {
		return nil, err
	}
	cur, err := d.Resolve("bedrock_altitude", true)
	if err != nil {
		return nil, err
	}
	if err := checkAligned(cur, topo); err != nil {
		return nil, fmt.Errorf("hyoga: computing isostatic adjustment: %v", err)
	}

	data := sparse.ZerosDense(cur.Data.Shape...)
	for i := range data.Elements {
		data.Elements[i] = cur.Data.Elements[i] - topo.Data.Elements[i]
	}
	diff := &Variable{
		Name:  "isostasy",
		Dims:  append([]string{}, cur.Dims...),
		Attrs: make(map[string]string),
		Data:  data,
	}
	return d.Assign(map[string]*Variable{
		"bedrock_altitude_change_due_to_isostatic_adjustment": diff}), nil
}

// Where returns a dataset with glacier variables masked outside the
// condition, leaving variables whose standard name starts with
// bedrock_altitude untouched. The condition holds where cond is
// nonzero. It may cover only the trailing dimensions of a variable,
// in which case it applies to every slice along the leading ones;
// variables not spanning the condition dimensions are left unchanged.
// Masked cells become NaN.
func (d *Dataset) Where(cond *sparse.DenseArray) *Dataset {
	out := d.Copy()
	for _, name := range out.names {
		v := out.vars[name]
		if strings.HasPrefix(v.StandardName(), "bedrock_altitude") {
			continue
		}
		if !suffixShape(v, cond) {
			continue
		}
		masked := v.Data.Copy()
		n := len(cond.Elements)
		for i := range masked.Elements {
			if cond.Elements[i%n] == 0 {
				masked.Elements[i] = math.NaN()
			}
		}
		w := v.shallowCopy()
		w.Data = masked
		out.vars[name] = w
	}
	return out
}

// suffixShape reports whether the shape of cond matches the trailing
// axes of v.
func suffixShape(v *Variable, cond *sparse.DenseArray) bool {
	off := len(v.Data.Shape) - len(cond.Shape)
	if off < 0 {
		return false
	}
	for i, n := range cond.Shape {
		if v.Data.Shape[off+i] != n {
			return false
		}
	}
	return true
}

// WhereIcemask returns a dataset with glacier variables masked where
// the ice mask falls below one half. The mask is derived from ice
// thickness if the dataset carries none.
func (d *Dataset) WhereIcemask() (*Dataset, error) {
	mask, err := d.Resolve("land_ice_area_fraction", true)
	if err != nil {
		return nil, err
	}
	cond := sparse.ZerosDense(mask.Data.Shape...)
	for i, f := range mask.Data.Elements {
		if f >= 0.5 {
			cond.Elements[i] = 1
		}
	}
	return d.Where(cond), nil
}

// WhereThicker returns a dataset with glacier variables masked except
// where ice thickness lies strictly above the given cutoff in metres.
// The cutoff defaults to the current glacier masking point, so that
// without arguments WhereThicker masks the same cells as WhereIcemask
// on a dataset carrying no explicit ice mask.
func (d *Dataset) WhereThicker(cutoff ...float64) (*Dataset, error) {
	c := GlacierMaskingPoint()
	if len(cutoff) > 0 {
		c = cutoff[0]
	}
	thk, err := d.Resolve("land_ice_thickness", true)
	if err != nil {
		return nil, err
	}
	cond := sparse.ZerosDense(thk.Data.Shape...)
	for i, h := range thk.Data.Elements {
		if thicker(h, c) {
			cond.Elements[i] = 1
		}
	}
	return d.Where(cond), nil
}

// evalFuncs are the functions available in Eval expressions.
var evalFuncs = map[string]govaluate.ExpressionFunction{
	"abs":   evalFunc("abs", math.Abs),
	"exp":   evalFunc("exp", math.Exp),
	"log":   evalFunc("log", math.Log),
	"log10": evalFunc("log10", math.Log10),
	"sqrt":  evalFunc("sqrt", math.Sqrt),
}

// evalFunc adapts f to an expression function taking one numeric
// argument.
func evalFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("hyoga: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("hyoga: argument to function '%s' is not a number", name)
		}
		return f(v), nil
	}
}

// Eval evaluates a cell-wise expression over the dataset and returns
// the result as a new variable. Identifiers name dataset variables by
// standard name, with derivation enabled, or failing that by short
// name, and all named variables must share the same dimensions.
// Comparisons yield one where true and zero where false, so that an
// expression such as "land_ice_thickness > 1" builds an ice mask
// suitable for AssignIcemask. Numeric results are kept as they are.
// The functions abs, exp, log, log10 and sqrt are available. Cells
// where an input is NaN compare false.
func (d *Dataset) Eval(expression string) (*Variable, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, evalFuncs)
	if err != nil {
		return nil, fmt.Errorf("hyoga: parsing expression %q: %v", expression, err)
	}

	var names []string
	seen := make(map[string]bool)
	for _, name := range expr.Vars() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("hyoga: expression %q names no dataset variables", expression)
	}

	bound := make([]*Variable, len(names))
	for i, name := range names {
		v, err := d.Resolve(name, true)
		if err != nil {
			var ok bool
			if v, ok = d.Variable(name); !ok {
				return nil, fmt.Errorf("hyoga: expression variable %s: %v", name, err)
			}
		}
		bound[i] = v
	}
	if err := checkAligned(bound...); err != nil {
		return nil, fmt.Errorf("hyoga: evaluating %q: %v", expression, err)
	}

	data := sparse.ZerosDense(bound[0].Data.Shape...)
	params := make(map[string]interface{}, len(names))
	for i := range data.Elements {
		for j, name := range names {
			params[name] = bound[j].Data.Elements[i]
		}
		result, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("hyoga: evaluating %q: %v", expression, err)
		}
		switch r := result.(type) {
		case bool:
			if r {
				data.Elements[i] = 1
			}
		case float64:
			data.Elements[i] = r
		default:
			return nil, fmt.Errorf("hyoga: expression %q returned %T, want a number or boolean", expression, result)
		}
	}

	return &Variable{
		Dims:  append([]string{}, bound[0].Dims...),
		Attrs: make(map[string]string),
		Data:  data,
	}, nil
}
