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

// A derivation expresses a missing variable as an elementwise
// combination of two variables present in a dataset. The operands are
// looked up directly and never derived themselves, so derivations
// cannot recurse even though the altitude identities below refer to
// each other.
type derivation struct {
	inputs [2]string // standard names of the operands
	op     func(a, b float64) float64
}

func add(a, b float64) float64 { return a + b }
func sub(a, b float64) float64 { return a - b }

// derivations holds the identities relating bedrock altitude, surface
// altitude and land ice thickness. Ice masks and vector magnitudes
// follow separate rules implemented in resolve.go.
var derivations = map[string]derivation{
	"bedrock_altitude":   {inputs: [2]string{"surface_altitude", "land_ice_thickness"}, op: sub},
	"land_ice_thickness": {inputs: [2]string{"surface_altitude", "bedrock_altitude"}, op: sub},
	"surface_altitude":   {inputs: [2]string{"bedrock_altitude", "land_ice_thickness"}, op: add},
}
