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

import "fmt"

// NotFoundError is returned when a dataset contains no variable with
// the requested standard name and no derivation applies.
type NotFoundError struct {
	StandardName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("hyoga: no variable found with standard name %s", e.StandardName)
}

// DerivationError is returned when a variable missing from a dataset
// could not be computed from the variables available.
type DerivationError struct {
	StandardName string
	Err          error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("hyoga: while deriving %s: %v", e.StandardName, e.Err)
}

func (e *DerivationError) Unwrap() error { return e.Err }

// DuplicateNameError is returned when several variables in a dataset
// carry the same standard name, so that a lookup by that name would be
// ambiguous.
type DuplicateNameError struct {
	StandardName string
	Names        []string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("hyoga: standard name %s is carried by several variables: %v",
		e.StandardName, e.Names)
}
