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
	"context"
	"testing"

	"github.com/ctessum/geom"
)

func TestDropDuplicates(t *testing.T) {
	a := square(0, 0)
	b := square(5, 5)
	got := dropDuplicates([]geom.Geom{a, b, square(0, 0), square(20, 20)})
	if len(got) != 3 {
		t.Fatalf("got %d geometries (it should get 3)", len(got))
	}
	if !got[0].Similar(a, 1e-9) || !got[1].Similar(b, 1e-9) {
		t.Error("deduplication should keep first occurrences in order")
	}
}

func TestPaleoglaciersInvalidSource(t *testing.T) {
	if _, err := Paleoglaciers(context.Background(), "xyz"); err == nil {
		t.Error("an invalid source should be an error")
	}
}
