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

import "sync"

var config = struct {
	sync.RWMutex

	// glacierMaskingPoint is the ice thickness in metres above which
	// grid cells count as glacierized when a dataset carries no
	// explicit ice mask.
	glacierMaskingPoint float64
}{
	glacierMaskingPoint: 1,
}

// GlacierMaskingPoint returns the ice thickness in metres above which
// grid cells count as glacierized when a dataset carries no explicit
// ice mask.
func GlacierMaskingPoint() float64 {
	config.RLock()
	defer config.RUnlock()
	return config.glacierMaskingPoint
}

// SetGlacierMaskingPoint changes the masking threshold returned by
// GlacierMaskingPoint. The new value applies to ice masks derived
// after the call, not to masks already stored in datasets.
func SetGlacierMaskingPoint(h float64) {
	config.Lock()
	defer config.Unlock()
	config.glacierMaskingPoint = h
}
