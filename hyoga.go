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

// Package hyoga provides paleoglacier modelling tools built around
// gridded datasets following the Climate and Forecast (CF) metadata
// conventions. Variables are located by their CF standard name rather
// than by the short names particular models use, and quantities
// missing from a dataset, such as the ice mask, the bedrock altitude,
// or the magnitude of a velocity vector, are derived on the fly from
// the variables available. Further tools mask glacierized areas,
// compute bedrock isostatic adjustment relative to a reference
// topography, and interpolate model results onto higher-resolution
// topographies for visualization.
package hyoga

import "github.com/sirupsen/logrus"

// Version gives the version number of the hyoga library.
const Version = "0.3.1"

// Log receives warnings about variable renaming and other notable
// events. It defaults to the logrus standard logger.
var Log logrus.FieldLogger = logrus.StandardLogger()
