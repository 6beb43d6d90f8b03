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
	"fmt"
	"path/filepath"

	"github.com/ctessum/geom"
)

// Paleoglaciers returns global paleoglacier extents from the given
// source, either "ehl11" for Ehlers et al. (2011) or "bat19" for
// Batchelor et al. (2019) last glacial maximum data.
func Paleoglaciers(ctx context.Context, source string) (*Vectors, error) {
	switch source {
	case "ehl11":
		return paleoglaciersEhl11(ctx)
	case "bat19":
		return paleoglaciersBat19(ctx)
	default:
		return nil, fmt.Errorf("hyoga: invalid paleoglacier source %s", source)
	}
}

func paleoglaciersEhl11(ctx context.Context) (*Vectors, error) {
	out := new(Vectors)
	for _, filename := range []string{"lgm.shp", "lgm_alpen.shp"} {
		d := ZipShapeDownloader{
			URL: "http://static.us.elsevierhealth.com/ehlers_digital_maps/" +
				"digital_maps_02_all_other_files.zip",
			Path:     filepath.Join("ehl11", "digital_maps_02_all_other_files.zip"),
			Filename: filename,
		}
		path, err := d.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		v, err := readShapefile(path)
		if err != nil {
			return nil, err
		}
		out.Geoms = append(out.Geoms, v.Geoms...)
		out.SR = v.SR
	}
	// the Ehlers et al. maps repeat some outlines across files
	out.Geoms = dropDuplicates(out.Geoms)
	return out, nil
}

func paleoglaciersBat19(ctx context.Context) (*Vectors, error) {
	var path string
	for _, d := range []OSFDownloader{
		{Record: "gzkwc", Path: filepath.Join("bat19", "LGM_best_estimate.dbf")},
		{Record: "xm6tu", Path: filepath.Join("bat19", "LGM_best_estimate.prj")},
		{Record: "9bjwn", Path: filepath.Join("bat19", "LGM_best_estimate.shx")},
		{Record: "9yhdv", Path: filepath.Join("bat19", "LGM_best_estimate.shp")},
	} {
		p, err := d.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		path = p
	}
	return readShapefile(path)
}

// dropDuplicates removes repeated geometries, keeping first
// occurrences in order. Geometries are bucketed by exact bounds
// before the more expensive similarity test.
func dropDuplicates(geoms []geom.Geom) []geom.Geom {
	buckets := make(map[[4]float64][]geom.Geom)
	out := make([]geom.Geom, 0, len(geoms))
	for _, g := range geoms {
		b := g.Bounds()
		key := [4]float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
		dup := false
		for _, h := range buckets[key] {
			if g.Similar(h, 1e-9) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		buckets[key] = append(buckets[key], g)
		out = append(out, g)
	}
	return out
}
