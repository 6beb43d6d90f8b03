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
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
	"github.com/juseg/hyoga/internal/hash"
)

const lonlat = "+proj=longlat +datum=WGS84 +no_defs"

// Vectors hold geometries read from a shapefile along with their
// spatial reference.
type Vectors struct {
	// SR is the spatial reference of the geometries.
	SR *proj.SR

	// Geoms are the geometries in the order they were read.
	Geoms []geom.Geom
}

// Reproject returns the geometries transformed to the projection
// described by the given proj4 string.
func (v *Vectors) Reproject(proj4 string) ([]geom.Geom, error) {
	to, err := proj.Parse(proj4)
	if err != nil {
		return nil, fmt.Errorf("hyoga: parsing projection: %v", err)
	}
	ct, err := v.SR.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("hyoga: reprojecting vectors: %v", err)
	}
	out := make([]geom.Geom, len(v.Geoms))
	for i, g := range v.Geoms {
		out[i], err = g.Transform(ct)
		if err != nil {
			return nil, fmt.Errorf("hyoga: reprojecting vectors: %v", err)
		}
	}
	return out, nil
}

// Clip returns the geometries whose bounds intersect the given
// bounds.
func (v *Vectors) Clip(bounds *geom.Bounds) []geom.Geom {
	index := rtree.NewTree(25, 50)
	for _, g := range v.Geoms {
		index.Insert(g)
	}
	var out []geom.Geom
	for _, g := range index.SearchIntersect(bounds) {
		out = append(out, g.(geom.Geom))
	}
	return out
}

type neRequest struct {
	Scale, Category, Theme string
}

var (
	neInit  sync.Once
	neCache *requestcache.Cache
)

// NaturalEarth returns geometries from one or several Natural Earth
// themes at the given scale ("10m", "50m" or "110m"; the empty string
// selects "10m") and category ("cultural" or "physical"; the empty
// string selects "physical"). Data are downloaded on first use and
// kept in an in-memory cache, so the returned geometries may be
// shared among callers; make a copy before modifying them.
func NaturalEarth(ctx context.Context, scale, category string, themes ...string) (*Vectors, error) {
	neInit.Do(func() {
		neCache = requestcache.NewCache(
			func(ctx context.Context, request interface{}) (interface{}, error) {
				r := request.(neRequest)
				d := NaturalEarthDownloader{
					Scale:    r.Scale,
					Category: r.Category,
					Theme:    r.Theme,
				}
				filename, err := d.Fetch(ctx)
				if err != nil {
					return nil, err
				}
				return readShapefile(filename)
			},
			runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(20))
	})
	if scale == "" {
		scale = "10m"
	}
	if category == "" {
		category = "physical"
	}
	out := new(Vectors)
	for _, theme := range themes {
		r := neRequest{scale, category, theme}
		req := neCache.NewRequest(ctx, r, hash.Hash(r))
		result, err := req.Result()
		if err != nil {
			return nil, err
		}
		v := result.(*Vectors)
		out.Geoms = append(out.Geoms, v.Geoms...)
		out.SR = v.SR
	}
	return out, nil
}

// readShapefile reads all geometries from a shapefile. A missing or
// unreadable projection file falls back to undistorted geographic
// coordinates.
func readShapefile(filename string) (*Vectors, error) {
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("hyoga: opening %s: %v", filename, err)
	}
	defer d.Close()
	sr, err := d.SR()
	if err != nil {
		sr, err = proj.Parse(lonlat)
		if err != nil {
			return nil, fmt.Errorf("hyoga: opening %s: %v", filename, err)
		}
	}
	v := &Vectors{SR: sr}
	for {
		g, _, more := d.DecodeRowFields()
		if !more {
			break
		}
		v.Geoms = append(v.Geoms, g)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("hyoga: decoding %s: %v", filename, err)
	}
	return v, nil
}
