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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

// lonlat is the spatial reference assumed for profile shapefiles
// without projection information.
const lonlat = "+proj=longlat +datum=WGS84 +no_defs"

// BuildProfileCoords interpolates coordinates along a profile through
// the given points. It returns the cumulative distance along the
// profile in projection units together with the x and y coordinates
// of the sample points. A positive interval resamples the profile at
// regular distances.
func BuildProfileCoords(points []geom.Point, interval float64) (dist, x, y []float64) {
	n := len(points)
	if n == 0 {
		return nil, nil, nil
	}

	// compute distance along profile
	dist = make([]float64, n)
	x = make([]float64, n)
	y = make([]float64, n)
	for i, p := range points {
		x[i], y[i] = p.X, p.Y
		if i > 0 {
			dist[i] = dist[i-1] + math.Hypot(p.X-points[i-1].X, p.Y-points[i-1].Y)
		}
	}
	if interval <= 0 {
		return dist, x, y
	}

	// resample at regular distance intervals
	var rd, rx, ry []float64
	for s := 0.0; s < dist[n-1]; s += interval {
		i, f, ok := locate(dist, s)
		if !ok {
			continue
		}
		rd = append(rd, s)
		rx = append(rx, x[i]*(1-f)+x[i+1]*f)
		ry = append(ry, y[i]*(1-f)+y[i+1]*f)
	}
	return rd, rx, ry
}

// ReadShpCoords reads and interpolates coordinates along the first
// line in a shapefile. When proj4 is not empty, the line is
// reprojected onto that spatial reference, using the shapefile
// projection information or geographic coordinates if there is none.
// A positive interval resamples the profile at regular distances in
// target projection units.
func ReadShpCoords(filename string, proj4 string, interval float64) (dist, x, y []float64, err error) {
	f, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("hyoga: reading profile shapefile %s: %v", filename, err)
	}
	defer f.Close()
	g, _, more := f.DecodeRowFields()
	if !more {
		return nil, nil, nil, fmt.Errorf("hyoga: profile shapefile %s is empty", filename)
	}

	if proj4 != "" {
		sr, err := f.SR()
		if err != nil {
			// no projection information, assume geographic coordinates
			sr, err = proj.Parse(lonlat)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		dst, err := proj.Parse(proj4)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hyoga: parsing projection %q: %v", proj4, err)
		}
		trans, err := sr.NewTransform(dst)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hyoga: reprojecting profile shapefile %s: %v", filename, err)
		}
		g, err = g.Transform(trans)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("hyoga: reprojecting profile shapefile %s: %v", filename, err)
		}
	}

	points, err := lineStringPoints(g)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("hyoga: reading profile shapefile %s: %v", filename, err)
	}
	dist, x, y = BuildProfileCoords(points, interval)
	return dist, x, y, nil
}

// lineStringPoints extracts the vertices of a polyline geometry.
func lineStringPoints(g geom.Geom) ([]geom.Point, error) {
	switch g := g.(type) {
	case geom.LineString:
		return g, nil
	case geom.MultiLineString:
		if len(g) == 0 {
			return nil, fmt.Errorf("empty multiline geometry")
		}
		return g[0], nil
	default:
		return nil, fmt.Errorf("unexpected geometry type %T", g)
	}
}

// Profile samples the variables spanning horizontal dimensions along
// the given profile coordinates, returning a dataset where distance
// along the profile, named d, replaces the horizontal dimensions.
// Samples outside the dataset coordinate range yield NaN.
func (d *Dataset) Profile(dist, x, y []float64) (*Dataset, error) {
	if len(dist) != len(x) || len(x) != len(y) {
		return nil, fmt.Errorf("hyoga: profile coordinates have mismatched lengths %d, %d and %d",
			len(dist), len(x), len(y))
	}
	xs, okx := d.Coords["x"]
	ys, oky := d.Coords["y"]
	if !okx || !oky {
		return nil, fmt.Errorf("hyoga: dataset has no x and y coordinates")
	}

	out := NewDataset()
	out.Attrs = copyAttrs(d.Attrs)
	for dim, c := range d.Coords {
		if dim == "x" || dim == "y" {
			continue
		}
		out.SetCoord(dim, append([]float64{}, c...), copyAttrs(d.CoordAttrs[dim]))
	}
	out.SetCoord("d", append([]float64{}, dist...), map[string]string{
		"long_name": "distance along profile",
		"units":     "m",
	})

	for _, name := range d.names {
		v := d.vars[name]
		w := v.shallowCopy()
		if hasXY(v) {
			w.Dims = append(append([]string{}, v.Dims[:len(v.Dims)-2]...), "d")
			w.Data = sampleAlong(v.Data, xs, ys, x, y)
		}
		out.AddVariable(w)
	}
	return out, nil
}

// sampleAlong interpolates an array bilinearly at each of the given
// point coordinates, which replace the two trailing axes.
func sampleAlong(data *sparse.DenseArray, xs, ys, x, y []float64) *sparse.DenseArray {
	shape := data.Shape
	n := len(shape)
	ny, nx := shape[n-2], shape[n-1]
	lead := 1
	for _, s := range shape[:n-2] {
		lead *= s
	}
	np := len(x)
	out := sparse.ZerosDense(append(append([]int{}, shape[:n-2]...), np)...)

	for l := 0; l < lead; l++ {
		src := data.Elements[l*ny*nx : (l+1)*ny*nx]
		dst := out.Elements[l*np : (l+1)*np]
		for k := 0; k < np; k++ {
			jy, fy, oky := locate(ys, y[k])
			ix, fx, okx := locate(xs, x[k])
			if !oky || !okx {
				dst[k] = math.NaN()
				continue
			}
			v00 := src[jy*nx+ix]
			v01 := src[jy*nx+ix+1]
			v10 := src[(jy+1)*nx+ix]
			v11 := src[(jy+1)*nx+ix+1]
			dst[k] = v00*(1-fy)*(1-fx) + v01*(1-fy)*fx + v10*fy*(1-fx) + v11*fy*fx
		}
	}
	return out
}
