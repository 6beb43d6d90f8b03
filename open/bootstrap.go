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
	"math"
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"github.com/juseg/hyoga"
)

// A latlonGrid holds global elevation data on a geographic grid, with
// latitudes ascending and data stored in (lat, lon) order.
type latlonGrid struct {
	lons, lats []float64
	data       *sparse.DenseArray
}

// Bootstrap builds a bootstrapping dataset containing bedrock
// topography in the projection described by the proj4 string crs, on
// a grid covering bounds (west, south, east, north in projection
// units) at the given resolution in metres. The elevation source is
// "gebco" for GEBCO sub-ice topography or "chelsa" for the CHELSA
// digital elevation model; the empty string selects "gebco", and a
// non-positive resolution defaults to a kilometre.
func Bootstrap(ctx context.Context, crs string, bounds [4]float64, source string, resolution float64) (*hyoga.Dataset, error) {
	if source == "" {
		source = "gebco"
	}
	if resolution <= 0 {
		resolution = 1e3
	}
	from, err := proj.Parse(crs)
	if err != nil {
		return nil, fmt.Errorf("hyoga: parsing projection: %v", err)
	}
	to, err := proj.Parse(lonlat)
	if err != nil {
		return nil, fmt.Errorf("hyoga: parsing projection: %v", err)
	}
	tr, err := from.NewTransform(to)
	if err != nil {
		return nil, fmt.Errorf("hyoga: bootstrapping dataset: %v", err)
	}
	box, err := geographicBounds(tr, bounds)
	if err != nil {
		return nil, fmt.Errorf("hyoga: bootstrapping dataset: %v", err)
	}
	filename, err := openElevation(ctx, source)
	if err != nil {
		return nil, err
	}
	grid, err := readElevation(filename, box)
	if err != nil {
		return nil, err
	}
	data, x, y, err := projectGrid(grid, tr, bounds, resolution)
	if err != nil {
		return nil, err
	}
	d := hyoga.NewDataset()
	d.Attrs["proj4"] = crs
	d.SetCoord("x", x, map[string]string{
		"standard_name": "projection_x_coordinate",
		"units":         "m",
	})
	d.SetCoord("y", y, map[string]string{
		"standard_name": "projection_y_coordinate",
		"units":         "m",
	})
	d.AddVariable(hyoga.NewVariable("bedrock", []string{"y", "x"}, map[string]string{
		"standard_name": "bedrock_altitude",
		"units":         "m",
	}, data))
	return d, nil
}

// openElevation fetches the global elevation data for the given
// source and returns the local path.
func openElevation(ctx context.Context, source string) (string, error) {
	var d Fetcher
	switch source {
	case "gebco":
		d = &ZipDownloader{
			URL: "https://www.bodc.ac.uk/data/open_download/gebco/" +
				"gebco_2022_sub_ice_topo/zip/",
			Path: "gebco/GEBCO_2022_sub_ice_topo.nc",
		}
	case "chelsa":
		d = &FileDownloader{
			URL: "https://os.zhdk.cloud.switch.ch/envicloud/chelsa/" +
				"chelsa_V2/GLOBAL/input/dem_latlong.nc",
			Path: "chelsa/dem_latlong.nc",
		}
	default:
		return "", fmt.Errorf("hyoga: %s is not a valid elevation data source", source)
	}
	return d.Fetch(ctx)
}

// geographicBounds returns the geographic bounding box of the
// projected bounds, walking points along each edge to catch the bulge
// of curved graticules.
func geographicBounds(tr proj.Transformer, bounds [4]float64) (*geom.Bounds, error) {
	west, south, east, north := bounds[0], bounds[1], bounds[2], bounds[3]
	box := geom.NewBounds()
	const steps = 20
	for s := 0; s <= steps; s++ {
		f := float64(s) / steps
		for _, p := range []geom.Point{
			{X: west + (east-west)*f, Y: south},
			{X: west + (east-west)*f, Y: north},
			{X: west, Y: south + (north-south)*f},
			{X: east, Y: south + (north-south)*f},
		} {
			lon, lat, err := tr(p.X, p.Y)
			if err != nil {
				return nil, err
			}
			box.Extend(geom.NewBoundsPoint(geom.Point{X: lon, Y: lat}))
		}
	}
	return box, nil
}

// readElevation reads the part of a global elevation file covering
// the given geographic bounds, widened by two cells on each side to
// support interpolation near the edges.
func readElevation(filename string, box *geom.Bounds) (*latlonGrid, error) {
	nc, err := netcdf.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("hyoga: opening %s: %v", filename, err)
	}
	defer nc.Close()
	lats, err := coordFloats(nc, "lat", "latitude")
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading %s: %v", filename, err)
	}
	lons, err := coordFloats(nc, "lon", "longitude")
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading %s: %v", filename, err)
	}
	name, vg, err := elevationGetter(nc, len(lats))
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading %s: %v", filename, err)
	}
	i0, i1 := coordRange(lats, box.Min.Y, box.Max.Y)
	j0, j1 := coordRange(lons, box.Min.X, box.Max.X)
	i0, i1 = widen(i0, i1, len(lats))
	j0, j1 = widen(j0, j1, len(lons))
	if i1 < i0 || j1 < j0 {
		return nil, fmt.Errorf("hyoga: reading %s: no cells within bounds", filename)
	}
	nlat, nlon := i1-i0+1, j1-j0+1
	grid := &latlonGrid{
		lats: append([]float64{}, lats[i0:i1+1]...),
		lons: append([]float64{}, lons[j0:j1+1]...),
		data: sparse.ZerosDense(nlat, nlon),
	}
	for i := 0; i < nlat; i++ {
		slice, err := vg.GetSlice(int64(i0+i), int64(i0+i+1))
		if err != nil {
			return nil, fmt.Errorf("hyoga: reading %s of %s: %v", name, filename, err)
		}
		row, err := rowFloats(slice)
		if err != nil {
			return nil, fmt.Errorf("hyoga: reading %s of %s: %v", name, filename, err)
		}
		if len(row) < j1+1 {
			return nil, fmt.Errorf("hyoga: reading %s of %s: short row", name, filename)
		}
		for j := 0; j < nlon; j++ {
			grid.data.Set(row[j0+j], i, j)
		}
	}
	// the CHELSA model stores latitudes north to south
	if nlat > 1 && grid.lats[0] > grid.lats[1] {
		grid.flipLat()
	}
	return grid, nil
}

// coordFloats reads a one-dimensional coordinate variable stored
// under any of the candidate names.
func coordFloats(nc api.Group, names ...string) ([]float64, error) {
	for _, name := range names {
		vr, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		switch values := vr.Values.(type) {
		case []float64:
			return values, nil
		case []float32:
			out := make([]float64, len(values))
			for i, v := range values {
				out[i] = float64(v)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("no coordinate named %v", names)
}

// elevationGetter returns the first variable that is not a
// coordinate and is gridded with latitude as its leading dimension.
func elevationGetter(nc api.Group, nlat int) (string, api.VarGetter, error) {
	coords := map[string]bool{
		"lat": true, "latitude": true, "lon": true, "longitude": true,
	}
	for _, name := range nc.ListVariables() {
		if coords[name] {
			continue
		}
		vg, err := nc.GetVarGetter(name)
		if err != nil || vg.Len() != int64(nlat) {
			continue
		}
		return name, vg, nil
	}
	return "", nil, fmt.Errorf("no elevation variable found")
}

// rowFloats converts one latitude row of elevation data to floats.
func rowFloats(slice interface{}) ([]float64, error) {
	switch s := slice.(type) {
	case [][]int16:
		out := make([]float64, len(s[0]))
		for j, v := range s[0] {
			out[j] = float64(v)
		}
		return out, nil
	case [][]int32:
		out := make([]float64, len(s[0]))
		for j, v := range s[0] {
			out[j] = float64(v)
		}
		return out, nil
	case [][]float32:
		out := make([]float64, len(s[0]))
		for j, v := range s[0] {
			out[j] = float64(v)
		}
		return out, nil
	case [][]float64:
		return s[0], nil
	}
	return nil, fmt.Errorf("unsupported elevation type %T", slice)
}

// coordRange returns the inclusive index range of coordinates within
// [min, max], tolerating descending order. An empty range has i1 < i0.
func coordRange(coords []float64, min, max float64) (i0, i1 int) {
	i0, i1 = len(coords), -1
	for i, c := range coords {
		if c < min || c > max {
			continue
		}
		if i < i0 {
			i0 = i
		}
		i1 = i
	}
	return i0, i1
}

// widen expands an index range by two cells on each side, clamped to
// the valid range.
func widen(i0, i1, n int) (int, int) {
	i0 -= 2
	if i0 < 0 {
		i0 = 0
	}
	i1 += 2
	if i1 > n-1 {
		i1 = n - 1
	}
	return i0, i1
}

// flipLat reverses the latitude axis in place.
func (g *latlonGrid) flipLat() {
	nlat, nlon := g.data.Shape[0], g.data.Shape[1]
	for i, j := 0, nlat-1; i < j; i, j = i+1, j-1 {
		g.lats[i], g.lats[j] = g.lats[j], g.lats[i]
		for k := 0; k < nlon; k++ {
			vi, vj := g.data.Get(i, k), g.data.Get(j, k)
			g.data.Set(vj, i, k)
			g.data.Set(vi, j, k)
		}
	}
}

// sample returns the bilinear interpolation of the grid at the given
// geographic location, or NaN outside the grid.
func (g *latlonGrid) sample(lon, lat float64) float64 {
	i := locate(g.lats, lat)
	j := locate(g.lons, lon)
	if i < 0 || j < 0 {
		return math.NaN()
	}
	ty := (lat - g.lats[i]) / (g.lats[i+1] - g.lats[i])
	tx := (lon - g.lons[j]) / (g.lons[j+1] - g.lons[j])
	v00 := g.data.Get(i, j)
	v01 := g.data.Get(i, j+1)
	v10 := g.data.Get(i+1, j)
	v11 := g.data.Get(i+1, j+1)
	return (1-ty)*((1-tx)*v00+tx*v01) + ty*((1-tx)*v10+tx*v11)
}

// locate returns the index of the ascending grid interval containing
// v, or -1 if v falls outside the grid.
func locate(coords []float64, v float64) int {
	if len(coords) < 2 || v < coords[0] || v > coords[len(coords)-1] {
		return -1
	}
	i := sort.SearchFloat64s(coords, v)
	if i > 0 {
		i--
	}
	if i > len(coords)-2 {
		i = len(coords) - 2
	}
	return i
}

// projectGrid interpolates elevation data onto a regular grid in the
// target projection. Cell centers are offset half a cell from the
// west and south bound, and cells outside the source grid are NaN.
func projectGrid(grid *latlonGrid, tr proj.Transformer, bounds [4]float64, res float64) (*sparse.DenseArray, []float64, []float64, error) {
	west, south, east, north := bounds[0], bounds[1], bounds[2], bounds[3]
	cols := int((east - west) / res)
	rows := int((north - south) / res)
	if cols < 1 || rows < 1 {
		return nil, nil, nil, fmt.Errorf(
			"hyoga: bounds %v too small for resolution %g", bounds, res)
	}
	x := make([]float64, cols)
	for j := range x {
		x[j] = west + res*(float64(j)+0.5)
	}
	y := make([]float64, rows)
	for i := range y {
		y[i] = south + res*(float64(i)+0.5)
	}
	data := sparse.ZerosDense(rows, cols)
	for i, yi := range y {
		for j, xj := range x {
			lon, lat, err := tr(xj, yi)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("hyoga: reprojecting dataset: %v", err)
			}
			data.Set(grid.sample(lon, lat), i, j)
		}
	}
	return data, x, y, nil
}
