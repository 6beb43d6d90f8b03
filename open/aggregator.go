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
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/ctessum/sparse"
	"github.com/juseg/hyoga"
	"gonum.org/v1/gonum/floats"
)

// A tile is a thirty-degree square of the global grid, identified by
// the latitude and longitude of its southwest corner.
type tile struct {
	lat, lon int
}

// allTiles returns the 72 tiles covering the globe.
func allTiles() []tile {
	var tiles []tile
	for lat := -90; lat < 90; lat += 30 {
		for lon := -180; lon < 180; lon += 30 {
			tiles = append(tiles, tile{lat, lon})
		}
	}
	return tiles
}

// label returns the tile name used in aggregated file names, such as
// "n30w120" for the tile north of 30N and west of 90W.
func (t tile) label() string {
	ns, lat := "n", t.lat
	if lat < 0 {
		ns, lat = "s", -lat
	}
	ew, lon := "e", t.lon
	if lon < 0 {
		ew, lon = "w", -lon
	}
	return fmt.Sprintf("%s%02d%s%03d", ns, lat, ew, lon)
}

// cw5e5Units are the units of the CHELSA-W5E5 daily variables.
var cw5e5Units = map[string]string{
	"pr":     "kg m-2 s-1",
	"rsds":   "W m-2",
	"tas":    "K",
	"tasmax": "K",
	"tasmin": "K",
}

// A ClimateAggregator computes global monthly climatologies from
// CHELSA-W5E5 daily means, splitting the world into thirty-degree
// tiles cached as separate files.
type ClimateAggregator struct {
	// Variable is the short variable name: "pr" for precipitation in
	// kg m-2 s-1, "rsds" for surface downwelling shortwave radiation
	// in W m-2, or "tas", "tasmax" and "tasmin" for mean, maximum and
	// minimum daily temperature in K.
	Variable string

	// Start and End are the inclusive aggregation years, within the
	// 1979 to 2016 range covered by the data.
	Start, End int

	// Recipe is the aggregation statistic for each calendar month,
	// "avg" or "std". The empty string selects "avg".
	Recipe string
}

// Paths returns the cache paths of the 72 aggregated tile files, in
// tile order.
func (a *ClimateAggregator) Paths() ([]string, error) {
	pattern, err := a.pattern()
	if err != nil {
		return nil, err
	}
	tiles := allTiles()
	paths := make([]string, len(tiles))
	for i, t := range tiles {
		paths[i] = fmt.Sprintf(pattern, t.label())
	}
	return paths, nil
}

func (a *ClimateAggregator) pattern() (string, error) {
	return cachePath("cw5e5", "clim", fmt.Sprintf(
		"cw5e5.%s.mon.%02d%02d.avg.%%s.nc", a.Variable, a.Start%100, a.End%100))
}

// Aggregate computes any missing tile files and returns the paths of
// all 72 tiles. Daily input files are downloaded first, which for the
// full 1979 to 2016 range amounts to several terabytes of data.
func (a *ClimateAggregator) Aggregate(ctx context.Context) ([]string, error) {
	paths, err := a.Paths()
	if err != nil {
		return nil, err
	}
	if allFilesExist(paths) {
		return paths, nil
	}
	inputs, err := a.inputs(ctx)
	if err != nil {
		return nil, err
	}
	for i, t := range allTiles() {
		path := paths[i]
		if _, err := os.Stat(path); err == nil {
			continue
		}
		hyoga.Log.Infof("aggregating %s", path)
		d, err := a.aggregateTile(inputs, t)
		if err != nil {
			return nil, err
		}
		if err := writeTile(d, path); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// inputs fetches the daily input files, grouped by month so that
// aggregateTile can slice out all years of a given calendar month.
func (a *ClimateAggregator) inputs(ctx context.Context) ([]string, error) {
	var inputs []string
	for month := 1; month <= 12; month++ {
		for year := a.Start; year <= a.End; year++ {
			d := CW5E5DailyDownloader{Variable: a.Variable, Year: year, Month: month}
			path, err := d.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, path)
		}
	}
	return inputs, nil
}

// aggregateTile computes the monthly climatology of one tile from the
// daily input files.
func (a *ClimateAggregator) aggregateTile(inputs []string, t tile) (*hyoga.Dataset, error) {
	recipe := a.Recipe
	if recipe == "" {
		recipe = "avg"
	}
	if recipe != "avg" && recipe != "std" {
		return nil, fmt.Errorf("hyoga: invalid recipe %s", recipe)
	}
	years := a.End - a.Start + 1
	if len(inputs) != 12*years {
		return nil, fmt.Errorf("hyoga: got %d input files for %d years", len(inputs), years)
	}
	var lats, lons []float64
	var sum, sumsq *sparse.DenseArray
	var days [12]float64
	for month := 1; month <= 12; month++ {
		for _, path := range inputs[(month-1)*years : month*years] {
			err := readTileBand(path, a.Variable, t,
				func(fileLats, fileLons []float64, day *sparse.DenseArray) error {
					if sum == nil {
						lats = fileLats
						lons = fileLons
						sum = sparse.ZerosDense(12, len(lats), len(lons))
						sumsq = sparse.ZerosDense(12, len(lats), len(lons))
					}
					if len(fileLats) != len(lats) || len(fileLons) != len(lons) {
						return fmt.Errorf("tile size changed from %dx%d to %dx%d",
							len(lats), len(lons), len(fileLats), len(fileLons))
					}
					n := len(lats) * len(lons)
					floats.Add(sum.Elements[(month-1)*n:month*n], day.Elements)
					sq := append([]float64{}, day.Elements...)
					floats.Mul(sq, day.Elements)
					floats.Add(sumsq.Elements[(month-1)*n:month*n], sq)
					days[month-1]++
					return nil
				})
			if err != nil {
				return nil, err
			}
		}
	}
	for m := 0; m < 12; m++ {
		if days[m] == 0 {
			return nil, fmt.Errorf("hyoga: no data for month %d", m+1)
		}
	}
	n := len(lats) * len(lons)
	out := sparse.ZerosDense(12, len(lats), len(lons))
	for m := 0; m < 12; m++ {
		for k := 0; k < n; k++ {
			mean := sum.Elements[m*n+k] / days[m]
			switch recipe {
			case "avg":
				out.Elements[m*n+k] = mean
			case "std":
				v := sumsq.Elements[m*n+k]/days[m] - mean*mean
				if v < 0 {
					v = 0
				}
				out.Elements[m*n+k] = math.Sqrt(v)
			}
		}
	}
	d := hyoga.NewDataset()
	months := make([]float64, 12)
	for i := range months {
		months[i] = float64(i + 1)
	}
	d.SetCoord("month", months, nil)
	d.SetCoord("lat", lats, map[string]string{
		"standard_name": "latitude",
		"units":         "degrees_north",
	})
	d.SetCoord("lon", lons, map[string]string{
		"standard_name": "longitude",
		"units":         "degrees_east",
	})
	d.AddVariable(hyoga.NewVariable(a.Variable, []string{"month", "lat", "lon"},
		map[string]string{"units": cw5e5Units[a.Variable]}, out))
	return d, nil
}

// readTileBand reads the tile part of each daily field in a file and
// passes it to the add callback along with the tile coordinates.
func readTileBand(path, variable string, t tile, add func(lats, lons []float64, day *sparse.DenseArray) error) error {
	nc, err := netcdf.Open(path)
	if err != nil {
		return fmt.Errorf("hyoga: opening %s: %v", path, err)
	}
	defer nc.Close()
	lats, err := coordFloats(nc, "lat", "latitude")
	if err != nil {
		return fmt.Errorf("hyoga: reading %s: %v", path, err)
	}
	lons, err := coordFloats(nc, "lon", "longitude")
	if err != nil {
		return fmt.Errorf("hyoga: reading %s: %v", path, err)
	}
	i0, i1 := coordRange(lats, float64(t.lat), float64(t.lat+30))
	j0, j1 := coordRange(lons, float64(t.lon), float64(t.lon+30))
	if i1 < i0 || j1 < j0 {
		return fmt.Errorf("hyoga: reading %s: no cells within tile %s", path, t.label())
	}
	vg, err := nc.GetVarGetter(variable)
	if err != nil {
		return fmt.Errorf("hyoga: reading %s of %s: %v", variable, path, err)
	}
	nlat, nlon := i1-i0+1, j1-j0+1
	tileLats := append([]float64{}, lats[i0:i1+1]...)
	tileLons := append([]float64{}, lons[j0:j1+1]...)
	for i := int64(0); i < vg.Len(); i++ {
		slice, err := vg.GetSlice(i, i+1)
		if err != nil {
			return fmt.Errorf("hyoga: reading %s of %s: %v", variable, path, err)
		}
		day, err := extractCells(slice, i0, j0, nlat, nlon)
		if err != nil {
			return fmt.Errorf("hyoga: reading %s of %s: %v", variable, path, err)
		}
		if err := add(tileLats, tileLons, day); err != nil {
			return fmt.Errorf("hyoga: reading %s: %v", path, err)
		}
	}
	return nil
}

// extractCells copies the tile part of one daily field into a dense
// array.
func extractCells(slice interface{}, i0, j0, nlat, nlon int) (*sparse.DenseArray, error) {
	day := sparse.ZerosDense(nlat, nlon)
	switch s := slice.(type) {
	case [][][]int16:
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				day.Set(float64(s[0][i0+i][j0+j]), i, j)
			}
		}
	case [][][]float32:
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				day.Set(float64(s[0][i0+i][j0+j]), i, j)
			}
		}
	case [][][]float64:
		for i := 0; i < nlat; i++ {
			for j := 0; j < nlon; j++ {
				day.Set(s[0][i0+i][j0+j], i, j)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported data type %T", slice)
	}
	return day, nil
}

// writeTile writes an aggregated tile, appearing at path only once
// complete.
func writeTile(d *hyoga.Dataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("hyoga: writing %s: %v", path, err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("hyoga: writing %s: %v", path, err)
	}
	if err := d.WriteNetCDF(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("hyoga: writing %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("hyoga: writing %s: %v", path, err)
	}
	return os.Rename(tmp, path)
}

func allFilesExist(paths []string) bool {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}
