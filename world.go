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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
)

// A Domain holds the origin and bounds of a paleoglacier modelling
// domain centred on a glaciated mountain region.
type Domain struct {
	// Lat and Lon give the geographic coordinates of the projection
	// centre in degrees.
	Lat, Lon float64

	// W, S, E and N bound the domain in projection metres relative
	// to the centre.
	W, S, E, N float64
}

// World contains origins and bounds for the default set of modelling
// domains.
var World = map[string]Domain{

	// North America
	"Ahklun":      {Lat: 60, Lon: -160, W: -100e3, S: -150e3, E: 150e3, N: 100e3},
	"Nevada":      {Lat: 38, Lon: -119, W: -170e3, S: -270e3, E: 120e3, N: 220e3},
	"Yellowstone": {Lat: 44, Lon: -110, W: -150e3, S: -200e3, E: 150e3, N: 200e3},
	"Cocuy":       {Lat: 6, Lon: -73, W: -50e3, S: -100e3, E: 150e3, N: 200e3},
	"Patagonia":   {Lat: -47, Lon: -72, W: -400e3, S: -1000e3, E: 400e3, N: 1000e3},

	// Europe & Africa
	"Faroe":      {Lat: 62, Lon: -7, W: -120e3, S: -170e3, E: 170e3, N: 120e3},
	"Pyrenees":   {Lat: 43, Lon: 1, W: -250e3, S: -100e3, E: 150e3, N: 50e3},
	"Cantal":     {Lat: 45, Lon: 3, W: -70e3, S: -100e3, E: 120e3, N: 120e3},
	"Alps":       {Lat: 46, Lon: 10, W: -420e3, S: -270e3, E: 470e3, N: 320e3},
	"Prokletije": {Lat: 43, Lon: 20, W: -50e3, S: -90e3, E: 30e3, N: -10e3},
	"Bale":       {Lat: 7, Lon: 40, W: -70e3, S: -50e3, E: 20e3, N: 50e3},

	// Asia & Oceania
	"Himalaya":     {Lat: 34, Lon: 87, W: -1820e3, S: -950e3, E: 1770e3, N: 850e3},
	"Altai":        {Lat: 50, Lon: 89, W: -400e3, S: -400e3, E: 400e3, N: 400e3},
	"Putorana":     {Lat: 69, Lon: 95, W: -270e3, S: -200e3, E: 120e3, N: 200e3},
	"Transbaikal":  {Lat: 56, Lon: 114, W: -500e3, S: -370e3, E: 500e3, N: 420e3},
	"Akaishi":      {Lat: 36, Lon: 138, W: 0e3, S: -80e3, E: 30e3, N: -20e3},
	"Hidaka":       {Lat: 43, Lon: 143, W: -30e3, S: -50e3, E: -10e3, N: -20e3},
	"SouthernAlps": {Lat: -44, Lon: 170, W: -400e3, S: -350e3, E: 400e3, N: 450e3},
}

// DomainNames returns the names of the default modelling domains in
// alphabetical order.
func DomainNames() []string {
	names := make([]string, 0, len(World))
	for name := range World {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadDomains reads additional modelling domains from a TOML file, where
// each table defines one domain:
//
//	[Pyrenees]
//	lat = 42.5
//	lon = 1.0
//	w = -200e3
//	s = -100e3
//	e = 200e3
//	n = 100e3
//
// The result can be used alongside or merged into World.
func ReadDomains(filename string) (map[string]Domain, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("hyoga: reading domains %s: %v", filename, err)
	}
	defer f.Close()
	domains := make(map[string]Domain)
	if _, err := toml.DecodeReader(f, &domains); err != nil {
		return nil, fmt.Errorf("hyoga: reading domains %s: %v", filename, err)
	}
	for name, d := range domains {
		if d.E <= d.W || d.N <= d.S {
			return nil, fmt.Errorf("hyoga: reading domains %s: domain %s has an empty extent", filename, name)
		}
	}
	return domains, nil
}

// Proj4 returns a proj4 string for the domain projection, a
// transverse Mercator centred on the domain origin.
func (d Domain) Proj4() string {
	return fmt.Sprintf(
		"+proj=tmerc +lat_0=%g +lon_0=%g +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
		d.Lat, d.Lon)
}

// Outline returns the domain bounds as a closed rectangle in
// projection coordinates.
func (d Domain) Outline() geom.Polygon {
	return geom.Polygon{{
		{X: d.W, Y: d.S}, {X: d.E, Y: d.S}, {X: d.E, Y: d.N},
		{X: d.W, Y: d.N}, {X: d.W, Y: d.S},
	}}
}

// GeographicOutline returns the domain outline in geographic
// coordinates, densifying the edges so that the projected rectangle
// keeps its curvature.
func (d Domain) GeographicOutline() (geom.Polygon, error) {
	src, err := proj.Parse(d.Proj4())
	if err != nil {
		return nil, err
	}
	dst, err := proj.Parse(lonlat)
	if err != nil {
		return nil, err
	}
	tr, err := src.NewTransform(dst)
	if err != nil {
		return nil, err
	}

	corners := []geom.Point{
		{X: d.W, Y: d.S}, {X: d.E, Y: d.S}, {X: d.E, Y: d.N}, {X: d.W, Y: d.N}}
	const steps = 16
	var ring []geom.Point
	for i, p := range corners {
		q := corners[(i+1)%len(corners)]
		for s := 0; s < steps; s++ {
			f := float64(s) / steps
			x, y, err := tr(p.X+(q.X-p.X)*f, p.Y+(q.Y-p.Y)*f)
			if err != nil {
				return nil, err
			}
			ring = append(ring, geom.Point{X: x, Y: y})
		}
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}, nil
}

// wgs84WKT describes geographic WGS 84 coordinates in well-known text
// format for shapefile .prj sidecars.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// WriteDomainsShapefile stores the outlines of the default modelling
// domains in a shapefile in geographic coordinates, with domain names
// and origins as attributes.
func WriteDomainsShapefile(filename string) error {
	fields := []goshp.Field{
		goshp.StringField("name", 40),
		goshp.FloatField("lat", 14, 8),
		goshp.FloatField("lon", 14, 8),
	}

	// remove extension and replace it with .shp
	fileBase := strings.TrimSuffix(filename, filepath.Ext(filename))
	shape, err := shp.NewEncoderFromFields(fileBase+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("hyoga: creating domains shapefile: %v", err)
	}
	for _, name := range DomainNames() {
		d := World[name]
		outline, err := d.GeographicOutline()
		if err != nil {
			shape.Close()
			return fmt.Errorf("hyoga: projecting domain %s: %v", name, err)
		}
		if err := shape.EncodeFields(outline, name, d.Lat, d.Lon); err != nil {
			shape.Close()
			return fmt.Errorf("hyoga: writing domains shapefile: %v", err)
		}
	}
	shape.Close()

	// create .prj file
	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("hyoga: creating domains prj file: %v", err)
	}
	fmt.Fprint(f, wgs84WKT)
	f.Close()
	return nil
}
