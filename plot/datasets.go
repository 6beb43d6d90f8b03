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

package plot

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
)

// An ErosionLaw relates the potential erosion rate in metres per year
// to the basal sliding speed in metres per year through a power law.
type ErosionLaw struct {
	Constant, Exponent float64
}

// ErosionLaws catalogs published glacial erosion power laws by the
// study they were calibrated in.
var ErosionLaws = map[string]ErosionLaw{
	"coo20": {1.665e-4, 0.6459}, // Cook et al., 2020
	"her15": {2.7e-7, 2.02},     // Herman et al., 2015
	"hum94": {1e-4, 1},          // Humphrey and Raymond, 1994
	"kop15": {5.2e-8, 2.34},     // Koppes et al., 2015
}

// BedrockAltitude paints the bedrock topography through the given
// gradient, shifting values by the given sea level so that the shore
// colors follow the shore. Gradients without a fixed window, such as
// Greys, are stretched between the first and ninety ninth percentiles
// of the data.
func (m *Map) BedrockAltitude(g Gradient, sealevel float64) error {
	v, err := m.ds.GetVar("bedrock_altitude")
	if err != nil {
		return err
	}
	data := v.Data
	if sealevel != 0 {
		data = data.Copy()
		for i, z := range data.Elements {
			data.Elements[i] = z - sealevel
		}
	}
	lo, hi := g.Min(), g.Max()
	if lo == hi {
		if lo, hi, err = stretch(data); err != nil {
			return err
		}
	}
	return m.DrawGridded(data, g, lo, hi)
}

// BedrockShoreline traces the shoreline where the bedrock crosses the
// given sea level. A line style without a color selects a thin dark
// grey line.
func (m *Map) BedrockShoreline(sealevel float64, ls vgdraw.LineStyle) error {
	v, err := m.ds.GetVar("bedrock_altitude")
	if err != nil {
		return err
	}
	if ls.Color == nil {
		ls = vgdraw.LineStyle{Color: color.Gray{Y: 64}, Width: vg.Points(0.25)}
	}
	return m.DrawContours(v.Data, []float64{sealevel}, ls)
}

// BedrockHillshade overlays multidirectional shaded relief computed
// from the bedrock topography through the Glossy gradient. Nil
// altitudes and azimuths select the default light sources, and a zero
// exag selects no vertical exaggeration.
func (m *Map) BedrockHillshade(exag float64, altitudes, azimuths []float64) error {
	return m.hillshade("bedrock_altitude", exag, altitudes, azimuths)
}

// SurfaceHillshade overlays shaded relief computed from the glacier
// surface topography.
func (m *Map) SurfaceHillshade(exag float64, altitudes, azimuths []float64) error {
	return m.hillshade("surface_altitude", exag, altitudes, azimuths)
}

func (m *Map) hillshade(standardName string, exag float64, altitudes, azimuths []float64) error {
	v, err := m.ds.GetVar(standardName)
	if err != nil {
		return err
	}
	if exag == 0 {
		exag = 1
	}
	shades, err := Multishade(v.Data, m.y, m.x, altitudes, azimuths, exag)
	if err != nil {
		return err
	}
	return m.DrawGridded(shades, Glossy, -1, 1)
}

// BedrockErosion paints the potential erosion rate in metres per year
// obtained by applying the given power law to the basal sliding speed
// of ice covered cells. The zero value selects the kop15 law. The
// returned color map can be rendered with WriteLegend, and is nil
// when no cell is ice covered.
func (m *Map) BedrockErosion(law ErosionLaw) (*carto.ColorMap, error) {
	if law == (ErosionLaw{}) {
		law = ErosionLaws["kop15"]
	}
	data, err := m.iceMasked("magnitude_of_land_ice_basal_velocity")
	if err != nil {
		return nil, err
	}
	var finite []float64
	for i, v := range data.Elements {
		r := law.Constant * math.Pow(v, law.Exponent)
		data.Elements[i] = r
		if !math.IsNaN(r) {
			finite = append(finite, r)
		}
	}
	if len(finite) == 0 {
		return nil, nil
	}
	cmap := carto.NewColorMap(carto.LinCutoff)
	cmap.AddArray(finite)
	cmap.Set()
	err = m.drawRaster(data, func(v float64) color.NRGBA {
		c := cmap.GetColor(v)
		c.A = 191
		return c
	})
	return cmap, err
}

// BedrockIsostasy paints the bedrock depression or rebound relative
// to the reference topography on a symmetric diverging scale, and
// marks the point of maximum depression with its depth in metres. The
// returned color map is nil when the change field holds no data.
func (m *Map) BedrockIsostasy() (*carto.ColorMap, error) {
	v, err := m.ds.GetVar("bedrock_altitude_change_due_to_isostatic_adjustment")
	if err != nil {
		return nil, err
	}
	data := v.Data
	var finite []float64
	min := math.Inf(1)
	imin := -1
	for i, z := range data.Elements {
		if math.IsNaN(z) {
			continue
		}
		finite = append(finite, z)
		if z < min {
			min, imin = z, i
		}
	}
	if imin < 0 {
		return nil, nil
	}
	cmap := carto.NewColorMap(carto.Linear)
	cmap.AddArray(finite)
	cmap.Set()
	if err := m.drawRaster(data, func(v float64) color.NRGBA {
		c := cmap.GetColor(v)
		c.A = 191
		return c
	}); err != nil {
		return nil, err
	}

	// mark the deepest point, in white over a deep depression
	i, j := imin/data.Shape[1], imin%data.Shape[1]
	pt := geom.Point{X: m.x[j], Y: m.y[i]}
	var col color.Color = color.Black
	if -min > 50 {
		col = color.White
	}
	glyph := vgdraw.GlyphStyle{Color: col, Radius: vg.Points(2), Shape: vgdraw.CircleGlyph{}}
	if err := m.carto.DrawVector(pt, color.NRGBA{}, vgdraw.LineStyle{}, glyph); err != nil {
		return nil, err
	}
	font, err := vg.MakeFont("Helvetica", vg.Points(7))
	if err != nil {
		return nil, err
	}
	sty := vgdraw.TextStyle{Color: col, Font: font}
	p := m.carto.Coordinates(pt)
	m.carto.FillText(sty, vg.Point{X: p.X + vg.Points(3), Y: p.Y + vg.Points(3)}, fmt.Sprintf("%.0f m", -min))
	return cmap, nil
}

// IceMargin outlines the glacier margin where the ice fraction
// reaches one half. A face color with nonzero opacity fills the
// glacierized area, and an edge color with nonzero opacity draws the
// margin line above it.
func (m *Map) IceMargin(edge, face color.NRGBA) error {
	mask, err := m.ds.GetVar("land_ice_area_fraction")
	if err != nil {
		return err
	}
	if face.A > 0 {
		err := m.drawRaster(mask.Data, func(v float64) color.NRGBA {
			if v >= 0.5 {
				return face
			}
			return color.NRGBA{}
		})
		if err != nil {
			return err
		}
	}
	if edge.A > 0 {
		ls := vgdraw.LineStyle{Color: edge, Width: vg.Points(0.25)}
		return m.DrawContours(mask.Data, []float64{0.5}, ls)
	}
	return nil
}

// SurfaceAltitudeContours traces glacier surface elevation contours
// at the given minor interval in metres, with heavier lines at the
// major interval. Zero intervals select 200 and 1000 m.
func (m *Map) SurfaceAltitudeContours(major, minor float64) error {
	if major <= 0 {
		major = 1000
	}
	if minor <= 0 {
		minor = 200
	}
	sur, err := m.iceMasked("surface_altitude")
	if err != nil {
		return err
	}
	var majors, minors []float64
	for lev := 0.0; lev <= 5000; lev += minor {
		if math.Mod(lev, major) == 0 {
			majors = append(majors, lev)
		} else {
			minors = append(minors, lev)
		}
	}
	grey := color.Gray{Y: 64}
	if len(minors) > 0 {
		if err := m.DrawContours(sur, minors, vgdraw.LineStyle{Color: grey, Width: vg.Points(0.1)}); err != nil {
			return err
		}
	}
	return m.DrawContours(sur, majors, vgdraw.LineStyle{Color: grey, Width: vg.Points(0.25)})
}

// SurfaceVelocity paints the base ten logarithm of the surface speed
// of ice covered cells in metres per year. The returned color map can
// be rendered with WriteLegend, and is nil when no cell is ice
// covered.
func (m *Map) SurfaceVelocity() (*carto.ColorMap, error) {
	data, err := m.iceMasked("magnitude_of_land_ice_surface_velocity")
	if err != nil {
		return nil, err
	}
	var finite []float64
	for i, v := range data.Elements {
		if v > 0 {
			v = math.Log10(v)
		} else {
			v = math.NaN()
		}
		data.Elements[i] = v
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil, nil
	}
	cmap := carto.NewColorMap(carto.LinCutoff)
	cmap.AddArray(finite)
	cmap.Set()
	err = m.drawRaster(data, func(v float64) color.NRGBA {
		c := cmap.GetColor(v)
		c.A = 191
		return c
	})
	return cmap, err
}

// iceMasked returns a copy of the named variable with ice free cells
// masked out.
func (m *Map) iceMasked(standardName string) (*sparse.DenseArray, error) {
	v, err := m.ds.GetVar(standardName)
	if err != nil {
		return nil, err
	}
	mask, err := m.ds.GetVar("land_ice_area_fraction")
	if err != nil {
		return nil, err
	}
	if len(mask.Data.Elements) != len(v.Data.Elements) {
		return nil, fmt.Errorf("hyoga: ice mask shape %v does not match %s", mask.Data.Shape, standardName)
	}
	data := v.Data.Copy()
	for i, f := range mask.Data.Elements {
		if !(f >= 0.5) {
			data.Elements[i] = math.NaN()
		}
	}
	return data, nil
}

// stretch returns robust lower and upper bounds of the finite values,
// leaving out one percent of outliers on each side.
func stretch(data *sparse.DenseArray) (lo, hi float64, err error) {
	vals := make([]float64, 0, len(data.Elements))
	for _, v := range data.Elements {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, 0, fmt.Errorf("hyoga: no finite values to plot")
	}
	sort.Float64s(vals)
	lo = stat.Quantile(0.01, stat.Empirical, vals, nil)
	hi = stat.Quantile(0.99, stat.Empirical, vals, nil)
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi, nil
}
