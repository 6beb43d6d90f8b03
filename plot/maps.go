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

// Package plot renders glacier model output to raster maps. A Map
// composes gridded fields, contour lines, vector overlays and a scale
// bar over the projected extent of a dataset, and writes the result
// as a PNG image.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"os"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"github.com/juseg/hyoga"
	"github.com/juseg/hyoga/open"
	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// A Map accumulates drawing layers over the grid of a dataset. The
// first layers drawn end up below the later ones.
type Map struct {
	ds         *hyoga.Dataset
	x, y       []float64
	w, s, e, n float64

	img    *image.RGBA
	canvas *vgimg.Canvas
	carto  *carto.Canvas
}

// NewMap prepares a drawing canvas covering the projected extent of
// the dataset grid, extended by half a cell beyond the outermost
// coordinates. The image is width pixels wide, proportionally tall,
// and starts out white. A width of zero or less selects 1000 pixels.
func NewMap(d *hyoga.Dataset, width int) (*Map, error) {
	x := d.Coords["x"]
	y := d.Coords["y"]
	if len(x) < 2 || len(y) < 2 {
		return nil, fmt.Errorf("hyoga: dataset has no plottable x and y coordinates")
	}
	if x[1] <= x[0] || y[1] <= y[0] {
		return nil, fmt.Errorf("hyoga: map coordinates must be increasing")
	}
	w := x[0] - (x[1]-x[0])/2
	e := x[len(x)-1] + (x[len(x)-1]-x[len(x)-2])/2
	s := y[0] - (y[1]-y[0])/2
	n := y[len(y)-1] + (y[len(y)-1]-y[len(y)-2])/2
	if width <= 0 {
		width = 1000
	}
	height := int(float64(width) * (n - s) / (e - w))
	if height < 1 {
		height = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	canvas := vgimg.NewWith(vgimg.UseImage(img))
	m := &Map{
		ds: d, x: x, y: y,
		w: w, s: s, e: e, n: n,
		img: img, canvas: canvas,
	}
	m.carto = carto.NewCanvas(n, s, e, w, vgdraw.New(canvas))
	return m, nil
}

// Dataset returns the dataset the map draws from.
func (m *Map) Dataset() *hyoga.Dataset { return m.ds }

// Bounds returns the projected extent covered by the map.
func (m *Map) Bounds() *geom.Bounds {
	return &geom.Bounds{Min: geom.Point{X: m.w, Y: m.s}, Max: geom.Point{X: m.e, Y: m.n}}
}

// DrawGridded paints a gridded field through a color gradient mapped
// linearly between lo and hi. Cells holding not a number are left
// untouched and values beyond the window clamp to its end colors, or
// to the under color for gradients that have one.
func (m *Map) DrawGridded(data *sparse.DenseArray, g Gradient, lo, hi float64) error {
	if err := m.checkShape(data); err != nil {
		return err
	}
	if !(lo < hi) {
		return fmt.Errorf("hyoga: invalid color window %g to %g", lo, hi)
	}
	p, err := m.hiddenPlot()
	if err != nil {
		return err
	}
	pal := g.Palette(4096) // enough colors to avoid striping
	colors := pal.Colors()
	h := plotter.NewHeatMap(grid{m.x, m.y, data}, pal)
	h.Min, h.Max = lo, hi
	h.NaN = color.Transparent
	h.Underflow = colors[0]
	h.Overflow = colors[len(colors)-1]
	if g.under != nil {
		h.Underflow = *g.under
	}
	p.Add(h)
	p.Draw(vgdraw.New(m.canvas))
	return nil
}

// DrawContours traces contour lines of a gridded field at the given
// levels, all in the same line style.
func (m *Map) DrawContours(data *sparse.DenseArray, levels []float64, ls vgdraw.LineStyle) error {
	if err := m.checkShape(data); err != nil {
		return err
	}
	if len(levels) == 0 {
		return nil
	}
	p, err := m.hiddenPlot()
	if err != nil {
		return err
	}
	min, max := levels[0], levels[0]
	for _, l := range levels {
		min = math.Min(min, l)
		max = math.Max(max, l)
	}
	p.Add(&plotter.Contour{
		GridXYZ:    grid{m.x, m.y, data},
		Levels:     levels,
		LineStyles: []vgdraw.LineStyle{ls},
		Min:        min,
		Max:        max,
	})
	p.Draw(vgdraw.New(m.canvas))
	return nil
}

// DrawVectors fills and outlines vector geometries over the map,
// reprojecting them when the dataset records a proj4 projection.
func (m *Map) DrawVectors(v *open.Vectors, fill color.NRGBA, ls vgdraw.LineStyle) error {
	geoms := v.Geoms
	if proj4, ok := m.ds.Attrs["proj4"]; ok {
		var err error
		geoms, err = v.Reproject(proj4)
		if err != nil {
			return err
		}
	}
	for _, g := range geoms {
		if err := m.carto.DrawVector(g, fill, ls, vgdraw.GlyphStyle{}); err != nil {
			return err
		}
	}
	return nil
}

// ScaleBar draws a horizontal distance bar of the given length in
// projected units near the bottom right corner, with end ticks and a
// centered label above. An empty label derives one from the length,
// such as "100 km".
func (m *Map) ScaleBar(length float64, label string, col color.Color) error {
	if label == "" {
		label = fmt.Sprintf("%g km", length/1000)
	}
	pad := 0.25 * length
	p0 := m.carto.Coordinates(geom.Point{X: m.e - pad - length, Y: m.s + pad})
	p1 := m.carto.Coordinates(geom.Point{X: m.e - pad, Y: m.s + pad})
	ls := vgdraw.LineStyle{Color: col, Width: vg.Points(1)}
	m.carto.StrokeLine2(ls, p0.X, p0.Y, p1.X, p1.Y)
	tick := vg.Points(3)
	m.carto.StrokeLine2(ls, p0.X, p0.Y-tick/2, p0.X, p0.Y+tick/2)
	m.carto.StrokeLine2(ls, p1.X, p1.Y-tick/2, p1.X, p1.Y+tick/2)
	font, err := vg.MakeFont("Helvetica", vg.Points(9))
	if err != nil {
		return err
	}
	sty := vgdraw.TextStyle{Color: col, Font: font}
	sty.XAlign = -0.5
	sty.YAlign = 0
	m.carto.FillText(sty, vg.Point{X: (p0.X + p1.X) / 2, Y: p0.Y + tick}, label)
	return nil
}

// WritePNG encodes the composed map image.
func (m *Map) WritePNG(w io.Writer) error {
	png := vgimg.PngCanvas{Canvas: m.canvas}
	_, err := png.WriteTo(w)
	return err
}

// SavePNG writes the composed map image to a file.
func (m *Map) SavePNG(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.WritePNG(f)
}

// WriteLegend renders a horizontal color bar legend for a
// quantitative layer, such as the ones returned by BedrockErosion and
// SurfaceVelocity.
func WriteLegend(w io.Writer, cmap *carto.ColorMap, label string) error {
	const (
		legendWidth  = 3.70 * vg.Inch
		legendHeight = legendWidth * 0.1067
	)
	img := vgimg.PngCanvas{Canvas: vgimg.New(legendWidth, legendHeight)}
	canvas := vgdraw.New(img)
	if err := cmap.Legend(&canvas, label); err != nil {
		return err
	}
	_, err := img.WriteTo(w)
	return err
}

// hiddenPlot returns a plot with no chrome whose data area spans the
// whole canvas, so that gridded plotters line up with the map
// projection.
func (m *Map) hiddenPlot() (*gplot.Plot, error) {
	p, err := gplot.New()
	if err != nil {
		return nil, err
	}
	p.HideAxes()
	p.X.Padding, p.Y.Padding = 0, 0
	p.BackgroundColor = nil
	p.X.Min, p.X.Max = m.w, m.e
	p.Y.Min, p.Y.Max = m.s, m.n
	return p, nil
}

// drawRaster paints one color per grid cell at the image resolution,
// leaving cells holding not a number untouched.
func (m *Map) drawRaster(data *sparse.DenseArray, pick func(float64) color.NRGBA) error {
	if err := m.checkShape(data); err != nil {
		return err
	}
	b := m.img.Bounds()
	layer := image.NewNRGBA(b)
	for py := b.Min.Y; py < b.Max.Y; py++ {
		yy := m.n - (float64(py)+0.5)/float64(b.Dy())*(m.n-m.s)
		i := nearest(m.y, yy)
		for px := b.Min.X; px < b.Max.X; px++ {
			xx := m.w + (float64(px)+0.5)/float64(b.Dx())*(m.e-m.w)
			j := nearest(m.x, xx)
			v := data.Get(i, j)
			if math.IsNaN(v) {
				continue
			}
			layer.SetNRGBA(px, py, pick(v))
		}
	}
	draw.Draw(m.img, b, layer, b.Min, draw.Over)
	return nil
}

func (m *Map) checkShape(data *sparse.DenseArray) error {
	if len(data.Shape) != 2 || data.Shape[0] != len(m.y) || data.Shape[1] != len(m.x) {
		return fmt.Errorf("hyoga: data shape %v does not fit the %d by %d map grid", data.Shape, len(m.y), len(m.x))
	}
	return nil
}

// nearest returns the index of the coordinate closest to v, assuming
// coords are sorted in increasing order.
func nearest(coords []float64, v float64) int {
	i := sort.SearchFloat64s(coords, v)
	if i == 0 {
		return 0
	}
	if i == len(coords) {
		return len(coords) - 1
	}
	if v-coords[i-1] <= coords[i]-v {
		return i - 1
	}
	return i
}

// grid adapts a dense array to the gonum plotter grid interface.
type grid struct {
	x, y []float64
	data *sparse.DenseArray
}

func (g grid) Dims() (c, r int)   { return len(g.x), len(g.y) }
func (g grid) Z(c, r int) float64 { return g.data.Get(r, c) }
func (g grid) X(c int) float64    { return g.x[c] }
func (g grid) Y(r int) float64    { return g.y[r] }
