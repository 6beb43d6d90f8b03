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

	"gonum.org/v1/plot/palette"
)

// A stop anchors a color at a position between zero and one along a
// gradient.
type stop struct {
	pos float64
	col color.NRGBA
}

// A Gradient interpolates colors linearly between anchored stops over
// a fixed window of data values. It implements the gonum plot
// palette.ColorMap interface, and GetColor offers a clamping lookup
// for direct rendering.
type Gradient struct {
	name  string
	min   float64
	max   float64
	stops []stop
	under *color.NRGBA
}

var _ palette.ColorMap = (*Gradient)(nil)

// The bathymetric and topographic color sequences follow the
// conventions of the Wikipedia WikiProject Maps.

// Bathymetric shades ocean depths from dark to light blue.
var Bathymetric = Gradient{
	name: "Bathymetric",
	min:  -6000,
	max:  0,
	stops: levelStops(-6000, 0,
		[]float64{-6000, -3000, -2000, -1500, -1000, -750, -500, -250, -100, 0},
		[]string{
			"#71ABD8", "#79B2DE", "#84B9E3", "#8DC1EA", "#96C9F0",
			"#A1D2F7", "#ACDBFB", "#B9E3FF", "#C6ECFF", "#D8F2FE",
		}),
}

// depressions colors land below sea level on the topographic scales.
var depressions = hexColor("#A7DFD2")

// Topographic shades land altitudes from green through yellow and
// brown to white, with a separate color for depressions below the
// scale.
var Topographic = Gradient{
	name:  "Topographic",
	min:   0,
	max:   9000,
	under: &depressions,
	stops: levelStops(0, 9000,
		[]float64{
			0, 50, 100, 250, 500, 750, 1000, 1500, 2000, 2500,
			3000, 3500, 4000, 4500, 5000, 6000, 7000, 8000, 9000,
		},
		[]string{
			"#ACD0A5", "#94BF8B", "#A8C68F", "#BDCC96", "#D1D7AB",
			"#E1E4B5", "#EFEBC0", "#E8E1B6", "#DED6A3", "#D3CA9D",
			"#CAB982", "#C3A76B", "#B9985A", "#AA8753", "#AC9A7C",
			"#BAAE9A", "#CAC3B8", "#E0DED8", "#F5F4F2",
		}),
}

// Elevational combines the bathymetric and topographic sequences with
// sea level in the middle of the scale, compressing land altitudes
// above six thousand metres into the top color.
var Elevational = Gradient{
	name:  "Elevational",
	min:   -6000,
	max:   6000,
	stops: append(rescaleStops(Bathymetric.stops, 0, 0.5), rescaleStops(Topographic.stops, 0.5, 0.5)...),
}

// Matte fades linearly from fully transparent to opaque black.
var Matte = Gradient{
	name: "Matte",
	min:  -1,
	max:  1,
	stops: []stop{
		{0, hexColor("#00000000")},
		{1, hexColor("#000000ff")},
	},
}

// Glossy highlights slopes facing the light source in white and
// shades slopes facing away in black, leaving horizontal ground
// transparent in the middle of the scale.
var Glossy = Gradient{
	name: "Glossy",
	min:  -1,
	max:  1,
	stops: []stop{
		{0, hexColor("#ffffffff")},
		{0.5, hexColor("#ffffff00")},
		{0.5, hexColor("#00000000")},
		{1, hexColor("#000000ff")},
	},
}

// Greys spans white to black. A gradient whose minimum equals its
// maximum has no fixed window and is stretched to the plotted data.
var Greys = Gradient{
	name: "Greys",
	stops: []stop{
		{0, hexColor("#ffffff")},
		{1, hexColor("#000000")},
	},
}

// Gradients catalogs the named gradients for lookup from
// configuration files and the command line.
var Gradients = map[string]Gradient{
	"Bathymetric": Bathymetric,
	"Elevational": Elevational,
	"Glossy":      Glossy,
	"Greys":       Greys,
	"Matte":       Matte,
	"Topographic": Topographic,
}

// Name returns the name under which the gradient is cataloged.
func (g *Gradient) Name() string { return g.name }

// Min implements the palette.ColorMap interface.
func (g *Gradient) Min() float64 { return g.min }

// SetMin implements the palette.ColorMap interface.
func (g *Gradient) SetMin(v float64) { g.min = v }

// Max implements the palette.ColorMap interface.
func (g *Gradient) Max() float64 { return g.max }

// SetMax implements the palette.ColorMap interface.
func (g *Gradient) SetMax(v float64) { g.max = v }

// Alpha implements the palette.ColorMap interface. Gradients carry
// opacity in their stop colors, so the overall opacity is fixed at
// fully opaque.
func (g *Gradient) Alpha() float64 { return 1 }

// SetAlpha implements the palette.ColorMap interface. The overall
// opacity is fixed, so the value is ignored.
func (g *Gradient) SetAlpha(float64) {}

// At implements the palette.ColorMap interface, returning the color
// interpolated at the given value or an error when the value is not a
// number or falls outside the window.
func (g *Gradient) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < g.min:
		return nil, palette.ErrUnderflow
	case v > g.max:
		return nil, palette.ErrOverflow
	}
	if g.min == g.max {
		return g.colorAt(0.5), nil
	}
	return g.colorAt((v - g.min) / (g.max - g.min)), nil
}

// GetColor maps a value to a color for direct rendering. Values below
// the window clamp to the first color, or to the under color for
// gradients that have one, values above clamp to the last color, and
// values that are not a number come out fully transparent.
func (g *Gradient) GetColor(v float64) color.NRGBA {
	switch {
	case math.IsNaN(v):
		return color.NRGBA{}
	case v < g.min:
		if g.under != nil {
			return *g.under
		}
		return g.stops[0].col
	case v > g.max:
		return g.stops[len(g.stops)-1].col
	}
	if g.min == g.max {
		return g.colorAt(0.5)
	}
	return g.colorAt((v - g.min) / (g.max - g.min))
}

// Palette implements the palette.ColorMap interface, sampling the
// given number of colors at evenly spaced positions.
func (g *Gradient) Palette(colors int) palette.Palette {
	if colors < 1 {
		colors = 1
	}
	out := make(paletteColors, colors)
	if colors == 1 {
		out[0] = g.colorAt(0.5)
		return out
	}
	for i := range out {
		out[i] = g.colorAt(float64(i) / float64(colors-1))
	}
	return out
}

type paletteColors []color.Color

func (p paletteColors) Colors() []color.Color { return p }

// colorAt interpolates the color at a position between zero and one.
// Duplicated stop positions make the later stop win, so gradients can
// hold sharp breaks.
func (g *Gradient) colorAt(p float64) color.NRGBA {
	s := g.stops
	i := sort.Search(len(s), func(i int) bool { return s[i].pos > p }) - 1
	if i < 0 {
		return s[0].col
	}
	if i >= len(s)-1 {
		return s[len(s)-1].col
	}
	t := (p - s[i].pos) / (s[i+1].pos - s[i].pos)
	return lerpColor(s[i].col, s[i+1].col, t)
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*(float64(y)-float64(x)) + 0.5)
	}
	return color.NRGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}

// hexColor parses an #rrggbb or #rrggbbaa color string.
func hexColor(s string) color.NRGBA {
	c := color.NRGBA{A: 255}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 9:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("length %d", len(s))
	}
	if err != nil {
		panic(fmt.Errorf("hyoga: invalid color %s: %v", s, err))
	}
	return c
}

// levelStops anchors colors at data levels rescaled to gradient
// positions between zero and one.
func levelStops(min, max float64, levels []float64, colors []string) []stop {
	s := make([]stop, len(levels))
	for i, l := range levels {
		s[i] = stop{pos: (l - min) / (max - min), col: hexColor(colors[i])}
	}
	return s
}

// rescaleStops maps stop positions into a subrange of another
// gradient.
func rescaleStops(s []stop, offset, scale float64) []stop {
	out := make([]stop, len(s))
	for i, st := range s {
		out[i] = stop{pos: offset + scale*st.pos, col: st.col}
	}
	return out
}
