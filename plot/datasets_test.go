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
	"bytes"
	"image/color"
	"testing"

	"github.com/juseg/hyoga"
	vgdraw "gonum.org/v1/plot/vg/draw"
)

// glacierDataset builds a three by four cell dataset with bedrock
// descending eastward across the shore, an ice cap over the western
// half, and a bedrock depression under its center.
func glacierDataset() *hyoga.Dataset {
	d := hyoga.NewDataset()
	d.SetCoord("x", []float64{0, 1000, 2000, 3000}, map[string]string{"units": "m"})
	d.SetCoord("y", []float64{0, 1000, 2000}, map[string]string{"units": "m"})
	d.AddVariable(gridVariable("topg", "bedrock_altitude", "m", 3, 4,
		200, 100, 0, -100,
		200, 100, 0, -100,
		200, 100, 0, -100))
	d.AddVariable(gridVariable("usurf", "surface_altitude", "m", 3, 4,
		0, 0, 0, 0,
		1000, 1000, 1000, 1000,
		2000, 2000, 2000, 2000))
	d.AddVariable(gridVariable("sftgif", "land_ice_area_fraction", "1", 3, 4,
		1, 1, 0, 0,
		1, 1, 0, 0,
		1, 1, 0, 0))
	d.AddVariable(gridVariable("velbase_mag", "magnitude_of_land_ice_basal_velocity", "m year-1", 3, 4,
		100, 200, 300, 400,
		100, 200, 300, 400,
		100, 200, 300, 400))
	d.AddVariable(gridVariable("velsurf_mag", "magnitude_of_land_ice_surface_velocity", "m year-1", 3, 4,
		100, 200, 300, 400,
		100, 200, 300, 400,
		100, 200, 300, 400))
	d.AddVariable(gridVariable("dbdt", "bedrock_altitude_change_due_to_isostatic_adjustment", "m", 3, 4,
		0, -20, -40, 0,
		-10, -60, -120, 5,
		0, -30, -50, 0))
	return d
}

// glacierMap renders 100 by 75 pixels, with cell centers at pixel
// columns 12, 37, 62 and 87 and the middle row at pixel row 37.
func glacierMap(t *testing.T) *Map {
	t.Helper()
	m, err := NewMap(glacierDataset(), 100)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestBedrockAltitude(t *testing.T) {
	m := glacierMap(t)
	if err := m.BedrockAltitude(Greys, 0); err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := m.img.At(12, 37).RGBA()
	if r>>8 > 50 {
		t.Errorf("high ground pixel = %d, want nearly black", r>>8)
	}
	r, _, _, _ = m.img.At(87, 37).RGBA()
	if r>>8 < 200 {
		t.Errorf("low ground pixel = %d, want nearly white", r>>8)
	}
}

func TestBedrockAltitudeTopographic(t *testing.T) {
	m := glacierMap(t)
	if err := m.BedrockAltitude(Topographic, 100); err != nil {
		t.Fatal(err)
	}
	// 100 m above the raised sea level takes the 100 m anchor color
	checkPixel(t, m, 12, 37, color.NRGBA{0xA8, 0xC6, 0x8F, 0xff}, 2)
	// 200 m below it takes the depression color
	checkPixel(t, m, 87, 37, color.NRGBA{0xA7, 0xDF, 0xD2, 0xff}, 2)
}

func TestBedrockShoreline(t *testing.T) {
	m := glacierMap(t)
	if err := m.BedrockShoreline(50, vgdraw.LineStyle{}); err != nil {
		t.Fatal(err)
	}
	// the 50 m shore runs vertically halfway through the third column
	if !darkPixelIn(m, 46, 54, 10, 65, 240) {
		t.Error("shoreline left no dark pixels")
	}
}

func TestBedrockHillshade(t *testing.T) {
	m := glacierMap(t)
	if err := m.BedrockHillshade(5, nil, nil); err != nil {
		t.Fatal(err)
	}
	// the uniform eastward slope faces away from the light
	r, _, _, _ := m.img.At(50, 37).RGBA()
	if got := int(r >> 8); got < 170 || got > 200 {
		t.Errorf("shaded pixel = %d, want about 186", got)
	}
}

func TestSurfaceHillshade(t *testing.T) {
	m := glacierMap(t)
	if err := m.SurfaceHillshade(0, nil, nil); err != nil {
		t.Fatal(err)
	}
	// The surface rises northward at a uniform slope of one, away from
	// the default northwesterly lights, so every cell shades to the same
	// mid-grey.
	r, _, _, _ := m.img.At(50, 37).RGBA()
	if got := int(r >> 8); got < 135 || got > 160 {
		t.Errorf("got red %d at (50, 37), want a shaded grey near 146", got)
	}
}

func TestErosionLaws(t *testing.T) {
	if len(ErosionLaws) != 4 {
		t.Errorf("got %d erosion laws, want 4", len(ErosionLaws))
	}
	for _, c := range []struct {
		name string
		want ErosionLaw
	}{
		{"coo20", ErosionLaw{1.665e-4, 0.6459}},
		{"her15", ErosionLaw{2.7e-7, 2.02}},
		{"hum94", ErosionLaw{1e-4, 1}},
		{"kop15", ErosionLaw{5.2e-8, 2.34}},
	} {
		if got := ErosionLaws[c.name]; got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestBedrockErosion(t *testing.T) {
	m := glacierMap(t)
	cmap, err := m.BedrockErosion(ErosionLaw{})
	if err != nil {
		t.Fatal(err)
	}
	// the fastest sliding cell colors the top of the scale
	_, g, _, _ := m.img.At(37, 37).RGBA()
	if g>>8 > 220 {
		t.Errorf("ice covered pixel green = %d, want a saturated color", g>>8)
	}
	// ice free cells stay white
	checkPixel(t, m, 87, 37, color.NRGBA{255, 255, 255, 255}, 0)
	var buf bytes.Buffer
	if err := WriteLegend(&buf, cmap, "erosion rate (m/a)"); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Error("legend came out empty")
	}
}

func TestBedrockIsostasy(t *testing.T) {
	m := glacierMap(t)
	if _, err := m.BedrockIsostasy(); err != nil {
		t.Fatal(err)
	}
	// moderate depression paints partly transparent blue
	r, _, _, _ := m.img.At(37, 37).RGBA()
	if r>>8 > 220 {
		t.Errorf("depressed pixel = %d, want a colored one", r>>8)
	}
	// a bright marker labels the deepest cell
	found := false
	for py := 31; py < 44 && !found; py++ {
		for px := 56; px < 70; px++ {
			if r, _, _, _ := m.img.At(px, py).RGBA(); r>>8 > 240 {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("no marker found near the deepest cell")
	}
}

func TestIceMargin(t *testing.T) {
	d := mapDataset(gridVariable("sftgif", "land_ice_area_fraction", "1", 2, 2,
		1, 0,
		0, 0))
	m, err := NewMap(d, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.IceMargin(color.NRGBA{}, color.NRGBA{R: 255, A: 255}); err != nil {
		t.Fatal(err)
	}
	checkPixel(t, m, 25, 75, color.NRGBA{255, 0, 0, 255}, 0)
	checkPixel(t, m, 75, 25, color.NRGBA{255, 255, 255, 255}, 0)

	m, err = NewMap(d, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.IceMargin(color.NRGBA{A: 255}, color.NRGBA{}); err != nil {
		t.Fatal(err)
	}
	if !darkPixelIn(m, 20, 80, 20, 80, 128) {
		t.Error("ice margin edge left no dark pixels")
	}
}

func TestSurfaceAltitudeContours(t *testing.T) {
	m := glacierMap(t)
	if err := m.SurfaceAltitudeContours(500, 250); err != nil {
		t.Fatal(err)
	}
	// the 500 m contour runs along the icy west half
	if !darkPixelIn(m, 5, 30, 46, 54, 240) {
		t.Error("surface contours left no dark pixels over the glacier")
	}
	// the ice free east half stays clean
	if darkPixelIn(m, 70, 95, 5, 70, 240) {
		t.Error("surface contours drawn over ice free ground")
	}
}

func TestSurfaceVelocity(t *testing.T) {
	m := glacierMap(t)
	cmap, err := m.SurfaceVelocity()
	if err != nil {
		t.Fatal(err)
	}
	if cmap == nil {
		t.Fatal("returned color map is nil")
	}
	_, g, _, _ := m.img.At(37, 37).RGBA()
	if g>>8 > 220 {
		t.Errorf("ice covered pixel green = %d, want a saturated color", g>>8)
	}
	checkPixel(t, m, 87, 37, color.NRGBA{255, 255, 255, 255}, 0)
}

func TestSurfaceVelocityNoIce(t *testing.T) {
	d := mapDataset(
		gridVariable("sftgif", "land_ice_area_fraction", "1", 2, 2, 0, 0, 0, 0),
		gridVariable("velsurf_mag", "magnitude_of_land_ice_surface_velocity", "m year-1", 2, 2, 1, 2, 3, 4),
	)
	m, err := NewMap(d, 50)
	if err != nil {
		t.Fatal(err)
	}
	cmap, err := m.SurfaceVelocity()
	if err != nil {
		t.Fatal(err)
	}
	if cmap != nil {
		t.Error("expected a nil color map without ice cover")
	}
	checkPixel(t, m, 25, 25, color.NRGBA{255, 255, 255, 255}, 0)
}

func TestIceMaskedShapeError(t *testing.T) {
	d := mapDataset(
		gridVariable("sftgif", "land_ice_area_fraction", "1", 2, 2, 1, 1, 1, 1),
		gridVariable("velbase_mag", "magnitude_of_land_ice_basal_velocity", "m year-1", 1, 2, 1, 2),
	)
	m, err := NewMap(d, 50)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.BedrockErosion(ErosionLaw{}); err == nil {
		t.Error("expected an error for a mismatched ice mask")
	}
}

// checkPixel compares the composed color at a pixel within a channel
// tolerance.
func checkPixel(t *testing.T, m *Map, x, y int, want color.NRGBA, tol int) {
	t.Helper()
	r, g, b, _ := m.img.At(x, y).RGBA()
	for _, c := range []struct {
		name string
		got  int
		want int
	}{
		{"red", int(r >> 8), int(want.R)},
		{"green", int(g >> 8), int(want.G)},
		{"blue", int(b >> 8), int(want.B)},
	} {
		if c.got < c.want-tol || c.got > c.want+tol {
			t.Errorf("pixel %d,%d %s = %d, want about %d", x, y, c.name, c.got, c.want)
			return
		}
	}
}

// darkPixelIn reports whether any pixel in the given ranges is darker
// than the cutoff in its red channel.
func darkPixelIn(m *Map, x0, x1, y0, y1 int, cutoff int) bool {
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			if r, _, _, _ := m.img.At(px, py).RGBA(); int(r>>8) < cutoff {
				return true
			}
		}
	}
	return false
}
