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

// Package hyogautil connects the hyoga library to its command-line
// interface: it resolves configured input paths, runs the plotting,
// masking, profile and download tasks, and lists modelling domains.
package hyogautil

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ctessum/geom/carto"
	"github.com/juseg/hyoga"
	"github.com/juseg/hyoga/open"
	"github.com/juseg/hyoga/plot"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
)

// checkOutputFile expands and returns the configured output path,
// erroring when none is set.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf("hyogautil: you need to specify an OutputFile")
	}
	return os.ExpandEnv(f), nil
}

// openInput opens the configured input dataset. Web and blob storage
// addresses are downloaded first, and a path containing a fmt verb
// selects the file matching the configured Time from a numbered
// sequence.
func openInput(ctx context.Context, cfg *viper.Viper) (*hyoga.Dataset, error) {
	path := os.ExpandEnv(cfg.GetString("InputFile"))
	if path == "" {
		return nil, fmt.Errorf("hyogautil: you need to specify an InputFile")
	}
	if strings.Contains(path, "%") {
		return open.Subdataset(path, cfg.GetFloat64("Time"),
			cfg.GetFloat64("Shift"), cfg.GetFloat64("Tolerance"))
	}
	return open.Dataset(maybeDownload(ctx, path))
}

// writeNetCDF stores a dataset in a netCDF file.
func writeNetCDF(d *hyoga.Dataset, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("hyogautil: creating output file: %v", err)
	}
	if err := d.WriteNetCDF(f); err != nil {
		f.Close()
		os.Remove(filename)
		return err
	}
	return f.Close()
}

// PlotOptions selects the layers composed by Plot.
type PlotOptions struct {
	// Width is the output image width in pixels.
	Width int

	// Sealevel in metres moves the shoreline and the zero of the
	// bedrock altitude colors.
	Sealevel float64

	// Relief overlays multidirectional shaded relief on the bedrock
	// and, where glacierized, the ice surface.
	Relief bool

	// Margin outlines the glacierized area, filled white unless a
	// quantitative layer is drawn.
	Margin bool

	// Contours draws glacier surface altitude contours.
	Contours bool

	// Velocity paints the base ten logarithm of the surface speed.
	Velocity bool

	// Erosion names a glacial erosion power law, or is empty.
	Erosion string

	// Isostasy paints the bedrock depression or rebound.
	Isostasy bool

	// NaturalEarth lists physical vector themes drawn over the map,
	// at the given Scale.
	NaturalEarth []string
	Scale        string

	// ScaleBar is the length of the distance bar in projected units,
	// or zero for none.
	ScaleBar float64
}

// neStyles hold Natural Earth drawing styles by theme. Themes not
// listed draw as plain blue lines.
var neStyles = map[string]struct {
	edge, face color.NRGBA
	width      vg.Length
}{
	"coastline":               {edge: waterEdge, width: vg.Points(0.25)},
	"glaciated_areas":         {edge: waterEdge, face: color.NRGBA{255, 255, 255, 255}, width: vg.Points(0.25)},
	"lakes":                   {edge: waterEdge, face: color.NRGBA{0xd8, 0xf2, 0xfe, 255}, width: vg.Points(0.25)},
	"lakes_europe":            {edge: waterEdge, face: color.NRGBA{0xd8, 0xf2, 0xfe, 255}, width: vg.Points(0.25)},
	"lakes_north_america":     {edge: waterEdge, face: color.NRGBA{0xd8, 0xf2, 0xfe, 255}, width: vg.Points(0.25)},
	"ocean":                   {edge: waterEdge, face: color.NRGBA{0xc6, 0xec, 0xff, 255}, width: vg.Points(0.25)},
	"rivers_lake_centerlines": {edge: waterEdge, width: vg.Points(0.5)},
	"rivers_europe":           {edge: waterEdge, width: vg.Points(0.5)},
	"rivers_north_america":    {edge: waterEdge, width: vg.Points(0.5)},
}

var waterEdge = color.NRGBA{0x09, 0x78, 0xab, 255}

// Plot composes a map of the input dataset and writes it to a PNG
// image. Quantitative layers write a color bar legend in a second
// image named after the output file, for instance "map.velocity.png"
// alongside "map.png".
func Plot(ctx context.Context, d *hyoga.Dataset, outputFile string, o PlotOptions) error {
	quant := 0
	for _, on := range []bool{o.Velocity, o.Erosion != "", o.Isostasy} {
		if on {
			quant++
		}
	}
	if quant > 1 {
		return fmt.Errorf("hyogautil: choose at most one of the velocity, erosion and isostasy layers")
	}

	// Mask glacier variables outside the ice covered area, so that
	// surface layers stop at the ice margin. Bedrock variables pass
	// through, and a dataset with no ice information still serves the
	// bedrock layers.
	hasIce := true
	masked, err := d.WhereIcemask()
	if err != nil {
		var notFound *hyoga.NotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		hasIce = false
	} else {
		d = masked
	}

	m, err := plot.NewMap(d, o.Width)
	if err != nil {
		return err
	}
	if err := m.BedrockAltitude(plot.Topographic, o.Sealevel); err != nil {
		return err
	}
	if o.Relief {
		if err := m.BedrockHillshade(0, nil, nil); err != nil {
			return err
		}
	}
	if err := m.BedrockShoreline(o.Sealevel, vgdraw.LineStyle{}); err != nil {
		return err
	}

	// quantitative layer, if any
	var cmap *carto.ColorMap
	var label, layer string
	switch {
	case o.Velocity:
		c, err := m.SurfaceVelocity()
		if err != nil {
			return err
		}
		if c != nil {
			cmap, label, layer = c, "log10 surface velocity (m/a)", "velocity"
		}
	case o.Erosion != "":
		law, ok := plot.ErosionLaws[o.Erosion]
		if !ok {
			return fmt.Errorf("hyogautil: %s is not a valid erosion law", o.Erosion)
		}
		c, err := m.BedrockErosion(law)
		if err != nil {
			return err
		}
		if c != nil {
			cmap, label, layer = c, "potential erosion rate (m/a)", "erosion"
		}
	case o.Isostasy:
		c, err := m.BedrockIsostasy()
		if err != nil {
			return err
		}
		if c != nil {
			cmap, label, layer = c, "isostatic adjustment (m)", "isostasy"
		}
	}

	if o.Margin {
		face := color.NRGBA{255, 255, 255, 255}
		if quant > 0 {
			face = color.NRGBA{}
		}
		if err := m.IceMargin(color.NRGBA{64, 64, 64, 255}, face); err != nil {
			return err
		}
	}
	if o.Relief && hasIce {
		if err := m.SurfaceHillshade(0, nil, nil); err != nil {
			return err
		}
	}
	if o.Contours {
		if err := m.SurfaceAltitudeContours(0, 0); err != nil {
			return err
		}
	}

	if len(o.NaturalEarth) > 0 {
		for _, theme := range o.NaturalEarth {
			v, err := open.NaturalEarth(ctx, o.Scale, "physical", theme)
			if err != nil {
				return err
			}
			sty, ok := neStyles[theme]
			if !ok {
				sty.edge, sty.width = waterEdge, vg.Points(0.25)
			}
			ls := vgdraw.LineStyle{Color: sty.edge, Width: sty.width}
			if err := m.DrawVectors(v, sty.face, ls); err != nil {
				return err
			}
		}
	}
	if o.ScaleBar > 0 {
		if err := m.ScaleBar(o.ScaleBar, "", color.Black); err != nil {
			return err
		}
	}

	if cmap != nil {
		name := legendFile(outputFile, layer)
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("hyogautil: creating legend file: %v", err)
		}
		if err := plot.WriteLegend(f, cmap, label); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		hyoga.Log.WithFields(logrus.Fields{"file": name}).Info("wrote color bar legend")
	}
	return m.SavePNG(outputFile)
}

// legendFile inserts the layer name before the output file extension.
func legendFile(outputFile, layer string) string {
	ext := filepath.Ext(outputFile)
	return strings.TrimSuffix(outputFile, ext) + "." + layer + ext
}

// Mask evaluates the expression cell-wise over the dataset, assigns
// the result as the ice mask, and writes the dataset to a netCDF file.
func Mask(d *hyoga.Dataset, expression, outputFile string) error {
	if expression == "" {
		return fmt.Errorf("hyogautil: you need to specify a Mask.Expression")
	}
	v, err := d.Eval(expression)
	if err != nil {
		return err
	}
	masked, err := d.AssignIcemask(v)
	if err != nil {
		return err
	}
	return writeNetCDF(masked, outputFile)
}

// Profile interpolates the dataset variables along the line read from
// the points shapefile, at regular distance intervals, and writes the
// result to a netCDF file.
func Profile(d *hyoga.Dataset, points string, interval float64, outputFile string) error {
	if points == "" {
		return fmt.Errorf("hyogautil: you need to specify Profile.Points")
	}
	dist, x, y, err := hyoga.ReadShpCoords(points, d.Attrs["proj4"], interval)
	if err != nil {
		return err
	}
	p, err := d.Profile(dist, x, y)
	if err != nil {
		return err
	}
	return writeNetCDF(p, outputFile)
}

// DownloadNaturalEarth fetches and decodes Natural Earth vector themes
// into the cache directory.
func DownloadNaturalEarth(ctx context.Context, scale, category string, themes []string) error {
	if len(themes) == 0 {
		return fmt.Errorf("hyogautil: you need to specify NaturalEarth.Themes")
	}
	v, err := open.NaturalEarth(ctx, scale, category, themes...)
	if err != nil {
		return err
	}
	hyoga.Log.WithFields(logrus.Fields{
		"scale":    scale,
		"themes":   strings.Join(themes, ","),
		"features": len(v.Geoms),
	}).Info("downloaded Natural Earth data")
	return nil
}

// DownloadPaleoglaciers fetches and decodes a Last Glacial Maximum
// glacier extent reconstruction into the cache directory.
func DownloadPaleoglaciers(ctx context.Context, source string) error {
	v, err := open.Paleoglaciers(ctx, source)
	if err != nil {
		return err
	}
	hyoga.Log.WithFields(logrus.Fields{
		"source":   source,
		"features": len(v.Geoms),
	}).Info("downloaded paleoglacier extents")
	return nil
}

// Gebco builds a bedrock topography for the named modelling domain
// from GEBCO sub-ice elevation data and writes it to a netCDF file
// ready for model bootstrapping.
func Gebco(ctx context.Context, domain string, resolution float64, outputFile string) error {
	dom, ok := hyoga.World[domain]
	if !ok {
		return fmt.Errorf("hyogautil: %s is not a modelling domain; run 'hyoga domains' for the catalog", domain)
	}
	d, err := open.Bootstrap(ctx, dom.Proj4(),
		[4]float64{dom.W, dom.S, dom.E, dom.N}, "gebco", resolution)
	if err != nil {
		return err
	}
	return writeNetCDF(d, outputFile)
}

// Example downloads an example dataset from the hyoga-data repository
// and reports the variables it contains.
func Example(ctx context.Context, filename string) error {
	d, err := open.Example(ctx, filename)
	if err != nil {
		return err
	}
	hyoga.Log.WithFields(logrus.Fields{
		"variables": strings.Join(d.Names(), ","),
	}).Info("downloaded example dataset")
	return nil
}

// Domains lists the modelling domain catalog, merged with any domains
// read from the TOML file named by extraFile.
func Domains(w io.Writer, extraFile string) error {
	domains := make(map[string]hyoga.Domain, len(hyoga.World))
	for name, d := range hyoga.World {
		domains[name] = d
	}
	if extraFile != "" {
		extra, err := hyoga.ReadDomains(extraFile)
		if err != nil {
			return err
		}
		for name, d := range extra {
			domains[name] = d
		}
	}
	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLAT\tLON\tEXTENT")
	for _, name := range names {
		d := domains[name]
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g x %g km\n",
			name, d.Lat, d.Lon, (d.E-d.W)/1e3, (d.N-d.S)/1e3)
	}
	return tw.Flush()
}

// ExportDomains writes the outlines of the default modelling domains
// to a shapefile in geographic coordinates.
func ExportDomains(filename string) error {
	return hyoga.WriteDomainsShapefile(filename)
}
