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

package hyogautil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/juseg/hyoga"
	"github.com/juseg/hyoga/open"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// getStringSlice reads a configuration list, which a TOML file
// provides as an array and an environment variable as a comma
// separated string.
func getStringSlice(key string) ([]string, error) {
	val := Cfg.Get(key)
	if s, ok := val.(string); ok {
		if s == "" {
			return nil, nil
		}
		return strings.Split(s, ","), nil
	}
	return cast.ToStringSliceE(val)
}

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to hyoga.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the input dataset. Web addresses and
              gs://, s3:// and file:// blob storage addresses are downloaded
              into the cache directory on first use. A path containing a fmt
              verb, such as "ex.%07.0f.nc", opens the file matching Time
              from a numbered sequence.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), maskCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the result is written.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), maskCmd.Flags(), profileCmd.Flags(), gebcoCmd.Flags(), domainsCmd.Flags()},
		},
		{
			name: "Time",
			usage: `
              Time is the model time in years used to locate the input file
              and the time step when InputFile contains a fmt verb.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), maskCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "Shift",
			usage: `
              Shift is added to Time before formatting InputFile, accounting
              for output files numbered in a different time origin.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), maskCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "Tolerance",
			usage: `
              Tolerance is the age matching tolerance in ka when selecting
              a time step from a file sequence.`,
			defaultVal: open.SubdatasetTolerance,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags(), maskCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "Plot.Width",
			usage: `
              Plot.Width is the output image width in pixels.`,
			defaultVal: 800,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Sealevel",
			usage: `
              Plot.Sealevel is the sea level in metres used for the
              shoreline and the bedrock altitude colors.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Relief",
			usage: `
              Plot.Relief draws multidirectional shaded relief over the
              bedrock and glacier surface topographies.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Margin",
			usage: `
              Plot.Margin draws the glacier outline, filled white unless a
              quantitative layer is drawn.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Contours",
			usage: `
              Plot.Contours draws surface altitude contours over the
              glacierized area.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Velocity",
			usage: `
              Plot.Velocity paints the base ten logarithm of the surface
              speed over the glacierized area.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Erosion",
			usage: `
              Plot.Erosion paints the potential erosion rate using the
              named power law, one of coo20, her15, hum94 and kop15. The
              empty string disables the layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Isostasy",
			usage: `
              Plot.Isostasy paints the bedrock depression or rebound and
              marks the deepest point.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.NaturalEarth",
			usage: `
              Plot.NaturalEarth lists Natural Earth physical themes drawn
              over the map, such as lakes and rivers_lake_centerlines.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.Scale",
			usage: `
              Plot.Scale selects the Natural Earth scale, one of 10m, 50m
              and 110m.`,
			defaultVal: "10m",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Plot.ScaleBar",
			usage: `
              Plot.ScaleBar draws a distance bar of the given length in
              projected units near the bottom right corner. Zero disables
              it.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "Mask.Expression",
			usage: `
              Mask.Expression is evaluated cell-wise over the dataset and
              assigned as the ice mask. Identifiers name variables by
              standard name, with derivation enabled, or by short name,
              for instance "land_ice_thickness > 1".`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{maskCmd.Flags()},
		},
		{
			name: "Profile.Points",
			usage: `
              Profile.Points is the path to a shapefile holding the profile
              line. Coordinates are reprojected onto the dataset grid using
              the shapefile projection information, or assumed geographic
              if there is none.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
		{
			name: "Profile.Interval",
			usage: `
              Profile.Interval is the sampling distance along the profile
              in projected units.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{profileCmd.Flags()},
		},
		{
			name: "NaturalEarth.Scale",
			usage: `
              NaturalEarth.Scale selects the dataset scale, one of 10m,
              50m and 110m.`,
			defaultVal: "10m",
			flagsets:   []*pflag.FlagSet{naturalearthCmd.Flags()},
		},
		{
			name: "NaturalEarth.Category",
			usage: `
              NaturalEarth.Category selects the dataset category, either
              physical or cultural.`,
			defaultVal: "physical",
			flagsets:   []*pflag.FlagSet{naturalearthCmd.Flags()},
		},
		{
			name: "NaturalEarth.Themes",
			usage: `
              NaturalEarth.Themes lists the themes to download, such as
              lakes, rivers_lake_centerlines or glaciated_areas.`,
			defaultVal: []string{"lakes", "rivers_lake_centerlines"},
			flagsets:   []*pflag.FlagSet{naturalearthCmd.Flags()},
		},
		{
			name: "Paleoglaciers.Source",
			usage: `
              Paleoglaciers.Source selects the Last Glacial Maximum
              reconstruction, either ehl11 (Ehlers et al., 2011) or bat19
              (Batchelor et al., 2019).`,
			defaultVal: "ehl11",
			flagsets:   []*pflag.FlagSet{paleoglaciersCmd.Flags()},
		},
		{
			name: "Gebco.Domain",
			usage: `
              Gebco.Domain names the modelling domain whose bounds and
              projection frame the topography. Run 'hyoga domains' for the
              catalog.`,
			defaultVal: "Alps",
			flagsets:   []*pflag.FlagSet{gebcoCmd.Flags()},
		},
		{
			name: "Gebco.Resolution",
			usage: `
              Gebco.Resolution is the grid resolution in metres.`,
			defaultVal: 1000.0,
			flagsets:   []*pflag.FlagSet{gebcoCmd.Flags()},
		},
		{
			name: "Example.File",
			usage: `
              Example.File names the file to fetch from the hyoga-data
              repository. The default opens a PISM run of the last glacial
              maximum in the Alps.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{exampleCmd.Flags()},
		},
		{
			name: "Domains.File",
			usage: `
              Domains.File is the path to a TOML file defining additional
              modelling domains listed alongside the built-in catalog.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{domainsCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("HYOGA")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(plotCmd)
	Root.AddCommand(maskCmd)
	Root.AddCommand(profileCmd)
	Root.AddCommand(downloadCmd)
	downloadCmd.AddCommand(naturalearthCmd)
	downloadCmd.AddCommand(paleoglaciersCmd)
	downloadCmd.AddCommand(gebcoCmd)
	downloadCmd.AddCommand(exampleCmd)
	Root.AddCommand(domainsCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("hyoga: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "hyoga",
	Short: "Paleoglacier modelling tools.",
	Long: `Hyoga is a command-line interface to the hyoga paleoglacier modelling
library. Use the subcommands specified below to plot glacier model
output, apply ice masks, extract profiles, list modelling domains,
and download input data.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'HYOGA_var' where 'var' is the name of the variable to be set. Many
configuration variables are additionally allowed to contain environment
variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of hyoga.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("Hyoga v%s\n", hyoga.Version)
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render a paleoglacier map to a PNG image",
	Long: `plot composes a map of the glacier and bedrock state in the input
dataset and writes it to a PNG image. The bedrock topography, shaded
relief, the shoreline and the glacier outline are drawn by default, and
further layers are available as options. Quantitative layers write a
color bar legend next to the output file, for instance
"map.velocity.png" alongside "map.png".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		d, err := openInput(ctx, Cfg)
		if err != nil {
			return err
		}
		themes, err := getStringSlice("Plot.NaturalEarth")
		if err != nil {
			return err
		}
		return Plot(ctx, d, outputFile, PlotOptions{
			Width:        Cfg.GetInt("Plot.Width"),
			Sealevel:     Cfg.GetFloat64("Plot.Sealevel"),
			Relief:       Cfg.GetBool("Plot.Relief"),
			Margin:       Cfg.GetBool("Plot.Margin"),
			Contours:     Cfg.GetBool("Plot.Contours"),
			Velocity:     Cfg.GetBool("Plot.Velocity"),
			Erosion:      Cfg.GetString("Plot.Erosion"),
			Isostasy:     Cfg.GetBool("Plot.Isostasy"),
			NaturalEarth: themes,
			Scale:        Cfg.GetString("Plot.Scale"),
			ScaleBar:     Cfg.GetFloat64("Plot.ScaleBar"),
		})
	},
	DisableAutoGenTag: true,
}

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Assign an ice mask and save the masked dataset",
	Long: `mask evaluates an expression such as "land_ice_thickness > 1"
cell-wise over the input dataset, assigns the result as the ice mask
under standard name land_ice_area_fraction, and writes the dataset to a
NetCDF file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		d, err := openInput(context.Background(), Cfg)
		if err != nil {
			return err
		}
		return Mask(d, os.ExpandEnv(Cfg.GetString("Mask.Expression")), outputFile)
	},
	DisableAutoGenTag: true,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Extract variables along a profile line",
	Long: `profile interpolates the dataset variables along a line read from a
shapefile, at regular distance intervals, and writes the result to a
NetCDF file where distance along the profile replaces the horizontal
dimensions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		d, err := openInput(ctx, Cfg)
		if err != nil {
			return err
		}
		points := maybeDownload(ctx, os.ExpandEnv(Cfg.GetString("Profile.Points")))
		return Profile(d, points, Cfg.GetFloat64("Profile.Interval"), outputFile)
	},
	DisableAutoGenTag: true,
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download input data",
	Long: `download fetches commonly used input data into the cache directory,
$XDG_CACHE_HOME/hyoga or ~/.cache/hyoga by default. Use the subcommands
specified below to choose a dataset.`,
	DisableAutoGenTag: true,
}

var naturalearthCmd = &cobra.Command{
	Use:   "naturalearth",
	Short: "Download Natural Earth vector data",
	Long: `naturalearth downloads Natural Earth cultural and physical vector
themes, reusing files already fetched by cartopy when present.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		themes, err := getStringSlice("NaturalEarth.Themes")
		if err != nil {
			return err
		}
		return DownloadNaturalEarth(context.Background(),
			Cfg.GetString("NaturalEarth.Scale"),
			Cfg.GetString("NaturalEarth.Category"),
			themes)
	},
	DisableAutoGenTag: true,
}

var paleoglaciersCmd = &cobra.Command{
	Use:   "paleoglaciers",
	Short: "Download Last Glacial Maximum glacier extents",
	Long: `paleoglaciers downloads a global reconstruction of glacier extent
during the Last Glacial Maximum.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return DownloadPaleoglaciers(context.Background(),
			Cfg.GetString("Paleoglaciers.Source"))
	},
	DisableAutoGenTag: true,
}

var gebcoCmd = &cobra.Command{
	Use:   "gebco",
	Short: "Build a surface topography from GEBCO",
	Long: `gebco downloads the GEBCO global elevation dataset, reprojects it
onto the grid of a named modelling domain, and writes the surface
topography to a NetCDF file ready for model bootstrapping.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Gebco(context.Background(), Cfg.GetString("Gebco.Domain"),
			Cfg.GetFloat64("Gebco.Resolution"), outputFile)
	},
	DisableAutoGenTag: true,
}

var exampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Download an example dataset",
	Long: `example downloads a demonstration dataset from the hyoga-data
repository and reports the variables it contains.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Example(context.Background(), Cfg.GetString("Example.File"))
	},
	DisableAutoGenTag: true,
}

var domainsCmd = &cobra.Command{
	Use:   "domains",
	Short: "List or export the modelling domain catalog",
	Long: `domains lists the origin and extent of the built-in modelling
domains, merged with any domains defined in Domains.File. With an
OutputFile, the domain outlines are written to a shapefile in
geographic coordinates instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if f := Cfg.GetString("OutputFile"); f != "" {
			return ExportDomains(os.ExpandEnv(f))
		}
		return Domains(cmd.OutOrStdout(), os.ExpandEnv(Cfg.GetString("Domains.File")))
	},
	DisableAutoGenTag: true,
}
