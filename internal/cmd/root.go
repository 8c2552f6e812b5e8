package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/MeKo-Tech/gpx2png/internal/composite"
	"github.com/MeKo-Tech/gpx2png/internal/datasource"
	"github.com/MeKo-Tech/gpx2png/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var errNoTrack = errors.New("no track file given")

var rootCmd = &cobra.Command{
	Use:   "gpx2png [flags] track",
	Short: "Render a GPS track onto an OpenStreetMap image",
	Long: `gpx2png draws a GPS track (GPX, KML or KMZ) over OpenStreetMap tiles
and writes the result as a single PNG.

The zoom level is chosen automatically so the map fits in --size tiles
in each direction. Downloaded tiles are cached in --cache.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runRender,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	addRenderFlags(rootCmd.PersistentFlags())

	bindFlags(rootCmd.PersistentFlags(), []flagBinding{
		{"verbose", "verbose"},
		{"size", "size"},
		{"border", "border"},
		{"no-background", "no-background"},
		{"linecolour", "linecolour"},
		{"linewidth", "linewidth"},
		{"filename", "output"},
		{"renderer", "renderer"},
		{"cache", "cache"},
		{"notice", "notice"},
		{"start-zoom", "start-zoom"},
		{"tile-url", "tile-url"},
		{"cache-format", "cache-format"},
		{"workers", "workers"},
		{"rate", "rate"},
		{"retries", "retries"},
		{"timeout", "timeout"},
		{"user-agent", "user-agent"},
		{"allow-missing-tiles", "allow-missing-tiles"},
		{"assets", "assets"},
		{"notice-text", "notice-text"},
		{"progress", "progress"},
		{"geojson", "geojson"},
	})
	viper.SetDefault("background", true)
}

// addRenderFlags registers the options of pipeline.Config.
func addRenderFlags(fs *pflag.FlagSet) {
	def := pipeline.DefaultConfig()

	fs.Int("size", def.Size, "Maximum image width and height in tiles")
	fs.Int("border", def.Border, "Border around the track in pixels (reserved, no effect)")
	fs.BoolP("no-background", "b", false, "Draw on a white canvas instead of fetching map tiles")
	fs.String("linecolour", def.LineColour, "Track colour: a CSS colour name or #rrggbb")
	fs.Float64("linewidth", def.LineWidth, "Track line width in pixels")
	fs.StringP("output", "o", def.Filename, "Output PNG file")
	fs.String("renderer", def.Renderer, "Tile style ("+strings.Join(datasource.RendererNames(), ", ")+")")
	fs.String("cache", def.CacheDir, "Tile cache directory")
	fs.String("notice", def.Notice, "Attribution size ("+string(composite.NoticeSmall)+" or "+string(composite.NoticeNormal)+")")

	fs.Int("start-zoom", def.StartZoom, "Highest zoom level to consider")
	fs.String("tile-url", "", "Tile URL template ({z}/{x}/{y}, optional {s}) overriding --renderer")
	fs.String("cache-format", def.CacheFormat, "Tile cache backend: dir or mbtiles")
	fs.Int("workers", def.Workers, "Parallel tile downloads")
	fs.Float64("rate", def.Rate, "Maximum tile requests per second")
	fs.Int("retries", def.Retries, "Download attempts per tile")
	fs.Duration("timeout", def.Timeout, "HTTP timeout per tile request")
	fs.String("user-agent", def.UserAgent, "User-Agent sent to the tile server")
	fs.Bool("allow-missing-tiles", false, "Replace tiles that cannot be fetched with a blank placeholder")
	fs.String("assets", def.AssetsDir, "Directory with cc-by-sa.<notice>.png and osm.png")
	fs.Bool("notice-text", false, "Also write the attribution as text in the bottom-left corner")
	fs.Bool("progress", false, "Show a progress bar while downloading tiles")
	fs.String("geojson", "", "Also write the track and tile grid as GeoJSON to this file")
}

// flagBinding maps a viper key to a flag name.
type flagBinding struct {
	key  string
	flag string
}

func bindFlags(fs *pflag.FlagSet, flags []flagBinding) {
	for _, bf := range flags {
		if err := viper.BindPFlag(bf.key, fs.Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("GPX2PNG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// configFromViper builds the render configuration from flags, environment
// and config file.
func configFromViper(v *viper.Viper) pipeline.Config {
	return pipeline.Config{
		Size:              v.GetInt("size"),
		Border:            v.GetInt("border"),
		Background:        v.GetBool("background") && !v.GetBool("no-background"),
		LineColour:        v.GetString("linecolour"),
		LineWidth:         v.GetFloat64("linewidth"),
		Filename:          v.GetString("filename"),
		Renderer:          v.GetString("renderer"),
		CacheDir:          v.GetString("cache"),
		Notice:            v.GetString("notice"),
		StartZoom:         v.GetInt("start-zoom"),
		TileURL:           v.GetString("tile-url"),
		CacheFormat:       v.GetString("cache-format"),
		Workers:           v.GetInt("workers"),
		Rate:              v.GetFloat64("rate"),
		Retries:           v.GetInt("retries"),
		Timeout:           v.GetDuration("timeout"),
		UserAgent:         v.GetString("user-agent"),
		AllowMissingTiles: v.GetBool("allow-missing-tiles"),
		AssetsDir:         v.GetString("assets"),
		NoticeText:        v.GetBool("notice-text"),
		Progress:          v.GetBool("progress"),
	}
}
