// Command pixetl materializes a raster layer across its destination grid's
// tiles: it loads the layer's source manifest, runs each candidate tile
// through the filter/transform/upload pipeline, and reports which tiles
// succeeded, were skipped, or failed.
//
// Entrypoint shape (flag parsing, subcommand dispatch, signal-driven
// cancellation, showHelp() text block) is grounded on the tile-service
// template's main.go.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func main() {
	help := flag.Bool("help", false, "Show this help message")
	debug := flag.Bool("debug", false, "Enable debug logging")
	configPath := flag.String("config", ".env", "Path to config file")
	flag.Parse()

	args := flag.Args()
	if *help || len(args) == 0 {
		showHelp()
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	command := args[0]
	rest := args[1:]

	var code int
	switch command {
	case "run":
		code = cmdRun(rest, *configPath)
	case "verify":
		code = cmdVerify(rest, *configPath)
	default:
		slog.Error("unknown command", "command", command)
		showHelp()
		code = 1
	}
	os.Exit(code)
}

// reorderFlagsFirst moves flag arguments before positional arguments so Go's
// flag package parses them correctly. Go's flag stops at the first non-flag
// arg, but this module's CLI contract puts the positional `name` argument
// before its flags (`pixetl run aqueduct_erosion_risk -v v201911 ...`).
// boolFlags names the flags (without leading dashes) that take no value,
// since the template's original version assumed every flag consumes the
// following token and this command line also carries `-o`/`--overwrite`.
func reorderFlagsFirst(args []string, boolFlags map[string]bool) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			name := strings.TrimLeft(args[i], "-")
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				name = name[:eq]
			}
			if !strings.Contains(args[i], "=") && !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func showHelp() {
	fmt.Print(`pixetl - materialize a raster layer across a destination tile grid

Usage:
  pixetl [global options] <command> [command options]

Global Options:
  -config string   Path to .env configuration file (default ".env")
  -debug           Enable debug logging
  -help            Show this help message

Commands:
  run       Run the filter/transform/upload pipeline for a layer
  verify    Spot-check a previously uploaded layer's tiles

Run Command:
  Usage: pixetl run NAME [options]

  NAME is the dataset name, e.g. aqueduct_erosion_risk (ignored if -l is given).

  Options:
    -v, --version string        Version of dataset, e.g. v201911 (required)
    -s, --source_type string    raster, vector, or tcd_raster (default "raster")
    -f, --field string          Field represented in output dataset
    -g, --grid_name string      Grid size of output dataset, e.g. 1/4000
    -o, --overwrite             Overwrite existing tile in output location
    --subset string             Tile id to restrict the run to (repeatable)
    -l, --layer string          Path to a layer spec JSON file, in place of
                                 NAME and the flags above
    -data-type string           Output data type, e.g. uint8, float32
    -nodata string               NoData value, empty for none
    -resampling string          Resampling method (default "nearest")
    -calc string                Calc expression, empty for identity
    -compression string         GeoTIFF compression (default "deflate")
    -manifest string            Manifest URI (GeoJSON FeatureCollection)
    -base-divisor int           Window-planning base divisor (default 8)

Verify Command:
  Usage: pixetl verify DATASET VERSION [options]

  Options:
    -pixel-meaning string  Pixel meaning / field name (required)
    -grid-id string        Destination grid id
    -subset string         Tile id to check (repeatable)
    -sample-every int      Re-open every Nth tile for a dimension check (default 10)
`)
}
