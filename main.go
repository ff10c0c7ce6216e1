package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line.
type AppOptions struct {
	ConfigFile     string
	ReferenceFile  string
	CompareFiles   []string
	OutputDir      string
	CachePath      string
	CacheMaxAge    time.Duration
	ResultsPath    string
	UseCache       bool
	RenderOnly     bool
	OutputFile     string
	RenderFormat   string
	TrimMode       string
	NearTrim       float64
	FarTrim        float64
	TrimDistance   float64
	AllowCollinear bool
	MqttMode       bool
	DryRun         bool
	HttpMode       bool
	HttpPort       int
}

// Runner is implemented by App; tests substitute a recorder.
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunVerify() error
	RunRender() error
	RunService() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		log.Fatal(err)
	}
}

// run parses args, hands the options to app and dispatches to the selected mode.
func run(args []string, stdout io.Writer, app Runner) error {
	fs := flag.NewFlagSet("pathverify", flag.ContinueOnError)
	fs.SetOutput(stdout)

	var opts AppOptions
	var compare string
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.ReferenceFile, "reference", "", "Reference path collection JSON (overrides config)")
	fs.StringVar(&compare, "compare", "", "Comma separated compare path collection JSON files (overrides config)")
	fs.StringVar(&opts.OutputDir, "output-dir", "", "Directory for CSV tables (overrides config)")
	fs.StringVar(&opts.CachePath, "cache", "", "Registration cache file (overrides config)")
	fs.DurationVar(&opts.CacheMaxAge, "cache-max-age", 24*time.Hour, "Reuse cached registrations younger than this")
	fs.BoolVar(&opts.UseCache, "use-cache", false, "Reuse cached registrations instead of registering again")
	fs.StringVar(&opts.ResultsPath, "results", "", "Persist verification results to this JSON file (overrides config)")
	fs.BoolVar(&opts.RenderOnly, "render", false, "Verify, then render the registered paths and exit")
	fs.StringVar(&opts.OutputFile, "output", "paths.svg", "Output file for --render mode")
	fs.StringVar(&opts.RenderFormat, "format", "", "Render format: svg, png or geojson (default: from --output extension)")
	fs.StringVar(&opts.TrimMode, "trim-mode", "", "Trim mode: directional or farthest-pair (overrides config)")
	fs.Float64Var(&opts.NearTrim, "near-trim", 0, "Directional near trim in mm")
	fs.Float64Var(&opts.FarTrim, "far-trim", 0, "Directional far trim in mm")
	fs.Float64Var(&opts.TrimDistance, "trim-distance", 0, "Farthest-pair trim radius in mm")
	fs.BoolVar(&opts.AllowCollinear, "allow-collinear", false, "Accept collinear end landmarks (single straight path)")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Publish results to MQTT")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Log MQTT messages instead of sending them")
	fs.BoolVar(&opts.HttpMode, "http", false, "Serve results over HTTP until interrupted")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port (default 8080)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if compare != "" {
		for _, f := range strings.Split(compare, ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.CompareFiles = append(opts.CompareFiles, f)
			}
		}
	}

	fmt.Fprintf(stdout, "pathverify version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.HttpMode:
		return app.RunService()
	case opts.RenderOnly:
		return app.RunRender()
	default:
		return app.RunVerify()
	}
}
