package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kwv/pathverify/verify"
)

// App encapsulates the application state and dependencies
type App struct {
	Config    *verify.Config
	Cache     *verify.RegistrationCache
	Store     *verify.ResultStore
	Publisher *verify.Publisher
	Fitter    verify.Fitter

	opts   AppOptions
	dryRun *verify.MockClient // records messages in --dry-run mode
	mu     sync.Mutex
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Store:  verify.NewResultStore(),
		Fitter: verify.MLSFitter{},
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.opts = opts
}

// loadConfig reads the config file when present, layers the CLI overrides on
// top and validates the result.
func (a *App) loadConfig() error {
	cfg := verify.DefaultConfig()
	if _, err := os.Stat(a.opts.ConfigFile); err == nil {
		loaded, err := verify.ReadConfig(a.opts.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading config %s: %w", a.opts.ConfigFile, err)
		}
		cfg = loaded
		log.Printf("Loaded config from %s", a.opts.ConfigFile)
	}

	if a.opts.ReferenceFile != "" {
		cfg.Reference = verify.CollectionSource{File: a.opts.ReferenceFile, Trim: cfg.Reference.Trim}
	}
	if len(a.opts.CompareFiles) > 0 {
		cfg.Compare = nil
		for _, f := range a.opts.CompareFiles {
			cfg.Compare = append(cfg.Compare, verify.CollectionSource{File: f})
		}
	}
	if a.opts.OutputDir != "" {
		cfg.Output.Dir = a.opts.OutputDir
	}
	if a.opts.CachePath != "" {
		cfg.CachePath = a.opts.CachePath
	}
	if a.opts.ResultsPath != "" {
		cfg.ResultsPath = a.opts.ResultsPath
	}
	if a.opts.TrimMode != "" {
		cfg.Trim.Mode = verify.TrimMode(a.opts.TrimMode)
		cfg.Reference.Trim = true
		for i := range cfg.Compare {
			cfg.Compare[i].Trim = true
		}
	}
	if a.opts.NearTrim > 0 {
		cfg.Trim.NearTrim = a.opts.NearTrim
	}
	if a.opts.FarTrim > 0 {
		cfg.Trim.FarTrim = a.opts.FarTrim
	}
	if a.opts.TrimDistance > 0 {
		cfg.Trim.TrimDistance = a.opts.TrimDistance
	}
	if a.opts.AllowCollinear {
		cfg.Registration.AllowCollinearLandmarks = true
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.Config = cfg

	if cfg.ResultsPath != "" {
		a.Store = verify.NewResultStoreWithCache(cfg.ResultsPath)
		log.Printf("Persisting results to %s (%d loaded)", cfg.ResultsPath, len(a.Store.Results()))
	}

	cache, err := verify.LoadRegistrationCache(cfg.CachePath)
	if err != nil {
		log.Printf("Warning: Failed to load registration cache %s: %v", cfg.CachePath, err)
	}
	if cache == nil {
		cache = verify.NewRegistrationCache("")
	}
	a.Cache = cache
	return nil
}

// setupPublisher connects to MQTT when requested. Dry runs record into a mock
// client and log what would have been sent.
func (a *App) setupPublisher() error {
	if !a.opts.MqttMode && !a.opts.DryRun {
		return nil
	}
	if a.opts.DryRun {
		a.dryRun = verify.NewMockClient()
		a.dryRun.Connect()
		a.Publisher = verify.NewPublisher(a.dryRun, a.Config.MQTT.PublishPrefix)
		return nil
	}
	client, err := verify.ConnectMQTT(a.Config.MQTT)
	if err != nil {
		return err
	}
	if client == nil {
		log.Println("[MQTT] --mqtt given but no broker configured; results will not be published")
		return nil
	}
	a.Publisher = verify.NewPublisher(client, a.Config.MQTT.PublishPrefix)
	return nil
}

// prepare loads, optionally trims and refits one collection.
func (a *App) prepare(ctx context.Context, src verify.CollectionSource) (*verify.PathCollection, error) {
	c, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if src.Trim {
		if _, err := verify.Trim(c, a.Config.Trim); err != nil {
			return nil, fmt.Errorf("trimming %s: %w", c.Name, err)
		}
	}
	if err := c.Refit(a.Fitter, a.Config.Fit); err != nil {
		return nil, err
	}
	log.Printf("[PATHS] %s: %d paths, %d points", c.Name, c.Len(), c.PointCount())
	return c, nil
}

// verifyAll runs the whole pipeline for every compare collection. A failure
// for one compare collection does not stop the others.
func (a *App) verifyAll(ctx context.Context) ([]*verify.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reference, err := a.prepare(ctx, a.Config.Reference)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	a.Store.SetReference(reference)
	a.Cache = a.Cache.ForReference(reference.Name)

	var results []*verify.Result
	var errs []error
	for _, src := range a.Config.Compare {
		compare, err := a.prepare(ctx, src)
		if err != nil {
			errs = append(errs, err)
			log.Printf("Error preparing compare collection: %v", err)
			continue
		}
		res, err := a.verifyOne(reference, compare)
		if err != nil {
			errs = append(errs, err)
			log.Printf("Error verifying %s: %v", compare.Name, err)
			continue
		}
		results = append(results, res)
	}

	if a.Cache != nil && len(results) > 0 {
		if err := verify.SaveRegistrationCache(a.Config.CachePath, a.Cache); err != nil {
			log.Printf("Warning: Failed to save registration cache: %v", err)
		}
	}
	return results, errors.Join(errs...)
}

// verifyOne registers compare onto reference and computes its tables.
func (a *App) verifyOne(reference, compare *verify.PathCollection) (*verify.Result, error) {
	reg := verify.NewRegistration(reference, compare, a.Config.Registration)

	restored := false
	if a.opts.UseCache && !a.Cache.NeedsRefresh(compare.Name, a.opts.CacheMaxAge) {
		entry, _ := a.Cache.Get(compare.Name)
		if err := reg.Restore(entry); err == nil {
			restored = true
			log.Printf("[REGISTER] %s: using cached registration", compare.Name)
		}
	}
	if !restored {
		if err := reg.Run(); err != nil {
			return nil, err
		}
		if err := a.Cache.Update(reg); err != nil {
			log.Printf("Warning: not caching %s: %v", compare.Name, err)
		}
	}

	node, err := verify.PublishRegistration(reg, nil)
	if err != nil {
		return nil, err
	}

	tables, statsErr := verify.ComputeStatistics(reference, compare, node.Matrix())
	if statsErr != nil {
		log.Printf("[STATS] %s: %v", compare.Name, statsErr)
	}
	res := verify.NewResult(reg, tables, statsErr)
	if err := a.Store.Update(compare, res); err != nil {
		log.Printf("Warning: Failed to persist results: %v", err)
	}

	distPath, sumPath, err := verify.WriteTables(a.Config.Output.Dir, compare.Name, tables)
	if err != nil {
		return res, err
	}
	log.Printf("Wrote %s and %s", distPath, sumPath)

	if a.Publisher != nil {
		if err := a.Publisher.PublishTransform(reg); err != nil {
			log.Printf("[MQTT] Error publishing transform for %s: %v", compare.Name, err)
		}
		if err := a.Publisher.PublishSummary(tables.Summary); err != nil {
			log.Printf("[MQTT] Error publishing summary for %s: %v", compare.Name, err)
		}
	}
	return res, nil
}

// RunVerify runs the pipeline once and prints the summary.
func (a *App) RunVerify() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.setupPublisher(); err != nil {
		return err
	}
	results, err := a.verifyAll(context.Background())
	for _, res := range results {
		printSummary(res)
	}
	a.logDryRun()
	return err
}

// RunRender runs the pipeline and renders reference and registered curves.
func (a *App) RunRender() error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if _, err := a.verifyAll(context.Background()); err != nil {
		log.Printf("Warning: %v", err)
	}

	renderer, err := a.Store.Renderer(a.Config.Output.RenderResolution, a.Config.Output.SimplifyEpsilon)
	if err != nil {
		return err
	}

	format := a.opts.RenderFormat
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(a.opts.OutputFile)), ".")
	}

	var render func(io.Writer) error
	switch format {
	case "png":
		render = renderer.RenderToPNG
	case "svg":
		render = renderer.RenderToSVG
	case "geojson", "json":
		render = renderer.RenderToGeoJSON
	default:
		return fmt.Errorf("unknown render format %q (use svg, png or geojson)", format)
	}

	f, err := os.Create(a.opts.OutputFile)
	if err != nil {
		return fmt.Errorf("creating %s: %w", a.opts.OutputFile, err)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return fmt.Errorf("rendering %s: %w", a.opts.OutputFile, err)
	}
	fmt.Printf("Rendered %d curves to %s\n", len(renderer.Curves()), a.opts.OutputFile)
	return nil
}

// RunService verifies once, then serves the results over HTTP until interrupted.
func (a *App) RunService() error {
	fmt.Println("Starting pathverify service...")
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.setupPublisher(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if _, err := a.verifyAll(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.opts.HttpPort),
		Handler:           newHTTPServer(a.Store, a.Config),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[HTTP] Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[HTTP] Server error: %v", err)
		}
	}()

	fmt.Printf("\nHTTP endpoints (port %d):\n", a.opts.HttpPort)
	fmt.Println("  GET /health          - Health check")
	fmt.Println("  GET /summary.json    - Summary rows of every compare collection")
	fmt.Println("  GET /summary.csv     - Summary table")
	fmt.Println("  GET /distances.csv   - Distance table")
	fmt.Println("  GET /transform.json  - Registration transforms")
	fmt.Println("  GET /paths.svg       - XY projection of registered paths")
	fmt.Println("  GET /paths.png       - XY projection with labels")
	fmt.Println("  GET /paths.geojson   - XY projection as GeoJSON")
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down service...")
	return server.Close()
}

// logDryRun prints what a dry run would have published.
func (a *App) logDryRun() {
	if a.dryRun == nil {
		return
	}
	messages := a.dryRun.GetPublishedMessages()
	fmt.Printf("\nDry run: %d messages for prefix %s\n", len(messages), a.Publisher.Prefix())
	for _, msg := range messages {
		fmt.Printf("  %s (%d bytes, retained=%v)\n", msg.Topic, len(msg.Payload), msg.Retain)
	}
}

func printSummary(res *verify.Result) {
	fmt.Printf("\n=== %s -> %s ===\n", res.Compare, res.Reference)
	fmt.Printf("Landmark RMS: %.4f mm, ICP RMS: %.4f mm (%d iterations)\n",
		res.LandmarkRMS, res.ICPRMS, res.ICPIterations)
	fmt.Printf("Rotation: %.3f°, translation: %.3f mm\n",
		res.CompareToReference.RotationAngleDeg(), res.CompareToReference.TranslationPart().Norm())
	fmt.Printf("%-8s %-8s %-10s %-10s %-10s %-10s %-10s\n", "Suffix", "RefSfx", "Length", "Mean", "Stdev", "P95", "Angle°")
	for _, row := range res.Tables.Summary {
		fmt.Printf("%-8d %-8d %-10.3f %-10.4f %-10.4f %-10.4f %-10.3f\n",
			row.Suffix, row.ReferenceSuffix, row.Length, row.Mean, row.Stdev, row.Percentiles[5], row.AngleDifferenceDegrees)
	}
	if res.Error != "" {
		fmt.Printf("Errors: %s\n", res.Error)
	}
}
