package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kwv/pathverify/verify"
)

// transformEntry is one row of /transform.json.
type transformEntry struct {
	Reference          string                `json:"reference"`
	Compare            string                `json:"compare"`
	CompareToInitial   verify.RigidTransform `json:"compareToInitial"`
	InitialToReference verify.RigidTransform `json:"initialToReference"`
	CompareToReference verify.RigidTransform `json:"compareToReference"`
	RotationDegrees    float64               `json:"rotationDegrees"`
	LandmarkRMS        float64               `json:"landmarkRms"`
	RMS                float64               `json:"rms"`
	Iterations         int                   `json:"iterations"`
	Error              string                `json:"error,omitempty"`
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *verify.ResultStore, config *verify.Config) http.Handler {
	mux := http.NewServeMux()

	dpmm, epsilon := 0.0, 0.0
	if config != nil {
		dpmm = config.Output.RenderResolution
		epsilon = config.Output.SimplifyEpsilon
	}

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			HasResults bool      `json:"hasResults"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			HasResults: store.HasResults(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	mux.HandleFunc("/summary.json", func(w http.ResponseWriter, r *http.Request) {
		if !store.HasResults() {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		summary := store.Tables().Summary
		if summary == nil {
			summary = []verify.SummaryRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			log.Printf("Error encoding summary JSON: %v", err)
		}
	})

	mux.HandleFunc("/summary.csv", func(w http.ResponseWriter, r *http.Request) {
		if !store.HasResults() {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Cache-Control", "no-cache")
		if err := verify.WriteSummaryCSV(w, store.Tables().Summary); err != nil {
			log.Printf("Error writing summary CSV: %v", err)
		}
	})

	mux.HandleFunc("/distances.csv", func(w http.ResponseWriter, r *http.Request) {
		if !store.HasResults() {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Cache-Control", "no-cache")
		if err := verify.WriteDistancesCSV(w, store.Tables().Distances); err != nil {
			log.Printf("Error writing distances CSV: %v", err)
		}
	})

	mux.HandleFunc("/transform.json", func(w http.ResponseWriter, r *http.Request) {
		results := store.Results()
		if len(results) == 0 {
			http.Error(w, "No results available", http.StatusServiceUnavailable)
			return
		}
		entries := make([]transformEntry, 0, len(results))
		for _, res := range results {
			entries = append(entries, transformEntry{
				Reference:          res.Reference,
				Compare:            res.Compare,
				CompareToInitial:   res.CompareToInitial,
				InitialToReference: res.InitialToReference,
				CompareToReference: res.CompareToReference,
				RotationDegrees:    res.CompareToReference.RotationAngleDeg(),
				LandmarkRMS:        res.LandmarkRMS,
				RMS:                res.ICPRMS,
				Iterations:         res.ICPIterations,
				Error:              res.Error,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Printf("Error encoding transforms: %v", err)
		}
	})

	// Vector render of the reference and registered compare curves
	mux.HandleFunc("/paths.svg", func(w http.ResponseWriter, r *http.Request) {
		renderer, err := store.Renderer(dpmm, epsilon)
		if err != nil || len(renderer.Curves()) == 0 {
			http.Error(w, "No paths available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Printf("Error encoding paths SVG: %v", err)
		}
	})

	mux.HandleFunc("/paths.png", func(w http.ResponseWriter, r *http.Request) {
		renderer, err := store.Renderer(dpmm, epsilon)
		if err != nil || len(renderer.Curves()) == 0 {
			http.Error(w, "No paths available", http.StatusServiceUnavailable)
			return
		}
		renderer.Labels = true
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToPNG(w); err != nil {
			log.Printf("Error encoding paths PNG: %v", err)
		}
	})

	mux.HandleFunc("/paths.geojson", func(w http.ResponseWriter, r *http.Request) {
		renderer, err := store.Renderer(dpmm, epsilon)
		if err != nil || len(renderer.Curves()) == 0 {
			http.Error(w, "No paths available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToGeoJSON(w); err != nil {
			log.Printf("Error encoding paths GeoJSON: %v", err)
		}
	})

	// Default route serves HTML page embedding the SVG render
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>pathverify</title>
<style>
body{margin:0;font-family:sans-serif;background:#fafafa}
img{display:block;max-width:100vw;max-height:80vh;margin:auto}
nav{padding:8px}
</style>
</head>
<body>
<nav><a href="/summary.csv">summary.csv</a> | <a href="/distances.csv">distances.csv</a> | <a href="/transform.json">transform.json</a> | <a href="/paths.geojson">paths.geojson</a></nav>
<img src="/paths.svg" alt="Registered paths">
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}
