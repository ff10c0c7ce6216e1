package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Result is the outcome of verifying one compare collection.
type Result struct {
	Reference          string         `json:"reference"`
	Compare            string         `json:"compare"`
	CompareToInitial   RigidTransform `json:"compareToInitial"`
	InitialToReference RigidTransform `json:"initialToReference"`
	CompareToReference RigidTransform `json:"compareToReference"`
	LandmarkRMS        float64        `json:"landmarkRms"`
	ICPRMS             float64        `json:"icpRms"`
	ICPIterations      int            `json:"icpIterations"`
	Tables             Tables         `json:"tables"`
	Error              string         `json:"error,omitempty"`
	Timestamp          time.Time      `json:"timestamp"`
}

// NewResult captures a registration and its statistics.
func NewResult(r *Registration, tables Tables, statsErr error) *Result {
	res := &Result{
		Reference:          r.Reference.Name,
		Compare:            r.Compare.Name,
		CompareToInitial:   r.CompareToInitial,
		InitialToReference: r.InitialToReference,
		CompareToReference: r.CompareToReference,
		LandmarkRMS:        r.LandmarkRMS,
		ICPRMS:             r.ICP.RMS,
		ICPIterations:      r.ICP.Iterations,
		Tables:             tables,
		Timestamp:          time.Now(),
	}
	if statsErr != nil {
		res.Error = statsErr.Error()
	}
	return res
}

// ResultStore keeps the latest results and the collections they were computed
// from, for the HTTP endpoints. It is safe for concurrent use.
type ResultStore struct {
	mu        sync.RWMutex
	reference *PathCollection
	compares  map[string]*PathCollection
	results   map[string]*Result
	cachePath string // results are persisted here after every update; empty disables
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		compares: make(map[string]*PathCollection),
		results:  make(map[string]*Result),
	}
}

// NewResultStoreWithCache creates a store persisting results to cachePath.
// Results already in the file are loaded; collections are not persisted.
func NewResultStoreWithCache(cachePath string) *ResultStore {
	st := NewResultStore()
	st.cachePath = cachePath
	if cachePath != "" {
		if results, err := LoadResults(cachePath); err == nil {
			for _, r := range results {
				st.results[r.Compare] = r
			}
		}
	}
	return st
}

// SetReference replaces the reference collection.
func (st *ResultStore) SetReference(c *PathCollection) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reference = c
}

// Update stores a result together with the compare collection it came from.
func (st *ResultStore) Update(compare *PathCollection, res *Result) error {
	st.mu.Lock()
	st.compares[res.Compare] = compare
	st.results[res.Compare] = res
	path := st.cachePath
	results := st.sortedResultsLocked()
	st.mu.Unlock()

	if path == "" {
		return nil
	}
	return SaveResults(path, results)
}

// Results returns every stored result ordered by compare name.
func (st *ResultStore) Results() []*Result {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sortedResultsLocked()
}

func (st *ResultStore) sortedResultsLocked() []*Result {
	names := make([]string, 0, len(st.results))
	for name := range st.results {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*Result, len(names))
	for i, name := range names {
		out[i] = st.results[name]
	}
	return out
}

// Result returns the result for one compare collection.
func (st *ResultStore) Result(compare string) (*Result, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	r, ok := st.results[compare]
	return r, ok
}

// HasResults reports whether any result is stored.
func (st *ResultStore) HasResults() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.results) > 0
}

// Tables concatenates the tables of every result.
func (st *ResultStore) Tables() Tables {
	var t Tables
	for _, r := range st.Results() {
		t.Distances = append(t.Distances, r.Tables.Distances...)
		t.Summary = append(t.Summary, r.Tables.Summary...)
	}
	return t
}

// Renderer builds a PathRenderer over the reference and every registered
// compare collection held in memory. Compare curves are drawn through the
// registration transform they observe.
func (st *ResultStore) Renderer(dpmm, simplifyEpsilon float64) (*PathRenderer, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.reference == nil {
		return nil, fmt.Errorf("no reference collection loaded")
	}
	r := NewPathRenderer(dpmm, simplifyEpsilon)
	r.AddReference(st.reference)
	for _, res := range st.sortedResultsLocked() {
		if c, ok := st.compares[res.Compare]; ok && c != nil {
			r.AddCompare(c)
		}
	}
	return r, nil
}

// SaveResults writes results as JSON.
func SaveResults(path string, results []*Result) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// LoadResults reads results written by SaveResults.
func LoadResults(path string) ([]*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var results []*Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("unmarshal results: %w", err)
	}
	return results, nil
}
