package verify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultRegistrationCachePath is the default path for the registration cache
const DefaultRegistrationCachePath = ".registration-cache.json"

// RegistrationEntry is the persisted outcome of one registration.
type RegistrationEntry struct {
	CompareToInitial   RigidTransform `json:"compareToInitial"`
	InitialToReference RigidTransform `json:"initialToReference"`
	CompareToReference RigidTransform `json:"compareToReference"`
	LandmarkRMS        float64        `json:"landmarkRms"`
	RMS                float64        `json:"rms"`
	Iterations         int            `json:"iterations"`
	LastUpdated        int64          `json:"lastUpdated"`
}

// RegistrationCache holds registrations of compare collections keyed by name
// against a single reference collection.
type RegistrationCache struct {
	Reference   string                       `json:"reference"`
	Entries     map[string]RegistrationEntry `json:"entries"`
	LastUpdated int64                        `json:"lastUpdated"`
}

// NewRegistrationCache creates an empty cache for reference.
func NewRegistrationCache(reference string) *RegistrationCache {
	return &RegistrationCache{
		Reference: reference,
		Entries:   make(map[string]RegistrationEntry),
	}
}

// LoadRegistrationCache loads a registration cache from a JSON file.
// A missing file is not an error; it returns nil.
func LoadRegistrationCache(path string) (*RegistrationCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading registration cache: %w", err)
	}

	var cache RegistrationCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing registration cache: %w", err)
	}
	if cache.Entries == nil {
		cache.Entries = make(map[string]RegistrationEntry)
	}
	return &cache, nil
}

// SaveRegistrationCache writes the cache as JSON, creating parent directories.
func SaveRegistrationCache(path string, cache *RegistrationCache) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating registration cache directory: %w", err)
	}

	cache.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registration cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing registration cache: %w", err)
	}
	return nil
}

// ForReference returns c when it holds registrations against reference, and a
// new empty cache for reference otherwise.
func (c *RegistrationCache) ForReference(reference string) *RegistrationCache {
	if c != nil && c.Reference == reference {
		return c
	}
	if c != nil && c.Reference != "" {
		log.Printf("[REGISTER] Registration cache was for reference %q, starting a new one for %q", c.Reference, reference)
	}
	return NewRegistrationCache(reference)
}

// Get returns the cached entry for a compare collection.
func (c *RegistrationCache) Get(compare string) (RegistrationEntry, bool) {
	if c == nil || c.Entries == nil {
		return RegistrationEntry{}, false
	}
	e, ok := c.Entries[compare]
	return e, ok
}

// Update records a refined registration. The cache reference must match.
func (c *RegistrationCache) Update(r *Registration) error {
	if r == nil || r.Reference == nil || r.Compare == nil {
		return ErrNilCollection
	}
	if r.State() != StateRefined {
		return fmt.Errorf("caching requires %s, registration is %s: %w", StateRefined, r.State(), ErrInvalidState)
	}
	if c.Reference == "" {
		c.Reference = r.Reference.Name
	}
	if c.Reference != r.Reference.Name {
		return fmt.Errorf("cache is for %q, registration uses %q: %w", c.Reference, r.Reference.Name, ErrCacheReferenceMismatch)
	}
	if c.Entries == nil {
		c.Entries = make(map[string]RegistrationEntry)
	}
	c.Entries[r.Compare.Name] = RegistrationEntry{
		CompareToInitial:   r.CompareToInitial,
		InitialToReference: r.InitialToReference,
		CompareToReference: r.CompareToReference,
		LandmarkRMS:        r.LandmarkRMS,
		RMS:                r.ICP.RMS,
		Iterations:         r.ICP.Iterations,
		LastUpdated:        time.Now().Unix(),
	}
	return nil
}

// Compares returns the cached compare names in sorted order.
func (c *RegistrationCache) Compares() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Entries))
	for name := range c.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NeedsRefresh reports whether the entry for compare is missing or older than maxAge.
func (c *RegistrationCache) NeedsRefresh(compare string, maxAge time.Duration) bool {
	e, ok := c.Get(compare)
	if !ok || e.LastUpdated == 0 {
		return true
	}
	return time.Since(time.Unix(e.LastUpdated, 0)) > maxAge
}
