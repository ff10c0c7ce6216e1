package verify

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CollectionSource locates a path collection: a collection JSON file, a URL
// serving the same document, or a segmentation JSON file exported into paths.
type CollectionSource struct {
	File         string `yaml:"file,omitempty" json:"file,omitempty"`
	URL          string `yaml:"url,omitempty" json:"url,omitempty"`
	Segmentation string `yaml:"segmentation,omitempty" json:"segmentation,omitempty"`
	Label        string `yaml:"label,omitempty" json:"label,omitempty"` // Overrides the collection name
	Trim         bool   `yaml:"trim,omitempty" json:"trim,omitempty"`   // Apply the trim settings before fitting
}

// MQTTConfig holds MQTT connection settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// OutputConfig controls where result tables and renders are written.
type OutputConfig struct {
	Dir              string  `yaml:"dir" json:"dir"`
	RenderResolution float64 `yaml:"renderResolution,omitempty" json:"renderResolution,omitempty"` // PNG dots per mm (default 10)
	SimplifyEpsilon  float64 `yaml:"simplifyEpsilon,omitempty" json:"simplifyEpsilon,omitempty"`   // Render polyline tolerance in mm (default 0.1)
}

// Config represents the full configuration file
type Config struct {
	Reference    CollectionSource   `yaml:"reference" json:"reference"`
	Compare      []CollectionSource `yaml:"compare" json:"compare"`
	Trim         TrimConfig         `yaml:"trim" json:"trim"`
	Fit          FitConfig          `yaml:"fit" json:"fit"`
	Registration RegistrationConfig `yaml:"registration" json:"registration"`
	MQTT         MQTTConfig         `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	CachePath    string             `yaml:"cachePath,omitempty" json:"cachePath,omitempty"`
	ResultsPath  string             `yaml:"resultsPath,omitempty" json:"resultsPath,omitempty"` // Persist results here; empty keeps them in memory only
}

// DefaultConfig returns a configuration with every tunable at its default.
func DefaultConfig() *Config {
	return &Config{
		Trim:         DefaultTrimConfig(),
		Fit:          DefaultFitConfig(),
		Registration: DefaultRegistrationConfig(),
		Output: OutputConfig{
			Dir:              ".",
			RenderResolution: 10,
			SimplifyEpsilon:  0.1,
		},
		CachePath: DefaultRegistrationCachePath,
	}
}

// LoadConfig loads and validates the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	config, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadConfig parses a YAML config file without validating it. Omitted keys
// keep their defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return config, nil
}

// Validate checks required fields and parameter ranges.
func (c *Config) Validate() error {
	if err := c.Reference.validate("reference"); err != nil {
		return err
	}
	if len(c.Compare) == 0 {
		return fmt.Errorf("at least one compare collection must be defined")
	}
	for i, src := range c.Compare {
		if err := src.validate(fmt.Sprintf("compare[%d]", i)); err != nil {
			return err
		}
	}

	switch c.Trim.Mode {
	case TrimDirectionalMode, TrimFarthestPairMode, "":
	default:
		return fmt.Errorf("trim.mode %q: %w", c.Trim.Mode, ErrUnknownTrimMode)
	}
	if c.Trim.NearTrim < 0 || c.Trim.FarTrim < 0 || c.Trim.TrimDistance < 0 {
		return fmt.Errorf("trim distances must not be negative")
	}

	if err := c.Fit.Validate(); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	icp := c.Registration.ICP
	if icp.MaxIterations <= 0 {
		return fmt.Errorf("registration.icp.maxIterations must be positive")
	}
	if icp.Tolerance <= 0 || icp.DivergenceTolerance < 0 {
		return fmt.Errorf("registration.icp tolerances must be positive")
	}
	return nil
}

func (s CollectionSource) validate(field string) error {
	set := 0
	for _, v := range []string{s.File, s.URL, s.Segmentation} {
		if v != "" {
			set++
		}
	}
	if set == 0 {
		return fmt.Errorf("%s.file, %s.url or %s.segmentation is required", field, field, field)
	}
	if set > 1 {
		return fmt.Errorf("%s: set only one of file, url and segmentation", field)
	}
	if s.Segmentation != "" && s.Label == "" {
		return fmt.Errorf("%s.label is required for segmentation sources", field)
	}
	return nil
}

// Load reads the collection the source points at.
func (s CollectionSource) Load(ctx context.Context) (*PathCollection, error) {
	var c *PathCollection
	if s.URL != "" {
		c, err := FetchCollection(ctx, s.URL)
		if err != nil {
			return nil, err
		}
		if s.Label != "" {
			c.Name = s.Label
		}
		return c, nil
	}
	if s.Segmentation != "" {
		seg, err := ParseSegmentationFile(s.Segmentation)
		if err != nil {
			return nil, fmt.Errorf("segmentation %s: %w", s.Segmentation, err)
		}
		c = NewPathCollection(s.Label)
		if _, err := ExportSegmentation(seg, c); err != nil {
			return nil, err
		}
		return c, nil
	}

	c, err := ParseCollectionFile(s.File)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", s.File, err)
	}
	if s.Label != "" {
		c.Name = s.Label
	}
	return c, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
