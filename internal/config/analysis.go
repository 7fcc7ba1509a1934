package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical analysis defaults file.
const DefaultConfigPath = "config/canopy.defaults.json"

// AnalysisConfig is the JSON configuration of the canopy tool. Every field
// is optional; the Get* methods supply the defaults for omitted fields, and
// command-line flags override both.
type AnalysisConfig struct {
	// Product parameters
	CHMResolution   *float64 `json:"chm_resolution,omitempty"`
	CoverResolution *float64 `json:"cover_resolution,omitempty"`
	HeightThreshold *float64 `json:"height_threshold,omitempty"`

	// Ground classification
	PDALBinary      *string     `json:"pdal_binary,omitempty"`
	ClassifyTimeout *string     `json:"classify_timeout,omitempty"` // duration string like "10m"
	SMRF            *SMRFConfig `json:"smrf,omitempty"`
	TempDir         *string     `json:"temp_dir,omitempty"`

	// Output
	GTiffCreationOptions []string `json:"gtiff_creation_options,omitempty"`

	// Run history
	DBPath *string `json:"db_path,omitempty"`
	Listen *string `json:"listen,omitempty"`
}

// SMRFConfig overrides the PDAL SMRF ground filter settings. Unset fields
// keep PDAL's own defaults.
type SMRFConfig struct {
	Slope     *float64 `json:"slope,omitempty"`
	Window    *float64 `json:"window,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Scalar    *float64 `json:"scalar,omitempty"`
}

// EmptyAnalysisConfig returns an AnalysisConfig with all fields unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. The file must
// have a .json extension and be under 1MB. Fields omitted from the file keep
// their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents up to the repository
// root. Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/lidar/pipeline/
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positive(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return fmt.Errorf("%s must be a positive number, got %v", name, *v)
	}
	return nil
}

// Validate checks that the configured values are usable. Product-specific
// ranges are checked when the analysis parameters are built.
func (c *AnalysisConfig) Validate() error {
	for name, v := range map[string]*float64{
		"chm_resolution":   c.CHMResolution,
		"cover_resolution": c.CoverResolution,
		"height_threshold": c.HeightThreshold,
	} {
		if err := positive(name, v); err != nil {
			return err
		}
	}

	if c.SMRF != nil {
		for name, v := range map[string]*float64{
			"smrf.slope":     c.SMRF.Slope,
			"smrf.window":    c.SMRF.Window,
			"smrf.threshold": c.SMRF.Threshold,
			"smrf.scalar":    c.SMRF.Scalar,
		} {
			if err := positive(name, v); err != nil {
				return err
			}
		}
	}

	if c.PDALBinary != nil && *c.PDALBinary == "" {
		return fmt.Errorf("pdal_binary must not be empty")
	}

	if c.ClassifyTimeout != nil && *c.ClassifyTimeout != "" {
		d, err := time.ParseDuration(*c.ClassifyTimeout)
		if err != nil {
			return fmt.Errorf("invalid classify_timeout '%s': %w", *c.ClassifyTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("classify_timeout must be non-negative, got %s", d)
		}
	}

	for _, opt := range c.GTiffCreationOptions {
		if !validCreationOption(opt) {
			return fmt.Errorf("gtiff_creation_options entry %q must be KEY=VALUE", opt)
		}
	}

	return nil
}

func validCreationOption(opt string) bool {
	for i := 1; i < len(opt)-1; i++ {
		if opt[i] == '=' {
			return true
		}
	}
	return false
}

// GetCHMResolution returns the chm_resolution value or the default.
func (c *AnalysisConfig) GetCHMResolution() float64 {
	if c.CHMResolution == nil {
		return 1.0
	}
	return *c.CHMResolution
}

// GetCoverResolution returns the cover_resolution value or the default.
func (c *AnalysisConfig) GetCoverResolution() float64 {
	if c.CoverResolution == nil {
		return 10.0
	}
	return *c.CoverResolution
}

// GetHeightThreshold returns the height_threshold value or the default.
func (c *AnalysisConfig) GetHeightThreshold() float64 {
	if c.HeightThreshold == nil {
		return 2.0
	}
	return *c.HeightThreshold
}

// GetPDALBinary returns the pdal_binary value or the default.
func (c *AnalysisConfig) GetPDALBinary() string {
	if c.PDALBinary == nil {
		return "pdal"
	}
	return *c.PDALBinary
}

// GetClassifyTimeout parses and returns the ClassifyTimeout. Zero means no
// limit.
func (c *AnalysisConfig) GetClassifyTimeout() time.Duration {
	if c.ClassifyTimeout == nil || *c.ClassifyTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.ClassifyTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetSMRF returns the SMRF overrides, never nil.
func (c *AnalysisConfig) GetSMRF() SMRFConfig {
	if c.SMRF == nil {
		return SMRFConfig{}
	}
	return *c.SMRF
}

// GetTempDir returns the temp_dir value; empty selects the OS default.
func (c *AnalysisConfig) GetTempDir() string {
	if c.TempDir == nil {
		return ""
	}
	return *c.TempDir
}

// GetGTiffCreationOptions returns the GeoTIFF creation options or the
// default tiled, deflate-compressed layout.
func (c *AnalysisConfig) GetGTiffCreationOptions() []string {
	if len(c.GTiffCreationOptions) == 0 {
		return []string{"TILED=YES", "COMPRESS=DEFLATE"}
	}
	return c.GTiffCreationOptions
}

// GetDBPath returns the db_path value or the default.
func (c *AnalysisConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "canopy.db"
	}
	return *c.DBPath
}

// GetListen returns the listen value or the default.
func (c *AnalysisConfig) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}
