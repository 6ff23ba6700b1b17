// Package config loads mesh2sdf settings from YAML files.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/soypat/meshsdf"
	"github.com/soypat/meshsdf/grid"
	"github.com/soypat/meshsdf/preview"
	"gopkg.in/yaml.v3"
)

// Config holds all mesh2sdf configuration.
type Config struct {
	// Sampling and repair
	Grid GridConfig `yaml:"grid"`

	// Where fields are allocated
	Storage StorageConfig `yaml:"storage"`

	// Mesh loading
	Input InputConfig `yaml:"input"`

	// Field and mesh output
	Output OutputConfig `yaml:"output"`

	// Diagnostic images
	Preview PreviewConfig `yaml:"preview"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// GridConfig configures sampling and repair.
type GridConfig struct {
	Size           int     `yaml:"size"`
	Level          float64 `yaml:"level"`
	Fix            bool    `yaml:"fix"`
	ShellPolicy    string  `yaml:"shell_policy"` // containment, largest
	ContainmentTol float64 `yaml:"containment_tol"`
	Workers        int     `yaml:"workers"`
}

// StorageConfig configures field storage.
type StorageConfig struct {
	Kind            string `yaml:"kind"` // memory, disk
	Dir             string `yaml:"dir"`
	LargeFieldBytes int64  `yaml:"large_field_bytes"`
}

// InputConfig configures how input meshes are read.
type InputConfig struct {
	// Normalize fits the mesh in the [-1, 1] cube leaving Margin on each side.
	Normalize     bool    `yaml:"normalize"`
	Margin        float64 `yaml:"margin"`
	WeldTolerance float64 `yaml:"weld_tolerance"`
}

// OutputConfig configures what compute writes.
type OutputConfig struct {
	DType string `yaml:"dtype"` // float64, float32
	// Mesh is an optional path receiving the mesh the field was sampled from.
	Mesh string `yaml:"mesh"`
}

// PreviewConfig configures diagnostic images.
type PreviewConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	MeshPNG   string `yaml:"mesh_png"`
	SlicePNG  string `yaml:"slice_png"`
	SliceAxis string `yaml:"slice_axis"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			Size:           meshsdf.DefaultSize,
			Level:          meshsdf.DefaultLevel,
			ShellPolicy:    meshsdf.ShellContainment.String(),
			ContainmentTol: meshsdf.DefaultContainmentTol,
		},
		Storage: StorageConfig{
			Kind:            meshsdf.StorageMemory.String(),
			LargeFieldBytes: meshsdf.DefaultLargeFieldBytes,
		},
		Input: InputConfig{
			Margin: 0.05,
		},
		Output: OutputConfig{
			DType: "float64",
		},
		Preview: PreviewConfig{
			Width:     800,
			Height:    600,
			SliceAxis: "z",
		},
	}
}

// Load loads configuration from a YAML file on top of the defaults. A missing
// file or empty path yields the defaults. Environment variables override
// file values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies MESH2SDF_* environment variables.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("MESH2SDF_STORAGE_DIR"); dir != "" {
		c.Storage.Dir = dir
	}
	if kind := os.Getenv("MESH2SDF_STORAGE"); kind != "" {
		c.Storage.Kind = kind
	}
	if w := os.Getenv("MESH2SDF_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			c.Grid.Workers = n
		}
	}
}

// Validate checks the configuration for values Compute or the CLI would reject.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.Size < 2 {
		errs = append(errs, fmt.Errorf("grid.size must be at least 2, got %d", c.Grid.Size))
	}
	if c.Grid.Fix && !(c.Grid.Level > 0) {
		errs = append(errs, fmt.Errorf("grid.level must be positive, got %g", c.Grid.Level))
	}
	if _, err := meshsdf.ParseShellPolicy(c.Grid.ShellPolicy); err != nil {
		errs = append(errs, fmt.Errorf("grid.shell_policy: %w", err))
	}
	if c.Grid.ContainmentTol < 0 || math.IsNaN(c.Grid.ContainmentTol) {
		errs = append(errs, fmt.Errorf("grid.containment_tol must not be negative, got %g", c.Grid.ContainmentTol))
	}
	if c.Grid.Workers < 0 {
		errs = append(errs, fmt.Errorf("grid.workers must not be negative, got %d", c.Grid.Workers))
	}
	if _, err := c.Storage.kind(); err != nil {
		errs = append(errs, err)
	}
	if c.Storage.LargeFieldBytes < 0 {
		errs = append(errs, fmt.Errorf("storage.large_field_bytes must not be negative, got %d", c.Storage.LargeFieldBytes))
	}
	if c.Input.Margin < 0 || c.Input.Margin >= 1 {
		errs = append(errs, fmt.Errorf("input.margin must be in [0, 1), got %g", c.Input.Margin))
	}
	if c.Input.WeldTolerance < 0 {
		errs = append(errs, fmt.Errorf("input.weld_tolerance must not be negative, got %g", c.Input.WeldTolerance))
	}
	if _, err := c.Output.NPYType(); err != nil {
		errs = append(errs, err)
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		errs = append(errs, fmt.Errorf("preview dimensions must be positive, got %dx%d", c.Preview.Width, c.Preview.Height))
	}
	if _, err := preview.ParseAxis(c.Preview.SliceAxis); err != nil {
		errs = append(errs, fmt.Errorf("preview.slice_axis: %w", err))
	}
	return errors.Join(errs...)
}

func (s StorageConfig) kind() (meshsdf.Storage, error) {
	switch strings.ToLower(s.Kind) {
	case "", "memory":
		return meshsdf.StorageMemory, nil
	case "disk":
		return meshsdf.StorageDisk, nil
	}
	return 0, fmt.Errorf("storage.kind must be memory or disk, got %q", s.Kind)
}

// NPYType returns the array type fields are written with.
func (o OutputConfig) NPYType() (grid.DType, error) {
	switch strings.ToLower(o.DType) {
	case "", "float64", "f8", "<f8":
		return grid.Float64, nil
	case "float32", "f4", "<f4":
		return grid.Float32, nil
	}
	return "", fmt.Errorf("output.dtype must be float64 or float32, got %q", o.DType)
}

// Options converts the configuration into Compute options reporting to rep.
func (c *Config) Options(rep meshsdf.Reporter) (meshsdf.Options, error) {
	if err := c.Validate(); err != nil {
		return meshsdf.Options{}, err
	}
	policy, _ := meshsdf.ParseShellPolicy(c.Grid.ShellPolicy)
	storage, _ := c.Storage.kind()
	tol := c.Grid.ContainmentTol
	if tol == 0 {
		tol = -1 // Exact comparison, zero would select the default.
	}
	return meshsdf.Options{
		Size:            c.Grid.Size,
		Fix:             c.Grid.Fix,
		Level:           c.Grid.Level,
		ReturnMesh:      c.Output.Mesh != "" || c.Preview.MeshPNG != "",
		ShellPolicy:     policy,
		ContainmentTol:  tol,
		Workers:         c.Grid.Workers,
		Storage:         storage,
		StorageDir:      c.Storage.Dir,
		LargeFieldBytes: c.Storage.LargeFieldBytes,
		Reporter:        rep,
	}, nil
}
