// Package config provides configuration loading and structs for the marcador server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/geometry"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Render    RenderConfig    `yaml:"render"`
	Highlight HighlightConfig `yaml:"highlight"`
	Export    ExportConfig    `yaml:"export"`
	Watch     WatchConfig     `yaml:"watch"`
	PDF       PDFConfig       `yaml:"pdf"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RenderConfig holds the display scale pages are rendered at.
type RenderConfig struct {
	Scale float64 `yaml:"scale"`
}

// HighlightConfig controls how highlight annotations are painted.
type HighlightConfig struct {
	Color   *annotate.Color `yaml:"color"`
	Opacity float64         `yaml:"opacity"`
	Author  string          `yaml:"author"`
}

// Style returns the annotation style for highlights.
func (h *HighlightConfig) Style() annotate.Style {
	c := annotate.Yellow
	if h.Color != nil {
		c = *h.Color
	}
	return annotate.Style{Color: c, Opacity: h.Opacity}
}

// ExportConfig holds export settings.
type ExportConfig struct {
	FileName    string             `yaml:"file_name"`
	OutputDir   string             `yaml:"output_dir"`
	Decorations []DecorationConfig `yaml:"decorations"`
}

// DecorationConfig is a filled rectangle added to every export, in document
// units on the given page.
type DecorationConfig struct {
	Page    int            `yaml:"page"`
	X       float64        `yaml:"x"`
	Y       float64        `yaml:"y"`
	Width   float64        `yaml:"width"`
	Height  float64        `yaml:"height"`
	Color   annotate.Color `yaml:"color"`
	Opacity float64        `yaml:"opacity"`
}

// Marks returns the decorations as square annotations in document space.
func (e *ExportConfig) Marks() []annotate.Mark {
	if len(e.Decorations) == 0 {
		return nil
	}
	marks := make([]annotate.Mark, 0, len(e.Decorations))
	for _, d := range e.Decorations {
		marks = append(marks, annotate.Mark{
			Page:  d.Page,
			Rect:  geometry.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height, Space: geometry.Document},
			Kind:  annotate.Square,
			Style: annotate.Style{Color: d.Color, Opacity: d.Opacity},
		})
	}
	return marks
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Terms       []string `yaml:"terms"`
	OutputDir   string   `yaml:"output_dir"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// PDFConfig holds document loading settings.
type PDFConfig struct {
	Password string `yaml:"password"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Export.OutputDir = expandPath(cfg.Export.OutputDir, configDir)
	cfg.Watch.OutputDir = expandPath(cfg.Watch.OutputDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func Validate(cfg *Config) error {
	if !(cfg.Render.Scale > 0) {
		return fmt.Errorf("render.scale must be greater than zero, got %v", cfg.Render.Scale)
	}
	if !validOpacity(cfg.Highlight.Opacity) {
		return fmt.Errorf("highlight.opacity must be within [0, 1], got %v", cfg.Highlight.Opacity)
	}
	if strings.ContainsAny(cfg.Export.FileName, `/\`) {
		return fmt.Errorf("export.file_name must not contain a path: %q", cfg.Export.FileName)
	}
	for i, d := range cfg.Export.Decorations {
		if d.Page < 1 || d.Width <= 0 || d.Height <= 0 {
			return fmt.Errorf("export.decorations[%d]: page must be >= 1 and size positive", i)
		}
		if !validOpacity(d.Opacity) {
			return fmt.Errorf("export.decorations[%d].opacity must be within [0, 1], got %v", i, d.Opacity)
		}
	}
	return nil
}

func validOpacity(v float64) bool {
	return v >= 0 && v <= 1
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
