package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"inkframe/internal/codec"
	"inkframe/internal/palette"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the on-disk locations the server reads and writes.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	ImageName string `toml:"image_name"`
	LogDir    string `toml:"log_dir"`
}

// Server contains HTTP listener configuration.
type Server struct {
	Bind          string `toml:"bind"`
	APIToken      string `toml:"api_token"`
	Compression   bool   `toml:"compression"`
	DefaultFormat string `toml:"default_format"`
}

// Device describes the display the server renders for.
type Device struct {
	Width       int    `toml:"width"`
	Height      int    `toml:"height"`
	Orientation string `toml:"orientation"`
	Fit         string `toml:"fit"`
	Dither      string `toml:"dither"`
	// MaxSourcePixels rejects source images whose header declares a larger
	// canvas, before any pixel buffer is allocated.
	MaxSourcePixels int `toml:"max_source_pixels"`
}

// Color is one configured palette entry. Order in the file is the index
// order the device firmware expects.
type Color struct {
	Name string `toml:"name"`
	Hex  string `toml:"hex"`
}

// Palette lists the device's reference colors.
type Palette struct {
	Colors []Color `toml:"colors"`
}

// History controls the delivery log.
type History struct {
	Enabled bool `toml:"enabled"`
	Retain  int  `toml:"retain"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	RetainFiles   int    `toml:"retain_files"`
}

// Config encapsulates all configuration values for inkframe.
//
// Configuration sections by subsystem:
//   - Paths: data directory, stored image name, log directory
//   - Server: bind address, bearer token, compression, default format
//   - Device: panel geometry, orientation, fit policy, dither mode
//   - Palette: ordered reference colors
//   - History: delivery log toggle and retention
//   - Logging: log format, level, and file retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Server  Server  `toml:"server"`
	Device  Device  `toml:"device"`
	Palette Palette `toml:"palette"`
	History History `toml:"history"`
	Logging Logging `toml:"logging"`
}

const defaultConfigPath = "~/.config/inkframe/config.toml"

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("inkframe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ImagePath returns the absolute path of the stored source image.
func (c *Config) ImagePath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.ImageName)
}

// HistoryPath returns the delivery log database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// LockPath returns the single-instance lock file used by the server.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "inkframe.lock")
}

// BuildPalette converts the configured colors into a palette.
func (c *Config) BuildPalette() (*palette.Palette, error) {
	entries := make([]palette.Entry, 0, len(c.Palette.Colors))
	for i, col := range c.Palette.Colors {
		parsed, err := palette.ParseHex(col.Hex)
		if err != nil {
			return nil, fmt.Errorf("palette.colors[%d]: %w", i, err)
		}
		entries = append(entries, palette.Entry{Name: col.Name, Color: parsed})
	}
	return palette.New(entries)
}

// CanvasSize returns the device dimensions after applying orientation.
func (c *Config) CanvasSize() (int, int) {
	if c.Device.Orientation == "vertical" {
		return c.Device.Height, c.Device.Width
	}
	return c.Device.Width, c.Device.Height
}

// ConverterOptions assembles the codec settings for the configured device.
func (c *Config) ConverterOptions() (codec.Options, error) {
	p, err := c.BuildPalette()
	if err != nil {
		return codec.Options{}, err
	}
	fit, err := codec.ParseFitPolicy(c.Device.Fit)
	if err != nil {
		return codec.Options{}, fmt.Errorf("device.fit: %w", err)
	}
	mode, err := codec.ParseMode(c.Device.Dither)
	if err != nil {
		return codec.Options{}, fmt.Errorf("device.dither: %w", err)
	}
	width, height := c.CanvasSize()
	return codec.Options{
		Width:           width,
		Height:          height,
		Fit:             fit,
		Dither:          mode,
		Palette:         p,
		MaxSourcePixels: c.Device.MaxSourcePixels,
	}, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
