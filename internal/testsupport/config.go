package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"inkframe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Server.Bind = "127.0.0.1:0"
	cfg.Server.DefaultFormat = "packed"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithDevice overrides the panel geometry and conversion modes.
func WithDevice(width, height int, fit, dither string) ConfigOption {
	return func(c *config.Config) {
		c.Device.Width = width
		c.Device.Height = height
		c.Device.Fit = fit
		c.Device.Dither = dither
	}
}

// WithHistory toggles delivery recording.
func WithHistory(enabled bool) ConfigOption {
	return func(c *config.Config) {
		c.History.Enabled = enabled
	}
}

// WriteConfig marshals cfg to a TOML file under the config's data directory
// parent and returns its path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "inkframe.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(strings.TrimRight(cfg.Paths.DataDir, string(os.PathSeparator)))
}
