package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"inkframe/internal/codec"
	"inkframe/internal/palette"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDevice(); err != nil {
		return err
	}
	if err := c.validatePalette(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.ImageName != filepath.Base(c.Paths.ImageName) {
		return fmt.Errorf("paths.image_name must be a bare file name, got %q", c.Paths.ImageName)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Bind == "" {
		return errors.New("server.bind must be set")
	}
	switch c.Server.DefaultFormat {
	case "packed", "image", "bmp":
	default:
		return fmt.Errorf("server.default_format must be packed, image, or bmp, got %q", c.Server.DefaultFormat)
	}
	return nil
}

func (c *Config) validateDevice() error {
	if c.Device.Width <= 0 || c.Device.Height <= 0 {
		return fmt.Errorf("device.width and device.height must be positive, got %dx%d", c.Device.Width, c.Device.Height)
	}
	switch c.Device.Orientation {
	case "horizontal", "vertical":
	default:
		return fmt.Errorf("device.orientation must be horizontal or vertical, got %q", c.Device.Orientation)
	}
	if c.Device.MaxSourcePixels < c.Device.Width*c.Device.Height {
		return fmt.Errorf("device.max_source_pixels must be at least the panel area (%d), got %d",
			c.Device.Width*c.Device.Height, c.Device.MaxSourcePixels)
	}
	if _, err := codec.ParseFitPolicy(c.Device.Fit); err != nil {
		return fmt.Errorf("device.fit: %w", err)
	}
	if _, err := codec.ParseMode(c.Device.Dither); err != nil {
		return fmt.Errorf("device.dither: %w", err)
	}
	return nil
}

func (c *Config) validatePalette() error {
	if len(c.Palette.Colors) > palette.MaxColors {
		return fmt.Errorf("palette.colors: %d entries exceed the %d a 4-bit index can address", len(c.Palette.Colors), palette.MaxColors)
	}
	seen := make(map[string]int, len(c.Palette.Colors))
	for i, col := range c.Palette.Colors {
		if _, err := palette.ParseHex(col.Hex); err != nil {
			return fmt.Errorf("palette.colors[%d]: %w", i, err)
		}
		if col.Name == "" {
			continue
		}
		if prev, ok := seen[col.Name]; ok {
			return fmt.Errorf("palette.colors[%d]: name %q already used by entry %d", i, col.Name, prev)
		}
		seen[col.Name] = i
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.Retain < 0 {
		return errors.New("history.retain must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
