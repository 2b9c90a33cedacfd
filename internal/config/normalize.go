package config

import (
	"fmt"
	"os"
	"strings"

	"inkframe/internal/codec"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeDevice()
	c.normalizePalette()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.ImageName = strings.TrimSpace(c.Paths.ImageName)
	if c.Paths.ImageName == "" {
		c.Paths.ImageName = defaultImageName
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		if value, ok := os.LookupEnv("INKFRAME_BIND"); ok {
			c.Server.Bind = strings.TrimSpace(value)
		}
	}
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.APIToken == "" {
		if value, ok := os.LookupEnv("INKFRAME_API_TOKEN"); ok {
			c.Server.APIToken = strings.TrimSpace(value)
		}
	}
	c.Server.DefaultFormat = strings.ToLower(strings.TrimSpace(c.Server.DefaultFormat))
	if c.Server.DefaultFormat == "" {
		c.Server.DefaultFormat = defaultFormat
	}
}

func (c *Config) normalizeDevice() {
	c.Device.Orientation = strings.ToLower(strings.TrimSpace(c.Device.Orientation))
	if c.Device.Orientation == "" {
		c.Device.Orientation = defaultOrientation
	}
	c.Device.Fit = strings.ToLower(strings.TrimSpace(c.Device.Fit))
	if c.Device.Fit == "" {
		c.Device.Fit = defaultFit
	}
	c.Device.Dither = strings.ToLower(strings.TrimSpace(c.Device.Dither))
	if c.Device.Dither == "" {
		c.Device.Dither = defaultDither
	}
	if c.Device.MaxSourcePixels == 0 {
		c.Device.MaxSourcePixels = codec.DefaultMaxPixels
	}
}

func (c *Config) normalizePalette() {
	if len(c.Palette.Colors) == 0 {
		c.Palette.Colors = append([]Color(nil), defaultColors...)
		return
	}
	for i := range c.Palette.Colors {
		c.Palette.Colors[i].Name = strings.ToLower(strings.TrimSpace(c.Palette.Colors[i].Name))
		c.Palette.Colors[i].Hex = strings.ToLower(strings.TrimSpace(c.Palette.Colors[i].Hex))
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.RetainFiles < 0 {
		c.Logging.RetainFiles = 0
	}
}
