package config

import "inkframe/internal/codec"

const (
	defaultDataDir          = "~/.local/share/inkframe"
	defaultLogDir           = "~/.local/share/inkframe/logs"
	defaultImageName        = "current_image.png"
	defaultBind             = "127.0.0.1:8080"
	defaultFormat           = "packed"
	defaultWidth            = 800
	defaultHeight           = 480
	defaultOrientation      = "horizontal"
	defaultFit              = "exact"
	defaultDither           = "diffusion"
	defaultHistoryRetain    = 5000
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
	defaultLogRetainFiles   = 20
)

// defaultColors mirrors palette.Default so an empty [palette] section and the
// sample file describe the same device.
var defaultColors = []Color{
	{Name: "black", Hex: "#000000"},
	{Name: "white", Hex: "#ffffff"},
	{Name: "green", Hex: "#00ff00"},
	{Name: "blue", Hex: "#0000ff"},
	{Name: "red", Hex: "#ff0000"},
	{Name: "yellow", Hex: "#ffff00"},
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ImageName: defaultImageName,
			LogDir:    defaultLogDir,
		},
		Server: Server{
			DefaultFormat: defaultFormat,
		},
		Device: Device{
			Width:           defaultWidth,
			Height:          defaultHeight,
			Orientation:     defaultOrientation,
			Fit:             defaultFit,
			Dither:          defaultDither,
			MaxSourcePixels: codec.DefaultMaxPixels,
		},
		Palette: Palette{
			Colors: append([]Color(nil), defaultColors...),
		},
		History: History{
			Enabled: true,
			Retain:  defaultHistoryRetain,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			RetainFiles:   defaultLogRetainFiles,
		},
	}
}
