package codec

import (
	"errors"
	"fmt"
	"image"

	"inkframe/internal/palette"
)

// Options configures a Converter. One Options value describes one deployed
// device; policy and mode never vary per request.
type Options struct {
	Width   int
	Height  int
	Fit     FitPolicy
	Dither  Mode
	Palette *palette.Palette
	// MaxSourcePixels bounds decoded sources; zero means DefaultMaxPixels.
	MaxSourcePixels int
}

// Converter runs the fit, dither and pack stages for one device.
type Converter struct {
	opts Options
}

// Result is the output of one conversion.
type Result struct {
	Width   int
	Height  int
	Indices *IndexRaster
	Packed  []byte
}

// NewConverter validates opts.
func NewConverter(opts Options) (*Converter, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, opts.Width, opts.Height)
	}
	if opts.Palette == nil {
		return nil, errors.New("codec: palette is required")
	}
	if opts.Palette.Len() > palette.MaxColors {
		return nil, fmt.Errorf("%w: %d colors", ErrIndexOverflow, opts.Palette.Len())
	}
	if opts.MaxSourcePixels < 0 {
		return nil, fmt.Errorf("codec: negative source pixel limit %d", opts.MaxSourcePixels)
	}
	if _, err := ParseFitPolicy(string(opts.Fit)); err != nil {
		return nil, err
	}
	if _, err := ParseMode(string(opts.Dither)); err != nil {
		return nil, err
	}
	return &Converter{opts: opts}, nil
}

// Options returns the converter configuration.
func (c *Converter) Options() Options { return c.opts }

// Decode parses a source image under the converter's pixel limit.
func (c *Converter) Decode(data []byte) (image.Image, string, error) {
	return DecodeLimit(data, c.opts.MaxSourcePixels)
}

// Quantize fits and dithers src. With canvas set, an aspect-fitted image
// smaller than the device is centered on palette entry 0 so the raster always
// has the device size.
func (c *Converter) Quantize(src image.Image, canvas bool) (*IndexRaster, error) {
	fitted, err := Fit(src, c.opts.Width, c.opts.Height, c.opts.Fit)
	if err != nil {
		return nil, err
	}
	if canvas {
		fitted = Letterbox(fitted, c.opts.Width, c.opts.Height, c.opts.Palette.At(0))
	}
	return Dither(fitted, c.opts.Palette, c.opts.Dither)
}

// Convert produces the device-sized index raster and its packed buffer.
func (c *Converter) Convert(src image.Image) (*Result, error) {
	indices, err := c.Quantize(src, true)
	if err != nil {
		return nil, err
	}
	packed, err := Pack(indices)
	if err != nil {
		return nil, err
	}
	return &Result{
		Width:   indices.Width,
		Height:  indices.Height,
		Indices: indices,
		Packed:  packed,
	}, nil
}
