package codec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the canvas a source image may declare. Decoders
// allocate the whole raster from the header before reading pixel data, so a
// tiny file can otherwise demand gigabytes.
const DefaultMaxPixels = 89_478_485

// Decode parses an encoded source image with the DefaultMaxPixels bound. The
// returned format name is the one registered with the image package (png,
// jpeg, gif, bmp, webp).
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with a caller-chosen pixel bound; maxPixels <= 0 means
// DefaultMaxPixels. The header is checked before any raster is allocated.
func DecodeLimit(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrDecode)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: %s declares a %dx%d canvas", ErrDecode, format, cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(maxPixels) {
		return nil, "", fmt.Errorf("%w: %s declares %dx%d (%d pixels), limit is %d",
			ErrDecode, format, cfg.Width, cfg.Height, pixels, maxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, format, nil
}
