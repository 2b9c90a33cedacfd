package codec

import (
	"image"

	"inkframe/internal/palette"
)

// IndexRaster is a row-major grid of palette indices.
type IndexRaster struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewIndexRaster allocates a zeroed raster.
func NewIndexRaster(width, height int) *IndexRaster {
	return &IndexRaster{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the index at (x, y).
func (r *IndexRaster) At(x, y int) uint8 {
	return r.Pix[y*r.Width+x]
}

// Set stores idx at (x, y).
func (r *IndexRaster) Set(x, y int, idx uint8) {
	r.Pix[y*r.Width+x] = idx
}

// Paletted wraps the raster as an image using p for color lookup. Pixel data
// is shared, not copied.
func (r *IndexRaster) Paletted(p *palette.Palette) *image.Paletted {
	return &image.Paletted{
		Pix:     r.Pix,
		Stride:  r.Width,
		Rect:    image.Rect(0, 0, r.Width, r.Height),
		Palette: p.ColorPalette(),
	}
}
