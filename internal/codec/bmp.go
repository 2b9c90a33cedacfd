package codec

import (
	"bytes"
	"fmt"
	"io"

	"golang.org/x/image/bmp"

	"inkframe/internal/palette"
)

// EncodeBMP writes r as an 8-bit paletted BMP using p's colors.
func EncodeBMP(w io.Writer, r *IndexRaster, p *palette.Palette) error {
	if err := bmp.Encode(w, r.Paletted(p)); err != nil {
		return fmt.Errorf("codec: encode bmp: %w", err)
	}
	return nil
}

// BMPBytes is EncodeBMP into memory.
func BMPBytes(r *IndexRaster, p *palette.Palette) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeBMP(&buf, r, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
