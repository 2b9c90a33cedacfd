package codec

import "fmt"

// PackedLen is the size of a packed buffer for a width x height raster.
func PackedLen(width, height int) int {
	return (width*height + 1) / 2
}

// Pack stores two indices per byte in raster order: pixel 2k in the high
// nibble of byte k, pixel 2k+1 in the low nibble. When the pixel count is odd
// the final low nibble is padding and holds index 0.
func Pack(r *IndexRaster) ([]byte, error) {
	n := r.Width * r.Height
	if len(r.Pix) != n {
		return nil, fmt.Errorf("%w: raster holds %d pixels, want %d", ErrBufferSize, len(r.Pix), n)
	}
	out := make([]byte, PackedLen(r.Width, r.Height))
	for i, idx := range r.Pix {
		if idx > 0x0f {
			return nil, fmt.Errorf("%w: pixel %d has index %d", ErrIndexOverflow, i, idx)
		}
		if i&1 == 0 {
			out[i>>1] = idx << 4
		} else {
			out[i>>1] |= idx
		}
	}
	return out, nil
}

// Unpack reverses Pack. The padding nibble of an odd-sized raster is dropped.
func Unpack(buf []byte, width, height int) (*IndexRaster, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}
	if want := PackedLen(width, height); len(buf) != want {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBufferSize, len(buf), want)
	}
	r := NewIndexRaster(width, height)
	for i := range r.Pix {
		b := buf[i>>1]
		if i&1 == 0 {
			r.Pix[i] = b >> 4
		} else {
			r.Pix[i] = b & 0x0f
		}
	}
	return r, nil
}
