package codec

import "errors"

var (
	// ErrDecode wraps failures to decode the stored source image.
	ErrDecode = errors.New("codec: decode source image")
	// ErrDimensions indicates a non-positive target width or height.
	ErrDimensions = errors.New("codec: invalid target dimensions")
	// ErrIndexOverflow indicates an index that does not fit in 4 bits. It means
	// the palette and packer disagree and is a programming error.
	ErrIndexOverflow = errors.New("codec: palette index exceeds 4 bits")
	// ErrBufferSize indicates a packed buffer whose length does not match the
	// declared dimensions.
	ErrBufferSize = errors.New("codec: packed buffer size mismatch")
)
