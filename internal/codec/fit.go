package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/disintegration/gift"
)

// FitPolicy selects how a source image is normalized to the device canvas.
type FitPolicy string

const (
	// FitExact resamples to exactly the target size, ignoring aspect ratio.
	FitExact FitPolicy = "exact"
	// FitAspect downscales (never upscales) to fit within the target while
	// preserving aspect ratio. The result may be smaller than the canvas.
	FitAspect FitPolicy = "aspect"
)

// ParseFitPolicy validates a configured policy name.
func ParseFitPolicy(value string) (FitPolicy, error) {
	switch FitPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case FitExact:
		return FitExact, nil
	case FitAspect:
		return FitAspect, nil
	default:
		return "", fmt.Errorf("codec: unknown fit policy %q (want exact or aspect)", value)
	}
}

// Fit returns a new raster sized for a width x height canvas according to
// policy. The source is never modified.
func Fit(src image.Image, width, height int, policy FitPolicy) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, width, height)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty source image", ErrDecode)
	}

	var tw, th int
	switch policy {
	case FitExact:
		tw, th = width, height
	case FitAspect:
		tw, th = aspectSize(b.Dx(), b.Dy(), width, height)
	default:
		return nil, fmt.Errorf("codec: unknown fit policy %q", policy)
	}

	if tw == b.Dx() && th == b.Dy() {
		return copyNRGBA(src), nil
	}
	g := gift.New(gift.Resize(tw, th, gift.LanczosResampling))
	dst := image.NewNRGBA(g.Bounds(b))
	g.Draw(dst, src)
	return dst, nil
}

// aspectSize scales (sw, sh) down to fit within (maxW, maxH). Sources that
// already fit keep their size.
func aspectSize(sw, sh, maxW, maxH int) (int, int) {
	if sw <= maxW && sh <= maxH {
		return sw, sh
	}
	scale := math.Min(float64(maxW)/float64(sw), float64(maxH)/float64(sh))
	w := clampDim(int(math.Round(float64(sw)*scale)), maxW)
	h := clampDim(int(math.Round(float64(sh)*scale)), maxH)
	return w, h
}

func clampDim(v, limit int) int {
	if v < 1 {
		return 1
	}
	if v > limit {
		return limit
	}
	return v
}

// Letterbox centers img on a width x height canvas filled with bg. An image
// that already has the canvas size is returned unchanged.
func Letterbox(img *image.NRGBA, width, height int, bg color.Color) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	offset := image.Pt((width-b.Dx())/2, (height-b.Dy())/2)
	draw.Draw(canvas, image.Rectangle{Min: offset, Max: offset.Add(b.Size())}, img, b.Min, draw.Src)
	return canvas
}

func copyNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
