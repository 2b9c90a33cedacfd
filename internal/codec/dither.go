package codec

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"strings"
	"sync"

	"inkframe/internal/palette"
)

// Mode selects the quantization algorithm.
type Mode string

const (
	// ModeDiffusion quantizes with Floyd–Steinberg error diffusion.
	ModeDiffusion Mode = "diffusion"
	// ModeFast quantizes every pixel independently to its nearest color. It
	// bands visibly on gradients.
	ModeFast Mode = "fast"
)

// ParseMode validates a configured dither mode name.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeDiffusion, "floyd-steinberg", "floyd_steinberg":
		return ModeDiffusion, nil
	case ModeFast:
		return ModeFast, nil
	default:
		return "", fmt.Errorf("codec: unknown dither mode %q (want diffusion or fast)", value)
	}
}

// Dither quantizes img with the selected mode.
func Dither(img *image.NRGBA, p *palette.Palette, mode Mode) (*IndexRaster, error) {
	switch mode {
	case ModeDiffusion:
		return Diffuse(img, p), nil
	case ModeFast:
		return Quantize(img, p), nil
	default:
		return nil, fmt.Errorf("codec: unknown dither mode %q", mode)
	}
}

// Floyd–Steinberg weights, in sixteenths.
const (
	weightRight     = 7
	weightDownLeft  = 3
	weightDown      = 5
	weightDownRight = 1
)

// Diffuse runs Floyd–Steinberg error diffusion over img in row-major order.
// Alpha is ignored. The pass is strictly sequential: every pixel depends on
// error pushed from its left neighbour and from the row above.
func Diffuse(img *image.NRGBA, p *palette.Palette) *IndexRaster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewIndexRaster(w, h)
	if w == 0 || h == 0 {
		return out
	}

	work := newWorkRaster(img)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			r := clampChannel(work[i])
			g := clampChannel(work[i+1])
			bl := clampChannel(work[i+2])

			idx := p.NearestRGB(int32(r), int32(g), int32(bl))
			out.Pix[y*w+x] = uint8(idx)

			c := p.At(idx)
			er := r - float32(c.R)
			eg := g - float32(c.G)
			eb := bl - float32(c.B)
			if er == 0 && eg == 0 && eb == 0 {
				continue
			}

			if x+1 < w {
				spread(work, i+3, er, eg, eb, weightRight)
			}
			if y+1 < h {
				below := ((y+1)*w + x) * 3
				if x > 0 {
					spread(work, below-3, er, eg, eb, weightDownLeft)
				}
				spread(work, below, er, eg, eb, weightDown)
				if x+1 < w {
					spread(work, below+3, er, eg, eb, weightDownRight)
				}
			}
		}
	}
	return out
}

// newWorkRaster copies img into a float accumulator, three channels per
// pixel.
func newWorkRaster(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	work := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			s := x * 4
			d := (y*w + x) * 3
			work[d] = float32(row[s])
			work[d+1] = float32(row[s+1])
			work[d+2] = float32(row[s+2])
		}
	}
	return work
}

func spread(work []float32, i int, er, eg, eb float32, weight float32) {
	work[i] += roundShare(er, weight)
	work[i+1] += roundShare(eg, weight)
	work[i+2] += roundShare(eb, weight)
}

func roundShare(err, weight float32) float32 {
	return float32(math.Round(float64(err) * float64(weight) / 16))
}

func clampChannel(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return float32(math.Round(float64(v)))
	}
}

// Quantize maps every pixel to its nearest palette index without diffusion.
// Rows are split across goroutines since pixels are independent.
func Quantize(img *image.NRGBA, p *palette.Palette) *IndexRaster {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := NewIndexRaster(w, h)
	if w == 0 || h == 0 {
		return out
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > h {
		workers = h
	}
	band := (h + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < h; start += band {
		end := start + band
		if end > h {
			end = h
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				row := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):]
				for x := 0; x < w; x++ {
					s := x * 4
					out.Pix[y*w+x] = uint8(p.NearestRGB(int32(row[s]), int32(row[s+1]), int32(row[s+2])))
				}
			}
		}(start, end)
	}
	wg.Wait()
	return out
}
