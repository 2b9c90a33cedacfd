package palette

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// MaxColors is the largest palette addressable by a 4-bit index.
const MaxColors = 16

var (
	// ErrEmpty indicates a palette without entries.
	ErrEmpty = errors.New("palette: no colors defined")
	// ErrTooManyColors indicates a palette that does not fit in 4-bit indices.
	ErrTooManyColors = errors.New("palette: more than 16 colors")
	// ErrInvalidHex indicates a malformed #rrggbb value.
	ErrInvalidHex = errors.New("palette: invalid hex color")
)

// Color is a 24-bit RGB sample.
type Color struct {
	R, G, B uint8
}

// RGBA implements color.Color.
func (c Color) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}.RGBA()
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(value string) (Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidHex, value)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidHex, value)
	}
	return Color{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// Entry names one palette color.
type Entry struct {
	Name  string
	Color Color
}

// Palette is an ordered, immutable set of reference colors.
type Palette struct {
	entries []Entry
}

// New validates entries and returns a palette that owns a private copy.
func New(entries []Entry) (*Palette, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}
	if len(entries) > MaxColors {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyColors, len(entries))
	}
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	for i := range cp {
		cp[i].Name = strings.ToLower(strings.TrimSpace(cp[i].Name))
		if cp[i].Name == "" {
			cp[i].Name = "color" + strconv.Itoa(i)
		}
	}
	return &Palette{entries: cp}, nil
}

// Default returns the six-color Spectra palette in firmware index order.
func Default() *Palette {
	p, _ := New([]Entry{
		{Name: "black", Color: Color{0, 0, 0}},
		{Name: "white", Color: Color{255, 255, 255}},
		{Name: "green", Color: Color{0, 255, 0}},
		{Name: "blue", Color: Color{0, 0, 255}},
		{Name: "red", Color: Color{255, 0, 0}},
		{Name: "yellow", Color: Color{255, 255, 0}},
	})
	return p
}

// Len returns the number of entries.
func (p *Palette) Len() int { return len(p.entries) }

// At returns the color stored at index i.
func (p *Palette) At(i int) Color { return p.entries[i].Color }

// Name returns the semantic name of index i.
func (p *Palette) Name(i int) string { return p.entries[i].Name }

// IndexOf returns the index of the entry with the given name.
func (p *Palette) IndexOf(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, e := range p.entries {
		if e.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Nearest returns the index minimizing squared RGB distance to c. Ties go to
// the lowest index.
func (p *Palette) Nearest(c Color) int {
	return p.NearestRGB(int32(c.R), int32(c.G), int32(c.B))
}

// NearestRGB is Nearest for channel values already clamped to [0,255].
func (p *Palette) NearestRGB(r, g, b int32) int {
	best := 0
	bestDist := int32(-1)
	for i, e := range p.entries {
		dr := r - int32(e.Color.R)
		dg := g - int32(e.Color.G)
		db := b - int32(e.Color.B)
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

// ColorPalette converts to the standard library representation, preserving
// index order.
func (p *Palette) ColorPalette() color.Palette {
	out := make(color.Palette, len(p.entries))
	for i, e := range p.entries {
		out[i] = color.RGBA{R: e.Color.R, G: e.Color.G, B: e.Color.B, A: 0xff}
	}
	return out
}

// MappingEntry describes one index of the wire format.
type MappingEntry struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Hex   string `json:"hex"`
}

// Mapping returns the index to semantic color table shipped with firmware.
func (p *Palette) Mapping() []MappingEntry {
	out := make([]MappingEntry, len(p.entries))
	for i, e := range p.entries {
		out[i] = MappingEntry{Index: i, Name: e.Name, Hex: e.Color.Hex()}
	}
	return out
}
