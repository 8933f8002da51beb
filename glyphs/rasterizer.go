// Package glyphs rasterizes and shapes TrueType and OpenType text for
// tessera. Fonts are parsed with golang.org/x/image/font/sfnt and glyph
// outlines are filled with golang.org/x/image/vector into coverage
// bitmaps, which the atlas turns into distance fields.
package glyphs

import (
	"image"
	"math"
	"sync"

	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Fonts registered by NewRasterizer.
const (
	Regular tessera.FontID = 0
	Mono    tessera.FontID = 1
)

// ErrUnknownFont is returned for a FontID that was never registered.
var ErrUnknownFont = errors.New("glyphs: unknown font")

// Rasterizer implements tessera.GlyphRasterizer over registered sfnt fonts.
// It is safe for concurrent use; calls are serialized because sfnt.Buffer
// and vector.Rasterizer are reused between glyphs.
type Rasterizer struct {
	mu    sync.Mutex
	fonts []*sfnt.Font
	buf   sfnt.Buffer
	ras   vector.Rasterizer
}

// NewRasterizer returns a rasterizer with the Go fonts registered as
// Regular and Mono.
func NewRasterizer() *Rasterizer {
	r := &Rasterizer{}
	for _, ttf := range [][]byte{goregular.TTF, gomono.TTF} {
		if _, err := r.AddFont(ttf); err != nil {
			panic(err) // embedded fonts always parse
		}
	}
	return r
}

// AddFont parses a TrueType or OpenType font and returns its ID.
func (r *Rasterizer) AddFont(data []byte) (tessera.FontID, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return 0, errors.Wrap(err, "glyphs: parse font")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fonts = append(r.fonts, f)
	id := tessera.FontID(len(r.fonts) - 1)
	name, _ := f.Name(&r.buf, sfnt.NameIDFull)
	tessera.Logger().Info("glyphs: font registered", "id", id, "name", name, "glyphs", f.NumGlyphs())
	return id, nil
}

// NumFonts returns the number of registered fonts.
func (r *Rasterizer) NumFonts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fonts)
}

func (r *Rasterizer) font(id tessera.FontID) (*sfnt.Font, error) {
	if int(id) >= len(r.fonts) {
		return nil, errors.Wrapf(ErrUnknownFont, "font %d", id)
	}
	return r.fonts[id], nil
}

// RasterizeGlyph fills the glyph outline at key.Size pixels per em. The
// bitmap covers the outline's pixel-aligned bounds; glyphs without an
// outline return an empty bitmap carrying only the advance.
func (r *Rasterizer) RasterizeGlyph(key tessera.GlyphKey) (tessera.GlyphBitmap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.font(key.Font)
	if err != nil {
		return tessera.GlyphBitmap{}, err
	}
	if key.Size <= 0 {
		return tessera.GlyphBitmap{}, errors.Errorf("glyphs: %v has non-positive size", key)
	}
	ppem := toFixed(float64(key.Size))
	gi := sfnt.GlyphIndex(key.Glyph)

	bounds, advance, err := f.GlyphBounds(&r.buf, gi, ppem, font.HintingNone)
	if err != nil {
		return tessera.GlyphBitmap{}, errors.Wrapf(err, "glyphs: bounds of %v", key)
	}
	out := tessera.GlyphBitmap{Format: tessera.FormatAlpha, Advance: fromFixed(advance)}

	segs, err := f.LoadGlyph(&r.buf, gi, ppem, nil)
	if err != nil {
		return tessera.GlyphBitmap{}, errors.Wrapf(err, "glyphs: load %v", key)
	}
	x0 := math.Floor(fromFixed(bounds.Min.X))
	y0 := math.Floor(fromFixed(bounds.Min.Y))
	x1 := math.Ceil(fromFixed(bounds.Max.X))
	y1 := math.Ceil(fromFixed(bounds.Max.Y))
	w, h := int(x1-x0), int(y1-y0)
	if len(segs) == 0 || w <= 0 || h <= 0 {
		return out, nil
	}

	r.ras.Reset(w, h)
	pt := func(p fixed.Point26_6) (float32, float32) {
		return float32(fromFixed(p.X) - x0), float32(fromFixed(p.Y) - y0)
	}
	open := false
	for _, s := range segs {
		switch s.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				r.ras.ClosePath()
			}
			r.ras.MoveTo(pt(s.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			r.ras.LineTo(pt(s.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			r.ras.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(s.Args[0])
			cx, cy := pt(s.Args[1])
			dx, dy := pt(s.Args[2])
			r.ras.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	if open {
		r.ras.ClosePath()
	}
	dst := image.NewAlpha(image.Rect(0, 0, w, h))
	r.ras.Draw(dst, dst.Bounds(), image.Opaque, image.Point{})

	out.Width, out.Height = w, h
	out.Pixels = dst.Pix
	out.BearingX = x0
	out.BearingY = -y0
	return out, nil
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
