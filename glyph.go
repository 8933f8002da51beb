package tessera

import "fmt"

// FontID identifies a font face registered with a GlyphRasterizer.
type FontID uint32

// GlyphID is a glyph index within a font.
type GlyphID uint32

// GlyphKey identifies one rasterization of a glyph.
type GlyphKey struct {
	Font  FontID
	Glyph GlyphID
	Size  float32 // pixels per em
}

func (k GlyphKey) String() string {
	return fmt.Sprintf("glyph(%d:%d@%g)", k.Font, k.Glyph, k.Size)
}

// BitmapFormat is the pixel layout of a GlyphBitmap.
type BitmapFormat uint8

const (
	// FormatAlpha is one coverage byte per texel.
	FormatAlpha BitmapFormat = iota
	// FormatRGBA is four bytes per texel, premultiplied (color emoji).
	FormatRGBA
	// FormatDistance is one encoded signed-distance byte per texel.
	FormatDistance
)

// BytesPerPixel returns the texel size of the format.
func (f BitmapFormat) BytesPerPixel() int {
	if f == FormatRGBA {
		return 4
	}
	return 1
}

// GlyphBitmap is the rasterizer's output for one glyph. Bearings locate
// the bitmap's top-left corner relative to the pen position on the
// baseline, with BearingY measured upward.
type GlyphBitmap struct {
	Format        BitmapFormat
	Width, Height int
	Pixels        []byte

	BearingX float64
	BearingY float64
	Advance  float64
}

// Empty reports whether the glyph has no ink (for example a space).
func (b *GlyphBitmap) Empty() bool {
	return b.Width == 0 || b.Height == 0
}

// GlyphRasterizer produces glyph bitmaps. It is called on atlas misses
// only, from the goroutine running Scene.Update.
type GlyphRasterizer interface {
	RasterizeGlyph(key GlyphKey) (GlyphBitmap, error)
}

// GlyphRasterizerFunc adapts a function to GlyphRasterizer.
type GlyphRasterizerFunc func(key GlyphKey) (GlyphBitmap, error)

// RasterizeGlyph calls f(key).
func (f GlyphRasterizerFunc) RasterizeGlyph(key GlyphKey) (GlyphBitmap, error) {
	return f(key)
}

// toRGBA expands a coverage bitmap into premultiplied white so tinting
// works the same way for alpha and color glyphs.
func toRGBA(b GlyphBitmap) GlyphBitmap {
	if b.Format == FormatRGBA {
		return b
	}
	px := make([]byte, b.Width*b.Height*4)
	for i, a := range b.Pixels[:b.Width*b.Height] {
		px[i*4+0] = a
		px[i*4+1] = a
		px[i*4+2] = a
		px[i*4+3] = a
	}
	b.Pixels = px
	b.Format = FormatRGBA
	return b
}
