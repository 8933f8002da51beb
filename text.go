package tessera

import "github.com/go-gl/mathgl/mgl64"

// GlyphMode selects the atlas and pipeline used for a text run.
type GlyphMode uint8

const (
	// GlyphSDF renders from the single-channel distance-field atlas.
	// Glyphs stay crisp under scaling and perspective.
	GlyphSDF GlyphMode = iota
	// GlyphColor renders from the RGBA atlas (emoji, pixel fonts).
	GlyphColor
)

// TextRun is pre-shaped text: glyph identities with pen positions on the
// baseline in model units. Model space is y-down, matching pixel layout.
type TextRun struct {
	Glyphs []ShapedGlyph
	Color  Color
	Mode   GlyphMode
}

// ShapedGlyph is one positioned glyph.
type ShapedGlyph struct {
	Key    GlyphKey
	Origin mgl64.Vec2

	// Color overrides the run color when non-zero.
	Color Color
}

func (r *TextRun) glyphColor(g *ShapedGlyph) Color {
	if g.Color != (Color{}) {
		return g.Color
	}
	if r.Color == (Color{}) {
		return ColorWhite
	}
	return r.Color
}

// glyphQuad returns the model-space rectangle of an atlas entry drawn with
// its pen at origin. The entry size includes any distance-field padding.
func glyphQuad(origin mgl64.Vec2, e *AtlasEntry) [4]float32 {
	x0 := origin[0] + e.BearingX
	y0 := origin[1] - e.BearingY
	return [4]float32{float32(x0), float32(y0), float32(x0 + float64(e.Width)), float32(y0 + float64(e.Height))}
}
