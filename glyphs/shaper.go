package glyphs

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// tabStop is the tab width in spaces.
const tabStop = 4

// Metrics are the vertical metrics of a font at one size, in pixels.
type Metrics struct {
	Ascent     float64
	Descent    float64
	LineHeight float64
}

// Metrics returns the vertical metrics of font at size pixels per em.
func (r *Rasterizer) Metrics(id tessera.FontID, size float64) (Metrics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.font(id)
	if err != nil {
		return Metrics{}, err
	}
	m, err := f.Metrics(&r.buf, toFixed(size), font.HintingNone)
	if err != nil {
		return Metrics{}, errors.Wrapf(err, "glyphs: metrics of font %d", id)
	}
	return Metrics{
		Ascent:     fromFixed(m.Ascent),
		Descent:    fromFixed(m.Descent),
		LineHeight: fromFixed(m.Height),
	}, nil
}

// Layout holds the result of shaping a string.
type Layout struct {
	Glyphs []tessera.ShapedGlyph
	// Width is the widest line's advance.
	Width float64
	// Lines is the number of lines, at least one.
	Lines int
}

// Shape lays out s on a single baseline starting at origin, breaking lines
// at '\n'. Text is NFC normalized first so precomposed and decomposed input
// map to the same glyphs. Pairs are kerned when the font has a kern table.
// Runes missing from the font use glyph 0, the notdef glyph.
func (r *Rasterizer) Shape(id tessera.FontID, size float64, s string, origin mgl64.Vec2) (Layout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.font(id)
	if err != nil {
		return Layout{}, err
	}
	ppem := toFixed(size)
	m, err := f.Metrics(&r.buf, ppem, font.HintingNone)
	if err != nil {
		return Layout{}, errors.Wrapf(err, "glyphs: metrics of font %d", id)
	}
	lineHeight := fromFixed(m.Height)
	space, err := r.advance(f, ' ', ppem)
	if err != nil {
		return Layout{}, err
	}

	out := Layout{Lines: 1}
	pen := origin
	var prev sfnt.GlyphIndex
	hasPrev := false
	for _, ch := range norm.NFC.String(s) {
		switch ch {
		case '\n':
			out.Width = max(out.Width, pen[0]-origin[0])
			pen = mgl64.Vec2{origin[0], pen[1] + lineHeight}
			out.Lines++
			hasPrev = false
			continue
		case '\t':
			pen[0] += space * tabStop
			hasPrev = false
			continue
		}

		gi, err := f.GlyphIndex(&r.buf, ch)
		if err != nil {
			return Layout{}, errors.Wrapf(err, "glyphs: index of %q", ch)
		}
		if hasPrev {
			if k, err := f.Kern(&r.buf, prev, gi, ppem, font.HintingNone); err == nil {
				pen[0] += fromFixed(k)
			}
		}
		adv, err := f.GlyphAdvance(&r.buf, gi, ppem, font.HintingNone)
		if err != nil {
			return Layout{}, errors.Wrapf(err, "glyphs: advance of %q", ch)
		}
		out.Glyphs = append(out.Glyphs, tessera.ShapedGlyph{
			Key:    tessera.GlyphKey{Font: id, Glyph: tessera.GlyphID(gi), Size: float32(size)},
			Origin: pen,
		})
		pen[0] += fromFixed(adv)
		prev, hasPrev = gi, true
	}
	out.Width = max(out.Width, pen[0]-origin[0])
	return out, nil
}

// Run shapes s and wraps the glyphs in a distance-field text run.
func (r *Rasterizer) Run(id tessera.FontID, size float64, s string, origin mgl64.Vec2, c tessera.Color) (tessera.TextRun, error) {
	l, err := r.Shape(id, size, s, origin)
	if err != nil {
		return tessera.TextRun{}, err
	}
	return tessera.TextRun{Glyphs: l.Glyphs, Color: c}, nil
}

func (r *Rasterizer) advance(f *sfnt.Font, ch rune, ppem fixed.Int26_6) (float64, error) {
	gi, err := f.GlyphIndex(&r.buf, ch)
	if err != nil {
		return 0, errors.Wrapf(err, "glyphs: index of %q", ch)
	}
	adv, err := f.GlyphAdvance(&r.buf, gi, ppem, font.HintingNone)
	if err != nil {
		return 0, errors.Wrapf(err, "glyphs: advance of %q", ch)
	}
	return fromFixed(adv), nil
}
