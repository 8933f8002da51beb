package glyphs

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyphKey(t *testing.T, r *Rasterizer, ch string, size float64) tessera.GlyphKey {
	t.Helper()
	l, err := r.Shape(Regular, size, ch, mgl64.Vec2{})
	require.NoError(t, err)
	require.Len(t, l.Glyphs, 1)
	return l.Glyphs[0].Key
}

func TestNewRasterizerRegistersGoFonts(t *testing.T) {
	r := NewRasterizer()
	assert.Equal(t, 2, r.NumFonts())

	m, err := r.Metrics(Mono, 16)
	require.NoError(t, err)
	assert.Greater(t, m.Ascent, 0.0)
	assert.GreaterOrEqual(t, m.LineHeight, m.Ascent)
}

func TestRasterizeGlyph(t *testing.T) {
	r := NewRasterizer()
	bmp, err := r.RasterizeGlyph(glyphKey(t, r, "H", 32))
	require.NoError(t, err)

	assert.Equal(t, tessera.FormatAlpha, bmp.Format)
	assert.Len(t, bmp.Pixels, bmp.Width*bmp.Height)
	assert.InDelta(t, 23, bmp.Height, 4, "cap height at 32px")
	assert.Greater(t, bmp.BearingY, 0.0, "top of H is above the baseline")
	assert.Greater(t, bmp.Advance, float64(bmp.Width)/2)

	var solid, clear int
	for _, p := range bmp.Pixels {
		switch p {
		case 255:
			solid++
		case 0:
			clear++
		}
	}
	assert.Positive(t, solid, "stems should be fully covered")
	assert.Positive(t, clear, "counter between the stems should be empty")
}

func TestRasterizeSpaceIsEmpty(t *testing.T) {
	r := NewRasterizer()
	bmp, err := r.RasterizeGlyph(glyphKey(t, r, " ", 20))
	require.NoError(t, err)
	assert.True(t, bmp.Empty())
	assert.Greater(t, bmp.Advance, 0.0)
}

func TestRasterizeErrors(t *testing.T) {
	r := NewRasterizer()
	_, err := r.RasterizeGlyph(tessera.GlyphKey{Font: 9, Glyph: 1, Size: 12})
	assert.True(t, errors.Is(err, ErrUnknownFont))

	_, err = r.RasterizeGlyph(tessera.GlyphKey{Font: Regular, Glyph: 1, Size: 0})
	assert.Error(t, err)

	_, err = r.AddFont([]byte("not a font"))
	assert.Error(t, err)
}

func TestShapeAdvancesPen(t *testing.T) {
	r := NewRasterizer()
	l, err := r.Shape(Regular, 16, "tessera", mgl64.Vec2{10, 20})
	require.NoError(t, err)
	require.Len(t, l.Glyphs, 7)
	assert.Equal(t, 1, l.Lines)
	assert.Equal(t, mgl64.Vec2{10, 20}, l.Glyphs[0].Origin)
	for i := 1; i < len(l.Glyphs); i++ {
		assert.Greater(t, l.Glyphs[i].Origin[0], l.Glyphs[i-1].Origin[0])
		assert.Equal(t, 20.0, l.Glyphs[i].Origin[1])
	}
	// "e" repeats, so its key must too.
	assert.Equal(t, l.Glyphs[1].Key, l.Glyphs[4].Key)
	assert.Greater(t, l.Width, 0.0)
}

func TestShapeMonoWidth(t *testing.T) {
	r := NewRasterizer()
	a, err := r.Shape(Mono, 16, "iiii", mgl64.Vec2{})
	require.NoError(t, err)
	b, err := r.Shape(Mono, 16, "MMMM", mgl64.Vec2{})
	require.NoError(t, err)
	assert.InDelta(t, a.Width, b.Width, 1e-9)
}

func TestShapeNewlinesAndTabs(t *testing.T) {
	r := NewRasterizer()
	m, err := r.Metrics(Regular, 16)
	require.NoError(t, err)

	l, err := r.Shape(Regular, 16, "ab\ncd", mgl64.Vec2{5, 0})
	require.NoError(t, err)
	require.Len(t, l.Glyphs, 4)
	assert.Equal(t, 2, l.Lines)
	assert.Equal(t, 5.0, l.Glyphs[2].Origin[0])
	assert.InDelta(t, m.LineHeight, l.Glyphs[2].Origin[1], 1e-9)

	tab, err := r.Shape(Regular, 16, "\tx", mgl64.Vec2{})
	require.NoError(t, err)
	spaces, err := r.Shape(Regular, 16, "    x", mgl64.Vec2{})
	require.NoError(t, err)
	assert.InDelta(t, spaces.Glyphs[4].Origin[0], tab.Glyphs[0].Origin[0], 0.5)
}

func TestShapeNormalizesNFC(t *testing.T) {
	r := NewRasterizer()
	composed, err := r.Shape(Regular, 16, "é", mgl64.Vec2{})
	require.NoError(t, err)
	decomposed, err := r.Shape(Regular, 16, "e\u0301", mgl64.Vec2{})
	require.NoError(t, err)
	require.Len(t, decomposed.Glyphs, 1)
	assert.Equal(t, composed.Glyphs[0].Key, decomposed.Glyphs[0].Key)
}

func TestRasterizerFeedsAtlas(t *testing.T) {
	r := NewRasterizer()
	run, err := r.Run(Regular, 24, "Hi", mgl64.Vec2{}, tessera.ColorWhite)
	require.NoError(t, err)

	atlas := tessera.NewAtlas(tessera.AtlasSDF, tessera.AtlasConfig{PageSize: 128, Padding: 1})
	for _, g := range run.Glyphs {
		key := g.Key
		ref, err := atlas.Acquire(tessera.GlyphContent(key), func() (tessera.GlyphBitmap, error) {
			return r.RasterizeGlyph(key)
		})
		require.NoError(t, err)
		e := atlas.Lookup(ref)
		assert.Positive(t, e.Width)
		assert.Less(t, e.BearingX, 0.0, "distance field padding extends left of the pen")
	}
	assert.Equal(t, 2, atlas.Stats().Entries)
}
