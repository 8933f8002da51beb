package headless

import (
	"bytes"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/phanxgames/tessera/glyphs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScene(t *testing.T, raster tessera.GlyphRasterizer) (*tessera.Scene, *Device) {
	t.Helper()
	dev := New(640, 480)
	cfg := tessera.DefaultConfig()
	cfg.Atlas.PageSize = 256
	s, err := tessera.NewScene(dev, raster, cfg)
	require.NoError(t, err)
	return s, dev
}

func addVisual(t *testing.T, g *tessera.Graph, parent tessera.NodeID, v tessera.Visual) tessera.NodeID {
	t.Helper()
	id := g.NewVisual("v", v)
	require.NoError(t, g.Attach(parent, id))
	return id
}

func TestTextureBookkeeping(t *testing.T) {
	dev := New(8, 8)
	tex, err := dev.CreateTexture(4, 4, tessera.TextureR8)
	require.NoError(t, err)

	require.NoError(t, dev.UploadTexture(tex, 1, 1, 2, 2, []byte{1, 2, 3, 4}))
	_, _, px, ok := dev.TexturePixels(tex)
	require.True(t, ok)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 1, 2, 0, 0, 3, 4, 0, 0, 0, 0, 0}, px)

	assert.Error(t, dev.UploadTexture(tex, 3, 3, 2, 2, make([]byte, 4)), "region out of bounds")
	assert.Error(t, dev.UploadTexture(99, 0, 0, 1, 1, []byte{0}), "unknown texture")

	dev.ReleaseTexture(tex)
	textures, _ := dev.Live()
	assert.Zero(t, textures)
	assert.Equal(t, 1, dev.Stats().TextureUploads)
}

func TestBufferLimit(t *testing.T) {
	dev := New(8, 8)
	dev.MaxBuffers = 1
	buf, err := dev.CreateBuffer(4)
	require.NoError(t, err)
	_, err = dev.CreateBuffer(4)
	assert.True(t, errors.Is(err, tessera.ErrDeviceExhausted))

	assert.Error(t, dev.UploadBuffer(buf, make([]tessera.Instance, 5)))
	require.NoError(t, dev.UploadBuffer(buf, make([]tessera.Instance, 4)))
	dev.ReleaseBuffer(buf)
	_, buffers := dev.Live()
	assert.Zero(t, buffers)
}

func TestSubmitValidatesCalls(t *testing.T) {
	dev := New(8, 8)
	err := dev.Submit([]tessera.DrawCall{{Pipeline: tessera.PipelineShape, Buffer: 42, Count: 1}})
	assert.Error(t, err)
	assert.Zero(t, dev.Stats().Submits)
}

func TestDrawRect(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(100, 100, 50, 50, tessera.Color{R: 1, A: 1})))
	require.NoError(t, s.TickAndRender(0))

	img := dev.Image()
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(125, 125))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(100, 100), "top-left pixel is inside")
	assert.Equal(t, color.RGBA{}, img.RGBAAt(99, 125))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(150, 125))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(50, 50))
}

func TestDrawOrderPaintsLaterOnTop(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	a := g.NewTransform("a")
	b := g.NewTransform("b")
	require.NoError(t, g.Attach(g.Root(), a))
	require.NoError(t, g.Attach(g.Root(), b))
	addVisual(t, g, b, tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{G: 1, A: 1})))
	addVisual(t, g, a, tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{R: 1, A: 1})))
	require.NoError(t, s.TickAndRender(0))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, dev.Image().RGBAAt(20, 20))

	require.NoError(t, g.SetChildIndex(b, 0))
	require.NoError(t, s.TickAndRender(0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, dev.Image().RGBAAt(20, 20))
}

func TestDrawClipAndTransform(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	panel := g.NewTransform("panel")
	require.NoError(t, g.Attach(g.Root(), panel))
	require.NoError(t, g.SetTranslation(panel, mgl64.Vec3{200, 100, 0}))

	v := tessera.ShapeVisual(tessera.Rect(0, 0, 100, 100, tessera.ColorWhite))
	v.Clip = tessera.NewClipRect(0, 0, 50, 100)
	addVisual(t, g, panel, v)
	require.NoError(t, s.TickAndRender(0))

	img := dev.Image()
	assert.Equal(t, uint8(255), img.RGBAAt(225, 150).A)
	assert.Equal(t, uint8(0), img.RGBAAt(275, 150).A, "right half is clipped")
	assert.Equal(t, uint8(0), img.RGBAAt(25, 50).A, "translation moved the rect")
}

func TestDrawCircleAntialiased(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Circle(320, 240, 40, tessera.ColorWhite)))
	require.NoError(t, s.TickAndRender(0))

	img := dev.Image()
	assert.Equal(t, uint8(255), img.RGBAAt(320, 240).A)
	assert.Equal(t, uint8(0), img.RGBAAt(320+45, 240).A)

	partial := 0
	for x := 350; x < 370; x++ {
		if a := img.RGBAAt(x, 240).A; a > 0 && a < 255 {
			partial++
		}
	}
	assert.Positive(t, partial, "edge pixels should be partially covered")
}

func TestDrawText(t *testing.T) {
	r := glyphs.NewRasterizer()
	s, dev := newScene(t, r)
	g := s.Graph()
	run, err := r.Run(glyphs.Regular, 48, "H", mgl64.Vec2{100, 200}, tessera.ColorWhite)
	require.NoError(t, err)
	addVisual(t, g, g.Root(), tessera.TextVisual(run))
	require.NoError(t, s.TickAndRender(0))

	calls := dev.LastSubmit()
	require.Len(t, calls, 1)
	assert.Equal(t, tessera.PipelineSDFGlyph, calls[0].Pipeline)

	img := dev.Image()
	inked := 0
	for y := 150; y < 200; y++ {
		for x := 100; x < 140; x++ {
			if img.RGBAAt(x, y).A > 128 {
				inked++
			}
		}
	}
	assert.Greater(t, inked, 100, "glyph body should be drawn above the baseline")
	assert.Equal(t, uint8(0), img.RGBAAt(120, 230).A, "nothing below the baseline for H")
}

func TestRecordOnly(t *testing.T) {
	s, dev := newScene(t, nil)
	dev.SetRasterize(false)
	g := s.Graph()
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(0, 0, 10, 10, tessera.ColorWhite)))
	require.NoError(t, s.TickAndRender(0))
	assert.Equal(t, 1, dev.Stats().DrawCalls)
	assert.Equal(t, 1, dev.Stats().Instances)
	assert.Equal(t, uint8(0), dev.Image().RGBAAt(5, 5).A)
}

func TestSetRasterizeConcurrentWithSubmit(t *testing.T) {
	dev := New(16, 16)
	buf, err := dev.CreateBuffer(1)
	require.NoError(t, err)
	require.NoError(t, dev.UploadBuffer(buf, make([]tessera.Instance, 1)))
	calls := []tessera.DrawCall{{Pipeline: tessera.PipelineShape, Buffer: buf, Count: 1}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			dev.SetRasterize(i%2 == 0)
		}
	}()
	for i := 0; i < 100; i++ {
		require.NoError(t, dev.Submit(calls))
	}
	wg.Wait()
	assert.False(t, dev.Rasterizing())
	assert.Equal(t, 100, dev.Stats().Submits)
}

func TestWritePNG(t *testing.T) {
	dev := New(32, 16)
	dev.SetClearColor(color.RGBA{10, 20, 30, 255})
	require.NoError(t, dev.Submit(nil))

	var buf bytes.Buffer
	require.NoError(t, dev.WritePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(10)*0x101, r)
}

func TestInterleavedBatchesCompositeInDrawOrder(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{R: 1, A: 1})))
	green := tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{G: 1, A: 1}))
	green.Clip = tessera.NewClipRect(0, 0, 100, 100)
	addVisual(t, g, g.Root(), green)
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{B: 1, A: 1})))
	require.NoError(t, s.TickAndRender(0))

	assert.Equal(t, color.RGBA{0, 0, 255, 255}, dev.Image().RGBAAt(20, 20))
}

func TestDepthBiasDrawsOnTop(t *testing.T) {
	s, dev := newScene(t, nil)
	g := s.Graph()
	red := addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{R: 1, A: 1})))
	addVisual(t, g, g.Root(), tessera.ShapeVisual(tessera.Rect(0, 0, 40, 40, tessera.Color{G: 1, A: 1})))
	require.NoError(t, s.TickAndRender(0))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, dev.Image().RGBAAt(20, 20))

	require.NoError(t, g.SetVisualDepthBias(red, 2))
	require.NoError(t, s.TickAndRender(0))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, dev.Image().RGBAAt(20, 20))
}
