package ebitendevice

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/tessera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pixelBuilder(shape bool) quadBuilder {
	return quadBuilder{
		vm:     mgl64.Ortho(0, 200, 100, 0, -1, 1),
		width:  200,
		height: 100,
		shape:  shape,
		texW:   64,
		texH:   64,
	}
}

func TestAppendQuadShape(t *testing.T) {
	q := pixelBuilder(true)
	inst := tessera.Instance{
		Quad:   [4]float32{10, 20, 50, 40},
		Color:  [4]float32{1, 0, 0, 1},
		Params: [4]float32{20, 10, 0, -1},
	}
	verts, inds := q.appendQuad(nil, nil, &inst)
	require.Len(t, verts, 4)
	assert.Equal(t, []uint32{0, 1, 2, 1, 3, 2}, inds)

	assert.InDelta(t, 10, verts[0].DstX, 1e-4)
	assert.InDelta(t, 20, verts[0].DstY, 1e-4)
	assert.InDelta(t, 50, verts[3].DstX, 1e-4)
	assert.InDelta(t, 40, verts[3].DstY, 1e-4)

	// Shape source coordinates are relative to the center.
	assert.Equal(t, float32(-20), verts[0].SrcX)
	assert.Equal(t, float32(-10), verts[0].SrcY)
	assert.Equal(t, float32(20), verts[3].SrcX)
	assert.Equal(t, float32(20), verts[0].Custom0)
	assert.Equal(t, float32(-1), verts[0].Custom3)
}

func TestAppendQuadClip(t *testing.T) {
	q := pixelBuilder(false)
	q.clipOn = true
	q.clip = [4]float32{0, 0, 30, 100}
	inst := tessera.Instance{
		Quad: [4]float32{10, 10, 50, 30},
		UV:   [4]float32{0, 0, 0.5, 0.25},
	}
	verts, _ := q.appendQuad(nil, nil, &inst)
	require.Len(t, verts, 4)
	assert.InDelta(t, 30, verts[1].DstX, 1e-4, "right edge clipped")
	// Half the quad survives, so half the UV span: 0.25 * 64 texels.
	assert.InDelta(t, 16, verts[1].SrcX, 1e-4)
	assert.InDelta(t, 16, verts[3].SrcY, 1e-4)

	q.clip = [4]float32{60, 0, 100, 100}
	verts, inds := q.appendQuad(nil, nil, &inst)
	assert.Empty(t, verts)
	assert.Empty(t, inds)
}

func TestAppendQuadBehindCamera(t *testing.T) {
	cam := tessera.PixelCamera(200, 100, mgl64.DegToRad(45))
	// Look away from the z=0 plane.
	cam.Eye[2], cam.Target[2] = 10, 20
	q := quadBuilder{vm: cam.ViewProjection(), width: 200, height: 100, shape: true}
	inst := tessera.Instance{Quad: [4]float32{0, 0, 10, 10}}
	verts, _ := q.appendQuad(nil, nil, &inst)
	assert.Empty(t, verts)
}

func TestAppendQuadMatchesCamera(t *testing.T) {
	cam := tessera.PixelCamera(200, 100, mgl64.DegToRad(45))
	q := quadBuilder{vm: cam.ViewProjection(), width: 200, height: 100, shape: true}
	inst := tessera.Instance{Quad: [4]float32{10, 20, 30, 40}}
	verts, _ := q.appendQuad([]ebiten.Vertex{}, nil, &inst)
	require.Len(t, verts, 4)
	assert.InDelta(t, 10, verts[0].DstX, 1e-3)
	assert.InDelta(t, 40, verts[3].DstY, 1e-3)
}

func TestExpandR8(t *testing.T) {
	assert.Equal(t, []byte{1, 1, 1, 1, 200, 200, 200, 200}, expandR8(nil, []byte{1, 200}))
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "unlabeled", sanitizeLabel("  "))
	assert.Equal(t, "tilt_on-1.0", sanitizeLabel("tilt on-1.0"))
	assert.Equal(t, "a_b_c", sanitizeLabel("a/b\\c"))
}

func TestUnpremultiply(t *testing.T) {
	img := unpremultiply([]byte{64, 32, 0, 128, 10, 20, 30, 255, 0, 0, 0, 0}, 3, 1)
	assert.Equal(t, []byte{127, 63, 0, 128, 10, 20, 30, 255, 0, 0, 0, 0}, img.Pix)
}
