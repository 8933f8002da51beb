// Package ebitendevice implements tessera.Device on Ebitengine. Atlas pages
// become ebiten images, instance buffers stay on the CPU and Submit
// expands them into quads drawn with one DrawTrianglesShader32 call per
// draw call, using Kage shaders for the shape, distance-field glyph and
// color glyph pipelines.
package ebitendevice

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
)

type texture struct {
	img    *ebiten.Image
	format tessera.TextureFormat
	width  int
	height int
}

type buffer struct {
	capacity  int
	instances []tessera.Instance
}

// Device draws tessera batches onto an ebiten image. Set the target with
// SetTarget before each Scene.Draw, usually the screen passed to
// ebiten.Game.Draw. Not safe for concurrent use.
type Device struct {
	target  *ebiten.Image
	shaders [3]*ebiten.Shader

	next     uint32
	textures map[tessera.TextureHandle]*texture
	buffers  map[tessera.BufferHandle]*buffer

	verts    []ebiten.Vertex
	inds     []uint32
	uniforms map[string]any
	op       ebiten.DrawTrianglesShaderOptions
	staging  []byte
	shots    []string

	// ScreenshotDir is where Screenshot writes PNG files. Defaults to
	// "screenshots".
	ScreenshotDir string
}

var _ tessera.Device = (*Device)(nil)

// New compiles the pipeline shaders.
func New() (*Device, error) {
	d := &Device{
		textures: make(map[tessera.TextureHandle]*texture),
		buffers:  make(map[tessera.BufferHandle]*buffer),
		uniforms: map[string]any{"AAFactor": float32(tessera.DefaultAAFactor)},
	}
	srcs := [3]string{
		tessera.PipelineShape:      shapeShaderSrc,
		tessera.PipelineSDFGlyph:   sdfShaderSrc,
		tessera.PipelineColorGlyph: colorShaderSrc,
	}
	for p, src := range srcs {
		s, err := ebiten.NewShader([]byte(src))
		if err != nil {
			return nil, errors.Wrapf(err, "ebitendevice: compile %v shader", tessera.Pipeline(p))
		}
		d.shaders[p] = s
	}
	return d, nil
}

// SetTarget sets the image drawn to by Submit.
func (d *Device) SetTarget(img *ebiten.Image) {
	d.target = img
}

// SetAAFactor sets the distance-field anti-aliasing factor.
func (d *Device) SetAAFactor(f float64) {
	d.uniforms["AAFactor"] = float32(f)
}

// CreateTexture implements tessera.Device.
func (d *Device) CreateTexture(width, height int, format tessera.TextureFormat) (tessera.TextureHandle, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("ebitendevice: invalid texture size %dx%d", width, height)
	}
	d.next++
	h := tessera.TextureHandle(d.next)
	d.textures[h] = &texture{img: ebiten.NewImage(width, height), format: format, width: width, height: height}
	tessera.Logger().Info("ebitendevice: texture created", "texture", h, "width", width, "height", height)
	return h, nil
}

// UploadTexture implements tessera.Device. Single-channel data is
// replicated into all four channels so it survives premultiplication.
func (d *Device) UploadTexture(tex tessera.TextureHandle, x, y, width, height int, pixels []byte) error {
	t, ok := d.textures[tex]
	if !ok {
		return errors.Errorf("ebitendevice: upload to unknown texture %d", tex)
	}
	r := image.Rect(x, y, x+width, y+height)
	if !r.In(image.Rect(0, 0, t.width, t.height)) {
		return errors.Errorf("ebitendevice: region %v outside texture %d", r, tex)
	}
	n := width * height
	rgba := pixels
	if t.format == tessera.TextureR8 {
		if len(pixels) < n {
			return errors.Errorf("ebitendevice: short upload to texture %d", tex)
		}
		d.staging = expandR8(d.staging[:0], pixels[:n])
		rgba = d.staging
	} else if len(pixels) < n*4 {
		return errors.Errorf("ebitendevice: short upload to texture %d", tex)
	}
	t.img.SubImage(r).(*ebiten.Image).WritePixels(rgba[:n*4])
	return nil
}

func expandR8(dst, src []byte) []byte {
	for _, v := range src {
		dst = append(dst, v, v, v, v)
	}
	return dst
}

// ReleaseTexture implements tessera.Device.
func (d *Device) ReleaseTexture(tex tessera.TextureHandle) {
	t, ok := d.textures[tex]
	if !ok {
		tessera.Logger().Warn("ebitendevice: release of unknown texture", "texture", tex)
		return
	}
	t.img.Deallocate()
	delete(d.textures, tex)
}

// CreateBuffer implements tessera.Device.
func (d *Device) CreateBuffer(capacity int) (tessera.BufferHandle, error) {
	d.next++
	h := tessera.BufferHandle(d.next)
	d.buffers[h] = &buffer{capacity: capacity, instances: make([]tessera.Instance, 0, capacity)}
	return h, nil
}

// UploadBuffer implements tessera.Device.
func (d *Device) UploadBuffer(buf tessera.BufferHandle, instances []tessera.Instance) error {
	b, ok := d.buffers[buf]
	if !ok {
		return errors.Errorf("ebitendevice: upload to unknown buffer %d", buf)
	}
	if len(instances) > b.capacity {
		return errors.Errorf("ebitendevice: %d instances overflow buffer %d of %d", len(instances), buf, b.capacity)
	}
	b.instances = append(b.instances[:0], instances...)
	return nil
}

// ReleaseBuffer implements tessera.Device.
func (d *Device) ReleaseBuffer(buf tessera.BufferHandle) {
	if _, ok := d.buffers[buf]; !ok {
		tessera.Logger().Warn("ebitendevice: release of unknown buffer", "buffer", buf)
		return
	}
	delete(d.buffers, buf)
}

// Submit implements tessera.Device.
func (d *Device) Submit(calls []tessera.DrawCall) error {
	if d.target == nil {
		return errors.New("ebitendevice: no target image")
	}
	b := d.target.Bounds()
	for i := range calls {
		c := &calls[i]
		buf, ok := d.buffers[c.Buffer]
		if !ok {
			return errors.Errorf("ebitendevice: draw call %d uses unknown buffer %d", i, c.Buffer)
		}
		var tex *texture
		if c.Pipeline != tessera.PipelineShape {
			if tex, ok = d.textures[c.Texture]; !ok {
				return errors.Errorf("ebitendevice: draw call %d uses unknown texture %d", i, c.Texture)
			}
		}

		q := quadBuilder{
			vm:     toMat64(c.Constants.ViewModel),
			width:  float64(b.Dx()),
			height: float64(b.Dy()),
			origin: [2]float64{float64(b.Min.X), float64(b.Min.Y)},
			clipOn: c.Constants.ClipEnabled,
			clip:   c.Constants.Clip,
			shape:  c.Pipeline == tessera.PipelineShape,
		}
		if tex != nil {
			q.texW, q.texH = float64(tex.width), float64(tex.height)
		}
		d.verts, d.inds = d.verts[:0], d.inds[:0]
		for j := range buf.instances[:min(c.Count, len(buf.instances))] {
			d.verts, d.inds = q.appendQuad(d.verts, d.inds, &buf.instances[j])
		}
		if len(d.inds) == 0 {
			continue
		}

		d.op = ebiten.DrawTrianglesShaderOptions{Uniforms: d.uniforms}
		if tex != nil {
			d.op.Images[0] = tex.img
		}
		d.target.DrawTrianglesShader32(d.verts, d.inds, d.shaders[c.Pipeline], &d.op)
	}
	return d.flushScreenshots()
}

// quadBuilder turns instances into projected, clipped screen quads.
type quadBuilder struct {
	vm            mgl64.Mat4
	width, height float64
	origin        [2]float64
	clipOn        bool
	clip          [4]float32
	shape         bool
	texW, texH    float64
}

// appendQuad appends the four vertices and six indices of inst. Clipping
// is exact because both the quad and the clip rectangle are axis aligned
// in model space. Quads crossing behind the camera are dropped. Source
// coordinates interpolate linearly in screen space.
func (q *quadBuilder) appendQuad(verts []ebiten.Vertex, inds []uint32, inst *tessera.Instance) ([]ebiten.Vertex, []uint32) {
	x0, y0 := float64(inst.Quad[0]), float64(inst.Quad[1])
	x1, y1 := float64(inst.Quad[2]), float64(inst.Quad[3])
	if x1 <= x0 || y1 <= y0 {
		return verts, inds
	}
	cx0, cy0, cx1, cy1 := x0, y0, x1, y1
	if q.clipOn {
		cx0 = math.Max(cx0, float64(q.clip[0]))
		cy0 = math.Max(cy0, float64(q.clip[1]))
		cx1 = math.Min(cx1, float64(q.clip[2]))
		cy1 = math.Min(cy1, float64(q.clip[3]))
		if cx1 <= cx0 || cy1 <= cy0 {
			return verts, inds
		}
	}

	var src [4]float64
	if q.shape {
		mx, my := (x0+x1)/2, (y0+y1)/2
		src = [4]float64{cx0 - mx, cy0 - my, cx1 - mx, cy1 - my}
	} else {
		uv := inst.UV
		lerp := func(a, b float32, t float64) float64 { return float64(a) + float64(b-a)*t }
		src = [4]float64{
			lerp(uv[0], uv[2], (cx0-x0)/(x1-x0)) * q.texW,
			lerp(uv[1], uv[3], (cy0-y0)/(y1-y0)) * q.texH,
			lerp(uv[0], uv[2], (cx1-x0)/(x1-x0)) * q.texW,
			lerp(uv[1], uv[3], (cy1-y0)/(y1-y0)) * q.texH,
		}
	}

	base := uint32(len(verts))
	mx := [4]float64{cx0, cx1, cx0, cx1}
	my := [4]float64{cy0, cy0, cy1, cy1}
	sx := [4]float64{src[0], src[2], src[0], src[2]}
	sy := [4]float64{src[1], src[1], src[3], src[3]}
	var out [4]ebiten.Vertex
	for i := range out {
		dx, dy, ok := q.project(mx[i], my[i])
		if !ok {
			return verts, inds
		}
		out[i] = ebiten.Vertex{
			DstX:   float32(dx),
			DstY:   float32(dy),
			SrcX:   float32(sx[i]),
			SrcY:   float32(sy[i]),
			ColorR: inst.Color[0],
			ColorG: inst.Color[1],
			ColorB: inst.Color[2],
			ColorA: inst.Color[3],
		}
		if q.shape {
			out[i].Custom0, out[i].Custom1 = inst.Params[0], inst.Params[1]
			out[i].Custom2, out[i].Custom3 = inst.Params[2], inst.Params[3]
		}
	}
	verts = append(verts, out[:]...)
	// Two triangles: TL-TR-BL, TR-BR-BL
	inds = append(inds, base+0, base+1, base+2, base+1, base+3, base+2)
	return verts, inds
}

func (q *quadBuilder) project(x, y float64) (float64, float64, bool) {
	c := q.vm.Mul4x1(mgl64.Vec4{x, y, 0, 1})
	if c[3] <= 0 {
		return 0, 0, false
	}
	return q.origin[0] + (c[0]/c[3]+1)/2*q.width, q.origin[1] + (1-c[1]/c[3])/2*q.height, true
}

func toMat64(m mgl32.Mat4) mgl64.Mat4 {
	var out mgl64.Mat4
	for i := range m {
		out[i] = float64(m[i])
	}
	return out
}
