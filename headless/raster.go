package headless

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
)

// viewport maps between the model space of one draw call and framebuffer
// pixels.
type viewport struct {
	vm, inv       mgl64.Mat4
	width, height float64
}

func newViewport(m mgl32.Mat4, width, height int) (viewport, bool) {
	var vm mgl64.Mat4
	for i := range m {
		vm[i] = float64(m[i])
	}
	if math.Abs(vm.Det()) < 1e-18 {
		return viewport{}, false
	}
	return viewport{vm: vm, inv: vm.Inv(), width: float64(width), height: float64(height)}, true
}

// project maps a model-space point on the z=0 plane to pixel coordinates.
func (v *viewport) project(x, y float64) (sx, sy float64, ok bool) {
	c := v.vm.Mul4x1(mgl64.Vec4{x, y, 0, 1})
	if c[3] <= 0 {
		return 0, 0, false
	}
	return (c[0]/c[3] + 1) / 2 * v.width, (1 - c[1]/c[3]) / 2 * v.height, true
}

// unproject casts the ray through pixel position (sx, sy) and intersects
// it with the model z=0 plane.
func (v *viewport) unproject(sx, sy float64) (mgl64.Vec2, bool) {
	nx := sx/v.width*2 - 1
	ny := 1 - sy/v.height*2
	at := func(z float64) mgl64.Vec3 {
		p := v.inv.Mul4x1(mgl64.Vec4{nx, ny, z, 1})
		return p.Vec3().Mul(1 / p[3])
	}
	near, far := at(-1), at(1)
	dir := far.Sub(near)
	if math.Abs(dir[2]) < 1e-12 {
		return mgl64.Vec2{}, false
	}
	t := -near[2] / dir[2]
	p := near.Add(dir.Mul(t))
	return mgl64.Vec2{p[0], p[1]}, true
}

// rgba is a premultiplied color in [0, 1].
type rgba [4]float64

func (c rgba) scale(k float64) rgba {
	return rgba{c[0] * k, c[1] * k, c[2] * k, c[3] * k}
}

func (c rgba) mul(o rgba) rgba {
	return rgba{c[0] * o[0], c[1] * o[1], c[2] * o[2], c[3] * o[3]}
}

func (d *Device) drawCall(c *tessera.DrawCall, insts []tessera.Instance, tex *texture) {
	b := d.fb.Bounds()
	v, ok := newViewport(c.Constants.ViewModel, b.Dx(), b.Dy())
	if !ok {
		return
	}
	clip := tessera.ClipRect{Enabled: c.Constants.ClipEnabled}
	if clip.Enabled {
		k := c.Constants.Clip
		clip.MinX, clip.MinY, clip.MaxX, clip.MaxY = float64(k[0]), float64(k[1]), float64(k[2]), float64(k[3])
	}
	for i := range insts {
		d.drawInstance(&v, c.Pipeline, &insts[i], tex, clip)
	}
}

func (d *Device) drawInstance(v *viewport, p tessera.Pipeline, inst *tessera.Instance, tex *texture, clip tessera.ClipRect) {
	q := inst.Quad
	x0, y0, x1, y1 := float64(q[0]), float64(q[1]), float64(q[2]), float64(q[3])
	if x1 <= x0 || y1 <= y0 {
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range [4][2]float64{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
		sx, sy, ok := v.project(corner[0], corner[1])
		if !ok {
			return
		}
		minX, maxX = math.Min(minX, sx), math.Max(maxX, sx)
		minY, maxY = math.Min(minY, sy), math.Max(maxY, sy)
	}
	px0 := max(int(math.Floor(minX)), 0)
	py0 := max(int(math.Floor(minY)), 0)
	px1 := min(int(math.Ceil(maxX)), int(v.width))
	py1 := min(int(math.Ceil(maxY)), int(v.height))

	color := rgba{float64(inst.Color[0]), float64(inst.Color[1]), float64(inst.Color[2]), float64(inst.Color[3])}
	for py := py0; py < py1; py++ {
		for px := px0; px < px1; px++ {
			sx, sy := float64(px)+0.5, float64(py)+0.5
			m, ok := v.unproject(sx, sy)
			if !ok || m[0] < x0 || m[0] >= x1 || m[1] < y0 || m[1] >= y1 || !clip.Contains(m[0], m[1]) {
				continue
			}
			mx, okx := v.unproject(sx+1, sy)
			my, oky := v.unproject(sx, sy+1)
			if !okx || !oky {
				continue
			}

			var src rgba
			switch p {
			case tessera.PipelineShape:
				src = color.scale(shapeCoverage(inst, m, mx, my))
			case tessera.PipelineSDFGlyph:
				src = color.scale(d.glyphCoverage(inst, tex, m, mx, my))
			case tessera.PipelineColorGlyph:
				st := texelCoord(inst, tex, m)
				src = sampleRGBA(tex, st[0], st[1]).mul(color)
			}
			if src[3] <= 0 {
				continue
			}
			d.blend(px, py, src)
		}
	}
}

// shapeCoverage evaluates the analytic shape at model point m. mx and my
// are the model points one pixel to the right and below, which give the
// pixel footprint for anti-aliasing.
func shapeCoverage(inst *tessera.Instance, m, mx, my mgl64.Vec2) float64 {
	q := inst.Quad
	center := mgl64.Vec2{float64(q[0]+q[2]) / 2, float64(q[1]+q[3]) / 2}
	half := mgl64.Vec2{float64(inst.Params[0]), float64(inst.Params[1])}
	kind, radius, stroke := tessera.UnpackShapeParams([2]float32{inst.Params[2], inst.Params[3]})
	dist := tessera.ShapeDistance(kind, m.Sub(center), half, radius, stroke)
	pw := (mx.Sub(m).Len() + my.Sub(m).Len()) / 2
	return tessera.ShapeCoverage(dist, pw)
}

func (d *Device) glyphCoverage(inst *tessera.Instance, tex *texture, m, mx, my mgl64.Vec2) float64 {
	st := texelCoord(inst, tex, m)
	stx := texelCoord(inst, tex, mx)
	sty := texelCoord(inst, tex, my)
	dist := sampleDistance(tex, st[0], st[1])
	grad := mgl64.Vec2{
		sampleDistance(tex, stx[0], stx[1]) - dist,
		sampleDistance(tex, sty[0], sty[1]) - dist,
	}
	return tessera.GradientCoverage(dist, grad, stx.Sub(st), sty.Sub(st), d.aaFactor)
}

// texelCoord interpolates the instance UV rectangle at model point m and
// scales it to texels.
func texelCoord(inst *tessera.Instance, tex *texture, m mgl64.Vec2) mgl64.Vec2 {
	q, uv := inst.Quad, inst.UV
	fx := (m[0] - float64(q[0])) / float64(q[2]-q[0])
	fy := (m[1] - float64(q[1])) / float64(q[3]-q[1])
	u := float64(uv[0]) + fx*float64(uv[2]-uv[0])
	w := float64(uv[1]) + fy*float64(uv[3]-uv[1])
	return mgl64.Vec2{u * float64(tex.width), w * float64(tex.height)}
}

// bilinear returns the four texel indices around (s, t), clamped to the
// texture, and the interpolation weights.
func bilinear(tex *texture, s, t float64) (i00, i10, i01, i11 int, fx, fy float64) {
	x, y := s-0.5, t-0.5
	xf, yf := math.Floor(x), math.Floor(y)
	fx, fy = x-xf, y-yf
	cx := func(v int) int { return min(max(v, 0), tex.width-1) }
	cy := func(v int) int { return min(max(v, 0), tex.height-1) }
	ix, iy := int(xf), int(yf)
	x0, x1, y0, y1 := cx(ix), cx(ix+1), cy(iy), cy(iy+1)
	return y0*tex.width + x0, y0*tex.width + x1, y1*tex.width + x0, y1*tex.width + x1, fx, fy
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

// sampleDistance decodes the four neighbouring texels and interpolates,
// which equals decoding the filtered value since decoding is affine.
func sampleDistance(tex *texture, s, t float64) float64 {
	i00, i10, i01, i11, fx, fy := bilinear(tex, s, t)
	px := tex.pixels
	top := lerp(tessera.DecodeDistance(px[i00]), tessera.DecodeDistance(px[i10]), fx)
	bot := lerp(tessera.DecodeDistance(px[i01]), tessera.DecodeDistance(px[i11]), fx)
	return lerp(top, bot, fy)
}

func sampleRGBA(tex *texture, s, t float64) rgba {
	i00, i10, i01, i11, fx, fy := bilinear(tex, s, t)
	px := tex.pixels
	var out rgba
	for c := 0; c < 4; c++ {
		top := lerp(float64(px[i00*4+c]), float64(px[i10*4+c]), fx)
		bot := lerp(float64(px[i01*4+c]), float64(px[i11*4+c]), fx)
		out[c] = lerp(top, bot, fy) / 255
	}
	return out
}

// blend composites premultiplied src over the framebuffer pixel.
func (d *Device) blend(x, y int, src rgba) {
	i := d.fb.PixOffset(x, y)
	px := d.fb.Pix[i : i+4 : i+4]
	inv := 1 - math.Min(src[3], 1)
	for c := 0; c < 4; c++ {
		v := src[c]*255 + float64(px[c])*inv
		px[c] = uint8(math.Round(math.Min(math.Max(v, 0), 255)))
	}
}
