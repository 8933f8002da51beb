package tessera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DistanceFieldPad is the border, in texels, added around a glyph
	// bitmap so the field can fall off outside the outline.
	DistanceFieldPad = 4

	// DistanceFieldMultiplier converts a normalized texel value into
	// texels of distance: 255/32, so one texel spans 32 byte steps.
	DistanceFieldMultiplier = 7.96875

	// DistanceFieldThreshold is the normalized texel value of the outline
	// (128/255).
	DistanceFieldThreshold = 0.50196078431

	// DefaultAAFactor scales the screen-space gradient length into the
	// anti-aliasing ramp half-width.
	DefaultAAFactor = 0.65

	distanceFieldScale = 32
)

// GenerateDistanceField converts a coverage bitmap into an encoded signed
// distance field padded by DistanceFieldPad on every side. Texels with
// coverage of at least one half are inside. Each output byte stores
// 128 - 32*d clamped to [0, 255], where d is the distance in texels to the
// outline, negative inside.
func GenerateDistanceField(alpha []byte, width, height int) (field []byte, outW, outH int) {
	outW, outH = width+2*DistanceFieldPad, height+2*DistanceFieldPad
	n := outW * outH

	// Squared distance to the nearest inside texel, and to the nearest
	// outside texel.
	toInside := make([]float64, n)
	toOutside := make([]float64, n)
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			i := y*outW + x
			in := false
			sx, sy := x-DistanceFieldPad, y-DistanceFieldPad
			if sx >= 0 && sy >= 0 && sx < width && sy < height {
				in = alpha[sy*width+sx] >= 128
			}
			if in {
				toInside[i], toOutside[i] = 0, math.Inf(1)
			} else {
				toInside[i], toOutside[i] = math.Inf(1), 0
			}
		}
	}
	edt2D(toInside, outW, outH)
	edt2D(toOutside, outW, outH)

	field = make([]byte, n)
	for i := range field {
		var d float64
		if toInside[i] > 0 {
			d = math.Sqrt(toInside[i]) - 0.5
		} else {
			d = -(math.Sqrt(toOutside[i]) - 0.5)
		}
		field[i] = EncodeDistance(d)
	}
	return field, outW, outH
}

// DistanceFieldGlyph converts a FormatAlpha glyph into a FormatDistance
// glyph, moving the bearings to account for the padding.
func DistanceFieldGlyph(b GlyphBitmap) GlyphBitmap {
	if b.Format != FormatAlpha || b.Empty() {
		return b
	}
	field, w, h := GenerateDistanceField(b.Pixels, b.Width, b.Height)
	return GlyphBitmap{
		Format:   FormatDistance,
		Width:    w,
		Height:   h,
		Pixels:   field,
		BearingX: b.BearingX - DistanceFieldPad,
		BearingY: b.BearingY + DistanceFieldPad,
		Advance:  b.Advance,
	}
}

// EncodeDistance maps a signed distance in texels (negative inside) to a
// field byte.
func EncodeDistance(d float64) byte {
	v := math.Round(128 - d*distanceFieldScale)
	return byte(clampFloat(v, 0, 255))
}

// DecodeDistance maps a field byte back to a signed distance in texels,
// negative inside, the way the glyph pipeline samples it.
func DecodeDistance(b byte) float64 {
	return -(float64(b)/255 - DistanceFieldThreshold) * DistanceFieldMultiplier
}

// GradientCoverage is the CPU reference of the distance-field fragment
// anti-aliasing. d is the sampled distance in texels (negative inside),
// distGrad its screen-space gradient, and jdx, jdy the screen-space
// derivatives of the texel coordinate. The gradient direction is
// normalized, mapped through the Jacobian, and the coverage ramp spans
// aaFactor times its length on either side of the outline.
func GradientCoverage(d float64, distGrad, jdx, jdy mgl64.Vec2, aaFactor float64) float64 {
	g := distGrad
	if g.Dot(g) < 0.0001 {
		g = mgl64.Vec2{math.Sqrt2 / 2, math.Sqrt2 / 2}
	} else {
		g = g.Normalize()
	}
	grad := mgl64.Vec2{
		g[0]*jdx[0] + g[1]*jdy[0],
		g[0]*jdx[1] + g[1]*jdy[1],
	}
	afwidth := aaFactor * grad.Len()
	return smoothstep(-afwidth, afwidth, -d)
}

func smoothstep(e0, e1, x float64) float64 {
	if e1 <= e0 {
		if x < e0 {
			return 0
		}
		return 1
	}
	t := clampFloat((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}

// edt2D computes the exact squared Euclidean distance transform in place:
// a 1D pass over columns, then over rows (Felzenszwalb and Huttenlocher).
func edt2D(grid []float64, w, h int) {
	size := max(w, h)
	f := make([]float64, size)
	d := make([]float64, size)
	v := make([]int, size)
	z := make([]float64, size+1)

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = grid[y*w+x]
		}
		edt1D(f[:h], d[:h], v, z)
		for y := 0; y < h; y++ {
			grid[y*w+x] = d[y]
		}
	}
	for y := 0; y < h; y++ {
		copy(f[:w], grid[y*w:(y+1)*w])
		edt1D(f[:w], d[:w], v, z)
		copy(grid[y*w:(y+1)*w], d[:w])
	}
}

// edt1D is the lower envelope of parabolas rooted at f.
func edt1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := -1
	for q := 0; q < n; q++ {
		if math.IsInf(f[q], 1) {
			continue
		}
		if k < 0 {
			k = 0
			v[0] = q
			z[0] = math.Inf(-1)
			z[1] = math.Inf(1)
			continue
		}
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			if k < 0 {
				break
			}
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		if k == 0 {
			z[0] = math.Inf(-1)
		} else {
			z[k] = s
		}
		z[k+1] = math.Inf(1)
	}
	if k < 0 {
		for q := range d {
			d[q] = math.Inf(1)
		}
		return
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

func intersect(f []float64, q, p int) float64 {
	return ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*q-2*p)
}
