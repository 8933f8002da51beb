package tessera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDistanceEncodingRoundtrip(t *testing.T) {
	for _, d := range []float64{-3.5, -1, -0.25, 0, 0.5, 2, 3.96875} {
		got := DecodeDistance(EncodeDistance(d))
		if math.Abs(got-d) > 1.0/64 {
			t.Errorf("decode(encode(%v)) = %v", d, got)
		}
	}
}

func TestDistanceEncodingOutline(t *testing.T) {
	if b := EncodeDistance(0); b != 128 {
		t.Errorf("outline byte = %d, want 128", b)
	}
	if math.Abs(DistanceFieldThreshold*255-128) > 1e-6 {
		t.Errorf("threshold = %v, want 128/255", DistanceFieldThreshold)
	}
	assertNear(t, "multiplier", DistanceFieldMultiplier*32, 255)
	if EncodeDistance(-100) != 255 || EncodeDistance(100) != 0 {
		t.Error("encoding should clamp")
	}
}

func TestGenerateDistanceFieldSquare(t *testing.T) {
	const n = 10
	alpha := make([]byte, n*n)
	for i := range alpha {
		alpha[i] = 255
	}
	field, w, h := GenerateDistanceField(alpha, n, n)
	if w != n+2*DistanceFieldPad || h != n+2*DistanceFieldPad {
		t.Fatalf("size = %dx%d", w, h)
	}
	at := func(x, y int) float64 { return DecodeDistance(field[y*w+x]) }

	center := at(w/2, h/2)
	if center >= 0 {
		t.Errorf("center distance = %v, want inside (negative)", center)
	}
	if corner := at(0, 0); corner <= 0 {
		t.Errorf("corner distance = %v, want outside (positive)", corner)
	}
	// First texel inside the edge and first outside sit half a texel
	// from the outline.
	assertNear(t, "inside edge", at(DistanceFieldPad, h/2), -0.5)
	assertNear(t, "outside edge", at(DistanceFieldPad-1, h/2), 0.5)
	// Monotonic towards the center along a row.
	for x := DistanceFieldPad; x < w/2; x++ {
		if at(x+1, h/2) > at(x, h/2) {
			t.Fatalf("distance increases inward at x=%d", x)
		}
	}
}

func TestEdtMatchesBruteForce(t *testing.T) {
	const w, h = 9, 7
	grid := make([]float64, w*h)
	seeds := [][2]int{{1, 1}, {7, 5}, {4, 3}}
	for i := range grid {
		grid[i] = math.Inf(1)
	}
	for _, s := range seeds {
		grid[s[1]*w+s[0]] = 0
	}
	edt2D(grid, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			best := math.Inf(1)
			for _, s := range seeds {
				dx, dy := float64(x-s[0]), float64(y-s[1])
				best = math.Min(best, dx*dx+dy*dy)
			}
			if grid[y*w+x] != best {
				t.Fatalf("edt(%d,%d) = %v, want %v", x, y, grid[y*w+x], best)
			}
		}
	}
}

func TestGradientCoverage(t *testing.T) {
	grad := mgl64.Vec2{1, 0}
	// One texel per pixel, unscaled.
	jdx, jdy := mgl64.Vec2{1, 0}, mgl64.Vec2{0, 1}

	assertNear(t, "on outline", GradientCoverage(0, grad, jdx, jdy, DefaultAAFactor), 0.5)
	if c := GradientCoverage(-1, grad, jdx, jdy, DefaultAAFactor); c != 1 {
		t.Errorf("one texel inside = %v, want 1", c)
	}
	if c := GradientCoverage(1, grad, jdx, jdy, DefaultAAFactor); c != 0 {
		t.Errorf("one texel outside = %v, want 0", c)
	}

	// Minified 4x: one pixel covers four texels, so the ramp widens and
	// a point one texel inside is only partly covered.
	min4x, min4y := mgl64.Vec2{4, 0}, mgl64.Vec2{0, 4}
	c := GradientCoverage(-1, grad, min4x, min4y, DefaultAAFactor)
	if c <= 0.5 || c >= 1 {
		t.Errorf("minified coverage = %v, want in (0.5, 1)", c)
	}

	// A degenerate gradient falls back to the diagonal and stays finite.
	if c := GradientCoverage(0.1, mgl64.Vec2{}, jdx, jdy, DefaultAAFactor); math.IsNaN(c) {
		t.Error("zero gradient produced NaN")
	}
}

func TestDistanceFieldGlyphKeepsEmpty(t *testing.T) {
	b := DistanceFieldGlyph(GlyphBitmap{Advance: 3})
	if !b.Empty() || b.Advance != 3 {
		t.Errorf("empty glyph changed: %+v", b)
	}
}
