package tessera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind is the closed set of analytic shapes. The fragment evaluator
// in each device back-end switches over the same set.
type ShapeKind uint8

const (
	ShapeRect ShapeKind = iota
	ShapeRoundedRect
	ShapeCircle
	ShapeEllipse
	ShapeStrokeRect
	ShapeChamferRect
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeRect:
		return "rect"
	case ShapeRoundedRect:
		return "rounded-rect"
	case ShapeCircle:
		return "circle"
	case ShapeEllipse:
		return "ellipse"
	case ShapeStrokeRect:
		return "stroke-rect"
	case ShapeChamferRect:
		return "chamfer-rect"
	default:
		return "unknown"
	}
}

// Shape is an analytic shape in the model space of its visual's parent.
// Position is the top-left corner of the bounding box.
type Shape struct {
	Kind     ShapeKind
	Position mgl64.Vec2
	Size     mgl64.Vec2

	// Radius is the corner radius of ShapeRoundedRect and the corner cut
	// of ShapeChamferRect.
	Radius float64

	// Stroke is the border thickness of ShapeStrokeRect: X for the left
	// and right edges, Y for the top and bottom edges.
	Stroke mgl64.Vec2

	Color Color
}

// Rect returns a filled rectangle.
func Rect(x, y, w, h float64, c Color) Shape {
	return Shape{Kind: ShapeRect, Position: mgl64.Vec2{x, y}, Size: mgl64.Vec2{w, h}, Color: c}
}

// RoundedRect returns a rectangle with rounded corners.
func RoundedRect(x, y, w, h, radius float64, c Color) Shape {
	s := Rect(x, y, w, h, c)
	s.Kind = ShapeRoundedRect
	s.Radius = radius
	return s
}

// Circle returns a circle centered at (cx, cy).
func Circle(cx, cy, r float64, c Color) Shape {
	return Shape{Kind: ShapeCircle, Position: mgl64.Vec2{cx - r, cy - r}, Size: mgl64.Vec2{2 * r, 2 * r}, Color: c}
}

// StrokeRect returns a rectangle outline with uniform thickness.
func StrokeRect(x, y, w, h, thickness float64, c Color) Shape {
	s := Rect(x, y, w, h, c)
	s.Kind = ShapeStrokeRect
	s.Stroke = mgl64.Vec2{thickness, thickness}
	return s
}

func (s *Shape) half() mgl64.Vec2 {
	return s.Size.Mul(0.5)
}

func (s *Shape) center() mgl64.Vec2 {
	return s.Position.Add(s.half())
}

func (s *Shape) effectiveColor() Color {
	if s.Color == (Color{}) {
		return ColorWhite
	}
	return s.Color
}

// Distance evaluates the signed distance of the model-space point p to the
// shape's outline. Negative inside.
func (s *Shape) Distance(p mgl64.Vec2) float64 {
	return ShapeDistance(s.Kind, p.Sub(s.center()), s.half(), s.Radius, s.Stroke)
}

// ShapeDistance is the signed distance from p, relative to the shape
// center, to the outline of a shape with half extents half. Negative
// inside. radius applies to rounded and chamfered rectangles, stroke to
// stroke rectangles.
func ShapeDistance(kind ShapeKind, p, half mgl64.Vec2, radius float64, stroke mgl64.Vec2) float64 {
	minHalf := math.Min(half[0], half[1])
	switch kind {
	case ShapeRect:
		return boxDistance(p, half)
	case ShapeRoundedRect:
		r := clampFloat(radius, 0, minHalf)
		return boxDistance(p, mgl64.Vec2{half[0] - r, half[1] - r}) - r
	case ShapeCircle:
		return p.Len() - minHalf
	case ShapeEllipse:
		if half[0] <= 0 || half[1] <= 0 {
			return p.Len()
		}
		q := mgl64.Vec2{p[0] / half[0], p[1] / half[1]}
		return (q.Len() - 1) * minHalf
	case ShapeStrokeRect:
		outer := boxDistance(p, half)
		inner := boxDistance(p, mgl64.Vec2{half[0] - stroke[0], half[1] - stroke[1]})
		return math.Max(outer, -inner)
	case ShapeChamferRect:
		c := clampFloat(radius, 0, minHalf)
		box := boxDistance(p, half)
		cut := (math.Abs(p[0]) + math.Abs(p[1]) - (half[0] + half[1] - c)) * math.Sqrt2 / 2
		return math.Max(box, cut)
	default:
		return math.Inf(1)
	}
}

// ShapeCoverage converts a signed distance into pixel coverage given the
// screen-space footprint of one pixel in distance units. This is the same
// ramp the shape pipeline uses with fwidth.
func ShapeCoverage(d, pixelWidth float64) float64 {
	if pixelWidth <= 0 {
		if d <= 0 {
			return 1
		}
		return 0
	}
	return clampFloat(0.5-d/pixelWidth, 0, 1)
}

func boxDistance(p, b mgl64.Vec2) float64 {
	qx := math.Abs(p[0]) - b[0]
	qy := math.Abs(p[1]) - b[1]
	outside := math.Hypot(math.Max(qx, 0), math.Max(qy, 0))
	inside := math.Min(math.Max(qx, qy), 0)
	return outside + inside
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// shapeParams packs the per-kind parameters into the two scalar vertex
// slots read by the shape pipeline. A stroke rectangle stores its
// thickness (both non-negative). Every other kind stores its radius and
// the negated kind minus one, so the second slot is always negative.
func shapeParams(s *Shape) [2]float32 {
	if s.Kind == ShapeStrokeRect {
		return [2]float32{float32(math.Max(s.Stroke[0], 0)), float32(math.Max(s.Stroke[1], 0))}
	}
	return [2]float32{float32(s.Radius), -float32(s.Kind) - 1}
}

// UnpackShapeParams reverses the vertex packing. Device back-ends use it
// to mirror the shader decode on the CPU.
func UnpackShapeParams(p [2]float32) (kind ShapeKind, radius float64, stroke mgl64.Vec2) {
	if p[1] >= 0 {
		return ShapeStrokeRect, 0, mgl64.Vec2{float64(p[0]), float64(p[1])}
	}
	return ShapeKind(-p[1] - 1), float64(p[0]), mgl64.Vec2{}
}
