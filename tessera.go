package tessera

import "math"

// Color represents a linear RGBA color with components in [0, 1]. Not
// premultiplied. Premultiplication happens when instances are generated.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint (no color modification).
var ColorWhite = Color{1, 1, 1, 1}

// RGBA returns a Color from 8-bit sRGB-free channel values.
func RGBA(r, g, b, a uint8) Color {
	return Color{float64(r) / 255, float64(g) / 255, float64(b) / 255, float64(a) / 255}
}

// Lerp interpolates componentwise on the linear channel values.
func (c Color) Lerp(to Color, t float64) Color {
	return Color{
		R: c.R + (to.R-c.R)*t,
		G: c.G + (to.G-c.G)*t,
		B: c.B + (to.B-c.B)*t,
		A: c.A + (to.A-c.A)*t,
	}
}

// Mul multiplies two colors componentwise (tinting).
func (c Color) Mul(o Color) Color {
	return Color{c.R * o.R, c.G * o.G, c.B * o.B, c.A * o.A}
}

// Premultiplied returns the color as premultiplied float32 RGBA.
func (c Color) Premultiplied() [4]float32 {
	a := float32(c.A)
	return [4]float32{float32(c.R) * a, float32(c.G) * a, float32(c.B) * a, a}
}

// ClipRect is an axis-aligned clip region in model space. Min is inclusive,
// Max is exclusive. The zero value disables clipping.
type ClipRect struct {
	Enabled                bool
	MinX, MinY, MaxX, MaxY float64
}

// NewClipRect returns an enabled clip rectangle at (x, y) with the given size.
func NewClipRect(x, y, w, h float64) ClipRect {
	return ClipRect{Enabled: true, MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

// Contains reports whether the model-space point (x, y) survives the clip.
func (r ClipRect) Contains(x, y float64) bool {
	if !r.Enabled {
		return true
	}
	return x >= r.MinX && x < r.MaxX && y >= r.MinY && y < r.MaxY
}

// Intersect returns the overlap of r and other. Used for nested clipped
// regions; a disabled rectangle is the identity.
func (r ClipRect) Intersect(other ClipRect) ClipRect {
	switch {
	case !r.Enabled:
		return other
	case !other.Enabled:
		return r
	}
	out := ClipRect{
		Enabled: true,
		MinX:    math.Max(r.MinX, other.MinX),
		MinY:    math.Max(r.MinY, other.MinY),
		MaxX:    math.Min(r.MaxX, other.MaxX),
		MaxY:    math.Min(r.MaxY, other.MaxY),
	}
	if out.MaxX < out.MinX {
		out.MaxX = out.MinX
	}
	if out.MaxY < out.MinY {
		out.MaxY = out.MinY
	}
	return out
}

// Empty reports whether an enabled clip rejects every point.
func (r ClipRect) Empty() bool {
	return r.Enabled && (r.MaxX <= r.MinX || r.MaxY <= r.MinY)
}

// Vec4 returns the rectangle as [minX, minY, maxX, maxY] for push constants.
func (r ClipRect) Vec4() [4]float32 {
	return [4]float32{float32(r.MinX), float32(r.MinY), float32(r.MaxX), float32(r.MaxY)}
}
