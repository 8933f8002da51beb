package tessera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// scrollAnim holds active scroll-to tweens, one per axis of the pan offset.
type scrollAnim struct {
	from   mgl64.Vec3
	tweens [3]*gween.Tween
	done   [3]bool
}

// Camera is a perspective camera looking from Eye at Target.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3

	// FovY is the vertical field of view in radians.
	FovY      float64
	Near, Far float64

	// Width and Height are the viewport size in pixels.
	Width, Height float64

	scroll *scrollAnim
}

// NewCamera creates a camera for a viewport of the given pixel size,
// looking down +Z at the origin.
func NewCamera(width, height float64) *Camera {
	return &Camera{
		Eye:    mgl64.Vec3{0, 0, -10},
		Up:     mgl64.Vec3{0, -1, 0},
		FovY:   mgl64.DegToRad(60),
		Near:   0.1,
		Far:    1000,
		Width:  width,
		Height: height,
	}
}

// PixelCamera returns a camera that shows the z=0 plane with one model
// unit per pixel: the viewport's top-left pixel is model (0, 0) and y
// grows downward.
func PixelCamera(width, height, fovY float64) *Camera {
	d := (height / 2) / math.Tan(fovY/2)
	return &Camera{
		Eye:    mgl64.Vec3{width / 2, height / 2, -d},
		Target: mgl64.Vec3{width / 2, height / 2, 0},
		Up:     mgl64.Vec3{0, -1, 0},
		FovY:   fovY,
		Near:   d / 100,
		Far:    d * 100,
		Width:  width,
		Height: height,
	}
}

// SetViewport changes the viewport size.
func (c *Camera) SetViewport(width, height float64) {
	c.Width, c.Height = width, height
}

// View returns the view matrix.
func (c *Camera) View() mgl64.Mat4 {
	return mgl64.LookAtV(c.Eye, c.Target, c.Up)
}

// Projection returns the perspective projection matrix.
func (c *Camera) Projection() mgl64.Mat4 {
	aspect := 1.0
	if c.Height > 0 {
		aspect = c.Width / c.Height
	}
	return mgl64.Perspective(c.FovY, aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *Camera) ViewProjection() mgl64.Mat4 {
	return c.Projection().Mul4(c.View())
}

// WorldToScreen projects a world point to pixel coordinates with y down.
// ok is false for points behind the camera.
func (c *Camera) WorldToScreen(p mgl64.Vec3) (x, y float64, ok bool) {
	clip := c.ViewProjection().Mul4x1(p.Vec4(1))
	if clip[3] <= 0 {
		return 0, 0, false
	}
	nx, ny := clip[0]/clip[3], clip[1]/clip[3]
	return (nx + 1) / 2 * c.Width, (1 - ny) / 2 * c.Height, true
}

// ScreenToPlane casts a ray through pixel (x, y) and intersects it with
// the z=0 world plane.
func (c *Camera) ScreenToPlane(x, y float64) (mgl64.Vec3, bool) {
	inv := c.ViewProjection().Inv()
	nx := x/c.Width*2 - 1
	ny := 1 - y/c.Height*2
	unproject := func(z float64) mgl64.Vec3 {
		v := inv.Mul4x1(mgl64.Vec4{nx, ny, z, 1})
		return v.Vec3().Mul(1 / v[3])
	}
	near, far := unproject(-1), unproject(1)
	dir := far.Sub(near)
	if math.Abs(dir[2]) < 1e-12 {
		return mgl64.Vec3{}, false
	}
	t := -near[2] / dir[2]
	if t < 0 {
		return mgl64.Vec3{}, false
	}
	return near.Add(dir.Mul(t)), true
}

// Pan moves eye and target together.
func (c *Camera) Pan(delta mgl64.Vec3) {
	c.Eye = c.Eye.Add(delta)
	c.Target = c.Target.Add(delta)
}

// ScrollTo animates the camera so it looks at target, keeping the current
// eye offset, over duration seconds.
func (c *Camera) ScrollTo(target mgl64.Vec3, duration float32, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	delta := target.Sub(c.Target)
	s := &scrollAnim{from: c.Target}
	for i := range s.tweens {
		s.tweens[i] = gween.New(0, float32(delta[i]), duration, easeFn)
	}
	c.scroll = s
}

// Scrolling reports whether a ScrollTo animation is running.
func (c *Camera) Scrolling() bool {
	return c.scroll != nil
}

// update advances the scroll animation. Called from Scene.Update.
func (c *Camera) update(dt float32) {
	s := c.scroll
	if s == nil {
		return
	}
	offset := c.Target.Sub(s.from)
	for i, tw := range s.tweens {
		if s.done[i] {
			continue
		}
		val, done := tw.Update(dt)
		offset[i] = float64(val)
		s.done[i] = done
	}
	c.Pan(s.from.Add(offset).Sub(c.Target))
	if s.done[0] && s.done[1] && s.done[2] {
		c.scroll = nil
	}
}
