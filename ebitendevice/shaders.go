package ebitendevice

// Kage sources for the three pipelines. All use //kage:unit pixels.
// Colors arrive premultiplied and are returned premultiplied.

// shapeShaderSrc evaluates the analytic shape distance. src is the
// fragment position relative to the shape center in model units; custom
// holds the half extents and the two packed shape parameters.
const shapeShaderSrc = `//kage:unit pixels
package main

func boxDist(p vec2, b vec2) float {
	q := abs(p) - b
	return length(max(q, vec2(0))) + min(max(q.x, q.y), 0)
}

func Fragment(dst vec4, src vec2, color vec4, custom vec4) vec4 {
	half := custom.xy
	minHalf := min(half.x, half.y)
	d := 0.0
	if custom.w >= 0 {
		// Stroke rectangle: zw is the border thickness.
		d = max(boxDist(src, half), -boxDist(src, half-custom.zw))
	} else {
		kind := -custom.w - 1
		r := clamp(custom.z, 0, minHalf)
		if kind < 0.5 {
			d = boxDist(src, half)
		} else if kind < 1.5 {
			d = boxDist(src, half-vec2(r)) - r
		} else if kind < 2.5 {
			d = length(src) - minHalf
		} else if kind < 3.5 {
			q := src / max(half, vec2(0.0001))
			d = (length(q) - 1) * minHalf
		} else {
			cut := (abs(src.x) + abs(src.y) - (half.x + half.y - r)) * 0.70710678
			d = max(boxDist(src, half), cut)
		}
	}
	pw := (length(dfdx(src)) + length(dfdy(src))) / 2
	cov := clamp(0.5-d/max(pw, 0.0001), 0, 1)
	return color * cov
}
`

// sdfShaderSrc samples the distance-field page. Distance bytes are stored
// in every channel of the page image.
const sdfShaderSrc = `//kage:unit pixels
package main

var AAFactor float

func texel(p vec2) float {
	o := imageSrc0Origin()
	s := imageSrc0Size()
	return imageSrc0UnsafeAt(o + clamp(p, vec2(0.5), s-vec2(0.5))).a
}

func distance(p vec2) float {
	x := p - imageSrc0Origin() - vec2(0.5)
	b := floor(x)
	f := x - b
	c := b + vec2(0.5)
	top := mix(texel(c), texel(c+vec2(1, 0)), f.x)
	bot := mix(texel(c+vec2(0, 1)), texel(c+vec2(1, 1)), f.x)
	return -(mix(top, bot, f.y) - 0.50196078) * 7.96875
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	d := distance(src)
	g := vec2(dfdx(d), dfdy(d))
	if dot(g, g) < 0.0001 {
		g = vec2(0.70710678)
	} else {
		g = normalize(g)
	}
	jdx := dfdx(src)
	jdy := dfdy(src)
	grad := vec2(g.x*jdx.x+g.y*jdy.x, g.x*jdx.y+g.y*jdy.y)
	af := max(AAFactor*length(grad), 0.0001)
	return color * smoothstep(-af, af, -d)
}
`

// colorShaderSrc samples the RGBA page bilinearly and tints it.
const colorShaderSrc = `//kage:unit pixels
package main

func texel(p vec2) vec4 {
	o := imageSrc0Origin()
	s := imageSrc0Size()
	return imageSrc0UnsafeAt(o + clamp(p, vec2(0.5), s-vec2(0.5)))
}

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	x := src - imageSrc0Origin() - vec2(0.5)
	b := floor(x)
	f := x - b
	c := b + vec2(0.5)
	top := mix(texel(c), texel(c+vec2(1, 0)), f.x)
	bot := mix(texel(c+vec2(0, 1)), texel(c+vec2(1, 1)), f.x)
	return mix(top, bot, f.y) * color
}
`
