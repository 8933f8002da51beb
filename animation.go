package tessera

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

// Policy decides what a track does when it reaches its duration.
type Policy uint8

const (
	// PolicyRemove drops the track. The end value stays written.
	PolicyRemove Policy = iota
	// PolicyHold keeps the track, complete, holding the end value.
	PolicyHold
	// PolicyRepeat restarts the track at elapsed time zero.
	PolicyRepeat
)

// TrackID identifies an animation track. IDs are never reused.
type TrackID uint64

// Attribute is an animatable property of one node: how to read it, write
// it, and interpolate between two values of it.
type Attribute[T any] struct {
	Node NodeID
	Name string

	Get  func(g *Graph, id NodeID) T
	Set  func(g *Graph, id NodeID, v T) error
	Lerp func(a, b T, t float64) T
}

type attrKey struct {
	node NodeID
	name string
}

func (a Attribute[T]) key() attrKey {
	return attrKey{a.Node, a.Name}
}

// track is the type-erased view of a typedTrack.
type track interface {
	key() attrKey
	// step advances by dt and writes the value. done reports that the
	// duration was reached this step.
	step(g *Graph, dt float64) (done bool, err error)
	// end writes the end value.
	end(g *Graph) error
	// restart rewinds to elapsed zero.
	restart()
	target() any
}

type typedTrack[T any] struct {
	attr     Attribute[T]
	from, to T
	duration float64
	elapsed  float64
	ease     ease.TweenFunc

	// prev is a superseded track that keeps running and fades out while
	// this one progresses.
	prev *typedTrack[T]
}

func (t *typedTrack[T]) key() attrKey { return t.attr.key() }

func (t *typedTrack[T]) target() any { return t.to }

func (t *typedTrack[T]) restart() {
	t.elapsed = 0
	t.prev = nil
}

// advance moves the clock by dt and returns the value at the new time and
// the linear progress. The value is blended over the superseded track
// with the progress as weight.
func (t *typedTrack[T]) advance(dt float64) (T, float64) {
	t.elapsed += dt
	p := 1.0
	if t.duration > 0 {
		p = clampFloat(t.elapsed/t.duration, 0, 1)
	}
	v := t.to
	if p < 1 {
		v = t.attr.Lerp(t.from, t.to, evalEase(t.ease, p))
	}
	if t.prev != nil {
		pv, _ := t.prev.advance(dt)
		if p < 1 {
			v = t.attr.Lerp(pv, v, p)
		} else {
			t.prev = nil
		}
	}
	return v, p
}

func (t *typedTrack[T]) step(g *Graph, dt float64) (bool, error) {
	v, p := t.advance(dt)
	if p >= 1 {
		return true, t.end(g)
	}
	return false, t.attr.Set(g, t.attr.Node, v)
}

// end writes to exactly, never an interpolated approximation of it.
func (t *typedTrack[T]) end(g *Graph) error {
	t.elapsed = t.duration
	t.prev = nil
	return t.attr.Set(g, t.attr.Node, t.to)
}

type trackState struct {
	id       TrackID
	tr       track
	policy   Policy
	complete bool
}

// Animator advances property tracks and writes their values through the
// graph setters. Tracks hold their node weakly: a track whose node was
// removed is dropped on the next Tick. At most one track drives an
// attribute; starting another replaces it.
type Animator struct {
	g      *Graph
	tracks []*trackState
	byID   map[TrackID]*trackState
	byAttr map[attrKey]*trackState
	next   TrackID
}

// NewAnimator creates an animator writing into g.
func NewAnimator(g *Graph) *Animator {
	return &Animator{
		g:      g,
		byID:   make(map[TrackID]*trackState),
		byAttr: make(map[attrKey]*trackState),
	}
}

// Animate starts a track interpolating attr from from to to over duration
// seconds. A nil easing is linear. The from value is written immediately.
func Animate[T any](a *Animator, attr Attribute[T], from, to T, duration float64, fn ease.TweenFunc, policy Policy) TrackID {
	a.next++
	ts := &trackState{
		id:     a.next,
		policy: policy,
		tr: &typedTrack[T]{
			attr:     attr,
			from:     from,
			to:       to,
			duration: duration,
			ease:     fn,
		},
	}
	a.replace(ts)
	if duration <= 0 {
		a.complete(ts, ts.tr.end(a.g))
		return ts.id
	}
	if err := attr.Set(a.g, attr.Node, from); err != nil {
		a.drop(ts, err)
	}
	return ts.id
}

// AnimateTo starts a track from the attribute's current value.
func AnimateTo[T any](a *Animator, attr Attribute[T], to T, duration float64, fn ease.TweenFunc, policy Policy) TrackID {
	return Animate(a, attr, attr.Get(a.g, attr.Node), to, duration, fn, policy)
}

// AnimateBlend is AnimateTo for re-targeting. A track still running on
// attr is not cut off: it keeps advancing and is blended out as the new
// track goes from 0 to 1, so the value changes direction without a jump
// in velocity. Without a running track it behaves like AnimateTo.
func AnimateBlend[T any](a *Animator, attr Attribute[T], to T, duration float64, fn ease.TweenFunc, policy Policy) TrackID {
	var prev *typedTrack[T]
	if ts := a.byAttr[attr.key()]; ts != nil && !ts.complete {
		prev, _ = ts.tr.(*typedTrack[T])
	}
	id := AnimateTo(a, attr, to, duration, fn, policy)
	if ts := a.byID[id]; ts != nil && !ts.complete && prev != nil {
		ts.tr.(*typedTrack[T]).prev = prev
	}
	return id
}

// AnimateIfChanged is AnimateTo, except that an existing track already
// heading to the same value keeps running and its ID is returned.
func AnimateIfChanged[T comparable](a *Animator, attr Attribute[T], to T, duration float64, fn ease.TweenFunc, policy Policy) TrackID {
	if ts := a.byAttr[attr.key()]; ts != nil {
		if cur, ok := ts.tr.target().(T); ok && cur == to {
			return ts.id
		}
	}
	return AnimateTo(a, attr, to, duration, fn, policy)
}

// Set cancels any track driving attr and writes v immediately.
func Set[T any](a *Animator, attr Attribute[T], v T) error {
	if ts := a.byAttr[attr.key()]; ts != nil {
		a.remove(ts)
	}
	return attr.Set(a.g, attr.Node, v)
}

// Tick advances every track by dt seconds.
func (a *Animator) Tick(dt float64) {
	if len(a.tracks) == 0 {
		return
	}
	live := a.tracks[:0]
	for _, ts := range a.tracks {
		if !a.g.Alive(ts.tr.key().node) {
			a.forget(ts)
			continue
		}
		if ts.complete {
			live = append(live, ts)
			continue
		}
		done, err := ts.tr.step(a.g, dt)
		if err != nil {
			Logger().Warn("tessera: animation track dropped", "track", ts.id, "attr", ts.tr.key().name, "err", err)
			a.forget(ts)
			continue
		}
		if done && !a.settle(ts) {
			continue
		}
		live = append(live, ts)
	}
	clear(a.tracks[len(live):])
	a.tracks = live
}

// settle applies the completion policy. It returns false when the track
// is gone.
func (a *Animator) settle(ts *trackState) bool {
	switch ts.policy {
	case PolicyHold:
		ts.complete = true
		return true
	case PolicyRepeat:
		ts.tr.restart()
		return true
	default:
		a.forget(ts)
		return false
	}
}

// IsComplete reports whether the track reached its end. Removed, cancelled
// and unknown tracks count as complete; repeating tracks never do.
func (a *Animator) IsComplete(id TrackID) bool {
	ts := a.byID[id]
	return ts == nil || ts.complete
}

// Cancel stops the track. The last written value stays in place.
func (a *Animator) Cancel(id TrackID) bool {
	ts := a.byID[id]
	if ts == nil {
		return false
	}
	a.remove(ts)
	return true
}

// Finish jumps the track to its end value and applies its completion
// policy. Repeating tracks are removed.
func (a *Animator) Finish(id TrackID) error {
	ts := a.byID[id]
	if ts == nil {
		return nil
	}
	err := ts.tr.end(a.g)
	if ts.policy == PolicyHold && err == nil {
		ts.complete = true
		return nil
	}
	a.remove(ts)
	return err
}

// Active returns the number of tracks still running.
func (a *Animator) Active() int {
	n := 0
	for _, ts := range a.tracks {
		if !ts.complete {
			n++
		}
	}
	return n
}

// Len returns the number of tracks, including held ones.
func (a *Animator) Len() int {
	return len(a.tracks)
}

func (a *Animator) replace(ts *trackState) {
	if old := a.byAttr[ts.tr.key()]; old != nil {
		a.remove(old)
	}
	a.tracks = append(a.tracks, ts)
	a.byID[ts.id] = ts
	a.byAttr[ts.tr.key()] = ts
}

func (a *Animator) complete(ts *trackState, err error) {
	if err != nil {
		a.drop(ts, err)
		return
	}
	if !a.settle(ts) {
		a.removeFromList(ts)
	}
}

func (a *Animator) drop(ts *trackState, err error) {
	Logger().Warn("tessera: animation track dropped", "track", ts.id, "attr", ts.tr.key().name, "err", err)
	a.remove(ts)
}

// forget removes the track from the indexes; the caller drops it from the
// track list.
func (a *Animator) forget(ts *trackState) {
	delete(a.byID, ts.id)
	if a.byAttr[ts.tr.key()] == ts {
		delete(a.byAttr, ts.tr.key())
	}
}

func (a *Animator) remove(ts *trackState) {
	a.forget(ts)
	a.removeFromList(ts)
}

func (a *Animator) removeFromList(ts *trackState) {
	for i, t := range a.tracks {
		if t == ts {
			copy(a.tracks[i:], a.tracks[i+1:])
			a.tracks[len(a.tracks)-1] = nil
			a.tracks = a.tracks[:len(a.tracks)-1]
			return
		}
	}
}

// --- Attributes ---

func lerpQuat(a, b mgl64.Quat, t float64) mgl64.Quat { return slerp(a, b, t) }

func lerpTransform(a, b Transform, t float64) Transform { return a.Lerp(b, t) }

func lerpColor(a, b Color, t float64) Color { return a.Lerp(b, t) }

// TranslationAttr animates a transform node's local translation.
func TranslationAttr(id NodeID) Attribute[mgl64.Vec3] {
	return Attribute[mgl64.Vec3]{
		Node: id,
		Name: "translation",
		Get:  func(g *Graph, id NodeID) mgl64.Vec3 { return g.LocalTransform(id).Translation },
		Set:  (*Graph).SetTranslation,
		Lerp: lerpVec3,
	}
}

// TranslationXAttr animates the X component of the local translation.
func TranslationXAttr(id NodeID) Attribute[float64] {
	return translationAxis(id, 0, "translation.x", (*Graph).SetTranslationX)
}

// TranslationYAttr animates the Y component of the local translation.
func TranslationYAttr(id NodeID) Attribute[float64] {
	return translationAxis(id, 1, "translation.y", (*Graph).SetTranslationY)
}

// TranslationZAttr animates the Z component of the local translation.
func TranslationZAttr(id NodeID) Attribute[float64] {
	return translationAxis(id, 2, "translation.z", (*Graph).SetTranslationZ)
}

func translationAxis(id NodeID, axis int, name string, set func(*Graph, NodeID, float64) error) Attribute[float64] {
	return Attribute[float64]{
		Node: id,
		Name: name,
		Get:  func(g *Graph, id NodeID) float64 { return g.LocalTransform(id).Translation[axis] },
		Set:  set,
		Lerp: lerpFloat,
	}
}

// ScaleAttr animates a transform node's local scale.
func ScaleAttr(id NodeID) Attribute[mgl64.Vec3] {
	return Attribute[mgl64.Vec3]{
		Node: id,
		Name: "scale",
		Get:  func(g *Graph, id NodeID) mgl64.Vec3 { return g.LocalTransform(id).Scale },
		Set:  (*Graph).SetScale,
		Lerp: lerpVec3,
	}
}

// UniformScaleAttr animates all three scale components together. Reading
// returns the X scale.
func UniformScaleAttr(id NodeID) Attribute[float64] {
	return Attribute[float64]{
		Node: id,
		Name: "scale",
		Get:  func(g *Graph, id NodeID) float64 { return g.LocalTransform(id).Scale[0] },
		Set: func(g *Graph, id NodeID, s float64) error {
			return g.SetScale(id, mgl64.Vec3{s, s, s})
		},
		Lerp: lerpFloat,
	}
}

// RotationAttr animates a transform node's local rotation along the
// shortest arc.
func RotationAttr(id NodeID) Attribute[mgl64.Quat] {
	return Attribute[mgl64.Quat]{
		Node: id,
		Name: "rotation",
		Get:  func(g *Graph, id NodeID) mgl64.Quat { return g.LocalTransform(id).rotation() },
		Set:  (*Graph).SetRotation,
		Lerp: lerpQuat,
	}
}

// TransformAttr animates the whole local transform on its decomposed
// components.
func TransformAttr(id NodeID) Attribute[Transform] {
	return Attribute[Transform]{
		Node: id,
		Name: "transform",
		Get:  (*Graph).LocalTransform,
		Set:  (*Graph).SetLocalTransform,
		Lerp: lerpTransform,
	}
}

// ColorAttr animates a visual node's tint.
func ColorAttr(id NodeID) Attribute[Color] {
	return Attribute[Color]{
		Node: id,
		Name: "color",
		Get:  (*Graph).VisualColor,
		Set:  (*Graph).SetVisualColor,
		Lerp: lerpColor,
	}
}

// AlphaAttr animates the alpha channel of a visual node's tint.
func AlphaAttr(id NodeID) Attribute[float64] {
	return Attribute[float64]{
		Node: id,
		Name: "color",
		Get:  func(g *Graph, id NodeID) float64 { return g.VisualColor(id).A },
		Set: func(g *Graph, id NodeID, alpha float64) error {
			c := g.VisualColor(id)
			c.A = alpha
			return g.SetVisualColor(id, c)
		},
		Lerp: lerpFloat,
	}
}
