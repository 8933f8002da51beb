package tessera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/tanema/gween/ease"
)

func newAnimTree(t *testing.T) (*Graph, *Animator, NodeID, NodeID) {
	t.Helper()
	g := NewGraph()
	a := g.NewTransform("a")
	b := g.NewTransform("b")
	if err := g.Attach(g.Root(), a); err != nil {
		t.Fatal(err)
	}
	if err := g.Attach(a, b); err != nil {
		t.Fatal(err)
	}
	_ = g.SetTranslation(a, mgl64.Vec3{5, 0, 0})
	_ = g.SetTranslation(b, mgl64.Vec3{5, 5, 0})
	return g, NewAnimator(g), a, b
}

func TestAnimateParentMovesChild(t *testing.T) {
	g, anim, a, b := newAnimTree(t)
	assertVec3(t, "world(b) before", worldPos(g, b), mgl64.Vec3{10, 5, 0})

	Animate(anim, TranslationXAttr(a), 0, 100, 1.0, nil, PolicyRemove)
	anim.Tick(0.5)
	g.ResolveWorldTransforms()

	assertNear(t, "a.x", g.LocalTransform(a).Translation[0], 50)
	assertNear(t, "world(b).x", worldPos(g, b)[0], 55)
}

func TestAnimateEndValueExact(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	// 0.1 summed ten times is not exactly 1.0, and out-elastic overshoots;
	// the end value must still be pinned exactly.
	id := Animate(anim, TranslationXAttr(a), 0.1, 0.7, 1.0, ease.OutElastic, PolicyHold)
	for i := 0; i < 11; i++ {
		anim.Tick(0.1)
	}
	if got := g.LocalTransform(a).Translation[0]; got != 0.7 {
		t.Errorf("end value = %v, want exactly 0.7", got)
	}
	if !anim.IsComplete(id) {
		t.Error("track should be complete")
	}
}

func TestAnimateLargeStepPinsEnd(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	Animate(anim, ScaleAttr(a), mgl64.Vec3{1, 1, 1}, mgl64.Vec3{3, 2, 1}, 0.25, ease.InOutCubic, PolicyRemove)
	anim.Tick(10)
	if got := g.LocalTransform(a).Scale; got != (mgl64.Vec3{3, 2, 1}) {
		t.Errorf("scale = %v, want exactly (3, 2, 1)", got)
	}
}

func TestAnimationPolicies(t *testing.T) {
	t.Run("remove", func(t *testing.T) {
		_, anim, a, _ := newAnimTree(t)
		id := Animate(anim, TranslationXAttr(a), 0, 1, 1, nil, PolicyRemove)
		anim.Tick(1)
		if anim.Len() != 0 || !anim.IsComplete(id) {
			t.Errorf("Len = %d, complete = %v", anim.Len(), anim.IsComplete(id))
		}
	})
	t.Run("hold", func(t *testing.T) {
		g, anim, a, _ := newAnimTree(t)
		id := Animate(anim, TranslationXAttr(a), 0, 1, 1, nil, PolicyHold)
		anim.Tick(1)
		if anim.Len() != 1 || anim.Active() != 0 || !anim.IsComplete(id) {
			t.Errorf("Len = %d, Active = %d", anim.Len(), anim.Active())
		}
		// A held track stops writing.
		_ = g.SetTranslationX(a, 42)
		anim.Tick(1)
		assertNear(t, "x", g.LocalTransform(a).Translation[0], 42)
	})
	t.Run("repeat", func(t *testing.T) {
		g, anim, a, _ := newAnimTree(t)
		id := Animate(anim, TranslationXAttr(a), 0, 10, 1, nil, PolicyRepeat)
		anim.Tick(1)
		assertNear(t, "x at end", g.LocalTransform(a).Translation[0], 10)
		anim.Tick(0.25)
		assertNear(t, "x after restart", g.LocalTransform(a).Translation[0], 2.5)
		if anim.IsComplete(id) {
			t.Error("repeating track never completes")
		}
	})
}

func TestAnimationCancelKeepsValue(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	id := Animate(anim, TranslationXAttr(a), 0, 100, 1, nil, PolicyRemove)
	anim.Tick(0.3)
	if !anim.Cancel(id) {
		t.Fatal("Cancel returned false")
	}
	anim.Tick(0.3)
	assertNear(t, "x", g.LocalTransform(a).Translation[0], 30)
	if anim.Cancel(id) {
		t.Error("second Cancel should report false")
	}
}

func TestAnimationFinishJumpsToEnd(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	id := Animate(anim, TranslationXAttr(a), 0, 100, 1, nil, PolicyRemove)
	anim.Tick(0.1)
	if err := anim.Finish(id); err != nil {
		t.Fatal(err)
	}
	if got := g.LocalTransform(a).Translation[0]; got != 100 {
		t.Errorf("x = %v, want 100", got)
	}
	if anim.Len() != 0 {
		t.Error("finished track should be removed")
	}
}

func TestAnimationDroppedWhenNodeRemoved(t *testing.T) {
	g, anim, a, b := newAnimTree(t)
	Animate(anim, TranslationXAttr(b), 0, 1, 1, nil, PolicyRemove)
	_ = g.Remove(a)
	anim.Tick(0.1)
	if anim.Len() != 0 {
		t.Errorf("Len = %d, want 0 after node removal", anim.Len())
	}
}

func TestAnimationReplacesTrackOnSameAttribute(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	first := Animate(anim, TranslationXAttr(a), 0, 100, 1, nil, PolicyRemove)
	second := Animate(anim, TranslationXAttr(a), 0, -100, 1, nil, PolicyRemove)
	anim.Tick(0.5)
	assertNear(t, "x", g.LocalTransform(a).Translation[0], -50)
	if anim.Len() != 1 || !anim.IsComplete(first) || anim.IsComplete(second) {
		t.Error("second track should replace the first")
	}
}

func TestAnimateToStartsFromCurrent(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	AnimateTo(anim, TranslationXAttr(a), 15, 1, nil, PolicyRemove)
	anim.Tick(0.5)
	assertNear(t, "x", g.LocalTransform(a).Translation[0], 10)
}

func TestAnimateIfChanged(t *testing.T) {
	_, anim, a, _ := newAnimTree(t)
	id := AnimateIfChanged(anim, TranslationXAttr(a), 20.0, 1, nil, PolicyRemove)
	anim.Tick(0.5)
	if again := AnimateIfChanged(anim, TranslationXAttr(a), 20.0, 1, nil, PolicyRemove); again != id {
		t.Errorf("same target restarted the track: %v != %v", again, id)
	}
	if other := AnimateIfChanged(anim, TranslationXAttr(a), 30.0, 1, nil, PolicyRemove); other == id {
		t.Error("new target should start a new track")
	}
}

func TestSetCancelsTrack(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	Animate(anim, TranslationXAttr(a), 0, 100, 1, nil, PolicyRemove)
	if err := Set(anim, TranslationXAttr(a), 7.0); err != nil {
		t.Fatal(err)
	}
	anim.Tick(0.5)
	assertNear(t, "x", g.LocalTransform(a).Translation[0], 7)
}

func TestRotationAnimationShortestArc(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	from := mgl64.QuatRotate(mgl64.DegToRad(170), mgl64.Vec3{0, 0, 1})
	to := mgl64.QuatRotate(mgl64.DegToRad(-170), mgl64.Vec3{0, 0, 1})
	Animate(anim, RotationAttr(a), from, to, 1, nil, PolicyRemove)
	anim.Tick(0.5)
	want := mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 0, 1})
	if got := g.LocalTransform(a).Rotation; !got.OrientationEqualThreshold(want, 1e-9) {
		t.Errorf("rotation = %v, want half turn %v", got, want)
	}
}

func TestColorAnimation(t *testing.T) {
	g := NewGraph()
	v := g.NewVisual("v", ShapeVisual())
	_ = g.Attach(g.Root(), v)
	anim := NewAnimator(g)
	Animate(anim, ColorAttr(v), Color{0, 0, 0, 1}, Color{1, 1, 1, 1}, 1, nil, PolicyRemove)
	anim.Tick(0.25)
	got := g.VisualColor(v)
	assertNear(t, "R", got.R, 0.25)
	assertNear(t, "A", got.A, 1)

	AnimateTo(anim, AlphaAttr(v), 0, 1, nil, PolicyRemove)
	anim.Tick(0.5)
	assertNear(t, "alpha", g.VisualColor(v).A, 0.5)
}

func TestAnimationOnVisualTransformIsDropped(t *testing.T) {
	g := NewGraph()
	v := g.NewVisual("v", ShapeVisual())
	anim := NewAnimator(g)
	Animate(anim, TranslationXAttr(v), 0, 1, 1, nil, PolicyRemove)
	anim.Tick(0.1)
	if anim.Len() != 0 {
		t.Error("track writing to a visual transform should be dropped")
	}
}

func TestEasingByName(t *testing.T) {
	fn, ok := EasingByName("in-out-cubic")
	if !ok || fn == nil {
		t.Fatal("in-out-cubic not found")
	}
	assertNear(t, "mid", evalEase(fn, 0.5), 0.5)
	if _, ok := EasingByName("wobble"); ok {
		t.Error("unknown name should not resolve")
	}
	assertNear(t, "nil is linear", evalEase(nil, 0.3), 0.3)
}

func TestAnimateBlendKeepsMomentum(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	Animate(anim, TranslationXAttr(a), 0, 100, 1.0, nil, PolicyRemove)
	anim.Tick(0.5)

	// Re-targeted mid-flight: the old track (now at 60) still outweighs
	// the new one (at 45) right after the switch.
	id := AnimateBlend(anim, TranslationXAttr(a), 0, 1.0, nil, PolicyHold)
	assertNear(t, "x at switch", g.LocalTransform(a).Translation[0], 50)
	anim.Tick(0.1)
	assertNear(t, "x blended", g.LocalTransform(a).Translation[0], 58.5)
	if anim.Len() != 1 {
		t.Errorf("tracks = %d, want the superseded track folded into the new one", anim.Len())
	}

	anim.Tick(1)
	if got := g.LocalTransform(a).Translation[0]; got != 0 {
		t.Errorf("end = %v, want exactly 0", got)
	}
	if !anim.IsComplete(id) {
		t.Error("blended track should complete")
	}
}

func TestAnimateBlendWithoutRunningTrack(t *testing.T) {
	g, anim, a, _ := newAnimTree(t)
	AnimateBlend(anim, TranslationXAttr(a), 25, 1.0, nil, PolicyRemove)
	anim.Tick(0.5)
	assertNear(t, "x", g.LocalTransform(a).Translation[0], 15)
}
