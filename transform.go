package tessera

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// --- Transform property setters ---
//
// Setters only record the node as a dirty root. World matrices are
// recomputed by ResolveWorldTransforms, or lazily by WorldMatrix.

// SetLocalTransform replaces the node's local transform. Unset rotation
// and scale are stored as identity.
func (g *Graph) SetLocalTransform(id NodeID, t Transform) error {
	n, err := g.transformNode(id, "set local transform")
	if err != nil {
		return err
	}
	t = t.resolved()
	n.local = t
	n.localMatrix = t.Matrix()
	g.markDirty(int32(id.index))
	return nil
}

// SetLocalMatrix sets the local matrix directly. The decomposed transform
// reported by LocalTransform is derived from it; shear is not represented
// there but is kept in the matrix.
func (g *Graph) SetLocalMatrix(id NodeID, m mgl64.Mat4) error {
	n, err := g.transformNode(id, "set local matrix")
	if err != nil {
		return err
	}
	n.local = DecomposeMatrix(m)
	n.localMatrix = m
	g.markDirty(int32(id.index))
	return nil
}

// SetTranslation sets the node's local translation.
func (g *Graph) SetTranslation(id NodeID, v mgl64.Vec3) error {
	return g.updateLocal(id, "set translation", func(t *Transform) { t.Translation = v })
}

// SetTranslationX sets one component of the local translation.
func (g *Graph) SetTranslationX(id NodeID, x float64) error {
	return g.updateLocal(id, "set translation", func(t *Transform) { t.Translation[0] = x })
}

// SetTranslationY sets one component of the local translation.
func (g *Graph) SetTranslationY(id NodeID, y float64) error {
	return g.updateLocal(id, "set translation", func(t *Transform) { t.Translation[1] = y })
}

// SetTranslationZ sets one component of the local translation.
func (g *Graph) SetTranslationZ(id NodeID, z float64) error {
	return g.updateLocal(id, "set translation", func(t *Transform) { t.Translation[2] = z })
}

// SetScale sets the node's local scale.
func (g *Graph) SetScale(id NodeID, s mgl64.Vec3) error {
	return g.updateLocal(id, "set scale", func(t *Transform) { t.Scale = s })
}

// SetRotation sets the node's local rotation.
func (g *Graph) SetRotation(id NodeID, q mgl64.Quat) error {
	return g.updateLocal(id, "set rotation", func(t *Transform) { t.Rotation = q })
}

func (g *Graph) updateLocal(id NodeID, op string, fn func(*Transform)) error {
	n, err := g.transformNode(id, op)
	if err != nil {
		return err
	}
	fn(&n.local)
	n.localMatrix = n.local.Matrix()
	g.markDirty(int32(id.index))
	return nil
}

func (g *Graph) transformNode(id NodeID, op string) (*node, error) {
	idx, ok := g.get(id)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "%s %v", op, id)
	}
	n := &g.nodes[idx]
	if n.kind == NodeVisual {
		return nil, errors.Wrapf(ErrVisualTransform, "%s %q", op, n.name)
	}
	return n, nil
}

// LocalTransform returns the node's decomposed local transform. Stale
// handles and visuals report the identity.
func (g *Graph) LocalTransform(id NodeID) Transform {
	idx, ok := g.get(id)
	if !ok {
		return IdentityTransform()
	}
	return g.nodes[idx].local
}

// LocalMatrix returns the node's local matrix.
func (g *Graph) LocalMatrix(id NodeID) mgl64.Mat4 {
	idx, ok := g.get(id)
	if !ok {
		return mgl64.Ident4()
	}
	return g.nodes[idx].localMatrix
}

// markDirty flags idx as stale and records it as a dirty root once.
func (g *Graph) markDirty(idx int32) {
	n := &g.nodes[idx]
	n.dirty = true
	if !n.queued {
		n.queued = true
		g.dirtyRoots = append(g.dirtyRoots, idx)
	}
}

// --- Resolution ---

// WorldMatrix returns the node's world matrix. The result is never stale:
// if the node or one of its ancestors is dirty the graph resolves first.
// For detached subtrees the chain is composed on the fly from the subtree
// top. Stale handles report the identity.
func (g *Graph) WorldMatrix(id NodeID) mgl64.Mat4 {
	idx, ok := g.get(id)
	if !ok {
		return mgl64.Ident4()
	}
	reachable, dirty := g.chainState(idx)
	if !reachable {
		return g.composeChain(idx)
	}
	if dirty {
		g.resolve()
	}
	return g.nodes[idx].world
}

// LocalToWorld converts a point in the node's local space to world space.
func (g *Graph) LocalToWorld(id NodeID, p mgl64.Vec3) mgl64.Vec3 {
	return transformPoint(g.WorldMatrix(id), p)
}

// WorldToLocal converts a world-space point into the node's local space.
// Singular world matrices map every point to the origin.
func (g *Graph) WorldToLocal(id NodeID, p mgl64.Vec3) mgl64.Vec3 {
	m := g.WorldMatrix(id)
	if d := m.Det(); d > -1e-12 && d < 1e-12 {
		return mgl64.Vec3{}
	}
	return transformPoint(m.Inv(), p)
}

// ResolveWorldTransforms recomputes the world matrices of every dirty
// subtree reachable from the root and returns the visuals that changed
// since the previous call, sorted by node ID.
func (g *Graph) ResolveWorldTransforms() ChangeSet {
	g.resolve()
	if len(g.pending) == 0 {
		return ChangeSet{}
	}
	cs := ChangeSet{Changes: make([]VisualChange, 0, len(g.pending))}
	for id, flags := range g.pending {
		idx, ok := g.get(id)
		if !ok || !g.reachable(idx) {
			flags = ChangeRemoved
		} else {
			flags &^= ChangeRemoved
		}
		cs.Changes = append(cs.Changes, VisualChange{ID: id, Flags: flags})
		delete(g.pending, id)
	}
	cs.sort()
	return cs
}

// resolve processes the dirty-root set. Roots with a dirty ancestor are
// covered by that ancestor's walk. Detached roots stay dirty and are
// recomputed when their subtree is attached again.
func (g *Graph) resolve() {
	if len(g.dirtyRoots) == 0 {
		return
	}
	roots := g.dirtyRoots
	g.dirtyRoots = g.scratch[:0]
	for _, idx := range roots {
		g.nodes[idx].queued = false
	}
	for _, idx := range roots {
		n := &g.nodes[idx]
		if !n.alive || !n.dirty {
			continue
		}
		reachable, ancestorDirty := g.ancestorState(idx)
		if !reachable || ancestorDirty {
			continue
		}
		parentWorld := mgl64.Ident4()
		if n.parent != noParent {
			parentWorld = g.nodes[n.parent].world
		}
		g.updateSubtree(idx, parentWorld)
	}
	g.scratch = roots[:0]
}

// updateSubtree recomputes world matrices below idx and reports every
// visual it reaches as transformed.
func (g *Graph) updateSubtree(idx int32, parentWorld mgl64.Mat4) {
	n := &g.nodes[idx]
	if n.kind == NodeVisual {
		n.world = parentWorld
		g.pending[g.idAt(idx)] |= ChangeTransform
	} else {
		n.world = parentWorld.Mul4(n.localMatrix)
	}
	n.dirty = false
	world := n.world
	for _, c := range n.children {
		g.updateSubtree(c, world)
	}
}

// ancestorState walks the parent chain of idx.
func (g *Graph) ancestorState(idx int32) (reachable, dirty bool) {
	top := idx
	for p := g.nodes[idx].parent; p != noParent; p = g.nodes[p].parent {
		if g.nodes[p].dirty {
			dirty = true
		}
		top = p
	}
	return top == g.root, dirty
}

// chainState is ancestorState including the node itself.
func (g *Graph) chainState(idx int32) (reachable, dirty bool) {
	reachable, dirty = g.ancestorState(idx)
	return reachable, dirty || g.nodes[idx].dirty
}

func (g *Graph) reachable(idx int32) bool {
	r, _ := g.ancestorState(idx)
	return r
}

// composeChain multiplies local matrices from the top of a detached
// subtree down to idx without touching cached state.
func (g *Graph) composeChain(idx int32) mgl64.Mat4 {
	m := mgl64.Ident4()
	for p := idx; p != noParent; p = g.nodes[p].parent {
		if g.nodes[p].kind == NodeVisual {
			continue
		}
		m = g.nodes[p].localMatrix.Mul4(m)
	}
	return m
}
