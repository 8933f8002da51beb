package tessera

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// NodeKind distinguishes transform nodes from leaf visual nodes.
type NodeKind uint8

const (
	NodeTransform NodeKind = iota // positions its children
	NodeVisual                    // leaf carrying a text run or shape list
)

const noParent = -1

// node is one arena slot. Parent links are plain indices; the child list is
// the only owning edge, so the tree never forms reference cycles.
type node struct {
	gen   uint32
	alive bool
	kind  NodeKind
	name  string

	parent   int32
	children []int32

	local       Transform
	localMatrix mgl64.Mat4
	world       mgl64.Mat4

	// dirty marks a stale world matrix for this node and its subtree.
	// queued tracks membership in Graph.dirtyRoots.
	dirty  bool
	queued bool

	visual Visual
	order  int
}

// Graph is the scene graph: an arena of transform and visual nodes under an
// implicit root, with lazy world-matrix resolution and a change feed for the
// batcher.
//
// Graph is not safe for concurrent use. Scene serializes access.
type Graph struct {
	nodes []node
	free  []int32
	root  int32

	dirtyRoots []int32
	scratch    []int32

	pending map[NodeID]ChangeFlags

	structureVersion uint64
	orderVersion     uint64
	visualCount      int

	debug bool
}

// NewGraph creates a graph with a pre-created root transform node.
func NewGraph() *Graph {
	g := &Graph{
		pending:      make(map[NodeID]ChangeFlags),
		orderVersion: ^uint64(0),
	}
	root := g.alloc("root", NodeTransform)
	g.root = int32(root.index)
	g.nodes[g.root].dirty = false
	return g
}

// Root returns the root transform node.
func (g *Graph) Root() NodeID {
	return g.idAt(g.root)
}

// NewTransform creates a detached transform node with an identity local
// transform.
func (g *Graph) NewTransform(name string) NodeID {
	return g.alloc(name, NodeTransform)
}

// NewVisual creates a detached visual leaf holding content.
func (g *Graph) NewVisual(name string, content Visual) NodeID {
	id := g.alloc(name, NodeVisual)
	g.nodes[id.index].visual = content
	g.visualCount++
	return id
}

func (g *Graph) alloc(name string, kind NodeKind) NodeID {
	var idx int32
	if n := len(g.free); n > 0 {
		idx = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.nodes = append(g.nodes, node{})
		idx = int32(len(g.nodes) - 1)
	}
	n := &g.nodes[idx]
	gen := n.gen
	if gen == 0 {
		gen = 1
	}
	children := n.children[:0]
	*n = node{
		gen:         gen,
		alive:       true,
		kind:        kind,
		name:        name,
		parent:      noParent,
		children:    children,
		local:       IdentityTransform(),
		localMatrix: mgl64.Ident4(),
		world:       mgl64.Ident4(),
		dirty:       true,
		order:       -1,
	}
	return NodeID{index: uint32(idx), gen: gen}
}

func (g *Graph) idAt(idx int32) NodeID {
	return NodeID{index: uint32(idx), gen: g.nodes[idx].gen}
}

// get resolves a handle to its slot index, rejecting stale handles.
func (g *Graph) get(id NodeID) (int32, bool) {
	if id.IsZero() || int(id.index) >= len(g.nodes) {
		return 0, false
	}
	n := &g.nodes[id.index]
	if !n.alive || n.gen != id.gen {
		return 0, false
	}
	return int32(id.index), true
}

// Alive reports whether id refers to a live node.
func (g *Graph) Alive(id NodeID) bool {
	_, ok := g.get(id)
	return ok
}

// Len returns the number of live nodes, including the root.
func (g *Graph) Len() int {
	return len(g.nodes) - len(g.free)
}

// Kind returns the node's kind. Stale handles report NodeTransform.
func (g *Graph) Kind(id NodeID) NodeKind {
	idx, ok := g.get(id)
	if !ok {
		return NodeTransform
	}
	return g.nodes[idx].kind
}

// Name returns the node's debug name.
func (g *Graph) Name(id NodeID) string {
	idx, ok := g.get(id)
	if !ok {
		return ""
	}
	return g.nodes[idx].name
}

// Find returns the first live node named name, in allocation order, or the
// zero NodeID.
func (g *Graph) Find(name string) NodeID {
	for i := range g.nodes {
		if n := &g.nodes[i]; n.alive && n.name == name {
			return g.idAt(int32(i))
		}
	}
	return NodeID{}
}

// Parent returns the parent handle, or the zero NodeID for the root,
// detached nodes and stale handles.
func (g *Graph) Parent(id NodeID) NodeID {
	idx, ok := g.get(id)
	if !ok || g.nodes[idx].parent == noParent {
		return NodeID{}
	}
	return g.idAt(g.nodes[idx].parent)
}

// Children returns a copy of the node's ordered child list.
func (g *Graph) Children(id NodeID) []NodeID {
	idx, ok := g.get(id)
	if !ok {
		return nil
	}
	kids := g.nodes[idx].children
	out := make([]NodeID, len(kids))
	for i, c := range kids {
		out[i] = g.idAt(c)
	}
	return out
}

// NumChildren returns the number of children.
func (g *Graph) NumChildren(id NodeID) int {
	idx, ok := g.get(id)
	if !ok {
		return 0
	}
	return len(g.nodes[idx].children)
}

// --- Tree manipulation ---

// Attach appends child to parent's children. A child that already has a
// parent is moved: a node has exactly one parent. Returns a *CycleError if
// child is parent or one of its ancestors, leaving the graph unchanged.
func (g *Graph) Attach(parent, child NodeID) error {
	return g.attach(parent, child, -1)
}

// AttachAt inserts child at the given position among parent's children.
// Same reparenting and cycle rules as Attach.
func (g *Graph) AttachAt(parent, child NodeID, index int) error {
	if index < 0 {
		return errors.Errorf("tessera: child index %d out of range", index)
	}
	return g.attach(parent, child, index)
}

func (g *Graph) attach(parent, child NodeID, index int) error {
	pi, ok := g.get(parent)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "attach parent %v", parent)
	}
	ci, ok := g.get(child)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "attach child %v", child)
	}
	if g.nodes[pi].kind == NodeVisual {
		return errors.Wrapf(ErrVisualLeaf, "attach under %q", g.nodes[pi].name)
	}
	if g.isAncestor(ci, pi) {
		return &CycleError{Parent: parent, Child: child}
	}
	if g.nodes[ci].parent != noParent {
		g.unlink(ci)
	}
	p := &g.nodes[pi]
	if index < 0 || index >= len(p.children) {
		p.children = append(p.children, ci)
	} else {
		p.children = append(p.children, 0)
		copy(p.children[index+1:], p.children[index:])
		p.children[index] = ci
	}
	g.nodes[ci].parent = pi
	g.markDirty(ci)
	g.structureChanged()
	if g.debug {
		debugCheckTreeDepth(g, ci)
		debugCheckChildCount(g, pi)
	}
	return nil
}

// Detach removes the node from its parent. The subtree stays valid and
// addressable; its visuals are reported as removed at the next resolve.
// Detaching the root or an already detached node is a no-op.
func (g *Graph) Detach(id NodeID) error {
	idx, ok := g.get(id)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "detach %v", id)
	}
	if idx == g.root || g.nodes[idx].parent == noParent {
		return nil
	}
	g.unlink(idx)
	g.touchSubtree(idx, ChangeRemoved)
	g.structureChanged()
	return nil
}

// Remove detaches the node and frees its whole subtree. All handles into
// the subtree become stale.
func (g *Graph) Remove(id NodeID) error {
	idx, ok := g.get(id)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "remove %v", id)
	}
	if idx == g.root {
		return errors.New("tessera: cannot remove the root node")
	}
	if g.nodes[idx].parent != noParent {
		g.unlink(idx)
	}
	g.release(idx)
	g.structureChanged()
	return nil
}

// SetChildIndex moves child to a new index among its siblings, changing
// the draw order.
func (g *Graph) SetChildIndex(child NodeID, index int) error {
	ci, ok := g.get(child)
	if !ok {
		return errors.Wrapf(ErrStaleHandle, "set child index %v", child)
	}
	pi := g.nodes[ci].parent
	if pi == noParent {
		return errors.Errorf("tessera: %v has no parent", child)
	}
	kids := g.nodes[pi].children
	if index < 0 || index >= len(kids) {
		return errors.Errorf("tessera: child index %d out of range", index)
	}
	old := -1
	for i, c := range kids {
		if c == ci {
			old = i
			break
		}
	}
	if old == index {
		return nil
	}
	if old < index {
		copy(kids[old:], kids[old+1:index+1])
	} else {
		copy(kids[index+1:], kids[index:old])
	}
	kids[index] = ci
	g.structureChanged()
	return nil
}

// --- Helpers ---

// isAncestor reports whether candidate is idx or one of its ancestors.
func (g *Graph) isAncestor(candidate, idx int32) bool {
	for p := idx; p != noParent; p = g.nodes[p].parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// unlink removes idx from its parent's child list and clears the link.
// Uses copy to avoid retaining the index in the backing array tail.
func (g *Graph) unlink(idx int32) {
	pi := g.nodes[idx].parent
	kids := g.nodes[pi].children
	for i, c := range kids {
		if c == idx {
			copy(kids[i:], kids[i+1:])
			g.nodes[pi].children = kids[:len(kids)-1]
			break
		}
	}
	g.nodes[idx].parent = noParent
}

// release frees idx and its descendants.
func (g *Graph) release(idx int32) {
	n := &g.nodes[idx]
	id := g.idAt(idx)
	if n.kind == NodeVisual {
		g.pending[id] |= ChangeRemoved
		g.visualCount--
	}
	for _, c := range n.children {
		g.release(c)
	}
	n = &g.nodes[idx]
	n.alive = false
	n.gen++
	if n.gen == 0 {
		n.gen = 1
	}
	n.parent = noParent
	n.children = n.children[:0]
	n.visual = Visual{}
	n.name = ""
	g.free = append(g.free, idx)
}

// touchSubtree adds every visual in the subtree to the pending change set.
func (g *Graph) touchSubtree(idx int32, flags ChangeFlags) {
	n := &g.nodes[idx]
	if n.kind == NodeVisual {
		g.pending[g.idAt(idx)] |= flags
	}
	for _, c := range n.children {
		g.touchSubtree(c, flags)
	}
}

func (g *Graph) structureChanged() {
	g.structureVersion++
}

// StructureVersion increases whenever nodes are attached, detached, removed
// or reordered.
func (g *Graph) StructureVersion() uint64 {
	return g.structureVersion
}

// DrawOrder returns the visual's position in the pre-order traversal of the
// reachable tree, or -1 if the node is not a reachable visual. Orders are
// recomputed only after structural changes.
func (g *Graph) DrawOrder(id NodeID) int {
	idx, ok := g.get(id)
	if !ok {
		return -1
	}
	if g.orderVersion != g.structureVersion {
		g.computeOrder()
	}
	return g.nodes[idx].order
}

func (g *Graph) computeOrder() {
	for i := range g.nodes {
		g.nodes[i].order = -1
	}
	next := 0
	var walk func(idx int32)
	walk = func(idx int32) {
		n := &g.nodes[idx]
		if n.kind == NodeVisual {
			n.order = next
			next++
		}
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(g.root)
	g.orderVersion = g.structureVersion
}
