package tessera

import (
	"sort"

	"github.com/pkg/errors"
)

// VisualKind selects which content a visual node carries.
type VisualKind uint8

const (
	VisualShapes VisualKind = iota
	VisualText
)

func (k VisualKind) String() string {
	switch k {
	case VisualShapes:
		return "shapes"
	case VisualText:
		return "text"
	default:
		return "unknown"
	}
}

// ShapeList is an ordered list of analytic shapes drawn back to front.
type ShapeList []Shape

// Visual is the content of a visual node: exactly one of a text run or a
// shape list, selected by Kind, plus a tint and an optional clip rectangle
// in the node's model space.
type Visual struct {
	Kind   VisualKind
	Text   TextRun
	Shapes ShapeList

	// Tint multiplies every glyph and shape color. The zero value is
	// treated as opaque white.
	Tint Color

	Clip ClipRect

	// DepthBias lifts the visual into a layer. Visuals with a higher bias
	// draw above every visual with a lower one, whatever their position in
	// the graph. Within a layer graph draw order applies.
	DepthBias int
}

// TextVisual returns a visual holding a shaped text run.
func TextVisual(run TextRun) Visual {
	return Visual{Kind: VisualText, Text: run, Tint: ColorWhite}
}

// ShapeVisual returns a visual holding the given shapes.
func ShapeVisual(shapes ...Shape) Visual {
	return Visual{Kind: VisualShapes, Shapes: shapes, Tint: ColorWhite}
}

// effectiveTint resolves the zero-color sentinel.
func (v *Visual) effectiveTint() Color {
	if v.Tint == (Color{}) {
		return ColorWhite
	}
	return v.Tint
}

// ChangeFlags describes what happened to a visual since the previous
// ResolveWorldTransforms.
type ChangeFlags uint8

const (
	// ChangeTransform means the visual's world matrix changed.
	ChangeTransform ChangeFlags = 1 << iota
	// ChangeContent means text, shapes, tint or clip changed, or the
	// visual moved to a different parent.
	ChangeContent
	// ChangeRemoved means the visual was freed or is no longer reachable
	// from the root. No other flag accompanies it.
	ChangeRemoved
)

func (f ChangeFlags) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&ChangeTransform != 0 {
		add("transform")
	}
	if f&ChangeContent != 0 {
		add("content")
	}
	if f&ChangeRemoved != 0 {
		add("removed")
	}
	return s
}

// VisualChange is one entry of a ChangeSet.
type VisualChange struct {
	ID    NodeID
	Flags ChangeFlags
}

// ChangeSet lists the visuals touched since the previous resolve, sorted
// by node ID. Visuals that were not touched are absent.
type ChangeSet struct {
	Changes []VisualChange
}

// Len returns the number of changed visuals.
func (cs ChangeSet) Len() int {
	return len(cs.Changes)
}

// Flags returns the flags recorded for id, or zero.
func (cs ChangeSet) Flags(id NodeID) ChangeFlags {
	i := sort.Search(len(cs.Changes), func(i int) bool {
		return !cs.Changes[i].ID.less(id)
	})
	if i < len(cs.Changes) && cs.Changes[i].ID == id {
		return cs.Changes[i].Flags
	}
	return 0
}

func (cs ChangeSet) sort() {
	sort.Slice(cs.Changes, func(i, j int) bool {
		return cs.Changes[i].ID.less(cs.Changes[j].ID)
	})
}

// --- Visual content ---

// Content returns the visual's content.
func (g *Graph) Content(id NodeID) (Visual, bool) {
	idx, ok := g.get(id)
	if !ok || g.nodes[idx].kind != NodeVisual {
		return Visual{}, false
	}
	return g.nodes[idx].visual, true
}

// SetVisual replaces the visual's content.
func (g *Graph) SetVisual(id NodeID, v Visual) error {
	n, err := g.visualNode(id, "set visual")
	if err != nil {
		return err
	}
	n.visual = v
	g.pending[id] |= ChangeContent
	return nil
}

// SetVisualColor sets the visual's tint.
func (g *Graph) SetVisualColor(id NodeID, c Color) error {
	n, err := g.visualNode(id, "set visual color")
	if err != nil {
		return err
	}
	if n.visual.Tint == c {
		return nil
	}
	n.visual.Tint = c
	g.pending[id] |= ChangeContent
	return nil
}

// VisualColor returns the visual's effective tint.
func (g *Graph) VisualColor(id NodeID) Color {
	idx, ok := g.get(id)
	if !ok || g.nodes[idx].kind != NodeVisual {
		return ColorWhite
	}
	return g.nodes[idx].visual.effectiveTint()
}

// SetVisualClip sets the clip rectangle applied to the visual, in the
// model space of its parent transform node.
func (g *Graph) SetVisualClip(id NodeID, clip ClipRect) error {
	n, err := g.visualNode(id, "set visual clip")
	if err != nil {
		return err
	}
	n.visual.Clip = clip
	g.pending[id] |= ChangeContent
	return nil
}

// SetVisualDepthBias moves the visual to another depth layer.
func (g *Graph) SetVisualDepthBias(id NodeID, bias int) error {
	n, err := g.visualNode(id, "set visual depth bias")
	if err != nil {
		return err
	}
	if n.visual.DepthBias == bias {
		return nil
	}
	n.visual.DepthBias = bias
	g.pending[id] |= ChangeContent
	return nil
}

// VisualCount returns the number of live visual nodes.
func (g *Graph) VisualCount() int {
	return g.visualCount
}

func (g *Graph) visualNode(id NodeID, op string) (*node, error) {
	idx, ok := g.get(id)
	if !ok {
		return nil, errors.Wrapf(ErrStaleHandle, "%s %v", op, id)
	}
	n := &g.nodes[idx]
	if n.kind != NodeVisual {
		return nil, errors.Wrapf(ErrNotVisual, "%s %q", op, n.name)
	}
	return n, nil
}
