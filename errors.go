package tessera

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrStaleHandle is returned when a NodeID refers to a freed node.
	ErrStaleHandle = errors.New("tessera: stale node handle")

	// ErrVisualLeaf is returned when attaching a child under a visual node.
	ErrVisualLeaf = errors.New("tessera: visual nodes cannot have children")

	// ErrVisualTransform is returned when setting a local transform on a
	// visual node. Visuals are placed by their parent transform node.
	ErrVisualTransform = errors.New("tessera: visual nodes take their parent's transform")

	// ErrNotVisual is returned by visual content setters on transform nodes.
	ErrNotVisual = errors.New("tessera: node is not a visual")

	// ErrDeviceExhausted may be wrapped by Device implementations when a
	// buffer or texture allocation fails for lack of resources. The core
	// does not retry.
	ErrDeviceExhausted = errors.New("tessera: device resources exhausted")
)

// CycleError is returned by Graph.Attach when the child is the parent itself
// or one of its ancestors. The graph is left unchanged.
type CycleError struct {
	Parent NodeID
	Child  NodeID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("tessera: attaching %v under %v would create a cycle", e.Child, e.Parent)
}

// OversizedContentError is returned when a bitmap cannot fit an empty atlas
// page. The caller is expected to render the content without the atlas.
type OversizedContentError struct {
	Key           ContentKey
	Width, Height int
	PageWidth     int
	PageHeight    int
}

func (e *OversizedContentError) Error() string {
	return fmt.Sprintf("tessera: content %v (%dx%d) exceeds atlas page size %dx%d",
		e.Key, e.Width, e.Height, e.PageWidth, e.PageHeight)
}

// StaleReferenceError reports a reference to an evicted atlas rectangle.
// It is raised with panic: it can only happen after a live rectangle was
// evicted, which means the reference counts are corrupted.
type StaleReferenceError struct {
	Ref AtlasRef
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("tessera: stale atlas reference page=%d slot=%d gen=%d",
		e.Ref.Page, e.Ref.Slot, e.Ref.Gen)
}
