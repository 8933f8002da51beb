package tessera

import "fmt"

// NodeID is a generation-checked handle to a node in a Graph. The zero
// value is never a valid node. Handles to freed nodes stay comparable but
// every Graph lookup rejects them, which lets animation tracks and batch
// records hold them weakly.
type NodeID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether id is the zero handle.
func (id NodeID) IsZero() bool {
	return id.gen == 0
}

func (id NodeID) String() string {
	if id.IsZero() {
		return "node(nil)"
	}
	return fmt.Sprintf("node(%d#%d)", id.index, id.gen)
}

// less orders handles by slot, then generation. Used to keep change feeds
// deterministic.
func (id NodeID) less(o NodeID) bool {
	if id.index != o.index {
		return id.index < o.index
	}
	return id.gen < o.gen
}
