package tessera

import "time"

// debugStats holds per-frame timing. Only logged when the scene is in
// debug mode.
type debugStats struct {
	tickTime    time.Duration
	resolveTime time.Duration
	batchTime   time.Duration
	flushTime   time.Duration
	submitTime  time.Duration
}

// debugLog writes frame timing and counters at debug level.
func (s *Scene) debugLog(d debugStats, st FrameStats) {
	if !s.debug {
		return
	}
	total := d.tickTime + d.resolveTime + d.batchTime + d.flushTime + d.submitTime
	Logger().Debug("tessera frame",
		"frame", st.Frame,
		"tick", d.tickTime,
		"resolve", d.resolveTime,
		"batch", d.batchTime,
		"flush", d.flushTime,
		"submit", d.submitTime,
		"total", total,
		"changes", st.Changes,
		"rebuilt", st.Batch.Rebuilt,
		"batches", st.Batch.Batches,
		"draw_calls", st.Render.DrawCalls,
		"uploads", st.Render.Uploads,
	)
}

// debugMaxTreeDepth is the depth above which attaches log a warning.
const debugMaxTreeDepth = 32

func debugCheckTreeDepth(g *Graph, idx int32) {
	depth := 0
	for p := idx; p != noParent; p = g.nodes[p].parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		Logger().Warn("tessera: deep tree", "depth", depth, "limit", debugMaxTreeDepth, "node", g.nodes[idx].name)
	}
}

// debugMaxChildCount is the fan-out above which attaches log a warning.
const debugMaxChildCount = 1000

func debugCheckChildCount(g *Graph, idx int32) {
	if n := len(g.nodes[idx].children); n > debugMaxChildCount {
		Logger().Warn("tessera: wide node", "children", n, "limit", debugMaxChildCount, "node", g.nodes[idx].name)
	}
}

// SetDebug enables tree shape warnings on attach.
func (g *Graph) SetDebug(enabled bool) {
	g.debug = enabled
}
