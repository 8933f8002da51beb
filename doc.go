// Package tessera is a retained-mode 3D rendering data-plane for text and
// analytic shapes.
//
// Tessera keeps a scene graph of transform and visual nodes, animates
// their properties, packs glyphs into distance-field and color atlases,
// groups everything into batches and submits them to an abstract GPU
// [Device]. Work per frame is proportional to what changed: untouched
// subtrees keep their world matrices, untouched visuals keep their
// instances and untouched batches keep their device buffers.
//
// # Quick start
//
//	dev := headless.New(640, 480)
//	scene, err := tessera.NewScene(dev, glyphs.NewRasterizer(), tessera.DefaultConfig())
//	if err != nil { ... }
//
//	g := scene.Graph()
//	panel := g.NewTransform("panel")
//	_ = g.Attach(g.Root(), panel)
//	_ = g.SetTranslation(panel, mgl64.Vec3{40, 40, 0})
//
//	box := g.NewVisual("box", tessera.ShapeVisual(
//		tessera.RoundedRect(0, 0, 200, 80, 12, tessera.RGBA(40, 44, 52, 255)),
//	))
//	_ = g.Attach(panel, box)
//
//	for {
//		if err := scene.TickAndRender(1.0 / 60); err != nil { ... }
//	}
//
// # Scene graph
//
// Nodes live in an arena owned by [Graph] and are addressed by
// generation-checked [NodeID] handles. Transform nodes position their
// children; visual nodes are leaves holding a [TextRun] or a [ShapeList]
// and are drawn in the model space of their parent. Setters only mark
// nodes dirty. [Graph.ResolveWorldTransforms] recomputes dirty subtrees
// and reports the visuals that changed as a [ChangeSet].
//
// # Animation
//
// [Animator] drives typed [Attribute] values with [gween] easing
// functions. Tracks end exactly on their target value and then follow
// their [Policy].
//
// # Atlases and batching
//
// [Atlas] packs glyph bitmaps into pages with a shelf packer and shares
// them through reference counts. Unreferenced entries are evicted least
// recently used first. [Batcher] groups instances by location node,
// pipeline, atlas page and clip rectangle, and [Renderer] uploads changed
// batches into double-buffered device buffers.
//
// Device back-ends live in sub-packages: headless for tests and tools,
// ebitendevice for on-screen rendering with [Ebitengine].
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package tessera
