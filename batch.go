package tessera

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Pipeline selects the shader program used for a batch.
type Pipeline uint8

const (
	// PipelineShape draws analytic shapes with no texture.
	PipelineShape Pipeline = iota
	// PipelineSDFGlyph draws glyphs from the distance-field atlas.
	PipelineSDFGlyph
	// PipelineColorGlyph draws glyphs from the RGBA atlas.
	PipelineColorGlyph
)

func (p Pipeline) String() string {
	switch p {
	case PipelineShape:
		return "shape"
	case PipelineSDFGlyph:
		return "sdf-glyph"
	case PipelineColorGlyph:
		return "color-glyph"
	default:
		return "unknown"
	}
}

// shapeAAMargin grows shape quads so the anti-aliased edge is not cut off
// at the bounding box.
const shapeAAMargin = 1

// Instance is the per-instance record uploaded to the device. Plain
// float32 data, no pointers.
type Instance struct {
	// Quad is [x0, y0, x1, y1] in the model space of the batch location.
	Quad [4]float32
	// UV is [u0, v0, u1, v1] on the atlas page. Unused by shapes.
	UV [4]float32
	// Color is premultiplied RGBA.
	Color [4]float32
	// Params holds, for shapes, the half extents and the two packed shape
	// parameters. Unused by glyphs.
	Params [4]float32
	// Depth is the owning visual's draw order. Devices draw in submission
	// order; Depth is there for back-ends with a depth buffer.
	Depth float32
}

// BatchKey groups instances that can be drawn with one call: same location
// transform, pipeline, atlas page and clip.
type BatchKey struct {
	Location NodeID
	Pipeline Pipeline
	Page     int
	Clip     ClipRect
}

// runKey identifies a batch: the Seq-th run of consecutive draw order
// sharing Key.
type runKey struct {
	Key BatchKey
	Seq int
}

// Batch is a run of instances drawn in one device call. Its members are
// consecutive in draw order, so no other batch draws between them.
type Batch struct {
	ID  uint64
	Key BatchKey

	// Model is the world matrix of the location node.
	Model mgl64.Mat4

	// Instances is the concatenation of member instances in draw order.
	Instances []Instance

	// Version increases every time Instances is rebuilt.
	Version uint64

	members []NodeID
	dirty   bool
}

// BatchStats reports the work done by one Batcher.Update.
type BatchStats struct {
	Changed       int
	Regenerated   int
	TransformOnly int
	Removed       int
	Rebuilt       int
	Batches       int
	Instances     int
}

type atlasUse struct {
	kind AtlasKind
	ref  AtlasRef
}

// visualRecord caches the instances generated for one visual.
type visualRecord struct {
	location NodeID
	bias     int
	order    int
	parts    map[BatchKey][]Instance
	refs     []atlasUse
	batches  []*Batch
}

// Batcher turns visual changes into batches. Only visuals listed in a
// ChangeSet are touched; everything else keeps its cached instances.
type Batcher struct {
	atlases  *Atlases
	raster   GlyphRasterizer
	parallel int

	visuals map[NodeID]*visualRecord
	batches map[runKey]*Batch
	sorted  []*Batch

	// touched holds visuals whose instances changed in this Update.
	touched map[NodeID]struct{}
	slots   []slot

	structureVersion uint64
	nextID           uint64
	rebuilds         uint64
	layoutDirty      bool
}

// NewBatcher creates a batcher that places glyphs in atlases, rasterizing
// misses with raster. parallel > 1 rebuilds dirty batches concurrently.
func NewBatcher(atlases *Atlases, raster GlyphRasterizer, parallel int) *Batcher {
	return &Batcher{
		atlases:          atlases,
		raster:           raster,
		parallel:         parallel,
		visuals:          make(map[NodeID]*visualRecord),
		batches:          make(map[runKey]*Batch),
		touched:          make(map[NodeID]struct{}),
		structureVersion: ^uint64(0),
	}
}

// SetRasterizer replaces the glyph rasterizer used on atlas misses.
func (b *Batcher) SetRasterizer(r GlyphRasterizer) {
	b.raster = r
}

// Rebuilds returns the total number of batch instance buffers rebuilt.
func (b *Batcher) Rebuilds() uint64 {
	return b.rebuilds
}

// Batches returns the batches in draw order: by depth bias, then graph
// draw order. The slice is owned by the batcher.
func (b *Batcher) Batches() []*Batch {
	return b.sorted
}

// Update applies a change set. Content changes regenerate the visual's
// instances, acquiring new atlas references before releasing the old
// ones; transform-only changes refresh the batch model matrix.
//
// A failing visual keeps its previous state and the remaining changes are
// still applied. The first error is returned, later ones are logged.
func (b *Batcher) Update(cs ChangeSet, g *Graph) (BatchStats, error) {
	var st BatchStats
	st.Changed = cs.Len()
	clear(b.touched)

	var first error
	for _, ch := range cs.Changes {
		rec := b.visuals[ch.ID]
		if ch.Flags&ChangeRemoved != 0 {
			if rec != nil {
				b.removeVisual(ch.ID, rec)
				st.Removed++
			}
			continue
		}
		loc := g.Parent(ch.ID)
		if rec == nil || ch.Flags&ChangeContent != 0 || rec.location != loc {
			if err := b.regenerate(ch.ID, rec, g); err != nil {
				if first == nil {
					first = err
				} else {
					Logger().Warn("tessera: visual not regenerated", "visual", ch.ID, "err", err)
				}
				continue
			}
			st.Regenerated++
			continue
		}
		b.refreshModel(rec, g)
		st.TransformOnly++
	}

	b.finish(g, &st)
	return st, first
}

func (b *Batcher) finish(g *Graph, st *BatchStats) {
	if sv := g.StructureVersion(); sv != b.structureVersion {
		b.structureVersion = sv
		b.reorder(g)
	}
	if b.layoutDirty {
		b.regroup(g)
	}
	st.Rebuilt = b.rebuild()
	st.Batches = len(b.sorted)
	for _, bt := range b.sorted {
		st.Instances += len(bt.Instances)
	}
}

// regenerate rebuilds the instances of one visual.
func (b *Batcher) regenerate(id NodeID, old *visualRecord, g *Graph) error {
	v, ok := g.Content(id)
	if !ok {
		if old != nil {
			b.removeVisual(id, old)
		}
		return nil
	}
	rec := &visualRecord{
		location: g.Parent(id),
		bias:     v.DepthBias,
		order:    g.DrawOrder(id),
		parts:    make(map[BatchKey][]Instance),
	}
	depth := float32(rec.order)

	switch v.Kind {
	case VisualShapes:
		tint := v.effectiveTint()
		key := BatchKey{Location: rec.location, Pipeline: PipelineShape, Clip: v.Clip}
		for i := range v.Shapes {
			rec.parts[key] = append(rec.parts[key], shapeInstance(&v.Shapes[i], tint, depth))
		}
	case VisualText:
		if err := b.textInstances(id, &v, rec, depth); err != nil {
			b.releaseRefs(rec.refs)
			return err
		}
	}

	if old != nil {
		b.releaseRefs(old.refs)
	}
	b.visuals[id] = rec
	b.touched[id] = struct{}{}
	if old != nil && sameLayout(old, rec) {
		// Same batches, new instances.
		rec.batches = old.batches
		model := g.WorldMatrix(rec.location)
		for _, bt := range rec.batches {
			bt.Model = model
			bt.dirty = true
		}
		return nil
	}
	b.layoutDirty = true
	return nil
}

// sameLayout reports whether rec occupies exactly the slots of old.
func sameLayout(old, rec *visualRecord) bool {
	if old.location != rec.location || old.bias != rec.bias || old.order != rec.order || len(old.parts) != len(rec.parts) {
		return false
	}
	for key := range rec.parts {
		if _, ok := old.parts[key]; !ok {
			return false
		}
	}
	return true
}

func (b *Batcher) textInstances(id NodeID, v *Visual, rec *visualRecord, depth float32) error {
	run := &v.Text
	kind, pipeline := AtlasSDF, PipelineSDFGlyph
	if run.Mode == GlyphColor {
		kind, pipeline = AtlasColor, PipelineColorGlyph
	}
	atlas := b.atlases.forKind(kind)
	tint := v.effectiveTint()

	for i := range run.Glyphs {
		gl := &run.Glyphs[i]
		if b.raster == nil {
			return errors.Errorf("tessera: visual %v has text but no glyph rasterizer is set", id)
		}
		ref, err := atlas.Acquire(GlyphContent(gl.Key), func() (GlyphBitmap, error) {
			return b.raster.RasterizeGlyph(gl.Key)
		})
		if err != nil {
			return errors.Wrapf(err, "tessera: visual %v", id)
		}
		rec.refs = append(rec.refs, atlasUse{kind: kind, ref: ref})

		e := atlas.Lookup(ref)
		if e.Width == 0 || e.Height == 0 {
			continue
		}
		key := BatchKey{Location: rec.location, Pipeline: pipeline, Page: e.Page, Clip: v.Clip}
		rec.parts[key] = append(rec.parts[key], Instance{
			Quad:  glyphQuad(gl.Origin, &e),
			UV:    e.UV,
			Color: run.glyphColor(gl).Mul(tint).Premultiplied(),
			Depth: depth,
		})
	}
	return nil
}

func shapeInstance(s *Shape, tint Color, depth float32) Instance {
	x0, y0 := s.Position[0]-shapeAAMargin, s.Position[1]-shapeAAMargin
	x1, y1 := s.Position[0]+s.Size[0]+shapeAAMargin, s.Position[1]+s.Size[1]+shapeAAMargin
	h := s.half()
	p := shapeParams(s)
	return Instance{
		Quad:   [4]float32{float32(x0), float32(y0), float32(x1), float32(y1)},
		Color:  s.effectiveColor().Mul(tint).Premultiplied(),
		Params: [4]float32{float32(h[0]), float32(h[1]), p[0], p[1]},
		Depth:  depth,
	}
}

// refreshModel copies the location's world matrix into the visual's
// batches. No instances change.
func (b *Batcher) refreshModel(rec *visualRecord, g *Graph) {
	model := g.WorldMatrix(rec.location)
	for _, bt := range rec.batches {
		bt.Model = model
	}
}

func (b *Batcher) removeVisual(id NodeID, rec *visualRecord) {
	b.releaseRefs(rec.refs)
	delete(b.visuals, id)
	b.layoutDirty = true
}

func (b *Batcher) releaseRefs(refs []atlasUse) {
	for _, u := range refs {
		b.atlases.forKind(u.kind).Release(u.ref)
	}
}

// reorder refreshes instance depths after a structural change. Only
// visuals whose draw order moved are touched.
func (b *Batcher) reorder(g *Graph) {
	for id, rec := range b.visuals {
		order := g.DrawOrder(id)
		if order == rec.order {
			continue
		}
		rec.order = order
		for _, insts := range rec.parts {
			for i := range insts {
				insts[i].Depth = float32(order)
			}
		}
		b.touched[id] = struct{}{}
		b.layoutDirty = true
	}
}

// slot is one visual's instances for one batch key.
type slot struct {
	bias  int
	order int
	key   BatchKey
	id    NodeID
}

func (s *slot) less(o *slot) bool {
	switch {
	case s.bias != o.bias:
		return s.bias < o.bias
	case s.order != o.order:
		return s.order < o.order
	case s.key.Pipeline != o.key.Pipeline:
		return s.key.Pipeline < o.key.Pipeline
	case s.key.Page != o.key.Page:
		return s.key.Page < o.key.Page
	}
	return s.id.less(o.id)
}

// regroup splits the visuals into runs of consecutive draw order sharing a
// batch key. Runs keep their batch while their members are unchanged, so
// only runs with new, removed or touched members are rebuilt.
func (b *Batcher) regroup(g *Graph) {
	b.slots = b.slots[:0]
	for id, rec := range b.visuals {
		rec.batches = rec.batches[:0]
		for key := range rec.parts {
			b.slots = append(b.slots, slot{bias: rec.bias, order: rec.order, key: key, id: id})
		}
	}
	sort.Slice(b.slots, func(i, j int) bool { return b.slots[i].less(&b.slots[j]) })

	prev := b.batches
	b.batches = make(map[runKey]*Batch, len(prev))
	b.sorted = b.sorted[:0]
	seq := make(map[BatchKey]int)
	for i := 0; i < len(b.slots); {
		key := b.slots[i].key
		j := i
		for j < len(b.slots) && b.slots[j].key == key {
			j++
		}
		rk := runKey{Key: key, Seq: seq[key]}
		seq[key]++

		bt := prev[rk]
		if bt == nil {
			b.nextID++
			bt = &Batch{ID: b.nextID, Key: key}
			bt.dirty = true
		}
		if !b.sameMembers(bt.members, b.slots[i:j]) {
			bt.members = bt.members[:0]
			for _, sl := range b.slots[i:j] {
				bt.members = append(bt.members, sl.id)
			}
			bt.dirty = true
		}
		bt.Model = g.WorldMatrix(key.Location)
		for _, id := range bt.members {
			rec := b.visuals[id]
			rec.batches = append(rec.batches, bt)
			if _, ok := b.touched[id]; ok {
				bt.dirty = true
			}
		}
		b.batches[rk] = bt
		b.sorted = append(b.sorted, bt)
		i = j
	}
	b.layoutDirty = false
}

func (b *Batcher) sameMembers(members []NodeID, slots []slot) bool {
	if len(members) != len(slots) {
		return false
	}
	for i := range slots {
		if members[i] != slots[i].id {
			return false
		}
	}
	return true
}

// rebuild regenerates the instance buffers of dirty batches.
func (b *Batcher) rebuild() int {
	var dirty []*Batch
	for _, bt := range b.sorted {
		if bt.dirty {
			dirty = append(dirty, bt)
		}
	}
	if len(dirty) == 0 {
		return 0
	}

	if b.parallel > 1 && len(dirty) > 1 {
		var eg errgroup.Group
		eg.SetLimit(b.parallel)
		for _, bt := range dirty {
			eg.Go(func() error {
				b.rebuildBatch(bt)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for _, bt := range dirty {
			b.rebuildBatch(bt)
		}
	}
	b.rebuilds += uint64(len(dirty))
	return len(dirty)
}

// rebuildBatch only reads visual records, so batches rebuild independently.
// Members are already in draw order.
func (b *Batcher) rebuildBatch(bt *Batch) {
	bt.Instances = bt.Instances[:0]
	for _, id := range bt.members {
		bt.Instances = append(bt.Instances, b.visuals[id].parts[bt.Key]...)
	}
	bt.Version++
	bt.dirty = false
}

// Reset drops every cached visual and batch and releases their atlas
// references.
func (b *Batcher) Reset() {
	for _, rec := range b.visuals {
		b.releaseRefs(rec.refs)
	}
	clear(b.visuals)
	clear(b.batches)
	clear(b.touched)
	b.sorted = b.sorted[:0]
	b.structureVersion = ^uint64(0)
	b.layoutDirty = false
}
