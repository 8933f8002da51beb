package tessera

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// TextureHandle is an opaque device texture. Zero means no texture.
type TextureHandle uint32

// BufferHandle is an opaque device instance buffer. Zero means no buffer.
type BufferHandle uint32

// TextureFormat is the texel layout of a device texture.
type TextureFormat uint8

const (
	TextureR8    TextureFormat = iota // one channel, distance fields
	TextureRGBA8                      // premultiplied color
)

// Device is the GPU submission boundary. Implementations own the actual
// GPU objects; the core only holds handles. Calls come from the goroutine
// running Scene.Draw.
type Device interface {
	CreateTexture(width, height int, format TextureFormat) (TextureHandle, error)
	UploadTexture(tex TextureHandle, x, y, width, height int, pixels []byte) error
	ReleaseTexture(tex TextureHandle)

	// CreateBuffer allocates room for capacity instances.
	CreateBuffer(capacity int) (BufferHandle, error)
	UploadBuffer(buf BufferHandle, instances []Instance) error
	ReleaseBuffer(buf BufferHandle)

	// Submit draws the calls in order. Later calls paint over earlier ones.
	Submit(calls []DrawCall) error
}

// PushConstants are the per-draw uniforms.
type PushConstants struct {
	// ViewModel maps the batch's model space to clip space.
	ViewModel mgl32.Mat4
	// Clip is [minX, minY, maxX, maxY] in model space.
	Clip        [4]float32
	ClipEnabled bool
}

// DrawCall is one instanced draw of a batch.
type DrawCall struct {
	Pipeline  Pipeline
	Texture   TextureHandle
	Buffer    BufferHandle
	Count     int
	Constants PushConstants
}

// RenderStats counts device traffic for one Render.
type RenderStats struct {
	DrawCalls int
	Uploads   int
	Instances int
}

// instanceBuffer is one half of a batch's double buffer.
type instanceBuffer struct {
	buf      BufferHandle
	capacity int
	version  uint64
	valid    bool
}

// batchBuffers holds the double buffer of one batch. front is the buffer
// referenced by the most recent submission, possibly still in flight.
type batchBuffers struct {
	bufs  [2]instanceBuffer
	front int
	seen  uint64
}

// Renderer turns sorted batches into draw calls. Each batch owns two
// device buffers: a changed batch is uploaded into the one not used by the
// previous frame, so the device never sees a buffer rewritten while a
// submission may still read it.
type Renderer struct {
	dev     Device
	buffers map[uint64]*batchBuffers
	calls   []DrawCall
	frame   uint64
	minCap  int
}

// NewRenderer creates a renderer submitting to dev.
func NewRenderer(dev Device) *Renderer {
	return &Renderer{
		dev:     dev,
		buffers: make(map[uint64]*batchBuffers),
		minCap:  64,
	}
}

// Device returns the device this renderer submits to.
func (r *Renderer) Device() Device {
	return r.dev
}

// Render uploads changed batches and submits one draw call per batch in
// the given order. Buffers of batches that disappeared are released.
func (r *Renderer) Render(batches []*Batch, viewProj mgl64.Mat4, atlases *Atlases) (RenderStats, error) {
	var st RenderStats
	r.frame++
	r.calls = r.calls[:0]

	for _, bt := range batches {
		if len(bt.Instances) == 0 {
			continue
		}
		bb := r.buffers[bt.ID]
		if bb == nil {
			bb = &batchBuffers{front: 1}
			r.buffers[bt.ID] = bb
		}
		bb.seen = r.frame

		front := &bb.bufs[bb.front]
		if !front.valid || front.version != bt.Version {
			back := 1 - bb.front
			if err := r.upload(&bb.bufs[back], bt); err != nil {
				return st, err
			}
			bb.front = back
			st.Uploads++
		}

		r.calls = append(r.calls, DrawCall{
			Pipeline: bt.Key.Pipeline,
			Texture:  batchTexture(bt, atlases),
			Buffer:   bb.bufs[bb.front].buf,
			Count:    len(bt.Instances),
			Constants: PushConstants{
				ViewModel:   toMat32(viewProj.Mul4(bt.Model)),
				Clip:        bt.Key.Clip.Vec4(),
				ClipEnabled: bt.Key.Clip.Enabled,
			},
		})
		st.Instances += len(bt.Instances)
	}

	for id, bb := range r.buffers {
		if bb.seen != r.frame {
			r.releaseBuffers(bb)
			delete(r.buffers, id)
		}
	}

	st.DrawCalls = len(r.calls)
	if err := r.dev.Submit(r.calls); err != nil {
		return st, errors.Wrap(err, "tessera: submit")
	}
	return st, nil
}

// upload writes the batch into ib, growing it by doubling when needed.
func (r *Renderer) upload(ib *instanceBuffer, bt *Batch) error {
	need := len(bt.Instances)
	if ib.buf == 0 || ib.capacity < need {
		capacity := max(ib.capacity, r.minCap)
		for capacity < need {
			capacity *= 2
		}
		buf, err := r.dev.CreateBuffer(capacity)
		if err != nil {
			return errors.Wrapf(err, "tessera: create buffer for batch %d (%d instances)", bt.ID, capacity)
		}
		if ib.buf != 0 {
			r.dev.ReleaseBuffer(ib.buf)
		}
		ib.buf, ib.capacity = buf, capacity
	}
	if err := r.dev.UploadBuffer(ib.buf, bt.Instances); err != nil {
		return errors.Wrapf(err, "tessera: upload batch %d", bt.ID)
	}
	ib.version = bt.Version
	ib.valid = true
	return nil
}

func (r *Renderer) releaseBuffers(bb *batchBuffers) {
	for i := range bb.bufs {
		if bb.bufs[i].buf != 0 {
			r.dev.ReleaseBuffer(bb.bufs[i].buf)
			bb.bufs[i] = instanceBuffer{}
		}
	}
}

// Close releases every buffer owned by the renderer.
func (r *Renderer) Close() {
	for id, bb := range r.buffers {
		r.releaseBuffers(bb)
		delete(r.buffers, id)
	}
}

// BufferCount returns the number of live device buffers.
func (r *Renderer) BufferCount() int {
	n := 0
	for _, bb := range r.buffers {
		for i := range bb.bufs {
			if bb.bufs[i].buf != 0 {
				n++
			}
		}
	}
	return n
}

func batchTexture(bt *Batch, atlases *Atlases) TextureHandle {
	switch bt.Key.Pipeline {
	case PipelineSDFGlyph:
		return atlases.SDF.Texture(bt.Key.Page)
	case PipelineColorGlyph:
		return atlases.Color.Texture(bt.Key.Page)
	default:
		return 0
	}
}

func toMat32(m mgl64.Mat4) mgl32.Mat4 {
	var out mgl32.Mat4
	for i := range m {
		out[i] = float32(m[i])
	}
	return out
}
