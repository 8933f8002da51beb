package tessera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

func makeBatch(id uint64, n int) *Batch {
	return &Batch{
		ID:        id,
		Key:       BatchKey{Pipeline: PipelineShape},
		Model:     mgl64.Ident4(),
		Instances: make([]Instance, n),
		Version:   1,
	}
}

func TestRendererUploadsOnlyOnChange(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	atl := NewAtlases(AtlasConfig{PageSize: 64})
	bt := makeBatch(1, 3)

	st, err := r.Render([]*Batch{bt}, mgl64.Ident4(), atl)
	if err != nil {
		t.Fatal(err)
	}
	if st.Uploads != 1 || st.DrawCalls != 1 || st.Instances != 3 {
		t.Errorf("first frame stats = %+v", st)
	}
	first := dev.lastSubmit()[0].Buffer

	st, _ = r.Render([]*Batch{bt}, mgl64.Ident4(), atl)
	if st.Uploads != 0 {
		t.Errorf("unchanged batch uploaded %d times", st.Uploads)
	}
	if dev.lastSubmit()[0].Buffer != first {
		t.Error("unchanged batch should keep its front buffer")
	}
	if dev.bufferUploads != 1 {
		t.Errorf("device uploads = %d", dev.bufferUploads)
	}
}

func TestRendererDoubleBuffers(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	atl := NewAtlases(AtlasConfig{PageSize: 64})
	bt := makeBatch(1, 2)

	var used []BufferHandle
	for i := 0; i < 3; i++ {
		if _, err := r.Render([]*Batch{bt}, mgl64.Ident4(), atl); err != nil {
			t.Fatal(err)
		}
		used = append(used, dev.lastSubmit()[0].Buffer)
		bt.Version++
	}
	if used[0] == used[1] {
		t.Error("a changed batch must not be written into the buffer last submitted")
	}
	if used[2] != used[0] {
		t.Error("the two buffers should alternate")
	}
	if dev.createdBuffers != 2 || r.BufferCount() != 2 {
		t.Errorf("created %d buffers, live %d", dev.createdBuffers, r.BufferCount())
	}
}

func TestRendererGrowsByDoubling(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	atl := NewAtlases(AtlasConfig{PageSize: 64})
	bt := makeBatch(1, 10)

	_, _ = r.Render([]*Batch{bt}, mgl64.Ident4(), atl)
	buf := dev.lastSubmit()[0].Buffer
	if dev.buffers[buf] != 64 {
		t.Errorf("initial capacity = %d, want 64", dev.buffers[buf])
	}

	bt.Instances = make([]Instance, 300)
	bt.Version++
	if _, err := r.Render([]*Batch{bt}, mgl64.Ident4(), atl); err != nil {
		t.Fatal(err)
	}
	buf = dev.lastSubmit()[0].Buffer
	if dev.buffers[buf] != 512 {
		t.Errorf("grown capacity = %d, want 512", dev.buffers[buf])
	}
}

func TestRendererReleasesVanishedBatches(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	atl := NewAtlases(AtlasConfig{PageSize: 64})
	a, b := makeBatch(1, 1), makeBatch(2, 1)

	_, _ = r.Render([]*Batch{a, b}, mgl64.Ident4(), atl)
	if r.BufferCount() != 2 {
		t.Fatalf("buffers = %d", r.BufferCount())
	}
	_, _ = r.Render([]*Batch{a}, mgl64.Ident4(), atl)
	if r.BufferCount() != 1 || len(dev.released) != 1 {
		t.Errorf("buffers = %d, released = %d", r.BufferCount(), len(dev.released))
	}

	r.Close()
	if r.BufferCount() != 0 || len(dev.buffers) != 0 {
		t.Error("Close should release every buffer")
	}
}

func TestRendererDrawCallConstants(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	atl := NewAtlases(AtlasConfig{PageSize: 64})
	bt := makeBatch(1, 1)
	bt.Model = mgl64.Translate3D(5, 0, 0)
	bt.Key.Clip = NewClipRect(1, 2, 3, 4)
	vp := mgl64.Scale3D(2, 2, 1)

	_, _ = r.Render([]*Batch{bt}, vp, atl)
	call := dev.lastSubmit()[0]
	if !call.Constants.ClipEnabled || call.Constants.Clip != [4]float32{1, 2, 4, 6} {
		t.Errorf("clip = %v enabled=%v", call.Constants.Clip, call.Constants.ClipEnabled)
	}
	want := toMat32(vp.Mul4(bt.Model))
	if call.Constants.ViewModel != want {
		t.Errorf("view model = %v, want %v", call.Constants.ViewModel, want)
	}
	if call.Texture != 0 {
		t.Error("shape batches have no texture")
	}
}

func TestRendererSkipsEmptyBatches(t *testing.T) {
	dev := newFakeDevice()
	r := NewRenderer(dev)
	_, _ = r.Render([]*Batch{makeBatch(1, 0)}, mgl64.Ident4(), NewAtlases(AtlasConfig{PageSize: 64}))
	if len(dev.lastSubmit()) != 0 || dev.createdBuffers != 0 {
		t.Error("empty batch should produce no draw call")
	}
}

func TestRendererBufferError(t *testing.T) {
	dev := newFakeDevice()
	dev.failBuffers = true
	r := NewRenderer(dev)
	_, err := r.Render([]*Batch{makeBatch(7, 1)}, mgl64.Ident4(), NewAtlases(AtlasConfig{PageSize: 64}))
	if !errors.Is(err, ErrDeviceExhausted) {
		t.Fatalf("err = %v, want ErrDeviceExhausted", err)
	}
	if len(dev.submits) != 0 {
		t.Error("nothing should be submitted after a failed upload")
	}
}
