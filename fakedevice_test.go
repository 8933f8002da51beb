package tessera

import "github.com/pkg/errors"

// fakeDevice records device traffic for assertions.
type fakeDevice struct {
	next TextureHandle

	textures map[TextureHandle][2]int
	buffers  map[BufferHandle]int

	textureUploads int
	bufferUploads  int
	createdBuffers int
	released       []BufferHandle
	submits        [][]DrawCall

	failBuffers bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		textures: make(map[TextureHandle][2]int),
		buffers:  make(map[BufferHandle]int),
	}
}

func (d *fakeDevice) CreateTexture(w, h int, _ TextureFormat) (TextureHandle, error) {
	d.next++
	d.textures[d.next] = [2]int{w, h}
	return d.next, nil
}

func (d *fakeDevice) UploadTexture(tex TextureHandle, x, y, w, h int, px []byte) error {
	if _, ok := d.textures[tex]; !ok {
		return errors.Errorf("unknown texture %d", tex)
	}
	d.textureUploads++
	return nil
}

func (d *fakeDevice) ReleaseTexture(tex TextureHandle) {
	delete(d.textures, tex)
}

func (d *fakeDevice) CreateBuffer(capacity int) (BufferHandle, error) {
	if d.failBuffers {
		return 0, ErrDeviceExhausted
	}
	d.next++
	h := BufferHandle(d.next)
	d.buffers[h] = capacity
	d.createdBuffers++
	return h, nil
}

func (d *fakeDevice) UploadBuffer(buf BufferHandle, inst []Instance) error {
	c, ok := d.buffers[buf]
	if !ok {
		return errors.Errorf("unknown buffer %d", buf)
	}
	if len(inst) > c {
		return errors.Errorf("buffer %d overflow: %d > %d", buf, len(inst), c)
	}
	d.bufferUploads++
	return nil
}

func (d *fakeDevice) ReleaseBuffer(buf BufferHandle) {
	delete(d.buffers, buf)
	d.released = append(d.released, buf)
}

func (d *fakeDevice) Submit(calls []DrawCall) error {
	d.submits = append(d.submits, append([]DrawCall(nil), calls...))
	return nil
}

func (d *fakeDevice) lastSubmit() []DrawCall {
	if len(d.submits) == 0 {
		return nil
	}
	return d.submits[len(d.submits)-1]
}

// squareRasterizer produces solid size x size coverage bitmaps and counts
// calls.
type squareRasterizer struct {
	size  int
	calls int
}

func (r *squareRasterizer) RasterizeGlyph(key GlyphKey) (GlyphBitmap, error) {
	r.calls++
	if key.Glyph == 0 {
		return GlyphBitmap{Advance: float64(r.size)}, nil
	}
	px := make([]byte, r.size*r.size)
	for i := range px {
		px[i] = 255
	}
	return GlyphBitmap{
		Format:   FormatAlpha,
		Width:    r.size,
		Height:   r.size,
		Pixels:   px,
		BearingY: float64(r.size),
		Advance:  float64(r.size),
	}, nil
}
