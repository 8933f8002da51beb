// Package headless implements tessera.Device in memory. Textures and
// instance buffers are plain byte slices and Submit rasterizes draw calls
// on the CPU into an RGBA framebuffer, using the same distance and
// coverage functions the GPU pipelines mirror. It backs tests, the
// command-line tools and golden-image dumps.
package headless

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"sync"

	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
)

type texture struct {
	width, height int
	format        tessera.TextureFormat
	pixels        []byte
}

type buffer struct {
	capacity  int
	instances []tessera.Instance
}

// Stats counts device traffic since creation.
type Stats struct {
	Submits        int
	DrawCalls      int
	Instances      int
	TextureUploads int
	BufferUploads  int
	UploadedBytes  int
}

// Device is an in-memory tessera.Device. It is safe for concurrent use.
type Device struct {
	mu sync.Mutex

	next     uint32
	textures map[tessera.TextureHandle]*texture
	buffers  map[tessera.BufferHandle]*buffer

	fb       *image.RGBA
	clear    color.RGBA
	aaFactor float64

	// MaxBuffers caps live instance buffers. Zero means unlimited.
	MaxBuffers int
	// rasterize disables CPU drawing when false; Submit then only records.
	rasterize bool

	stats Stats
	last  []tessera.DrawCall
}

// New returns a device with a width x height framebuffer.
func New(width, height int) *Device {
	return &Device{
		textures:  make(map[tessera.TextureHandle]*texture),
		buffers:   make(map[tessera.BufferHandle]*buffer),
		fb:        image.NewRGBA(image.Rect(0, 0, width, height)),
		aaFactor:  tessera.DefaultAAFactor,
		rasterize: true,
	}
}

// SetRasterize switches CPU drawing on or off. When off, Submit only
// validates and records the calls.
func (d *Device) SetRasterize(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rasterize = on
}

// Rasterizing reports whether Submit draws into the framebuffer.
func (d *Device) Rasterizing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rasterize
}

// SetAAFactor sets the distance-field anti-aliasing factor.
func (d *Device) SetAAFactor(f float64) {
	d.mu.Lock()
	d.aaFactor = f
	d.mu.Unlock()
}

// SetClearColor sets the color the framebuffer is cleared to at the start
// of every Submit.
func (d *Device) SetClearColor(c color.RGBA) {
	d.mu.Lock()
	d.clear = c
	d.mu.Unlock()
}

// Size returns the framebuffer size.
func (d *Device) Size() (width, height int) {
	b := d.fb.Bounds()
	return b.Dx(), b.Dy()
}

// CreateTexture implements tessera.Device.
func (d *Device) CreateTexture(width, height int, format tessera.TextureFormat) (tessera.TextureHandle, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("headless: invalid texture size %dx%d", width, height)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	h := tessera.TextureHandle(d.next)
	d.textures[h] = &texture{
		width:  width,
		height: height,
		format: format,
		pixels: make([]byte, width*height*bytesPerTexel(format)),
	}
	return h, nil
}

// UploadTexture implements tessera.Device.
func (d *Device) UploadTexture(tex tessera.TextureHandle, x, y, width, height int, pixels []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return errors.Errorf("headless: upload to unknown texture %d", tex)
	}
	if x < 0 || y < 0 || x+width > t.width || y+height > t.height {
		return errors.Errorf("headless: region %dx%d+%d+%d outside texture %d (%dx%d)",
			width, height, x, y, tex, t.width, t.height)
	}
	bpp := bytesPerTexel(t.format)
	if len(pixels) < width*height*bpp {
		return errors.Errorf("headless: short upload to texture %d: %d bytes", tex, len(pixels))
	}
	for row := 0; row < height; row++ {
		dst := ((y+row)*t.width + x) * bpp
		copy(t.pixels[dst:dst+width*bpp], pixels[row*width*bpp:(row+1)*width*bpp])
	}
	d.stats.TextureUploads++
	d.stats.UploadedBytes += width * height * bpp
	return nil
}

// ReleaseTexture implements tessera.Device.
func (d *Device) ReleaseTexture(tex tessera.TextureHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.textures[tex]; !ok {
		tessera.Logger().Warn("headless: release of unknown texture", "texture", tex)
		return
	}
	delete(d.textures, tex)
}

// CreateBuffer implements tessera.Device.
func (d *Device) CreateBuffer(capacity int) (tessera.BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.MaxBuffers > 0 && len(d.buffers) >= d.MaxBuffers {
		return 0, errors.Wrapf(tessera.ErrDeviceExhausted, "headless: %d buffers live", len(d.buffers))
	}
	d.next++
	h := tessera.BufferHandle(d.next)
	d.buffers[h] = &buffer{capacity: capacity, instances: make([]tessera.Instance, 0, capacity)}
	return h, nil
}

// UploadBuffer implements tessera.Device.
func (d *Device) UploadBuffer(buf tessera.BufferHandle, instances []tessera.Instance) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.buffers[buf]
	if !ok {
		return errors.Errorf("headless: upload to unknown buffer %d", buf)
	}
	if len(instances) > b.capacity {
		return errors.Errorf("headless: %d instances overflow buffer %d of %d", len(instances), buf, b.capacity)
	}
	b.instances = append(b.instances[:0], instances...)
	d.stats.BufferUploads++
	return nil
}

// ReleaseBuffer implements tessera.Device.
func (d *Device) ReleaseBuffer(buf tessera.BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf]; !ok {
		tessera.Logger().Warn("headless: release of unknown buffer", "buffer", buf)
		return
	}
	delete(d.buffers, buf)
}

// Submit implements tessera.Device. The framebuffer is cleared and every
// call is drawn in order.
func (d *Device) Submit(calls []tessera.DrawCall) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range calls {
		c := &calls[i]
		b, ok := d.buffers[c.Buffer]
		if !ok {
			return errors.Errorf("headless: draw call %d uses unknown buffer %d", i, c.Buffer)
		}
		if c.Count > len(b.instances) {
			return errors.Errorf("headless: draw call %d reads %d of %d instances", i, c.Count, len(b.instances))
		}
		if c.Pipeline != tessera.PipelineShape {
			if _, ok := d.textures[c.Texture]; !ok {
				return errors.Errorf("headless: draw call %d uses unknown texture %d", i, c.Texture)
			}
		}
	}

	d.stats.Submits++
	d.stats.DrawCalls += len(calls)
	d.last = append(d.last[:0], calls...)
	if !d.rasterize {
		for i := range calls {
			d.stats.Instances += calls[i].Count
		}
		return nil
	}

	fillRGBA(d.fb, d.clear)
	for i := range calls {
		c := &calls[i]
		d.stats.Instances += c.Count
		d.drawCall(c, d.buffers[c.Buffer].instances[:c.Count], d.textures[c.Texture])
	}
	return nil
}

// Stats returns the traffic counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// LastSubmit returns a copy of the calls passed to the most recent Submit.
func (d *Device) LastSubmit() []tessera.DrawCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]tessera.DrawCall(nil), d.last...)
}

// Live returns the number of live textures and buffers.
func (d *Device) Live() (textures, buffers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures), len(d.buffers)
}

// TexturePixels returns a copy of a texture's contents.
func (d *Device) TexturePixels(tex tessera.TextureHandle) (width, height int, pixels []byte, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return 0, 0, nil, false
	}
	return t.width, t.height, append([]byte(nil), t.pixels...), true
}

// Image returns a copy of the framebuffer.
func (d *Device) Image() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := image.NewRGBA(d.fb.Bounds())
	copy(out.Pix, d.fb.Pix)
	return out
}

// WritePNG encodes the framebuffer as PNG.
func (d *Device) WritePNG(w io.Writer) error {
	return errors.Wrap(png.Encode(w, d.Image()), "headless: encode png")
}

// SavePNG writes the framebuffer to a PNG file.
func (d *Device) SavePNG(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "headless: create png")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return d.WritePNG(f)
}

// TextureImage converts a texture into an image for inspection: R8 pages
// become gray images, RGBA8 pages premultiplied RGBA.
func (d *Device) TextureImage(tex tessera.TextureHandle) (image.Image, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[tex]
	if !ok {
		return nil, false
	}
	px := append([]byte(nil), t.pixels...)
	r := image.Rect(0, 0, t.width, t.height)
	if t.format == tessera.TextureR8 {
		return &image.Gray{Pix: px, Stride: t.width, Rect: r}, true
	}
	return &image.RGBA{Pix: px, Stride: t.width * 4, Rect: r}, true
}

func bytesPerTexel(f tessera.TextureFormat) int {
	if f == tessera.TextureRGBA8 {
		return 4
	}
	return 1
}

func fillRGBA(img *image.RGBA, c color.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
}
