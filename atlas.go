package tessera

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// AtlasKind selects the pixel format of an atlas.
type AtlasKind uint8

const (
	// AtlasSDF pages hold one encoded distance byte per texel.
	AtlasSDF AtlasKind = iota
	// AtlasColor pages hold premultiplied RGBA.
	AtlasColor
)

func (k AtlasKind) String() string {
	if k == AtlasSDF {
		return "sdf"
	}
	return "color"
}

func (k AtlasKind) bytesPerPixel() int {
	if k == AtlasSDF {
		return 1
	}
	return 4
}

func (k AtlasKind) textureFormat() TextureFormat {
	if k == AtlasSDF {
		return TextureR8
	}
	return TextureRGBA8
}

// ErrAtlasFull is returned when every page is occupied by referenced
// content and the page limit is reached.
var ErrAtlasFull = errors.New("tessera: atlas full")

// ContentKey identifies atlas content. Glyphs use Glyph; other content
// (icons, images) uses Name.
type ContentKey struct {
	Glyph GlyphKey
	Name  string
}

func (k ContentKey) String() string {
	if k.Name != "" {
		return k.Name
	}
	return k.Glyph.String()
}

// GlyphContent returns the content key of a glyph.
func GlyphContent(g GlyphKey) ContentKey {
	return ContentKey{Glyph: g}
}

// AtlasRef is a counted reference to an atlas entry. It is only valid
// while the entry's generation matches; the atlas never evicts referenced
// entries, so a mismatch means a reference count went wrong.
type AtlasRef struct {
	Page int
	Slot int
	Gen  uint32
}

// AtlasEntry describes placed content.
type AtlasEntry struct {
	Key           ContentKey
	Page          int
	X, Y          int
	Width, Height int

	// UV is [u0, v0, u1, v1] in normalized page coordinates.
	UV [4]float32

	BearingX, BearingY float64
	Advance            float64
}

// AtlasStats is a snapshot of atlas occupancy and cache behaviour.
type AtlasStats struct {
	Pages       int
	Entries     int
	Referenced  int
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Utilization float64
}

// Atlas is a set of fixed-size texture pages with CPU-side staging pixels.
// Content is placed once and shared through reference counts; unreferenced
// entries stay cached until their space is needed or EvictUnused runs.
//
// Atlas is not safe for concurrent use.
type Atlas struct {
	kind       AtlasKind
	pageWidth  int
	pageHeight int
	padding    int
	maxPages   int

	pages []*atlasPage
	index map[ContentKey]slotAddr

	frame     uint64
	hits      uint64
	misses    uint64
	evictions uint64
}

type slotAddr struct {
	page, slot int
}

// atlasSlot is a packed rectangle. The rectangle outlives its content:
// evicted slots keep their space and take new content with a bumped
// generation.
type atlasSlot struct {
	x, y, w, h int

	live     bool
	key      ContentKey
	cw, ch   int
	gen      uint32
	refs     int
	lastUsed uint64

	bearingX, bearingY, advance float64
}

type atlasPage struct {
	packer  *shelfPacker
	pixels  []byte
	slots   []atlasSlot
	texture TextureHandle
	dirty   image.Rectangle
}

// NewAtlas creates an empty atlas. Pages are allocated on demand.
func NewAtlas(kind AtlasKind, cfg AtlasConfig) *Atlas {
	return &Atlas{
		kind:       kind,
		pageWidth:  cfg.PageSize,
		pageHeight: cfg.PageSize,
		padding:    cfg.Padding,
		maxPages:   cfg.MaxPages,
		index:      make(map[ContentKey]slotAddr),
	}
}

// Kind returns the atlas kind.
func (a *Atlas) Kind() AtlasKind {
	return a.kind
}

// PageSize returns the page dimensions in texels.
func (a *Atlas) PageSize() (width, height int) {
	return a.pageWidth, a.pageHeight
}

// SetFrame records the current frame number for LRU bookkeeping.
func (a *Atlas) SetFrame(frame uint64) {
	a.frame = frame
}

// Acquire returns a counted reference to the content for key, producing
// and placing it on a miss. Alpha bitmaps are converted to distance fields
// for SDF atlases and to white premultiplied RGBA for color atlases.
//
// Placement tries free space on existing pages, then evicts the least
// recently used unreferenced entry that fits, then opens a new page.
// Content larger than a page returns *OversizedContentError.
func (a *Atlas) Acquire(key ContentKey, produce func() (GlyphBitmap, error)) (AtlasRef, error) {
	if addr, ok := a.index[key]; ok {
		s := &a.pages[addr.page].slots[addr.slot]
		s.refs++
		s.lastUsed = a.frame
		a.hits++
		return AtlasRef{Page: addr.page, Slot: addr.slot, Gen: s.gen}, nil
	}
	a.misses++

	bmp, err := produce()
	if err != nil {
		return AtlasRef{}, errors.Wrapf(err, "tessera: produce %v", key)
	}
	bmp, err = a.convert(bmp)
	if err != nil {
		return AtlasRef{}, errors.Wrapf(err, "tessera: convert %v", key)
	}
	if bmp.Width > a.pageWidth || bmp.Height > a.pageHeight {
		return AtlasRef{}, &OversizedContentError{
			Key:        key,
			Width:      bmp.Width,
			Height:     bmp.Height,
			PageWidth:  a.pageWidth,
			PageHeight: a.pageHeight,
		}
	}

	addr, err := a.place(bmp.Width, bmp.Height)
	if err != nil {
		return AtlasRef{}, errors.Wrapf(err, "tessera: place %v (%dx%d)", key, bmp.Width, bmp.Height)
	}
	p := a.pages[addr.page]
	s := &p.slots[addr.slot]
	s.live = true
	s.key = key
	s.cw, s.ch = bmp.Width, bmp.Height
	s.gen++
	s.refs = 1
	s.lastUsed = a.frame
	s.bearingX, s.bearingY, s.advance = bmp.BearingX, bmp.BearingY, bmp.Advance
	a.index[key] = addr
	a.blit(p, s, bmp)

	return AtlasRef{Page: addr.page, Slot: addr.slot, Gen: s.gen}, nil
}

// Release drops one reference. The entry stays cached.
func (a *Atlas) Release(ref AtlasRef) {
	s := a.slot(ref)
	if s.refs <= 0 {
		panic(fmt.Sprintf("tessera: release of unreferenced atlas entry %v", s.key))
	}
	s.refs--
	s.lastUsed = a.frame
}

// Lookup returns the entry for ref. It panics with *StaleReferenceError if
// the entry has been evicted.
func (a *Atlas) Lookup(ref AtlasRef) AtlasEntry {
	s := a.slot(ref)
	pw, ph := float32(a.pageWidth), float32(a.pageHeight)
	return AtlasEntry{
		Key:    s.key,
		Page:   ref.Page,
		X:      s.x,
		Y:      s.y,
		Width:  s.cw,
		Height: s.ch,
		UV: [4]float32{
			float32(s.x) / pw,
			float32(s.y) / ph,
			float32(s.x+s.cw) / pw,
			float32(s.y+s.ch) / ph,
		},
		BearingX: s.bearingX,
		BearingY: s.bearingY,
		Advance:  s.advance,
	}
}

// Contains reports whether key is cached.
func (a *Atlas) Contains(key ContentKey) bool {
	_, ok := a.index[key]
	return ok
}

// RefCount returns the live reference count of a cached key.
func (a *Atlas) RefCount(key ContentKey) int {
	addr, ok := a.index[key]
	if !ok {
		return 0
	}
	return a.pages[addr.page].slots[addr.slot].refs
}

func (a *Atlas) slot(ref AtlasRef) *atlasSlot {
	if ref.Page < 0 || ref.Page >= len(a.pages) {
		panic(&StaleReferenceError{Ref: ref})
	}
	p := a.pages[ref.Page]
	if ref.Slot < 0 || ref.Slot >= len(p.slots) {
		panic(&StaleReferenceError{Ref: ref})
	}
	s := &p.slots[ref.Slot]
	if !s.live || s.gen != ref.Gen {
		panic(&StaleReferenceError{Ref: ref})
	}
	return s
}

// EvictUnused drops every unreferenced entry last used before frame
// olderThan and returns how many were evicted. Their rectangles are kept
// for reuse.
func (a *Atlas) EvictUnused(olderThan uint64) int {
	n := 0
	for _, p := range a.pages {
		for i := range p.slots {
			s := &p.slots[i]
			if s.live && s.refs == 0 && s.lastUsed < olderThan {
				a.evict(s)
				n++
			}
		}
	}
	return n
}

func (a *Atlas) evict(s *atlasSlot) {
	delete(a.index, s.key)
	s.live = false
	s.key = ContentKey{}
	a.evictions++
}

// place finds a slot for w x h content.
func (a *Atlas) place(w, h int) (slotAddr, error) {
	if w == 0 || h == 0 {
		return a.placeEmpty(), nil
	}

	// Free rectangles and fresh shelf space on existing pages.
	for pi, p := range a.pages {
		if si, ok := p.reuse(w, h); ok {
			return slotAddr{pi, si}, nil
		}
		if x, y, ok := p.packer.allocate(w, h); ok {
			p.slots = append(p.slots, atlasSlot{x: x, y: y, w: w, h: h})
			return slotAddr{pi, len(p.slots) - 1}, nil
		}
	}

	// Least recently used unreferenced entry that fits. Entries touched
	// this frame are kept so in-flight frames never sample replaced texels.
	best := slotAddr{-1, -1}
	var bestUsed uint64
	for pi, p := range a.pages {
		for si := range p.slots {
			s := &p.slots[si]
			if !s.live || s.refs > 0 || s.w < w || s.h < h || s.lastUsed >= a.frame && a.frame > 0 {
				continue
			}
			if best.page < 0 || s.lastUsed < bestUsed {
				best, bestUsed = slotAddr{pi, si}, s.lastUsed
			}
		}
	}
	if best.page >= 0 {
		a.evict(&a.pages[best.page].slots[best.slot])
		return best, nil
	}

	if a.maxPages > 0 && len(a.pages) >= a.maxPages {
		return slotAddr{}, ErrAtlasFull
	}
	p := a.newPage()
	a.pages = append(a.pages, p)
	x, y, ok := p.packer.allocate(w, h)
	if !ok {
		return slotAddr{}, ErrAtlasFull
	}
	p.slots = append(p.slots, atlasSlot{x: x, y: y, w: w, h: h})
	return slotAddr{len(a.pages) - 1, 0}, nil
}

// placeEmpty records inkless content (spaces) without packing. Zero-area
// slots live on the first page and are never reused for real content.
func (a *Atlas) placeEmpty() slotAddr {
	if len(a.pages) == 0 {
		a.pages = append(a.pages, a.newPage())
	}
	p := a.pages[0]
	for i := range p.slots {
		if s := &p.slots[i]; !s.live && s.w*s.h == 0 {
			return slotAddr{0, i}
		}
	}
	p.slots = append(p.slots, atlasSlot{})
	return slotAddr{0, len(p.slots) - 1}
}

func (a *Atlas) newPage() *atlasPage {
	return &atlasPage{
		packer: newShelfPacker(a.pageWidth, a.pageHeight, a.padding),
		pixels: make([]byte, a.pageWidth*a.pageHeight*a.kind.bytesPerPixel()),
	}
}

// reuse returns the smallest free rectangle that holds w x h.
func (p *atlasPage) reuse(w, h int) (int, bool) {
	best, bestArea := -1, 0
	for i := range p.slots {
		s := &p.slots[i]
		if s.live || s.w < w || s.h < h {
			continue
		}
		if area := s.w * s.h; best < 0 || area < bestArea {
			best, bestArea = i, area
		}
	}
	return best, best >= 0
}

// blit clears the slot rectangle and copies the bitmap into it.
func (a *Atlas) blit(p *atlasPage, s *atlasSlot, bmp GlyphBitmap) {
	bpp := a.kind.bytesPerPixel()
	stride := a.pageWidth * bpp
	for row := 0; row < s.h; row++ {
		off := (s.y+row)*stride + s.x*bpp
		clear(p.pixels[off : off+s.w*bpp])
		if row < bmp.Height {
			src := bmp.Pixels[row*bmp.Width*bpp : (row+1)*bmp.Width*bpp]
			copy(p.pixels[off:], src)
		}
	}
	p.dirty = p.dirty.Union(image.Rect(s.x, s.y, s.x+s.w, s.y+s.h))
}

func (a *Atlas) convert(bmp GlyphBitmap) (GlyphBitmap, error) {
	if bmp.Empty() {
		return bmp, nil
	}
	if len(bmp.Pixels) < bmp.Width*bmp.Height*bmp.Format.BytesPerPixel() {
		return bmp, errors.Errorf("bitmap has %d bytes, want %d", len(bmp.Pixels), bmp.Width*bmp.Height*bmp.Format.BytesPerPixel())
	}
	switch a.kind {
	case AtlasSDF:
		switch bmp.Format {
		case FormatDistance:
			return bmp, nil
		case FormatAlpha:
			return DistanceFieldGlyph(bmp), nil
		default:
			return bmp, errors.New("color bitmaps cannot be stored in a distance-field atlas")
		}
	default:
		if bmp.Format == FormatDistance {
			return bmp, errors.New("distance bitmaps cannot be stored in a color atlas")
		}
		return toRGBA(bmp), nil
	}
}

// Flush creates textures for new pages and uploads the dirty region of
// each page.
func (a *Atlas) Flush(dev Device) error {
	bpp := a.kind.bytesPerPixel()
	for i, p := range a.pages {
		if p.texture == 0 {
			tex, err := dev.CreateTexture(a.pageWidth, a.pageHeight, a.kind.textureFormat())
			if err != nil {
				return errors.Wrapf(err, "tessera: create %v atlas page %d", a.kind, i)
			}
			p.texture = tex
			p.dirty = image.Rect(0, 0, a.pageWidth, a.pageHeight)
		}
		if p.dirty.Empty() {
			continue
		}
		r := p.dirty
		buf := make([]byte, r.Dx()*r.Dy()*bpp)
		stride := a.pageWidth * bpp
		for row := 0; row < r.Dy(); row++ {
			off := (r.Min.Y+row)*stride + r.Min.X*bpp
			copy(buf[row*r.Dx()*bpp:(row+1)*r.Dx()*bpp], p.pixels[off:off+r.Dx()*bpp])
		}
		if err := dev.UploadTexture(p.texture, r.Min.X, r.Min.Y, r.Dx(), r.Dy(), buf); err != nil {
			return errors.Wrapf(err, "tessera: upload %v atlas page %d", a.kind, i)
		}
		p.dirty = image.Rectangle{}
	}
	return nil
}

// Texture returns the device texture of a page, or zero before the first
// Flush.
func (a *Atlas) Texture(page int) TextureHandle {
	if page < 0 || page >= len(a.pages) {
		return 0
	}
	return a.pages[page].texture
}

// PagePixels returns the staging pixels of a page. The slice aliases the
// atlas and must not be modified.
func (a *Atlas) PagePixels(page int) []byte {
	if page < 0 || page >= len(a.pages) {
		return nil
	}
	return a.pages[page].pixels
}

// Reset releases every page texture on dev and empties the atlas. Live
// references become stale.
func (a *Atlas) Reset(dev Device) {
	for _, p := range a.pages {
		if p.texture != 0 && dev != nil {
			dev.ReleaseTexture(p.texture)
		}
		p.packer.reset()
	}
	a.pages = nil
	clear(a.index)
}

// Stats returns occupancy counters.
func (a *Atlas) Stats() AtlasStats {
	st := AtlasStats{
		Pages:     len(a.pages),
		Hits:      a.hits,
		Misses:    a.misses,
		Evictions: a.evictions,
	}
	var used float64
	for _, p := range a.pages {
		used += p.packer.utilization()
		for i := range p.slots {
			if p.slots[i].live {
				st.Entries++
				if p.slots[i].refs > 0 {
					st.Referenced++
				}
			}
		}
	}
	if len(a.pages) > 0 {
		st.Utilization = used / float64(len(a.pages))
	}
	return st
}

// Atlases groups the distance-field and color atlases used by the batcher.
type Atlases struct {
	SDF   *Atlas
	Color *Atlas
}

// NewAtlases creates both atlases from one configuration.
func NewAtlases(cfg AtlasConfig) *Atlases {
	return &Atlases{
		SDF:   NewAtlas(AtlasSDF, cfg),
		Color: NewAtlas(AtlasColor, cfg),
	}
}

// SetFrame forwards the frame number to both atlases.
func (as *Atlases) SetFrame(frame uint64) {
	as.SDF.SetFrame(frame)
	as.Color.SetFrame(frame)
}

// Flush uploads both atlases.
func (as *Atlases) Flush(dev Device) error {
	if err := as.SDF.Flush(dev); err != nil {
		return err
	}
	return as.Color.Flush(dev)
}

// EvictUnused evicts from both atlases.
func (as *Atlases) EvictUnused(olderThan uint64) int {
	return as.SDF.EvictUnused(olderThan) + as.Color.EvictUnused(olderThan)
}

func (as *Atlases) forKind(k AtlasKind) *Atlas {
	if k == AtlasSDF {
		return as.SDF
	}
	return as.Color
}
