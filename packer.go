package tessera

// shelfPacker places rectangles in horizontal shelves. Each shelf is as
// tall as the tallest item placed on it; items fill a shelf left to right.
// Padding separates neighbours so bilinear sampling never bleeds between
// entries, but is not required at the page edges.
type shelfPacker struct {
	width   int
	height  int
	padding int
	shelves []shelf
	used    int
}

type shelf struct {
	y      int // top edge
	height int // tallest item so far
	x      int // next free column
}

func newShelfPacker(width, height, padding int) *shelfPacker {
	return &shelfPacker{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// allocate finds space for a w x h rectangle:
//  1. the first shelf tall enough with room left on the row
//  2. the last shelf, grown taller if the page has room below it
//  3. a new shelf under the last one
//
// Returns ok=false when the page is full for this size.
func (p *shelfPacker) allocate(w, h int) (x, y int, ok bool) {
	if w <= 0 || h <= 0 || w > p.width || h > p.height {
		return 0, 0, false
	}

	for i := range p.shelves {
		s := &p.shelves[i]
		if h <= s.height && s.x+w <= p.width {
			return p.place(s, w, h)
		}
	}

	if n := len(p.shelves); n > 0 {
		last := &p.shelves[n-1]
		if last.x+w <= p.width && last.y+h <= p.height {
			last.height = h
			return p.place(last, w, h)
		}
	}

	newY := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		newY = last.y + last.height + p.padding
	}
	if newY+h > p.height {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: h})
	return p.place(&p.shelves[len(p.shelves)-1], w, h)
}

func (p *shelfPacker) place(s *shelf, w, h int) (x, y int, ok bool) {
	x, y = s.x, s.y
	s.x += w + p.padding
	p.used += w * h
	return x, y, true
}

// reset clears all shelves. Used when a page is discarded.
func (p *shelfPacker) reset() {
	p.shelves = p.shelves[:0]
	p.used = 0
}

// utilization returns the packed fraction of the page area.
func (p *shelfPacker) utilization() float64 {
	if p.width <= 0 || p.height <= 0 {
		return 0
	}
	return float64(p.used) / float64(p.width*p.height)
}
