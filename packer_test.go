package tessera

import (
	"math/rand"
	"testing"
)

func TestShelfPackerUniformCapacity(t *testing.T) {
	// Squares that tile the page exactly must all fit, whatever their
	// insertion order, and one more must not.
	for _, size := range []int{8, 16, 32, 64} {
		p := newShelfPacker(256, 128, 0)
		capacity := (256 / size) * (128 / size)
		for i := 0; i < capacity; i++ {
			if _, _, ok := p.allocate(size, size); !ok {
				t.Fatalf("size %d: allocation %d of %d failed", size, i+1, capacity)
			}
		}
		if _, _, ok := p.allocate(size, size); ok {
			t.Errorf("size %d: allocation beyond capacity succeeded", size)
		}
		if u := p.utilization(); u != 1 {
			t.Errorf("size %d: utilization = %v, want 1", size, u)
		}
	}
}

func TestShelfPackerNoOverlap(t *testing.T) {
	type rect struct{ x, y, w, h int }
	rng := rand.New(rand.NewSource(1))
	p := newShelfPacker(512, 512, 1)
	var placed []rect
	for i := 0; i < 400; i++ {
		w, h := 4+rng.Intn(40), 4+rng.Intn(40)
		x, y, ok := p.allocate(w, h)
		if !ok {
			continue
		}
		r := rect{x, y, w, h}
		if x < 0 || y < 0 || x+w > 512 || y+h > 512 {
			t.Fatalf("rect %+v outside page", r)
		}
		for _, o := range placed {
			if r.x < o.x+o.w && o.x < r.x+r.w && r.y < o.y+o.h && o.y < r.y+r.h {
				t.Fatalf("rect %+v overlaps %+v", r, o)
			}
		}
		placed = append(placed, r)
	}
	if len(placed) == 0 {
		t.Fatal("nothing placed")
	}
}

func TestShelfPackerGrowsLastShelf(t *testing.T) {
	p := newShelfPacker(100, 100, 0)
	if _, y, _ := p.allocate(10, 10); y != 0 {
		t.Fatalf("first y = %d", y)
	}
	// Taller item fits on the last shelf by growing it.
	x, y, ok := p.allocate(10, 20)
	if !ok || x != 10 || y != 0 {
		t.Errorf("tall item at (%d, %d) ok=%v, want (10, 0)", x, y, ok)
	}
	// Next shelf starts below the grown height.
	p.allocate(80, 5)
	_, y, _ = p.allocate(50, 5)
	if y != 20 {
		t.Errorf("new shelf y = %d, want 20", y)
	}
}

func TestShelfPackerRejectsOversized(t *testing.T) {
	p := newShelfPacker(64, 64, 0)
	if _, _, ok := p.allocate(65, 1); ok {
		t.Error("wider than page should fail")
	}
	if _, _, ok := p.allocate(0, 10); ok {
		t.Error("zero width should fail")
	}
}
