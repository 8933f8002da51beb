package tessera

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/tanema/gween/ease"
)

// FrameStats summarizes the most recent frame.
type FrameStats struct {
	Frame   uint64
	Changes int
	Batch   BatchStats
	Render  RenderStats
	SDF     AtlasStats
	Color   AtlasStats
}

// Scene owns the graph, animator, atlases, batcher, renderer and camera
// and drives them once per frame. All methods take the scene lock, so one
// goroutine can run frames while others queue edits through Mutate.
type Scene struct {
	mu sync.Mutex

	cfg      Config
	graph    *Graph
	anim     *Animator
	atlases  *Atlases
	batcher  *Batcher
	renderer *Renderer
	camera   *Camera

	frame uint64
	debug bool
	stats FrameStats
	timer debugStats
}

// NewScene creates a scene submitting to dev. raster may be nil when no
// text is drawn.
func NewScene(dev Device, raster GlyphRasterizer, cfg Config) (*Scene, error) {
	if dev == nil {
		return nil, errors.New("tessera: nil device")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := NewGraph()
	g.SetDebug(cfg.Debug)
	atlases := NewAtlases(cfg.Atlas)
	return &Scene{
		cfg:      cfg,
		graph:    g,
		anim:     NewAnimator(g),
		atlases:  atlases,
		batcher:  NewBatcher(atlases, raster, cfg.Renderer.ParallelBatches),
		renderer: NewRenderer(dev),
		camera:   PixelCamera(640, 480, mgl64.DegToRad(cfg.Renderer.FovY)),
		debug:    cfg.Debug,
	}, nil
}

// Graph returns the scene graph. Callers on other goroutines than the one
// running frames must use Mutate instead.
func (s *Scene) Graph() *Graph {
	return s.graph
}

// Animator returns the animator. Same threading rule as Graph.
func (s *Scene) Animator() *Animator {
	return s.anim
}

// Camera returns the active camera.
func (s *Scene) Camera() *Camera {
	return s.camera
}

// SetCamera replaces the active camera.
func (s *Scene) SetCamera(c *Camera) {
	s.mu.Lock()
	s.camera = c
	s.mu.Unlock()
}

// Atlases returns the glyph atlases.
func (s *Scene) Atlases() *Atlases {
	return s.atlases
}

// Batcher returns the batcher.
func (s *Scene) Batcher() *Batcher {
	return s.batcher
}

// Config returns the configuration the scene was built with.
func (s *Scene) Config() Config {
	return s.cfg
}

// DefaultEasing returns the configured animation easing.
func (s *Scene) DefaultEasing() ease.TweenFunc {
	fn, _ := EasingByName(s.cfg.Animation.Easing)
	return fn
}

// SetDebugMode enables or disables debug mode. When enabled, tree depth
// and child count warnings are logged and per-frame timing stats are
// written at debug level through Logger.
func (s *Scene) SetDebugMode(enabled bool) {
	s.mu.Lock()
	s.debug = enabled
	s.graph.SetDebug(enabled)
	s.mu.Unlock()
}

// Mutate runs fn with exclusive access to the graph and animator.
func (s *Scene) Mutate(fn func(g *Graph, a *Animator)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.graph, s.anim)
}

// Frame returns the number of updates run so far.
func (s *Scene) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Stats returns the statistics of the most recent frame.
func (s *Scene) Stats() FrameStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Update advances animations by dt seconds, resolves world transforms,
// updates batches from the change feed and uploads atlas changes.
func (s *Scene) Update(dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(dt)
}

// Draw submits the current batches to the device.
func (s *Scene) Draw() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draw()
}

// TickAndRender runs Update and Draw under one lock.
func (s *Scene) TickAndRender(dt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.update(dt); err != nil {
		return err
	}
	return s.draw()
}

func (s *Scene) update(dt float64) error {
	s.frame++
	s.atlases.SetFrame(s.frame)
	s.stats = FrameStats{Frame: s.frame}

	t0 := time.Now()
	s.anim.Tick(dt)
	s.camera.update(float32(dt))
	t1 := time.Now()
	cs := s.graph.ResolveWorldTransforms()
	s.stats.Changes = cs.Len()
	t2 := time.Now()
	bs, err := s.batcher.Update(cs, s.graph)
	s.stats.Batch = bs
	if err != nil {
		return errors.Wrapf(err, "tessera: frame %d", s.frame)
	}
	t3 := time.Now()
	if n := s.cfg.Atlas.EvictAfterFrames; n > 0 && s.frame > n {
		s.atlases.EvictUnused(s.frame - n)
	}
	if err := s.atlases.Flush(s.renderer.Device()); err != nil {
		return err
	}
	t4 := time.Now()

	s.timer = debugStats{
		tickTime:    t1.Sub(t0),
		resolveTime: t2.Sub(t1),
		batchTime:   t3.Sub(t2),
		flushTime:   t4.Sub(t3),
	}
	s.stats.SDF = s.atlases.SDF.Stats()
	s.stats.Color = s.atlases.Color.Stats()
	return nil
}

func (s *Scene) draw() error {
	t0 := time.Now()
	rs, err := s.renderer.Render(s.batcher.Batches(), s.camera.ViewProjection(), s.atlases)
	s.stats.Render = rs
	s.timer.submitTime = time.Since(t0)
	s.debugLog(s.timer, s.stats)
	return err
}

// ViewProjection returns the active camera's matrix.
func (s *Scene) ViewProjection() mgl64.Mat4 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.camera.ViewProjection()
}

// Close releases device buffers and atlas textures.
func (s *Scene) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batcher.Reset()
	s.renderer.Close()
	dev := s.renderer.Device()
	s.atlases.SDF.Reset(dev)
	s.atlases.Color.Reset(dev)
}
