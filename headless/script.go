package headless

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/pkg/errors"
)

// Step is a single action in a script.
//
//	{"action": "move", "node": "panel-3", "x": 40, "y": 80, "duration": 0.5}
type Step struct {
	Action   string  `json:"action"`
	Label    string  `json:"label,omitempty"`
	Node     string  `json:"node,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Z        float64 `json:"z,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Easing   string  `json:"easing,omitempty"`
	Frames   int     `json:"frames,omitempty"`
}

type script struct {
	Steps []Step `json:"steps"`
}

// Runner sequences node animations, camera scrolls and screenshots across
// frames for automated visual testing. Actions: wait, screenshot, move and
// scroll.
type Runner struct {
	steps     []Step
	cursor    int
	waitCount int
	done      bool
	pending   []string

	// Dir receives screenshots. Defaults to the working directory.
	Dir string
	// Written lists the screenshot files saved so far.
	Written []string
}

// LoadScript parses a JSON script and returns a Runner ready to drive a
// scene.
func LoadScript(data []byte) (*Runner, error) {
	var s script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "parse script")
	}
	if len(s.Steps) == 0 {
		return nil, errors.New("parse script: no steps")
	}
	for i, st := range s.Steps {
		switch st.Action {
		case "wait", "screenshot":
		case "move":
			if st.Node == "" {
				return nil, errors.Errorf("parse script: step %d: move needs a node", i)
			}
			fallthrough
		case "scroll":
			if st.Easing == "" {
				break
			}
			if _, ok := tessera.EasingByName(st.Easing); !ok {
				return nil, errors.Errorf("parse script: step %d: unknown easing %q", i, st.Easing)
			}
		default:
			return nil, errors.Errorf("parse script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &Runner{steps: s.Steps}, nil
}

// Done reports whether every step has run and every screenshot is saved.
func (r *Runner) Done() bool {
	return r.done && len(r.pending) == 0
}

// Step advances the script by one frame. Call it before the frame is
// ticked and rendered.
func (r *Runner) Step(s *tessera.Scene) error {
	if r.done {
		return nil
	}
	if r.waitCount > 0 {
		r.waitCount--
		return nil
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return nil
	}

	st := r.steps[r.cursor]
	r.cursor++

	fn := s.DefaultEasing()
	if st.Easing != "" {
		fn, _ = tessera.EasingByName(st.Easing)
	}
	to := mgl64.Vec3{st.X, st.Y, st.Z}

	switch st.Action {
	case "screenshot":
		r.pending = append(r.pending, st.Label)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "scroll":
		s.Camera().ScrollTo(to, float32(st.Duration), fn)
	case "move":
		var err error
		s.Mutate(func(g *tessera.Graph, a *tessera.Animator) {
			id := g.Find(st.Node)
			if id.IsZero() {
				err = errors.Errorf("script step %d: no node named %q", r.cursor-1, st.Node)
				return
			}
			tessera.AnimateTo(a, tessera.TranslationAttr(id), to, st.Duration, fn, tessera.PolicyHold)
		})
		if err != nil {
			return err
		}
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 {
		r.done = true
	}
	return nil
}

// Run drives the scene at a fixed dt until the script finishes or
// maxFrames elapse. Frames that take a screenshot are rasterized even when
// the device runs in record-only mode.
func (r *Runner) Run(s *tessera.Scene, dev *Device, dt float64, maxFrames int) error {
	for i := 0; i < maxFrames && !r.Done(); i++ {
		if err := r.Step(s); err != nil {
			return err
		}
		raster := dev.Rasterizing()
		if len(r.pending) > 0 {
			dev.SetRasterize(true)
		}
		err := s.TickAndRender(dt)
		dev.SetRasterize(raster)
		if err != nil {
			return err
		}
		if err := r.flush(dev, s.Frame()); err != nil {
			return err
		}
	}
	if !r.Done() {
		return errors.Errorf("script unfinished after %d frames", maxFrames)
	}
	return nil
}

func (r *Runner) flush(dev *Device, frame uint64) error {
	for _, label := range r.pending {
		path := filepath.Join(r.Dir, fmt.Sprintf("%04d_%s.png", frame, fileLabel(label)))
		if err := dev.SavePNG(path); err != nil {
			return err
		}
		tessera.Logger().Info("headless: screenshot", "path", path)
		r.Written = append(r.Written, path)
	}
	r.pending = r.pending[:0]
	return nil
}

func fileLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '.':
			return c
		}
		return '_'
	}, label)
}
