package main

import (
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/phanxgames/tessera/glyphs"
	"github.com/phanxgames/tessera/headless"
	"github.com/urfave/cli"
)

const (
	panelW = 120
	panelH = 48
)

type benchTotals struct {
	elapsed   time.Duration
	rebuilt   int
	uploads   int
	drawCalls int
	changes   int
}

func runBench(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	width, height := ctx.Int("width"), ctx.Int("height")
	dev := headless.New(width, height)
	dev.SetRasterize(false)
	dev.SetAAFactor(cfg.Renderer.AAFactor)

	r := glyphs.NewRasterizer()
	scene, err := tessera.NewScene(dev, r, cfg)
	if err != nil {
		return err
	}
	defer scene.Close()
	scene.SetCamera(tessera.PixelCamera(float64(width), float64(height), mgl64.DegToRad(cfg.Renderer.FovY)))

	panels, err := buildPanels(scene, r, ctx.Int("panels"), width)
	if err != nil {
		return err
	}
	animated := int(math.Round(float64(len(panels)) * ctx.Float64("animate")))
	ease := scene.DefaultEasing()
	scene.Mutate(func(_ *tessera.Graph, a *tessera.Animator) {
		for _, p := range panels[:animated] {
			tessera.AnimateTo(a, tessera.TranslationZAttr(p), 200, 1.5, ease, tessera.PolicyRepeat)
		}
	})

	frames := ctx.Int("frames")
	var total benchTotals
	for i := 0; i < frames; i++ {
		if i == frames-1 && ctx.String("out") != "" {
			dev.SetRasterize(true)
		}
		start := time.Now()
		if err := scene.TickAndRender(1.0 / 60); err != nil {
			return err
		}
		st := scene.Stats()
		if i == 0 {
			fmt.Printf("first frame: %v, %d batches, %d instances\n",
				time.Since(start), st.Batch.Batches, st.Batch.Instances)
			continue
		}
		total.elapsed += time.Since(start)
		total.rebuilt += st.Batch.Rebuilt
		total.uploads += st.Render.Uploads
		total.drawCalls += st.Render.DrawCalls
		total.changes += st.Changes
	}

	if n := frames - 1; n > 0 {
		fmt.Printf("steady state over %d frames (%d of %d panels animated):\n", n, animated, len(panels))
		fmt.Printf("  frame time   %v\n", total.elapsed/time.Duration(n))
		fmt.Printf("  changes      %.1f\n", float64(total.changes)/float64(n))
		fmt.Printf("  rebuilt      %.2f\n", float64(total.rebuilt)/float64(n))
		fmt.Printf("  uploads      %.2f\n", float64(total.uploads)/float64(n))
		fmt.Printf("  draw calls   %.1f\n", float64(total.drawCalls)/float64(n))
	}
	st := scene.Stats()
	fmt.Printf("sdf atlas: %d entries on %d pages, %.1f%% used\n", st.SDF.Entries, st.SDF.Pages, st.SDF.Utilization*100)

	if out := ctx.String("out"); out != "" {
		if err := dev.SavePNG(out); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", out)
	}
	return nil
}

// buildPanels lays out n panels in rows, each holding a rounded rectangle
// and a label.
func buildPanels(scene *tessera.Scene, r *glyphs.Rasterizer, n, width int) ([]tessera.NodeID, error) {
	cols := max(width/(panelW+8), 1)
	panels := make([]tessera.NodeID, 0, n)
	var err error
	scene.Mutate(func(g *tessera.Graph, _ *tessera.Animator) {
		for i := 0; i < n && err == nil; i++ {
			p := g.NewTransform(fmt.Sprintf("panel-%d", i))
			if err = g.Attach(g.Root(), p); err != nil {
				return
			}
			x, y := float64(8+(i%cols)*(panelW+8)), float64(8+(i/cols)*(panelH+8))
			if err = g.SetTranslation(p, mgl64.Vec3{x, y, 0}); err != nil {
				return
			}
			bg := g.NewVisual("bg", tessera.ShapeVisual(
				tessera.RoundedRect(0, 0, panelW, panelH, 8, tessera.RGBA(40, 44, 52, 255)),
				tessera.StrokeRect(0, 0, panelW, panelH, 1, tessera.RGBA(97, 175, 239, 255)),
			))
			var run tessera.TextRun
			run, err = r.Run(glyphs.Regular, 16, fmt.Sprintf("panel %d", i), mgl64.Vec2{10, 30}, tessera.RGBA(220, 223, 228, 255))
			if err != nil {
				return
			}
			label := g.NewVisual("label", tessera.TextVisual(run))
			if err = g.Attach(p, bg); err != nil {
				return
			}
			if err = g.Attach(p, label); err != nil {
				return
			}
			panels = append(panels, p)
		}
	})
	return panels, err
}
