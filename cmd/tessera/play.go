package main

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/phanxgames/tessera/glyphs"
	"github.com/phanxgames/tessera/headless"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func runScript(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("play: expected one script file")
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return errors.Wrap(err, "play: read script")
	}
	runner, err := headless.LoadScript(data)
	if err != nil {
		return err
	}
	runner.Dir = ctx.String("dir")
	if err := os.MkdirAll(runner.Dir, 0o755); err != nil {
		return errors.Wrap(err, "play: screenshot dir")
	}

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

	if _, err := buildPanels(scene, r, ctx.Int("panels"), width); err != nil {
		return err
	}
	if err := runner.Run(scene, dev, 1.0/60, ctx.Int("max-frames")); err != nil {
		return err
	}
	for _, path := range runner.Written {
		fmt.Printf("wrote %s\n", path)
	}
	return nil
}
