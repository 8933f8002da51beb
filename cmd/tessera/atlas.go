package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/tessera"
	"github.com/phanxgames/tessera/glyphs"
	"github.com/phanxgames/tessera/headless"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func dumpAtlas(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("atlas: missing text argument", 1)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	r := glyphs.NewRasterizer()
	font := glyphs.Regular
	if ctx.Bool("mono") {
		font = glyphs.Mono
	}
	if path := ctx.String("font"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "read font")
		}
		if font, err = r.AddFont(data); err != nil {
			return err
		}
	}

	layout, err := r.Shape(font, ctx.Float64("size"), strings.Join(ctx.Args(), " "), mgl64.Vec2{})
	if err != nil {
		return err
	}
	atlas := tessera.NewAtlas(tessera.AtlasSDF, cfg.Atlas)
	for _, g := range layout.Glyphs {
		key := g.Key
		_, err := atlas.Acquire(tessera.GlyphContent(key), func() (tessera.GlyphBitmap, error) {
			return r.RasterizeGlyph(key)
		})
		if err != nil {
			return err
		}
	}

	w, h := atlas.PageSize()
	dev := headless.New(w, h)
	if err := atlas.Flush(dev); err != nil {
		return err
	}
	st := atlas.Stats()
	prefix := ctx.String("out")
	for page := 0; page < st.Pages; page++ {
		img, ok := dev.TextureImage(atlas.Texture(page))
		if !ok {
			return errors.Errorf("atlas page %d has no texture", page)
		}
		path := fmt.Sprintf("%s-%d.png", prefix, page)
		if err := writePNG(path, img); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
	}
	fmt.Printf("glyphs: %d  entries: %d  pages: %d  utilization: %.1f%%\n",
		len(layout.Glyphs), st.Entries, st.Pages, st.Utilization*100)
	return nil
}

func writePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create png")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return errors.Wrapf(png.Encode(f, img), "encode %s", path)
}
