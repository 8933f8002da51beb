package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "tessera"
	app.Usage = "inspect atlases, benchmark and script the tessera frame loop"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "TOML config file; defaults apply when omitted",
		},
	}
	app.Before = setupLogging
	app.Commands = []cli.Command{
		{
			Name:  "atlas",
			Usage: "rasterize a string into a distance-field atlas and dump the pages",
			Description: `
Shape the given text with the built-in Go fonts (or --font), place every glyph
in a distance-field atlas and write each page as a grayscale PNG. Page stats
are printed when done.`,
			ArgsUsage: "text",
			Flags: []cli.Flag{
				cli.Float64Flag{
					Name:  "size, s",
					Value: 32,
					Usage: "glyph size in pixels per em",
				},
				cli.StringFlag{
					Name:  "font, f",
					Usage: "TrueType or OpenType font file",
				},
				cli.BoolFlag{
					Name:  "mono",
					Usage: "use the built-in monospace font",
				},
				cli.StringFlag{
					Name:  "out, o",
					Value: "atlas",
					Usage: "output prefix; pages are written as <prefix>-<page>.png",
				},
			},
			Action: dumpAtlas,
		},
		{
			Name:  "bench",
			Usage: "run a headless frame loop and report per-frame work",
			Description: `
Build a grid of panels with shapes and labels, animate some of them and run the
frame loop against the in-memory device. Reports average frame time, rebuilt
batches, buffer uploads and draw calls.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "panels, n",
					Value: 200,
					Usage: "number of panels",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 300,
					Usage: "number of frames",
				},
				cli.Float64Flag{
					Name:  "animate",
					Value: 0.1,
					Usage: "fraction of panels that move every frame",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 1280,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 720,
					Usage: "frame height",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "rasterize the last frame and write it to this PNG file",
				},
			},
			Action: runBench,
		},
		{
			Name:      "play",
			Usage:     "run a JSON script against the panel grid and save its screenshots",
			ArgsUsage: "<script.json>",
			Description: `
Steps are "wait" (frames), "move" (node, x, y, z, duration, easing), "scroll"
(x, y, z, duration, easing) and "screenshot" (label). Panels are named
panel-0, panel-1 and so on.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "panels, n",
					Value: 24,
					Usage: "number of panels",
				},
				cli.IntFlag{
					Name:  "max-frames",
					Value: 3600,
					Usage: "fail if the script has not finished after this many frames",
				},
				cli.IntFlag{
					Name:  "width",
					Value: 1280,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 720,
					Usage: "frame height",
				},
				cli.StringFlag{
					Name:  "dir, d",
					Value: "screenshots",
					Usage: "screenshot directory",
				},
			},
			Action: runScript,
		},
		{
			Name:   "config",
			Usage:  "print the default configuration as TOML",
			Action: printConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %+v\n", err)
		os.Exit(1)
	}
}
