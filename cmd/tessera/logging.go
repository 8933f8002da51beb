package main

import (
	"log/slog"
	"os"

	"github.com/phanxgames/tessera"
	"github.com/urfave/cli"
)

func setupLogging(ctx *cli.Context) error {
	level := slog.LevelWarn
	if ctx.GlobalBool("v") {
		level = slog.LevelInfo
	}
	if ctx.GlobalBool("vv") {
		level = slog.LevelDebug
	}
	tessera.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func loadConfig(ctx *cli.Context) (tessera.Config, error) {
	path := ctx.GlobalString("config")
	if path == "" {
		return tessera.DefaultConfig(), nil
	}
	return tessera.LoadConfig(path)
}
