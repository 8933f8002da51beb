package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func printConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	data, err := cfg.MarshalTOML()
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	_, err = os.Stdout.Write(data)
	return err
}
