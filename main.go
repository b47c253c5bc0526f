/*
Copyright © 2026 imagineDevit
*/

package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "0.4.0"
)

func main() {
	cfg := &Config{}

	cmd := newCmd(cfg)

	cobra.OnInitialize(func() {
		level := slog.LevelInfo
		if cfg.verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: level})))
	})

	cobra.CheckErr(cmd.Execute())
}
