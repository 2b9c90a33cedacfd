package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkframe/internal/config"
	"inkframe/internal/content"
	"inkframe/internal/freshness"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <image>",
		Short: "Replace the stored source image devices will receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			gen := content.FileGenerator{Path: args[0], MaxPixels: cfg.Device.MaxSourcePixels}
			info, err := content.Refresh(cmd.Context(), gen, store, publishTarget(cfg), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %s (%d bytes, Last-Modified %s)\n",
				info.Path, info.Size, freshness.LastModified(info.ModTime))
			return nil
		},
	}
}

// publishTarget is the oriented canvas generators render for.
func publishTarget(cfg *config.Config) content.Target {
	width, height := cfg.CanvasSize()
	return content.Target{Width: width, Height: height}
}
