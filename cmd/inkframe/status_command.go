package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"inkframe/internal/artifact"
	"inkframe/internal/codec"
	"inkframe/internal/freshness"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize configuration, stored image, and delivery history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := newStatusReport(out)

			report.section("Configuration")
			report.add(sevInfo, "Config", "%s", ctx.configPath)
			width, height := cfg.CanvasSize()
			report.add(sevInfo, "Device", "%dx%d %s, fit=%s, dither=%s, %d bytes packed",
				width, height, cfg.Device.Orientation, cfg.Device.Fit, cfg.Device.Dither, codec.PackedLen(width, height))
			names := make([]string, 0, len(cfg.Palette.Colors))
			for _, c := range cfg.Palette.Colors {
				names = append(names, c.Name)
			}
			report.add(sevInfo, "Palette", "%s", strings.Join(names, ", "))
			report.add(sevInfo, "Server", "%s, format=%s, auth=%s, gzip=%s",
				cfg.Server.Bind, cfg.Server.DefaultFormat, yesNo(cfg.Server.APIToken != ""), yesNo(cfg.Server.Compression))

			report.section("Source image")
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			switch info, err := store.Stat(); {
			case err == nil:
				report.add(sevOK, "Image", "%s (%d bytes, Last-Modified %s)", info.Path, info.Size, freshness.LastModified(info.ModTime))
			case errors.Is(err, artifact.ErrNotFound):
				report.add(sevWarn, "Image", "nothing published yet; devices receive 404 (run `inkframe publish <image>`)")
			default:
				report.add(sevError, "Image", "%v", err)
			}

			report.section("History")
			if cfg.History.Enabled {
				reportHistory(cmd, ctx, report)
			} else {
				report.add(sevInfo, "Deliveries", "recording disabled")
			}

			fmt.Fprint(out, report.String())
			return nil
		},
	}
}

func reportHistory(cmd *cobra.Command, ctx *commandContext, report *statusReport) {
	hist, err := ctx.openHistory(cmd.Context())
	if err != nil {
		report.add(sevError, "Deliveries", "%v", err)
		return
	}
	defer hist.Close()
	count, err := hist.Count(cmd.Context())
	if err != nil {
		report.add(sevError, "Deliveries", "%v", err)
		return
	}
	report.add(sevOK, "Deliveries", "%d recorded", count)
}
