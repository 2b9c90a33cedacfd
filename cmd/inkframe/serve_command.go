package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inkframe/internal/config"
	"inkframe/internal/daemon"
	"inkframe/internal/history"
	"inkframe/internal/logging"
	"inkframe/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bindFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the current image to e-paper devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}
			conv, err := ctx.converter()
			if err != nil {
				return err
			}

			var recorder server.Recorder
			var hist *history.Store
			if cfg.History.Enabled {
				hist, err = ctx.openHistory(runCtx)
				if err != nil {
					return err
				}
				defer hist.Close()
				recorder = hist
			}

			srv, err := server.New(server.Options{
				Store:         store,
				Converter:     conv,
				History:       recorder,
				Logger:        logger,
				APIToken:      cfg.Server.APIToken,
				Compression:   cfg.Server.Compression,
				DefaultFormat: cfg.Server.DefaultFormat,
				Orientation:   cfg.Device.Orientation,
			})
			if err != nil {
				return err
			}
			handler, err := srv.Handler()
			if err != nil {
				return err
			}

			bind := cfg.Server.Bind
			if bindFlag != "" {
				bind = bindFlag
			}
			d, err := daemon.New(daemon.Options{
				Bind:        bind,
				LockPath:    cfg.LockPath(),
				Handler:     handler,
				Logger:      logger,
				Maintenance: housekeeping(cfg, hist, logger),
			})
			if err != nil {
				return err
			}
			if err := d.Start(runCtx); err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return errors.New("an inkframe server is already running for " + cfg.Paths.DataDir)
				}
				return err
			}

			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&bindFlag, "bind", "", "Override server.bind for this run")
	return cmd
}

// housekeeping prunes delivery history and old log files.
func housekeeping(cfg *config.Config, hist *history.Store, logger *slog.Logger) func(context.Context) {
	logger = logging.NewComponentLogger(logger, "housekeeping")
	return func(ctx context.Context) {
		if hist != nil && cfg.History.Retain > 0 {
			pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			removed, err := hist.Prune(pruneCtx, cfg.History.Retain)
			cancel()
			switch {
			case err != nil:
				logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check permissions on "+hist.Path()),
					logging.String(logging.FieldImpact, "history grows past history.retain"),
				)
			case removed > 0:
				logger.Info("history pruned",
					logging.Int64("removed", removed),
					logging.Int("retain", cfg.History.Retain),
					logging.String(logging.FieldEventType, "history_pruned"),
				)
			}
		}
		if cfg.Paths.LogDir != "" {
			logging.RetentionFromConfig(cfg).Prune(logger, time.Now(), logging.PruneTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "*.log",
				Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
			})
		}
	}
}
