package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"inkframe/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent image deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No deliveries recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(items))
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of deliveries to show (0 for all)")

	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var retain int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete deliveries beyond the retention limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("retain") {
				retain = cfg.History.Retain
			}
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Prune(cmd.Context(), retain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d deliveries (keeping newest %d)\n", removed, retain)
			return nil
		},
	}
	cmd.Flags().IntVar(&retain, "retain", 0, "Rows to keep (defaults to history.retain)")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded delivery",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()
			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d deliveries\n", removed)
			return nil
		},
	}
}

func renderHistoryTable(items []history.Delivery) string {
	rows := make([][]string, 0, len(items))
	for _, d := range items {
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			d.ServedAt.Local().Format(time.DateTime),
			d.Format,
			d.Outcome,
			strconv.Itoa(d.Status),
			strconv.FormatInt(d.Bytes, 10),
			d.Duration.String(),
			d.RemoteAddr,
		})
	}
	return renderTable([]column{
		rightCol("ID"), leftCol("Served"), leftCol("Format"), leftCol("Outcome"),
		rightCol("Status"), rightCol("Bytes"), rightCol("Took"), leftCol("Client"),
	}, rows)
}
