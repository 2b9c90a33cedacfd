package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"inkframe/internal/palette"
)

func newPaletteCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "palette",
		Short: "Show the configured palette and its nibble values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := cfg.BuildPalette()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p.Mapping())
			}
			fmt.Fprintln(out, renderPaletteTable(p, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the index table as JSON")
	return cmd
}

func renderPaletteTable(p *palette.Palette, colorize bool) string {
	title := cases.Title(language.Und)
	rows := make([][]string, 0, p.Len())
	for _, entry := range p.Mapping() {
		rows = append(rows, []string{
			strconv.Itoa(entry.Index),
			fmt.Sprintf("0x%X", entry.Index),
			title.String(entry.Name),
			entry.Hex,
			swatch(p.At(entry.Index), colorize),
		})
	}
	return renderTable([]column{
		rightCol("Index"), rightCol("Nibble"), leftCol("Name"), leftCol("Hex"), leftCol(""),
	}, rows)
}
