package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
)

func newPresetsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List PLL presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := l2bits.Presets()
			if asJSON {
				return writeJSON(cmd, presets)
			}
			rows := make([][]string, 0, len(presets))
			for _, p := range presets {
				rows = append(rows, []string{
					p.Name,
					fmt.Sprintf("%.0f", p.NominalCellNs),
					fmt.Sprintf("%.0f-%.0f", p.CellNsMin, p.CellNsMax),
					strconv.Itoa(p.MaxRunCells),
					p.Description,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Preset", "Cell ns", "Range", "Max run", "Description"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write presets as JSON")
	return cmd
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported track formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := l3decode.Formats()
			rows := make([][]string, 0, len(formats))
			for _, f := range formats {
				rows = append(rows, []string{
					f.Name,
					string(f.Encoding),
					strconv.Itoa(f.SectorsFor(0)),
					strconv.Itoa(f.SectorSize()),
					fmt.Sprintf("%dx%d", f.Cylinders, f.Heads),
					f.PresetFor(0),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Format", "Encoding", "Sectors", "Size", "Geometry", "Preset"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
