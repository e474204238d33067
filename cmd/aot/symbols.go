package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/tinyrange/aot/internal/ids"
	"github.com/tinyrange/aot/internal/metadata"
)

const maxCellWidth = 40

func (a *app) symbolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "symbols <program.yaml>",
		Short: "List the entry point symbols a program compiles to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := a.buildModule(args[0])
			if err != nil {
				return err
			}
			gas, _ := metadata.Get[metadata.GasMetadata](mod.Metadata)

			rows := [][]string{{"ID", "NAME", "SYMBOL", "SIGNATURE", "GAS"}}
			for _, fn := range mod.Registry.Functions() {
				cost := "-"
				if c, ok := gas.Cost(fn.Id); ok {
					cost = strconv.FormatUint(c, 10)
				}
				rows = append(rows, []string{
					strconv.FormatUint(fn.Id.Id, 10),
					fn.Id.DebugName,
					ids.EntrySymbol(fn.Id),
					signature(fn.Signature.ParamTypes, fn.Signature.RetTypes),
					cost,
				})
			}
			writeTable(a.stdout, rows)
			return nil
		},
	}
}

func signature(params, rets []ids.ConcreteTypeId) string {
	join := func(tys []ids.ConcreteTypeId) string {
		parts := make([]string, len(tys))
		for i, t := range tys {
			parts[i] = t.String()
		}
		return strings.Join(parts, ", ")
	}
	return "(" + join(params) + ") -> (" + join(rets) + ")"
}

// writeTable prints rows as left-aligned columns. Cells wider than
// maxCellWidth are truncated, except in the last column.
func writeTable(w io.Writer, rows [][]string) {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i < len(row)-1 {
				row[i] = ansi.Truncate(cell, maxCellWidth, "…")
			}
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], ansi.StringWidth(row[i]))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-ansi.StringWidth(cell)+2))
			}
		}
		fmt.Fprintln(w, b.String())
	}
}
