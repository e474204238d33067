package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyrange/aot/internal/trace"
)

func (a *app) traceCmd() *cobra.Command {
	var (
		sources []string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "trace <file>",
		Short: "Print a trace recorded with run --trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, closer, err := trace.Open(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			start, _ := r.TimeRange()
			rows := [][]string{{"+TIME", "SOURCE", "KIND", "RECORD"}}
			err = r.Search(trace.SearchOptions{Sources: sources, Limit: limit}, func(rec trace.Record) error {
				rows = append(rows, []string{
					rec.Time.Sub(start).String(),
					rec.Source,
					rec.Kind.String(),
					trace.Describe(rec.Kind, rec.Data),
				})
				return nil
			})
			if err != nil {
				return err
			}
			writeTable(a.stdout, rows)
			fmt.Fprintf(a.stdout, "%d records\n", len(rows)-1)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sources, "source", nil, "only show records of this function")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most this many records")
	return cmd
}
