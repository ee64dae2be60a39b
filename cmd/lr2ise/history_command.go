package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lr2ise/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				if runs == nil {
					runs = []history.Run{}
				}
				return writeJSON(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func renderHistoryTable(runs []history.Run) string {
	headers := []string{"Run", "Started", "Outcome", "Search Status", "Records", "Mappings", "Added", "Failed", "Duration"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		outcome := string(run.Outcome)
		if run.FailureKind != "" {
			outcome += " (" + run.FailureKind + ")"
		}
		if run.DryRun {
			outcome += " [dry run]"
		}
		duration := "-"
		if d := run.Duration(); d > 0 {
			duration = d.Round(time.Second).String()
		}
		rows = append(rows, []string{
			shortRunID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			outcome,
			run.SearchStatus,
			strconv.Itoa(run.Records),
			strconv.Itoa(run.Mappings),
			strconv.Itoa(run.Added),
			strconv.Itoa(run.Failed),
			duration,
		})
	}
	return renderTable(headers, rows, aligns)
}
