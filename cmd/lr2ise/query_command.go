package main

import (
	"time"

	"github.com/spf13/cobra"

	"lr2ise/internal/bridge"
)

func newQueryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Print the search body a run would submit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			query, err := bridge.BuildQuery(cfg, time.Now())
			if err != nil {
				return err
			}
			return writeJSON(cmd, query)
		},
	}
}
