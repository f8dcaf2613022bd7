package main

import (
	"context"

	"github.com/spf13/cobra"

	"certflow/internal/app"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Cluster recent corrections and rejections into suggestions",
	RunE:  runAnalyze,
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		report, err := c.Patterns.Run(ctx, org)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	})
}
