package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"certflow/internal/app"
)

var predictFlags struct {
	properties []string
	limit      int
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score properties and store the predictions",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringSliceVar(&predictFlags.properties, "property", nil, "Property ID (repeatable; empty scores the organization's properties)")
	f.IntVar(&predictFlags.limit, "limit", 0, "Maximum properties to score (0 uses the configured cap)")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(predictFlags.properties))
	for _, raw := range predictFlags.properties {
		id, err := parseID("property", raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		if len(ids) == 0 {
			limit := predictFlags.limit
			if limit <= 0 {
				limit = c.Config.Risk.BulkCap
			}
			all, err := c.Repos.Properties.ListIDs(ctx, org, limit)
			if err != nil {
				return err
			}
			ids = all
		}
		result, err := c.Risk.PredictBulk(ctx, org, ids, predictFlags.limit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}
