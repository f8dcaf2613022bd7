package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"certflow/internal/app"
	"certflow/internal/domain"
)

var trainFlags struct {
	epochs       int
	learningRate float64
	batchSize    int
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a risk model on labeled feedback",
	RunE:  runTrain,
}

var promoteFlags struct {
	model string
}

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Make a passed model the active model",
	RunE:  runPromote,
}

func init() {
	f := trainCmd.Flags()
	f.IntVar(&trainFlags.epochs, "epochs", 0, "Training epochs (0 uses the default)")
	f.Float64Var(&trainFlags.learningRate, "learning-rate", 0, "Learning rate (0 uses the default)")
	f.IntVar(&trainFlags.batchSize, "batch-size", 0, "Mini-batch size (0 uses the default)")

	promoteCmd.Flags().StringVar(&promoteFlags.model, "model", "", "Model ID (required)")
	_ = promoteCmd.MarkFlagRequired("model")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	hp := domain.Hyperparameters{
		Epochs:       trainFlags.epochs,
		LearningRate: trainFlags.learningRate,
		BatchSize:    trainFlags.batchSize,
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		result, err := c.Risk.Train(ctx, org, hp)
		if err != nil {
			return err
		}
		if !result.Passed {
			fmt.Fprintf(cmd.ErrOrStderr(), "model did not pass: %s\n", result.Reason)
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func runPromote(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	modelID, err := parseID("model", promoteFlags.model)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		m, err := c.Risk.Promote(ctx, org, modelID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active model: %s (version %d)\n", m.ID, m.Version)
		return nil
	})
}
