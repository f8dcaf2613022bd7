package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"certflow/internal/app"
	"certflow/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	org string
}

var rootCmd = &cobra.Command{
	Use:   "certctl",
	Short: "Operator commands for the certificate pipeline",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.org, "org", "", "Organization ID")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.Version = version
}

// withContainer loads config, wires the application and runs fn.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = zap.L().Sync() }()

	ctx := cmd.Context()
	c, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load config")
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func orgID() (uuid.UUID, error) {
	return parseID("org", rootFlags.org)
}

func parseID(flag, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, eris.Errorf("--%s is required", flag)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "invalid --%s", flag)
	}
	return id, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
