package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"certflow/internal/app"
	"certflow/internal/auth"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail extraction runs that stopped making progress",
	RunE:  runSweep,
}

var tokenFlags struct {
	user string
	role string
	ttl  time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Sign an access token for a caller",
	RunE:  runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.user, "user", "", "User ID (required)")
	f.StringVar(&tokenFlags.role, "role", string(auth.RoleViewer), "Role: admin, reviewer or viewer")
	f.DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		result, err := c.Sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "swept %d runs (%d automated, %d awaiting review, %d training)\n",
			result.Total(), len(result.Automated), len(result.Review), len(result.Training))
		return nil
	})
}

func runToken(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	userID, err := parseID("user", tokenFlags.user)
	if err != nil {
		return err
	}
	role := auth.Role(tokenFlags.role)
	switch role {
	case auth.RoleAdmin, auth.RoleReviewer, auth.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", tokenFlags.role)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := auth.Sign(cfg.JWT, org, userID, role, tokenFlags.ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
