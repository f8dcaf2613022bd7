package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"certflow/internal/app"
	"certflow/internal/domain"
	"certflow/internal/rules"
)

var rulesFlags struct {
	file     string
	certType string
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage validation and outcome rules",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Check and save rules from a YAML file",
	RunE:  runRulesImport,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active rules for a certificate type, seeding builtins if needed",
	RunE:  runRulesList,
}

func init() {
	rulesImportCmd.Flags().StringVarP(&rulesFlags.file, "file", "f", "", "Rule file (required)")
	_ = rulesImportCmd.MarkFlagRequired("file")
	rulesListCmd.Flags().StringVar(&rulesFlags.certType, "type", "", "Certificate type (required)")
	_ = rulesListCmd.MarkFlagRequired("type")

	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesListCmd)
}

func runRulesImport(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(rulesFlags.file)
	if err != nil {
		return eris.Wrap(err, "read rule file")
	}
	parsed, err := rules.ParseRules(data, org)
	if err != nil {
		return err
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		for i := range parsed {
			if err := c.Rules.SaveRule(ctx, &parsed[i]); err != nil {
				return eris.Wrapf(err, "rule %q", parsed[i].Name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", parsed[i].Name, parsed[i].ID)
		}
		return nil
	})
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	org, err := orgID()
	if err != nil {
		return err
	}
	ct := domain.CertificateType(rulesFlags.certType)
	if !ct.Valid() {
		return fmt.Errorf("unknown certificate type %q", rulesFlags.certType)
	}
	return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
		list, err := c.Rules.Rules(ctx, org, ct)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tKIND\tNAME\tEXPRESSION")
		for _, r := range list {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Priority, r.Kind, r.Name, r.Expression)
		}
		return w.Flush()
	})
}
