package main

import (
	"fmt"

	"github.com/openmined/themesync/internal/client"
	"github.com/openmined/themesync/internal/client/sync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newReconcileCmd())
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile the local theme directory with the remote theme once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			c, err := client.New(cmd.Context(), cfg, newPrompter(), nil)
			if err != nil {
				return err
			}

			result, err := c.Reconcile(cmd.Context())
			if result != nil {
				printSummary(cmd, result)
			}
			return err
		},
	}
}

func printSummary(cmd *cobra.Command, result *sync.BatchResult) {
	out := cmd.OutOrStdout()
	if len(result.Results()) == 0 {
		fmt.Fprintln(out, green.Render("Local and remote theme are in sync"))
		return
	}

	for _, r := range result.Results() {
		line := fmt.Sprintf("%-13s %s", r.Op, r.Key)
		switch r.Status {
		case sync.ResultFailed:
			fmt.Fprintf(out, "%s  %s\n", red.Render(line), r.Err)
		case sync.ResultSkipped:
			fmt.Fprintln(out, gray.Render(line))
		default:
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintf(out, "\n%d ok, %d skipped, %d failed\n",
		result.Count(sync.ResultOK),
		result.Count(sync.ResultSkipped),
		result.Count(sync.ResultFailed),
	)
}
