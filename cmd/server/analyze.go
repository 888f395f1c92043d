package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/fitcoach/internal/config"
)

var (
	analyzeUser   string
	analyzeRecord bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a progress analysis for one user and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeUser == "" {
			return errors.New("--user is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}

		ctx := cmd.Context()
		c, err := wire(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		if !c.client.Configured() {
			return errors.New("LLM_API_KEY is not set")
		}

		report, err := c.scheduler.RunManual(ctx, analyzeUser)
		if err != nil {
			return fmt.Errorf("analyze %s: %w", analyzeUser, err)
		}
		if analyzeRecord {
			c.service.DeliverReport(ctx, analyzeUser, report)
		}

		fmt.Fprintln(cmd.OutOrStdout(), report.Message)
		spent := c.governor.Snapshot()
		fmt.Fprintf(cmd.ErrOrStderr(), "spent $%.4f of $%.2f today\n", spent.SpentUSD, spent.BudgetUSD)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeUser, "user", "u", "", "user id to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeRecord, "record", true, "append the analysis to the user's transcript")
}
