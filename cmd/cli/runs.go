package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/notionsync"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and delete runs persisted in BigQuery",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withRepo(cmd, func(ctx context.Context, repo infraBQ.RunRepository) error {
			return listRuns(ctx, cmd.OutOrStdout(), repo, limit)
		})
	},
}

var runsDailyCmd = &cobra.Command{
	Use:   "daily <run-id>",
	Short: "Print a run's daily rollup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd, func(ctx context.Context, repo infraBQ.RunRepository) error {
			return printDaily(ctx, cmd.OutOrStdout(), repo, args[0])
		})
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run's rows, and optionally its Notion pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		withNotion, _ := cmd.Flags().GetBool("notion")

		return withRepo(cmd, func(ctx context.Context, repo infraBQ.RunRepository) error {
			if err := repo.DeleteRun(ctx, runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", runID)

			if !withNotion {
				return nil
			}
			if !cfg.NotionEnabled() {
				return errors.New("--notion requires NOTION_TOKEN and a database ID")
			}
			client, err := notionsync.NewNotionClient(cfg.NotionToken)
			if err != nil {
				return err
			}
			n, err := notionsync.ArchiveRun(ctx, client, cfg.NotionDBID, runID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %d Notion page(s)\n", n)
			return nil
		})
	},
}

func init() {
	runsCmd.PersistentFlags().String("project", "", "GCP project ID")
	runsCmd.PersistentFlags().String("dataset", "", "BigQuery dataset ID")

	runsListCmd.Flags().Int("limit", 20, "Maximum runs to list")
	runsDeleteCmd.Flags().Bool("notion", false, "Also archive the run's Notion pages")
	runsDeleteCmd.Flags().String("notion-db-id", "", "Notion database ID")

	runsCmd.AddCommand(runsListCmd, runsDailyCmd, runsDeleteCmd)
}

func withRepo(cmd *cobra.Command, fn func(context.Context, infraBQ.RunRepository) error) error {
	if !cfg.BigQueryEnabled() {
		return errors.New("a GCP project and BigQuery dataset are required")
	}
	ctx := cmd.Context()
	repo, err := infraBQ.NewBigQueryRunRepository(ctx, cfg.GCPProject, cfg.BQDataset)
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(ctx, repo)
}

func listRuns(ctx context.Context, w io.Writer, repo infraBQ.RunRepository, limit int) error {
	runs, err := repo.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tSTATUS\tPAGES\tSKIPPED\tTRANSACTIONS\tDROPPED\tSOURCE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID, r.StartedTS.UTC().Format(time.RFC3339), r.Status,
			r.PagesProcessed, r.PagesSkipped, r.TransactionCount, r.RecordsDropped, r.Source)
	}
	return tw.Flush()
}

func printDaily(ctx context.Context, w io.Writer, repo infraBQ.RunRepository, runID string) error {
	rows, err := repo.QueryDailyRollup(ctx, runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no daily rollup for run %s", runID)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Date\tWithdrawals\tDeposits\tClosing Balance\tCumulative Spend\tCumulative Deposits\tCount\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n",
			r.RollupDate, money(r.DailyWithdrawals), money(r.DailyDeposits), money(r.ClosingBalance),
			money(r.CumulativeSpend), money(r.CumulativeDeposits), r.TransactionCount)
	}
	return tw.Flush()
}

func money(r *big.Rat) string {
	if r == nil {
		return "-"
	}
	return r.FloatString(2)
}
