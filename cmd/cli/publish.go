package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/notionsync"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Analyze a statement and publish its daily rollup to Notion",
	Long: `Runs the same analysis as "analyze" and upserts one Notion page per day
(keyed by the ISO date). With --dry-run nothing is written.`,
	Args: cobra.NoArgs,
	RunE: runPublish,
}

func init() {
	addSourceFlags(publishCmd)
	publishCmd.Flags().String("notion-db-id", "", "Notion database ID")
	publishCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	source, err := sourceFromFlags(cmd)
	if err != nil {
		return err
	}
	if !cfg.NotionEnabled() {
		return errors.New("Notion token and database ID are required (NOTION_TOKEN, --notion-db-id)")
	}

	client, err := notionsync.NewNotionClient(cfg.NotionToken)
	if err != nil {
		return err
	}

	gcs, err := storageFor(ctx, strings.HasPrefix(source, "gs://"))
	if err != nil {
		return err
	}
	if gcs != nil {
		defer gcs.Close()
	}

	st, err := analyzeSource(ctx, source, storageOrNil(gcs), nil)
	if err != nil {
		return err
	}

	stats, err := notionsync.PublishDailyRollup(ctx, client, cfg.NotionDBID, st.RunID, st.Result.Daily, dryRun)
	if err != nil {
		return err
	}

	prefix := ""
	if dryRun {
		prefix = "[DRY RUN] "
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sRun %s: %d created, %d updated, %d failed\n",
		prefix, st.RunID, stats.Created, stats.Updated, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d day(s) failed to publish", stats.Failed)
	}
	return nil
}
