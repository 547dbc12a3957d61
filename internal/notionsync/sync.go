package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/jomei/notionapi"
)

const (
	// BatchSize defines the number of rollup rows processed per logged batch
	BatchSize = 100
)

// PublishStats counts what a publish did (or would do, in dry-run mode).
type PublishStats struct {
	Created int
	Updated int
	Failed  int
}

// PublishDailyRollup upserts one Notion page per rollup day. Existing pages
// are matched by their title (the ISO date) and updated in place, so
// republishing a statement is idempotent. Individual page failures are
// logged and counted; only the initial database query is fatal.
func PublishDailyRollup(ctx context.Context, notionClient NotionService, notionDBID, runID string, daily ledger.DailyRollup, dryRun bool) (PublishStats, error) {
	log := logger.FromContext(ctx)
	var stats PublishStats

	log.Info().
		Str("run_id", runID).
		Int("days", len(daily)).
		Bool("dry_run", dryRun).
		Msg("Starting daily rollup publish to Notion")

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return stats, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		if key := extractDayKey(page); key != "" {
			existing[key] = string(page.ID)
		}
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	for i := 0; i < len(daily); i += BatchSize {
		end := i + BatchSize
		if end > len(daily) {
			end = len(daily)
		}

		log.Debug().
			Int("batch_start", i).
			Int("batch_end", end).
			Msg("Processing batch")

		for _, row := range daily[i:end] {
			key := row.Date.String()
			pageID, found := existing[key]

			if dryRun {
				if found {
					log.Info().Str("day", key).Str("page_id", pageID).Msg("[DRY RUN] Would update Notion page")
					stats.Updated++
				} else {
					log.Info().Str("day", key).Msg("[DRY RUN] Would create Notion page")
					stats.Created++
				}
				continue
			}

			props := DailyRowToNotionProperties(runID, row)

			if found {
				if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
					log.Warn().Err(err).Str("day", key).Str("page_id", pageID).Msg("Failed to update Notion page")
					stats.Failed++
					continue
				}
				stats.Updated++
				continue
			}

			page, err := notionClient.CreatePage(ctx, notionDBID, props)
			if err != nil {
				log.Warn().Err(err).Str("day", key).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			existing[key] = string(page.ID)
			stats.Created++
		}
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("failed", stats.Failed).
		Msg("Daily rollup publish completed")

	return stats, nil
}

// Publisher adapts PublishDailyRollup to pipeline.Publisher.
type Publisher struct {
	Client     NotionService
	DatabaseID string
	DryRun     bool
}

var _ pipeline.Publisher = (*Publisher)(nil)

func (p *Publisher) PublishRun(ctx context.Context, runID string, res *pipeline.Result) error {
	stats, err := PublishDailyRollup(ctx, p.Client, p.DatabaseID, runID, res.Daily, p.DryRun)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("PublishRun: %d of %d days failed", stats.Failed, len(res.Daily))
	}
	return nil
}

func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}

// ArchiveRun archives every page last written by runID. It returns the
// number of pages archived.
func ArchiveRun(ctx context.Context, notionClient NotionService, notionDBID, runID string) (int, error) {
	log := logger.FromContext(ctx)

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return 0, fmt.Errorf("ArchiveRun: %w", err)
	}

	archived := 0
	for _, page := range notionPages {
		if extractRunID(page) != runID {
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			return archived, fmt.Errorf("ArchiveRun: %w", err)
		}
		archived++
	}

	log.Info().Str("run_id", runID).Int("archived", archived).Msg("Archived Notion pages for run")
	return archived, nil
}
