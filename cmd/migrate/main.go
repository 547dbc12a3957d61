package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/migrations"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func main() {
	flags := pflag.NewFlagSet("migrate", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "Config file (YAML)")
	flags.String("project", "", "GCP project ID")
	flags.String("dataset", "", "BigQuery dataset ID")
	appliedBy := flags.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flags.String("migrations", "", "Read migrations from this directory instead of the embedded set")
	dryRun := flags.Bool("dry-run", false, "List pending migrations without applying them")
	_ = flags.Parse(os.Args[1:])

	loader := config.NewLoader()
	_ = loader.BindFlag(config.KeyGCPProject, flags.Lookup("project"))
	_ = loader.BindFlag(config.KeyBQDataset, flags.Lookup("dataset"))
	cfg, err := loader.Load(*cfgFile, ".env")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.NewWithSettings(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.GCPProject == "" {
		log.Fatal().Msg("GCP project is required (--project or LEDGER_GCP_PROJECT)")
	}

	var fsys fs.FS
	if *migrationsDir != "" {
		fsys = os.DirFS(*migrationsDir)
	} else {
		fsys, err = fs.Sub(migrations.BigQuery, "bigquery")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open embedded migrations")
		}
	}

	all, err := readMigrations(fsys, cfg.GCPProject, cfg.BQDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(all)).Msg("Found migration files")

	ctx := context.Background()
	client, err := bigquery.NewClient(ctx, cfg.GCPProject)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	m := &migrator{
		client:    client,
		projectID: cfg.GCPProject,
		datasetID: cfg.BQDataset,
		appliedBy: *appliedBy,
		log:       log,
	}
	log.Info().Str("project", m.projectID).Str("dataset", m.datasetID).Msg("Connected to BigQuery")

	if err := m.ensureDataset(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure dataset")
	}
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}

	pending, mismatched := pendingMigrations(all, applied)
	for _, mm := range mismatched {
		log.Warn().Int("version", mm.Version).Str("name", mm.Name).Msg("Applied migration file has changed since it was applied")
	}

	if *dryRun {
		for _, mg := range pending {
			fmt.Printf("  [PENDING] %04d_%s\n", mg.Version, mg.Name)
		}
		return
	}

	for _, mg := range pending {
		log.Info().Msgf("  [RUN]  %04d_%s", mg.Version, mg.Name)
		if err := m.runQuery(ctx, mg.SQL, nil); err != nil {
			log.Fatal().Err(err).Msgf("Failed to execute migration %04d_%s", mg.Version, mg.Name)
		}
		if err := m.recordMigration(ctx, mg); err != nil {
			log.Fatal().Err(err).Msgf("Failed to record migration %04d_%s", mg.Version, mg.Name)
		}
		log.Info().Msgf("  [OK]   %04d_%s", mg.Version, mg.Name)
	}

	if len(pending) == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", len(pending)).Msg("Migrations applied")
	}
}

// readMigrations loads NNNN_name.sql files from fsys in version order,
// substituting {{PROJECT_ID}} and {{DATASET_ID}}. The checksum is taken
// before substitution so it identifies the migration, not its target.
func readMigrations(fsys fs.FS, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		out = append(out, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func parseMigrationFilename(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// pendingMigrations returns migrations not yet applied, plus applied ones
// whose checksum no longer matches the file.
func pendingMigrations(all []Migration, applied []AppliedMigration) (pending, mismatched []Migration) {
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}
	for _, mg := range all {
		am, ok := byVersion[mg.Version]
		if !ok {
			pending = append(pending, mg)
			continue
		}
		if am.Checksum != "" && am.Checksum != mg.Checksum {
			mismatched = append(mismatched, mg)
		}
	}
	return pending, mismatched
}

func (m *migrator) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", m.projectID, m.datasetID, name)
}

func (m *migrator) ensureDataset(ctx context.Context) error {
	ds := m.client.DatasetInProject(m.projectID, m.datasetID)
	if _, err := ds.Metadata(ctx); err == nil {
		return nil
	}
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: "EU"}); err != nil && !strings.Contains(err.Error(), "Already Exists") {
		return fmt.Errorf("creating dataset %s: %w", m.datasetID, err)
	}
	m.log.Info().Str("dataset", m.datasetID).Msg("Created dataset")
	return nil
}

func (m *migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.runQuery(ctx, `
		CREATE TABLE IF NOT EXISTS `+m.table("schema_migrations")+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)`, nil)
}

func (m *migrator) getAppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	it, err := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table("schema_migrations") + `
		ORDER BY version ASC`).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *migrator) recordMigration(ctx context.Context, mg Migration) error {
	return m.runQuery(ctx, `
		INSERT INTO `+m.table("schema_migrations")+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)`,
		[]bigquery.QueryParameter{
			{Name: "version", Value: mg.Version},
			{Name: "name", Value: mg.Name},
			{Name: "checksum", Value: mg.Checksum},
			{Name: "applied_by", Value: m.appliedBy},
		})
}

func (m *migrator) runQuery(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
