// Package config loads settings from defaults, an optional YAML file,
// a .env file and LEDGER_* environment variables, in increasing priority.
// Command-line flags bound with BindFlags override all of them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "LEDGER"

// Keys, also usable as YAML paths.
const (
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyGCPProject      = "gcp.project"
	KeyBQDataset       = "bigquery.dataset"
	KeyGCSBucket       = "gcs.bucket"
	KeyGeminiAPIKey    = "gemini.api_key"
	KeyModel           = "gemini.model"
	KeyExtractInterval = "gemini.extract_interval"
	KeyPageConcurrency = "pipeline.page_concurrency"
	KeyNotionToken     = "notion.token"
	KeyNotionDBID      = "notion.database_id"
	KeyPort            = "api.port"
	KeyQueueBuffer     = "jobs.buffer"
	KeyQueueWorkers    = "jobs.workers"
)

type Config struct {
	LogLevel  string
	LogFormat string

	GCPProject string
	BQDataset  string
	GCSBucket  string

	GeminiAPIKey    string
	Model           string
	ExtractInterval time.Duration
	PageConcurrency int

	NotionToken string
	NotionDBID  string

	Port         int
	QueueBuffer  int
	QueueWorkers int
}

// BigQueryEnabled reports whether both project and dataset are set.
func (c *Config) BigQueryEnabled() bool {
	return c.GCPProject != "" && c.BQDataset != ""
}

// NotionEnabled reports whether a token and database ID are set.
func (c *Config) NotionEnabled() bool {
	return c.NotionToken != "" && c.NotionDBID != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyBQDataset, "statement_ledger")
	v.SetDefault(KeyModel, pipeline.DefaultModelName)
	v.SetDefault(KeyExtractInterval, pipeline.DefaultExtractInterval)
	v.SetDefault(KeyPageConcurrency, pipeline.DefaultPageConcurrency)
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyQueueBuffer, 100)
	v.SetDefault(KeyQueueWorkers, 2)
}

// Loader builds a Config. Flags may be bound before calling Load.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Well-known variable names used outside this project.
	_ = v.BindEnv(KeyGeminiAPIKey, EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv(KeyGCPProject, EnvPrefix+"_GCP_PROJECT", "GOOGLE_CLOUD_PROJECT")
	_ = v.BindEnv(KeyBQDataset, EnvPrefix+"_BQ_DATASET", EnvPrefix+"_BIGQUERY_DATASET")
	_ = v.BindEnv(KeyNotionToken, EnvPrefix+"_NOTION_TOKEN", "NOTION_TOKEN")
	_ = v.BindEnv(KeyNotionDBID, EnvPrefix+"_NOTION_DB_ID", "NOTION_DB_ID")
	_ = v.BindEnv(KeyModel, EnvPrefix+"_MODEL")
	_ = v.BindEnv(KeyExtractInterval, EnvPrefix+"_EXTRACT_INTERVAL")
	_ = v.BindEnv(KeyPageConcurrency, EnvPrefix+"_PAGE_CONCURRENCY")
	_ = v.BindEnv(KeyPort, EnvPrefix+"_PORT", "PORT")
	_ = v.BindEnv(KeyGCSBucket, EnvPrefix+"_GCS_BUCKET")

	return &Loader{v: v}
}

// BindFlag makes a command-line flag override key when it is set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("BindFlag: no flag for %s", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads dotenvPath (if it exists) and cfgFile (if non-empty), then
// resolves all keys.
func (l *Loader) Load(cfgFile, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("Load: read %s: %w", dotenvPath, err)
		}
	}

	if cfgFile != "" {
		l.v.SetConfigFile(cfgFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("Load: read config %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{
		LogLevel:        l.v.GetString(KeyLogLevel),
		LogFormat:       l.v.GetString(KeyLogFormat),
		GCPProject:      l.v.GetString(KeyGCPProject),
		BQDataset:       l.v.GetString(KeyBQDataset),
		GCSBucket:       l.v.GetString(KeyGCSBucket),
		GeminiAPIKey:    l.v.GetString(KeyGeminiAPIKey),
		Model:           l.v.GetString(KeyModel),
		ExtractInterval: l.v.GetDuration(KeyExtractInterval),
		PageConcurrency: l.v.GetInt(KeyPageConcurrency),
		NotionToken:     l.v.GetString(KeyNotionToken),
		NotionDBID:      l.v.GetString(KeyNotionDBID),
		Port:            l.v.GetInt(KeyPort),
		QueueBuffer:     l.v.GetInt(KeyQueueBuffer),
		QueueWorkers:    l.v.GetInt(KeyQueueWorkers),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PageConcurrency < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1, got %d", KeyPageConcurrency, c.PageConcurrency))
	}
	if c.ExtractInterval < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyExtractInterval))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyPort, c.Port))
	}
	if c.QueueWorkers < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyQueueWorkers))
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be console or json, got %q", KeyLogFormat, c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
