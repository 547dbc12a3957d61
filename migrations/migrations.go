// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// BigQuery holds bigquery/NNNN_name.sql files.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
