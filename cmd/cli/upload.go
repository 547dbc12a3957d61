package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a directory of page texts to GCS",
	Long: `Uploads the page texts in --dir to gs://<bucket>/<prefix>/ as
transaction_page_N.txt, in page order. The printed prefix can be passed
to "analyze --gcs-uri" or to the API.`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().String("dir", "", "Local directory of page texts")
	uploadCmd.Flags().String("bucket", "", "GCS bucket")
	uploadCmd.Flags().String("prefix", "", "Object prefix (default statements/<uuid>)")
	_ = uploadCmd.MarkFlagRequired("dir")
}

func runUpload(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dir, _ := cmd.Flags().GetString("dir")
	prefix, _ := cmd.Flags().GetString("prefix")

	if cfg.GCSBucket == "" {
		return errors.New("a GCS bucket is required (--bucket or LEDGER_GCS_BUCKET)")
	}
	if prefix == "" {
		prefix = "statements/" + uuid.NewString()
	}

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		return err
	}
	defer storage.Close()

	uri, n, err := uploadDir(ctx, storage, dir, cfg.GCSBucket, prefix)
	if err != nil {
		return err
	}

	log.Info().Int("pages", n).Str("uri", uri).Msg("Upload completed")
	fmt.Fprintln(cmd.OutOrStdout(), uri)
	return nil
}

func uploadDir(ctx context.Context, storage gcsuploader.StorageService, dir, bucket, prefix string) (string, int, error) {
	pages, err := pipeline.DirSource{}.LoadPages(ctx, dir)
	if err != nil {
		return "", 0, err
	}
	if len(pages) == 0 {
		return "", 0, fmt.Errorf("no page texts found in %s", dir)
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	uri, err := gcsuploader.UploadPageTexts(ctx, storage, bucket, prefix, texts)
	return uri, len(pages), err
}
