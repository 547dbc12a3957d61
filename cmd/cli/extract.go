package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Recognize page images with Gemini and save the raw page texts",
	Long: `Sends every page image in --images to the recognition model, one call per
page paced by --interval, and writes the model output as
transaction_page_N.txt into --out. Failed pages are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("images", "", "Directory of page images (png, jpg, webp)")
	extractCmd.Flags().String("out", "", "Directory for the page texts")
	extractCmd.Flags().String("model", "", "Gemini model name")
	extractCmd.Flags().Duration("interval", 0, "Minimum gap between recognition calls")
	_ = extractCmd.MarkFlagRequired("images")
	_ = extractCmd.MarkFlagRequired("out")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	imagesDir, _ := cmd.Flags().GetString("images")
	outDir, _ := cmd.Flags().GetString("out")

	if cfg.GeminiAPIKey == "" {
		return errors.New("a Gemini API key is required (GEMINI_API_KEY)")
	}

	images, err := pipeline.LoadImages(imagesDir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no page images found in %s", imagesDir)
	}

	extractor, err := pipeline.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		return err
	}

	log.Info().Int("images", len(images)).Str("model", cfg.Model).Dur("interval", cfg.ExtractInterval).Msg("Starting extraction")

	pages, failures, err := pipeline.ExtractPages(ctx, extractor, images, pipeline.NewExtractLimiter(cfg.ExtractInterval))
	// Keep whatever was recognized before a cancellation.
	if werr := writePages(outDir, pages); werr != nil {
		return werr
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Extracted %d of %d page(s) into %s\n", len(pages), len(images), outDir)
	for _, f := range failures {
		fmt.Fprintf(out, "  failed: %s\n", f.Error())
	}
	if len(pages) == 0 {
		return errors.New("no page could be extracted")
	}
	return nil
}

// writePages saves each page as transaction_page_N.txt, N being its index.
func writePages(dir string, pages []pipeline.Page) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("writePages: %w", err)
	}
	for _, p := range pages {
		path := filepath.Join(dir, pipeline.PageFileName(p.Index))
		if err := os.WriteFile(path, []byte(p.Text), 0o644); err != nil {
			return fmt.Errorf("writePages: %w", err)
		}
	}
	return nil
}
