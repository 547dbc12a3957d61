package pipeline

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/observability"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiExtractor is the PageExtractor backed by Gemini.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates a Gemini client. An empty apiKey lets the SDK
// read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if model == "" {
		model = DefaultModelName
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}

	return &GeminiExtractor{client: client, model: model}, nil
}

// ExtractPage sends one page image with the extraction prompt and returns the raw text.
func (g *GeminiExtractor) ExtractPage(ctx context.Context, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     image,
					},
				},
				{Text: extractionPrompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ExtractPage: generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("ExtractPage: empty response from model")
	}
	return text, nil
}

// PageImage is one rendered statement page.
type PageImage struct {
	Name     string
	Data     []byte
	MIMEType string
}

// ExtractFailure records a page the recognition service could not handle.
type ExtractFailure struct {
	Page int
	Name string
	Err  error
}

func (f ExtractFailure) Error() string {
	return fmt.Sprintf("page %d (%s): %v", f.Page, f.Name, f.Err)
}

// ExtractPages runs the extractor over images in order. Calls are paced by
// limiter (nil means unpaced). A failing page is logged and skipped; only
// context cancellation stops the loop.
func ExtractPages(ctx context.Context, ex PageExtractor, images []PageImage, limiter *rate.Limiter) ([]Page, []ExtractFailure, error) {
	log := logger.FromContext(ctx)

	pages := make([]Page, 0, len(images))
	var failures []ExtractFailure

	for i, img := range images {
		index := i + 1

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return pages, failures, fmt.Errorf("ExtractPages: waiting for rate limiter: %w", err)
			}
		}

		mimeType := img.MIMEType
		if mimeType == "" {
			mimeType = MIMETypeFor(img.Name)
		}

		text, err := ex.ExtractPage(ctx, img.Data, mimeType)
		if err != nil {
			if ctx.Err() != nil {
				return pages, failures, ctx.Err()
			}
			observability.PagesTotal.WithLabelValues(observability.OutcomeExtractFailed).Inc()
			log.Error().Err(err).Int("page", index).Str("name", img.Name).Msg("Page extraction failed")
			failures = append(failures, ExtractFailure{Page: index, Name: img.Name, Err: err})
			continue
		}

		observability.PagesTotal.WithLabelValues(observability.OutcomeExtracted).Inc()
		log.Info().Int("page", index).Str("name", img.Name).Int("chars", len(text)).Msg("Page extracted")
		pages = append(pages, Page{Index: index, Name: img.Name, Text: text})
	}

	return pages, failures, nil
}

// NewExtractLimiter returns a limiter allowing one call per interval.
// A non-positive interval disables pacing.
func NewExtractLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// MIMETypeFor guesses an image MIME type from a file name.
func MIMETypeFor(name string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return DefaultImageMIMEType
}
