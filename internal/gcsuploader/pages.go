package gcsuploader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"golang.org/x/sync/errgroup"
)

const fetchConcurrency = 8

// GCSPageSource loads page texts stored as .txt objects under a gs:// prefix.
type GCSPageSource struct {
	Storage StorageService
}

var _ pipeline.PageSource = (*GCSPageSource)(nil)

// LoadPages lists prefixURI, fetches every .txt object and orders them by page number.
func (s *GCSPageSource) LoadPages(ctx context.Context, prefixURI string) ([]pipeline.Page, error) {
	uris, err := s.Storage.ListObjects(ctx, prefixURI)
	if err != nil {
		return nil, fmt.Errorf("LoadPages: %w", err)
	}

	var names []string
	byName := make(map[string]string)
	for _, uri := range uris {
		name := ExtractFilenameFromGCSURI(uri)
		if !strings.EqualFold(filepath.Ext(name), ".txt") {
			continue
		}
		names = append(names, name)
		byName[name] = uri
	}
	pipeline.SortPageNames(names)

	var mu sync.Mutex
	texts := make(map[string]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, name := range names {
		g.Go(func() error {
			data, err := s.Storage.FetchFromGCS(gctx, byName[name])
			if err != nil {
				return fmt.Errorf("LoadPages: %w", err)
			}
			mu.Lock()
			texts[name] = string(data)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return pipeline.PagesFromTexts(names, texts), nil
}

// UploadExports uploads local export files to gs://bucket/prefix/<file name>
// and returns the object URIs.
func UploadExports(ctx context.Context, storage StorageService, bucket, prefix string, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		object := strings.TrimSuffix(prefix, "/") + "/" + filepath.Base(p)
		object = strings.TrimPrefix(object, "/")

		if err := storage.UploadFile(ctx, bucket, object, p); err != nil {
			return uris, fmt.Errorf("UploadExports: %s: %w", p, err)
		}
		uris = append(uris, JoinGCSURI(bucket, object))
	}
	return uris, nil
}

// UploadPageTexts stores texts as transaction_page_N.txt objects under
// gs://bucket/prefix/ (N is 1-based) and returns the prefix URI, ready for
// GCSPageSource.
func UploadPageTexts(ctx context.Context, storage StorageService, bucket, prefix string, texts []string) (string, error) {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	for i, text := range texts {
		object := prefix + pipeline.PageFileName(i+1)
		if err := storage.UploadBytes(ctx, bucket, object, []byte(text), "text/plain; charset=utf-8"); err != nil {
			return "", fmt.Errorf("UploadPageTexts: page %d: %w", i+1, err)
		}
	}
	return JoinGCSURI(bucket, prefix), nil
}

// LocationSource loads gs:// locations through Storage and anything else
// as a local directory. Storage may be nil for local-only use.
type LocationSource struct {
	Storage StorageService
}

var _ pipeline.PageSource = (*LocationSource)(nil)

func (s *LocationSource) LoadPages(ctx context.Context, location string) ([]pipeline.Page, error) {
	if !strings.HasPrefix(location, uriScheme) {
		return pipeline.DirSource{}.LoadPages(ctx, location)
	}
	if s.Storage == nil {
		return nil, fmt.Errorf("LoadPages: %s: no storage client configured", location)
	}
	return (&GCSPageSource{Storage: s.Storage}).LoadPages(ctx, location)
}
