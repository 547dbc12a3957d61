package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var trailingNumber = regexp.MustCompile(`(\d+)\D*$`)

// PageFileName is the name used for a page's raw model output.
func PageFileName(index int) string {
	return fmt.Sprintf("transaction_page_%d.txt", index)
}

// SortPageNames orders names by their last number ("page_2" before "page_10"),
// falling back to lexical order.
func SortPageNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ni, iok := pageNumber(names[i])
		nj, jok := pageNumber(names[j])
		if iok && jok && ni != nj {
			return ni < nj
		}
		if iok != jok {
			return iok
		}
		return names[i] < names[j]
	})
}

func pageNumber(name string) (int, bool) {
	m := trailingNumber.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// PagesFromTexts assigns 1-based indexes to texts in the given name order.
func PagesFromTexts(names []string, texts map[string]string) []Page {
	pages := make([]Page, 0, len(names))
	for i, name := range names {
		pages = append(pages, Page{Index: i + 1, Name: name, Text: texts[name]})
	}
	return pages
}

// DirSource loads *.txt page files from a local directory.
type DirSource struct{}

// LoadPages reads every .txt file in dir, ordered by page number.
func (DirSource) LoadPages(ctx context.Context, dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadPages: reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	SortPageNames(names)

	texts := make(map[string]string, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("LoadPages: reading %s: %w", name, err)
		}
		texts[name] = string(data)
	}

	return PagesFromTexts(names, texts), nil
}

// LoadImages reads page images (png, jpg, jpeg, webp) from dir in page order.
func LoadImages(dir string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadImages: reading %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
			names = append(names, e.Name())
		}
	}
	SortPageNames(names)

	images := make([]PageImage, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("LoadImages: reading %s: %w", name, err)
		}
		images = append(images, PageImage{Name: name, Data: data, MIMEType: MIMETypeFor(name)})
	}
	return images, nil
}
