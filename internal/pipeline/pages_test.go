package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSortPageNames(t *testing.T) {
	names := []string{
		"transaction_page_10.txt",
		"notes.txt",
		"transaction_page_2.txt",
		"transaction_page_1.txt",
	}
	SortPageNames(names)

	want := []string{
		"transaction_page_1.txt",
		"transaction_page_2.txt",
		"transaction_page_10.txt",
		"notes.txt",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("SortPageNames() = %v, want %v", names, want)
	}
}

func TestDirSource_LoadPages(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		PageFileName(2):  `[{"page": 2}]`,
		PageFileName(1):  `[{"page": 1}]`,
		PageFileName(11): `[]`,
		"image.png":      "binary",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	pages, err := DirSource{}.LoadPages(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadPages() error = %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("len(pages) = %d, want 3", len(pages))
	}

	wantNames := []string{"transaction_page_1.txt", "transaction_page_2.txt", "transaction_page_11.txt"}
	for i, p := range pages {
		if p.Index != i+1 {
			t.Errorf("pages[%d].Index = %d", i, p.Index)
		}
		if p.Name != wantNames[i] {
			t.Errorf("pages[%d].Name = %q, want %q", i, p.Name, wantNames[i])
		}
	}
	if pages[0].Text != `[{"page": 1}]` {
		t.Errorf("pages[0].Text = %q", pages[0].Text)
	}
}

func TestDirSource_MissingDir(t *testing.T) {
	if _, err := (DirSource{}).LoadPages(context.Background(), filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("LoadPages() expected error for missing directory")
	}
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page_2.png", "page_1.jpg", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	images, err := LoadImages(dir)
	if err != nil {
		t.Fatalf("LoadImages() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("len(images) = %d, want 2", len(images))
	}
	if images[0].Name != "page_1.jpg" || images[0].MIMEType != "image/jpeg" {
		t.Errorf("images[0] = %s %s", images[0].Name, images[0].MIMEType)
	}
	if images[1].Name != "page_2.png" || images[1].MIMEType != "image/png" {
		t.Errorf("images[1] = %s %s", images[1].Name, images[1].MIMEType)
	}
}
