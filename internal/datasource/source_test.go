package datasource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		want SourceType
	}{
		{"json extension", write("a.json", "{}"), SourceTypeJSON},
		{"yaml extension", write("a.yaml", "nodes: []"), SourceTypeYAML},
		{"yml extension", write("a.yml", "nodes: []"), SourceTypeYAML},
		{"db extension", write("a.db", ""), SourceTypeSQLite},
		{"sniffed json", write("tree", "  [ {\"title\": \"x\"} ]"), SourceTypeJSON},
		{"sniffed yaml", write("outline", "- title: x\n"), SourceTypeYAML},
		{"sniffed sqlite", write("store", "SQLite format 3\x00rest"), SourceTypeSQLite},
		{"directory", dir, SourceTypeDir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Detect(tt.path)
			if err != nil {
				t.Fatalf("Detect failed: %v", err)
			}
			if src.Type != tt.want {
				t.Errorf("expected %s, got %s", tt.want, src.Type)
			}
			if !filepath.IsAbs(src.Path) {
				t.Errorf("expected absolute path, got %s", src.Path)
			}
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes")
	if err := os.WriteFile(path, []byte("plain words"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Detect(path); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if _, err := Detect(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSourceCapabilities(t *testing.T) {
	tests := []struct {
		typ       SourceType
		writable  bool
		watchable bool
	}{
		{SourceTypeJSON, true, true},
		{SourceTypeYAML, true, true},
		{SourceTypeSQLite, false, true},
		{SourceTypeDir, false, false},
	}
	for _, tt := range tests {
		src := DataSource{Type: tt.typ}
		if src.Writable() != tt.writable || src.Watchable() != tt.watchable {
			t.Errorf("%s: expected writable=%v watchable=%v", tt.typ, tt.writable, tt.watchable)
		}
	}
}
