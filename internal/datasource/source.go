// Package datasource loads and stores arbor trees. A source is a JSON or YAML
// tree file, a SQLite node table, or a directory on disk. SQLite and
// directory sources hand out lazy children that are read on first expand.
package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeJSON is a JSON tree file
	SourceTypeJSON SourceType = "json"
	// SourceTypeYAML is a YAML tree file
	SourceTypeYAML SourceType = "yaml"
	// SourceTypeSQLite is a SQLite database with a nodes table
	SourceTypeSQLite SourceType = "sqlite"
	// SourceTypeDir is a directory browsed as a tree
	SourceTypeDir SourceType = "dir"
)

// ErrUnknownFormat is returned when a file's type cannot be determined.
var ErrUnknownFormat = errors.New("unknown source format")

// ErrReadOnly is returned when saving to a source that cannot be written.
var ErrReadOnly = errors.New("source is read-only")

var sqliteMagic = []byte("SQLite format 3\x00")

// DataSource describes a tree source on disk
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the absolute path to the source
	Path string `json:"path"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes (0 for directories)
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	return fmt.Sprintf("%s (%s, mod=%s, %d bytes)",
		s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.Size)
}

// Writable reports whether edits can be saved back to the source.
func (s DataSource) Writable() bool {
	return s.Type == SourceTypeJSON || s.Type == SourceTypeYAML
}

// Watchable reports whether the source is a single file worth watching.
func (s DataSource) Watchable() bool {
	return s.Type != SourceTypeDir
}

// Detect inspects path and returns the matching DataSource. The extension
// decides when it is known; otherwise the first bytes are sniffed.
func Detect(path string) (DataSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return DataSource{}, fmt.Errorf("cannot access source: %w", err)
	}

	src := DataSource{Path: abs, ModTime: info.ModTime()}
	if info.IsDir() {
		src.Type = SourceTypeDir
		return src, nil
	}
	src.Size = info.Size()

	if t, ok := typeByExtension(abs); ok {
		src.Type = t
		return src, nil
	}

	t, err := sniff(abs)
	if err != nil {
		return DataSource{}, err
	}
	src.Type = t
	return src, nil
}

// typeByExtension maps a file name to a file source type.
func typeByExtension(path string) (SourceType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return SourceTypeJSON, true
	case ".yaml", ".yml":
		return SourceTypeYAML, true
	case ".db", ".sqlite", ".sqlite3":
		return SourceTypeSQLite, true
	}
	return "", false
}

func sniff(path string) (SourceType, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	head = head[:n]

	if bytes.HasPrefix(head, sqliteMagic) {
		return SourceTypeSQLite, nil
	}
	trimmed := bytes.TrimSpace(head)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	switch trimmed[0] {
	case '[', '{':
		return SourceTypeJSON, nil
	case '-', '#':
		return SourceTypeYAML, nil
	}
	if bytes.Contains(trimmed, []byte("title:")) {
		return SourceTypeYAML, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}
