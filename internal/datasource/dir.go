package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// DirOptions controls how a directory is turned into a tree.
type DirOptions struct {
	// ShowHidden includes entries whose name starts with a dot.
	ShowHidden bool
}

// FileInfo is the payload attached to directory tree nodes.
type FileInfo struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Mode     string    `json:"mode"`
	Modified time.Time `json:"modified"`
	IsDir    bool      `json:"is_dir"`
}

// ReadDirTree lists root and returns its entries as nodes. Subdirectories
// are lazy: their entries are read on a goroutine when first expanded.
// Node IDs are slash-separated paths relative to root.
func ReadDirTree(ctx context.Context, root string, opts DirOptions) ([]*model.Node, error) {
	return readDir(ctx, root, "", opts)
}

func readDir(ctx context.Context, root, rel string, opts DirOptions) ([]*model.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	// Directories first, then files, each alphabetically.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	nodes := make([]*model.Node, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		id := name
		if rel != "" {
			id = rel + "/" + name
		}
		n := &model.Node{ID: id, Title: name}

		info, err := e.Info()
		if err == nil {
			n.Payload = FileInfo{
				Path:     filepath.Join(root, filepath.FromSlash(id)),
				Size:     info.Size(),
				Mode:     info.Mode().String(),
				Modified: info.ModTime(),
				IsDir:    e.IsDir(),
			}
		}
		if e.IsDir() {
			n.Title = name + "/"
			n.Load = dirLoader(ctx, root, id, opts)
		} else if err == nil {
			n.Subtitle = formatSize(info.Size())
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func dirLoader(ctx context.Context, root, rel string, opts DirOptions) model.LoadFunc {
	return func(req model.LoadRequest) {
		go func() {
			kids, err := readDir(ctx, root, rel, opts)
			if err != nil {
				debug.Log("dir: %s: %v", rel, err)
				kids = []*model.Node{Placeholder(err)}
			}
			req.Done(kids)
		}()
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
