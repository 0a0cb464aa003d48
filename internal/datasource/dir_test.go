package datasource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/testutil"
)

func makeDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"b.txt":         "hello",
		"A.md":          "# a",
		"sub/x.txt":     "x",
		"sub/deep/y.go": "package y",
		".hidden":       "",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestReadDirTree(t *testing.T) {
	root := makeDir(t)
	roots, err := ReadDirTree(context.Background(), root, DirOptions{})
	if err != nil {
		t.Fatalf("ReadDirTree failed: %v", err)
	}

	testutil.AssertTitles(t, roots, "sub/", "A.md", "b.txt")
	if !roots[0].IsLazy() {
		t.Error("directories should be lazy")
	}
	if roots[2].Subtitle != "5 B" {
		t.Errorf("expected size subtitle, got %q", roots[2].Subtitle)
	}
	info, ok := roots[2].Payload.(FileInfo)
	if !ok || info.Size != 5 || info.IsDir {
		t.Errorf("unexpected payload %#v", roots[2].Payload)
	}

	withHidden, err := ReadDirTree(context.Background(), root, DirOptions{ShowHidden: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(withHidden) != 4 {
		t.Errorf("expected hidden file to be listed, got %v", testutil.Titles(withHidden))
	}
}

func TestDirChildrenLoadLazily(t *testing.T) {
	root := makeDir(t)
	loaded, err := Open(context.Background(), root, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()

	out, err := Preload(context.Background(), loaded.Roots, 2, nil)
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	sub := out[0]
	testutil.AssertTitles(t, sub.Children, "deep/", "x.txt")
	if sub.Children[1].ID != "sub/x.txt" {
		t.Errorf("expected relative id, got %q", sub.Children[1].ID)
	}
	testutil.AssertTitles(t, sub.Children[0].Children, "y.go")
}

func TestDirLoadAfterClose(t *testing.T) {
	loaded, err := Open(context.Background(), makeDir(t), OpenOptions{})
	if err != nil {
		t.Fatal(err)
	}
	loaded.Close()

	out, err := Preload(context.Background(), loaded.Roots, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if kids := out[0].Children; len(kids) != 1 || !IsPlaceholder(kids[0]) {
		t.Errorf("expected placeholder after close, got %v", testutil.Titles(kids))
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d): expected %q, got %q", tt.n, tt.want, got)
		}
	}
}
