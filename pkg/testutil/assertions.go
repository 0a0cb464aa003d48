package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/arbor/pkg/model"
)

// AssertTitles verifies the titles of a node sequence.
func AssertTitles(t *testing.T, nodes []*model.Node, expected ...string) {
	t.Helper()
	got := Titles(nodes)
	if strings.Join(got, ",") != strings.Join(expected, ",") {
		t.Errorf("expected titles %v, got %v", expected, got)
	}
}

// Titles returns the titles of nodes in order.
func Titles(nodes []*model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Title
	}
	return out
}

// AssertDeepEqualTrees compares the shape and fields of two trees. Loaders
// are compared by presence only.
func AssertDeepEqualTrees(t *testing.T, expected, actual []*model.Node) {
	t.Helper()
	if diff := diffTrees(expected, actual, ""); diff != "" {
		t.Errorf("trees differ: %s", diff)
	}
}

func diffTrees(a, b []*model.Node, at string) string {
	if len(a) != len(b) {
		return at + ": sibling count " + strconv.Itoa(len(a)) + " vs " + strconv.Itoa(len(b))
	}
	for i := range a {
		here := at + "/" + strconv.Itoa(i)
		x, y := a[i], b[i]
		if (x == nil) != (y == nil) {
			return here + ": nil mismatch"
		}
		if x == nil {
			continue
		}
		if x.ID != y.ID || x.Title != y.Title || x.Subtitle != y.Subtitle || x.Expanded != y.Expanded {
			return here + ": fields differ (" + x.Title + " vs " + y.Title + ")"
		}
		if x.IsLazy() != y.IsLazy() {
			return here + ": lazy mismatch"
		}
		if (x.Children == nil) != (y.Children == nil) {
			return here + ": children presence mismatch"
		}
		if d := diffTrees(x.Children, y.Children, here); d != "" {
			return d
		}
	}
	return ""
}

// AssertJSONEqual compares two values after JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// WriteTreeFile writes roots as JSON to name inside dir and returns the path.
func WriteTreeFile(t *testing.T, dir, name string, roots []*model.Node) string {
	t.Helper()
	data, err := json.MarshalIndent(roots, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal tree: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write tree file: %v", err)
	}
	return path
}
