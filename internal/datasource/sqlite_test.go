package datasource

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/arbor/pkg/model"
	"github.com/vanderheijden86/arbor/pkg/testutil"
	"github.com/vanderheijden86/arbor/pkg/tree"
)

func importSample(t *testing.T) string {
	t.Helper()
	a := testutil.Branch("a", true,
		testutil.Leaf("ab"),
		testutil.Branch("ac", false, testutil.Leaf("acd")),
	)
	a.Payload = map[string]any{"owner": "kim"}
	roots := []*model.Node{a, testutil.Leaf("b")}

	path := filepath.Join(t.TempDir(), "tree.db")
	n, err := ImportSQLite(context.Background(), path, roots)
	if err != nil {
		t.Fatalf("ImportSQLite failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 rows imported, got %d", n)
	}
	return path
}

func titles(rows []tree.Row) string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Node.Title
	}
	return strings.Join(out, ",")
}

func TestSQLiteRootsAreLazy(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()

	if loaded.Source.Type != SourceTypeSQLite {
		t.Fatalf("expected sqlite source, got %s", loaded.Source.Type)
	}
	testutil.AssertTitles(t, loaded.Roots, "a", "b")
	a, b := loaded.Roots[0], loaded.Roots[1]
	if !a.IsLazy() || !a.Expanded {
		t.Errorf("expected a to be an expanded lazy node, got %+v", a)
	}
	if b.CanHaveChildren() {
		t.Error("b has no rows below it and should be a leaf")
	}
	payload, ok := a.Payload.(map[string]any)
	if !ok || payload["owner"] != "kim" {
		t.Errorf("payload not restored: %#v", a.Payload)
	}
}

func TestSQLitePreload(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()

	one, err := Preload(context.Background(), loaded.Roots, 1, nil)
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if got := titles(tree.Flatten(one, nil, false)); got != "a,ab,ac,b" {
		t.Errorf("expected a,ab,ac,b, got %s", got)
	}
	if !one[0].Children[1].IsLazy() {
		t.Error("ac lies below the preload depth and should stay lazy")
	}
	if one[1] != loaded.Roots[1] {
		t.Error("leaf b should be shared")
	}

	all, err := Preload(context.Background(), loaded.Roots, 3, nil)
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	if got := titles(tree.Flatten(all, nil, false)); got != "a,ab,ac,acd,b" {
		t.Errorf("expected a,ab,ac,acd,b, got %s", got)
	}
}

func TestSQLiteSessionLoadsOnExpand(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()

	changed := make(chan struct{}, 4)
	s := tree.NewSession(loaded.Roots, tree.Options{
		SearchFocusOffset: tree.NoFocus,
		OnChange:          func([]*model.Node) { changed <- struct{}{} },
	})
	<-changed

	if s.RowCount() != 4 {
		t.Fatalf("expected a's children to load, got %d rows", s.RowCount())
	}
	if err := s.ToggleExpanded(model.Path{"0", "1"}); err != nil {
		t.Fatal(err)
	}
	for s.RowCount() != 5 {
		<-changed
	}
	row, _ := s.RowAt(3)
	if row.Node.Title != "acd" {
		t.Errorf("expected acd at row 3, got %s", row.Node.Title)
	}
}

func TestSQLiteLoadAfterClose(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	roots := loaded.Roots
	if err := loaded.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out, err := Preload(context.Background(), roots, 1, nil)
	if err != nil {
		t.Fatalf("Preload failed: %v", err)
	}
	kids := out[0].Children
	if len(kids) != 1 || !IsPlaceholder(kids[0]) {
		t.Errorf("expected a single placeholder child, got %v", testutil.Titles(kids))
	}
}

func TestSQLiteLoadsRacingClose(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	load := loaded.Roots[0].Load

	const loads = 32
	results := make(chan []*model.Node, loads)
	start := make(chan struct{})
	for i := 0; i < loads; i++ {
		go func() {
			<-start
			load(model.LoadRequest{Done: func(kids []*model.Node) { results <- kids }})
		}()
	}
	close(start)
	if err := loaded.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for i := 0; i < loads; i++ {
		kids := <-results
		if len(kids) == 1 && IsPlaceholder(kids[0]) {
			continue
		}
		if got := strings.Join(testutil.Titles(kids), ","); got != "ab,ac" {
			t.Errorf("expected children or a placeholder, got %s", got)
		}
	}

	// Handles invoked after Close never reach the database.
	var kids []*model.Node
	load(model.LoadRequest{Done: func(k []*model.Node) { kids = k }})
	if len(kids) != 1 || !IsPlaceholder(kids[0]) {
		t.Errorf("expected a placeholder after Close, got %v", testutil.Titles(kids))
	}
}

func TestSaveSQLiteIsReadOnly(t *testing.T) {
	path := importSample(t)
	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()
	if err := loaded.Save(loaded.Roots); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
}

func TestImportGeneratesMissingIDs(t *testing.T) {
	roots := []*model.Node{
		{Title: "x", Children: []*model.Node{{Title: "y"}, {Title: "z"}}},
		{ID: "dup", Title: "d1"},
		{ID: "dup", Title: "d2"},
	}
	path := filepath.Join(t.TempDir(), "gen.db")
	n, err := ImportSQLite(context.Background(), path, roots)
	if err != nil {
		t.Fatalf("ImportSQLite failed: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 rows, got %d", n)
	}

	loaded, err := Open(context.Background(), path, OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer loaded.Close()
	all, err := Preload(context.Background(), loaded.Roots, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(tree.Flatten(all, nil, false)); got != "x,y,z,d1,d2" {
		t.Errorf("expected x,y,z,d1,d2, got %s", got)
	}
}
