package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/arbor/pkg/debug"
	"github.com/vanderheijden86/arbor/pkg/model"
)

// Schema is the node table layout read and written by this package. Rows
// with a NULL parent_id are roots; siblings are ordered by position.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id        TEXT PRIMARY KEY,
	parent_id TEXT REFERENCES nodes(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL DEFAULT 0,
	title     TEXT NOT NULL,
	subtitle  TEXT NOT NULL DEFAULT '',
	expanded  INTEGER NOT NULL DEFAULT 0,
	payload   TEXT
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id, position);
`

const nodeColumns = `
	n.id, n.title, n.subtitle, n.expanded, n.payload,
	(SELECT COUNT(*) FROM nodes c WHERE c.parent_id = n.id)`

// SQLiteReader serves a node table. Roots are read eagerly; every node with
// rows below it gets a lazy loader that queries its children.
type SQLiteReader struct {
	db   *sql.DB
	path string

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // orders wg.Add against Close
	closed bool
	wg     sync.WaitGroup
}

// NewSQLiteReader opens a SQLite database for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Set pragmas for read performance
	pragmas := []string{
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite %s: %v", pragma, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SQLiteReader{
		db:     db,
		path:   source.Path,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Close cancels pending loads and closes the database connection
func (r *SQLiteReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Roots reads the top-level nodes.
func (r *SQLiteReader) Roots(ctx context.Context) ([]*model.Node, error) {
	return r.query(ctx, `SELECT`+nodeColumns+`
		FROM nodes n
		WHERE n.parent_id IS NULL
		ORDER BY n.position, n.id`)
}

// Children reads the direct children of the node with the given id.
func (r *SQLiteReader) Children(ctx context.Context, parentID string) ([]*model.Node, error) {
	return r.query(ctx, `SELECT`+nodeColumns+`
		FROM nodes n
		WHERE n.parent_id = ?
		ORDER BY n.position, n.id`, parentID)
}

// CountNodes returns the number of rows in the node table
func (r *SQLiteReader) CountNodes(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SQLiteReader) query(ctx context.Context, q string, args ...any) ([]*model.Node, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*model.Node{}
	for rows.Next() {
		var (
			n        model.Node
			expanded int
			payload  sql.NullString
			kids     int
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Subtitle, &expanded, &payload, &kids); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		n.Expanded = expanded != 0
		if payload.Valid && payload.String != "" {
			var v any
			if err := json.Unmarshal([]byte(payload.String), &v); err != nil {
				v = payload.String
			}
			n.Payload = v
		}
		if kids > 0 {
			n.Load = r.loader(n.ID)
		}
		nodes = append(nodes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading nodes: %w", err)
	}
	return nodes, nil
}

// loader returns the deferred handle for a parent row. The query runs on its
// own goroutine; failures resolve to a single placeholder child.
func (r *SQLiteReader) loader(id string) model.LoadFunc {
	return func(req model.LoadRequest) {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			req.Done([]*model.Node{Placeholder(context.Canceled)})
			return
		}
		r.wg.Add(1)
		r.mu.Unlock()
		go func() {
			defer r.wg.Done()
			kids, err := r.Children(r.ctx, id)
			if err != nil {
				debug.Log("sqlite: children of %s: %v", id, err)
				kids = []*model.Node{Placeholder(err)}
			}
			req.Done(kids)
		}()
	}
}

// ImportSQLite writes roots into the node table at path, creating the
// database and schema if needed. Existing rows are replaced. Lazy nodes are
// written without children; preload them first to include them.
func ImportSQLite(ctx context.Context, path string, roots []*model.Node) (int, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return 0, fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return 0, fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes"); err != nil {
		return 0, fmt.Errorf("clearing nodes: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes
		(id, parent_id, position, title, subtitle, expanded, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	w := importer{ctx: ctx, stmt: stmt, seen: make(map[string]bool)}
	if err := w.nodes(roots, nil, ""); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return w.count, nil
}

type importer struct {
	ctx   context.Context
	stmt  *sql.Stmt
	seen  map[string]bool
	count int
}

func (w *importer) nodes(nodes []*model.Node, parentID any, prefix string) error {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		id := n.ID
		if id == "" || w.seen[id] {
			id = prefix + strconv.Itoa(i)
			for w.seen[id] {
				id += "'"
			}
		}
		w.seen[id] = true

		var payload any
		if n.Payload != nil {
			data, err := json.Marshal(n.Payload)
			if err != nil {
				return fmt.Errorf("encoding payload of %s: %w", id, err)
			}
			payload = string(data)
		}
		expanded := 0
		if n.Expanded {
			expanded = 1
		}
		if _, err := w.stmt.ExecContext(w.ctx, id, parentID, i, n.Title, n.Subtitle, expanded, payload); err != nil {
			return fmt.Errorf("inserting %s: %w", id, err)
		}
		w.count++

		if n.HasChildren() {
			if err := w.nodes(n.Children, id, id+"."); err != nil {
				return err
			}
		}
	}
	return nil
}
