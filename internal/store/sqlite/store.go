// Package sqlite stores a container hierarchy in a single SQLite file.
//
// The builder tree produced by the mappers is flattened into two tables:
// nodes holds one row per group, dataset and link, keyed by absolute path,
// and attributes holds the typed attributes of groups and datasets. The
// layout is created by embedded migrations the first time a file is opened.
//
// Writes replace the whole tree in one transaction. Reads rebuild the tree
// with every parent's children in their original order.
//
// Example:
//
//	st, err := sqlite.Open("session.nwb.db", sqlite.Options{})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	if err := st.Write(root); err != nil {
//	    return err
//	}
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/rly/ndx-pose/internal/apperrors"
	"github.com/rly/ndx-pose/internal/builder"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DefaultBusyTimeout is used when Options.BusyTimeout is zero.
const DefaultBusyTimeout = 5 * time.Second

const (
	kindGroup   = "group"
	kindDataset = "dataset"
	kindLink    = "link"
)

// Options configures Open.
type Options struct {
	// BusyTimeout bounds how long a connection waits on a locked file.
	BusyTimeout time.Duration
	Logger      *zap.Logger
}

// Store wraps the SQLite connection of one container file.
type Store struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger
}

// Open opens or creates the container file at path and brings its layout up
// to date.
//
// The caller MUST call Close() when done so the WAL is checkpointed.
func Open(path string, opts Options) (*Store, error) {
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultBusyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}

	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(on)",
		filepath.ToSlash(abs), opts.BusyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, logger: opts.Logger}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	driver, err := migratesqlite.WithInstance(s.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	defer src.Close()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// m.Close would close s.conn as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read layout version: %w", err)
	}
	s.logger.Debug("store layout ready",
		zap.String("path", s.path),
		zap.Uint("layout_version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// Path returns the file the store was opened with.
func (s *Store) Path() string { return s.path }

// RawDB returns the underlying connection.
func (s *Store) RawDB() *sql.DB { return s.conn }

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("failed to checkpoint WAL", zap.String("path", s.path), zap.Error(err))
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	s.conn = nil
	return nil
}

// Empty reports whether no tree has been written yet.
func (s *Store) Empty() (bool, error) {
	return s.EmptyContext(context.Background())
}

// EmptyContext reports whether no tree has been written yet, with context
// support.
func (s *Store) EmptyContext(ctx context.Context) (bool, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count nodes: %w", err)
	}
	return n == 0, nil
}

// Write replaces the stored tree with root.
func (s *Store) Write(root *builder.Group) error {
	return s.WriteContext(context.Background(), root)
}

// WriteContext replaces the stored tree with root, with context support.
func (s *Store) WriteContext(ctx context.Context, root *builder.Group) (err error) {
	if root == nil {
		return apperrors.New(apperrors.ErrStructure, "/", "no tree to write")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback error: %w)", err, rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM attributes`); err != nil {
		return fmt.Errorf("failed to clear attributes: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM nodes`); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}

	w, err := newTreeWriter(ctx, tx)
	if err != nil {
		return err
	}
	defer w.close()

	if err = w.insert(row{path: "/", name: root.Name, kind: kindGroup}); err != nil {
		return err
	}
	if err = w.group("/", root); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tree: %w", err)
	}
	s.logger.Debug("tree written", zap.String("path", s.path), zap.Int("nodes", w.count))
	return nil
}

// treeWriter inserts rows through statements prepared once per write.
type treeWriter struct {
	ctx      context.Context
	nodeStmt *sql.Stmt
	attrStmt *sql.Stmt
	count    int
}

func newTreeWriter(ctx context.Context, tx *sql.Tx) (*treeWriter, error) {
	nodeStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO nodes (path, parent, name, kind, position, dtype, shape, data, target)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare node insert: %w", err)
	}
	attrStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO attributes (path, key, vtype, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = nodeStmt.Close()
		return nil, fmt.Errorf("failed to prepare attribute insert: %w", err)
	}
	return &treeWriter{ctx: ctx, nodeStmt: nodeStmt, attrStmt: attrStmt}, nil
}

func (w *treeWriter) close() {
	_ = w.nodeStmt.Close()
	_ = w.attrStmt.Close()
}

// row is one record of the nodes table.
type row struct {
	path     string
	parent   *string
	name     string
	kind     string
	position int
	dtype    *string
	shape    *string
	data     []byte
	target   *string
}

func (w *treeWriter) insert(r row) error {
	if _, err := w.nodeStmt.ExecContext(w.ctx,
		r.path, r.parent, r.name, r.kind, r.position, r.dtype, r.shape, r.data, r.target,
	); err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", r.kind, r.path, err)
	}
	w.count++
	return nil
}

func (w *treeWriter) attrs(path string, attrs map[string]any) error {
	for key, v := range attrs {
		vtype, value, err := encodeAttr(v)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStructure, path, err, "cannot store attribute %q", key)
		}
		if _, err := w.attrStmt.ExecContext(w.ctx, path, key, vtype, value); err != nil {
			return fmt.Errorf("failed to insert attribute %s@%s: %w", path, key, err)
		}
	}
	return nil
}

// group writes the attributes and children of g, which is already stored at
// path. Children are numbered groups first, then datasets, then links.
func (w *treeWriter) group(path string, g *builder.Group) error {
	if err := w.attrs(path, g.Attributes); err != nil {
		return err
	}
	parent := path
	position := 0
	for _, c := range g.Groups {
		p := builder.Join(path, c.Name)
		if err := w.insert(row{path: p, parent: &parent, name: c.Name, kind: kindGroup, position: position}); err != nil {
			return err
		}
		position++
		if err := w.group(p, c); err != nil {
			return err
		}
	}
	for _, d := range g.Datasets {
		p := builder.Join(path, d.Name)
		if err := d.Check(); err != nil {
			return err
		}
		data, err := encodeData(d)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStructure, p, err, "cannot encode data")
		}
		shape, err := encodeShape(d.Shape)
		if err != nil {
			return err
		}
		dtype := string(d.Dtype)
		if err := w.insert(row{
			path: p, parent: &parent, name: d.Name, kind: kindDataset, position: position,
			dtype: &dtype, shape: shape, data: data,
		}); err != nil {
			return err
		}
		position++
		if err := w.attrs(p, d.Attributes); err != nil {
			return err
		}
	}
	for _, l := range g.Links {
		target := l.Target
		if err := w.insert(row{
			path: builder.Join(path, l.Name), parent: &parent, name: l.Name, kind: kindLink,
			position: position, target: &target,
		}); err != nil {
			return err
		}
		position++
	}
	return nil
}

// Read rebuilds the stored tree.
func (s *Store) Read() (*builder.Group, error) {
	return s.ReadContext(context.Background())
}

// ReadContext rebuilds the stored tree, with context support. An empty store
// fails with apperrors.ErrNotFound.
func (s *Store) ReadContext(ctx context.Context) (*builder.Group, error) {
	// One transaction keeps nodes and attributes on the same snapshot.
	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
	SELECT path, parent, name, kind, dtype, shape, data, target
	FROM nodes
	ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var root *builder.Group
	groups := map[string]*builder.Group{}
	datasets := map[string]*builder.Dataset{}
	for rows.Next() {
		var (
			path, name, kind     string
			parent, dtype, shape sql.NullString
			target               sql.NullString
			data                 []byte
		)
		if err := rows.Scan(&path, &parent, &name, &kind, &dtype, &shape, &data, &target); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if !parent.Valid {
			root = builder.NewGroup(name)
			groups[path] = root
			continue
		}
		owner, ok := groups[parent.String]
		if !ok {
			return nil, apperrors.New(apperrors.ErrStructure, path, "parent %s is not a stored group", parent.String)
		}
		switch kind {
		case kindGroup:
			groups[path] = owner.AddGroup(builder.NewGroup(name))
		case kindDataset:
			d, err := readDataset(path, name, dtype, shape, data)
			if err != nil {
				return nil, err
			}
			datasets[path] = owner.AddDataset(d)
		case kindLink:
			owner.AddLink(name, target.String)
		default:
			return nil, apperrors.New(apperrors.ErrStructure, path, "unknown node kind %q", kind)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}
	if root == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, s.path, "store holds no tree")
	}

	if err := readAttrs(ctx, tx, groups, datasets); err != nil {
		return nil, err
	}
	s.logger.Debug("tree read", zap.String("path", s.path),
		zap.Int("groups", len(groups)), zap.Int("datasets", len(datasets)))
	return root, nil
}

func readDataset(path, name string, dtype, shape sql.NullString, data []byte) (*builder.Dataset, error) {
	if !dtype.Valid {
		return nil, apperrors.New(apperrors.ErrStructure, path, "dataset has no dtype")
	}
	var shapeText *string
	if shape.Valid {
		shapeText = &shape.String
	}
	dims, err := decodeShape(shapeText)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, path, err, "bad shape")
	}
	v, err := decodeData(builder.Dtype(dtype.String), data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStructure, path, err, "bad data")
	}
	d := &builder.Dataset{Name: name, Dtype: builder.Dtype(dtype.String), Shape: dims, Data: v}
	if err := d.Check(); err != nil {
		return nil, err
	}
	return d, nil
}

func readAttrs(ctx context.Context, tx *sql.Tx, groups map[string]*builder.Group, datasets map[string]*builder.Dataset) error {
	rows, err := tx.QueryContext(ctx, `SELECT path, key, vtype, value FROM attributes ORDER BY path, key`)
	if err != nil {
		return fmt.Errorf("failed to query attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var path, key, vtype, value string
		if err := rows.Scan(&path, &key, &vtype, &value); err != nil {
			return fmt.Errorf("failed to scan attribute: %w", err)
		}
		v, err := decodeAttr(vtype, value)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrStructure, path, err, "bad attribute %q", key)
		}
		switch {
		case groups[path] != nil:
			groups[path].SetAttr(key, v)
		case datasets[path] != nil:
			datasets[path].SetAttr(key, v)
		default:
			return apperrors.New(apperrors.ErrStructure, path, "attribute %q has no owner", key)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate attributes: %w", err)
	}
	return nil
}
