package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"oxygencrate/internal/importer"
)

// DefaultBusyTimeout is how long a writer waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// ErrNotFound is returned when no import matches.
var ErrNotFound = errors.New("store: import not found")

// Store is the SQLite import ledger.
type Store struct {
	db *sql.DB
}

var _ importer.Recorder = (*Store)(nil)

// Open opens or creates the ledger at path with the default busy timeout.
func Open(path string) (*Store, error) {
	return OpenWithTimeout(path, DefaultBusyTimeout)
}

// OpenWithTimeout opens or creates the ledger at path and runs migrations.
func OpenWithTimeout(path string, busy time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dataSourceName(path, busy))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// dataSourceName builds a file: URI for path so '?', '#' and '%' in
// directory names reach sqlite as part of the path.
func dataSourceName(path string, busy time.Duration) string {
	p := filepath.ToSlash(path)
	if filepath.VolumeName(path) != "" {
		p = "/" + p
	}
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", strconv.FormatInt(busy.Milliseconds(), 10))
	return "file:" + (&url.URL{Path: p}).EscapedPath() + "?" + q.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB { return s.db }

// Record inserts imp, assigning an ID and timestamp when absent.
func (s *Store) Record(ctx context.Context, imp *Import) error {
	if imp.ID == "" {
		imp.ID = uuid.NewString()
	}
	if imp.CreatedAt.IsZero() {
		imp.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (id, request_token, content_ref, display_name, fallback_name, path, size, digest, outcome, error, created_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ID, imp.RequestToken, imp.ContentRef, imp.DisplayName, imp.FallbackName,
		imp.Path, imp.Size, imp.Digest, imp.Outcome, imp.Error, imp.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert import: %w", err)
	}
	return nil
}

// RecordImport implements importer.Recorder.
func (s *Store) RecordImport(ctx context.Context, rec importer.Record) error {
	return s.Record(ctx, &Import{
		RequestToken: int(rec.Token),
		ContentRef:   rec.ContentRef,
		DisplayName:  rec.DisplayName,
		FallbackName: rec.FallbackName,
		Path:         rec.Path,
		Size:         rec.Size,
		Digest:       rec.Digest,
		Outcome:      string(rec.Outcome),
		Error:        rec.Err,
		CreatedAt:    rec.At,
	})
}

const selectImports = `
	SELECT id, request_token, content_ref, display_name, fallback_name, path, size, digest, outcome, error, created_ns
	FROM imports`

// Get returns the import with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Import, error) {
	rows, err := s.db.QueryContext(ctx, selectImports+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query import: %w", err)
	}
	imports, err := scanImports(rows)
	if err != nil {
		return nil, err
	}
	if len(imports) == 0 {
		return nil, ErrNotFound
	}
	return &imports[0], nil
}

// Recent returns up to limit imports, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, selectImports+` ORDER BY created_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent imports: %w", err)
	}
	return scanImports(rows)
}

// ByOutcome returns up to limit imports with the given outcome, newest first.
func (s *Store) ByOutcome(ctx context.Context, outcome string, limit int) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx,
		selectImports+` WHERE outcome = ? ORDER BY created_ns DESC, rowid DESC LIMIT ?`, outcome, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports by outcome: %w", err)
	}
	return scanImports(rows)
}

// Count returns the number of recorded imports.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM imports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count imports: %w", err)
	}
	return n, nil
}

// Stats summarizes the ledger.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByOutcome: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*), COALESCE(SUM(size), 0), MAX(created_ns) FROM imports GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var last int64
	for rows.Next() {
		var (
			outcome    string
			n, size    int64
			lastForOut int64
		)
		if err := rows.Scan(&outcome, &n, &size, &lastForOut); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		st.ByOutcome[outcome] = n
		st.Total += n
		if outcome == string(importer.OutcomeImported) {
			st.ImportedBytes = size
		}
		if lastForOut > last {
			last = lastForOut
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}
	if last > 0 {
		st.Last = time.Unix(0, last)
	}
	return st, nil
}

func scanImports(rows *sql.Rows) ([]Import, error) {
	defer rows.Close()

	var out []Import
	for rows.Next() {
		var (
			imp       Import
			createdNs int64
		)
		if err := rows.Scan(
			&imp.ID, &imp.RequestToken, &imp.ContentRef, &imp.DisplayName, &imp.FallbackName,
			&imp.Path, &imp.Size, &imp.Digest, &imp.Outcome, &imp.Error, &createdNs,
		); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imp.CreatedAt = time.Unix(0, createdNs)
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate imports: %w", err)
	}
	return out, nil
}
