package delivery

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/trialsink"

	_ "modernc.org/sqlite"
)

const createExportsTable = `CREATE TABLE IF NOT EXISTS exports (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL UNIQUE,
	content_type TEXT NOT NULL,
	data         BLOB NOT NULL,
	size         INTEGER NOT NULL,
	created_at   TEXT NOT NULL
)`

// Export is one archived delivery.
type Export struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// SQLite archives every delivery as a row of the exports table.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ trialsink.Deliverer = (*SQLite)(nil)

// OpenSQLite opens (or creates) the archive at dsn, e.g. a file path or ":memory:".
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("dsn", dsn))
	}
	// ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createExportsTable); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create exports table", goerr.V("dsn", dsn))
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Deliver inserts data as a new row. A filename that is already archived is rejected with
// ErrDuplicateExport.
func (s *SQLite) Deliver(ctx context.Context, filename, contentType string, data []byte) error {
	if err := validateFilename(filename); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports WHERE filename = ?`, filename).Scan(&exists)
	if err != nil {
		return goerr.Wrap(err, "failed to look up export", goerr.V("filename", filename))
	}
	if exists > 0 {
		return goerr.Wrap(ErrDuplicateExport, "cannot archive export", goerr.V("filename", filename))
	}

	if data == nil {
		data = []byte{}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO exports (id, filename, content_type, data, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		filename,
		contentType,
		data,
		len(data),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert export", goerr.V("filename", filename))
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit export", goerr.V("filename", filename))
	}
	return nil
}

// Get returns the archived export with the given filename.
func (s *SQLite) Get(ctx context.Context, filename string) (*Export, error) {
	var (
		exp       Export
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_type, data, created_at FROM exports WHERE filename = ?`,
		filename,
	).Scan(&exp.ID, &exp.Filename, &exp.ContentType, &exp.Data, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, goerr.Wrap(err, "export not found", goerr.V("filename", filename))
		}
		return nil, goerr.Wrap(err, "failed to read export", goerr.V("filename", filename))
	}

	exp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid created_at", goerr.V("filename", filename))
	}
	return &exp, nil
}

// List returns archived exports ordered by filename, pageSize at a time.
func (s *SQLite) List(ctx context.Context, pageSize int, pageToken string) (*ListResponse, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	after := ""
	if pageToken != "" {
		var err error
		if after, err = decodePageToken(pageToken); err != nil {
			return nil, goerr.Wrap(err, "invalid page token")
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, size, created_at FROM exports WHERE filename > ? ORDER BY filename LIMIT ?`,
		after, pageSize+1,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list exports")
	}
	defer rows.Close()

	resp := &ListResponse{}
	for rows.Next() {
		var (
			entry     Entry
			createdAt string
		)
		if err := rows.Scan(&entry.Name, &entry.Size, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan export")
		}
		if entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, goerr.Wrap(err, "invalid created_at", goerr.V("filename", entry.Name))
		}
		resp.Entries = append(resp.Entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to list exports")
	}

	if len(resp.Entries) > pageSize {
		resp.Entries = resp.Entries[:pageSize]
		resp.NextPageToken = encodePageToken(resp.Entries[pageSize-1].Name)
	}

	return resp, nil
}
