package registry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore is a durable Store backed by SQLite. It keeps scan history
// across restarts; otherwise it behaves exactly like MemoryStore. The id
// column is AUTOINCREMENT, so identifiers stay strictly increasing and
// are never reused even after deletion.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore runs migrations from schema.sql and returns the store.
// db should typically be the SQLite DB at <storageRoot>/scans.db.
func NewSQLiteStore(db *sql.DB, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, url string) (*model.ScanRecord, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (url, created_at, status, progress) VALUES (?, ?, ?, 0)`,
		url, now.Unix(), string(model.ScanScanning),
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("scan id: %w", err)
	}

	return &model.ScanRecord{
		ID:        id,
		URL:       url,
		CreatedAt: now,
		Status:    model.ScanScanning,
		Progress:  0,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, created_at, status, progress, results, error, snapshots
         FROM scans WHERE id = ? LIMIT 1`, id)
	rec, err := scanRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.ScanSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, created_at, status, progress, results, error, snapshots
         FROM scans ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ScanSummary{}
	for rows.Next() {
		rec, err := scanRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec.Summarize())
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetProgress(ctx context.Context, id int64, progress int) error {
	if progress > 100 {
		progress = 100
	}
	// Monotonicity and terminal freeze enforced in the WHERE clause.
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET progress = ?
         WHERE id = ? AND progress < ? AND status NOT IN ('success', 'error')`,
		progress, id, progress)
	if err != nil {
		return err
	}
	return s.checkExists(ctx, id, res)
}

func (s *SQLiteStore) AddSnapshot(ctx context.Context, id int64, path string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	paths := append(rec.Snapshots, path)
	enc, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE scans SET snapshots = ? WHERE id = ?`, string(enc), id)
	return err
}

func (s *SQLiteStore) Finish(ctx context.Context, id int64, results *model.AggregateResult) error {
	enc, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'success', progress = 100, results = ?, error = NULL
         WHERE id = ? AND status NOT IN ('success', 'error')`,
		string(enc), id)
	if err != nil {
		return err
	}
	return s.checkTerminalUpdate(ctx, id, res)
}

func (s *SQLiteStore) Fail(ctx context.Context, id int64, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'error', progress = 100, error = ?, results = NULL
         WHERE id = ? AND status NOT IN ('success', 'error')`,
		msg, id)
	if err != nil {
		return err
	}
	return s.checkTerminalUpdate(ctx, id, res)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) checkExists(ctx context.Context, id int64, res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// No row changed: either unknown id (error) or a guarded no-op (fine).
	_, err := s.Get(ctx, id)
	return err
}

func (s *SQLiteStore) checkTerminalUpdate(ctx context.Context, id int64, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return errors.New("scan already terminal")
}

func scanRow(scan func(dest ...any) error) (*model.ScanRecord, error) {
	var (
		rec       model.ScanRecord
		createdAt int64
		status    string
		results   sql.NullString
		errMsg    sql.NullString
		snapshots sql.NullString
	)
	if err := scan(&rec.ID, &rec.URL, &createdAt, &status, &rec.Progress, &results, &errMsg, &snapshots); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.Status = model.ScanStatus(status)
	if results.Valid && results.String != "" {
		var agg model.AggregateResult
		if err := json.Unmarshal([]byte(results.String), &agg); err != nil {
			return nil, fmt.Errorf("decode results for scan %d: %w", rec.ID, err)
		}
		rec.Results = &agg
	}
	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	if snapshots.Valid && snapshots.String != "" {
		if err := json.Unmarshal([]byte(snapshots.String), &rec.Snapshots); err != nil {
			return nil, fmt.Errorf("decode snapshots for scan %d: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
