package repository

import (
	"context"
	"database/sql"
	"embed"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"go-naturalness-inspector/pkg/models"
)

const defaultHistoryLimit = 100

//go:embed sql/*
var ddl embed.FS

// SQLiteResultRepository keeps scoring history in a local SQLite file.
type SQLiteResultRepository struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewSQLiteResultRepository opens (and if needed creates) the database at
// path. ":memory:" is accepted for tests.
func NewSQLiteResultRepository(path string) (*SQLiteResultRepository, error) {
	if path == "" {
		return nil, errors.New("history database path not specified")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to read the schema creation file")
	}
	if _, err := db.Exec(string(b)); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create database schema in: %s", path)
	}
	log.WithField("path", path).Debug("history database ready")

	return &SQLiteResultRepository{db: db}, nil
}

// SaveResults stores records in one transaction.
func (r *SQLiteResultRepository) SaveResults(ctx context.Context, records []models.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRepositoryUnavailable
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO scores
		(id, batch_id, idx, source, pipeline, score, category, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to prepare batch statement")
	}
	defer stmt.Close()

	for _, rec := range records {
		created := rec.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		_, err := stmt.ExecContext(ctx, rec.ID, nullString(rec.BatchID), rec.Index, rec.Source,
			rec.Pipeline, rec.Score, nullString(rec.Category), rec.Success, nullString(rec.Error),
			created.UTC().UnixNano())
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return errors.Wrap(rbErr, "failed to rollback transaction")
			}
			return errors.Wrapf(err, "failed to insert record %s", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// History returns up to limit records, newest first. Records of a batch
// keep their index order.
func (r *SQLiteResultRepository) History(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRepositoryUnavailable
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, batch_id, idx, source, pipeline, score,
		category, success, error, created_at
		FROM scores ORDER BY created_at DESC, batch_id, idx LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	records := make([]models.HistoryRecord, 0)
	for rows.Next() {
		var (
			rec                      models.HistoryRecord
			batchID, category, cause sql.NullString
			created                  int64
		)
		if err := rows.Scan(&rec.ID, &batchID, &rec.Index, &rec.Source, &rec.Pipeline, &rec.Score,
			&category, &rec.Success, &cause, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}
		rec.BatchID = batchID.String
		rec.Category = category.String
		rec.Error = cause.String
		rec.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to read history")
}

// Close releases the database. Further calls return ErrRepositoryUnavailable.
func (r *SQLiteResultRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
