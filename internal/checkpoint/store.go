// Package checkpoint is the SQLite persistence layer: per-unit translation
// results keyed (job_id, unit_id), job rows for queue hydration, and
// runtime settings. A single write connection serializes concurrent
// writers; result upserts are idempotent, so replaying a checkpoint after
// a crash restores exactly the committed set.
package checkpoint

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename
// ("001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// PutResult records one unit outcome. Idempotent: re-writing the same
// (job, unit) pair replaces the row, so retried batches and crash replays
// converge on the last committed result.
func (s *Store) PutResult(ctx context.Context, jobID string, result backend.Result) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO unit_results (job_id, unit_id, translated_text, status, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, unit_id) DO UPDATE SET
			translated_text=excluded.translated_text,
			status=excluded.status,
			updated_at=excluded.updated_at`,
		jobID,
		result.UnitID,
		result.TranslatedText,
		string(result.Status),
		time.Now().UTC(),
	)
	return err
}

// PutResults writes a batch of unit outcomes in one transaction.
func (s *Store) PutResults(ctx context.Context, jobID string, results []backend.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, result := range results {
		if _, err = tx.ExecContext(
			ctx,
			`INSERT INTO unit_results (job_id, unit_id, translated_text, status, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(job_id, unit_id) DO UPDATE SET
				translated_text=excluded.translated_text,
				status=excluded.status,
				updated_at=excluded.updated_at`,
			jobID,
			result.UnitID,
			result.TranslatedText,
			string(result.Status),
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadResults returns all recorded results for a job keyed by unit ID.
func (s *Store) LoadResults(ctx context.Context, jobID string) (map[string]backend.Result, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT unit_id, translated_text, status FROM unit_results WHERE job_id = ?`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make(map[string]backend.Result)
	for rows.Next() {
		var r backend.Result
		var status string
		if err := rows.Scan(&r.UnitID, &r.TranslatedText, &status); err != nil {
			return nil, err
		}
		r.Status = backend.Status(status)
		ret[r.UnitID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) LoadJobs(ctx context.Context) ([]*jobs.Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, payload_json, status, error, progress_json, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.Job, 0)
	for rows.Next() {
		var item jobs.Job
		var status, payloadJSON, progressJSON string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&payloadJSON,
			&status,
			&item.Error,
			&progressJSON,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadJSON), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for job %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(progressJSON), &item.Progress); err != nil {
			return nil, fmt.Errorf("decode progress for job %s: %w", item.ID, err)
		}
		item.Status = jobs.Status(status)
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Store) UpsertJob(ctx context.Context, job *jobs.Job) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, payload_json, status, error, progress_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			payload_json=excluded.payload_json,
			status=excluded.status,
			error=excluded.error,
			progress_json=excluded.progress_json,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		string(payloadJSON),
		string(job.Status),
		job.Error,
		string(progressJSON),
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

// DeleteJobData removes the per-unit checkpoint of a job.
func (s *Store) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM unit_results WHERE job_id = ?`, jobID)
	return err
}

// SetSetting stores a runtime setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	return err
}

// GetSetting returns a runtime setting value, with found=false when the key
// was never written.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// DeleteExpiredJobData removes terminal jobs last touched before cutoff,
// together with their unit results. Returns the number of jobs removed.
func (s *Store) DeleteExpiredJobData(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(
		ctx,
		`DELETE FROM unit_results WHERE job_id IN (
			SELECT id FROM jobs
			WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at <= ?
		)`,
		cutoff.UTC(),
	); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at <= ?`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}
