package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// import db drivers
	_ "github.com/lib/pq"

	"github.com/sevigo/code-atlas/internal/config"
	"github.com/sevigo/code-atlas/internal/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// postgresStore implements Store on Postgres with JSONB payloads.
type postgresStore struct {
	db *sqlx.DB
}

// NewPostgres connects, runs the embedded migrations, and returns the store
// with its cleanup func.
func NewPostgres(cfg config.DBConfig) (Store, func(), error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("running database migrations")
	if err := runMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("database migrations completed successfully")

	return &postgresStore{db: conn}, func() {
		if err := conn.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}, nil
}

func runMigrations(conn *sqlx.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	_, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("failed to apply migrations: database is in dirty state, fix it manually (e.g. 'migrate force <version>')")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *postgresStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
		INSERT INTO documents (document_id, repo_id, doc_type, file_path, commit_hash, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (document_id) DO UPDATE SET
			repo_id = EXCLUDED.repo_id,
			doc_type = EXCLUDED.doc_type,
			file_path = EXCLUDED.file_path,
			commit_hash = EXCLUDED.commit_hash,
			payload = EXCLUDED.payload,
			updated_at = now()`

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, query, doc.ID, doc.RepoID, doc.Type, doc.FilePath, doc.CommitHash, doc.Payload); err != nil {
			return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
		}
	}
	return tx.Commit()
}

func (s *postgresStore) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.db.GetContext(ctx, &doc,
		`SELECT document_id, repo_id, doc_type, file_path, commit_hash, payload FROM documents WHERE document_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *postgresStore) DeleteByRepo(ctx context.Context, repoID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE repo_id = $1`, repoID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents for repo %s: %w", repoID, err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) DeleteByFile(ctx context.Context, repoID, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE repo_id = $1 AND file_path = $2`, repoID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents for %s/%s: %w", repoID, path, err)
	}
	return res.RowsAffected()
}

func (s *postgresStore) FileIndexByPath(ctx context.Context, repoID, path string) (*core.FileIndex, error) {
	var payload json.RawMessage
	err := s.db.GetContext(ctx, &payload,
		`SELECT payload FROM documents WHERE repo_id = $1 AND file_path = $2 AND doc_type = $3 LIMIT 1`,
		repoID, path, core.DocTypeFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var file core.FileIndex
	if err := json.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("failed to decode file index for %s/%s: %w", repoID, path, err)
	}
	return &file, nil
}

func (s *postgresStore) FileIndexesForRepo(ctx context.Context, repoID string) ([]core.FileIndex, error) {
	var payloads []json.RawMessage
	err := s.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM documents WHERE repo_id = $1 AND doc_type = $2 ORDER BY file_path`,
		repoID, core.DocTypeFile)
	if err != nil {
		return nil, err
	}

	files := make([]core.FileIndex, 0, len(payloads))
	for _, p := range payloads {
		var file core.FileIndex
		if err := json.Unmarshal(p, &file); err != nil {
			return nil, fmt.Errorf("failed to decode file index for repo %s: %w", repoID, err)
		}
		files = append(files, file)
	}
	return files, nil
}

func (s *postgresStore) CountFiles(ctx context.Context, repoID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM documents WHERE repo_id = $1 AND doc_type = $2`, repoID, core.DocTypeFile)
	return count, err
}

func (s *postgresStore) CountByType(ctx context.Context, repoID string) (map[core.DocType]int, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT doc_type, COUNT(*) FROM documents WHERE repo_id = $1 GROUP BY doc_type`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[core.DocType]int)
	for rows.Next() {
		var docType core.DocType
		var count int
		if err := rows.Scan(&docType, &count); err != nil {
			return nil, err
		}
		counts[docType] = count
	}
	return counts, rows.Err()
}

func (s *postgresStore) RepoIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `SELECT DISTINCT repo_id FROM documents ORDER BY repo_id`)
	return ids, err
}

func (s *postgresStore) GetRepoState(ctx context.Context, repoID string) (*RepoState, error) {
	var state RepoState
	err := s.db.GetContext(ctx, &state,
		`SELECT repo_id, last_commit, embedder FROM repo_state WHERE repo_id = $1`, repoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *postgresStore) SaveRepoState(ctx context.Context, state RepoState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repo_state (repo_id, last_commit, embedder, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (repo_id) DO UPDATE SET
			last_commit = EXCLUDED.last_commit,
			embedder = EXCLUDED.embedder,
			updated_at = now()`,
		state.RepoID, state.LastCommit, state.Embedder)
	return err
}

func (s *postgresStore) DeleteRepoState(ctx context.Context, repoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repo_state WHERE repo_id = $1`, repoID)
	return err
}

// legacyRunLog is the flattened run shape older dashboards still read.
type legacyRunLog struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	ReposChecked int       `json:"repos_checked"`
	ReposUpdated int       `json:"repos_updated"`
	ReposFailed  int       `json:"repos_failed"`
	Errors       []string  `json:"errors,omitempty"`
}

func (s *postgresStore) SaveRun(ctx context.Context, run core.IngestionRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ingestion_runs (run_id, started_at, completed_at, status, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			status = EXCLUDED.status,
			payload = EXCLUDED.payload`,
		run.RunID, run.StartedAt, run.CompletedAt, run.Status, payload)
	if err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	legacy, err := json.Marshal(legacyRunLog{
		RunID:        run.RunID,
		Timestamp:    run.CompletedAt,
		Status:       string(run.Status),
		ReposChecked: run.Counters.Processed,
		ReposUpdated: run.Counters.Updated + run.Counters.FullReingest,
		ReposFailed:  run.Counters.Errors,
		Errors:       run.Errors,
	})
	if err != nil {
		return fmt.Errorf("failed to encode legacy run log: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ingestion_logs (run_id, created_at, payload) VALUES ($1, $2, $3)`,
		run.RunID, run.CompletedAt, legacy); err != nil {
		return fmt.Errorf("failed to save legacy run log: %w", err)
	}

	return tx.Commit()
}

func (s *postgresStore) Runs(ctx context.Context, limit int) ([]core.IngestionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var payloads []json.RawMessage
	err := s.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM ingestion_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	runs := make([]core.IngestionRun, 0, len(payloads))
	for _, p := range payloads {
		var run core.IngestionRun
		if err := json.Unmarshal(p, &run); err != nil {
			return nil, fmt.Errorf("failed to decode run record: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
