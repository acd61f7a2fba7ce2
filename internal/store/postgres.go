package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/model"
)

// Pool abstracts pgxpool.Pool so the store can be unit-tested with pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Repository using pgx.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	record     JSONB NOT NULL,
	added_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS registry_lists (
	name    TEXT PRIMARY KEY,
	entries JSONB NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS publish_runs (
	id         TEXT PRIMARY KEY,
	draft_path TEXT NOT NULL,
	kind       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'idle',
	slug       TEXT,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(type);
CREATE INDEX IF NOT EXISTS idx_publish_runs_state ON publish_runs(state);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadLibrary(ctx context.Context) (*model.Library, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM assets ORDER BY added_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load library")
	}
	defer rows.Close()

	var lib model.Library
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "postgres: scan asset")
		}
		var asset model.LibraryAsset
		if err := json.Unmarshal(record, &asset); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal asset")
		}
		switch asset.Type {
		case model.MediaVideo:
			lib.Videos = append(lib.Videos, asset)
		case model.MediaImage:
			lib.Images = append(lib.Images, asset)
		case model.MediaDocument:
			lib.Documents = append(lib.Documents, asset)
		}
	}
	return &lib, eris.Wrap(rows.Err(), "postgres: load library iterate")
}

func (s *PostgresStore) FindAssetBySourceURL(ctx context.Context, sourceURL string) (*model.LibraryAsset, error) {
	var record []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM assets WHERE source_url = $1`, sourceURL,
	).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find asset")
	}
	var asset model.LibraryAsset
	if err := json.Unmarshal(record, &asset); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal asset")
	}
	return &asset, nil
}

func (s *PostgresStore) AddAsset(ctx context.Context, asset model.LibraryAsset) (*model.LibraryAsset, error) {
	data, err := json.Marshal(asset)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal asset")
	}

	// The unique source_url constraint makes the insert idempotent; the
	// existing record is returned either way.
	var record []byte
	err = s.pool.QueryRow(ctx,
		`INSERT INTO assets (id, type, source_url, record, added_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (source_url) DO UPDATE SET source_url = excluded.source_url
		 RETURNING record`,
		asset.ID, string(asset.Type), asset.SourceURL, data, asset.AddedAt.UTC(),
	).Scan(&record)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: add asset")
	}

	var stored model.LibraryAsset
	if err := json.Unmarshal(record, &stored); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stored asset")
	}
	return &stored, nil
}

func (s *PostgresStore) LoadRegistry(ctx context.Context) (*model.Registry, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, entries FROM registry_lists`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load registry")
	}
	defer rows.Close()
	return scanRegistryRows(rows)
}

func (s *PostgresStore) UpdateRegistry(ctx context.Context, fn func(*model.Registry) (bool, error)) (*model.Registry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin update registry")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, `SELECT name, entries FROM registry_lists FOR UPDATE`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lock registry")
	}
	reg, err := scanRegistryRows(rows)
	if err != nil {
		return nil, err
	}

	changed, err := fn(reg)
	if err != nil {
		return nil, err
	}
	if !changed {
		return reg, nil
	}

	if err := upsertRegistryTx(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit update registry")
	}
	return reg, nil
}

func (s *PostgresStore) ReplaceRegistry(ctx context.Context, reg *model.Registry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace registry")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := upsertRegistryTx(ctx, tx, reg); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace registry")
}

func (s *PostgresStore) CreateRun(ctx context.Context, draftPath string, kind model.DraftKind) (*model.PublishRun, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO publish_runs (id, draft_path, kind, state, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, draftPath, string(kind), string(model.RunStateIdle), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.PublishRun{
		ID:        id,
		DraftPath: draftPath,
		Kind:      kind,
		State:     model.RunStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE publish_runs SET state = $1, updated_at = $2 WHERE id = $3`,
		string(state), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run state %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, slug string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE publish_runs SET state = $1, slug = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStateDone), slug, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE publish_runs SET state = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStateFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.PublishRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, draft_path, kind, state, COALESCE(slug, ''), COALESCE(error, ''), created_at, updated_at
		 FROM publish_runs ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PublishRun
	for rows.Next() {
		var r model.PublishRun
		var kind, state string
		if err := rows.Scan(&r.ID, &r.DraftPath, &kind, &state, &r.Slug, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.DraftKind(kind)
		r.State = model.RunState(state)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanRegistryRows(rows pgx.Rows) (*model.Registry, error) {
	defer rows.Close()

	var reg model.Registry
	for rows.Next() {
		var name string
		var entriesJSON []byte
		if err := rows.Scan(&name, &entriesJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan registry list")
		}
		var entries []string
		if err := json.Unmarshal(entriesJSON, &entries); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal registry list %s", name)
		}
		reg.SetList(model.ListName(name), entries)
	}
	return &reg, eris.Wrap(rows.Err(), "postgres: registry iterate")
}

func upsertRegistryTx(ctx context.Context, tx pgx.Tx, reg *model.Registry) error {
	for _, name := range model.ListNames {
		entries := reg.List(name)
		if entries == nil {
			entries = []string{}
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal registry list %s", name)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO registry_lists (name, entries) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET entries = excluded.entries`,
			string(name), data,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert registry list %s", name)
		}
	}
	return nil
}
