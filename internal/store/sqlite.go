package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/forcewatch/publish-cli/internal/model"
)

// SQLiteStore implements Repository using modernc.org/sqlite. Library and
// registry mutations run inside transactions, which removes the file
// driver's last-write-wins race.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS assets (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	record     TEXT NOT NULL,
	added_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS registry_lists (
	name    TEXT PRIMARY KEY,
	entries TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS publish_runs (
	id         TEXT PRIMARY KEY,
	draft_path TEXT NOT NULL,
	kind       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'idle',
	slug       TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(type);
CREATE INDEX IF NOT EXISTS idx_publish_runs_state ON publish_runs(state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadLibrary(ctx context.Context) (*model.Library, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM assets ORDER BY added_at, id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load library")
	}
	defer rows.Close()

	var lib model.Library
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan asset")
		}
		var asset model.LibraryAsset
		if err := json.Unmarshal([]byte(record), &asset); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal asset")
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
	return &lib, eris.Wrap(rows.Err(), "sqlite: load library iterate")
}

func (s *SQLiteStore) FindAssetBySourceURL(ctx context.Context, sourceURL string) (*model.LibraryAsset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM assets WHERE source_url = ?`, sourceURL,
	)
	var record string
	err := row.Scan(&record)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find asset")
	}
	var asset model.LibraryAsset
	if err := json.Unmarshal([]byte(record), &asset); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal asset")
	}
	return &asset, nil
}

func (s *SQLiteStore) AddAsset(ctx context.Context, asset model.LibraryAsset) (*model.LibraryAsset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin add asset")
	}
	defer tx.Rollback() //nolint:errcheck

	var record string
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM assets WHERE source_url = ?`, asset.SourceURL,
	).Scan(&record)
	if err == nil {
		var existing model.LibraryAsset
		if err := json.Unmarshal([]byte(record), &existing); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal existing asset")
		}
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: check existing asset")
	}

	data, err := json.Marshal(asset)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal asset")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO assets (id, type, source_url, record, added_at) VALUES (?, ?, ?, ?, ?)`,
		asset.ID, string(asset.Type), asset.SourceURL, string(data), asset.AddedAt.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert asset")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit add asset")
	}
	return &asset, nil
}

func (s *SQLiteStore) LoadRegistry(ctx context.Context) (*model.Registry, error) {
	return loadRegistryLists(ctx, s.db.QueryContext)
}

func (s *SQLiteStore) UpdateRegistry(ctx context.Context, fn func(*model.Registry) (bool, error)) (*model.Registry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin update registry")
	}
	defer tx.Rollback() //nolint:errcheck

	reg, err := loadRegistryLists(ctx, tx.QueryContext)
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
	if err := saveRegistryLists(ctx, tx.ExecContext, reg, `INSERT INTO registry_lists (name, entries) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET entries = excluded.entries`); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit update registry")
	}
	return reg, nil
}

func (s *SQLiteStore) ReplaceRegistry(ctx context.Context, reg *model.Registry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace registry")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := saveRegistryLists(ctx, tx.ExecContext, reg, `INSERT INTO registry_lists (name, entries) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET entries = excluded.entries`); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace registry")
}

func (s *SQLiteStore) CreateRun(ctx context.Context, draftPath string, kind model.DraftKind) (*model.PublishRun, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publish_runs (id, draft_path, kind, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, draftPath, string(kind), string(model.RunStateIdle), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE publish_runs SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run state %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, slug string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE publish_runs SET state = ?, slug = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStateDone), slug, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE publish_runs SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStateFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.PublishRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, draft_path, kind, state, COALESCE(slug, ''), COALESCE(error, ''), created_at, updated_at
		 FROM publish_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.PublishRun
	for rows.Next() {
		var r model.PublishRun
		if err := rows.Scan(&r.ID, &r.DraftPath, &r.Kind, &r.State, &r.Slug, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)
type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func loadRegistryLists(ctx context.Context, query queryFunc) (*model.Registry, error) {
	rows, err := query(ctx, `SELECT name, entries FROM registry_lists`)
	if err != nil {
		return nil, eris.Wrap(err, "store: load registry")
	}
	defer rows.Close()

	var reg model.Registry
	for rows.Next() {
		var name, entriesJSON string
		if err := rows.Scan(&name, &entriesJSON); err != nil {
			return nil, eris.Wrap(err, "store: scan registry list")
		}
		var entries []string
		if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal registry list %s", name)
		}
		reg.SetList(model.ListName(name), entries)
	}
	return &reg, eris.Wrap(rows.Err(), "store: load registry iterate")
}

func saveRegistryLists(ctx context.Context, exec execFunc, reg *model.Registry, upsert string) error {
	for _, name := range model.ListNames {
		entries := reg.List(name)
		if entries == nil {
			entries = []string{}
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return eris.Wrapf(err, "store: marshal registry list %s", name)
		}
		if _, err := exec(ctx, upsert, string(name), string(data)); err != nil {
			return eris.Wrapf(err, "store: upsert registry list %s", name)
		}
	}
	return nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
