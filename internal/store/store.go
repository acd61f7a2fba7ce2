// Package store persists the media library, the canonical registry, and
// publish runs behind a Repository interface. Three drivers exist: "file"
// (whole-file JSON, matching the original on-disk contract), "sqlite"
// (transactional, single binary), and "postgres".
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/model"
)

// Repository is the persistence boundary for the publish pipeline.
//
// Asset inserts are idempotent by exact source URL: adding an asset whose
// source URL already exists is a no-op and the existing record wins.
// Registry mutations go through UpdateRegistry so the SQL drivers can run
// them transactionally; the file driver is read-modify-write with
// last-write-wins, so concurrent publish invocations on the file driver must
// be serialized externally.
type Repository interface {
	// Media library
	LoadLibrary(ctx context.Context) (*model.Library, error)
	FindAssetBySourceURL(ctx context.Context, sourceURL string) (*model.LibraryAsset, error)
	AddAsset(ctx context.Context, asset model.LibraryAsset) (*model.LibraryAsset, error)

	// Registry
	LoadRegistry(ctx context.Context) (*model.Registry, error)
	// UpdateRegistry applies fn to the current registry. fn returns true when
	// it changed something; a false return skips the write entirely.
	UpdateRegistry(ctx context.Context, fn func(*model.Registry) (bool, error)) (*model.Registry, error)
	// ReplaceRegistry overwrites the whole registry (rebuild only).
	ReplaceRegistry(ctx context.Context, reg *model.Registry) error

	// Publish runs
	CreateRun(ctx context.Context, draftPath string, kind model.DraftKind) (*model.PublishRun, error)
	UpdateRunState(ctx context.Context, runID string, state model.RunState) error
	CompleteRun(ctx context.Context, runID string, slug string) error
	FailRun(ctx context.Context, runID string, cause error) error
	ListRuns(ctx context.Context, limit int) ([]model.PublishRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the Repository named by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Repository, error) {
	var (
		repo Repository
		err  error
	)
	switch cfg.Driver {
	case "", "file":
		repo = NewFile(FilePaths{
			Library:  cfg.LibraryFile,
			Registry: cfg.RegistryFile,
			Runs:     cfg.RunsFile,
		})
	case "sqlite":
		repo, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		repo, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
