package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/model"
)

// FilePaths names the three JSON files of the file driver.
type FilePaths struct {
	Library  string
	Registry string
	Runs     string
}

// FileStore implements Repository over whole-file JSON documents with
// atomic temp-and-rename rewrites. The mutex serializes in-process access
// only; a second process racing the same files is last-write-wins. That is
// the documented limitation of this driver, not something it papers over.
type FileStore struct {
	mu    sync.Mutex
	paths FilePaths
}

// NewFile creates a FileStore over the given paths.
func NewFile(paths FilePaths) *FileStore {
	return &FileStore{paths: paths}
}

// Migrate ensures the parent directories exist.
func (s *FileStore) Migrate(context.Context) error {
	for _, p := range []string{s.paths.Library, s.paths.Registry, s.paths.Runs} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return eris.Wrapf(err, "store: mkdir for %s", p)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) LoadLibrary(context.Context) (*model.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLibrary()
}

func (s *FileStore) FindAssetBySourceURL(ctx context.Context, sourceURL string) (*model.LibraryAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib, err := s.readLibrary()
	if err != nil {
		return nil, err
	}
	return findInLibrary(lib, sourceURL), nil
}

func (s *FileStore) AddAsset(ctx context.Context, asset model.LibraryAsset) (*model.LibraryAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, err := s.readLibrary()
	if err != nil {
		return nil, err
	}
	if existing := findInLibrary(lib, asset.SourceURL); existing != nil {
		return existing, nil
	}

	switch asset.Type {
	case model.MediaVideo:
		lib.Videos = append(lib.Videos, asset)
	case model.MediaImage:
		lib.Images = append(lib.Images, asset)
	case model.MediaDocument:
		lib.Documents = append(lib.Documents, asset)
	default:
		return nil, eris.Errorf("store: asset type %q has no library bucket", asset.Type)
	}

	if err := writeJSONAtomic(s.paths.Library, lib); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *FileStore) LoadRegistry(context.Context) (*model.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRegistry()
}

func (s *FileStore) UpdateRegistry(ctx context.Context, fn func(*model.Registry) (bool, error)) (*model.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.readRegistry()
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
	if err := writeJSONAtomic(s.paths.Registry, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *FileStore) ReplaceRegistry(ctx context.Context, reg *model.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSONAtomic(s.paths.Registry, reg)
}

func (s *FileStore) CreateRun(ctx context.Context, draftPath string, kind model.DraftKind) (*model.PublishRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.readRuns()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	run := model.PublishRun{
		ID:        uuid.NewString(),
		DraftPath: draftPath,
		Kind:      kind,
		State:     model.RunStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	runs = append(runs, run)
	if err := writeJSONAtomic(s.paths.Runs, runs); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *FileStore) UpdateRunState(ctx context.Context, runID string, state model.RunState) error {
	return s.mutateRun(runID, func(r *model.PublishRun) {
		r.State = state
	})
}

func (s *FileStore) CompleteRun(ctx context.Context, runID string, slug string) error {
	return s.mutateRun(runID, func(r *model.PublishRun) {
		r.State = model.RunStateDone
		r.Slug = slug
	})
}

func (s *FileStore) FailRun(ctx context.Context, runID string, cause error) error {
	return s.mutateRun(runID, func(r *model.PublishRun) {
		r.State = model.RunStateFailed
		if cause != nil {
			r.Error = cause.Error()
		}
	})
}

func (s *FileStore) ListRuns(ctx context.Context, limit int) ([]model.PublishRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.readRuns()
	if err != nil {
		return nil, err
	}
	// Newest first.
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *FileStore) mutateRun(runID string, apply func(*model.PublishRun)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.readRuns()
	if err != nil {
		return err
	}
	for i := range runs {
		if runs[i].ID == runID {
			apply(&runs[i])
			runs[i].UpdatedAt = time.Now().UTC()
			return writeJSONAtomic(s.paths.Runs, runs)
		}
	}
	return eris.Errorf("store: run not found: %s", runID)
}

func (s *FileStore) readLibrary() (*model.Library, error) {
	var lib model.Library
	if err := readJSON(s.paths.Library, &lib); err != nil {
		return nil, err
	}
	return &lib, nil
}

func (s *FileStore) readRegistry() (*model.Registry, error) {
	var reg model.Registry
	if err := readJSON(s.paths.Registry, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *FileStore) readRuns() ([]model.PublishRun, error) {
	var runs []model.PublishRun
	if err := readJSON(s.paths.Runs, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

func findInLibrary(lib *model.Library, sourceURL string) *model.LibraryAsset {
	// Linear scan across the three buckets, exact string match.
	for _, bucket := range [][]model.LibraryAsset{lib.Videos, lib.Images, lib.Documents} {
		for i := range bucket {
			if bucket[i].SourceURL == sourceURL {
				return &bucket[i]
			}
		}
	}
	return nil
}

// readJSON loads a JSON file into out; a missing file leaves out zero-valued.
func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "store: read %s", path)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrapf(err, "store: parse %s", path)
	}
	return nil
}

// writeJSONAtomic rewrites the whole file via temp-and-rename so readers
// never observe a partial document.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "store: marshal %s", path)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "store: create temp for %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "store: write temp for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "store: close temp for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "store: rename into %s", path)
	}
	return nil
}
