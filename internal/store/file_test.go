package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/model"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	s := NewFile(FilePaths{
		Library:  filepath.Join(dir, "library.json"),
		Registry: filepath.Join(dir, "registry.json"),
		Runs:     filepath.Join(dir, "runs.json"),
	})
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testAsset(t model.MediaType, sourceURL string) model.LibraryAsset {
	return model.LibraryAsset{
		ID:        model.NewAssetID(t),
		Type:      t,
		SourceURL: sourceURL,
		FileName:  "asset.bin",
		URLs:      model.DerivedURLs{Public: "https://cdn.example.com/asset.bin"},
		AddedAt:   time.Now().UTC(),
	}
}

func TestFileStoreAddAssetIdempotent(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	first := testAsset(model.MediaImage, "https://example.com/photo.jpg")
	stored, err := s.AddAsset(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)

	// Same source URL again: the existing record wins, even with new fields.
	dup := testAsset(model.MediaImage, "https://example.com/photo.jpg")
	dup.Title = "different title"
	stored, err = s.AddAsset(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Empty(t, stored.Title)

	lib, err := s.LoadLibrary(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.Images, 1)
}

func TestFileStoreFindAssetAcrossBuckets(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	vid := testAsset(model.MediaVideo, "https://example.com/clip.mp4")
	doc := testAsset(model.MediaDocument, "https://example.com/report.pdf")
	_, err := s.AddAsset(ctx, vid)
	require.NoError(t, err)
	_, err = s.AddAsset(ctx, doc)
	require.NoError(t, err)

	found, err := s.FindAssetBySourceURL(ctx, "https://example.com/report.pdf")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, doc.ID, found.ID)

	// Lookup is exact-string, not URL-equivalent.
	found, err = s.FindAssetBySourceURL(ctx, "https://example.com/report.pdf?v=2")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFileStoreUpdateRegistry(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	reg, err := s.UpdateRegistry(ctx, func(r *model.Registry) (bool, error) {
		r.Agencies = append(r.Agencies, "Springfield Police Department")
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Springfield Police Department"}, reg.Agencies)

	loaded, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Springfield Police Department"}, loaded.Agencies)
}

func TestFileStoreUpdateRegistryNoChangeSkipsWrite(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	_, err := s.UpdateRegistry(ctx, func(r *model.Registry) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)

	// No write happened, so the registry file still does not exist.
	_, statErr := os.Stat(s.paths.Registry)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreWritesWellFormedJSON(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	_, err := s.AddAsset(ctx, testAsset(model.MediaImage, "https://example.com/a.png"))
	require.NoError(t, err)

	raw, err := os.ReadFile(s.paths.Library)
	require.NoError(t, err)
	var lib model.Library
	require.NoError(t, json.Unmarshal(raw, &lib))
	assert.Len(t, lib.Images, 1)
}

func TestFileStoreRunLifecycle(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "drafts/case.md", model.DraftCase)
	require.NoError(t, err)
	assert.Equal(t, model.RunStateIdle, run.State)

	require.NoError(t, s.UpdateRunState(ctx, run.ID, model.RunStateScanning))
	require.NoError(t, s.CompleteRun(ctx, run.ID, "john-doe-springfield"))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateDone, runs[0].State)
	assert.Equal(t, "john-doe-springfield", runs[0].Slug)
}

func TestFileStoreFailRun(t *testing.T) {
	s := newTestFileStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "drafts/post.md", model.DraftPost)
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, assert.AnError))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateFailed, runs[0].State)
	assert.Equal(t, assert.AnError.Error(), runs[0].Error)
}

func TestFileStoreUpdateUnknownRun(t *testing.T) {
	s := newTestFileStore(t)
	err := s.UpdateRunState(context.Background(), "missing", model.RunStateScanning)
	assert.Error(t, err)
}
