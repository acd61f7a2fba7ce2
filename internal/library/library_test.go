package library

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	repo := store.NewFile(store.FilePaths{
		Library:  filepath.Join(dir, "library.json"),
		Registry: filepath.Join(dir, "registry.json"),
		Runs:     filepath.Join(dir, "runs.json"),
	})
	require.NoError(t, repo.Migrate(context.Background()))
	return New(repo)
}

func TestAddImageAllocatesPrefixedID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	asset, err := svc.AddImage(ctx, ImageUpload{
		SourceURL:  "https://example.com/photo.jpg",
		ProviderID: "cld-123",
		FileName:   "photo.jpg",
		URLs:       model.DerivedURLs{Public: "https://res.example.com/photo.jpg"},
		Params:     model.ImageParams{Alt: "officer at scene", Caption: "Scene photo"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.ID, "img_"))
	assert.Equal(t, model.MediaImage, asset.Type)
	assert.Equal(t, "Scene photo", asset.Title)
	require.NotNil(t, asset.Component.Image)
	assert.Equal(t, "officer at scene", asset.Component.Image.Alt)
}

func TestAddVideoIdempotentExistingWins(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.AddVideo(ctx, VideoUpload{
		SourceURL:  "https://example.com/clip.mp4",
		ProviderID: "bny-1",
		FileName:   "clip.mp4",
		Params:     model.VideoParams{Caption: "Body camera footage"},
	})
	require.NoError(t, err)

	// Re-adding with different descriptive params is a no-op.
	second, err := svc.AddVideo(ctx, VideoUpload{
		SourceURL:  "https://example.com/clip.mp4",
		ProviderID: "bny-2",
		Params:     model.VideoParams{Caption: "renamed"},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "bny-1", second.ProviderID)
	require.NotNil(t, second.Component.Video)
	assert.Equal(t, "Body camera footage", second.Component.Video.Caption)

	lib, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.Videos, 1)
}

func TestFindBySourceURLExactString(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddDocument(ctx, DocumentUpload{
		SourceURL: "https://example.com/report.pdf",
		FileName:  "report.pdf",
		Params:    model.DocumentParams{Title: "Incident report", Description: "Official report"},
	})
	require.NoError(t, err)

	found, err := svc.FindBySourceURL(ctx, "https://example.com/report.pdf")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, strings.HasPrefix(found.ID, "doc_"))
	assert.Equal(t, "Incident report", found.Title)

	// A different query string is a different asset entirely.
	miss, err := svc.FindBySourceURL(ctx, "https://example.com/report.pdf#page=2")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
