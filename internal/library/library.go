// Package library is the dedup store for uploaded media: a
// content-addressable map from exact source URL to its uploaded-asset
// record. Records are created on first successful upload and never deleted
// by the pipeline.
package library

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/store"
)

// Service wraps the Repository with asset construction: id allocation,
// component projection, and the idempotent add contract.
type Service struct {
	repo store.Repository
}

// New creates a library Service over the given repository.
func New(repo store.Repository) *Service {
	return &Service{repo: repo}
}

// FindBySourceURL returns the asset for the exact source URL string, or nil.
// Lookup spans all three type buckets.
func (s *Service) FindBySourceURL(ctx context.Context, sourceURL string) (*model.LibraryAsset, error) {
	return s.repo.FindAssetBySourceURL(ctx, sourceURL)
}

// All returns the full library contents.
func (s *Service) All(ctx context.Context) (*model.Library, error) {
	return s.repo.LoadLibrary(ctx)
}

// VideoUpload is the provider result for a video remote copy.
type VideoUpload struct {
	SourceURL  string
	ProviderID string
	FileName   string
	Title      string
	URLs       model.DerivedURLs
	Params     model.VideoParams
}

// ImageUpload is the provider result for an image upload.
type ImageUpload struct {
	SourceURL  string
	ProviderID string
	FileName   string
	URLs       model.DerivedURLs
	Params     model.ImageParams
}

// DocumentUpload is the provider result for a document upload.
type DocumentUpload struct {
	SourceURL  string
	ProviderID string
	FileName   string
	URLs       model.DerivedURLs
	Params     model.DocumentParams
}

// AddVideo records an uploaded video. Adding a source URL that already has
// an asset is a no-op and returns the existing record, whatever its params.
func (s *Service) AddVideo(ctx context.Context, up VideoUpload) (*model.LibraryAsset, error) {
	asset := model.LibraryAsset{
		ID:         model.NewAssetID(model.MediaVideo),
		Type:       model.MediaVideo,
		SourceURL:  up.SourceURL,
		ProviderID: up.ProviderID,
		FileName:   up.FileName,
		Title:      up.Title,
		URLs:       up.URLs,
		Component:  model.VideoComponentParams(up.Params),
		AddedAt:    time.Now().UTC(),
	}
	stored, err := s.repo.AddAsset(ctx, asset)
	return stored, eris.Wrap(err, "library: add video")
}

// AddImage records an uploaded image with the same idempotent contract.
func (s *Service) AddImage(ctx context.Context, up ImageUpload) (*model.LibraryAsset, error) {
	asset := model.LibraryAsset{
		ID:         model.NewAssetID(model.MediaImage),
		Type:       model.MediaImage,
		SourceURL:  up.SourceURL,
		ProviderID: up.ProviderID,
		FileName:   up.FileName,
		Title:      up.Params.Caption,
		URLs:       up.URLs,
		Component:  model.ImageComponentParams(up.Params),
		AddedAt:    time.Now().UTC(),
	}
	stored, err := s.repo.AddAsset(ctx, asset)
	return stored, eris.Wrap(err, "library: add image")
}

// AddDocument records an uploaded document with the same idempotent contract.
func (s *Service) AddDocument(ctx context.Context, up DocumentUpload) (*model.LibraryAsset, error) {
	asset := model.LibraryAsset{
		ID:          model.NewAssetID(model.MediaDocument),
		Type:        model.MediaDocument,
		SourceURL:   up.SourceURL,
		ProviderID:  up.ProviderID,
		FileName:    up.FileName,
		Title:       up.Params.Title,
		Description: up.Params.Description,
		URLs:        up.URLs,
		Component:   model.DocumentComponentParams(up.Params),
		AddedAt:     time.Now().UTC(),
	}
	stored, err := s.repo.AddAsset(ctx, asset)
	return stored, eris.Wrap(err, "library: add document")
}
