// Package uploader moves scanned media to its storage backend: videos to
// Bunny Stream, images to Cloudinary, documents through a local temp file
// to Bunny Edge Storage. The media library is consulted first so an already
// uploaded source URL is never uploaded twice.
package uploader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/fetcher"
	"github.com/forcewatch/publish-cli/internal/library"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/pkg/bunny"
	"github.com/forcewatch/publish-cli/pkg/cloudinary"
)

// Error reports a failed upload with enough context to name the culprit.
type Error struct {
	SourceURL string
	Type      model.MediaType
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upload %s %s: %v", e.Type, e.SourceURL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configures the orchestrator.
type Options struct {
	// TempDir receives document downloads and is cleared after each batch.
	TempDir string
	// StoragePath is the remote directory prefix for documents.
	StoragePath string
}

// Orchestrator runs upload batches against the three storage backends.
type Orchestrator struct {
	lib       *library.Service
	videos    bunny.StreamClient
	images    cloudinary.Client
	documents bunny.StorageClient
	fetch     fetcher.Fetcher
	opts      Options
}

// New creates an Orchestrator.
func New(lib *library.Service, videos bunny.StreamClient, images cloudinary.Client, documents bunny.StorageClient, fetch fetcher.Fetcher, opts Options) *Orchestrator {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "publish-cli")
	}
	if opts.StoragePath == "" {
		opts.StoragePath = "documents"
	}
	return &Orchestrator{
		lib:       lib,
		videos:    videos,
		images:    images,
		documents: documents,
		fetch:     fetch,
		opts:      opts,
	}
}

// UploadBatch resolves every uploadable item to a library asset, uploading
// the ones the library has not seen. Items run sequentially and the batch
// is fail-fast: the first failure aborts the remainder, and assets already
// recorded in this batch stay recorded. Links are returned as-is in the
// result map keyed by source URL with no asset. The temp directory is
// cleared once the batch ends, on success and on failure alike.
func (o *Orchestrator) UploadBatch(ctx context.Context, items []model.MediaItem) (map[string]*model.LibraryAsset, error) {
	assets := make(map[string]*model.LibraryAsset, len(items))

	defer o.clearTempDir()

	for _, item := range items {
		if item.Type == model.MediaLink {
			assets[item.SourceURL] = nil
			continue
		}

		existing, err := o.lib.FindBySourceURL(ctx, item.SourceURL)
		if err != nil {
			return assets, &Error{SourceURL: item.SourceURL, Type: item.Type, Err: err}
		}
		if existing != nil {
			zap.L().Debug("upload skipped, already in library",
				zap.String("url", item.SourceURL),
				zap.String("asset_id", existing.ID))
			assets[item.SourceURL] = existing
			continue
		}

		var asset *model.LibraryAsset
		switch item.Type {
		case model.MediaVideo:
			asset, err = o.uploadVideo(ctx, item)
		case model.MediaImage:
			asset, err = o.uploadImage(ctx, item)
		case model.MediaDocument:
			asset, err = o.uploadDocument(ctx, item)
		default:
			err = eris.Errorf("unsupported media type %q", item.Type)
		}
		if err != nil {
			return assets, &Error{SourceURL: item.SourceURL, Type: item.Type, Err: err}
		}

		zap.L().Info("media uploaded",
			zap.String("url", item.SourceURL),
			zap.String("type", string(item.Type)),
			zap.String("asset_id", asset.ID))
		assets[item.SourceURL] = asset
	}

	return assets, nil
}

func (o *Orchestrator) uploadVideo(ctx context.Context, item model.MediaItem) (*model.LibraryAsset, error) {
	name := fileNameFromURL(item.SourceURL)
	title := name
	var params model.VideoParams
	if item.Params.Video != nil {
		params = *item.Params.Video
		if params.Caption != "" {
			title = params.Caption
		}
	}

	video, err := o.videos.FetchVideo(ctx, title, item.SourceURL)
	if err != nil {
		return nil, err
	}

	return o.lib.AddVideo(ctx, library.VideoUpload{
		SourceURL:  item.SourceURL,
		ProviderID: video.GUID,
		FileName:   name,
		Title:      video.Title,
		URLs: model.DerivedURLs{
			Stream:    video.Stream,
			Embed:     video.Embed,
			Thumbnail: video.Thumbnail,
		},
		Params: params,
	})
}

func (o *Orchestrator) uploadImage(ctx context.Context, item model.MediaItem) (*model.LibraryAsset, error) {
	var params model.ImageParams
	if item.Params.Image != nil {
		params = *item.Params.Image
	}

	img, err := o.images.UploadImage(ctx, item.SourceURL)
	if err != nil {
		return nil, err
	}

	return o.lib.AddImage(ctx, library.ImageUpload{
		SourceURL:  item.SourceURL,
		ProviderID: img.PublicID,
		FileName:   fileNameFromURL(item.SourceURL),
		URLs: model.DerivedURLs{
			Public:    img.Public,
			Thumbnail: img.Thumbnail,
			Medium:    img.Medium,
			Large:     img.Large,
		},
		Params: params,
	})
}

func (o *Orchestrator) uploadDocument(ctx context.Context, item model.MediaItem) (*model.LibraryAsset, error) {
	var params model.DocumentParams
	if item.Params.Document != nil {
		params = *item.Params.Document
	}

	name := fileNameFromURL(item.SourceURL)
	if err := os.MkdirAll(o.opts.TempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create temp dir")
	}
	local := filepath.Join(o.opts.TempDir, fmt.Sprintf("%s_%s", shortID(), name))
	// The temp file is scoped to this one attempt and removed on every path.
	defer func() {
		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("temp file not removed", zap.String("path", local), zap.Error(err))
		}
	}()

	if _, err := o.fetch.DownloadToFile(ctx, item.SourceURL, local); err != nil {
		return nil, err
	}

	remote := path.Join(o.opts.StoragePath, fmt.Sprintf("%s_%s", shortID(), name))
	publicURL, err := o.documents.UploadFile(ctx, local, remote)
	if err != nil {
		return nil, err
	}

	return o.lib.AddDocument(ctx, library.DocumentUpload{
		SourceURL:  item.SourceURL,
		ProviderID: remote,
		FileName:   name,
		URLs:       model.DerivedURLs{Public: publicURL},
		Params:     params,
	})
}

// clearTempDir removes batch leftovers and the directory itself when empty.
func (o *Orchestrator) clearTempDir() {
	entries, err := os.ReadDir(o.opts.TempDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		p := filepath.Join(o.opts.TempDir, entry.Name())
		if err := os.Remove(p); err != nil {
			zap.L().Warn("temp entry not removed", zap.String("path", p), zap.Error(err))
		}
	}
	if rest, err := os.ReadDir(o.opts.TempDir); err == nil && len(rest) == 0 {
		_ = os.Remove(o.opts.TempDir)
	}
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		return "file"
	}
	return path.Base(u.Path)
}
