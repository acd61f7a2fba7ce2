package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/fetcher"
	"github.com/forcewatch/publish-cli/internal/library"
	"github.com/forcewatch/publish-cli/internal/pipeline"
	"github.com/forcewatch/publish-cli/internal/registry"
	"github.com/forcewatch/publish-cli/internal/store"
	"github.com/forcewatch/publish-cli/internal/uploader"
	"github.com/forcewatch/publish-cli/pkg/anthropic"
	"github.com/forcewatch/publish-cli/pkg/bunny"
	"github.com/forcewatch/publish-cli/pkg/cloudinary"
)

// initStore opens the configured repository with migrations applied.
func initStore(ctx context.Context) (store.Repository, error) {
	return store.Open(ctx, cfg.Store)
}

// env bundles the fully wired pipeline for the publish and serve commands.
type env struct {
	Repo     store.Repository
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	_ = e.Repo.Close()
}

// initPipeline wires every stage from configuration.
func initPipeline(ctx context.Context) (*env, error) {
	repo, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	schema, err := os.ReadFile(cfg.Paths.SchemaFile)
	if err != nil {
		repo.Close()
		return nil, eris.Wrap(err, "read schema file")
	}

	lib := library.New(repo)
	fetch := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RatePerSec:   cfg.Fetch.RatePerSec,
		MaxSizeBytes: cfg.Fetch.MaxSizeBytes,
	})
	uploads := uploader.New(
		lib,
		bunny.NewStreamClient(cfg.Bunny.StreamKey, cfg.Bunny.StreamLibraryID, cfg.Bunny.StreamCDNHost),
		cloudinary.NewClient(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder),
		bunny.NewStorageClient(bunny.StorageOptions{
			FTPHost:      cfg.Bunny.StorageFTPHost,
			Zone:         cfg.Bunny.StorageZone,
			Password:     cfg.Bunny.StoragePassword,
			PullZoneHost: cfg.Bunny.PullZoneHost,
		}),
		fetch,
		uploader.Options{
			TempDir:     cfg.Paths.TempDir,
			StoragePath: cfg.Bunny.StoragePath,
		},
	)

	ai := anthropic.NewClient(cfg.Anthropic.Key)
	p := pipeline.New(
		repo,
		uploads,
		pipeline.NewExtractor(ai, cfg.Anthropic, cfg.Prompt, string(schema)),
		pipeline.NewGenerator(ai, cfg.Anthropic, cfg.Prompt, string(schema)),
		registry.New(repo),
		pipeline.NewWriter(cfg.Paths.ContentDir),
	)

	return &env{Repo: repo, Pipeline: p}, nil
}
