package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/registry"
	"github.com/forcewatch/publish-cli/internal/scanner"
	"github.com/forcewatch/publish-cli/internal/store"
	"github.com/forcewatch/publish-cli/internal/uploader"
)

// Pipeline drives a draft through scan, upload, extraction, validation,
// generation, and the final write. Stages run strictly in sequence; the
// first failure aborts the run and nothing is committed to the content
// tree.
type Pipeline struct {
	repo     store.Repository
	uploads  *uploader.Orchestrator
	extract  *Extractor
	generate *Generator
	registry *registry.Normalizer
	writer   *Writer
}

// New assembles a Pipeline from its stage implementations.
func New(repo store.Repository, uploads *uploader.Orchestrator, extract *Extractor, generate *Generator, norm *registry.Normalizer, writer *Writer) *Pipeline {
	return &Pipeline{
		repo:     repo,
		uploads:  uploads,
		extract:  extract,
		generate: generate,
		registry: norm,
		writer:   writer,
	}
}

// RunOptions controls a single publish run.
type RunOptions struct {
	Kind  model.DraftKind
	Force bool
	// ConfirmOverwrite resolves a write conflict interactively. Nil means
	// conflicts are fatal unless Force is set.
	ConfirmOverwrite func(path string) bool
}

// Run publishes one draft. The returned PublishRun reflects the final
// state; on failure the run record carries the cause and the draft file is
// left untouched.
func (p *Pipeline) Run(ctx context.Context, draftPath string, opts RunOptions) (*model.PublishRun, error) {
	if strings.HasPrefix(filepath.Base(draftPath), PublishedPrefix) {
		return nil, eris.Errorf("pipeline: draft already published: %s", draftPath)
	}
	raw, err := os.ReadFile(draftPath)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: read draft")
	}
	draft := string(raw)

	run, err := p.repo.CreateRun(ctx, draftPath, opts.Kind)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	slug, err := p.execute(ctx, run, draft, draftPath, opts)
	if err != nil {
		if failErr := p.repo.FailRun(ctx, run.ID, err); failErr != nil {
			zap.L().Error("failed to record run failure", zap.Error(failErr))
		}
		run.State = model.RunStateFailed
		run.Error = err.Error()
		return run, err
	}

	if err := p.repo.CompleteRun(ctx, run.ID, slug); err != nil {
		return run, eris.Wrap(err, "pipeline: complete run")
	}
	run.State = model.RunStateDone
	run.Slug = slug
	return run, nil
}

func (p *Pipeline) step(ctx context.Context, runID string, state model.RunState) error {
	zap.L().Info("pipeline stage", zap.String("run", runID), zap.String("state", string(state)))
	return p.repo.UpdateRunState(ctx, runID, state)
}

func (p *Pipeline) execute(ctx context.Context, run *model.PublishRun, draft, draftPath string, opts RunOptions) (string, error) {
	// Scan
	if err := p.step(ctx, run.ID, model.RunStateScanning); err != nil {
		return "", err
	}
	items := scanner.Scan(draft)

	// Upload
	if err := p.step(ctx, run.ID, model.RunStateUploading); err != nil {
		return "", err
	}
	assets, err := p.uploads.UploadBatch(ctx, items)
	if err != nil {
		return "", err
	}

	// Extract
	if err := p.step(ctx, run.ID, model.RunStateExtractingMetadata); err != nil {
		return "", err
	}
	metas, err := p.extract.ExtractMediaMetadata(ctx, draft, items)
	if err != nil {
		return "", err
	}
	reg, err := p.registry.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	var (
		caseMeta *model.CaseMetadata
		postMeta *model.PostMetadata
	)
	switch opts.Kind {
	case model.DraftCase:
		caseMeta, err = p.extract.ExtractCaseMetadata(ctx, draft, reg)
	case model.DraftPost:
		postMeta, err = p.extract.ExtractPostMetadata(ctx, draft, reg)
	default:
		err = eris.Errorf("pipeline: unknown draft kind %q", opts.Kind)
	}
	if err != nil {
		return "", err
	}

	// Validate
	if err := p.step(ctx, run.ID, model.RunStateValidating); err != nil {
		return "", err
	}
	if err := ValidateMediaMetadata(items, metas); err != nil {
		return "", err
	}
	var metadata any
	var slug string
	switch opts.Kind {
	case model.DraftCase:
		if err := ValidateCaseMetadata(caseMeta); err != nil {
			return "", err
		}
		if err := p.normalizeCase(ctx, caseMeta); err != nil {
			return "", err
		}
		if caseMeta.Slug == "" {
			caseMeta.Slug = model.Slugify(caseMeta.Title)
		}
		metadata, slug = caseMeta, caseMeta.Slug
	case model.DraftPost:
		if err := ValidatePostMetadata(postMeta); err != nil {
			return "", err
		}
		if err := p.normalizePost(ctx, postMeta); err != nil {
			return "", err
		}
		if postMeta.Slug == "" {
			postMeta.Slug = model.Slugify(postMeta.Title)
		}
		metadata, slug = postMeta, postMeta.Slug
	}

	// Generate
	if err := p.step(ctx, run.ID, model.RunStateGeneratingContent); err != nil {
		return "", err
	}
	content, err := p.generate.GenerateContent(ctx, opts.Kind, metadata, draft, items, assets, metas)
	if err != nil {
		return "", err
	}

	// Write
	if err := p.step(ctx, run.ID, model.RunStateWriting); err != nil {
		return "", err
	}
	article := &model.GeneratedArticle{
		Kind:    opts.Kind,
		Case:    caseMeta,
		Post:    postMeta,
		Content: content,
		Slug:    slug,
	}
	if _, err := p.writer.Write(article, opts.Force); err != nil {
		var conflict *WriteConflict
		if !errors.As(err, &conflict) || opts.ConfirmOverwrite == nil || !opts.ConfirmOverwrite(conflict.Path) {
			return "", err
		}
		if _, err := p.writer.Write(article, true); err != nil {
			return "", err
		}
	}

	// Retire the draft
	if err := p.step(ctx, run.ID, model.RunStateMarkPublished); err != nil {
		return "", err
	}
	if _, err := p.writer.MarkPublished(draftPath); err != nil {
		return "", err
	}

	return slug, nil
}

// normalizeCase routes every open-vocabulary case field through the
// registry: new values are appended, and matched values are replaced with
// the canonical stored spelling.
func (p *Pipeline) normalizeCase(ctx context.Context, meta *model.CaseMetadata) error {
	ensure := map[model.ListName][]string{
		model.ListAgencies:              meta.Agencies,
		model.ListCounties:              compactValues(meta.County),
		model.ListForceTypes:            compactValues(meta.ForceType),
		model.ListThreatLevels:          compactValues(meta.ThreatLevel),
		model.ListInvestigationStatuses: compactValues(meta.InvestigationStatus),
		model.ListCaseTags:              meta.Tags,
	}
	for _, name := range model.ListNames {
		values, ok := ensure[name]
		if !ok || len(values) == 0 {
			continue
		}
		if _, err := p.registry.Ensure(ctx, name, values); err != nil {
			return err
		}
	}

	reg, err := p.registry.Snapshot(ctx)
	if err != nil {
		return err
	}
	meta.Agencies = canonicalAll(reg.Agencies, meta.Agencies)
	meta.County = canonical(reg.Counties, meta.County)
	meta.ForceType = canonical(reg.ForceTypes, meta.ForceType)
	meta.ThreatLevel = canonical(reg.ThreatLevels, meta.ThreatLevel)
	meta.InvestigationStatus = canonical(reg.InvestigationStatuses, meta.InvestigationStatus)
	meta.Tags = canonicalAll(reg.CaseTags, meta.Tags)
	return nil
}

func (p *Pipeline) normalizePost(ctx context.Context, meta *model.PostMetadata) error {
	if len(meta.Tags) == 0 {
		return nil
	}
	if _, err := p.registry.Ensure(ctx, model.ListPostTags, meta.Tags); err != nil {
		return err
	}
	reg, err := p.registry.Snapshot(ctx)
	if err != nil {
		return err
	}
	meta.Tags = canonicalAll(reg.PostTags, meta.Tags)
	return nil
}

func compactValues(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func canonical(entries []string, value string) string {
	if c, ok := registry.Match(entries, value); ok {
		return c
	}
	return value
}

func canonicalAll(entries, values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = canonical(entries, v)
	}
	return out
}
