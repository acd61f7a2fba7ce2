package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/frontmatter"
	"github.com/forcewatch/publish-cli/internal/library"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/internal/registry"
	"github.com/forcewatch/publish-cli/internal/store"
	"github.com/forcewatch/publish-cli/internal/uploader"
	"github.com/forcewatch/publish-cli/pkg/anthropic"
	"github.com/forcewatch/publish-cli/pkg/bunny"
	"github.com/forcewatch/publish-cli/pkg/cloudinary"
)

type stubStream struct{}

func (stubStream) FetchVideo(_ context.Context, title, _ string) (*bunny.Video, error) {
	return &bunny.Video{
		GUID:      "guid-1",
		Title:     title,
		Stream:    "https://cdn.example/guid-1/playlist.m3u8",
		Embed:     "https://iframe.example/embed/1/guid-1",
		Thumbnail: "https://cdn.example/guid-1/thumbnail.jpg",
	}, nil
}

type stubImages struct{ calls int }

func (s *stubImages) UploadImage(_ context.Context, _ string) (*cloudinary.Image, error) {
	s.calls++
	return &cloudinary.Image{
		PublicID:  "incidents/a",
		Public:    "https://res.example/incidents/a.jpg",
		Thumbnail: "https://res.example/c_fill,w_300,h_300/incidents/a.jpg",
		Medium:    "https://res.example/c_limit,w_800/incidents/a.jpg",
		Large:     "https://res.example/c_limit,w_1600/incidents/a.jpg",
	}, nil
}

type stubStorage struct{}

func (stubStorage) UploadFile(_ context.Context, _, remotePath string) (string, error) {
	return "https://files.example/" + remotePath, nil
}

type stubFetcher struct{}

func (stubFetcher) Download(_ context.Context, _ string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("pdf bytes")), nil
}

func (stubFetcher) DownloadToFile(_ context.Context, _, path string) (int64, error) {
	if err := os.WriteFile(path, []byte("pdf bytes"), 0o644); err != nil {
		return 0, err
	}
	return 9, nil
}

// scriptedAI plays back one response builder per CreateMessage call, in
// order. Builders see the request, so the content stage can echo the
// snippets it was given.
type scriptedAI struct {
	t      *testing.T
	script []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error)
	calls  int
}

func (s *scriptedAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	require.Less(s.t, s.calls, len(s.script), "unexpected AI call")
	fn := s.script[s.calls]
	s.calls++
	return fn(req)
}

func respond(text string) func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return textResponse(text), nil
	}
}

// echoContent builds a stage-2 response that copies every {{...}} snippet
// line out of the prompt, unchanged.
func echoContent(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	var snippets []string
	for _, line := range strings.Split(req.Messages[0].Content, "\n") {
		if strings.HasPrefix(line, "{{") {
			snippets = append(snippets, line)
		}
	}
	body := "Generated article body.\n\n" + strings.Join(snippets, "\n\n") + "\n"
	return textResponse("```markdown\n" + body + "```"), nil
}

type fixture struct {
	pipeline *Pipeline
	repo     store.Repository
	images   *stubImages
	content  string
	drafts   string
}

func newFixture(t *testing.T, ai anthropic.Client) *fixture {
	t.Helper()
	dir := t.TempDir()

	repo := store.NewFile(store.FilePaths{
		Library:  filepath.Join(dir, "library.json"),
		Registry: filepath.Join(dir, "registry.json"),
		Runs:     filepath.Join(dir, "runs.json"),
	})
	require.NoError(t, repo.Migrate(context.Background()))
	t.Cleanup(func() { repo.Close() })

	lib := library.New(repo)
	images := &stubImages{}
	uploads := uploader.New(lib, stubStream{}, images, stubStorage{}, stubFetcher{}, uploader.Options{
		TempDir: filepath.Join(dir, "tmp"),
	})

	aiCfg := config.AnthropicConfig{
		MetadataModel:  "claude-sonnet-4-5-20250929",
		ContentModel:   "claude-sonnet-4-5-20250929",
		MaxTokens:      8192,
		MetadataTokens: 4096,
	}
	promptCfg := config.PromptConfig{ContextRadius: 200, MaxDraftChars: 20000}

	contentDir := filepath.Join(dir, "content")
	draftsDir := filepath.Join(dir, "drafts")
	require.NoError(t, os.MkdirAll(draftsDir, 0o755))

	p := New(
		repo,
		uploads,
		NewExtractor(ai, aiCfg, promptCfg, "schema"),
		NewGenerator(ai, aiCfg, promptCfg, "schema"),
		registry.New(repo),
		NewWriter(contentDir),
	)
	return &fixture{pipeline: p, repo: repo, images: images, content: contentDir, drafts: draftsDir}
}

func (f *fixture) writeDraft(t *testing.T, name, text string) string {
	t.Helper()
	path := filepath.Join(f.drafts, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

const caseDraft = "See {{image: https://ex.com/a.jpg | alt: test | caption: photo}} and https://ex.com/b.pdf"

const mediaResponse = "```json\n" + `[
  {"source_url": "https://ex.com/a.jpg", "alt": "test", "caption": "photo"},
  {"source_url": "https://ex.com/b.pdf", "title": "Incident report", "description": "Report filed after the incident"}
]` + "\n```"

const caseResponse = "```json\n" + `{
  "victim_name": "John Doe",
  "title": "Shooting of John Doe",
  "date": "2024-03-01",
  "gender": "male",
  "armed_status": "unarmed",
  "fleeing": "not_fleeing",
  "geography": "urban",
  "agencies": ["lapd"],
  "tags": ["bodycam"]
}` + "\n```"

func TestRunPublishesCaseEndToEnd(t *testing.T) {
	ai := &scriptedAI{t: t, script: []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
		respond(mediaResponse),
		respond(caseResponse),
		echoContent,
	}}
	f := newFixture(t, ai)
	ctx := context.Background()

	// Canonical spelling already on file for one agency.
	norm := registry.New(f.repo)
	_, err := norm.Ensure(ctx, model.ListAgencies, []string{"LAPD"})
	require.NoError(t, err)

	draft := f.writeDraft(t, "john-doe.md", caseDraft)
	run, err := f.pipeline.Run(ctx, draft, RunOptions{Kind: model.DraftCase})
	require.NoError(t, err)
	assert.Equal(t, model.RunStateDone, run.State)
	assert.Equal(t, "shooting-of-john-doe", run.Slug)
	assert.Equal(t, 3, ai.calls)

	// Content file carries the validated frontmatter and the echoed
	// snippets.
	target := filepath.Join(f.content, "cases", "shooting-of-john-doe.md")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	var meta model.CaseMetadata
	body, err := frontmatter.Parse(data, &meta)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", meta.VictimName)
	assert.Equal(t, []string{"LAPD"}, meta.Agencies, "registry spelling wins over the model's")
	assert.Contains(t, string(body), "{{image: img_")
	assert.Contains(t, string(body), "src: https://res.example/incidents/a.jpg")
	assert.Contains(t, string(body), "{{document: doc_")
	assert.Contains(t, string(body), "title: Incident report")

	// Draft retired in place.
	assert.NoFileExists(t, draft)
	renamed, err := filepath.Glob(filepath.Join(f.drafts, "pub_*_john-doe.md"))
	require.NoError(t, err)
	assert.Len(t, renamed, 1)

	// Library gained exactly the two uploaded assets.
	lib, err := f.repo.LoadLibrary(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.Images, 1)
	assert.Len(t, lib.Documents, 1)
	assert.Empty(t, lib.Videos)

	// New tag appended to the registry.
	reg, err := f.repo.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bodycam"}, reg.CaseTags)

	runs, err := f.repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateDone, runs[0].State)
}

func TestRunSecondRunReusesLibraryAssets(t *testing.T) {
	ai := &scriptedAI{t: t, script: []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
		respond(mediaResponse), respond(caseResponse), echoContent,
		respond(mediaResponse), respond(caseResponse), echoContent,
	}}
	f := newFixture(t, ai)
	ctx := context.Background()

	first := f.writeDraft(t, "first.md", caseDraft)
	_, err := f.pipeline.Run(ctx, first, RunOptions{Kind: model.DraftCase})
	require.NoError(t, err)

	lib, err := f.repo.LoadLibrary(ctx)
	require.NoError(t, err)
	firstID := lib.Images[0].ID

	// Same media in a new draft: nothing re-uploads, same asset ids.
	second := f.writeDraft(t, "second.md", caseDraft)
	_, err = f.pipeline.Run(ctx, second, RunOptions{Kind: model.DraftCase, Force: true})
	require.NoError(t, err)

	lib, err = f.repo.LoadLibrary(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.Images, 1)
	assert.Len(t, lib.Documents, 1)
	assert.Equal(t, firstID, lib.Images[0].ID)
	assert.Equal(t, 1, f.images.calls)
}

func TestRunSentinelAbort(t *testing.T) {
	ai := &scriptedAI{t: t, script: []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
		respond(`{"error": true, "message": "no usable context for item 1"}`),
	}}
	f := newFixture(t, ai)
	ctx := context.Background()

	draft := f.writeDraft(t, "stalled.md", caseDraft)
	run, err := f.pipeline.Run(ctx, draft, RunOptions{Kind: model.DraftCase})

	var sentinel *SentinelModelError
	require.ErrorAs(t, err, &sentinel)
	assert.Equal(t, model.RunStateFailed, run.State)

	// Nothing written, nothing renamed.
	assert.NoDirExists(t, filepath.Join(f.content, "cases"))
	assert.FileExists(t, draft)

	runs, err := f.repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStateFailed, runs[0].State)
	assert.Contains(t, runs[0].Error, "no usable context")
}

func TestRunValidationFailureAborts(t *testing.T) {
	// Image metadata missing the required alt.
	bad := "```json\n" + `[
  {"source_url": "https://ex.com/a.jpg", "caption": "photo"},
  {"source_url": "https://ex.com/b.pdf", "title": "Report", "description": "Filed report"}
]` + "\n```"
	ai := &scriptedAI{t: t, script: []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
		respond(bad),
		respond(caseResponse),
	}}
	f := newFixture(t, ai)
	ctx := context.Background()

	draft := f.writeDraft(t, "invalid.md", caseDraft)
	_, err := f.pipeline.Run(ctx, draft, RunOptions{Kind: model.DraftCase})

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	require.Len(t, schemaErr.Violations, 1)
	assert.Equal(t, "alt", schemaErr.Violations[0].Field)

	// Uploads happened before validation; the library keeps them, the
	// content tree stays clean.
	lib, err := f.repo.LoadLibrary(ctx)
	require.NoError(t, err)
	assert.Len(t, lib.Images, 1)
	assert.NoDirExists(t, filepath.Join(f.content, "cases"))
	assert.FileExists(t, draft)
}

func TestRunWriteConflict(t *testing.T) {
	script := func() []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
		return []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
			respond(mediaResponse), respond(caseResponse), echoContent,
		}
	}

	t.Run("unconfirmed conflict fails the run", func(t *testing.T) {
		ai := &scriptedAI{t: t, script: script()}
		f := newFixture(t, ai)
		target := filepath.Join(f.content, "cases", "shooting-of-john-doe.md")
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))

		draft := f.writeDraft(t, "dupe.md", caseDraft)
		_, err := f.pipeline.Run(context.Background(), draft, RunOptions{Kind: model.DraftCase})

		var conflict *WriteConflict
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, target, conflict.Path)
		assert.FileExists(t, draft)

		data, readErr := os.ReadFile(target)
		require.NoError(t, readErr)
		assert.Equal(t, "existing", string(data))
	})

	t.Run("confirmation overwrites", func(t *testing.T) {
		ai := &scriptedAI{t: t, script: script()}
		f := newFixture(t, ai)
		target := filepath.Join(f.content, "cases", "shooting-of-john-doe.md")
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))

		var asked string
		draft := f.writeDraft(t, "dupe.md", caseDraft)
		run, err := f.pipeline.Run(context.Background(), draft, RunOptions{
			Kind:             model.DraftCase,
			ConfirmOverwrite: func(path string) bool { asked = path; return true },
		})
		require.NoError(t, err)
		assert.Equal(t, model.RunStateDone, run.State)
		assert.Equal(t, target, asked)

		data, readErr := os.ReadFile(target)
		require.NoError(t, readErr)
		assert.Contains(t, string(data), "Generated article body.")
	})
}

func TestRunRefusesPublishedDraft(t *testing.T) {
	ai := &scriptedAI{t: t}
	f := newFixture(t, ai)

	draft := f.writeDraft(t, "pub_1700000000_done.md", "already published")
	_, err := f.pipeline.Run(context.Background(), draft, RunOptions{Kind: model.DraftCase})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already published")

	runs, err := f.repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunPostDraftWithoutMedia(t *testing.T) {
	postResp := "```json\n" + `{"title": "Weekly Roundup", "description": "The week in review", "tags": ["roundup"]}` + "\n```"
	ai := &scriptedAI{t: t, script: []func(anthropic.MessageRequest) (*anthropic.MessageResponse, error){
		respond(postResp),
		respond("```markdown\nPost body.\n```"),
	}}
	f := newFixture(t, ai)
	ctx := context.Background()

	draft := f.writeDraft(t, "roundup.md", "A plain post draft with no media references.")
	run, err := f.pipeline.Run(ctx, draft, RunOptions{Kind: model.DraftPost})
	require.NoError(t, err)
	assert.Equal(t, "weekly-roundup", run.Slug)
	assert.Equal(t, 2, ai.calls, "no media metadata call for a media-free draft")

	assert.FileExists(t, filepath.Join(f.content, "posts", "weekly-roundup.md"))

	reg, err := f.repo.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"roundup"}, reg.PostTags)
}
