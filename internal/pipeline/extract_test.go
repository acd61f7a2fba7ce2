package pipeline

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/pkg/anthropic"
)

type mockAI struct {
	mock.Mock
}

func (m *mockAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
	}
}

func testExtractor(ai anthropic.Client) *Extractor {
	return NewExtractor(ai, config.AnthropicConfig{
		MetadataModel:  "claude-sonnet-4-5-20250929",
		MetadataTokens: 4096,
	}, config.PromptConfig{ContextRadius: 100, MaxDraftChars: 10000}, "schema text")
}

func TestParseMediaMetadata(t *testing.T) {
	t.Run("fenced array", func(t *testing.T) {
		metas, err := parseMediaMetadata("Here you go:\n```json\n[{\"source_url\": \"https://ex.com/a.jpg\", \"alt\": \"a photo\"}]\n```\n")
		require.NoError(t, err)
		require.Len(t, metas, 1)
		assert.Equal(t, "https://ex.com/a.jpg", metas[0].SourceURL)
		assert.Equal(t, "a photo", metas[0].Alt)
	})

	t.Run("bare array without fence", func(t *testing.T) {
		metas, err := parseMediaMetadata(`[{"source_url": "u", "caption": "c"}]`)
		require.NoError(t, err)
		require.Len(t, metas, 1)
	})

	t.Run("sentinel aborts", func(t *testing.T) {
		_, err := parseMediaMetadata(`{"error": true, "message": "no context for item 2"}`)
		var sentinel *SentinelModelError
		require.ErrorAs(t, err, &sentinel)
		assert.Equal(t, "no context for item 2", sentinel.Message)
	})

	t.Run("no block", func(t *testing.T) {
		_, err := parseMediaMetadata("I could not find any media items.")
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "json array", parseErr.Want)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := parseMediaMetadata(`[{"source_url": "u", "mood": "somber"}]`)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Reason, "mood")
	})
}

func TestParseObjectMetadata(t *testing.T) {
	t.Run("case object", func(t *testing.T) {
		var meta model.CaseMetadata
		err := parseObjectMetadata("```json\n{\"victim_name\": \"John Doe\", \"title\": \"T\", \"date\": \"2024-03-01\"}\n```", &meta)
		require.NoError(t, err)
		assert.Equal(t, "John Doe", meta.VictimName)
	})

	t.Run("sentinel wins over decode", func(t *testing.T) {
		var meta model.CaseMetadata
		err := parseObjectMetadata("```json\n{\"error\": true, \"message\": \"victim name not stated\"}\n```", &meta)
		var sentinel *SentinelModelError
		require.ErrorAs(t, err, &sentinel)
	})

	t.Run("missing object", func(t *testing.T) {
		var meta model.PostMetadata
		err := parseObjectMetadata("no json here", &meta)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}

func TestParseContent(t *testing.T) {
	body, err := parseContent("Sure.\n```markdown\n# Heading\n\nBody text.\n```\n")
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nBody text.\n", body)

	_, err = parseContent("Here is the article without a fence.")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "content", parseErr.Want)
}

func TestContextWindow(t *testing.T) {
	draft := "Intro text before the link https://ex.com/a.jpg and trailing text after it."
	window := contextWindow(draft, "https://ex.com/a.jpg", 20)
	assert.Contains(t, window, "https://ex.com/a.jpg")
	assert.Contains(t, window, "before the")
	assert.NotContains(t, window, "Intro")

	assert.Empty(t, contextWindow(draft, "https://absent.example", 12))

	// Two occurrences produce two joined windows.
	double := "first https://ex.com/x then later again https://ex.com/x end"
	assert.Contains(t, contextWindow(double, "https://ex.com/x", 8), "\n...\n")
}

func TestContextWindowKeepsRuneBoundaries(t *testing.T) {
	// Accented text on both sides of the URL; odd radii land the window
	// edges inside the two-byte runes.
	draft := "Peña José wrote about https://ex.com/x in Cañón City afterwards"
	for _, radius := range []int{1, 3, 5, 7, 9, 11} {
		window := contextWindow(draft, "https://ex.com/x", radius)
		assert.True(t, utf8.ValidString(window), "radius %d: %q", radius, window)
		assert.Contains(t, window, "https://ex.com/x")
	}
}

func TestExtractMediaMetadata(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-sonnet-4-5-20250929" && req.MaxTokens == 4096 && len(req.System) == 1
	})).Return(textResponse("```json\n[{\"source_url\": \"https://ex.com/a.jpg\", \"alt\": \"test\"}]\n```"), nil)

	e := testExtractor(ai)
	items := []model.MediaItem{{SourceURL: "https://ex.com/a.jpg", Type: model.MediaImage}}
	metas, err := e.ExtractMediaMetadata(context.Background(), "See https://ex.com/a.jpg here", items)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "test", metas[0].Alt)
	ai.AssertExpectations(t)
}

func TestExtractMediaMetadataNoItems(t *testing.T) {
	ai := new(mockAI)
	e := testExtractor(ai)
	metas, err := e.ExtractMediaMetadata(context.Background(), "plain draft", nil)
	require.NoError(t, err)
	assert.Nil(t, metas)
	ai.AssertNotCalled(t, "CreateMessage")
}

func TestExtractCaseMetadataAPIError(t *testing.T) {
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	e := testExtractor(ai)
	_, err := e.ExtractCaseMetadata(context.Background(), "draft", &model.Registry{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case metadata")
}

func TestExtractCaseMetadataIncludesLists(t *testing.T) {
	var captured string
	ai := new(mockAI)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(anthropic.MessageRequest)
		captured = req.Messages[0].Content
	}).Return(textResponse("```json\n{\"victim_name\": \"A\", \"title\": \"T\", \"date\": \"2024-01-01\"}\n```"), nil)

	e := testExtractor(ai)
	reg := &model.Registry{Agencies: []string{"Los Angeles Police Department"}}
	_, err := e.ExtractCaseMetadata(context.Background(), "draft", reg)
	require.NoError(t, err)
	assert.Contains(t, captured, "Los Angeles Police Department")
	assert.Contains(t, captured, "counties: (none yet)")
}
