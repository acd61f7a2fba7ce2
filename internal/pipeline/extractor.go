package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/pkg/anthropic"
)

// Extractor runs the stage-1 metadata calls against the Anthropic API. All
// three extractions share the cached content-schema system prompt.
type Extractor struct {
	ai     anthropic.Client
	cfg    config.AnthropicConfig
	prompt config.PromptConfig
	system []anthropic.SystemBlock
}

// NewExtractor builds an Extractor. schemaText is the content-schema
// description embedded verbatim as the system prompt.
func NewExtractor(ai anthropic.Client, cfg config.AnthropicConfig, prompt config.PromptConfig, schemaText string) *Extractor {
	return &Extractor{
		ai:     ai,
		cfg:    cfg,
		prompt: prompt,
		system: anthropic.BuildCachedSystemBlocks(schemaText),
	}
}

func (e *Extractor) complete(ctx context.Context, phase, prompt string) (string, error) {
	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.MetadataModel,
		MaxTokens: e.cfg.MetadataTokens,
		System:    e.system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: %s request", phase)
	}
	resp.Usage.LogCost(e.cfg.MetadataModel, phase)
	return resp.Text(), nil
}

// ExtractMediaMetadata produces descriptive metadata for every scanned
// media item, in item order.
func (e *Extractor) ExtractMediaMetadata(ctx context.Context, draft string, items []model.MediaItem) ([]model.MediaMetadata, error) {
	if len(items) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(mediaMetadataPrompt, formatMediaItems(draft, items, e.prompt.ContextRadius))
	text, err := e.complete(ctx, "media metadata", prompt)
	if err != nil {
		return nil, err
	}

	metas, err := parseMediaMetadata(text)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("media metadata extracted",
		zap.Int("items", len(items)),
		zap.Int("returned", len(metas)),
	)
	return metas, nil
}

// ExtractCaseMetadata produces the structured case record for a case draft.
func (e *Extractor) ExtractCaseMetadata(ctx context.Context, draft string, reg *model.Registry) (*model.CaseMetadata, error) {
	lists := formatRegistryLists(reg,
		model.ListAgencies,
		model.ListCounties,
		model.ListForceTypes,
		model.ListThreatLevels,
		model.ListInvestigationStatuses,
		model.ListCaseTags,
	)
	prompt := fmt.Sprintf(caseMetadataPrompt, inferenceRules, lists, truncateDraft(draft, e.prompt.MaxDraftChars))

	text, err := e.complete(ctx, "case metadata", prompt)
	if err != nil {
		return nil, err
	}

	var meta model.CaseMetadata
	if err := parseObjectMetadata(text, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ExtractPostMetadata produces the structured post record for a post draft.
func (e *Extractor) ExtractPostMetadata(ctx context.Context, draft string, reg *model.Registry) (*model.PostMetadata, error) {
	lists := formatRegistryLists(reg, model.ListPostTags)
	prompt := fmt.Sprintf(postMetadataPrompt, inferenceRules, lists, truncateDraft(draft, e.prompt.MaxDraftChars))

	text, err := e.complete(ctx, "post metadata", prompt)
	if err != nil {
		return nil, err
	}

	var meta model.PostMetadata
	if err := parseObjectMetadata(text, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
