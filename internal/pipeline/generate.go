package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/forcewatch/publish-cli/internal/config"
	"github.com/forcewatch/publish-cli/internal/model"
	"github.com/forcewatch/publish-cli/pkg/anthropic"
)

// Generator runs the stage-2 content call. The metadata object from stage 1
// is forwarded verbatim, and every uploaded asset is rendered as a
// ready-to-embed snippet the model must echo unchanged.
type Generator struct {
	ai     anthropic.Client
	cfg    config.AnthropicConfig
	prompt config.PromptConfig
	system []anthropic.SystemBlock
}

// NewGenerator builds a Generator sharing the cached schema system prompt
// with the extraction stage.
func NewGenerator(ai anthropic.Client, cfg config.AnthropicConfig, prompt config.PromptConfig, schemaText string) *Generator {
	return &Generator{
		ai:     ai,
		cfg:    cfg,
		prompt: prompt,
		system: anthropic.BuildCachedSystemBlocks(schemaText),
	}
}

// GenerateContent produces the final article body. metadata is the
// already-validated stage-1 record (case or post), assets maps source URLs
// to uploaded assets (nil for links), and metas carries the stage-1 media
// metadata keyed into each snippet.
func (g *Generator) GenerateContent(ctx context.Context, kind model.DraftKind, metadata any, draft string, items []model.MediaItem, assets map[string]*model.LibraryAsset, metas []model.MediaMetadata) (string, error) {
	metaJSON, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "pipeline: marshal metadata for prompt")
	}

	snippets := RenderSnippets(items, assets, metas)
	prompt := fmt.Sprintf(contentPrompt,
		kind,
		string(metaJSON),
		strings.Join(snippets, "\n"),
		truncateDraft(draft, g.prompt.MaxDraftChars),
	)

	resp, err := g.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.ContentModel,
		MaxTokens: g.cfg.MaxTokens,
		System:    g.system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: content request")
	}
	resp.Usage.LogCost(g.cfg.ContentModel, "content")

	return parseContent(resp.Text())
}

// RenderSnippets builds the final embed snippet for every scanned item, in
// item order. Stage-1 metadata overrides the parameters scanned from the
// draft; the asset contributes the id and provider-derived URLs.
func RenderSnippets(items []model.MediaItem, assets map[string]*model.LibraryAsset, metas []model.MediaMetadata) []string {
	byURL := make(map[string]model.MediaMetadata, len(metas))
	for _, m := range metas {
		byURL[m.SourceURL] = m
	}

	var out []string
	for _, item := range items {
		meta := byURL[item.SourceURL]
		asset := assets[item.SourceURL]
		if item.Type == model.MediaLink {
			out = append(out, renderLink(item, meta))
			continue
		}
		if asset == nil {
			continue
		}
		out = append(out, renderAsset(item, asset, meta))
	}
	return out
}

// snippet assembles a {{type: head | key: value | ...}} embed, skipping
// empty values.
type snippet struct {
	typ   model.MediaType
	head  string
	pairs []string
}

func (s *snippet) add(key, value string) {
	if value == "" {
		return
	}
	s.pairs = append(s.pairs, fmt.Sprintf("%s: %s", key, value))
}

func (s *snippet) addBool(key string, value bool) {
	if value {
		s.pairs = append(s.pairs, key+": true")
	}
}

func (s *snippet) String() string {
	parts := append([]string{fmt.Sprintf("%s: %s", s.typ, s.head)}, s.pairs...)
	return "{{" + strings.Join(parts, " | ") + "}}"
}

func renderAsset(item model.MediaItem, asset *model.LibraryAsset, meta model.MediaMetadata) string {
	s := snippet{typ: item.Type, head: asset.ID}

	switch item.Type {
	case model.MediaVideo:
		s.add("stream", asset.URLs.Stream)
		s.add("embed", asset.URLs.Embed)
		s.add("thumbnail", asset.URLs.Thumbnail)
		s.add("caption", firstNonEmpty(meta.Caption, videoCaption(item)))
		if item.Params.Video != nil {
			s.addBool("autoplay", item.Params.Video.Autoplay)
			s.addBool("muted", item.Params.Video.Muted)
		}
	case model.MediaImage:
		s.add("src", asset.URLs.Public)
		s.add("thumbnail", asset.URLs.Thumbnail)
		s.add("medium", asset.URLs.Medium)
		s.add("large", asset.URLs.Large)
		var alt, caption string
		if item.Params.Image != nil {
			alt, caption = item.Params.Image.Alt, item.Params.Image.Caption
		}
		s.add("alt", firstNonEmpty(meta.Alt, alt))
		s.add("caption", firstNonEmpty(meta.Caption, caption))
	case model.MediaDocument:
		s.add("url", asset.URLs.Public)
		var title, desc string
		if item.Params.Document != nil {
			title, desc = item.Params.Document.Title, item.Params.Document.Description
		}
		s.add("title", firstNonEmpty(meta.Title, title))
		s.add("description", firstNonEmpty(meta.Description, desc))
	}
	return s.String()
}

func renderLink(item model.MediaItem, meta model.MediaMetadata) string {
	s := snippet{typ: model.MediaLink, head: item.SourceURL}

	var title, desc string
	var icon model.LinkIcon
	if item.Params.Link != nil {
		title, desc, icon = item.Params.Link.Title, item.Params.Link.Description, item.Params.Link.Icon
	}
	s.add("title", firstNonEmpty(meta.Title, title))
	s.add("description", firstNonEmpty(meta.Description, desc))
	if meta.Icon != "" {
		icon = meta.Icon
	}
	s.add("icon", string(icon))
	return s.String()
}

func videoCaption(item model.MediaItem) string {
	if item.Params.Video == nil {
		return ""
	}
	return item.Params.Video.Caption
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
