// Package scanner extracts and categorizes media references from draft text.
package scanner

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/forcewatch/publish-cli/internal/model"
)

// shortcodePattern matches inline embeds: {{type: url | key: value | ...}}.
var shortcodePattern = regexp.MustCompile(`\{\{\s*(video|image|document|link)\s*:\s*([^|{}]+?)\s*(\|[^{}]*)?\}\}`)

// bareURLPattern matches plain http(s) tokens, including the target of
// markdown links.
var bareURLPattern = regexp.MustCompile(`https?://[^\s)\]}"'<>]+`)

// extensionTypes maps lowercase file extensions to media types. Anything
// unmatched falls through to link.
var extensionTypes = map[string]model.MediaType{
	".mp4":  model.MediaVideo,
	".mov":  model.MediaVideo,
	".avi":  model.MediaVideo,
	".webm": model.MediaVideo,
	".mkv":  model.MediaVideo,
	".m4v":  model.MediaVideo,
	".jpg":  model.MediaImage,
	".jpeg": model.MediaImage,
	".png":  model.MediaImage,
	".gif":  model.MediaImage,
	".webp": model.MediaImage,
	".avif": model.MediaImage,
	".svg":  model.MediaImage,
	".pdf":  model.MediaDocument,
	".doc":  model.MediaDocument,
	".docx": model.MediaDocument,
	".xls":  model.MediaDocument,
	".xlsx": model.MediaDocument,
	".ppt":  model.MediaDocument,
	".pptx": model.MediaDocument,
	".txt":  model.MediaDocument,
	".csv":  model.MediaDocument,
}

// confidence levels by extraction path.
const (
	confidenceShortcode = 1.0
	confidenceExtension = 0.8
	confidenceFallback  = 0.5
)

// Scan extracts every media reference from draft text. Output preserves
// first-occurrence order and is deduplicated by exact source URL string;
// URLs differing only by trailing slash or query string are distinct.
func Scan(draft string) []model.MediaItem {
	type located struct {
		offset int
		item   model.MediaItem
	}
	var found []located

	// Explicit shortcodes first, so a bare-URL match inside a shortcode span
	// never wins over the typed form.
	spans := shortcodePattern.FindAllStringSubmatchIndex(draft, -1)
	masked := []byte(draft)
	for _, m := range spans {
		typ := model.MediaType(draft[m[2]:m[3]])
		rawURL := strings.TrimSpace(draft[m[4]:m[5]])
		attrs := ""
		if m[6] >= 0 {
			attrs = draft[m[6]:m[7]]
		}
		found = append(found, located{
			offset: m[0],
			item: model.MediaItem{
				SourceURL:  rawURL,
				Type:       typ,
				Params:     buildParams(typ, parseAttrs(attrs)),
				Confidence: confidenceShortcode,
			},
		})
		for i := m[0]; i < m[1]; i++ {
			masked[i] = ' '
		}
	}

	// Bare URLs in the remaining text, classified by extension.
	for _, m := range bareURLPattern.FindAllStringIndex(string(masked), -1) {
		rawURL := trimTrailingPunct(draft[m[0]:m[1]])
		typ, conf := classify(rawURL)
		found = append(found, located{
			offset: m[0],
			item: model.MediaItem{
				SourceURL:  rawURL,
				Type:       typ,
				Params:     buildParams(typ, nil),
				Confidence: conf,
			},
		})
	}

	// Merge in document order. Shortcode and bare matches are each already
	// ordered, so a single stable insertion pass suffices.
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].offset < found[j-1].offset; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	// Exact-string dedup, first occurrence wins.
	seen := make(map[string]bool, len(found))
	var items []model.MediaItem
	for _, f := range found {
		if f.item.SourceURL == "" || seen[f.item.SourceURL] {
			continue
		}
		seen[f.item.SourceURL] = true
		items = append(items, f.item)
	}

	zap.L().Debug("scanner: scan complete",
		zap.Int("matches", len(found)),
		zap.Int("unique", len(items)),
	)
	return items
}

// parseAttrs splits the pipe-delimited attribute tail of a shortcode into
// key/value pairs, coercing "true"/"false" strings to booleans.
func parseAttrs(tail string) map[string]any {
	attrs := make(map[string]any)
	for _, part := range strings.Split(tail, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		switch v {
		case "true":
			attrs[key] = true
		case "false":
			attrs[key] = false
		default:
			attrs[key] = v
		}
	}
	return attrs
}

// buildParams projects raw shortcode attributes into the typed variant for
// the given media type. Unknown keys are dropped.
func buildParams(typ model.MediaType, attrs map[string]any) model.ComponentParams {
	str := func(key string) string {
		s, _ := attrs[key].(string)
		return s
	}
	boolean := func(key string) bool {
		b, _ := attrs[key].(bool)
		return b
	}

	switch typ {
	case model.MediaVideo:
		return model.VideoComponentParams(model.VideoParams{
			Caption:  str("caption"),
			Autoplay: boolean("autoplay"),
			Muted:    boolean("muted"),
		})
	case model.MediaImage:
		return model.ImageComponentParams(model.ImageParams{
			Alt:     str("alt"),
			Caption: str("caption"),
		})
	case model.MediaDocument:
		return model.DocumentComponentParams(model.DocumentParams{
			Title:       str("title"),
			Description: str("description"),
		})
	default:
		return model.LinkComponentParams(model.LinkParams{
			Title:       str("title"),
			Description: str("description"),
			Icon:        model.LinkIcon(str("icon")),
		})
	}
}

// classify buckets a bare URL by file extension; anything unmatched is a
// plain link.
func classify(rawURL string) (model.MediaType, float64) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.MediaLink, confidenceFallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if typ, ok := extensionTypes[ext]; ok {
		return typ, confidenceExtension
	}
	return model.MediaLink, confidenceFallback
}

// trimTrailingPunct strips sentence punctuation that the URL regex drags in
// when a URL ends a clause.
func trimTrailingPunct(rawURL string) string {
	return strings.TrimRight(rawURL, ".,;:!?")
}
