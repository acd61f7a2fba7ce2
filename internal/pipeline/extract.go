package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/forcewatch/publish-cli/internal/model"
)

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")

// fencedBlock returns the contents of the first fenced block in text. When
// no fence exists it falls back to the outermost bracket structure matching
// open/close, which tolerates models that skip the fence.
func fencedBlock(text string, open, close byte) (string, bool) {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" {
			return candidate, true
		}
	}

	start := strings.IndexByte(text, open)
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeStrict is the deserialization boundary for model output: unknown
// fields are rejected rather than dropped, so a drifting response shape
// fails loudly instead of silently losing data.
func decodeStrict(raw string, out any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// checkSentinel reports the sentinel payload {"error":true,"message":...}
// if raw carries one.
func checkSentinel(raw string) *SentinelModelError {
	var s model.Sentinel
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil
	}
	if !s.Error {
		return nil
	}
	return &SentinelModelError{Message: s.Message}
}

// parseMediaMetadata extracts the stage-1 per-media metadata array from a
// raw model response.
func parseMediaMetadata(text string) ([]model.MediaMetadata, error) {
	// Sentinel objects take precedence over a missing array.
	if obj, ok := fencedBlock(text, '{', '}'); ok {
		if sentinel := checkSentinel(obj); sentinel != nil {
			return nil, sentinel
		}
	}

	raw, ok := fencedBlock(text, '[', ']')
	if !ok {
		return nil, &ParseError{Want: "json array"}
	}

	var metas []model.MediaMetadata
	if err := decodeStrict(raw, &metas); err != nil {
		return nil, &ParseError{Want: "json array", Reason: err.Error()}
	}
	return metas, nil
}

// parseObjectMetadata extracts a stage-1 object (case or post metadata),
// detecting the sentinel first.
func parseObjectMetadata(text string, out any) error {
	raw, ok := fencedBlock(text, '{', '}')
	if !ok {
		return &ParseError{Want: "json object"}
	}
	if sentinel := checkSentinel(raw); sentinel != nil {
		return sentinel
	}
	if err := decodeStrict(raw, out); err != nil {
		return &ParseError{Want: "json object", Reason: err.Error()}
	}
	return nil
}

// parseContent extracts the stage-2 fenced article body. Absence is a hard
// error; there is no bracket fallback for prose.
func parseContent(text string) (string, error) {
	m := fenceRe.FindStringSubmatch(text)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return "", &ParseError{Want: "content"}
	}
	return strings.TrimSpace(m[1]) + "\n", nil
}

// contextWindow collects a bounded excerpt around each occurrence of needle
// in the draft. Prompts carry these instead of the full document.
func contextWindow(draft, needle string, radius int) string {
	if radius <= 0 {
		radius = 300
	}
	var windows []string
	offset := 0
	for {
		idx := strings.Index(draft[offset:], needle)
		if idx < 0 {
			break
		}
		idx += offset
		start := idx - radius
		if start < 0 {
			start = 0
		}
		end := idx + len(needle) + radius
		if end > len(draft) {
			end = len(draft)
		}
		// Byte offsets can land inside a multi-byte rune; widen to the
		// nearest rune boundaries so the excerpt stays valid UTF-8.
		for start > 0 && !utf8.RuneStart(draft[start]) {
			start--
		}
		for end < len(draft) && !utf8.RuneStart(draft[end]) {
			end++
		}
		windows = append(windows, strings.TrimSpace(draft[start:end]))
		offset = idx + len(needle)
	}
	if len(windows) == 0 {
		return ""
	}
	return strings.Join(windows, "\n...\n")
}

// formatMediaItems renders the scanned items with their draft context for
// the media metadata prompt.
func formatMediaItems(draft string, items []model.MediaItem, radius int) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. type=%s source_url=%s\n", i+1, item.Type, item.SourceURL)
		if window := contextWindow(draft, item.SourceURL, radius); window != "" {
			fmt.Fprintf(&b, "   context: %s\n", window)
		}
	}
	return b.String()
}

// formatRegistryLists renders the named registry lists for a prompt.
func formatRegistryLists(reg *model.Registry, names ...model.ListName) string {
	var b strings.Builder
	for _, name := range names {
		entries := reg.List(name)
		if len(entries) == 0 {
			fmt.Fprintf(&b, "%s: (none yet)\n", name)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(entries, "; "))
	}
	return b.String()
}

// truncateDraft bounds the draft text included in prompts.
func truncateDraft(draft string, maxChars int) string {
	if maxChars <= 0 || len(draft) <= maxChars {
		return draft
	}
	return draft[:maxChars]
}
