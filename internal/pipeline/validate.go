package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/forcewatch/publish-cli/internal/model"
)

// Word limits for media metadata fields.
const (
	maxAltWords         = 15
	maxCaptionWords     = 25
	maxTitleWords       = 8
	maxDescriptionWords = 30
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// ValidateMediaMetadata checks every returned metadata object against the
// per-type field contract. It walks all items and collects every violation
// before failing, so one pass surfaces the full repair list.
func ValidateMediaMetadata(items []model.MediaItem, metas []model.MediaMetadata) error {
	var violations []Violation

	byURL := make(map[string]model.MediaMetadata, len(metas))
	for _, m := range metas {
		byURL[m.SourceURL] = m
	}

	for _, item := range items {
		meta, ok := byURL[item.SourceURL]
		if !ok {
			violations = append(violations, Violation{
				SourceURL: item.SourceURL,
				Field:     "source_url",
				Rule:      "no metadata returned for this item",
			})
			continue
		}
		violations = append(violations, validateMediaItem(item.Type, meta)...)
	}

	if len(violations) > 0 {
		return &SchemaValidationError{Violations: violations}
	}
	return nil
}

func validateMediaItem(t model.MediaType, meta model.MediaMetadata) []Violation {
	var out []Violation

	required := func(field, value string) bool {
		if strings.TrimSpace(value) == "" {
			out = append(out, Violation{SourceURL: meta.SourceURL, Field: field, Rule: "required"})
			return false
		}
		return true
	}
	limit := func(field, value string, max int) {
		if n := wordCount(value); n > max {
			out = append(out, Violation{
				SourceURL: meta.SourceURL,
				Field:     field,
				Rule:      fmt.Sprintf("%d words, limit %d", n, max),
			})
		}
	}

	switch t {
	case model.MediaImage:
		if required("alt", meta.Alt) {
			limit("alt", meta.Alt, maxAltWords)
		}
		limit("caption", meta.Caption, maxCaptionWords)
	case model.MediaVideo:
		limit("caption", meta.Caption, maxCaptionWords)
	case model.MediaDocument:
		if required("title", meta.Title) {
			limit("title", meta.Title, maxTitleWords)
		}
		if required("description", meta.Description) {
			limit("description", meta.Description, maxDescriptionWords)
		}
	case model.MediaLink:
		limit("title", meta.Title, maxTitleWords)
		limit("description", meta.Description, maxDescriptionWords)
		switch meta.Icon {
		case "", model.LinkIconVideo, model.LinkIconNews, model.LinkIconGeneric:
		default:
			out = append(out, Violation{
				SourceURL: meta.SourceURL,
				Field:     "icon",
				Rule:      fmt.Sprintf("%q is not one of video, news, generic", meta.Icon),
			})
		}
	}
	return out
}

// ValidateCaseMetadata checks the required fields and closed enums of a
// case record. Open-vocabulary fields are not checked here; they pass
// through registry normalization instead.
func ValidateCaseMetadata(meta *model.CaseMetadata) error {
	var violations []Violation

	add := func(field, rule string) {
		violations = append(violations, Violation{Field: field, Rule: rule})
	}

	if strings.TrimSpace(meta.VictimName) == "" {
		add("victim_name", "required")
	}
	if strings.TrimSpace(meta.Title) == "" {
		add("title", "required")
	}
	if strings.TrimSpace(meta.Date) == "" {
		add("date", "required")
	} else if !isoDateRe.MatchString(meta.Date) {
		add("date", fmt.Sprintf("%q is not an ISO 8601 date", meta.Date))
	}

	switch meta.Gender {
	case "", model.GenderMale, model.GenderFemale, model.GenderNonbinary, model.GenderUnknown:
	default:
		add("gender", fmt.Sprintf("%q is not a known gender value", meta.Gender))
	}
	switch meta.ArmedStatus {
	case "", model.ArmedStatusArmed, model.ArmedStatusUnarmed, model.ArmedStatusUncertain:
	default:
		add("armed_status", fmt.Sprintf("%q is not a known armed status", meta.ArmedStatus))
	}
	switch meta.Fleeing {
	case "", model.FleeingNot, model.FleeingFoot, model.FleeingCar, model.FleeingOther, model.FleeingUnknown:
	default:
		add("fleeing", fmt.Sprintf("%q is not a known fleeing status", meta.Fleeing))
	}
	switch meta.Geography {
	case "", model.GeographyRural, model.GeographySuburban, model.GeographyUrban:
	default:
		add("geography", fmt.Sprintf("%q is not a known geography", meta.Geography))
	}

	if len(violations) > 0 {
		return &SchemaValidationError{Violations: violations}
	}
	return nil
}

// ValidatePostMetadata checks the required fields of a post record.
func ValidatePostMetadata(meta *model.PostMetadata) error {
	if strings.TrimSpace(meta.Title) == "" {
		return &SchemaValidationError{Violations: []Violation{
			{Field: "title", Rule: "required"},
		}}
	}
	return nil
}
