package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DerivedURLs holds provider-derived URLs for an uploaded asset. Which
// members are populated depends on the asset type: images get
// thumbnail/medium/large/public, videos get stream/embed/thumbnail, documents
// get public only.
type DerivedURLs struct {
	Public    string `json:"public,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Large     string `json:"large,omitempty"`
	Stream    string `json:"stream,omitempty"`
	Embed     string `json:"embed,omitempty"`
}

// LibraryAsset is one uploaded media record in the library. At most one
// asset exists per exact source URL string, across all three buckets.
type LibraryAsset struct {
	ID          string          `json:"id"`
	Type        MediaType       `json:"type"`
	SourceURL   string          `json:"source_url"`
	ProviderID  string          `json:"provider_id"`
	FileName    string          `json:"file_name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	URLs        DerivedURLs     `json:"urls"`
	Component   ComponentParams `json:"component"`
	Tags        []string        `json:"tags,omitempty"`
	AddedAt     time.Time       `json:"added_at"`
}

// assetIDPrefix maps asset types to their id prefixes.
var assetIDPrefix = map[MediaType]string{
	MediaVideo:    "vid",
	MediaImage:    "img",
	MediaDocument: "doc",
}

// NewAssetID allocates a type-prefixed unique asset id, e.g. "img_3f2a...".
func NewAssetID(t MediaType) string {
	prefix, ok := assetIDPrefix[t]
	if !ok {
		prefix = "ast"
	}
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Library is the on-disk shape of the media library: three type buckets.
type Library struct {
	Videos    []LibraryAsset `json:"videos"`
	Images    []LibraryAsset `json:"images"`
	Documents []LibraryAsset `json:"documents"`
}

// All returns every asset across the three buckets, videos first.
func (l *Library) All() []LibraryAsset {
	out := make([]LibraryAsset, 0, len(l.Videos)+len(l.Images)+len(l.Documents))
	out = append(out, l.Videos...)
	out = append(out, l.Images...)
	out = append(out, l.Documents...)
	return out
}
