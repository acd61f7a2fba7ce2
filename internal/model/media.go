package model

// MediaType classifies a scanned media reference.
type MediaType string

const (
	MediaVideo    MediaType = "video"
	MediaImage    MediaType = "image"
	MediaDocument MediaType = "document"
	MediaLink     MediaType = "link"
)

// MediaItem is a single media reference extracted from a draft. It is
// transient: produced by the scanner, consumed by the uploader and the
// metadata extraction stage.
type MediaItem struct {
	SourceURL  string          `json:"source_url"`
	Type       MediaType       `json:"type"`
	Params     ComponentParams `json:"params"`
	Confidence float64         `json:"confidence"`
}

// ComponentParams is a tagged variant of type-specific embed parameters.
// Exactly one of the pointer members matches Type; consumers switch on Type
// exhaustively instead of reaching into an untyped map.
type ComponentParams struct {
	Type     MediaType       `json:"type"`
	Video    *VideoParams    `json:"video,omitempty"`
	Image    *ImageParams    `json:"image,omitempty"`
	Document *DocumentParams `json:"document,omitempty"`
	Link     *LinkParams     `json:"link,omitempty"`
}

// VideoParams holds embed parameters for a video component.
type VideoParams struct {
	Caption  string `json:"caption,omitempty"`
	Autoplay bool   `json:"autoplay,omitempty"`
	Muted    bool   `json:"muted,omitempty"`
}

// ImageParams holds embed parameters for an image component.
type ImageParams struct {
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// DocumentParams holds embed parameters for a document component.
type DocumentParams struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// LinkParams holds embed parameters for an external link component.
type LinkParams struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Icon        LinkIcon `json:"icon,omitempty"`
}

// VideoComponentParams builds the tagged variant for a video.
func VideoComponentParams(p VideoParams) ComponentParams {
	return ComponentParams{Type: MediaVideo, Video: &p}
}

// ImageComponentParams builds the tagged variant for an image.
func ImageComponentParams(p ImageParams) ComponentParams {
	return ComponentParams{Type: MediaImage, Image: &p}
}

// DocumentComponentParams builds the tagged variant for a document.
func DocumentComponentParams(p DocumentParams) ComponentParams {
	return ComponentParams{Type: MediaDocument, Document: &p}
}

// LinkComponentParams builds the tagged variant for a link.
func LinkComponentParams(p LinkParams) ComponentParams {
	return ComponentParams{Type: MediaLink, Link: &p}
}
