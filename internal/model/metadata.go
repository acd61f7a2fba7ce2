package model

// DraftKind distinguishes case drafts from post drafts.
type DraftKind string

const (
	DraftCase DraftKind = "case"
	DraftPost DraftKind = "post"
)

// Gender is a closed enum. Never routed through the registry.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonbinary Gender = "nonbinary"
	GenderUnknown   Gender = "unknown"
)

// ArmedStatus is a closed enum describing whether the subject was armed.
type ArmedStatus string

const (
	ArmedStatusArmed     ArmedStatus = "armed"
	ArmedStatusUnarmed   ArmedStatus = "unarmed"
	ArmedStatusUncertain ArmedStatus = "uncertain"
)

// Geography is a closed enum for the incident setting.
type Geography string

const (
	GeographyRural    Geography = "rural"
	GeographySuburban Geography = "suburban"
	GeographyUrban    Geography = "urban"
)

// FleeingStatus is a closed enum derived from the WaPo classification scheme.
type FleeingStatus string

const (
	FleeingNot     FleeingStatus = "not_fleeing"
	FleeingFoot    FleeingStatus = "foot"
	FleeingCar     FleeingStatus = "car"
	FleeingOther   FleeingStatus = "other"
	FleeingUnknown FleeingStatus = "unknown"
)

// LinkIcon is a closed enum for link component icons.
type LinkIcon string

const (
	LinkIconVideo   LinkIcon = "video"
	LinkIconNews    LinkIcon = "news"
	LinkIconGeneric LinkIcon = "generic"
)

// CaseMetadata is the stage-1 structured record for a case draft.
// Open-vocabulary fields (agencies, county, force type, threat level,
// investigation status, tags) take registry-canonical values; the rest are
// closed enums or free text.
type CaseMetadata struct {
	VictimName          string        `json:"victim_name" yaml:"victim_name"`
	Age                 int           `json:"age,omitempty" yaml:"age,omitempty"`
	Gender              Gender        `json:"gender" yaml:"gender"`
	Date                string        `json:"date" yaml:"date"`
	City                string        `json:"city,omitempty" yaml:"city,omitempty"`
	County              string        `json:"county,omitempty" yaml:"county,omitempty"`
	State               string        `json:"state,omitempty" yaml:"state,omitempty"`
	Agencies            []string      `json:"agencies,omitempty" yaml:"agencies,omitempty"`
	ForceType           string        `json:"force_type,omitempty" yaml:"force_type,omitempty"`
	ArmedStatus         ArmedStatus   `json:"armed_status" yaml:"armed_status"`
	ThreatLevel         string        `json:"threat_level,omitempty" yaml:"threat_level,omitempty"`
	Fleeing             FleeingStatus `json:"fleeing" yaml:"fleeing"`
	BodyCamera          bool          `json:"body_camera" yaml:"body_camera"`
	MentalIllness       bool          `json:"mental_illness" yaml:"mental_illness"`
	Geography           Geography     `json:"geography" yaml:"geography"`
	InvestigationStatus string        `json:"investigation_status,omitempty" yaml:"investigation_status,omitempty"`
	Tags                []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Title               string        `json:"title" yaml:"title"`
	Slug                string        `json:"slug,omitempty" yaml:"slug,omitempty"`
	Summary             string        `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// PostMetadata is the stage-1 structured record for a post draft.
type PostMetadata struct {
	Title       string   `json:"title" yaml:"title"`
	Slug        string   `json:"slug,omitempty" yaml:"slug,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// MediaMetadata is one element of the stage-1 per-media metadata array.
// The model keys each element by the source URL it describes.
type MediaMetadata struct {
	SourceURL   string   `json:"source_url"`
	Alt         string   `json:"alt,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Icon        LinkIcon `json:"icon,omitempty"`
}

// Sentinel is the structured payload the model returns when it cannot
// satisfy a mandatory field. Detecting Error=true aborts the entire run.
type Sentinel struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}
