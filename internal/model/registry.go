package model

// ListName identifies one of the seven extendable registry vocabularies.
// Closed enums (gender, armed status, geography, WaPo classifications, link
// icon) deliberately have no ListName: they can never enter the append path.
type ListName string

const (
	ListAgencies              ListName = "agencies"
	ListCounties              ListName = "counties"
	ListForceTypes            ListName = "force_types"
	ListThreatLevels          ListName = "threat_levels"
	ListInvestigationStatuses ListName = "investigation_statuses"
	ListCaseTags              ListName = "case_tags"
	ListPostTags              ListName = "post_tags"
)

// ListNames is the fixed set of registry lists, in file order.
var ListNames = []ListName{
	ListAgencies,
	ListCounties,
	ListForceTypes,
	ListThreatLevels,
	ListInvestigationStatuses,
	ListCaseTags,
	ListPostTags,
}

// Registry holds the seven canonical vocabularies. Entries are unique under
// case/whitespace normalization and each list stays sorted after every
// append.
type Registry struct {
	Agencies              []string `json:"agencies"`
	Counties              []string `json:"counties"`
	ForceTypes            []string `json:"force_types"`
	ThreatLevels          []string `json:"threat_levels"`
	InvestigationStatuses []string `json:"investigation_statuses"`
	CaseTags              []string `json:"case_tags"`
	PostTags              []string `json:"post_tags"`
}

// List returns the entries of the named list. Unknown names return nil.
func (r *Registry) List(name ListName) []string {
	switch name {
	case ListAgencies:
		return r.Agencies
	case ListCounties:
		return r.Counties
	case ListForceTypes:
		return r.ForceTypes
	case ListThreatLevels:
		return r.ThreatLevels
	case ListInvestigationStatuses:
		return r.InvestigationStatuses
	case ListCaseTags:
		return r.CaseTags
	case ListPostTags:
		return r.PostTags
	}
	return nil
}

// SetList replaces the entries of the named list.
func (r *Registry) SetList(name ListName, entries []string) {
	switch name {
	case ListAgencies:
		r.Agencies = entries
	case ListCounties:
		r.Counties = entries
	case ListForceTypes:
		r.ForceTypes = entries
	case ListThreatLevels:
		r.ThreatLevels = entries
	case ListInvestigationStatuses:
		r.InvestigationStatuses = entries
	case ListCaseTags:
		r.CaseTags = entries
	case ListPostTags:
		r.PostTags = entries
	}
}
