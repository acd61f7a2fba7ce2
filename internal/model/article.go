package model

// GeneratedArticle is the finished artifact: frontmatter metadata plus body
// text. Written exactly once, only after both AI stages succeed and
// validation passes.
type GeneratedArticle struct {
	Kind    DraftKind     `json:"kind"`
	Case    *CaseMetadata `json:"case,omitempty"`
	Post    *PostMetadata `json:"post,omitempty"`
	Content string        `json:"content"`
	Slug    string        `json:"slug"`
}

// Title returns the article title from whichever metadata record is set.
func (a *GeneratedArticle) Title() string {
	switch a.Kind {
	case DraftCase:
		if a.Case != nil {
			return a.Case.Title
		}
	case DraftPost:
		if a.Post != nil {
			return a.Post.Title
		}
	}
	return ""
}
