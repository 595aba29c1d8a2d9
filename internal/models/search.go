package models

import "strings"

// Search types accepted by the list and navigation queries.
const (
	SearchAll     = "all"
	SearchTitle   = "title"
	SearchContent = "content"
	SearchAuthor  = "author"
	SearchDate    = "date"
)

// SearchCriteria scopes list, count and prev/next queries.
type SearchCriteria struct {
	Type    string
	Keyword string
}

// NewSearchCriteria normalizes the search type. Unknown types fall back to SearchAll.
// The keyword is kept as sent so it can be echoed and passed on unchanged.
func NewSearchCriteria(schType, kwd string) SearchCriteria {
	t := strings.ToLower(strings.TrimSpace(schType))
	switch t {
	case SearchAll, SearchTitle, SearchContent, SearchAuthor, SearchDate:
	default:
		t = SearchAll
	}
	return SearchCriteria{Type: t, Keyword: kwd}
}

// Term is the keyword without surrounding whitespace, as matched against posts.
func (c SearchCriteria) Term() string {
	return strings.TrimSpace(c.Keyword)
}

// IsEmpty reports whether the criteria matches every post.
func (c SearchCriteria) IsEmpty() bool {
	return c.Term() == ""
}

// DateKeyword returns the keyword reduced to its digits, so "2024-03-01" and "20240301" compare equal.
func (c SearchCriteria) DateKeyword() string {
	var b strings.Builder
	for _, r := range c.Keyword {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
