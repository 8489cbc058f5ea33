package chunk

import "strings"

// Filters are optional AND-combined metadata constraints on retrieval.
type Filters struct {
	Category string
	Topic    string
	Week     *int
	Language string
}

// IsEmpty reports whether no constraint is set.
func (f Filters) IsEmpty() bool {
	return f.Category == "" && f.Topic == "" && f.Week == nil && f.Language == ""
}

// Narrowed reports whether an explicit week or topic filter was supplied.
// Only these two are trusted to replace lexical corroboration.
func (f Filters) Narrowed() bool {
	return f.Week != nil || f.Topic != ""
}

// Match applies the filters to metadata.
// Strings compare case-insensitively; an absent stored value never matches a set filter.
func (f Filters) Match(m Metadata) bool {
	if f.Category != "" && !equalFold(m.Category, f.Category) {
		return false
	}
	if f.Topic != "" && !equalFold(m.Topic, f.Topic) {
		return false
	}
	if f.Language != "" && !equalFold(m.Language, f.Language) {
		return false
	}
	if f.Week != nil && (m.Week == nil || *m.Week != *f.Week) {
		return false
	}
	return true
}

func equalFold(stored, want string) bool {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false
	}
	return strings.EqualFold(stored, strings.TrimSpace(want))
}
