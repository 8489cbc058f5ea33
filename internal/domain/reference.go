package domain

// ExternalReference is a secondary knowledge snippet from outside the course.
type ExternalReference struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}
