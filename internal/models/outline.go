package models

// OutlineItem is one proposed section of a document outline.
type OutlineItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// PlaceholderOutline is returned when nothing could be extracted from the
// model output, so callers can always seed at least one section.
var PlaceholderOutline = OutlineItem{
	Title:       "Introduction",
	Description: "Please regenerate outline.",
}

// SectionInput is the read-only view of a section used for export.
type SectionInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}
