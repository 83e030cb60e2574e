package models

const (
	DocumentTypeWord       = "word"
	DocumentTypePowerPoint = "powerpoint"

	MIMETypeWord       = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypePowerPoint = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

	DefaultTemplateID = "default"
	DefaultMaxOutline = 10

	ProjectStatusDraft = "draft"

	ArrayRegex       = `(?s)\[.*\]`
	TitleFieldRegex  = `"title":\s*"([^"]+)"`
	DescriptionRegex = `"description":\s*"([^"]+)"`
	MarkdownRegex    = `\*\*|##`
	BulletRegex      = `^[-*•]\s*`
)

var (
	OutlinePromptTemplate = `You are an expert content strategist. Create a detailed outline for a %s document.

Format: Return ONLY a JSON array of section objects with 'title' and 'description' fields.
Example: [{"title": "Introduction", "description": "Overview of the topic"}]

Requirements:
- %d sections
- Clear, descriptive titles
- Brief descriptions
- Logical flow`

	WordContentPromptTemplate = `Generate detailed content for: %s
Requirements:
- 3–4 paragraphs
- Clear, logical flow
- Formal and professional tone
- Relevant to the topic: %s
`

	SlideContentPromptTemplate = `Generate slide content for: %s
Format:
- Title at top
- 4–6 bullet points
- Each point max 12–15 words
- Topic: %s
- Keep it clean and presentation-ready
`

	RefinePromptTemplate = `You are a professional content editor for %s documents.

Current content:
%s

User request: %s

Provide the refined version maintaining the original structure and style.`
)

// OutlineSectionCount is how many sections the outline prompt asks for.
func OutlineSectionCount(documentType string) int {
	if documentType == DocumentTypePowerPoint {
		return 5
	}
	return 8
}

// ValidDocumentType reports whether t is one of the two export kinds.
func ValidDocumentType(t string) bool {
	return t == DocumentTypeWord || t == DocumentTypePowerPoint
}
