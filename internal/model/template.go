package model

import "time"

// TemplateFormat selects how a stored template body is interpreted at
// render time; mirrors compose.TemplateFormat so the persisted record
// doesn't need the compose package's render-time types.
type TemplateFormat string

const (
	TemplateFormatHTML     TemplateFormat = "html"
	TemplateFormatMarkdown TemplateFormat = "markdown"
)

// Template is a stored, named email body a SendEmailRequest can reference
// by template_id.
type Template struct {
	ID        uint64         `json:"id"`
	Name      string         `json:"name"`
	Subject   string         `json:"subject"`
	Format    TemplateFormat `json:"format"`
	Body      string         `json:"body"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
