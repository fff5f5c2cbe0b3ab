package compose

import (
	"bytes"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/yuin/goldmark"

	"github.com/sparklive/rustmailer/internal/apperr"
)

// TemplateFormat selects how a stored template body is interpreted before
// rendering.
type TemplateFormat string

const (
	TemplateHTML     TemplateFormat = "html"
	TemplateMarkdown TemplateFormat = "markdown"
)

// Template is the stored, named body a SendEmailRequest can reference by
// template_id.
type Template struct {
	ID      uint64
	Subject string
	Format  TemplateFormat
	Body    string
}

// Render executes the template against params, returning the resulting
// subject and HTML. Markdown templates are executed as text/template (no
// HTML-escaping of the markdown source itself) then converted to HTML via
// goldmark; HTML templates are executed as html/template so embedded params
// are contextually escaped.
func Render(tpl Template, params map[string]interface{}) (subject, htmlBody string, err error) {
	subjectTpl, perr := texttemplate.New("subject").Parse(tpl.Subject)
	if perr != nil {
		return "", "", apperr.Wrap(perr, apperr.InvalidParameter, "failed to parse template subject")
	}
	var subjectBuf bytes.Buffer
	if err := subjectTpl.Execute(&subjectBuf, params); err != nil {
		return "", "", apperr.Wrap(err, apperr.InvalidParameter, "failed to render template subject")
	}

	switch tpl.Format {
	case TemplateMarkdown:
		mdTpl, perr := texttemplate.New("body").Parse(tpl.Body)
		if perr != nil {
			return "", "", apperr.Wrap(perr, apperr.InvalidParameter, "failed to parse markdown template")
		}
		var mdBuf bytes.Buffer
		if err := mdTpl.Execute(&mdBuf, params); err != nil {
			return "", "", apperr.Wrap(err, apperr.InvalidParameter, "failed to render markdown template")
		}
		var htmlBuf bytes.Buffer
		if err := goldmark.Convert(mdBuf.Bytes(), &htmlBuf); err != nil {
			return "", "", apperr.Wrap(err, apperr.InternalError, "failed to convert markdown template to html")
		}
		return subjectBuf.String(), htmlBuf.String(), nil

	default: // TemplateHTML
		bodyTpl, perr := htmltemplate.New("body").Parse(tpl.Body)
		if perr != nil {
			return "", "", apperr.Wrap(perr, apperr.InvalidParameter, "failed to parse html template")
		}
		var bodyBuf bytes.Buffer
		if err := bodyTpl.Execute(&bodyBuf, params); err != nil {
			return "", "", apperr.Wrap(err, apperr.InvalidParameter, "failed to render html template")
		}
		return subjectBuf.String(), bodyBuf.String(), nil
	}
}
