// Package compose is the mail-send builder pipeline (C6): validates one of
// SendEmailRequest/ReplyEmailRequest/ForwardEmailRequest, fans a send out
// per recipient, assembles the MIME body (eml > template > raw fields),
// injects preview/tracking, resolves attachments, writes the body to the
// disk cache and enqueues an SmtpTask per recipient. Grounded on
// original_source/src/modules/smtp/request/{new,reply,task}.rs and the
// teacher's internal/services + internal/models/email.go request shapes.
package compose

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

var validate = validator.New()

// ValidationErrors collects every failing field into one combined error,
// matching "validation is done first and returns a combined list of
// errors" (spec.md §4.6).
type ValidationErrors struct {
	Errors []string
}

func (e *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

func newValidationErrors(messages []string) *apperr.Error {
	return apperr.New(apperr.InvalidParameter, (&ValidationErrors{Errors: messages}).Error())
}

func structErrors(err error) []string {
	var msgs []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	} else {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// ValidateSend runs struct tags plus the cross-field body-source rule:
// at least one of eml / template_id / (text or html) must be set. When
// several are set, the builder uses eml first, then template_id, then
// text/html.
func ValidateSend(req *model.SendEmailRequest) error {
	var msgs []string
	if err := validate.Struct(req); err != nil {
		msgs = append(msgs, structErrors(err)...)
	}
	sources := 0
	if len(req.EML) > 0 {
		sources++
	}
	if req.TemplateID != nil {
		sources++
	}
	if req.Text != nil || req.HTML != nil {
		sources++
	}
	if sources == 0 {
		msgs = append(msgs, "body: one of eml, template_id, or text/html is required")
	}
	for i, a := range req.Attachments {
		if err := validateAttachment(a); err != nil {
			msgs = append(msgs, fmt.Sprintf("attachments[%d]: %s", i, err))
		}
	}
	if len(msgs) > 0 {
		return newValidationErrors(msgs)
	}
	return nil
}

func ValidateReply(req *model.ReplyEmailRequest) error {
	var msgs []string
	if err := validate.Struct(req); err != nil {
		msgs = append(msgs, structErrors(err)...)
	}
	if req.Text == nil && req.HTML == nil {
		msgs = append(msgs, "body: one of text or html is required")
	}
	for i, a := range req.Attachments {
		if err := validateAttachment(a); err != nil {
			msgs = append(msgs, fmt.Sprintf("attachments[%d]: %s", i, err))
		}
	}
	if len(msgs) > 0 {
		return newValidationErrors(msgs)
	}
	return nil
}

func ValidateForward(req *model.ForwardEmailRequest) error {
	var msgs []string
	if err := validate.Struct(req); err != nil {
		msgs = append(msgs, structErrors(err)...)
	}
	for i, a := range req.Attachments {
		if err := validateAttachment(a); err != nil {
			msgs = append(msgs, fmt.Sprintf("attachments[%d]: %s", i, err))
		}
	}
	if len(msgs) > 0 {
		return newValidationErrors(msgs)
	}
	return nil
}

func validateAttachment(a model.Attachment) error {
	hasData := len(a.Data) > 0
	hasRef := a.Ref != nil
	if hasData == hasRef {
		return fmt.Errorf("exactly one of data or attachment_ref is required")
	}
	return nil
}
