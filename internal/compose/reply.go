package compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
)

// BuildReply composes and schedules a reply to an already-synced message.
// In-Reply-To is set to the original Message-ID and it is appended
// (deduplicated) to References; when ReplyAll the recipient set expands to
// the original From/To/Cc minus the account's own address; when
// IncludeOriginal an attribution line ("On <date>, <from> wrote:") is
// appended beneath the new content — the original message body itself is
// not quoted (the plain-text part reads "(original message omitted)"); when
// IncludeAllAttachments the original's non-inline parts are carried over.
func (b *Builder) BuildReply(ctx context.Context, req *model.ReplyEmailRequest) (model.SmtpTaskParams, error) {
	var zero model.SmtpTaskParams
	if err := ValidateReply(req); err != nil {
		return zero, err
	}
	account, err := b.meta.GetAccount(req.AccountID)
	if err != nil {
		return zero, err
	}
	original, err := b.meta.GetEnvelope(req.AccountID, req.MailboxID, req.UID)
	if err != nil {
		return zero, err
	}

	recipients := dedupe(original.From)
	if req.ReplyAll {
		recipients = dedupeExcluding(append(append(append([]string{}, original.From...), original.To...), original.Cc...), account.Email)
	}

	text, html := "", ""
	if req.Text != nil {
		text = *req.Text
	}
	if req.HTML != nil {
		html = *req.HTML
	}
	if req.IncludeOriginal {
		text += quotedPlainText(original)
		if html != "" {
			html += quotedHTML(original)
		}
	}

	attachments := append([]model.Attachment{}, req.Attachments...)
	if req.IncludeAllAttachments {
		for _, part := range original.BodyParts {
			if part.Inline {
				continue
			}
			attachments = append(attachments, model.Attachment{
				Filename: part.Filename, ContentType: part.ContentType,
				Ref: &model.AttachmentRef{MailboxID: req.MailboxID, UID: req.UID, PartID: part.PartID},
			})
		}
	}

	resolved, err := ResolveAttachments(ctx, req.AccountID, attachments, b.fetcher, b.blobs)
	if err != nil {
		return zero, err
	}

	messageID := idgen.NewMessageID(account.Domain())
	references := appendDedup(original.References, original.MessageID)

	mime, err := ComposeMIME(MessageParts{
		From: account.Email, To: recipients, Subject: "Re: " + strings.TrimPrefix(original.Subject, "Re: "),
		MessageID: messageID, InReplyTo: original.MessageID, References: references,
		Text: text, HTML: html, Attachments: resolved,
	})
	if err != nil {
		return zero, err
	}

	if err := b.cache.Put(messageID, mime); err != nil {
		return zero, apperr.Wrap(err, apperr.InternalError, "failed to write composed reply to disk cache")
	}

	sendAt := time.Now().Unix()
	if req.SendAtUnix != nil {
		sendAt = *req.SendAtUnix
	}
	params := model.SmtpTaskParams{
		AccountID: req.AccountID, AccountEmail: account.Email,
		Subject: "Re: " + strings.TrimPrefix(original.Subject, "Re: "), MessageID: messageID,
		From: account.Email, To: recipients, AttachmentCount: len(resolved), SendControl: req.SendControl,
		CacheKey: messageID, Answer: &model.AnswerEmail{MailboxID: req.MailboxID, UID: req.UID}, SendAtUnix: sendAt,
	}
	delay := delaySeconds(sendAt)
	return params, b.sink.SubmitSendTasks([]model.SmtpTaskParams{params}, &delay)
}

// BuildForward composes and schedules a forward of an already-synced
// message to the recipients given in the request. Original attachments are
// always eligible for inclusion via IncludeAllAttachments.
func (b *Builder) BuildForward(ctx context.Context, req *model.ForwardEmailRequest) (model.SmtpTaskParams, error) {
	var zero model.SmtpTaskParams
	if err := ValidateForward(req); err != nil {
		return zero, err
	}
	account, err := b.meta.GetAccount(req.AccountID)
	if err != nil {
		return zero, err
	}
	original, err := b.meta.GetEnvelope(req.AccountID, req.MailboxID, req.UID)
	if err != nil {
		return zero, err
	}

	text, html := "", ""
	if req.Text != nil {
		text = *req.Text
	}
	if req.HTML != nil {
		html = *req.HTML
	}
	text += quotedPlainText(original)
	if html != "" {
		html += quotedHTML(original)
	}

	attachments := append([]model.Attachment{}, req.Attachments...)
	if req.IncludeAllAttachments {
		for _, part := range original.BodyParts {
			if part.Inline {
				continue
			}
			attachments = append(attachments, model.Attachment{
				Filename: part.Filename, ContentType: part.ContentType,
				Ref: &model.AttachmentRef{MailboxID: req.MailboxID, UID: req.UID, PartID: part.PartID},
			})
		}
	}

	resolved, err := ResolveAttachments(ctx, req.AccountID, attachments, b.fetcher, b.blobs)
	if err != nil {
		return zero, err
	}

	messageID := idgen.NewMessageID(account.Domain())
	subject := "Fwd: " + strings.TrimPrefix(original.Subject, "Fwd: ")

	mime, err := ComposeMIME(MessageParts{
		From: account.Email, To: req.To, Cc: req.Cc, Bcc: req.Bcc, Subject: subject,
		MessageID: messageID, Text: text, HTML: html, Attachments: resolved,
	})
	if err != nil {
		return zero, err
	}
	if err := b.cache.Put(messageID, mime); err != nil {
		return zero, apperr.Wrap(err, apperr.InternalError, "failed to write composed forward to disk cache")
	}

	sendAt := time.Now().Unix()
	if req.SendAtUnix != nil {
		sendAt = *req.SendAtUnix
	}
	params := model.SmtpTaskParams{
		AccountID: req.AccountID, AccountEmail: account.Email, Subject: subject, MessageID: messageID,
		From: account.Email, To: req.To, Cc: req.Cc, Bcc: req.Bcc, AttachmentCount: len(resolved),
		SendControl: req.SendControl, CacheKey: messageID, SendAtUnix: sendAt,
	}
	delay := delaySeconds(sendAt)
	return params, b.sink.SubmitSendTasks([]model.SmtpTaskParams{params}, &delay)
}

func quotedPlainText(e *model.Envelope) string {
	return fmt.Sprintf("\n\nOn %s, %s wrote:\n> (original message omitted)\n", e.InternalDate.Format(time.RFC1123), strings.Join(e.From, ", "))
}

func quotedHTML(e *model.Envelope) string {
	return fmt.Sprintf(`<blockquote>On %s, %s wrote:</blockquote>`, e.InternalDate.Format(time.RFC1123), strings.Join(e.From, ", "))
}

func dedupe(addrs []string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

func dedupeExcluding(addrs []string, exclude string) []string {
	seen := make(map[string]bool, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a == exclude || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func appendDedup(refs []string, newRef string) []string {
	for _, r := range refs {
		if r == newRef {
			return refs
		}
	}
	return append(append([]string{}, refs...), newRef)
}
