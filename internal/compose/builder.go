package compose

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/diskcache"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

// SendTaskSink is implemented by the scheduler facade that accepts
// SmtpTaskParams, decoupling this package from internal/smtptask the same
// way events.HookTaskSink decouples internal/events from internal/hooks.
type SendTaskSink interface {
	SubmitSendTasks(params []model.SmtpTaskParams, delaySeconds *uint32) error
}

// TemplateLookup resolves a stored template by id.
type TemplateLookup interface {
	GetTemplate(id uint64) (Template, error)
}

// Builder is the mail-send builder pipeline (C6).
type Builder struct {
	meta       *store.MetaStore
	cache      *diskcache.Cache
	blobs      *store.AttachmentStore
	sink       SendTaskSink
	templates  TemplateLookup
	fetcher    PartFetcher
	logger     *zap.Logger

	trackingBaseURL string
	trackingEnabled bool
}

func NewBuilder(meta *store.MetaStore, cache *diskcache.Cache, blobs *store.AttachmentStore, sink SendTaskSink,
	templates TemplateLookup, fetcher PartFetcher, trackingBaseURL string, trackingEnabled bool, logger *zap.Logger) *Builder {
	return &Builder{
		meta: meta, cache: cache, blobs: blobs, sink: sink, templates: templates, fetcher: fetcher,
		trackingBaseURL: trackingBaseURL, trackingEnabled: trackingEnabled, logger: logger,
	}
}

// BuildSend validates, fans out, composes and schedules a fresh send.
func (b *Builder) BuildSend(ctx context.Context, req *model.SendEmailRequest) ([]model.SmtpTaskParams, error) {
	if err := ValidateSend(req); err != nil {
		return nil, err
	}
	account, err := b.meta.GetAccount(req.AccountID)
	if err != nil {
		return nil, err
	}

	subject := ""
	if req.Subject != nil {
		subject = *req.Subject
	}
	var text, html string
	var attachments []model.Attachment

	switch {
	case len(req.EML) > 0:
		emlSubject, emlText, emlHTML, emlAttachments, err := ParseEML(req.EML)
		if err != nil {
			return nil, err
		}
		subject, text, html = emlSubject, emlText, emlHTML
		for _, ra := range emlAttachments {
			cid := ra.ContentID
			attachments = append(attachments, model.Attachment{
				Filename: ra.Filename, ContentType: ra.ContentType, Inline: ra.Inline,
				ContentID: &cid, Data: ra.Data,
			})
		}
	case req.TemplateID != nil:
		// per-recipient rendering happens in the fan-out loop below, since
		// template params vary per recipient.
	default:
		if req.Text != nil {
			text = *req.Text
		}
		if req.HTML != nil {
			html = *req.HTML
		}
	}
	attachments = append(attachments, req.Attachments...)

	resolved, err := ResolveAttachments(ctx, req.AccountID, attachments, b.fetcher, b.blobs)
	if err != nil {
		return nil, err
	}

	var out []model.SmtpTaskParams
	for _, recipient := range req.Recipients {
		recSubject, recText, recHTML := subject, text, html
		if req.TemplateID != nil {
			tpl, err := b.templates.GetTemplate(*req.TemplateID)
			if err != nil {
				return nil, err
			}
			recSubject, recHTML, err = Render(tpl, recipient.TemplateParams)
			if err != nil {
				return nil, err
			}
		}

		messageID := idgen.NewMessageID(account.Domain())

		if req.Preview != nil && recHTML != "" {
			recHTML = InjectPreview(recHTML, *req.Preview)
		}
		campaignID := ""
		if req.CampaignID != nil {
			campaignID = *req.CampaignID
		}
		if req.SendControl.EnableTracking && b.trackingEnabled && recHTML != "" {
			tracker := NewTracker(req.CampaignID, messageID, firstOr(recipient.To), req.AccountID, account.Email)
			recHTML, err = InjectTracking(recHTML, b.trackingBaseURL, tracker)
			if err != nil {
				return nil, err
			}
		}

		mime, err := ComposeMIME(MessageParts{
			From: req.From, To: recipient.To, Cc: recipient.Cc, Bcc: recipient.Bcc,
			Subject: recSubject, MessageID: messageID, Text: recText, HTML: recHTML,
			Attachments: resolved,
		})
		if err != nil {
			return nil, err
		}

		cacheKey := messageID
		if err := b.cache.Put(cacheKey, mime); err != nil {
			return nil, apperr.Wrap(err, apperr.InternalError, "failed to write composed message to disk cache")
		}

		sendAt := time.Now().Unix()
		if recipient.SendAtUnix != nil {
			sendAt = *recipient.SendAtUnix
		}

		out = append(out, model.SmtpTaskParams{
			AccountID: req.AccountID, AccountEmail: account.Email, Subject: recSubject,
			MessageID: messageID, From: req.From, To: recipient.To, Cc: recipient.Cc, Bcc: recipient.Bcc,
			AttachmentCount: len(resolved), SendControl: req.SendControl, CacheKey: cacheKey,
			SendAtUnix: sendAt, CampaignID: campaignID,
		})
	}

	return out, b.submit(out)
}

func (b *Builder) submit(tasks []model.SmtpTaskParams) error {
	for i := range tasks {
		delay := delaySeconds(tasks[i].SendAtUnix)
		if err := b.sink.SubmitSendTasks(tasks[i:i+1], &delay); err != nil {
			return err
		}
	}
	return nil
}

func delaySeconds(sendAtUnix int64) uint32 {
	d := sendAtUnix - time.Now().Unix()
	if d < 0 {
		d = 0
	}
	return uint32(d)
}

func firstOr(addrs []string) string {
	if len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}
