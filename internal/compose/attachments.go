package compose

import (
	"context"
	"encoding/base64"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

// PartFetcher resolves an attachment_ref (mailbox+uid+part) to bytes via the
// IMAP executor (C1); implemented by internal/transport/imap.
type PartFetcher interface {
	FetchPart(ctx context.Context, accountID, mailboxID uint64, uid, partID string) ([]byte, string, error)
}

// ResolveAttachments turns request-level Attachment entries into
// ResolvedAttachment bytes, fetching attachment_ref targets through
// fetcher and storing the fetched bytes content-addressed in blobs. blobs
// is not consulted before a fetch: every attachment_ref is fetched over
// IMAP, including repeat sends of the same ref.
func ResolveAttachments(ctx context.Context, accountID uint64, attachments []model.Attachment, fetcher PartFetcher, blobs *store.AttachmentStore) ([]ResolvedAttachment, error) {
	out := make([]ResolvedAttachment, 0, len(attachments))
	for _, a := range attachments {
		var data []byte
		contentType := a.ContentType

		switch {
		case a.Ref != nil:
			if fetcher == nil {
				return nil, apperr.New(apperr.MissingConfiguration, "attachment_ref given but no part fetcher configured")
			}
			fetched, ct, err := fetcher.FetchPart(ctx, accountID, a.Ref.MailboxID, a.Ref.UID, a.Ref.PartID)
			if err != nil {
				return nil, err
			}
			data = fetched
			if contentType == "" {
				contentType = ct
			}
			if _, err := blobs.Put(data); err != nil {
				return nil, apperr.Wrap(err, apperr.InternalError, "failed to cache resolved attachment bytes")
			}
		case len(a.Data) > 0:
			data = a.Data
		default:
			return nil, apperr.New(apperr.InvalidParameter, "attachment has neither data nor attachment_ref")
		}

		contentID := ""
		if a.ContentID != nil {
			contentID = *a.ContentID
		}
		out = append(out, ResolvedAttachment{
			Filename:    a.Filename,
			ContentType: contentType,
			Inline:      a.Inline,
			ContentID:   contentID,
			Data:        data,
		})
	}
	return out, nil
}

// decodeInlineBase64 decodes attachment Data that arrives as a raw base64
// string rather than through JSON-unmarshaling into []byte (encoding/json
// already base64-decodes []byte fields). Nothing in this package calls it
// at present.
func decodeInlineBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidParameter, "invalid base64 attachment data")
	}
	return data, nil
}
