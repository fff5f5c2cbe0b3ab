package compose

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/emersion/go-message"
	emmail "github.com/emersion/go-message/mail"

	"github.com/sparklive/rustmailer/internal/apperr"
)

// ResolvedAttachment is an Attachment whose bytes have already been
// resolved, ready to be written into the outgoing MIME tree.
type ResolvedAttachment struct {
	Filename    string
	ContentType string
	Inline      bool
	ContentID   string
	Data        []byte
}

// MessageParts is everything the MIME composer needs to assemble one
// outgoing message; one is built per fanned-out recipient.
type MessageParts struct {
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     []string
	Subject     string
	MessageID   string
	InReplyTo   string
	References  []string
	Text        string
	HTML        string
	Attachments []ResolvedAttachment
}

// ComposeMIME renders parts into a complete RFC 5322 message, preferring a
// multipart/alternative text+html body wrapped in multipart/mixed when
// attachments are present.
func ComposeMIME(parts MessageParts) ([]byte, error) {
	var h emmail.Header
	h.SetDate(time.Now())
	h.SetMessageID(parts.MessageID)
	if err := h.SetAddressList("From", []*emmail.Address{{Name: "", Address: parts.From}}); err != nil {
		return nil, apperr.Wrap(err, apperr.InvalidParameter, "invalid from address")
	}
	if err := setAddressList(&h, "To", parts.To); err != nil {
		return nil, err
	}
	if err := setAddressList(&h, "Cc", parts.Cc); err != nil {
		return nil, err
	}
	if err := setAddressList(&h, "Bcc", parts.Bcc); err != nil {
		return nil, err
	}
	if len(parts.ReplyTo) > 0 {
		if err := setAddressList(&h, "Reply-To", parts.ReplyTo); err != nil {
			return nil, err
		}
	}
	h.SetSubject(parts.Subject)
	if parts.InReplyTo != "" {
		h.SetText("In-Reply-To", "<"+parts.InReplyTo+">")
	}
	if len(parts.References) > 0 {
		refs := ""
		for _, r := range parts.References {
			refs += "<" + r + "> "
		}
		h.SetText("References", refs)
	}

	var buf bytes.Buffer
	mw, err := emmail.CreateWriter(&buf, h)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to open mime writer")
	}

	if err := writeBody(mw, parts); err != nil {
		mw.Close()
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to close mime writer")
	}
	return buf.Bytes(), nil
}

func setAddressList(h *emmail.Header, field string, addrs []string) error {
	if len(addrs) == 0 {
		return nil
	}
	list := make([]*emmail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &emmail.Address{Address: a})
	}
	if err := h.SetAddressList(field, list); err != nil {
		return apperr.Wrap(err, apperr.InvalidParameter, fmt.Sprintf("invalid %s address list", field))
	}
	return nil
}

func writeBody(mw *emmail.Writer, parts MessageParts) error {
	if len(parts.Attachments) == 0 {
		return writeAlternative(mw, parts)
	}

	aw, err := mw.CreateAttachments()
	if err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to open attachment part")
	}
	defer aw.Close()

	if err := writeAlternative(aw, parts); err != nil {
		return err
	}

	for _, a := range parts.Attachments {
		ah := emmail.AttachmentHeader{}
		ah.Set("Content-Type", a.ContentType)
		ah.SetFilename(a.Filename)
		if a.Inline {
			ah.Set("Content-Disposition", "inline; filename="+mime.QEncoding.Encode("utf-8", a.Filename))
			if a.ContentID != "" {
				ah.Set("Content-Id", "<"+a.ContentID+">")
			}
		}
		w, err := aw.CreateAttachment(ah)
		if err != nil {
			return apperr.Wrap(err, apperr.InternalError, "failed to open attachment writer")
		}
		if _, err := io.Copy(w, bytes.NewReader(a.Data)); err != nil {
			w.Close()
			return apperr.Wrap(err, apperr.InternalError, "failed to write attachment body")
		}
		w.Close()
	}
	return nil
}

// bodyWriter is satisfied by both *emmail.Writer (no attachments) and
// *emmail.AttachmentsWriter (attachments present).
type bodyWriter interface {
	CreateInline() (*emmail.InlineWriter, error)
}

func writeAlternative(w bodyWriter, parts MessageParts) error {
	iw, err := w.CreateInline()
	if err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to open inline part")
	}
	defer iw.Close()

	if parts.Text != "" {
		th := emmail.InlineHeader{}
		th.Set("Content-Type", "text/plain; charset=utf-8")
		tw, err := iw.CreatePart(th)
		if err != nil {
			return apperr.Wrap(err, apperr.InternalError, "failed to open text part")
		}
		if _, err := io.WriteString(tw, parts.Text); err != nil {
			tw.Close()
			return apperr.Wrap(err, apperr.InternalError, "failed to write text part")
		}
		tw.Close()
	}
	if parts.HTML != "" {
		hh := emmail.InlineHeader{}
		hh.Set("Content-Type", "text/html; charset=utf-8")
		hw, err := iw.CreatePart(hh)
		if err != nil {
			return apperr.Wrap(err, apperr.InternalError, "failed to open html part")
		}
		if _, err := io.WriteString(hw, parts.HTML); err != nil {
			hw.Close()
			return apperr.Wrap(err, apperr.InternalError, "failed to write html part")
		}
		hw.Close()
	}
	return nil
}

// ParseEML parses a raw RFC 5322 message, extracting subject/text/html and
// attachments wholesale ("adopt its subject/text/html/attachments
// wholesale", spec.md §4.6 step 1).
func ParseEML(raw []byte) (subject, text, html string, attachments []ResolvedAttachment, err error) {
	r, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", "", "", nil, apperr.Wrap(err, apperr.EmlFileParseError, "failed to parse eml message")
	}
	subject = r.Header.Get("Subject")

	mr := r.MultipartReader()
	if mr == nil {
		body, _ := io.ReadAll(r.Body)
		ct, _, _ := r.Header.ContentType()
		if ct == "text/html" {
			html = string(body)
		} else {
			text = string(body)
		}
		return subject, text, html, attachments, nil
	}

	for {
		part, perr := mr.NextPart()
		if perr == io.EOF {
			break
		}
		if perr != nil {
			return subject, text, html, attachments, apperr.Wrap(perr, apperr.EmlFileParseError, "failed to walk eml mime parts")
		}
		ct, params, _ := part.Header.ContentType()
		body, _ := io.ReadAll(part.Body)
		switch {
		case ct == "text/plain" && text == "":
			text = string(body)
		case ct == "text/html" && html == "":
			html = string(body)
		default:
			filename := params["filename"]
			if filename == "" {
				filename = "attachment"
			}
			attachments = append(attachments, ResolvedAttachment{
				Filename:    filename,
				ContentType: ct,
				Data:        body,
			})
		}
	}
	return subject, text, html, attachments, nil
}
