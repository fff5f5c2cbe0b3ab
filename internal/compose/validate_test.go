package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparklive/rustmailer/internal/model"
)

func textPtr(s string) *string { return &s }

func TestValidateSendRequiresABodySource(t *testing.T) {
	base := model.SendEmailRequest{
		AccountID:  1,
		From:       "sender@example.com",
		Recipients: []model.Recipient{{To: []string{"dest@example.com"}}},
	}

	none := base
	err := ValidateSend(&none)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one of eml, template_id, or text/html is required")

	text := base
	text.Text = textPtr("hello")
	assert.NoError(t, ValidateSend(&text))

	html := base
	html.HTML = textPtr("<p>hello</p>")
	assert.NoError(t, ValidateSend(&html))

	templated := base
	templateID := uint64(1)
	templated.TemplateID = &templateID
	assert.NoError(t, ValidateSend(&templated))
}

func TestValidateSendRequiresRecipients(t *testing.T) {
	req := model.SendEmailRequest{
		AccountID: 1,
		From:      "sender@example.com",
		Text:      textPtr("hello"),
	}
	assert.Error(t, ValidateSend(&req))
}

func TestValidateSendRejectsMalformedFromAddress(t *testing.T) {
	req := model.SendEmailRequest{
		AccountID:  1,
		From:       "not-an-email",
		Recipients: []model.Recipient{{To: []string{"dest@example.com"}}},
		Text:       textPtr("hello"),
	}
	assert.Error(t, ValidateSend(&req))
}

func TestValidateSendAttachmentExactlyOneSource(t *testing.T) {
	base := model.SendEmailRequest{
		AccountID:  1,
		From:       "sender@example.com",
		Recipients: []model.Recipient{{To: []string{"dest@example.com"}}},
		Text:       textPtr("hello"),
	}

	neither := base
	neither.Attachments = []model.Attachment{{Filename: "a.txt"}}
	assert.Error(t, ValidateSend(&neither))

	both := base
	both.Attachments = []model.Attachment{{
		Filename: "a.txt",
		Data:     []byte("hi"),
		Ref:      &model.AttachmentRef{MailboxID: 1, UID: "1", PartID: "1"},
	}}
	assert.Error(t, ValidateSend(&both))

	valid := base
	valid.Attachments = []model.Attachment{{Filename: "a.txt", Data: []byte("hi")}}
	assert.NoError(t, ValidateSend(&valid))
}

func TestValidateReplyRequiresBody(t *testing.T) {
	req := model.ReplyEmailRequest{AccountID: 1, MailboxID: 1, UID: "42"}
	assert.Error(t, ValidateReply(&req))

	req.HTML = textPtr("<p>hi</p>")
	assert.NoError(t, ValidateReply(&req))
}

func TestValidateForwardAllowsNoBody(t *testing.T) {
	req := model.ForwardEmailRequest{AccountID: 1, MailboxID: 1, UID: "42", To: []string{"dest@example.com"}}
	assert.NoError(t, ValidateForward(&req))
}
