package model

// Attachment is either an inline base64 blob or a reference into an
// already-synced IMAP message part.
type Attachment struct {
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	Inline      bool    `json:"inline"`
	ContentID   *string `json:"content_id,omitempty"`

	// Exactly one of Data / Ref is set; validated by compose.ValidateSend,
	// ValidateReply and ValidateForward.
	Data []byte          `json:"data,omitempty"`
	Ref  *AttachmentRef  `json:"attachment_ref,omitempty"`
}

// AttachmentRef points at a part of an already-synced message.
type AttachmentRef struct {
	MailboxID uint64 `json:"mailbox_id"`
	UID       string `json:"uid"`
	PartID    string `json:"part_id"`
}

// SendControl gates per-send tracking/DSN behavior.
type SendControl struct {
	EnableTracking bool `json:"enable_tracking"`
	NeedsDSN       bool `json:"needs_dsn"`
}

// Recipient is one fan-out target of a SendEmailRequest: its own Message-ID,
// send_at and template params are derived for it independently of its
// siblings.
type Recipient struct {
	To               []string               `json:"to"`
	Cc               []string               `json:"cc,omitempty"`
	Bcc              []string               `json:"bcc,omitempty"`
	SendAtUnix       *int64                 `json:"send_at,omitempty"`
	TemplateParams   map[string]interface{} `json:"template_params,omitempty"`
}

// SendEmailRequest is the top-level request for a fresh, non-reply send.
type SendEmailRequest struct {
	AccountID  uint64      `json:"account_id" validate:"required"`
	From       string      `json:"from" validate:"required,email"`
	Recipients []Recipient `json:"recipients" validate:"required,min=1,dive"`

	Subject *string `json:"subject,omitempty"`

	// Body assembly priority: EML > TemplateID > raw Text/HTML.
	EML        []byte  `json:"eml,omitempty"`
	TemplateID *uint64 `json:"template_id,omitempty"`
	Text       *string `json:"text,omitempty"`
	HTML       *string `json:"html,omitempty"`

	Preview *string `json:"preview,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
	SendControl SendControl  `json:"send_control"`
	CampaignID  *string      `json:"campaign_id,omitempty"`
}

// ReplyEmailRequest replies to an existing synced message.
type ReplyEmailRequest struct {
	AccountID uint64 `json:"account_id" validate:"required"`
	MailboxID uint64 `json:"mailbox_id" validate:"required"`
	UID       string `json:"uid" validate:"required"`

	ReplyAll bool `json:"reply_all"`

	Text *string `json:"text,omitempty"`
	HTML *string `json:"html,omitempty"`

	IncludeOriginal        bool `json:"include_original"`
	IncludeAllAttachments  bool `json:"include_all_attachments"`

	Attachments []Attachment `json:"attachments,omitempty"`
	SendControl SendControl  `json:"send_control"`
	SendAtUnix  *int64       `json:"send_at,omitempty"`
}

// ForwardEmailRequest forwards an existing synced message to a new recipient
// set supplied by the caller.
type ForwardEmailRequest struct {
	AccountID uint64 `json:"account_id" validate:"required"`
	MailboxID uint64 `json:"mailbox_id" validate:"required"`
	UID       string `json:"uid" validate:"required"`

	To  []string `json:"to" validate:"required,min=1"`
	Cc  []string `json:"cc,omitempty"`
	Bcc []string `json:"bcc,omitempty"`

	Text *string `json:"text,omitempty"`
	HTML *string `json:"html,omitempty"`

	IncludeAllAttachments bool `json:"include_all_attachments"`

	Attachments []Attachment `json:"attachments,omitempty"`
	SendControl SendControl  `json:"send_control"`
	SendAtUnix  *int64       `json:"send_at,omitempty"`
}

// AnswerEmail carries the original mailbox/uid so the send executor can mark
// it \Answered and append the composed message to Sent after delivery.
type AnswerEmail struct {
	MailboxID uint64 `json:"mailbox_id"`
	UID       string `json:"uid"`
}
