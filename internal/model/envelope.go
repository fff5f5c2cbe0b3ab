package model

import "time"

// BodyPart describes one MIME part of a cached message, enough to resolve
// an attachment reference without re-fetching the whole message.
type BodyPart struct {
	PartID      string `json:"part_id"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
	Size        uint64 `json:"size"`
	Inline      bool   `json:"inline"`
}

// Envelope is the per-message metadata cached locally by the (out of scope)
// sync collaborator; RustMailer's own components only read it.
type Envelope struct {
	AccountID uint64 `json:"account_id"`
	MailboxID uint64 `json:"mailbox_id"`

	// UID for IMAP accounts, Gmail message id for Gmail accounts.
	UID string `json:"uid"`

	InternalDate time.Time `json:"internal_date"`
	Size         uint64    `json:"size"`

	// FlagsHash is a hash of the current flag set, used for cheap
	// change-detection by the sync collaborator.
	FlagsHash uint64 `json:"flags_hash"`

	From       []string `json:"from"`
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Bcc        []string `json:"bcc,omitempty"`
	ReplyTo    []string `json:"reply_to,omitempty"`
	MessageID  string   `json:"message_id"`
	InReplyTo  string   `json:"in_reply_to,omitempty"`
	References []string `json:"references,omitempty"`
	Subject    string   `json:"subject"`
	ThreadID   string   `json:"thread_id,omitempty"`

	BodyParts []BodyPart `json:"body_parts"`
}
