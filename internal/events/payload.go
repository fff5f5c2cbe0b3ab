// Package events is the event channel and hook matcher (C4): a buffered
// mpsc-style channel batching domain events from the mail-sync
// collaborator, fanning them out to matching per-account and global hooks,
// and submitting EventHookTask batches to the scheduler. Grounded on
// original_source/src/modules/hook/{channel,task}.rs and
// src/modules/hook/events.
package events

import "github.com/sparklive/rustmailer/internal/model"

// Every payload type below implements model.EventPayload via the
// exported EventPayloadMarker method, matching the "tagged sum, event_type is the
// tag" design note in §9.

type EmailAddedToFolder struct {
	AccountID uint64 `json:"account_id"`
	MailboxID uint64 `json:"mailbox_id"`
	UID       string `json:"uid"`
	Subject   string `json:"subject"`
}

func (EmailAddedToFolder) EventPayloadMarker() {}

type EmailFlagsChanged struct {
	AccountID uint64   `json:"account_id"`
	MailboxID uint64   `json:"mailbox_id"`
	UID       string   `json:"uid"`
	Flags     []string `json:"flags"`
}

func (EmailFlagsChanged) EventPayloadMarker() {}

type EmailSentSuccess struct {
	AccountID    uint64   `json:"account_id"`
	AccountEmail string   `json:"account_email"`
	From         string   `json:"from"`
	To           []string `json:"to"`
	Subject      *string  `json:"subject,omitempty"`
	MessageID    string   `json:"message_id"`
}

func (EmailSentSuccess) EventPayloadMarker() {}

type EmailSendingError struct {
	AccountID    uint64 `json:"account_id"`
	AccountEmail string `json:"account_email"`
	TaskID       string `json:"task_id"`
	RetryCount   uint32 `json:"retry_count"`
	NextRunUnix  int64  `json:"next_run_unix"`
	Error        string `json:"error"`
}

func (EmailSendingError) EventPayloadMarker() {}

type UIDValidityChange struct {
	AccountID   uint64 `json:"account_id"`
	MailboxID   uint64 `json:"mailbox_id"`
	UIDValidity uint32 `json:"uid_validity"`
}

func (UIDValidityChange) EventPayloadMarker() {}

type MailboxDeletion struct {
	AccountID uint64 `json:"account_id"`
	MailboxID uint64 `json:"mailbox_id"`
	Name      string `json:"name"`
}

func (MailboxDeletion) EventPayloadMarker() {}

type MailboxCreation struct {
	AccountID uint64 `json:"account_id"`
	MailboxID uint64 `json:"mailbox_id"`
	Name      string `json:"name"`
}

func (MailboxCreation) EventPayloadMarker() {}

type AccountFirstSyncCompleted struct {
	AccountID uint64 `json:"account_id"`
}

func (AccountFirstSyncCompleted) EventPayloadMarker() {}

type EmailBounce struct {
	AccountID uint64 `json:"account_id"`
	MessageID string `json:"message_id"`
	Reason    string `json:"reason"`
}

func (EmailBounce) EventPayloadMarker() {}

type EmailFeedBackReport struct {
	AccountID uint64 `json:"account_id"`
	MessageID string `json:"message_id"`
	Type      string `json:"type"`
}

func (EmailFeedBackReport) EventPayloadMarker() {}

type EmailOpened struct {
	AccountID  uint64 `json:"account_id"`
	MessageID  string `json:"message_id"`
	CampaignID string `json:"campaign_id"`
}

func (EmailOpened) EventPayloadMarker() {}

type EmailLinkClicked struct {
	AccountID  uint64 `json:"account_id"`
	MessageID  string `json:"message_id"`
	CampaignID string `json:"campaign_id"`
	Target     string `json:"target"`
}

func (EmailLinkClicked) EventPayloadMarker() {}
