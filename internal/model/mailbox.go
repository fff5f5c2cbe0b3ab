package model

import (
	"crypto/sha256"
	"encoding/binary"
)

// MailboxAttribute mirrors the handful of IMAP LIST attributes (and their
// Gmail label analogues) the system cares about.
type MailboxAttribute string

const (
	AttrNoSelect MailboxAttribute = "\\NoSelect"
	AttrTrash    MailboxAttribute = "\\Trash"
	AttrJunk     MailboxAttribute = "\\Junk"
	AttrSent     MailboxAttribute = "\\Sent"
	AttrDrafts   MailboxAttribute = "\\Drafts"
)

// Mailbox is the cached representation of one IMAP mailbox or Gmail label.
type Mailbox struct {
	ID             uint64             `json:"id"`
	AccountID      uint64             `json:"account_id"`
	Name           string             `json:"name"`
	Attributes     []MailboxAttribute `json:"attributes"`
	Exists         uint32             `json:"exists"`
	Unseen         uint32             `json:"unseen"`
	UIDNext        uint32             `json:"uid_next"`
	UIDValidity    uint32             `json:"uid_validity"`
	HighestModSeq  uint64             `json:"highest_mod_seq"`
}

// MailboxID computes the deterministic id used across process restarts:
// a stable hash of (account_id, mailbox name), per the Data Model invariant
// that external references must survive restarts without a migration.
func MailboxID(accountID uint64, name string) uint64 {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], accountID)
	h.Write(buf[:])
	h.Write([]byte(name))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63) // keep it a positive int64 too
}

func (m *Mailbox) HasAttribute(a MailboxAttribute) bool {
	for _, have := range m.Attributes {
		if have == a {
			return true
		}
	}
	return false
}
