// Package model holds RustMailer's persistent entity shapes: accounts,
// OAuth2 linkages, proxies, mailboxes, envelopes, event hooks, event
// records, scheduler tasks and access tokens.
package model

import (
	"strings"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
)

// AccountKind distinguishes a classic IMAP+SMTP mailbox from a Gmail API
// mailbox. A Gmail account has no IMAP/SMTP config but must carry an OAuth2
// linkage.
type AccountKind string

const (
	AccountKindIMAPSMTP AccountKind = "imap_smtp"
	AccountKindGmailAPI AccountKind = "gmail_api"
)

// Encryption is the transport security mode for an IMAP or SMTP endpoint.
type Encryption string

const (
	EncryptionImplicitTLS Encryption = "implicit_tls"
	EncryptionStartTLS    Encryption = "starttls"
	EncryptionPlaintext   Encryption = "plaintext"
)

// AuthMethod is how the executor authenticates to IMAP/SMTP.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthOAuth2   AuthMethod = "oauth2"
)

// DSNCapable is a tri-state: the account's DSN support is unknown until the
// SMTP executor observes the advertised EHLO extensions on first send.
type DSNCapable int8

const (
	DSNUnknown DSNCapable = 0
	DSNYes     DSNCapable = 1
	DSNNo      DSNCapable = -1
)

// EndpointConfig describes one side (IMAP or SMTP) of a classic mailbox.
type EndpointConfig struct {
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	Encryption Encryption `json:"encryption"`
	Auth       AuthMethod `json:"auth"`
	Username   string     `json:"username"`
	// Secret holds the at-rest-encrypted password (see internal/secretcrypt),
	// empty when Auth is AuthOAuth2.
	Secret string `json:"secret,omitempty"`
}

// Account is a logical mailbox owned by the middleware.
type Account struct {
	ID    uint64      `json:"id"`
	Email string      `json:"email"`
	Kind  AccountKind `json:"kind"`

	IMAP *EndpointConfig `json:"imap,omitempty"`
	SMTP *EndpointConfig `json:"smtp,omitempty"`

	DSNCapable DSNCapable `json:"dsn_capable"`

	// SyncFolders holds IMAP mailbox names, or Gmail label ids, depending on
	// Kind.
	SyncFolders []string `json:"sync_folders"`

	IncrementalSyncIntervalSecs uint32 `json:"incremental_sync_interval_secs"`
	FullSyncIntervalSecs        uint32 `json:"full_sync_interval_secs"`

	ProxyID *uint64 `json:"proxy_id,omitempty"`

	// OAuth2ConfigID links to the shared client registration used to refresh
	// this account's token; set whenever IMAP/SMTP/Gmail auth is AuthOAuth2.
	OAuth2ConfigID *uint64 `json:"oauth2_config_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Domain returns the part of Email after '@', used to build Message-IDs.
func (a *Account) Domain() string {
	if _, domain, ok := strings.Cut(a.Email, "@"); ok {
		return domain
	}
	return "localhost"
}

// Validate enforces the Data Model invariant: a Gmail-API account carries no
// IMAP/SMTP config and must have an OAuth2 linkage (OAuth2ConfigID set;
// whether that config exists is not checked here).
func (a *Account) Validate() error {
	if a.Kind == AccountKindGmailAPI {
		if a.IMAP != nil || a.SMTP != nil {
			return apperr.New(apperr.InvalidParameter, "gmail accounts must not carry imap/smtp config")
		}
		if a.OAuth2ConfigID == nil {
			return apperr.New(apperr.InvalidParameter, "gmail accounts require an oauth2_config_id")
		}
	}
	if a.Kind == AccountKindIMAPSMTP && a.IMAP == nil && a.SMTP == nil {
		return apperr.New(apperr.InvalidParameter, "imap_smtp accounts require at least one of imap/smtp config")
	}
	return nil
}
