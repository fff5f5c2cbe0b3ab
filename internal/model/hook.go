package model

import "time"

// EventType enumerates the domain events the mail-sync collaborator and the
// send pipeline can raise.
type EventType string

const (
	EventEmailAddedToFolder        EventType = "EmailAddedToFolder"
	EventEmailFlagsChanged         EventType = "EmailFlagsChanged"
	EventEmailSentSuccess          EventType = "EmailSentSuccess"
	EventEmailSendingError         EventType = "EmailSendingError"
	EventUIDValidityChange         EventType = "UIDValidityChange"
	EventMailboxDeletion           EventType = "MailboxDeletion"
	EventMailboxCreation           EventType = "MailboxCreation"
	EventAccountFirstSyncCompleted EventType = "AccountFirstSyncCompleted"
	EventEmailBounce               EventType = "EmailBounce"
	EventEmailFeedBackReport       EventType = "EmailFeedBackReport"
	EventEmailOpened               EventType = "EmailOpened"
	EventEmailLinkClicked          EventType = "EmailLinkClicked"
)

// HookType selects the delivery transport for an EventHook.
type HookType string

const (
	HookHTTP HookType = "http"
	HookNATS HookType = "nats"
)

// HTTPMethod restricts hook HTTP delivery to POST or PUT.
type HTTPMethod string

const (
	MethodPost HTTPMethod = "POST"
	MethodPut  HTTPMethod = "PUT"
)

// HTTPHookConfig is the delivery configuration for an HTTP-type hook.
type HTTPHookConfig struct {
	URL     string            `json:"url"`
	Method  HTTPMethod        `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// NATSAuth selects how the NATS connection authenticates.
type NATSAuth string

const (
	NATSAuthNone     NATSAuth = "none"
	NATSAuthUserPass NATSAuth = "user_pass"
	NATSAuthToken    NATSAuth = "token"
)

// NATSHookConfig is the delivery configuration for a NATS-type hook.
type NATSHookConfig struct {
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Auth      NATSAuth `json:"auth"`
	Username  string   `json:"username,omitempty"`
	Password  string   `json:"password,omitempty"` // at-rest encrypted
	Token     string   `json:"token,omitempty"`     // at-rest encrypted
	Stream    string   `json:"stream"`
	Namespace string   `json:"namespace"`
}

// EventHook is a user-configured subscription turning a domain event into an
// outbound HTTP or NATS message.
type EventHook struct {
	ID        uint64   `json:"id"`
	AccountID *uint64  `json:"account_id,omitempty"` // nil == global
	Enabled   bool     `json:"enabled"`
	Type      HookType `json:"type"`

	HTTP *HTTPHookConfig `json:"http,omitempty"`
	NATS *NATSHookConfig `json:"nats,omitempty"`

	TransformScript *string `json:"transform_script,omitempty"`

	WatchedEventTypes []EventType `json:"watched_event_types"`

	ProxyID *uint64 `json:"proxy_id,omitempty"`

	CallCount    uint64  `json:"call_count"`
	SuccessCount uint64  `json:"success_count"`
	FailureCount uint64  `json:"failure_count"`
	LastError    *string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsGlobal reports whether this hook applies to every account.
func (h *EventHook) IsGlobal() bool { return h.AccountID == nil }

// Watches reports whether the hook is enabled and subscribed to t.
func (h *EventHook) Watches(t EventType) bool {
	if !h.Enabled {
		return false
	}
	for _, w := range h.WatchedEventTypes {
		if w == t {
			return true
		}
	}
	return false
}

// EventPayload is a marker interface implemented by every typed event
// payload variant (see internal/events/payload.go).
type EventPayload interface {
	EventPayloadMarker()
}

// EventRecord is one domain event instance routed through the event
// channel and, ultimately, to matching hooks.
type EventRecord struct {
	ID          uint64       `json:"id"`
	Type        EventType    `json:"event_type"`
	InstanceURL string       `json:"instance_url"`
	Timestamp   time.Time    `json:"timestamp"`
	Payload     EventPayload `json:"payload"`
}
