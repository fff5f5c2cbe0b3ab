// Package gmail is the Gmail API executor side of the connection pool &
// executor component (C1): OAuth2 token refresh, message send via
// users.messages.send, and draft-reply threading via users.drafts.create.
// Implements smtptask.Executor for accounts of AccountKindGmailAPI.
// Grounded on the teacher's pkg/gmail/client.go for the
// "service + oauth2 config + rate limiter" construction shape, generalized
// from the teacher's read-oriented GetEmail to RustMailer's send-oriented
// operations per original_source/src/modules/smtp/executor (Gmail branch).
package gmail

import (
	"context"
	"encoding/base64"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

// TokenStore resolves and persists the OAuth2 linkage for a Gmail account.
type TokenStore interface {
	GetOAuth2Token(accountID uint64) (*model.OAuth2Token, error)
	PutOAuth2Token(t *model.OAuth2Token) error
	DecryptedAccessToken(t *model.OAuth2Token) (string, error)
	DecryptedRefreshToken(t *model.OAuth2Token) (string, error)
	EncryptAccessToken(plain string) (string, error)
	OAuth2ClientConfig(accountID uint64) (*oauth2.Config, error)
}

// Executor implements smtptask.Executor for Gmail-API accounts: the DSN
// return value is always false since Gmail's API offers no DSN negotiation
// equivalent to SMTP EHLO.
type Executor struct {
	tokens  TokenStore
	limiter *rate.Limiter
}

// NewExecutor builds a Gmail executor rate limited to 25 API calls/sec with
// a burst of 50, matching the teacher's use of a token-bucket limiter in
// front of the Gmail service client.
func NewExecutor(tokens TokenStore) *Executor {
	return &Executor{tokens: tokens, limiter: rate.NewLimiter(rate.Limit(25), 50)}
}

func (e *Executor) service(ctx context.Context, accountID uint64) (*gmail.Service, error) {
	accessToken, err := e.accessToken(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to construct gmail service client")
	}
	return svc, nil
}

// accessToken returns a live access token, refreshing via the account's
// OAuth2 client config when the stored one has expired.
func (e *Executor) accessToken(ctx context.Context, accountID uint64) (string, error) {
	tok, err := e.tokens.GetOAuth2Token(accountID)
	if err != nil {
		return "", err
	}
	if !tok.Expired(time.Now()) {
		return e.tokens.DecryptedAccessToken(tok)
	}

	cfg, err := e.tokens.OAuth2ClientConfig(accountID)
	if err != nil {
		return "", err
	}
	refreshToken, err := e.tokens.DecryptedRefreshToken(tok)
	if err != nil {
		return "", err
	}
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	fresh, err := src.Token()
	if err != nil {
		return "", apperr.Wrap(err, apperr.MissingRefreshToken, "gmail oauth2 token refresh failed")
	}

	encrypted, err := e.tokens.EncryptAccessToken(fresh.AccessToken)
	if err != nil {
		return "", err
	}
	tok.AccessToken = encrypted
	tok.ExpiresAt = fresh.Expiry
	tok.UpdatedAt = time.Now()
	if err := e.tokens.PutOAuth2Token(tok); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// Send implements smtptask.Executor. The Gmail API wants the raw RFC 5322
// body base64url-encoded with no padding; recipients are already embedded
// in body's To/Cc/Bcc headers by the compose package, so `to` (and
// wantsDSN) are accepted only to match the SMTP executor's signature and
// are not used.
func (e *Executor) Send(ctx context.Context, accountID uint64, from string, to []string, wantsDSN bool, body []byte) (bool, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return false, apperr.Wrap(err, apperr.RequestTimeout, "gmail rate limiter wait canceled")
	}
	svc, err := e.service(ctx, accountID)
	if err != nil {
		return false, err
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(body)}
	if _, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return false, apperr.Wrap(err, apperr.HTTPResponseError, "gmail messages.send failed")
	}
	return false, nil
}

// CreateDraft creates a threaded draft reply via users.drafts.create. The
// send pipeline does not call it; Send is the only delivery path used.
func (e *Executor) CreateDraft(ctx context.Context, accountID uint64, threadID string, body []byte) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", apperr.Wrap(err, apperr.RequestTimeout, "gmail rate limiter wait canceled")
	}
	svc, err := e.service(ctx, accountID)
	if err != nil {
		return "", err
	}
	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(body),
			ThreadId: threadID,
		},
	}
	created, err := svc.Users.Drafts.Create("me", draft).Context(ctx).Do()
	if err != nil {
		return "", apperr.Wrap(err, apperr.HTTPResponseError, "gmail drafts.create failed")
	}
	return created.Id, nil
}
