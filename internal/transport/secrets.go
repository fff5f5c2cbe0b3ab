package transport

import (
	"context"
	"time"

	"golang.org/x/oauth2"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/secretcrypt"
	"github.com/sparklive/rustmailer/internal/smtptask"
	"github.com/sparklive/rustmailer/internal/store"
)

// SecretResolver is the single AccountSecrets/TokenStore/ExecutorResolver
// implementation every C1 executor (IMAP, SMTP, Gmail) shares: it bridges
// internal/store.MetaStore's encrypted-at-rest columns through
// internal/secretcrypt, decrypting on read and encrypting on write. Mirrors
// the teacher's pattern of a single client type wrapping service+auth+store
// (pkg/gmail/client.go, pkg/outlook/client.go), generalized to cover every
// transport instead of one read-only Gmail client.
type SecretResolver struct {
	meta *store.MetaStore
	enc  *secretcrypt.Encryptor
}

func NewSecretResolver(meta *store.MetaStore, enc *secretcrypt.Encryptor) *SecretResolver {
	return &SecretResolver{meta: meta, enc: enc}
}

// IMAPEndpoint implements imap.AccountSecrets.
func (r *SecretResolver) IMAPEndpoint(accountID uint64) (*model.EndpointConfig, *model.Proxy, error) {
	account, err := r.meta.GetAccount(accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.IMAP == nil {
		return nil, nil, apperr.New(apperr.MissingConfiguration, "account has no imap endpoint configured")
	}
	proxyCfg, err := r.proxyFor(account)
	if err != nil {
		return nil, nil, err
	}
	return account.IMAP, proxyCfg, nil
}

// SMTPEndpoint implements smtp.AccountSecrets.
func (r *SecretResolver) SMTPEndpoint(accountID uint64) (*model.EndpointConfig, *model.Proxy, error) {
	account, err := r.meta.GetAccount(accountID)
	if err != nil {
		return nil, nil, err
	}
	if account.SMTP == nil {
		return nil, nil, apperr.New(apperr.MissingConfiguration, "account has no smtp endpoint configured")
	}
	proxyCfg, err := r.proxyFor(account)
	if err != nil {
		return nil, nil, err
	}
	return account.SMTP, proxyCfg, nil
}

func (r *SecretResolver) proxyFor(account *model.Account) (*model.Proxy, error) {
	if account.ProxyID == nil {
		return nil, nil
	}
	return r.meta.GetProxy(*account.ProxyID)
}

// Password implements imap.AccountSecrets and smtp.AccountSecrets, decrypting
// whichever endpoint's secret column applies (IMAP preferred; SMTP as a
// fallback for SMTP-only accounts).
func (r *SecretResolver) Password(accountID uint64) (string, error) {
	account, err := r.meta.GetAccount(accountID)
	if err != nil {
		return "", err
	}
	var secret string
	switch {
	case account.IMAP != nil && account.IMAP.Secret != "":
		secret = account.IMAP.Secret
	case account.SMTP != nil && account.SMTP.Secret != "":
		secret = account.SMTP.Secret
	default:
		return "", apperr.New(apperr.MissingConfiguration, "account has no stored password")
	}
	plain, err := r.enc.Decrypt(secret)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// OAuth2AccessToken implements imap.AccountSecrets and smtp.AccountSecrets:
// return a live access token, refreshing through the account's OAuth2
// client config when the stored token has expired.
func (r *SecretResolver) OAuth2AccessToken(ctx context.Context, accountID uint64) (string, error) {
	tok, err := r.meta.GetOAuth2Token(accountID)
	if err != nil {
		return "", err
	}
	access, err := r.DecryptedAccessToken(tok)
	if err != nil {
		return "", err
	}
	if !tok.Expired(time.Now()) {
		return access, nil
	}

	cfg, err := r.OAuth2ClientConfig(accountID)
	if err != nil {
		return "", err
	}
	refreshToken, err := r.DecryptedRefreshToken(tok)
	if err != nil {
		return "", err
	}
	fresh, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", apperr.Wrap(err, apperr.MissingRefreshToken, "oauth2 token refresh failed")
	}

	encrypted, err := r.EncryptAccessToken(fresh.AccessToken)
	if err != nil {
		return "", err
	}
	tok.AccessToken = encrypted
	tok.ExpiresAt = fresh.Expiry
	tok.UpdatedAt = time.Now()
	if err := r.meta.PutOAuth2Token(tok); err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// --- gmail.TokenStore ---

func (r *SecretResolver) GetOAuth2Token(accountID uint64) (*model.OAuth2Token, error) {
	return r.meta.GetOAuth2Token(accountID)
}

func (r *SecretResolver) PutOAuth2Token(t *model.OAuth2Token) error {
	return r.meta.PutOAuth2Token(t)
}

func (r *SecretResolver) DecryptedAccessToken(t *model.OAuth2Token) (string, error) {
	plain, err := r.enc.Decrypt(t.AccessToken)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (r *SecretResolver) DecryptedRefreshToken(t *model.OAuth2Token) (string, error) {
	plain, err := r.enc.Decrypt(t.RefreshToken)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (r *SecretResolver) EncryptAccessToken(plain string) (string, error) {
	return r.enc.Encrypt([]byte(plain))
}

func (r *SecretResolver) OAuth2ClientConfig(accountID uint64) (*oauth2.Config, error) {
	account, err := r.meta.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if account.OAuth2ConfigID == nil {
		return nil, apperr.New(apperr.MissingConfiguration, "account has no oauth2 client config linked")
	}
	stored, err := r.meta.GetOAuth2Config(*account.OAuth2ConfigID)
	if err != nil {
		return nil, err
	}
	clientSecret, err := r.enc.Decrypt(stored.ClientSecret)
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     stored.ClientID,
		ClientSecret: string(clientSecret),
		Scopes:       stored.Scopes,
		RedirectURL:  stored.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:  stored.AuthURL,
			TokenURL: stored.TokenURL,
		},
	}, nil
}

// --- nats.ConfigResolver ---

func (r *SecretResolver) ResolveNATSAuth(cfg *model.NATSHookConfig) (username, password, token string, err error) {
	username = cfg.Username
	if cfg.Password != "" {
		plain, derr := r.enc.Decrypt(cfg.Password)
		if derr != nil {
			return "", "", "", derr
		}
		password = string(plain)
	}
	if cfg.Token != "" {
		plain, derr := r.enc.Decrypt(cfg.Token)
		if derr != nil {
			return "", "", "", derr
		}
		token = string(plain)
	}
	return username, password, token, nil
}

// --- smtptask.ExecutorResolver ---

// ExecutorResolver picks a smtptask.Executor by the account's Kind, per
// §4.1/§4.7: IMAP/SMTP accounts route through the pooled SMTP executor,
// Gmail-API accounts through the Gmail API executor.
type ExecutorResolver struct {
	meta      *store.MetaStore
	smtpExec  smtptask.Executor
	gmailExec smtptask.Executor
}

func NewExecutorResolver(meta *store.MetaStore, smtpExec, gmailExec smtptask.Executor) *ExecutorResolver {
	return &ExecutorResolver{meta: meta, smtpExec: smtpExec, gmailExec: gmailExec}
}

func (e *ExecutorResolver) ExecutorFor(accountID uint64) (smtptask.Executor, error) {
	account, err := e.meta.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	switch account.Kind {
	case model.AccountKindGmailAPI:
		if e.gmailExec == nil {
			return nil, apperr.New(apperr.MissingConfiguration, "gmail executor not configured")
		}
		return e.gmailExec, nil
	default:
		if e.smtpExec == nil {
			return nil, apperr.New(apperr.MissingConfiguration, "smtp executor not configured")
		}
		return e.smtpExec, nil
	}
}
