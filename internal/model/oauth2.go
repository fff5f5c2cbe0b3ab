package model

import "time"

// OAuth2Config is a reusable authorization-code-flow client configuration,
// separate from Account so multiple accounts can share one client linkage.
type OAuth2Config struct {
	ID              uint64            `json:"id"`
	ClientID        string            `json:"client_id"`
	ClientSecret    string            `json:"client_secret"` // at-rest encrypted
	AuthURL         string            `json:"auth_url"`
	TokenURL        string            `json:"token_url"`
	RedirectURI     string            `json:"redirect_uri"`
	Scopes          []string          `json:"scopes"`
	ExtraParams     map[string]string `json:"extra_params,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// OAuth2Token is the access/refresh-token record for one account.
type OAuth2Token struct {
	AccountID    uint64    `json:"account_id"`
	AccessToken  string    `json:"access_token"` // at-rest encrypted
	RefreshToken string    `json:"refresh_token"` // at-rest encrypted
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Expired reports whether the access token needs a refresh, with a small
// safety margin so callers don't race the expiry boundary.
func (t *OAuth2Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now.Add(30 * time.Second))
}
