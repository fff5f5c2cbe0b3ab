// Package accesscontrol implements RustMailer's access control (C8):
// bearer token extraction from header or query param, the root-token fast
// path, per-token record load with ClientContext construction, scope
// enforcement, IP allow-listing, and leaky-bucket rate limiting. Grounded
// on the teacher's internal/handlers gin middleware chain, generalized from
// the teacher's single auth check to the fuller gate described in
// original_source/src/modules/utils/rate_limit/mod.rs and
// spec.md §4.8/§7.
package accesscontrol

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

// ClientContext is the resolved identity attached to a request after
// Authenticate succeeds.
type ClientContext struct {
	Token   *model.AccessToken
	IsRoot  bool
	TokenID string
}

// envelopeClaims is the signed wrapper golang-jwt/jwt/v5 mints around an
// opaque access token string so expiry/scope metadata travels verifiably
// alongside it, per SPEC_FULL.md §4.8's Go notes.
type envelopeClaims struct {
	jwt.RegisteredClaims
	Opaque string   `json:"opaque"`
	Scopes []string `json:"scopes,omitempty"`
}

// Gate is the access-control middleware factory: token lookup, root
// fast-path, scope/IP/rate-limit enforcement.
type Gate struct {
	meta       *store.MetaStore
	rootToken  string
	enabled    bool
	signingKey []byte
	limiter    *RateLimiter
}

func NewGate(meta *store.MetaStore, rootToken string, enabled bool, signingKey []byte) *Gate {
	return &Gate{meta: meta, rootToken: rootToken, enabled: enabled, signingKey: signingKey, limiter: NewRateLimiter()}
}

// ExtractToken pulls the bearer credential from the Authorization header,
// falling back to the access_token query parameter, per spec.md §6.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest
		}
	}
	return r.URL.Query().Get("access_token")
}

// Authenticate resolves raw into a ClientContext: the distinguished root
// token short-circuits to an all-scopes/all-accounts identity; otherwise the
// token is looked up, its last_used_at touched, and IP/rate checks applied.
func (g *Gate) Authenticate(raw string, remoteIP string) (*ClientContext, error) {
	if !g.enabled {
		return &ClientContext{IsRoot: true, TokenID: "disabled"}, nil
	}
	if raw == "" {
		return nil, apperr.New(apperr.PermissionDenied, "missing access token")
	}
	if g.rootToken != "" && raw == g.rootToken {
		return &ClientContext{IsRoot: true, TokenID: "root"}, nil
	}

	opaque, err := g.verifyEnvelope(raw)
	if err != nil {
		return nil, err
	}

	tok, err := g.meta.GetToken(opaque)
	if err != nil {
		return nil, err
	}

	if tok.ACL != nil && len(tok.ACL.AllowedIPs) > 0 && !ipAllowed(remoteIP, tok.ACL.AllowedIPs) {
		return nil, apperr.New(apperr.PermissionDenied, "source ip not allowed for this token")
	}

	if tok.ACL != nil && tok.ACL.RateQuota > 0 {
		if !g.limiter.Allow(tok.Token, tok.ACL.RateQuota, tok.ACL.RateIntervalS) {
			return nil, apperr.New(apperr.TooManyRequest, "rate limit exceeded")
		}
	}

	_ = g.meta.TouchToken(tok.Token, time.Now())
	return &ClientContext{Token: tok, TokenID: tok.Token}, nil
}

// verifyEnvelope accepts either a bare opaque token (the common case, when
// tokens are minted by PutToken directly) or a signed JWT envelope wrapping
// one; unsigned opaque strings pass through unchanged since the envelope is
// optional packaging, not a requirement for validity.
func (g *Gate) verifyEnvelope(raw string) (string, error) {
	if !strings.Contains(raw, ".") {
		return raw, nil
	}
	var claims envelopeClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return g.signingKey, nil
	})
	if err != nil {
		return "", apperr.Wrap(err, apperr.PermissionDenied, "invalid token envelope")
	}
	return claims.Opaque, nil
}

// MintEnvelope wraps an opaque token in a signed JWT carrying scopes and an
// expiry, for callers that want a self-describing bearer credential instead
// of a bare opaque string.
func (g *Gate) MintEnvelope(opaque string, scopes []model.Scope, ttl time.Duration) (string, error) {
	scopeStrings := make([]string, len(scopes))
	for i, s := range scopes {
		scopeStrings[i] = string(s)
	}
	claims := envelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		Opaque:           opaque,
		Scopes:           scopeStrings,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.signingKey)
}

// RequireRoot fails unless cc is the distinguished root identity.
func RequireRoot(cc *ClientContext) error {
	if !cc.IsRoot {
		return apperr.New(apperr.PermissionDenied, "root token required")
	}
	return nil
}

// RequireAuthorized fails unless cc carries scope s (root always passes).
func RequireAuthorized(cc *ClientContext, s model.Scope) error {
	if cc.IsRoot {
		return nil
	}
	if cc.Token == nil || !cc.Token.HasScope(s) {
		return apperr.New(apperr.PermissionDenied, "token lacks required scope: "+string(s))
	}
	return nil
}

// RequireAccountAccess fails unless cc may act on accountID (root always
// passes).
func RequireAccountAccess(cc *ClientContext, accountID uint64) error {
	if cc.IsRoot {
		return nil
	}
	if cc.Token == nil || !cc.Token.CanAccessAccount(accountID) {
		return apperr.New(apperr.PermissionDenied, "token not authorized for this account")
	}
	return nil
}
