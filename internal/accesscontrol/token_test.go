package accesscontrol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sparklive/rustmailer/internal/model"
)

func TestRequireRoot(t *testing.T) {
	assert.NoError(t, RequireRoot(&ClientContext{IsRoot: true}))
	assert.Error(t, RequireRoot(&ClientContext{IsRoot: false}))
}

func TestRequireAuthorizedRootAlwaysPasses(t *testing.T) {
	assert.NoError(t, RequireAuthorized(&ClientContext{IsRoot: true}, model.ScopeAPI))
}

func TestRequireAuthorizedChecksTokenScope(t *testing.T) {
	withScope := &ClientContext{Token: &model.AccessToken{Scopes: []model.Scope{model.ScopeAPI}}}
	assert.NoError(t, RequireAuthorized(withScope, model.ScopeAPI))
	assert.Error(t, RequireAuthorized(withScope, model.ScopeMetrics))

	noToken := &ClientContext{}
	assert.Error(t, RequireAuthorized(noToken, model.ScopeAPI))
}

func TestRequireAccountAccess(t *testing.T) {
	assert.NoError(t, RequireAccountAccess(&ClientContext{IsRoot: true}, 999))

	scoped := &ClientContext{Token: &model.AccessToken{AccountIDs: []uint64{1, 2}}}
	assert.NoError(t, RequireAccountAccess(scoped, 1))
	assert.Error(t, RequireAccountAccess(scoped, 3))
}

func TestGateAuthenticateDisabledFastPath(t *testing.T) {
	g := NewGate(nil, "", false, nil)
	cc, err := g.Authenticate("", "127.0.0.1")
	assert.NoError(t, err)
	assert.True(t, cc.IsRoot)
}

func TestGateAuthenticateRootToken(t *testing.T) {
	g := NewGate(nil, "root-secret", true, []byte("signing-key"))
	cc, err := g.Authenticate("root-secret", "127.0.0.1")
	assert.NoError(t, err)
	assert.True(t, cc.IsRoot)
}

func TestGateAuthenticateMissingToken(t *testing.T) {
	g := NewGate(nil, "root-secret", true, []byte("signing-key"))
	_, err := g.Authenticate("", "127.0.0.1")
	assert.Error(t, err)
}

func TestMintAndVerifyEnvelope(t *testing.T) {
	g := NewGate(nil, "", true, []byte("signing-key"))
	envelope, err := g.MintEnvelope("opaque-token-value", []model.Scope{model.ScopeAPI}, time.Minute)
	assert.NoError(t, err)

	opaque, err := g.verifyEnvelope(envelope)
	assert.NoError(t, err)
	assert.Equal(t, "opaque-token-value", opaque)
}

func TestVerifyEnvelopePassesThroughBareOpaqueToken(t *testing.T) {
	g := NewGate(nil, "", true, []byte("signing-key"))
	opaque, err := g.verifyEnvelope("plain-opaque-token")
	assert.NoError(t, err)
	assert.Equal(t, "plain-opaque-token", opaque)
}
