package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/accesscontrol"
	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
)

// createTokenRequest is the minting request body; minting a bearer
// credential is a root-only operation per spec.md §4.8.
type createTokenRequest struct {
	Owner      string        `json:"owner" binding:"required"`
	Scopes     []model.Scope `json:"scopes" binding:"required"`
	ACL        *model.ACL    `json:"acl,omitempty"`
	AccountIDs []uint64      `json:"account_ids,omitempty"`
}

func (s *Server) handleCreateToken(c *gin.Context) {
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireRoot(cc); err != nil {
		writeError(c, err)
		return
	}

	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed token request body"))
		return
	}

	tok := &model.AccessToken{
		Token:      idgen.NewAccessToken(),
		Owner:      req.Owner,
		Scopes:     req.Scopes,
		ACL:        req.ACL,
		AccountIDs: req.AccountIDs,
		CreatedAt:  time.Now(),
	}
	if err := s.meta.PutToken(tok); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InternalError, "failed to persist token"))
		return
	}
	c.JSON(http.StatusCreated, tok)
}
