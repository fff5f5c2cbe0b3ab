package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/accesscontrol"
	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
)

func (s *Server) handleCreateAccount(c *gin.Context) {
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireRoot(cc); err != nil {
		writeError(c, err)
		return
	}

	var a model.Account
	if err := c.ShouldBindJSON(&a); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed account body"))
		return
	}
	if err := a.Validate(); err != nil {
		writeError(c, err)
		return
	}
	a.ID = idgen.PublicID()
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now

	if err := s.meta.PutAccount(&a); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InternalError, "failed to persist account"))
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, apperr.New(apperr.InvalidParameter, "invalid account id"))
		return
	}
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireAccountAccess(cc, id); err != nil {
		writeError(c, err)
		return
	}

	account, err := s.meta.GetAccount(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireRoot(cc); err != nil {
		writeError(c, err)
		return
	}
	accounts, err := s.meta.ListAccounts()
	if err != nil {
		writeError(c, apperr.Wrap(err, apperr.InternalError, "failed to list accounts"))
		return
	}
	c.JSON(http.StatusOK, accounts)
}
