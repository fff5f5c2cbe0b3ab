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

func (s *Server) handleCreateHook(c *gin.Context) {
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireRoot(cc); err != nil {
		writeError(c, err)
		return
	}

	var h model.EventHook
	if err := c.ShouldBindJSON(&h); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed hook body"))
		return
	}
	if h.Type != model.HookHTTP && h.Type != model.HookNATS {
		writeError(c, apperr.New(apperr.InvalidParameter, "hook type must be http or nats"))
		return
	}
	if h.Type == model.HookHTTP && h.HTTP == nil {
		writeError(c, apperr.New(apperr.InvalidParameter, "http hook requires an http config"))
		return
	}
	if h.Type == model.HookNATS && h.NATS == nil {
		writeError(c, apperr.New(apperr.InvalidParameter, "nats hook requires a nats config"))
		return
	}
	if len(h.WatchedEventTypes) == 0 {
		writeError(c, apperr.New(apperr.InvalidParameter, "hook must watch at least one event type"))
		return
	}

	h.ID = idgen.PublicID()
	now := time.Now()
	h.CreatedAt, h.UpdatedAt = now, now

	if err := s.meta.PutHook(&h); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InternalError, "failed to persist hook"))
		return
	}
	c.JSON(http.StatusCreated, h)
}

func (s *Server) handleGetHook(c *gin.Context) {
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireRoot(cc); err != nil {
		writeError(c, err)
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, apperr.New(apperr.InvalidParameter, "invalid hook id"))
		return
	}
	hook, err := s.meta.GetHook(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hook)
}
