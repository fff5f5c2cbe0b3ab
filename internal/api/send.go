package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/accesscontrol"
	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

func (s *Server) handleSend(c *gin.Context) {
	var req model.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed send request body"))
		return
	}
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireAccountAccess(cc, req.AccountID); err != nil {
		writeError(c, err)
		return
	}

	params, err := s.builder.BuildSend(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_ids": messageIDs(params)})
}

func (s *Server) handleReply(c *gin.Context) {
	var req model.ReplyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed reply request body"))
		return
	}
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireAccountAccess(cc, req.AccountID); err != nil {
		writeError(c, err)
		return
	}

	params, err := s.builder.BuildReply(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_id": params.MessageID})
}

func (s *Server) handleForward(c *gin.Context) {
	var req model.ForwardEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(err, apperr.InvalidParameter, "malformed forward request body"))
		return
	}
	cc := accesscontrol.FromContext(c)
	if err := accesscontrol.RequireAccountAccess(cc, req.AccountID); err != nil {
		writeError(c, err)
		return
	}

	params, err := s.builder.BuildForward(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message_id": params.MessageID})
}

func messageIDs(params []model.SmtpTaskParams) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.MessageID
	}
	return out
}

func writeError(c *gin.Context, err error) {
	if ae, ok := apperr.As(err); ok {
		c.JSON(ae.Code.HTTPStatus(), gin.H{"code": ae.Code, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": apperr.InternalError, "message": err.Error()})
}
