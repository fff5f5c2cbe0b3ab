package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
)

// handleOAuth2Callback completes an authorization-code exchange: the
// account id travels in the state parameter, set when the caller was
// redirected to the provider's auth URL, per spec.md §4.1's OAuth2 accounts.
func (s *Server) handleOAuth2Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		writeError(c, apperr.New(apperr.InvalidParameter, "missing authorization code"))
		return
	}
	accountID, err := strconv.ParseUint(c.Query("state"), 10, 64)
	if err != nil {
		writeError(c, apperr.New(apperr.InvalidParameter, "missing or malformed state parameter"))
		return
	}

	cfg, err := s.oauth.OAuth2ClientConfig(accountID)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := cfg.Exchange(c.Request.Context(), code)
	if err != nil {
		writeError(c, apperr.Wrap(err, apperr.MissingRefreshToken, "oauth2 authorization code exchange failed"))
		return
	}

	encAccess, err := s.oauth.EncryptAccessToken(token.AccessToken)
	if err != nil {
		writeError(c, err)
		return
	}
	encRefresh, err := s.oauth.EncryptAccessToken(token.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	record := &model.OAuth2Token{
		AccountID:    accountID,
		AccessToken:  encAccess,
		RefreshToken: encRefresh,
		ExpiresAt:    token.Expiry,
		UpdatedAt:    time.Now(),
	}
	if err := s.oauth.PutOAuth2Token(record); err != nil {
		writeError(c, err)
		return
	}

	if s.oauth2CallbackSuccess != "" {
		c.Redirect(http.StatusFound, s.oauth2CallbackSuccess)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "oauth2 authorization complete"})
}
