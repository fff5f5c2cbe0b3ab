package accesscontrol

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/apperr"
)

const contextKey = "rustmailer.client"

// Middleware builds the gin handler every REST route passes through:
// extract, authenticate, attach ClientContext, or reject with the
// apperr-derived HTTP status.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := ExtractToken(c.Request)
		remoteIP := c.ClientIP()
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			remoteIP = host
		}

		cc, err := g.Authenticate(raw, remoteIP)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(contextKey, cc)
		c.Next()
	}
}

// FromContext retrieves the ClientContext a Middleware call attached.
func FromContext(c *gin.Context) *ClientContext {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	return v.(*ClientContext)
}

func writeError(c *gin.Context, err error) {
	if ae, ok := err.(*apperr.Error); ok {
		c.JSON(ae.Code.HTTPStatus(), gin.H{"code": ae.Code, "message": ae.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": apperr.InternalError, "message": err.Error()})
}
