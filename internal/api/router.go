// Package api is RustMailer's REST surface: gin routes for send/reply/
// forward, account/hook/token CRUD, the OAuth2 authorization-code callback,
// tracking pixel/redirect endpoints, and the Prometheus /metrics handler.
// Grounded on the teacher's internal/handlers gin-based EmailHandler,
// generalized past single-resource CRUD to the fuller surface spec.md §6
// describes, with per-route metrics instrumentation matching the teacher's
// own promauto counters/histograms.
package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sparklive/rustmailer/internal/accesscontrol"
	"github.com/sparklive/rustmailer/internal/compose"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/metrics"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxRequestTimeout     = 600 * time.Second
)

// OAuth2Exchanger is the narrow surface handleOAuth2Callback needs from
// internal/transport.SecretResolver to complete an authorization-code
// exchange without this package depending on the executor pools.
type OAuth2Exchanger interface {
	OAuth2ClientConfig(accountID uint64) (*oauth2.Config, error)
	EncryptAccessToken(plain string) (string, error)
	PutOAuth2Token(t *model.OAuth2Token) error
}

// Server bundles every collaborator the REST surface needs.
type Server struct {
	meta    *store.MetaStore
	blobs   *store.AttachmentStore
	builder *compose.Builder
	gate    *accesscontrol.Gate
	events  *events.Channel
	oauth   OAuth2Exchanger
	logger  *zap.Logger

	trackingEnabled        bool
	instanceURL            string
	oauth2CallbackSuccess  string
}

func NewServer(meta *store.MetaStore, blobs *store.AttachmentStore, builder *compose.Builder, gate *accesscontrol.Gate, ch *events.Channel, oauth OAuth2Exchanger, trackingEnabled bool, instanceURL, oauth2CallbackSuccessURL string, logger *zap.Logger) *Server {
	return &Server{
		meta:                  meta,
		blobs:                 blobs,
		builder:               builder,
		gate:                  gate,
		events:                ch,
		oauth:                 oauth,
		logger:                logger,
		trackingEnabled:       trackingEnabled,
		instanceURL:           instanceURL,
		oauth2CallbackSuccess: oauth2CallbackSuccessURL,
	}
}

// Engine builds the gin engine with every route registered.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestTimeout(), s.metricsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/t/:token", s.handleTracking)

	v1 := r.Group("/api/v1")
	v1.Use(s.gate.Middleware())
	{
		v1.POST("/send", s.handleSend)
		v1.POST("/reply", s.handleReply)
		v1.POST("/forward", s.handleForward)

		v1.POST("/accounts", s.handleCreateAccount)
		v1.GET("/accounts/:id", s.handleGetAccount)
		v1.GET("/accounts", s.handleListAccounts)

		v1.POST("/hooks", s.handleCreateHook)
		v1.GET("/hooks/:id", s.handleGetHook)

		v1.POST("/tokens", s.handleCreateToken)

		v1.GET("/oauth2/callback", s.handleOAuth2Callback)
	}

	return r
}

// requestTimeout applies the per-request override header
// X-RustMailer-Timeout-Seconds (default 30, max 600) per spec.md §5.
func (s *Server) requestTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		timeout := defaultRequestTimeout
		if raw := c.GetHeader("X-RustMailer-Timeout-Seconds"); raw != "" {
			if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
				timeout = time.Duration(secs) * time.Second
				if timeout > maxRequestTimeout {
					timeout = maxRequestTimeout
				}
			}
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// metricsMiddleware records RequestDuration/RequestTotal labeled by method
// and the matched route's OperationId (here, its gin route path), per
// spec.md §6.
func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		op := c.FullPath()
		if op == "" {
			op = "unmatched"
		}
		metrics.RequestDuration.WithLabelValues(c.Request.Method, op).Observe(time.Since(start).Seconds())
		metrics.RequestTotal.WithLabelValues(c.Request.Method, op).Inc()
	}
}
