package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/model"
)

// pixelGIF is a 1x1 transparent GIF served for open-tracking hits.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00,
	0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02,
	0x44, 0x01, 0x00, 0x3b,
}

// handleTracking decodes the kind:querystring token compose.Tracker.encode
// produces and either serves the open-tracking pixel or redirects a
// click-tracking hit to its original target, emitting the corresponding
// domain event either way, per spec.md §4.6.
func (s *Server) handleTracking(c *gin.Context) {
	if !s.trackingEnabled {
		c.Status(http.StatusNotFound)
		return
	}

	decoded, err := url.QueryUnescape(c.Param("token"))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	kind, qs, ok := strings.Cut(decoded, ":")
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}
	vals, err := url.ParseQuery(qs)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	accountID, _ := strconv.ParseUint(vals.Get("a"), 10, 64)
	campaignID := vals.Get("c")
	messageID := vals.Get("m")
	target := vals.Get("t")

	switch kind {
	case "open":
		if s.events != nil {
			s.events.Queue(c.Request.Context(), events.Event{
				AccountID: accountID,
				Record: events.NewEventRecord(model.EventEmailOpened, s.instanceURL, events.EmailOpened{
					AccountID:  accountID,
					MessageID:  messageID,
					CampaignID: campaignID,
				}),
			})
		}
		c.Data(http.StatusOK, "image/gif", pixelGIF)

	case "click":
		if target == "" {
			c.Status(http.StatusBadRequest)
			return
		}
		if s.events != nil {
			s.events.Queue(c.Request.Context(), events.Event{
				AccountID: accountID,
				Record: events.NewEventRecord(model.EventEmailLinkClicked, s.instanceURL, events.EmailLinkClicked{
					AccountID:  accountID,
					MessageID:  messageID,
					CampaignID: campaignID,
					Target:     target,
				}),
			})
		}
		c.Redirect(http.StatusFound, target)

	default:
		c.Status(http.StatusBadRequest)
	}
}
