package compose

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectTrackingRewritesLinksAndAppendsPixel(t *testing.T) {
	tracker := NewTracker(nil, "msg-1", "dest@example.com", 7, "sender@example.com")
	body := `<html><body><p>hi <a href="https://example.com/a">click</a></p></body></html>`

	out, err := InjectTracking(body, "https://track.rustmailer.dev", tracker)
	require.NoError(t, err)

	assert.NotContains(t, out, `href="https://example.com/a"`, "the original destination must not survive unrewritten")
	assert.Contains(t, out, "https://track.rustmailer.dev/")
	assert.Contains(t, out, `<img src="https://track.rustmailer.dev/`)
	assert.True(t, strings.Index(out, "<img") < strings.Index(out, "</body>"))
}

func TestInjectTrackingDefaultsCampaignID(t *testing.T) {
	tracker := NewTracker(nil, "msg-1", "dest@example.com", 7, "sender@example.com")
	assert.Equal(t, "default", tracker.CampaignID)

	campaign := "spring-sale"
	withCampaign := NewTracker(&campaign, "msg-1", "dest@example.com", 7, "sender@example.com")
	assert.Equal(t, "spring-sale", withCampaign.CampaignID)
}

func TestInjectTrackingWithoutBodyTagAppendsPixel(t *testing.T) {
	tracker := NewTracker(nil, "msg-1", "dest@example.com", 7, "sender@example.com")
	out, err := InjectTracking(`<p>no wrapper</p>`, "https://track.rustmailer.dev", tracker)
	require.NoError(t, err)
	assert.Contains(t, out, `<img src="https://track.rustmailer.dev/`)
}

func TestInjectPreviewInsertsAfterBodyTag(t *testing.T) {
	body := `<html><body class="x"><p>hello</p></body></html>`
	out := InjectPreview(body, "sneak preview text")

	assert.True(t, strings.Index(out, "sneak preview text") < strings.Index(out, "<p>hello</p>"))
	assert.Contains(t, out, "display:none")
}

func TestInjectPreviewWithoutBodyTagPrepends(t *testing.T) {
	out := InjectPreview("<p>hello</p>", "preview text")
	assert.True(t, strings.Index(out, "preview text") < strings.Index(out, "<p>hello</p>"))
}
