package compose

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tracker carries the identity a tracking pixel/redirect needs to emit
// EmailOpened / EmailLinkClicked events back at the instance.
type Tracker struct {
	CampaignID   string
	MessageID    string
	Recipient    string
	AccountID    uint64
	AccountEmail string
}

// NewTracker builds a Tracker, defaulting CampaignID to "default" per
// spec.md §4.6.
func NewTracker(campaignID *string, messageID, recipient string, accountID uint64, accountEmail string) Tracker {
	id := "default"
	if campaignID != nil && *campaignID != "" {
		id = *campaignID
	}
	return Tracker{CampaignID: id, MessageID: messageID, Recipient: recipient, AccountID: accountID, AccountEmail: accountEmail}
}

func (t Tracker) encode(kind, target string) string {
	v := url.Values{}
	v.Set("c", t.CampaignID)
	v.Set("m", t.MessageID)
	v.Set("r", t.Recipient)
	v.Set("a", fmt.Sprintf("%d", t.AccountID))
	if target != "" {
		v.Set("t", target)
	}
	return url.QueryEscape(kind + ":" + v.Encode())
}

// InjectTracking rewrites every <a href> into a redirect through
// trackingBaseURL and appends a 1x1 open-tracking pixel at the end of the
// HTML body.
func InjectTracking(htmlBody string, trackingBaseURL string, t Tracker) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlBody))
	if err != nil {
		return "", err
	}
	rewriteLinks(doc, trackingBaseURL, t)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	out := buf.String()
	pixel := fmt.Sprintf(`<img src="%s/%s" width="1" height="1" style="display:none" alt="">`,
		strings.TrimRight(trackingBaseURL, "/"), t.encode("open", ""))
	if idx := strings.LastIndex(out, "</body>"); idx >= 0 {
		out = out[:idx] + pixel + out[idx:]
	} else {
		out += pixel
	}
	return out, nil
}

func rewriteLinks(n *html.Node, base string, t Tracker) {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		for i, attr := range n.Attr {
			if attr.Key == "href" {
				n.Attr[i].Val = fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), t.encode("click", attr.Val))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rewriteLinks(c, base, t)
	}
}

// InjectPreview inserts a zero-width hidden preheader span at the top of
// htmlBody, matching "insert a zero-width hidden preheader span at the top
// of the body" (spec.md §4.6).
func InjectPreview(htmlBody, preview string) string {
	span := fmt.Sprintf(`<span style="display:none;font-size:0;line-height:0;max-height:0;max-width:0;opacity:0;overflow:hidden;mso-hide:all;">%s</span>`, preview)
	if idx := strings.Index(htmlBody, "<body"); idx >= 0 {
		if close := strings.Index(htmlBody[idx:], ">"); close >= 0 {
			insertAt := idx + close + 1
			return htmlBody[:insertAt] + span + htmlBody[insertAt:]
		}
	}
	return span + htmlBody
}
