package portal

import (
	"context"
	"html"
	"net/url"
	"regexp"
	"strings"
)

var (
	noticeTitleSpan    = regexp.MustCompile(`(?s)<span[^>]*class="[^"]*title[^"]*"[^>]*>(.*?)</span>`)
	noticeListItem     = regexp.MustCompile(`(?s)<a([^>]*list-group-item[^>]*)>(.*?)</a>`)
	noticeFractionSpan = regexp.MustCompile(`(?s)<span[^>]*class="[^"]*fraction[^"]*"[^>]*>(.*?)</span>`)
	noticeTkxxAttr     = regexp.MustCompile(`data-tkxx="([^"]*)"`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

// ParseNotices digs the text out of the portal's dashboard-area HTML
// fragments. Two layouts exist: course update lists under div#kbDiv
// carry span.title texts, the reschedule list under div#home packs the
// payload into a data-tkxx attribute with a time in span.fraction.
func ParseNotices(fragment string) []string {
	if strings.Contains(fragment, `id="kbDiv"`) {
		var notices []string
		for _, m := range noticeTitleSpan.FindAllStringSubmatch(fragment, -1) {
			if text := cleanText(m[1]); text != "" {
				notices = append(notices, text)
			}
		}
		if len(notices) > 0 {
			return notices
		}
	}

	if strings.Contains(fragment, `id="home"`) {
		var notices []string
		for _, m := range noticeListItem.FindAllStringSubmatch(fragment, -1) {
			attrs, inner := m[1], m[2]

			var info string
			if am := noticeTkxxAttr.FindStringSubmatch(attrs); am != nil {
				info = cleanText(am[1])
			}

			var when string
			if fm := noticeFractionSpan.FindStringSubmatch(inner); fm != nil {
				when = cleanText(fm[1])
			}

			switch {
			case when != "" && info != "":
				notices = append(notices, when+"\n"+info)
			case info != "":
				notices = append(notices, info)
			}
		}
		return notices
	}

	return nil
}

func cleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

// FetchCourseNotices returns the "course updates" dashboard area.
func (c *Client) FetchCourseNotices(ctx context.Context) ([]string, error) {
	return c.fetchNoticeArea(ctx, "/xtgl/index_cxAreaOne.html", "course_notices")
}

// FetchMessageNotices returns the reschedule-notice dashboard area.
func (c *Client) FetchMessageNotices(ctx context.Context) ([]string, error) {
	return c.fetchNoticeArea(ctx, "/xtgl/index_cxAreaThree.html", "message_notices")
}

func (c *Client) fetchNoticeArea(ctx context.Context, path, endpoint string) ([]string, error) {
	var out []string
	err := c.withRelogin(ctx, func() error {
		query := url.Values{}
		query.Set("localeKey", "zh_CN")
		query.Set("gnmkdm", "index")

		resp, body, err := c.postForm(ctx, path, query, url.Values{})
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}
		out = ParseNotices(string(body))
		return nil
	})
	observeFetch(endpoint, err)
	return out, err
}
