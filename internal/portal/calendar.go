package portal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

var semesterStartPattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*至`)

// FetchSemesterStart scrapes the first day of the current semester out
// of the academic-calendar dashboard area.
func (c *Client) FetchSemesterStart(ctx context.Context) (time.Time, error) {
	var out time.Time
	err := c.withRelogin(ctx, func() error {
		query := url.Values{}
		query.Set("localeKey", "zh_CN")
		query.Set("gnmkdm", "index")

		resp, body, err := c.postForm(ctx, "/xtgl/index_cxAreaSix.html", query, url.Values{})
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		m := semesterStartPattern.FindStringSubmatch(string(body))
		if m == nil {
			return fmt.Errorf("no semester start date in calendar response")
		}

		start, err := time.ParseInLocation("2006-01-02", m[1], time.Local)
		if err != nil {
			return fmt.Errorf("failed to parse semester start %q: %w", m[1], err)
		}
		out = start
		return nil
	})
	observeFetch("calendar", err)
	return out, err
}

// CurrentTerm maps a date onto the portal's (xnm, xqm) term encoding.
// August through January is the first term "3", the rest of the year
// is the second term "12". The school year is named by its starting
// calendar year, so January still belongs to the previous one.
func CurrentTerm(now time.Time) (year, term string) {
	month := now.Month()
	y := now.Year()
	if month >= time.August || month == time.January {
		if month == time.January {
			y--
		}
		return fmt.Sprintf("%d", y), "3"
	}
	return fmt.Sprintf("%d", y-1), "12"
}
