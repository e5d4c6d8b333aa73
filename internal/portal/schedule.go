package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/suseoaa/oaacore/internal/metrics"
)

// Lesson is one raw row of the portal's schedule response. Field names
// follow the portal's JSON: xqj weekday, jcs period range, zcd week
// descriptor, cdmc room, xm teacher.
type Lesson struct {
	KchID   string `json:"kch_id"`
	Name    string `json:"kcmc"`
	Year    string `json:"xnm"`
	Term    string `json:"xqm"`
	Weekday string `json:"xqj"`
	Periods string `json:"jcs"`
	Weeks   string `json:"zcd"`
	Room    string `json:"cdmc"`
	Teacher string `json:"xm"`
	Nature  string `json:"kcxzmc"`
	Credit  string `json:"xf"`
	Campus  string `json:"xqmc"`
	College string `json:"kkxy"`
}

type ScheduleResponse struct {
	Lessons []Lesson `json:"kbList"`
}

func (c *Client) FetchSchedule(ctx context.Context, year, term string) (*ScheduleResponse, error) {
	var out *ScheduleResponse
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("xnm", year)
		form.Set("xqm", term)
		form.Set("kzlx", "ck")

		resp, body, err := c.postForm(ctx, "/kbcx/xskbcx_cxXsKb.html", url.Values{"gnmkdm": {"N2151"}}, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		var parsed ScheduleResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode schedule response: %w", err)
		}
		out = &parsed
		return nil
	})
	observeFetch("schedule", err)
	return out, err
}

func observeFetch(endpoint string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.FetchesTotal.WithLabelValues(endpoint, result).Inc()
}
