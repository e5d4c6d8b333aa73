package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

type ExamItem struct {
	CourseName string `json:"kcmc"`
	Time       string `json:"kssj"`
	Room       string `json:"cdmc"`
	Campus     string `json:"cdxqmc"`
	Seat       string `json:"zwh"`
	Credit     string `json:"xf"`
	ExamType   string `json:"khfs"`
	ExamName   string `json:"ksmc"`
	YearName   string `json:"xnmc"`
}

type ExamsResponse struct {
	Items []ExamItem `json:"items"`
}

// Location renders room plus campus the way the portal UI shows it.
func (e ExamItem) Location() string {
	if e.Campus == "" {
		return e.Room
	}
	return e.Room + "(" + e.Campus + ")"
}

func (c *Client) FetchExams(ctx context.Context, year, term string) (*ExamsResponse, error) {
	var out *ExamsResponse
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("xnm", year)
		form.Set("xqm", term)
		form.Set("queryModel.showCount", "100")
		form.Set("queryModel.currentPage", "1")
		form.Set("queryModel.sortName", "")
		form.Set("queryModel.sortOrder", "asc")

		query := url.Values{}
		query.Set("doType", "query")
		query.Set("gnmkdm", "N358105")

		resp, body, err := c.postForm(ctx, "/kwgl/kscx_cxXsksxxIndex.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		var parsed ExamsResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode exams response: %w", err)
		}
		out = &parsed
		return nil
	})
	observeFetch("exams", err)
	return out, err
}
