package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"
)

type GradeItem struct {
	CourseID     string `json:"kch"`
	CourseName   string `json:"kcmc"`
	ClassID      string `json:"jxb_id"`
	Score        string `json:"cj"`
	PercentScore string `json:"bfzcj"`
	GradePoint   string `json:"jd"`
	Credit       string `json:"xf"`
	CourseNature string `json:"kcxzmc"`
	CourseType   string `json:"kclbmc"`
	ExamNature   string `json:"ksxz"`
	Teacher      string `json:"jsxm"`
	Year         string `json:"xnm"`
	Term         string `json:"xqm"`
	College      string `json:"jgmc"`
	Major        string `json:"zymc"`
	GradeName    string `json:"njmc"`
}

type GradesResponse struct {
	Items       []GradeItem `json:"items"`
	TotalResult int         `json:"totalResult"`
}

// FetchGrades queries one term. Empty year and term return everything
// the portal has.
func (c *Client) FetchGrades(ctx context.Context, year, term string) (*GradesResponse, error) {
	var out *GradesResponse
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("xnm", year)
		form.Set("xqm", term)
		form.Set("queryModel.showCount", "100")
		form.Set("queryModel.currentPage", "1")
		form.Set("queryModel.sortName", "")
		form.Set("queryModel.sortOrder", "asc")
		form.Set("_search", "false")
		form.Set("nd", strconv.FormatInt(time.Now().UnixMilli(), 10))
		form.Set("time", "0")

		query := url.Values{}
		query.Set("doType", "query")
		query.Set("gnmkdm", "N305005")

		resp, body, err := c.postForm(ctx, "/cjcx/cjcx_cxDgXscj.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		var parsed GradesResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode grades response: %w", err)
		}
		out = &parsed
		return nil
	})
	observeFetch("grades", err)
	return out, err
}

// FetchGradeDetail pulls the per-course breakdown (regular/final split)
// as raw HTML. Parse it with ParseGradeDetail.
func (c *Client) FetchGradeDetail(ctx context.Context, year, term, courseName, classID string) (string, error) {
	var out string
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("xnm", year)
		form.Set("xqm", term)
		form.Set("kcmc", courseName)
		form.Set("jxb_id", classID)

		query := url.Values{}
		query.Set("time", strconv.FormatInt(time.Now().UnixMilli(), 10))
		query.Set("gnmkdm", "N305005")

		resp, body, err := c.postForm(ctx, "/cjcx/cjcx_cxCjxqGjh.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}
		out = string(body)
		return nil
	})
	observeFetch("grade_detail", err)
	return out, err
}

// gradeDetailWorkers caps how many detail requests run at once so the
// portal does not rate-limit the whole sync.
const gradeDetailWorkers = 3

type GradeDetail struct {
	Item   GradeItem
	Detail []string
	Err    error
}

// FetchGradeDetails fans per-course detail requests out over a bounded
// worker pool and returns results in input order.
func (c *Client) FetchGradeDetails(ctx context.Context, items []GradeItem) []GradeDetail {
	results := make([]GradeDetail, len(items))
	sem := make(chan struct{}, gradeDetailWorkers)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item GradeItem) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			html, err := c.FetchGradeDetail(ctx, item.Year, item.Term, item.CourseName, item.ClassID)
			if err != nil {
				results[i] = GradeDetail{Item: item, Err: err}
				return
			}
			results[i] = GradeDetail{Item: item, Detail: ParseGradeDetail(html)}
		}(i, item)
	}
	wg.Wait()
	return results
}
