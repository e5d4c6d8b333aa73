package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type Major struct {
	ID   string `json:"id"`
	Name string `json:"zymc"`
}

type planInfoResponse struct {
	Items []struct {
		PlanID string `json:"jxzxjhxx_id"`
	} `json:"items"`
}

type PlanCourse struct {
	CourseID   string `json:"kch"`
	CourseName string `json:"kcmc"`
	Credit     string `json:"xf"`
	DegreeFlag string `json:"zyzgkcbj"`
	Nature     string `json:"kcxzmc"`
}

func (p PlanCourse) IsDegreeCourse() bool {
	return p.DegreeFlag == "是"
}

type teachingPlanResponse struct {
	Items []PlanCourse `json:"items"`
}

// FetchMajors lists the majors of a college; used to recover a missing
// zyh_id before looking up the teaching plan.
func (c *Client) FetchMajors(ctx context.Context, jgID string) ([]Major, error) {
	var out []Major
	err := c.withRelogin(ctx, func() error {
		query := url.Values{}
		query.Set("jg_id", jgID)
		query.Set("gnmkdm", "N153540")

		form := url.Values{}
		form.Set("dn", "ai")

		resp, body, err := c.postForm(ctx, "/xtgl/comm_cxZydmList.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("failed to decode majors response: %w", err)
		}
		return nil
	})
	observeFetch("majors", err)
	return out, err
}

// FetchPlanID resolves the teaching-plan id for a college, entry year
// and major.
func (c *Client) FetchPlanID(ctx context.Context, jgID, njdmID, zyhID string) (string, error) {
	var out string
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("jg_id", jgID)
		form.Set("njdm_id", njdmID)
		form.Set("zyh_id", zyhID)
		form.Set("dlbs", "")
		form.Set("currentPage_cx", "")
		form.Set("_search", "false")
		form.Set("nd", strconv.FormatInt(time.Now().UnixMilli(), 10))
		form.Set("queryModel.showCount", "100")
		form.Set("queryModel.currentPage", "1")
		form.Set("queryModel.sortName", " ")
		form.Set("queryModel.sortOrder", "asc")
		form.Set("time", "0")

		query := url.Values{}
		query.Set("doType", "query")
		query.Set("gnmkdm", "N153540")

		resp, body, err := c.postForm(ctx, "/jxzxjhgl/jxzxjhck_cxJxzxjhckIndex.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		var parsed planInfoResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode plan info response: %w", err)
		}
		if len(parsed.Items) == 0 {
			return fmt.Errorf("no teaching plan found for major %s", zyhID)
		}
		out = parsed.Items[0].PlanID
		return nil
	})
	observeFetch("plan_info", err)
	return out, err
}

// FetchTeachingPlan lists every course of a teaching plan, including
// the degree-course flag GPA filtering needs.
func (c *Client) FetchTeachingPlan(ctx context.Context, planID string) ([]PlanCourse, error) {
	var out []PlanCourse
	err := c.withRelogin(ctx, func() error {
		form := url.Values{}
		form.Set("jxzxjhxx_id", planID)
		form.Set("jyxdxnm", "")
		form.Set("jyxdxqm", "")
		form.Set("yxxdxnm", "")
		form.Set("yxxdxqm", "")
		form.Set("shzt", "")
		form.Set("kch", "")
		form.Set("xdlx", "")
		form.Set("_search", "false")
		form.Set("nd", strconv.FormatInt(time.Now().UnixMilli(), 10))
		form.Set("queryModel.showCount", "1000")
		form.Set("queryModel.currentPage", "1")
		form.Set("queryModel.sortName", "jyxdxnm,jyxdxqm,kch ")
		form.Set("queryModel.sortOrder", "asc")
		form.Set("time", "0")

		query := url.Values{}
		query.Set("doType", "query")
		query.Set("gnmkdm", "N153540")

		resp, body, err := c.postForm(ctx, "/jxzxjhgl/jxzxjhkcxx_cxJxzxjhkcxxIndex.html", query, form)
		if err != nil {
			return err
		}
		if err := checkSession(resp, body); err != nil {
			return err
		}

		var parsed teachingPlanResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode teaching plan response: %w", err)
		}
		out = parsed.Items
		return nil
	})
	observeFetch("teaching_plan", err)
	return out, err
}
