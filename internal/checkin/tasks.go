package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/suseoaa/oaacore/internal/metrics"
)

// Task list statuses the portal filters by.
const (
	TaskPending = 1
	TaskDone    = 2
	TaskAbsent  = 3
)

// siteEnvelope wraps the /site/ API responses.
type siteEnvelope struct {
	ResultCode int             `json:"resultCode"`
	ErrorMsg   string          `json:"errorMsg"`
	Success    bool            `json:"success"`
	Result     json.RawMessage `json:"result"`
}

func decodeSite(body []byte, path string, out any) error {
	var env siteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if env.ResultCode != 0 || !env.Success {
		msg := env.ErrorMsg
		if msg == "" {
			msg = fmt.Sprintf("resultCode %d", env.ResultCode)
		}
		return fmt.Errorf("%s failed: %s", path, msg)
	}
	if out != nil && env.Result != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("failed to decode result from %s: %w", path, err)
		}
	}
	return nil
}

// Task is one check-in assignment from the task list.
type Task struct {
	ID        int64  `json:"id"`
	Name      string `json:"rwmc"`
	State     string `json:"rwzt"`
	Kind      string `json:"qdlx"`
	NeedTime  string `json:"needTime"`
	StartTime string `json:"qdkssj"`
	EndTime   string `json:"qdjssj"`
	StartDate string `json:"qdksrq"`
	EndDate   string `json:"qdjsrq"`
	Creator   string `json:"cjrName"`

	// Filled for completed tasks.
	SignTime   string `json:"qdsj"`
	SignStatus *int   `json:"qdzt"`
}

// ListTasks returns the check-in assignments in the given status
// bucket, see the Task* constants.
func (c *Client) ListTasks(ctx context.Context, status int) ([]Task, error) {
	path := "/site/qddk/qdrw/api/myList.rst"
	body, err := c.apiGet(ctx, fmt.Sprintf("%s%s?status=%d", c.baseURL, path, status))
	if err != nil {
		return nil, err
	}
	var result struct {
		Data  []Task `json:"data"`
		Total int    `json:"total"`
	}
	if err := decodeSite(body, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// TaskRecord is the per-student sign-in row behind a task. Its ID, not
// the task's, is what the submit endpoint wants.
type TaskRecord struct {
	ID       int64  `json:"id"`
	Signed   int    `json:"qdzt"`
	SignTime string `json:"qdsj"`
	NeedTime string `json:"needTime"`
	TaskID   int64  `json:"qdrwid"`
}

// FetchTaskRecord loads the sign-in record for one task. It returns
// (nil, nil) when the task carries no record for the account.
func (c *Client) FetchTaskRecord(ctx context.Context, taskID int64) (*TaskRecord, error) {
	path := "/site/qddk/qdrw/qdxx/api/detailList.rst"
	body, err := c.apiGet(ctx, fmt.Sprintf("%s%s?qdrwId=%d", c.baseURL, path, taskID))
	if err != nil {
		return nil, err
	}
	var result struct {
		Data struct {
			Record *TaskRecord `json:"dkxx"`
		} `json:"data"`
	}
	if err := decodeSite(body, path, &result); err != nil {
		return nil, err
	}
	return result.Data.Record, nil
}

// locationRequest is the submit payload, field names and the stringly
// location/txxx members follow the portal's wire format.
type locationRequest struct {
	ID        int64  `json:"id"`
	Qdzt      int    `json:"qdzt"`
	Qdsj      string `json:"qdsj"`
	IsOuted   int    `json:"isOuted"`
	IsLated   int    `json:"isLated"`
	DkddPhoto string `json:"dkddPhoto"`
	Qdddjtdz  string `json:"qdddjtdz"`
	Location  string `json:"location"`
	Txxx      string `json:"txxx"`
}

// SubmitLocation signs a task record in at the given spot, stamping it
// with at as the sign-in time.
func (c *Client) SubmitLocation(ctx context.Context, recordID int64, loc Location, at time.Time) error {
	path := "/site/qddk/qdrw/api/checkSignLocationWithPhoto.rst"
	payload := locationRequest{
		ID:        recordID,
		Qdzt:      1,
		Qdsj:      at.Format("2006-01-02 15:04:05"),
		IsOuted:   0,
		IsLated:   0,
		DkddPhoto: "",
		Qdddjtdz:  loc.Address,
		Location:  loc.JSON,
		Txxx:      "{}",
	}
	body, err := c.apiPostJSON(ctx, c.baseURL+path, payload)
	if err != nil {
		metrics.CheckinsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := decodeSite(body, path, nil); err != nil {
		metrics.CheckinsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.CheckinsTotal.WithLabelValues("success").Inc()
	return nil
}

// FetchGroupIdentity returns the account's check-in group code. The
// endpoint answers with either a bare string or a list of group
// objects depending on the account type.
func (c *Client) FetchGroupIdentity(ctx context.Context) (string, error) {
	path := "/site/app/base/common/api/group/qddk/identity.rst"
	body, err := c.apiGet(ctx, c.baseURL+path)
	if err != nil {
		return "", err
	}
	var env siteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if env.ResultCode != 0 || !env.Success {
		msg := env.ErrorMsg
		if msg == "" {
			msg = fmt.Sprintf("resultCode %d", env.ResultCode)
		}
		return "", fmt.Errorf("%s failed: %s", path, msg)
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(env.Result, &wrapper); err != nil || wrapper.Data == nil {
		return "", fmt.Errorf("%s returned no group data", path)
	}

	var code string
	if err := json.Unmarshal(wrapper.Data, &code); err == nil && code != "" {
		return code, nil
	}
	var groups []struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(wrapper.Data, &groups); err == nil && len(groups) > 0 && groups[0].Code != "" {
		return groups[0].Code, nil
	}
	return "", fmt.Errorf("%s returned no group code", path)
}

// Group is one membership group from the user groups endpoint.
type Group struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Type   int    `json:"type"`
	Enable bool   `json:"enable"`
}

// FetchUserGroups lists the account's check-in groups, password logins
// use the first one's code to sign in.
func (c *Client) FetchUserGroups(ctx context.Context) ([]Group, error) {
	path := "/site/app/base/common/api/user/groups.rst"
	body, err := c.apiGet(ctx, c.baseURL+path+"?appCode="+appCode)
	if err != nil {
		return nil, err
	}
	var result struct {
		Data  []Group `json:"data"`
		Total int     `json:"total"`
	}
	if err := decodeSite(body, path, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// SubmitGroup runs the group-based sign-in password accounts use.
func (c *Client) SubmitGroup(ctx context.Context, groupCode string) error {
	path := "/site/app/base/common/api/group/" + groupCode + "/qddk/set.rst"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", c.referer())
	req.Header.Set("appcode", appCode)
	req.Header.Set("Content-Length", "0")

	resp, body, err := c.do(req)
	if err != nil {
		metrics.CheckinsTotal.WithLabelValues("error").Inc()
		return err
	}
	if resp.StatusCode != http.StatusOK {
		metrics.CheckinsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if err := decodeSite(body, path, nil); err != nil {
		metrics.CheckinsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.CheckinsTotal.WithLabelValues("success").Inc()
	return nil
}

// User is the current.rst profile for the logged-in account.
type User struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// FetchCurrentUser returns the profile of the logged-in account.
func (c *Client) FetchCurrentUser(ctx context.Context) (*User, error) {
	path := "/site/app/base/common/api/user/current.rst"
	body, err := c.apiGet(ctx, c.baseURL+path)
	if err != nil {
		return nil, err
	}
	var user User
	if err := decodeSite(body, path, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
