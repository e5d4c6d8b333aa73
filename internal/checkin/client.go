package checkin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/suseoaa/oaacore/internal/models"
	"github.com/suseoaa/oaacore/internal/session"
)

const (
	DefaultBaseURL = "https://qfhy.suse.edu.cn"
	DefaultUIASURL = "https://uias.suse.edu.cn"

	wechatAppID = "wx130c9f0196e29149"
	appCode     = "qddk"

	userAgent = "Mozilla/5.0 (Linux; Android 10) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"

	// The SESSION cookie the SSO handshake hands out is good for a day.
	sessionTTL = 24 * time.Hour

	maxRedirects = 5
)

// Client talks to the qfhy check-in portal. Password logins go through
// the UIAS CAS front, QR logins through the WeChat scan endpoints,
// both end with the same SESSION cookie in the jar.
type Client struct {
	baseURL  string
	uiasURL  string
	http     *http.Client
	jar      *cookiejar.Jar
	sessions session.Repository

	studentID string
	openID    string
	userName  string
}

func NewClient(baseURL, uiasURL string, sessions session.Repository) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if uiasURL == "" {
		uiasURL = DefaultUIASURL
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		uiasURL: strings.TrimRight(uiasURL, "/"),
		jar:     jar,
		http: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sessions: sessions,
	}, nil
}

// StudentID reports the account the current session belongs to.
func (c *Client) StudentID() string { return c.studentID }

// UserName reports the display name the portal attached to the login,
// empty for password logins.
func (c *Client) UserName() string { return c.userName }

// referer builds the page URL the /site/ APIs expect to see. With an
// open_id it names the account-bound admin page, without one the
// generic check-in page.
func (c *Client) referer() string {
	if c.openID != "" {
		return c.baseURL + "/xg/app/qddk/admin?open_id=" + c.openID
	}
	return c.baseURL + "/xg/app/qddk/admin/qddkdk"
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// followRedirects walks a 3xx chain by hand so the jar picks up every
// Set-Cookie along the way.
func (c *Client) followRedirects(ctx context.Context, resp *http.Response) (*http.Response, []byte, error) {
	body := []byte(nil)
	for i := 0; i < maxRedirects && resp.StatusCode >= 301 && resp.StatusCode <= 303; i++ {
		loc := resp.Header.Get("Location")
		if loc == "" {
			break
		}
		next, err := resp.Request.URL.Parse(loc)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redirect %q: %w", loc, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next.String(), nil)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		resp, body, err = c.do(req)
		if err != nil {
			return nil, nil, err
		}
	}
	return resp, body, nil
}

// apiGet hits a /site/ JSON endpoint with the headers the portal
// insists on.
func (c *Client) apiGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Referer", c.referer())
	req.Header.Set("appcode", appCode)

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	return body, nil
}

// apiPostJSON posts a JSON document to a /site/ endpoint.
func (c *Client) apiPostJSON(ctx context.Context, rawURL string, payload any) ([]byte, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.referer())
	req.Header.Set("appcode", appCode)

	resp, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}
	return body, nil
}

// wechatEnvelope wraps the /edu/v2/weixin responses, code 200 means ok.
type wechatEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) wechatCall(ctx context.Context, method, path string, payload any, out any) error {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Referer", c.baseURL+"/xg/app/qddk/admin/qddkdk")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, body, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	var env wechatEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	if env.Code != 200 {
		return fmt.Errorf("%s failed: %s", path, env.Msg)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode data from %s: %w", path, err)
		}
	}
	return nil
}

// FetchClientID starts a WeChat scan login.
func (c *Client) FetchClientID(ctx context.Context) (string, error) {
	var data struct {
		ClientID string `json:"client_id"`
	}
	if err := c.wechatCall(ctx, http.MethodGet, "/edu/v2/weixin/getClientId", nil, &data); err != nil {
		return "", err
	}
	if data.ClientID == "" {
		return "", fmt.Errorf("getClientId returned no client id")
	}
	return data.ClientID, nil
}

// QRCode holds the login QR image as a data URI and its lifetime.
type QRCode struct {
	Image   string `json:"img"`
	ImgType string `json:"imgType"`
	Minutes int    `json:"minute"`
	URL     string `json:"url"`
}

// FetchQRCode returns the QR code the user scans with WeChat.
func (c *Client) FetchQRCode(ctx context.Context, clientID string) (*QRCode, error) {
	payload := map[string]string{"app_id": wechatAppID, "client_id": clientID}
	var code QRCode
	if err := c.wechatCall(ctx, http.MethodPost, "/edu/v2/weixin/getQrCodeUrl", payload, &code); err != nil {
		return nil, err
	}
	if code.Image == "" && code.URL == "" {
		return nil, fmt.Errorf("getQrCodeUrl returned no image")
	}
	return &code, nil
}

// Scan status values the poll endpoint reports.
const (
	ScanPending   = 0
	ScanScanned   = 1
	ScanConfirmed = 2
)

type ScanStatus struct {
	Status      int    `json:"status"`
	CallbackURL string `json:"callback_url"`
}

// CheckScan polls whether the QR code has been scanned and confirmed.
// Once Status is ScanConfirmed the CallbackURL completes the login.
func (c *Client) CheckScan(ctx context.Context, clientID string) (*ScanStatus, error) {
	payload := map[string]string{"client_id": clientID}
	var status ScanStatus
	if err := c.wechatCall(ctx, http.MethodPost, "/edu/v2/weixin/checkScan", payload, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ErrQRCodeExpired reports that the login QR code ran out before
// anyone confirmed the scan.
var ErrQRCodeExpired = errors.New("二维码已过期，请重新获取")

const (
	defaultQRValidity = 3 * time.Minute
	scanPollInterval  = 2 * time.Second
)

// WaitForScan polls CheckScan every interval until the code is
// confirmed, giving up with ErrQRCodeExpired once validity runs out.
// Pass the lifetime the portal attached to the code. onScanned fires
// once when the user has scanned but not yet confirmed, nil is fine.
func (c *Client) WaitForScan(ctx context.Context, clientID string, validity, interval time.Duration, onScanned func()) (*ScanStatus, error) {
	if validity <= 0 {
		validity = defaultQRValidity
	}
	if interval <= 0 {
		interval = scanPollInterval
	}

	expiry := time.NewTimer(validity)
	defer expiry.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	scanned := false
	for {
		status, err := c.CheckScan(ctx, clientID)
		if err != nil {
			return nil, err
		}
		if status.Status == ScanConfirmed {
			return status, nil
		}
		if status.Status == ScanScanned && !scanned {
			scanned = true
			if onScanned != nil {
				onScanned()
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-expiry.C:
			return nil, ErrQRCodeExpired
		case <-tick.C:
		}
	}
}

// CompleteQRLogin follows the scan callback to pick up the
// _sop_session_ token, then runs the SSO handshake that mints the
// SESSION cookie the /site/ APIs authenticate with.
func (c *Client) CompleteQRLogin(ctx context.Context, callbackURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, callbackURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	resp, _, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to follow scan callback: %w", err)
	}
	if _, _, err := c.followRedirects(ctx, resp); err != nil {
		return fmt.Errorf("failed to follow scan callback: %w", err)
	}

	token := c.cookieValue("_sop_session_")
	if token == "" {
		return fmt.Errorf("scan callback set no _sop_session_ cookie")
	}
	sop, err := DecodeSopSession(token)
	if err != nil {
		return err
	}
	if sop.OpenID == "" {
		return fmt.Errorf("_sop_session_ token has no openId")
	}
	c.studentID = sop.UID
	c.openID = sop.OpenID
	c.userName = sop.UserName

	if err := c.ssoHandshake(ctx); err != nil {
		return err
	}
	return c.saveSession(ctx)
}

// ssoHandshake asks the SSO endpoint to mint a SESSION cookie. The
// SESSION is only set by this call, visiting portal pages does not
// create one.
func (c *Client) ssoHandshake(ctx context.Context) error {
	service := c.baseURL + "/xg/app/qddk/admin?open_id=" + c.openID
	rawURL := c.baseURL + "/site/appware/system/sso/loginUrl?service=" + url.QueryEscape(service)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Referer", service)

	resp, _, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to call sso loginUrl: %w", err)
	}
	if _, _, err := c.followRedirects(ctx, resp); err != nil {
		return fmt.Errorf("failed to call sso loginUrl: %w", err)
	}

	if c.cookieValue("SESSION") == "" {
		return fmt.Errorf("sso handshake set no SESSION cookie")
	}
	return nil
}

func (c *Client) cookieValue(name string) string {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return ""
	}
	base.Path = "/"
	for _, ck := range c.jar.Cookies(base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// saveSession persists the jar contents so later runs can skip the
// login dance until the SESSION expires.
func (c *Client) saveSession(ctx context.Context) error {
	if c.sessions == nil || c.studentID == "" {
		return nil
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	base.Path = "/"

	now := time.Now()
	sess := &models.Session{
		StudentID: c.studentID,
		OpenID:    c.openID,
		UserName:  c.userName,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	}
	for _, ck := range c.jar.Cookies(base) {
		sess.Cookies = append(sess.Cookies, models.SessionCookie{
			Name:  ck.Name,
			Value: ck.Value,
			Path:  "/",
		})
	}
	if err := c.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save checkin session: %w", err)
	}
	return nil
}

// RestoreSession loads a saved login into the jar. It reports false
// when no live session exists for the account.
func (c *Client) RestoreSession(ctx context.Context, studentID string) (bool, error) {
	if c.sessions == nil {
		return false, nil
	}
	sess, err := c.sessions.Load(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to load checkin session: %w", err)
	}
	if sess == nil {
		return false, nil
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false, err
	}
	base.Path = "/"
	cookies := make([]*http.Cookie, 0, len(sess.Cookies))
	for _, ck := range sess.Cookies {
		cookies = append(cookies, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.jar.SetCookies(base, cookies)

	c.studentID = sess.StudentID
	c.openID = sess.OpenID
	c.userName = sess.UserName
	return true, nil
}

// Logout drops the stored session for the account.
func (c *Client) Logout(ctx context.Context, studentID string) error {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Delete(ctx, studentID)
}
