package checkin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/suseoaa/oaacore/internal/crypto"
)

// The CAS login form encrypts the password against this fixed key, the
// login page ships it in its JavaScript.
const (
	uiasModulus  = "008aed7e057fe8f14c73550b0e6467b023616ddc8fa91846d2613cdb7f7621e3cada4cd5d812d627af6b87727ade4e26d26208b7326815941492b2204c3167ab2d53df1e3a2c9153bdb7c8c2e968df97a5e7e01cc410f92c4c2c2fba529b3ee988ebc1fca99ff5119e036d732c368acf8beba01aa2fdafa45b21e4de4928d0d403"
	uiasExponent = "010001"
)

var (
	executionPattern = regexp.MustCompile(`name="execution"\s+value="([^"]+)"`)
	loginErrorDiv    = regexp.MustCompile(`<div[^>]*class="[^"]*error[^"]*"[^>]*>([^<]+)</div>`)
)

// loginService is the CAS service the check-in portal registers, the
// UIAS login page redirects back to it with a ticket on success.
func (c *Client) loginService() string {
	return c.baseURL + "/site/appware/system/sso/login?target=" + c.baseURL + "/xg/app/"
}

func (c *Client) loginPageURL() string {
	return c.uiasURL + "/sso/login?service=" + c.loginService()
}

// Captcha is one CAS login attempt in flight. The execution token is
// single-use and tied to the captcha image, both come from the same
// page load.
type Captcha struct {
	Image     []byte
	Execution string
}

// FetchCaptcha loads the CAS login page and its captcha image. The
// returned challenge must be passed back to LoginWithPassword together
// with the code the user read off the image.
func (c *Client) FetchCaptcha(ctx context.Context) (*Captcha, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.loginPageURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")

	resp, body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login page returned status %d", resp.StatusCode)
	}

	m := executionPattern.FindSubmatch(body)
	if m == nil {
		return nil, fmt.Errorf("no execution token in login page")
	}
	execution := string(m[1])

	capReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uiasURL+"/sso/captcha.jpg", nil)
	if err != nil {
		return nil, err
	}
	capReq.Header.Set("User-Agent", userAgent)
	capReq.Header.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	capReq.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	capReq.Header.Set("Referer", c.loginPageURL())

	capResp, image, err := c.do(capReq)
	if err != nil {
		return nil, fmt.Errorf("failed to load captcha: %w", err)
	}
	if capResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captcha returned status %d", capResp.StatusCode)
	}

	return &Captcha{Image: image, Execution: execution}, nil
}

// LoginWithPassword runs the CAS password login. On success the jar
// ends up with the SESSION cookie and the session is persisted.
func (c *Client) LoginWithPassword(ctx context.Context, studentID, password, captchaCode string, challenge *Captcha) error {
	if challenge == nil || challenge.Execution == "" {
		return fmt.Errorf("missing captcha challenge, call FetchCaptcha first")
	}

	encrypted, err := crypto.EncryptCheckinPassword(password, uiasModulus, uiasExponent)
	if err != nil {
		return fmt.Errorf("failed to encrypt password: %w", err)
	}

	form := url.Values{}
	form.Set("service", c.loginService())
	form.Set("username", studentID)
	form.Set("password", encrypted)
	form.Set("authcode", captchaCode)
	form.Set("execution", challenge.Execution)
	form.Set("encrypted", "true")
	form.Set("_eventId", "submit")
	form.Set("loginType", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginPageURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.uiasURL)
	req.Header.Set("Referer", c.loginPageURL())

	resp, body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to submit login: %w", err)
	}

	if resp.StatusCode == http.StatusFound {
		// Success. The redirect chain trades the CAS ticket for the
		// portal SESSION cookie.
		if _, _, err := c.followRedirects(ctx, resp); err != nil {
			return fmt.Errorf("failed to follow login redirect: %w", err)
		}
		c.studentID = studentID
		c.openID = ""
		c.userName = ""
		return c.saveSession(ctx)
	}

	return fmt.Errorf("%s", classifyCASFailure(string(body), resp.StatusCode))
}

// classifyCASFailure turns a failed CAS response into a user-facing
// message, preferring the error div the page renders.
func classifyCASFailure(body string, status int) string {
	if m := loginErrorDiv.FindStringSubmatch(body); m != nil {
		if msg := strings.TrimSpace(m[1]); msg != "" {
			return msg
		}
	}
	switch {
	case strings.Contains(body, "验证码错误") || strings.Contains(body, "验证码不正确"):
		return "验证码错误"
	case strings.Contains(body, "密码"):
		return "用户名或密码错误"
	case strings.Contains(body, "用户"):
		return "用户名不存在"
	default:
		return fmt.Sprintf("登录失败 (%d)", status)
	}
}

