package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/crypto"
	"github.com/suseoaa/oaacore/internal/metrics"
)

// csrfPatterns are tried in order, first match wins. The portal has
// shipped several variants of the hidden input over the years.
var csrfPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<input\s+type="hidden"\s+id="csrftoken"\s+name="csrftoken"\s+value="([^"]+)"\s*/>`),
	regexp.MustCompile(`name="csrftoken"\s+value="([^"]+)"`),
	regexp.MustCompile(`id="csrftoken".*?value="([^"]+)"`),
	regexp.MustCompile(`value="([^"]+)".*?name="csrftoken"`),
}

var tipsPattern = regexp.MustCompile(`<p id="tips"[^>]*>([^<]+)</p>`)

// ExtractCSRFToken pulls the login form's csrf token out of the login
// page HTML.
func ExtractCSRFToken(html string) (string, bool) {
	for _, pattern := range csrfPatterns {
		if m := pattern.FindStringSubmatch(html); m != nil {
			return m[1], true
		}
	}
	return "", false
}

type rsaKey struct {
	Modulus  string `json:"modulus"`
	Exponent string `json:"exponent"`
}

// Login performs the full CSRF + RSA login dance and saves the fresh
// session into the repository on success.
func (c *Client) Login(ctx context.Context, studentID, password string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	return c.login(ctx, studentID, password)
}

// login assumes loginMu is held.
func (c *Client) login(ctx context.Context, studentID, password string) error {
	c.setCredentials(studentID, password)

	if err := c.resetJar(); err != nil {
		return err
	}

	_, pageBody, err := c.get(ctx, c.baseURL+"/xtgl/login_slogin.html")
	if err != nil {
		return c.loginFailure(fmt.Errorf("failed to fetch login page: %w", err))
	}

	csrfToken, ok := ExtractCSRFToken(string(pageBody))
	if !ok {
		return c.loginFailure(fmt.Errorf("failed to extract csrf token from login page"))
	}

	now := time.Now().UnixMilli()
	_, keyBody, err := c.get(ctx, fmt.Sprintf("%s/xtgl/login_getPublicKey.html?time=%d", c.baseURL, now))
	if err != nil {
		return c.loginFailure(fmt.Errorf("failed to fetch public key: %w", err))
	}

	var key rsaKey
	if err := json.Unmarshal(keyBody, &key); err != nil {
		return c.loginFailure(fmt.Errorf("failed to decode public key: %w", err))
	}

	encrypted, err := crypto.EncryptPortalPassword(password, key.Modulus, key.Exponent)
	if err != nil {
		return c.loginFailure(fmt.Errorf("failed to encrypt password: %w", err))
	}

	form := url.Values{}
	form.Set("csrftoken", csrfToken)
	form.Set("yhm", studentID)
	form.Set("mm", encrypted)

	loginURL := fmt.Sprintf("%s/xtgl/login_slogin.html?time=%d", c.baseURL, now)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return c.loginFailure(fmt.Errorf("failed to build login request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.baseURL+"/xtgl/login_slogin.html")

	resp, body, err := c.do(req)
	if err != nil {
		return c.loginFailure(err)
	}

	finalBody := string(body)
	if resp.StatusCode == http.StatusFound {
		location := resp.Header.Get("Location")
		if location != "" {
			if strings.HasPrefix(location, "/") {
				location = c.baseURL + location
			}
			if _, redirBody, err := c.get(ctx, location); err == nil {
				finalBody = string(redirBody)
			} else {
				logger.Debug.Printf("Login redirect fetch failed: %v", err)
				finalBody = ""
			}
		} else {
			finalBody = ""
		}
	}

	if isLoginPage(finalBody) {
		err := classifyLoginFailure(finalBody)
		logger.Info.Printf("Login failed for %s: %v", studentID, err)
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return err
	}

	if err := c.saveSession(ctx); err != nil {
		logger.Error.Printf("Failed to persist session for %s: %v", studentID, err)
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	logger.Info.Printf("Login succeeded for %s", studentID)
	c.loginGen.Add(1)
	return nil
}

func (c *Client) loginFailure(err error) error {
	metrics.LoginsTotal.WithLabelValues("error").Inc()
	return err
}

func isLoginPage(body string) bool {
	return strings.Contains(body, `id="rsaKey"`) ||
		strings.Contains(body, `id="tips"`) ||
		(strings.Contains(body, `name="yhm"`) && strings.Contains(body, `name="mm"`))
}

func classifyLoginFailure(body string) *LoginError {
	switch {
	case strings.Contains(body, "用户名或密码不正确"):
		return &LoginError{Kind: ErrBadCredentials, Message: "用户名或密码错误"}
	case strings.Contains(body, "验证码不正确"):
		return &LoginError{Kind: ErrCaptcha, Message: "验证码错误"}
	case strings.Contains(body, "该账号已被锁定"):
		return &LoginError{Kind: ErrAccountLocked, Message: "账号已被锁定，请稍后再试"}
	}

	if m := tipsPattern.FindStringSubmatch(body); m != nil {
		if tip := strings.TrimSpace(m[1]); tip != "" {
			return &LoginError{Kind: ErrLoginFailed, Message: tip}
		}
	}
	return &LoginError{Kind: ErrLoginFailed, Message: "登录失败，请检查账号密码"}
}

// Logout drops the stored session and clears the jar.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.resetJar(); err != nil {
		return err
	}
	studentID, _ := c.credentials()
	if studentID == "" {
		return nil
	}
	return c.sessions.Delete(ctx, studentID)
}
