package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/suseoaa/oaacore/internal/metrics"
	"github.com/suseoaa/oaacore/internal/models"
	"github.com/suseoaa/oaacore/internal/session"
)

const (
	DefaultBaseURL = "https://jwgl.suse.edu.cn"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client talks to the academic-affairs portal. Redirects are never
// followed automatically: the portal uses 302 both for login success
// and for kicking expired sessions back to the login page, so every
// caller inspects them explicitly.
type Client struct {
	baseURL  string
	http     *http.Client
	jar      *jarBox
	sessions session.Repository

	// serializes logins, and loginGen tells waiting workers a sibling
	// already replaced the session so they skip their own relogin
	loginMu  sync.Mutex
	loginGen atomic.Uint64

	credMu    sync.Mutex
	studentID string
	password  string
}

// jarBox is the one http.CookieJar the http.Client ever sees. A login
// swaps the inner jar under the lock while sibling requests are still
// in flight, so the client's Jar field itself is never reassigned.
type jarBox struct {
	mu  sync.RWMutex
	jar http.CookieJar
}

func (b *jarBox) SetCookies(u *url.URL, cookies []*http.Cookie) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.jar.SetCookies(u, cookies)
}

func (b *jarBox) Cookies(u *url.URL) []*http.Cookie {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jar.Cookies(u)
}

func (b *jarBox) swap(jar http.CookieJar) {
	b.mu.Lock()
	b.jar = jar
	b.mu.Unlock()
}

func NewClient(baseURL string, sessions session.Repository) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	box := &jarBox{jar: jar}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		jar:      box,
		sessions: sessions,
		http: &http.Client{
			Jar:     box,
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// RestoreSession loads a saved session for studentID into the cookie
// jar. Returns false when no live session is stored.
func (c *Client) RestoreSession(ctx context.Context, studentID, password string) (bool, error) {
	c.setCredentials(studentID, password)

	s, err := c.sessions.Load(ctx, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return false, nil
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false, fmt.Errorf("failed to parse base URL: %w", err)
	}
	base.Path = "/"

	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, sc := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: sc.Path})
	}
	c.jar.SetCookies(base, cookies)
	logger.Debug.Printf("Restored %d cookies for %s", len(cookies), studentID)
	return true, nil
}

func (c *Client) saveSession(ctx context.Context) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("failed to parse base URL: %w", err)
	}
	base.Path = "/"

	var cookies []models.SessionCookie
	for _, cookie := range c.jar.Cookies(base) {
		cookies = append(cookies, models.SessionCookie{
			Name:  cookie.Name,
			Value: cookie.Value,
			Path:  cookie.Path,
		})
	}

	studentID, _ := c.credentials()
	return c.sessions.Save(ctx, &models.Session{
		StudentID: studentID,
		Cookies:   cookies,
		CreatedAt: time.Now(),
	})
}

func (c *Client) setCredentials(studentID, password string) {
	c.credMu.Lock()
	c.studentID = studentID
	c.password = password
	c.credMu.Unlock()
}

func (c *Client) credentials() (string, string) {
	c.credMu.Lock()
	defer c.credMu.Unlock()
	return c.studentID, c.password
}

func (c *Client) resetJar() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to create cookie jar: %w", err)
	}
	c.jar.swap(jar)
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return c.do(req)
}

// postForm sends an XHR-style form post the way the portal's own
// frontend does. query goes on the URL, form in the body.
func (c *Client) postForm(ctx context.Context, path string, query, form url.Values) (*http.Response, []byte, error) {
	rawURL := c.baseURL + path
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, body, nil
}

// checkSession classifies a fetch response. The portal signals a dead
// session either with status 901, a redirect to the login page, or by
// serving the login page itself with status 200.
func checkSession(resp *http.Response, body []byte) error {
	if resp.StatusCode == 901 || resp.StatusCode == http.StatusFound {
		return ErrSessionExpired
	}
	if loginRequired(string(body)) {
		return ErrSessionExpired
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func loginRequired(body string) bool {
	return strings.Contains(body, "用户登录") || strings.Contains(body, "/xtgl/login_slogin.html")
}

// withRelogin runs fn and, when the session turned out to be dead,
// logs in again and runs fn one more time. fn never runs more than
// twice. Concurrent callers hitting the same dead session share a
// single relogin: whoever gets the lock first does it, the rest see
// the bumped generation and retry with the fresh jar.
func (c *Client) withRelogin(ctx context.Context, fn func() error) error {
	seen := c.loginGen.Load()
	err := fn()
	if !errors.Is(err, ErrSessionExpired) {
		return err
	}
	studentID, password := c.credentials()
	if studentID == "" || password == "" {
		return err
	}

	if lerr := c.reloginOnce(ctx, seen, studentID, password); lerr != nil {
		return fmt.Errorf("failed to relogin: %w", lerr)
	}
	return fn()
}

func (c *Client) reloginOnce(ctx context.Context, seen uint64, studentID, password string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.loginGen.Load() != seen {
		return nil
	}

	logger.Info.Printf("Session expired for %s, logging in again", studentID)
	metrics.ReloginsTotal.Inc()
	return c.login(ctx, studentID, password)
}
