package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suseoaa/oaacore/internal/session"
)

func siteOK(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"resultCode":0,"success":true,"result":%s}`, result)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *session.MemoryRepository) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	repo := session.NewMemoryRepository()
	client, err := NewClient(srv.URL, srv.URL, repo)
	require.NoError(t, err)
	return client, srv, repo
}

func TestQRLoginFlow(t *testing.T) {
	token := makeToken(t, map[string]any{
		"uid":    "23341010304",
		"ticket": "ticket-1",
		"extra":  `{"openId":"o-123","userName":"张三"}`,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /edu/v2/weixin/getClientId", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"msg":"ok","data":{"client_id":"cid-1"}}`)
	})
	mux.HandleFunc("POST /edu/v2/weixin/getQrCodeUrl", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AppID    string `json:"app_id"`
			ClientID string `json:"client_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wx130c9f0196e29149", req.AppID)
		assert.Equal(t, "cid-1", req.ClientID)
		fmt.Fprint(w, `{"code":200,"data":{"img":"data:image/png;base64,QR","imgType":"base64","minute":5}}`)
	})
	scans := 0
	mux.HandleFunc("POST /edu/v2/weixin/checkScan", func(w http.ResponseWriter, r *http.Request) {
		scans++
		if scans == 1 {
			fmt.Fprint(w, `{"code":200,"data":{"status":0}}`)
			return
		}
		fmt.Fprintf(w, `{"code":200,"data":{"status":2,"callback_url":"http://%s/callback"}}`, r.Host)
	})
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_sop_session_", Value: token, Path: "/"})
	})
	mux.HandleFunc("GET /site/appware/system/sso/loginUrl", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("_sop_session_"); err != nil {
			http.Error(w, "no sop session", http.StatusUnauthorized)
			return
		}
		assert.Contains(t, r.URL.Query().Get("service"), "open_id=o-123")
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "sess-1", Path: "/"})
	})

	client, _, repo := newTestClient(t, mux)
	ctx := context.Background()

	clientID, err := client.FetchClientID(ctx)
	require.NoError(t, err)

	qr, err := client.FetchQRCode(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,QR", qr.Image)

	status, err := client.CheckScan(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, ScanPending, status.Status)

	status, err = client.CheckScan(ctx, clientID)
	require.NoError(t, err)
	require.Equal(t, ScanConfirmed, status.Status)
	require.NotEmpty(t, status.CallbackURL)

	require.NoError(t, client.CompleteQRLogin(ctx, status.CallbackURL))
	assert.Equal(t, "23341010304", client.StudentID())
	assert.Equal(t, "张三", client.UserName())

	saved, err := repo.Load(ctx, "23341010304")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "o-123", saved.OpenID)
	assert.False(t, saved.Expired(time.Now()))

	names := make([]string, 0, len(saved.Cookies))
	for _, ck := range saved.Cookies {
		names = append(names, ck.Name)
	}
	assert.Contains(t, names, "SESSION")
	assert.Contains(t, names, "_sop_session_")
}

func TestWaitForScan_Confirmed(t *testing.T) {
	scans := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /edu/v2/weixin/checkScan", func(w http.ResponseWriter, r *http.Request) {
		scans++
		switch scans {
		case 1:
			fmt.Fprint(w, `{"code":200,"data":{"status":0}}`)
		case 2:
			fmt.Fprint(w, `{"code":200,"data":{"status":1}}`)
		default:
			fmt.Fprint(w, `{"code":200,"data":{"status":2,"callback_url":"http://example/callback"}}`)
		}
	})

	client, _, _ := newTestClient(t, mux)
	scannedNotices := 0
	status, err := client.WaitForScan(context.Background(), "cid-1", time.Second, time.Millisecond, func() {
		scannedNotices++
	})
	require.NoError(t, err)
	assert.Equal(t, ScanConfirmed, status.Status)
	assert.Equal(t, "http://example/callback", status.CallbackURL)
	assert.Equal(t, 1, scannedNotices, "scanned notice fires once")
}

func TestWaitForScan_ExpiresWithValidity(t *testing.T) {
	scans := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /edu/v2/weixin/checkScan", func(w http.ResponseWriter, r *http.Request) {
		scans++
		fmt.Fprint(w, `{"code":200,"data":{"status":0}}`)
	})

	client, _, _ := newTestClient(t, mux)
	_, err := client.WaitForScan(context.Background(), "cid-1", 50*time.Millisecond, 10*time.Millisecond, nil)
	require.ErrorIs(t, err, ErrQRCodeExpired)
	assert.LessOrEqual(t, scans, 10, "polling stops once the code expires")
}

func TestWaitForScan_ContextCancel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /edu/v2/weixin/checkScan", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":200,"data":{"status":0}}`)
	})

	client, _, _ := newTestClient(t, mux)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.WaitForScan(ctx, "cid-1", time.Minute, time.Millisecond, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRestoreSessionRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /site/app/base/common/api/user/current.rst", func(w http.ResponseWriter, r *http.Request) {
		ck, err := r.Cookie("SESSION")
		if err != nil || ck.Value != "sess-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		siteOK(w, `{"id":"1","code":"23341010304","name":"张三"}`)
	})

	client, srv, repo := newTestClient(t, mux)
	ctx := context.Background()

	// Seed the repository the way a finished QR login would.
	client.studentID = "23341010304"
	client.openID = "o-123"
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	base.Path = "/"
	client.jar.SetCookies(base, []*http.Cookie{{Name: "SESSION", Value: "sess-1", Path: "/"}})
	require.NoError(t, client.saveSession(ctx))

	restored, err := NewClient(srv.URL, srv.URL, repo)
	require.NoError(t, err)
	ok, err := restored.RestoreSession(ctx, "23341010304")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "o-123", restored.openID)

	user, err := restored.FetchCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "张三", user.Name)

	ok, err = restored.RestoreSession(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskFlow(t *testing.T) {
	var submitted locationRequest

	mux := http.NewServeMux()
	mux.HandleFunc("GET /site/qddk/qdrw/api/myList.rst", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("status"))
		assert.Equal(t, "qddk", r.Header.Get("appcode"))
		siteOK(w, `{"data":[{"id":42,"rwmc":"晚点名","rwzt":"进行中","qdlx":"定位签到","needTime":"2025-09-08","qdkssj":"19:10:00","qdjssj":"23:00:00"}],"total":1}`)
	})
	mux.HandleFunc("GET /site/qddk/qdrw/qdxx/api/detailList.rst", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("qdrwId"))
		siteOK(w, `{"data":{"dkxx":{"id":9001,"qdzt":0,"qdrwid":42}}}`)
	})
	mux.HandleFunc("POST /site/qddk/qdrw/api/checkSignLocationWithPhoto.rst", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		siteOK(w, `{"data":true}`)
	})

	client, _, _ := newTestClient(t, mux)
	ctx := context.Background()

	tasks, err := client.ListTasks(ctx, TaskPending)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(42), tasks[0].ID)
	assert.Equal(t, "晚点名", tasks[0].Name)

	record, err := client.FetchTaskRecord(ctx, tasks[0].ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(9001), record.ID)
	assert.Equal(t, 0, record.Signed)

	at := time.Date(2025, 9, 8, 20, 33, 2, 0, time.Local)
	require.NoError(t, client.SubmitLocation(ctx, record.ID, LocationA4, at))

	assert.Equal(t, int64(9001), submitted.ID)
	assert.Equal(t, 1, submitted.Qdzt)
	assert.Equal(t, "2025-09-08 20:33:02", submitted.Qdsj)
	assert.Equal(t, LocationA4.Address, submitted.Qdddjtdz)
	assert.Equal(t, LocationA4.JSON, submitted.Location)
	assert.Equal(t, "{}", submitted.Txxx)
}

func TestTaskFlow_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /site/qddk/qdrw/api/myList.rst", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resultCode":401,"success":false,"errorMsg":"会话已过期"}`)
	})

	client, _, _ := newTestClient(t, mux)
	_, err := client.ListTasks(context.Background(), TaskPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "会话已过期")
}

func TestFetchGroupIdentity(t *testing.T) {
	t.Run("string form", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /site/app/base/common/api/group/qddk/identity.rst", func(w http.ResponseWriter, r *http.Request) {
			siteOK(w, `{"data":"_sudy2_XDH6iuWnV4="}`)
		})
		client, _, _ := newTestClient(t, mux)
		code, err := client.FetchGroupIdentity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "_sudy2_XDH6iuWnV4=", code)
	})

	t.Run("array form", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /site/app/base/common/api/group/qddk/identity.rst", func(w http.ResponseWriter, r *http.Request) {
			siteOK(w, `{"data":[{"code":"_sudy2_XDH6iuWnV4=","name":"本科生"}]}`)
		})
		client, _, _ := newTestClient(t, mux)
		code, err := client.FetchGroupIdentity(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "_sudy2_XDH6iuWnV4=", code)
	})

	t.Run("empty", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /site/app/base/common/api/group/qddk/identity.rst", func(w http.ResponseWriter, r *http.Request) {
			siteOK(w, `{"data":[]}`)
		})
		client, _, _ := newTestClient(t, mux)
		_, err := client.FetchGroupIdentity(context.Background())
		assert.Error(t, err)
	})
}

func TestSubmitGroup(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /site/app/base/common/api/group/{code}/qddk/set.rst", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "_sudy2_XDH6iuWnV4=", r.PathValue("code"))
		siteOK(w, `{"data":true}`)
	})

	client, _, _ := newTestClient(t, mux)
	require.NoError(t, client.SubmitGroup(context.Background(), "_sudy2_XDH6iuWnV4="))
}

func TestClassifyCASFailure(t *testing.T) {
	testCases := []struct {
		name string
		body string
		want string
	}{
		{"error div", `<div class="login-error">用户名或密码不正确</div>`, "用户名或密码不正确"},
		{"captcha", `<html>验证码错误，请重试</html>`, "验证码错误"},
		{"password", `<html>密码输入有误</html>`, "用户名或密码错误"},
		{"user", `<html>用户不存在</html>`, "用户名不存在"},
		{"fallback", `<html>登录页</html>`, "登录失败 (200)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyCASFailure(tc.body, 200))
		})
	}
}
