package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suseoaa/oaacore/internal/session"
)

// retryServer serves the login flow plus a grades endpoint whose
// behavior is scripted per call.
type retryServer struct {
	*httptest.Server
	loginCount int32
	fetchCount int32
	// expireFirst makes the first grades call answer like a dead session
	expireFirst bool
	// failLogin makes every login attempt come back as the login page
	failLogin bool
}

func newRetryServer(t *testing.T, expireFirst, failLogin bool) *retryServer {
	key := testKey(t)
	rs := &retryServer{expireFirst: expireFirst, failLogin: failLogin}

	rs.Server = loginServer(t, key, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&rs.loginCount, 1)
		if rs.failLogin {
			fmt.Fprint(w, loginPageHTML)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "s2", Path: "/"})
		w.Header().Set("Location", "/xtgl/index_initMenu.html")
		w.WriteHeader(http.StatusFound)
	})

	mux := rs.Server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("GET /xtgl/index_initMenu.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>首页</html>")
	})
	mux.HandleFunc("POST /cjcx/cjcx_cxDgXscj.html", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&rs.fetchCount, 1)
		if rs.expireFirst && n == 1 {
			w.Header().Set("Location", "/xtgl/login_slogin.html")
			w.WriteHeader(http.StatusFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]string{{"kcmc": "高等数学", "cj": "91", "xf": "4"}},
		})
	})
	return rs
}

func TestFetchGrades_ReloginOnce(t *testing.T) {
	server := newRetryServer(t, true, false)
	defer server.Close()

	client, err := NewClient(server.URL, session.NewMemoryRepository())
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background(), "2021001", "pw"))

	// scripted server: next grades call plays dead, forcing a relogin
	atomic.StoreInt32(&server.loginCount, 0)

	grades, err := client.FetchGrades(context.Background(), "2024", "3")
	require.NoError(t, err)
	require.Len(t, grades.Items, 1)
	assert.Equal(t, "高等数学", grades.Items[0].CourseName)
	assert.Equal(t, "91", grades.Items[0].Score)

	assert.EqualValues(t, 1, atomic.LoadInt32(&server.loginCount), "exactly one relogin")
	assert.EqualValues(t, 2, atomic.LoadInt32(&server.fetchCount), "fetch runs at most twice")
}

func TestFetchGrades_NoRetryWithoutCredentials(t *testing.T) {
	server := newRetryServer(t, true, false)
	defer server.Close()

	client, err := NewClient(server.URL, session.NewMemoryRepository())
	require.NoError(t, err)

	// no Login call, so the client has nothing to relogin with
	_, err = client.FetchGrades(context.Background(), "2024", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.EqualValues(t, 1, atomic.LoadInt32(&server.fetchCount), "no second attempt")
	assert.EqualValues(t, 0, atomic.LoadInt32(&server.loginCount))
}

func TestFetchGrades_ReloginFailureStopsRetry(t *testing.T) {
	server := newRetryServer(t, true, false)
	defer server.Close()

	client, err := NewClient(server.URL, session.NewMemoryRepository())
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background(), "2021001", "pw"))

	server.failLogin = true
	atomic.StoreInt32(&server.loginCount, 0)

	_, err = client.FetchGrades(context.Background(), "2024", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginFailed)
	assert.EqualValues(t, 1, atomic.LoadInt32(&server.fetchCount), "fetch not retried after failed relogin")
}

func TestRestoreSession(t *testing.T) {
	server := newRetryServer(t, false, false)
	defer server.Close()

	ctx := context.Background()
	repo := session.NewMemoryRepository()

	first, err := NewClient(server.URL, repo)
	require.NoError(t, err)
	require.NoError(t, first.Login(ctx, "2021001", "pw"))

	// a second client picks the saved session up without logging in
	second, err := NewClient(server.URL, repo)
	require.NoError(t, err)
	restored, err := second.RestoreSession(ctx, "2021001", "pw")
	require.NoError(t, err)
	assert.True(t, restored)

	loginsBefore := atomic.LoadInt32(&server.loginCount)
	_, err = second.FetchGrades(ctx, "2024", "3")
	require.NoError(t, err)
	assert.Equal(t, loginsBefore, atomic.LoadInt32(&server.loginCount), "restored session needs no login")

	missing, err := NewClient(server.URL, repo)
	require.NoError(t, err)
	restored, err = missing.RestoreSession(ctx, "someone-else", "pw")
	require.NoError(t, err)
	assert.False(t, restored)
}

// All detail workers hitting a dead session at once must share one
// relogin and finish against the fresh jar. The http.Client keeps the
// same Jar value throughout, only the jar contents change.
func TestFetchGradeDetails_ConcurrentExpirySharesRelogin(t *testing.T) {
	key := testKey(t)
	var loginCount, detailCount int32

	server := loginServer(t, key, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&loginCount, 1)
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "fresh", Path: "/"})
		w.Header().Set("Location", "/xtgl/index_initMenu.html")
		w.WriteHeader(http.StatusFound)
	})
	defer server.Close()

	mux := server.Config.Handler.(*http.ServeMux)
	mux.HandleFunc("GET /xtgl/index_initMenu.html", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>首页</html>")
	})
	mux.HandleFunc("POST /cjcx/cjcx_cxCjxqGjh.html", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&detailCount, 1)
		// the first session is dead until a second login happens
		if atomic.LoadInt32(&loginCount) < 2 {
			w.Header().Set("Location", "/xtgl/login_slogin.html")
			w.WriteHeader(http.StatusFound)
			return
		}
		fmt.Fprint(w, `<div><span>平时(30%)</span><span>88</span><span>期末(70%)</span><span>90</span></div>`)
	})

	client, err := NewClient(server.URL, session.NewMemoryRepository())
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background(), "2021001", "pw"))

	items := make([]GradeItem, 6)
	for i := range items {
		items[i] = GradeItem{
			Year: "2024", Term: "3",
			CourseName: fmt.Sprintf("课程%d", i),
			ClassID:    fmt.Sprintf("jxb-%d", i),
		}
	}

	results := client.FetchGradeDetails(context.Background(), items)
	require.Len(t, results, 6)
	for i, res := range results {
		require.NoError(t, res.Err, "item %d", i)
		assert.Equal(t, items[i].CourseName, res.Item.CourseName)
		assert.Contains(t, res.Detail, "平时(30%):88")
	}

	assert.EqualValues(t, 2, atomic.LoadInt32(&loginCount), "initial login plus one shared relogin")
	assert.LessOrEqual(t, atomic.LoadInt32(&detailCount), int32(12), "each item fetched at most twice")
}

func TestCheckSessionClassification(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		expired bool
		ok      bool
	}{
		{"status 901", 901, "", true, false},
		{"redirect", http.StatusFound, "", true, false},
		{"login page body", http.StatusOK, "<title>用户登录</title>", true, false},
		{"login path in body", http.StatusOK, `location.href="/xtgl/login_slogin.html"`, true, false},
		{"server error", http.StatusInternalServerError, "boom", false, false},
		{"healthy", http.StatusOK, `{"items":[]}`, false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tc.status}
			err := checkSession(resp, []byte(tc.body))
			if tc.ok {
				assert.NoError(t, err)
			} else if tc.expired {
				assert.ErrorIs(t, err, ErrSessionExpired)
			} else {
				assert.Error(t, err)
				assert.NotErrorIs(t, err, ErrSessionExpired)
			}
		})
	}
}
