package update

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	testCases := []struct {
		a, b string
		want int
	}{
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"1.0.0", "1.0.0", 0},
		{"1.10.0", "1.9.9", 1},
		{"2.0", "1.9.9", 1},
		{"1.0", "1.0.0", 0},
		{"1.0.1", "1.0", 1},
		{"v1.2.0", "1.2.0", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.a+" vs "+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, CompareVersions(tc.a, tc.b))
		})
	}
}

func newTestChecker(t *testing.T, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	checker := NewChecker("owner/app")
	checker.baseURL = srv.URL
	return checker
}

func TestCheck_UpdateAvailable(t *testing.T) {
	checker := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/owner/app/releases/latest", r.URL.Path)
		fmt.Fprint(w, `{"tag_name":"v1.2.0","body":"fixes","assets":[{"name":"app.apk","browser_download_url":"https://example.com/app.apk"}]}`)
	})

	release, err := checker.Check(context.Background(), "1.1.3")
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.Equal(t, "1.2.0", release.Version())
	require.Len(t, release.Assets, 1)
	assert.Equal(t, "app.apk", release.Assets[0].Name)
}

func TestCheck_UpToDate(t *testing.T) {
	checker := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.2.0","assets":[]}`)
	})

	release, err := checker.Check(context.Background(), "1.2.0")
	require.NoError(t, err)
	assert.Nil(t, release)
}

func TestCheck_APIError(t *testing.T) {
	checker := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	})

	_, err := checker.Check(context.Background(), "1.0.0")
	assert.Error(t, err)
}
