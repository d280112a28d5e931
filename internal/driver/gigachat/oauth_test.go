package gigachat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegische/llmrouter/internal/apperr"
)

func expiresAtMillis(d time.Duration) string {
	return strconv.FormatInt(time.Now().Add(d).UnixMilli(), 10)
}

func TestTokenSource_RefreshesOnFirstCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Basic bG9naW46cGFzcw==", r.Header.Get("Authorization"))
		w.Write([]byte(`{"access_token":"tok-1","expires_at":` + expiresAtMillis(time.Hour) + `}`))
	}))
	defer srv.Close()

	ts := newTokenSource(srv.URL, "scope", "login", "pass", "", srv.Client())
	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenSource_CachesTokenUntilExpiryBuffer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"access_token":"tok-cached","expires_at":` + expiresAtMillis(time.Hour) + `}`))
	}))
	defer srv.Close()

	ts := newTokenSource(srv.URL, "scope", "login", "pass", "", srv.Client())
	_, err := ts.Token(context.Background())
	require.NoError(t, err)
	tok2, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-cached", tok2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTokenSource_RefreshesWhenWithinExpiryBuffer(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		token := "tok-stale"
		if n > 1 {
			token = "tok-fresh"
		}
		w.Write([]byte(`{"access_token":"` + token + `","expires_at":` + expiresAtMillis(time.Minute) + `}`))
	}))
	defer srv.Close()

	ts := newTokenSource(srv.URL, "scope", "login", "pass", "", srv.Client())
	tok1, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-stale", tok1)

	tok2, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-fresh", tok2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenSource_ServiceTokenPreferredOverBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Write([]byte(`{"access_token":"tok","expires_at":` + expiresAtMillis(time.Hour) + `}`))
	}))
	defer srv.Close()

	ts := newTokenSource(srv.URL, "scope", "login", "pass", "svc-token", srv.Client())
	_, err := ts.Token(context.Background())
	require.NoError(t, err)
}

func TestTokenSource_NoCredentialsReturnsInternalError(t *testing.T) {
	ts := newTokenSource("http://unused", "scope", "", "", "", http.DefaultClient)
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, 500, apperr.As(err).Code)
}

func TestTokenSource_UpstreamErrorStatusSurfacesAsAppError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := newTokenSource(srv.URL, "scope", "login", "pass", "", srv.Client())
	_, err := ts.Token(context.Background())
	require.Error(t, err)
	assert.Equal(t, 401, apperr.As(err).Code)
}
