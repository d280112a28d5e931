package gigachat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/olegische/llmrouter/internal/apperr"
)

// expiryBuffer is subtracted from the token's reported expiry so a
// refresh happens slightly before the upstream would reject the old
// token, per spec's "5-minute buffer" rule.
const expiryBuffer = 5 * time.Minute

// tokenState is the immutable snapshot swapped in atomically on refresh.
type tokenState struct {
	accessToken string
	expiresAt   time.Time
}

// tokenSource manages GigaChat's OAuth access token: a lock-free read of
// the cached token via atomic.Value, guarded on the refresh path by a
// mutex so concurrent requests that all see an expired token collapse
// into one upstream OAuth call.
type tokenSource struct {
	oauthURL     string
	scope        string
	login        string
	password     string
	serviceToken string // pre-issued service-account token, if configured
	client       *http.Client

	current atomic.Value // holds *tokenState
	mu      sync.Mutex
}

func newTokenSource(oauthURL, scope, login, password, serviceToken string, client *http.Client) *tokenSource {
	ts := &tokenSource{
		oauthURL:     oauthURL,
		scope:        scope,
		login:        login,
		password:     password,
		serviceToken: serviceToken,
		client:       client,
	}
	ts.current.Store((*tokenState)(nil))
	return ts
}

// Token returns a valid access token, refreshing synchronously if the
// cached one is missing or within expiryBuffer of expiring.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	if st := ts.load(); st != nil && time.Now().Before(st.expiresAt.Add(-expiryBuffer)) {
		return st.accessToken, nil
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	// Re-check: another goroutine may have refreshed while we waited on
	// the lock. A double refresh here is harmless (idempotent), so this
	// check is an optimization, not a correctness requirement.
	if st := ts.load(); st != nil && time.Now().Before(st.expiresAt.Add(-expiryBuffer)) {
		return st.accessToken, nil
	}

	return ts.refresh(ctx)
}

func (ts *tokenSource) load() *tokenState {
	v, _ := ts.current.Load().(*tokenState)
	return v
}

func (ts *tokenSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{"scope": {ts.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Internal("building gigachat oauth request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())

	switch {
	case ts.serviceToken != "":
		req.Header.Set("Authorization", "Bearer "+ts.serviceToken)
	case ts.login != "" && ts.password != "":
		auth := base64.StdEncoding.EncodeToString([]byte(ts.login + ":" + ts.password))
		req.Header.Set("Authorization", "Basic "+auth)
	default:
		return "", apperr.Internal("gigachat has no credentials configured", nil)
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", apperr.Unavailable("gigachat oauth request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", apperr.FromHTTPStatus(resp.StatusCode, "gigachat oauth failed", map[string]any{"status": resp.StatusCode})
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"` // epoch millis, per GigaChat's OAuth response
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperr.Internal("decoding gigachat oauth response", err)
	}

	st := &tokenState{
		accessToken: body.AccessToken,
		expiresAt:   time.UnixMilli(body.ExpiresAt),
	}
	ts.current.Store(st)
	return st.accessToken, nil
}
