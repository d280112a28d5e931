// Package authz defines the gateway's authorization collaborator port: a
// thin introspection client plus a stub implementation for when
// ENABLE_AUTH is off.
package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/olegische/llmrouter/internal/apperr"
)

// Introspection is the result of validating a bearer token against the
// external auth service.
type Introspection struct {
	Active bool
	Sub    string
	Exp    time.Time
	Iat    time.Time
}

// Authorizer introspects a caller's bearer token. Implementations never
// return a generic error for "token rejected" — that's Introspection.Active
// == false; err is reserved for transport/unexpected failures, which the
// auth middleware maps to 503 rather than 401 (see the explicit
// service-auth/user-auth precedence decision this package documents below).
type Authorizer interface {
	Introspect(ctx context.Context, token string) (Introspection, error)
}

// AllowAllAuthorizer is the stub used when ENABLE_AUTH is false: every
// token introspects as active, with the token itself standing in for Sub.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) Introspect(_ context.Context, token string) (Introspection, error) {
	return Introspection{Active: true, Sub: token}, nil
}

// Chain resolves a caller's identity using the gateway's fixed precedence:
// service auth first when enabled, falling through to user auth only on an
// *explicit* rejection from service auth (Active == false), never on a
// transport error from it — a transport error from the service authorizer
// is surfaced to the caller as 503 instead of silently falling through to
// user auth. This makes explicit what the upstream service leaves as an
// unclear fall-through.
type Chain struct {
	Service Authorizer // nil when ENABLE_SERVICE_AUTH is false
	User    Authorizer
}

// Resolve runs the chain, returning the introspection that authorized the
// request and which authorizer produced it ("service" or "user").
func (c Chain) Resolve(ctx context.Context, token string) (Introspection, string, error) {
	if c.Service != nil {
		intro, err := c.Service.Introspect(ctx, token)
		if err != nil {
			return Introspection{}, "service", err
		}
		if intro.Active {
			return intro, "service", nil
		}
	}
	intro, err := c.User.Introspect(ctx, token)
	if err != nil {
		return Introspection{}, "user", err
	}
	return intro, "user", nil
}

// StaticAuthorizer is the service-auth collaborator: the caller's token is
// compared directly against a single configured key, with no round trip.
// Mirrors the gateway's service-auth check, which never delegates to the
// introspection service for the service token.
type StaticAuthorizer struct {
	Key string
}

func (a StaticAuthorizer) Introspect(_ context.Context, token string) (Introspection, error) {
	if a.Key == "" || token != a.Key {
		return Introspection{Active: false}, nil
	}
	return Introspection{Active: true, Sub: "service"}, nil
}

// HTTPAuthorizer is the production user-auth collaborator: it introspects
// a bearer token against an external OAuth2-style introspection endpoint.
type HTTPAuthorizer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAuthorizer builds an HTTPAuthorizer against baseURL's /introspect
// endpoint, bounding every call by timeout.
func NewHTTPAuthorizer(baseURL string, timeout time.Duration) *HTTPAuthorizer {
	return &HTTPAuthorizer{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

type introspectResponse struct {
	Active bool   `json:"active"`
	Sub    string `json:"sub"`
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

func (a *HTTPAuthorizer) Introspect(ctx context.Context, token string) (Introspection, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/introspect", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return Introspection{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Introspection{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Introspection{}, err
	}
	if resp.StatusCode >= 400 {
		return Introspection{}, apperr.FromHTTPStatus(resp.StatusCode, "auth service error", map[string]any{"body": string(raw)})
	}

	var out introspectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Introspection{}, err
	}
	intro := Introspection{Active: out.Active, Sub: out.Sub}
	if out.Exp != 0 {
		intro.Exp = time.Unix(out.Exp, 0)
	}
	if out.Iat != 0 {
		intro.Iat = time.Unix(out.Iat, 0)
	}
	return intro, nil
}
