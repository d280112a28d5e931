package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/logging"
)

// slowRequestThreshold matches the original gateway's request-id
// middleware: a request taking longer than this is logged as a warning,
// never rejected.
const slowRequestThreshold = time.Second

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUserID
	ctxKeyAPIKey
)

// requestID generates or echoes X-Request-ID, stamping it on both the
// request context (for handlers) and the response (for the caller).
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// accessLog logs one structured line per request and flags requests that
// cross the slow-request threshold, mirroring the original gateway's
// request-id middleware.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.With(r.Context(), map[string]any{
			"request_id": requestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		logger := logging.From(ctx)
		logger.Info().Int("status", ww.Status()).Dur("duration", elapsed).Msg("request completed")
		if elapsed > slowRequestThreshold {
			logger.Warn().Dur("duration", elapsed).Msg("slow request detected")
		}
	})
}

// requireAuth resolves the caller's bearer token through the authz chain
// and rejects the request on anything but an active introspection. A
// transport failure from the chain is surfaced as 503, never silently
// treated as 401 — see authz.Chain's documented precedence.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.writeJSONError(w, apperr.Unauthorized("missing or malformed Authorization header"))
			return
		}

		intro, _, err := s.authz.Resolve(r.Context(), token)
		if err != nil {
			s.writeJSONError(w, apperr.Unavailable("authorization service unreachable", err))
			return
		}
		if !intro.Active {
			s.writeJSONError(w, apperr.Unauthorized("token is not active"))
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, intro.Sub)
		ctx = context.WithValue(ctx, ctxKeyAPIKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

func apiKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(ctxKeyAPIKey).(string)
	return key
}
