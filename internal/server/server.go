// Package server implements the router surface (C8): chi routing,
// middleware, and the thin per-dialect handlers that parse a request with
// its dialect adapter, run it through the chat completion service, and
// render the result back in the same dialect.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/olegische/llmrouter/internal/authz"
	"github.com/olegische/llmrouter/internal/catalog"
	"github.com/olegische/llmrouter/internal/chatservice"
	"github.com/olegische/llmrouter/internal/config"
	"github.com/olegische/llmrouter/internal/dialect"
	"github.com/olegische/llmrouter/internal/dialect/gigachatv1"
	"github.com/olegische/llmrouter/internal/dialect/gigachatv2"
	"github.com/olegische/llmrouter/internal/dialect/llmgateway"
	"github.com/olegische/llmrouter/internal/dialect/openaichat"
	"github.com/olegische/llmrouter/internal/dialect/responses"
	"github.com/olegische/llmrouter/internal/metrics"
)

// Server holds the HTTP router and every dependency a handler needs.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	chat    *chatservice.Service
	catalog *catalog.Catalog
	authz   authz.Chain
	metrics *metrics.Registry
}

// New wires up routes and middleware and returns a Server ready to use as
// an http.Handler.
func New(cfg *config.Config, chat *chatservice.Service, cat *catalog.Catalog, az authz.Chain, reg *metrics.Registry) *Server {
	s := &Server{cfg: cfg, chat: chat, catalog: cat, authz: az, metrics: reg}
	s.routes()
	return s
}

// dialectFamily names one C5 adapter for route registration. newAdapter is
// called once per request rather than cached, since the Responses adapter
// is stateful and needs a fresh instance every time; the cost for the
// other, stateless adapters is one empty-struct allocation.
type dialectFamily struct {
	name       string
	newAdapter func() dialect.Adapter
}

func (s *Server) routes() {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.accessLog)
	if len(s.cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/v1/models", s.handleModels)
	r.Get("/api/v1/models", s.handleModels)

	if s.cfg.Features.ServerInfoEndpoint {
		r.Get("/api/v1/info/json", s.handleInfoJSON)
		r.Get("/info/table", s.handleInfoTable)
	}

	// The gateway's native chat-completions path serves exactly one of the
	// two dialects, picked once at startup by ENABLE_OPENAI_COMPATIBLE_API —
	// the same toggle the registry (C1) uses to decide whether an external
	// model id carries a "<provider>/" prefix.
	var chat func() dialect.Adapter
	if s.cfg.Features.OpenAICompatible {
		chat = func() dialect.Adapter { return openaichat.New() }
	} else {
		chat = func() dialect.Adapter { return llmgateway.New() }
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		completions := s.completionHandler(dialectFamily{name: "openai_chat", newAdapter: chat})
		r.Post("/v1/chat/completions", completions)
		r.Post("/api/v1/chat/completions", completions)

		respHandler := s.completionHandler(dialectFamily{
			name:       "openai_responses",
			newAdapter: func() dialect.Adapter { return responses.New() },
		})
		r.Post("/v1/responses", respHandler)
		r.Post("/api/v1/responses", respHandler)

		giga1 := s.completionHandler(dialectFamily{
			name:       "gigachat_v1",
			newAdapter: func() dialect.Adapter { return gigachatv1.New() },
		})
		r.Post("/api/v1/gigachat/completions", giga1)

		giga2 := s.completionHandler(dialectFamily{
			name:       "gigachat_v2",
			newAdapter: func() dialect.Adapter { return gigachatv2.New() },
		})
		r.Post("/api/v2/gigachat/completions", giga2)
	})

	s.router = r
}

// ServeHTTP makes Server satisfy http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
