package server

import (
	"encoding/json"
	"net/http"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/dialect"
)

// writeJSONError renders e as the gateway's standard error envelope, using
// e.Code as the HTTP status directly — the taxonomy in internal/apperr is
// defined to double as valid HTTP status codes.
func (s *Server) writeJSONError(w http.ResponseWriter, e *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	_ = json.NewEncoder(w).Encode(dialect.NewErrorEnvelope(e))
}
