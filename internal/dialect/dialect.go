// Package dialect holds the C5 dialect adapters: one package per inbound
// wire shape (openaichat, responses, gigachatv1, gigachatv2, llmgateway),
// each translating between its own request/response/stream JSON and the
// internal core.ChatRequest/ChatResponse/StreamChunk shapes that the
// handler chain and provider drivers operate on.
package dialect

import (
	"io"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
)

// Adapter is implemented once per dialect and consumed by internal/server.
// ParseRequest normalizes an inbound request body into the internal shape;
// the three Write* methods render internal artifacts back into that
// dialect's wire shape.
type Adapter interface {
	// ParseRequest decodes body into the internal ChatRequest. native is
	// the dialect's own parsed representation (before normalization),
	// stored on RequestContext.OriginalRequest for handlers that need it
	// (the GigaChat adapters' function-call id bookkeeping, for example).
	ParseRequest(body []byte) (req *core.ChatRequest, native any, err error)

	// WriteResponse serializes a complete non-streaming response.
	WriteResponse(w io.Writer, resp *core.ChatResponse, rc *core.RequestContext) error

	// WriteStreamChunk serializes one SSE data frame, including the
	// trailing blank line. Returns false for done when the caller should
	// keep streaming, true once the adapter has emitted its own
	// terminal/[DONE] marker (some dialects, like Responses, emit several
	// chunks' worth of internal chunk before their own terminal event).
	WriteStreamChunk(w io.Writer, chunk *core.StreamChunk, rc *core.RequestContext) (done bool, err error)

	// WriteStreamError renders a mid-stream error as one final SSE frame
	// in this dialect's error shape, followed by the dialect's own
	// end-of-stream marker.
	WriteStreamError(w io.Writer, err *apperr.Error) error
}

// ErrorEnvelope is the gateway's standard JSON error body, shared by every
// dialect's non-streaming error responses.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorEnvelope builds the standard envelope from an apperr.Error.
func NewErrorEnvelope(e *apperr.Error) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{
		Message: e.Message,
		Type:    errorType(e.Code),
		Code:    e.Code,
		Details: e.Details,
	}}
}

func errorType(code int) string {
	switch {
	case code == 401:
		return "authentication_error"
	case code == 402:
		return "payment_required"
	case code == 403:
		return "permission_error"
	case code == 404:
		return "not_found_error"
	case code == 408:
		return "timeout_error"
	case code >= 500:
		return "api_error"
	default:
		return "invalid_request_error"
	}
}
