package server

import (
	"io"
	"iter"
	"net/http"

	"github.com/google/uuid"

	"github.com/olegische/llmrouter/internal/apperr"
	"github.com/olegische/llmrouter/internal/core"
	"github.com/olegische/llmrouter/internal/dialect"
)

// completionHandler builds the thin per-dialect handler shared by every
// completion endpoint family: decode with the dialect adapter, run the
// normalized request through the chat completion service, render the
// result back out through the same adapter.
func (s *Server) completionHandler(df dialectFamily) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeJSONError(w, apperr.BadRequest("failed to read request body"))
			return
		}

		adapter := df.newAdapter()
		req, native, err := adapter.ParseRequest(body)
		if err != nil {
			ae := apperr.As(err)
			if ae == nil {
				ae = apperr.BadRequest(err.Error())
			}
			s.writeJSONError(w, ae)
			return
		}

		rc := core.NewRequestContext(requestIDFromContext(r.Context()), uuid.NewString)
		rc.Dialect = df.name
		rc.OriginalRequest = native
		rc.Request = req
		rc.UserID = userIDFromContext(r.Context())
		rc.APIKey = apiKeyFromContext(r.Context())
		rc.Origin = r.Header.Get("Origin")
		if req.UsageOpts != nil {
			rc.IncludeUsage = req.UsageOpts.IncludeUsage
		}

		seq := s.chat.CreateChatCompletion(r.Context(), rc)
		if req.Stream {
			s.writeStream(w, adapter, rc, seq)
			return
		}
		s.writeResponse(w, adapter, rc, seq)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, adapter dialect.Adapter, rc *core.RequestContext, seq iter.Seq2[core.Artifact, error]) {
	for artifact, err := range seq {
		if err != nil {
			s.writeJSONError(w, asAppError(err))
			return
		}
		if artifact.Response != nil {
			w.Header().Set("Content-Type", "application/json")
			_ = adapter.WriteResponse(w, artifact.Response, rc)
			return
		}
	}
}

// writeStream streams chunks as they arrive. Headers are only committed on
// the first successful write, so an error before any chunk was emitted
// still produces a clean non-200 JSON error response; only errors observed
// after streaming has begun are re-emitted as an SSE error frame, per the
// documented mid-stream error behavior.
func (s *Server) writeStream(w http.ResponseWriter, adapter dialect.Adapter, rc *core.RequestContext, seq iter.Seq2[core.Artifact, error]) {
	flusher, _ := w.(http.Flusher)
	started := false

	for artifact, err := range seq {
		if err != nil {
			ae := asAppError(err)
			if !started {
				s.writeJSONError(w, ae)
				return
			}
			_ = adapter.WriteStreamError(w, ae)
			if flusher != nil {
				flusher.Flush()
			}
			return
		}

		if !started {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			started = true
		}

		done, werr := adapter.WriteStreamChunk(w, artifact.Chunk, rc)
		if werr != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if done {
			return
		}
	}
}

func asAppError(err error) *apperr.Error {
	if ae := apperr.As(err); ae != nil {
		return ae
	}
	return apperr.Internal("unexpected error", err)
}
