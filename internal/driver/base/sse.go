package base

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/olegische/llmrouter/internal/apperr"
)

// DrainAndError reads and discards an upstream error body (so the
// connection can be reused) and raises a structured *apperr.Error carrying
// the upstream status code and whatever JSON (or raw text) came back.
func DrainAndError(resp *http.Response, providerName string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	details := map[string]any{"provider": providerName, "status": resp.StatusCode}
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		details["upstream_error"] = parsed
	} else if len(body) > 0 {
		details["upstream_body"] = string(body)
	}
	msg := fmt.Sprintf("%s upstream error (status %d)", providerName, resp.StatusCode)
	return apperr.FromHTTPStatus(resp.StatusCode, msg, details)
}

// midStreamError is the shape OpenRouter (and OpenAI-compatible upstreams
// generally) sometimes embed inside an otherwise-200 SSE stream instead of
// ending it cleanly.
type midStreamError struct {
	Error *midStreamErrorBody `json:"error"`
}

type midStreamErrorBody struct {
	Message string `json:"message"`
	Code    any    `json:"code"`
	Type    string `json:"type"`
}

// DetectMidStreamError inspects one decoded SSE data frame for an embedded
// error object. It returns nil if the frame is a normal chunk.
//
// OpenRouter in particular reports geofencing failures as a 200-status
// stream whose first (and only) frame is {"error": {...}}; the message
// substring "unsupported_country_region_territory" must map to 403
// regardless of whatever numeric code the frame itself carries.
func DetectMidStreamError(frame []byte, providerName string) error {
	var e midStreamError
	if err := json.Unmarshal(frame, &e); err != nil || e.Error == nil {
		return nil
	}
	status := codeToStatus(e.Error.Code)
	if strings.Contains(e.Error.Message, "unsupported_country_region_territory") {
		status = http.StatusForbidden
	}
	details := map[string]any{"provider": providerName, "type": e.Error.Type}
	return apperr.FromHTTPStatus(status, e.Error.Message, details)
}

func codeToStatus(code any) int {
	switch v := code.(type) {
	case float64:
		if v >= 400 && v < 600 {
			return int(v)
		}
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n >= 400 && n < 600 {
			return n
		}
	}
	return http.StatusBadGateway
}

// LineScanner wraps bufio.Scanner with a larger buffer than the default
// 64KiB token limit — some upstreams (tool-call-heavy GigaChat/Yandex
// frames) exceed it.
func LineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	return scanner
}
