package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// defaultSamplingParams backs every model's reported sampling_params when
// the catalog doesn't carry per-model overrides — the catalog's
// core.ProviderModel has no field for them today, so every model reports
// the same gateway-wide defaults.
var defaultSamplingParams = map[string]any{
	"max_tokens":          2048,
	"temperature":         1.0,
	"top_p":               0.699999988079071,
	"repetition_penalty":  1.100000023841858,
	"top_k":               0,
	"force_non_empty_response":    true,
	"function_impossible_threshold": 0,
	"force_non_empty_function":    false,
	"n":                   1,
}

type serverInfo struct {
	WorkersCount  int    `json:"workers_count"`
	ServerVersion string `json:"server_version"`
	Object        string `json:"object"`
}

type serverLoad struct {
	QueuedRequests int `json:"queued_requests"`
	ActiveRequests int `json:"active_requests"`
	ActiveTokens   int `json:"active_tokens"`
}

type serverModel struct {
	ID             string         `json:"id"`
	MaxSeqLen      int            `json:"max_seq_len"`
	MaxInputLen    int            `json:"max_input_len"`
	MaxBatchSize   int            `json:"max_batch_size"`
	BusyGPU        []int          `json:"busy_gpu"`
	TP             int            `json:"tp"`
	SamplingParams map[string]any `json:"sampling_params"`
	Object         string         `json:"object"`
	OwnedBy        string         `json:"owned_by"`
	Load           serverLoad     `json:"load"`
}

type serverInfoResponse struct {
	ServerInfo serverInfo    `json:"server_info"`
	Models     []serverModel `json:"models"`
	Object     string        `json:"object"`
}

// serverVersion is overridden at build time via -ldflags; "Undefined"
// matches the upstream default when it isn't.
var serverVersion = "Undefined"

func (s *Server) collectServerInfo(r *http.Request) (serverInfoResponse, error) {
	models, err := s.catalog.GetModels(r.Context())
	if err != nil {
		return serverInfoResponse{}, err
	}

	out := make([]serverModel, 0, len(models))
	for _, m := range models {
		maxSeqLen := m.ContextLength
		if maxSeqLen == 0 {
			maxSeqLen = m.Capabilities.ContextLength
		}
		if maxSeqLen == 0 {
			maxSeqLen = 32768
		}
		maxInputLen := maxSeqLen - 1024
		if maxInputLen < 0 {
			maxInputLen = 0
		}

		out = append(out, serverModel{
			ID:             m.ExternalModelID,
			MaxSeqLen:      maxSeqLen,
			MaxInputLen:    maxInputLen,
			MaxBatchSize:   256,
			BusyGPU:        []int{},
			TP:             1,
			SamplingParams: defaultSamplingParams,
			Object:         "model",
			OwnedBy:        m.ProviderID,
			Load:           serverLoad{},
		})
	}

	return serverInfoResponse{
		ServerInfo: serverInfo{WorkersCount: 1, ServerVersion: serverVersion, Object: "server"},
		Models:     out,
		Object:     "list",
	}, nil
}

// handleInfoJSON serves the gateway's fleet-info summary: workers, version,
// and one entry per catalog model carrying the same fixed sampling
// defaults every model is served with.
func (s *Server) handleInfoJSON(w http.ResponseWriter, r *http.Request) {
	info, err := s.collectServerInfo(r)
	if err != nil {
		s.writeJSONError(w, asAppError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

// handleInfoTable renders the same information as a plain-text ASCII
// table, grounded on the original gateway's fixed-width block layout.
func (s *Server) handleInfoTable(w http.ResponseWriter, r *http.Request) {
	info, err := s.collectServerInfo(r)
	if err != nil {
		s.writeJSONError(w, asAppError(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(buildInfoTable(info)))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%.4f", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatDecimal4(v any) string {
	switch t := v.(type) {
	case float64:
		return fmt.Sprintf("%.4f", t)
	case int:
		return fmt.Sprintf("%.4f", float64(t))
	default:
		return "0.0000"
	}
}

func buildInfoTable(info serverInfoResponse) string {
	var blocks [][]string

	blocks = append(blocks, []string{
		fmt.Sprintf("Server_version: %s Worker_threads: %d", info.ServerInfo.ServerVersion, info.ServerInfo.WorkersCount),
	})

	for _, m := range info.Models {
		gpuValue := "-"
		if len(m.BusyGPU) > 0 {
			parts := make([]string, len(m.BusyGPU))
			for i, g := range m.BusyGPU {
				parts[i] = fmt.Sprintf("%d", g)
			}
			gpuValue = strings.Join(parts, ",")
		}
		sp := m.SamplingParams

		blocks = append(blocks, []string{fmt.Sprintf("%s GPU | %s:%d", gpuValue, m.ID, m.TP)})
		blocks = append(blocks, []string{
			fmt.Sprintf("0 | max_seq_len:        %-12dqueued_requests: %d", m.MaxSeqLen, m.Load.QueuedRequests),
			fmt.Sprintf("  | max_input_len:      %-12dactive_requests: %d", m.MaxInputLen, m.Load.ActiveRequests),
			fmt.Sprintf("  | max_batch_size:     %-12dactive_tokens: %d", m.MaxBatchSize, m.Load.ActiveTokens),
		})
		blocks = append(blocks, []string{
			fmt.Sprintf("2 | max_tokens:         %s", formatValue(sp["max_tokens"])),
		})
		blocks = append(blocks, []string{
			fmt.Sprintf("3 | temperature:        %s", formatDecimal4(sp["temperature"])),
			fmt.Sprintf("  | top_p:              %s", formatDecimal4(sp["top_p"])),
			fmt.Sprintf("  | repetition_penalty: %s", formatDecimal4(sp["repetition_penalty"])),
			fmt.Sprintf("  | top_k:              %s", formatValue(sp["top_k"])),
		})
	}

	var rows []string
	for _, block := range blocks {
		rows = append(rows, block...)
	}
	contentWidth := 0
	for _, row := range rows {
		if len(row) > contentWidth {
			contentWidth = len(row)
		}
	}
	border := "+" + strings.Repeat("-", contentWidth+2) + "+"

	var b strings.Builder
	for _, block := range blocks {
		b.WriteString(border)
		b.WriteString("\n")
		for _, row := range block {
			b.WriteString("| ")
			b.WriteString(row)
			b.WriteString(strings.Repeat(" ", contentWidth-len(row)))
			b.WriteString(" |\n")
		}
	}
	b.WriteString(border)
	b.WriteString("\n")
	return b.String()
}
