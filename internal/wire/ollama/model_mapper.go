package ollama

import (
	"encoding/json"
	"strings"

	"github.com/olegische/llmrouter/internal/core"
)

// rawTagsInfo mirrors Ollama's /api/tags entry.
type rawTagsInfo struct {
	Name    string `json:"name"`
	Details struct {
		Format            string   `json:"format"`
		Family            string   `json:"family"`
		Families          []string `json:"families"`
		ParameterSize     string   `json:"parameter_size"`
		QuantizationLevel string   `json:"quantization_level"`
	} `json:"details"`
}

// rawShowInfo mirrors the subset of Ollama's /api/show response this
// mapper reads: the flattened model_info map, where context length is
// reported under a family-prefixed key like "llama.context_length".
type rawShowInfo struct {
	ModelInfo map[string]any `json:"model_info"`
}

// rawModelEntry pairs one model's tags and show info, as assembled by the
// driver before calling NormalizeModels (Ollama requires two calls per
// model: one to list tags, one to fetch details).
type rawModelEntry struct {
	TagsInfo rawTagsInfo `json:"tags_info"`
	ShowInfo rawShowInfo `json:"show_info"`
}

type rawModelList struct {
	Models []rawModelEntry `json:"models"`
}

// ModelMapper normalizes Ollama's combined tags+show response.
type ModelMapper struct{}

func NewModelMapper() ModelMapper { return ModelMapper{} }

func (ModelMapper) NormalizeModels(raw []byte) ([]core.ProviderModel, error) {
	var list rawModelList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}

	var out []core.ProviderModel
	for _, entry := range list.Models {
		modelID := entry.TagsInfo.Name
		if modelID == "" {
			continue
		}
		contextLength := findContextLength(entry.ShowInfo.ModelInfo)
		tokenizer := "unknown"
		if t, ok := entry.ShowInfo.ModelInfo["tokenizer.ggml.model"].(string); ok && t != "" {
			tokenizer = t
		}

		out = append(out, core.ProviderModel{
			ModelID:       modelID,
			Name:          modelID,
			ContextLength: contextLength,
			Architecture:  core.Architecture{Modality: "text->text", Tokenizer: tokenizer},
			Capabilities:  core.Capabilities{ContextLength: contextLength, MaxCompletionTokens: contextLength},
		})
	}
	return out, nil
}

// findContextLength looks for any model_info key ending in
// ".context_length", since the prefix varies by model family
// ("llama.context_length", "qwen2.context_length", ...).
func findContextLength(modelInfo map[string]any) int {
	for key, value := range modelInfo {
		if !strings.HasSuffix(key, ".context_length") {
			continue
		}
		switch v := value.(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 4096
}

func (ModelMapper) StaticModels() []core.ProviderModel { return nil }
