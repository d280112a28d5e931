package chain

import (
	"context"
	"iter"
	"sort"
	"strings"

	"github.com/olegische/llmrouter/internal/core"
)

// Completion is the fourth chain stage and the only one that talks to a
// provider driver. For a streaming request it forwards one core.Artifact
// per upstream chunk; for a non-streaming request the driver still streams
// internally (per core.Provider's contract), so this stage accumulates
// every chunk into a single assembled core.ChatResponse and yields exactly
// one artifact. Either way it uses core.TerminalDetector — shared with
// internal/driver/openaicompat — to decide which chunk ends the stream.
type Completion struct{}

func (Completion) Name() string { return "completion" }

func (Completion) CanHandle(*core.RequestContext) bool { return true }

func (Completion) Handle(ctx context.Context, rc *core.RequestContext, provider core.Provider, in iter.Seq2[core.Artifact, error]) iter.Seq2[core.Artifact, error] {
	return func(yield func(core.Artifact, error) bool) {
		if !forward(yield, in) {
			return
		}

		results, err := provider.CreateCompletion(ctx, rc.Request)
		if err != nil {
			yield(core.Artifact{}, err)
			return
		}

		if rc.Request.Stream {
			streamArtifacts(ctx, rc, results, yield)
			return
		}

		resp, err := assembleResponse(ctx, results)
		if err != nil {
			yield(core.Artifact{}, err)
			return
		}
		rc.FinalResponse = &core.Artifact{Response: resp}
		yield(core.Artifact{Response: resp}, nil)
	}
}

func streamArtifacts(ctx context.Context, rc *core.RequestContext, results <-chan core.StreamResult, yield func(core.Artifact, error) bool) {
	var detector core.TerminalDetector
	for {
		select {
		case <-ctx.Done():
			yield(core.Artifact{}, ctx.Err())
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			if res.Err != nil {
				yield(core.Artifact{}, res.Err)
				return
			}
			chunk := res.Chunk
			hasFinish := false
			for _, c := range chunk.Choices {
				if c.FinishReason != nil {
					hasFinish = true
				}
				if c.Delta.Content != "" {
					rc.AccumulatedText += c.Delta.Content
				}
			}
			terminal := detector.Observe(hasFinish, chunk.Usage != nil)
			if terminal {
				rc.FinalResponse = &core.Artifact{Chunk: chunk}
			}
			if !yield(core.Artifact{Chunk: chunk}, nil) {
				return
			}
			if detector.State() == core.StateTerminated {
				return
			}
		}
	}
}

// choiceAccumulator collects the deltas for one choice index across a
// driver's internal stream, so a non-streaming caller still gets one
// coherent core.ChatChoice even though every driver streams internally.
type choiceAccumulator struct {
	role         string
	text         strings.Builder
	toolCalls    []core.ToolCall
	finishReason string
}

func (a *choiceAccumulator) applyDelta(d core.Delta) {
	if d.Role != "" {
		a.role = d.Role
	}
	a.text.WriteString(d.Content)
	for _, tc := range d.ToolCalls {
		a.mergeToolCall(tc)
	}
}

// mergeToolCall appends a new tool call or accumulates argument text onto
// an existing one, matched by Index when present (the incremental-args
// convention every OpenAI-compatible upstream streams tool calls with),
// falling back to ID.
func (a *choiceAccumulator) mergeToolCall(tc core.ToolCall) {
	for i := range a.toolCalls {
		existing := &a.toolCalls[i]
		sameIndex := tc.Index != nil && existing.Index != nil && *tc.Index == *existing.Index
		sameID := tc.ID != "" && existing.ID == tc.ID
		if sameIndex || sameID {
			if tc.ID != "" {
				existing.ID = tc.ID
			}
			if tc.Func.Name != "" {
				existing.Func.Name = tc.Func.Name
			}
			existing.Func.Arguments += tc.Func.Arguments
			return
		}
	}
	a.toolCalls = append(a.toolCalls, tc)
}

func (a *choiceAccumulator) message() core.Message {
	msg := core.Message{Role: a.role, Content: core.TextContent(a.text.String())}
	if msg.Role == "" {
		msg.Role = core.RoleAssistant
	}
	if len(a.toolCalls) > 0 {
		msg.ToolCalls = a.toolCalls
	}
	return msg
}

// assembleResponse drains an internal stream into a single core.ChatResponse.
func assembleResponse(ctx context.Context, results <-chan core.StreamResult) (*core.ChatResponse, error) {
	resp := &core.ChatResponse{Object: "chat.completion"}
	choices := map[int]*choiceAccumulator{}
	var detector core.TerminalDetector

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return finalizeResponse(resp, choices), nil
			}
			if res.Err != nil {
				return nil, res.Err
			}
			chunk := res.Chunk
			if resp.ID == "" {
				resp.ID, resp.Created, resp.Model, resp.ProviderID = chunk.ID, chunk.Created, chunk.Model, chunk.ProviderID
			}

			hasFinish := false
			for _, c := range chunk.Choices {
				acc, ok := choices[c.Index]
				if !ok {
					acc = &choiceAccumulator{}
					choices[c.Index] = acc
				}
				acc.applyDelta(c.Delta)
				if c.FinishReason != nil {
					acc.finishReason = *c.FinishReason
					hasFinish = true
				}
			}
			if chunk.Usage != nil {
				resp.Usage = *chunk.Usage
			}
			if detector.Observe(hasFinish, chunk.Usage != nil) {
				return finalizeResponse(resp, choices), nil
			}
		}
	}
}

func finalizeResponse(resp *core.ChatResponse, choices map[int]*choiceAccumulator) *core.ChatResponse {
	indices := make([]int, 0, len(choices))
	for idx := range choices {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		acc := choices[idx]
		resp.Choices = append(resp.Choices, core.ChatChoice{
			Index:        idx,
			Message:      acc.message(),
			FinishReason: acc.finishReason,
		})
	}
	return resp
}
