package normalize

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/wire"
)

// emptyChoicesText marks a provider response that carried no choices. The
// caller's conversation loop still receives a well-formed terminal response.
const emptyChoicesText = "ERROR: provider returned an empty response"

// Normalizer converts provider completions into canonical responses.
type Normalizer struct {
	accountant *Accountant
	log        zerolog.Logger
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLogger sets the normalizer's logger.
func WithLogger(l zerolog.Logger) NormalizerOption {
	return func(n *Normalizer) { n.log = l }
}

// WithAccountant overrides the usage accountant.
func WithAccountant(a *Accountant) NormalizerOption {
	return func(n *Normalizer) { n.accountant = a }
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		accountant: NewAccountant(nil),
		log:        log.Logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Batch normalizes a non-streamed completion. It never fails: anomalies
// degrade to synthetic content so the caller always receives exactly one
// well-formed terminal response. requestedModel is the fallback model
// version; promptText feeds usage estimation when the provider omits usage.
func (n *Normalizer) Batch(comp wire.ChatCompletion, requestedModel, promptText string) canonical.Response {
	modelVersion := comp.Model
	if modelVersion == "" {
		modelVersion = requestedModel
	}

	if len(comp.Choices) == 0 {
		n.log.Warn().Str("model", requestedModel).Msg("completion carried no choices")
		resp := canonical.TextResponse(emptyChoicesText, canonical.FinishStop)
		resp.ModelVersion = modelVersion
		usage := n.accountant.Account(comp.Usage, promptText, "")
		resp.Usage = &usage
		return resp
	}

	choice := comp.Choices[0]
	var parts []canonical.ContentPart
	var completionText string

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		completionText = *choice.Message.Content
		parts = append(parts, canonical.TextPart{Text: completionText})
	}

	// Batch responses are never fragmented; parse each call immediately.
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, canonical.FunctionCallPart{
			ID:   syntheticCallID(tc.ID),
			Name: tc.Function.Name,
			Args: n.parseBatchArgs(tc),
		})
	}

	// A canonical response never has zero parts.
	if len(parts) == 0 {
		parts = append(parts, canonical.TextPart{})
	}

	reason := canonical.FinishStop
	if choice.FinishReason != "" {
		reason = MapFinishReason(choice.FinishReason)
	}

	usage := n.accountant.Account(comp.Usage, promptText, completionText)
	return canonical.Response{
		Candidates: []canonical.Candidate{{
			Content: canonical.Message{
				Role:  canonical.RoleModel,
				Parts: parts,
			},
			FinishReason: reason,
		}},
		Usage:        &usage,
		ModelVersion: modelVersion,
	}
}

func (n *Normalizer) parseBatchArgs(tc wire.ToolCall) map[string]any {
	if tc.Function.Arguments == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		n.log.Warn().Err(err).Str("tool", tc.Function.Name).
			Msg("batch tool arguments did not parse, emitting empty object")
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}
