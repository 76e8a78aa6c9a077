// Package translate builds provider request bodies from canonical history.
//
// DESIGN: Translation is total — malformed history entries are skipped with
// a log line, never raised, so one bad turn cannot abort a live
// conversation. Tool-call arguments are serialized as JSON strings because
// chat-completions providers expect string-encoded arguments, and empty tool
// arrays are omitted entirely (some providers reject them).
package translate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/wire"
)

// DefaultResponseTextFields is the priority order of tool-response object
// fields surfaced as text to the model. The order is a deliberate but
// arbitrary legibility heuristic, not a protocol guarantee; override it via
// WithResponseTextFields when the recognized set needs to grow.
var DefaultResponseTextFields = []string{"output", "stdout", "result"}

// GenConfig carries pass-through sampling options. Nil pointers are omitted
// from the wire request.
type GenConfig struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64
}

// Translator converts canonical history into wire requests.
// Stateless and safe for concurrent use.
type Translator struct {
	responseFields []string
	log            zerolog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithResponseTextFields overrides the tool-response field priority list.
func WithResponseTextFields(fields []string) Option {
	return func(t *Translator) { t.responseFields = fields }
}

// WithLogger sets the translator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Translator) { t.log = l }
}

// New creates a Translator.
func New(opts ...Option) *Translator {
	t := &Translator{
		responseFields: DefaultResponseTextFields,
		log:            log.Logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Translate builds a chat-completions request from canonical history, tool
// declarations, and generation config. It always produces a request, even
// from partially malformed input.
func (t *Translator) Translate(history []canonical.Message, tools []canonical.ToolDeclaration, cfg GenConfig) wire.ChatRequest {
	req := wire.ChatRequest{
		Model:       cfg.Model,
		Messages:    t.translateHistory(history),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
	if cfg.MaxTokens > 0 {
		req.MaxTokens = &cfg.MaxTokens
	}

	if wireTools := t.translateTools(tools); len(wireTools) > 0 {
		req.Tools = wireTools
		req.ToolChoice = "auto"
	}
	return req
}

func (t *Translator) translateHistory(history []canonical.Message) []wire.ChatMessage {
	var out []wire.ChatMessage
	for _, msg := range history {
		role := mapRole(msg.Role)
		if role == "" {
			t.log.Warn().Str("role", string(msg.Role)).Msg("skipping history entry with unknown role")
			continue
		}

		if msg.Role == canonical.RoleTool {
			out = append(out, t.translateToolMessage(msg))
			continue
		}

		cm := wire.ChatMessage{Role: role}
		for _, fc := range msg.FunctionCalls() {
			cm.ToolCalls = append(cm.ToolCalls, wire.ToolCall{
				ID:   callID(fc.ID),
				Type: "function",
				Function: wire.ToolCallFunc{
					Name:      fc.Name,
					Arguments: marshalArgs(fc.Args),
				},
			})
		}
		// FunctionResponse parts on non-tool roles become standalone tool
		// messages so the provider sees a well-formed call/response pairing.
		var responses []wire.ChatMessage
		for _, p := range msg.Parts {
			if fr, ok := p.(canonical.FunctionResponsePart); ok {
				responses = append(responses, wire.ChatMessage{
					Role:       "tool",
					Content:    strPtr(t.responseText(fr.Response)),
					ToolCallID: msg.ToolCallID,
				})
			}
		}

		text := msg.Text()
		if text != "" || len(cm.ToolCalls) == 0 {
			cm.Content = strPtr(text)
		}

		// Concatenate consecutive same-role text-only messages.
		if merged := mergeText(out, cm); merged {
			out = append(out, responses...)
			continue
		}
		out = append(out, cm)
		out = append(out, responses...)
	}
	return out
}

// mergeText folds cm into the previous message when both are plain text of
// the same role. Returns true when folded.
func mergeText(out []wire.ChatMessage, cm wire.ChatMessage) bool {
	if len(out) == 0 || len(cm.ToolCalls) > 0 || cm.Content == nil {
		return false
	}
	prev := &out[len(out)-1]
	if prev.Role != cm.Role || prev.Content == nil || len(prev.ToolCalls) > 0 || prev.ToolCallID != "" {
		return false
	}
	joined := *prev.Content
	if joined != "" && *cm.Content != "" {
		joined += "\n"
	}
	joined += *cm.Content
	prev.Content = &joined
	return true
}

func (t *Translator) translateToolMessage(msg canonical.Message) wire.ChatMessage {
	cm := wire.ChatMessage{
		Role:       "tool",
		ToolCallID: msg.ToolCallID,
	}
	for _, p := range msg.Parts {
		if fr, ok := p.(canonical.FunctionResponsePart); ok {
			cm.Content = strPtr(t.responseText(fr.Response))
			return cm
		}
	}
	// A tool message without a response part still needs content.
	cm.Content = strPtr(msg.Text())
	return cm
}

func (t *Translator) translateTools(tools []canonical.ToolDeclaration) []wire.Tool {
	var out []wire.Tool
	for _, decl := range tools {
		if decl.Name == "" {
			t.log.Warn().Msg("skipping tool declaration without a name")
			continue
		}
		fn := wire.ToolFunction{
			Name:        decl.Name,
			Description: decl.Description,
		}
		if len(decl.Parameters) > 0 {
			if raw, err := json.Marshal(decl.Parameters); err == nil {
				fn.Parameters = raw
			} else {
				t.log.Warn().Err(err).Str("tool", decl.Name).Msg("dropping unserializable tool parameters")
			}
		}
		out = append(out, wire.Tool{Type: "function", Function: fn})
	}
	return out
}

// responseText derives the text body of a tool response. Recognized fields
// win by priority; otherwise the whole object is pretty-printed. Lossy on
// purpose — the goal is legibility for the model, not round-tripping.
func (t *Translator) responseText(resp map[string]any) string {
	for _, field := range t.responseFields {
		v, ok := resp[field]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	if len(resp) > 0 {
		if pretty, err := json.MarshalIndent(resp, "", "  "); err == nil {
			return string(pretty)
		}
	}
	return fmt.Sprintf("%v", resp)
}

func mapRole(r canonical.Role) string {
	switch r {
	case canonical.RoleSystem:
		return "system"
	case canonical.RoleUser:
		return "user"
	case canonical.RoleModel, canonical.RoleAssistant:
		return "assistant"
	case canonical.RoleTool:
		return "tool"
	default:
		return ""
	}
}

func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// callID returns id, or synthesizes one. Uniqueness is the only guaranteed
// property of synthetic ids, not ordering.
func callID(id string) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("call_%x_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func strPtr(s string) *string { return &s }
