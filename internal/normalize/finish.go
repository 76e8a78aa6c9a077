package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/genbridge/genbridge/internal/canonical"
)

// MapFinishReason maps a provider terminal string to the canonical enum.
// The mapping is closed: unrecognized strings become OTHER, never an error.
// Tool-call reasons map to STOP because a tool call is a normal way for a
// model turn to end.
func MapFinishReason(provider string) canonical.FinishReason {
	switch provider {
	case "stop", "end_turn", "tool_calls", "function_call":
		return canonical.FinishStop
	case "length", "max_tokens", "max_output_tokens":
		return canonical.FinishMaxTokens
	case "content_filter", "safety":
		return canonical.FinishSafety
	default:
		return canonical.FinishOther
	}
}

// syntheticCallID returns id, or mints one when the provider never supplied
// a call id. Uniqueness is the only guaranteed property.
func syntheticCallID(id string) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("call_%x_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
