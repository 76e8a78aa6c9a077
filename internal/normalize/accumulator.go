// Package normalize turns provider responses — batch bodies or streamed
// frames — into canonical events.
//
// DESIGN: There is no error state. Provider-side anomalies (missing choices,
// absent usage, unparseable tool arguments, finish-only frames) degrade to
// data: empty parts, synthesized defaults, logged skips. The parent
// conversation loop treats a stream that ends without a finish reason as a
// transport failure and retries, so a degraded-but-terminal event is always
// preferable to silence.
package normalize

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/wire"
)

// ToolCallAccumulator reassembles tool calls that arrive fragmented across
// stream frames. Fragments join strictly on the provider's numeric index.
type ToolCallAccumulator struct {
	slots map[int]*callSlot
	log   zerolog.Logger
}

// callSlot accumulates one tool call. Name and arguments are append-only:
// providers either send the name once and omit it afterwards or stream it in
// pieces, and appending non-empty fragments tolerates both conventions.
type callSlot struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// NewToolCallAccumulator creates an empty accumulator.
func NewToolCallAccumulator(log zerolog.Logger) *ToolCallAccumulator {
	return &ToolCallAccumulator{
		slots: make(map[int]*callSlot),
		log:   log,
	}
}

// Add routes one fragment into its slot, allocating the slot on first sight
// of an index. The id keeps its first non-empty value.
func (a *ToolCallAccumulator) Add(tc wire.ToolCall) {
	slot, ok := a.slots[tc.Index]
	if !ok {
		slot = &callSlot{}
		a.slots[tc.Index] = slot
	}
	if slot.id == "" && tc.ID != "" {
		slot.id = tc.ID
	}
	slot.name.WriteString(tc.Function.Name)
	slot.args.WriteString(tc.Function.Arguments)
}

// Len returns the number of distinct tool calls seen so far.
func (a *ToolCallAccumulator) Len() int {
	return len(a.slots)
}

// Finalize parses every slot's argument buffer and returns the completed
// calls in index order. A call with unparseable arguments is still emitted
// with an empty argument object — dropping a call the model believes it
// issued would desynchronize agent and model state.
func (a *ToolCallAccumulator) Finalize() []canonical.FunctionCallPart {
	if len(a.slots) == 0 {
		return nil
	}
	indices := make([]int, 0, len(a.slots))
	for i := range a.slots {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	calls := make([]canonical.FunctionCallPart, 0, len(indices))
	for _, i := range indices {
		slot := a.slots[i]
		calls = append(calls, canonical.FunctionCallPart{
			ID:   syntheticCallID(slot.id),
			Name: slot.name.String(),
			Args: a.parseArgs(slot),
		})
	}
	return calls
}

func (a *ToolCallAccumulator) parseArgs(slot *callSlot) map[string]any {
	buf := strings.TrimSpace(slot.args.String())
	if buf == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(buf), &args); err != nil {
		a.log.Warn().Err(err).
			Str("tool", slot.name.String()).
			Int("buffer_len", len(buf)).
			Msg("tool arguments did not parse, emitting empty object")
		return map[string]any{}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args
}
