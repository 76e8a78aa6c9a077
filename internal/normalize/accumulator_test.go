package normalize

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genbridge/genbridge/internal/wire"
)

func frag(index int, id, name, args string) wire.ToolCall {
	return wire.ToolCall{
		Index:    index,
		ID:       id,
		Function: wire.ToolCallFunc{Name: name, Arguments: args},
	}
}

func TestAccumulator_ReassemblesFragmentedCall(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())

	// First fragment carries id and name, the rest only argument slices.
	acc.Add(frag(0, "c1", "search", ""))
	acc.Add(frag(0, "", "", `{"q": "`))
	acc.Add(frag(0, "", "", `cats"`))
	acc.Add(frag(0, "", "", `}`))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, map[string]any{"q": "cats"}, calls[0].Args)
}

func TestAccumulator_ArbitraryFragmentationBoundaries(t *testing.T) {
	full := `{"query":"weather in berlin","units":"metric"}`

	// Any split of the argument text must reassemble to the same object.
	for _, cut := range []int{1, 7, 13, 25, len(full) - 1} {
		acc := NewToolCallAccumulator(zerolog.Nop())
		acc.Add(frag(0, "call_9", "get_weather", full[:cut]))
		acc.Add(frag(0, "", "", full[cut:]))

		calls := acc.Finalize()

		require.Len(t, calls, 1, "cut at %d", cut)
		assert.Equal(t, map[string]any{
			"query": "weather in berlin",
			"units": "metric",
		}, calls[0].Args, "cut at %d", cut)
	}
}

func TestAccumulator_MultipleCallsOrderedByIndex(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())

	// Fragments interleave across indices and arrive out of index order.
	acc.Add(frag(1, "c2", "write_file", `{"path":`))
	acc.Add(frag(0, "c1", "read_file", `{"path":"a.txt"}`))
	acc.Add(frag(1, "", "", `"b.txt"}`))

	calls := acc.Finalize()

	require.Len(t, calls, 2)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, "write_file", calls[1].Name)
	assert.Equal(t, map[string]any{"path": "b.txt"}, calls[1].Args)
}

func TestAccumulator_NameStreamedInPieces(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())

	acc.Add(frag(0, "c1", "get_", ""))
	acc.Add(frag(0, "", "weather", `{}`))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	assert.Equal(t, "get_weather", calls[0].Name)
}

func TestAccumulator_FirstNonEmptyIDWins(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())

	acc.Add(frag(0, "", "search", ""))
	acc.Add(frag(0, "c1", "", `{}`))
	acc.Add(frag(0, "c_other", "", ""))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
}

func TestAccumulator_MissingIDGetsSynthetic(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())
	acc.Add(frag(0, "", "search", `{}`))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].ID)
}

func TestAccumulator_UnparseableArgsYieldEmptyObject(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())
	acc.Add(frag(0, "c1", "search", `{"q": "cats`)) // truncated mid-stream

	calls := acc.Finalize()

	// The call is still emitted: dropping it would desynchronize the caller's
	// conversation state from what the model believes it issued.
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, map[string]any{}, calls[0].Args)
}

func TestAccumulator_EmptyArgsYieldEmptyObject(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())
	acc.Add(frag(0, "c1", "list_tools", ""))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Args)
	assert.Empty(t, calls[0].Args)
}

func TestAccumulator_JSONNullArgsYieldEmptyObject(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())
	acc.Add(frag(0, "c1", "noop", "null"))

	calls := acc.Finalize()

	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Args)
	assert.Empty(t, calls[0].Args)
}

func TestAccumulator_EmptyFinalizeReturnsNil(t *testing.T) {
	acc := NewToolCallAccumulator(zerolog.Nop())

	assert.Nil(t, acc.Finalize())
	assert.Equal(t, 0, acc.Len())
}
