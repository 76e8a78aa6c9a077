package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genbridge/genbridge/internal/canonical"
)

func feedAll(s *StreamNormalizer, frames ...string) []canonical.Response {
	var events []canonical.Response
	for _, f := range frames {
		events = append(events, s.Feed([]byte(f))...)
	}
	return events
}

// closeTerminal ends the stream and returns the single terminal event.
func closeTerminal(t *testing.T, s *StreamNormalizer) canonical.Response {
	t.Helper()
	events := s.Close()
	require.Len(t, events, 1)
	require.True(t, events[0].Terminal())
	return events[0]
}

// =============================================================================
// TEXT STREAMING
// =============================================================================

func TestStream_TextDeltasThenFinish(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{"model":"m","choices":[{"delta":{"content":"Hel"}}]}`,
		`{"model":"m","choices":[{"delta":{"content":"lo"}}]}`,
		`{"model":"m","choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	// Events carry increments, never cumulative text.
	require.Len(t, events, 2)
	assert.Equal(t, "Hel", events[0].Text())
	assert.False(t, events[0].Terminal())
	assert.Equal(t, "lo", events[1].Text())
	assert.False(t, events[1].Terminal())

	terminal := closeTerminal(t, s)
	assert.Equal(t, "", terminal.Text())
	assert.Equal(t, canonical.FinishStop, terminal.Candidates[0].FinishReason)
	assert.True(t, s.Finished())
}

func TestStream_TextAndFinishInSameFrame(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{"choices":[{"delta":{"content":"Hello"},"finish_reason":"stop"}]}`,
	)

	require.Len(t, events, 1)
	assert.Equal(t, "Hello", events[0].Text())
	assert.False(t, events[0].Terminal())

	terminal := closeTerminal(t, s)
	assert.Equal(t, canonical.FinishStop, terminal.Candidates[0].FinishReason)
}

func TestStream_FinishReasonSurvivesUntilClose(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	feedAll(s,
		`{"choices":[{"delta":{"content":"truncat"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"length"}]}`,
	)

	terminal := closeTerminal(t, s)
	assert.Equal(t, canonical.FinishMaxTokens, terminal.Candidates[0].FinishReason)
}

func TestStream_EmptyContentDeltaEmitsNothing(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{"choices":[{"delta":{"content":""}}]}`,
		`{"choices":[{"delta":{}}]}`,
	)

	assert.Empty(t, events)
	assert.False(t, s.Finished())
}

func TestStream_ModelVersionFromChunks(t *testing.T) {
	s := newTestNormalizer().Stream("requested", "prompt")

	events := feedAll(s,
		`{"model":"gemini-2.5-pro-0605","choices":[{"delta":{"content":"x"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	require.Len(t, events, 1)
	assert.Equal(t, "gemini-2.5-pro-0605", events[0].ModelVersion)

	terminal := closeTerminal(t, s)
	assert.Equal(t, "gemini-2.5-pro-0605", terminal.ModelVersion)
}

// =============================================================================
// TOOL CALL REASSEMBLY
// =============================================================================

func TestStream_FragmentedToolCallReassembledInTerminal(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"search","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"q\": "}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"cats\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	// Fragments surface nothing until the terminal event.
	assert.Empty(t, events)

	terminal := closeTerminal(t, s)
	assert.Equal(t, canonical.FinishStop, terminal.Candidates[0].FinishReason)

	calls := terminal.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, map[string]any{"q": "cats"}, calls[0].Args)
}

func TestStream_TextThenToolCalls(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{"choices":[{"delta":{"content":"Checking."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"check","arguments":"{}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
	)

	require.Len(t, events, 1)
	assert.Equal(t, "Checking.", events[0].Text())

	terminal := closeTerminal(t, s)
	require.Len(t, terminal.FunctionCalls(), 1)
	assert.Equal(t, "check", terminal.FunctionCalls()[0].Name)
}

// =============================================================================
// TERMINAL GUARANTEE
// =============================================================================

func TestStream_CloseSynthesizesTerminalOnAbruptEnd(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	feedAll(s, `{"choices":[{"delta":{"content":"partial answ"}}]}`)

	terminal := closeTerminal(t, s)
	assert.Equal(t, canonical.FinishStop, terminal.Candidates[0].FinishReason)
	require.NotNil(t, terminal.Usage)
	assert.True(t, s.Finished())
}

func TestStream_CloseOnEmptyStreamStillTerminal(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	terminal := closeTerminal(t, s)
	assert.Equal(t, "m", terminal.ModelVersion)
}

func TestStream_SecondCloseReturnsNothing(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	feedAll(s, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)

	closeTerminal(t, s)
	assert.Nil(t, s.Close())
}

func TestStream_ContentAfterFinishIgnored(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	feedAll(s, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`)

	events := feedAll(s, `{"choices":[{"delta":{"content":"late"}}]}`)
	assert.Empty(t, events)

	terminal := closeTerminal(t, s)
	assert.Equal(t, "", terminal.Text())
}

func TestStream_FramesAfterCloseIgnored(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	closeTerminal(t, s)

	events := feedAll(s, `{"choices":[{"delta":{"content":"late"}}]}`)
	assert.Empty(t, events)
}

// =============================================================================
// ROBUSTNESS
// =============================================================================

func TestStream_MalformedFrameSkipped(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s,
		`{not json`,
		`{"choices":[{"delta":{"content":"ok"}}]}`,
	)

	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].Text())
}

func TestStream_NoChoicesFrameSkipped(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	events := feedAll(s, `{"model":"m","choices":[]}`)

	assert.Empty(t, events)
	assert.False(t, s.Finished())
}

// =============================================================================
// USAGE
// =============================================================================

func TestStream_UsageFrameAfterFinishFrameHonored(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	// include_usage order: content, finish frame, then the usage-only frame.
	events := feedAll(s,
		`{"choices":[{"delta":{"content":"hi"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		`{"choices":[],"usage":{"prompt_tokens":40,"completion_tokens":9,"total_tokens":49}}`,
	)

	require.Len(t, events, 1)
	assert.Equal(t, "hi", events[0].Text())

	terminal := closeTerminal(t, s)
	require.NotNil(t, terminal.Usage)
	assert.Equal(t, 40, terminal.Usage.PromptTokens)
	assert.Equal(t, 9, terminal.Usage.CompletionTokens)
	assert.Equal(t, 49, terminal.Usage.TotalTokens)
}

func TestStream_ProviderUsageSnapshotWins(t *testing.T) {
	s := newTestNormalizer().Stream("m", "prompt")

	feedAll(s,
		`{"choices":[{"delta":{"content":"hi"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`,
		`{"choices":[],"usage":{"prompt_tokens":40,"completion_tokens":9,"total_tokens":49}}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	terminal := closeTerminal(t, s)
	require.NotNil(t, terminal.Usage)

	// The later running-total snapshot overwrites the earlier one.
	assert.Equal(t, 40, terminal.Usage.PromptTokens)
	assert.Equal(t, 9, terminal.Usage.CompletionTokens)
	assert.Equal(t, 49, terminal.Usage.TotalTokens)
}

func TestStream_EstimatedUsageWhenProviderSilent(t *testing.T) {
	s := newTestNormalizer().Stream("m", "a prompt of some length for estimation")

	feedAll(s,
		`{"choices":[{"delta":{"content":"streamed completion text"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
	)

	terminal := closeTerminal(t, s)
	require.NotNil(t, terminal.Usage)
	assert.Greater(t, terminal.Usage.PromptTokens, 0)
	assert.Greater(t, terminal.Usage.CompletionTokens, 0)
	assert.Equal(t, terminal.Usage.PromptTokens+terminal.Usage.CompletionTokens, terminal.Usage.TotalTokens)
}
