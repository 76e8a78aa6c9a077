package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genbridge/genbridge/internal/wire"
)

func TestAccountant_ProviderUsageWins(t *testing.T) {
	a := NewAccountant(nil)

	got := a.Account(&wire.Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 999}, "ignored", "ignored")

	assert.Equal(t, 120, got.PromptTokens)
	assert.Equal(t, 30, got.CompletionTokens)
	// Total is recomputed, never trusted from the wire.
	assert.Equal(t, 150, got.TotalTokens)
}

func TestAccountant_NilUsageFallsBackToEstimate(t *testing.T) {
	a := NewAccountant(nil)

	got := a.Account(nil, "What is the weather like in Berlin today?", "It is sunny.")

	assert.Greater(t, got.PromptTokens, 0)
	assert.Greater(t, got.CompletionTokens, 0)
	assert.Equal(t, got.PromptTokens+got.CompletionTokens, got.TotalTokens)
}

func TestAccountant_ZeroedUsageFallsBackToEstimate(t *testing.T) {
	a := NewAccountant(nil)

	got := a.Account(&wire.Usage{}, "some prompt text", "some completion")

	assert.Greater(t, got.TotalTokens, 0)
	assert.Equal(t, got.PromptTokens+got.CompletionTokens, got.TotalTokens)
}

func TestAccountant_TotalEqualsPromptPlusCompletion(t *testing.T) {
	a := NewAccountant(nil)

	cases := []struct {
		provider           *wire.Usage
		prompt, completion string
	}{
		{nil, "", ""},
		{nil, "hello", ""},
		{&wire.Usage{PromptTokens: 7}, "x", "y"},
		{&wire.Usage{CompletionTokens: 3}, "x", "y"},
		{&wire.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 0}, "", ""},
	}
	for i, tc := range cases {
		got := a.Account(tc.provider, tc.prompt, tc.completion)
		assert.Equal(t, got.PromptTokens+got.CompletionTokens, got.TotalTokens, "case %d", i)
	}
}
