package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genbridge/genbridge/internal/canonical"
)

func TestMapFinishReason(t *testing.T) {
	cases := map[string]canonical.FinishReason{
		"stop":              canonical.FinishStop,
		"end_turn":          canonical.FinishStop,
		"tool_calls":        canonical.FinishStop,
		"function_call":     canonical.FinishStop,
		"length":            canonical.FinishMaxTokens,
		"max_tokens":        canonical.FinishMaxTokens,
		"max_output_tokens": canonical.FinishMaxTokens,
		"content_filter":    canonical.FinishSafety,
		"safety":            canonical.FinishSafety,
		"some_new_reason":   canonical.FinishOther,
		"":                  canonical.FinishOther,
	}
	for provider, want := range cases {
		assert.Equal(t, want, MapFinishReason(provider), "provider reason %q", provider)
	}
}

func TestSyntheticCallID(t *testing.T) {
	assert.Equal(t, "c1", syntheticCallID("c1"))

	a := syntheticCallID("")
	b := syntheticCallID("")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
