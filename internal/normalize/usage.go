package normalize

import (
	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/tokencount"
	"github.com/genbridge/genbridge/internal/wire"
)

// Accountant produces canonical usage stats from a provider usage snapshot,
// falling back to a local estimate when the provider reported nothing.
// Every UsageStats it returns satisfies total == prompt + completion.
type Accountant struct {
	est *tokencount.Estimator
}

// NewAccountant wraps the given estimator. A nil estimator uses the shared
// process-wide one.
func NewAccountant(est *tokencount.Estimator) *Accountant {
	if est == nil {
		est = tokencount.Get()
	}
	return &Accountant{est: est}
}

// Account merges the provider snapshot with a local fallback. promptText is
// the serialized outbound request and completionText the accumulated model
// output; both feed the estimator only when the provider total is zero.
func (a *Accountant) Account(provider *wire.Usage, promptText, completionText string) canonical.UsageStats {
	if provider != nil {
		prompt, completion := provider.PromptTokens, provider.CompletionTokens
		if prompt+completion > 0 {
			return canonical.UsageStats{
				PromptTokens:     prompt,
				CompletionTokens: completion,
				TotalTokens:      prompt + completion,
			}
		}
	}

	prompt := a.est.Count(promptText)
	completion := a.est.Count(completionText)
	return canonical.UsageStats{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
