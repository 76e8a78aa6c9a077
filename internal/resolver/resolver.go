// Package resolver maps requested model names to concrete provider model ids.
//
// DESIGN: Resolution is a single-level table lookup plus two adjustments
// (classifier hint, fallback downgrade). Tables are built at init and never
// mutated, so concurrent reads need no locking. Unknown model strings pass
// through unchanged: custom and self-hosted model ids must work without an
// allowlist.
package resolver

import "strings"

// Concrete model ids for the default provider family.
const (
	StablePro       = "gemini-2.5-pro"
	StableFlash     = "gemini-2.5-flash"
	StableFlashLite = "gemini-2.5-flash-lite"
	PreviewPro      = "gemini-3-pro-preview"
	PreviewFlash    = "gemini-3-flash-preview"

	// FallbackModel is the lightweight default used in fallback mode.
	FallbackModel = StableFlashLite
)

// Classifier hints for weight-class routing.
const (
	HintFlash = "flash"
	HintPro   = "pro"
)

// Options carry the routing flags supplied by the caller.
type Options struct {
	// PreviewEnabled routes "auto" style aliases to the preview generation.
	PreviewEnabled bool
	// FallbackMode forces heavy models down to FallbackModel. Lite-tier
	// requests are honored as-is; cheap models are never forced further down.
	FallbackMode bool
	// ClassifierHint ("flash" or "pro") overrides the weight class of the
	// resolved model while preserving its preview/stable generation.
	ClassifierHint string
}

// aliasPair holds the stable and preview resolution of one alias.
type aliasPair struct {
	stable  string
	preview string
}

// aliases is the static alias table for the default family. Aliases without
// a preview counterpart resolve to the stable id in both modes.
var aliases = map[string]aliasPair{
	"auto":              {stable: StablePro, preview: PreviewPro},
	"default":           {stable: StablePro, preview: PreviewPro},
	"pro":               {stable: StablePro, preview: PreviewPro},
	"gemini-pro":        {stable: StablePro, preview: PreviewPro},
	"flash":             {stable: StableFlash, preview: PreviewFlash},
	"gemini-flash":      {stable: StableFlash, preview: PreviewFlash},
	"lite":              {stable: StableFlashLite, preview: StableFlashLite},
	"flash-lite":        {stable: StableFlashLite, preview: StableFlashLite},
	"gemini-flash-lite": {stable: StableFlashLite, preview: StableFlashLite},
}

// proOf and flashOf switch weight class within the same generation.
var proOf = map[string]string{
	StableFlash:     StablePro,
	StableFlashLite: StablePro,
	PreviewFlash:    PreviewPro,
}

var flashOf = map[string]string{
	StablePro:  StableFlash,
	PreviewPro: PreviewFlash,
}

// Resolve maps a requested model name to a concrete model id.
// Resolution is idempotent: feeding a resolved id back in with the same
// options yields the same id.
func Resolve(requested string, opts Options) string {
	model := strings.TrimSpace(requested)

	if pair, ok := aliases[strings.ToLower(model)]; ok {
		if opts.PreviewEnabled {
			model = pair.preview
		} else {
			model = pair.stable
		}
	}

	switch opts.ClassifierHint {
	case HintFlash:
		if m, ok := flashOf[model]; ok {
			model = m
		}
	case HintPro:
		if m, ok := proOf[model]; ok {
			model = m
		}
	}

	if opts.FallbackMode && !IsLite(model) {
		return FallbackModel
	}
	return model
}

// IsLite reports whether a model id names a lite-tier model.
func IsLite(model string) bool {
	return strings.Contains(strings.ToLower(model), "lite")
}
