// Package tokencount provides a local token estimator used when a provider
// reports no usage.
//
// DESIGN: One process-wide tiktoken encoding (cl100k_base), initialized
// lazily behind sync.Once. The encoding tables are read-only after init and
// safe for unsynchronized concurrent use. When the encoding cannot be
// loaded, counting falls back to a bytes/4 heuristic so estimation never
// fails outright.
package tokencount

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const encodingName = "cl100k_base"

// fallbackBytesPerToken approximates the average token width for English
// prose when tiktoken is unavailable.
const fallbackBytesPerToken = 4

// Estimator counts tokens in text. The zero value is not usable; call Get.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

var (
	once   sync.Once
	shared *Estimator
)

// Get returns the shared process-wide estimator.
func Get() *Estimator {
	once.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			log.Warn().Err(err).Str("encoding", encodingName).
				Msg("tiktoken unavailable, using byte-length heuristic")
			shared = &Estimator{}
			return
		}
		shared = &Estimator{enc: enc}
	})
	return shared
}

// Count returns the estimated token count of text. Never negative.
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}
	if e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	n := len(text) / fallbackBytesPerToken
	if n == 0 && utf8.RuneCountInString(text) > 0 {
		n = 1
	}
	return n
}
