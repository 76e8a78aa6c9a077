package normalize

import (
	"encoding/json"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/wire"
)

// StreamNormalizer is the per-request state machine for one streamed
// response: Open → (Accumulating)* → Finished. It is single-consumer; one
// stream is drained by exactly one logical request, so no locking.
//
// Contract with the caller:
//   - Feed returns canonical events for one raw frame, in order. Text events
//     carry only the increment, never the cumulative text.
//   - Tool-call fragments surface only in the terminal event, fully
//     reassembled.
//   - Exactly one terminal event is produced per stream, emitted by Close at
//     end of stream. The finish-reason frame only records the mapped reason:
//     with include_usage set, providers send the usage frame *after* the
//     finish frame, and emitting the terminal early would lose it.
type StreamNormalizer struct {
	n   *Normalizer
	acc *ToolCallAccumulator

	requestedModel string
	promptText     string

	modelVersion string
	usage        *wire.Usage
	completion   []byte
	finishReason canonical.FinishReason
	finishSeen   bool
	finished     bool
}

// Stream starts a streaming normalization for one request. requestedModel is
// the model-version fallback and promptText the serialized outbound prompt
// used for usage estimation.
func (n *Normalizer) Stream(requestedModel, promptText string) *StreamNormalizer {
	return &StreamNormalizer{
		n:              n,
		acc:            NewToolCallAccumulator(n.log),
		requestedModel: requestedModel,
		promptText:     promptText,
		modelVersion:   requestedModel,
	}
}

// Feed consumes one raw frame payload and returns zero or more canonical
// events. Malformed frames are logged and skipped; they never sink the
// stream.
func (s *StreamNormalizer) Feed(frame []byte) []canonical.Response {
	if s.finished || len(frame) == 0 {
		return nil
	}

	var chunk wire.ChatChunk
	if err := json.Unmarshal(frame, &chunk); err != nil {
		s.n.log.Warn().Err(err).Int("frame_len", len(frame)).Msg("skipping undecodable stream frame")
		return nil
	}

	if chunk.Model != "" {
		s.modelVersion = chunk.Model
	}
	// Last non-empty usage frame wins: providers send running totals, not
	// deltas, so snapshots overwrite rather than merge. Usage frames trail
	// the finish frame under include_usage, so this runs unconditionally.
	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}

	if len(chunk.Choices) == 0 {
		s.n.log.Debug().Msg("stream frame carried no choices")
		return nil
	}
	choice := chunk.Choices[0]

	if s.finishSeen {
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			s.n.log.Debug().Msg("ignoring content delta after finish frame")
		}
		return nil
	}

	var events []canonical.Response

	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		increment := *choice.Delta.Content
		s.completion = append(s.completion, increment...)
		ev := canonical.TextResponse(increment, canonical.FinishNone)
		ev.ModelVersion = s.modelVersion
		events = append(events, ev)
	}

	for _, tc := range choice.Delta.ToolCalls {
		s.acc.Add(tc)
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		s.finishSeen = true
		s.finishReason = MapFinishReason(*choice.FinishReason)
	}
	return events
}

// Close ends the stream and emits the single terminal event, carrying the
// finish reason recorded from the provider's finish frame — or a synthesized
// STOP when the provider hung up without one. Returns nil when the stream
// already finished.
func (s *StreamNormalizer) Close() []canonical.Response {
	if s.finished {
		return nil
	}
	reason := canonical.FinishStop
	if s.finishSeen {
		reason = s.finishReason
	}
	return []canonical.Response{s.terminal(reason)}
}

// Finished reports whether the terminal event has been emitted.
func (s *StreamNormalizer) Finished() bool {
	return s.finished
}

// terminal builds the single terminal event: accumulated tool calls if any,
// otherwise an empty text part, always with a finish reason and usage.
func (s *StreamNormalizer) terminal(reason canonical.FinishReason) canonical.Response {
	s.finished = true

	var parts []canonical.ContentPart
	if calls := s.acc.Finalize(); len(calls) > 0 {
		for _, c := range calls {
			parts = append(parts, c)
		}
	} else {
		// Finish-only frames carry no content; the caller depends on the
		// stream ending in a frame with a finish reason regardless.
		parts = append(parts, canonical.TextPart{})
	}

	usage := s.n.accountant.Account(s.usage, s.promptText, string(s.completion))
	return canonical.Response{
		Candidates: []canonical.Candidate{{
			Content: canonical.Message{
				Role:  canonical.RoleModel,
				Parts: parts,
			},
			FinishReason: reason,
		}},
		Usage:        &usage,
		ModelVersion: s.modelVersion,
	}
}
