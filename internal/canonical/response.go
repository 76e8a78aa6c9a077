package canonical

// FinishReason is the canonical terminal status of a model turn.
type FinishReason string

const (
	// FinishNone marks a non-terminal streaming event.
	FinishNone FinishReason = ""
	// FinishStop is a normal end of turn, including tool-call turns.
	FinishStop FinishReason = "STOP"
	// FinishMaxTokens means the provider hit its output length limit.
	FinishMaxTokens FinishReason = "MAX_TOKENS"
	// FinishSafety means a provider safety filter ended the turn.
	FinishSafety FinishReason = "SAFETY"
	// FinishOther covers every unrecognized provider terminal code.
	FinishOther FinishReason = "OTHER"
)

// UsageStats reports token consumption for one request.
// Total always equals Prompt + Completion when both are known; locally
// estimated usage satisfies the same equality.
type UsageStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Candidate is one generated alternative. The adapter always produces
// exactly one.
type Candidate struct {
	Content      Message
	FinishReason FinishReason
}

// Response is the canonical result shape for both batch calls and each
// streamed event. A Response with an empty FinishReason is non-terminal;
// the final event of any stream carries one.
type Response struct {
	Candidates   []Candidate
	Usage        *UsageStats
	ModelVersion string
}

// TextResponse builds a single-candidate response holding one text part.
func TextResponse(text string, reason FinishReason) Response {
	return Response{
		Candidates: []Candidate{{
			Content: Message{
				Role:  RoleModel,
				Parts: []ContentPart{TextPart{Text: text}},
			},
			FinishReason: reason,
		}},
	}
}

// Terminal reports whether the response carries a finish reason.
func (r Response) Terminal() bool {
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason != FinishNone
}

// Text returns the text content of the first candidate.
func (r Response) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Text()
}

// FunctionCalls returns the tool calls of the first candidate.
func (r Response) FunctionCalls() []FunctionCallPart {
	if len(r.Candidates) == 0 {
		return nil
	}
	return r.Candidates[0].Content.FunctionCalls()
}
