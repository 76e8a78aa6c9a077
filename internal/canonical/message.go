// Package canonical defines the provider-agnostic conversation model.
//
// DESIGN: Content parts are an explicit sum type (TextPart, FunctionCallPart,
// FunctionResponsePart) consumed with type switches, never a bag of optional
// fields. Messages are built once per request by the translator and are not
// mutated afterwards.
package canonical

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleModel     Role = "model"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentPart is one element of a message body. Exactly one concrete
// variant backs each value.
type ContentPart interface {
	isContentPart()
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// FunctionCallPart is a model-issued request to invoke a tool.
// Args holds the decoded argument object; an empty map means the provider
// sent no (or unparseable) arguments.
type FunctionCallPart struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponsePart carries a tool's result back to the model.
type FunctionResponsePart struct {
	Name     string
	Response map[string]any
}

func (TextPart) isContentPart()             {}
func (FunctionCallPart) isContentPart()     {}
func (FunctionResponsePart) isContentPart() {}

// Message is one turn of conversation history.
//
// Invariants: a RoleTool message carries exactly one FunctionResponsePart and
// a ToolCallID back-reference; assistant/model messages carry zero or more
// FunctionCallParts and at most one TextPart.
type Message struct {
	Role       Role
	Parts      []ContentPart
	ToolCallID string
}

// Text returns the concatenation of all text parts, newline-joined.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		t, ok := p.(TextPart)
		if !ok || t.Text == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += t.Text
	}
	return out
}

// FunctionCalls returns the tool-call parts in declaration order.
func (m Message) FunctionCalls() []FunctionCallPart {
	var calls []FunctionCallPart
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// ToolDeclaration describes a callable tool offered to the model.
// Parameters is a JSON-schema shaped object (type/properties/required);
// the adapter never interprets it beyond forwarding.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}
