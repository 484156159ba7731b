package contract

import "time"

// Intent is the classified category of an utterance. It decides which
// handler toolset the executor is bound to for the turn.
type Intent string

const (
	IntentReservation    Intent = "reservation"
	IntentOrder          Intent = "order"
	IntentGeneralInquiry Intent = "general_inquiry"
)

// KnownIntent reports whether s is one of the fixed intent values.
func KnownIntent(s string) bool {
	switch Intent(s) {
	case IntentReservation, IntentOrder, IntentGeneralInquiry:
		return true
	}
	return false
}

type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type Role string

const (
	RoleUser        Role = "user"
	RoleAssistant   Role = "assistant"
	RoleObservation Role = "observation"
)

// Turn is one transcript entry. Observations are tool results (or tool
// errors) fed back to the reasoning step.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Decision is the outcome of one Thinking step: either a final reply
// (ToolCall nil) or a proposed tool invocation.
type Decision struct {
	Reply    string    `json:"reply,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "integer"
	ParamFloat  ParamType = "number"
	ParamBool   ParamType = "boolean"
)

type ToolParam struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// ToolSpec is the declared schema of a tool as presented to the reasoning
// step. A terminal tool ends the loop for the turn when it succeeds.
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ToolParam `json:"params,omitempty"`
	Terminal    bool        `json:"terminal"`
}

// ToolOutcome is the contract result of a tool invocation: a short
// human-readable text plus an internal success flag. Domain failures
// (NotFound, Conflict, Validation) are returned as errors by Invoke and
// become observations, never loop aborts.
type ToolOutcome struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
}

// ToolTrace records one Invoking step for audit and evaluation.
type ToolTrace struct {
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation"`
	Failed      bool           `json:"failed,omitempty"`
	Terminal    bool           `json:"terminal,omitempty"`
}

// Passage is one ranked result from the general-inquiry retrieval
// subsystem, which this core consumes as an opaque collaborator.
type Passage struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
