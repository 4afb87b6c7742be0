package run

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/runproof/internal/canon"
)

// StepType is the closed set of boundary crossings a step can record.
// The set is a cross-version wire contract: adding a member requires a
// coordinated schema change by every producer.
type StepType string

const (
	StepPromptRender  StepType = "prompt.render"
	StepModelRequest  StepType = "model.request"
	StepModelResponse StepType = "model.response"
	StepToolRequest   StepType = "tool.request"
	StepToolResponse  StepType = "tool.response"
	StepErrorEvent    StepType = "error.event"
	StepOutputFinal   StepType = "output.final"
)

// StepTypes lists every valid step type in declaration order.
var StepTypes = []StepType{
	StepPromptRender,
	StepModelRequest,
	StepModelResponse,
	StepToolRequest,
	StepToolResponse,
	StepErrorEvent,
	StepOutputFinal,
}

// ParseStepType validates s against the closed enum.
func ParseStepType(s string) (StepType, error) {
	switch t := StepType(s); t {
	case StepPromptRender, StepModelRequest, StepModelResponse,
		StepToolRequest, StepToolResponse, StepErrorEvent, StepOutputFinal:
		return t, nil
	default:
		return "", &ValidationError{
			Code:    ErrCodeUnknownStepType,
			Field:   "type",
			Message: fmt.Sprintf("unknown step type %q", s),
		}
	}
}

// Valid reports whether t is a member of the enum.
func (t StepType) Valid() bool {
	_, err := ParseStepType(string(t))
	return err == nil
}

// UnmarshalJSON rejects values outside the enum.
func (t *StepType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("step type: %w", err)
	}
	parsed, err := ParseStepType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Step is one recorded boundary crossing.
//
// Hash, when set, must equal ComputeHash(); mutating any other field
// invalidates it until recomputed.
type Step struct {
	ID       string       `json:"id"`
	Type     StepType     `json:"type"`
	Input    canon.Value  `json:"input"`
	Output   canon.Value  `json:"output"`
	Metadata canon.Object `json:"metadata"`
	Hash     string       `json:"hash,omitempty"`
}

// Run is one ordered execution. Step order is the diff alignment key.
type Run struct {
	ID                     string       `json:"id"`
	Timestamp              string       `json:"timestamp"`
	EnvironmentFingerprint canon.Object `json:"environment_fingerprint"`
	RuntimeVersions        canon.Object `json:"runtime_versions"`
	Source                 string       `json:"source,omitempty"`
	Provider               string       `json:"provider,omitempty"`
	Agent                  string       `json:"agent,omitempty"`
	Steps                  []Step       `json:"steps"`
}

// stepJSON mirrors Step with raw input/output so null and absent survive
// decoding as canon.Null.
type stepJSON struct {
	ID       string          `json:"id"`
	Type     StepType        `json:"type"`
	Input    json.RawMessage `json:"input"`
	Output   json.RawMessage `json:"output"`
	Metadata canon.Object    `json:"metadata"`
	Hash     string          `json:"hash,omitempty"`
}

// UnmarshalJSON decodes a step, rejecting unknown step types.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return &ValidationError{Code: ErrCodeUnknownStepType, Field: "type", Message: "step type is required"}
	}
	input, err := decodeRaw(raw.Input)
	if err != nil {
		return fmt.Errorf("step %s input: %w", raw.ID, err)
	}
	output, err := decodeRaw(raw.Output)
	if err != nil {
		return fmt.Errorf("step %s output: %w", raw.ID, err)
	}
	*s = Step{
		ID:       raw.ID,
		Type:     raw.Type,
		Input:    input,
		Output:   output,
		Metadata: raw.Metadata,
		Hash:     raw.Hash,
	}
	return nil
}

// MarshalJSON encodes a step with deterministic key order inside values.
func (s Step) MarshalJSON() ([]byte, error) {
	input, err := canon.Marshal(orNull(s.Input))
	if err != nil {
		return nil, fmt.Errorf("step %s input: %w", s.ID, err)
	}
	output, err := canon.Marshal(orNull(s.Output))
	if err != nil {
		return nil, fmt.Errorf("step %s output: %w", s.ID, err)
	}
	meta := s.Metadata
	if meta == nil {
		meta = canon.Object{}
	}
	return json.Marshal(stepJSON{
		ID:       s.ID,
		Type:     s.Type,
		Input:    input,
		Output:   output,
		Metadata: meta,
		Hash:     s.Hash,
	})
}

func decodeRaw(raw json.RawMessage) (canon.Value, error) {
	if len(raw) == 0 {
		return canon.Null{}, nil
	}
	return canon.Decode(raw)
}

func orNull(v canon.Value) canon.Value {
	if v == nil {
		return canon.Null{}
	}
	return v
}
