// File: internal/session/envelope.go
// Description: Wire types for the automation engine protocol and the tagged
// outcome union they decode into. Responses are decoded once, here, so
// downstream code never re-parses free-form maps.

package session

import (
	jsoniter "github.com/json-iterator/go"
)

// Methods understood by the remote automation engine.
const (
	MethodNewAgent       = "new-agent"
	MethodRunAIMethod    = "run-ai-method"
	MethodTerminateAgent = "terminate-agent"
)

// successCode is the sole success discriminator in engine responses. Any
// other code is a semantic failure carrying a reason inside the data payload.
const successCode = 1

// Envelope is the outbound JSON-RPC request frame.
type Envelope struct {
	JSONRPC string  `json:"jsonrpc"`
	Method  string  `json:"method"`
	Params  any     `json:"params"`
	ID      float64 `json:"id"`
}

// Result is the engine's result object.
type Result struct {
	Code int                 `json:"code"`
	Data jsoniter.RawMessage `json:"data,omitempty"`
}

// Response is the inbound JSON-RPC response frame.
type Response struct {
	Result Result `json:"result"`
}

// DeviceDescriptor selects the target device for a new session: a local
// device identifier, or a remote host/port pair.
type DeviceDescriptor struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
}

// NewAgentParams opens a session against a device.
type NewAgentParams struct {
	Type   string           `json:"type"`
	Device DeviceDescriptor `json:"device"`
	ID     string           `json:"id"`
}

// RunAIMethodParams executes one goal inside a session.
type RunAIMethodParams struct {
	ID   string `json:"id"`
	Task string `json:"task"`
}

// TerminateAgentParams closes a session with its final status.
type TerminateAgentParams struct {
	ID             string `json:"id"`
	UserTaskStatus string `json:"userTaskStatus"`
	AgentStepError string `json:"agentStepError"`
}

// StepOutcome is the tagged union a Response decodes into: either a completed
// step carrying a free-form payload, or a non-completed one carrying a
// failure reason.
type StepOutcome struct {
	Completed bool
	// Payload is the raw result data of a completed step.
	Payload jsoniter.RawMessage
	// Reason is the failure reason of a non-completed step. Empty when the
	// engine supplied none.
	Reason string
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome decodes the response's result into its tagged form.
func (r *Response) Outcome() StepOutcome {
	if r.Result.Code == successCode {
		return StepOutcome{Completed: true, Payload: r.Result.Data}
	}
	return StepOutcome{Reason: extractReason(r.Result.Data)}
}

// extractReason pulls the "reason" string out of a failure payload,
// tolerating its absence and payloads that are not objects at all.
func extractReason(data jsoniter.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Reason
}
