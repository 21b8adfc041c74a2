// File: internal/agent/models.go
package agent

import (
	jsoniter "github.com/json-iterator/go"
)

// Status is the driver's position in the per-task session lifecycle.
type Status string

const (
	StatusIdle       Status = "Idle"       // No session has been started yet.
	StatusActive     Status = "Active"     // A session is open and accepting steps.
	StatusSucceeded  Status = "Succeeded"  // The last step completed its goal.
	StatusFailed     Status = "Failed"     // The last step reported a semantic failure.
	StatusTerminated Status = "Terminated" // The session has been closed with the engine.
)

// Final task statuses reported to the engine on termination.
const (
	UserTaskCompleted = "Completed"
	UserTaskFailed    = "Failed"
)

// Session is the explicit per-task state record. One is created per Start
// call and mutated once per step; no state is shared across tasks.
type Session struct {
	TaskID            string
	TaskName          string
	SessionID         string
	StepCount         int
	LastFailureReason string
	Status            Status
}

// InteractionResult reports the outcome of one step to the caller. Done
// distinguishes completion from semantic failure; the payload is empty on
// failure.
type InteractionResult struct {
	Done    bool
	Payload jsoniter.RawMessage
}
