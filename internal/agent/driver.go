// File: internal/agent/driver.go
// Description: The per-task session state machine. One session per task:
// created by Start, advanced one step per goal, and always closed by
// Terminate with a final status so no remote session is leaked.

package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/droidbench-cli/internal/config"
	"github.com/xkilldash9x/droidbench-cli/internal/session"
)

// RPCClient is the request/response channel to the automation engine.
type RPCClient interface {
	Send(ctx context.Context, method string, params any) (*session.Response, error)
}

// Driver walks a task through the session lifecycle
// Idle → Active → {Succeeded | Failed} → Terminated.
//
// Start must be called before any Step; stepping without an active session
// is a caller contract violation (the session identifier is undefined) and
// is not defended against at runtime.
type Driver struct {
	client RPCClient
	device config.DeviceConfig
	logger *zap.Logger

	sess   *Session
	runLog []session.StepOutcome
	// interactionCache holds the raw payload of the most recent completed
	// step, for evaluators that inspect the agent's final answer.
	interactionCache string
}

// NewDriver builds a driver speaking to the engine through client, targeting
// the device described by the configuration.
func NewDriver(client RPCClient, device config.DeviceConfig, logger *zap.Logger) *Driver {
	return &Driver{
		client: client,
		device: device,
		logger: logger.Named("agent"),
	}
}

// Start opens a session for the task. The session identifier composes the
// task's sequence identifier with the caller-supplied name, and the device
// descriptor is resolved from configuration: a local device id, or a remote
// host/port pair.
func (d *Driver) Start(ctx context.Context, taskName, taskID string) error {
	sessionID := fmt.Sprintf("Task-%s-%s", taskID, taskName)
	d.logger.Info("Starting new task.",
		zap.String("name", taskName),
		zap.String("id", taskID))

	params := session.NewAgentParams{
		Type:   "Android",
		Device: d.deviceDescriptor(),
		ID:     sessionID,
	}
	if _, err := d.client.Send(ctx, session.MethodNewAgent, params); err != nil {
		return fmt.Errorf("create session %s: %w", sessionID, err)
	}

	d.sess = &Session{
		TaskID:    taskID,
		TaskName:  taskName,
		SessionID: sessionID,
		Status:    StatusActive,
	}
	d.runLog = nil
	d.interactionCache = ""
	return nil
}

// Step executes one goal inside the active session. A completed outcome
// carries the engine's payload and moves the session to Succeeded; a semantic
// failure records the engine's reason (tolerating its absence) and reports
// non-completion with an empty payload. The step is not retried here; retry
// policy belongs to the caller's step budget.
func (d *Driver) Step(ctx context.Context, goal string) (InteractionResult, error) {
	d.sess.StepCount++
	d.sess.LastFailureReason = ""
	d.logger.Info("Step.",
		zap.Int("step", d.sess.StepCount),
		zap.String("goal", goal))

	resp, err := d.client.Send(ctx, session.MethodRunAIMethod, session.RunAIMethodParams{
		ID:   d.sess.SessionID,
		Task: goal,
	})
	if err != nil {
		return InteractionResult{}, fmt.Errorf("execute step %d: %w", d.sess.StepCount, err)
	}

	outcome := resp.Outcome()
	d.runLog = append(d.runLog, outcome)

	if outcome.Completed {
		d.sess.Status = StatusSucceeded
		d.interactionCache = string(outcome.Payload)
		return InteractionResult{Done: true, Payload: outcome.Payload}, nil
	}

	d.sess.Status = StatusFailed
	d.sess.LastFailureReason = outcome.Reason
	return InteractionResult{}, nil
}

// Terminate closes the session with the engine, reporting the final status
// (defaulting to Failed when unspecified) and the last recorded failure
// reason. It must be called exactly once per session regardless of how the
// session ended; a duplicate call is a local no-op and does not re-send the
// request.
func (d *Driver) Terminate(ctx context.Context, userTaskStatus string) error {
	if d.sess == nil {
		return fmt.Errorf("terminate called without a session")
	}
	if d.sess.Status == StatusTerminated {
		d.logger.Warn("Duplicate terminate call ignored.",
			zap.String("session", d.sess.SessionID))
		return nil
	}
	if userTaskStatus == "" {
		userTaskStatus = UserTaskFailed
	}

	_, err := d.client.Send(ctx, session.MethodTerminateAgent, session.TerminateAgentParams{
		ID:             d.sess.SessionID,
		UserTaskStatus: userTaskStatus,
		AgentStepError: d.sess.LastFailureReason,
	})
	// The session is locally done either way; a delivery failure here means
	// there is no channel left to close it with.
	d.sess.Status = StatusTerminated
	if err != nil {
		return fmt.Errorf("terminate session %s: %w", d.sess.SessionID, err)
	}
	return nil
}

// Reset clears the per-task step counter without touching the session
// identity. Used when the harness re-homes the device between attempts.
func (d *Driver) Reset() {
	if d.sess != nil {
		d.sess.StepCount = 0
	}
}

// Session returns a copy of the current per-task state record.
func (d *Driver) Session() Session {
	if d.sess == nil {
		return Session{Status: StatusIdle}
	}
	return *d.sess
}

// RunLog returns the raw outcome of every step taken in the current session.
func (d *Driver) RunLog() []session.StepOutcome {
	return d.runLog
}

// InteractionCache returns the raw payload of the most recent completed step.
func (d *Driver) InteractionCache() string {
	return d.interactionCache
}

func (d *Driver) deviceDescriptor() session.DeviceDescriptor {
	desc := session.DeviceDescriptor{Type: "Android"}
	if d.device.ConnectionType == config.ConnectionRemote {
		desc.Host = d.device.RemoteHost
		desc.Port = d.device.RemoteADBPort
		return desc
	}
	desc.DeviceID = d.device.DeviceID
	return desc
}
