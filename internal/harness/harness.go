// File: internal/harness/harness.go
// Description: Runs an ordered suite of benchmark tasks against the device.
// Each task is one session: create, one step per goal, terminate. The
// harness owns the discipline of always terminating sessions it opened,
// except after a transport failure that leaves no channel to do so.

package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/droidbench-cli/internal/agent"
	"github.com/xkilldash9x/droidbench-cli/internal/device"
	"github.com/xkilldash9x/droidbench-cli/internal/session"
	"github.com/xkilldash9x/droidbench-cli/internal/store"
)

// Task is one benchmark entry: a named goal for the agent to accomplish.
type Task struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Goal string `json:"goal"`
}

// Result is the harness-level outcome of one task.
type Result struct {
	Task          Task
	Done          bool
	Status        string
	Steps         int
	FailureReason string
	Payload       json.RawMessage
	StartedAt     time.Time
	FinishedAt    time.Time
}

// AgentDriver is the per-task session state machine.
type AgentDriver interface {
	Start(ctx context.Context, taskName, taskID string) error
	Step(ctx context.Context, goal string) (agent.InteractionResult, error)
	Terminate(ctx context.Context, userTaskStatus string) error
	Session() agent.Session
}

// Observer supplies the device-side view captured after each step.
type Observer interface {
	UIElements() ([]device.UIElement, error)
}

// Recorder persists finished task runs.
type Recorder interface {
	RecordRun(ctx context.Context, run store.TaskRun) error
}

// Harness drives the suite. The observer and recorder are optional.
type Harness struct {
	driver   AgentDriver
	observer Observer
	recorder Recorder
	logger   *zap.Logger
}

// New wires a harness. Pass nil for observer or recorder to disable the
// post-step observation and run persistence respectively.
func New(driver AgentDriver, observer Observer, recorder Recorder, logger *zap.Logger) *Harness {
	return &Harness{
		driver:   driver,
		observer: observer,
		recorder: recorder,
		logger:   logger.Named("harness"),
	}
}

// Run executes the tasks in order, one session each, and returns their
// results. Run persistence happens off the critical path; Run waits for all
// writes before returning.
//
// A transport-exhausted failure aborts the suite: with no channel to the
// engine there is nothing useful left to do, and no terminate request is
// attempted for the broken session. Any other step failure still terminates
// the session before the harness moves on.
func (h *Harness) Run(ctx context.Context, suiteID string, tasks []Task) ([]Result, error) {
	if suiteID == "" {
		suiteID = uuid.NewString()
	}
	h.logger.Info("Starting task suite.",
		zap.String("suite", suiteID),
		zap.Int("tasks", len(tasks)))

	var g errgroup.Group
	results := make([]Result, 0, len(tasks))

	for _, task := range tasks {
		result, err := h.runTask(ctx, task)
		results = append(results, result)
		h.record(ctx, &g, suiteID, result)
		if err != nil {
			if werr := g.Wait(); werr != nil {
				h.logger.Error("Failed to persist task runs.", zap.Error(werr))
			}
			return results, fmt.Errorf("task %s: %w", task.Name, err)
		}
	}

	if err := g.Wait(); err != nil {
		h.logger.Error("Failed to persist task runs.", zap.Error(err))
	}
	h.logger.Info("Task suite finished.",
		zap.String("suite", suiteID),
		zap.Int("tasks", len(results)))
	return results, nil
}

// runTask walks one task through its session lifecycle. The returned error is
// non-nil only for suite-fatal failures (exhausted transport).
func (h *Harness) runTask(ctx context.Context, task Task) (result Result, err error) {
	result = Result{Task: task, Status: agent.UserTaskFailed, StartedAt: time.Now()}
	// Named return so the deferred timestamp lands on the value the caller sees.
	defer func() { result.FinishedAt = time.Now() }()

	if err := h.driver.Start(ctx, task.Name, task.ID); err != nil {
		result.FailureReason = err.Error()
		if errors.Is(err, session.ErrTransportExhausted) {
			return result, err
		}
		h.logger.Error("Failed to start task session.",
			zap.String("task", task.Name), zap.Error(err))
		return result, nil
	}

	stepResult, stepErr := h.driver.Step(ctx, task.Goal)
	if stepErr != nil && errors.Is(stepErr, session.ErrTransportExhausted) {
		// No channel left; terminating would just fail the same way.
		sess := h.driver.Session()
		result.Steps = sess.StepCount
		result.FailureReason = stepErr.Error()
		return result, stepErr
	}

	h.observe(task)

	sess := h.driver.Session()
	result.Steps = sess.StepCount
	result.FailureReason = sess.LastFailureReason
	if stepErr != nil {
		h.logger.Error("Step failed.", zap.String("task", task.Name), zap.Error(stepErr))
		result.FailureReason = stepErr.Error()
	} else if stepResult.Done {
		result.Done = true
		result.Status = agent.UserTaskCompleted
		result.Payload = json.RawMessage(stepResult.Payload)
	}

	if err := h.driver.Terminate(ctx, result.Status); err != nil {
		h.logger.Error("Failed to terminate session.",
			zap.String("task", task.Name), zap.Error(err))
	}
	return result, nil
}

// observe captures the device-side view after a step, so every step leaves a
// trace of what was on screen when it finished.
func (h *Harness) observe(task Task) {
	if h.observer == nil {
		return
	}
	elements, err := h.observer.UIElements()
	if err != nil {
		h.logger.Warn("Could not capture post-step UI state.",
			zap.String("task", task.Name), zap.Error(err))
		return
	}
	h.logger.Info("Post-step UI state.",
		zap.String("task", task.Name),
		zap.Int("elements", len(elements)))
}

// record queues run persistence without blocking the next task.
func (h *Harness) record(ctx context.Context, g *errgroup.Group, suiteID string, result Result) {
	if h.recorder == nil {
		return
	}
	run := store.TaskRun{
		ID:            uuid.NewString(),
		SuiteID:       suiteID,
		TaskID:        result.Task.ID,
		TaskName:      result.Task.Name,
		Status:        result.Status,
		StepCount:     result.Steps,
		FailureReason: result.FailureReason,
		Payload:       result.Payload,
		StartedAt:     result.StartedAt,
		FinishedAt:    result.FinishedAt,
	}
	g.Go(func() error {
		return h.recorder.RecordRun(ctx, run)
	})
}
