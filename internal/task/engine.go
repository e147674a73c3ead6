package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ludex/internal/events"
	"ludex/internal/logging"
	"ludex/internal/services"
)

// Mode selects how Execute behaves when another task is current.
type Mode int

const (
	// ModeFail rejects the submission immediately with ErrBusy.
	ModeFail Mode = iota
	// ModeWait queues the submission until the current task finishes.
	ModeWait
)

// ErrBusy is returned in ModeFail when another task is current.
var ErrBusy = errors.New("another task is already running")

// OutcomeKind classifies how a task finished.
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeCancelled       OutcomeKind = "cancelled"
	OutcomeExpectedError   OutcomeKind = "expected_error"
	OutcomeUnexpectedError OutcomeKind = "unexpected_error"
)

// Expected reports whether the outcome is a declared, displayable result
// rather than a fault.
func (k OutcomeKind) Expected() bool {
	return k != OutcomeUnexpectedError
}

// Outcome is the terminal result of one task execution.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	Err     error
	Elapsed time.Duration
}

type running struct {
	task     *Task
	progress *Progress
	cancel   context.CancelFunc
}

// Engine runs tasks one at a time.
type Engine struct {
	bus    *events.Bus
	logger *slog.Logger

	slot    chan struct{}
	current chan *running
}

// NewEngine creates an idle engine.
func NewEngine(bus *events.Bus, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	current := make(chan *running, 1)
	current <- nil
	return &Engine{
		bus:     bus,
		logger:  logging.WithComponent(logger, "task-engine"),
		slot:    slot,
		current: current,
	}
}

// Execute runs the task and blocks until it finishes, returning the
// classified outcome. Unexpected errors are additionally returned as the
// error value so they propagate to a top-level handler.
func (e *Engine) Execute(ctx context.Context, t *Task, mode Mode) (Outcome, error) {
	if t == nil || t.Run == nil {
		return Outcome{}, services.Wrap(services.ErrValidation, "task-engine", "execute",
			"task with a run func is required", nil)
	}

	switch mode {
	case ModeWait:
		select {
		case <-e.slot:
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	default:
		select {
		case <-e.slot:
		default:
			return Outcome{}, services.Wrap(ErrBusy, "task-engine", "execute",
				"task "+t.Title+" rejected while another task is running", nil)
		}
	}
	defer func() { e.slot <- struct{}{} }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := newProgress(t.Title, t.Cancellable)
	e.setCurrent(&running{task: t, progress: progress, cancel: cancel})
	defer e.setCurrent(nil)

	e.bus.Emit(events.New(events.TypeTaskStarted, map[string]string{"task": t.Title}))
	started := time.Now()

	err := t.Run(runCtx, progress)
	outcome := e.classify(t, runCtx, progress, err, time.Since(started))

	e.bus.Emit(events.New(events.TypeTaskFinished, map[string]string{
		"task":    t.Title,
		"kind":    string(outcome.Kind),
		"elapsed": outcome.Elapsed.Round(time.Millisecond).String(),
	}))

	if outcome.Kind == OutcomeUnexpectedError {
		return outcome, outcome.Err
	}
	return outcome, nil
}

func (e *Engine) classify(t *Task, runCtx context.Context, progress *Progress, err error, elapsed time.Duration) Outcome {
	outcome := Outcome{Elapsed: elapsed, Err: err}

	switch {
	case err == nil:
		outcome.Kind = OutcomeSuccess
		progress.markDone()
		if t.SuccessMessage != nil {
			outcome.Message = t.SuccessMessage()
		}
		e.logger.Info("task finished",
			logging.String(logging.FieldTask, t.Title),
			logging.Duration("elapsed", elapsed))

	case errors.Is(err, context.Canceled) && runCtx.Err() != nil:
		outcome.Kind = OutcomeCancelled
		if t.CancelMessage != nil {
			outcome.Message = t.CancelMessage()
		}
		e.logger.Info("task cancelled",
			logging.String(logging.FieldTask, t.Title),
			logging.Duration("elapsed", elapsed))

	case t.ErrorMessage != nil:
		outcome.Kind = OutcomeExpectedError
		outcome.Message = t.ErrorMessage(err)
		e.logger.Warn("task failed",
			logging.String(logging.FieldTask, t.Title),
			logging.Duration("elapsed", elapsed),
			logging.Error(err))

	default:
		outcome.Kind = OutcomeUnexpectedError
		// Logged here, once, with full context; callers receive the error
		// and must not report it again.
		e.logger.Error("task failed unexpectedly",
			logging.String(logging.FieldTask, t.Title),
			logging.Duration("elapsed", elapsed),
			logging.Error(err))
		e.bus.Emit(events.New(events.TypeError, map[string]string{
			"task":  t.Title,
			"error": err.Error(),
		}))
	}
	return outcome
}

// CancelCurrent signals the current task to unwind. It reports whether a
// cancellable task was current.
func (e *Engine) CancelCurrent() bool {
	run := <-e.current
	e.current <- run
	if run == nil || !run.task.Cancellable {
		return false
	}
	run.cancel()
	return true
}

// Current returns a snapshot of the running task, or nil when idle.
func (e *Engine) Current() *Snapshot {
	run := <-e.current
	e.current <- run
	if run == nil {
		return nil
	}
	snap := run.progress.Snapshot()
	return &snap
}

func (e *Engine) setCurrent(run *running) {
	<-e.current
	e.current <- run
}
