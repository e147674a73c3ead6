package task

import (
	"context"
	"sync"
)

// Task is one unit of cancellable work.
type Task struct {
	// Title labels the task in status output and logs.
	Title string
	// Cancellable marks the task as user-interruptible.
	Cancellable bool
	// Run is the task body. It must observe ctx and unwind promptly on
	// cancellation.
	Run func(ctx context.Context, progress *Progress) error

	// SuccessMessage, when set, is shown after normal completion.
	SuccessMessage func() string
	// CancelMessage, when set, is shown after cooperative cancellation.
	CancelMessage func() string
	// ErrorMessage, when set, declares that the task handles this failure
	// kind for display; its presence reclassifies errors as expected.
	ErrorMessage func(err error) string
}

// IndeterminateFraction is the sentinel reported when no meaningful fraction
// exists (totalItems <= 1).
const IndeterminateFraction = -1.0

// Snapshot is a point-in-time view of a task's progress.
type Snapshot struct {
	Title       string
	Message     string
	Processed   int
	Total       int
	Fraction    float64
	Cancellable bool
	Sub         *Snapshot
}

// Progress is the mutable progress state bound to a running task. A task may
// open at most one nested sub-task at a time.
type Progress struct {
	mu          sync.Mutex
	title       string
	message     string
	processed   int
	total       int
	done        bool
	cancellable bool
	sub         *Progress
}

func newProgress(title string, cancellable bool) *Progress {
	return &Progress{title: title, cancellable: cancellable}
}

// SetMessage replaces the task's current message.
func (p *Progress) SetMessage(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = message
}

// SetTotal sets the number of items the task will process.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
}

// SetProcessed sets the number of items processed so far.
func (p *Progress) SetProcessed(processed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = processed
}

// Increment advances the processed count by one.
func (p *Progress) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed++
}

// StartSub opens the nested sub-task slot. It replaces any previous sub-task.
func (p *Progress) StartSub(title string) *Progress {
	sub := newProgress(title, false)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub = sub
	return sub
}

// EndSub clears the nested sub-task slot.
func (p *Progress) EndSub() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub = nil
}

// markDone clamps the displayed fraction to 1.0 after normal completion.
func (p *Progress) markDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
}

// Snapshot returns a copy of the current progress state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Title:       p.title,
		Message:     p.message,
		Processed:   p.processed,
		Total:       p.total,
		Fraction:    fraction(p.processed, p.total, p.done),
		Cancellable: p.cancellable,
	}
	if p.sub != nil {
		sub := p.sub.Snapshot()
		snap.Sub = &sub
	}
	return snap
}

// fraction reports processed/total only when total > 1; a smaller total means
// the task is indeterminate. Completion clamps to 1.
func fraction(processed, total int, done bool) float64 {
	if done {
		return 1
	}
	if total <= 1 {
		return IndeterminateFraction
	}
	f := float64(processed) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}
