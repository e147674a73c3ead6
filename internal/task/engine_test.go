package task_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ludex/internal/events"
	"ludex/internal/task"
)

func newEngine(t *testing.T) (*task.Engine, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return task.NewEngine(bus, nil), bus
}

func collectEvents(t *testing.T, bus *events.Bus) func() []events.Event {
	t.Helper()
	ch, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)
	return func() []events.Event {
		var seen []events.Event
		for {
			select {
			case event := <-ch:
				seen = append(seen, event)
			case <-time.After(100 * time.Millisecond):
				return seen
			}
		}
	}
}

func TestExecuteSuccess(t *testing.T) {
	engine, bus := newEngine(t)
	drain := collectEvents(t, bus)

	ran := false
	outcome, err := engine.Execute(context.Background(), &task.Task{
		Title: "sync",
		Run: func(ctx context.Context, progress *task.Progress) error {
			ran = true
			progress.SetTotal(4)
			progress.SetProcessed(2)
			return nil
		},
		SuccessMessage: func() string { return "all done" },
	}, task.ModeFail)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !ran {
		t.Fatal("task body did not run")
	}
	if outcome.Kind != task.OutcomeSuccess || outcome.Message != "all done" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	var started, finished int
	for _, event := range drain() {
		switch event.Type {
		case events.TypeTaskStarted:
			started++
		case events.TypeTaskFinished:
			finished++
			if event.Payload["kind"] != string(task.OutcomeSuccess) {
				t.Fatalf("unexpected finished payload: %v", event.Payload)
			}
		}
	}
	if started != 1 || finished != 1 {
		t.Fatalf("expected exactly one started and one finished event, got %d/%d", started, finished)
	}
}

func TestExecuteCancellationIsExpected(t *testing.T) {
	engine, _ := newEngine(t)

	release := make(chan struct{})
	var outcome task.Outcome
	var execErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcome, execErr = engine.Execute(context.Background(), &task.Task{
			Title:       "sync",
			Cancellable: true,
			Run: func(ctx context.Context, progress *task.Progress) error {
				close(release)
				<-ctx.Done()
				return ctx.Err()
			},
			CancelMessage: func() string { return "stopped by user" },
		}, task.ModeFail)
	}()

	<-release
	for !engine.CancelCurrent() {
		time.Sleep(time.Millisecond)
	}
	<-done

	if execErr != nil {
		t.Fatalf("cancellation must not surface as an error: %v", execErr)
	}
	if outcome.Kind != task.OutcomeCancelled {
		t.Fatalf("expected cancelled outcome, got %s", outcome.Kind)
	}
	if !outcome.Kind.Expected() {
		t.Fatal("cancellation must classify as expected")
	}
	if outcome.Message != "stopped by user" {
		t.Fatalf("unexpected message: %q", outcome.Message)
	}
}

func TestExecuteErrorWithHandlerIsExpected(t *testing.T) {
	engine, _ := newEngine(t)

	boom := errors.New("provider down")
	outcome, err := engine.Execute(context.Background(), &task.Task{
		Title: "sync",
		Run: func(ctx context.Context, progress *task.Progress) error {
			return boom
		},
		ErrorMessage: func(err error) string { return "sync failed: " + err.Error() },
	}, task.ModeFail)
	if err != nil {
		t.Fatalf("declared error must not propagate: %v", err)
	}
	if outcome.Kind != task.OutcomeExpectedError {
		t.Fatalf("expected expected-error outcome, got %s", outcome.Kind)
	}
	if outcome.Message != "sync failed: provider down" {
		t.Fatalf("unexpected message: %q", outcome.Message)
	}
}

func TestExecuteErrorWithoutHandlerPropagates(t *testing.T) {
	engine, bus := newEngine(t)
	drain := collectEvents(t, bus)

	boom := errors.New("nil pointer somewhere")
	outcome, err := engine.Execute(context.Background(), &task.Task{
		Title: "sync",
		Run: func(ctx context.Context, progress *task.Progress) error {
			return boom
		},
	}, task.ModeFail)
	if !errors.Is(err, boom) {
		t.Fatalf("expected error to propagate, got %v", err)
	}
	if outcome.Kind != task.OutcomeUnexpectedError || outcome.Kind.Expected() {
		t.Fatalf("expected unexpected-error outcome, got %s", outcome.Kind)
	}

	finished := 0
	for _, event := range drain() {
		if event.Type == events.TypeTaskFinished {
			finished++
		}
	}
	if finished != 1 {
		t.Fatalf("finished event must still fire exactly once, got %d", finished)
	}
}

func TestSingleFlightModeFail(t *testing.T) {
	engine, _ := newEngine(t)

	block := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title: "first",
			Run: func(ctx context.Context, progress *task.Progress) error {
				close(started)
				<-block
				return nil
			},
		}, task.ModeFail)
	}()
	<-started

	_, err := engine.Execute(context.Background(), &task.Task{
		Title: "second",
		Run:   func(ctx context.Context, progress *task.Progress) error { return nil },
	}, task.ModeFail)
	if !errors.Is(err, task.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(block)
	wg.Wait()
}

func TestSingleFlightModeWaitQueues(t *testing.T) {
	engine, _ := newEngine(t)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title: "first",
			Run: func(ctx context.Context, progress *task.Progress) error {
				close(started)
				<-block
				return nil
			},
		}, task.ModeFail)
	}()
	<-started

	var order []string
	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := engine.Execute(context.Background(), &task.Task{
			Title: "second",
			Run: func(ctx context.Context, progress *task.Progress) error {
				mu.Lock()
				order = append(order, "second")
				mu.Unlock()
				return nil
			},
		}, task.ModeWait)
		if err != nil {
			t.Errorf("queued Execute: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("queued task ran before the first finished")
	case <-time.After(50 * time.Millisecond):
	}

	mu.Lock()
	order = append(order, "first-released")
	mu.Unlock()
	close(block)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "first-released" || order[1] != "second" {
		t.Fatalf("unexpected ordering: %v", order)
	}
}

func TestModeWaitHonorsContext(t *testing.T) {
	engine, _ := newEngine(t)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title: "first",
			Run: func(ctx context.Context, progress *task.Progress) error {
				close(started)
				<-block
				return nil
			},
		}, task.ModeFail)
	}()
	<-started
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := engine.Execute(ctx, &task.Task{
		Title: "second",
		Run:   func(ctx context.Context, progress *task.Progress) error { return nil },
	}, task.ModeWait)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error while queued, got %v", err)
	}
}

func TestCurrentSnapshotAndProgress(t *testing.T) {
	engine, _ := newEngine(t)

	if engine.Current() != nil {
		t.Fatal("expected no current task while idle")
	}

	inspect := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title:       "sync",
			Cancellable: true,
			Run: func(ctx context.Context, progress *task.Progress) error {
				progress.SetMessage("searching")
				progress.SetTotal(4)
				progress.SetProcessed(1)
				sub := progress.StartSub("giantbomb")
				sub.SetMessage("querying")
				close(inspect)
				<-proceed
				progress.EndSub()
				return nil
			},
		}, task.ModeFail)
	}()

	<-inspect
	snap := engine.Current()
	if snap == nil {
		t.Fatal("expected current snapshot")
	}
	if snap.Title != "sync" || snap.Message != "searching" || !snap.Cancellable {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Fraction != 0.25 {
		t.Fatalf("expected fraction 0.25, got %v", snap.Fraction)
	}
	if snap.Sub == nil || snap.Sub.Title != "giantbomb" {
		t.Fatalf("expected sub-task snapshot, got %+v", snap.Sub)
	}
	close(proceed)
}

func TestIndeterminateProgressSentinel(t *testing.T) {
	engine, _ := newEngine(t)

	inspect := make(chan struct{})
	proceed := make(chan struct{})
	go func() {
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title: "single",
			Run: func(ctx context.Context, progress *task.Progress) error {
				progress.SetTotal(1)
				progress.SetProcessed(1)
				close(inspect)
				<-proceed
				return nil
			},
		}, task.ModeFail)
	}()

	<-inspect
	snap := engine.Current()
	if snap == nil {
		t.Fatal("expected current snapshot")
	}
	if snap.Fraction != task.IndeterminateFraction {
		t.Fatalf("expected indeterminate sentinel for total <= 1, got %v", snap.Fraction)
	}
	close(proceed)
}

func TestCancelCurrentIgnoresNonCancellable(t *testing.T) {
	engine, _ := newEngine(t)

	started := make(chan struct{})
	block := make(chan struct{})
	go func() {
		_, _ = engine.Execute(context.Background(), &task.Task{
			Title: "pinned",
			Run: func(ctx context.Context, progress *task.Progress) error {
				close(started)
				<-block
				return nil
			},
		}, task.ModeFail)
	}()
	<-started
	defer close(block)

	if engine.CancelCurrent() {
		t.Fatal("expected non-cancellable task to refuse cancellation")
	}
}
