package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/google/uuid"

	"ludex/internal/config"
	"ludex/internal/events"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/provider"
	"ludex/internal/search"
	"ludex/internal/services"
	"ludex/internal/task"
)

// RunOptions tune one sync run.
type RunOptions struct {
	// AllowSmartChoose overrides the configured default when set.
	AllowSmartChoose *bool
}

// Service wraps a whole sync run as one task and drives the state machine
// sequentially across paths.
type Service struct {
	cfg      *config.Config
	store    *library.Store
	registry *provider.Registry
	engine   *task.Engine
	bus      *events.Bus
	logger   *slog.Logger

	mu          stdsync.Mutex
	coord       *Coordinator
	machine     *search.Machine
	runID       string
	running     bool
	lastOutcome *task.Outcome

	// runCancel has its own lock so Cancel can fire the run context while
	// the driver holds mu across a provider call. Lock order is mu before
	// cancelMu when both are taken.
	cancelMu  stdsync.Mutex
	runCancel context.CancelFunc

	wake chan struct{}
}

// NewService wires a sync service.
func NewService(cfg *config.Config, store *library.Store, registry *provider.Registry, engine *task.Engine, bus *events.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		registry: registry,
		engine:   engine,
		bus:      bus,
		logger:   logging.WithComponent(logger, "sync"),
		wake:     make(chan struct{}, 1),
	}
}

// Start begins a sync run over the given requests and returns its run id.
// Only one run may be active at a time.
func (s *Service) Start(requests []PathRequest, opts RunOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return "", services.Wrap(task.ErrBusy, "sync", "start",
			"a sync run is already active", nil)
	}

	allowSmart := s.cfg.Sync.AllowSmartChoose
	if opts.AllowSmartChoose != nil {
		allowSmart = *opts.AllowSmartChoose
	}
	machine := search.NewMachine(search.NewSession(s.registry), search.Options{
		AllowSmartChoose:          allowSmart,
		FilterPreviouslyDiscarded: s.cfg.Sync.FilterPreviouslyDiscarded,
		SearchLimit:               s.cfg.Sync.SearchLimit,
	})
	coord := NewCoordinator(machine, s.registry)
	if err := coord.Begin(requests); err != nil {
		return "", err
	}

	runID := uuid.NewString()
	s.bus.Emit(events.New(events.TypeSyncRequested, map[string]string{
		"run_id": runID,
		"paths":  strconv.Itoa(len(requests)),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s.coord = coord
	s.machine = machine
	s.runID = runID
	s.running = true
	s.lastOutcome = nil
	s.cancelMu.Lock()
	s.runCancel = cancel
	s.cancelMu.Unlock()

	go s.execute(ctx, runID)
	return runID, nil
}

func (s *Service) execute(ctx context.Context, runID string) {
	t := &task.Task{
		Title:       "library sync",
		Cancellable: true,
		Run:         s.run,
		SuccessMessage: func() string {
			return "sync complete"
		},
		CancelMessage: func() string {
			return "sync cancelled"
		},
		ErrorMessage: func(err error) string {
			return "sync failed: " + services.Details(err).Message
		},
	}

	outcome, err := s.engine.Execute(ctx, t, task.ModeFail)
	if err != nil {
		s.logger.Error("sync run aborted",
			logging.String("run_id", runID), logging.Error(err))
	}

	s.mu.Lock()
	s.coord.CancelAll()
	processed := s.coord.NumProcessed()
	total := s.coord.Total()
	s.running = false
	s.lastOutcome = &outcome
	s.cancelMu.Lock()
	s.runCancel = nil
	s.cancelMu.Unlock()
	s.mu.Unlock()

	s.bus.Emit(events.New(events.TypeSyncFinished, map[string]string{
		"run_id":    runID,
		"outcome":   string(outcome.Kind),
		"processed": strconv.Itoa(processed),
		"total":     strconv.Itoa(total),
		"elapsed":   outcome.Elapsed.Round(time.Millisecond).String(),
	}))
}

// run is the task body: drive paths one at a time until the queue drains.
func (s *Service) run(ctx context.Context, progress *task.Progress) error {
	s.mu.Lock()
	runID := s.runID
	total := s.coord.Total()
	s.mu.Unlock()

	s.bus.Emit(events.New(events.TypeSyncStarted, map[string]string{
		"run_id": runID,
		"paths":  strconv.Itoa(total),
	}))
	progress.SetTotal(total)

	for {
		if err := ctx.Err(); err != nil {
			s.cancelAll()
			return err
		}

		s.mu.Lock()
		state := s.coord.Current()
		if state == nil {
			s.mu.Unlock()
			return nil
		}

		if state.Status.Terminal() {
			s.finishPath(ctx, runID, state)
			progress.Increment()
			progress.SetMessage(fmt.Sprintf("%d of %d paths processed", s.coord.NumProcessed()+1, s.coord.Total()))
			if _, err := s.coord.Advance(); err != nil {
				s.mu.Unlock()
				return err
			}
			s.mu.Unlock()
			continue
		}

		key := state.Path.Key()
		current := state.CurrentProvider
		progress.SetMessage(fmt.Sprintf("%s: %s", state.Path.Dir, current))

		// Re-sync paths with stored data for this provider resolve
		// automatically; the synthetic preset never waits for a choice.
		if record := state.RecordFor(current); record != nil {
			if err := s.coord.SubmitChoice(key, current, presetChoice(state, record)); err != nil {
				s.mu.Unlock()
				return err
			}
			s.mu.Unlock()
			continue
		}

		entry, open := state.OpenSearch(current)
		if !open || !entry.Searched {
			query := state.InitialQuery()
			if open {
				query = entry.Query
			}
			_, auto, err := s.coord.Search(ctx, key, current, query, 0, 0)
			if err != nil {
				if ctx.Err() != nil {
					s.coord.CancelAll()
					s.mu.Unlock()
					return ctx.Err()
				}
				// Provider failure is a runtime outcome, not a fault: skip
				// this provider and let the user retry via restart.
				s.logger.Warn("provider search failed",
					logging.String(logging.FieldPathID, state.Path.Dir),
					logging.String(logging.FieldProvider, string(current)),
					logging.Error(err))
				s.bus.Emit(events.New(events.TypeError, map[string]string{
					"run_id":   runID,
					"path":     state.Path.Dir,
					"provider": string(current),
					"error":    services.Details(err).Message,
				}))
				if err := s.coord.SubmitChoice(key, current, search.Skip{}); err != nil {
					s.mu.Unlock()
					return err
				}
				s.mu.Unlock()
				continue
			}
			if auto != nil {
				s.logger.Info("smart choose accepted result",
					logging.String(logging.FieldPathID, state.Path.Dir),
					logging.String(logging.FieldProvider, string(current)))
				s.mu.Unlock()
				continue
			}
		}
		s.mu.Unlock()

		if err := s.waitForChoice(ctx, key, current); err != nil {
			return err
		}
	}
}

// waitForChoice blocks until a choice lands for the pending provider, the
// configured timeout skips it, or the run is cancelled.
func (s *Service) waitForChoice(ctx context.Context, key library.Key, id provider.ID) error {
	var timeout <-chan time.Time
	if s.cfg.Sync.ChoiceTimeout > 0 {
		timer := time.NewTimer(time.Duration(s.cfg.Sync.ChoiceTimeout) * time.Second)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		s.cancelAll()
		return ctx.Err()
	case <-s.wake:
		return nil
	case <-timeout:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.logger.Warn("choice timed out, skipping provider",
			logging.String(logging.FieldPathID, key.Dir),
			logging.String(logging.FieldProvider, string(id)))
		// The state may have moved while the timer fired; a stale skip is a
		// contract violation we can ignore here.
		_ = s.coord.SubmitChoice(key, id, search.Skip{})
		return nil
	}
}

func (s *Service) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coord.CancelAll()
}

func presetChoice(state *search.State, record *library.ProviderRecord) search.Choice {
	name := ""
	if state.ExistingGame != nil {
		name = state.ExistingGame.Name
	}
	var data provider.GameData
	if record.DataJSON != "" {
		_ = json.Unmarshal([]byte(record.DataJSON), &data)
	}
	return search.Preset{
		Result: provider.SearchResult{ProviderGameID: record.ProviderGameID, Name: name},
		Data:   data,
	}
}

// SubmitChoice applies an interactive choice to the active path and wakes
// the run driver. Callers must name the exact path and provider awaiting the
// choice; anything else fails fast.
func (s *Service) SubmitChoice(key library.Key, id provider.ID, choice search.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return services.Wrap(services.ErrValidation, "sync", "submit choice",
			"no sync run is active", nil)
	}
	if err := s.coord.SubmitChoice(key, id, choice); err != nil {
		return err
	}
	s.signalWake()
	return nil
}

// Search issues a follow-up page query ("show more") for the pending
// provider.
func (s *Service) Search(ctx context.Context, key library.Key, id provider.ID, query string, offset int) (provider.SearchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return provider.SearchResponse{}, services.Wrap(services.ErrValidation, "sync", "search",
			"no sync run is active", nil)
	}
	resp, _, err := s.coord.Search(ctx, key, id, query, offset, 0)
	return resp, err
}

// Restart re-runs a single terminal path within the active run.
func (s *Service) Restart(key library.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return services.Wrap(services.ErrValidation, "sync", "restart",
			"no sync run is active", nil)
	}
	if err := s.coord.Restart(key); err != nil {
		return err
	}
	s.signalWake()
	return nil
}

// Cancel aborts the active run: the run context is cancelled, which aborts
// any in-flight provider call, and the task unwinds at its next suspension
// point marking every non-terminal path cancelled. Cancel never takes mu so
// it cannot wait behind that in-flight call.
func (s *Service) Cancel() bool {
	s.cancelMu.Lock()
	cancel := s.runCancel
	s.cancelMu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	s.engine.CancelCurrent()
	s.signalWake()
	return true
}

func (s *Service) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
