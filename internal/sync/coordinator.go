package sync

import (
	"context"
	"fmt"

	"ludex/internal/library"
	"ludex/internal/provider"
	"ludex/internal/search"
	"ludex/internal/services"
)

// PathRequest is the unit submitted to a sync run.
type PathRequest struct {
	Path library.Path
	// ExistingGame pre-seeds queries and enables Preset choices on re-sync.
	ExistingGame    *library.Game
	ProviderRecords []library.ProviderRecord
	// SyncOnlyProviders restricts the provider order for this path; empty
	// means all enabled providers.
	SyncOnlyProviders []provider.ID
}

// Coordinator owns the ordered path queue for one sync run. It is not
// goroutine-safe; callers serialize access.
type Coordinator struct {
	machine  *search.Machine
	registry *provider.Registry

	order        []library.Key
	requests     map[library.Key]PathRequest
	states       map[library.Key]*search.State
	current      int
	numProcessed int
	begun        bool
}

// NewCoordinator creates a coordinator over an already-configured machine.
func NewCoordinator(machine *search.Machine, registry *provider.Registry) *Coordinator {
	return &Coordinator{
		machine:  machine,
		registry: registry,
		requests: make(map[library.Key]PathRequest),
		states:   make(map[library.Key]*search.State),
		current:  -1,
	}
}

// Begin populates the queue and initializes one search state per request.
func (c *Coordinator) Begin(requests []PathRequest) error {
	if c.begun {
		return services.Wrap(services.ErrValidation, "sync", "begin",
			"coordinator already began a run", nil)
	}
	if len(requests) == 0 {
		return services.Wrap(services.ErrValidation, "sync", "begin",
			"at least one path request is required", nil)
	}

	for i, req := range requests {
		key := req.Path.Key()
		if _, dup := c.states[key]; dup {
			return services.Wrap(services.ErrValidation, "sync", "begin",
				fmt.Sprintf("path %q submitted twice", req.Path.Dir), nil)
		}
		order := c.registry.Restrict(req.SyncOnlyProviders)
		c.order = append(c.order, key)
		c.requests[key] = req
		c.states[key] = c.machine.Start(i, req.Path, order, req.ExistingGame, req.ProviderRecords)
	}
	c.begun = true
	c.current = c.nextNonTerminal(-1)
	return nil
}

// Current returns the active path's state, or nil when the run is complete.
func (c *Coordinator) Current() *search.State {
	if c.current < 0 || c.current >= len(c.order) {
		return nil
	}
	return c.states[c.order[c.current]]
}

// StateFor returns the state for one path.
func (c *Coordinator) StateFor(key library.Key) (*search.State, error) {
	state, ok := c.states[key]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "sync", "state lookup",
			fmt.Sprintf("path %q is not part of this run", key.Dir), nil)
	}
	return state, nil
}

// Paths returns the queue order.
func (c *Coordinator) Paths() []library.Key {
	return append([]library.Key(nil), c.order...)
}

// RequestFor returns the original request for one path.
func (c *Coordinator) RequestFor(key library.Key) (PathRequest, error) {
	req, ok := c.requests[key]
	if !ok {
		return PathRequest{}, services.Wrap(services.ErrNotFound, "sync", "request lookup",
			fmt.Sprintf("path %q is not part of this run", key.Dir), nil)
	}
	return req, nil
}

// NumProcessed reports how many paths have been advanced past.
func (c *Coordinator) NumProcessed() int {
	return c.numProcessed
}

// Total reports the queue length.
func (c *Coordinator) Total() int {
	return len(c.order)
}

// Done reports whether no non-terminal path remains.
func (c *Coordinator) Done() bool {
	return c.begun && c.Current() == nil
}

// SubmitChoice applies a choice to the active path. Choices for any other
// path, or for a provider other than the state's current one, are caller
// errors and fail fast.
func (c *Coordinator) SubmitChoice(key library.Key, id provider.ID, choice search.Choice) error {
	state, err := c.requireActive(key, id)
	if err != nil {
		return err
	}
	return c.machine.SubmitChoice(state, choice)
}

// Search issues a query for the active path's current provider.
func (c *Coordinator) Search(ctx context.Context, key library.Key, id provider.ID, query string, offset, limit int) (provider.SearchResponse, search.Choice, error) {
	state, err := c.requireActive(key, id)
	if err != nil {
		return provider.SearchResponse{}, nil, err
	}
	return c.machine.Search(ctx, state, query, offset, limit)
}

// Advance moves past the active path once it is terminal. It reports whether
// the run is complete.
func (c *Coordinator) Advance() (bool, error) {
	state := c.Current()
	if state == nil {
		return true, nil
	}
	if !state.Status.Terminal() {
		return false, services.Wrap(services.ErrValidation, "sync", "advance",
			fmt.Sprintf("path %q has not reached a terminal status", state.Path.Dir), nil)
	}
	c.numProcessed++
	c.current = c.nextNonTerminal(c.current)
	return c.current < 0, nil
}

// Restart re-initializes one path's state from scratch. It is a point
// mutation: queue positions and the processed count are unchanged. Only a
// terminal path may restart.
func (c *Coordinator) Restart(key library.Key) error {
	state, err := c.StateFor(key)
	if err != nil {
		return err
	}
	if !state.Status.Terminal() {
		return services.Wrap(services.ErrValidation, "sync", "restart",
			fmt.Sprintf("path %q is still in progress", key.Dir), nil)
	}

	req := c.requests[key]
	c.states[key] = c.machine.Start(state.Index, req.Path,
		c.registry.Restrict(req.SyncOnlyProviders), req.ExistingGame, req.ProviderRecords)
	if c.current < 0 {
		c.current = c.nextNonTerminal(-1)
	}
	return nil
}

// CancelAll marks every non-terminal state cancelled. Idempotent.
func (c *Coordinator) CancelAll() {
	for _, state := range c.states {
		if !state.Status.Terminal() {
			state.Status = search.StatusCancelled
			state.CurrentProvider = ""
		}
	}
	c.current = -1
}

func (c *Coordinator) requireActive(key library.Key, id provider.ID) (*search.State, error) {
	state := c.Current()
	if state == nil {
		return nil, services.Wrap(services.ErrValidation, "sync", "active path",
			"no sync path is active", nil)
	}
	if state.Path.Key() != key {
		return nil, services.Wrap(services.ErrValidation, "sync", "active path",
			fmt.Sprintf("path %q is not the active path (%q is)", key.Dir, state.Path.Dir), nil)
	}
	if state.CurrentProvider != id {
		return nil, services.Wrap(services.ErrValidation, "sync", "active path",
			fmt.Sprintf("provider %q is not awaiting a choice (%q is)", id, state.CurrentProvider), nil)
	}
	return state, nil
}

// nextNonTerminal scans forward from after, wrapping once, for a path whose
// state is still running. Returns -1 when none remain.
func (c *Coordinator) nextNonTerminal(after int) int {
	n := len(c.order)
	for step := 1; step <= n; step++ {
		i := (after + step) % n
		if i < 0 {
			i += n
		}
		if !c.states[c.order[i]].Status.Terminal() {
			return i
		}
	}
	return -1
}
