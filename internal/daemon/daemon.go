package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"ludex/internal/config"
	"ludex/internal/events"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/notify"
	"ludex/internal/provider"
	"ludex/internal/provider/giantbomb"
	"ludex/internal/provider/igdb"
	"ludex/internal/provider/opencritic"
	"ludex/internal/scan"
	"ludex/internal/search"
	"ludex/internal/services"
	"ludex/internal/sync"
	"ludex/internal/task"
)

// Daemon wires the long-running services and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *library.Store
	bus       *events.Bus
	engine    *task.Engine
	registry  *provider.Registry
	sync      *sync.Service
	notifier  notify.Service
	forwarder *notify.Forwarder
	observer  *eventLogger
	scanner   *scan.Scanner

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running  bool
	PID      int
	DBPath   string
	LockPath string
	Stats    library.Stats
	Health   library.DatabaseHealth
	Sync     sync.Snapshot
}

// New constructs a daemon over an opened store.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "new",
			"daemon requires config and store", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	engine := task.NewEngine(bus, logger)
	notifier := notify.NewService(cfg)

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "daemon"),
		store:     store,
		bus:       bus,
		engine:    engine,
		registry:  registry,
		sync:      sync.NewService(cfg, store, registry, engine, bus, logger),
		notifier:  notifier,
		forwarder: notify.NewForwarder(notifier, bus, logger),
		observer:  newEventLogger(bus, logger),
		scanner:   scan.New(cfg, store, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	return d, nil
}

// buildRegistry constructs one client per enabled provider in the configured
// priority order. Order entries naming a disabled provider are dropped.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	var order []provider.ID
	var clients []provider.Client

	for _, name := range cfg.Sync.ProviderOrder {
		id, err := provider.ParseID(name)
		if err != nil {
			return nil, err
		}
		client, enabled, err := buildClient(cfg, id)
		if err != nil {
			return nil, err
		}
		if !enabled {
			logger.Debug("provider disabled, dropping from order",
				logging.String(logging.FieldProvider, string(id)))
			continue
		}
		order = append(order, id)
		clients = append(clients, client)
	}

	if len(order) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "build registry",
			"no enabled metadata provider in provider_order", nil)
	}
	return provider.NewRegistry(order, clients...)
}

func buildClient(cfg *config.Config, id provider.ID) (provider.Client, bool, error) {
	switch id {
	case provider.GiantBomb:
		if !cfg.GiantBomb.Enabled {
			return nil, false, nil
		}
		client, err := giantbomb.New(cfg.GiantBomb.APIKey, cfg.GiantBomb.BaseURL, cfg.GiantBomb.RequestsPerSecond)
		return client, true, err
	case provider.IGDB:
		if !cfg.IGDB.Enabled {
			return nil, false, nil
		}
		client, err := igdb.New(cfg.IGDB.ClientID, cfg.IGDB.ClientSecret, cfg.IGDB.BaseURL, cfg.IGDB.TokenURL, cfg.IGDB.RequestsPerSecond)
		return client, true, err
	case provider.OpenCritic:
		if !cfg.OpenCritic.Enabled {
			return nil, false, nil
		}
		client, err := opencritic.New(cfg.OpenCritic.APIKey, cfg.OpenCritic.BaseURL, cfg.OpenCritic.RequestsPerSecond)
		return client, true, err
	}
	return nil, false, services.Wrap(services.ErrConfiguration, "daemon", "build registry",
		"unknown provider "+string(id), nil)
}

// Start acquires the daemon lock and begins forwarding notifications.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return services.Wrap(services.ErrValidation, "daemon", "start",
			"daemon already running", nil)
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrTransient, "daemon", "start",
			"acquire lock "+d.lockPath, err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "daemon", "start",
			"another ludex daemon instance is already running", nil)
	}

	d.forwarder.Start()
	d.observer.Start()
	d.running.Store(true)
	d.logger.Info("ludex daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop aborts any active sync and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.sync.Cancel()
	d.forwarder.Close()
	d.observer.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("ludex daemon stopped")
}

// Close releases every resource held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	d.bus.Close()
	return d.store.Close()
}

// Status reports runtime and database diagnostics.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:  d.running.Load(),
		PID:      os.Getpid(),
		DBPath:   d.store.DBPath(),
		LockPath: d.lockPath,
		Health:   d.store.Health(ctx),
		Sync:     d.sync.Snapshot(),
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Stats = stats
	}
	return status
}

// Bus exposes the event stream for embedding processes.
func (d *Daemon) Bus() *events.Bus {
	return d.bus
}

// ListPaths returns every registered library path.
func (d *Daemon) ListPaths(ctx context.Context) ([]*library.Path, error) {
	return d.store.ListPaths(ctx)
}

// AddPath registers a library path.
func (d *Daemon) AddPath(ctx context.Context, path library.Path) (*library.Path, error) {
	return d.store.AddPath(ctx, path)
}

// RemovePath deletes a path and its game data.
func (d *Daemon) RemovePath(ctx context.Context, key library.Key) error {
	return d.store.RemovePath(ctx, key)
}

// GameForPath returns the confirmed game for a path, nil when unmatched.
func (d *Daemon) GameForPath(ctx context.Context, pathID int64) (*library.Game, error) {
	return d.store.GameForPath(ctx, pathID)
}

// Exclusions lists the folders excluded from future scans.
func (d *Daemon) Exclusions(ctx context.Context) ([]library.Key, error) {
	return d.store.Exclusions(ctx)
}

// SyncRequest selects what a sync run covers.
type SyncRequest struct {
	// Keys restricts the run to specific registered paths. Empty means scan
	// the library roots for candidates.
	Keys []library.Key
	// Rescan includes already-matched paths, resolving them from stored data.
	Rescan bool
	// SmartChoose overrides the configured auto-accept default when set.
	SmartChoose *bool
}

// SyncStart discovers or resolves the requested paths and starts a run.
func (d *Daemon) SyncStart(ctx context.Context, req SyncRequest) (string, error) {
	requests, err := d.resolveRequests(ctx, req)
	if err != nil {
		return "", err
	}
	if len(requests) == 0 {
		return "", services.Wrap(services.ErrValidation, "daemon", "sync start",
			"nothing to sync", nil)
	}
	return d.sync.Start(requests, sync.RunOptions{AllowSmartChoose: req.SmartChoose})
}

func (d *Daemon) resolveRequests(ctx context.Context, req SyncRequest) ([]sync.PathRequest, error) {
	if len(req.Keys) == 0 {
		return d.scanner.Discover(ctx, scan.Options{Rescan: req.Rescan})
	}

	requests := make([]sync.PathRequest, 0, len(req.Keys))
	for _, key := range req.Keys {
		path, err := d.store.PathByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		request := sync.PathRequest{Path: *path}
		game, err := d.store.GameForPath(ctx, path.ID)
		if err != nil {
			return nil, err
		}
		if game != nil {
			request.ExistingGame = game
			if req.Rescan {
				records, err := d.store.ProviderRecords(ctx, game.ID)
				if err != nil {
					return nil, err
				}
				request.ProviderRecords = records
			}
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// SyncState returns the run read model.
func (d *Daemon) SyncState() sync.Snapshot {
	return d.sync.Snapshot()
}

// SubmitChoice applies an interactive choice to the active sync path.
func (d *Daemon) SubmitChoice(key library.Key, id provider.ID, choice search.Choice) error {
	return d.sync.SubmitChoice(key, id, choice)
}

// SearchMore issues a follow-up query for the pending provider.
func (d *Daemon) SearchMore(ctx context.Context, key library.Key, id provider.ID, query string, offset int) (provider.SearchResponse, error) {
	return d.sync.Search(ctx, key, id, query, offset)
}

// RestartPath re-runs one terminal path inside the active run.
func (d *Daemon) RestartPath(key library.Key) error {
	return d.sync.Restart(key)
}

// CancelSync aborts the active run.
func (d *Daemon) CancelSync() bool {
	return d.sync.Cancel()
}

// CancelTask cancels whatever task the engine is running.
func (d *Daemon) CancelTask() bool {
	return d.engine.CancelCurrent()
}

// TestNotification publishes a test message through the notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notify.EventTest, nil)
}
