// Package scan discovers candidate game folders under the configured
// library roots and turns them into sync requests.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ludex/internal/config"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/services"
	"ludex/internal/sync"
)

// Options tune one discovery pass.
type Options struct {
	// Rescan includes paths that already carry a confirmed game. Their
	// stored data is attached so the run can resolve them automatically.
	Rescan bool
}

// Scanner walks library roots and produces path requests.
type Scanner struct {
	cfg    *config.Config
	store  *library.Store
	logger *slog.Logger
}

// New wires a scanner.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:    cfg,
		store:  store,
		logger: logging.WithComponent(logger, "scan"),
	}
}

// Discover returns one request per candidate game folder, in root order and
// then in directory-listing order. Excluded paths never come back; already
// matched paths only return when rescanning.
func (s *Scanner) Discover(ctx context.Context, opts Options) ([]sync.PathRequest, error) {
	if len(s.cfg.Paths.LibraryRoots) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "scan", "discover",
			"no library roots configured", nil)
	}

	exclusions, err := s.store.Exclusions(ctx)
	if err != nil {
		return nil, err
	}
	excluded := make(map[library.Key]struct{}, len(exclusions))
	for _, key := range exclusions {
		excluded[key] = struct{}{}
	}

	var requests []sync.PathRequest
	for _, root := range s.cfg.Paths.LibraryRoots {
		libraryName := filepath.Base(filepath.Clean(root))
		entries, err := os.ReadDir(root)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("library root missing, skipping",
					logging.String("root", root))
				continue
			}
			return nil, services.Wrap(services.ErrTransient, "scan", "discover",
				"read library root "+root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			key := library.Key{Library: libraryName, Dir: filepath.Join(root, entry.Name())}
			if _, skip := excluded[key]; skip {
				continue
			}

			request, include, err := s.buildRequest(ctx, key, opts)
			if err != nil {
				return nil, err
			}
			if include {
				requests = append(requests, request)
			}
		}
	}
	return requests, nil
}

// buildRequest decides whether a folder needs syncing, attaching stored game
// data for rescans.
func (s *Scanner) buildRequest(ctx context.Context, key library.Key, opts Options) (sync.PathRequest, bool, error) {
	request := sync.PathRequest{
		Path: library.Path{Library: key.Library, Dir: key.Dir},
	}

	existing, err := s.store.PathByKey(ctx, key)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return request, true, nil
		}
		return sync.PathRequest{}, false, err
	}
	// The stored row carries the registered platform filter.
	request.Path = *existing

	game, err := s.store.GameForPath(ctx, existing.ID)
	if err != nil {
		return sync.PathRequest{}, false, err
	}
	if game == nil {
		return request, true, nil
	}
	if !opts.Rescan {
		return sync.PathRequest{}, false, nil
	}

	records, err := s.store.ProviderRecords(ctx, game.ID)
	if err != nil {
		return sync.PathRequest{}, false, err
	}
	request.ExistingGame = game
	request.ProviderRecords = records
	return request, true, nil
}
