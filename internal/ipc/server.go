package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"ludex/internal/daemon"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/provider"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.WithComponent(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName("Ludex", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path), logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = fromStatus(s.daemon.Status(s.ctx))
	return nil
}

func (s *service) PathsList(_ PathsListRequest, resp *PathsListResponse) error {
	paths, err := s.daemon.ListPaths(s.ctx)
	if err != nil {
		return err
	}
	resp.Paths = make([]PathDTO, 0, len(paths))
	for _, path := range paths {
		if path == nil {
			continue
		}
		dto := PathDTO{
			ID:       path.ID,
			Library:  path.Library,
			Platform: path.Platform,
			Dir:      path.Dir,
		}
		if game, err := s.daemon.GameForPath(s.ctx, path.ID); err == nil && game != nil {
			dto.GameName = game.Name
		}
		resp.Paths = append(resp.Paths, dto)
	}
	return nil
}

func (s *service) PathsAdd(req PathsAddRequest, resp *PathsAddResponse) error {
	added, err := s.daemon.AddPath(s.ctx, library.Path{
		Library:  req.Library,
		Platform: req.Platform,
		Dir:      req.Dir,
	})
	if err != nil {
		return err
	}
	resp.Path = PathDTO{
		ID:       added.ID,
		Library:  added.Library,
		Platform: added.Platform,
		Dir:      added.Dir,
	}
	s.logger.Info("library path added",
		logging.String(logging.FieldPathID, added.Dir))
	return nil
}

func (s *service) PathsRemove(req PathsRemoveRequest, resp *PathsRemoveResponse) error {
	if err := s.daemon.RemovePath(s.ctx, req.Key.key()); err != nil {
		return err
	}
	resp.Removed = true
	s.logger.Info("library path removed",
		logging.String(logging.FieldPathID, req.Key.Dir))
	return nil
}

func (s *service) SyncStart(req SyncStartRequest, resp *SyncStartResponse) error {
	keys := make([]library.Key, 0, len(req.Keys))
	for _, key := range req.Keys {
		keys = append(keys, key.key())
	}
	runID, err := s.daemon.SyncStart(s.ctx, daemon.SyncRequest{
		Keys:        keys,
		Rescan:      req.Rescan,
		SmartChoose: req.SmartChoose,
	})
	if err != nil {
		return err
	}
	resp.RunID = runID
	resp.Total = s.daemon.SyncState().Total
	s.logger.Info("sync run started", logging.String("run_id", runID))
	return nil
}

func (s *service) SyncState(_ SyncStateRequest, resp *SyncStateResponse) error {
	*resp = fromSnapshot(s.daemon.SyncState())
	return nil
}

func (s *service) SubmitChoice(req SubmitChoiceRequest, resp *SubmitChoiceResponse) error {
	id, err := provider.ParseID(req.Provider)
	if err != nil {
		return err
	}
	choice, err := req.Choice.choice()
	if err != nil {
		return err
	}
	if err := s.daemon.SubmitChoice(req.Key.key(), id, choice); err != nil {
		return err
	}
	resp.Applied = true
	return nil
}

func (s *service) SearchMore(req SearchMoreRequest, resp *SearchMoreResponse) error {
	id, err := provider.ParseID(req.Provider)
	if err != nil {
		return err
	}
	page, err := s.daemon.SearchMore(s.ctx, req.Key.key(), id, req.Query, req.Offset)
	if err != nil {
		return err
	}
	resp.CanShowMoreResults = page.CanShowMoreResults
	for _, result := range page.Results {
		resp.Results = append(resp.Results, fromSearchResult(result))
	}
	return nil
}

func (s *service) Restart(req RestartRequest, resp *RestartResponse) error {
	if err := s.daemon.RestartPath(req.Key.key()); err != nil {
		return err
	}
	resp.Restarted = true
	return nil
}

func (s *service) CancelSync(_ CancelSyncRequest, resp *CancelSyncResponse) error {
	resp.Cancelled = s.daemon.CancelSync()
	return nil
}

func (s *service) CancelTask(_ CancelTaskRequest, resp *CancelTaskResponse) error {
	resp.Cancelled = s.daemon.CancelTask()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
