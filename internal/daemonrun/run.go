// Package daemonrun hosts the ludexd runtime loop so both the standalone
// daemon binary and the CLI's hidden daemon command share one startup path.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"ludex/internal/config"
	"ludex/internal/daemon"
	"ludex/internal/ipc"
	"ludex/internal/library"
	"ludex/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath overrides the control socket location. Empty uses the
	// configured default.
	SocketPath string
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the ludex daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New(LoggerOptions(cfg, opts.LogLevel))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "ludexd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := library.Open(cfg)
	if err != nil {
		logger.Error("open library store", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start", logging.Error(err))
	}

	<-signalCtx.Done()
	logger.Info("ludexd shutting down")
	return nil
}

// LoggerOptions maps daemon logging configuration onto logger options. The
// daemon always tees to the log file so `ludex` can surface history later.
func LoggerOptions(cfg *config.Config, levelOverride string) logging.Options {
	outputs := []string{"stderr"}
	if path := cfg.LogFilePath(); path != "" {
		outputs = append(outputs, path)
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(levelOverride) != "" {
		level = levelOverride
	}
	return logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
