package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ludex/internal/daemonctl"
	"ludex/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ludex daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the ludex daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the ludex daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonStatusLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Library Roots", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range libraryRootLines(cfg.Paths.LibraryRoots, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Library", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := [][]string{
				{"Paths", fmt.Sprintf("%d", statusResp.Paths)},
				{"Games", fmt.Sprintf("%d", statusResp.Games)},
				{"Excluded", fmt.Sprintf("%d", statusResp.Excluded)},
				{"Sync runs", fmt.Sprintf("%d", statusResp.SyncRuns)},
			}
			fmt.Fprintln(stdout, renderTable([]string{"Metric", "Count"}, rows, alignLeft, alignRight))
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 6)
	if status.Running {
		lines = append(lines, renderStatusLine("Ludex", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Ludex", statusWarn, "Not running (run `ludex start`)", colorize))
	}

	dbKind := statusOK
	dbDetail := status.DBPath
	if !status.IntegrityCheck {
		dbKind = statusWarn
		if dbDetail == "" {
			dbDetail = "not initialized"
		} else {
			dbDetail += " (integrity check failed)"
		}
	}
	lines = append(lines, renderStatusLine("Database", dbKind, dbDetail, colorize))

	if status.SyncActive {
		lines = append(lines, renderStatusLine("Sync", statusInfo, "Run in progress", colorize))
	} else if status.LastSyncAt != "" {
		lines = append(lines, renderStatusLine("Sync", statusOK, fmt.Sprintf("Last run %s", status.LastSyncAt), colorize))
	} else {
		lines = append(lines, renderStatusLine("Sync", statusInfo, "Never run", colorize))
	}
	return lines
}

func libraryRootLines(roots []string, colorize bool) []string {
	if len(roots) == 0 {
		return []string{renderStatusLine("Roots", statusWarn, "None configured (set paths.library_roots)", colorize)}
	}
	lines := make([]string, 0, len(roots))
	for _, root := range roots {
		info, err := os.Stat(root)
		switch {
		case err != nil:
			lines = append(lines, renderStatusLine(root, statusError, "Not accessible", colorize))
		case !info.IsDir():
			lines = append(lines, renderStatusLine(root, statusError, "Not a directory", colorize))
		default:
			lines = append(lines, renderStatusLine(root, statusOK, "Ready", colorize))
		}
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
