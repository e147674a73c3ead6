package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ludex/internal/ipc"
)

const syncPollInterval = 300 * time.Millisecond

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var rescan bool
	var smartChoose bool
	var detach bool

	syncCmd := &cobra.Command{
		Use:   "sync [LIBRARY/DIR...]",
		Short: "Reconcile library paths against metadata providers",
		Long: `Start a sync run and resolve each candidate folder interactively.
Without arguments every unmatched folder under the configured library roots
is queued; with LIBRARY/DIR arguments only those paths are synced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([]ipc.PathKey, 0, len(args))
			for _, arg := range args {
				key, err := parsePathArg(arg)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}

			req := ipc.SyncStartRequest{Keys: keys, Rescan: rescan}
			if cmd.Flags().Changed("smart-choose") {
				req.SmartChoose = &smartChoose
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SyncStart(req)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Sync run %s started (%d paths)\n", resp.RunID, resp.Total)
				if detach {
					fmt.Fprintln(stdout, "Run continues in the daemon; follow it with `ludex sync status`")
					return nil
				}
				return runSyncInteractive(cmd, client)
			})
		},
	}

	syncCmd.Flags().BoolVar(&rescan, "rescan", false, "Re-sync folders that already have a confirmed game")
	syncCmd.Flags().BoolVar(&smartChoose, "smart-choose", false, "Auto-accept single exact name matches")
	syncCmd.Flags().BoolVar(&detach, "detach", false, "Start the run without attaching interactively")

	syncCmd.AddCommand(newSyncStatusCommand(ctx))
	syncCmd.AddCommand(newSyncCancelCommand(ctx))
	syncCmd.AddCommand(newSyncRestartCommand(ctx))

	return syncCmd
}

func newSyncStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the active or last sync run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				state, err := client.SyncState()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if state == nil || state.RunID == "" {
					fmt.Fprintln(stdout, "No sync run recorded")
					return nil
				}
				fmt.Fprintf(stdout, "Run %s: %s, %d/%d paths processed\n", state.RunID, runActivity(state), state.Processed, state.Total)
				if state.Task != nil && state.Task.Message != "" {
					fmt.Fprintf(stdout, "Task: %s\n", state.Task.Message)
				}
				if len(state.Paths) > 0 {
					fmt.Fprintln(stdout, renderTable([]string{"Path", "Status"}, pathStatusRows(state.Paths)))
				}
				return nil
			})
		},
	}
}

func newSyncCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the active sync run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CancelSync()
				if err != nil {
					return err
				}
				if resp != nil && resp.Cancelled {
					fmt.Fprintln(cmd.OutOrStdout(), "Sync run cancelled")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "No active sync run")
				}
				return nil
			})
		},
	}
}

func newSyncRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart LIBRARY/DIR",
		Short: "Restart one finished path within the active run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parsePathArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Restart(key)
				if err != nil {
					return err
				}
				if resp != nil && resp.Restarted {
					fmt.Fprintf(cmd.OutOrStdout(), "Restarted %s/%s\n", key.Library, key.Dir)
				}
				return nil
			})
		},
	}
}

// syncActionKind enumerates what the user asked for at the prompt.
type syncActionKind int

const (
	actionNone syncActionKind = iota
	actionHelp
	actionAccept
	actionMore
	actionSearch
	actionSkip
	actionExclude
	actionCancelPath
	actionQuit
)

type syncAction struct {
	kind  syncActionKind
	index int
	query string
}

// parseSyncInput interprets one line of prompt input. A bare number accepts
// that result; a leading slash starts a new search.
func parseSyncInput(line string) (syncAction, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return syncAction{kind: actionNone}, nil
	}
	if strings.HasPrefix(line, "/") {
		query := strings.TrimSpace(strings.TrimPrefix(line, "/"))
		if query == "" {
			return syncAction{}, fmt.Errorf("empty search query")
		}
		return syncAction{kind: actionSearch, query: query}, nil
	}
	if index, err := strconv.Atoi(line); err == nil {
		if index < 1 {
			return syncAction{}, fmt.Errorf("result numbers start at 1")
		}
		return syncAction{kind: actionAccept, index: index}, nil
	}

	word, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(word) {
	case "h", "help", "?":
		return syncAction{kind: actionHelp}, nil
	case "m", "more":
		return syncAction{kind: actionMore}, nil
	case "s", "skip":
		return syncAction{kind: actionSkip}, nil
	case "e", "exclude":
		return syncAction{kind: actionExclude}, nil
	case "c", "cancel":
		return syncAction{kind: actionCancelPath}, nil
	case "q", "quit":
		return syncAction{kind: actionQuit}, nil
	case "search":
		query := strings.TrimSpace(rest)
		if query == "" {
			return syncAction{}, fmt.Errorf("search needs a query, e.g. `search hades`")
		}
		return syncAction{kind: actionSearch, query: query}, nil
	}
	return syncAction{}, fmt.Errorf("unknown input %q (h for help)", line)
}

// promptKey identifies one rendered prompt so polling does not repeat it.
type promptKey struct {
	key      ipc.PathKey
	provider string
	query    string
	offset   int
	results  int
}

func runSyncInteractive(cmd *cobra.Command, client *ipc.Client) error {
	stdout := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())
	var lastPrompt promptKey

	for {
		state, err := client.SyncState()
		if err != nil {
			return err
		}
		if state == nil || !state.Active {
			printRunSummary(stdout, state)
			return nil
		}

		path, entry, ok := openSearchEntry(state)
		if !ok {
			time.Sleep(syncPollInterval)
			continue
		}
		prompt := promptKey{
			key:      path.Key,
			provider: entry.Provider,
			query:    entry.Query,
			offset:   entry.Offset,
			results:  len(entry.Results),
		}
		if prompt == lastPrompt {
			time.Sleep(syncPollInterval)
			continue
		}
		printSearchPrompt(stdout, path, entry)
		lastPrompt = prompt

		quit, err := promptLoop(stdout, reader, client, path, entry)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// promptLoop reads input until one daemon mutation succeeds. It returns true
// when the session should end.
func promptLoop(stdout io.Writer, reader *bufio.Reader, client *ipc.Client, path ipc.PathStateDTO, entry ipc.SearchEntryDTO) (bool, error) {
	for {
		fmt.Fprint(stdout, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(stdout, "\nInput closed; run continues in the daemon (`ludex sync status`)")
				return true, nil
			}
			return true, err
		}

		action, parseErr := parseSyncInput(line)
		if parseErr != nil {
			fmt.Fprintln(stdout, parseErr)
			continue
		}

		var applyErr error
		switch action.kind {
		case actionNone:
			continue
		case actionHelp:
			printSyncHelp(stdout)
			continue
		case actionQuit:
			if _, err := client.CancelSync(); err != nil {
				fmt.Fprintf(stdout, "cancel failed: %v\n", err)
				continue
			}
			fmt.Fprintln(stdout, "Cancelling run...")
			return false, nil
		case actionAccept:
			if action.index < 1 || action.index > len(entry.Results) {
				fmt.Fprintf(stdout, "pick a number between 1 and %d\n", len(entry.Results))
				continue
			}
			result := entry.Results[action.index-1]
			applyErr = submitChoice(client, path, entry, ipc.ChoiceDTO{Kind: ipc.ChoiceAccept, Result: &result})
		case actionMore:
			if entry.CanShowMoreResults != nil && !*entry.CanShowMoreResults {
				fmt.Fprintln(stdout, "provider reports no more results; try a new search instead")
				continue
			}
			_, applyErr = client.SearchMore(ipc.SearchMoreRequest{
				Key:      path.Key,
				Provider: entry.Provider,
				Query:    entry.Query,
				Offset:   nextSearchOffset(entry),
			})
		case actionSearch:
			applyErr = submitChoice(client, path, entry, ipc.ChoiceDTO{Kind: ipc.ChoiceNewSearch, Query: action.query})
		case actionSkip:
			applyErr = submitChoice(client, path, entry, ipc.ChoiceDTO{Kind: ipc.ChoiceSkip})
		case actionExclude:
			applyErr = submitChoice(client, path, entry, ipc.ChoiceDTO{Kind: ipc.ChoiceExclude})
		case actionCancelPath:
			applyErr = submitChoice(client, path, entry, ipc.ChoiceDTO{Kind: ipc.ChoiceCancel})
		}
		if applyErr != nil {
			fmt.Fprintf(stdout, "error: %v\n", applyErr)
			continue
		}
		return false, nil
	}
}

func submitChoice(client *ipc.Client, path ipc.PathStateDTO, entry ipc.SearchEntryDTO, choice ipc.ChoiceDTO) error {
	_, err := client.SubmitChoice(ipc.SubmitChoiceRequest{
		Key:      path.Key,
		Provider: entry.Provider,
		Choice:   choice,
	})
	return err
}

// openSearchEntry returns the current path's undecided search entry, if the
// daemon is waiting on a choice for it.
func openSearchEntry(state *ipc.SyncStateResponse) (ipc.PathStateDTO, ipc.SearchEntryDTO, bool) {
	if state == nil || state.CurrentPath == nil {
		return ipc.PathStateDTO{}, ipc.SearchEntryDTO{}, false
	}
	for _, path := range state.Paths {
		if path.Key != *state.CurrentPath || path.Status != "running" {
			continue
		}
		for _, entry := range path.Searches {
			if entry.Provider == path.CurrentProvider && entry.Searched && entry.Choice == "" {
				return path, entry, true
			}
		}
	}
	return ipc.PathStateDTO{}, ipc.SearchEntryDTO{}, false
}

func printSearchPrompt(stdout io.Writer, path ipc.PathStateDTO, entry ipc.SearchEntryDTO) {
	fmt.Fprintf(stdout, "\n%s/%s: %s results for %q\n", path.Key.Library, path.Key.Dir, entry.Provider, entry.Query)
	if len(entry.Results) == 0 {
		fmt.Fprintln(stdout, "No results; try `/another title`, skip, or exclude")
		return
	}
	fmt.Fprintln(stdout, renderTable([]string{"#", "Name", "Released", "Critic", "User"}, searchResultRows(entry), alignRight, alignLeft, alignLeft, alignRight, alignRight))
	fmt.Fprintln(stdout, "number accepts a result, m more, /text new search, s skip, e exclude, c cancel path, q quit")
}

func printSyncHelp(stdout io.Writer) {
	fmt.Fprintln(stdout, "  1..n      accept that result")
	fmt.Fprintln(stdout, "  m, more   fetch the next page from this provider")
	fmt.Fprintln(stdout, "  /text     search this provider with a new query")
	fmt.Fprintln(stdout, "  s, skip   leave the folder unmatched for this run")
	fmt.Fprintln(stdout, "  e, exclude never offer this folder again")
	fmt.Fprintln(stdout, "  c, cancel cancel this folder")
	fmt.Fprintln(stdout, "  q, quit   cancel the whole run and exit")
}

// nextSearchOffset is where the provider's next page starts. Results
// accumulates every page fetched so far while Offset is only the latest
// page's start, so the accumulated count is the correct offset.
func nextSearchOffset(entry ipc.SearchEntryDTO) int {
	return len(entry.Results)
}

func searchResultRows(entry ipc.SearchEntryDTO) [][]string {
	rows := make([][]string, 0, len(entry.Results))
	for i, result := range entry.Results {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			result.Name,
			result.ReleaseDate,
			formatScore(result.CriticScore),
			formatScore(result.UserScore),
		})
	}
	return rows
}

func formatScore(score *float64) string {
	if score == nil {
		return "-"
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

func pathStatusRows(paths []ipc.PathStateDTO) [][]string {
	rows := make([][]string, 0, len(paths))
	for _, path := range paths {
		rows = append(rows, []string{
			path.Key.Library + "/" + path.Key.Dir,
			path.Status,
		})
	}
	return rows
}

func runActivity(state *ipc.SyncStateResponse) string {
	if state.Active {
		return "active"
	}
	return "finished"
}

func printRunSummary(stdout io.Writer, state *ipc.SyncStateResponse) {
	if state == nil || state.RunID == "" {
		fmt.Fprintln(stdout, "No sync run recorded")
		return
	}
	fmt.Fprintf(stdout, "\nRun %s finished: %d/%d paths processed\n", state.RunID, state.Processed, state.Total)
	if len(state.Paths) > 0 {
		fmt.Fprintln(stdout, renderTable([]string{"Path", "Status"}, pathStatusRows(state.Paths)))
	}
	if state.LastOutcome != nil {
		fmt.Fprintf(stdout, "Outcome: %s (%s)\n", state.LastOutcome.Kind, state.LastOutcome.Elapsed)
	}
}
