package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ludex/internal/ipc"
)

func newPathsCommand(ctx *commandContext) *cobra.Command {
	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "Manage registered library paths",
	}

	pathsCmd.AddCommand(newPathsListCommand(ctx))
	pathsCmd.AddCommand(newPathsAddCommand(ctx))
	pathsCmd.AddCommand(newPathsRemoveCommand(ctx))

	return pathsCmd
}

func newPathsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered library paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PathsList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp == nil || len(resp.Paths) == 0 {
					fmt.Fprintln(stdout, "No library paths registered")
					return nil
				}
				rows := make([][]string, 0, len(resp.Paths))
				for _, p := range resp.Paths {
					rows = append(rows, []string{
						fmt.Sprintf("%d", p.ID),
						p.Library,
						p.Platform,
						p.Dir,
						p.GameName,
					})
				}
				fmt.Fprintln(stdout, renderTable([]string{"ID", "Library", "Platform", "Directory", "Game"}, rows, alignRight))
				return nil
			})
		},
	}
}

func newPathsAddCommand(ctx *commandContext) *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "add LIBRARY DIR",
		Short: "Register a candidate game folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			library := strings.TrimSpace(args[0])
			dir := strings.TrimSpace(args[1])
			if library == "" || dir == "" {
				return fmt.Errorf("library and directory are required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PathsAdd(ipc.PathsAddRequest{
					Library:  library,
					Platform: strings.TrimSpace(platform),
					Dir:      dir,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s/%s (id %d)\n", resp.Path.Library, resp.Path.Dir, resp.Path.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "Platform label for the folder (e.g. PC, PS5)")
	return cmd
}

func newPathsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove LIBRARY/DIR",
		Short: "Remove a registered path and its game data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parsePathArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PathsRemove(key)
				if err != nil {
					return err
				}
				if resp != nil && resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s/%s\n", key.Library, key.Dir)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Path %s/%s was not removed\n", key.Library, key.Dir)
				}
				return nil
			})
		},
	}
}

// parsePathArg splits a LIBRARY/DIR argument into a path key. The directory
// part may itself contain slashes; only the first one separates the library.
func parsePathArg(arg string) (ipc.PathKey, error) {
	library, dir, found := strings.Cut(strings.TrimSpace(arg), "/")
	library = strings.TrimSpace(library)
	dir = strings.TrimSpace(dir)
	if !found || library == "" || dir == "" {
		return ipc.PathKey{}, fmt.Errorf("invalid path %q: expected LIBRARY/DIR", arg)
	}
	return ipc.PathKey{Library: library, Dir: dir}, nil
}
