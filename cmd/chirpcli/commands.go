package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jasonrowsell/chirpstore/pkg/client"
)

// run executes a single command line against a fresh connection and
// prints its output.
func (a *app) run(cmd *cobra.Command, parts []string) error {
	return a.withClient(func(cli *client.Client) error {
		output, err := executeCommand(cli, parts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	})
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the server status document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, []string{"STATUS"})
		},
	}
}

func (a *app) lenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Show the number of keys in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, []string{"LEN"})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var (
		count int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "list [start]",
		Short: "List keys at or after start",
		Long: `List keys in lexicographic order beginning at start.

With --all every remaining key is listed, following cursors page by page.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := ""
			if len(args) == 1 {
				start = args[0]
			}
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			if all {
				return a.scan(cmd, start, count)
			}
			return a.run(cmd, []string{"LIST", start, strconv.Itoa(count)})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Maximum keys per page (0 uses the server default)")
	cmd.Flags().BoolVar(&all, "all", false, "Follow cursors until every key is listed")
	return cmd
}

func (a *app) scan(cmd *cobra.Command, start string, pageSize int) error {
	return a.withClient(func(cli *client.Client) error {
		out := cmd.OutOrStdout()
		return cli.Scan(start, pageSize, func(key []byte) error {
			_, err := fmt.Fprintf(out, "%s\n", key)
			return err
		})
	})
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, []string{"GET", args[0]})
		},
	}
}

func (a *app) sizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "size <key>",
		Short: "Show the size of a value (legacy revision only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, []string{"SIZE", args[0]})
		},
	}
}
