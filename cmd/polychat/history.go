package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/8agana/polychat/export"
	"github.com/8agana/polychat/session"
)

func newHistoryCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage saved sessions",
	}
	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryClearCmd(),
		newHistoryClearAllCmd(),
		newHistoryExportCmd(),
	)
	return cmd
}

func openStore() (*session.FileStore, error) {
	dir, err := session.DefaultDir()
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(dir)
}

func newHistoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			ids, err := store.List()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved sessions")
				return nil
			}
			for _, id := range ids {
				conv, err := store.Load(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  (%d messages, %d turns)\n", id, conv.Len(), conv.TurnCount)
			}
			return nil
		},
	}
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			conv, err := store.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range conv.Messages {
				fmt.Fprintf(out, "[%s]", m.Role)
				if m.Name != "" {
					fmt.Fprintf(out, " (%s)", m.Name)
				}
				fmt.Fprintln(out)
				if m.Content != "" {
					fmt.Fprintln(out, m.Content)
				}
				for _, tc := range m.ToolCalls {
					fmt.Fprintf(out, "-> %s(%s)\n", tc.Name, strings.TrimSpace(string(tc.Arguments)))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

func newHistoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Delete one saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			return store.Delete(args[0])
		},
	}
}

func newHistoryClearAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-all",
		Short: "Delete every saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			return store.ClearAll()
		},
	}
}

func newHistoryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <session-id> <path>",
		Short: "Export a session transcript (.json, .md or .html)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			conv, err := store.Load(args[0])
			if err != nil {
				return err
			}
			if conv.Len() == 0 {
				return fmt.Errorf("session %q is empty or does not exist", args[0])
			}
			return export.Save(args[1], conv)
		},
	}
}
