// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/storage"
)

func newTranscriptsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transcripts",
		Aliases: []string{"history"},
		Short:   "Manage saved transcripts",
		Long: `List, show, search and delete transcripts saved with /save.

A transcript can be referenced by its list number, its full ID or a unique
suffix of the ID.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTranscripts(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved transcripts, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.listTranscripts(cmd)
			},
		},
		newTranscriptShowCommand(a),
		&cobra.Command{
			Use:   "search <query>",
			Short: "Find transcripts by title or content",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.transcripts()
				if err != nil {
					return err
				}
				metas, err := store.Search(strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(metas))
				return nil
			},
		},
		&cobra.Command{
			Use:     "delete <ref>",
			Aliases: []string{"rm"},
			Short:   "Delete a saved transcript",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := a.transcripts()
				if err != nil {
					return err
				}
				t, err := store.Resolve(args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(t.ID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted transcript "+t.ID)
				return nil
			},
		},
	)
	return cmd
}

func newTranscriptShowCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.transcripts()
			if err != nil {
				return err
			}
			t, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			data, err := t.Export(format)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "md" && ColorsEnabled(out) {
				fmt.Fprintln(out, a.renderer(false).Text(string(data), TerminalWidth(out)))
				return nil
			}
			fmt.Fprintln(out, strings.TrimRight(string(data), "\n"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format (md, json)")
	return cmd
}

func (a *app) listTranscripts(cmd *cobra.Command) error {
	store, err := a.transcripts()
	if err != nil {
		return err
	}
	metas, err := store.List()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), storage.FormatList(metas))
	return nil
}
