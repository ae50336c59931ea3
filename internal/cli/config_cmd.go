// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
		Long: `Show or change configuration values using dot notation.

Values set here are written to the config file. Environment variables
(CHATBOT_API_URL, CHATBOT_TOKEN, ...) still override the file at startup.`,
		Example: `  chatbot config show
  chatbot config get backend.base_url
  chatbot config set ui.locale en`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.String())
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (secrets redacted)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), a.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if args[0] == "auth.token" {
					return errors.New("auth.token is not printable")
				}
				v, err := a.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one configuration value and save the file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.setConfig(cmd, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List every configuration key",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.configPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}

// setConfig updates the file on disk, not the effective configuration,
// so environment overrides are never persisted.
func (a *app) setConfig(cmd *cobra.Command, key, value string) error {
	path, err := a.configPath()
	if err != nil {
		return err
	}

	onDisk := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(onDisk, path); err != nil {
			return err
		}
	}
	if err := onDisk.Set(key, value); err != nil {
		return err
	}
	onDisk.SetDefaults()
	if err := onDisk.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(onDisk, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated %s in %s\n", key, path)
	return nil
}
