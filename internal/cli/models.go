// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/model"
)

func newModelsCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "List selectable models",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(model.Models, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			for _, m := range model.Models {
				marker := "  "
				if m.ID == a.cfg.DefaultModel {
					marker = "* "
				}
				fmt.Fprintf(out, "%s%-20s %-20s %s\n", marker, m.ID, m.Name, dimStyle.Render(m.Description))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}
