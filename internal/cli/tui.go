// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatbot-tui/internal/auth"
	chatui "github.com/jeranaias/chatbot-tui/internal/ui/chat"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
)

// sessionDebounce coalesces bursts of writes to the session file.
const sessionDebounce = 200 * time.Millisecond

// runTUI opens the full-screen chat.
func (a *app) runTUI(cmd *cobra.Command) error {
	if err := RequiresTTY("open the chat view"); err != nil {
		return err
	}

	tokens, sessionFile := a.tokens()
	ctl, err := a.newController(tokens)
	if err != nil {
		return err
	}
	defer ctl.Close()

	transcripts, err := a.transcripts()
	if err != nil {
		// Saving is optional; the chat still works without it.
		log.Warn().Err(err).Msg("transcript store unavailable")
		transcripts = nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var states <-chan auth.State
	if sessionFile != nil {
		states, err = sessionFile.Watch(ctx, sessionDebounce)
		if err != nil {
			log.Warn().Err(err).Str("path", sessionFile.Path).Msg("session watch unavailable")
		}
	}

	view := chatui.New(chatui.Options{
		Controller:  ctl,
		Renderer:    a.renderer(false),
		Theme:       styles.NewTheme(),
		Strings:     a.strings(),
		Transcripts: transcripts,
		AuthStates:  states,
		InitialAuth: auth.StateOf(ctx, tokens),
		ShowIndex:   a.cfg.UI.ShowIndex,
	})

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if a.cfg.UI.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := tea.NewProgram(view, opts...).Run(); err != nil {
		return errors.Wrap(err, "chat view")
	}
	return nil
}
