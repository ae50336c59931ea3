// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatbot-tui/internal/auth"
	chatctl "github.com/jeranaias/chatbot-tui/internal/chat"
)

// noticeTTL is how long a status notice stays visible.
const noticeTTL = 4 * time.Second

// DispatchDoneMsg reports a finished Send or Regenerate.
type DispatchDoneMsg struct {
	Result chatctl.Result
	Err    error
}

// AuthStateMsg reports an identity session change.
type AuthStateMsg struct {
	State auth.State
}

// authClosedMsg signals the session watcher has stopped.
type authClosedMsg struct{}

// noticeMsg sets the status notice.
type noticeMsg struct {
	Text  string
	Error bool
}

// clearNoticeMsg expires a notice if it is still the current one.
type clearNoticeMsg struct {
	seq int
}

// sendCmd runs a Send on the controller.
func sendCmd(ctl *chatctl.Controller) tea.Cmd {
	return func() tea.Msg {
		res, err := ctl.Send(context.Background())
		return DispatchDoneMsg{Result: res, Err: err}
	}
}

// regenerateCmd runs a Regenerate on the controller.
func regenerateCmd(ctl *chatctl.Controller, index int) tea.Cmd {
	return func() tea.Msg {
		res, err := ctl.Regenerate(context.Background(), index)
		return DispatchDoneMsg{Result: res, Err: err}
	}
}

// waitForAuth receives the next session state.
func waitForAuth(states <-chan auth.State) tea.Cmd {
	if states == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-states
		if !ok {
			return authClosedMsg{}
		}
		return AuthStateMsg{State: s}
	}
}

func expireNotice(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return clearNoticeMsg{seq: seq}
	})
}
