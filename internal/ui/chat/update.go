// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	chatctl "github.com/jeranaias/chatbot-tui/internal/chat"
)

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case DispatchDoneMsg:
		return m.handleDispatchDone(msg)

	case spinner.TickMsg:
		if !m.dispatching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// The user turn lands once attachments are encoded.
		m.refreshViewport()
		return m, cmd

	case AuthStateMsg:
		m.authState = msg.State
		return m, waitForAuth(m.authStates)

	case authClosedMsg:
		m.authStates = nil
		return m, nil

	case noticeMsg:
		return m, m.setNotice(msg.Text, msg.Error)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Close) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Regenerate):
		return m.regenerate(m.ctl.LastAssistantIndex())

	case key.Matches(msg, m.keys.Copy):
		return m.copyMessage(-1)

	case key.Matches(msg, m.keys.New):
		return m.newConversation()

	case key.Matches(msg, m.keys.Detach):
		n := len(m.ctl.Snapshot().Pending)
		if n == 0 {
			return m, nil
		}
		return m.detach(n - 1)

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// SEND / REGENERATE
// =============================================================================

// submit sends the input, or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if strings.HasPrefix(strings.TrimSpace(value), "/") {
		m.input.Reset()
		return m.handleCommand(strings.TrimSpace(value))
	}

	if m.dispatching {
		return m, nil
	}
	if strings.TrimSpace(value) == "" && len(m.ctl.Snapshot().Pending) == 0 {
		return m, nil
	}
	if err := m.ctl.SetDraft(value); err != nil {
		return m, m.setNotice(err.Error(), true)
	}

	m.input.Reset()
	return m.startDispatch(sendCmd(m.ctl))
}

func (m Model) regenerate(index int) (tea.Model, tea.Cmd) {
	if m.dispatching {
		return m, nil
	}
	if index < 0 {
		return m, m.setNotice("Nothing to regenerate", true)
	}
	return m.startDispatch(regenerateCmd(m.ctl, index))
}

func (m Model) startDispatch(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.dispatching = true
	m.notice = ""
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) handleDispatchDone(msg DispatchDoneMsg) (tea.Model, tea.Cmd) {
	m.dispatching = false

	var cmd tea.Cmd
	switch {
	case errors.Is(msg.Err, chatctl.ErrAttachmentEncode):
		// Nothing was sent; put the draft back for editing.
		m.input.SetValue(m.ctl.Snapshot().Draft)
		m.input.CursorEnd()
		cmd = m.setNotice(msg.Err.Error(), true)
	case msg.Err != nil:
		cmd = m.setNotice(msg.Err.Error(), true)
	default:
		log.Debug().
			Str("outcome", msg.Result.Outcome.String()).
			Dur("duration", msg.Result.Duration).
			Msg("dispatch finished")
	}

	m.layout()
	m.viewport.GotoBottom()
	return m, cmd
}
