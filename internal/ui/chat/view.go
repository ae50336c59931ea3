// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatbot-tui/internal/auth"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// appName is shown in the header.
const appName = "chatbot"

// View renders the chat view.
// Layout: header (1) + transcript (viewport) + [attachments (1)] + input (2) + status (1)
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	sections := []string{m.renderHeader(), m.viewport.View()}
	if chips := m.renderAttachments(); chips != "" {
		sections = append(sections, chips)
	}
	sections = append(sections, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	content := m.theme.HeaderTitle.Render(appName) +
		m.theme.HeaderModel.Render(" | "+m.modelName())

	switch m.authState {
	case auth.StateSignedOut:
		content += " " + styles.RenderError(m.text.SignedOut)
	case auth.StateNeedsPasswordReset:
		content += " " + styles.RenderWarning(m.text.PasswordReset)
	}

	return m.theme.Header.Width(m.width).MaxHeight(1).Render(content)
}

func (m Model) modelName() string {
	id := m.ctl.Model()
	if info, ok := model.GetModelInfo(id); ok {
		return info.Name
	}
	return id
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every turn, plus the thinking line while a
// dispatch is in flight.
func (m Model) renderTranscript() string {
	msgs := m.ctl.Messages()
	if len(msgs) == 0 && !m.dispatching {
		return m.renderEmptyState()
	}

	width := max(m.viewport.Width, 20)
	parts := make([]string, 0, len(msgs)+1)
	for i, msg := range msgs {
		parts = append(parts, m.renderMessage(i, msg, width))
	}
	if m.dispatching {
		parts = append(parts, m.theme.Thinking.Render(m.spinner.View()+" "+m.text.Thinking))
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderMessage(index int, msg model.Message, width int) string {
	var label string
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	} else {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if m.showIndex {
		label = m.theme.MessageIndex.Render(fmt.Sprintf("#%d ", index)) + label
	}
	header := label + " " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	var body string
	switch {
	case m.isErrorTurn(msg):
		body = m.theme.ErrorTurn.Render(styles.StatusIndicators.Error + " " + msg.Content.Text)
	case msg.Role == model.RoleUser && !msg.Content.IsComposite():
		body = m.theme.UserText.Width(width).Render(msg.Content.Text)
	default:
		body = m.renderer.Message(msg, width)
	}
	return header + "\n" + strings.TrimRight(body, "\n") + "\n"
}

// isErrorTurn reports whether msg is the fixed dispatch error turn.
func (m Model) isErrorTurn(msg model.Message) bool {
	return msg.Role == model.RoleAssistant &&
		!msg.Content.IsComposite() &&
		msg.Content.Text == m.text.DispatchError
}

func (m Model) renderEmptyState() string {
	lines := []string{
		m.theme.HeaderTitle.Render(appName),
		"",
		m.theme.Notice.Render(m.text.InputPlaceholder),
		m.theme.Notice.Render("/attach <path> adds an image. F1 shows help."),
	}
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, lines...))
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderAttachments() string {
	pending := m.ctl.Snapshot().Pending
	if len(pending) == 0 {
		return ""
	}
	chips := make([]string, len(pending))
	for i, p := range pending {
		chips[i] = m.theme.AttachmentChip.Render(fmt.Sprintf("%d %s", i+1, util.TruncateWidth(p.Label, 32)))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(chips, ""))
}

func (m Model) renderInput() string {
	return m.theme.InputBorder.Width(m.width).MaxHeight(2).Render(m.input.View())
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	avail := max(m.width-2, 10)

	help := make([]string, 0, 4)
	for _, b := range m.keys.ShortHelp() {
		help = append(help, m.theme.StatusKey.Render(b.Help().Key)+" "+b.Help().Desc)
	}
	right := strings.Join(help, "  ")

	text := m.notice
	style := m.theme.Notice
	switch {
	case m.notice != "" && m.noticeError:
		style = m.theme.NoticeError
	case m.notice != "":
	case m.dispatching:
		text = m.text.Thinking
	default:
		text = fmt.Sprintf("%d messages", len(m.ctl.Messages()))
	}

	// Drop the key hints before truncating the text.
	if util.StringWidth(text)+lipgloss.Width(right)+2 > avail {
		right = ""
	}
	left := style.Render(util.TruncateWidth(text, avail))
	if m.dispatching && m.notice == "" {
		left = m.spinner.View() + " " + left
	}
	gap := max(avail-lipgloss.Width(left)-lipgloss.Width(right), 1)

	return m.theme.StatusBar.Width(m.width).MaxHeight(1).
		Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.HeaderTitle.Render("Keys") + "\n\n")
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			fmt.Fprintf(&sb, "%s  %s\n", m.theme.HelpKey.Render(fmt.Sprintf("%-10s", b.Help().Key)), b.Help().Desc)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(m.theme.HeaderTitle.Render("Commands") + "\n\n")
	for _, c := range commandHelp {
		fmt.Fprintf(&sb, "%s  %s\n", m.theme.HelpKey.Render(fmt.Sprintf("%-24s", c[0])), c[1])
	}

	box := m.theme.Help.Render(strings.TrimRight(sb.String(), "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
