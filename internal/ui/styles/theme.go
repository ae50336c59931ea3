// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components for the chat view.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Header and status bar
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style

	// Conversation turns
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageIndex   lipgloss.Style
	Timestamp      lipgloss.Style
	UserText       lipgloss.Style
	ErrorTurn      lipgloss.Style
	Thinking       lipgloss.Style

	// Input area
	InputBorder    lipgloss.Style
	InputPrompt    lipgloss.Style
	AttachmentChip lipgloss.Style

	// Notices
	Notice      lipgloss.Style
	NoticeError lipgloss.Style
	Help        lipgloss.Style
	HelpKey     lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.MessageIndex = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.ErrorTurn = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(2)

	t.Thinking = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true).
		PaddingLeft(2)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AttachmentChip = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Padding(0, 1).
		MarginRight(1)

	t.Notice = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Help = lipgloss.NewStyle().
		Foreground(TextSecondary).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 2)

	t.HelpKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
}
