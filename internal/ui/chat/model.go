// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatbot-tui/internal/auth"
	chatctl "github.com/jeranaias/chatbot-tui/internal/chat"
	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/render"
	"github.com/jeranaias/chatbot-tui/internal/storage"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
)

// inputCharLimit bounds a single draft.
const inputCharLimit = 16000

// Options configures the chat view.
type Options struct {
	// Controller owns the conversation. Required.
	Controller *chatctl.Controller

	// Renderer formats turns. Defaults to render.NewRenderer(render.DefaultOptions()).
	Renderer *render.Renderer

	// Theme defaults to styles.NewTheme().
	Theme *styles.Theme

	// Strings holds localized UI text.
	Strings i18n.Strings

	// Transcripts enables /save. Optional.
	Transcripts *storage.TranscriptStore

	// AuthStates delivers identity session changes. Optional.
	AuthStates <-chan auth.State

	// InitialAuth is the session state before the first update arrives.
	InitialAuth auth.State

	// ShowIndex prefixes each turn with its index.
	ShowIndex bool

	// Clipboard writes text to the system clipboard. Defaults to clipboard.WriteAll.
	Clipboard func(string) error
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctl         *chatctl.Controller
	renderer    *render.Renderer
	theme       *styles.Theme
	text        i18n.Strings
	transcripts *storage.TranscriptStore
	authStates  <-chan auth.State
	clipboard   func(string) error
	keys        KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Status
	authState   auth.State
	dispatching bool
	showIndex   bool
	showHelp    bool
	notice      string
	noticeError bool
	noticeSeq   int
}

// New creates a chat view.
func New(opts Options) Model {
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(render.DefaultOptions())
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Strings == (i18n.Strings{}) {
		opts.Strings = i18n.For(i18n.DefaultLocale)
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = opts.Theme.InputPrompt
	ti.Placeholder = opts.Strings.InputPlaceholder
	ti.CharLimit = inputCharLimit
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: styles.LineSpinner.Frames,
		FPS:    styles.LineSpinner.Duration(),
	}
	sp.Style = opts.Theme.Thinking.UnsetPaddingLeft()

	return Model{
		ctl:         opts.Controller,
		renderer:    opts.Renderer,
		theme:       opts.Theme,
		text:        opts.Strings,
		transcripts: opts.Transcripts,
		authStates:  opts.AuthStates,
		clipboard:   opts.Clipboard,
		keys:        DefaultKeyMap(),
		viewport:    viewport.New(0, 0),
		input:       ti,
		spinner:     sp,
		authState:   opts.InitialAuth,
		showIndex:   opts.ShowIndex,
	}
}

// Init starts the cursor blink and the session watcher.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForAuth(m.authStates))
}

// =============================================================================
// LAYOUT
// =============================================================================

// Fixed rows around the viewport: header, input border, input, status bar.
const chromeHeight = 4

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-len(m.input.Prompt)-2, 10)
	m.layout()
	m.ready = true
}

// layout sizes the viewport for the current chrome.
func (m *Model) layout() {
	h := m.height - chromeHeight
	if len(m.ctl.Snapshot().Pending) > 0 {
		h--
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(h, 1)
	m.refreshViewport()
}

// refreshViewport re-renders the transcript, keeping the scroll pinned to
// the bottom if it was there.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) setNotice(text string, isError bool) tea.Cmd {
	m.notice = text
	m.noticeError = isError
	m.noticeSeq++
	return expireNotice(m.noticeSeq)
}
