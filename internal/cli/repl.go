// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// repl.go - Line-editing chat REPL.
//
// USABILITY: Arrow-key history and line editing through liner, with the
// same slash commands as the full-screen view.
//
// Command: chat
// Short:   Start an interactive chat session in the terminal's scrollback
//
// Interactive Commands (during chat):
//   /attach <path>       Attach an image to the next message
//   /detach <n>          Remove pending attachment n (1-based)
//   /attachments         List pending attachments
//   /send                Send pending attachments without text
//   /regen [n]           Regenerate turn n (default: last reply)
//   /model [id]          Show or switch model
//   /history             Show the conversation
//   /copy [n]            Copy a message to the clipboard
//   /save [md|json] [p]  Save a transcript, or export to path p
//   /new, /clear         Start a new conversation
//   /help, /h            Show available commands
//   /quit, /q            Exit chat
//   Ctrl+D               Exit chat

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	chatctl "github.com/jeranaias/chatbot-tui/internal/chat"
	"github.com/jeranaias/chatbot-tui/internal/config"
	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/render"
	"github.com/jeranaias/chatbot-tui/internal/storage"
	"github.com/jeranaias/chatbot-tui/internal/ui/styles"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	dimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(styles.Purple).
				Bold(true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file.
// SECURITY: History can contain prompts; the file is 0600.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// COMMAND
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session in the terminal scrollback",
		Long: `Start a line-editing chat session.

Type a message and press Enter to send it. Lines starting with / are
commands; type /help to list them.`,
		Example: `  chatbot chat
  chatbot chat --model claude-3-opus --locale en`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationQuietLog: quietAlways},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}
}

func (a *app) runChat(cmd *cobra.Command) error {
	tokens, _ := a.tokens()
	ctl, err := a.newController(tokens)
	if err != nil {
		return err
	}
	defer ctl.Close()

	transcripts, err := a.transcripts()
	if err != nil {
		log.Warn().Err(err).Msg("transcript store unavailable")
		transcripts = nil
	}

	out := cmd.OutOrStdout()
	session := &replSession{
		ctl:         ctl,
		renderer:    a.renderer(!ColorsEnabled(out)),
		transcripts: transcripts,
		text:        a.strings(),
		out:         out,
		width:       TerminalWidth(out),
		clipboard:   clipboard.WriteAll,
	}

	input := NewChatCLI()
	defer input.Close()

	session.printWelcome()
	ctx := cmd.Context()
	for {
		line, err := input.ReadInput("> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintln(out, dimStyle.Render("(type /quit or press Ctrl+D to exit)"))
			continue
		case errors.Is(err, io.EOF):
			fmt.Fprintln(out)
			return nil
		case err != nil:
			return errors.Wrap(err, "read input")
		}

		if session.handleLine(ctx, line) {
			return nil
		}
	}
}

// =============================================================================
// SESSION
// =============================================================================

// replSession turns input lines into controller operations and prints
// the outcome.
type replSession struct {
	ctl         *chatctl.Controller
	renderer    *render.Renderer
	transcripts *storage.TranscriptStore
	text        i18n.Strings
	out         io.Writer
	width       int
	clipboard   func(string) error
}

func (s *replSession) printWelcome() {
	fmt.Fprintln(s.out, welcomeStyle.Render("chatbot")+" "+infoStyle.Render("model "+s.ctl.Model()))
	fmt.Fprintln(s.out, dimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(s.out)
}

// handleLine processes one line of input and reports whether to quit.
func (s *replSession) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, "/") {
		return s.runCommand(ctx, line)
	}

	if err := s.ctl.SetDraft(line); err != nil {
		s.printError(err)
		return false
	}
	s.send(ctx)
	return false
}

func (s *replSession) send(ctx context.Context) {
	fmt.Fprintln(s.out, dimStyle.Render(s.text.Thinking))
	res, err := s.ctl.Send(ctx)
	if err != nil {
		if errors.Is(err, chatctl.ErrAttachmentEncode) {
			s.printError(errors.New("could not read an attachment; your message and attachments were kept"))
			return
		}
		s.printError(err)
		return
	}
	s.printResult(res)
}

func (s *replSession) printResult(res chatctl.Result) {
	index := len(s.ctl.Messages()) - 1
	label := assistantLabelStyle.Render(fmt.Sprintf("#%d %s", index, model.RoleAssistant.DisplayName()))
	fmt.Fprintln(s.out, label)
	if res.Outcome.Failed() {
		fmt.Fprintln(s.out, styles.RenderError(res.Message.Content.PlainText()))
	} else {
		fmt.Fprintln(s.out, s.renderer.Message(res.Message, s.width))
	}
	fmt.Fprintln(s.out)
}

func (s *replSession) printError(err error) {
	fmt.Fprintln(s.out, styles.RenderError(err.Error()))
}

func (s *replSession) printOK(msg string) {
	fmt.Fprintln(s.out, styles.RenderSuccess(msg))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// replCommand runs a slash command and reports whether to quit.
type replCommand func(s *replSession, ctx context.Context, args []string) bool

var replCommands = map[string]replCommand{
	"/attach":      (*replSession).cmdAttach,
	"/detach":      (*replSession).cmdDetach,
	"/attachments": (*replSession).cmdAttachments,
	"/send":        (*replSession).cmdSend,
	"/regen":       (*replSession).cmdRegen,
	"/model":       (*replSession).cmdModel,
	"/history":     (*replSession).cmdHistory,
	"/copy":        (*replSession).cmdCopy,
	"/save":        (*replSession).cmdSave,
	"/new":         (*replSession).cmdNew,
	"/clear":       (*replSession).cmdNew,
	"/help":        (*replSession).cmdHelp,
	"/h":           (*replSession).cmdHelp,
	"/quit":        (*replSession).cmdQuit,
	"/q":           (*replSession).cmdQuit,
	"/exit":        (*replSession).cmdQuit,
}

var replHelp = [][2]string{
	{"/attach <path>", "Attach an image to the next message"},
	{"/detach <n>", "Remove pending attachment n"},
	{"/attachments", "List pending attachments"},
	{"/send", "Send pending attachments without text"},
	{"/regen [n]", "Regenerate turn n (default: last reply)"},
	{"/model [id]", "Show or switch model"},
	{"/history", "Show the conversation"},
	{"/copy [n]", "Copy a message to the clipboard"},
	{"/save [md|json] [path]", "Save a transcript, or export to path"},
	{"/new", "Start a new conversation"},
	{"/help", "Show this help"},
	{"/quit", "Exit chat"},
}

func (s *replSession) runCommand(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	handler, ok := replCommands[strings.ToLower(fields[0])]
	if !ok {
		s.printError(errors.Errorf("unknown command %s (type /help)", fields[0]))
		return false
	}
	return handler(s, ctx, fields[1:])
}

func (s *replSession) cmdAttach(_ context.Context, args []string) bool {
	if len(args) == 0 {
		s.printError(errors.New("usage: /attach <path>"))
		return false
	}
	info, err := s.ctl.AttachFile(util.ExpandHome(strings.Join(args, " ")))
	if err != nil {
		s.printError(err)
		return false
	}
	s.printOK(fmt.Sprintf("Attached %s (%s)", info.Name, info.Label))
	return false
}

func (s *replSession) cmdDetach(_ context.Context, args []string) bool {
	if len(args) != 1 {
		s.printError(errors.New("usage: /detach <n>"))
		return false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		s.printError(errors.Errorf("invalid attachment number '%s'", args[0]))
		return false
	}
	if err := s.ctl.RemoveAttachment(n - 1); err != nil {
		s.printError(err)
		return false
	}
	s.printOK(fmt.Sprintf("Removed attachment %d", n))
	return false
}

func (s *replSession) cmdAttachments(_ context.Context, _ []string) bool {
	pending := s.ctl.Snapshot().Pending
	if len(pending) == 0 {
		fmt.Fprintln(s.out, dimStyle.Render("No pending attachments."))
		return false
	}
	for i, p := range pending {
		fmt.Fprintf(s.out, "  %d  %s %s\n", i+1, p.Name, dimStyle.Render("("+p.Label+")"))
	}
	return false
}

func (s *replSession) cmdSend(ctx context.Context, _ []string) bool {
	s.send(ctx)
	return false
}

func (s *replSession) cmdRegen(ctx context.Context, args []string) bool {
	index := s.ctl.LastAssistantIndex()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			s.printError(errors.Errorf("invalid message number '%s'", args[0]))
			return false
		}
		index = n
	}
	if index < 0 {
		s.printError(errors.New("nothing to regenerate"))
		return false
	}

	fmt.Fprintln(s.out, dimStyle.Render(s.text.Thinking))
	res, err := s.ctl.Regenerate(ctx, index)
	if err != nil {
		s.printError(err)
		return false
	}
	s.printResult(res)
	return false
}

func (s *replSession) cmdModel(_ context.Context, args []string) bool {
	if len(args) == 0 {
		current := s.ctl.Model()
		for _, m := range model.Models {
			marker := "  "
			if m.ID == current {
				marker = "* "
			}
			fmt.Fprintf(s.out, "%s%-20s %s\n", marker, m.ID, dimStyle.Render(m.Description))
		}
		return false
	}
	if err := s.ctl.SelectModel(args[0]); err != nil {
		s.printError(err)
		return false
	}
	info, _ := model.GetModelInfo(args[0])
	s.printOK("Switched to " + info.Name)
	return false
}

func (s *replSession) cmdHistory(_ context.Context, _ []string) bool {
	msgs := s.ctl.Messages()
	if len(msgs) == 0 {
		fmt.Fprintln(s.out, dimStyle.Render("No messages yet."))
		return false
	}
	for i, m := range msgs {
		style := userLabelStyle
		if m.Role == model.RoleAssistant {
			style = assistantLabelStyle
		}
		fmt.Fprintln(s.out, style.Render(fmt.Sprintf("#%d %s", i, m.Role.DisplayName())))
		fmt.Fprintln(s.out, s.renderer.Message(m, s.width))
		fmt.Fprintln(s.out)
	}
	return false
}

func (s *replSession) cmdCopy(_ context.Context, args []string) bool {
	msgs := s.ctl.Messages()
	index := s.ctl.LastAssistantIndex()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			s.printError(errors.Errorf("invalid message number '%s'", args[0]))
			return false
		}
		index = n
	}
	if index < 0 || index >= len(msgs) {
		s.printError(errors.New("nothing to copy"))
		return false
	}
	if err := s.clipboard(msgs[index].Content.PlainText()); err != nil {
		s.printError(errors.Wrap(err, "copy to clipboard"))
		return false
	}
	s.printOK(fmt.Sprintf("Copied message #%d", index))
	return false
}

func (s *replSession) cmdSave(_ context.Context, args []string) bool {
	msgs := s.ctl.Messages()
	if len(msgs) == 0 {
		s.printError(errors.New("nothing to save"))
		return false
	}

	format := "json"
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "md", "markdown", "json":
			format = strings.ToLower(args[0])
			args = args[1:]
		}
	}
	t := storage.NewTranscript(s.ctl.Model(), msgs)

	if len(args) > 0 {
		path := util.ExpandHome(args[0])
		data, err := t.Export(format)
		if err == nil {
			err = util.AtomicWriteFile(path, data, 0600)
		}
		if err != nil {
			s.printError(errors.Wrap(err, "save transcript"))
			return false
		}
		s.printOK("Saved to " + path)
		return false
	}

	if s.transcripts == nil {
		s.printError(errors.New("transcript storage is not configured; use /save <path>"))
		return false
	}
	id, err := s.transcripts.Save(t)
	if err != nil {
		s.printError(err)
		return false
	}
	s.printOK("Saved transcript " + id)
	return false
}

func (s *replSession) cmdNew(_ context.Context, _ []string) bool {
	if err := s.ctl.Reset(); err != nil {
		s.printError(err)
		return false
	}
	s.renderer.Purge()
	s.printOK("Started a new conversation")
	return false
}

func (s *replSession) cmdHelp(_ context.Context, _ []string) bool {
	for _, h := range replHelp {
		fmt.Fprintf(s.out, "  %s %s\n", commandStyle.Render(fmt.Sprintf("%-24s", h[0])), h[1])
	}
	return false
}

func (s *replSession) cmdQuit(_ context.Context, _ []string) bool {
	return true
}
