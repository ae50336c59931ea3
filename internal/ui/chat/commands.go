// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/storage"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command.
type CommandHandler func(m Model, args []string) (tea.Model, tea.Cmd)

// commandHelp is listed by /help in this order.
var commandHelp = [][2]string{
	{"/attach <path>...", "add images to the next message"},
	{"/detach <n>", "remove pending image n"},
	{"/attachments", "list pending images"},
	{"/regen [n]", "regenerate from message n (default: last reply)"},
	{"/model [id]", "show or switch the model"},
	{"/copy [n]", "copy message n (default: last reply)"},
	{"/save [md|json] [path]", "save the transcript"},
	{"/new", "start a new conversation"},
	{"/help", "show this help"},
	{"/quit", "exit"},
}

// commandHandlers maps command names to their handler functions.
var commandHandlers = map[string]CommandHandler{
	"attach":      handleAttachCommand,
	"a":           handleAttachCommand,
	"detach":      handleDetachCommand,
	"attachments": handleAttachmentsCommand,
	"regen":       handleRegenCommand,
	"r":           handleRegenCommand,
	"model":       handleModelCommand,
	"m":           handleModelCommand,
	"copy":        handleCopyCommand,
	"save":        handleSaveCommand,
	"s":           handleSaveCommand,
	"new":         handleNewCommand,
	"n":           handleNewCommand,
	"help":        handleHelpCommand,
	"h":           handleHelpCommand,
	"?":           handleHelpCommand,
	"quit":        handleQuitCommand,
	"q":           handleQuitCommand,
	"exit":        handleQuitCommand,
}

// handleCommand dispatches a slash command line.
func (m Model) handleCommand(content string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(content)
	if len(parts) == 0 {
		return m, nil
	}

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	handler, ok := commandHandlers[name]
	if !ok {
		return m, m.setNotice("Unknown command '/"+name+"'. Type /help for available commands", true)
	}
	return handler(m, parts[1:])
}

// =============================================================================
// ATTACHMENT COMMANDS
// =============================================================================

func handleAttachCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, m.setNotice("Usage: /attach <path>...", true)
	}

	var added []string
	for _, path := range args {
		info, err := m.ctl.AttachFile(util.ExpandHome(path))
		if err != nil {
			m.layout()
			return m, m.setNotice(errors.Wrapf(err, "attach %s", path).Error(), true)
		}
		added = append(added, info.Label)
	}

	m.layout()
	return m, m.setNotice("Attached "+strings.Join(added, ", "), false)
}

func handleDetachCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) != 1 {
		return m, m.setNotice("Usage: /detach <n>", true)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return m, m.setNotice("Invalid attachment number '"+args[0]+"'", true)
	}
	// Chips are numbered from 1.
	return m.detach(n - 1)
}

func (m Model) detach(index int) (tea.Model, tea.Cmd) {
	pending := m.ctl.Snapshot().Pending
	if err := m.ctl.RemoveAttachment(index); err != nil {
		return m, m.setNotice(err.Error(), true)
	}
	m.layout()
	return m, m.setNotice("Removed "+pending[index].Name, false)
}

func handleAttachmentsCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	pending := m.ctl.Snapshot().Pending
	if len(pending) == 0 {
		return m, m.setNotice("No pending attachments", false)
	}
	labels := make([]string, len(pending))
	for i, p := range pending {
		labels[i] = fmt.Sprintf("%d. %s", i+1, p.Label)
	}
	return m, m.setNotice(strings.Join(labels, "  "), false)
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func handleRegenCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	index := m.ctl.LastAssistantIndex()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return m, m.setNotice("Invalid message number '"+args[0]+"'", true)
		}
		index = n
	}
	if index >= len(m.ctl.Messages()) {
		return m, m.setNotice(fmt.Sprintf("No message #%d", index), true)
	}
	return m.regenerate(index)
}

func handleNewCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	return m.newConversation()
}

func (m Model) newConversation() (tea.Model, tea.Cmd) {
	if err := m.ctl.Reset(); err != nil {
		return m, m.setNotice(err.Error(), true)
	}
	m.renderer.Purge()
	m.input.Reset()
	m.layout()
	return m, m.setNotice("New conversation", false)
}

func handleModelCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		ids := model.ModelIDs()
		return m, m.setNotice("Model: "+m.ctl.Model()+" (available: "+strings.Join(ids, ", ")+")", false)
	}
	if err := m.ctl.SelectModel(args[0]); err != nil {
		return m, m.setNotice(err.Error(), true)
	}
	info, _ := model.GetModelInfo(args[0])
	return m, m.setNotice("Switched to "+info.Name, false)
}

func handleCopyCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	index := -1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return m, m.setNotice("Invalid message number '"+args[0]+"'", true)
		}
		index = n
	}
	return m.copyMessage(index)
}

// copyMessage copies message index, or the last reply when index is negative.
func (m Model) copyMessage(index int) (tea.Model, tea.Cmd) {
	msgs := m.ctl.Messages()
	if index < 0 {
		index = m.ctl.LastAssistantIndex()
	}
	if index < 0 || index >= len(msgs) {
		return m, m.setNotice("Nothing to copy", true)
	}

	text := msgs[index].Content.PlainText()
	if err := m.clipboard(text); err != nil {
		return m, m.setNotice(errors.Wrap(err, "copy to clipboard").Error(), true)
	}
	return m, m.setNotice(fmt.Sprintf("Copied message #%d", index), false)
}

func handleSaveCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	msgs := m.ctl.Messages()
	if len(msgs) == 0 {
		return m, m.setNotice("Nothing to save", true)
	}

	format := "json"
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "md", "markdown":
			format = "md"
			args = args[1:]
		case "json":
			args = args[1:]
		}
	}

	t := storage.NewTranscript(m.ctl.Model(), msgs)

	// Explicit path: export only.
	if len(args) > 0 {
		path := util.ExpandHome(args[0])
		data, err := t.Export(format)
		if err == nil {
			err = util.AtomicWriteFile(path, data, 0600)
		}
		if err != nil {
			return m, m.setNotice(errors.Wrap(err, "save transcript").Error(), true)
		}
		return m, m.setNotice("Saved to "+path, false)
	}

	if m.transcripts == nil {
		return m, m.setNotice("Transcript storage is not configured; use /save <path>", true)
	}
	id, err := m.transcripts.Save(t)
	if err != nil {
		return m, m.setNotice(err.Error(), true)
	}
	return m, m.setNotice("Saved transcript "+id, false)
}

// =============================================================================
// META COMMANDS
// =============================================================================

func handleHelpCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	m.showHelp = true
	return m, nil
}

func handleQuitCommand(m Model, args []string) (tea.Model, tea.Cmd) {
	return m, tea.Quit
}
