// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the interactive chat view.

The view is a Bubble Tea model hosting a conversation controller. It never
touches conversation state directly: every change goes through the
controller, and each frame renders from a controller snapshot.

# Key Components

## Model (model.go)

Viewport for the transcript, text input for the draft, spinner while a
dispatch is in flight, and a strip of pending attachment chips.

## Update Loop (update.go)

Enter submits the input. Dispatches run as tea.Cmd values and report back
with a DispatchDoneMsg. Identity session changes arrive as AuthStateMsg.

## Commands (commands.go)

Slash commands:
  - /attach <path>... - Add images to the next message
  - /detach <n> - Remove a pending image
  - /attachments - List pending images
  - /regen [n] - Regenerate from message n (default: last reply)
  - /model [id] - Show or switch the model
  - /copy [n] - Copy a message to the clipboard
  - /save [md|json] [path] - Save the transcript
  - /new - Start a new conversation
  - /help, /quit

# Usage

	ctl := chat.New(client, tokens)
	m := uichat.New(uichat.Options{Controller: ctl, Renderer: r})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
