// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the chatbot command tree.
//
// Every command shares one conversation controller setup; they differ only
// in how the conversation is hosted.
//
// # Commands
//
//	chatbot                      Full-screen chat (requires a terminal)
//	chatbot chat                 Line-editing REPL with history
//	chatbot ask [question]       One message, one reply, then exit
//	chatbot models               List selectable models
//	chatbot transcripts ...      List, show, search or delete saved transcripts
//	chatbot config ...           Show, get or set configuration values
//
// # Global Flags
//
//	--config PATH       Config file (default ~/.chatbot/config.toml)
//	-m, --model ID      Model for this run
//	--locale CODE       Fixed-string locale (es, en)
//	--log-level LEVEL   debug, info, warn, error
//
// # Exit Codes
//
// ask exits 1 when the reply is an error turn, so scripts can tell a
// failed dispatch from an answer.
package cli
