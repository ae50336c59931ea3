// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation controller.
//
// A Controller owns the conversation state (history, pending attachments,
// input draft, busy gate) and exposes the only operations that change it:
// SetDraft, Attach, RemoveAttachment, Send, Regenerate, and Reset.
//
// # Dispatch Protocol
//
// Send and Regenerate share one dispatch:
//
//  1. Fetch a token; if none, append the error turn without a network call
//  2. POST the full history to the backend
//  3. On any failure, append the fixed error turn (no retry)
//  4. On success, append the first choice or the fixed placeholder
//  5. Clear the busy gate
//
// Exactly one assistant turn is appended per dispatch. A dispatch always
// runs to completion: caller cancellation is ignored and only the configured
// timeout bounds it.
//
// # Suspension Points
//
// Token fetch, backend round trip, and attachment encodes run without the
// state lock held. The busy gate is claimed under the lock before the first
// of them, so no second dispatch can start meanwhile.
package chat
