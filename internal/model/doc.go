// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the controller, the
// backend client, the renderer, and transcript storage.
//
// # Key Types
//
//   - Message: a single turn with an ID, a Role, and Content
//   - Content: tagged variant holding either plain text or ordered Parts
//   - Part: a text fragment or an inline-encoded image
//   - ConversationStore: the ordered, append-only message history and busy gate
//   - ModelInfo: an entry in the static model catalog
//
// # Content Normalization
//
// Content built from a single text part is always stored as plain text:
//
//	c := model.NewContent(model.TextPart("hello"))
//	c.IsComposite() // false
//	c.Text          // "hello"
//
// # Usage
//
//	store := model.NewConversationStore()
//	store.Append(model.NewUserMessage(model.TextContent("Hi")))
//	store.Truncate(0)
package model
