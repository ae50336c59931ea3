// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a conversation.
// Messages are values; once appended to a store they are never modified.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   Content   `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a new message with a freshly minted ID.
func NewMessage(role Role, content Content) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content Content) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with text content.
func NewAssistantMessage(text string) Message {
	return NewMessage(RoleAssistant, TextContent(text))
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.Content = m.Content.Clone()
	return m
}

// Preview returns a truncated single-line preview of the message text.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	content := m.Content.PlainText()
	if n := m.Content.ImageCount(); n > 0 && content == "" {
		content = "[image]"
	}
	runes := []rune(content)
	if maxLen < 4 || len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// ID GENERATION
// =============================================================================

// NewID mints a message identifier.
// UUIDv7 values embed a timestamp and a monotonic counter, so IDs minted by
// one process sort lexically in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
