// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"github.com/pkg/errors"
)

// ErrDuplicateID is the panic value cause when a message ID is appended twice.
var ErrDuplicateID = errors.New("duplicate message id")

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore owns the ordered message history and the dispatch gate.
//
// The only mutations are Append, Truncate, and SetBusy. History is otherwise
// immutable: readers receive copies.
//
// ConversationStore is not safe for concurrent use. The chat controller
// serialises every access behind its own lock.
type ConversationStore struct {
	messages []Message
	ids      map[string]struct{}
	busy     bool
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		messages: make([]Message, 0),
		ids:      make(map[string]struct{}),
	}
}

// Append adds msg to the end of the history.
// An empty or duplicate ID is a programming error and panics.
func (s *ConversationStore) Append(msg Message) {
	if msg.ID == "" {
		panic(errors.Wrap(ErrDuplicateID, "append: empty message id"))
	}
	if _, exists := s.ids[msg.ID]; exists {
		panic(errors.Wrapf(ErrDuplicateID, "append: %s", msg.ID))
	}
	s.ids[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg.Clone())
}

// Truncate retains messages [0, index) and discards the rest.
// An index outside [0, Len()] leaves the store unchanged and returns false.
func (s *ConversationStore) Truncate(index int) bool {
	if index < 0 || index > len(s.messages) {
		return false
	}
	for _, m := range s.messages[index:] {
		delete(s.ids, m.ID)
	}
	// Zero the tail so discarded content can be collected.
	clear(s.messages[index:])
	s.messages = s.messages[:index]
	return true
}

// SetBusy toggles the dispatch gate.
func (s *ConversationStore) SetBusy(busy bool) {
	s.busy = busy
}

// Busy reports whether a dispatch is in flight.
func (s *ConversationStore) Busy() bool {
	return s.busy
}

// Len returns the number of messages.
func (s *ConversationStore) Len() int {
	return len(s.messages)
}

// At returns a copy of the message at index i.
func (s *ConversationStore) At(i int) (Message, bool) {
	if i < 0 || i >= len(s.messages) {
		return Message{}, false
	}
	return s.messages[i].Clone(), true
}

// Messages returns a copy of the full history in order.
func (s *ConversationStore) Messages() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// LastIndexOf returns the index of the last message with the given role,
// or -1 when there is none.
func (s *ConversationStore) LastIndexOf(role Role) int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == role {
			return i
		}
	}
	return -1
}
