// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage saves conversation transcripts to disk.
//
// Transcripts are exported on request (/save, `chatbot transcripts`); live
// conversation state is never persisted.
//
// # Usage
//
//	store, err := storage.NewTranscriptStore(dir, 100)
//	id, err := store.Save(storage.NewTranscript(modelID, messages))
//
//	metas, err := store.List()
//	t, err := store.Load(metas[0].ID)
//	fmt.Print(t.Markdown())
//
// # Storage Location
//
// Transcripts are stored in ~/.chatbot/transcripts/ as JSON files.
package storage
