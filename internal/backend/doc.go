// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the conversation endpoint.
//
// Every request is a single POST of the full history to <baseURL>/chatbot
// with a bearer token. The client never retries and never branches on
// status codes: any non-2xx status is returned as a *StatusError and callers
// treat every error uniformly.
//
// # Key Types
//
//   - Client: endpoint client with builder-style configuration
//   - ChatRequest: wire body {messages:[{role,content}]}
//   - ChatResponse: wire reply with a choices array
//
// # Usage
//
//	client := backend.NewClient("https://api.example.com").
//	    WithTimeout(30 * time.Second)
//	resp, err := client.Chat(ctx, backend.Request{
//	    Token:    token,
//	    Messages: history,
//	})
//	text, ok := resp.Reply()
//
// # Security
//
// Tokens are never logged; log lines carry a short SHA-256 fingerprint
// instead. Response bodies are read through a size limit.
package backend
