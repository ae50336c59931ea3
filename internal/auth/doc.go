// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth supplies bearer tokens from an external identity provider.
//
// The chat controller only needs a TokenProvider: an empty token (or an
// error) means no session is available. Providers that can observe the
// session also report a State (signed-in, needs-password-reset,
// signed-out) that the hosting shell uses for navigation.
//
// # Providers
//
//   - Static: a fixed token, typically from CHATBOT_TOKEN
//   - FileProvider: a session file written by a sign-in helper, watchable
//   - CommandProvider: a credential helper executed per request
//   - Chain: the first provider that yields a token
package auth
