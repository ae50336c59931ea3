// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns message content into terminal output.
//
// Split breaks assistant text into ordered prose and fenced-code runs with
// an explicit scanner. Join is its inverse: Join(Split(s)) == s for every s.
// Renderer highlights code with chroma, formats prose with glamour, and
// memoizes the result per message and width.
package render
