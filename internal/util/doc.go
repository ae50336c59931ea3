// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width truncation for terminal cells
//   - ExpandHome: leading ~ expansion for user-supplied paths
//
// # Usage
//
//	display := util.TruncateWidth(title, 40)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
