// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the chat TUI.
//
// # Colors
//
// All colors are lipgloss.AdaptiveColor values, so light and dark terminals
// get a matching variant automatically:
//
//   - Purple: assistant turns, brand
//   - Cyan: user turns, info, code badges
//   - Rose: error turns, failures
//   - Amber: warnings, pending attachments
//   - Emerald: success
//
// # Theme
//
// NewTheme detects the terminal color profile with termenv and builds the
// styles used by the chat view:
//
//	theme := styles.NewTheme()
//	header := theme.Header.Width(w).Render(title)
//
// # Accessibility
//
// Status helpers (RenderSuccess, RenderError, ...) always pair color with an
// ASCII indicator such as [OK] or [X].
package styles
