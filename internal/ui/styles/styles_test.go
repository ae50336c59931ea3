// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"StatusBar", theme.StatusBar},
		{"UserLabel", theme.UserLabel},
		{"AssistantLabel", theme.AssistantLabel},
		{"ErrorTurn", theme.ErrorTurn},
		{"InputBorder", theme.InputBorder},
		{"AttachmentChip", theme.AttachmentChip},
		{"Help", theme.Help},
	}
	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style should render its content", s.name)
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, "[OK]"},
		{"error", RenderError, "[X]"},
		{"warning", RenderWarning, "[!]"},
		{"info", RenderInfo, "[i]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("saved")
			if !strings.Contains(out, tt.indicator) || !strings.Contains(out, "saved") {
				t.Errorf("render(%q) = %q, want indicator %q", "saved", out, tt.indicator)
			}
		})
	}
}

func TestSpinnerDuration(t *testing.T) {
	if got := LineSpinner.Duration(); got != 100*time.Millisecond {
		t.Errorf("LineSpinner.Duration() = %v, want 100ms", got)
	}
	if got := (SpinnerConfig{}).Duration(); got != time.Second {
		t.Errorf("zero FPS Duration() = %v, want 1s", got)
	}
}
