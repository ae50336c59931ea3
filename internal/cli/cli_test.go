// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatbot-tui/internal/backend"
	"github.com/jeranaias/chatbot-tui/internal/config"
	"github.com/jeranaias/chatbot-tui/internal/model"
	"github.com/jeranaias/chatbot-tui/internal/storage"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// =============================================================================
// HARNESS
// =============================================================================

// chatServer answers "reply N" for the Nth request, or 500 when failing.
type chatServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []backend.ChatRequest
	fail     bool
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()
	cs := &chatServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		cs.mu.Lock()
		cs.requests = append(cs.requests, req)
		n, fail := len(cs.requests), cs.fail
		cs.mu.Unlock()

		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":"reply %d"}}]}`, n)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *chatServer) setFail(fail bool) {
	cs.mu.Lock()
	cs.fail = fail
	cs.mu.Unlock()
}

func (cs *chatServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.requests)
}

func (cs *chatServer) last() backend.ChatRequest {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.requests[len(cs.requests)-1]
}

// isolate points every config lookup at a fresh directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CHATBOT_HOME", home)
	for _, key := range []string{
		"CHATBOT_API_URL", "CHATBOT_TOKEN", "CHATBOT_TOKEN_FILE", "CHATBOT_TOKEN_COMMAND",
		"CHATBOT_MODEL", "CHATBOT_LOCALE", "CHATBOT_LOG_LEVEL", "CHATBOT_LOG_FILE",
		"CHATBOT_TIMEOUT", "FORCE_COLOR",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("NO_COLOR", "1")
	return home
}

// run executes the command tree and returns stdout, stderr and the error.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func withBackend(t *testing.T) *chatServer {
	t.Helper()
	cs := newChatServer(t)
	t.Setenv("CHATBOT_API_URL", cs.URL)
	t.Setenv("CHATBOT_TOKEN", "tok")
	return cs
}

// =============================================================================
// ROOT / SETUP TESTS
// =============================================================================

func TestRoot_RequiresTerminal(t *testing.T) {
	if IsTTY() && IsStdoutTTY() {
		t.Skip("running attached to a terminal")
	}
	isolate(t)
	withBackend(t)

	_, _, err := run(t, "")
	var ttyErr *TTYRequiredError
	require.True(t, errors.As(err, &ttyErr), "got %v", err)
	assert.Contains(t, err.Error(), "chatbot ask")
}

func TestSetup_InvalidFlags(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "--locale", "fr", "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.locale")

	_, _, err = run(t, "", "--model", "gpt-nope", "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_model")
}

func TestSetup_MissingBackend(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "ask", "hi")
	assert.ErrorIs(t, err, config.ErrNoBaseURL)
}

func TestSetup_ConfigFileFlag(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte("default_model = \"claude-3-opus\"\n"), 0600))

	out, _, err := run(t, "", "--config", path, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "* claude-3-opus")
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestAsk_PrintsReply(t *testing.T) {
	isolate(t)
	cs := withBackend(t)

	out, _, err := run(t, "", "ask", "what", "is", "go?")
	require.NoError(t, err)
	assert.Equal(t, "reply 1\n", out)

	req := cs.last()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "what is go?", req.Messages[0].Content.Text)
}

func TestAsk_WithImage(t *testing.T) {
	isolate(t)
	cs := withBackend(t)
	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, pngBytes, 0600))

	_, _, err := run(t, "", "ask", "--image", img, "describe")
	require.NoError(t, err)

	content := cs.last().Messages[0].Content
	require.True(t, content.IsComposite())
	require.Len(t, content.Parts, 2)
	assert.Equal(t, "describe", content.Parts[0].Text)
	assert.True(t, strings.HasPrefix(content.Parts[1].Image, "data:image/png;base64,"))
}

func TestAsk_ImageOnly(t *testing.T) {
	isolate(t)
	cs := withBackend(t)
	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, pngBytes, 0600))

	_, _, err := run(t, "", "ask", "-i", img)
	require.NoError(t, err)

	content := cs.last().Messages[0].Content
	require.Len(t, content.Parts, 1)
	assert.True(t, content.Parts[0].IsImage())
}

func TestAsk_FromStdin(t *testing.T) {
	if IsTTY() {
		t.Skip("stdin is a terminal")
	}
	isolate(t)
	cs := withBackend(t)

	out, _, err := run(t, "piped question\n", "ask")
	require.NoError(t, err)
	assert.Equal(t, "reply 1\n", out)
	assert.Equal(t, "piped question", cs.last().Messages[0].Content.Text)
}

func TestAsk_NothingToAsk(t *testing.T) {
	isolate(t)
	cs := withBackend(t)

	_, _, err := run(t, "   ", "ask")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ask")
	assert.Zero(t, cs.count())
}

func TestAsk_FailureExitsNonZero(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, cs *chatServer)
		locale string
		want   string
		calls  int
	}{
		{
			name:  "server error",
			setup: func(t *testing.T, cs *chatServer) { cs.setFail(true) },
			want:  "Error: No se pudo obtener respuesta del servidor",
			calls: 1,
		},
		{
			name:  "no token",
			setup: func(t *testing.T, cs *chatServer) { t.Setenv("CHATBOT_TOKEN", "") },
			want:  "Error: No se pudo obtener respuesta del servidor",
			calls: 0,
		},
		{
			name:   "english strings",
			setup:  func(t *testing.T, cs *chatServer) { cs.setFail(true) },
			locale: "en",
			want:   "Error: Could not get a response from the server",
			calls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cs := withBackend(t)
			tt.setup(t, cs)

			args := []string{"ask", "hello"}
			if tt.locale != "" {
				args = append([]string{"--locale", tt.locale}, args...)
			}
			out, stderr, err := run(t, "", args...)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr), "got %v", err)
			assert.Equal(t, 1, exitErr.Code)
			assert.Empty(t, out)
			assert.Contains(t, stderr, tt.want)
			assert.Equal(t, tt.calls, cs.count())
		})
	}
}

func TestAsk_TokenCommand(t *testing.T) {
	isolate(t)
	cs := withBackend(t)
	t.Setenv("CHATBOT_TOKEN", "")
	t.Setenv("CHATBOT_TOKEN_COMMAND", "echo helper-token")

	out, _, err := run(t, "", "ask", "hi")
	require.NoError(t, err)
	assert.Equal(t, "reply 1\n", out)
	assert.Equal(t, 1, cs.count())
}

// =============================================================================
// MODELS / CONFIG TESTS
// =============================================================================

func TestModels(t *testing.T) {
	isolate(t)

	out, _, err := run(t, "", "models")
	require.NoError(t, err)
	for _, m := range model.Models {
		assert.Contains(t, out, m.ID)
	}
	assert.Contains(t, out, "* "+model.DefaultModelID)

	out, _, err = run(t, "", "models", "--json")
	require.NoError(t, err)
	var listed []model.ModelInfo
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	assert.Equal(t, model.Models, listed)
}

func TestConfig_SetGet(t *testing.T) {
	home := isolate(t)

	out, _, err := run(t, "", "config", "set", "ui.locale", "en")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated ui.locale")
	assert.FileExists(t, filepath.Join(home, "config.toml"))

	out, _, err = run(t, "", "config", "get", "ui.locale")
	require.NoError(t, err)
	assert.Equal(t, "en\n", out)

	_, _, err = run(t, "", "config", "set", "ui.locale", "fr")
	assert.Error(t, err)

	_, _, err = run(t, "", "config", "get", "ui.nope")
	assert.Error(t, err)
}

func TestConfig_SetDoesNotPersistEnv(t *testing.T) {
	home := isolate(t)
	t.Setenv("CHATBOT_TOKEN", "secret-from-env")

	_, _, err := run(t, "", "config", "set", "backend.timeout_secs", "30")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(home, "config.toml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-from-env")
	assert.Contains(t, string(data), "timeout_secs = 30")
}

func TestConfig_ShowRedactsToken(t *testing.T) {
	isolate(t)
	t.Setenv("CHATBOT_TOKEN", "secret-from-env")

	out, _, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-from-env")
	assert.Contains(t, out, "[REDACTED]")

	_, _, err = run(t, "", "config", "get", "auth.token")
	assert.Error(t, err)
}

func TestConfig_PathAndKeys(t *testing.T) {
	home := isolate(t)

	out, _, err := run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.toml")+"\n", out)

	out, _, err = run(t, "", "config", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "backend.base_url")
	assert.Contains(t, out, "ui.locale")
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func seedTranscript(t *testing.T, home, first string) string {
	t.Helper()
	store, err := storage.NewTranscriptStore(filepath.Join(home, "transcripts"), 0)
	require.NoError(t, err)
	id, err := store.Save(storage.NewTranscript(model.DefaultModelID, []model.Message{
		model.NewUserMessage(model.TextContent(first)),
		model.NewAssistantMessage("answer to " + first),
	}))
	require.NoError(t, err)
	return id
}

func TestTranscripts_ListShowDelete(t *testing.T) {
	home := isolate(t)
	id := seedTranscript(t, home, "First question")

	out, _, err := run(t, "", "transcripts")
	require.NoError(t, err)
	assert.Contains(t, out, "First question")

	out, _, err = run(t, "", "transcripts", "show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "# First question")
	assert.Contains(t, out, "answer to First question")

	out, _, err = run(t, "", "transcripts", "show", "--format", "json", id[len(id)-8:])
	require.NoError(t, err)
	assert.Contains(t, out, `"id": "`+id+`"`)

	out, _, err = run(t, "", "transcripts", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted transcript "+id)

	out, _, err = run(t, "", "transcripts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No transcripts found.")
}

func TestTranscripts_Search(t *testing.T) {
	home := isolate(t)
	seedTranscript(t, home, "Goroutines and channels")
	seedTranscript(t, home, "Baking bread")

	out, _, err := run(t, "", "transcripts", "search", "bread")
	require.NoError(t, err)
	assert.Contains(t, out, "Baking bread")
	assert.NotContains(t, out, "Goroutines")
}

func TestTranscripts_UnknownRef(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "transcripts", "show", "7")
	assert.ErrorIs(t, err, storage.ErrTranscriptNotFound)
}
