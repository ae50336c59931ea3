// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatbot-tui/internal/attach"
	"github.com/jeranaias/chatbot-tui/internal/auth"
	"github.com/jeranaias/chatbot-tui/internal/backend"
	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/model"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// =============================================================================
// HELPERS
// =============================================================================

type countingHandle struct {
	releases atomic.Int32
}

func (h *countingHandle) Ref() string { return "test" }

func (h *countingHandle) Release() error {
	h.releases.Add(1)
	return nil
}

func newPending(name string, data []byte) (*attach.Pending, *countingHandle) {
	h := &countingHandle{}
	return attach.New(name, data, h), h
}

// fakeServer records every request body it receives.
type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []backend.ChatRequest
	calls    atomic.Int32
}

func newFakeServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req backend.ChatRequest
		if err := json.Unmarshal(body, &req); err == nil {
			fs.mu.Lock()
			fs.requests = append(fs.requests, req)
			fs.mu.Unlock()
		}
		handler(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last() backend.ChatRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.requests[len(fs.requests)-1]
}

func replyWith(text string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": text}},
			},
		})
	}
}

func newController(url string, tokens auth.TokenProvider, opts ...Option) *Controller {
	opts = append([]Option{
		WithStrings(i18n.For("es")),
		WithLogger(zerolog.Nop()),
	}, opts...)
	return New(backend.NewClient(url), tokens, opts...)
}

// backendFunc adapts a function to Backend.
type backendFunc func(ctx context.Context, req backend.Request) (*backend.ChatResponse, error)

func (f backendFunc) Chat(ctx context.Context, req backend.Request) (*backend.ChatResponse, error) {
	return f(ctx, req)
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, []byte) (string, error) {
	return "", errors.New("boom")
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_TextOnly(t *testing.T) {
	srv := newFakeServer(t, replyWith("hola"))
	c := newController(srv.URL, auth.Static("tok"))

	require.NoError(t, c.SetDraft("  hello  "))
	res, err := c.Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeReply, res.Outcome)
	assert.Equal(t, "hola", res.Message.Content.Text)

	st := c.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, model.RoleUser, st.Messages[0].Role)
	assert.Equal(t, "hello", st.Messages[0].Content.Text)
	assert.False(t, st.Messages[0].Content.IsComposite())
	assert.Equal(t, model.RoleAssistant, st.Messages[1].Role)
	assert.Equal(t, res.Message.ID, st.Messages[1].ID)
	assert.Empty(t, st.Draft)
	assert.False(t, st.Busy)

	req := srv.last()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "hello", req.Messages[0].Content.Text)
}

func TestSend_SendsFullHistory(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := newController(srv.URL, auth.Static("tok"))

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, c.SetDraft(text))
		_, err := c.Send(context.Background())
		require.NoError(t, err)
	}

	req := srv.last()
	require.Len(t, req.Messages, 5)
	assert.Equal(t, "three", req.Messages[4].Content.Text)
	assert.Len(t, c.Messages(), 6)
}

func TestSend_AttachmentsOnly(t *testing.T) {
	srv := newFakeServer(t, replyWith("two images"))
	c := newController(srv.URL, auth.Static("tok"))

	p1, h1 := newPending("a.png", pngBytes)
	p2, h2 := newPending("b.png", append(append([]byte{}, pngBytes...), 'x'))
	require.NoError(t, c.Attach(p1))
	require.NoError(t, c.Attach(p2))

	_, err := c.Send(context.Background())
	require.NoError(t, err)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	parts := msgs[0].Content.Parts
	require.Len(t, parts, 2)
	assert.True(t, parts[0].IsImage())
	assert.True(t, parts[1].IsImage())

	raw0, err := attach.DecodeDataURL(parts[0].Image)
	require.NoError(t, err)
	raw1, err := attach.DecodeDataURL(parts[1].Image)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, raw0)
	assert.Len(t, raw1, len(pngBytes)+1)

	assert.EqualValues(t, 1, h1.releases.Load())
	assert.EqualValues(t, 1, h2.releases.Load())
	assert.Empty(t, c.Snapshot().Pending)
}

func TestSend_TextThenImage(t *testing.T) {
	srv := newFakeServer(t, replyWith("a cat"))
	c := newController(srv.URL, auth.Static("tok"))

	p, _ := newPending("cat.png", pngBytes)
	require.NoError(t, c.SetDraft("what is this?"))
	require.NoError(t, c.Attach(p))

	_, err := c.Send(context.Background())
	require.NoError(t, err)

	parts := c.Messages()[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, model.TextPart("what is this?"), parts[0])
	assert.True(t, parts[1].IsImage())
	assert.Equal(t, "image/png", attach.MediaType(parts[1].Image))

	wire := srv.last().Messages[0].Content
	require.Len(t, wire.Parts, 2)
	assert.Equal(t, model.PartText, wire.Parts[0].Kind)
	assert.Equal(t, model.PartImage, wire.Parts[1].Kind)
}

func TestSend_EmptyInput(t *testing.T) {
	srv := newFakeServer(t, replyWith("unused"))
	c := newController(srv.URL, auth.Static("tok"))

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyInput)

	require.NoError(t, c.SetDraft(" \n\t "))
	_, err = c.Send(context.Background())
	assert.ErrorIs(t, err, ErrEmptyInput)

	assert.Empty(t, c.Messages())
	assert.False(t, c.Busy())
	assert.Zero(t, srv.calls.Load())
}

func TestSend_IgnoresCallerCancellation(t *testing.T) {
	srv := newFakeServer(t, replyWith("still here"))
	c := newController(srv.URL, auth.Static("tok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.SetDraft("hi"))
	res, err := c.Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReply, res.Outcome)
	assert.Equal(t, "still here", res.Message.Content.Text)
}

func TestSend_ModelSelection(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := New(backend.NewClient(srv.URL).WithModelField(true), auth.Static("tok"),
		WithLogger(zerolog.Nop()))

	require.NoError(t, c.SelectModel("claude-3-opus"))
	assert.ErrorIs(t, c.SelectModel("gpt-4"), ErrUnknownModel)
	assert.Equal(t, "claude-3-opus", c.Model())

	require.NoError(t, c.SetDraft("hi"))
	_, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claude-3-opus", srv.last().Model)
}

// =============================================================================
// DISPATCH OUTCOME TESTS
// =============================================================================

func TestDispatch_MissingToken(t *testing.T) {
	tests := []struct {
		name   string
		tokens auth.TokenProvider
	}{
		{"empty token", auth.Static("")},
		{"whitespace token", auth.Static("   ")},
		{"provider error", auth.TokenFunc(func(context.Context) (string, error) {
			return "", errors.New("session expired")
		})},
		{"nil provider", nil},
		{"panicking provider", auth.TokenFunc(func(context.Context) (string, error) {
			panic("broken keychain")
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t, replyWith("unused"))
			c := newController(srv.URL, tt.tokens)

			require.NoError(t, c.SetDraft("hello"))
			res, err := c.Send(context.Background())
			require.NoError(t, err)

			assert.Equal(t, OutcomeAuthUnavailable, res.Outcome)
			assert.Zero(t, srv.calls.Load())

			msgs := c.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, "hello", msgs[0].Content.Text)
			assert.Equal(t, model.RoleAssistant, msgs[1].Role)
			assert.Equal(t, i18n.For("es").DispatchError, msgs[1].Content.Text)
			assert.False(t, c.Busy())
		})
	}
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, r *http.Request)
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>gateway</html>"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t, tt.handler)
			c := newController(srv.URL, auth.Static("tok"))

			require.NoError(t, c.SetDraft("hello"))
			res, err := c.Send(context.Background())
			require.NoError(t, err)

			assert.Equal(t, OutcomeTransportFailure, res.Outcome)
			assert.Error(t, res.Cause)
			assert.EqualValues(t, 1, srv.calls.Load(), "no retry")

			msgs := c.Messages()
			require.Len(t, msgs, 2)
			assert.Equal(t, "hello", msgs[0].Content.Text)
			assert.Equal(t, "Error: No se pudo obtener respuesta del servidor", msgs[1].Content.Text)
			assert.False(t, c.Busy())
		})
	}
}

func TestDispatch_Placeholder(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"missing choices", `{}`},
		{"empty content", `{"choices":[{"message":{"role":"assistant","content":""}}]}`},
		{"null content", `{"choices":[{"message":{"role":"assistant","content":null}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			})
			c := newController(srv.URL, auth.Static("tok"))

			require.NoError(t, c.SetDraft("hello"))
			res, err := c.Send(context.Background())
			require.NoError(t, err)

			assert.Equal(t, OutcomePlaceholder, res.Outcome)
			assert.Equal(t, "No response received", res.Message.Content.Text)
			assert.Len(t, c.Messages(), 2)
		})
	}
}

func TestDispatch_FirstChoiceOnly(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"first"}},{"message":{"content":"second"}}]}`))
	})
	c := newController(srv.URL, auth.Static("tok"))

	require.NoError(t, c.SetDraft("hello"))
	res, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", res.Message.Content.Text)
}

func TestDispatch_BackendPanic(t *testing.T) {
	b := backendFunc(func(context.Context, backend.Request) (*backend.ChatResponse, error) {
		panic("nil map")
	})
	c := New(b, auth.Static("tok"), WithLogger(zerolog.Nop()))

	require.NoError(t, c.SetDraft("hello"))
	res, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)
	assert.Len(t, c.Messages(), 2)
	assert.False(t, c.Busy())
}

func TestDispatch_Timeout(t *testing.T) {
	b := backendFunc(func(ctx context.Context, _ backend.Request) (*backend.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := New(b, auth.Static("tok"), WithLogger(zerolog.Nop()), WithTimeout(20*time.Millisecond))

	require.NoError(t, c.SetDraft("hello"))
	res, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)
	assert.ErrorIs(t, res.Cause, context.DeadlineExceeded)
}

func TestDispatch_EnglishStrings(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newController(srv.URL, auth.Static("tok"), WithStrings(i18n.For("en")))

	require.NoError(t, c.SetDraft("hello"))
	res, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Error: Could not get a response from the server", res.Message.Content.Text)
}

// =============================================================================
// FAILURE POLICY TESTS
// =============================================================================

func TestSend_EncodeFailureKeepsInput(t *testing.T) {
	srv := newFakeServer(t, replyWith("unused"))
	c := newController(srv.URL, auth.Static("tok"), WithEncoder(failingEncoder{}))

	p, h := newPending("a.png", pngBytes)
	require.NoError(t, c.SetDraft("look"))
	require.NoError(t, c.Attach(p))

	_, err := c.Send(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttachmentEncode)
	assert.Contains(t, err.Error(), "boom")

	st := c.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Equal(t, "look", st.Draft)
	require.Len(t, st.Pending, 1)
	assert.Equal(t, "a.png", st.Pending[0].Name)
	assert.False(t, st.Busy)
	assert.Zero(t, h.releases.Load())
	assert.Zero(t, srv.calls.Load())
}

func TestSend_NonImageAttachment(t *testing.T) {
	srv := newFakeServer(t, replyWith("unused"))
	c := newController(srv.URL, auth.Static("tok"))

	p, _ := newPending("notes.txt", []byte("plain text, not an image"))
	require.NoError(t, c.Attach(p))

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrAttachmentEncode)
	assert.ErrorIs(t, err, attach.ErrNotImage)
	assert.Empty(t, c.Messages())
}

func TestSend_FailedDispatchDoesNotRestoreInput(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		replyWith("recovered")(w, r)
	})
	c := newController(srv.URL, auth.Static("tok"))

	p, h := newPending("a.png", pngBytes)
	require.NoError(t, c.SetDraft("hello"))
	require.NoError(t, c.Attach(p))

	res, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTransportFailure, res.Outcome)

	st := c.Snapshot()
	assert.Empty(t, st.Draft)
	assert.Empty(t, st.Pending)
	assert.EqualValues(t, 1, h.releases.Load())
	require.Len(t, st.Messages, 2)

	// Retry replaces the error turn.
	fail.Store(false)
	res, err = c.Regenerate(context.Background(), c.LastAssistantIndex())
	require.NoError(t, err)
	assert.Equal(t, OutcomeReply, res.Outcome)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "recovered", msgs[1].Content.Text)
	assert.Len(t, msgs[0].Content.Parts, 2, "user turn keeps text and image")
}

// =============================================================================
// REGENERATE TESTS
// =============================================================================

func seed(t *testing.T, c *Controller, turns ...string) []model.Message {
	t.Helper()
	for _, text := range turns {
		require.NoError(t, c.SetDraft(text))
		_, err := c.Send(context.Background())
		require.NoError(t, err)
	}
	return c.Messages()
}

func TestRegenerate_TruncatesAndDispatches(t *testing.T) {
	for i := 0; i < 4; i++ {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			srv := newFakeServer(t, replyWith("again"))
			c := newController(srv.URL, auth.Static("tok"))
			before := seed(t, c, "one", "two")
			require.Len(t, before, 4)

			res, err := c.Regenerate(context.Background(), i)
			require.NoError(t, err)

			after := c.Messages()
			require.Len(t, after, i+1)
			assert.Equal(t, before[:i], after[:i])
			assert.Equal(t, model.RoleAssistant, after[i].Role)
			assert.Equal(t, res.Message.ID, after[i].ID)
			assert.NotEqual(t, before[i].ID, after[i].ID)
			for _, m := range before {
				assert.NotEqual(t, m.ID, after[i].ID)
			}

			assert.Len(t, srv.last().Messages, i)
			assert.False(t, c.Busy())
		})
	}
}

func TestRegenerate_OutOfRange(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := newController(srv.URL, auth.Static("tok"))
	before := seed(t, c, "one")
	calls := srv.calls.Load()

	for _, i := range []int{-1, 2, 100} {
		_, err := c.Regenerate(context.Background(), i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
	assert.Equal(t, before, c.Messages())
	assert.Equal(t, calls, srv.calls.Load())
	assert.False(t, c.Busy())
}

func TestRegenerate_EmptyHistory(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := newController(srv.URL, auth.Static("tok"))

	_, err := c.Regenerate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

// =============================================================================
// BUSY GATE TESTS
// =============================================================================

func TestBusyGate(t *testing.T) {
	release := make(chan struct{})
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		replyWith("done")(w, r)
	})
	c := newController(srv.URL, auth.Static("tok"))
	seed0, _ := newPending("keep.png", pngBytes)

	require.NoError(t, c.SetDraft("first"))

	done := make(chan Result, 1)
	go func() {
		res, err := c.Send(context.Background())
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, c.Busy, time.Second, 5*time.Millisecond)

	_, err := c.Send(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Regenerate(context.Background(), 0)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, c.SetDraft("second"), ErrBusy)
	assert.ErrorIs(t, c.Attach(seed0), ErrBusy)
	assert.ErrorIs(t, c.RemoveAttachment(0), ErrBusy)
	assert.ErrorIs(t, c.Reset(), ErrBusy)

	// The user turn is visible while the dispatch is in flight.
	st := c.Snapshot()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "first", st.Messages[0].Content.Text)

	close(release)
	res := <-done
	assert.Equal(t, OutcomeReply, res.Outcome)
	assert.False(t, c.Busy())
	assert.Len(t, c.Messages(), 2)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestBusyGate_ConcurrentSends(t *testing.T) {
	srv := newFakeServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		replyWith("ok")(w, r)
	})
	c := newController(srv.URL, auth.Static("tok"))
	require.NoError(t, c.SetDraft("hello"))

	var wg sync.WaitGroup
	var ok, busy atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background())
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrBusy), errors.Is(err, ErrEmptyInput):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 7, busy.Load())
	assert.Len(t, c.Messages(), 2)
}

// =============================================================================
// ATTACHMENT TESTS
// =============================================================================

func TestRemoveAttachment(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := newController(srv.URL, auth.Static("tok"))

	p0, h0 := newPending("a.png", pngBytes)
	p1, h1 := newPending("b.png", pngBytes)
	p2, h2 := newPending("c.png", pngBytes)
	for _, p := range []*attach.Pending{p0, p1, p2} {
		require.NoError(t, c.Attach(p))
	}

	require.NoError(t, c.RemoveAttachment(1))
	assert.EqualValues(t, 1, h1.releases.Load())
	assert.True(t, p1.Released())

	st := c.Snapshot()
	require.Len(t, st.Pending, 2)
	assert.Equal(t, "a.png", st.Pending[0].Name)
	assert.Equal(t, "c.png", st.Pending[1].Name)

	assert.ErrorIs(t, c.RemoveAttachment(2), ErrIndexOutOfRange)
	assert.ErrorIs(t, c.RemoveAttachment(-1), ErrIndexOutOfRange)

	_, err := c.Send(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, h0.releases.Load())
	assert.EqualValues(t, 1, h1.releases.Load())
	assert.EqualValues(t, 1, h2.releases.Load())
	assert.Equal(t, 2, c.Messages()[0].Content.ImageCount())
}

func TestAttach_Limit(t *testing.T) {
	c := New(nil, nil, WithLogger(zerolog.Nop()), WithAttachmentLimits(2, 0))

	for _, name := range []string{"a.png", "b.png"} {
		p, _ := newPending(name, pngBytes)
		require.NoError(t, c.Attach(p))
	}
	p, h := newPending("c.png", pngBytes)
	assert.ErrorIs(t, c.Attach(p), ErrTooManyAttachments)
	assert.Zero(t, h.releases.Load(), "caller keeps ownership on error")
	assert.Len(t, c.Snapshot().Pending, 2)
}

func TestAttachFile(t *testing.T) {
	c := New(nil, nil, WithLogger(zerolog.Nop()), WithAttachmentLimits(4, 64))
	dir := t.TempDir()

	path := writeFile(t, dir, "photo.png", pngBytes)
	info, err := c.AttachFile(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", info.Name)
	assert.Equal(t, len(pngBytes), info.Size)
	assert.Contains(t, info.Label, "photo.png")

	big := writeFile(t, dir, "big.png", make([]byte, 65))
	_, err = c.AttachFile(big)
	assert.ErrorIs(t, err, attach.ErrTooLarge)

	_, err = c.AttachFile(dir + "/missing.png")
	assert.Error(t, err)

	assert.Len(t, c.Snapshot().Pending, 1)
	c.Close()
	assert.Empty(t, c.Snapshot().Pending)
}

func TestReset(t *testing.T) {
	srv := newFakeServer(t, replyWith("ok"))
	c := newController(srv.URL, auth.Static("tok"))
	seed(t, c, "one")

	p, h := newPending("a.png", pngBytes)
	require.NoError(t, c.Attach(p))
	require.NoError(t, c.SetDraft("unsent"))

	require.NoError(t, c.Reset())
	st := c.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Pending)
	assert.Empty(t, st.Draft)
	assert.EqualValues(t, 1, h.releases.Load())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "reply", OutcomeReply.String())
	assert.Equal(t, "placeholder", OutcomePlaceholder.String())
	assert.Equal(t, "auth_unavailable", OutcomeAuthUnavailable.String())
	assert.Equal(t, "transport_failure", OutcomeTransportFailure.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())

	assert.True(t, OutcomeAuthUnavailable.Failed())
	assert.True(t, OutcomeTransportFailure.Failed())
	assert.False(t, OutcomePlaceholder.Failed())
}
