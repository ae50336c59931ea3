// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NextStepNewPasswordRequired is the sign-in step that requires a new
// password before a session is issued.
const NextStepNewPasswordRequired = "CONFIRM_SIGN_IN_WITH_NEW_PASSWORD_REQUIRED"

// Session is the on-disk identity session written by a sign-in helper.
type Session struct {
	IDToken  string `json:"id_token"`
	NextStep string `json:"next_step,omitempty"`
}

// State derives the navigation signal from the session.
func (s Session) State() State {
	switch {
	case s.NextStep == NextStepNewPasswordRequired:
		return StateNeedsPasswordReset
	case s.IDToken != "":
		return StateSignedIn
	default:
		return StateSignedOut
	}
}

// =============================================================================
// FILE PROVIDER
// =============================================================================

// FileProvider reads the session from a file on every call, so tokens
// refreshed by an external helper are picked up without restarting.
// The file holds either a JSON Session or a bare token.
type FileProvider struct {
	Path string
}

// NewFileProvider creates a provider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Load reads and parses the session file. A missing file is an empty session.
func (p *FileProvider) Load() (Session, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, nil
		}
		return Session{}, errors.Wrap(err, "read session file")
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Session{}, nil
	}
	if data[0] != '{' {
		return Session{IDToken: string(data)}, nil
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, errors.Wrap(err, "parse session file")
	}
	return s, nil
}

// Token implements TokenProvider. No token is issued while a password
// reset is pending.
func (p *FileProvider) Token(context.Context) (string, error) {
	s, err := p.Load()
	if err != nil {
		return "", err
	}
	if s.State() != StateSignedIn {
		return "", nil
	}
	return s.IDToken, nil
}

// State implements StateReporter.
func (p *FileProvider) State(context.Context) State {
	s, err := p.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", p.Path).Msg("session file unreadable")
		return StateSignedOut
	}
	return s.State()
}

// Watch reports session state changes until ctx is done.
// The parent directory is watched so that atomic replacement of the file
// is observed. The current state is sent first.
func (p *FileProvider) Watch(ctx context.Context, debounce time.Duration) (<-chan State, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "create session directory")
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	out := make(chan State, 1)
	last := p.State(ctx)
	out <- last

	go func() {
		defer close(out)
		defer watcher.Close()

		target := filepath.Clean(p.Path)
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				// Coalesce bursts from editors and atomic renames.
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				s := p.State(ctx)
				if s == last {
					continue
				}
				last = s
				select {
				case out <- s:
				case <-ctx.Done():
					return
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("session watcher error")
			}
		}
	}()

	return out, nil
}
