// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// =============================================================================
// SESSION STATE
// =============================================================================

// State is the navigation signal derived from the identity session.
type State int

const (
	StateSignedOut State = iota
	StateSignedIn
	StateNeedsPasswordReset
)

// String returns the signal name.
func (s State) String() string {
	switch s {
	case StateSignedIn:
		return "signed-in"
	case StateNeedsPasswordReset:
		return "needs-password-reset"
	default:
		return "signed-out"
	}
}

// =============================================================================
// PROVIDER INTERFACES
// =============================================================================

// TokenProvider returns the current bearer token.
// An empty token with a nil error means no session.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StateReporter is implemented by providers that can observe the session.
type StateReporter interface {
	State(ctx context.Context) State
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static returns a provider that always yields token.
func Static(token string) TokenProvider {
	token = strings.TrimSpace(token)
	return TokenFunc(func(context.Context) (string, error) {
		return token, nil
	})
}

// StateOf asks p for its session state. Providers that cannot observe the
// session are signed in exactly when they yield a token.
func StateOf(ctx context.Context, p TokenProvider) State {
	if r, ok := p.(StateReporter); ok {
		return r.State(ctx)
	}
	tok, err := p.Token(ctx)
	if err != nil || tok == "" {
		return StateSignedOut
	}
	return StateSignedIn
}

// =============================================================================
// CHAIN
// =============================================================================

// Chain tries each provider in order and returns the first non-empty token.
// Errors are remembered; the last one is returned only when no provider
// yields a token.
type Chain []TokenProvider

// Token implements TokenProvider.
func (c Chain) Token(ctx context.Context) (string, error) {
	var lastErr error
	for _, p := range c {
		if p == nil {
			continue
		}
		tok, err := p.Token(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", lastErr
}

// State implements StateReporter using the first provider that reports a
// session other than signed-out.
func (c Chain) State(ctx context.Context) State {
	for _, p := range c {
		if p == nil {
			continue
		}
		if s := StateOf(ctx, p); s != StateSignedOut {
			return s
		}
	}
	return StateSignedOut
}

// =============================================================================
// COMMAND PROVIDER
// =============================================================================

// DefaultCommandTimeout bounds a credential helper run.
const DefaultCommandTimeout = 10 * time.Second

// CommandProvider runs a credential helper through the platform shell and
// uses the first line of its standard output as the token.
type CommandProvider struct {
	Command string
	Timeout time.Duration
}

// Token implements TokenProvider.
func (p CommandProvider) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(p.Command) == "" {
		return "", nil
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", p.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", p.Command)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", errors.Wrapf(err, "token command: %s", msg)
		}
		return "", errors.Wrap(err, "token command")
	}

	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
