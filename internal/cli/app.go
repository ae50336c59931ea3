// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatbot-tui/internal/auth"
	"github.com/jeranaias/chatbot-tui/internal/backend"
	chatctl "github.com/jeranaias/chatbot-tui/internal/chat"
	"github.com/jeranaias/chatbot-tui/internal/i18n"
	"github.com/jeranaias/chatbot-tui/internal/render"
	"github.com/jeranaias/chatbot-tui/internal/storage"
	"github.com/jeranaias/chatbot-tui/internal/util"
)

// =============================================================================
// SHARED WIRING
// =============================================================================

// tokens builds the token chain from configuration: static token, then
// credential helper, then session file. The file provider is also
// returned so the TUI can watch it.
func (a *app) tokens() (auth.Chain, *auth.FileProvider) {
	var chain auth.Chain
	if a.cfg.Auth.Token != "" {
		chain = append(chain, auth.Static(a.cfg.Auth.Token))
	}
	if a.cfg.Auth.TokenCommand != "" {
		chain = append(chain, auth.CommandProvider{Command: a.cfg.Auth.TokenCommand})
	}

	var file *auth.FileProvider
	if a.cfg.Auth.TokenFile != "" {
		file = auth.NewFileProvider(util.ExpandHome(a.cfg.Auth.TokenFile))
		chain = append(chain, file)
	}
	return chain, file
}

// newController wires a controller to the configured backend.
func (a *app) newController(tokens auth.TokenProvider) (*chatctl.Controller, error) {
	if err := a.cfg.RequireBackend(); err != nil {
		return nil, err
	}

	client := backend.NewClient(a.cfg.Backend.BaseURL).
		WithTimeout(a.cfg.Backend.Timeout()).
		WithContentType(a.cfg.Backend.ContentType).
		WithModelField(a.cfg.Backend.SendModel)

	log.Debug().
		Str("endpoint", client.Endpoint()).
		Dur("timeout", client.Timeout()).
		Msg("backend client ready")

	return chatctl.New(client, tokens,
		chatctl.WithStrings(a.strings()),
		chatctl.WithModel(a.cfg.DefaultModel),
		chatctl.WithTimeout(a.cfg.Backend.Timeout()),
		chatctl.WithAttachmentLimits(a.cfg.Attachments.MaxCount, a.cfg.Attachments.MaxBytes),
		chatctl.WithLogger(log.Logger),
	), nil
}

func (a *app) strings() i18n.Strings {
	return i18n.For(a.cfg.UI.Locale)
}

// renderer builds a renderer from the UI settings. Plain output is used
// for pipes and redirects.
func (a *app) renderer(plain bool) *render.Renderer {
	return render.NewRenderer(render.Options{
		MarkdownStyle:   a.cfg.UI.MarkdownStyle,
		CodeStyle:       a.cfg.UI.CodeStyle,
		ShowLineNumbers: a.cfg.UI.LineNumbers,
		Plain:           plain,
		CacheSize:       render.DefaultCacheSize,
	})
}

// transcripts opens the transcript store.
func (a *app) transcripts() (*storage.TranscriptStore, error) {
	dir, err := a.cfg.TranscriptDir()
	if err != nil {
		return nil, err
	}
	return storage.NewTranscriptStore(util.ExpandHome(dir), a.cfg.Storage.MaxTranscripts)
}
