// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package i18n holds the fixed user-facing strings for each supported locale.
package i18n

import (
	"sort"
	"strings"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "es"

// Strings is the set of fixed strings for one locale.
type Strings struct {
	// DispatchError is the assistant turn appended when a dispatch fails.
	DispatchError string

	// NoResponse is the assistant turn appended when a reply has no content.
	NoResponse string

	// InputPlaceholder is shown in an empty input box.
	InputPlaceholder string

	// Thinking is shown while a dispatch is in flight.
	Thinking string

	// SignedOut is shown when the identity session is missing.
	SignedOut string

	// PasswordReset is shown when the identity provider requires a new password.
	PasswordReset string
}

var catalog = map[string]Strings{
	"es": {
		DispatchError:    "Error: No se pudo obtener respuesta del servidor",
		NoResponse:       "No response received",
		InputPlaceholder: "Escribe tu mensaje...",
		Thinking:         "Pensando...",
		SignedOut:        "Sesión no iniciada",
		PasswordReset:    "Se requiere una nueva contraseña",
	},
	"en": {
		DispatchError:    "Error: Could not get a response from the server",
		NoResponse:       "No response received",
		InputPlaceholder: "Type your message...",
		Thinking:         "Thinking...",
		SignedOut:        "Not signed in",
		PasswordReset:    "A new password is required",
	},
}

// Lookup returns the strings for locale. Region suffixes such as "es-MX"
// or "en_US.UTF-8" fall back to the base language.
func Lookup(locale string) (Strings, bool) {
	base := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(base, "-_."); i >= 0 {
		base = base[:i]
	}
	s, ok := catalog[base]
	return s, ok
}

// For returns the strings for locale, or the default locale's strings.
func For(locale string) Strings {
	if s, ok := Lookup(locale); ok {
		return s
	}
	return catalog[DefaultLocale]
}

// Locales returns the supported locale codes, sorted.
func Locales() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
