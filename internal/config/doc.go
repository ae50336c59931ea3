// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management.
//
// Configuration is resolved in layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. ~/.chatbot/config.toml (or an explicit --config path)
//  3. A .env file in the working directory
//  4. Process environment variables (CHATBOT_*)
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := backend.NewClient(cfg.Backend.BaseURL).
//	    WithTimeout(cfg.Backend.Timeout())
//
// Values can be read and written with dot notation:
//
//	v, _ := cfg.Get("backend.base_url")
//	_ = cfg.Set("ui.locale", "en")
package config
