// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for llama-chat.
//
// Configuration file locations (in order of precedence):
//   - ~/.llama-chat/config.toml
//   - ~/.llama-chat/config.json
//   - Built-in defaults
//
// Environment variables (LLAMA_CHAT_*) override file values. A running
// server can follow edits to the TOML file via Watch.
//
// # Example config.toml
//
//	[backend]
//	url = "http://127.0.0.1:5000"
//	timeout_secs = 180
//
//	[server]
//	addr = "127.0.0.1:8790"
//
//	[ui]
//	code_style = "github-dark"
//
//	[log]
//	level = "info"
package config
