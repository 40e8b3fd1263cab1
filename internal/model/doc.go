// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures exchanged with the llama-chat
// backend: conversations, messages, models and server status.
//
// # Key Types
//
//   - Message: a single chat message with optional response metrics
//   - Conversation: conversation metadata as listed by the backend
//   - ModelInfo: a model file the backend can load
//   - Capabilities: what the connected backend supports, resolved once
//
// Messages are immutable once received. Zero values stand for "absent":
// a message with ResponseTimeMs == 0 carries no timing stat.
package model
