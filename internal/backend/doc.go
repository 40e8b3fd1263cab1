// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the llama.cpp chat backend.
//
// The backend stores conversations and proxies chat requests to a llama.cpp
// server. Two variants exist: the original backend, which only knows the
// loaded model name, and the enhanced backend, which adds a model directory
// listing, model switching and a server status endpoint. DetectCapabilities
// tells them apart and every model-related call takes the result.
//
// # Error Handling
//
// Transport failures are *ClientError values matching the sentinels
// ErrNotRunning and ErrTimeout via errors.Is. Responses with a non-2xx
// status or "success": false are *APIError values carrying the status code
// and the backend's error message. Calls are never retried.
//
// # Usage
//
//	client := backend.NewClient(backend.DefaultConfig())
//	caps := client.DetectCapabilities(ctx)
//	id, err := client.CreateConversation(ctx, backend.CreateConversationRequest{Title: "New Chat"})
//	resp, err := client.Chat(ctx, backend.ChatRequest{ConversationID: id.ConversationID, Message: "hi"})
package backend
