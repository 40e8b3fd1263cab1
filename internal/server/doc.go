// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the llama-chat web front end.
//
// The server renders messages on its side and hands the page sanitized
// fragments together with the copy bindings it has to wire. The page never
// builds markup from message text.
//
// # Endpoints
//
//   - GET    /                         - Chat page
//   - GET    /static/{app.js,style.css,chroma.css}
//   - GET    /ui/conversations         - Sidebar list
//   - POST   /ui/conversations         - Create and open a conversation
//   - GET    /ui/conversations/{id}    - Open a conversation
//   - PUT    /ui/conversations/{id}    - Rename
//   - DELETE /ui/conversations/{id}    - Delete
//   - POST   /ui/chat                  - Send a message (rate limited)
//   - GET    /ui/search?q=             - Search conversations
//   - GET    /ui/models                - Model picker entries
//   - POST   /ui/models/switch         - Switch model (enhanced backend)
//   - GET    /ui/status                - Cached backend health
//   - POST   /ui/render                - Render content without storing it
//   - GET    /ui/copy/message/{block}  - Copy text of a message block
//   - GET    /ui/copy/code/{id}        - Raw source of a code block
//
// The copy endpoints also accept POST, which writes the text to the
// clipboard of the machine running the server. The page uses that when the
// browser refuses clipboard access.
//
// Every JSON response carries success, an optional error and the pending
// notifications.
//
// # Middleware
//
//   - Panic recovery
//   - Security headers with a same-origin content security policy
//   - Request logging
//   - Request body limit
//   - Per-client rate limiting on message submission
//
// # Usage
//
//	client := backend.NewClient(backend.DefaultConfig())
//	srv := server.NewServer(client, server.ConfigFrom(cfg))
//	srv.Init(ctx)
//	if err := srv.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
