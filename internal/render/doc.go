// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns chat messages into sanitized HTML fragments.
//
// The pipeline for assistant messages is:
//
//  1. Thinking extraction: every <think>...</think> span is replaced in
//     place by a thinking-content block whose body is inline markdown.
//  2. Markdown conversion (goldmark, GFM, hard line breaks). Fenced code
//     blocks are replaced by a header with the language and a copy
//     button, followed by a chroma-highlighted <code> element with a
//     random "code-xxxxxxxxx" id.
//  3. Sanitizing with a bluemonday policy that keeps the classes, ids and
//     data attributes the pipeline emits.
//
// A conversion failure of any kind degrades to the escaped input with
// newlines turned into <br>; it never propagates to the caller.
//
// Fragments carry their event bindings explicitly (element id + action)
// instead of inline onclick handlers. The host attaches listeners for them.
//
// # Usage
//
//	r := render.New(render.WithCapabilities(caps))
//	frag := r.RenderMessage(msg)
//	transcript.Append(msg.Role, frag)
package render
