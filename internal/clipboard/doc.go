// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package clipboard writes text to the system clipboard and tracks the
// transient label feedback of copy buttons.
//
// Copier tries the native clipboard first (atotto/clipboard) and falls
// back to an OSC 52 escape sequence written to the terminal, which works
// over SSH and in terminals without a clipboard utility. Copy reports a
// plain success flag; failures are logged, never returned as errors.
//
// Feedback swaps a button label to a success or failure indicator and
// restores the original after a fixed delay. A repeat trigger on the same
// button restarts the delay.
package clipboard
