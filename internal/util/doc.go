// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small file helpers shared by the config layer and the
// chat REPL.
//
//	// Replace the config file without ever leaving it half written
//	err := util.AtomicWriteFile(path, data, 0644)
package util
