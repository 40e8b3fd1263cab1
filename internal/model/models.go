// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a model file the backend can serve.
// The original backend only reports names; size fields are zero there.
type ModelInfo struct {
	Name      string  `json:"name"`
	FilePath  string  `json:"file_path"`
	SizeMB    float64 `json:"size_mb"`
	SizeBytes int64   `json:"size_bytes"`
}

// Label returns the text shown in the model picker.
func (m ModelInfo) Label(caps Capabilities) string {
	if caps.Enhanced && m.SizeMB > 0 {
		return fmt.Sprintf("%s (%gMB)", m.Name, m.SizeMB)
	}
	return m.Name
}

// Matches reports whether current refers to this model. The server
// reports loaded models without the file extension.
func (m ModelInfo) Matches(current string) bool {
	if current == "" {
		return false
	}
	return current == m.Name || strings.Contains(current, strings.TrimSuffix(m.Name, ".gguf"))
}

// FindModel returns the entry in models that current refers to. An exact
// name wins, then a name equal once ".gguf" is dropped from both, then the
// longest name contained in current.
func FindModel(models []ModelInfo, current string) (ModelInfo, bool) {
	if current == "" {
		return ModelInfo{}, false
	}
	for _, m := range models {
		if m.Name == current {
			return m, true
		}
	}
	bare := strings.TrimSuffix(current, ".gguf")
	for _, m := range models {
		if strings.TrimSuffix(m.Name, ".gguf") == bare {
			return m, true
		}
	}

	var (
		best  ModelInfo
		found bool
	)
	for _, m := range models {
		if m.Matches(current) && (!found || len(m.Name) > len(best.Name)) {
			best, found = m, true
		}
	}
	return best, found
}

// =============================================================================
// SERVER STATUS & CAPABILITIES
// =============================================================================

// ServerStatus reports whether the model host is up and what it has loaded.
type ServerStatus struct {
	ServerRunning bool   `json:"server_running"`
	CurrentModel  string `json:"current_model,omitempty"`
	URL           string `json:"llamacpp_url,omitempty"`
}

// Description returns a short human-readable status.
func (s ServerStatus) Description() string {
	if !s.ServerRunning {
		return "Server offline"
	}
	if s.CurrentModel != "" {
		return "Server online - " + s.CurrentModel
	}
	return "Server online"
}

// Capabilities records what the connected backend supports.
type Capabilities struct {
	// Enhanced backends expose model listing with sizes, model switching
	// and a server status endpoint.
	Enhanced bool `json:"enhanced"`
}

// Mode returns a label for logs and the status bar.
func (c Capabilities) Mode() string {
	if c.Enhanced {
		return "enhanced"
	}
	return "compatibility"
}
