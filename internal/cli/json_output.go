// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting llama-chat.
//
// Every command accepts --json and then writes exactly one JSONResponse
// to stdout. Human-readable progress goes to stderr in that mode.
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/llama-chat/internal/model"
)

// JSONResponse is the standardized response format for all CLI commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the ISO8601 timestamp when the response was generated
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write outputs the JSON response to w.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND DATA TYPES
// =============================================================================

// VersionData is the data of the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// StatusData is the data of the status command.
type StatusData struct {
	model.ServerStatus
	Mode        string `json:"mode"`
	Description string `json:"description"`
	BackendURL  string `json:"backend_url"`
}

// CopyData is the data of the copy command.
type CopyData struct {
	ConversationID int64  `json:"conversation_id"`
	Index          int    `json:"index"`
	Code           int    `json:"code,omitempty"`
	Text           string `json:"text"`
	Copied         bool   `json:"copied"`
	Label          string `json:"label"`
}

// SwitchData is the data of the switch command.
type SwitchData struct {
	Switched     bool   `json:"switched"`
	CurrentModel string `json:"current_model"`
	Message      string `json:"message"`
}
