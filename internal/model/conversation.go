// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CONVERSATION TYPES
// =============================================================================

// Conversation is the metadata of a stored conversation.
type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	ModelFile string    `json:"model_file,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// DisplayModel returns the model label shown in the sidebar.
func (c Conversation) DisplayModel(caps Capabilities) string {
	if caps.Enhanced && c.ModelFile != "" {
		return c.ModelFile
	}
	return c.Model
}

// ActiveModel returns the model the conversation was created with.
func (c Conversation) ActiveModel(caps Capabilities) string {
	if caps.Enhanced && c.ModelFile != "" {
		return c.ModelFile
	}
	return c.Model
}

// ConversationStats summarizes the messages of one conversation.
type ConversationStats struct {
	TotalMessages     int     `json:"total_messages"`
	AssistantMessages int     `json:"assistant_messages"`
	AvgResponseTime   float64 `json:"avg_response_time"`
	TotalTokens       int     `json:"total_tokens"`
}

// SearchResult is one hit of a conversation search.
type SearchResult struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	ModelFile string    `json:"model_file,omitempty"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// DisplayModel returns the model label shown for the hit.
func (r SearchResult) DisplayModel(caps Capabilities) string {
	if caps.Enhanced && r.ModelFile != "" {
		return r.ModelFile
	}
	return r.Model
}
