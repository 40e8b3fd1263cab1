// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "github.com/jeranaias/llama-chat/internal/model"

// MaxTitleLength is the longest conversation title the backend accepts.
const MaxTitleLength = 100

// envelope holds the fields every backend response may carry.
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

type conversationsResponse struct {
	Conversations []model.Conversation `json:"conversations"`
}

// CreateConversationRequest is the body of POST /api/conversations.
type CreateConversationRequest struct {
	Title     string `json:"title"`
	Model     string `json:"model,omitempty"`
	ModelFile string `json:"model_file,omitempty"`
}

// CreateConversationResponse is the backend's answer to a create. Model
// fields are only filled by the enhanced backend.
type CreateConversationResponse struct {
	ConversationID int64  `json:"conversation_id"`
	Model          string `json:"model,omitempty"`
	ModelFile      string `json:"model_file,omitempty"`
}

// ConversationDetail is a conversation with its messages.
type ConversationDetail struct {
	Conversation model.Conversation      `json:"conversation"`
	Messages     []model.Message         `json:"messages"`
	Stats        model.ConversationStats `json:"stats"`
}

type renameRequest struct {
	Title string `json:"title"`
}

type renameResponse struct {
	Title string `json:"title"`
}

// =============================================================================
// CHAT
// =============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id"`
	Message        string `json:"message"`
	Model          string `json:"model,omitempty"`
	ModelFile      string `json:"model_file,omitempty"`
}

// ChatMetrics are the token counts reported by llama.cpp, when available.
type ChatMetrics struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the assistant reply with its metrics.
type ChatResponse struct {
	Response        string      `json:"response"`
	Model           string      `json:"model"`
	ModelFile       string      `json:"model_file,omitempty"`
	ResponseTimeMs  int64       `json:"response_time_ms"`
	EstimatedTokens int         `json:"estimated_tokens"`
	Metrics         ChatMetrics `json:"metrics"`
}

// Message converts the reply into an assistant message. A reply without a
// token count gets the client-side estimate.
func (r ChatResponse) Message(conversationID int64) model.Message {
	tokens := r.EstimatedTokens
	if tokens <= 0 {
		tokens = model.EstimateTokens(r.Response)
	}
	return model.Message{
		ConversationID:  conversationID,
		Role:            model.RoleAssistant,
		Content:         r.Response,
		Model:           r.Model,
		ModelFile:       r.ModelFile,
		ResponseTimeMs:  r.ResponseTimeMs,
		EstimatedTokens: tokens,
	}
}

// =============================================================================
// SEARCH & STATS
// =============================================================================

type searchResponse struct {
	Results []model.SearchResult `json:"results"`
}

// RoleStats aggregates the messages of one role.
type RoleStats struct {
	Role            model.Role `json:"role"`
	Count           int        `json:"count"`
	AvgLength       float64    `json:"avg_length"`
	TotalTokens     int        `json:"total_tokens"`
	AvgResponseTime float64    `json:"avg_response_time"`
}

// StatsResponse is the detailed statistics of a conversation.
type StatsResponse struct {
	Summary model.ConversationStats `json:"summary"`
	ByRole  []RoleStats             `json:"by_role"`
}

// =============================================================================
// MODELS
// =============================================================================

// ModelList is the set of selectable models and the one currently loaded.
type ModelList struct {
	Models  []model.ModelInfo `json:"models"`
	Current string            `json:"current_model,omitempty"`
}

type availableModelsResponse struct {
	Models       []model.ModelInfo `json:"models"`
	CurrentModel string            `json:"current_model"`
}

type loadedModelsResponse struct {
	Models       []string `json:"models"`
	CurrentModel string   `json:"current_model"`
	URL          string   `json:"llamacpp_url"`
}

type switchRequest struct {
	ModelName string `json:"model_name"`
}

// SwitchResponse reports the outcome of a model switch.
type SwitchResponse struct {
	Message      string `json:"message"`
	CurrentModel string `json:"current_model"`
	ModelFile    string `json:"model_file"`
}
