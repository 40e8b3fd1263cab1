// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the backend client.
type Config struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:5000)
	BaseURL string

	// Timeout bounds a whole request, including generation (default: 180s)
	Timeout time.Duration

	// ConnectTimeout bounds establishing the connection (default: 15s)
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://127.0.0.1:5000",
		Timeout:        180 * time.Second,
		ConnectTimeout: 15 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the chat backend. It is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	log        *logrus.Entry
}

// NewClient creates a client. Zero config fields take their defaults.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: config.ConnectTimeout}).DialContext

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		log: logging.For("backend"),
	}
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// do sends one JSON request and decodes the JSON answer into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WithError(err).WithField("path", path).Debug("backend request failed")
		return transportError(err)
	}
	defer drainAndClose(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to read response", Cause: err}
	}

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("backend request")

	var env envelope
	envErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := env.Error
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if envErr == nil && env.Success != nil && !*env.Success {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns all conversations, most recently updated first.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var resp conversationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation creates a conversation. An empty title becomes "New Chat".
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*CreateConversationResponse, error) {
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "New Chat"
	}
	var resp CreateConversationResponse
	if err := c.do(ctx, http.MethodPost, "/api/conversations", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.ConversationID == 0 {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "response is missing conversation_id"}
	}
	return &resp, nil
}

// GetConversation loads a conversation with its messages and stats.
func (c *Client) GetConversation(ctx context.Context, id int64) (*ConversationDetail, error) {
	var resp ConversationDetail
	if err := c.do(ctx, http.MethodGet, conversationPath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Messages {
		if resp.Messages[i].ConversationID == 0 {
			resp.Messages[i].ConversationID = id
		}
	}
	return &resp, nil
}

// RenameConversation sets a new title and returns the stored one.
func (c *Client) RenameConversation(ctx context.Context, id int64, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	var resp renameResponse
	if err := c.do(ctx, http.MethodPut, conversationPath(id), nil, renameRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	if resp.Title == "" {
		resp.Title = title
	}
	return resp.Title, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, conversationPath(id), nil, nil, nil)
}

func conversationPath(id int64) string {
	return fmt.Sprintf("/api/conversations/%d", id)
}

// =============================================================================
// CHAT, SEARCH & STATS
// =============================================================================

// Chat sends a user message and waits for the full assistant reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search finds conversations whose title or messages contain query.
func (c *Client) Search(ctx context.Context, query string) ([]model.SearchResult, error) {
	// Stored messages are NFC; a decomposed query would never match.
	query = norm.NFC.String(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}
	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search", url.Values{"q": {query}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Stats returns detailed statistics of a conversation.
func (c *Client) Stats(ctx context.Context, id int64) (*StatsResponse, error) {
	var resp StatsResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/stats/%d", id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// =============================================================================
// MODELS & STATUS
// =============================================================================

// DetectCapabilities probes for the enhanced backend. Any failure means the
// original backend.
func (c *Client) DetectCapabilities(ctx context.Context) model.Capabilities {
	err := c.do(ctx, http.MethodGet, "/api/models/available", nil, nil, nil)
	caps := model.Capabilities{Enhanced: err == nil}
	c.log.WithField("mode", caps.Mode()).Info("backend capabilities detected")
	return caps
}

// ListModels returns the selectable models. The current model is the one
// the backend reports, else the first listed.
func (c *Client) ListModels(ctx context.Context, caps model.Capabilities) (*ModelList, error) {
	list := &ModelList{}
	if caps.Enhanced {
		var resp availableModelsResponse
		if err := c.do(ctx, http.MethodGet, "/api/models/available", nil, nil, &resp); err != nil {
			return nil, err
		}
		list.Models = resp.Models
		list.Current = resp.CurrentModel
	} else {
		var resp loadedModelsResponse
		if err := c.do(ctx, http.MethodGet, "/api/models", nil, nil, &resp); err != nil {
			return nil, err
		}
		for _, name := range resp.Models {
			list.Models = append(list.Models, model.ModelInfo{Name: name})
		}
		list.Current = resp.CurrentModel
	}

	if list.Current == "" && len(list.Models) > 0 {
		list.Current = list.Models[0].Name
	}
	return list, nil
}

// SwitchModel asks the enhanced backend to load another model file.
func (c *Client) SwitchModel(ctx context.Context, caps model.Capabilities, name string) (*SwitchResponse, error) {
	if !caps.Enhanced {
		return nil, ErrNotEnhanced
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyModel
	}
	var resp SwitchResponse
	if err := c.do(ctx, http.MethodPost, "/api/models/switch", nil, switchRequest{ModelName: name}, &resp); err != nil {
		return nil, err
	}
	if resp.ModelFile == "" {
		resp.ModelFile = name
	}
	return &resp, nil
}

// Status reports whether the model host is up. On error the returned
// status has ServerRunning false and the error says why.
func (c *Client) Status(ctx context.Context, caps model.Capabilities) (model.ServerStatus, error) {
	if caps.Enhanced {
		var status model.ServerStatus
		if err := c.do(ctx, http.MethodGet, "/api/server/status", nil, nil, &status); err != nil {
			return model.ServerStatus{}, err
		}
		return status, nil
	}

	var resp loadedModelsResponse
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, nil, &resp); err != nil {
		return model.ServerStatus{}, err
	}
	status := model.ServerStatus{
		ServerRunning: len(resp.Models) > 0,
		CurrentModel:  resp.CurrentModel,
		URL:           resp.URL,
	}
	if status.CurrentModel == "" && len(resp.Models) > 0 {
		status.CurrentModel = resp.Models[0]
	}
	return status, nil
}

func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
