// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backendtest provides an in-memory chat backend for tests. It
// speaks the same REST API as the real backend, in either the original or
// the enhanced variant.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/llama-chat/internal/model"
)

// Fake is an in-memory backend. It is safe for concurrent use.
type Fake struct {
	mu sync.Mutex

	enhanced      bool
	serverRunning bool
	conversations map[int64]*conversation
	nextID        int64
	nextMsgID     int64
	models        []model.ModelInfo
	current       string
	requests      []string

	// chatStatus, when non-zero, makes /api/chat fail with that status.
	chatStatus int
	reply      func(message string) string
}

type conversation struct {
	info     model.Conversation
	messages []model.Message
}

// New creates a fake with two models and the first one loaded.
func New(enhanced bool) *Fake {
	return &Fake{
		enhanced:      enhanced,
		serverRunning: true,
		conversations: make(map[int64]*conversation),
		nextID:        1,
		nextMsgID:     1,
		models: []model.ModelInfo{
			{Name: "llama-3-8b.gguf", FilePath: "/models/llama-3-8b.gguf", SizeMB: 4692.8, SizeBytes: 4920739840},
			{Name: "qwen2.5-7b.gguf", FilePath: "/models/qwen2.5-7b.gguf", SizeMB: 4466.1, SizeBytes: 4683073536},
		},
		current: "llama-3-8b",
		reply:   func(message string) string { return "Echo: " + message },
	}
}

// Start serves the fake on a test server closed at cleanup.
func (f *Fake) Start(tb testing.TB) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(f.Handler())
	tb.Cleanup(srv.Close)
	return srv
}

// SetChatStatus makes /api/chat fail with status; zero restores success.
func (f *Fake) SetChatStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatStatus = status
}

// SetReply replaces the reply generator.
func (f *Fake) SetReply(fn func(message string) string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = fn
}

// SetServerRunning sets what the status endpoints report.
func (f *Fake) SetServerRunning(running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverRunning = running
}

// Requests returns "METHOD /path" for every request served.
func (f *Fake) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Seed adds a conversation with messages and returns its id.
func (f *Fake) Seed(title string, messages ...model.Message) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.createLocked(title, f.current, f.currentFileLocked())
	for _, m := range messages {
		f.addMessageLocked(c, m)
	}
	return c.info.ID
}

// Messages returns the stored messages of a conversation.
func (f *Fake) Messages(id int64) []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return nil
	}
	return append([]model.Message(nil), c.messages...)
}

// CurrentModel returns the loaded model name.
func (f *Fake) CurrentModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// =============================================================================
// ROUTES
// =============================================================================

// Handler returns the backend's HTTP API.
func (f *Fake) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", f.handleList)
	mux.HandleFunc("POST /api/conversations", f.handleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", f.handleGet)
	mux.HandleFunc("PUT /api/conversations/{id}", f.handleRename)
	mux.HandleFunc("DELETE /api/conversations/{id}", f.handleDelete)
	mux.HandleFunc("POST /api/chat", f.handleChat)
	mux.HandleFunc("GET /api/search", f.handleSearch)
	mux.HandleFunc("GET /api/stats/{id}", f.handleStats)
	mux.HandleFunc("GET /api/models", f.handleModels)
	mux.HandleFunc("GET /api/models/available", f.enhancedOnly(f.handleAvailable))
	mux.HandleFunc("POST /api/models/switch", f.enhancedOnly(f.handleSwitch))
	mux.HandleFunc("GET /api/server/status", f.enhancedOnly(f.handleStatus))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (f *Fake) enhancedOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !f.enhanced {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "success": false})
}

func (f *Fake) lookup(w http.ResponseWriter, r *http.Request) (*conversation, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return nil, false
	}
	c, ok := f.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return nil, false
	}
	return c, true
}

func (f *Fake) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]model.Conversation, 0, len(f.conversations))
	for _, c := range f.conversations {
		list = append(list, c.info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"conversations": list, "success": true})
}

func (f *Fake) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string `json:"title"`
		Model     string `json:"model"`
		ModelFile string `json:"model_file"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Title == "" {
		req.Title = "New Chat"
	}
	if req.Model == "" {
		req.Model = f.current
	}
	if req.ModelFile == "" && f.enhanced {
		req.ModelFile = f.currentFileLocked()
	}
	c := f.createLocked(req.Title, req.Model, req.ModelFile)
	resp := map[string]any{"conversation_id": c.info.ID}
	if f.enhanced {
		resp["success"] = true
		resp["model"] = c.info.Model
		resp["model_file"] = c.info.ModelFile
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *Fake) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation": c.info,
		"messages":     c.messages,
		"stats":        statsOf(c),
		"success":      true,
	})
}

func (f *Fake) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	title := strings.TrimSpace(req.Title)

	f.mu.Lock()
	defer f.mu.Unlock()
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	c, ok := f.lookup(w, r)
	if !ok {
		return
	}
	c.info.Title = title
	c.info.UpdatedAt = model.NewTimestamp(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "title": title})
}

func (f *Fake) handleDelete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(w, r)
	if !ok {
		return
	}
	delete(f.conversations, c.info.ID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Conversation deleted successfully"})
}

func (f *Fake) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID int64  `json:"conversation_id"`
		Message        string `json:"message"`
		Model          string `json:"model"`
		ModelFile      string `json:"model_file"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chatStatus != 0 {
		writeError(w, f.chatStatus, "Chat request failed: llama.cpp unavailable")
		return
	}
	if req.ConversationID == 0 || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing conversation_id or message")
		return
	}
	c, ok := f.conversations[req.ConversationID]
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	if f.enhanced && req.ModelFile != "" && req.ModelFile != f.currentFileLocked() {
		if _, found := model.FindModel(f.models, req.ModelFile); found {
			f.current = strings.TrimSuffix(req.ModelFile, ".gguf")
		}
	}
	name := req.Model
	if name == "" {
		name = f.current
	}

	reply := f.reply(req.Message)
	f.addMessageLocked(c, model.Message{Role: model.RoleUser, Content: req.Message, Model: name})
	f.addMessageLocked(c, model.Message{
		Role:            model.RoleAssistant,
		Content:         reply,
		Model:           name,
		ModelFile:       f.currentFileLocked(),
		ResponseTimeMs:  2000,
		EstimatedTokens: 50,
	})

	resp := map[string]any{
		"response":         reply,
		"model":            name,
		"response_time_ms": 2000,
		"estimated_tokens": 50,
		"metrics":          map[string]any{"completion_tokens": 50, "prompt_tokens": 12, "total_tokens": 62},
	}
	if f.enhanced {
		resp["success"] = true
		resp["model_file"] = f.currentFileLocked()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *Fake) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

	f.mu.Lock()
	defer f.mu.Unlock()
	results := []model.SearchResult{}
	if q != "" {
		ids := make([]int64, 0, len(f.conversations))
		for id := range f.conversations {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
		for _, id := range ids {
			c := f.conversations[id]
			for _, m := range c.messages {
				if strings.Contains(strings.ToLower(m.Content), q) || strings.Contains(strings.ToLower(c.info.Title), q) {
					results = append(results, model.SearchResult{
						ID:        c.info.ID,
						Title:     c.info.Title,
						Model:     c.info.Model,
						ModelFile: c.info.ModelFile,
						Content:   m.Content,
						Role:      m.Role,
						UpdatedAt: c.info.UpdatedAt,
					})
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "success": true})
}

func (f *Fake) handleStats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(w, r)
	if !ok {
		return
	}
	byRole := map[model.Role]map[string]any{}
	for _, m := range c.messages {
		s, ok := byRole[m.Role]
		if !ok {
			s = map[string]any{"role": m.Role, "count": 0, "total_tokens": 0}
			byRole[m.Role] = s
		}
		s["count"] = s["count"].(int) + 1
		s["total_tokens"] = s["total_tokens"].(int) + m.EstimatedTokens
	}
	roles := make([]map[string]any, 0, len(byRole))
	for _, role := range []model.Role{model.RoleUser, model.RoleAssistant} {
		if s, ok := byRole[role]; ok {
			roles = append(roles, s)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": statsOf(c), "by_role": roles})
}

func (f *Fake) handleModels(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	models := []string{}
	if f.serverRunning {
		models = append(models, f.current)
	}
	resp := map[string]any{"models": models, "count": len(models), "llamacpp_url": "http://127.0.0.1:8080"}
	if f.enhanced {
		resp["current_model"] = f.current
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *Fake) handleAvailable(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"models":        f.models,
		"current_model": f.current,
		"count":         len(f.models),
		"models_dir":    "/models",
	})
}

func (f *Fake) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelName string `json:"model_name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if req.ModelName == "" {
		writeError(w, http.StatusBadRequest, "Model name is required")
		return
	}
	found := false
	for _, m := range f.models {
		if m.Name == req.ModelName {
			found = true
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "Model file not found: "+req.ModelName)
		return
	}
	f.current = strings.TrimSuffix(req.ModelName, ".gguf")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Successfully switched to " + req.ModelName,
		"current_model": f.current,
		"model_file":    req.ModelName,
	})
}

func (f *Fake) handleStatus(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := map[string]any{
		"server_running": f.serverRunning,
		"llamacpp_url":   "http://127.0.0.1:8080",
	}
	if f.serverRunning {
		resp["current_model"] = f.current
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// STORAGE
// =============================================================================

func (f *Fake) createLocked(title, modelName, modelFile string) *conversation {
	now := model.NewTimestamp(time.Now())
	c := &conversation{info: model.Conversation{
		ID:        f.nextID,
		Title:     title,
		Model:     modelName,
		ModelFile: modelFile,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	f.conversations[c.info.ID] = c
	f.nextID++
	return c
}

func (f *Fake) addMessageLocked(c *conversation, m model.Message) {
	m.ID = f.nextMsgID
	f.nextMsgID++
	m.ConversationID = c.info.ID
	if m.Timestamp.IsZero() {
		m.Timestamp = model.NewTimestamp(time.Now())
	}
	if m.EstimatedTokens == 0 && m.Role == model.RoleUser {
		m.EstimatedTokens = model.EstimateTokens(m.Content)
	}
	c.messages = append(c.messages, m)
	c.info.UpdatedAt = m.Timestamp
}

func (f *Fake) currentFileLocked() string {
	if m, ok := model.FindModel(f.models, f.current); ok {
		return m.Name
	}
	return ""
}

func statsOf(c *conversation) model.ConversationStats {
	var s model.ConversationStats
	var totalTime int64
	for _, m := range c.messages {
		s.TotalMessages++
		if m.IsAssistant() {
			s.AssistantMessages++
			s.TotalTokens += m.EstimatedTokens
			totalTime += m.ResponseTimeMs
		}
	}
	if s.AssistantMessages > 0 {
		s.AvgResponseTime = float64(totalTime) / float64(s.AssistantMessages)
	}
	return s
}
