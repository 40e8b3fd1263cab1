// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/notify"
	"github.com/jeranaias/llama-chat/internal/render"
	"github.com/jeranaias/llama-chat/internal/session"
)

// ChatErrorText is the assistant block shown when a reply could not be fetched.
const ChatErrorText = "Error: Could not get response from llama.cpp server"

// ============================================================================
// VIEW TYPES
// ============================================================================

type conversationItem struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Model     string          `json:"model"`
	UpdatedAt model.Timestamp `json:"updated_at"`
	Active    bool            `json:"active"`
}

type blockView struct {
	Role model.Role `json:"role"`
	render.Fragment
}

type modelPrompt struct {
	Model   string `json:"model"`
	Message string `json:"message"`
}

type conversationView struct {
	ID          int64                   `json:"id"`
	Title       string                  `json:"title"`
	Model       string                  `json:"model"`
	Stats       model.ConversationStats `json:"stats"`
	Blocks      []blockView             `json:"blocks"`
	Anchor      string                  `json:"anchor"`
	ModelPrompt *modelPrompt            `json:"model_prompt,omitempty"`
}

type modelOption struct {
	Name     string  `json:"name"`
	Label    string  `json:"label"`
	SizeMB   float64 `json:"size_mb,omitempty"`
	Selected bool    `json:"selected"`
}

type searchHit struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
	Model   string `json:"model"`
}

type copyLabels struct {
	Idle    string `json:"idle"`
	Success string `json:"success"`
	Failure string `json:"failure"`
}

func labelsView(kind clipboard.Kind) copyLabels {
	l := clipboard.LabelsFor(kind)
	return copyLabels{Idle: l.Idle, Success: l.Success, Failure: l.Failure}
}

func blocksView(blocks []render.Block) []blockView {
	out := make([]blockView, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, blockView{Role: b.Role, Fragment: b.Fragment})
	}
	return out
}

func (s *Server) modelOptions(current string) []modelOption {
	caps := s.capabilities()
	models := s.modelList()
	selected, found := model.FindModel(models, current)

	out := make([]modelOption, 0, len(models))
	for _, m := range models {
		out = append(out, modelOption{
			Name:     m.Name,
			Label:    m.Label(caps),
			SizeMB:   m.SizeMB,
			Selected: found && m.Name == selected.Name,
		})
	}
	return out
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// ============================================================================
// PAGE
// ============================================================================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		Theme:            themeOrDefault(s.cfg.Theme),
		Mode:             state.Capabilities.Mode(),
		Enhanced:         state.Capabilities.Enhanced,
		Models:           s.modelOptions(state.CurrentModel),
		ConversationID:   state.ConversationID,
		Transcript:       trustedHTML(s.transcript.HTML()),
		HealthIntervalMs: s.monitor.Interval().Milliseconds(),
	})
	if err != nil {
		s.log.WithError(err).Error("failed to render page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleStatic(name, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := webFS.ReadFile(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
	}
}

func (s *Server) handleChromaCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	if err := s.currentRenderer().Highlighter().WriteCSS(w); err != nil {
		s.log.WithError(err).Warn("failed to write highlight css")
	}
}

// ============================================================================
// CONVERSATIONS
// ============================================================================

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.backend.ListConversations(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("failed to list conversations")
		s.notes.Error("Failed to load conversations")
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}

	state := s.session.State()
	items := make([]conversationItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, conversationItem{
			ID:        c.ID,
			Title:     c.Title,
			Model:     c.DisplayModel(state.Capabilities),
			UpdatedAt: c.UpdatedAt,
			Active:    c.ID == state.ConversationID,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

type createRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	state := s.session.State()
	if state.CurrentModel == "" {
		s.notes.Warning("Please select a model first")
		s.writeError(w, http.StatusConflict, "no model selected")
		return
	}

	create := backend.CreateConversationRequest{Title: req.Title, Model: state.CurrentModel}
	if state.Capabilities.Enhanced {
		create.ModelFile = s.modelFile(state.CurrentModel)
	}
	resp, err := s.backend.CreateConversation(r.Context(), create)
	if err != nil {
		s.log.WithError(err).Warn("failed to create conversation")
		s.notes.Push(notify.LevelError, "Failed to create new chat: "+backend.Message(err), 0)
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}
	if resp.ModelFile != "" {
		s.session.SetModel(resp.ModelFile)
	}

	view, err := s.loadConversation(r, resp.ConversationID)
	if err != nil {
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"conversation": view})
}

func (s *Server) handleLoadConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	view, err := s.loadConversation(r, id)
	if err != nil {
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversation": view})
}

// loadConversation makes id the active conversation and rebuilds the
// transcript from its stored messages.
func (s *Server) loadConversation(r *http.Request, id int64) (*conversationView, error) {
	detail, err := s.backend.GetConversation(r.Context(), id)
	if err != nil {
		s.log.WithError(err).WithField("conversation", id).Warn("failed to load conversation")
		s.notes.Push(notify.LevelError, "Failed to load conversation: "+backend.Message(err), 0)
		return nil, err
	}

	state := s.session.State()
	caps := state.Capabilities
	view := &conversationView{
		ID:    detail.Conversation.ID,
		Title: detail.Conversation.Title,
		Model: detail.Conversation.DisplayModel(caps),
		Stats: detail.Stats,
	}

	if want := detail.Conversation.ActiveModel(caps); want != "" && !s.isCurrentModel(want, state.CurrentModel) {
		view.ModelPrompt = s.reconcileModel(caps, want)
	}

	renderer := s.currentRenderer()
	s.transcript.Reset()
	for _, msg := range detail.Messages {
		s.transcript.Append(msg.Role, renderer.RenderMessage(msg))
	}
	s.session.SetConversation(detail.Conversation.ID)

	view.Blocks = blocksView(s.transcript.Blocks())
	view.Anchor = s.transcript.Anchor()
	return view, nil
}

// modelFile returns the file name of the listed model matching current.
func (s *Server) modelFile(current string) string {
	if m, ok := model.FindModel(s.modelList(), current); ok {
		return m.Name
	}
	return current
}

// isCurrentModel reports whether name refers to the loaded model. The
// backend reports loaded models without the file extension.
func (s *Server) isCurrentModel(name, current string) bool {
	if name == current {
		return true
	}
	m, ok := model.FindModel(s.modelList(), current)
	return ok && m.Name == name
}

// reconcileModel handles a conversation created with another model. The
// enhanced backend asks the user whether to switch; the original backend
// just notes the selection.
func (s *Server) reconcileModel(caps model.Capabilities, want string) *modelPrompt {
	models := s.modelList()
	if !caps.Enhanced {
		if _, ok := model.FindModel(models, want); ok {
			s.session.SetModel(want)
		}
		return nil
	}

	for _, m := range models {
		if m.Name == want {
			return &modelPrompt{
				Model:   want,
				Message: "This conversation was created with " + want + ". Switch to this model?",
			}
		}
	}
	s.notes.Push(notify.LevelWarning, "Model "+want+" not found. Using current model.", 0)
	return nil
}

type renameRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	var req renameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title, err := s.backend.RenameConversation(r.Context(), id, req.Title)
	if err != nil {
		msg := backend.Message(err)
		if msg == "" {
			msg = "Failed to rename conversation"
		}
		s.notes.Push(notify.LevelError, msg, 0)
		s.writeError(w, statusFor(err), msg)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"title": title})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	if err := s.backend.DeleteConversation(r.Context(), id); err != nil {
		s.log.WithError(err).WithField("conversation", id).Warn("failed to delete conversation")
		s.notes.Error("Failed to delete conversation")
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}

	cleared := false
	if s.session.State().ConversationID == id {
		s.session.SetConversation(0)
		s.transcript.Reset()
		cleared = true
	}
	s.notes.Success("Conversation deleted successfully")
	s.writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

// ============================================================================
// CHAT
// ============================================================================

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" {
		s.writeError(w, http.StatusBadRequest, backend.ErrEmptyMessage.Error())
		return
	}

	state, err := s.session.BeginSend()
	switch {
	case errors.Is(err, session.ErrBusy):
		s.writeError(w, http.StatusConflict, "a message is already being sent")
		return
	case errors.Is(err, session.ErrNoConversation):
		s.writeError(w, http.StatusConflict, "no conversation selected")
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer s.session.EndSend()

	// A reply that arrives after the browser went away is still recorded.
	// The backend client's timeout bounds the call.
	ctx := context.WithoutCancel(r.Context())
	status, err := s.backend.Status(ctx, state.Capabilities)
	if err != nil || !status.ServerRunning {
		s.notes.Error("llama.cpp server is not running. Please start the server.")
		s.writeError(w, http.StatusServiceUnavailable, "llama.cpp server is not running")
		return
	}

	renderer := s.currentRenderer()
	start := s.now()
	user := s.transcript.Append(model.RoleUser, renderer.RenderMessage(model.Message{
		ConversationID: state.ConversationID,
		Role:           model.RoleUser,
		Content:        text,
		Model:          state.CurrentModel,
		Timestamp:      model.NewTimestamp(start),
	}))

	chat := backend.ChatRequest{
		ConversationID: state.ConversationID,
		Message:        text,
		Model:          state.CurrentModel,
	}
	if state.Capabilities.Enhanced {
		chat.ModelFile = s.modelFile(state.CurrentModel)
	}

	resp, err := s.backend.Chat(ctx, chat)
	if err != nil {
		s.log.WithError(err).WithField("conversation", state.ConversationID).Warn("chat failed")
		failed := s.transcript.Append(model.RoleAssistant, renderer.RenderMessage(model.Message{
			ConversationID: state.ConversationID,
			Role:           model.RoleAssistant,
			Content:        ChatErrorText,
			Timestamp:      model.NewTimestamp(s.now()),
		}))
		s.notes.Error("Failed to get response from server")
		s.writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   backend.Message(err),
			"blocks":  blocksView([]render.Block{user, failed}),
			"anchor":  s.transcript.Anchor(),
		})
		return
	}

	finished := s.now()
	msg := resp.Message(state.ConversationID)
	msg.Timestamp = model.NewTimestamp(finished)
	msg.ResponseTimeMs = finished.Sub(start).Milliseconds()
	reply := s.transcript.Append(model.RoleAssistant, renderer.RenderMessage(msg))

	current := state.CurrentModel
	if state.Capabilities.Enhanced && resp.ModelFile != "" && resp.ModelFile != current {
		current = resp.ModelFile
		s.session.SetModel(current)
	}

	s.log.WithFields(logrus.Fields{
		"conversation": state.ConversationID,
		"duration":     finished.Sub(start).Round(time.Millisecond),
		"tokens":       msg.EstimatedTokens,
	}).Debug("chat reply")

	s.writeJSON(w, http.StatusOK, map[string]any{
		"blocks":        blocksView([]render.Block{user, reply}),
		"anchor":        s.transcript.Anchor(),
		"current_model": current,
	})
}

// ============================================================================
// SEARCH
// ============================================================================

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if utf8.RuneCountInString(query) < MinSearchLength {
		s.writeJSON(w, http.StatusOK, map[string]any{"results": []searchHit{}})
		return
	}

	results, err := s.backend.Search(r.Context(), query)
	if err != nil {
		s.log.WithError(err).Warn("search failed")
		s.notes.Error("Search failed")
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}

	caps := s.capabilities()
	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{
			ID:      res.ID,
			Title:   res.Title,
			Preview: truncateString(res.Content, PreviewLength),
			Model:   res.DisplayModel(caps),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// ============================================================================
// MODELS
// ============================================================================

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") != "" || len(s.modelList()) == 0 {
		if err := s.loadModels(r.Context()); err != nil {
			s.log.WithError(err).Warn("failed to load models")
			s.writeError(w, statusFor(err), backend.Message(err))
			return
		}
	}

	state := s.session.State()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"models":   s.modelOptions(state.CurrentModel),
		"current":  state.CurrentModel,
		"enhanced": state.Capabilities.Enhanced,
	})
}

type switchRequest struct {
	Model string `json:"model"`
	// Prompted is set when the switch answers a conversation's model prompt.
	Prompted bool `json:"prompted"`
}

func (s *Server) handleSwitchModel(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Model)
	if name == "" {
		s.writeError(w, http.StatusBadRequest, backend.ErrEmptyModel.Error())
		return
	}

	state := s.session.State()
	if !state.Capabilities.Enhanced {
		s.session.SetModel(name)
		s.notes.Info("Model switching requires enhanced backend. Current selection noted for new conversations.")
		s.writeJSON(w, http.StatusOK, map[string]any{"current_model": name, "switched": false})
		return
	}

	if s.isCurrentModel(name, state.CurrentModel) {
		s.writeJSON(w, http.StatusOK, map[string]any{"current_model": state.CurrentModel, "switched": false})
		return
	}

	if _, err := s.session.BeginSwitch(); err != nil {
		s.writeError(w, http.StatusConflict, "busy")
		return
	}

	resp, err := s.backend.SwitchModel(context.WithoutCancel(r.Context()), state.Capabilities, name)
	if err != nil {
		s.session.EndSwitch("")
		s.log.WithError(err).WithField("model", name).Warn("model switch failed")
		s.notes.Push(notify.LevelError, "Failed to switch model: "+backend.Message(err), 0)
		if req.Prompted {
			s.notes.Push(notify.LevelWarning, "Failed to switch to "+name+". Using current model.", 0)
		}
		s.writeError(w, statusFor(err), backend.Message(err))
		return
	}

	s.session.EndSwitch(resp.ModelFile)
	s.notes.Push(notify.LevelSuccess, "Successfully switched to "+name, 0)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"current_model": resp.ModelFile,
		"message":       resp.Message,
		"switched":      true,
	})
}

// ============================================================================
// STATUS
// ============================================================================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, checked := s.monitor.Last()
	if checked.IsZero() || r.URL.Query().Get("refresh") != "" {
		status = s.monitor.Check(r.Context())
		checked = time.Now()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"description": status.Description(),
		"mode":        s.capabilities().Mode(),
		"checked_at":  checked,
	})
}

// ============================================================================
// RENDER
// ============================================================================

type renderRequest struct {
	Content string     `json:"content"`
	Role    model.Role `json:"role,omitempty"`
}

// handleRender renders content without touching the transcript. With a
// role the result is a complete message block.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	renderer := s.currentRenderer()
	var frag render.Fragment
	switch {
	case req.Role == "":
		frag = renderer.RenderContent(req.Content)
	case req.Role.Valid():
		frag = renderer.RenderMessage(model.Message{Role: req.Role, Content: req.Content})
	default:
		s.writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"fragment": frag})
}

// ============================================================================
// COPY
// ============================================================================

// handleCopyMessage returns the visible prose of a message block. POST
// also writes it to the server's clipboard for pages without clipboard
// access.
func (s *Server) handleCopyMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("block")
	text, err := s.transcript.MessageText(id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, render.ErrBlockNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeCopy(w, r, id, clipboard.KindMessage, text)
}

// handleCopyCode returns the raw source of a code block.
func (s *Server) handleCopyCode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := s.transcript.CodeText(id)
	if err != nil {
		label := s.feedback.Trigger(id, clipboard.KindCode, false)
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"success":          false,
			"error":            "No code content found to copy",
			"label":            label,
			"labels":           labelsView(clipboard.KindCode),
			"restore_after_ms": s.feedback.Delay().Milliseconds(),
		})
		return
	}
	s.writeCopy(w, r, id, clipboard.KindCode, text)
}

func (s *Server) writeCopy(w http.ResponseWriter, r *http.Request, id string, kind clipboard.Kind, text string) {
	data := map[string]any{
		"text":             text,
		"labels":           labelsView(kind),
		"restore_after_ms": s.feedback.Delay().Milliseconds(),
	}
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusOK, data)
		return
	}

	ok := s.copier.Copy(text)
	data["copied"] = ok
	data["label"] = s.feedback.Trigger(id, kind, ok)
	if !ok {
		s.log.WithField("target", id).Warn("copy failed")
	}
	s.writeJSON(w, http.StatusOK, data)
}

// ============================================================================
// NOTIFICATIONS
// ============================================================================

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dismissed": s.notes.Dismiss(id)})
}
