// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/config"
	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/notify"
	"github.com/jeranaias/llama-chat/internal/render"
	"github.com/jeranaias/llama-chat/internal/session"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// MaxRequestBodySize bounds request bodies when no limit is configured.
	MaxRequestBodySize = 1 * 1024 * 1024

	// MinSearchLength is the shortest query sent to the backend.
	MinSearchLength = 2

	// PreviewLength is the number of characters shown per search hit.
	PreviewLength = 100

	// longNotification is used for notifications that need more reading time.
	longNotification = 5 * time.Second
)

// ============================================================================
// BACKEND
// ============================================================================

// Backend is the REST collaborator the server drives. *backend.Client
// implements it.
type Backend interface {
	backend.StatusChecker

	ListConversations(ctx context.Context) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, req backend.CreateConversationRequest) (*backend.CreateConversationResponse, error)
	GetConversation(ctx context.Context, id int64) (*backend.ConversationDetail, error)
	RenameConversation(ctx context.Context, id int64, title string) (string, error)
	DeleteConversation(ctx context.Context, id int64) error
	Chat(ctx context.Context, req backend.ChatRequest) (*backend.ChatResponse, error)
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
	DetectCapabilities(ctx context.Context) model.Capabilities
	ListModels(ctx context.Context, caps model.Capabilities) (*backend.ModelList, error)
	SwitchModel(ctx context.Context, caps model.Capabilities, name string) (*backend.SwitchResponse, error)
}

// ============================================================================
// CONFIG
// ============================================================================

// Config holds the web front end settings.
type Config struct {
	Addr              string
	ChatRatePerMinute int
	MaxBodyBytes      int64
	Theme             string
	CodeStyle         string
	HealthInterval    time.Duration
}

// ConfigFrom extracts the server settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Addr:              cfg.Server.Addr,
		ChatRatePerMinute: cfg.Server.ChatRatePerMinute,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		Theme:             cfg.UI.Theme,
		CodeStyle:         cfg.UI.CodeStyle,
		HealthInterval:    cfg.HealthInterval(),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server renders the chat UI and relays user actions to the backend.
type Server struct {
	cfg    Config
	router *http.ServeMux

	httpMu sync.Mutex
	server *http.Server
	closed bool

	backend    Backend
	session    *session.Controller
	transcript *render.Transcript
	notes      *notify.Center
	feedback   *clipboard.Feedback
	copier     *clipboard.Copier
	monitor    *backend.Monitor
	limiter    *RateLimiter
	log        *logrus.Entry
	now        func() time.Time

	mu         sync.RWMutex
	renderer   *render.Renderer
	renderOpts []render.Option
	models     []model.ModelInfo
}

// NewServer creates a Server talking to b.
func NewServer(b Backend, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = MaxRequestBodySize
	}

	s := &Server{
		cfg:        cfg,
		router:     http.NewServeMux(),
		backend:    b,
		session:    session.NewController(),
		transcript: render.NewTranscript(),
		notes:      notify.NewCenter(),
		feedback:   clipboard.NewFeedback(),
		copier:     clipboard.NewCopier(),
		limiter:    NewRateLimiter(cfg.ChatRatePerMinute, burstFor(cfg.ChatRatePerMinute)),
		log:        logging.For("server"),
		now:        time.Now,
	}

	opts := []backend.MonitorOption{
		backend.WithOnChange(s.onStatusChange),
	}
	if cfg.HealthInterval > 0 {
		opts = append(opts, backend.WithInterval(cfg.HealthInterval))
	}
	s.monitor = backend.NewMonitor(b, s.capabilities, opts...)

	s.rebuildRenderer(model.Capabilities{})
	s.setupRoutes()
	return s
}

func burstFor(perMinute int) int {
	if perMinute <= 0 {
		return 1
	}
	return max(1, perMinute/6)
}

// WithRenderOptions adds renderer options, such as a fixed id generator.
func (s *Server) WithRenderOptions(opts ...render.Option) *Server {
	s.mu.Lock()
	s.renderOpts = append(s.renderOpts, opts...)
	s.mu.Unlock()
	s.rebuildRenderer(s.capabilities())
	return s
}

// WithCopier replaces the clipboard used for server-side copies.
func (s *Server) WithCopier(c *clipboard.Copier) *Server {
	s.copier = c
	return s
}

// WithFeedback replaces the copy button feedback tracker.
func (s *Server) WithFeedback(f *clipboard.Feedback) *Server {
	s.feedback = f
	return s
}

// WithNotifications replaces the notification center.
func (s *Server) WithNotifications(c *notify.Center) *Server {
	s.notes = c
	return s
}

// WithLogger sets the log entry.
func (s *Server) WithLogger(entry *logrus.Entry) *Server {
	s.log = entry
	return s
}

// WithClock replaces the time source used for message timestamps and
// response times.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Session returns the session controller.
func (s *Server) Session() *session.Controller {
	return s.session
}

// Transcript returns the rendered blocks of the active conversation.
func (s *Server) Transcript() *render.Transcript {
	return s.transcript
}

// Notifications returns the notification center.
func (s *Server) Notifications() *notify.Center {
	return s.notes
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

func (s *Server) capabilities() model.Capabilities {
	return s.session.State().Capabilities
}

func (s *Server) currentRenderer() *render.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renderer
}

// rebuildRenderer recreates the renderer so model labels follow caps.
func (s *Server) rebuildRenderer(caps model.Capabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := []render.Option{
		render.WithCapabilities(caps),
		render.WithLogger(logging.For("render")),
	}
	if s.cfg.CodeStyle != "" {
		opts = append(opts, render.WithCodeStyle(s.cfg.CodeStyle))
	}
	opts = append(opts, s.renderOpts...)
	s.renderer = render.New(opts...)
}

func (s *Server) modelList() []model.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ModelInfo(nil), s.models...)
}

func (s *Server) onStatusChange(status model.ServerStatus) {
	s.log.WithFields(logrus.Fields{
		"running": status.ServerRunning,
		"model":   status.CurrentModel,
	}).Info("backend status changed")
}

// ============================================================================
// INITIALIZATION
// ============================================================================

// Init detects the backend capabilities and loads the model list. Problems
// are reported as notifications for the first page load.
func (s *Server) Init(ctx context.Context) {
	caps := s.backend.DetectCapabilities(ctx)
	s.session.SetCapabilities(caps)
	s.rebuildRenderer(caps)

	if err := s.loadModels(ctx); err != nil {
		s.log.WithError(err).Warn("failed to load models")
		s.notes.Push(notify.LevelError, "Failed to initialize application. Check console for details.", longNotification)
		return
	}

	status := s.monitor.Check(ctx)
	if !status.ServerRunning {
		s.notes.Push(notify.LevelWarning, "llama.cpp server may not be running. Some features may not work.", longNotification)
	}

	if caps.Enhanced {
		s.notes.Success("Enhanced backend detected - full model switching available!")
	} else {
		s.notes.Push(notify.LevelInfo, "Using compatibility mode - upgrade Flask app for model switching", longNotification)
	}
}

func (s *Server) loadModels(ctx context.Context) error {
	list, err := s.backend.ListModels(ctx, s.capabilities())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.models = list.Models
	s.mu.Unlock()
	s.session.SetModel(list.Current)
	s.log.WithFields(logrus.Fields{"count": len(list.Models), "current": list.Current}).Debug("models loaded")
	return nil
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex)
	s.router.HandleFunc("GET /static/app.js", s.handleStatic("web/app.js", "text/javascript; charset=utf-8"))
	s.router.HandleFunc("GET /static/style.css", s.handleStatic("web/style.css", "text/css; charset=utf-8"))
	s.router.HandleFunc("GET /static/chroma.css", s.handleChromaCSS)

	s.router.HandleFunc("GET /ui/conversations", s.handleListConversations)
	s.router.HandleFunc("POST /ui/conversations", s.handleCreateConversation)
	s.router.HandleFunc("GET /ui/conversations/{id}", s.handleLoadConversation)
	s.router.HandleFunc("PUT /ui/conversations/{id}", s.handleRenameConversation)
	s.router.HandleFunc("DELETE /ui/conversations/{id}", s.handleDeleteConversation)

	chat := RateLimitMiddleware(s.limiter, s.log)(http.HandlerFunc(s.handleChat))
	s.router.Handle("POST /ui/chat", chat)

	s.router.HandleFunc("GET /ui/search", s.handleSearch)
	s.router.HandleFunc("GET /ui/models", s.handleModels)
	s.router.HandleFunc("POST /ui/models/switch", s.handleSwitchModel)
	s.router.HandleFunc("GET /ui/status", s.handleStatus)
	s.router.HandleFunc("POST /ui/render", s.handleRender)

	s.router.HandleFunc("GET /ui/copy/message/{block}", s.handleCopyMessage)
	s.router.HandleFunc("POST /ui/copy/message/{block}", s.handleCopyMessage)
	s.router.HandleFunc("GET /ui/copy/code/{id}", s.handleCopyCode)
	s.router.HandleFunc("POST /ui/copy/code/{id}", s.handleCopyCode)

	s.router.HandleFunc("DELETE /ui/notifications/{id}", s.handleDismiss)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.log),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.log),
		BodyLimitMiddleware(s.cfg.MaxBodyBytes),
	)(s.router)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start runs the health monitor and serves until the server is shut down
// or ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.httpMu.Lock()
	if s.closed {
		s.httpMu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Chat requests wait for the model.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	s.server = srv
	s.httpMu.Unlock()

	go s.monitor.Run(ctx)
	go s.pruneLimiter(ctx)

	s.log.WithFields(logrus.Fields{"addr": s.cfg.Addr, "mode": s.capabilities().Mode()}).Info("server starting")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) pruneLimiter(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiter.Prune(10 * time.Minute)
		}
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.feedback.Stop()

	s.httpMu.Lock()
	s.closed = true
	srv := s.server
	s.httpMu.Unlock()
	if srv == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes data merged with the success flag and any pending
// notifications.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["success"]; !ok {
		data["success"] = status < http.StatusBadRequest
	}
	notes := s.notes.Drain()
	if notes == nil {
		notes = []notify.Notification{}
	}
	data["notifications"] = notes

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Debug("failed to write response")
	}
}

// writeError writes an error response. Notifications stay queued.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// writeJSONError is used by middleware that has no Server at hand.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":       false,
		"error":         message,
		"notifications": []notify.Notification{},
	})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps a backend error to the HTTP status relayed to the page.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return apiErr.Status
	case errors.Is(err, backend.ErrEmptyTitle),
		errors.Is(err, backend.ErrTitleTooLong),
		errors.Is(err, backend.ErrEmptyMessage),
		errors.Is(err, backend.ErrEmptyModel):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrNotEnhanced):
		return http.StatusNotImplemented
	case backend.IsTimeout(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// truncateString truncates a string to maxLen characters plus "...".
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
