// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/backend/backendtest"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/render"
)

// =============================================================================
// HARNESS
// =============================================================================

type recordingWriter struct {
	err   error
	texts []string
}

func (w *recordingWriter) WriteText(text string) error {
	w.texts = append(w.texts, text)
	return w.err
}

func sequenceIDs() render.IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%07d", n)
	}
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

type harness struct {
	srv  *Server
	fake *backendtest.Fake
	http *httptest.Server
	clip *recordingWriter
}

func newHarness(t *testing.T, enhanced bool) *harness {
	t.Helper()
	fake := backendtest.New(enhanced)
	upstream := fake.Start(t)

	clip := &recordingWriter{}
	client := backend.NewClient(&backend.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second})
	srv := NewServer(client, Config{ChatRatePerMinute: 600}).
		WithLogger(logging.Discard()).
		WithClock(steppingClock(1500 * time.Millisecond)).
		WithCopier(clipboard.NewCopier(
			clipboard.WithPrimary(clip),
			clipboard.WithFallback(clipboard.WriterFunc(func(string) error { return clipboard.ErrUnavailable })),
			clipboard.WithLogger(logging.Discard()),
		)).
		WithRenderOptions(render.WithIDGenerator(sequenceIDs()), render.WithLocation(time.UTC))
	srv.Init(context.Background())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &harness{srv: srv, fake: fake, http: ts, clip: clip}
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]any
}

func (r response) notifications() []string {
	var out []string
	list, _ := r.Body["notifications"].([]any)
	for _, n := range list {
		out = append(out, n.(map[string]any)["message"].(string))
	}
	return out
}

func (h *harness) do(t *testing.T, method, path string, payload any) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.http.URL+path, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Header: resp.Header}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out.Body))
	require.Contains(t, out.Body, "notifications")
	return out
}

func (h *harness) create(t *testing.T) map[string]any {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/ui/conversations", map[string]any{"title": "Test chat"})
	require.Equal(t, http.StatusCreated, resp.Status, resp.Body)
	return resp.Body["conversation"].(map[string]any)
}

func blocksOf(t *testing.T, v any) []map[string]any {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "blocks missing")
	out := make([]map[string]any, len(list))
	for i, b := range list {
		out[i] = b.(map[string]any)
	}
	return out
}

// =============================================================================
// INIT
// =============================================================================

func TestInit_Notifications(t *testing.T) {
	h := newHarness(t, true)
	resp := h.do(t, http.MethodGet, "/ui/conversations", nil)
	assert.Contains(t, resp.notifications(), "Enhanced backend detected - full model switching available!")
	assert.True(t, h.srv.Session().State().Capabilities.Enhanced)

	// Drained by the first response.
	resp = h.do(t, http.MethodGet, "/ui/conversations", nil)
	assert.Empty(t, resp.notifications())

	h = newHarness(t, false)
	resp = h.do(t, http.MethodGet, "/ui/status", nil)
	assert.Contains(t, resp.notifications(), "Using compatibility mode - upgrade Flask app for model switching")
	assert.Equal(t, "llama-3-8b", h.srv.Session().State().CurrentModel)
}

func TestInit_ServerDownWarning(t *testing.T) {
	fake := backendtest.New(true)
	fake.SetServerRunning(false)
	upstream := fake.Start(t)
	srv := NewServer(backend.NewClient(&backend.Config{BaseURL: upstream.URL}), Config{}).WithLogger(logging.Discard())
	srv.Init(context.Background())

	var msgs []string
	for _, n := range srv.Notifications().Drain() {
		msgs = append(msgs, n.Message)
	}
	assert.Contains(t, msgs, "llama.cpp server may not be running. Some features may not work.")
}

// =============================================================================
// PAGE
// =============================================================================

func TestIndex(t *testing.T) {
	h := newHarness(t, true)
	resp, err := http.Get(h.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	page := string(body)
	assert.Contains(t, page, `<option value="llama-3-8b.gguf" selected>llama-3-8b.gguf (4692.8MB)</option>`)
	assert.Contains(t, page, `src="/static/app.js"`)
	assert.NotContains(t, page, "onclick")
}

func TestStaticAssets(t *testing.T) {
	h := newHarness(t, false)
	for path, contentType := range map[string]string{
		"/static/app.js":     "text/javascript",
		"/static/style.css":  "text/css",
		"/static/chroma.css": "text/css",
	} {
		resp, err := http.Get(h.http.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), contentType, path)
		assert.NotEmpty(t, body, path)
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestCreateConversation(t *testing.T) {
	h := newHarness(t, true)
	conv := h.create(t)

	assert.Equal(t, "Test chat", conv["title"])
	assert.Empty(t, conv["blocks"])
	assert.Equal(t, int64(conv["id"].(float64)), h.srv.Session().State().ConversationID)

	list := h.do(t, http.MethodGet, "/ui/conversations", nil)
	items := list.Body["conversations"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, true, item["active"])
	assert.Equal(t, "llama-3-8b.gguf", item["model"])
}

func TestLoadConversation_RendersStoredMessages(t *testing.T) {
	h := newHarness(t, false)
	id := h.fake.Seed("Seeded",
		model.Message{Role: model.RoleUser, Content: "show code"},
		model.Message{Role: model.RoleAssistant, Content: "<think>plan</think>Here:\n\n```go\nfmt.Println(1)\n```", Model: "llama-3-8b", ResponseTimeMs: 2000, EstimatedTokens: 50},
	)

	resp := h.do(t, http.MethodGet, fmt.Sprintf("/ui/conversations/%d", id), nil)
	require.Equal(t, http.StatusOK, resp.Status)
	conv := resp.Body["conversation"].(map[string]any)
	blocks := blocksOf(t, conv["blocks"])
	require.Len(t, blocks, 2)

	assert.Equal(t, "user", blocks[0]["role"])
	assistant := blocks[1]
	assert.Contains(t, assistant["html"], `<div class="thinking-content" data-thinking="true">plan</div>`)
	assert.Contains(t, assistant["html"], `2.0s • ~50 tokens • 25.0 tok/s`)
	assert.Equal(t, assistant["id"], conv["anchor"])
	assert.Nil(t, conv["model_prompt"])

	bindings := assistant["bindings"].([]any)
	require.Len(t, bindings, 2)
	code := bindings[0].(map[string]any)
	assert.Equal(t, string(render.ActionCopyCode), code["action"])

	copyResp := h.do(t, http.MethodGet, "/ui/copy/code/"+code["element_id"].(string), nil)
	assert.Equal(t, "fmt.Println(1)", copyResp.Body["text"])
	assert.Equal(t, float64(2000), copyResp.Body["restore_after_ms"])
}

func TestLoadConversation_NotFound(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(t, http.MethodGet, "/ui/conversations/999", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, false, resp.Body["success"])
	assert.Contains(t, resp.notifications(), "Failed to load conversation: Conversation not found")

	resp = h.do(t, http.MethodGet, "/ui/conversations/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestLoadConversation_ModelPrompt(t *testing.T) {
	h := newHarness(t, true)
	id := h.fake.Seed("Old model")

	resp := h.do(t, http.MethodPost, "/ui/models/switch", map[string]any{"model": "qwen2.5-7b.gguf"})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = h.do(t, http.MethodGet, fmt.Sprintf("/ui/conversations/%d", id), nil)
	prompt := resp.Body["conversation"].(map[string]any)["model_prompt"].(map[string]any)
	assert.Equal(t, "llama-3-8b.gguf", prompt["model"])
	assert.Equal(t, "This conversation was created with llama-3-8b.gguf. Switch to this model?", prompt["message"])
}

func TestReconcileModel_Unknown(t *testing.T) {
	h := newHarness(t, true)
	h.srv.Notifications().Drain()

	assert.Nil(t, h.srv.reconcileModel(model.Capabilities{Enhanced: true}, "gone.gguf"))
	notes := h.srv.Notifications().Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "Model gone.gguf not found. Using current model.", notes[0].Message)
}

func TestRenameConversation(t *testing.T) {
	h := newHarness(t, false)
	conv := h.create(t)
	path := fmt.Sprintf("/ui/conversations/%d", int64(conv["id"].(float64)))

	resp := h.do(t, http.MethodPut, path, map[string]any{"title": "Renamed"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Renamed", resp.Body["title"])

	resp = h.do(t, http.MethodPut, path, map[string]any{"title": strings.Repeat("x", backend.MaxTitleLength+1)})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Len(t, resp.notifications(), 1)
}

func TestDeleteConversation_ClearsActive(t *testing.T) {
	h := newHarness(t, false)
	conv := h.create(t)
	id := int64(conv["id"].(float64))
	h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "hi"})
	require.Equal(t, 2, h.srv.Transcript().Len())

	resp := h.do(t, http.MethodDelete, fmt.Sprintf("/ui/conversations/%d", id), nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, true, resp.Body["cleared"])
	assert.Contains(t, resp.notifications(), "Conversation deleted successfully")
	assert.Zero(t, h.srv.Session().State().ConversationID)
	assert.Zero(t, h.srv.Transcript().Len())
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_ReplyRecordedAfterClientLeaves(t *testing.T) {
	h := newHarness(t, true)
	h.create(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/ui/chat", strings.NewReader(`{"message":"still there?"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	blocks := h.srv.Transcript().Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, model.RoleAssistant, blocks[1].Role)
	assert.Contains(t, blocks[1].Fragment.HTML, "Echo: still there?")
	assert.NotContains(t, blocks[1].Fragment.HTML, ChatErrorText)
	assert.False(t, h.srv.Session().State().Busy())
}

func TestChat_AppendsBlocksInOrder(t *testing.T) {
	h := newHarness(t, true)
	h.create(t)

	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "Hello **world**"})
	require.Equal(t, http.StatusOK, resp.Status, resp.Body)
	blocks := blocksOf(t, resp.Body["blocks"])
	require.Len(t, blocks, 2)

	assert.Equal(t, "user", blocks[0]["role"])
	assert.Contains(t, blocks[0]["html"], "Hello **world**")
	assert.Equal(t, "assistant", blocks[1]["role"])
	assert.Contains(t, blocks[1]["html"], "<p>Echo: Hello <strong>world</strong></p>")
	// Measured by the stepping clock, not the backend's 2000ms.
	assert.Contains(t, blocks[1]["html"], "1.5s • ~50 tokens • 33.3 tok/s")
	assert.Contains(t, blocks[1]["html"], " • llama-3-8b")
	assert.NotContains(t, blocks[1]["html"], "llama-3-8b.gguf")
	assert.Equal(t, blocks[1]["id"], resp.Body["anchor"])
	assert.Equal(t, "llama-3-8b.gguf", resp.Body["current_model"])

	tr := h.srv.Transcript()
	require.Equal(t, 2, tr.Len())
	assert.Equal(t, blocks[1]["id"], tr.Anchor())
	assert.Equal(t, "llama-3-8b.gguf", h.srv.Session().State().CurrentModel)
	assert.False(t, h.srv.Session().State().Busy())

	reqs := h.fake.Requests()
	assert.Contains(t, reqs, "GET /api/server/status")
	assert.Contains(t, reqs, "POST /api/chat")
}

func TestChat_Rejections(t *testing.T) {
	h := newHarness(t, false)

	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusConflict, resp.Status)

	h.create(t)
	resp = h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Zero(t, h.srv.Transcript().Len())
}

func TestChat_Busy(t *testing.T) {
	h := newHarness(t, false)
	h.create(t)

	_, err := h.srv.Session().BeginSend()
	require.NoError(t, err)
	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusConflict, resp.Status)
	h.srv.Session().EndSend()
}

func TestChat_ServerNotRunning(t *testing.T) {
	h := newHarness(t, true)
	h.create(t)
	h.fake.SetServerRunning(false)

	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
	assert.Contains(t, resp.notifications(), "llama.cpp server is not running. Please start the server.")
	assert.Zero(t, h.srv.Transcript().Len())
	assert.NotContains(t, h.fake.Requests(), "POST /api/chat")
}

func TestChat_BackendFailure(t *testing.T) {
	h := newHarness(t, false)
	h.create(t)
	h.fake.SetChatStatus(http.StatusInternalServerError)

	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "hi"})
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Equal(t, false, resp.Body["success"])
	assert.Contains(t, resp.notifications(), "Failed to get response from server")

	blocks := blocksOf(t, resp.Body["blocks"])
	require.Len(t, blocks, 2)
	assert.Contains(t, blocks[1]["html"], ChatErrorText)
	assert.Equal(t, 2, h.srv.Transcript().Len())
	assert.False(t, h.srv.Session().State().Busy())
}

func TestChat_RateLimited(t *testing.T) {
	fake := backendtest.New(false)
	upstream := fake.Start(t)
	srv := NewServer(backend.NewClient(&backend.Config{BaseURL: upstream.URL}), Config{ChatRatePerMinute: 1}).
		WithLogger(logging.Discard())
	srv.Init(context.Background())
	h := &harness{srv: srv, fake: fake, http: httptest.NewServer(srv.Handler())}
	t.Cleanup(h.http.Close)
	h.create(t)

	first := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "one"})
	assert.Equal(t, http.StatusOK, first.Status)
	second := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "two"})
	assert.Equal(t, http.StatusTooManyRequests, second.Status)
	assert.Equal(t, "60", second.Header.Get("Retry-After"))
}

// =============================================================================
// COPY
// =============================================================================

func TestCopyMessage_ExcludesChrome(t *testing.T) {
	h := newHarness(t, false)
	h.create(t)
	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "line one\nline two"})
	blocks := blocksOf(t, resp.Body["blocks"])

	copyResp := h.do(t, http.MethodGet, "/ui/copy/message/"+blocks[0]["id"].(string), nil)
	assert.Equal(t, "line oneline two", copyResp.Body["text"])
	labels := copyResp.Body["labels"].(map[string]any)
	assert.Equal(t, "📋", labels["idle"])
	assert.Equal(t, "✓", labels["success"])

	copyResp = h.do(t, http.MethodGet, "/ui/copy/message/"+blocks[1]["id"].(string), nil)
	assert.Equal(t, "Echo: line one\nline two", copyResp.Body["text"])
}

func TestCopy_ServerClipboard(t *testing.T) {
	h := newHarness(t, false)
	h.create(t)
	h.fake.SetReply(func(string) string { return "```sh\necho hi\n```" })
	resp := h.do(t, http.MethodPost, "/ui/chat", map[string]any{"message": "cmd"})
	blocks := blocksOf(t, resp.Body["blocks"])
	code := blocks[1]["bindings"].([]any)[0].(map[string]any)["element_id"].(string)

	copyResp := h.do(t, http.MethodPost, "/ui/copy/code/"+code, nil)
	assert.Equal(t, true, copyResp.Body["copied"])
	assert.Equal(t, "✓ Copied", copyResp.Body["label"])
	assert.Equal(t, []string{"echo hi"}, h.clip.texts)

	h.clip.err = errors.New("no display")
	copyResp = h.do(t, http.MethodPost, "/ui/copy/message/"+blocks[0]["id"].(string), nil)
	assert.Equal(t, false, copyResp.Body["copied"])
	assert.Equal(t, "❌", copyResp.Body["label"])
}

func TestCopy_Missing(t *testing.T) {
	h := newHarness(t, false)

	resp := h.do(t, http.MethodGet, "/ui/copy/code/code-nothere99", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "No code content found to copy", resp.Body["error"])
	assert.Equal(t, "❌ Failed", resp.Body["label"])

	resp = h.do(t, http.MethodGet, "/ui/copy/message/msg-nothere99", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSearch(t *testing.T) {
	h := newHarness(t, true)
	long := strings.Repeat("needle ", 30)
	h.fake.Seed("Haystack", model.Message{Role: model.RoleUser, Content: long})

	resp := h.do(t, http.MethodGet, "/ui/search?q=n", nil)
	assert.Empty(t, resp.Body["results"])
	assert.NotContains(t, h.fake.Requests(), "GET /api/search")

	resp = h.do(t, http.MethodGet, "/ui/search?q=needle", nil)
	results := resp.Body["results"].([]any)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "Haystack", hit["title"])
	assert.Equal(t, long[:PreviewLength]+"...", hit["preview"])
	assert.Equal(t, "llama-3-8b.gguf", hit["model"])
}

// =============================================================================
// MODELS
// =============================================================================

func TestModels(t *testing.T) {
	h := newHarness(t, true)
	resp := h.do(t, http.MethodGet, "/ui/models", nil)
	models := resp.Body["models"].([]any)
	require.Len(t, models, 2)
	first := models[0].(map[string]any)
	assert.Equal(t, "llama-3-8b.gguf (4692.8MB)", first["label"])
	assert.Equal(t, true, first["selected"])
	assert.Equal(t, false, models[1].(map[string]any)["selected"])
}

func TestSwitchModel_Compatibility(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(t, http.MethodPost, "/ui/models/switch", map[string]any{"model": "other"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, false, resp.Body["switched"])
	assert.Contains(t, resp.notifications(), "Model switching requires enhanced backend. Current selection noted for new conversations.")
	assert.Equal(t, "other", h.srv.Session().State().CurrentModel)
}

func TestSwitchModel_Enhanced(t *testing.T) {
	h := newHarness(t, true)

	resp := h.do(t, http.MethodPost, "/ui/models/switch", map[string]any{"model": "qwen2.5-7b.gguf"})
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, true, resp.Body["switched"])
	assert.Contains(t, resp.notifications(), "Successfully switched to qwen2.5-7b.gguf")
	assert.Equal(t, "qwen2.5-7b", h.fake.CurrentModel())
	assert.Equal(t, "qwen2.5-7b.gguf", h.srv.Session().State().CurrentModel)

	resp = h.do(t, http.MethodPost, "/ui/models/switch", map[string]any{"model": "qwen2.5-7b.gguf"})
	assert.Equal(t, false, resp.Body["switched"])

	resp = h.do(t, http.MethodPost, "/ui/models/switch", map[string]any{"model": "missing.gguf", "prompted": true})
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, []string{
		"Failed to switch model: Model file not found: missing.gguf",
		"Failed to switch to missing.gguf. Using current model.",
	}, resp.notifications())
	assert.Equal(t, "qwen2.5-7b.gguf", h.srv.Session().State().CurrentModel)
	assert.False(t, h.srv.Session().State().Busy())
}

// =============================================================================
// STATUS & RENDER
// =============================================================================

func TestStatus(t *testing.T) {
	h := newHarness(t, true)
	resp := h.do(t, http.MethodGet, "/ui/status", nil)
	status := resp.Body["status"].(map[string]any)
	assert.Equal(t, true, status["server_running"])
	assert.Equal(t, "Server online - llama-3-8b", resp.Body["description"])
	assert.Equal(t, "enhanced", resp.Body["mode"])

	h.fake.SetServerRunning(false)
	resp = h.do(t, http.MethodGet, "/ui/status?refresh=1", nil)
	assert.Equal(t, false, resp.Body["status"].(map[string]any)["server_running"])
}

func TestRender_DoesNotTouchTranscript(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(t, http.MethodPost, "/ui/render", map[string]any{"content": "**bold** <script>alert(1)</script>"})
	frag := resp.Body["fragment"].(map[string]any)
	assert.Contains(t, frag["html"], "<strong>bold</strong>")
	assert.NotContains(t, frag["html"], "<script>")
	assert.Zero(t, h.srv.Transcript().Len())

	resp = h.do(t, http.MethodPost, "/ui/render", map[string]any{"content": "x", "role": "system"})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestDismissNotification(t *testing.T) {
	h := newHarness(t, false)
	h.srv.Notifications().Drain()
	n := h.srv.Notifications().Info("hello")
	resp := h.do(t, http.MethodDelete, fmt.Sprintf("/ui/notifications/%d", n.ID), nil)
	assert.Equal(t, true, resp.Body["dismissed"])
	assert.Empty(t, resp.notifications())
}

// =============================================================================
// HELPERS
// =============================================================================

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is a ..."},
		{"", 10, ""},
		{"日本語テキスト", 3, "日本語..."},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncateString(tt.input, tt.maxLen), tt.input)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&backend.APIError{Status: 404, Message: "x"}))
	assert.Equal(t, http.StatusBadGateway, statusFor(&backend.APIError{Status: 500, Message: "x"}))
	assert.Equal(t, http.StatusBadRequest, statusFor(backend.ErrTitleTooLong))
	assert.Equal(t, http.StatusNotImplemented, statusFor(backend.ErrNotEnhanced))
	assert.Equal(t, http.StatusBadGateway, statusFor(backend.ErrNotRunning))
}
