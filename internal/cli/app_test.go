// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/backend/backendtest"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/config"
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

// scriptedReader feeds fixed lines to the REPL, then reports EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
	closed  bool
}

func (r *scriptedReader) ReadInput(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) Close() { r.closed = true }

func steppingClock(step time.Duration) func() time.Time {
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

type appHarness struct {
	app    *App
	fake   *backendtest.Fake
	client *backend.Client
	out    *bytes.Buffer
	errOut *bytes.Buffer
	clip   *recordingWriter
	reader *scriptedReader
}

func newAppHarness(t *testing.T, enhanced bool, opts ...AppOption) *appHarness {
	t.Helper()
	ForceColorsEnabled(false)
	DisableColors()

	fake := backendtest.New(enhanced)
	upstream := fake.Start(t)

	cfg := config.Default()
	cfg.Backend.URL = upstream.URL
	client := backend.NewClient(&backend.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second})

	h := &appHarness{
		fake:   fake,
		client: client,
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
		clip:   &recordingWriter{},
		reader: &scriptedReader{},
	}
	base := []AppOption{
		WithOutput(h.out, h.errOut),
		WithInput(strings.NewReader("")),
		WithAppCopier(clipboard.NewCopier(
			clipboard.WithPrimary(h.clip),
			clipboard.WithFallback(clipboard.WriterFunc(func(string) error { return clipboard.ErrUnavailable })),
		)),
		WithAppDisplay(NewDisplay("notty", WithDisplayWidth(100), WithDisplayLocation(time.UTC))),
		WithAppRenderOptions(render.WithLocation(time.UTC)),
		WithLineReader(func() (LineReader, error) { return h.reader, nil }),
		WithAppClock(steppingClock(1500 * time.Millisecond)),
	}
	h.app = NewApp(client, cfg, append(base, opts...)...)
	return h
}

func (h *appHarness) run(t *testing.T, cmd Command, argv ...string) error {
	t.Helper()
	parsed, args := ParseArgs(append([]string{cmd.String()}, argv...))
	require.Equal(t, cmd, parsed)
	return h.app.Run(context.Background(), parsed, args)
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	h := newAppHarness(t, true)
	cmd, args := ParseArgs([]string{"serve", "--addr", "127.0.0.1:0"})
	require.Equal(t, CmdServe, cmd)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx, cmd, args) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.Contains(t, h.errOut.String(), "llama-chat web interface on http://127.0.0.1:0")
}

func decodeJSON(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

// =============================================================================
// CONVERSATION COMMANDS
// =============================================================================

func TestApp_ListEmpty(t *testing.T) {
	h := newAppHarness(t, false)
	require.NoError(t, h.run(t, CmdList))
	assert.Contains(t, h.out.String(), "No conversations yet")
}

func TestApp_List(t *testing.T) {
	h := newAppHarness(t, true)
	h.fake.Seed("Docker questions")
	h.fake.Seed("Go generics")

	require.NoError(t, h.run(t, CmdList))
	out := h.out.String()
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Docker questions")
	assert.Contains(t, out, "Go generics")
	assert.Contains(t, out, "llama-3-8b.gguf")
	assert.Less(t, strings.Index(out, "Go generics"), strings.Index(out, "Docker questions"), "newest first")
}

func TestApp_ListJSON(t *testing.T) {
	h := newAppHarness(t, false)
	h.fake.Seed("One")
	h.fake.Seed("Two")

	require.NoError(t, h.run(t, CmdList, "--json"))
	resp := decodeJSON(t, h.out.Bytes())
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "list", resp["command"])
	assert.Len(t, resp["data"], 2)
}

func TestApp_Show(t *testing.T) {
	h := newAppHarness(t, true)
	conv := h.fake.Seed("Reasoning",
		model.Message{Role: model.RoleUser, Content: "why?"},
		model.Message{
			Role:            model.RoleAssistant,
			Content:         "<think>pondering the question</think>**Because** it is.",
			ResponseTimeMs:  2000,
			EstimatedTokens: 50,
		},
	)

	require.NoError(t, h.run(t, CmdShow, id(conv), "--stats"))
	out := h.out.String()
	assert.Contains(t, out, "Reasoning")
	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, "why?")
	assert.Contains(t, out, "pondering the question")
	assert.Contains(t, out, "Because")
	assert.Contains(t, out, "2.0s • ~50 tokens • 25.0 tok/s")
	assert.NotContains(t, out, "<think>")
	assert.Contains(t, out, "Assistant")
	assert.Contains(t, h.fake.Requests(), "GET /api/stats/"+id(conv))
}

func TestApp_ShowRaw(t *testing.T) {
	h := newAppHarness(t, false)
	conv := h.fake.Seed("Raw", model.Message{Role: model.RoleAssistant, Content: "<think>x</think>**bold**"})

	require.NoError(t, h.run(t, CmdShow, "--raw", id(conv)))
	assert.Contains(t, h.out.String(), "[1] assistant: <think>x</think>**bold**")
}

func TestApp_ShowErrors(t *testing.T) {
	h := newAppHarness(t, false)

	err := h.run(t, CmdShow)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = h.run(t, CmdShow, "abc")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = h.run(t, CmdShow, "99")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
	assert.Equal(t, "Failed to load conversation: Conversation not found", ErrorMessage(err))
}

func TestApp_New(t *testing.T) {
	h := newAppHarness(t, true)
	require.NoError(t, h.run(t, CmdNew, "Project", "notes"))
	assert.Contains(t, h.out.String(), "Created conversation 1 with llama-3-8b")

	h.out.Reset()
	require.NoError(t, h.run(t, CmdList, "--json"))
	resp := decodeJSON(t, h.out.Bytes())
	convs := resp["data"].([]any)
	require.Len(t, convs, 1)
	first := convs[0].(map[string]any)
	assert.Equal(t, "Project notes", first["title"])
	assert.Equal(t, "llama-3-8b.gguf", first["model_file"])
}

func TestApp_Rename(t *testing.T) {
	h := newAppHarness(t, false)
	conv := h.fake.Seed("Old")

	require.NoError(t, h.run(t, CmdRename, id(conv), "Better", "title"))
	assert.Contains(t, h.out.String(), `Renamed conversation 1 to "Better title"`)

	err := h.run(t, CmdRename, id(conv))
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestApp_Delete(t *testing.T) {
	h := newAppHarness(t, false, WithInput(strings.NewReader("n\n")))
	conv := h.fake.Seed("Keep me")

	require.NoError(t, h.run(t, CmdDelete, id(conv)))
	assert.Contains(t, h.out.String(), "Cancelled")
	assert.NotContains(t, h.fake.Requests(), "DELETE /api/conversations/"+id(conv))

	require.NoError(t, h.run(t, CmdDelete, id(conv), "--yes"))
	assert.Contains(t, h.out.String(), "Conversation deleted successfully")
	assert.Contains(t, h.fake.Requests(), "DELETE /api/conversations/"+id(conv))
}

func TestApp_DeleteConfirmed(t *testing.T) {
	h := newAppHarness(t, false, WithInput(strings.NewReader("yes\n")))
	conv := h.fake.Seed("Bye")

	require.NoError(t, h.run(t, CmdDelete, id(conv)))
	assert.Contains(t, h.errOut.String(), "Delete conversation 1?")
	assert.Contains(t, h.fake.Requests(), "DELETE /api/conversations/"+id(conv))
}

func TestApp_DeleteJSONNeedsYes(t *testing.T) {
	h := newAppHarness(t, false)
	conv := h.fake.Seed("Bye")

	err := h.run(t, CmdDelete, "--json", id(conv))
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestApp_Search(t *testing.T) {
	h := newAppHarness(t, false)
	h.fake.Seed("Containers",
		model.Message{Role: model.RoleUser, Content: "How do I use docker compose?\nwith volumes"})

	err := h.run(t, CmdSearch, "d")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	require.NoError(t, h.run(t, CmdSearch, "docker"))
	out := h.out.String()
	assert.Contains(t, out, "Containers")
	assert.Contains(t, out, "How do I use docker compose? with volumes")

	h.out.Reset()
	require.NoError(t, h.run(t, CmdSearch, "kubernetes"))
	assert.Contains(t, h.out.String(), "No results found")
}

// =============================================================================
// MODELS & STATUS
// =============================================================================

func TestApp_ModelsEnhanced(t *testing.T) {
	h := newAppHarness(t, true)
	require.NoError(t, h.run(t, CmdModels))
	out := h.out.String()
	assert.Contains(t, out, "* llama-3-8b.gguf (4692.8MB)")
	assert.Contains(t, out, "  qwen2.5-7b.gguf (4466.1MB)")
	assert.Contains(t, out, "Backend mode: enhanced")
}

func TestApp_ModelsCompatibility(t *testing.T) {
	h := newAppHarness(t, false)
	require.NoError(t, h.run(t, CmdModels))
	assert.Contains(t, h.out.String(), "* llama-3-8b")
	assert.NotContains(t, h.out.String(), "MB)")
}

func TestApp_Switch(t *testing.T) {
	h := newAppHarness(t, true)
	require.NoError(t, h.run(t, CmdSwitch, "qwen2.5-7b.gguf"))
	assert.Contains(t, h.out.String(), "Successfully switched to qwen2.5-7b.gguf")
	assert.Equal(t, "qwen2.5-7b", h.fake.CurrentModel())

	err := h.run(t, CmdSwitch, "nope.gguf")
	require.Error(t, err)
	assert.Equal(t, "Failed to switch model: Model file not found: nope.gguf", ErrorMessage(err))
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestApp_SwitchCompatibility(t *testing.T) {
	h := newAppHarness(t, false)
	require.NoError(t, h.run(t, CmdSwitch, "qwen2.5-7b.gguf"))
	assert.Contains(t, h.out.String(), "Model switching requires enhanced backend")
	assert.NotContains(t, h.fake.Requests(), "POST /api/models/switch")
}

func TestApp_Status(t *testing.T) {
	h := newAppHarness(t, true)
	require.NoError(t, h.run(t, CmdStatus))
	assert.Contains(t, h.out.String(), "[OK]")
	assert.Contains(t, h.out.String(), "Server online - llama-3-8b")

	h.out.Reset()
	h.fake.SetServerRunning(false)
	require.NoError(t, h.run(t, CmdStatus, "--json"))
	resp := decodeJSON(t, h.out.Bytes())
	data := resp["data"].(map[string]any)
	assert.Equal(t, false, data["server_running"])
	assert.Equal(t, "Server offline", data["description"])
	assert.Equal(t, "enhanced", data["mode"])
}

// =============================================================================
// COPY & RENDER
// =============================================================================

func seedCode(h *appHarness) int64 {
	return h.fake.Seed("Code",
		model.Message{Role: model.RoleUser, Content: "show me"},
		model.Message{Role: model.RoleAssistant, Content: "Run this:\n\n```go\nfmt.Println(1)\n```\n\nand this:\n\n```\nls -la\n```"},
	)
}

func TestApp_CopyMessage(t *testing.T) {
	h := newAppHarness(t, false)
	conv := seedCode(h)

	require.NoError(t, h.run(t, CmdCopy, id(conv), "1"))
	require.Len(t, h.clip.texts, 1)
	assert.Equal(t, "show me", h.clip.texts[0])
	assert.Contains(t, h.out.String(), "✓")
}

func TestApp_CopyCode(t *testing.T) {
	h := newAppHarness(t, false)
	conv := seedCode(h)

	require.NoError(t, h.run(t, CmdCopy, id(conv), "last", "--code", "2"))
	require.Len(t, h.clip.texts, 1)
	assert.Equal(t, "ls -la", h.clip.texts[0])
	assert.Contains(t, h.out.String(), "✓ Copied")

	h.out.Reset()
	require.NoError(t, h.run(t, CmdCopy, id(conv), "2", "--code", "1", "--print"))
	assert.Equal(t, "fmt.Println(1)\n", h.out.String())
	assert.Len(t, h.clip.texts, 1, "--print must not touch the clipboard")
}

func TestApp_CopyMissing(t *testing.T) {
	h := newAppHarness(t, false)
	conv := seedCode(h)

	err := h.run(t, CmdCopy, id(conv), "2", "--code", "3")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	err = h.run(t, CmdCopy, id(conv), "9")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))

	err = h.run(t, CmdCopy, id(conv))
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestApp_CopyClipboardFailure(t *testing.T) {
	h := newAppHarness(t, false)
	h.clip.err = errors.New("no display")
	conv := seedCode(h)

	err := h.run(t, CmdCopy, id(conv), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, clipboard.ErrUnavailable))
	assert.Equal(t, "❌: "+clipboard.ErrUnavailable.Error(), ErrorMessage(err))
}

func TestApp_Render(t *testing.T) {
	h := newAppHarness(t, false, WithInput(strings.NewReader("# Title\n\n<think>hmm</think>\n\n```py\nprint(1)\n```")))
	require.NoError(t, h.run(t, CmdRender))
	out := h.out.String()
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "thinking-content")
	assert.Contains(t, out, `data-action="copy-code"`)
	assert.Empty(t, h.fake.Requests(), "rendering needs no backend")
}

func TestApp_RenderJSON(t *testing.T) {
	h := newAppHarness(t, false, WithInput(strings.NewReader("plain *text*")))
	require.NoError(t, h.run(t, CmdRender, "--json"))
	resp := decodeJSON(t, h.out.Bytes())
	frag := resp["data"].(map[string]any)
	assert.Contains(t, frag["html"], "<em>text</em>")
}

// =============================================================================
// CHAT REPL
// =============================================================================

func TestApp_ChatSendAndCopy(t *testing.T) {
	h := newAppHarness(t, false)
	h.reader.lines = []string{"hello", "", "/copy", "/quit"}

	require.NoError(t, h.run(t, CmdChat))
	out := h.out.String()
	assert.Contains(t, out, "Using compatibility mode")
	assert.Contains(t, out, "Started conversation 1")
	assert.Contains(t, out, "Echo: hello")
	assert.Contains(t, out, "1.5s • ~50 tokens • 33.3 tok/s")
	assert.Contains(t, out, "Session: 1 messages")
	assert.Contains(t, out, "Goodbye!")
	assert.True(t, h.reader.closed)

	require.Len(t, h.clip.texts, 1)
	assert.Equal(t, "Echo: hello", strings.TrimSpace(h.clip.texts[0]))

	stored := h.fake.Messages(1)
	require.Len(t, stored, 2)
	assert.Equal(t, "hello", stored[0].Content)
}

func TestApp_ChatServerDown(t *testing.T) {
	h := newAppHarness(t, true)
	h.fake.SetServerRunning(false)
	h.reader.lines = []string{"hello"}

	require.NoError(t, h.run(t, CmdChat))
	assert.Contains(t, h.out.String(), "llama.cpp server may not be running")
	assert.Contains(t, h.errOut.String(), "llama.cpp server is not running. Please start the server.")
	assert.NotContains(t, h.fake.Requests(), "POST /api/chat")
}

func TestApp_ChatBackendFailure(t *testing.T) {
	h := newAppHarness(t, false)
	h.fake.SetChatStatus(http.StatusInternalServerError)
	h.reader.lines = []string{"hello"}

	require.NoError(t, h.run(t, CmdChat))
	assert.Contains(t, h.out.String(), "Error: Could not get response from llama.cpp server")
	assert.Contains(t, h.errOut.String(), "Failed to get response from server")
}

func TestApp_ChatLoadPromptsForModel(t *testing.T) {
	h := newAppHarness(t, true)
	ctx := context.Background()
	caps := model.Capabilities{Enhanced: true}

	_, err := h.client.SwitchModel(ctx, caps, "qwen2.5-7b.gguf")
	require.NoError(t, err)
	conv := h.fake.Seed("Qwen chat", model.Message{Role: model.RoleUser, Content: "earlier"})
	_, err = h.client.SwitchModel(ctx, caps, "llama-3-8b.gguf")
	require.NoError(t, err)

	h.reader.lines = []string{"y", "/quit"}
	require.NoError(t, h.run(t, CmdChat, id(conv)))

	require.GreaterOrEqual(t, len(h.reader.prompts), 1)
	assert.Equal(t, "This conversation was created with qwen2.5-7b.gguf. Switch to this model? [y/N] ", h.reader.prompts[0])
	assert.Contains(t, h.out.String(), "earlier")
	assert.Contains(t, h.out.String(), "Successfully switched to qwen2.5-7b.gguf")
	assert.Equal(t, "qwen2.5-7b", h.fake.CurrentModel())
}

func TestApp_ChatSlashCommands(t *testing.T) {
	h := newAppHarness(t, true)
	other := h.fake.Seed("Other chat", model.Message{Role: model.RoleUser, Content: "from before"})
	h.reader.lines = []string{"/help", "/list", "/load " + id(other), "/bogus", "/switch", "/new Fresh", "exit"}

	require.NoError(t, h.run(t, CmdChat))
	out := h.out.String()
	assert.Contains(t, out, "Available Commands")
	assert.Contains(t, out, "Other chat")
	assert.Contains(t, out, "from before")
	assert.Contains(t, out, "Current model: llama-3-8b")
	assert.Contains(t, h.errOut.String(), "unknown command: /bogus")
	assert.Contains(t, h.fake.Requests(), "GET /api/conversations/"+id(other))
}

func TestApp_ChatRejectsBadID(t *testing.T) {
	h := newAppHarness(t, false)
	err := h.run(t, CmdChat, "zero")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Empty(t, h.reader.prompts)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestApp_ConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "llama-chat", "config.toml")
	h := newAppHarness(t, false, WithConfigPath(path))

	require.NoError(t, h.run(t, CmdConfig, "init"))
	assert.Contains(t, h.out.String(), "Wrote default configuration to "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[backend]")

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Backend.URL, loaded.Backend.URL)

	err = h.run(t, CmdConfig, "init")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	require.NoError(t, h.run(t, CmdConfig, "init", "--force"))
}

func TestApp_ConfigShowAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	h := newAppHarness(t, false, WithConfigPath(path))

	require.NoError(t, h.run(t, CmdConfig))
	out := h.out.String()
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "[backend]")
	assert.Contains(t, out, h.app.cfg.Backend.URL)

	h.out.Reset()
	require.NoError(t, h.run(t, CmdConfig, "--json", "path"))
	resp := decodeJSON(t, h.out.Bytes())
	data := resp["data"].(map[string]any)
	assert.Equal(t, path, data["path"])
	assert.Equal(t, false, data["exists"])

	err := h.run(t, CmdConfig, "frob")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// HELP, VERSION & ERRORS
// =============================================================================

func TestApp_HelpAndVersion(t *testing.T) {
	h := newAppHarness(t, false)
	require.NoError(t, h.run(t, CmdHelp))
	assert.Contains(t, h.out.String(), "USAGE:")

	err := h.app.Run(context.Background(), CmdHelp, Args{Unknown: "frob"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	h.out.Reset()
	require.NoError(t, h.run(t, CmdVersion, "--json"))
	resp := decodeJSON(t, h.out.Bytes())
	assert.Equal(t, Version, resp["data"].(map[string]any)["version"])
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("id", "x", "bad"), ExitUsageError},
		{"not found", NewNotFoundError("message", "3"), ExitNotFoundError},
		{"backend 404", &backend.APIError{Status: 404, Message: "gone"}, ExitNotFoundError},
		{"not running", NewCommandError("list", "load", "x", backend.ErrNotRunning), ExitNetworkError},
		{"timeout", backend.ErrTimeout, ExitTimeoutError},
		{"empty title", backend.ErrEmptyTitle, ExitUsageError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, NewCommandError("show", "load", "Failed to load conversation",
		&backend.APIError{Status: 404, Message: "Conversation not found"}), true)

	out := decodeJSON(t, buf.Bytes())
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Failed to load conversation: Conversation not found", out["error"])
	assert.Equal(t, "backend_error", out["error_type"])
	assert.EqualValues(t, ExitNotFoundError, out["exit_code"])

	buf.Reset()
	DisplayError(&buf, NewValidationError("id", "x", "bad"), false)
	assert.Equal(t, "Error: invalid id: bad (got: x)\n", buf.String())
}
