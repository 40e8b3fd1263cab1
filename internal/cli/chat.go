// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command handler for llama-chat.
//
// USABILITY: Markdown rendering and history for better CLI experience
//
// Handles the "llama-chat chat" command which provides a REPL over the
// same backend and session rules as the web interface.
//
// Examples:
//
//	llama-chat chat        Start a new conversation with the current model
//	llama-chat chat 12     Continue conversation 12
//
// Interactive Commands (during chat):
//
//	/help, /h           Show available commands
//	/new [title]        Start a new conversation
//	/load ID            Continue another conversation
//	/list               List conversations
//	/search QUERY       Search messages
//	/models             List models
//	/switch NAME        Load another model (enhanced backend)
//	/copy [N] [--code M] Copy message N (default: last) or its Mth code block
//	/status             Show llama.cpp server status
//	/quit, /q           Exit chat
//	Ctrl+D              Exit chat
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/config"
	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/server"
	"github.com/jeranaias/llama-chat/internal/session"
	"github.com/jeranaias/llama-chat/internal/util"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// LineReader reads one line of user input.
type LineReader interface {
	ReadInput(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
// USABILITY: Supports arrow keys for history navigation and line editing.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() (*ChatCLI, error) {
	if !IsTTY() {
		return nil, &TTYRequiredError{Operation: "chat"}
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli, nil
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with secure permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	_ = util.AtomicWriteFile(c.historyFile, buf.Bytes(), 0600)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ChatSession holds the state of one interactive chat.
type ChatSession struct {
	app   *App
	ctl   *session.Controller
	input LineReader

	title    string
	messages []model.Message
	models   []model.ModelInfo

	startTime   time.Time
	sent        int
	totalTokens int
}

func newChatSession(a *App, input LineReader) *ChatSession {
	return &ChatSession{
		app:       a,
		ctl:       session.NewController(),
		input:     input,
		startTime: a.now(),
	}
}

// runChat handles the "chat" command.
func (a *App) runChat(ctx context.Context, args Args) error {
	var id int64
	if raw := args.Parser().Positional(0); raw != "" {
		parsed, err := ParseID(raw)
		if err != nil {
			return NewValidationErrorWithExample("conversation id", raw, "must be a positive integer", "llama-chat chat 12")
		}
		id = parsed
	}

	input, err := a.newReader()
	if err != nil {
		return err
	}
	defer input.Close()

	s := newChatSession(a, input)
	if err := s.init(ctx, args.Quiet); err != nil {
		return err
	}
	if id > 0 {
		err = s.load(ctx, id)
	} else {
		err = s.newConversation(ctx, "")
	}
	if err != nil {
		return err
	}
	return s.loop(ctx)
}

// init detects the backend mode and loads the model list.
func (s *ChatSession) init(ctx context.Context, quiet bool) error {
	out := s.app.out
	caps := s.app.capabilities(ctx)
	s.ctl.SetCapabilities(caps)

	if err := s.refreshModels(ctx); err != nil {
		return NewCommandError("chat", "init", "Failed to initialize application. Check console for details.", err)
	}

	status, err := s.app.backend.Status(ctx, caps)
	if err != nil || !status.ServerRunning {
		fmt.Fprintln(out, WarningStyle.Render("llama.cpp server may not be running. Some features may not work."))
	}

	if quiet {
		return nil
	}
	fmt.Fprintln(out, welcomeStyle.Render("llama-chat interactive chat"))
	fmt.Fprintln(out, DimStyle.Render(strings.Repeat("─", 30)))
	fmt.Fprintf(out, "%s %s\n", DimStyle.Render("Model:"), commandStyle.Render(s.ctl.State().CurrentModel))
	if caps.Enhanced {
		fmt.Fprintln(out, SuccessStyle.Render("Enhanced backend detected - full model switching available!"))
	} else {
		fmt.Fprintln(out, InfoStyle.Render("Using compatibility mode - upgrade Flask app for model switching"))
	}
	fmt.Fprintln(out, DimStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Fprintln(out)
	return nil
}

func (s *ChatSession) refreshModels(ctx context.Context) error {
	list, err := s.app.backend.ListModels(ctx, s.ctl.State().Capabilities)
	if err != nil {
		return err
	}
	s.models = list.Models
	s.ctl.SetModel(list.Current)
	return nil
}

// loop reads and handles input until the user quits.
func (s *ChatSession) loop(ctx context.Context) error {
	for {
		line, err := s.input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or closed input.
			fmt.Fprintln(s.app.out)
			s.printExitSummary()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := s.handleSlashCommand(ctx, line)
			if err != nil {
				s.printError(err)
			}
			if !keepGoing {
				s.printExitSummary()
				return nil
			}
			continue
		}

		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			s.printExitSummary()
			return nil
		}

		if err := s.send(ctx, line); err != nil {
			s.printError(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *ChatSession) printError(err error) {
	fmt.Fprintf(s.app.errOut, "%s %s\n", ErrorStyle.Render("[Error]"), ErrorMessage(err))
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// modelFile returns the file name of the listed model matching current.
func (s *ChatSession) modelFile(current string) string {
	if m, ok := model.FindModel(s.models, current); ok {
		return m.Name
	}
	return current
}

// isCurrentModel reports whether name refers to the loaded model.
func (s *ChatSession) isCurrentModel(name, current string) bool {
	if name == current {
		return true
	}
	m, ok := model.FindModel(s.models, current)
	return ok && m.Name == name
}

func (s *ChatSession) newConversation(ctx context.Context, title string) error {
	state := s.ctl.State()
	if state.CurrentModel == "" {
		return NewCommandError("chat", "new", "Please select a model first", nil)
	}

	req := backend.CreateConversationRequest{Title: title, Model: state.CurrentModel}
	if state.Capabilities.Enhanced {
		req.ModelFile = s.modelFile(state.CurrentModel)
	}
	resp, err := s.app.backend.CreateConversation(ctx, req)
	if err != nil {
		return NewCommandError("chat", "new", "Failed to create new chat", err)
	}
	if resp.ModelFile != "" {
		s.ctl.SetModel(resp.ModelFile)
	}

	s.ctl.SetConversation(resp.ConversationID)
	s.messages = nil
	s.title = title
	fmt.Fprintln(s.app.out, DimStyle.Render(fmt.Sprintf("Started conversation %d", resp.ConversationID)))
	return nil
}

// load makes id the active conversation and prints its messages.
func (s *ChatSession) load(ctx context.Context, id int64) error {
	detail, err := s.app.backend.GetConversation(ctx, id)
	if err != nil {
		return NewCommandError("chat", "load", "Failed to load conversation", err)
	}

	s.ctl.SetConversation(detail.Conversation.ID)
	s.messages = detail.Messages
	s.title = detail.Conversation.Title

	out := s.app.out
	fmt.Fprintln(out, TitleStyle.Render(detail.Conversation.Title))
	display := s.app.terminal(ctx)
	for _, msg := range detail.Messages {
		fmt.Fprintln(out, display.Message(msg))
	}

	state := s.ctl.State()
	want := detail.Conversation.ActiveModel(state.Capabilities)
	if want == "" || s.isCurrentModel(want, state.CurrentModel) {
		return nil
	}
	return s.reconcileModel(ctx, want)
}

// reconcileModel handles a conversation created with another model.
func (s *ChatSession) reconcileModel(ctx context.Context, want string) error {
	if !s.ctl.State().Capabilities.Enhanced {
		if _, ok := model.FindModel(s.models, want); ok {
			s.ctl.SetModel(want)
		}
		return nil
	}

	for _, m := range s.models {
		if m.Name != want {
			continue
		}
		answer, err := s.input.ReadInput("This conversation was created with " + want + ". Switch to this model? [y/N] ")
		if err != nil {
			return nil
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer == "y" || answer == "yes" {
			return s.switchModel(ctx, want, true)
		}
		return nil
	}
	fmt.Fprintln(s.app.out, WarningStyle.Render("Model "+want+" not found. Using current model."))
	return nil
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// send posts text to the active conversation and prints the reply.
func (s *ChatSession) send(ctx context.Context, text string) error {
	state, err := s.ctl.BeginSend()
	switch {
	case errors.Is(err, session.ErrNoConversation):
		return NewCommandError("chat", "send", "No active conversation. Use /new or /load", nil)
	case err != nil:
		return NewCommandError("chat", "send", "Still waiting for the previous response", err)
	}
	defer s.ctl.EndSend()

	status, err := s.app.backend.Status(ctx, state.Capabilities)
	if err != nil || !status.ServerRunning {
		return NewCommandError("chat", "send", "llama.cpp server is not running. Please start the server.", nil)
	}

	start := s.app.now()
	s.messages = append(s.messages, model.Message{
		ConversationID: state.ConversationID,
		Role:           model.RoleUser,
		Content:        text,
		Timestamp:      model.NewTimestamp(start),
	})
	fmt.Fprintln(s.app.errOut, DimStyle.Render("Thinking..."))

	req := backend.ChatRequest{
		ConversationID: state.ConversationID,
		Message:        text,
		Model:          state.CurrentModel,
	}
	if state.Capabilities.Enhanced {
		req.ModelFile = s.modelFile(state.CurrentModel)
	}

	display := s.app.terminal(ctx)
	resp, err := s.app.backend.Chat(ctx, req)
	if err != nil {
		failed := model.Message{
			ConversationID: state.ConversationID,
			Role:           model.RoleAssistant,
			Content:        server.ChatErrorText,
			Timestamp:      model.NewTimestamp(s.app.now()),
		}
		s.messages = append(s.messages, failed)
		fmt.Fprintln(s.app.out, display.Message(failed))
		return NewCommandError("chat", "send", "Failed to get response from server", err)
	}

	finished := s.app.now()
	reply := resp.Message(state.ConversationID)
	reply.ResponseTimeMs = finished.Sub(start).Milliseconds()
	reply.Timestamp = model.NewTimestamp(finished)
	s.messages = append(s.messages, reply)
	fmt.Fprintln(s.app.out, display.Message(reply))

	if state.Capabilities.Enhanced && resp.ModelFile != "" {
		s.ctl.SetModel(resp.ModelFile)
	}
	s.sent++
	s.totalTokens += reply.EstimatedTokens
	return nil
}

// switchModel loads name. prompted marks a switch the user confirmed
// after loading a conversation.
func (s *ChatSession) switchModel(ctx context.Context, name string, prompted bool) error {
	state := s.ctl.State()
	if !state.Capabilities.Enhanced {
		s.ctl.SetModel(name)
		fmt.Fprintln(s.app.out, InfoStyle.Render("Model switching requires enhanced backend. Current selection noted for new conversations."))
		return nil
	}
	if s.isCurrentModel(name, state.CurrentModel) {
		fmt.Fprintln(s.app.out, DimStyle.Render("Already using "+name))
		return nil
	}

	if _, err := s.ctl.BeginSwitch(); err != nil {
		return NewCommandError("chat", "switch", "Still waiting for the previous response", err)
	}
	fmt.Fprintln(s.app.errOut, DimStyle.Render("Loading "+name+"..."))
	resp, err := s.app.backend.SwitchModel(ctx, state.Capabilities, name)
	if err != nil {
		s.ctl.EndSwitch("")
		if prompted {
			fmt.Fprintln(s.app.out, WarningStyle.Render("Failed to switch to "+name+". Using current model."))
		}
		return NewCommandError("chat", "switch", "Failed to switch model", err)
	}
	s.ctl.EndSwitch(resp.ModelFile)
	fmt.Fprintln(s.app.out, SuccessStyle.Render("Successfully switched to "+name))
	return nil
}

// copyMessage copies message n (1-based) or one of its code blocks.
func (s *ChatSession) copyMessage(ctx context.Context, args []string) error {
	p := NewArgParser(args)
	index := "last"
	if p.Positional(0) != "" {
		index = p.Positional(0)
	}
	n, err := messageIndex(index, len(s.messages))
	if err != nil {
		return err
	}
	code := 0
	if p.HasFlag("code") {
		code, err = strconv.Atoi(p.Flag("code"))
		if err != nil || code <= 0 {
			return NewValidationErrorWithExample("code block", p.Flag("code"), "must be a positive integer", "/copy 2 --code 1")
		}
	}

	text, kind, err := copyTarget(s.app.renderer(ctx), s.messages[n-1], code)
	if err != nil {
		return err
	}
	ok := s.app.copier.Copy(text)
	label := clipboard.LabelsFor(kind).Label(ok)
	if !ok {
		return NewCommandError("chat", "copy", label, clipboard.ErrUnavailable)
	}
	fmt.Fprintln(s.app.out, SuccessStyle.Render(label))
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func (s *ChatSession) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true, nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?", "/":
		s.printHelp()
	case "/quit", "/q", "/exit":
		return false, nil
	case "/new":
		return true, s.newConversation(ctx, strings.Join(args, " "))
	case "/load":
		if len(args) == 0 {
			return true, ErrMissingArgument("conversation id", "/load 12")
		}
		id, err := ParseID(args[0])
		if err != nil {
			return true, NewValidationError("conversation id", args[0], "must be a positive integer")
		}
		return true, s.load(ctx, id)
	case "/list":
		return true, s.app.runList(ctx, Args{})
	case "/search":
		return true, s.app.runSearch(ctx, Args{Rest: args})
	case "/models":
		if err := s.refreshModels(ctx); err != nil {
			return true, NewCommandError("chat", "models", "Failed to load models", err)
		}
		return true, s.app.runModels(ctx, Args{})
	case "/switch", "/model":
		if len(args) == 0 {
			fmt.Fprintf(s.app.out, "%s %s\n", DimStyle.Render("Current model:"), commandStyle.Render(s.ctl.State().CurrentModel))
			return true, nil
		}
		return true, s.switchModel(ctx, args[0], false)
	case "/copy":
		return true, s.copyMessage(ctx, args)
	case "/status":
		return true, s.app.runStatus(ctx, Args{})
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (s *ChatSession) printHelp() {
	out := s.app.out
	fmt.Fprintln(out, TitleStyle.Render("Available Commands"))
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/new [title]", "Start a new conversation"},
		{"/load ID", "Continue another conversation"},
		{"/list", "List conversations"},
		{"/search QUERY", "Search messages"},
		{"/models", "List models"},
		{"/switch NAME", "Load another model"},
		{"/copy [N] [--code M]", "Copy a message or code block"},
		{"/status", "Show llama.cpp server status"},
		{"/quit, /q", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(out, "  %s  %s\n", commandStyle.Render(PadRight(c.cmd, 22)), DimStyle.Render(c.desc))
	}
}

func (s *ChatSession) printExitSummary() {
	out := s.app.out
	if s.sent > 0 {
		elapsed := s.app.now().Sub(s.startTime).Round(time.Second)
		fmt.Fprintf(out, "%s %d messages • ~%d tokens • %s\n",
			DimStyle.Render("Session:"), s.sent, s.totalTokens, elapsed)
	}
	fmt.Fprintln(out, DimStyle.Render("Goodbye!"))
}
