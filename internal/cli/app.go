// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Command dispatch and the one-shot conversation commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/backend"
	"github.com/jeranaias/llama-chat/internal/clipboard"
	"github.com/jeranaias/llama-chat/internal/config"
	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/render"
	"github.com/jeranaias/llama-chat/internal/server"
)

// Backend is everything the CLI asks of the chat backend.
type Backend interface {
	server.Backend
	Stats(ctx context.Context, id int64) (*backend.StatsResponse, error)
}

// minSearchLength matches the web search box.
const minSearchLength = 2

// searchPreviewLength is the preview length of a search hit, in cells.
const searchPreviewLength = 100

// App runs commands against a backend.
type App struct {
	backend    Backend
	cfg        *config.Config
	cfgPath    string
	out        io.Writer
	errOut     io.Writer
	in         io.Reader
	display    *Display
	copier     *clipboard.Copier
	renderOpts []render.Option
	newReader  func() (LineReader, error)
	log        *logrus.Entry
	now        func() time.Time

	caps *model.Capabilities
}

// AppOption configures an App.
type AppOption func(*App)

// WithOutput sets where results and messages are written.
func WithOutput(out, errOut io.Writer) AppOption {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithInput sets where confirmations are read from.
func WithInput(in io.Reader) AppOption {
	return func(a *App) { a.in = in }
}

// WithAppCopier replaces the clipboard.
func WithAppCopier(c *clipboard.Copier) AppOption {
	return func(a *App) { a.copier = c }
}

// WithAppDisplay replaces the terminal renderer.
func WithAppDisplay(d *Display) AppOption {
	return func(a *App) { a.display = d }
}

// WithAppRenderOptions adds options to every HTML renderer the app builds.
func WithAppRenderOptions(opts ...render.Option) AppOption {
	return func(a *App) { a.renderOpts = append(a.renderOpts, opts...) }
}

// WithLineReader replaces the interactive line reader of the chat REPL.
func WithLineReader(fn func() (LineReader, error)) AppOption {
	return func(a *App) { a.newReader = fn }
}

// WithConfigPath sets the file watched for changes while serving.
func WithConfigPath(path string) AppOption {
	return func(a *App) { a.cfgPath = path }
}

// WithAppClock replaces the time source used to measure responses.
func WithAppClock(now func() time.Time) AppOption {
	return func(a *App) { a.now = now }
}

// NewApp creates an App talking to b.
func NewApp(b Backend, cfg *config.Config, opts ...AppOption) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		backend: b,
		cfg:     cfg,
		out:     os.Stdout,
		errOut:  os.Stderr,
		in:      os.Stdin,
		copier:  clipboard.NewCopier(),
		log:     logging.For("cli"),
		now:     time.Now,
	}
	a.newReader = func() (LineReader, error) { return NewChatCLI() }
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Main parses os.Args, runs the command and returns the exit code.
func Main() int {
	cmd, args := Parse()

	if args.NoColor {
		DisableColors()
	}

	var (
		cfg *config.Config
		err error
	)
	cfgPath := args.ConfigPath
	switch {
	case cfgPath != "" && cmd == CmdConfig && !fileExists(cfgPath):
		// "config init" creates the file named by --config.
		cfg = config.Default()
	case cfgPath != "":
		cfg, err = config.LoadFromPath(cfgPath)
	default:
		cfg, err = config.Load()
		if path, pathErr := config.ConfigPathTOML(); pathErr == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				cfgPath = path
			}
		}
	}
	if cfg == nil {
		DisplayError(os.Stderr, err, args.JSON)
		return ExitConfigError
	}

	level := cfg.Log.Level
	switch {
	case args.Verbose:
		level = "debug"
	case args.Quiet:
		level = "error"
	}
	logging.Init(level, cfg.Log.Format)
	if err != nil {
		logging.For("cli").WithError(err).Warn("config file ignored, using defaults")
	}

	if args.BackendURL != "" {
		cfg.Backend.URL = args.BackendURL
	}
	config.SetGlobal(cfg)

	client := backend.NewClient(&backend.Config{
		BaseURL:        cfg.Backend.URL,
		Timeout:        cfg.BackendTimeout(),
		ConnectTimeout: cfg.ConnectTimeout(),
	})

	ctx, stop := signalContext()
	defer stop()

	app := NewApp(client, cfg, WithConfigPath(cfgPath))
	if err := app.Run(ctx, cmd, args); err != nil {
		w := os.Stderr
		if args.JSON {
			w = os.Stdout
		}
		DisplayError(w, err, args.JSON)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// Run executes cmd.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	switch cmd {
	case CmdHelp:
		if args.Unknown != "" {
			PrintUsage(a.errOut)
			return NewValidationErrorWithExample("command", args.Unknown, "unknown command", "llama-chat help")
		}
		PrintUsage(a.out)
		return nil
	case CmdVersion:
		return handleVersion(a.out, args)
	case CmdServe:
		return a.runServe(ctx, args)
	case CmdChat:
		return a.runChat(ctx, args)
	case CmdList:
		return a.runList(ctx, args)
	case CmdShow:
		return a.runShow(ctx, args)
	case CmdNew:
		return a.runNew(ctx, args)
	case CmdRename:
		return a.runRename(ctx, args)
	case CmdDelete:
		return a.runDelete(ctx, args)
	case CmdSearch:
		return a.runSearch(ctx, args)
	case CmdModels:
		return a.runModels(ctx, args)
	case CmdSwitch:
		return a.runSwitch(ctx, args)
	case CmdStatus:
		return a.runStatus(ctx, args)
	case CmdCopy:
		return a.runCopy(ctx, args)
	case CmdRender:
		return a.runRender(args)
	case CmdConfig:
		return a.runConfig(args)
	}
	return fmt.Errorf("unhandled command %d", cmd)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// capabilities detects the backend mode once per App.
func (a *App) capabilities(ctx context.Context) model.Capabilities {
	if a.caps == nil {
		caps := a.backend.DetectCapabilities(ctx)
		a.caps = &caps
	}
	return *a.caps
}

func (a *App) renderer(ctx context.Context) *render.Renderer {
	opts := []render.Option{
		render.WithCapabilities(a.capabilities(ctx)),
		render.WithCodeStyle(a.cfg.UI.CodeStyle),
		render.WithLogger(a.log),
	}
	return render.New(append(opts, a.renderOpts...)...)
}

func (a *App) terminal(ctx context.Context) *Display {
	if a.display == nil {
		opts := []DisplayOption{WithDisplayCapabilities(a.capabilities(ctx)), WithDisplayClock(a.now)}
		if a.cfg.UI.WordWrap > 0 {
			opts = append(opts, WithDisplayWidth(a.cfg.UI.WordWrap))
		}
		a.display = NewDisplay("", opts...)
	}
	return a.display
}

// emit writes data as a JSON response, or runs human otherwise.
func (a *App) emit(args Args, command string, data interface{}, human func()) error {
	if args.JSON {
		return NewJSONResponse(command, data).Write(a.out)
	}
	human()
	return nil
}

func (a *App) idArg(p *ArgParser, index int, usage string) (int64, error) {
	raw := p.Positional(index)
	if raw == "" {
		return 0, ErrMissingArgument("conversation id", usage)
	}
	id, err := ParseID(raw)
	if err != nil {
		return 0, NewValidationErrorWithExample("conversation id", raw, "must be a positive integer", usage)
	}
	return id, nil
}

// currentModel returns the loaded model and the file name to record with
// new conversations.
func (a *App) currentModel(ctx context.Context) (name, file string, err error) {
	caps := a.capabilities(ctx)
	list, err := a.backend.ListModels(ctx, caps)
	if err != nil {
		return "", "", err
	}
	name = list.Current
	if caps.Enhanced {
		file = name
		if m, ok := model.FindModel(list.Models, name); ok {
			file = m.Name
		}
	}
	return name, file, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (a *App) runList(ctx context.Context, args Args) error {
	convs, err := a.backend.ListConversations(ctx)
	if err != nil {
		return NewCommandError("list", "load", "Failed to load conversations", err)
	}
	caps := a.capabilities(ctx)

	return a.emit(args, "list", convs, func() {
		if len(convs) == 0 {
			fmt.Fprintln(a.out, DimStyle.Render("No conversations yet. Start one with: llama-chat new"))
			return
		}
		fmt.Fprintf(a.out, "%s  %s  %s  %s\n",
			PadRight("ID", 6), PadRight("TITLE", 40), PadRight("MODEL", 24), "UPDATED")
		for _, c := range convs {
			updated := ""
			if !c.UpdatedAt.IsZero() {
				updated = c.UpdatedAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(a.out, "%s  %s  %s  %s\n",
				PadRight(strconv.FormatInt(c.ID, 10), 6),
				PadRight(Truncate(c.Title, 40), 40),
				PadRight(Truncate(c.DisplayModel(caps), 24), 24),
				DimStyle.Render(updated))
		}
	})
}

// ShowData is the data of the show command.
type ShowData struct {
	*backend.ConversationDetail
	ByRole []backend.RoleStats `json:"by_role,omitempty"`
}

func (a *App) runShow(ctx context.Context, args Args) error {
	p := args.Parser("raw", "stats")
	id, err := a.idArg(p, 0, "llama-chat show 12 [--raw] [--stats]")
	if err != nil {
		return err
	}

	detail, err := a.backend.GetConversation(ctx, id)
	if err != nil {
		return NewCommandError("show", "load", "Failed to load conversation", err)
	}
	data := ShowData{ConversationDetail: detail}
	if p.BoolFlag("stats") {
		stats, err := a.backend.Stats(ctx, id)
		if err != nil {
			a.log.WithError(err).WithField("conversation", id).Debug("stats unavailable")
		} else {
			data.ByRole = stats.ByRole
		}
	}

	caps := a.capabilities(ctx)
	return a.emit(args, "show", data, func() {
		fmt.Fprintln(a.out, TitleStyle.Render(detail.Conversation.Title))
		summary := fmt.Sprintf("%s • %d messages", detail.Conversation.DisplayModel(caps), detail.Stats.TotalMessages)
		if detail.Stats.TotalTokens > 0 {
			summary += fmt.Sprintf(" • ~%d tokens", detail.Stats.TotalTokens)
		}
		if detail.Stats.AvgResponseTime > 0 {
			summary += fmt.Sprintf(" • avg %.1fs", detail.Stats.AvgResponseTime)
		}
		fmt.Fprintln(a.out, DimStyle.Render(summary))
		for _, rs := range data.ByRole {
			fmt.Fprintf(a.out, "%s%d messages, avg %.0f chars\n",
				RenderLabel(rs.Role.DisplayName()), rs.Count, rs.AvgLength)
		}
		fmt.Fprintln(a.out, RenderSeparator(50))

		if p.BoolFlag("raw") {
			for i, msg := range detail.Messages {
				fmt.Fprintf(a.out, "[%d] %s: %s\n", i+1, msg.Role, msg.Content)
			}
			return
		}
		display := a.terminal(ctx)
		for i, msg := range detail.Messages {
			fmt.Fprintf(a.out, "%s ", DimStyle.Render(fmt.Sprintf("[%d]", i+1)))
			fmt.Fprintln(a.out, display.Message(msg))
		}
	})
}

func (a *App) runNew(ctx context.Context, args Args) error {
	p := args.Parser()
	title := JoinPositionalArgs(p.PositionalFrom(0))

	name, file, err := a.currentModel(ctx)
	if err != nil {
		return NewCommandError("new", "load models", "Failed to load models", err)
	}
	if name == "" {
		return NewCommandError("new", "create", "Please select a model first", nil)
	}

	resp, err := a.backend.CreateConversation(ctx, backend.CreateConversationRequest{
		Title:     title,
		Model:     name,
		ModelFile: file,
	})
	if err != nil {
		return NewCommandError("new", "create", "Failed to create new chat", err)
	}

	return a.emit(args, "new", resp, func() {
		fmt.Fprintf(a.out, "%s conversation %d with %s\n",
			SuccessStyle.Render("Created"), resp.ConversationID, name)
	})
}

func (a *App) runRename(ctx context.Context, args Args) error {
	const usage = "llama-chat rename 12 Better title"
	p := args.Parser()
	id, err := a.idArg(p, 0, usage)
	if err != nil {
		return err
	}
	title := JoinPositionalArgs(p.PositionalFrom(1))
	if title == "" {
		return ErrMissingArgument("title", usage)
	}

	newTitle, err := a.backend.RenameConversation(ctx, id, title)
	if err != nil {
		return NewCommandError("rename", "update", "Failed to rename conversation", err)
	}
	return a.emit(args, "rename", map[string]interface{}{"id": id, "title": newTitle}, func() {
		fmt.Fprintf(a.out, "%s conversation %d to %q\n", SuccessStyle.Render("Renamed"), id, newTitle)
	})
}

func (a *App) runDelete(ctx context.Context, args Args) error {
	p := args.Parser("yes", "y")
	id, err := a.idArg(p, 0, "llama-chat delete 12 --yes")
	if err != nil {
		return err
	}

	if !p.BoolFlag("yes") && !p.BoolFlag("y") {
		if args.JSON {
			return NewValidationErrorWithExample("confirmation", "", "--yes is required with --json", "llama-chat --json delete 12 --yes")
		}
		if !a.confirm(fmt.Sprintf("Delete conversation %d? [y/N] ", id)) {
			fmt.Fprintln(a.out, DimStyle.Render("Cancelled"))
			return nil
		}
	}

	if err := a.backend.DeleteConversation(ctx, id); err != nil {
		return NewCommandError("delete", "remove", "Failed to delete conversation", err)
	}
	return a.emit(args, "delete", map[string]interface{}{"id": id, "deleted": true}, func() {
		fmt.Fprintln(a.out, SuccessStyle.Render("Conversation deleted successfully"))
	})
}

// confirm asks a yes/no question on a.in. Anything but y or yes is no.
func (a *App) confirm(prompt string) bool {
	fmt.Fprint(a.errOut, prompt)
	scanner := bufio.NewScanner(a.in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func (a *App) runSearch(ctx context.Context, args Args) error {
	query := JoinPositionalArgs(args.Parser().PositionalFrom(0))
	if len([]rune(query)) < minSearchLength {
		return NewValidationErrorWithExample("query", query,
			fmt.Sprintf("must be at least %d characters", minSearchLength), "llama-chat search docker compose")
	}

	results, err := a.backend.Search(ctx, query)
	if err != nil {
		return NewCommandError("search", "query", "Search failed", err)
	}
	caps := a.capabilities(ctx)

	return a.emit(args, "search", results, func() {
		if len(results) == 0 {
			fmt.Fprintln(a.out, DimStyle.Render("No results found"))
			return
		}
		for _, r := range results {
			fmt.Fprintf(a.out, "%s %s  %s\n",
				DimStyle.Render(fmt.Sprintf("[%d]", r.ID)),
				TitleStyle.Render(r.Title),
				DimStyle.Render(r.DisplayModel(caps)))
			preview := strings.Join(strings.Fields(r.Content), " ")
			fmt.Fprintf(a.out, "    %s\n", Truncate(preview, searchPreviewLength+3))
		}
	})
}

// =============================================================================
// MODELS & STATUS
// =============================================================================

// ModelsData is the data of the models command.
type ModelsData struct {
	Models   []model.ModelInfo `json:"models"`
	Current  string            `json:"current_model"`
	Enhanced bool              `json:"enhanced"`
}

func (a *App) runModels(ctx context.Context, args Args) error {
	caps := a.capabilities(ctx)
	list, err := a.backend.ListModels(ctx, caps)
	if err != nil {
		return NewCommandError("models", "load", "Failed to load models", err)
	}

	data := ModelsData{Models: list.Models, Current: list.Current, Enhanced: caps.Enhanced}
	return a.emit(args, "models", data, func() {
		if len(list.Models) == 0 {
			fmt.Fprintln(a.out, DimStyle.Render("No models available"))
			return
		}
		current, _ := model.FindModel(list.Models, list.Current)
		for _, m := range list.Models {
			marker := "  "
			label := m.Label(caps)
			if m.Name == current.Name {
				marker = SuccessStyle.Render("* ")
				label = HighlightLabel(label)
			}
			fmt.Fprintln(a.out, marker+label)
		}
		fmt.Fprintln(a.out, DimStyle.Render("Backend mode: "+caps.Mode()))
	})
}

// HighlightLabel marks the active entry of a list.
func HighlightLabel(label string) string {
	return ValueStyle.Bold(true).Render(label)
}

func (a *App) runSwitch(ctx context.Context, args Args) error {
	name := strings.TrimSpace(args.Parser().Positional(0))
	if name == "" {
		return ErrMissingArgument("model", "llama-chat switch qwen2.5-7b.gguf")
	}

	caps := a.capabilities(ctx)
	if !caps.Enhanced {
		msg := "Model switching requires enhanced backend. Current selection noted for new conversations."
		return a.emit(args, "switch", SwitchData{CurrentModel: name, Message: msg}, func() {
			fmt.Fprintln(a.out, InfoStyle.Render(msg))
		})
	}

	fmt.Fprintln(a.errOut, DimStyle.Render("Loading "+name+"..."))
	resp, err := a.backend.SwitchModel(ctx, caps, name)
	if err != nil {
		return NewCommandError("switch", "load", "Failed to switch model", err)
	}

	data := SwitchData{Switched: true, CurrentModel: resp.ModelFile, Message: resp.Message}
	return a.emit(args, "switch", data, func() {
		fmt.Fprintln(a.out, SuccessStyle.Render("Successfully switched to "+name))
	})
}

func (a *App) runStatus(ctx context.Context, args Args) error {
	caps := a.capabilities(ctx)
	status, err := a.backend.Status(ctx, caps)
	if err != nil && !backend.IsNotRunning(err) {
		return NewCommandError("status", "check", "Failed to check server status", err)
	}

	data := StatusData{
		ServerStatus: status,
		Mode:         caps.Mode(),
		Description:  status.Description(),
		BackendURL:   a.cfg.Backend.URL,
	}
	return a.emit(args, "status", data, func() {
		state := "offline"
		if status.ServerRunning {
			state = "online"
		}
		fmt.Fprintf(a.out, "%s%s %s\n", RenderLabel("llama.cpp"), RenderStatus(state), status.Description())
		if status.CurrentModel != "" {
			fmt.Fprintf(a.out, "%s%s\n", RenderLabel("Model"), ValueStyle.Render(status.CurrentModel))
		}
		if status.URL != "" {
			fmt.Fprintf(a.out, "%s%s\n", RenderLabel("Server URL"), status.URL)
		}
		fmt.Fprintf(a.out, "%s%s\n", RenderLabel("Backend"), a.cfg.Backend.URL)
		fmt.Fprintf(a.out, "%s%s\n", RenderLabel("Mode"), caps.Mode())
	})
}

// =============================================================================
// COPY & RENDER
// =============================================================================

// copyTarget returns what the copy button of msg would copy: the visible
// message text, or the source of its nth code block (1-based).
func copyTarget(r *render.Renderer, msg model.Message, code int) (string, clipboard.Kind, error) {
	frag := r.RenderMessage(msg)
	if code <= 0 {
		text, err := render.MessageText(frag.HTML)
		return text, clipboard.KindMessage, err
	}

	n := 0
	for _, b := range frag.Bindings {
		if b.Action != render.ActionCopyCode {
			continue
		}
		n++
		if n == code {
			text, err := frag.CodeText(b.ElementID)
			return text, clipboard.KindCode, err
		}
	}
	return "", clipboard.KindCode, NewNotFoundError("code block", strconv.Itoa(code))
}

// messageIndex resolves a 1-based index, or "last", into messages.
func messageIndex(raw string, count int) (int, error) {
	if raw == "last" {
		if count == 0 {
			return 0, NewNotFoundError("message", raw)
		}
		return count, nil
	}
	n, err := ParseIntWithValidation(raw, "message index")
	if err != nil {
		return 0, NewValidationErrorWithExample("message index", raw, "must be a positive integer or last", "llama-chat copy 12 3")
	}
	if n > count {
		return 0, NewNotFoundError("message", raw)
	}
	return n, nil
}

func (a *App) runCopy(ctx context.Context, args Args) error {
	const usage = "llama-chat copy 12 3 [--code 1] [--print]"
	p := args.Parser("print")
	id, err := a.idArg(p, 0, usage)
	if err != nil {
		return err
	}
	if p.Positional(1) == "" {
		return ErrMissingArgument("message index", usage)
	}
	code := 0
	if p.HasFlag("code") {
		code, err = ParseIntWithValidation(p.Flag("code"), "code block")
		if err != nil {
			return NewValidationErrorWithExample("code block", p.Flag("code"), "must be a positive integer", usage)
		}
	}

	detail, err := a.backend.GetConversation(ctx, id)
	if err != nil {
		return NewCommandError("copy", "load", "Failed to load conversation", err)
	}
	index, err := messageIndex(p.Positional(1), len(detail.Messages))
	if err != nil {
		return err
	}

	text, kind, err := copyTarget(a.renderer(ctx), detail.Messages[index-1], code)
	if err != nil {
		return err
	}

	data := CopyData{ConversationID: id, Index: index, Code: code, Text: text}
	if p.BoolFlag("print") {
		if args.JSON {
			return NewJSONResponse("copy", data).Write(a.out)
		}
		fmt.Fprintln(a.out, text)
		return nil
	}

	data.Copied = a.copier.Copy(text)
	data.Label = clipboard.LabelsFor(kind).Label(data.Copied)
	if !data.Copied {
		return NewCommandError("copy", "write", data.Label, clipboard.ErrUnavailable)
	}
	return a.emit(args, "copy", data, func() {
		fmt.Fprintln(a.out, SuccessStyle.Render(data.Label))
	})
}

func (a *App) runRender(args Args) error {
	p := args.Parser()

	var (
		data []byte
		err  error
	)
	if file := p.Positional(0); file != "" && file != "-" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(a.in)
	}
	if err != nil {
		return NewCommandError("render", "read", "failed to read input", err)
	}

	// Rendering markdown needs no backend; the compatibility renderer is used.
	opts := append([]render.Option{
		render.WithCodeStyle(a.cfg.UI.CodeStyle),
		render.WithLogger(a.log),
	}, a.renderOpts...)
	frag := render.New(opts...).RenderContent(string(data))

	if args.JSON {
		return NewJSONResponse("render", frag).Write(a.out)
	}
	fmt.Fprintln(a.out, frag.HTML)
	return nil
}
