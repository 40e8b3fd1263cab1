// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command line parsing for llama-chat.
//
// CLI: Comprehensive help and examples for all commands
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdServe Command = iota
	CmdChat
	CmdList
	CmdShow
	CmdNew
	CmdRename
	CmdDelete
	CmdSearch
	CmdModels
	CmdSwitch
	CmdStatus
	CmdCopy
	CmdRender
	CmdConfig
	CmdVersion
	CmdHelp
)

// commandNames maps the command word to its Command.
var commandNames = map[string]Command{
	"serve":   CmdServe,
	"web":     CmdServe,
	"chat":    CmdChat,
	"list":    CmdList,
	"ls":      CmdList,
	"show":    CmdShow,
	"new":     CmdNew,
	"rename":  CmdRename,
	"delete":  CmdDelete,
	"rm":      CmdDelete,
	"search":  CmdSearch,
	"models":  CmdModels,
	"switch":  CmdSwitch,
	"status":  CmdStatus,
	"copy":    CmdCopy,
	"render":  CmdRender,
	"config":  CmdConfig,
	"version": CmdVersion,
	"help":    CmdHelp,
}

// String returns the command word.
func (c Command) String() string {
	for name, cmd := range commandNames {
		if cmd == c && name != "web" && name != "ls" && name != "rm" {
			return name
		}
	}
	return "unknown"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	BackendURL string
	JSON       bool
	Verbose    bool
	Quiet      bool
	NoColor    bool

	// Unknown is the command word when it did not match any command.
	Unknown string

	// Rest holds the command's own arguments, parsed with ArgParser.
	Rest []string
}

// Parser returns an ArgParser over the command's own arguments.
func (a Args) Parser(boolNames ...string) *ArgParser {
	return NewArgParser(a.Rest, boolNames...)
}

const usageText = `llama-chat - chat with a local llama.cpp server

USAGE:
  llama-chat [global flags] <command> [arguments]

COMMANDS:
  serve [--addr HOST:PORT]        Start the web interface (default)
  chat [ID]                       Interactive chat in the terminal
  list                            List conversations
  show ID [--raw]                 Print a conversation
  new [TITLE...]                  Create a conversation with the current model
  rename ID TITLE...              Rename a conversation
  delete ID [--yes]               Delete a conversation
  search QUERY...                 Search messages
  models                          List available models
  switch MODEL                    Load a different model (enhanced backend)
  status                          Show llama.cpp server status
  copy ID INDEX [--code N]        Copy a message (or its Nth code block)
       [--print]                  Print the copy text instead of copying
  render [FILE]                   Render markdown to HTML (stdin when no FILE)
  config [show|path|init]         Show, locate or create the config file
  version                         Show version information
  help                            Show this help

GLOBAL FLAGS:
  --config PATH                   Config file (default ~/.llama-chat/config.toml)
  --url URL                       Backend URL (overrides config)
  --json                          Machine-readable output
  -v, --verbose                   Debug logging
  -q, --quiet                     Only errors
  --no-color                      Disable colors

EXAMPLES:
  llama-chat serve --addr 127.0.0.1:8000
  llama-chat chat 12
  llama-chat copy 12 3 --code 1
  echo '# hi' | llama-chat render
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "llama-chat %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name). Global flags may
// appear anywhere. With no command the web interface is started.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdServe, args
	}

	word := strings.ToLower(remaining[0])
	args.Rest = remaining[1:]

	switch word {
	case "-h", "--help":
		return CmdHelp, args
	case "-V", "--version":
		return CmdVersion, args
	}

	cmd, ok := commandNames[word]
	if !ok {
		args.Unknown = remaining[0]
		return CmdHelp, args
	}
	return cmd, args
}

// parseGlobalFlags extracts the global flags and returns what is left.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	i := 0
	for i < len(argv) {
		arg := argv[i]

		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--json":
			parsed.JSON = true
		case "--no-color":
			parsed.NoColor = true
		case "--config":
			if i+1 < len(argv) {
				i++
				parsed.ConfigPath = argv[i]
			}
		case "--url":
			if i+1 < len(argv) {
				i++
				parsed.BackendURL = argv[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--url="):
				parsed.BackendURL = strings.TrimPrefix(arg, "--url=")
			default:
				remaining = append(remaining, arg)
			}
		}
		i++
	}

	return remaining, parsed
}

// handleVersion writes version information, as JSON when requested.
func handleVersion(w io.Writer, args Args) error {
	if args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	PrintVersion(w)
	return nil
}
