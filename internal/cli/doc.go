// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for llama-chat.
//
// The default command starts the web interface. The other commands work
// against the same backend from the terminal: an interactive chat REPL and
// one-shot commands for listing, reading, searching and copying.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Global flags plus the command's own arguments
//   - ArgParser: Flag and positional parsing for a command
//   - App: Runs commands against a Backend
//   - Display: Terminal rendering of messages with glamour
//
// # Usage
//
//	os.Exit(cli.Main())
//
// Or, with a custom backend:
//
//	cmd, args := cli.ParseArgs(os.Args[1:])
//	app := cli.NewApp(client, cfg)
//	err := app.Run(ctx, cmd, args)
//
// # Output
//
// Every command accepts --json and then prints one JSONResponse. Errors
// map to exit codes through GetExitCode.
package cli
