// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Print the effective configuration as TOML
//   path                Print the config file location
//   init [--force]      Write a default config file
//
// Examples:
//   llama-chat config
//   llama-chat --json config show
//   llama-chat --config ./dev.toml config init --force
package cli

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/llama-chat/internal/config"
)

// ConfigPathData is the data of "config path" and "config init".
type ConfigPathData struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

func (a *App) runConfig(args Args) error {
	p := args.Parser("force")
	sub := p.Positional(0)
	if sub == "" {
		sub = "show"
	}

	switch sub {
	case "show":
		return a.emit(args, "config", a.cfg, func() {
			if path, err := a.configPath(); err == nil {
				fmt.Fprintln(a.out, DimStyle.Render("# "+path))
			}
			if err := toml.NewEncoder(a.out).Encode(a.cfg); err != nil {
				a.log.WithError(err).Warn("encode config")
			}
		})

	case "path":
		path, err := a.configPath()
		if err != nil {
			return NewCommandError("config", "path", "Could not locate the config directory", err)
		}
		data := ConfigPathData{Path: path, Exists: fileExists(path)}
		return a.emit(args, "config", data, func() {
			fmt.Fprintln(a.out, path)
		})

	case "init":
		path, err := a.configPath()
		if err != nil {
			return NewCommandError("config", "init", "Could not locate the config directory", err)
		}
		if fileExists(path) && !p.BoolFlag("force") {
			return NewValidationErrorWithExample("config", path, "file already exists", "llama-chat config init --force")
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return NewCommandError("config", "init", "Failed to write config file", err)
		}
		return a.emit(args, "config", ConfigPathData{Path: path, Exists: true}, func() {
			fmt.Fprintf(a.out, "%s default configuration to %s\n", SuccessStyle.Render("Wrote"), path)
		})
	}

	return NewValidationErrorWithExample("config subcommand", sub, "must be show, path or init", "llama-chat config path")
}

// configPath is the file given with --config, or the default TOML path.
func (a *App) configPath() (string, error) {
	if a.cfgPath != "" {
		return a.cfgPath, nil
	}
	return config.ConfigPathTOML()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
