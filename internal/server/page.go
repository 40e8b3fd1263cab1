// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"embed"
	"html/template"
)

//go:embed web
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html.tmpl"))

type pageData struct {
	Theme            string
	Mode             string
	Enhanced         bool
	Models           []modelOption
	ConversationID   int64
	Transcript       template.HTML
	HealthIntervalMs int64
}

// trustedHTML marks transcript markup as safe. Every block has been through
// the renderer's sanitizer.
func trustedHTML(s string) template.HTML {
	return template.HTML(s) // #nosec G203 -- sanitized by render
}

func themeOrDefault(theme string) string {
	switch theme {
	case "light", "dark":
		return theme
	default:
		return "dark"
	}
}
