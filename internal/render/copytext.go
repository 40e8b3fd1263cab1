// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// excludedClasses mark chrome that is never part of copied message text.
var excludedClasses = map[string]bool{
	"message-meta":      true,
	"message-stats":     true,
	"copy-btn":          true,
	"code-block-header": true,
	"thinking-content":  true,
}

// MessageText returns the visible prose of a message block: its text
// content with meta line, copy buttons, code headers and thinking blocks
// removed, trimmed. The markup is parsed into a private tree so the
// caller's fragment is not affected.
func MessageText(fragment string) (string, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, n := range nodes {
		collectText(&sb, n)
	}
	return strings.TrimSpace(sb.String()), nil
}

func collectText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if isExcluded(n) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(sb, c)
	}
}

func isExcluded(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			if excludedClasses[class] {
				return true
			}
		}
	}
	return false
}
