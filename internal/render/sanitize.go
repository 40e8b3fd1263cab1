// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	classPattern  = regexp.MustCompile(`^[\w\-+#. ]+$`)
	actionPattern = regexp.MustCompile(`^(copy-code|copy-message)$`)
	targetPattern = regexp.MustCompile(`^(code|msg)-[a-z0-9]+$`)
)

// newPolicy returns the sanitizer for rendered markdown. It starts from
// bluemonday's user-generated-content policy and admits only the extra
// attributes the pipeline itself emits.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	p.AllowAttrs("class").Matching(classPattern).Globally()
	p.AllowElements("div", "span", "button")
	p.AllowAttrs("data-thinking").Matching(regexp.MustCompile(`^true$`)).OnElements("div")
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^button$`)).OnElements("button")
	p.AllowAttrs("data-action").Matching(actionPattern).OnElements("button")
	p.AllowAttrs("data-target").Matching(targetPattern).OnElements("button")

	// GFM task list items
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	return p
}
