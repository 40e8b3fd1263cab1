// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Flag and positional parsing for command arguments.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits the arguments of one command into flags and positionals.
//
//	--code 2, --code=2, -c 2   valued flags
//	--print, --json=false      boolean flags
//	--                         everything after is positional
//
// A flag followed by a word that does not start with "-" takes that word as
// its value, unless the flag was declared boolean.
type ArgParser struct {
	values     map[string]string
	bools      map[string]bool
	positional []string
}

// NewArgParser parses raw. Names in boolNames never take a value, so
// "--raw 12" keeps 12 positional.
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	isBool := make(map[string]bool, len(boolNames))
	for _, name := range boolNames {
		isBool[name] = true
	}
	p := &ArgParser{
		values: make(map[string]string),
		bools:  make(map[string]bool),
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "--":
			p.positional = append(p.positional, raw[i+1:]...)
			return p
		case !strings.HasPrefix(arg, "-") || arg == "-":
			p.positional = append(p.positional, arg)
		default:
			name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
			switch {
			case hasValue && (value == "true" || value == "false"):
				p.bools[name] = value == "true"
			case hasValue:
				p.values[name] = value
			case !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-"):
				p.values[name] = raw[i+1]
				i++
			default:
				p.bools[name] = true
			}
		}
	}
	return p
}

// Flag returns the value of a valued flag, or "" when absent.
func (p *ArgParser) Flag(name string) string {
	return p.values[strings.TrimLeft(name, "-")]
}

// FlagInt returns a valued flag as an integer. ok is false when the flag is
// absent or not a number.
func (p *ArgParser) FlagInt(name string) (n int, ok bool) {
	raw, present := p.values[strings.TrimLeft(name, "-")]
	if !present {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// BoolFlag reports whether a boolean flag was set to true.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.bools[strings.TrimLeft(name, "-")]
}

// HasFlag reports whether the flag appeared in any form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, valued := p.values[name]
	_, boolean := p.bools[name]
	return valued || boolean
}

// Positional returns positional argument index, or "" when out of range.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// =============================================================================
// VALUE HELPERS
// =============================================================================

// ParseIntWithValidation parses a positive integer named fieldName.
func ParseIntWithValidation(s string, fieldName string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", fieldName)
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", fieldName, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", fieldName, val)
	}
	return val, nil
}

// ParseID parses a conversation id.
func ParseID(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("conversation id is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("conversation id must be a positive integer (got: %s)", s)
	}
	return id, nil
}

// JoinPositionalArgs joins words back into the multi-word title or query
// they were typed as.
func JoinPositionalArgs(words []string) string {
	return strings.TrimSpace(strings.Join(words, " "))
}
