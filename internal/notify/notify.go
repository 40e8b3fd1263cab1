// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package notify keeps the short-lived notifications shown to the user:
// operation results, backend errors and copy failures.
package notify

import (
	"fmt"
	"sync"
	"time"
)

// =============================================================================
// NOTIFICATION TYPES
// =============================================================================

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 3 * time.Second

// MaxVisible is the most notifications shown at once.
const MaxVisible = 3

// Notification is one message with its display window.
type Notification struct {
	ID        int           `json:"id"`
	Level     Level         `json:"level"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"-"`
	TTLMillis int64         `json:"ttl_ms"`
}

// ExpiresAt returns when the notification is dismissed.
func (n Notification) ExpiresAt() time.Time {
	return n.CreatedAt.Add(n.Duration)
}

// Expired reports whether the notification is past its window at now.
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt())
}

// =============================================================================
// CENTER
// =============================================================================

// Center holds visible notifications, oldest first. It is safe for
// concurrent use.
type Center struct {
	mu     sync.Mutex
	items  []Notification
	nextID int
	now    func() time.Time
}

// NewCenter creates an empty Center.
func NewCenter() *Center {
	return &Center{nextID: 1, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *Center) WithClock(now func() time.Time) *Center {
	c.now = now
	return c
}

// Push adds a notification. A non-positive duration uses DefaultDuration.
// When more than MaxVisible are visible the oldest is dropped.
func (c *Center) Push(level Level, message string, d time.Duration) Notification {
	if d <= 0 {
		d = DefaultDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	n := Notification{
		ID:        c.nextID,
		Level:     level,
		Message:   message,
		CreatedAt: now,
		Duration:  d,
		TTLMillis: d.Milliseconds(),
	}
	c.nextID++
	c.items = append(c.items, n)
	if len(c.items) > MaxVisible {
		c.items = c.items[len(c.items)-MaxVisible:]
	}
	return n
}

// Info pushes an info notification with the default duration.
func (c *Center) Info(format string, args ...any) Notification {
	return c.Push(LevelInfo, fmt.Sprintf(format, args...), 0)
}

// Success pushes a success notification with the default duration.
func (c *Center) Success(format string, args ...any) Notification {
	return c.Push(LevelSuccess, fmt.Sprintf(format, args...), 0)
}

// Warning pushes a warning notification with the default duration.
func (c *Center) Warning(format string, args ...any) Notification {
	return c.Push(LevelWarning, fmt.Sprintf(format, args...), 0)
}

// Error pushes an error notification with the default duration.
func (c *Center) Error(format string, args ...any) Notification {
	return c.Push(LevelError, fmt.Sprintf(format, args...), 0)
}

// Active returns the notifications visible at now, oldest first.
func (c *Center) Active(now time.Time) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(now)
	out := make([]Notification, len(c.items))
	copy(out, c.items)
	return out
}

// Drain returns the visible notifications and clears the Center.
func (c *Center) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	out := c.items
	c.items = nil
	return out
}

// Dismiss removes the notification with the given id.
func (c *Center) Dismiss(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.items[:0]
	for _, n := range c.items {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}
