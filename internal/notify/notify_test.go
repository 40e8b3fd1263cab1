// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCenter() (*Center, *clock) {
	clk := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewCenter().WithClock(clk.now), clk
}

func TestPush_DefaultDuration(t *testing.T) {
	c, _ := newTestCenter()
	n := c.Push(LevelInfo, "hello", 0)
	assert.Equal(t, DefaultDuration, n.Duration)
	assert.Equal(t, int64(3000), n.TTLMillis)
	assert.Equal(t, 1, n.ID)
}

func TestPush_DropsOldestBeyondLimit(t *testing.T) {
	c, clk := newTestCenter()
	c.Info("one")
	c.Success("two")
	c.Warning("three")
	c.Error("four")

	active := c.Active(clk.t)
	require.Len(t, active, MaxVisible)
	assert.Equal(t, "two", active[0].Message)
	assert.Equal(t, "four", active[2].Message)
	assert.Equal(t, LevelError, active[2].Level)
}

func TestActive_PrunesExpired(t *testing.T) {
	c, clk := newTestCenter()
	c.Push(LevelInfo, "short", time.Second)
	c.Push(LevelInfo, "long", 10*time.Second)

	assert.Len(t, c.Active(clk.t.Add(500*time.Millisecond)), 2)

	active := c.Active(clk.t.Add(time.Second))
	require.Len(t, active, 1)
	assert.Equal(t, "long", active[0].Message)

	assert.Empty(t, c.Active(clk.t.Add(time.Minute)))
}

func TestDrainAndDismiss(t *testing.T) {
	c, _ := newTestCenter()
	a := c.Info("a")
	c.Info("b")

	assert.True(t, c.Dismiss(a.ID))
	assert.False(t, c.Dismiss(a.ID))

	drained := c.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, "b", drained[0].Message)
	assert.Empty(t, c.Drain())
}
