// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
)

// =============================================================================
// HEALTH MONITOR
// =============================================================================

const (
	// DefaultHealthInterval is the period between status checks.
	DefaultHealthInterval = 30 * time.Second
	// DefaultHealthDelay is the wait before the first check.
	DefaultHealthDelay = 2 * time.Second
)

// StatusChecker is the part of Client the monitor needs.
type StatusChecker interface {
	Status(ctx context.Context, caps model.Capabilities) (model.ServerStatus, error)
}

// Monitor polls the backend status and caches the latest result.
type Monitor struct {
	checker  StatusChecker
	caps     func() model.Capabilities
	interval time.Duration
	delay    time.Duration
	onChange func(model.ServerStatus)
	log      *logrus.Entry

	mu      sync.RWMutex
	last    model.ServerStatus
	checked time.Time
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the period between checks.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithInitialDelay sets the wait before the first check.
func WithInitialDelay(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d >= 0 {
			m.delay = d
		}
	}
}

// WithOnChange registers a callback for when ServerRunning or the model changes.
func WithOnChange(fn func(model.ServerStatus)) MonitorOption {
	return func(m *Monitor) { m.onChange = fn }
}

// NewMonitor creates a monitor. caps is consulted before each check.
func NewMonitor(checker StatusChecker, caps func() model.Capabilities, opts ...MonitorOption) *Monitor {
	if caps == nil {
		caps = func() model.Capabilities { return model.Capabilities{} }
	}
	m := &Monitor{
		checker:  checker,
		caps:     caps,
		interval: DefaultHealthInterval,
		delay:    DefaultHealthDelay,
		log:      logging.For("health"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run checks after the initial delay and then on every interval until ctx
// is done.
func (m *Monitor) Run(ctx context.Context) {
	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one status check and records the result.
func (m *Monitor) Check(ctx context.Context) model.ServerStatus {
	status, err := m.checker.Status(ctx, m.caps())
	if err != nil {
		m.log.WithError(err).Warn("health check failed")
		status = model.ServerStatus{}
	}

	m.mu.Lock()
	changed := m.checked.IsZero() ||
		status.ServerRunning != m.last.ServerRunning ||
		status.CurrentModel != m.last.CurrentModel
	m.last = status
	m.checked = time.Now()
	m.mu.Unlock()

	if changed {
		m.log.WithField("running", status.ServerRunning).Info(status.Description())
		if m.onChange != nil {
			m.onChange(status)
		}
	}
	return status
}

// Last returns the most recent status and when it was taken. The time is
// zero before the first check.
func (m *Monitor) Last() (model.ServerStatus, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.checked
}

// Interval returns the period between checks.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}
