// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"sync"

	"github.com/qmuntal/stateless"

	"github.com/jeranaias/llama-chat/internal/model"
)

// Phase is what the session is currently doing.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseSwitching Phase = "switching"
)

const (
	triggerSend       = "send"
	triggerSendDone   = "send-done"
	triggerSwitch     = "switch"
	triggerSwitchDone = "switch-done"
)

var (
	// ErrBusy is returned when a send or switch is already in progress.
	ErrBusy = errors.New("session busy")
	// ErrNoConversation is returned when sending without an active conversation.
	ErrNoConversation = errors.New("no active conversation")
)

// State is a snapshot of the session.
type State struct {
	Phase          Phase              `json:"phase"`
	ConversationID int64              `json:"conversation_id,omitempty"`
	CurrentModel   string             `json:"current_model,omitempty"`
	Capabilities   model.Capabilities `json:"capabilities"`
}

// HasConversation reports whether a conversation is active.
func (s State) HasConversation() bool {
	return s.ConversationID != 0
}

// Busy reports whether input should be disabled.
func (s State) Busy() bool {
	return s.Phase != PhaseIdle
}

// Controller owns a session State. It is safe for concurrent use.
type Controller struct {
	mu    sync.Mutex
	state State
	fsm   *stateless.StateMachine
}

// NewController creates an idle session.
func NewController() *Controller {
	c := &Controller{state: State{Phase: PhaseIdle}}

	c.fsm = stateless.NewStateMachineWithExternalStorage(
		func(context.Context) (stateless.State, error) {
			return c.state.Phase, nil
		},
		func(_ context.Context, s stateless.State) error {
			c.state.Phase = s.(Phase)
			return nil
		},
		stateless.FiringImmediate,
	)

	c.fsm.Configure(PhaseIdle).
		Permit(triggerSend, PhaseSending).
		Permit(triggerSwitch, PhaseSwitching)
	c.fsm.Configure(PhaseSending).
		Permit(triggerSendDone, PhaseIdle)
	c.fsm.Configure(PhaseSwitching).
		Permit(triggerSwitchDone, PhaseIdle)

	return c
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetConversation selects the active conversation. Zero clears it.
func (c *Controller) SetConversation(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ConversationID = id
}

// SetModel records the model the backend reports as loaded.
func (c *Controller) SetModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CurrentModel = name
}

// SetCapabilities records the detected backend capabilities.
func (c *Controller) SetCapabilities(caps model.Capabilities) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Capabilities = caps
}

func (c *Controller) fire(trigger string) error {
	if ok, _ := c.fsm.CanFire(trigger); !ok {
		return ErrBusy
	}
	return c.fsm.Fire(trigger)
}

// BeginSend enters the sending phase and returns the snapshot to send with.
func (c *Controller) BeginSend() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseIdle {
		return c.state, ErrBusy
	}
	if !c.state.HasConversation() {
		return c.state, ErrNoConversation
	}
	if err := c.fire(triggerSend); err != nil {
		return c.state, err
	}
	return c.state, nil
}

// EndSend returns to idle after a send, whatever its outcome.
func (c *Controller) EndSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.fire(triggerSendDone)
}

// BeginSwitch enters the switching phase.
func (c *Controller) BeginSwitch() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fire(triggerSwitch); err != nil {
		return c.state, err
	}
	return c.state, nil
}

// EndSwitch returns to idle. A non-empty model becomes the current model.
func (c *Controller) EndSwitch(loaded string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.fire(triggerSwitchDone); err != nil {
		return
	}
	if loaded != "" {
		c.state.CurrentModel = loaded
	}
}
