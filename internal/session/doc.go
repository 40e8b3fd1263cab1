// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the explicit state of one chat session: the active
// conversation, the current model, the backend capabilities and whether a
// send or model switch is in flight.
//
// Phase transitions go through a qmuntal/stateless machine that stores its
// state in the session value, so the phase and the rest of the state can
// never disagree.
//
// # Usage
//
//	ctl := session.NewController()
//	ctl.SetConversation(id)
//	snap, err := ctl.BeginSend()
//	if err != nil {
//		return err // ErrBusy or ErrNoConversation
//	}
//	defer ctl.EndSend()
package session
