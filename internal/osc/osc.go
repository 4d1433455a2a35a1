// Package osc wires the VRChat OSC surface: the chatbox output addresses
// and the inbound avatar parameter listener.
package osc

import (
	goosc "github.com/hypebeast/go-osc/osc"
)

// VRChat OSC addresses.
const (
	// ChatboxInputAddr receives chatbox text.
	ChatboxInputAddr = "/chatbox/input"
	// ChatboxTypingAddr toggles the typing indicator.
	ChatboxTypingAddr = "/chatbox/typing"
	// MuteSelfAddr reports the player's mute state.
	MuteSelfAddr = "/avatar/parameters/MuteSelf"
)

// NewClient returns an OSC client for the game's input port.
func NewClient(address string, port int) *goosc.Client {
	return goosc.NewClient(address, port)
}
