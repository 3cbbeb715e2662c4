package client

import (
	"github.com/livenative-dev/livenative/pkg/dom"
)

// State enumerates the event loop's lifecycle states.
type State uint8

const (
	// StateDisconnected means no session is active.
	StateDisconnected State = iota
	// StateConnecting means a connection job is in flight.
	StateConnecting
	// StateReconnecting means the socket dropped and the session is
	// waiting for it to come back.
	StateReconnecting
	// StateConnected means the session is live.
	StateConnected
	// StateFatalError means the session died; only shutdown exits.
	StateFatalError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReconnecting:
		return "reconnecting"
	case StateConnected:
		return "connected"
	case StateFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// LiveChannelStatus is the client-facing view of the main channel.
type LiveChannelStatus uint8

const (
	// LiveChannelConnected means the main channel is joined.
	LiveChannelConnected LiveChannelStatus = iota
	// LiveChannelReconnecting means the main channel is between joins.
	LiveChannelReconnecting
)

func (s LiveChannelStatus) String() string {
	if s == LiveChannelConnected {
		return "connected"
	}
	return "reconnecting"
}

// Status is the snapshot published to the watch channel at every state
// transition.
type Status struct {
	State State
	// Channel is the main channel status; meaningful when connected.
	Channel LiveChannelStatus
	// Document is the live document; non-nil when connected.
	Document *dom.Document
	// Err carries the fatal error when State is StateFatalError.
	Err error
}
