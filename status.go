package livenative

import (
	"github.com/livenative-dev/livenative/internal/client"
)

// Status is the snapshot published on every state transition.
type Status = client.Status

// State enumerates the client lifecycle states.
type State = client.State

// Client lifecycle states.
const (
	StateDisconnected = client.StateDisconnected
	StateConnecting   = client.StateConnecting
	StateReconnecting = client.StateReconnecting
	StateConnected    = client.StateConnected
	StateFatalError   = client.StateFatalError
)

// LiveChannelStatus is the client-facing view of the main channel.
type LiveChannelStatus = client.LiveChannelStatus

// Main channel statuses.
const (
	LiveChannelConnected    = client.LiveChannelConnected
	LiveChannelReconnecting = client.LiveChannelReconnecting
)
