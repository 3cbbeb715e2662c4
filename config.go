package livenative

import (
	"github.com/livenative-dev/livenative/internal/client"
	"github.com/livenative-dev/livenative/pkg/dom"
	"github.com/livenative-dev/livenative/pkg/nav"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// Config carries every tunable of the client. The zero value is usable:
// timeouts and format default per platform.
type Config = client.Config

// ConnectOpts customize the dead render request.
type ConnectOpts = client.ConnectOpts

// LogLevel selects the minimum severity the client logs.
type LogLevel = client.LogLevel

// Log levels, least to most severe.
const (
	LogTrace = client.LogTrace
	LogDebug = client.LogDebug
	LogInfo  = client.LogInfo
	LogWarn  = client.LogWarn
	LogError = client.LogError
)

// Platform formats known in `_format`.
const (
	PlatformSwiftUI = client.PlatformSwiftUI
	PlatformJetpack = client.PlatformJetpack
)

// PersistentStore provides secure persistent storage for session data
// such as cookies.
type PersistentStore = client.PersistentStore

// NetworkEventHandler observes server events and client status changes.
type NetworkEventHandler = client.NetworkEventHandler

// DocumentChangeHandler receives per-node document change
// notifications as patches apply.
type DocumentChangeHandler = dom.ChangeHandler

// NavEventHandler receives navigation events with veto power.
type NavEventHandler = nav.EventHandler

// ReconnectStrategy decides the socket backoff after a dropped
// connection.
type ReconnectStrategy = phx.ReconnectStrategy

// LiveFile is a file staged for upload through a live upload input.
type LiveFile = client.LiveFile
