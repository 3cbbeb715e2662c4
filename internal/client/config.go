package client

import (
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/livenative-dev/livenative/pkg/dom"
	"github.com/livenative-dev/livenative/pkg/nav"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// LogLevel selects the minimum severity the client logs.
type LogLevel uint8

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogTrace:
		return slog.LevelDebug - 4
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Platform formats known in `_format`.
const (
	PlatformSwiftUI = "swiftui"
	PlatformJetpack = "jetpack"
)

// DefaultPlatform guesses the `_format` value for the build target.
func DefaultPlatform() string {
	switch runtime.GOOS {
	case "darwin", "ios":
		return PlatformSwiftUI
	case "android":
		return PlatformJetpack
	default:
		return "undefined_format"
	}
}

// PersistentStore provides secure persistent storage for session data
// such as cookies. Implementations handle platform-specific storage and
// should treat the values as sensitive.
type PersistentStore interface {
	// Get returns the value for key, or nil when absent.
	Get(key string) []byte
	// Set stores value under key.
	Set(key string, value []byte)
	// RemoveEntry deletes key.
	RemoveEntry(key string)
}

// NetworkEventHandler observes server events and client status changes.
// Callbacks run on the event loop and must be brief; long-running work
// has to be offloaded.
type NetworkEventHandler interface {
	// OnEvent receives every server event and call reply observed on the
	// current channels.
	OnEvent(event phx.EventPayload)
	// OnStatusChange receives every client status transition.
	OnStatusChange(status Status)
}

// Config carries every tunable of the client.
type Config struct {
	// NetworkEventHandler instruments server events and status changes.
	NetworkEventHandler NetworkEventHandler
	// PersistenceProvider backs the cookie store.
	PersistenceProvider PersistentStore
	// PatchHandler receives per-node document change notifications.
	PatchHandler dom.ChangeHandler
	// NavigationHandler receives navigation events with veto power.
	NavigationHandler nav.EventHandler
	// LogLevel defaults to LogInfo.
	LogLevel LogLevel
	// DeadRenderTimeout bounds the bootstrap HTTP request. Default 30s.
	DeadRenderTimeout time.Duration
	// WebsocketTimeout bounds connect, join, call, and leave. Default 5s.
	WebsocketTimeout time.Duration
	// Format is sent as `_format`; defaults per platform.
	Format string
	// SocketReconnectStrategy overrides the socket backoff policy.
	SocketReconnectStrategy phx.ReconnectStrategy
	// JoinParams are merged into every channel join payload.
	JoinParams map[string]any
	// Logger overrides the default logger.
	Logger *slog.Logger
}

const (
	defaultDeadRenderTimeout = 30 * time.Second
	defaultWebsocketTimeout  = 5 * time.Second
)

// Normalize fills defaults in place and returns the config.
func (c *Config) Normalize() *Config {
	if c.DeadRenderTimeout <= 0 {
		c.DeadRenderTimeout = defaultDeadRenderTimeout
	}
	if c.WebsocketTimeout <= 0 {
		c.WebsocketTimeout = defaultWebsocketTimeout
	}
	if c.Format == "" {
		c.Format = DefaultPlatform()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: c.LogLevel.slogLevel(),
		}))
	}
	return c
}
