// Package livenative is the client runtime for server-driven native UIs
// over the LiveView protocol.
//
// A Client bootstraps a session with a dead-render HTTP request, joins
// the live channel over a multiplexed WebSocket, and maintains the
// server-rendered document as diffs arrive: each diff merges into the
// retained fragment tree, re-renders, and structural patches are applied
// to the live document with per-node change notifications. User events
// and navigation flow back to the server through the same channel.
//
// Usage:
//
//	client, err := livenative.Connect("http://localhost:4000/", &livenative.Config{
//		Format: livenative.PlatformSwiftUI,
//	})
//	if err != nil { ... }
//	defer client.Shutdown()
//
//	doc, _ := client.Document()
//	reply, err := client.Call("my-event", livenative.JSON(map[string]any{"value": 1}))
package livenative

import (
	"github.com/livenative-dev/livenative/internal/client"
	"github.com/livenative-dev/livenative/pkg/dom"
	"github.com/livenative-dev/livenative/pkg/nav"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// Client is the thread-safe facade over the session event loop. All
// methods may be called from any goroutine; commands are delivered to
// the loop in order of send.
type Client struct {
	loop *client.EventLoop
}

// Connect starts a client session against url. The connection proceeds
// in the background; watch Status for progress. config may be nil.
func Connect(url string, config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	loop := client.NewEventLoop(&cfg, url, nil, client.ConnectOpts{})
	return &Client{loop: loop}, nil
}

// ConnectWith starts a client session with custom dead-render request
// options (method, headers, body).
func ConnectWith(url string, config *Config, opts ConnectOpts) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config
	loop := client.NewEventLoop(&cfg, url, nil, opts)
	return &Client{loop: loop}, nil
}

// Shutdown cancels the event loop, tears down any live session, and
// persists the cookie jar. The client is unusable afterwards.
func (c *Client) Shutdown() {
	c.loop.Shutdown()
}

// Reconnect tears down the current session, if any, and connects to url.
func (c *Client) Reconnect(url string, opts ConnectOpts, joinParams map[string]any) error {
	return c.loop.Reconnect(url, opts, joinParams)
}

// Disconnect ends the current session, leaving the loop idle until the
// next Reconnect.
func (c *Client) Disconnect() error {
	return c.loop.Disconnect()
}

// Status returns the latest status snapshot.
func (c *Client) Status() Status {
	return c.loop.Status()
}

// WatchStatus subscribes to status snapshots with latest-value
// semantics: a slow reader observes the newest state, not every
// intermediate one.
func (c *Client) WatchStatus() <-chan Status {
	return c.loop.WatchStatus()
}

// Document returns the live document of the connected session. The
// document is mutated by the event loop as diffs arrive; read it from
// the patch handler or between operations.
func (c *Client) Document() (*dom.Document, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return nil, err
	}
	return connected.Main.Doc.Doc, nil
}

// JoinDocument returns the document parsed from the join reply,
// unchanged by later diffs.
func (c *Client) JoinDocument() (*dom.Document, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return nil, err
	}
	return connected.Main.JoinDoc, nil
}

// JoinPayload returns the reply payload of the channel join.
func (c *Client) JoinPayload() (phx.Payload, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return phx.Payload{}, err
	}
	return connected.Main.JoinPayload, nil
}

// DeadRender returns the bootstrap document fetched before the socket
// connected.
func (c *Client) DeadRender() (*dom.Document, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return nil, err
	}
	return connected.Session.DeadRender, nil
}

// StyleURLs returns the stylesheet URLs declared by the dead render.
func (c *Client) StyleURLs() ([]string, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return nil, err
	}
	return connected.Session.StyleURLs, nil
}

// CSRFToken returns the session's CSRF token.
func (c *Client) CSRFToken() (string, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return "", err
	}
	return connected.Session.CSRFToken, nil
}

// JoinURL returns the URL the session joined at, after redirects.
func (c *Client) JoinURL() (string, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return "", err
	}
	return connected.Session.URL.String(), nil
}

// Call sends a user event and waits for the reply. When the reply
// carries a diff or redirect, the document and history reflect it before
// Call returns.
func (c *Client) Call(event string, payload phx.Payload) (phx.Payload, error) {
	return c.loop.Call(event, payload)
}

// Cast sends a user event without waiting for a reply.
func (c *Client) Cast(event string, payload phx.Payload) error {
	return c.loop.Cast(event, payload)
}

// Navigate moves the session to url, leaving and rejoining the live
// channel. The navigation handler may veto, in which case ok is false
// and nothing changed.
func (c *Client) Navigate(url string, opts NavOptions) (HistoryID, bool, error) {
	return c.loop.Navigate(url, opts)
}

// Back moves one history entry back and rejoins there.
func (c *Client) Back(info []byte) (HistoryID, bool, error) {
	return c.loop.Back(info)
}

// Forward undoes the latest Back.
func (c *Client) Forward(info []byte) (HistoryID, bool, error) {
	return c.loop.Forward(info)
}

// TraverseTo jumps to a tracked history id.
func (c *Client) TraverseTo(id HistoryID, info []byte) (HistoryID, bool, error) {
	return c.loop.TraverseTo(id, info)
}

// Reload rejoins the current view in place.
func (c *Client) Reload(info []byte) (HistoryID, bool, error) {
	return c.loop.Reload(info)
}

// Patch rewrites the current history entry's URL without rejoining.
func (c *Client) Patch(url string, info []byte) (HistoryID, bool, error) {
	return c.loop.Patch(url, info)
}

// CanGoBack reports whether Back can succeed.
func (c *Client) CanGoBack() bool { return c.loop.Nav().CanGoBack() }

// CanGoForward reports whether Forward can succeed.
func (c *Client) CanGoForward() bool { return c.loop.Nav().CanGoForward() }

// CanTraverseTo reports whether id is tracked in the history.
func (c *Client) CanTraverseTo(id HistoryID) bool { return c.loop.Nav().CanTraverseTo(id) }

// CurrentHistoryEntry returns the current navigation entry.
func (c *Client) CurrentHistoryEntry() (HistoryEntry, bool) {
	return c.loop.Nav().Current()
}

// HistoryEntries returns all tracked navigation entries in traversal
// order.
func (c *Client) HistoryEntries() []HistoryEntry {
	return c.loop.Nav().Entries()
}

// UploadFile uploads a staged file through the connected session.
func (c *Client) UploadFile(file *LiveFile) error {
	return c.loop.UploadFile(file)
}

// GetPhxUploadID resolves the upload ref of the upload input named
// target in the join document.
func (c *Client) GetPhxUploadID(target string) (string, error) {
	connected, err := c.loop.Connected()
	if err != nil {
		return "", err
	}
	return client.UploadID(connected.Main.JoinDoc, target)
}

// JSON wraps a value as a JSON channel payload.
func JSON(value any) phx.Payload {
	return phx.JSONPayload(value)
}

// Binary wraps raw bytes as a binary channel payload.
func Binary(data []byte) phx.Payload {
	return phx.BinaryPayload(data)
}

// NavOptions configure a Navigate call.
type NavOptions = nav.Options

// HistoryID identifies a navigation history entry.
type HistoryID = nav.HistoryID

// HistoryEntry is one visited destination.
type HistoryEntry = nav.HistoryEntry
