// Package nav implements the client's navigation history context: a
// history stack and a future stack of visited URLs, with veto-able event
// callbacks and traversal by entry id.
package nav

import (
	"log/slog"
	"net/url"
)

// HistoryID uniquely identifies a history entry. Ids are issued
// monotonically and never reused.
type HistoryID = uint64

// HistoryEntry is one visited destination.
type HistoryEntry struct {
	// ID is the unique id of this entry.
	ID HistoryID
	// URL is the destination.
	URL string
	// State is opaque user state attached at navigation time and handed
	// back on events.
	State []byte
}

// EventType classifies navigation events.
type EventType uint8

const (
	// EventPatch updates the URL of the current entry in place.
	EventPatch EventType = iota
	// EventPush pushes a new entry.
	EventPush
	// EventReplace replaces the current entry.
	EventReplace
	// EventReload re-visits the current entry.
	EventReload
	// EventTraverse jumps across multiple entries.
	EventTraverse
)

func (t EventType) String() string {
	switch t {
	case EventPatch:
		return "patch"
	case EventPush:
		return "push"
	case EventReplace:
		return "replace"
	case EventReload:
		return "reload"
	case EventTraverse:
		return "traverse"
	default:
		return "unknown"
	}
}

// Event is delivered to the handler before a navigation mutation takes
// effect.
type Event struct {
	Type EventType
	// SameDocument is true when From and To share a path.
	SameDocument bool
	// From is the previous location, when there was one.
	From *HistoryEntry
	// To is the destination.
	To HistoryEntry
	// Info is extra user metadata attached to this specific operation.
	Info []byte
}

// HandlerResponse is the handler's verdict on a navigation event.
type HandlerResponse uint8

const (
	// Allow lets the navigation proceed.
	Allow HandlerResponse = iota
	// PreventDefault aborts the mutation; no state changes.
	PreventDefault
)

// EventHandler observes navigation events with veto power. Handlers run
// on the client's event loop and must not block.
type EventHandler interface {
	HandleNavEvent(event Event) HandlerResponse
}

// Action selects how a forward navigation manipulates the stack.
type Action uint8

const (
	// ActionDefault is Push.
	ActionDefault Action = iota
	// ActionPush pushes a new entry.
	ActionPush
	// ActionReplace replaces the current entry.
	ActionReplace
)

// Options configure a navigation.
type Options struct {
	Action Action
	// ExtraEventInfo is handed to the event handler unchanged.
	ExtraEventInfo []byte
	// State is stored on the new history entry.
	State []byte
	// JoinParams are merged into the channel join payload by the
	// connected client; the context itself ignores them.
	JoinParams map[string]any
}

// Context tracks navigation history. It is not safe for concurrent use;
// the owning event loop serializes access.
type Context struct {
	history  []HistoryEntry
	future   []HistoryEntry
	idSource HistoryID
	handler  EventHandler
	logger   *slog.Logger
}

// New creates an empty navigation context.
func New() *Context {
	return &Context{logger: slog.Default().With("component", "nav")}
}

// SetHandler installs the user's navigation event handler.
func (c *Context) SetHandler(handler EventHandler) { c.handler = handler }

// SetLogger replaces the context's logger.
func (c *Context) SetLogger(logger *slog.Logger) {
	c.logger = logger.With("component", "nav")
}

// Current returns the current entry, the last element of history.
func (c *Context) Current() (HistoryEntry, bool) {
	if len(c.history) == 0 {
		return HistoryEntry{}, false
	}
	return c.history[len(c.history)-1], true
}

// Entries returns all tracked entries in traversal sequence order.
func (c *Context) Entries() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(c.history)+len(c.future))
	out = append(out, c.history...)
	for i := len(c.future) - 1; i >= 0; i-- {
		out = append(out, c.future[i])
	}
	return out
}

// CanGoBack reports whether Back can succeed.
func (c *Context) CanGoBack() bool { return len(c.history) >= 2 }

// CanGoForward reports whether Forward can succeed.
func (c *Context) CanGoForward() bool { return len(c.future) > 0 }

// CanTraverseTo reports whether the id is tracked in either stack.
func (c *Context) CanTraverseTo(id HistoryID) bool {
	return c.findHistory(id) >= 0 || c.findFuture(id) >= 0
}

// Navigate moves to url. A successful forward navigation clears the
// future stack. It returns the new current id, or ok=false when the
// handler vetoed.
func (c *Context) Navigate(target string, opts Options, emitEvent bool) (HistoryID, bool) {
	next := c.speculativeNextDest(target, opts.State)

	eventType := EventPush
	if opts.Action == ActionReplace {
		eventType = EventReplace
	}
	event := c.newEvent(eventType, next, currentPtr(c), opts.ExtraEventInfo)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}

	if opts.Action == ActionReplace {
		c.replaceEntry(next)
	} else {
		c.pushEntry(next)
	}
	c.future = c.future[:0]
	return next.ID, true
}

// Patch rewrites the URL of the current entry without growing history.
func (c *Context) Patch(target string, info []byte, emitEvent bool) (HistoryID, bool) {
	current, ok := c.Current()
	if !ok {
		c.logger.Warn("patch attempted with no current entry")
		return 0, false
	}
	next := current
	next.URL = target

	event := c.newEvent(EventPatch, next, &current, info)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}
	c.history[len(c.history)-1] = next
	return next.ID, true
}

// Reload emits a reload event for the current entry.
func (c *Context) Reload(info []byte, emitEvent bool) (HistoryID, bool) {
	current, ok := c.Current()
	if !ok {
		c.logger.Warn("reload attempted with no current entry")
		return 0, false
	}
	event := c.newEvent(EventReload, current, &current, info)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}
	return current.ID, true
}

// Back moves one step back, pushing the abandoned entry on the future
// stack.
func (c *Context) Back(info []byte, emitEvent bool) (HistoryID, bool) {
	if !c.CanGoBack() {
		c.logger.Warn("back attempted without at least two entries")
		return 0, false
	}
	previous := c.history[len(c.history)-1]
	next := c.history[len(c.history)-2]

	event := c.newEvent(EventPush, next, &previous, info)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}
	c.history = c.history[:len(c.history)-1]
	c.future = append(c.future, previous)
	return next.ID, true
}

// Forward undoes the most recent Back.
func (c *Context) Forward(info []byte, emitEvent bool) (HistoryID, bool) {
	if !c.CanGoForward() {
		c.logger.Warn("forward attempted with an empty future stack")
		return 0, false
	}
	next := c.future[len(c.future)-1]

	event := c.newEvent(EventPush, next, currentPtr(c), info)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}
	c.future = c.future[:len(c.future)-1]
	c.history = append(c.history, next)
	return next.ID, true
}

// TraverseTo jumps to the tracked entry with the given id, splicing the
// entries between the current position and the target into the opposite
// stack in reverse order. Traversing to the current id is a no-op that
// succeeds.
func (c *Context) TraverseTo(id HistoryID, info []byte, emitEvent bool) (HistoryID, bool) {
	if !c.CanTraverseTo(id) {
		c.logger.Warn("traverse to untracked id", "id", id)
		return 0, false
	}
	current, ok := c.Current()
	if !ok {
		return 0, false
	}

	if pos := c.findHistory(id); pos >= 0 {
		target := c.history[pos]
		event := c.newEvent(EventTraverse, target, &current, info)
		if c.emit(event, emitEvent) == PreventDefault {
			return 0, false
		}
		// Everything after the target moves to the future stack, nearest
		// entries last.
		for i := len(c.history) - 1; i > pos; i-- {
			c.future = append(c.future, c.history[i])
		}
		c.history = c.history[:pos+1]
		return id, true
	}

	pos := c.findFuture(id)
	target := c.future[pos]
	event := c.newEvent(EventTraverse, target, &current, info)
	if c.emit(event, emitEvent) == PreventDefault {
		return 0, false
	}
	// Everything from the target onward moves to history, target last.
	for i := len(c.future) - 1; i >= pos; i-- {
		c.history = append(c.history, c.future[i])
	}
	c.future = c.future[:pos]
	return id, true
}

func (c *Context) findHistory(id HistoryID) int {
	for i, e := range c.history {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c *Context) findFuture(id HistoryID) int {
	for i, e := range c.future {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c *Context) speculativeNextDest(target string, state []byte) HistoryEntry {
	return HistoryEntry{ID: c.idSource + 1, URL: target, State: state}
}

func (c *Context) replaceEntry(entry HistoryEntry) {
	if len(c.history) == 0 {
		c.pushEntry(entry)
		return
	}
	c.idSource++
	c.history[len(c.history)-1] = entry
}

func (c *Context) pushEntry(entry HistoryEntry) {
	c.idSource++
	c.history = append(c.history, entry)
}

func (c *Context) newEvent(t EventType, to HistoryEntry, from *HistoryEntry, info []byte) Event {
	return Event{
		Type:         t,
		SameDocument: samePath(from, to),
		From:         from,
		To:           to,
		Info:         info,
	}
}

func (c *Context) emit(event Event, emitEvent bool) HandlerResponse {
	if !emitEvent || c.handler == nil {
		return Allow
	}
	return c.handler.HandleNavEvent(event)
}

func currentPtr(c *Context) *HistoryEntry {
	if cur, ok := c.Current(); ok {
		return &cur
	}
	return nil
}

func samePath(from *HistoryEntry, to HistoryEntry) bool {
	if from == nil {
		return false
	}
	fromURL, err1 := url.Parse(from.URL)
	toURL, err2 := url.Parse(to.URL)
	if err1 != nil || err2 != nil {
		return from.URL == to.URL
	}
	return fromURL.Path == toURL.Path
}
