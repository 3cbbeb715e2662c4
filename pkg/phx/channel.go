package phx

import (
	"errors"
	"fmt"
	"time"

	"github.com/livenative-dev/livenative/internal/watch"
)

// ChannelStatus tracks the join lifecycle of a Channel.
type ChannelStatus uint8

const (
	// ChannelWaitingForSocket means the socket has not connected yet.
	ChannelWaitingForSocket ChannelStatus = iota
	// ChannelWaitingToJoin means the socket is up and Join has not been
	// called.
	ChannelWaitingToJoin
	// ChannelJoining means Join is awaiting the server reply.
	ChannelJoining
	// ChannelWaitingToRejoin means the socket dropped after a successful
	// join.
	ChannelWaitingToRejoin
	// ChannelJoined means the topic is joined.
	ChannelJoined
	// ChannelLeaving means Leave is awaiting the server reply.
	ChannelLeaving
	// ChannelLeft means the topic was left.
	ChannelLeft
	// ChannelShuttingDown means the parent socket is shutting down.
	ChannelShuttingDown
	// ChannelShutDown means the channel is stopped.
	ChannelShutDown
)

func (s ChannelStatus) String() string {
	switch s {
	case ChannelWaitingForSocket:
		return "waiting_for_socket"
	case ChannelWaitingToJoin:
		return "waiting_to_join"
	case ChannelJoining:
		return "joining"
	case ChannelWaitingToRejoin:
		return "waiting_to_rejoin"
	case ChannelJoined:
		return "joined"
	case ChannelLeaving:
		return "leaving"
	case ChannelLeft:
		return "left"
	case ChannelShuttingDown:
		return "shutting_down"
	case ChannelShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}

// JoinError is a server-rejected join; Payload carries the rejection
// body.
type JoinError struct {
	Payload Payload
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("phx: join rejected: %s", e.Payload)
}

// CallError is a server-errored call; Payload carries the error body.
type CallError struct {
	Payload Payload
}

func (e *CallError) Error() string {
	return fmt.Sprintf("phx: call errored: %s", e.Payload)
}

// ErrChannelNotJoined is returned for calls on a channel that is not
// joined.
var ErrChannelNotJoined = errors.New("phx: channel not joined")

// Channel is one topic multiplexed over a Socket.
type Channel struct {
	Topic string

	socket      *Socket
	joinPayload Payload
	joinRef     string
	statuses    *watch.Value[ChannelStatus]
	events      chan EventPayload
}

const channelEventBuffer = 64

func newChannel(socket *Socket, topic string, joinPayload Payload) *Channel {
	return &Channel{
		Topic:       topic,
		socket:      socket,
		joinPayload: joinPayload,
		statuses:    watch.New(ChannelWaitingForSocket),
		events:      make(chan EventPayload, channelEventBuffer),
	}
}

// JoinPayload returns the payload the channel was created with.
func (c *Channel) JoinPayload() Payload { return c.joinPayload }

// Status returns the channel's current status.
func (c *Channel) Status() ChannelStatus { return c.statuses.Get() }

// Statuses subscribes to channel status transitions.
func (c *Channel) Statuses() <-chan ChannelStatus { return c.statuses.Subscribe() }

// Events returns the channel's event stream. Events that are not replies
// to in-flight calls arrive here in receipt order.
func (c *Channel) Events() <-chan EventPayload { return c.events }

func (c *Channel) setStatus(status ChannelStatus) { c.statuses.Set(status) }

// Join joins the topic and returns the server's reply payload.
func (c *Channel) Join(timeout time.Duration) (Payload, error) {
	if c.socket.Status() != SocketConnected {
		return Payload{}, ErrNotConnected
	}
	c.setStatus(ChannelJoining)

	ref := c.socket.nextRef()
	c.joinRef = ref
	m := &Message{
		JoinRef: ref,
		Ref:     ref,
		Topic:   c.Topic,
		Event:   PhoenixEvent(PhoenixJoin).WireName(),
		Payload: c.joinPayload,
	}
	reply, err := c.socket.call(m, timeout)
	if err != nil {
		c.setStatus(ChannelWaitingToJoin)
		return Payload{}, err
	}

	status, response := splitReply(reply.Payload)
	if status != "ok" {
		c.setStatus(ChannelWaitingToJoin)
		return Payload{}, &JoinError{Payload: response}
	}
	c.setStatus(ChannelJoined)
	return response, nil
}

// Leave leaves the topic.
func (c *Channel) Leave(timeout time.Duration) error {
	c.setStatus(ChannelLeaving)
	m := &Message{
		JoinRef: c.joinRef,
		Ref:     c.socket.nextRef(),
		Topic:   c.Topic,
		Event:   PhoenixEvent(PhoenixLeave).WireName(),
		Payload: EmptyPayload(),
	}
	_, err := c.socket.call(m, timeout)
	c.setStatus(ChannelLeft)
	return err
}

// Call sends event and waits for the server's reply. A server "error"
// status surfaces as CallError.
func (c *Channel) Call(event Event, payload Payload, timeout time.Duration) (Payload, error) {
	if c.Status() != ChannelJoined {
		return Payload{}, ErrChannelNotJoined
	}
	m := &Message{
		JoinRef: c.joinRef,
		Ref:     c.socket.nextRef(),
		Topic:   c.Topic,
		Event:   event.WireName(),
		Payload: payload,
	}
	reply, err := c.socket.call(m, timeout)
	if err != nil {
		return Payload{}, err
	}
	status, response := splitReply(reply.Payload)
	if status != "ok" {
		return Payload{}, &CallError{Payload: response}
	}
	return response, nil
}

// Cast sends event without waiting for a reply.
func (c *Channel) Cast(event Event, payload Payload) error {
	if c.Status() != ChannelJoined {
		return ErrChannelNotJoined
	}
	m := &Message{
		JoinRef: c.joinRef,
		Ref:     c.socket.nextRef(),
		Topic:   c.Topic,
		Event:   event.WireName(),
		Payload: payload,
	}
	return c.socket.send(m)
}

// deliver routes a non-reply message into the event stream. phx_close and
// phx_error also update the channel status.
func (c *Channel) deliver(m *Message) {
	event := ParseEvent(m.Event)
	if event.IsPhoenix {
		switch event.Phoenix {
		case PhoenixClose:
			c.setStatus(ChannelLeft)
		case PhoenixError:
			c.setStatus(ChannelWaitingToRejoin)
		}
	}
	select {
	case c.events <- EventPayload{Event: event, Payload: m.Payload}:
	default:
		c.socket.logger.Warn("channel event buffer full, dropping event",
			"topic", c.Topic, "event", m.Event)
	}
}

// splitReply unwraps a phx_reply payload `{"status": ..., "response":
// ...}` into its status and response. A binary reply body is forwarded
// as a binary payload.
func splitReply(payload Payload) (string, Payload) {
	status, _ := payload.GetString("status")
	if payload.Binary != nil {
		return status, BinaryPayload(payload.Binary)
	}
	response, ok := payload.Get("response")
	if !ok {
		return status, EmptyPayload()
	}
	return status, JSONPayload(response)
}
