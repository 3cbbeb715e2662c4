package phx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livenative-dev/livenative/internal/watch"
)

// SocketStatus tracks the connection lifecycle of a Socket.
type SocketStatus uint8

const (
	// SocketNeverConnected means Connect has not succeeded yet.
	SocketNeverConnected SocketStatus = iota
	// SocketConnected means the websocket is up.
	SocketConnected
	// SocketDisconnected means the websocket dropped and no reconnect is
	// in flight.
	SocketDisconnected
	// SocketWaitingToReconnect means the websocket dropped and the socket
	// is sleeping before the next dial attempt.
	SocketWaitingToReconnect
	// SocketShuttingDown means Shutdown was called and tasks are winding
	// down.
	SocketShuttingDown
	// SocketShutDown means the socket is fully stopped.
	SocketShutDown
)

func (s SocketStatus) String() string {
	switch s {
	case SocketNeverConnected:
		return "never_connected"
	case SocketConnected:
		return "connected"
	case SocketDisconnected:
		return "disconnected"
	case SocketWaitingToReconnect:
		return "waiting_to_reconnect"
	case SocketShuttingDown:
		return "shutting_down"
	case SocketShutDown:
		return "shut_down"
	default:
		return "unknown"
	}
}

// ReconnectStrategy decides how long to sleep before the next dial after
// a dropped connection. Attempt starts at 0.
type ReconnectStrategy interface {
	SleepDuration(attempt uint64) time.Duration
}

// defaultStrategy mirrors the Phoenix client's backoff ladder.
type defaultStrategy struct{}

var backoffLadder = []time.Duration{
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	150 * time.Millisecond,
	200 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2 * time.Second,
}

func (defaultStrategy) SleepDuration(attempt uint64) time.Duration {
	if attempt >= uint64(len(backoffLadder)) {
		return backoffLadder[len(backoffLadder)-1]
	}
	return backoffLadder[attempt]
}

// Errors surfaced by socket and channel operations.
var (
	ErrSocketClosed   = errors.New("phx: socket is shut down")
	ErrNotConnected   = errors.New("phx: socket is not connected")
	ErrCallTimeout    = errors.New("phx: call timed out")
	ErrConnectTimeout = errors.New("phx: connect timed out")
)

const heartbeatInterval = 30 * time.Second

type outgoing struct {
	data     []byte
	isBinary bool
}

// Socket is a multiplexed websocket connection carrying channels.
type Socket struct {
	// SessionRef uniquely identifies this socket instance across
	// reconnects, for diagnostics.
	SessionRef string

	url      string
	cookies  []string
	strategy ReconnectStrategy
	logger   *slog.Logger

	refCounter atomic.Uint64
	statuses   *watch.Value[SocketStatus]

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]*Channel
	pending  map[string]chan *Message
	writeCh  chan outgoing
	closed   chan struct{}
	shutdown bool
	loopsUp  bool
}

// Spawn prepares a socket for the given websocket URL. The socket does
// not dial until Connect. Cookies, when provided, are sent on the
// upgrade request.
func Spawn(url string, cookies []string, strategy ReconnectStrategy) *Socket {
	if strategy == nil {
		strategy = defaultStrategy{}
	}
	return &Socket{
		SessionRef: uuid.NewString(),
		url:        url,
		cookies:    cookies,
		strategy:   strategy,
		logger:     slog.Default().With("component", "phx.socket"),
		statuses:   watch.New(SocketNeverConnected),
		channels:   make(map[string]*Channel),
		pending:    make(map[string]chan *Message),
		writeCh:    make(chan outgoing, 64),
		closed:     make(chan struct{}),
	}
}

// SetLogger replaces the socket's logger.
func (s *Socket) SetLogger(logger *slog.Logger) {
	s.logger = logger.With("component", "phx.socket")
}

// Status returns the current socket status.
func (s *Socket) Status() SocketStatus { return s.statuses.Get() }

// Statuses subscribes to socket status transitions with latest-value
// semantics.
func (s *Socket) Statuses() <-chan SocketStatus { return s.statuses.Subscribe() }

// Connect dials the server. It is a no-op when already connected.
func (s *Socket) Connect(timeout time.Duration) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrSocketClosed
	}
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, err := s.dial(timeout)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	start := !s.loopsUp
	s.loopsUp = true
	s.mu.Unlock()

	s.statuses.Set(SocketConnected)
	go s.readLoop(conn)
	if start {
		go s.writeLoop()
		go s.heartbeatLoop()
	}
	return nil
}

func (s *Socket) dial(timeout time.Duration) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	header := http.Header{}
	for _, cookie := range s.cookies {
		header.Add("Cookie", cookie)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrConnectTimeout
		}
		return nil, fmt.Errorf("phx: dial %s: %w", s.url, err)
	}
	return conn, nil
}

// Disconnect closes the current connection without stopping the socket;
// Connect may be called again.
func (s *Socket) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.statuses.Set(SocketDisconnected)
	return nil
}

// Shutdown stops the socket permanently, closing the connection and all
// channel streams.
func (s *Socket) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	conn := s.conn
	s.conn = nil
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	close(s.closed)
	s.mu.Unlock()

	s.statuses.Set(SocketShuttingDown)
	if conn != nil {
		_ = conn.Close()
	}
	for _, ch := range channels {
		ch.setStatus(ChannelShutDown)
	}
	s.statuses.Set(SocketShutDown)
}

// Channel returns the channel for topic, creating it when new. The join
// payload is sent with phx_join. A channel that was left is replaced by
// a fresh one carrying the new payload.
func (s *Socket) Channel(topic string, joinPayload *Payload) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[topic]; ok {
		switch ch.Status() {
		case ChannelLeft, ChannelShutDown:
			// fall through to create a replacement
		default:
			return ch
		}
	}
	payload := EmptyPayload()
	if joinPayload != nil {
		payload = *joinPayload
	}
	ch := newChannel(s, topic, payload)
	s.channels[topic] = ch
	return ch
}

func (s *Socket) nextRef() string {
	return strconv.FormatUint(s.refCounter.Add(1), 10)
}

// send enqueues a message for the write loop.
func (s *Socket) send(m *Message) error {
	var frame outgoing
	if m.Payload.IsBinary {
		frame = outgoing{data: m.encodeBinaryPush(), isBinary: true}
	} else {
		data, err := m.encodeText()
		if err != nil {
			return err
		}
		frame = outgoing{data: data}
	}
	select {
	case s.writeCh <- frame:
		return nil
	case <-s.closed:
		return ErrSocketClosed
	}
}

// call sends a message and waits for the matching phx_reply.
func (s *Socket) call(m *Message, timeout time.Duration) (*Message, error) {
	replyCh := make(chan *Message, 1)
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil, ErrSocketClosed
	}
	s.pending[m.Ref] = replyCh
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, m.Ref)
		s.mu.Unlock()
	}()

	if err := s.send(m); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		return nil, ErrCallTimeout
	case <-s.closed:
		return nil, ErrSocketClosed
	}
}

func (s *Socket) writeLoop() {
	for {
		select {
		case frame := <-s.writeCh:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			kind := websocket.TextMessage
			if frame.isBinary {
				kind = websocket.BinaryMessage
			}
			if err := conn.WriteMessage(kind, frame.data); err != nil {
				s.logger.Error("write failed", "error", err)
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Socket) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.Status() != SocketConnected {
				continue
			}
			m := &Message{
				Ref:     s.nextRef(),
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: EmptyPayload(),
			}
			if err := s.send(m); err != nil {
				s.logger.Debug("heartbeat not sent", "error", err)
			}
		case <-s.closed:
			return
		}
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(conn, err)
			return
		}
		var m *Message
		switch kind {
		case websocket.TextMessage:
			m, err = decodeText(data)
		case websocket.BinaryMessage:
			m, err = decodeBinary(data)
		default:
			continue
		}
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			continue
		}
		s.dispatch(m)
	}
}

func (s *Socket) dispatch(m *Message) {
	if m.Ref != "" {
		s.mu.Lock()
		replyCh, ok := s.pending[m.Ref]
		s.mu.Unlock()
		if ok {
			replyCh <- m
			return
		}
	}

	s.mu.Lock()
	ch, ok := s.channels[m.Topic]
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("event for unknown topic", "topic", m.Topic, "event", m.Event)
		return
	}
	ch.deliver(m)
}

// handleReadError runs the reconnect policy after the connection drops.
func (s *Socket) handleReadError(conn *websocket.Conn, err error) {
	s.mu.Lock()
	current := s.conn == conn
	if current {
		s.conn = nil
	}
	down := s.shutdown
	s.mu.Unlock()

	if down || !current {
		return
	}

	s.logger.Debug("socket disconnected", "error", err)
	s.statuses.Set(SocketDisconnected)
	s.markChannelsWaiting()

	for attempt := uint64(0); ; attempt++ {
		s.statuses.Set(SocketWaitingToReconnect)
		timer := time.NewTimer(s.strategy.SleepDuration(attempt))
		select {
		case <-timer.C:
		case <-s.closed:
			timer.Stop()
			return
		}

		newConn, dialErr := s.dial(5 * time.Second)
		if dialErr != nil {
			s.logger.Debug("reconnect attempt failed", "attempt", attempt, "error", dialErr)
			continue
		}

		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			_ = newConn.Close()
			return
		}
		s.conn = newConn
		s.mu.Unlock()

		s.statuses.Set(SocketConnected)
		go s.readLoop(newConn)
		return
	}
}

func (s *Socket) markChannelsWaiting() {
	s.mu.Lock()
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.Unlock()
	for _, ch := range channels {
		if ch.Status() == ChannelJoined {
			ch.setStatus(ChannelWaitingToRejoin)
		}
	}
}
