// Package livetest provides an in-process fake LiveView server for
// integration tests: a dead-render page carrying session tokens, a
// websocket endpoint speaking the V2 channel protocol, and hooks to
// script join rejections, call replies, and server pushes.
package livetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// CallHandler produces the reply body for a user event call. Returning
// ok=false rejects the call with the body as the error response.
type CallHandler func(payload map[string]any) (response map[string]any, ok bool)

// Server is a scriptable fake LiveView endpoint.
type Server struct {
	HTTP *httptest.Server

	CSRFToken  string
	PhxID      string
	PhxSession string
	PhxStatic  string
	LiveReload bool
	StyleURLs  []string

	mu           sync.Mutex
	views        map[string]string // path -> rendered RootDiff JSON
	callHandlers map[string]CallHandler
	rejections   []rejection
	conns        []*serverConn
	joins        []JoinRecord
	deadRenders  []string
	leaves       int
	binaryChunks []int
}

type rejection struct {
	urlSubstr string
	payload   map[string]any
}

// JoinRecord captures one channel join observed by the server.
type JoinRecord struct {
	Topic   string
	Payload map[string]any
}

type serverConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
	// topics this connection has joined, by topic -> joinRef
	topics map[string]string
}

func (c *serverConn) write(v []any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// New starts a fake server with fresh session tokens.
func New() *Server {
	s := &Server{
		CSRFToken:    uuid.NewString(),
		PhxID:        "phx-" + uuid.NewString()[:8],
		PhxSession:   uuid.NewString(),
		PhxStatic:    uuid.NewString(),
		views:        make(map[string]string),
		callHandlers: make(map[string]CallHandler),
	}

	r := chi.NewRouter()
	r.Get("/live/websocket", s.handleWebSocket)
	r.Get("/phoenix/live_reload/socket/websocket", s.handleReloadSocket)
	r.NotFound(s.handleDeadRender)

	s.HTTP = httptest.NewServer(r)
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	conns := append([]*serverConn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.conn.Close()
	}
	s.HTTP.Close()
}

// URL returns the base http URL of the server.
func (s *Server) URL() string { return s.HTTP.URL }

// HandleView registers the rendered RootDiff JSON served when a channel
// joins with the given path.
func (s *Server) HandleView(path, renderedJSON string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[path] = renderedJSON
}

// HandleCall registers the reply handler for a user event.
func (s *Server) HandleCall(event string, handler CallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callHandlers[event] = handler
}

// RejectNextJoin makes the next join whose url contains urlSubstr fail
// with the given payload.
func (s *Server) RejectNextJoin(urlSubstr string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejections = append(s.rejections, rejection{urlSubstr: urlSubstr, payload: payload})
}

// Joins returns the joins the server has observed.
func (s *Server) Joins() []JoinRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]JoinRecord(nil), s.joins...)
}

// DeadRenders returns the paths that served a dead render.
func (s *Server) DeadRenders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deadRenders...)
}

// Leaves returns how many phx_leave frames the server has received.
func (s *Server) Leaves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaves
}

// Push broadcasts a user event to every connection joined to the main
// topic.
func (s *Server) Push(event string, payload any) {
	topic := "lv:" + s.PhxID
	s.mu.Lock()
	conns := append([]*serverConn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		c.mu.Lock()
		joinRef, joined := c.topics[topic]
		c.mu.Unlock()
		if joined {
			_ = c.write([]any{joinRef, nil, topic, event, payload})
		}
	}
}

func (s *Server) handleDeadRender(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.deadRenders = append(s.deadRenders, r.URL.Path)
	styles := append([]string(nil), s.StyleURLs...)
	reload := s.LiveReload
	s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString("<html><head>\n")
	fmt.Fprintf(&sb, "<meta name=%q content=%q>\n", "csrf-token", s.CSRFToken)
	for _, url := range styles {
		fmt.Fprintf(&sb, "<Style url=%q />\n", url)
	}
	sb.WriteString("</head><body>\n")
	fmt.Fprintf(&sb, "<div id=%q data-phx-main=\"true\" data-phx-session=%q data-phx-static=%q></div>\n",
		s.PhxID, s.PhxSession, s.PhxStatic)
	if reload {
		sb.WriteString("<iframe hidden height=\"0\" width=\"0\" src=\"/phoenix/live_reload/frame\"></iframe>\n")
	}
	sb.WriteString("</body></html>")

	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(sb.String()))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &serverConn{conn: conn, topics: make(map[string]string)}
	s.mu.Lock()
	s.conns = append(s.conns, sc)
	s.mu.Unlock()

	go s.serveConn(sc)
}

func (s *Server) serveConn(sc *serverConn) {
	defer sc.conn.Close()
	for {
		kind, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.BinaryMessage {
			s.handleBinaryPush(sc, data)
			continue
		}
		var frame []json.RawMessage
		if err := json.Unmarshal(data, &frame); err != nil || len(frame) != 5 {
			continue
		}
		var joinRef, ref, topic, event string
		_ = json.Unmarshal(frame[0], &joinRef)
		_ = json.Unmarshal(frame[1], &ref)
		_ = json.Unmarshal(frame[2], &topic)
		_ = json.Unmarshal(frame[3], &event)
		var payload map[string]any
		_ = json.Unmarshal(frame[4], &payload)

		switch event {
		case "heartbeat":
			_ = sc.write([]any{nil, ref, "phoenix", "phx_reply", okReply(map[string]any{})})
		case "phx_join":
			s.handleJoin(sc, joinRef, ref, topic, payload)
		case "phx_leave":
			s.mu.Lock()
			s.leaves++
			s.mu.Unlock()
			sc.mu.Lock()
			delete(sc.topics, topic)
			sc.mu.Unlock()
			_ = sc.write([]any{joinRef, ref, topic, "phx_reply", okReply(map[string]any{})})
		default:
			s.handleEvent(sc, joinRef, ref, topic, event, payload)
		}
	}
}

func (s *Server) handleJoin(sc *serverConn, joinRef, ref, topic string, payload map[string]any) {
	s.mu.Lock()
	s.joins = append(s.joins, JoinRecord{Topic: topic, Payload: payload})
	joinURL := joinTarget(payload)
	var rejected map[string]any
	for i, rej := range s.rejections {
		if strings.Contains(joinURL, rej.urlSubstr) {
			rejected = rej.payload
			s.rejections = append(s.rejections[:i], s.rejections[i+1:]...)
			break
		}
	}
	path := pathOf(joinURL)
	rendered, hasView := s.views[path]
	s.mu.Unlock()

	if rejected != nil {
		_ = sc.write([]any{joinRef, ref, topic, "phx_reply", errorReply(rejected)})
		return
	}

	response := map[string]any{}
	if hasView {
		var renderedValue any
		if err := json.Unmarshal([]byte(rendered), &renderedValue); err == nil {
			response["rendered"] = renderedValue
		}
	}

	sc.mu.Lock()
	sc.topics[topic] = joinRef
	sc.mu.Unlock()
	_ = sc.write([]any{joinRef, ref, topic, "phx_reply", okReply(response)})
}

func (s *Server) handleEvent(sc *serverConn, joinRef, ref, topic, event string, payload map[string]any) {
	s.mu.Lock()
	handler, ok := s.callHandlers[event]
	s.mu.Unlock()
	if !ok {
		if ref != "" {
			_ = sc.write([]any{joinRef, ref, topic, "phx_reply", okReply(map[string]any{})})
		}
		return
	}
	response, accepted := handler(payload)
	if ref == "" {
		return
	}
	if accepted {
		_ = sc.write([]any{joinRef, ref, topic, "phx_reply", okReply(response)})
	} else {
		_ = sc.write([]any{joinRef, ref, topic, "phx_reply", errorReply(response)})
	}
}

// handleBinaryPush acks a binary push frame: kind byte, four length
// bytes, join ref / ref / topic / event strings, then the body.
func (s *Server) handleBinaryPush(sc *serverConn, data []byte) {
	if len(data) < 5 || data[0] != 0 {
		return
	}
	joinRefLen, refLen, topicLen, eventLen := int(data[1]), int(data[2]), int(data[3]), int(data[4])
	offset := 5
	if len(data) < offset+joinRefLen+refLen+topicLen+eventLen {
		return
	}
	joinRef := string(data[offset : offset+joinRefLen])
	offset += joinRefLen
	ref := string(data[offset : offset+refLen])
	offset += refLen
	topic := string(data[offset : offset+topicLen])
	offset += topicLen
	offset += eventLen

	s.mu.Lock()
	s.binaryChunks = append(s.binaryChunks, len(data)-offset)
	s.mu.Unlock()

	_ = sc.write([]any{joinRef, ref, topic, "phx_reply", okReply(map[string]any{})})
}

// BinaryChunks returns the sizes of the binary pushes received.
func (s *Server) BinaryChunks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.binaryChunks...)
}

func (s *Server) handleReloadSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sc := &serverConn{conn: conn, topics: make(map[string]string)}
	s.mu.Lock()
	s.conns = append(s.conns, sc)
	s.mu.Unlock()
	go s.serveConn(sc)
}

func okReply(response map[string]any) map[string]any {
	return map[string]any{"status": "ok", "response": response}
}

func errorReply(response map[string]any) map[string]any {
	return map[string]any{"status": "error", "response": response}
}

func joinTarget(payload map[string]any) string {
	if url, ok := payload["url"].(string); ok {
		return url
	}
	if redirect, ok := payload["redirect"].(string); ok {
		return redirect
	}
	return ""
}

func pathOf(rawURL string) string {
	trimmed := rawURL
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
		if slash := strings.IndexByte(trimmed, '/'); slash >= 0 {
			trimmed = trimmed[slash:]
		} else {
			trimmed = "/"
		}
	}
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "/"
	}
	return trimmed
}
