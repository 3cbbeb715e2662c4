package phx

import (
	"strings"
	"testing"
	"time"

	"github.com/livenative-dev/livenative/internal/livetest"
)

const testTimeout = 5 * time.Second

func wsURL(srv *livetest.Server) string {
	return strings.Replace(srv.URL(), "http://", "ws://", 1) + "/live/websocket"
}

func connectedSocket(t *testing.T, srv *livetest.Server) *Socket {
	t.Helper()
	sock := Spawn(wsURL(srv), nil, nil)
	if err := sock.Connect(testTimeout); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(sock.Shutdown)
	return sock
}

func joinMain(t *testing.T, srv *livetest.Server, sock *Socket) (*Channel, Payload) {
	t.Helper()
	payload := JSONPayload(map[string]any{
		"url":     srv.URL() + "/",
		"static":  srv.PhxStatic,
		"session": srv.PhxSession,
		"params":  map[string]any{},
	})
	ch := sock.Channel("lv:"+srv.PhxID, &payload)
	reply, err := ch.Join(testTimeout)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	return ch, reply
}

func TestSocketConnectAndStatus(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()

	sock := Spawn(wsURL(srv), nil, nil)
	if got := sock.Status(); got != SocketNeverConnected {
		t.Fatalf("initial status = %v", got)
	}
	if err := sock.Connect(testTimeout); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := sock.Status(); got != SocketConnected {
		t.Fatalf("status after connect = %v", got)
	}
	sock.Shutdown()
	if got := sock.Status(); got != SocketShutDown {
		t.Fatalf("status after shutdown = %v", got)
	}
}

func TestChannelJoinReturnsRendered(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"0": "hello", "s": ["<div>", "</div>"]}`)

	sock := connectedSocket(t, srv)
	ch, reply := joinMain(t, srv, sock)

	if ch.Status() != ChannelJoined {
		t.Errorf("channel status = %v", ch.Status())
	}
	if _, ok := reply.Get("rendered"); !ok {
		t.Errorf("join reply lacks rendered: %v", reply)
	}
}

func TestChannelJoinRejection(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.RejectNextJoin("/", map[string]any{"reason": "stale"})

	sock := connectedSocket(t, srv)
	payload := JSONPayload(map[string]any{"url": srv.URL() + "/"})
	ch := sock.Channel("lv:"+srv.PhxID, &payload)
	_, err := ch.Join(testTimeout)
	joinErr, ok := err.(*JoinError)
	if !ok {
		t.Fatalf("Join error = %v, want JoinError", err)
	}
	if reason, _ := joinErr.Payload.GetString("reason"); reason != "stale" {
		t.Errorf("rejection payload = %v", joinErr.Payload)
	}
}

func TestChannelCallReply(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"s": ["<div></div>"]}`)
	srv.HandleCall("event", func(payload map[string]any) (map[string]any, bool) {
		return map[string]any{"diff": map[string]any{"0": "clicked"}}, true
	})

	sock := connectedSocket(t, srv)
	ch, _ := joinMain(t, srv, sock)

	reply, err := ch.Call(UserEvent("event"), EmptyPayload(), testTimeout)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := reply.Get("diff"); !ok {
		t.Errorf("call reply = %v", reply)
	}
}

func TestChannelCallError(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"s": ["<div></div>"]}`)
	srv.HandleCall("explode", func(payload map[string]any) (map[string]any, bool) {
		return map[string]any{"reason": "boom"}, false
	})

	sock := connectedSocket(t, srv)
	ch, _ := joinMain(t, srv, sock)

	_, err := ch.Call(UserEvent("explode"), EmptyPayload(), testTimeout)
	callErr, ok := err.(*CallError)
	if !ok {
		t.Fatalf("Call error = %v, want CallError", err)
	}
	if reason, _ := callErr.Payload.GetString("reason"); reason != "boom" {
		t.Errorf("error payload = %v", callErr.Payload)
	}
}

func TestChannelReceivesServerPush(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"s": ["<div></div>"]}`)

	sock := connectedSocket(t, srv)
	ch, _ := joinMain(t, srv, sock)

	srv.Push("diff", map[string]any{"0": "fresh"})

	select {
	case ev := <-ch.Events():
		if !ev.Event.Is("diff") {
			t.Errorf("event = %v", ev.Event)
		}
		if v, _ := ev.Payload.GetString("0"); v != "fresh" {
			t.Errorf("payload = %v", ev.Payload)
		}
	case <-time.After(testTimeout):
		t.Fatal("no event received")
	}
}

func TestChannelLeave(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"s": ["<div></div>"]}`)

	sock := connectedSocket(t, srv)
	ch, _ := joinMain(t, srv, sock)

	if err := ch.Leave(testTimeout); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if ch.Status() != ChannelLeft {
		t.Errorf("status after leave = %v", ch.Status())
	}
	if srv.Leaves() != 1 {
		t.Errorf("server saw %d leaves", srv.Leaves())
	}
}

func TestCallOnUnjoinedChannelFails(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()

	sock := connectedSocket(t, srv)
	ch := sock.Channel("lv:nope", nil)
	if _, err := ch.Call(UserEvent("x"), EmptyPayload(), testTimeout); err != ErrChannelNotJoined {
		t.Errorf("Call error = %v, want ErrChannelNotJoined", err)
	}
}
