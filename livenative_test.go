package livenative

import (
	"strings"
	"testing"
	"time"

	"github.com/livenative-dev/livenative/internal/livetest"
)

const testTimeout = 10 * time.Second

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	watch := c.WatchStatus()
	deadline := time.After(testTimeout)
	for {
		select {
		case status := <-watch:
			switch status.State {
			case StateConnected:
				return
			case StateFatalError:
				t.Fatalf("client entered fatal state: %v", status.Err)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for connection, state = %v", c.Status().State)
		}
	}
}

func TestClientLifecycle(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.StyleURLs = []string{"/assets/app.swiftui.styles"}
	srv.HandleView("/", `{"0": "world", "s": ["<div>hello ", "</div>"]}`)

	client, err := Connect(srv.URL()+"/", &Config{Format: PlatformSwiftUI})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Shutdown()
	waitConnected(t, client)

	if token, err := client.CSRFToken(); err != nil || token != srv.CSRFToken {
		t.Errorf("CSRFToken = %q, %v", token, err)
	}
	if urls, err := client.StyleURLs(); err != nil || len(urls) != 1 {
		t.Errorf("StyleURLs = %v, %v", urls, err)
	}
	if joinURL, err := client.JoinURL(); err != nil || !strings.Contains(joinURL, srv.URL()) {
		t.Errorf("JoinURL = %q, %v", joinURL, err)
	}
	if _, err := client.DeadRender(); err != nil {
		t.Errorf("DeadRender: %v", err)
	}
	if doc, err := client.JoinDocument(); err != nil || doc.RenderCompact() != "<div>hello world</div>" {
		t.Errorf("JoinDocument: %v, %v", doc, err)
	}

	if err := client.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	watch := client.WatchStatus()
	deadline := time.After(testTimeout)
	for client.Status().State != StateDisconnected {
		select {
		case <-watch:
		case <-deadline:
			t.Fatal("timed out waiting for disconnect")
		}
	}
	if _, err := client.Document(); err != ErrClientNotConnected {
		t.Errorf("Document after disconnect = %v, want ErrClientNotConnected", err)
	}
}

func TestClientCallAndCast(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.HandleView("/", `{"0": "0", "s": ["<div>count: ", "</div>"]}`)
	srv.HandleCall("increment", func(payload map[string]any) (map[string]any, bool) {
		return map[string]any{"diff": map[string]any{"0": "1"}}, true
	})

	client, err := Connect(srv.URL()+"/", nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Shutdown()
	waitConnected(t, client)

	reply, err := client.Call("increment", JSON(map[string]any{
		"type": "click", "event": "increment", "value": map[string]any{},
	}))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, ok := reply.Get("diff"); !ok {
		t.Errorf("reply = %v", reply)
	}

	if err := client.Cast("ping", JSON(map[string]any{})); err != nil {
		t.Errorf("Cast: %v", err)
	}
}

func TestClientNavigationFacade(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	for _, path := range []string{"/", "/next"} {
		srv.HandleView(path, `{"s": ["<div>`+path+`</div>"]}`)
	}

	client, err := Connect(srv.URL()+"/", nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Shutdown()
	waitConnected(t, client)

	if client.CanGoBack() {
		t.Error("CanGoBack true before any navigation")
	}
	id, changed, err := client.Navigate(srv.URL()+"/next", NavOptions{})
	if err != nil || !changed {
		t.Fatalf("Navigate: id=%d changed=%v err=%v", id, changed, err)
	}
	if !client.CanGoBack() {
		t.Error("CanGoBack false after navigation")
	}
	current, ok := client.CurrentHistoryEntry()
	if !ok || !strings.HasSuffix(current.URL, "/next") {
		t.Errorf("current = %+v", current)
	}
	if entries := client.HistoryEntries(); len(entries) != 2 {
		t.Errorf("entries = %+v", entries)
	}
}
