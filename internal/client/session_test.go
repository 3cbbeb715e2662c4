package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/livenative-dev/livenative/internal/livetest"
)

func fetchFrom(t *testing.T, srv *livetest.Server) *SessionData {
	t.Helper()
	target, _ := url.Parse(srv.URL() + "/")
	session, err := FetchSessionData(http.DefaultClient, target, "swiftui", ConnectOpts{})
	if err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	return session
}

func TestFetchSessionDataExtractsTokens(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.StyleURLs = []string{"/assets/app.swiftui.styles"}

	session := fetchFrom(t, srv)
	if session.CSRFToken != srv.CSRFToken {
		t.Errorf("csrf = %q, want %q", session.CSRFToken, srv.CSRFToken)
	}
	if session.PhxID != srv.PhxID {
		t.Errorf("phx id = %q, want %q", session.PhxID, srv.PhxID)
	}
	if session.PhxSession != srv.PhxSession || session.PhxStatic != srv.PhxStatic {
		t.Error("session/static tokens not extracted")
	}
	if len(session.StyleURLs) != 1 || session.StyleURLs[0] != "/assets/app.swiftui.styles" {
		t.Errorf("style urls = %v", session.StyleURLs)
	}
	if session.HasLiveReload {
		t.Error("live reload flagged without iframe")
	}
}

func TestFetchSessionDataDetectsLiveReload(t *testing.T) {
	srv := livetest.New()
	defer srv.Close()
	srv.LiveReload = true

	session := fetchFrom(t, srv)
	if !session.HasLiveReload {
		t.Error("live reload iframe not detected")
	}
}

func TestFetchSessionDataAppendsFormat(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(deadRenderPage))
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL + "/?q=1")
	if _, err := FetchSessionData(http.DefaultClient, target, "jetpack", ConnectOpts{}); err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	if gotQuery.Get("_format") != "jetpack" {
		t.Errorf("_format = %q", gotQuery.Get("_format"))
	}
	if gotQuery.Get("q") != "1" {
		t.Error("original query dropped")
	}
}

func TestFetchSessionDataFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/landed", http.StatusFound)
	})
	mux.HandleFunc("/landed", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(deadRenderPage))
	})

	target, _ := url.Parse(srv.URL + "/start")
	session, err := FetchSessionData(http.DefaultClient, target, "swiftui", ConnectOpts{})
	if err != nil {
		t.Fatalf("FetchSessionData: %v", err)
	}
	if !strings.Contains(session.URL.Path, "/landed") {
		t.Errorf("final url = %v, want /landed", session.URL)
	}
}

func TestFetchSessionDataErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{"missing csrf", `<div id="x" data-phx-main="true" data-phx-session="s" data-phx-static="st"></div>`, ErrCSRFTokenMissing},
		{"missing main", `<meta name="csrf-token" content="c">`, ErrPhoenixMainMissing},
		{"missing id", `<meta name="csrf-token" content="c"><div data-phx-main="true" data-phx-session="s" data-phx-static="st"></div>`, ErrPhoenixIDMissing},
		{"missing session", `<meta name="csrf-token" content="c"><div id="x" data-phx-main="true" data-phx-static="st"></div>`, ErrPhoenixSessionMissing},
		{"missing static", `<meta name="csrf-token" content="c"><div id="x" data-phx-main="true" data-phx-session="s"></div>`, ErrPhoenixStaticMissing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()
			target, _ := url.Parse(srv.URL + "/")
			_, err := FetchSessionData(http.DefaultClient, target, "swiftui", ConnectOpts{})
			if !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFetchSessionDataConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	target, _ := url.Parse(srv.URL + "/")
	_, err := FetchSessionData(http.DefaultClient, target, "swiftui", ConnectOpts{})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) || connErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error = %v, want ConnectionError{500}", err)
	}
}

func TestLiveSocketURL(t *testing.T) {
	session := &SessionData{
		CSRFToken: "tok",
		Format:    "swiftui",
		URL:       mustURL(t, "http://example.org:4000/page"),
	}
	out, err := session.LiveSocketURL()
	if err != nil {
		t.Fatalf("LiveSocketURL: %v", err)
	}
	if out.Scheme != "ws" || out.Host != "example.org:4000" || out.Path != "/live/websocket" {
		t.Errorf("url = %v", out)
	}
	q := out.Query()
	if q.Get("vsn") != "2.0.0" || q.Get("_csrf_token") != "tok" || q.Get("_mounts") != "0" || q.Get("_format") != "swiftui" {
		t.Errorf("query = %v", q)
	}

	session.URL = mustURL(t, "https://example.org/page")
	out, err = session.LiveSocketURL()
	if err != nil {
		t.Fatalf("LiveSocketURL https: %v", err)
	}
	if out.Scheme != "wss" {
		t.Errorf("scheme = %q, want wss", out.Scheme)
	}

	session.URL = mustURL(t, "ftp://example.org/page")
	if _, err = session.LiveSocketURL(); err == nil {
		t.Error("ftp scheme accepted")
	}
}

func TestJoinPayloadShape(t *testing.T) {
	session := &SessionData{
		CSRFToken:  "tok",
		PhxStatic:  "static-tok",
		PhxSession: "session-tok",
		Format:     "swiftui",
		URL:        mustURL(t, "http://h/page"),
	}

	payload := session.JoinPayload(map[string]any{"theme": "dark"}, "")
	if payload["static"] != "static-tok" || payload["session"] != "session-tok" {
		t.Errorf("payload = %v", payload)
	}
	if payload["url"] != "http://h/page" {
		t.Errorf("url = %v", payload["url"])
	}
	params := payload["params"].(map[string]any)
	if params["_csrf_token"] != "tok" || params["_format"] != "swiftui" || params["_mounts"] != 0 {
		t.Errorf("params = %v", params)
	}
	if params["theme"] != "dark" {
		t.Error("user join params not merged")
	}

	payload = session.JoinPayload(nil, "http://h/next")
	if _, hasURL := payload["url"]; hasURL {
		t.Error("redirect payload still carries url")
	}
	if payload["redirect"] != "http://h/next" {
		t.Errorf("redirect = %v", payload["redirect"])
	}
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	out, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", raw, err)
	}
	return out
}

const deadRenderPage = `<html><head><meta name="csrf-token" content="tok"></head>` +
	`<body><div id="phx-1" data-phx-main="true" data-phx-session="s" data-phx-static="st"></div></body></html>`
