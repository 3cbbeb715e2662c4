package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/livenative-dev/livenative/pkg/dom"
)

const (
	lvnVsn        = "2.0.0"
	lvnVsnKey     = "vsn"
	csrfKey       = "_csrf_token"
	mountKey      = "_mounts"
	formatKey     = "_format"
	maxRedirects  = 10
	liveReloadSrc = "/phoenix/live_reload/frame"
)

// ConnectOpts customize the dead render request.
type ConnectOpts struct {
	// Method defaults to GET.
	Method string
	// Headers are added to the request.
	Headers map[string]string
	// Body is sent as the request body when non-nil.
	Body []byte
	// Timeout bounds each request of the fetch, including each manual
	// redirect hop.
	Timeout time.Duration
}

// SessionData is the static information ascertained from the dead render
// when connecting: the security and session tokens, the bootstrap
// document, and development-mode hints.
type SessionData struct {
	ConnectOpts ConnectOpts
	// CSRFToken is the cross-site request forgery token from the page.
	CSRFToken string
	// PhxID is the id of the channel to join, as `lv:<PhxID>`.
	PhxID     string
	PhxStatic string
	PhxSession string
	// URL is the final URL after redirects.
	URL *url.URL
	// Format is the `_format` the session was fetched with.
	Format string
	// DeadRender is the parsed bootstrap document.
	DeadRender *dom.Document
	// StyleURLs are the stylesheet URLs declared by the page.
	StyleURLs []string
	// HasLiveReload is true when the page carries the live-reload iframe.
	HasLiveReload bool
}

// FetchSessionData requests the dead render and extracts the session
// tokens from it.
func FetchSessionData(httpClient *http.Client, target *url.URL, format string, opts ConnectOpts) (*SessionData, error) {
	deadRender, finalURL, err := getDeadRender(httpClient, target, format, opts)
	if err != nil {
		return nil, err
	}

	csrfToken, ok := extractCSRFToken(deadRender)
	if !ok {
		return nil, ErrCSRFTokenMissing
	}

	mainNode, ok := deadRender.Select(dom.Attr("data-phx-main")).First()
	if !ok {
		return nil, ErrPhoenixMainMissing
	}
	var phxID, phxSession, phxStatic string
	for _, attr := range deadRender.Attributes(mainNode) {
		switch attr.Name.String() {
		case "id":
			phxID = attr.ValueString()
		case "data-phx-session":
			phxSession = attr.ValueString()
		case "data-phx-static":
			phxStatic = attr.ValueString()
		}
	}
	if phxID == "" {
		return nil, ErrPhoenixIDMissing
	}
	if phxSession == "" {
		return nil, ErrPhoenixSessionMissing
	}
	if phxStatic == "" {
		return nil, ErrPhoenixStaticMissing
	}

	// A Style declaration looks like <Style url="/assets/app.styles" />.
	var styleURLs []string
	it := deadRender.Select(dom.Tag("Style"))
	for node, found := it.Next(); found; node, found = it.Next() {
		if attr, has := deadRender.GetAttributeByName(node, dom.NewAttributeName("url")); has {
			styleURLs = append(styleURLs, attr.ValueString())
		}
	}

	// Development builds embed <iframe src="/phoenix/live_reload/frame">.
	hasLiveReload := false
	frames := deadRender.Select(dom.Tag("iframe"))
	for node, found := frames.Next(); found; node, found = frames.Next() {
		if attr, has := deadRender.GetAttributeByName(node, dom.NewAttributeName("src")); has {
			if attr.ValueString() == liveReloadSrc {
				hasLiveReload = true
				break
			}
		}
	}

	return &SessionData{
		ConnectOpts:   opts,
		CSRFToken:     csrfToken,
		PhxID:         phxID,
		PhxStatic:     phxStatic,
		PhxSession:    phxSession,
		URL:           finalURL,
		Format:        format,
		DeadRender:    deadRender,
		StyleURLs:     styleURLs,
		HasLiveReload: hasLiveReload,
	}, nil
}

// extractCSRFToken reads the token from a <csrf-token value=.../> element
// or a <meta name="csrf-token" content=...> tag.
func extractCSRFToken(doc *dom.Document) (string, bool) {
	if node, ok := doc.Select(dom.Tag("csrf-token")).First(); ok {
		if attr, has := doc.GetAttributeByName(node, dom.NewAttributeName("value")); has {
			return attr.ValueString(), true
		}
	}
	if node, ok := doc.Select(dom.And(dom.Tag("meta"), dom.AttrEquals("name", "csrf-token"))).First(); ok {
		if attr, has := doc.GetAttributeByName(node, dom.NewAttributeName("content")); has {
			return attr.ValueString(), true
		}
	}
	return "", false
}

// getDeadRender issues the bootstrap request, following at most
// maxRedirects redirects manually so the final URL stays observable.
func getDeadRender(httpClient *http.Client, target *url.URL, format string, opts ConnectOpts) (*dom.Document, *url.URL, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	current := withFormat(target, format)
	body := opts.Body

	// Redirects are followed manually, downgrading to GET like a browser.
	client := *httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}

	var resp *http.Response
	for redirect := 0; ; redirect++ {
		req, err := http.NewRequest(method, current.String(), bodyReader(body))
		if err != nil {
			return nil, nil, fmt.Errorf("building dead render request: %w", err)
		}
		for name, value := range opts.Headers {
			req.Header.Set(name, value)
		}

		resp, err = client.Do(req)
		if err != nil {
			return nil, nil, fmt.Errorf("dead render request: %w", err)
		}

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			break
		}
		location := resp.Header.Get("Location")
		_ = resp.Body.Close()
		if location == "" || redirect >= maxRedirects {
			return nil, nil, fmt.Errorf("dead render request: no valid redirect location")
		}
		next, err := current.Parse(location)
		if err != nil {
			return nil, nil, fmt.Errorf("dead render redirect: %w", err)
		}
		current = withFormat(next, format)
		method = http.MethodGet
		body = nil
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading dead render: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &ConnectionError{StatusCode: resp.StatusCode, Body: string(text)}
	}

	doc, err := dom.Parse(string(text))
	if err != nil {
		return nil, nil, err
	}
	finalURL := resp.Request.URL
	return doc, finalURL, nil
}

func bodyReader(body []byte) io.Reader {
	if body == nil {
		return nil
	}
	return bytes.NewReader(body)
}

// withFormat appends `_format=<format>` to the query when absent.
func withFormat(u *url.URL, format string) *url.URL {
	out := *u
	query := out.Query()
	if query.Get(formatKey) == "" {
		query.Set(formatKey, format)
		out.RawQuery = query.Encode()
	}
	return &out
}

// LiveSocketURL builds the websocket URL for this session: the http
// scheme swapped for its websocket counterpart, path `/live/websocket`,
// and the protocol query parameters attached.
func (s *SessionData) LiveSocketURL() (*url.URL, error) {
	scheme, err := websocketScheme(s.URL.Scheme)
	if err != nil {
		return nil, err
	}
	if s.URL.Host == "" {
		return nil, ErrNoHostInURL
	}

	out := &url.URL{Scheme: scheme, Host: s.URL.Host, Path: "/live/websocket"}
	query := url.Values{}
	query.Set(lvnVsnKey, lvnVsn)
	query.Set(csrfKey, s.CSRFToken)
	query.Set(mountKey, "0")
	query.Set(formatKey, s.Format)
	out.RawQuery = query.Encode()
	return out, nil
}

// LiveReloadSocketURL builds the websocket URL for the development
// live-reload socket.
func (s *SessionData) LiveReloadSocketURL() (*url.URL, error) {
	scheme, err := websocketScheme(s.URL.Scheme)
	if err != nil {
		return nil, err
	}
	out := &url.URL{Scheme: scheme, Host: s.URL.Host, Path: "/phoenix/live_reload/socket/websocket"}
	query := url.Values{}
	query.Set(lvnVsnKey, lvnVsn)
	out.RawQuery = query.Encode()
	return out, nil
}

func websocketScheme(scheme string) (string, error) {
	switch scheme {
	case "http":
		return "ws", nil
	case "https":
		return "wss", nil
	default:
		return "", &SchemeNotSupportedError{Scheme: scheme}
	}
}

// JoinPayload builds the channel join payload. When redirect is
// non-empty the payload carries `redirect` instead of `url`.
func (s *SessionData) JoinPayload(additionalParams map[string]any, redirect string) map[string]any {
	params := map[string]any{
		mountKey:  0,
		csrfKey:   s.CSRFToken,
		formatKey: s.Format,
	}
	for key, value := range additionalParams {
		params[key] = value
	}

	payload := map[string]any{
		"static":  s.PhxStatic,
		"session": s.PhxSession,
		"params":  params,
	}
	if redirect != "" {
		payload["redirect"] = redirect
	} else {
		payload["url"] = s.URL.String()
	}
	return payload
}

// MainTopic is the channel topic carrying rendered deltas and user
// events.
func (s *SessionData) MainTopic() string {
	return "lv:" + s.PhxID
}
