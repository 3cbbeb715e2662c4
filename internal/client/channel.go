package client

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/livenative-dev/livenative/pkg/diff"
	"github.com/livenative-dev/livenative/pkg/dom"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// LiveChannel bundles a joined channel with the document it renders and
// the parameters it was joined with.
type LiveChannel struct {
	Channel    *phx.Channel
	Socket     *phx.Socket
	JoinPayload phx.Payload
	JoinParams map[string]any
	// Doc is the live document fed by diffs on this channel.
	Doc *diff.TrackedDocument
	// JoinDoc is the initial document parsed from the join reply, kept
	// unchanged for upload ref resolution and host inspection.
	JoinDoc *dom.Document
	Timeout time.Duration
}

// joinLiveViewChannel connects the socket if necessary, joins the
// `lv:<id>` topic, and builds the initial document from the `rendered`
// field of the join reply. A server rejection surfaces as
// JoinRejectionError.
func joinLiveViewChannel(
	socket *phx.Socket,
	session *SessionData,
	additionalParams map[string]any,
	redirect string,
	timeout time.Duration,
) (*LiveChannel, error) {
	if err := socket.Connect(timeout); err != nil {
		return nil, err
	}

	joinPayload := phx.JSONPayload(session.JoinPayload(additionalParams, redirect))
	channel := socket.Channel(session.MainTopic(), &joinPayload)

	reply, err := channel.Join(timeout)
	if err != nil {
		var joinErr *phx.JoinError
		if errors.As(err, &joinErr) {
			return nil, &JoinRejectionError{Payload: joinErr.Payload}
		}
		return nil, err
	}

	rendered, ok := reply.Get("rendered")
	if !ok {
		return nil, ErrNoDocumentInJoinPayload
	}
	raw, err := json.Marshal(rendered)
	if err != nil {
		return nil, err
	}
	tracked, err := diff.ParseFragmentJSON(raw)
	if err != nil {
		return nil, err
	}
	joinDoc, err := dom.Parse(tracked.Doc.RenderCompact())
	if err != nil {
		return nil, err
	}

	return &LiveChannel{
		Channel:     channel,
		Socket:      socket,
		JoinPayload: reply,
		JoinParams:  additionalParams,
		Doc:         tracked,
		JoinDoc:     joinDoc,
		Timeout:     timeout,
	}, nil
}

// joinLiveReloadChannel joins `phoenix:live_reload` on its own socket at
// the live-reload endpoint.
func joinLiveReloadChannel(
	session *SessionData,
	cookies []string,
	strategy phx.ReconnectStrategy,
	timeout time.Duration,
) (*LiveChannel, error) {
	target, err := session.LiveReloadSocketURL()
	if err != nil {
		return nil, err
	}

	socket := phx.Spawn(target.String(), cookies, strategy)
	if err := socket.Connect(timeout); err != nil {
		return nil, err
	}

	channel := socket.Channel("phoenix:live_reload", nil)
	reply, err := channel.Join(timeout)
	if err != nil {
		socket.Shutdown()
		var joinErr *phx.JoinError
		if errors.As(err, &joinErr) {
			return nil, &JoinRejectionError{Payload: joinErr.Payload}
		}
		return nil, err
	}

	return &LiveChannel{
		Channel:     channel,
		Socket:      socket,
		JoinPayload: reply,
		Doc:         &diff.TrackedDocument{Doc: dom.Empty()},
		JoinDoc:     dom.Empty(),
		Timeout:     timeout,
	}, nil
}

// httpClientWithJar returns a new HTTP client that uses the cookie jar.
func httpClientWithJar(jar *CookieJar) *http.Client {
	return &http.Client{Jar: jar}
}
