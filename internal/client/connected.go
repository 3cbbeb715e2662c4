package client

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/livenative-dev/livenative/pkg/clientmetrics"
	"github.com/livenative-dev/livenative/pkg/phx"
)

// retryReasons are the join rejection reasons that trigger an automatic
// dead-render refetch and socket swap.
var retryReasons = []string{"stale", "unauthorized"}

// ConnectedClient is the state of one established session: the open
// socket, the main channel, the optional live-reload channel, and the
// session tokens that produced them.
type ConnectedClient struct {
	Session    *SessionData
	Socket     *phx.Socket
	Main       *LiveChannel
	LiveReload *LiveChannel

	logger *slog.Logger
}

// Connect bootstraps a session: dead render fetch, socket spawn and
// connect, main channel join, and the optional live-reload join.
func Connect(
	cfg *Config,
	target string,
	httpClient *http.Client,
	jar *CookieJar,
	joinParams map[string]any,
	opts ConnectOpts,
) (*ConnectedClient, error) {
	logger := cfg.Logger.With("component", "client")
	logger.Info("starting new client connection", "url", target)
	clientmetrics.Connects.Inc()

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, err
	}

	if opts.Timeout <= 0 {
		opts.Timeout = cfg.DeadRenderTimeout
	}
	session, err := FetchSessionData(httpClient, parsed, cfg.Format, opts)
	if err != nil {
		return nil, err
	}

	socketURL, err := session.LiveSocketURL()
	if err != nil {
		return nil, err
	}
	cookies := jar.CookieList(session.URL)

	logger.Debug("initiating websocket connection", "url", socketURL.String())
	socket := phx.Spawn(socketURL.String(), cookies, cfg.SocketReconnectStrategy)
	socket.SetLogger(cfg.Logger)
	if err := socket.Connect(cfg.WebsocketTimeout); err != nil {
		return nil, err
	}

	merged := mergeJoinParams(cfg.JoinParams, joinParams)
	main, err := joinLiveViewChannel(socket, session, merged, "", cfg.WebsocketTimeout)
	if err != nil {
		socket.Shutdown()
		return nil, err
	}
	clientmetrics.Joins.Inc()

	var liveReload *LiveChannel
	if session.HasLiveReload {
		liveReload, err = joinLiveReloadChannel(session, cookies, cfg.SocketReconnectStrategy, cfg.WebsocketTimeout)
		if err != nil {
			socket.Shutdown()
			return nil, err
		}
	}

	return &ConnectedClient{
		Session:    session,
		Socket:     socket,
		Main:       main,
		LiveReload: liveReload,
		logger:     logger,
	}, nil
}

// Rejoin joins the main channel again on the existing socket, replacing
// the channel and document. Used after the socket reconnects.
func (c *ConnectedClient) Rejoin(cfg *Config) error {
	main, err := joinLiveViewChannel(c.Socket, c.Session, c.Main.JoinParams, "", cfg.WebsocketTimeout)
	if err != nil {
		return err
	}
	c.Main = main
	return nil
}

// TryNav navigates the session to target. The channel is left and
// rejoined with `redirect`; a stale or unauthorized rejection refetches
// the dead render with fresh tokens, spawns a new socket, shuts down the
// old one, and joins on the new session. It reports whether the socket
// was swapped.
func (c *ConnectedClient) TryNav(
	cfg *Config,
	httpClient *http.Client,
	jar *CookieJar,
	additionalParams map[string]any,
	target string,
) (bool, error) {
	if additionalParams == nil {
		additionalParams = c.Main.JoinParams
	}
	if err := c.Main.Channel.Leave(cfg.WebsocketTimeout); err != nil {
		c.logger.Debug("leave before navigation failed", "error", err)
	}

	main, err := joinLiveViewChannel(c.Socket, c.Session, additionalParams, target, cfg.WebsocketTimeout)
	if err == nil {
		c.Main = main
		return false, nil
	}

	rejection, ok := err.(*JoinRejectionError)
	if !ok || !isRetryReason(rejection.Payload) {
		return false, err
	}

	clientmetrics.JoinRejections.Inc()
	c.logger.Info("join rejected with recoverable reason, refreshing session", "url", target)

	parsed, err := url.Parse(target)
	if err != nil {
		return false, err
	}
	session, err := FetchSessionData(httpClient, parsed, cfg.Format, ConnectOpts{Timeout: cfg.DeadRenderTimeout})
	if err != nil {
		return false, err
	}

	socketURL, err := session.LiveSocketURL()
	if err != nil {
		return false, err
	}
	cookies := jar.CookieList(session.URL)
	newSocket := phx.Spawn(socketURL.String(), cookies, cfg.SocketReconnectStrategy)
	newSocket.SetLogger(cfg.Logger)
	if err := newSocket.Connect(cfg.WebsocketTimeout); err != nil {
		return false, err
	}

	c.Socket.Shutdown()
	c.Socket = newSocket
	c.Session = session

	main, err = joinLiveViewChannel(newSocket, session, additionalParams, "", cfg.WebsocketTimeout)
	if err != nil {
		return false, err
	}
	c.Main = main
	clientmetrics.Reconnects.Inc()
	return true, nil
}

// Shutdown leaves the main channel and stops the sockets.
func (c *ConnectedClient) Shutdown(cfg *Config) {
	if c.Main != nil {
		_ = c.Main.Channel.Leave(cfg.WebsocketTimeout)
	}
	_ = c.Socket.Disconnect()
	c.Socket.Shutdown()
	if c.LiveReload != nil {
		c.LiveReload.Socket.Shutdown()
	}
}

// MainEvents returns the main channel's event stream.
func (c *ConnectedClient) MainEvents() <-chan phx.EventPayload {
	return c.Main.Channel.Events()
}

// ReloadEvents returns the live-reload event stream, or nil when there is
// no live-reload channel; a nil channel never fires in a select.
func (c *ConnectedClient) ReloadEvents() <-chan phx.EventPayload {
	if c.LiveReload == nil {
		return nil
	}
	return c.LiveReload.Channel.Events()
}

// ChannelStatus maps the main channel's status to the client-facing
// connected/reconnecting pair.
func (c *ConnectedClient) ChannelStatus() LiveChannelStatus {
	if c.Main.Channel.Status() == phx.ChannelJoined {
		return LiveChannelConnected
	}
	return LiveChannelReconnecting
}

func isRetryReason(payload phx.Payload) bool {
	reason, ok := payload.GetString("reason")
	if !ok {
		return false
	}
	for _, candidate := range retryReasons {
		if reason == candidate {
			return true
		}
	}
	return false
}

func mergeJoinParams(base, extra map[string]any) map[string]any {
	if base == nil && extra == nil {
		return nil
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
